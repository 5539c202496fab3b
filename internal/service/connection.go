package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/security"
)

// ErrConnectionNotFound is returned when a connection ID resolves to nothing.
var ErrConnectionNotFound = errors.New("connection not found")

// SchemaCache caches schema snapshots between turns so a session pays the
// introspection cost once. A miss returns (nil, nil).
type SchemaCache interface {
	Get(ctx context.Context, connectionID uuid.UUID) (*domain.SchemaDescription, error)
	Set(ctx context.Context, connectionID uuid.UUID, schema *domain.SchemaDescription) error
	Invalidate(ctx context.Context, connectionID uuid.UUID) error
}

// ConnectionService handles data source connection operations
type ConnectionService struct {
	connectionRepo domain.ConnectionRepository
	dsRouter       *datasource.Router
	schemaCache    SchemaCache
	encryptor      *security.Encryptor
	defaultMaxRows int
	defaultTimeout int
}

// NewConnectionService creates a new connection service
func NewConnectionService(
	connectionRepo domain.ConnectionRepository,
	dsRouter *datasource.Router,
	schemaCache SchemaCache,
	encryptor *security.Encryptor,
	defaultMaxRows int,
	defaultTimeout int,
) *ConnectionService {
	return &ConnectionService{
		connectionRepo: connectionRepo,
		dsRouter:       dsRouter,
		schemaCache:    schemaCache,
		encryptor:      encryptor,
		defaultMaxRows: defaultMaxRows,
		defaultTimeout: defaultTimeout,
	}
}

// Create creates a new data source connection
func (s *ConnectionService) Create(ctx context.Context, input domain.ConnectionCreate) (*domain.ConnectionInfo, error) {
	// Encrypt password at rest; it is decrypted only when an adapter needs it
	credentials := map[string]string{"password": input.Password}
	encryptedCreds, err := s.encryptor.EncryptJSON(credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	// Set defaults
	maxRows := input.MaxRows
	if maxRows == 0 {
		maxRows = s.defaultMaxRows
	}
	timeout := input.TimeoutSeconds
	if timeout == 0 {
		timeout = s.defaultTimeout
	}
	sslMode := input.SSLMode
	if sslMode == "" && input.DatabaseType == domain.DatabaseTypePostgres {
		sslMode = "disable"
	}

	now := time.Now()
	conn := &domain.Connection{
		ID:                   uuid.New(),
		Name:                 input.Name,
		DatabaseType:         input.DatabaseType,
		Host:                 input.Host,
		Port:                 input.Port,
		Database:             input.Database,
		Username:             input.Username,
		CredentialsEncrypted: encryptedCreds,
		SSLMode:              sslMode,
		MaxRows:              maxRows,
		TimeoutSeconds:       timeout,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.connectionRepo.Create(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	info := conn.ToInfo()
	return &info, nil
}

// GetByID retrieves a connection by ID
func (s *ConnectionService) GetByID(ctx context.Context, connectionID uuid.UUID) (*domain.ConnectionInfo, error) {
	conn, err := s.connectionRepo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil {
		return nil, ErrConnectionNotFound
	}

	info := conn.ToInfo()
	return &info, nil
}

// GetFullConnection retrieves a connection with decrypted credentials
func (s *ConnectionService) GetFullConnection(ctx context.Context, connectionID uuid.UUID) (*domain.Connection, string, error) {
	conn, err := s.connectionRepo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil {
		return nil, "", ErrConnectionNotFound
	}

	// Decrypt credentials
	var credentials map[string]string
	if err := s.encryptor.DecryptJSON(conn.CredentialsEncrypted, &credentials); err != nil {
		return nil, "", fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	return conn, credentials["password"], nil
}

// List retrieves all configured connections
func (s *ConnectionService) List(ctx context.Context) ([]domain.ConnectionInfo, error) {
	connections, err := s.connectionRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	infos := make([]domain.ConnectionInfo, len(connections))
	for i, conn := range connections {
		infos[i] = conn.ToInfo()
	}

	return infos, nil
}

// Update updates a connection. The pooled adapter and the cached schema are
// dropped so the next turn reconnects against the new parameters.
func (s *ConnectionService) Update(ctx context.Context, connectionID uuid.UUID, input domain.ConnectionUpdate) (*domain.ConnectionInfo, error) {
	conn, err := s.connectionRepo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil {
		return nil, ErrConnectionNotFound
	}

	// Apply updates
	if input.Name != nil {
		conn.Name = *input.Name
	}
	if input.Host != nil {
		conn.Host = *input.Host
	}
	if input.Port != nil {
		conn.Port = *input.Port
	}
	if input.Database != nil {
		conn.Database = *input.Database
	}
	if input.Username != nil {
		conn.Username = *input.Username
	}
	if input.Password != nil {
		credentials := map[string]string{"password": *input.Password}
		encryptedCreds, err := s.encryptor.EncryptJSON(credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt credentials: %w", err)
		}
		conn.CredentialsEncrypted = encryptedCreds
	}
	if input.SSLMode != nil {
		conn.SSLMode = *input.SSLMode
	}
	if input.MaxRows != nil {
		conn.MaxRows = *input.MaxRows
	}
	if input.TimeoutSeconds != nil {
		conn.TimeoutSeconds = *input.TimeoutSeconds
	}

	if err := s.connectionRepo.Update(ctx, connectionID, conn); err != nil {
		return nil, fmt.Errorf("failed to update connection: %w", err)
	}

	s.evict(ctx, connectionID)

	info := conn.ToInfo()
	return &info, nil
}

// Delete deletes a connection and drops its pooled adapter and cached schema.
func (s *ConnectionService) Delete(ctx context.Context, connectionID uuid.UUID) error {
	conn, err := s.connectionRepo.GetByID(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil {
		return ErrConnectionNotFound
	}

	if err := s.connectionRepo.Delete(ctx, connectionID); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	s.evict(ctx, connectionID)
	return nil
}

// TestConnection probes a connection's credentials with a throwaway adapter.
// The shared pool is never touched, so a failing probe cannot evict a
// healthy pooled connection.
func (s *ConnectionService) TestConnection(ctx context.Context, connectionID uuid.UUID) error {
	conn, password, err := s.GetFullConnection(ctx, connectionID)
	if err != nil {
		return err
	}

	adapter, err := s.dsRouter.NewAdapter(conn.DatabaseType)
	if err != nil {
		return err
	}
	defer adapter.Close()

	if err := adapter.Connect(ctx, ConnectionConfigFor(conn, password)); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	return adapter.HealthCheck(ctx)
}

func (s *ConnectionService) evict(ctx context.Context, connectionID uuid.UUID) {
	if err := s.dsRouter.CloseConnection(connectionID); err != nil {
		log.Error().Err(err).Str("connection_id", connectionID.String()).Msg("failed to close pooled adapter")
	}
	if s.schemaCache != nil {
		if err := s.schemaCache.Invalidate(ctx, connectionID); err != nil {
			log.Error().Err(err).Str("connection_id", connectionID.String()).Msg("failed to invalidate schema cache")
		}
	}
}

// ConnectionConfigFor maps a stored connection and its decrypted password
// to adapter connection parameters.
func ConnectionConfigFor(conn *domain.Connection, password string) datasource.ConnectionConfig {
	return datasource.ConnectionConfig{
		Host:           conn.Host,
		Port:           conn.Port,
		Database:       conn.Database,
		Username:       conn.Username,
		Password:       password,
		SSLMode:        conn.SSLMode,
		MaxRows:        conn.MaxRows,
		TimeoutSeconds: conn.TimeoutSeconds,
	}
}
