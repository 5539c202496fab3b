package datasource

import (
	"context"
	"time"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// ConnectionConfig contains data source connection parameters. For SQLite,
// Database holds the file path and the remaining fields stay empty.
type ConnectionConfig struct {
	Host           string
	Port           int
	Database       string
	Username       string
	Password       string
	SSLMode        string
	MaxRows        int
	TimeoutSeconds int
}

// QueryOptions contains query execution options.
type QueryOptions struct {
	MaxRows int
	Timeout time.Duration
}

// Adapter defines the interface for data source adapters. Implementations
// classify their engine's execution errors into the domain error kinds so
// the validation loop can decide between retry and termination.
type Adapter interface {
	// DatabaseType returns the database type identifier
	DatabaseType() domain.DatabaseType

	// SQLDialect returns SQL dialect hints for LLM prompting
	SQLDialect() string

	// Connect establishes connection to the data source
	Connect(ctx context.Context, config ConnectionConfig) error

	// Close closes the connection
	Close() error

	// HealthCheck verifies connection is alive
	HealthCheck(ctx context.Context) error

	// ListTables returns table names in stable order
	ListTables(ctx context.Context) ([]string, error)

	// DescribeTable returns one table's descriptor with columns in
	// declaration order
	DescribeTable(ctx context.Context, tableName string) (*domain.TableDescriptor, error)

	// Introspect builds the normalized schema snapshot used for prompting
	// and caching
	Introspect(ctx context.Context) (*domain.SchemaDescription, error)

	// ValidateQuery rejects statements the read-only guard does not allow
	ValidateQuery(sql string) error

	// ExecuteQuery executes a read-only query. Failures are returned as
	// *domain.QueryError with the engine's classification.
	ExecuteQuery(ctx context.Context, sql string, opts QueryOptions) (*domain.QueryResult, error)
}

// AdapterFactory creates a new adapter instance
type AdapterFactory func() Adapter

// IntrospectTables assembles the table descriptors for an adapter by
// listing and describing every table. Shared by the SQL engines; the
// document engine builds its descriptors from sampled documents instead.
func IntrospectTables(ctx context.Context, a Adapter) ([]domain.TableDescriptor, error) {
	names, err := a.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]domain.TableDescriptor, 0, len(names))
	for _, name := range names {
		desc, err := a.DescribeTable(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *desc)
	}
	return tables, nil
}
