package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	query := `
		INSERT INTO chat_sessions (id, connection_id, title, llm_provider, turn_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.ConnectionID,
		session.Title,
		session.LLMProvider,
		session.TurnCount,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	query := `
		SELECT id, connection_id, title, llm_provider, turn_count, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1
	`
	var s domain.ChatSession
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.ConnectionID,
		&s.Title,
		&s.LLMProvider,
		&s.TurnCount,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) List(ctx context.Context, limit, offset int) ([]domain.ChatSession, error) {
	query := `
		SELECT id, connection_id, title, llm_provider, turn_count, created_at, updated_at
		FROM chat_sessions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.querySessions(ctx, query, limit, offset)
}

func (r *SessionRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit, offset int) ([]domain.ChatSession, error) {
	query := `
		SELECT id, connection_id, title, llm_provider, turn_count, created_at, updated_at
		FROM chat_sessions
		WHERE connection_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.querySessions(ctx, query, connectionID, limit, offset)
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...any) ([]domain.ChatSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ChatSession
	for rows.Next() {
		var s domain.ChatSession
		if err := rows.Scan(
			&s.ID,
			&s.ConnectionID,
			&s.Title,
			&s.LLMProvider,
			&s.TurnCount,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	query := `
		UPDATE chat_sessions
		SET title = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, title)
	if err != nil {
		return fmt.Errorf("failed to update session title: %w", err)
	}
	return nil
}

// Touch bumps turn_count and updated_at after a turn is recorded, keeping
// recently active sessions at the top of listings.
func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE chat_sessions
		SET turn_count = turn_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM chat_sessions WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
