package postgres

import (
	"context"
	"fmt"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TurnRepository implements domain.TurnRepository
type TurnRepository struct {
	pool *pgxpool.Pool
}

// NewTurnRepository creates a new turn repository
func NewTurnRepository(pool *pgxpool.Pool) *TurnRepository {
	return &TurnRepository{pool: pool}
}

// Create inserts a completed turn. Failed turns are stored too, with
// error_kind set and sql left empty.
func (r *TurnRepository) Create(ctx context.Context, turn *domain.Turn) error {
	query := `
		INSERT INTO chat_turns (id, session_id, question, answer, sql, result_summary, chart_kind, error_kind, error_detail, attempt_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		turn.ID,
		turn.SessionID,
		turn.Question,
		turn.Answer,
		turn.SQL,
		turn.ResultSummary,
		turn.ChartKind,
		turn.ErrorKind,
		turn.ErrorDetail,
		turn.AttemptCount,
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create turn: %w", err)
	}
	return nil
}

// ListBySession retrieves the last limit turns in chronological order.
func (r *TurnRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Turn, error) {
	query := `
		SELECT id, session_id, question, answer, sql, result_summary, chart_kind, error_kind, error_detail, attempt_count, created_at
		FROM chat_turns
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var chartKind, errorKind string
		if err := rows.Scan(
			&t.ID,
			&t.SessionID,
			&t.Question,
			&t.Answer,
			&t.SQL,
			&t.ResultSummary,
			&chartKind,
			&errorKind,
			&t.ErrorDetail,
			&t.AttemptCount,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.ChartKind = domain.ChartKind(chartKind)
		t.ErrorKind = domain.ErrorKind(errorKind)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}

	// Reverse to return chronological order (oldest first)
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// GetMostFrequentQuestions retrieves the questions asked most often against a
// connection, across all of its sessions. Failed turns are excluded so the
// suggestions are questions the pipeline is known to answer.
func (r *TurnRepository) GetMostFrequentQuestions(ctx context.Context, connectionID uuid.UUID, limit int) ([]string, error) {
	query := `
		SELECT t.question
		FROM chat_turns t
		JOIN chat_sessions s ON s.id = t.session_id
		WHERE s.connection_id = $1 AND t.error_kind = ''
		GROUP BY t.question
		ORDER BY COUNT(*) DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, connectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query frequent questions: %w", err)
	}
	defer rows.Close()

	var questions []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}

	return questions, rows.Err()
}

// DeleteBySession removes all turns for a session.
func (r *TurnRepository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	query := `DELETE FROM chat_turns WHERE session_id = $1`
	_, err := r.pool.Exec(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	return nil
}
