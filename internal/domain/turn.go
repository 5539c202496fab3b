package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConversationTurn is one completed exchange as the conversation context
// remembers it: the question, the statement that answered it (empty when the
// turn failed before a statement succeeded), and an abbreviated result
// summary. Full result sets are never retained in context.
type ConversationTurn struct {
	Question      string    `json:"question"`
	SQL           string    `json:"sql,omitempty"`
	ResultSummary string    `json:"result_summary,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Turn is the persisted record of a completed exchange in a session.
type Turn struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer,omitempty"`
	SQL           string    `json:"sql,omitempty"`
	ResultSummary string    `json:"result_summary,omitempty"`
	ChartKind     ChartKind `json:"chart_kind,omitempty"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail   string    `json:"error_detail,omitempty"`
	AttemptCount  int       `json:"attempt_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// ToConversationTurn converts the persisted record to its in-context form.
func (t *Turn) ToConversationTurn() ConversationTurn {
	return ConversationTurn{
		Question:      t.Question,
		SQL:           t.SQL,
		ResultSummary: t.ResultSummary,
		CreatedAt:     t.CreatedAt,
	}
}

// TurnRepository defines the interface for turn storage.
type TurnRepository interface {
	Create(ctx context.Context, turn *Turn) error
	// ListBySession returns the last limit turns in chronological order.
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]Turn, error)
	GetMostFrequentQuestions(ctx context.Context, connectionID uuid.UUID, limit int) ([]string, error)
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) error
}
