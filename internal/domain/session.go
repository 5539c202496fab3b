package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChatSession is a conversation thread bound to one connection. The
// conversation context and the schema snapshot live with the session; two
// sessions never share either.
type ChatSession struct {
	ID           uuid.UUID `json:"id"`
	ConnectionID uuid.UUID `json:"connection_id"`
	Title        string    `json:"title"`
	LLMProvider  string    `json:"llm_provider,omitempty"`
	TurnCount    int       `json:"turn_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionCreate represents session creation data.
type SessionCreate struct {
	ConnectionID uuid.UUID `json:"connection_id" validate:"required"`
	Title        string    `json:"title" validate:"omitempty,max=255"`
	LLMProvider  string    `json:"llm_provider" validate:"omitempty,oneof=openai anthropic ollama gemini"`
}

// SessionRepository defines the interface for session storage.
type SessionRepository interface {
	Create(ctx context.Context, session *ChatSession) error
	Get(ctx context.Context, id uuid.UUID) (*ChatSession, error)
	List(ctx context.Context, limit, offset int) ([]ChatSession, error)
	ListByConnection(ctx context.Context, connectionID uuid.UUID, limit, offset int) ([]ChatSession, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
	// Touch bumps the turn counter and the freshness timestamp after a
	// recorded turn.
	Touch(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
