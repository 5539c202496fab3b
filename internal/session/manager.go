package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

const (
	// DefaultMaxLive bounds how many conversation windows stay resident.
	DefaultMaxLive = 1024
	// DefaultIdleTTL is how long an untouched window survives before the
	// next question rebuilds it from persisted turns.
	DefaultIdleTTL = 30 * time.Minute
)

// Manager tracks the live conversation window per chat session. Windows
// live in a size-bounded, idle-expiring cache; a session that was evicted
// or restarted is rebuilt from its persisted turns, so eviction never
// loses conversation state, only warm memory.
type Manager struct {
	window int
	turns  domain.TurnRepository
	cache  *expirable.LRU[string, *ConversationContext]
}

// NewManager creates a Manager. Zero values pick the package defaults.
func NewManager(turns domain.TurnRepository, window, maxLive int, idleTTL time.Duration) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxLive <= 0 {
		maxLive = DefaultMaxLive
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Manager{
		window: window,
		turns:  turns,
		cache:  expirable.NewLRU[string, *ConversationContext](maxLive, nil, idleTTL),
	}
}

// Context returns the live window for a session, rebuilding it from the
// most recent persisted turns on a cold start.
func (m *Manager) Context(ctx context.Context, sessionID uuid.UUID) (*ConversationContext, error) {
	key := sessionID.String()
	if cc, ok := m.cache.Get(key); ok {
		return cc, nil
	}

	cc := NewConversationContext(m.window)
	if m.turns != nil {
		turns, err := m.turns.ListBySession(ctx, sessionID, m.window)
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild session context: %w", err)
		}
		for i := range turns {
			cc.Add(turns[i].ToConversationTurn())
		}
	}

	m.cache.Add(key, cc)
	return cc, nil
}

// Record appends a completed turn to the session's live window. Missing
// windows are created rather than rebuilt: the caller just finished the
// turn, so the persisted history is behind the in-memory one anyway.
func (m *Manager) Record(sessionID uuid.UUID, turn domain.ConversationTurn) {
	key := sessionID.String()
	cc, ok := m.cache.Get(key)
	if !ok {
		cc = NewConversationContext(m.window)
		m.cache.Add(key, cc)
	}
	cc.Add(turn)
}

// Forget drops the live window, used when a session is deleted.
func (m *Manager) Forget(sessionID uuid.UUID) {
	m.cache.Remove(sessionID.String())
}

// LiveCount reports how many windows are currently resident.
func (m *Manager) LiveCount() int {
	return m.cache.Len()
}
