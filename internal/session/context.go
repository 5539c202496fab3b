package session

import (
	"sync"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// DefaultWindow is how many prior turns a conversation carries into
// generation. Three exchanges of question and answer cover the follow-up
// patterns that actually occur without letting the prompt grow unbounded.
const DefaultWindow = 6

// ConversationContext is the bounded window of recent turns for one chat
// session. Adding to a full window drops the oldest turn first.
type ConversationContext struct {
	mu     sync.Mutex
	window int
	turns  []domain.ConversationTurn
}

// NewConversationContext creates an empty context holding at most window
// turns. Non-positive windows fall back to DefaultWindow.
func NewConversationContext(window int) *ConversationContext {
	if window <= 0 {
		window = DefaultWindow
	}
	return &ConversationContext{
		window: window,
		turns:  make([]domain.ConversationTurn, 0, window),
	}
}

// Add appends a completed turn, evicting the oldest when the window is
// full. Failed turns go in too: a follow-up may reference a question even
// when no statement succeeded for it.
func (c *ConversationContext) Add(turn domain.ConversationTurn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.turns) == c.window {
		copy(c.turns, c.turns[1:])
		c.turns = c.turns[:len(c.turns)-1]
	}
	c.turns = append(c.turns, turn)
}

// Snapshot returns a copy of the window, oldest first. The copy is safe to
// hand to a prompt builder while new turns keep arriving.
func (c *ConversationContext) Snapshot() []domain.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.ConversationTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns currently held.
func (c *ConversationContext) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Window returns the configured capacity.
func (c *ConversationContext) Window() int {
	return c.window
}
