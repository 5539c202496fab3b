package llm

import "context"

// Turn is one prior exchange included in the prompt so follow-up questions
// ("of those, which...") can be resolved against earlier answers.
type Turn struct {
	Question      string
	SQL           string
	ResultSummary string
}

// Feedback carries a failed attempt back into generation. The model is
// asked to correct the statement it produced, not to start over.
type Feedback struct {
	FailedSQL   string
	ErrorDetail string
}

// Request contains statement generation parameters
type Request struct {
	Question     string
	SchemaDDL    string
	SQLDialect   string
	DatabaseType string
	History      []Turn
	Feedback     *Feedback
}

// Response contains LLM generation result
type Response struct {
	SQL         string
	Explanation string
	Model       string
	TokensUsed  int
	LatencyMs   int64
}

// Provider defines the interface for LLM providers. Providers only produce
// text; statements they generate are executed elsewhere, never here.
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// GenerateSQL generates a candidate statement from natural language
	GenerateSQL(ctx context.Context, req Request, model string) (*Response, error)

	// Complete runs a plain completion; used for titles and answer
	// summaries
	Complete(ctx context.Context, system, prompt, model string) (string, error)
}
