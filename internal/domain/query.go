package domain

import (
	"github.com/google/uuid"
)

// AskRequest is a conversational question against a session's connection.
type AskRequest struct {
	Question    string `json:"question" validate:"required,max=2000"`
	LLMProvider string `json:"llm_provider" validate:"omitempty,oneof=openai anthropic ollama gemini"`
	LLMModel    string `json:"llm_model,omitempty"`
}

// GenerateRequest asks for a statement without executing it. Stateless:
// no conversation context, no retry loop.
type GenerateRequest struct {
	Question    string `json:"question" validate:"required,max=2000"`
	LLMProvider string `json:"llm_provider" validate:"omitempty,oneof=openai anthropic ollama gemini"`
	LLMModel    string `json:"llm_model,omitempty"`
}

// QueryResult contains query execution data. Column order follows the
// statement's projection and is stable across rows.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
}

// AttemptState tracks one candidate statement through the validation loop.
type AttemptState string

const (
	AttemptProposed  AttemptState = "proposed"
	AttemptExecuting AttemptState = "executing"
	AttemptSucceeded AttemptState = "succeeded"
	AttemptFailed    AttemptState = "failed"
)

// QueryAttempt records one statement's trip through the validator. Attempts
// are scoped to a single turn and surfaced read-only for transparency.
type QueryAttempt struct {
	Number      int          `json:"number"`
	SQL         string       `json:"sql"`
	State       AttemptState `json:"state"`
	ErrorKind   ErrorKind    `json:"error_kind,omitempty"`
	ErrorDetail string       `json:"error_detail,omitempty"`
	DurationMs  int64        `json:"duration_ms"`
}

// QueryResponse is the outcome of one conversational turn.
type QueryResponse struct {
	TurnID    uuid.UUID      `json:"turn_id"`
	SessionID uuid.UUID      `json:"session_id"`
	Question  string         `json:"question"`
	Answer    string         `json:"answer,omitempty"`
	SQL       string         `json:"sql,omitempty"`
	Result    *QueryResult   `json:"result,omitempty"`
	Chart     *ChartSpec     `json:"chart,omitempty"`
	Attempts  []QueryAttempt `json:"attempts,omitempty"`
	Error     *QueryError    `json:"error,omitempty"`
	Metadata  *QueryMetadata `json:"metadata"`
}

// GenerateResponse is the outcome of a one-shot generation.
type GenerateResponse struct {
	Question string         `json:"question"`
	SQL      string         `json:"sql"`
	Metadata *QueryMetadata `json:"metadata"`
}

// QueryMetadata contains turn execution metadata.
type QueryMetadata struct {
	ConnectionID    uuid.UUID    `json:"connection_id"`
	DatabaseType    DatabaseType `json:"database_type"`
	LLMProvider     string       `json:"llm_provider"`
	LLMModel        string       `json:"llm_model"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
	LLMLatencyMs    int64        `json:"llm_latency_ms"`
	TokensUsed      int          `json:"tokens_used"`
	AttemptCount    int          `json:"attempt_count"`
	RetriesUsed     int          `json:"retries_used"`
}
