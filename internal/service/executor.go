package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm"
)

// DefaultMaxRetries is how many additional attempts follow a first failed
// one. Two retries means at most three statements per question.
const DefaultMaxRetries = 2

// Executor drives one question through the synthesize-validate-execute
// loop. Syntax and schema errors are fed back to the synthesizer and
// consume a retry; permission, timeout and unclassified errors terminate
// the loop immediately. A retry that reproduces an earlier failed
// statement byte for byte terminates as non-convergence instead of
// burning the remaining budget on a fixed point.
type Executor struct {
	maxRetries int
}

// NewExecutor creates an executor. A negative maxRetries falls back to the
// default; zero disables retries entirely.
func NewExecutor(maxRetries int) *Executor {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Executor{maxRetries: maxRetries}
}

// ExecutionInput carries everything one loop run needs. Provider and
// Adapter are interfaces so tests can drive the loop with deterministic
// stubs.
type ExecutionInput struct {
	Provider llm.Provider
	Model    string
	Request  llm.Request
	Adapter  datasource.Adapter
	Options  datasource.QueryOptions
}

// ExecutionOutcome is the terminal state of the loop: either Result is set
// and Failure is nil, or the reverse. Attempts always records the full
// trail.
type ExecutionOutcome struct {
	SQL          string
	Result       *domain.QueryResult
	Attempts     []domain.QueryAttempt
	TokensUsed   int
	LLMLatencyMs int64
	Failure      *domain.QueryError
}

// RetriesUsed reports how many feedback-driven re-synthesis rounds ran.
func (o *ExecutionOutcome) RetriesUsed() int {
	if len(o.Attempts) == 0 {
		return 0
	}
	return len(o.Attempts) - 1
}

// Succeeded reports whether the loop produced a result.
func (o *ExecutionOutcome) Succeeded() bool {
	return o.Failure == nil && o.Result != nil
}

// Run executes the loop until success, a terminal failure, or retry
// exhaustion.
func (e *Executor) Run(ctx context.Context, in ExecutionInput) *ExecutionOutcome {
	outcome := &ExecutionOutcome{}
	attemptLimit := e.maxRetries + 1

	var feedback *llm.Feedback
	var failedSQL []string

	for attempt := 1; attempt <= attemptLimit; attempt++ {
		if err := ctx.Err(); err != nil {
			outcome.Failure = datasource.Classify(err)
			return outcome
		}

		req := in.Request
		req.Feedback = feedback

		llmResp, err := in.Provider.GenerateSQL(ctx, req, in.Model)
		if err != nil {
			outcome.Failure = domain.NewQueryError(domain.ErrKindSynthesis, "statement generation failed", err)
			return outcome
		}
		outcome.TokensUsed += llmResp.TokensUsed
		outcome.LLMLatencyMs += llmResp.LatencyMs

		sql := llmResp.SQL
		record := domain.QueryAttempt{Number: attempt, SQL: sql, State: domain.AttemptProposed}

		// A synthesizer stuck in a fixed point will not unstick itself;
		// stop instead of burning the remaining budget.
		if containsSQL(failedSQL, sql) {
			failure := domain.NewQueryError(domain.ErrKindNonConvergence,
				"synthesizer repeated a statement that already failed", nil)
			failure.SQL = sql
			record.State = domain.AttemptFailed
			record.ErrorKind = failure.Kind
			record.ErrorDetail = failure.Detail
			outcome.Attempts = append(outcome.Attempts, record)
			outcome.Failure = failure
			return outcome
		}

		// Static validation: destructive statements never reach the data
		// source. Guard rejections are permission-class and terminal;
		// malformed command documents are syntax-class and retryable.
		if err := in.Adapter.ValidateQuery(sql); err != nil {
			qerr := datasource.Classify(err)
			qerr.SQL = sql
			record.State = domain.AttemptFailed
			record.ErrorKind = qerr.Kind
			record.ErrorDetail = qerr.Detail
			outcome.Attempts = append(outcome.Attempts, record)

			if qerr.Retryable() && attempt < attemptLimit {
				feedback = &llm.Feedback{FailedSQL: sql, ErrorDetail: qerr.Detail}
				failedSQL = append(failedSQL, sql)
				continue
			}
			outcome.Failure = qerr
			return outcome
		}

		record.State = domain.AttemptExecuting
		start := time.Now()
		result, err := in.Adapter.ExecuteQuery(ctx, sql, in.Options)
		record.DurationMs = time.Since(start).Milliseconds()

		if err != nil {
			qerr := datasource.Classify(err)
			qerr.SQL = sql
			record.State = domain.AttemptFailed
			record.ErrorKind = qerr.Kind
			record.ErrorDetail = qerr.Detail
			outcome.Attempts = append(outcome.Attempts, record)

			log.Debug().
				Int("attempt", attempt).
				Str("error_kind", string(qerr.Kind)).
				Str("detail", qerr.Detail).
				Msg("statement attempt failed")

			if qerr.Retryable() && attempt < attemptLimit {
				feedback = &llm.Feedback{FailedSQL: sql, ErrorDetail: qerr.Detail}
				failedSQL = append(failedSQL, sql)
				continue
			}
			outcome.Failure = qerr
			return outcome
		}

		record.State = domain.AttemptSucceeded
		outcome.Attempts = append(outcome.Attempts, record)
		outcome.SQL = sql
		outcome.Result = result
		return outcome
	}

	return outcome
}

func containsSQL(list []string, sql string) bool {
	for _, s := range list {
		if s == sql {
			return true
		}
	}
	return false
}
