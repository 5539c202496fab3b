package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm"
)

func runExecutor(t *testing.T, provider *scriptedProvider, adapter *stubAdapter, maxRetries int) *ExecutionOutcome {
	t.Helper()
	executor := NewExecutor(maxRetries)
	return executor.Run(context.Background(), ExecutionInput{
		Provider: provider,
		Model:    "scripted-default",
		Request: llm.Request{
			Question:     "top products",
			SchemaDDL:    "CREATE TABLE products (id integer, name text, price numeric)",
			SQLDialect:   "Use standard SQL.",
			DatabaseType: "postgres",
		},
		Adapter: adapter,
	})
}

func TestExecutor_FirstAttemptSucceeds(t *testing.T) {
	const sql = "SELECT name, price FROM products ORDER BY price DESC LIMIT 5"

	provider := &scriptedProvider{sqls: []string{sql}}
	adapter := &stubAdapter{
		results: map[string]*domain.QueryResult{
			sql: {Columns: []string{"name", "price"}, Rows: [][]any{{"Laptop", 999.0}}, RowCount: 1},
		},
	}

	outcome := runExecutor(t, provider, adapter, 2)

	require.True(t, outcome.Succeeded())
	assert.Equal(t, sql, outcome.SQL)
	assert.Equal(t, 1, outcome.Result.RowCount)
	require.Len(t, outcome.Attempts, 1)
	assert.Equal(t, domain.AttemptSucceeded, outcome.Attempts[0].State)
	assert.Equal(t, 0, outcome.RetriesUsed())
	assert.Equal(t, []string{sql}, adapter.execCalls)
}

func TestExecutor_SchemaMismatchRetriesWithFeedback(t *testing.T) {
	const badSQL = "SELECT name, cost FROM products LIMIT 5"
	const goodSQL = "SELECT name, price FROM products LIMIT 5"

	provider := &scriptedProvider{sqls: []string{badSQL, goodSQL}}
	adapter := &stubAdapter{
		execErrs: map[string]error{
			badSQL: errors.New(`column "cost" does not exist`),
		},
		results: map[string]*domain.QueryResult{
			goodSQL: {Columns: []string{"name", "price"}, Rows: [][]any{{"Laptop", 999.0}}, RowCount: 1},
		},
	}

	outcome := runExecutor(t, provider, adapter, 2)

	require.True(t, outcome.Succeeded())
	assert.Equal(t, goodSQL, outcome.SQL)
	require.Len(t, outcome.Attempts, 2)
	assert.Equal(t, domain.AttemptFailed, outcome.Attempts[0].State)
	assert.Equal(t, domain.ErrKindSchemaMismatch, outcome.Attempts[0].ErrorKind)
	assert.Equal(t, domain.AttemptSucceeded, outcome.Attempts[1].State)
	assert.Equal(t, 1, outcome.RetriesUsed())

	// The second synthesis request must carry the failure back to the model
	require.Len(t, provider.requests, 2)
	assert.Nil(t, provider.requests[0].Feedback)
	require.NotNil(t, provider.requests[1].Feedback)
	assert.Equal(t, badSQL, provider.requests[1].Feedback.FailedSQL)
	assert.Contains(t, provider.requests[1].Feedback.ErrorDetail, "does not exist")
}

func TestExecutor_DestructiveStatementNeverExecutes(t *testing.T) {
	provider := &scriptedProvider{sqls: []string{"DROP TABLE products"}}
	adapter := &stubAdapter{}

	outcome := runExecutor(t, provider, adapter, 2)

	require.False(t, outcome.Succeeded())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, domain.ErrKindPermissionDenied, outcome.Failure.Kind)
	assert.Empty(t, adapter.execCalls, "guard rejections must not reach the data source")
	require.Len(t, outcome.Attempts, 1)
	assert.Equal(t, domain.AttemptFailed, outcome.Attempts[0].State)
}

func TestExecutor_RepeatedStatementIsNonConvergence(t *testing.T) {
	const badSQL = "SELECT nme FROM products LIMIT 5"

	provider := &scriptedProvider{sqls: []string{badSQL, badSQL}}
	adapter := &stubAdapter{
		execErrs: map[string]error{
			badSQL: errors.New("syntax error at or near \"nme\""),
		},
	}

	outcome := runExecutor(t, provider, adapter, 2)

	require.False(t, outcome.Succeeded())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, domain.ErrKindNonConvergence, outcome.Failure.Kind)
	require.Len(t, outcome.Attempts, 2)
	assert.Equal(t, domain.ErrKindSyntax, outcome.Attempts[0].ErrorKind)
	assert.Equal(t, domain.ErrKindNonConvergence, outcome.Attempts[1].ErrorKind)
	// The repeated statement is caught before execution
	assert.Equal(t, []string{badSQL}, adapter.execCalls)
}

func TestExecutor_RetryBudgetExhausted(t *testing.T) {
	sqls := []string{
		"SELECT a FROM products LIMIT 5",
		"SELECT b FROM products LIMIT 5",
		"SELECT c FROM products LIMIT 5",
	}

	execErrs := make(map[string]error, len(sqls))
	for _, sql := range sqls {
		execErrs[sql] = fmt.Errorf("syntax error near %q", sql)
	}

	provider := &scriptedProvider{sqls: sqls}
	adapter := &stubAdapter{execErrs: execErrs}

	outcome := runExecutor(t, provider, adapter, 2)

	require.False(t, outcome.Succeeded())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, domain.ErrKindSyntax, outcome.Failure.Kind)
	assert.Len(t, outcome.Attempts, 3, "one initial attempt plus two retries")
	assert.Equal(t, 2, outcome.RetriesUsed())
	assert.Len(t, adapter.execCalls, 3)
}

func TestExecutor_SynthesisFailureIsTerminal(t *testing.T) {
	provider := &scriptedProvider{genErr: errors.New("upstream rate limited")}
	adapter := &stubAdapter{}

	outcome := runExecutor(t, provider, adapter, 2)

	require.False(t, outcome.Succeeded())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, domain.ErrKindSynthesis, outcome.Failure.Kind)
	assert.Empty(t, outcome.Attempts)
	assert.Equal(t, 1, provider.genCalls, "synthesis errors must not be retried")
}

func TestExecutor_TimeoutIsTerminal(t *testing.T) {
	const sql = "SELECT name FROM products LIMIT 5"

	provider := &scriptedProvider{sqls: []string{sql}}
	adapter := &stubAdapter{
		execErrs: map[string]error{
			sql: fmt.Errorf("execute: %w", context.DeadlineExceeded),
		},
	}

	outcome := runExecutor(t, provider, adapter, 2)

	require.False(t, outcome.Succeeded())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, domain.ErrKindTimeout, outcome.Failure.Kind)
	assert.Len(t, outcome.Attempts, 1, "a timeout must not consume retries")
}

func TestExecutor_CanceledContextStopsBeforeSynthesis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptedProvider{sqls: []string{"SELECT 1"}}
	executor := NewExecutor(2)

	outcome := executor.Run(ctx, ExecutionInput{
		Provider: provider,
		Model:    "scripted-default",
		Request:  llm.Request{Question: "anything"},
		Adapter:  &stubAdapter{},
	})

	require.False(t, outcome.Succeeded())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, domain.ErrKindTimeout, outcome.Failure.Kind)
	assert.Zero(t, provider.genCalls)
}

func TestExecutor_ZeroRetriesMeansSingleAttempt(t *testing.T) {
	const sql = "SELECT nme FROM products LIMIT 5"

	provider := &scriptedProvider{sqls: []string{sql, "SELECT name FROM products LIMIT 5"}}
	adapter := &stubAdapter{
		execErrs: map[string]error{sql: errors.New("syntax error at or near \"nme\"")},
	}

	outcome := runExecutor(t, provider, adapter, 0)

	require.False(t, outcome.Succeeded())
	assert.Equal(t, domain.ErrKindSyntax, outcome.Failure.Kind)
	assert.Len(t, outcome.Attempts, 1)
	assert.Equal(t, 1, provider.genCalls)
}
