package datasource

import (
	"context"
	"errors"
	"strings"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// Classify maps an engine execution error onto the domain taxonomy by
// message text. Engines with structured error codes (PostgreSQL SQLSTATE,
// MySQL error numbers) classify by code first and fall back here. The
// resulting Detail is what the retry loop feeds back to the synthesizer,
// so it keeps the engine's message verbatim.
func Classify(err error) *domain.QueryError {
	if err == nil {
		return nil
	}

	var qe *domain.QueryError
	if errors.As(err, &qe) {
		return qe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewQueryError(domain.ErrKindTimeout, "query exceeded its deadline", err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewQueryError(domain.ErrKindTimeout, "query canceled", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return domain.NewQueryError(domain.ErrKindTimeout, err.Error(), err)
	case containsAny(msg, "syntax error", "parse error", "incorrect syntax", "unrecognized token"):
		return domain.NewQueryError(domain.ErrKindSyntax, err.Error(), err)
	case containsAny(msg,
		"no such table", "no such column",
		"does not exist", "doesn't exist",
		"unknown table", "unknown column", "unknown identifier",
		"missing columns", "ambiguous column"):
		return domain.NewQueryError(domain.ErrKindSchemaMismatch, err.Error(), err)
	case containsAny(msg,
		"permission denied", "access denied", "not authorized",
		"readonly database", "read-only", "attempt to write"):
		return domain.NewQueryError(domain.ErrKindPermissionDenied, err.Error(), err)
	default:
		return domain.NewQueryError(domain.ErrKindOther, err.Error(), err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
