package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure. The kind decides whether the
// executor retries with corrective feedback or terminates the turn.
type ErrorKind string

const (
	// ErrKindIntrospection marks a schema introspection failure. Fatal for
	// the session setup, never retried.
	ErrKindIntrospection ErrorKind = "introspection_error"
	// ErrKindSynthesis marks a failure to obtain a candidate statement from
	// the language model. Fatal for the turn, never retried.
	ErrKindSynthesis ErrorKind = "synthesis_error"
	// ErrKindSyntax marks a statement the engine could not parse. Retryable.
	ErrKindSyntax ErrorKind = "syntax_error"
	// ErrKindSchemaMismatch marks references to tables or columns that do
	// not exist. Retryable.
	ErrKindSchemaMismatch ErrorKind = "schema_mismatch"
	// ErrKindPermissionDenied marks statements rejected by the engine's
	// privileges or by the read-only statement guard. Terminal.
	ErrKindPermissionDenied ErrorKind = "permission_denied"
	// ErrKindTimeout marks an execution that exceeded its deadline. Terminal.
	ErrKindTimeout ErrorKind = "timeout"
	// ErrKindNonConvergence marks a retry that reproduced an already-failed
	// statement byte for byte. Terminal.
	ErrKindNonConvergence ErrorKind = "non_convergence"
	// ErrKindOther covers everything else. Terminal.
	ErrKindOther ErrorKind = "other"
)

// Retryable reports whether a failure of this kind may consume a retry.
// Only parse errors and schema mismatches are worth feeding back to the
// synthesizer; the remaining kinds cannot be fixed by rewording a statement.
func (k ErrorKind) Retryable() bool {
	return k == ErrKindSyntax || k == ErrKindSchemaMismatch
}

// QueryError is the structured failure surfaced by the pipeline. Detail is
// safe to show to users and to feed back into synthesis; the wrapped error
// keeps the driver-level cause for logs.
type QueryError struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
	SQL    string    `json:"sql,omitempty"`
	Err    error     `json:"-"`
}

func (e *QueryError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Retryable reports whether this failure may consume a retry.
func (e *QueryError) Retryable() bool {
	return e.Kind.Retryable()
}

// NewQueryError builds a QueryError wrapping cause. Detail should describe
// the failure without leaking credentials or driver internals.
func NewQueryError(kind ErrorKind, detail string, cause error) *QueryError {
	return &QueryError{Kind: kind, Detail: detail, Err: cause}
}

// KindOf extracts the error kind from err, or ErrKindOther when err carries
// no classification.
func KindOf(err error) ErrorKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ErrKindOther
}
