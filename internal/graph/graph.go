package graph

import (
	"context"
	"fmt"
	"time"
)

// Result holds the raw rows returned by executing a structured query.
type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Executor runs a validated (or best-effort) query against the store.
// Execution failures are terminal for the request: the synthesis loop never
// retries them and the cache never stores them.
type Executor interface {
	Execute(ctx context.Context, query string) (Result, error)
}

// Validator checks a candidate query for syntax and schema compatibility
// without touching live data, typically via an EXPLAIN round trip. A nil
// return means the candidate passed the dry run.
type Validator interface {
	DryRun(ctx context.Context, query string) error
}

// ExecutionError wraps a failure from the executor on an already-validated
// query, keeping it distinguishable from validation failures.
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute query %q: %v", e.Query, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
