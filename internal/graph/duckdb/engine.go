// Package duckdb executes SQL-dialect pipeline output against an embedded
// DuckDB database. Deployments whose data lives in a relational projection
// rather than a graph store plug this engine in as both executor and
// validator.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/askgraph/askgraph/internal/graph"
)

type Engine struct {
	db      *sql.DB
	maxRows int
}

// Open opens (or creates) a DuckDB database file and wraps it in an Engine.
// An empty path opens an in-memory database.
func Open(path string, maxRows int) (*Engine, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return NewEngine(db, maxRows), nil
}

// NewEngine wraps an existing database handle. Tests substitute a mock.
func NewEngine(db *sql.DB, maxRows int) *Engine {
	return &Engine{db: db, maxRows: maxRows}
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) Execute(ctx context.Context, query string) (graph.Result, error) {
	sqlText := stripTrailingSemicolons(query)
	if sqlText == "" {
		return graph.Result{}, fmt.Errorf("query is required")
	}
	if e.maxRows > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, e.maxRows)
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return graph.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return graph.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return graph.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return graph.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return graph.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

// DryRun plans the query with EXPLAIN without executing it. DuckDB rejects
// syntax and catalog errors at the planning stage, which is exactly the
// feedback the repair loop feeds back to the generator.
func (e *Engine) DryRun(ctx context.Context, query string) error {
	sqlText := stripTrailingSemicolons(query)
	if sqlText == "" {
		return fmt.Errorf("query is required")
	}
	rows, err := e.db.QueryContext(ctx, "EXPLAIN "+sqlText)
	if err != nil {
		return err
	}
	return rows.Close()
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func stripTrailingSemicolons(text string) string {
	trimmed := strings.TrimSpace(text)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

var (
	_ graph.Executor  = (*Engine)(nil)
	_ graph.Validator = (*Engine)(nil)
)
