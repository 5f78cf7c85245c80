package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/askgraph/askgraph/internal/exemplar"
)

// Repository loads the exemplar pool from Postgres. The pool is read once
// at startup; exemplar_id assignment order defines insertion order and
// therefore similarity tie-breaking.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping exemplar db: %w", err)
	}
	return nil
}

func (r *Repository) ListExemplars(ctx context.Context) ([]exemplar.Exemplar, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT question, query_text, COALESCE(tag, '')
FROM exemplar
ORDER BY exemplar_id`)
	if err != nil {
		return nil, fmt.Errorf("list exemplars: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pool []exemplar.Exemplar
	for rows.Next() {
		var ex exemplar.Exemplar
		if err := rows.Scan(&ex.Question, &ex.Query, &ex.Tag); err != nil {
			return nil, fmt.Errorf("scan exemplar: %w", err)
		}
		pool = append(pool, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exemplars: %w", err)
	}
	return pool, nil
}

func (r *Repository) InsertExemplar(ctx context.Context, ex exemplar.Exemplar) (int64, error) {
	if ex.Question == "" || ex.Query == "" {
		return 0, fmt.Errorf("insert exemplar: question and query are required")
	}

	query := `
INSERT INTO exemplar (question, query_text, tag)
VALUES ($1, $2, NULLIF($3, ''))
RETURNING exemplar_id`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, ex.Question, ex.Query, ex.Tag).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert exemplar: %w", err)
	}
	return id, nil
}

// SeedDefaults inserts the built-in pool when the table is empty. Used by
// dev deployments so a fresh database is immediately usable.
func (r *Repository) SeedDefaults(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM exemplar`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count exemplars: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	inserted := 0
	for _, ex := range exemplar.DefaultPool() {
		if _, err := r.InsertExemplar(ctx, ex); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
