package duckdb

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestExecuteAppliesRowLimitAndScans(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	engine := NewEngine(db, 200)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM (SELECT known_name FROM scholar) AS q LIMIT 200`)).
		WillReturnRows(sqlmock.NewRows([]string{"known_name"}).
			AddRow([]byte("Marie Curie")).
			AddRow("Niels Bohr"))

	result, err := engine.Execute(context.Background(), "SELECT known_name FROM scholar;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(result.Rows))
	}
	if result.Rows[0][0] != "Marie Curie" {
		t.Fatalf("byte column not normalized to string: %#v", result.Rows[0][0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestExecuteWithoutLimitRunsQueryVerbatim(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	engine := NewEngine(db, 0)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM prize`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	result, err := engine.Execute(context.Background(), "SELECT count(*) FROM prize")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0][0] != int64(42) {
		t.Fatalf("Rows[0][0] = %#v", result.Rows[0][0])
	}
}

func TestExecuteRejectsEmptyQuery(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	engine := NewEngine(db, 0)

	if _, err := engine.Execute(context.Background(), "  ;; "); err == nil {
		t.Fatal("Execute() expected error for empty query")
	}
}

func TestDryRunUsesExplain(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	engine := NewEngine(db, 200)

	mock.ExpectQuery(regexp.QuoteMeta(`EXPLAIN SELECT known_name FROM scholar`)).
		WillReturnRows(sqlmock.NewRows([]string{"explain_key", "explain_value"}))

	if err := engine.DryRun(context.Background(), "SELECT known_name FROM scholar;"); err != nil {
		t.Fatalf("DryRun() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestDryRunSurfacesPlannerError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	engine := NewEngine(db, 0)

	plannerErr := errors.New(`Binder Error: Referenced table "scholars" not found`)
	mock.ExpectQuery(regexp.QuoteMeta(`EXPLAIN SELECT x FROM scholars`)).WillReturnError(plannerErr)

	err = engine.DryRun(context.Background(), "SELECT x FROM scholars")
	if !errors.Is(err, plannerErr) {
		t.Fatalf("DryRun() error = %v, want planner error", err)
	}
}
