package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/askgraph/askgraph/internal/exemplar"
	"github.com/askgraph/askgraph/internal/graph"
	"github.com/askgraph/askgraph/internal/querycache"
	"github.com/askgraph/askgraph/internal/schema"
	"github.com/askgraph/askgraph/internal/synth"
	"github.com/askgraph/askgraph/internal/synth/rewrite"
)

func TestAnswerMissThenHit(t *testing.T) {
	executor := &stubExecutor{result: graph.Result{
		Columns: []string{"s.knownName"},
		Rows:    [][]any{{"Marie Curie"}},
	}}
	synthesizer := &stubSynthesizer{result: synth.Result{
		Query:      "MATCH (s:Scholar) RETURN s.knownName",
		Candidates: []synth.Candidate{{Text: "MATCH (s:Scholar) RETURN s.knownName", Iteration: 1, Valid: true}},
	}}
	orchestrator := newTestOrchestrator(t, synthesizer, executor)
	full := testSchema()

	first, err := orchestrator.Answer(context.Background(), "Who won the Nobel Prize in Physics?", full)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if first.CacheStatus != CacheMiss {
		t.Fatalf("first CacheStatus = %q, want miss", first.CacheStatus)
	}
	if first.Query != "MATCH (s:Scholar) RETURN s.knownName" {
		t.Fatalf("Query = %q", first.Query)
	}
	if executor.calls != 1 {
		t.Fatalf("executor calls = %d, want 1", executor.calls)
	}

	second, err := orchestrator.Answer(context.Background(), "who won the nobel prize in physics", full)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if second.CacheStatus != CacheHit {
		t.Fatalf("second CacheStatus = %q, want hit", second.CacheStatus)
	}
	if !reflect.DeepEqual(second.Rows, first.Rows) {
		t.Fatalf("cached rows = %v, want %v", second.Rows, first.Rows)
	}
	if executor.calls != 1 {
		t.Fatalf("executor calls after hit = %d, want 1", executor.calls)
	}
	if synthesizer.calls != 1 {
		t.Fatalf("synthesizer calls after hit = %d, want 1", synthesizer.calls)
	}
}

func TestAnswerExecutionErrorNotCached(t *testing.T) {
	executor := &stubExecutor{err: errors.New("connection refused")}
	synthesizer := &stubSynthesizer{result: synth.Result{Query: "MATCH (s:Scholar) RETURN s.knownName"}}
	orchestrator := newTestOrchestrator(t, synthesizer, executor)
	full := testSchema()

	_, err := orchestrator.Answer(context.Background(), "who won physics", full)
	var execErr *graph.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %v, want *graph.ExecutionError", err)
	}
	if execErr.Query != "MATCH (s:Scholar) RETURN s.knownName" {
		t.Fatalf("failed query = %q", execErr.Query)
	}

	executor.err = nil
	executor.result = graph.Result{Columns: []string{"s.knownName"}}
	answer, err := orchestrator.Answer(context.Background(), "who won physics", full)
	if err != nil {
		t.Fatalf("Answer() after recovery error = %v", err)
	}
	if answer.CacheStatus != CacheMiss {
		t.Fatalf("CacheStatus = %q, want miss because the failure was not cached", answer.CacheStatus)
	}
	if executor.calls != 2 {
		t.Fatalf("executor calls = %d, want 2", executor.calls)
	}
}

func TestAnswerExhaustedProceedsBestEffort(t *testing.T) {
	lastCandidate := "MATCH (s:Scholar) RETURN s"
	synthesizer := &stubSynthesizer{
		result: synth.Result{
			Query: lastCandidate,
			Candidates: []synth.Candidate{
				{Text: "MATCH (x) RETURN x", Iteration: 1, ErrorDetail: "E1"},
				{Text: "MATCH (y) RETURN y", Iteration: 2, ErrorDetail: "E2"},
				{Text: lastCandidate, Iteration: 3, ErrorDetail: "E3"},
			},
			Exhausted: true,
		},
		err: &synth.RepairExhaustedError{},
	}
	executor := &stubExecutor{result: graph.Result{Columns: []string{"s"}}}
	orchestrator := newTestOrchestrator(t, synthesizer, executor)

	answer, err := orchestrator.Answer(context.Background(), "who won physics", testSchema())
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !answer.Exhausted {
		t.Fatal("expected Exhausted flag")
	}
	if answer.Query != "MATCH (s:Scholar) RETURN s.knownName" {
		t.Fatalf("Query = %q, want rewritten last candidate", answer.Query)
	}
	if executor.calls != 1 {
		t.Fatalf("executor calls = %d, want 1", executor.calls)
	}
}

func TestAnswerSynthesizerFailureSurfaces(t *testing.T) {
	synthesizer := &stubSynthesizer{err: errors.New("model unavailable")}
	orchestrator := newTestOrchestrator(t, synthesizer, &stubExecutor{})

	_, err := orchestrator.Answer(context.Background(), "who won physics", testSchema())
	if err == nil || !errors.Is(err, synthesizer.err) {
		t.Fatalf("error = %v, want wrapped synthesizer failure", err)
	}
}

func TestAnswerKeyFailureDegradesToMiss(t *testing.T) {
	executor := &stubExecutor{result: graph.Result{Columns: []string{"s.knownName"}}}
	synthesizer := &stubSynthesizer{result: synth.Result{Query: "MATCH (s:Scholar) RETURN s.knownName"}}
	orchestrator := newTestOrchestrator(t, synthesizer, executor)
	orchestrator.keyFn = func(string, querycache.CanonicalSerializer) (string, error) {
		return "", &querycache.KeyError{Err: errors.New("encode blew up")}
	}
	full := testSchema()

	for i := 0; i < 2; i++ {
		answer, err := orchestrator.Answer(context.Background(), "who won physics", full)
		if err != nil {
			t.Fatalf("Answer() error = %v", err)
		}
		if answer.CacheStatus != CacheMiss {
			t.Fatalf("CacheStatus = %q, want miss when keying fails", answer.CacheStatus)
		}
	}
	if synthesizer.calls != 2 {
		t.Fatalf("synthesizer calls = %d, want 2 because nothing was cached", synthesizer.calls)
	}
	if orchestrator.deps.Cache.Len() != 0 {
		t.Fatalf("cache size = %d, want 0", orchestrator.deps.Cache.Len())
	}
}

func TestAnswerReducerFailureFallsBackToFullSchema(t *testing.T) {
	executor := &stubExecutor{result: graph.Result{Columns: []string{"s.knownName"}}}
	synthesizer := &stubSynthesizer{result: synth.Result{Query: "MATCH (s:Scholar) RETURN s.knownName"}}
	orchestrator := newTestOrchestrator(t, synthesizer, executor)
	orchestrator.deps.Reducer = failingReducer{}

	if _, err := orchestrator.Answer(context.Background(), "who won physics", testSchema()); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if synthesizer.lastSchemaJSON == "" {
		t.Fatal("expected synthesizer to receive the full schema")
	}
}

func TestNewValidatesExemplarK(t *testing.T) {
	index, err := exemplar.NewIndex(exemplar.DefaultPool())
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	cache, _ := querycache.NewCache(4)
	deps := Dependencies{
		Exemplars:   index,
		ExemplarK:   index.PoolSize() + 1,
		Synthesizer: &stubSynthesizer{},
		Executor:    &stubExecutor{},
		Cache:       cache,
	}
	if _, err := New(deps); err == nil {
		t.Fatal("expected error for k beyond pool size")
	}
}

func newTestOrchestrator(t *testing.T, synthesizer Synthesizer, executor graph.Executor) *Orchestrator {
	t.Helper()
	index, err := exemplar.NewIndex(exemplar.DefaultPool())
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	cache, err := querycache.NewCache(16)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	orchestrator, err := New(Dependencies{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Exemplars:   index,
		ExemplarK:   3,
		Synthesizer: synthesizer,
		Rewriter:    rewrite.DefaultChain(),
		Executor:    executor,
		Cache:       cache,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return orchestrator
}

func testSchema() schema.Graph {
	return schema.Graph{
		Nodes: []schema.Node{
			{Label: "Scholar", Properties: []schema.Property{{Name: "knownName", Type: "STRING"}}},
			{Label: "Prize", Properties: []schema.Property{{Name: "category", Type: "STRING"}, {Name: "awardYear", Type: "INT64"}}},
		},
		Edges: []schema.Edge{{Label: "WON", From: "Scholar", To: "Prize"}},
	}
}

type stubSynthesizer struct {
	result         synth.Result
	err            error
	calls          int
	lastSchemaJSON string
}

func (s *stubSynthesizer) Run(_ context.Context, _, schemaJSON string, _ []exemplar.Exemplar) (synth.Result, error) {
	s.calls++
	s.lastSchemaJSON = schemaJSON
	return s.result, s.err
}

type stubExecutor struct {
	result graph.Result
	err    error
	calls  int
}

func (s *stubExecutor) Execute(_ context.Context, _ string) (graph.Result, error) {
	s.calls++
	if s.err != nil {
		return graph.Result{}, s.err
	}
	return s.result, nil
}

type failingReducer struct{}

func (failingReducer) Reduce(_ context.Context, _ string, _ schema.Graph) (schema.Graph, error) {
	return schema.Graph{}, errors.New("reducer offline")
}
