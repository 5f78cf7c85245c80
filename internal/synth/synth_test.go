package synth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/askgraph/askgraph/internal/exemplar"
)

type stubGenerator struct {
	generated    string
	generateErr  error
	repairs      []string
	repairErr    error
	generateCall int
	repairCalls  []string
}

func (g *stubGenerator) Generate(_ context.Context, _, _ string, _ []exemplar.Exemplar) (string, error) {
	g.generateCall++
	return g.generated, g.generateErr
}

func (g *stubGenerator) Repair(_ context.Context, _, failed, detail, _ string) (string, error) {
	g.repairCalls = append(g.repairCalls, fmt.Sprintf("%s|%s", failed, detail))
	if g.repairErr != nil {
		return "", g.repairErr
	}
	next := g.repairs[0]
	g.repairs = g.repairs[1:]
	return next, nil
}

type stubValidator struct {
	failures []string // error detail per call, "" means pass
	calls    int
}

func (v *stubValidator) DryRun(_ context.Context, _ string) error {
	detail := ""
	if v.calls < len(v.failures) {
		detail = v.failures[v.calls]
	}
	v.calls++
	if detail == "" {
		return nil
	}
	return errors.New(detail)
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	generator := &stubGenerator{generated: "MATCH (s:Scholar) RETURN s.knownName"}
	validator := &stubValidator{}
	synthesizer := mustNew(t, generator, validator)

	result, err := synthesizer.Run(context.Background(), "who won?", "{}", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Exhausted {
		t.Fatal("Exhausted set on success")
	}
	if result.Iterations() != 1 {
		t.Fatalf("Iterations() = %d, want 1", result.Iterations())
	}
	if !result.Candidates[0].Valid {
		t.Fatal("candidate not flagged valid")
	}
}

func TestRunRepairsAfterOneFailure(t *testing.T) {
	generator := &stubGenerator{
		generated: "MATCH (s:Scholars) RETURN s",
		repairs:   []string{"MATCH (s:Scholar) RETURN s.knownName"},
	}
	validator := &stubValidator{failures: []string{"E1", ""}}
	synthesizer := mustNew(t, generator, validator)

	result, err := synthesizer.Run(context.Background(), "who won?", "{}", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Iterations() != 2 {
		t.Fatalf("Iterations() = %d, want 2", result.Iterations())
	}
	if result.Query != "MATCH (s:Scholar) RETURN s.knownName" {
		t.Fatalf("Query = %q", result.Query)
	}
	if result.Candidates[0].Valid || result.Candidates[0].ErrorDetail != "E1" {
		t.Fatalf("candidate 0 = %+v", result.Candidates[0])
	}
	if got := generator.repairCalls[0]; got != "MATCH (s:Scholars) RETURN s|E1" {
		t.Fatalf("repair received %q", got)
	}
	if result.Candidates[1].Iteration != 1 {
		t.Fatalf("candidate 1 iteration = %d", result.Candidates[1].Iteration)
	}
}

func TestRunExhaustsBudget(t *testing.T) {
	generator := &stubGenerator{
		generated: "bad0",
		repairs:   []string{"bad1", "bad2"},
	}
	validator := &stubValidator{failures: []string{"E1", "E2", "E3"}}
	synthesizer := mustNew(t, generator, validator)

	result, err := synthesizer.Run(context.Background(), "who won?", "{}", nil)
	var exhausted *RepairExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Run() error = %v, want RepairExhaustedError", err)
	}
	if !result.Exhausted {
		t.Fatal("Result.Exhausted not set")
	}
	if result.Iterations() != 3 {
		t.Fatalf("Iterations() = %d, want 3", result.Iterations())
	}
	if result.Query != "bad2" {
		t.Fatalf("Query = %q, want last candidate", result.Query)
	}
	if len(exhausted.Candidates) != 3 {
		t.Fatalf("history length = %d, want 3", len(exhausted.Candidates))
	}
	for i, candidate := range exhausted.Candidates {
		if candidate.Valid {
			t.Fatalf("candidate %d flagged valid", i)
		}
		if candidate.Iteration != i {
			t.Fatalf("candidate %d iteration = %d", i, candidate.Iteration)
		}
	}
}

func TestRunBoundedForAnyValidator(t *testing.T) {
	// Validator that always fails: the loop must stop at MaxIterations.
	generator := &stubGenerator{
		generated: "q0",
		repairs:   []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7"},
	}
	validator := &stubValidator{failures: []string{"e", "e", "e", "e", "e", "e", "e", "e"}}
	synthesizer, err := New(generator, validator, Config{MaxIterations: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, runErr := synthesizer.Run(context.Background(), "q", "{}", nil)
	if runErr == nil {
		t.Fatal("Run() expected exhaustion error")
	}
	if validator.calls != 5 {
		t.Fatalf("validator calls = %d, want 5", validator.calls)
	}
	if result.Iterations() != 5 {
		t.Fatalf("Iterations() = %d, want 5", result.Iterations())
	}
}

func TestRunGeneratorFailureIsTerminal(t *testing.T) {
	generator := &stubGenerator{generateErr: errors.New("inference timeout")}
	validator := &stubValidator{}
	synthesizer := mustNew(t, generator, validator)

	_, err := synthesizer.Run(context.Background(), "q", "{}", nil)
	if err == nil {
		t.Fatal("Run() expected error")
	}
	var exhausted *RepairExhaustedError
	if errors.As(err, &exhausted) {
		t.Fatal("generator failure misclassified as exhaustion")
	}
	if validator.calls != 0 {
		t.Fatalf("validator called %d times for failed generation", validator.calls)
	}
}

func TestRunEmptyGenerationCountsAsInvalid(t *testing.T) {
	generator := &stubGenerator{
		generated: "   ",
		repairs:   []string{"MATCH (n) RETURN n.name"},
	}
	validator := &stubValidator{failures: []string{"", ""}}
	synthesizer := mustNew(t, generator, validator)

	result, err := synthesizer.Run(context.Background(), "q", "{}", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Iterations() != 2 {
		t.Fatalf("Iterations() = %d, want 2", result.Iterations())
	}
	if result.Query != "MATCH (n) RETURN n.name" {
		t.Fatalf("Query = %q", result.Query)
	}
}

func mustNew(t *testing.T, generator Generator, validator *stubValidator) *Synthesizer {
	t.Helper()
	synthesizer, err := New(generator, validator, Config{MaxIterations: 3})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return synthesizer
}
