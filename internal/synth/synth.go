// Package synth runs the generate → validate → repair loop that turns a
// question plus a reduced schema into a structured query. The loop is an
// explicit state machine with a bounded iteration counter, so termination
// does not depend on a loop-exit convention.
package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/askgraph/askgraph/internal/exemplar"
	"github.com/askgraph/askgraph/internal/graph"
)

// Generator produces candidate queries from an inference backend.
type Generator interface {
	// Generate produces the initial candidate from the question, the
	// reduced schema and the selected exemplars.
	Generate(ctx context.Context, question, schemaJSON string, exemplars []exemplar.Exemplar) (string, error)
	// Repair produces the next candidate from the failed one and the
	// validator's error detail.
	Repair(ctx context.Context, question, failedQuery, errorDetail, schemaJSON string) (string, error)
}

// Candidate is one attempt within the repair loop. Candidates are created
// once per iteration and never mutated.
type Candidate struct {
	Text        string
	Iteration   int
	Valid       bool
	ErrorDetail string
}

// Result is the outcome of a synthesis run. When Exhausted is set, Query
// holds the last, unvalidated candidate: the caller decides whether to
// proceed with it.
type Result struct {
	Query      string
	Candidates []Candidate
	Exhausted  bool
}

// Iterations returns how many generate/repair calls the run consumed.
func (r Result) Iterations() int {
	return len(r.Candidates)
}

// RepairExhaustedError reports that the iteration budget ran out without a
// validator-approved candidate. It carries the full candidate history for
// diagnosis.
type RepairExhaustedError struct {
	Candidates []Candidate
}

func (e *RepairExhaustedError) Error() string {
	last := e.Candidates[len(e.Candidates)-1]
	return fmt.Sprintf("repair budget exhausted after %d attempts: %s", len(e.Candidates), last.ErrorDetail)
}

type state int

const (
	stateStart state = iota
	stateGenerated
	stateInvalid
	stateRepaired
	stateDone
	stateExhausted
)

type Config struct {
	// MaxIterations bounds the total number of generate/repair calls.
	MaxIterations int
}

const defaultMaxIterations = 3

type Synthesizer struct {
	generator     Generator
	validator     graph.Validator
	maxIterations int
}

func New(generator Generator, validator graph.Validator, cfg Config) (*Synthesizer, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &Synthesizer{
		generator:     generator,
		validator:     validator,
		maxIterations: maxIterations,
	}, nil
}

// Run drives the state machine until Done or Exhausted. On exhaustion the
// returned Result still carries the last candidate, alongside a
// *RepairExhaustedError the caller can inspect with errors.As.
//
// A validator timeout counts as a validation failure and consumes one
// iteration of budget; a generator failure is terminal.
func (s *Synthesizer) Run(ctx context.Context, question, schemaJSON string, exemplars []exemplar.Exemplar) (Result, error) {
	var (
		current    state
		candidates []Candidate
		text       string
		errDetail  string
	)

	for iteration := 0; ; {
		switch current {
		case stateStart:
			generated, err := s.generator.Generate(ctx, question, schemaJSON, exemplars)
			if err != nil {
				return Result{Candidates: candidates}, fmt.Errorf("generate candidate 0: %w", err)
			}
			text = strings.TrimSpace(generated)
			current = stateGenerated

		case stateInvalid:
			repaired, err := s.generator.Repair(ctx, question, text, errDetail, schemaJSON)
			if err != nil {
				return Result{Candidates: candidates}, fmt.Errorf("repair candidate %d: %w", iteration, err)
			}
			text = strings.TrimSpace(repaired)
			current = stateRepaired

		case stateGenerated, stateRepaired:
			candidate := Candidate{Text: text, Iteration: iteration}
			if err := validate(ctx, s.validator, text); err != nil {
				candidate.ErrorDetail = err.Error()
				candidates = append(candidates, candidate)
				errDetail = candidate.ErrorDetail
				iteration++
				if iteration >= s.maxIterations {
					current = stateExhausted
					continue
				}
				current = stateInvalid
				continue
			}
			candidate.Valid = true
			candidates = append(candidates, candidate)
			current = stateDone

		case stateDone:
			return Result{Query: text, Candidates: candidates}, nil

		case stateExhausted:
			result := Result{Query: text, Candidates: candidates, Exhausted: true}
			return result, &RepairExhaustedError{Candidates: candidates}
		}
	}
}

func validate(ctx context.Context, validator graph.Validator, query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("generator returned an empty query")
	}
	if err := validator.DryRun(ctx, query); err != nil {
		// Includes deadline expiry on the dry run: a slow validator is
		// handled the same way as a rejecting one.
		return err
	}
	return nil
}
