// Package pipeline turns a natural language question into an executed
// graph query, caching the translation and its rows along the way.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/askgraph/askgraph/internal/exemplar"
	"github.com/askgraph/askgraph/internal/graph"
	"github.com/askgraph/askgraph/internal/observability"
	"github.com/askgraph/askgraph/internal/querycache"
	"github.com/askgraph/askgraph/internal/schema"
	"github.com/askgraph/askgraph/internal/synth"
	"github.com/askgraph/askgraph/internal/synth/rewrite"
)

const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Synthesizer abstracts the generate/validate/repair loop so tests can
// substitute a canned implementation.
type Synthesizer interface {
	Run(ctx context.Context, question, schemaJSON string, exemplars []exemplar.Exemplar) (synth.Result, error)
}

// Answer is the outcome of one question.
type Answer struct {
	Question    string
	Query       string
	Columns     []string
	Rows        [][]any
	CacheStatus string
	Exhausted   bool
	Duration    time.Duration
}

type Dependencies struct {
	Logger      *slog.Logger
	Reducer     schema.Reducer
	Exemplars   *exemplar.Index
	ExemplarK   int
	Synthesizer Synthesizer
	Rewriter    rewrite.Chain
	Executor    graph.Executor
	Cache       *querycache.Cache
}

// Orchestrator runs the full ask flow: reduce the schema, consult the
// cache, and on a miss synthesize, rewrite, execute, and store.
type Orchestrator struct {
	deps  Dependencies
	keyFn func(question string, s querycache.CanonicalSerializer) (string, error)
}

func New(deps Dependencies) (*Orchestrator, error) {
	if deps.Exemplars == nil {
		return nil, fmt.Errorf("exemplar index is required")
	}
	if deps.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if deps.ExemplarK <= 0 || deps.ExemplarK > deps.Exemplars.PoolSize() {
		return nil, fmt.Errorf("exemplar k %d out of range for pool of %d", deps.ExemplarK, deps.Exemplars.PoolSize())
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{deps: deps, keyFn: querycache.Key}, nil
}

// Answer resolves question against the given full schema. Execution
// failures surface as *graph.ExecutionError and are never cached.
func (o *Orchestrator) Answer(ctx context.Context, question string, full schema.Graph) (Answer, error) {
	start := time.Now()

	reduced := o.reduce(ctx, question, full)

	key, cacheable := o.deriveKey(ctx, question, reduced)
	if cacheable {
		if entry, ok := o.deps.Cache.Get(key); ok {
			observability.ObserveCacheLookup(CacheHit)
			o.deps.Logger.InfoContext(ctx, "cache hit",
				slog.String("cache_key", key),
				slog.String("question", question))
			return Answer{
				Question:    question,
				Query:       entry.Query,
				Columns:     entry.Columns,
				Rows:        entry.Rows,
				CacheStatus: CacheHit,
				Duration:    time.Since(start),
			}, nil
		}
		observability.ObserveCacheLookup(CacheMiss)
	}

	query, exhausted, err := o.synthesize(ctx, question, reduced)
	if err != nil {
		return Answer{}, err
	}

	executeStart := time.Now()
	result, err := o.deps.Executor.Execute(ctx, query)
	observability.ObserveExecution(err)
	observability.ObserveStage("execute", time.Since(executeStart))
	if err != nil {
		return Answer{}, &graph.ExecutionError{Query: query, Err: err}
	}

	if cacheable {
		o.deps.Cache.Set(key, querycache.Entry{Query: query, Columns: result.Columns, Rows: result.Rows})
		observability.SetCacheEntries(o.deps.Cache.Len())
	}

	return Answer{
		Question:    question,
		Query:       query,
		Columns:     result.Columns,
		Rows:        result.Rows,
		CacheStatus: CacheMiss,
		Exhausted:   exhausted,
		Duration:    time.Since(start),
	}, nil
}

func (o *Orchestrator) reduce(ctx context.Context, question string, full schema.Graph) schema.Graph {
	if o.deps.Reducer == nil {
		return full
	}
	reduceStart := time.Now()
	reduced, err := o.deps.Reducer.Reduce(ctx, question, full)
	observability.ObserveStage("reduce", time.Since(reduceStart))
	if err != nil {
		o.deps.Logger.WarnContext(ctx, "schema reduction failed, using full schema", slog.Any("error", err))
		return full
	}
	if reduced.IsEmpty() {
		return full
	}
	return reduced
}

// deriveKey reports cacheable=false when the key cannot be computed.
// The request then bypasses the cache entirely for both the lookup and
// the later store.
func (o *Orchestrator) deriveKey(ctx context.Context, question string, reduced schema.Graph) (string, bool) {
	key, err := o.keyFn(question, reduced)
	if err != nil {
		observability.ObserveCacheLookup("error")
		o.deps.Logger.WarnContext(ctx, "cache key derivation failed, treating as miss", slog.Any("error", err))
		return "", false
	}
	return key, true
}

func (o *Orchestrator) synthesize(ctx context.Context, question string, reduced schema.Graph) (string, bool, error) {
	schemaJSON, err := reduced.JSON()
	if err != nil {
		return "", false, fmt.Errorf("encode schema: %w", err)
	}

	exemplars, err := o.deps.Exemplars.Select(question, o.deps.ExemplarK)
	if err != nil {
		return "", false, fmt.Errorf("select exemplars: %w", err)
	}

	synthStart := time.Now()
	result, err := o.deps.Synthesizer.Run(ctx, question, schemaJSON, exemplars)
	observability.ObserveStage("synthesize", time.Since(synthStart))

	exhausted := false
	if err != nil {
		var exhaustedErr *synth.RepairExhaustedError
		if !errors.As(err, &exhaustedErr) {
			return "", false, fmt.Errorf("synthesize query: %w", err)
		}
		// Out of repair attempts: run the last candidate anyway and let
		// the execution result speak for itself.
		exhausted = true
		o.deps.Logger.WarnContext(ctx, "repair attempts exhausted, executing last candidate",
			slog.String("question", question),
			slog.Int("iterations", result.Iterations()))
	}
	observability.ObserveSynthesis(result.Iterations(), exhausted)

	if result.Query == "" {
		return "", false, fmt.Errorf("synthesis produced no query for %q", question)
	}
	return o.deps.Rewriter.Apply(result.Query), exhausted, nil
}
