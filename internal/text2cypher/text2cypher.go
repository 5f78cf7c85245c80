// Package text2cypher turns questions into structured graph queries with
// an OpenAI-compatible chat backend. The same client also prunes schemas
// to the question-relevant subset and composes natural-language answers;
// all three are thin prompt wrappers over one chat call.
package text2cypher

import (
	"context"

	"github.com/askgraph/askgraph/internal/exemplar"
	"github.com/askgraph/askgraph/internal/graph"
	"github.com/askgraph/askgraph/internal/schema"
)

// Dialect selects the target query language for generation.
type Dialect string

const (
	DialectCypher Dialect = "cypher"
	DialectSQL    Dialect = "sql"
)

// Translator produces and repairs candidate queries.
type Translator interface {
	Generate(ctx context.Context, question, schemaJSON string, exemplars []exemplar.Exemplar) (string, error)
	Repair(ctx context.Context, question, failedQuery, errorDetail, schemaJSON string) (string, error)
}

// Composer renders raw result rows into a natural-language answer. It is
// consulted after the pipeline returns and never feeds the query cache.
type Composer interface {
	Compose(ctx context.Context, question, query string, result graph.Result) (string, error)
}

var _ schema.Reducer = (*Client)(nil)
