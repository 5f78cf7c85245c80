package text2cypher

import (
	"fmt"
	"strings"

	"github.com/askgraph/askgraph/internal/exemplar"
	"github.com/askgraph/askgraph/internal/graph"
)

const cypherSyntaxRules = `- When matching on Scholar names, ALWAYS match on the knownName property.
- For countries, cities, continents and institutions, match on the name property.
- Use short alphanumeric variable bindings (a1, r1, and so on).
- Respect relationship direction (FROM/TO) according to the schema.
- When comparing string properties: lowercase the value, use a WHERE clause, and use the CONTAINS operator.
- Do NOT use APOC; the database does not support it.
- Return property values rather than entire nodes or relationships.
- Integers are returned as integers, not strings.`

const sqlSyntaxRules = `- The engine speaks PostgreSQL-like SQL (DuckDB).
- Use only tables and columns present in the schema.
- Prefer explicit column lists over SELECT *.
- When comparing string columns: lowercase the value and use LIKE with wildcards.
- Output a single SELECT statement; never modify data.`

func syntaxRules(dialect Dialect) string {
	if dialect == DialectSQL {
		return sqlSyntaxRules
	}
	return cypherSyntaxRules
}

func dialectName(dialect Dialect) string {
	if dialect == DialectSQL {
		return "SQL query"
	}
	return "Cypher query"
}

func generateSystemPrompt(dialect Dialect) string {
	return fmt.Sprintf(
		"You translate a question into a single valid %s that respects the given graph schema. "+
			"Use the provided examples as reference for query patterns. "+
			"Return ONLY the query. No markdown, no explanation, no newlines.\n\nRules:\n%s",
		dialectName(dialect), syntaxRules(dialect),
	)
}

func generateUserPrompt(question, schemaJSON string, exemplars []exemplar.Exemplar) string {
	var b strings.Builder
	b.WriteString("Schema (JSON):\n")
	b.WriteString(schemaJSON)
	if len(exemplars) > 0 {
		b.WriteString("\n\nExamples:\n")
		b.WriteString(FormatExemplars(exemplars))
	}
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

func repairSystemPrompt(dialect Dialect) string {
	return fmt.Sprintf(
		"The previous %s failed validation with an error. "+
			"Analyze the error and generate a corrected version of the query, keeping the original intent.\n\n"+
			"Common error patterns:\n"+
			"- Syntax errors: missing parentheses, incorrect operators\n"+
			"- Schema mismatches: wrong labels or non-existent properties\n"+
			"- Type errors: comparing incompatible types\n"+
			"- Missing WHERE clauses for filters\n\n"+
			"Return ONLY the corrected query. No markdown, no explanation, no newlines.\n\nRules:\n%s",
		dialectName(dialect), syntaxRules(dialect),
	)
}

func repairUserPrompt(question, failedQuery, errorDetail, schemaJSON string) string {
	return fmt.Sprintf(
		"Failed query:\n%s\n\nValidator error:\n%s\n\nOriginal question:\n%s\n\nSchema (JSON):\n%s",
		failedQuery, errorDetail, strings.TrimSpace(question), schemaJSON,
	)
}

const reduceSystemPrompt = "You are given a labelled property graph schema and a user question. " +
	"Return ONLY the subset of the schema (node labels, edge labels and properties) relevant to the question, " +
	"as JSON with the same structure as the input: {\"nodes\": [...], \"edges\": [...]}. " +
	"No markdown, no explanation."

func reduceUserPrompt(question, schemaJSON string) string {
	return fmt.Sprintf("Schema (JSON):\n%s\n\nQuestion:\n%s", schemaJSON, strings.TrimSpace(question))
}

const composeSystemPrompt = "Use the question, the generated query and the retrieved context to answer the question. " +
	"If the context is empty, state that you do not have enough information. " +
	"When dealing with dates, mention the month in full."

func composeUserPrompt(question, query string, result graph.Result) string {
	return fmt.Sprintf(
		"Question:\n%s\n\nQuery:\n%s\n\nContext rows:\n%s",
		strings.TrimSpace(question), query, rowsForPrompt(result),
	)
}

// FormatExemplars renders the selected exemplars as question/query pairs
// for prompt embedding.
func FormatExemplars(exemplars []exemplar.Exemplar) string {
	blocks := make([]string, 0, len(exemplars))
	for _, ex := range exemplars {
		blocks = append(blocks, fmt.Sprintf("Question: %s\nQuery: %s", ex.Question, ex.Query))
	}
	return strings.Join(blocks, "\n\n")
}
