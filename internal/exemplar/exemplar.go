package exemplar

import (
	"encoding/json"
	"fmt"
	"os"
)

// Exemplar is a worked (question, query) pair used as a few-shot reference
// during query generation. The pool is loaded once at startup and never
// mutated afterwards.
type Exemplar struct {
	Question string `json:"question"`
	Query    string `json:"query"`
	Tag      string `json:"tag,omitempty"`
}

// LoadFile reads an exemplar pool from a JSON array file, preserving order.
func LoadFile(path string) ([]Exemplar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exemplar file: %w", err)
	}
	var pool []Exemplar
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("parse exemplar file %q: %w", path, err)
	}
	for i, ex := range pool {
		if ex.Question == "" || ex.Query == "" {
			return nil, fmt.Errorf("exemplar %d in %q: question and query are required", i, path)
		}
	}
	return pool, nil
}

// DefaultPool is the built-in exemplar set for the Nobel laureate graph.
// Deployments with their own graph supply a pool via file or database.
func DefaultPool() []Exemplar {
	return []Exemplar{
		{
			Question: "Which scholars won prizes in Physics?",
			Query:    "MATCH (s:Scholar)-[:WON]->(p:Prize) WHERE LOWER(p.category) = 'physics' RETURN s.knownName",
			Tag:      "simple_filter",
		},
		{
			Question: "Who was affiliated with University of Cambridge?",
			Query:    "MATCH (s:Scholar)-[:AFFILIATED_WITH]->(i:Institution) WHERE LOWER(i.name) CONTAINS 'cambridge' RETURN s.knownName",
			Tag:      "institution_affiliation",
		},
		{
			Question: "How many laureates won prizes in Chemistry between 1950 and 2000?",
			Query:    "MATCH (s:Scholar)-[:WON]->(p:Prize) WHERE LOWER(p.category) = 'chemistry' AND p.awardYear >= 1950 AND p.awardYear <= 2000 RETURN count(DISTINCT s)",
			Tag:      "aggregation_with_date_range",
		},
		{
			Question: "Which Physics laureates were born in the United States?",
			Query:    "MATCH (s:Scholar)-[:WON]->(p:Prize), (s)-[:BORN_IN]->(c:City)-[:IS_CITY_IN]->(co:Country) WHERE LOWER(p.category) = 'physics' AND LOWER(co.name) CONTAINS 'united states' RETURN s.knownName, c.name",
			Tag:      "multi_hop",
		},
		{
			Question: "List all female laureates in Medicine",
			Query:    "MATCH (s:Scholar)-[:WON]->(p:Prize) WHERE LOWER(p.category) = 'medicine' AND LOWER(s.gender) = 'female' RETURN s.knownName, p.awardYear",
			Tag:      "gender_filter",
		},
	}
}
