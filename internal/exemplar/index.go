package exemplar

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

// SelectionError reports an invalid top-k request against the index.
type SelectionError struct {
	K        int
	PoolSize int
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid exemplar selection: k=%d with pool size %d", e.K, e.PoolSize)
}

// Index ranks a fixed exemplar pool by TF-IDF cosine similarity against an
// incoming question. Term vectors for the pool are computed once at
// construction; Select never mutates the index.
type Index struct {
	pool    []Exemplar
	idf     map[string]float64
	vectors []map[string]float64
}

// NewIndex builds the similarity index over the given pool. The pool slice
// is copied; insertion order is preserved for tie-breaking.
func NewIndex(pool []Exemplar) (*Index, error) {
	if len(pool) == 0 {
		return nil, fmt.Errorf("exemplar pool is empty")
	}

	index := &Index{
		pool:    make([]Exemplar, len(pool)),
		idf:     map[string]float64{},
		vectors: make([]map[string]float64, len(pool)),
	}
	copy(index.pool, pool)

	counts := make([]map[string]float64, len(pool))
	documentFrequency := map[string]int{}
	for i, ex := range index.pool {
		counts[i] = termCounts(ex.Question)
		for term := range counts[i] {
			documentFrequency[term]++
		}
	}

	// Smoothed idf, matching the usual tf-idf formulation: every term gets
	// a positive weight so an exact question match scores 1.0.
	total := float64(len(pool))
	for term, df := range documentFrequency {
		index.idf[term] = math.Log((1+total)/(1+float64(df))) + 1
	}

	for i := range counts {
		index.vectors[i] = normalize(weight(counts[i], index.idf))
	}
	return index, nil
}

// PoolSize returns the number of exemplars in the index.
func (x *Index) PoolSize() int {
	return len(x.pool)
}

// Select returns the k exemplars most similar to the question, best match
// first. Ties break by insertion order: the earlier-loaded exemplar wins.
func (x *Index) Select(question string, k int) ([]Exemplar, error) {
	if k <= 0 || k > len(x.pool) {
		return nil, &SelectionError{K: k, PoolSize: len(x.pool)}
	}

	queryVector := normalize(weight(termCounts(question), x.idf))

	scores := make([]float64, len(x.pool))
	for i, vector := range x.vectors {
		scores[i] = dot(queryVector, vector)
	}

	order := make([]int, len(x.pool))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	selected := make([]Exemplar, k)
	for i := 0; i < k; i++ {
		selected[i] = x.pool[order[i]]
	}
	return selected, nil
}

func termCounts(text string) map[string]float64 {
	counts := map[string]float64{}
	for _, term := range tokenize(text) {
		counts[term]++
	}
	return counts
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func weight(counts map[string]float64, idf map[string]float64) map[string]float64 {
	weighted := make(map[string]float64, len(counts))
	for term, count := range counts {
		factor, known := idf[term]
		if !known {
			// Terms outside the pool vocabulary carry no signal.
			continue
		}
		weighted[term] = count * factor
	}
	return weighted
}

func normalize(vector map[string]float64) map[string]float64 {
	var sum float64
	for _, value := range vector {
		sum += value * value
	}
	if sum == 0 {
		return vector
	}
	norm := math.Sqrt(sum)
	for term, value := range vector {
		vector[term] = value / norm
	}
	return vector
}

func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, value := range a {
		sum += value * b[term]
	}
	return sum
}
