package db

import "fmt"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// NumericLess builds an FT.SEARCH query matching field values strictly below
// bound, e.g. "@created_at:[-inf (1700000000]".
func NumericLess(field string, bound float64) string {
	return fmt.Sprintf("@%s:[-inf (%g]", field, bound)
}
