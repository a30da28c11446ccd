// Package retrieval answers free-text queries against the knowledge base:
// a structured doctor directory and vector-indexed treatment protocols.
package retrieval

import "context"

// Domain selects which knowledge collection a query runs against.
type Domain string

const (
	DomainDoctors   Domain = "doctors"
	DomainProtocols Domain = "protocols"
)

// Passage is one ranked retrieval result.
type Passage struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// Embedder produces the query embedding used for protocol vector search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
