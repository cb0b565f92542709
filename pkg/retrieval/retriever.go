package retrieval

import (
	"context"
)

// Document is one retrieved knowledge fragment with its similarity score.
type Document struct {
	Id      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Retriever fetches the most relevant knowledge fragments for a tenant's
// query. The backing storage is external to the pipeline; this interface is
// its only surface.
type Retriever interface {
	Search(ctx context.Context, tenantId, query string, limit int) ([]Document, error)

	// HasKnowledgeBase reports whether the tenant has any indexed content.
	HasKnowledgeBase(ctx context.Context, tenantId string) (bool, error)
}

// Embedder turns query text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
