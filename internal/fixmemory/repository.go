// Package fixmemory stores embeddings of successfully repaired build errors
// so later sessions can recall which fixes worked for similar failures.
package fixmemory

import "context"

// Document is one remembered fix: the error text it resolved, its
// embedding, and metadata about how it was resolved.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// SearchResult is a single match from a similarity search.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]string
}

// Repository provides vector storage and similarity search over past fixes.
type Repository interface {
	// Upsert inserts or updates documents.
	Upsert(ctx context.Context, docs []Document) error
	// Search finds the top-k most similar documents.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	// Close releases resources.
	Close() error
}
