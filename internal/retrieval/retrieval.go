// Package retrieval maps a query to ranked document references. Implementations never
// return chunk content, only the hash that addresses it in the content store.
package retrieval

import (
	"context"

	"github.com/weaveai/weave/internal/models"
)

// Retriever returns at most topK references ordered by relevance, ties broken by index
// insertion order. No match yields an empty result and a nil error.
type Retriever interface {
	RetrieveReferences(ctx context.Context, query string, topK int) (*models.RetrievalResult, error)
}

// Index is a Retriever that can also be written to at ingest time.
type Index interface {
	Retriever
	AddReference(ctx context.Context, ref models.DocumentReference, text string) error
	DeleteReference(ctx context.Context, refID string) error
	Count() (uint64, error)
	Close() error
}
