// Package storage defines the content store: approved documents addressed by content hash.
package storage

import (
	"context"

	"github.com/weaveai/weave/internal/models"
)

// Storage defines document and content persistence operations.
type Storage interface {
	// Content operations. Content is immutable and addressed by its SHA-256 hash.
	PutContent(ctx context.Context, data []byte) (string, error)
	GetContent(ctx context.Context, hash string) ([]byte, error)

	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListApprovedDocuments(ctx context.Context) ([]*models.Document, error)
	ArchiveDocument(ctx context.Context, id string) error
	ArchiveDocumentsByName(ctx context.Context, name string) (int64, error)

	// Stats
	CountDocuments(ctx context.Context, status models.DocumentStatus) (int64, error)

	Close() error
}

// BlobStore persists content blobs keyed by hash. Get returns *models.NotFoundError for unknown hashes.
type BlobStore interface {
	Put(ctx context.Context, hash string, data []byte) error
	Get(ctx context.Context, hash string) ([]byte, error)
}
