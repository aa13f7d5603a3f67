// Package ingest turns approved source files into content-addressed documents and
// retrieval references.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weaveai/weave/internal/extract"
	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/pkg/utils"
)

// lastUpdatedLayout formats ReferenceMetadata.LastUpdated.
const lastUpdatedLayout = "2006-01-02"

// Store is the subset of the content store used by ingest.
type Store interface {
	PutContent(ctx context.Context, data []byte) (string, error)
	CreateDocument(ctx context.Context, doc *models.Document) error
	ListApprovedDocuments(ctx context.Context) ([]*models.Document, error)
	ArchiveDocument(ctx context.Context, id string) error
}

// ReferenceWriter is the write side of the retrieval index.
type ReferenceWriter interface {
	AddReference(ctx context.Context, ref models.DocumentReference, text string) error
	DeleteReference(ctx context.Context, refID string) error
}

// Ingester stores approved content and indexes references to it. Each chunk becomes one
// Document whose ID is also the retrieval reference ID.
type Ingester struct {
	store     Store
	index     ReferenceWriter
	extractor *extract.Extractor
	chunker   *Chunker
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Ingester) { i.logger = l }
}

// WithClock overrides the approval timestamp source.
func WithClock(now func() time.Time) Option {
	return func(i *Ingester) { i.now = now }
}

// NewIngester creates an ingester. chunkSize and chunkOverlap are in words.
func NewIngester(store Store, index ReferenceWriter, chunkSize, chunkOverlap int, opts ...Option) *Ingester {
	i := &Ingester{
		store:     store,
		index:     index,
		extractor: extract.NewExtractor(),
		chunker:   NewChunker(chunkSize, chunkOverlap),
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = utils.OrNop(i.logger)
	return i
}

// IngestFile extracts the file at path and ingests it under its base name, superseding
// any active version with that name.
func (i *Ingester) IngestFile(ctx context.Context, path, approvedBy string) ([]*models.Document, error) {
	text, err := i.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	docs, err := i.ReplaceText(ctx, filepath.Base(path), text, approvedBy)
	if err != nil {
		return nil, err
	}
	i.logger.Info("Ingested file", zap.String("path", path), zap.Int("chunks", len(docs)))
	return docs, nil
}

// ReplaceText ingests text under name and archives the active documents that already
// carried the name. The previous version stays active if the new one fails to ingest.
func (i *Ingester) ReplaceText(ctx context.Context, name, text, approvedBy string) ([]*models.Document, error) {
	previous, err := i.activeByName(ctx, name)
	if err != nil {
		return nil, err
	}
	docs, err := i.IngestText(ctx, name, text, approvedBy)
	if err != nil {
		return nil, err
	}
	for _, d := range previous {
		if err := i.archive(ctx, d.ID); err != nil {
			return docs, fmt.Errorf("archive previous version of %s: %w", name, err)
		}
	}
	if len(previous) > 0 {
		i.logger.Info("Superseded document", zap.String("name", name), zap.Int("chunks", len(previous)))
	}
	return docs, nil
}

// IngestText chunks text and stores each chunk as an active document approved by approvedBy.
// It is all or nothing: on error every chunk created so far is archived again.
func (i *Ingester) IngestText(ctx context.Context, name, text, approvedBy string) ([]*models.Document, error) {
	if name == "" {
		return nil, errors.New("document name is required")
	}
	if approvedBy == "" {
		return nil, errors.New("approver is required")
	}
	chunks := i.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s has no content", name)
	}

	approvedAt := i.now()
	docs := make([]*models.Document, 0, len(chunks))
	for _, ch := range chunks {
		doc, err := i.ingestChunk(ctx, name, ch, approvedBy, approvedAt)
		if doc != nil {
			docs = append(docs, doc)
		}
		if err != nil {
			i.rollback(ctx, docs)
			return nil, fmt.Errorf("ingest %s chunk %d: %w", name, ch.Index, err)
		}
	}
	i.logger.Debug("Ingested document", zap.String("name", name), zap.Int("chunks", len(docs)))
	return docs, nil
}

// ingestChunk returns the document once it exists in the store, even if indexing it failed.
func (i *Ingester) ingestChunk(ctx context.Context, name string, ch Chunk, approvedBy string, approvedAt time.Time) (*models.Document, error) {
	hash, err := i.store.PutContent(ctx, []byte(ch.Text))
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate reference id: %w", err)
	}
	doc := &models.Document{
		ID:          id.String(),
		Name:        name,
		Section:     ch.Section,
		ContentHash: hash,
		ApprovedBy:  approvedBy,
		ApprovedAt:  approvedAt,
		Status:      models.StatusActive,
	}
	if err := i.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	ref := models.DocumentReference{
		RefID:       doc.ID,
		ContentHash: hash,
		ChunkIndex:  ch.Index,
		Metadata: models.ReferenceMetadata{
			DocumentName: name,
			Section:      ch.Section,
			LastUpdated:  approvedAt.Format(lastUpdatedLayout),
		},
	}
	if err := i.index.AddReference(ctx, ref, ch.Text); err != nil {
		return doc, err
	}
	return doc, nil
}

// rollback archives docs from a failed ingest. It runs even if ctx was cancelled.
func (i *Ingester) rollback(ctx context.Context, docs []*models.Document) {
	ctx = context.WithoutCancel(ctx)
	for _, d := range docs {
		if err := i.archive(ctx, d.ID); err != nil {
			i.logger.Error("Failed to roll back document", zap.String("id", d.ID), zap.Error(err))
		}
	}
}

// ArchiveDocument archives one document and drops its reference from the index.
func (i *Ingester) ArchiveDocument(ctx context.Context, id string) error {
	return i.archive(ctx, id)
}

// ArchiveByName archives every active document named name and returns how many were archived.
func (i *Ingester) ArchiveByName(ctx context.Context, name string) (int, error) {
	docs, err := i.activeByName(ctx, name)
	if err != nil {
		return 0, err
	}
	for n, d := range docs {
		if err := i.archive(ctx, d.ID); err != nil {
			return n, err
		}
	}
	if len(docs) > 0 {
		i.logger.Info("Archived document", zap.String("name", name), zap.Int("chunks", len(docs)))
	}
	return len(docs), nil
}

// HandleChange ingests a file reported by the inbox watcher.
func (i *Ingester) HandleChange(approvedBy string) func(path string) {
	return func(path string) {
		if !extract.Supported(filepath.Ext(path)) {
			return
		}
		if _, err := i.IngestFile(context.Background(), path, approvedBy); err != nil {
			i.logger.Warn("Failed to ingest file", zap.String("path", path), zap.Error(err))
		}
	}
}

// HandleRemove archives the documents of a file removed from the inbox.
func (i *Ingester) HandleRemove(path string) {
	if _, err := i.ArchiveByName(context.Background(), filepath.Base(path)); err != nil {
		i.logger.Warn("Failed to archive removed file", zap.String("path", path), zap.Error(err))
	}
}

func (i *Ingester) archive(ctx context.Context, id string) error {
	if err := i.store.ArchiveDocument(ctx, id); err != nil {
		return err
	}
	// Answers filter archived documents regardless, so a failed delete is only logged.
	if err := i.index.DeleteReference(ctx, id); err != nil {
		i.logger.Warn("Failed to delete reference", zap.String("ref_id", id), zap.Error(err))
	}
	return nil
}

func (i *Ingester) activeByName(ctx context.Context, name string) ([]*models.Document, error) {
	all, err := i.store.ListApprovedDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list approved documents: %w", err)
	}
	var out []*models.Document
	for _, d := range all {
		if d.Name == name && d.Active() {
			out = append(out, d)
		}
	}
	return out, nil
}
