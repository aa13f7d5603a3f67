package retrieval

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/weaveai/weave/internal/models"
)

const (
	fieldRefID        = "ref_id"
	fieldContentHash  = "content_hash"
	fieldChunkIndex   = "chunk_index"
	fieldDocumentName = "document_name"
	fieldSection      = "section"
	fieldLastUpdated  = "last_updated"
	fieldContent      = "content"
)

// referenceFields are the only fields requested from the index.
var referenceFields = []string{
	fieldRefID, fieldContentHash, fieldChunkIndex, fieldDocumentName, fieldSection, fieldLastUpdated,
}

// BleveIndex implements Index using Bleve. Chunk text is analyzed for matching
// but never stored, so a hit cannot carry content back to the caller.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory and re-ingest.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryBleveIndex creates an in-memory index. Used by tests and one-shot CLI runs.
func NewMemoryBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.StoreDynamic = false
	im.IndexDynamic = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	// Standard analyzer (lowercase + tokenize, no stemming) so exact words match.
	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false
	content.IncludeTermVectors = false
	docMapping.AddFieldMappingsAt(fieldContent, content)

	name := bleve.NewTextFieldMapping()
	name.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldDocumentName, name)
	docMapping.AddFieldMappingsAt(fieldSection, name)

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name
	kw.IncludeInAll = false
	docMapping.AddFieldMappingsAt(fieldRefID, kw)
	docMapping.AddFieldMappingsAt(fieldContentHash, kw)
	docMapping.AddFieldMappingsAt(fieldLastUpdated, kw)

	num := bleve.NewNumericFieldMapping()
	num.IncludeInAll = false
	docMapping.AddFieldMappingsAt(fieldChunkIndex, num)

	im.AddDocumentMapping("reference", docMapping)
	im.DefaultType = "reference"
	im.DefaultMapping = docMapping
	return im
}

// AddReference indexes text under ref. RefID is the Bleve document id; callers should use
// time-ordered ids (UUIDv7) so the id sort reflects insertion order.
func (b *BleveIndex) AddReference(ctx context.Context, ref models.DocumentReference, text string) error {
	if ref.RefID == "" {
		return fmt.Errorf("reference id is required")
	}
	doc := map[string]interface{}{
		fieldRefID:        ref.RefID,
		fieldContentHash:  ref.ContentHash,
		fieldChunkIndex:   float64(ref.ChunkIndex),
		fieldDocumentName: ref.Metadata.DocumentName,
		fieldSection:      ref.Metadata.Section,
		fieldLastUpdated:  ref.Metadata.LastUpdated,
		fieldContent:      text,
	}
	if err := b.index.Index(ref.RefID, doc); err != nil {
		return fmt.Errorf("failed to index reference %s: %w", ref.RefID, err)
	}
	return nil
}

// RetrieveReferences runs a match query and returns up to topK references.
func (b *BleveIndex) RetrieveReferences(ctx context.Context, query string, topK int) (*models.RetrievalResult, error) {
	result := &models.RetrievalResult{
		References: []models.DocumentReference{},
		Query:      query,
		Timestamp:  time.Now().UTC(),
	}
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return result, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), topK, 0, false)
	req.Fields = referenceFields
	req.SortBy([]string{"-_score", "_id"})

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, models.NewProviderError("bleve search", err)
	}
	for _, hit := range res.Hits {
		result.References = append(result.References, referenceFromHit(hit))
	}
	return result, nil
}

func referenceFromHit(hit *search.DocumentMatch) models.DocumentReference {
	ref := models.DocumentReference{
		RefID:       hit.ID,
		ContentHash: stringField(hit.Fields, fieldContentHash),
		Metadata: models.ReferenceMetadata{
			DocumentName: stringField(hit.Fields, fieldDocumentName),
			Section:      stringField(hit.Fields, fieldSection),
			LastUpdated:  stringField(hit.Fields, fieldLastUpdated),
		},
	}
	if n, ok := hit.Fields[fieldChunkIndex].(float64); ok {
		ref.ChunkIndex = int(n)
	}
	return ref
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

// DeleteReference removes a reference from the index.
func (b *BleveIndex) DeleteReference(ctx context.Context, refID string) error {
	return b.index.Delete(refID)
}

// Count returns the number of indexed references.
func (b *BleveIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
