// Package models defines core data structures for documents, references, enquiries, and audit entries.
package models

import "time"

// DocumentStatus is the approval lifecycle state of a document.
type DocumentStatus string

const (
	StatusActive   DocumentStatus = "active"
	StatusArchived DocumentStatus = "archived"
)

// Document is an approved reference document addressed by the hash of its content.
// Only Status changes after creation, and only from active to archived.
type Document struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Section     string         `json:"section,omitempty"`
	ContentHash string         `json:"content_hash"`
	ApprovedBy  string         `json:"approved_by"`
	ApprovedAt  time.Time      `json:"approved_at"`
	Status      DocumentStatus `json:"status"`
}

// Active reports whether the document is visible to answering.
func (d *Document) Active() bool {
	return d.Status == StatusActive
}

// ReferenceMetadata describes where a reference points for citation purposes.
type ReferenceMetadata struct {
	DocumentName string `json:"document_name"`
	Section      string `json:"section"`
	LastUpdated  string `json:"last_updated"`
}

// DocumentReference points at content by hash. It never carries the content itself.
type DocumentReference struct {
	RefID       string            `json:"ref_id"`
	ContentHash string            `json:"content_hash"`
	ChunkIndex  int               `json:"chunk_index"`
	Metadata    ReferenceMetadata `json:"metadata"`
}

// RetrievalResult is the ordered output of a retrieval. Empty References is a valid result.
type RetrievalResult struct {
	References []DocumentReference `json:"references"`
	Query      string              `json:"query"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Empty reports whether retrieval produced no references.
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.References) == 0
}
