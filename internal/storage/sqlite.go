package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/weaveai/weave/internal/models"
)

// SQLiteStorage implements Storage using SQLite for document metadata.
// Blobs live in SQLite too unless another BlobStore is configured.
type SQLiteStorage struct {
	db    *sql.DB
	blobs BlobStore
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithBlobStore stores content blobs in b instead of the SQLite content_blobs table.
func WithBlobStore(b BlobStore) Option {
	return func(s *SQLiteStorage) { s.blobs = b }
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.blobs = &sqliteBlobs{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		section TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		approved_by TEXT NOT NULL,
		approved_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('active', 'archived'))
	);

	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	CREATE INDEX IF NOT EXISTS idx_documents_name ON documents(name);
	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);

	CREATE TRIGGER IF NOT EXISTS documents_immutable
	BEFORE UPDATE OF id, name, section, content_hash, approved_by, approved_at ON documents
	BEGIN
		SELECT RAISE(ABORT, 'documents are immutable');
	END;

	CREATE TRIGGER IF NOT EXISTS documents_no_reactivate
	BEFORE UPDATE OF status ON documents
	WHEN OLD.status = 'archived' AND NEW.status <> 'archived'
	BEGIN
		SELECT RAISE(ABORT, 'archived documents cannot be reactivated');
	END;

	CREATE TABLE IF NOT EXISTS content_blobs (
		hash TEXT PRIMARY KEY,
		content BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// PutContent stores data under its content hash and returns the hash. Storing the same bytes twice is a no-op.
func (s *SQLiteStorage) PutContent(ctx context.Context, data []byte) (string, error) {
	hash := ContentHash(data)
	if err := s.blobs.Put(ctx, hash, data); err != nil {
		return "", fmt.Errorf("failed to store content %s: %w", hash, err)
	}
	return hash, nil
}

// GetContent returns the bytes stored under hash, or *models.NotFoundError.
func (s *SQLiteStorage) GetContent(ctx context.Context, hash string) ([]byte, error) {
	return s.blobs.Get(ctx, hash)
}

// CreateDocument inserts a document. Missing ID, ApprovedAt, and Status are filled in.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.Name == "" {
		return errors.New("document name is required")
	}
	if doc.ApprovedBy == "" {
		return errors.New("document approver is required")
	}
	if !ValidHash(doc.ContentHash) {
		return fmt.Errorf("invalid content hash: %q", doc.ContentHash)
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.ApprovedAt.IsZero() {
		doc.ApprovedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = models.StatusActive
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, section, content_hash, approved_by, approved_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.Section, doc.ContentHash, doc.ApprovedBy, doc.ApprovedAt, string(doc.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetDocument returns a document by ID, or *models.NotFoundError.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, section, content_hash, approved_by, approved_at, status
		 FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "document", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListApprovedDocuments returns active documents in approval order. Archived documents are never returned.
func (s *SQLiteStorage) ListApprovedDocuments(ctx context.Context) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, section, content_hash, approved_by, approved_at, status
		 FROM documents WHERE status = ? ORDER BY approved_at, rowid`,
		string(models.StatusActive),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ArchiveDocument moves a document to archived. Archiving an archived document is a no-op.
func (s *SQLiteStorage) ArchiveDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ? WHERE id = ?`, string(models.StatusArchived), id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return &models.NotFoundError{Kind: "document", Key: id}
	}
	return nil
}

// ArchiveDocumentsByName archives every active document with the given name and returns how many changed.
func (s *SQLiteStorage) ArchiveDocumentsByName(ctx context.Context, name string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ? WHERE name = ? AND status = ?`,
		string(models.StatusArchived), name, string(models.StatusActive))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountDocuments returns the number of documents with status, or all documents when status is empty.
func (s *SQLiteStorage) CountDocuments(ctx context.Context, status models.DocumentStatus) (int64, error) {
	var count int64
	var err error
	if status == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE status = ?`, string(status)).Scan(&count)
	}
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(r rowScanner) (*models.Document, error) {
	var doc models.Document
	var status string
	if err := r.Scan(&doc.ID, &doc.Name, &doc.Section, &doc.ContentHash, &doc.ApprovedBy, &doc.ApprovedAt, &status); err != nil {
		return nil, err
	}
	doc.Status = models.DocumentStatus(status)
	return &doc, nil
}

// sqliteBlobs is the default BlobStore, sharing the documents database.
type sqliteBlobs struct {
	db *sql.DB
}

func (b *sqliteBlobs) Put(ctx context.Context, hash string, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO content_blobs (hash, content) VALUES (?, ?)`, hash, data)
	return err
}

func (b *sqliteBlobs) Get(ctx context.Context, hash string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT content FROM content_blobs WHERE hash = ?`, hash).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "content", Key: hash}
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
