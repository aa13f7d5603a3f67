package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/weaveai/weave/internal/models"
)

// SQLiteSink is a Sink and Reader backed by a SQLite table. Triggers reject any UPDATE
// or DELETE, so entries are append-only at the storage level.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens or creates the audit database at dbPath.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_log (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	enquiry_id TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_enquiry ON audit_log(enquiry_id);

CREATE TRIGGER IF NOT EXISTS audit_log_no_update
BEFORE UPDATE ON audit_log
BEGIN
	SELECT RAISE(ABORT, 'audit log is append-only');
END;

CREATE TRIGGER IF NOT EXISTS audit_log_no_delete
BEFORE DELETE ON audit_log
BEGIN
	SELECT RAISE(ABORT, 'audit log is append-only');
END;
`

// Append inserts entry.
func (s *SQLiteSink) Append(ctx context.Context, entry models.AuditEntry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to encode audit data: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (enquiry_id, timestamp, data) VALUES (?, ?, ?)`,
		entry.EnquiryID, entry.Timestamp.UTC(), string(data))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Entries returns all entries for enquiryID, oldest first.
func (s *SQLiteSink) Entries(ctx context.Context, enquiryID string) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT enquiry_id, timestamp, data FROM audit_log WHERE enquiry_id = ? ORDER BY seq`, enquiryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var ts time.Time
		var data string
		if err := rows.Scan(&e.EnquiryID, &ts, &data); err != nil {
			return nil, err
		}
		e.Timestamp = ts
		if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
			return nil, fmt.Errorf("failed to decode audit data: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
