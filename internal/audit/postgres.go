package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weaveai/weave/internal/models"
)

// PostgresSink is a Sink and Reader backed by Postgres. A trigger rejects UPDATE and DELETE.
type PostgresSink struct {
	db *pgxpool.Pool
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS audit_log (
		seq BIGSERIAL PRIMARY KEY,
		enquiry_id TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		data JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_enquiry ON audit_log(enquiry_id)`,
	`CREATE OR REPLACE FUNCTION audit_log_append_only() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'audit log is append-only';
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS audit_log_append_only ON audit_log`,
	`CREATE TRIGGER audit_log_append_only BEFORE UPDATE OR DELETE ON audit_log
		FOR EACH ROW EXECUTE FUNCTION audit_log_append_only()`,
}

// NewPostgresSink connects to dsn and creates the audit table if needed.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	if dsn == "" {
		return nil, &models.ConfigError{Msg: "audit postgres dsn is required"}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
		}
	}
	return &PostgresSink{db: pool}, nil
}

// Append inserts entry.
func (s *PostgresSink) Append(ctx context.Context, entry models.AuditEntry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to encode audit data: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO audit_log (enquiry_id, ts, data) VALUES ($1, $2, $3)`,
		entry.EnquiryID, entry.Timestamp.UTC(), data)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Entries returns all entries for enquiryID, oldest first.
func (s *PostgresSink) Entries(ctx context.Context, enquiryID string) ([]models.AuditEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT enquiry_id, ts, data FROM audit_log WHERE enquiry_id = $1 ORDER BY seq`, enquiryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var data []byte
		if err := rows.Scan(&e.EnquiryID, &e.Timestamp, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &e.Data); err != nil {
			return nil, fmt.Errorf("failed to decode audit data: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the pool.
func (s *PostgresSink) Close() error {
	s.db.Close()
	return nil
}
