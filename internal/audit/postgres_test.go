package audit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/weaveai/weave/internal/models"
)

func TestNewPostgresSink_requiresDSN(t *testing.T) {
	if _, err := NewPostgresSink(context.Background(), ""); !errors.Is(err, models.ErrConfig) {
		t.Errorf("got %v", err)
	}
}

// Runs only when WEAVE_TEST_POSTGRES_URL points at a scratch database.
func TestPostgresSink(t *testing.T) {
	dsn := os.Getenv("WEAVE_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("WEAVE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	sink, err := NewPostgresSink(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sink.Close() }()

	id := "ENQ-" + uuid.New().String()
	if err := sink.Append(ctx, models.AuditEntry{EnquiryID: id, Timestamp: time.Now(), Data: map[string]interface{}{"status": "qualified"}}); err != nil {
		t.Fatal(err)
	}
	entries, err := sink.Entries(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Data["status"] != "qualified" {
		t.Errorf("entries = %+v", entries)
	}
	if _, err := sink.db.Exec(ctx, `DELETE FROM audit_log WHERE enquiry_id = $1`, id); err == nil {
		t.Error("DELETE should be rejected")
	}
}
