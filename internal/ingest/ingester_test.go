package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/internal/retrieval"
	"github.com/weaveai/weave/internal/storage"
)

var fixedNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestIngester(t *testing.T) (*Ingester, *storage.SQLiteStorage, *retrieval.BleveIndex) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "content.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	index, err := retrieval.NewMemoryBleveIndex()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { index.Close() })
	return NewIngester(store, index, 50, 5, WithClock(func() time.Time { return fixedNow })), store, index
}

func TestIngestText(t *testing.T) {
	ctx := context.Background()
	ing, store, index := newTestIngester(t)

	docs, err := ing.IngestText(ctx, "warranty.md", "# Coverage\nParts are covered for 24 months.\n# Claims\nEmail support with your order number.", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].Section != "Coverage" || docs[1].Section != "Claims" {
		t.Errorf("sections = %q, %q", docs[0].Section, docs[1].Section)
	}
	for _, d := range docs {
		if d.ApprovedBy != "alice" || !d.ApprovedAt.Equal(fixedNow) || !d.Active() {
			t.Errorf("unexpected document %+v", d)
		}
	}

	content, err := store.GetContent(ctx, docs[0].ContentHash)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "Parts are covered for 24 months." {
		t.Errorf("content = %q", content)
	}

	res, err := index.RetrieveReferences(ctx, "order number", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.References) != 1 {
		t.Fatalf("got %d references, want 1", len(res.References))
	}
	ref := res.References[0]
	if ref.RefID != docs[1].ID || ref.ContentHash != docs[1].ContentHash || ref.ChunkIndex != 1 {
		t.Errorf("reference = %+v, doc = %+v", ref, docs[1])
	}
	want := models.ReferenceMetadata{DocumentName: "warranty.md", Section: "Claims", LastUpdated: "2025-03-14"}
	if ref.Metadata != want {
		t.Errorf("metadata = %+v, want %+v", ref.Metadata, want)
	}
}

func TestIngestText_validation(t *testing.T) {
	ctx := context.Background()
	ing, _, _ := newTestIngester(t)
	tests := []struct {
		name, doc, text, approver string
	}{
		{"no name", "", "text", "alice"},
		{"no approver", "faq.md", "text", ""},
		{"no content", "faq.md", "# Heading only\n", "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ing.IngestText(ctx, tt.doc, tt.text, tt.approver); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIngestFile_supersedesPreviousVersion(t *testing.T) {
	ctx := context.Background()
	ing, store, index := newTestIngester(t)
	path := filepath.Join(t.TempDir(), "pricing.md")

	if err := os.WriteFile(path, []byte("Basic plan costs 99 euros."), 0644); err != nil {
		t.Fatal(err)
	}
	first, err := ing.IngestFile(ctx, path, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("Basic plan costs 109 euros."), 0644); err != nil {
		t.Fatal(err)
	}
	second, err := ing.IngestFile(ctx, path, "bob")
	if err != nil {
		t.Fatal(err)
	}

	old, err := store.GetDocument(ctx, first[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if old.Active() {
		t.Error("previous version should be archived")
	}
	active, err := store.ListApprovedDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != second[0].ID {
		t.Errorf("active documents = %+v", active)
	}
	if n, _ := index.Count(); n != 1 {
		t.Errorf("index count = %d, want 1", n)
	}
}

func TestArchiveByName(t *testing.T) {
	ctx := context.Background()
	ing, store, index := newTestIngester(t)
	if _, err := ing.IngestText(ctx, "faq.md", "# One\nfirst\n# Two\nsecond", "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := ing.IngestText(ctx, "other.md", "unrelated", "alice"); err != nil {
		t.Fatal(err)
	}

	n, err := ing.ArchiveByName(ctx, "faq.md")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("archived %d, want 2", n)
	}
	if c, _ := store.CountDocuments(ctx, models.StatusActive); c != 1 {
		t.Errorf("active count = %d, want 1", c)
	}
	if c, _ := index.Count(); c != 1 {
		t.Errorf("index count = %d, want 1", c)
	}
	if n, err := ing.ArchiveByName(ctx, "faq.md"); err != nil || n != 0 {
		t.Errorf("second archive = %d, %v", n, err)
	}
}

func TestArchiveDocument_unknown(t *testing.T) {
	ing, _, _ := newTestIngester(t)
	err := ing.ArchiveDocument(context.Background(), "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestHandleChangeAndRemove(t *testing.T) {
	ing, store, _ := newTestIngester(t)
	dir := t.TempDir()
	md := filepath.Join(dir, "terms.md")
	if err := os.WriteFile(md, []byte("Payment is due in 30 days."), 0644); err != nil {
		t.Fatal(err)
	}
	png := filepath.Join(dir, "logo.png")
	if err := os.WriteFile(png, []byte{0x89, 'P', 'N', 'G'}, 0644); err != nil {
		t.Fatal(err)
	}

	onChange := ing.HandleChange("inbox")
	onChange(md)
	onChange(png)
	ctx := context.Background()
	docs, err := store.ListApprovedDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Name != "terms.md" || docs[0].ApprovedBy != "inbox" {
		t.Fatalf("documents = %+v", docs)
	}

	ing.HandleRemove(md)
	if c, _ := store.CountDocuments(ctx, models.StatusActive); c != 0 {
		t.Errorf("active count after remove = %d", c)
	}
}

// failingIndex fails the failOn-th AddReference call.
type failingIndex struct {
	ReferenceWriter
	failOn int
	calls  int
}

func (f *failingIndex) AddReference(ctx context.Context, ref models.DocumentReference, text string) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("index unavailable")
	}
	return f.ReferenceWriter.AddReference(ctx, ref, text)
}

func TestReplaceText_failureKeepsPreviousVersion(t *testing.T) {
	ctx := context.Background()
	_, store, index := newTestIngester(t)
	const v1 = "# Coverage\nParts are covered for 24 months.\n# Claims\nEmail support with your order number."
	const v2 = "# Coverage\nParts are covered for 36 months.\n# Claims\nCall support with your order number."

	good := NewIngester(store, index, 50, 5)
	first, err := good.ReplaceText(ctx, "warranty.md", v1, "alice")
	if err != nil {
		t.Fatal(err)
	}

	flaky := NewIngester(store, &failingIndex{ReferenceWriter: index, failOn: 2}, 50, 5)
	docs, err := flaky.ReplaceText(ctx, "warranty.md", v2, "alice")
	if err == nil {
		t.Fatal("expected error")
	}
	if docs != nil {
		t.Errorf("failed ingest returned %d documents", len(docs))
	}

	active, err := store.ListApprovedDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	previous := map[string]bool{first[0].ID: true, first[1].ID: true}
	if len(active) != 2 || !previous[active[0].ID] || !previous[active[1].ID] {
		t.Fatalf("active documents after failed replace = %+v", active)
	}
	content, err := store.GetContent(ctx, first[0].ContentHash)
	if err != nil || string(content) != "Parts are covered for 24 months." {
		t.Errorf("previous content = %q, %v", content, err)
	}
	if n, _ := index.Count(); n != 2 {
		t.Errorf("index count = %d, want 2", n)
	}
	res, err := index.RetrieveReferences(ctx, "36 months", 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, ref := range res.References {
		if !previous[ref.RefID] {
			t.Errorf("rolled back reference still indexed: %+v", ref)
		}
	}
}

func TestReplaceText_supersedes(t *testing.T) {
	ctx := context.Background()
	ing, store, _ := newTestIngester(t)
	if _, err := ing.ReplaceText(ctx, "faq.md", "Delivery takes a week.", "alice"); err != nil {
		t.Fatal(err)
	}
	second, err := ing.ReplaceText(ctx, "faq.md", "Delivery takes three days.", "alice")
	if err != nil {
		t.Fatal(err)
	}
	active, err := store.ListApprovedDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != second[0].ID {
		t.Errorf("active documents = %+v", active)
	}
}

func TestNewIngester_nilLogger(t *testing.T) {
	_, store, index := newTestIngester(t)
	ing := NewIngester(store, index, 50, 5, WithLogger(nil))
	if _, err := ing.IngestText(context.Background(), "faq.md", "Delivery takes a week.", "alice"); err != nil {
		t.Fatal(err)
	}
	ing.HandleRemove("faq.md")
}
