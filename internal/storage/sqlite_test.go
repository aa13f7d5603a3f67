package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/weaveai/weave/internal/models"
)

func newTestStorage(t *testing.T, opts ...Option) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "content.db"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_ContentAddressing(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	data := []byte("Warranty covers parts and labour for 24 months.")
	hash, err := store.PutContent(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if hash != ContentHash(data) {
		t.Errorf("hash = %s, want %s", hash, ContentHash(data))
	}
	again, err := store.PutContent(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if again != hash {
		t.Errorf("same bytes produced different hash: %s vs %s", again, hash)
	}
	got, err := store.GetContent(ctx, hash)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Errorf("got %q", got)
	}
}

func TestSQLiteStorage_GetContentUnknownHash(t *testing.T) {
	store := newTestStorage(t)
	got, err := store.GetContent(context.Background(), ContentHash([]byte("never stored")))
	if err == nil {
		t.Fatalf("expected NotFoundError, got content %q", got)
	}
	if got != nil {
		t.Errorf("expected nil content, got %q", got)
	}
	var nf *models.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "content" {
		t.Errorf("expected content NotFoundError, got %v", err)
	}
}

func TestSQLiteStorage_DocumentLifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	hashA, _ := store.PutContent(ctx, []byte("section a"))
	hashB, _ := store.PutContent(ctx, []byte("section b"))
	docA := &models.Document{Name: "warranty.md", Section: "Terms", ContentHash: hashA, ApprovedBy: "legal"}
	docB := &models.Document{Name: "warranty.md", Section: "Claims", ContentHash: hashB, ApprovedBy: "legal"}
	for _, d := range []*models.Document{docA, docB} {
		if err := store.CreateDocument(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	if docA.ID == "" || docA.ApprovedAt.IsZero() || docA.Status != models.StatusActive {
		t.Errorf("defaults not applied: %+v", docA)
	}

	approved, err := store.ListApprovedDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(approved) != 2 {
		t.Fatalf("expected 2 approved docs, got %d", len(approved))
	}

	if err := store.ArchiveDocument(ctx, docA.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.ArchiveDocument(ctx, docA.ID); err != nil {
		t.Errorf("archiving twice should be a no-op, got %v", err)
	}
	approved, _ = store.ListApprovedDocuments(ctx)
	if len(approved) != 1 || approved[0].ID != docB.ID {
		t.Errorf("archived document still listed: %+v", approved)
	}

	got, err := store.GetDocument(ctx, docA.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusArchived || got.ContentHash != hashA {
		t.Errorf("got %+v", got)
	}

	active, _ := store.CountDocuments(ctx, models.StatusActive)
	total, _ := store.CountDocuments(ctx, "")
	if active != 1 || total != 2 {
		t.Errorf("counts: active=%d total=%d", active, total)
	}
}

func TestSQLiteStorage_ArchiveByName(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	for i, name := range []string{"pricing.md", "pricing.md", "faq.md"} {
		hash, _ := store.PutContent(ctx, []byte{byte('a' + i)})
		if err := store.CreateDocument(ctx, &models.Document{Name: name, ContentHash: hash, ApprovedBy: "ops"}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := store.ArchiveDocumentsByName(ctx, "pricing.md")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("archived %d, want 2", n)
	}
	approved, _ := store.ListApprovedDocuments(ctx)
	if len(approved) != 1 || approved[0].Name != "faq.md" {
		t.Errorf("approved = %+v", approved)
	}
}

func TestSQLiteStorage_Errors(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.ArchiveDocument(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("archive missing: got %v", err)
	}
	if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("get missing: got %v", err)
	}
	if err := store.CreateDocument(ctx, &models.Document{Name: "x", ApprovedBy: "y", ContentHash: "not-a-hash"}); err == nil {
		t.Error("expected error for invalid content hash")
	}
	if err := store.CreateDocument(ctx, &models.Document{Name: "x", ContentHash: ContentHash([]byte("x"))}); err == nil {
		t.Error("expected error for missing approver")
	}
}

func TestSQLiteStorage_DocumentsImmutable(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	hash, _ := store.PutContent(ctx, []byte("immutable"))
	doc := &models.Document{Name: "a", ContentHash: hash, ApprovedBy: "b"}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.ExecContext(ctx, `UPDATE documents SET content_hash = ? WHERE id = ?`, "x", doc.ID); err == nil {
		t.Error("updating content_hash should be rejected")
	}
	if err := store.ArchiveDocument(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.ExecContext(ctx, `UPDATE documents SET status = 'active' WHERE id = ?`, doc.ID); err == nil {
		t.Error("reactivating an archived document should be rejected")
	}
}

type memBlobs struct {
	data map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, hash string, data []byte) error {
	m.data[hash] = append([]byte(nil), data...)
	return nil
}

func (m *memBlobs) Get(_ context.Context, hash string) ([]byte, error) {
	d, ok := m.data[hash]
	if !ok {
		return nil, &models.NotFoundError{Kind: "content", Key: hash}
	}
	return d, nil
}

func TestSQLiteStorage_WithBlobStore(t *testing.T) {
	blobs := &memBlobs{data: map[string][]byte{}}
	store := newTestStorage(t, WithBlobStore(blobs))
	hash, err := store.PutContent(context.Background(), []byte("external"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := blobs.data[hash]; !ok {
		t.Error("content should be written to the configured blob store")
	}
}

func TestValidHash(t *testing.T) {
	if !ValidHash(ContentHash([]byte("x"))) {
		t.Error("ContentHash output should be valid")
	}
	for _, s := range []string{"", "abc", "ZZ" + ContentHash(nil)[2:]} {
		if ValidHash(s) {
			t.Errorf("ValidHash(%q) = true", s)
		}
	}
}
