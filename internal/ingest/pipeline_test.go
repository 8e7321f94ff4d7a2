package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/crumbhq/crumb/internal/catalog"
	"github.com/crumbhq/crumb/internal/retrieval"
	"github.com/crumbhq/crumb/internal/storage"
)

type fixedEngine struct {
	err error
}

func (f *fixedEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	// Deterministic toy embedding keyed on the first byte.
	if len(text) == 0 {
		return []float32{0, 0}, nil
	}
	return []float32{float32(text[0]), 1}, nil
}

func newTestIndexer(t *testing.T, engine retrieval.EmbeddingEngine) (*Indexer, *storage.Store, retrieval.VectorStore) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	vectors := retrieval.NewSQLiteStore(store.DB())
	return NewIndexer(store, retrieval.NewEmbedder(engine), vectors), store, vectors
}

func TestIndexCatalog(t *testing.T) {
	ix, _, vectors := newTestIndexer(t, &fixedEngine{})

	c := catalog.New([]catalog.Entry{
		{ID: "croissant", Name: "Croissant", Price: 1200},
		{ID: "baguette", Name: "Baguette", Price: 2500},
	})

	n, err := ix.IndexCatalog(context.Background(), c)
	if err != nil {
		t.Fatalf("IndexCatalog failed: %v", err)
	}
	if n != 2 {
		t.Errorf("indexed %d chunks, want 2", n)
	}

	count, err := vectors.Count(retrieval.SectionProduct)
	if err != nil || count != 2 {
		t.Errorf("product section count = %d (%v), want 2", count, err)
	}
}

func TestIndexChunksEmbedFailure(t *testing.T) {
	ix, _, vectors := newTestIndexer(t, &fixedEngine{err: errors.New("engine down")})

	_, err := ix.IndexChunks(context.Background(), []Chunk{
		{ID: "c1", Section: retrieval.SectionFAQ, Text: "P: q\nR: a"},
	})
	if err == nil {
		t.Fatal("expected error when embedding fails")
	}

	count, _ := vectors.Count("")
	if count != 0 {
		t.Errorf("failed batch must not leave partial vectors, count = %d", count)
	}
}

func TestSubmitDocumentAndWorker(t *testing.T) {
	ix, store, vectors := newTestIndexer(t, &fixedEngine{})

	docID, err := ix.SubmitDocument("Store policies", "We accept returns within 7 days.", retrieval.SectionFAQ, "admin")
	if err != nil {
		t.Fatalf("SubmitDocument failed: %v", err)
	}

	doc, err := store.GetDocument(docID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc.VectorID != "" {
		t.Error("document should not be embedded before the worker runs")
	}

	w := NewWorker(ix)
	w.drain(context.Background())

	doc, err = store.GetDocument(docID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc.VectorID == "" {
		t.Error("worker did not link the document to its vector")
	}

	count, _ := vectors.Count(retrieval.SectionFAQ)
	if count == 0 {
		t.Error("worker did not index the document")
	}

	// Job is done; nothing left to claim.
	job, err := store.ClaimNextJob([]string{JobTypeEmbedDoc})
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if job != nil {
		t.Errorf("queue should be empty, got %+v", job)
	}
}

func TestWorkerFailedJobRetries(t *testing.T) {
	engine := &fixedEngine{err: errors.New("engine down")}
	ix, store, _ := newTestIndexer(t, engine)

	if _, err := ix.SubmitDocument("doc", "text", retrieval.SectionFAQ, "admin"); err != nil {
		t.Fatalf("SubmitDocument failed: %v", err)
	}

	w := NewWorker(ix)
	w.drain(context.Background())

	// The failed job is rescheduled with backoff rather than lost.
	var status string
	if err := store.DB().QueryRow(`SELECT status FROM jobs`).Scan(&status); err != nil {
		t.Fatalf("querying job: %v", err)
	}
	if status != "pending" {
		t.Errorf("job status = %q, want pending for retry", status)
	}
}

func TestEmbedDocumentProductSection(t *testing.T) {
	ix, store, _ := newTestIndexer(t, &fixedEngine{})

	docID, err := ix.SubmitDocument("Cinnamon Roll", "Sweet, sticky, 1800", retrieval.SectionProduct, "admin")
	if err != nil {
		t.Fatalf("SubmitDocument failed: %v", err)
	}

	NewWorker(ix).drain(context.Background())

	doc, err := store.GetDocument(docID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}

	// The indexed chunk must carry the product marker so order validation
	// can resolve it.
	var text string
	if err := store.DB().QueryRow(`SELECT text_chunk FROM chunk_vectors WHERE id = ?`, doc.VectorID).Scan(&text); err != nil {
		t.Fatalf("querying chunk: %v", err)
	}
	if !strings.HasPrefix(text, "Product: Cinnamon Roll") {
		t.Errorf("chunk = %q", text)
	}
}
