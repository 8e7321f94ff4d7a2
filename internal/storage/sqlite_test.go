package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsApplied(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations failed: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migration versions not strictly ascending: %v", versions)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	s := openTestStore(t)

	before, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations failed: %v", err)
	}

	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	after, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations failed: %v", err)
	}
	if len(before) != len(after) {
		t.Errorf("re-running migrate changed version count: %d -> %d", len(before), len(after))
	}
}

func TestRecordOrderMonotonicIDs(t *testing.T) {
	s := openTestStore(t)

	var prev int64
	for i := 0; i < 5; i++ {
		id, err := s.RecordOrder("croissant", 2, OrderPending)
		if err != nil {
			t.Fatalf("RecordOrder failed: %v", err)
		}
		if id <= prev {
			t.Errorf("order id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestRecordOrderRejectsNonPositiveQuantity(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.RecordOrder("croissant", 0, OrderPending); err == nil {
		t.Error("expected error for zero quantity")
	}
	if _, err := s.RecordOrder("croissant", -1, OrderPending); err == nil {
		t.Error("expected error for negative quantity")
	}
}

func TestGetOrderRoundtrip(t *testing.T) {
	s := openTestStore(t)

	id, err := s.RecordOrder("baguette", 3, OrderPending)
	if err != nil {
		t.Fatalf("RecordOrder failed: %v", err)
	}

	o, err := s.GetOrder(id)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if o.ProductID != "baguette" {
		t.Errorf("product = %q, want baguette", o.ProductID)
	}
	if o.Quantity != 3 {
		t.Errorf("quantity = %d, want 3", o.Quantity)
	}
	if o.Status != OrderPending {
		t.Errorf("status = %q, want %q", o.Status, OrderPending)
	}
	if o.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestGetOrderNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetOrder(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	s := openTestStore(t)

	for _, p := range []string{"croissant", "baguette", "brioche"} {
		if _, err := s.RecordOrder(p, 1, OrderPending); err != nil {
			t.Fatalf("RecordOrder(%s) failed: %v", p, err)
		}
	}

	orders, err := s.ListOrders(10, 0)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("got %d orders, want 3", len(orders))
	}
	if orders[0].ProductID != "brioche" {
		t.Errorf("first order = %q, want brioche (newest)", orders[0].ProductID)
	}

	page, err := s.ListOrders(1, 1)
	if err != nil {
		t.Fatalf("ListOrders with offset failed: %v", err)
	}
	if len(page) != 1 || page[0].ProductID != "baguette" {
		t.Errorf("paged result = %+v, want single baguette order", page)
	}
}

func TestRecordInteractionRoundtrip(t *testing.T) {
	s := openTestStore(t)

	id1, err := s.RecordInteraction("what are your hours?", "8am to 8pm")
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	id2, err := s.RecordInteraction("do you have croissants?", "yes")
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("interaction ids not monotonic: %d then %d", id1, id2)
	}

	got, err := s.GetInteraction(id1)
	if err != nil {
		t.Fatalf("GetInteraction failed: %v", err)
	}
	if got.Query != "what are your hours?" || got.Response != "8am to 8pm" {
		t.Errorf("unexpected interaction: %+v", got)
	}

	list, err := s.ListInteractions(10, 0)
	if err != nil {
		t.Fatalf("ListInteractions failed: %v", err)
	}
	if len(list) != 2 || list[0].InteractionID != id2 {
		t.Errorf("expected newest-first listing, got %+v", list)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	s := openTestStore(t)

	doc := Document{
		ID:        "doc-1",
		Title:     "Croissant",
		Content:   "Product: Croissant\nPrice: 1200\nButtery pastry",
		Section:   "product",
		Source:    "catalog.json",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	got, err := s.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.VectorID != "" {
		t.Errorf("vector_id = %q, want empty before embedding", got.VectorID)
	}

	if err := s.UpdateDocumentVectorID("doc-1", "vec-1"); err != nil {
		t.Fatalf("UpdateDocumentVectorID failed: %v", err)
	}
	got, err = s.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.VectorID != "vec-1" {
		t.Errorf("vector_id = %q, want vec-1", got.VectorID)
	}

	if err := s.UpdateDocumentVectorID("missing", "vec-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetDocument("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJobQueueClaimAndComplete(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "job-1", Type: "embed_doc", PayloadJSON: `{"document_id":"doc-1"}`}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	claimed, err := s.ClaimNextJob([]string{"embed_doc"})
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimed job, got nil")
	}
	if claimed.ID != "job-1" || claimed.Status != "running" {
		t.Errorf("unexpected claimed job: %+v", claimed)
	}

	// Running jobs are not claimable again.
	again, err := s.ClaimNextJob([]string{"embed_doc"})
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if again != nil {
		t.Errorf("expected no claimable job, got %+v", again)
	}

	if err := s.CompleteJob("job-1"); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}
}

func TestJobQueueFailureBackoff(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "job-1", Type: "embed_doc", PayloadJSON: `{}`, MaxAttempts: 2}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	claimed, err := s.ClaimNextJob([]string{"embed_doc"})
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextJob failed: job=%v err=%v", claimed, err)
	}

	if err := s.FailJob("job-1", "embedding engine unavailable"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}

	// First failure reschedules into the future, so nothing is runnable yet.
	next, err := s.ClaimNextJob([]string{"embed_doc"})
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if next != nil {
		t.Errorf("expected job delayed by backoff, got %+v", next)
	}

	// Second failure exhausts the budget and the job lands in failed.
	var status string
	var attempts int
	if err := s.db.QueryRow(`SELECT status, attempts FROM jobs WHERE id = 'job-1'`).Scan(&status, &attempts); err != nil {
		t.Fatalf("querying job: %v", err)
	}
	if status != "pending" || attempts != 1 {
		t.Fatalf("after first failure: status=%s attempts=%d", status, attempts)
	}

	if err := s.FailJob("job-1", "still unavailable"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}
	if err := s.db.QueryRow(`SELECT status, attempts FROM jobs WHERE id = 'job-1'`).Scan(&status, &attempts); err != nil {
		t.Fatalf("querying job: %v", err)
	}
	if status != "failed" || attempts != 2 {
		t.Errorf("after final failure: status=%s attempts=%d, want failed/2", status, attempts)
	}
}

func TestFailJobUnknownID(t *testing.T) {
	s := openTestStore(t)

	if err := s.FailJob("nope", "whatever"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
