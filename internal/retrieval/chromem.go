package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
)

// Compile-time check that ChromemStore implements VectorStore.
var _ VectorStore = (*ChromemStore)(nil)

// ChromemStore is the alternative VectorStore backend, persisting vectors in
// chromem-go collections (one per section) instead of the shared SQLite
// database. Selected via vector.backend = "chromem".
type ChromemStore struct {
	mu sync.RWMutex
	db *chromem.DB
}

// noEmbedFunc satisfies chromem's collection API. All embeddings are
// precomputed by the Embedder, so this is never reached.
func noEmbedFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding function not configured: vectors must be precomputed")
}

// NewChromemStore opens (or creates) the persistent store at
// dataDir/vectorstore/.
func NewChromemStore(dataDir string) (*ChromemStore, error) {
	dir := filepath.Join(dataDir, "vectorstore")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating vectorstore dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("opening vectorstore: %w", err)
	}
	return &ChromemStore{db: db}, nil
}

func (s *ChromemStore) collection(section string) (*chromem.Collection, error) {
	if section == "" {
		return nil, fmt.Errorf("chromem backend requires a section")
	}
	name := "chunks_" + section
	col := s.db.GetCollection(name, noEmbedFunc)
	if col == nil {
		var err error
		col, err = s.db.CreateCollection(name, nil, noEmbedFunc)
		if err != nil {
			return nil, fmt.Errorf("creating collection %s: %w", name, err)
		}
	}
	return col, nil
}

// Insert adds records to their per-section collections.
func (s *ChromemStore) Insert(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		col, err := s.collection(r.Section)
		if err != nil {
			return err
		}
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		doc := chromem.Document{
			ID:        r.ID,
			Content:   r.TextChunk,
			Embedding: r.Embedding,
			Metadata: map[string]string{
				"source_id":  r.SourceID,
				"section":    r.Section,
				"created_at": createdAt.Format(time.RFC3339),
			},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("adding document %s: %w", r.ID, err)
		}
	}
	return nil
}

// Search queries the section's collection with a precomputed vector.
func (s *ChromemStore) Search(ctx context.Context, vector []float32, topK int, section string) ([]ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, err := s.collection(section)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	out := make([]ScoredRecord, 0, len(results))
	for _, r := range results {
		rec := Record{
			ID:        r.ID,
			SourceID:  r.Metadata["source_id"],
			Section:   section,
			TextChunk: r.Content,
			Embedding: r.Embedding,
		}
		if t, err := time.Parse(time.RFC3339, r.Metadata["created_at"]); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, ScoredRecord{Record: rec, Score: r.Similarity})
	}
	return out, nil
}

// Delete removes a record by ID, trying each section's collection.
func (s *ChromemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, section := range []string{SectionProduct, SectionFAQ} {
		col, err := s.collection(section)
		if err != nil {
			return err
		}
		if _, err := col.GetByID(ctx, id); err != nil {
			continue
		}
		return col.Delete(ctx, nil, nil, id)
	}
	return fmt.Errorf("record %s not found", id)
}

// Count returns the number of records in the given section, or the total
// across sections when section is empty.
func (s *ChromemStore) Count(section string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if section != "" {
		col, err := s.collection(section)
		if err != nil {
			return 0, err
		}
		return col.Count(), nil
	}

	total := 0
	for _, sec := range []string{SectionProduct, SectionFAQ} {
		col, err := s.collection(sec)
		if err != nil {
			return 0, err
		}
		total += col.Count()
	}
	return total, nil
}

// ExportAll is not supported: chromem-go does not expose full enumeration.
// Migrate from the SQLite backend instead.
func (s *ChromemStore) ExportAll() ([]Record, error) {
	return nil, fmt.Errorf("export not supported by the chromem backend")
}
