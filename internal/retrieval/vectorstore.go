package retrieval

import (
	"context"
	"time"
)

// Section values partition the index: product chunks answer availability and
// ordering, faq chunks answer policy questions.
const (
	SectionProduct = "product"
	SectionFAQ     = "faq"
)

// VectorStore is the interface for vector storage and similarity search
// backends. Two implementations exist: SQLiteStore (brute-force cosine over
// the shared database, the default) and ChromemStore (persistent chromem-go
// collections).
//
// The section parameter restricts search and counting to one index
// partition; an empty section means all records.
type VectorStore interface {
	// Insert adds records to the index.
	Insert(ctx context.Context, records []Record) error

	// Search returns the top-K records most similar to vector within the
	// given section.
	Search(ctx context.Context, vector []float32, topK int, section string) ([]ScoredRecord, error)

	// Delete removes a record by ID.
	Delete(ctx context.Context, id string) error

	// Count returns the number of records in the given section.
	Count(section string) (int, error)

	// ExportAll returns every record, for migration between backends.
	// Backends without full enumeration may return an error.
	ExportAll() ([]Record, error)
}

// Record is a single embedded text chunk.
type Record struct {
	ID        string
	SourceID  string
	Section   string
	TextChunk string
	Embedding []float32
	CreatedAt time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
