package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crumbhq/crumb/internal/catalog"
	"github.com/crumbhq/crumb/internal/retrieval"
	"github.com/crumbhq/crumb/internal/storage"
)

// JobTypeEmbedDoc is the queue job type for asynchronous document embedding.
const JobTypeEmbedDoc = "embed_doc"

// embedDocPayload is the JSON payload of an embed_doc job.
type embedDocPayload struct {
	DocumentID string `json:"document_id"`
}

// Indexer writes chunks into the vector index and keeps the document table
// in sync.
type Indexer struct {
	store    *storage.Store
	embedder *retrieval.Embedder
	vectors  retrieval.VectorStore
}

// NewIndexer creates an Indexer.
func NewIndexer(store *storage.Store, embedder *retrieval.Embedder, vectors retrieval.VectorStore) *Indexer {
	return &Indexer{store: store, embedder: embedder, vectors: vectors}
}

// IndexChunks embeds the chunks in one batch and inserts them into the
// vector store. Returns the number of chunks indexed.
func (ix *Indexer) IndexChunks(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}

	records := make([]retrieval.Record, len(chunks))
	now := time.Now().UTC()
	for i, c := range chunks {
		records[i] = retrieval.Record{
			ID:        c.ID,
			SourceID:  c.SourceID,
			Section:   c.Section,
			TextChunk: c.Text,
			Embedding: vectors[i],
			CreatedAt: now,
		}
	}

	if err := ix.vectors.Insert(ctx, records); err != nil {
		return 0, fmt.Errorf("inserting vectors: %w", err)
	}
	return len(records), nil
}

// IndexCatalog chunks and embeds every product. Returns the number of
// chunks indexed.
func (ix *Indexer) IndexCatalog(ctx context.Context, c *catalog.Catalog) (int, error) {
	return ix.IndexChunks(ctx, ChunkCatalog(c))
}

// IndexFAQFile loads a FAQ file, chunks it, and embeds every pair.
func (ix *Indexer) IndexFAQFile(ctx context.Context, path string) (int, error) {
	faqs, err := LoadFAQ(path)
	if err != nil {
		return 0, err
	}
	return ix.IndexChunks(ctx, ChunkFAQs(faqs, path))
}

// IndexPDF extracts a PDF's text and indexes it as FAQ-style chunks.
func (ix *Indexer) IndexPDF(ctx context.Context, path, title string) (int, error) {
	text, err := ExtractPDF(path)
	if err != nil {
		return 0, err
	}
	if title == "" {
		title = path
	}
	return ix.IndexChunks(ctx, ChunkText(title, text, path))
}

// SubmitDocument stores a document and queues it for asynchronous
// embedding. Returns the document id.
func (ix *Indexer) SubmitDocument(title, content, section, source string) (string, error) {
	doc := storage.Document{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Section:   section,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	if err := ix.store.SaveDocument(doc); err != nil {
		return "", fmt.Errorf("saving document: %w", err)
	}

	payload, err := json.Marshal(embedDocPayload{DocumentID: doc.ID})
	if err != nil {
		return "", fmt.Errorf("marshaling job payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.NewString(),
		Type:        JobTypeEmbedDoc,
		PayloadJSON: string(payload),
	}
	if err := ix.store.EnqueueJob(job); err != nil {
		return "", fmt.Errorf("enqueueing embed job: %w", err)
	}

	slog.Info("document submitted for indexing", "document", doc.ID, "section", section)
	return doc.ID, nil
}

// embedDocument processes one embed_doc job: it chunks the stored document,
// embeds it, and links the document to its first chunk.
func (ix *Indexer) embedDocument(ctx context.Context, documentID string) error {
	doc, err := ix.store.GetDocument(documentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", documentID, err)
	}

	var chunks []Chunk
	switch doc.Section {
	case retrieval.SectionFAQ:
		chunks = ChunkText(doc.Title, doc.Content, doc.ID)
	case retrieval.SectionProduct:
		chunks = []Chunk{{
			ID:       uuid.NewString(),
			SourceID: doc.ID,
			Section:  retrieval.SectionProduct,
			Text:     catalog.ProductMarker + " " + doc.Title + "\n" + doc.Content,
		}}
	default:
		return fmt.Errorf("document %s has unknown section %q", doc.ID, doc.Section)
	}

	if len(chunks) == 0 {
		return fmt.Errorf("document %s produced no chunks", doc.ID)
	}

	if _, err := ix.IndexChunks(ctx, chunks); err != nil {
		return err
	}

	return ix.store.UpdateDocumentVectorID(doc.ID, chunks[0].ID)
}
