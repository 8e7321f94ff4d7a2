package retrieval

import (
	"context"
	"time"
)

// Hit is a retrieved chunk with its similarity score.
type Hit struct {
	ID        string
	SourceID  string
	Section   string
	Text      string
	Score     float32
	CreatedAt time.Time
}

// Retriever combines embedding and vector search to find relevant chunks.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Search embeds the query and returns the top-K most similar chunks in the
// given section. Hits scoring below minScore are dropped, so callers can
// treat an empty result as "nothing relevant enough".
func (r *Retriever) Search(ctx context.Context, query, section string, k int, minScore float64) ([]Hit, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.Search(ctx, vec, k, section)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(scored))
	for _, s := range scored {
		if float64(s.Score) < minScore {
			continue
		}
		hits = append(hits, Hit{
			ID:        s.ID,
			SourceID:  s.SourceID,
			Section:   s.Section,
			Text:      s.TextChunk,
			Score:     s.Score,
			CreatedAt: s.CreatedAt,
		})
	}
	return hits, nil
}
