package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/crumbhq/crumb/internal/retrieval"
)

// ProductMarker prefixes the name line of every product chunk in the index.
const ProductMarker = "Product:"

// Searcher is the semantic lookup used when direct name matching fails.
// Implemented by retrieval.Retriever.
type Searcher interface {
	Search(ctx context.Context, query, section string, k int, minScore float64) ([]retrieval.Hit, error)
}

// Validator resolves a free-form product phrase against the catalog, first
// by direct name comparison and then by semantic search over the product
// index.
type Validator struct {
	catalog  *Catalog
	searcher Searcher
	minScore float64
}

// NewValidator creates a Validator. searcher may be nil, in which case only
// direct matching is available. minScore gates the semantic fallback.
func NewValidator(catalog *Catalog, searcher Searcher, minScore float64) *Validator {
	return &Validator{catalog: catalog, searcher: searcher, minScore: minScore}
}

// Validate resolves phrase to a catalog entry. Search failures degrade to a
// miss rather than surfacing an error: an unresolvable product is answered
// conversationally, never with a transport failure.
func (v *Validator) Validate(ctx context.Context, phrase string) (Entry, bool) {
	phrase = Normalize(phrase)
	if phrase == "" {
		return Entry{}, false
	}

	if e, ok := v.direct(phrase); ok {
		return e, true
	}

	if v.searcher == nil {
		return Entry{}, false
	}

	hits, err := v.searcher.Search(ctx, phrase, retrieval.SectionProduct, 1, v.minScore)
	if err != nil {
		slog.Warn("product validation search failed", "phrase", phrase, "error", err)
		return Entry{}, false
	}
	if len(hits) == 0 {
		return Entry{}, false
	}

	name, ok := productNameFromChunk(hits[0].Text)
	if !ok {
		return Entry{}, false
	}
	if e, ok := v.catalog.ByName(name); ok {
		return e, true
	}
	// The chunk name may carry extra words; fall back to the same
	// containment matching used for the direct pass.
	return v.direct(Normalize(name))
}

// direct matches the phrase against catalog names word by word, tolerating
// plural forms on either side.
func (v *Validator) direct(phrase string) (Entry, bool) {
	phraseWords := singularizeAll(strings.Fields(phrase))

	for _, e := range v.catalog.Entries() {
		nameWords := singularizeAll(strings.Fields(Normalize(e.Name)))
		if containsAll(phraseWords, nameWords) || containsAll(nameWords, phraseWords) {
			return e, true
		}
	}
	return Entry{}, false
}

func singularizeAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = Singularize(w)
	}
	return out
}

// containsAll reports whether every word of needle appears in haystack.
func containsAll(haystack, needle []string) bool {
	if len(needle) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(haystack))
	for _, w := range haystack {
		set[w] = struct{}{}
	}
	for _, w := range needle {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// productNameFromChunk extracts the name from an indexed product chunk,
// which starts with a "Product: <name>" line.
func productNameFromChunk(chunk string) (string, bool) {
	line, _, _ := strings.Cut(chunk, "\n")
	name, ok := strings.CutPrefix(line, ProductMarker)
	if !ok {
		return "", false
	}
	name = strings.TrimSpace(name)
	return name, name != ""
}
