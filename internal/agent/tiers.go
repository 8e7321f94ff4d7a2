package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crumbhq/crumb/internal/catalog"
	"github.com/crumbhq/crumb/internal/intent"
	"github.com/crumbhq/crumb/internal/retrieval"
	"github.com/crumbhq/crumb/internal/storage"
)

// Default similarity thresholds. Product lookups tolerate slightly fuzzier
// matches than FAQ lookups, which must quote an exact stored answer.
const (
	DefaultProductMinScore = 0.8
	DefaultFAQMinScore     = 0.85
)

// AnswerMarker separates the question from the answer inside an indexed FAQ
// chunk ("P: question\nR: answer").
const AnswerMarker = "R:"

// FallbackMessage is returned when no tier can answer, including when the
// generative tier has no working model behind it.
const FallbackMessage = "I'm sorry, I can't help with that right now. " +
	"You can ask about our products, opening hours, or place an order."

// Searcher is the semantic lookup used by the product and FAQ tiers.
// Implemented by retrieval.Retriever.
type Searcher interface {
	Search(ctx context.Context, query, section string, k int, minScore float64) ([]retrieval.Hit, error)
}

// OrderRecorder persists confirmed orders. Implemented by storage.Store.
type OrderRecorder interface {
	RecordOrder(productID string, quantity int, status string) (int64, error)
}

// --- Order tier ---

// OrderTier detects purchase intent, validates the product against the
// catalog, and records the order.
type OrderTier struct {
	extractor *intent.Extractor
	validator *catalog.Validator
	recorder  OrderRecorder
}

// NewOrderTier creates the order tier. recorder may be nil, in which case
// orders are confirmed but not persisted.
func NewOrderTier(extractor *intent.Extractor, validator *catalog.Validator, recorder OrderRecorder) *OrderTier {
	return &OrderTier{extractor: extractor, validator: validator, recorder: recorder}
}

func (t *OrderTier) Name() string { return "order" }

// TryHandle claims the query when it carries a purchase intent with a
// resolvable product. An intent without a usable product phrase falls
// through: the later tiers may still answer it as a question.
func (t *OrderTier) TryHandle(ctx context.Context, q Query) (string, bool) {
	c := t.extractor.Extract(q.Text)
	if !c.Intent || c.Product == "" {
		return "", false
	}

	entry, ok := t.validator.Validate(ctx, c.Product)
	if !ok {
		return fmt.Sprintf("Sorry, we don't have %q on our menu. Ask me what we offer and I'll gladly help!", c.Product), true
	}

	var id int64
	if t.recorder != nil {
		var err error
		id, err = t.recorder.RecordOrder(entry.ID, c.Quantity, storage.OrderProcessed)
		if err != nil {
			slog.Error("failed to record order", "product", entry.ID, "quantity", c.Quantity, "error", err)
			return "Sorry, something went wrong while placing your order. Please try again in a moment.", true
		}
		slog.Info("order recorded", "order_id", id, "product", entry.ID, "quantity", c.Quantity)
	}

	total := entry.Price * float64(c.Quantity)
	if id > 0 {
		return fmt.Sprintf("Order #%d confirmed: %d x %s for a total of %s. We'll have it ready for you!",
			id, c.Quantity, entry.Name, catalog.FormatPrice(total)), true
	}
	return fmt.Sprintf("Order confirmed: %d x %s for a total of %s. We'll have it ready for you!",
		c.Quantity, entry.Name, catalog.FormatPrice(total)), true
}

// --- Product tier ---

// ProductTier answers availability and product questions from the product
// section of the index.
type ProductTier struct {
	searcher Searcher
	gate     *intent.KeywordSet
	minScore float64
}

// NewProductTier creates the product tier. gate may be nil, in which case
// every query reaches the index.
func NewProductTier(searcher Searcher, gate *intent.KeywordSet, minScore float64) *ProductTier {
	return &ProductTier{searcher: searcher, gate: gate, minScore: minScore}
}

func (t *ProductTier) Name() string { return "product" }

func (t *ProductTier) TryHandle(ctx context.Context, q Query) (string, bool) {
	if t.gate != nil && !t.gate.Match(q.Text) {
		return "", false
	}
	hits, err := t.searcher.Search(ctx, q.Text, retrieval.SectionProduct, 1, t.minScore)
	if err != nil {
		slog.Warn("product search failed", "error", err)
		return "", false
	}
	if len(hits) == 0 {
		return "", false
	}
	return hits[0].Text, true
}

// --- FAQ tier ---

// FAQTier answers policy questions by quoting the stored answer of the
// closest FAQ chunk.
type FAQTier struct {
	searcher Searcher
	gate     *intent.KeywordSet
	minScore float64
}

// NewFAQTier creates the FAQ tier. gate may be nil, in which case every
// query reaches the index.
func NewFAQTier(searcher Searcher, gate *intent.KeywordSet, minScore float64) *FAQTier {
	return &FAQTier{searcher: searcher, gate: gate, minScore: minScore}
}

func (t *FAQTier) Name() string { return "faq" }

func (t *FAQTier) TryHandle(ctx context.Context, q Query) (string, bool) {
	if t.gate != nil && !t.gate.Match(q.Text) {
		return "", false
	}
	hits, err := t.searcher.Search(ctx, q.Text, retrieval.SectionFAQ, 1, t.minScore)
	if err != nil {
		slog.Warn("faq search failed", "error", err)
		return "", false
	}
	if len(hits) == 0 {
		return "", false
	}

	answer, ok := answerFromChunk(hits[0].Text)
	if !ok {
		// A malformed chunk shouldn't silence the query.
		return "", false
	}
	return answer, true
}

// answerFromChunk returns the text after the answer marker of an FAQ chunk.
func answerFromChunk(chunk string) (string, bool) {
	_, after, found := strings.Cut(chunk, AnswerMarker)
	if !found {
		return "", false
	}
	answer := strings.TrimSpace(after)
	return answer, answer != ""
}
