package intent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// minProductLen is the shortest product phrase worth looking up; anything
// shorter is noise left over after stripping quantities and stopwords.
const minProductLen = 3

// Candidate is the structured result of scanning a query for a purchase.
// Intent reports whether a purchase verb was present at all; Product and
// Quantity are only meaningful when Intent is true and Product is non-empty.
type Candidate struct {
	Product  string
	Quantity int
	Intent   bool
}

// Extractor scans free-form queries for purchase intent using locale word
// lists. It is purely lexical: no model calls, deterministic output.
type Extractor struct {
	locale      Locale
	intentExpr  *regexp.Regexp
	digitExpr   *regexp.Regexp
	stopwords   map[string]struct{}
	numberWords map[string]int
}

// NewExtractor builds an Extractor for the given locale.
func NewExtractor(locale Locale) *Extractor {
	// Longest alternative first so "would like" wins over a bare "like".
	sorted := append([]string(nil), locale.IntentWords...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	alternatives := make([]string, len(sorted))
	for i, w := range sorted {
		alternatives[i] = regexp.QuoteMeta(w)
	}
	intentExpr := regexp.MustCompile(`(?i)\b(` + strings.Join(alternatives, "|") + `)\b`)

	stopwords := make(map[string]struct{}, len(locale.Stopwords))
	for _, w := range locale.Stopwords {
		stopwords[w] = struct{}{}
	}

	return &Extractor{
		locale:      locale,
		intentExpr:  intentExpr,
		digitExpr:   regexp.MustCompile(`^\d+$`),
		stopwords:   stopwords,
		numberWords: locale.NumberWords,
	}
}

// Extract scans text for a purchase. It returns a zero-value Candidate when
// no intent verb is present, and a Candidate with Intent set but an empty
// Product when a verb was found but no usable product phrase followed it.
func (e *Extractor) Extract(text string) Candidate {
	text = strings.TrimSpace(text)
	if text == "" {
		return Candidate{}
	}

	loc := e.intentExpr.FindStringIndex(text)
	if loc == nil {
		return Candidate{}
	}

	remainder := strings.ToLower(strings.TrimSpace(text[loc[1]:]))
	fields := strings.Fields(remainder)
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		if w = strings.Trim(w, ".,!?;:"); w != "" {
			words = append(words, w)
		}
	}

	// The first quantity wins, wherever it sits in the text. Consecutive
	// quantity tokens form one run whose last value counts, so "a dozen"
	// reads 12; the whole run is excluded from the product phrase.
	quantity := 0
	qStart, qEnd := -1, -1
	for i, w := range words {
		n, ok := e.quantityValue(w)
		if !ok {
			if qStart >= 0 {
				break
			}
			continue
		}
		if qStart < 0 {
			qStart = i
		}
		quantity = n
		qEnd = i + 1
	}

	product := make([]string, 0, len(words))
	for i, w := range words {
		if i >= qStart && i < qEnd {
			continue
		}
		if _, stop := e.stopwords[w]; stop {
			continue
		}
		product = append(product, w)
	}

	phrase := strings.Join(product, " ")
	if len(phrase) < minProductLen {
		phrase = ""
	}
	if quantity == 0 {
		quantity = 1
	}

	return Candidate{Product: phrase, Quantity: quantity, Intent: true}
}

// quantityValue parses w as a quantity token: a positive digit sequence or a
// number word from the locale.
func (e *Extractor) quantityValue(w string) (int, bool) {
	if e.digitExpr.MatchString(w) {
		if n, err := strconv.Atoi(w); err == nil && n > 0 {
			return n, true
		}
		return 0, false
	}
	n, ok := e.numberWords[w]
	return n, ok
}
