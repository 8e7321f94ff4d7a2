package intent

import (
	"regexp"
	"strings"
)

// KeywordSet matches whole words from a fixed list, case-insensitive. The
// router uses it to gate the retrieval tiers so queries with no domain
// vocabulary skip straight to the generative fallback.
type KeywordSet struct {
	expr *regexp.Regexp
}

// NewKeywordSet builds a matcher for the given words. Returns nil for an
// empty list, which callers treat as "no gate".
func NewKeywordSet(words []string) *KeywordSet {
	if len(words) == 0 {
		return nil
	}
	alternatives := make([]string, len(words))
	for i, w := range words {
		alternatives[i] = regexp.QuoteMeta(w)
	}
	return &KeywordSet{
		expr: regexp.MustCompile(`(?i)\b(` + strings.Join(alternatives, "|") + `)\b`),
	}
}

// Match reports whether text contains any of the set's words.
func (k *KeywordSet) Match(text string) bool {
	return k.expr.MatchString(text)
}
