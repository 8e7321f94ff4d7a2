package intent

// Locale carries the language-specific word lists the extractor matches
// against. Keeping them as data lets a deployment swap languages without
// touching the matching logic.
type Locale struct {
	// IntentWords are verbs and verb phrases that signal a purchase intent,
	// e.g. "want" in "I want 2 croissants". Multi-word entries are allowed.
	IntentWords []string

	// NumberWords maps spelled-out quantities to their numeric value.
	NumberWords map[string]int

	// Stopwords are articles and filler words stripped from the product
	// phrase after the quantity is consumed.
	Stopwords []string

	// ProductKeywords gate the product-lookup tier: the semantic index is
	// only consulted when the query mentions the product domain at all.
	ProductKeywords []string

	// FAQKeywords gate the FAQ tier the same way.
	FAQKeywords []string
}

// English is the default locale.
func English() Locale {
	return Locale{
		// "have" is deliberately absent: "do you have croissants?" is a
		// product question, not an order.
		IntentWords: []string{
			"want", "order", "buy", "need", "give me", "get",
			"would like", "i'd like", "purchase",
		},
		NumberWords: map[string]int{
			"a": 1, "an": 1, "one": 1, "two": 2, "three": 3,
			"four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8,
			"nine": 9, "ten": 10, "dozen": 12,
		},
		Stopwords: []string{
			"a", "an", "the", "some", "of", "please", "to", "me", "for",
			"my", "your", "that", "this", "those", "these",
		},
		ProductKeywords: []string{
			"bread", "breads", "cake", "cakes", "pastry", "pastries",
			"croissant", "croissants", "muffin", "muffins", "cookie",
			"cookies", "pie", "pies", "baguette", "baguettes", "roll",
			"rolls", "menu", "sell", "price", "prices", "cost",
		},
		FAQKeywords: []string{
			"hours", "open", "opening", "close", "closing", "closed",
			"where", "located", "location", "address", "delivery",
			"deliver", "shipping", "payment", "pay", "pickup", "contact",
			"phone", "allergen", "allergens", "gluten", "vegan",
		},
	}
}
