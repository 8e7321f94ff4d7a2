package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Entry is a single sellable product.
type Entry struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
}

// Catalog holds the product list loaded from disk. It is immutable after
// Load, so it is safe for concurrent readers.
type Catalog struct {
	entries []Entry
	byName  map[string]Entry
}

type catalogFile struct {
	Products []Entry `json:"products"`
}

// Load reads a catalog JSON file. A missing file is not an error: the agent
// can still answer questions, it just cannot validate orders.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return New(file.Products), nil
}

// New builds a Catalog from entries directly. Used by tests and ingestion.
func New(entries []Entry) *Catalog {
	byName := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byName[Normalize(e.Name)] = e
	}
	return &Catalog{entries: entries, byName: byName}
}

// Entries returns the product list in file order.
func (c *Catalog) Entries() []Entry {
	return c.entries
}

// Len reports the number of products.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// ByName looks up a product by its normalized name.
func (c *Catalog) ByName(name string) (Entry, bool) {
	e, ok := c.byName[Normalize(name)]
	return e, ok
}

// Normalize lowercases and trims a product name for comparison.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FormatPrice renders a price without trailing zeros, so 2 x 3000 reads
// "6000" rather than "6000.000000".
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Singularize strips a trailing plural "s" so "croissants" matches the
// catalog entry "croissant". Words that are too short pass through.
func Singularize(word string) string {
	if len(word) > 3 && strings.HasSuffix(word, "s") {
		return word[:len(word)-1]
	}
	return word
}
