// Package ingest turns catalog entries, FAQ files, PDFs, and web pages into
// embedded chunks in the vector index.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/crumbhq/crumb/internal/catalog"
	"github.com/crumbhq/crumb/internal/retrieval"
)

// maxChunkChars caps free-text chunks so a single retrieval hit stays a
// readable answer.
const maxChunkChars = 800

// Chunk is one unit of indexable text.
type Chunk struct {
	ID       string
	SourceID string
	Section  string
	Text     string
}

// FAQ is a question/answer pair loaded from a FAQ file.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type faqFile struct {
	FAQs []FAQ `json:"faqs"`
}

// LoadFAQ reads a FAQ JSON file ({"faqs": [{"question", "answer"}, ...]}).
func LoadFAQ(path string) ([]FAQ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading faq file: %w", err)
	}
	var file faqFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing faq file: %w", err)
	}
	return file.FAQs, nil
}

// ChunkCatalog renders each product as a chunk. The first line carries the
// product marker so order validation can map a hit back to the catalog.
func ChunkCatalog(c *catalog.Catalog) []Chunk {
	entries := c.Entries()
	chunks := make([]Chunk, 0, len(entries))
	for _, e := range entries {
		var b strings.Builder
		b.WriteString(catalog.ProductMarker)
		b.WriteString(" ")
		b.WriteString(e.Name)
		if e.Category != "" {
			b.WriteString("\nCategory: ")
			b.WriteString(e.Category)
		}
		b.WriteString("\nPrice: ")
		b.WriteString(catalog.FormatPrice(e.Price))
		if e.Description != "" {
			b.WriteString("\n")
			b.WriteString(e.Description)
		}
		chunks = append(chunks, Chunk{
			ID:       uuid.NewString(),
			SourceID: e.ID,
			Section:  retrieval.SectionProduct,
			Text:     b.String(),
		})
	}
	return chunks
}

// ChunkFAQs renders question/answer pairs in the "P: ... R: ..." layout the
// FAQ tier expects.
func ChunkFAQs(faqs []FAQ, sourceID string) []Chunk {
	chunks := make([]Chunk, 0, len(faqs))
	for _, f := range faqs {
		q := strings.TrimSpace(f.Question)
		a := strings.TrimSpace(f.Answer)
		if q == "" || a == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:       uuid.NewString(),
			SourceID: sourceID,
			Section:  retrieval.SectionFAQ,
			Text:     "P: " + q + "\nR: " + a,
		})
	}
	return chunks
}

// ChunkText splits free-form text (from a PDF or a web page) into FAQ-style
// chunks titled after the source, so retrieval hits quote a readable
// passage.
func ChunkText(title, text, sourceID string) []Chunk {
	var chunks []Chunk
	for _, part := range splitParagraphs(text, maxChunkChars) {
		chunks = append(chunks, Chunk{
			ID:       uuid.NewString(),
			SourceID: sourceID,
			Section:  retrieval.SectionFAQ,
			Text:     "P: " + title + "\nR: " + part,
		})
	}
	return chunks
}

// splitParagraphs groups paragraphs into parts no longer than maxChars,
// splitting oversized paragraphs on rune boundaries.
func splitParagraphs(text string, maxChars int) []string {
	var parts []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		for len([]rune(para)) > maxChars {
			flush()
			runes := []rune(para)
			parts = append(parts, strings.TrimSpace(string(runes[:maxChars])))
			para = strings.TrimSpace(string(runes[maxChars:]))
		}
		if para == "" {
			continue
		}

		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(para))+1 > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(para)
	}
	flush()

	return parts
}

// ExtractPDF returns the plain text of a PDF file.
func ExtractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, reader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return b.String(), nil
}

// ExtractHTML parses an HTML document and returns its title and visible
// text. Script and style contents are skipped.
func ExtractHTML(r io.Reader) (title, text string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", fmt.Errorf("parsing html: %w", err)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				b.WriteString(s)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, strings.TrimSpace(b.String()), nil
}
