package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/crumbhq/crumb/internal/llm"
)

// systemPrompt sets the assistant persona for the generative tier.
const systemPrompt = `You are a warm, helpful assistant for a neighborhood bakery.
Answer briefly and conversationally. Only talk about the bakery: its products,
prices, opening hours, and orders. If you don't know something, say so and
suggest asking the staff. Never invent products or prices.`

// Chatter is the chat completion port of the generative tier. Implemented
// by llm.Client.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// BuildPrompt assembles the messages for a generative answer. The session
// context precedes the question so the model can resolve follow-ups like
// "and how much is that one?".
func BuildPrompt(contextWindow, question string) []llm.Message {
	var b strings.Builder
	if contextWindow != "" {
		b.WriteString("Context: ")
		b.WriteString(contextWindow)
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")

	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// GenerateTier is the last tier: it always claims the query, answering with
// the language model or with FallbackMessage when no model is available.
type GenerateTier struct {
	chatter Chatter
}

// NewGenerateTier creates the generative tier. chatter may be nil (no API
// key configured), in which case every query gets FallbackMessage.
func NewGenerateTier(chatter Chatter) *GenerateTier {
	return &GenerateTier{chatter: chatter}
}

func (t *GenerateTier) Name() string { return "generate" }

func (t *GenerateTier) TryHandle(ctx context.Context, q Query) (string, bool) {
	if t.chatter == nil {
		return FallbackMessage, true
	}

	reply, err := t.chatter.Chat(ctx, BuildPrompt(q.Context, q.Text))
	if err != nil {
		slog.Warn("generative answer failed", "error", err)
		return FallbackMessage, true
	}
	if reply == "" {
		return FallbackMessage, true
	}
	return reply, true
}
