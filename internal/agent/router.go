// Package agent routes user queries through a tiered pipeline: order
// extraction first, then product lookup, then FAQ lookup, and finally a
// generative fallback. The first tier that produces an answer wins.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/crumbhq/crumb/internal/session"
)

// ErrEmptyQuery is returned for blank input. No history or interaction is
// recorded in that case.
var ErrEmptyQuery = errors.New("agent: empty query")

// DefaultMaxContextChars bounds the rendered history window handed to tiers.
const DefaultMaxContextChars = 1000

// Query carries one user utterance through the tier pipeline.
type Query struct {
	SessionID string
	Text      string
	// Context is the rendered history window of the session, not including
	// the current utterance.
	Context string
}

// Tier attempts to answer a query. handled reports whether the tier claimed
// it; an unclaimed query falls through to the next tier. Tiers degrade
// internally instead of returning errors so that one broken dependency
// never takes the whole pipeline down.
type Tier interface {
	Name() string
	TryHandle(ctx context.Context, q Query) (reply string, handled bool)
}

// InteractionRecorder persists query/response pairs. Implemented by
// storage.Store.
type InteractionRecorder interface {
	RecordInteraction(query, response string) (int64, error)
}

// Router owns the tier pipeline and the session bookkeeping around it.
type Router struct {
	tiers           []Tier
	history         *session.History
	recorder        InteractionRecorder
	maxContextChars int
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithMaxContextChars overrides the size of the history window handed to
// tiers. Non-positive values disable truncation.
func WithMaxContextChars(n int) RouterOption {
	return func(r *Router) {
		r.maxContextChars = n
	}
}

// NewRouter creates a Router. Tiers are consulted in the given order.
// recorder may be nil, disabling persistence of the interaction log.
func NewRouter(tiers []Tier, history *session.History, recorder InteractionRecorder, opts ...RouterOption) *Router {
	r := &Router{
		tiers:           tiers,
		history:         history,
		recorder:        recorder,
		maxContextChars: DefaultMaxContextChars,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route answers one user utterance. Exactly one tier handles it; when a
// session id is present the reply is appended to the session history
// alongside the utterance, and the pair is recorded as a single interaction.
func (r *Router) Route(ctx context.Context, sessionID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyQuery
	}

	// Anonymous callers share no session: no context window, no history.
	q := Query{
		SessionID: sessionID,
		Text:      text,
	}
	if sessionID != "" {
		q.Context = r.history.ContextWindow(sessionID, r.maxContextChars)
	}

	var reply string
	handled := false
	for _, tier := range r.tiers {
		answer, ok := tier.TryHandle(ctx, q)
		if !ok {
			continue
		}
		slog.Debug("query handled", "tier", tier.Name(), "session", sessionID)
		reply = answer
		handled = true
		break
	}
	if !handled {
		// Unreachable when the generative tier is installed last, but a
		// misconfigured pipeline should still answer something.
		reply = FallbackMessage
	}

	if sessionID != "" {
		r.history.Append(sessionID, session.RoleUser, text)
		r.history.Append(sessionID, session.RoleAgent, reply)
	}

	if r.recorder != nil {
		if _, err := r.recorder.RecordInteraction(text, reply); err != nil {
			slog.Warn("failed to record interaction", "session", sessionID, "error", err)
		}
	}

	return reply, nil
}
