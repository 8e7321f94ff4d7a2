// Package session keeps per-conversation dialogue history in memory and
// renders the bounded context window handed to the language model.
package session

import (
	"strings"
	"sync"
)

// Speaker labels for rendered history lines.
const (
	RoleUser  = "User"
	RoleAgent = "AI"
)

// Turn is a single utterance in a conversation.
type Turn struct {
	Role string
	Text string
}

// History stores dialogue turns per session id. Safe for concurrent use.
// Sessions live for the lifetime of the process; persistence of the
// interaction log is the storage package's job.
type History struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{sessions: make(map[string][]Turn)}
}

// Append records a turn at the end of the session's history.
func (h *History) Append(sessionID, role, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sessionID] = append(h.sessions[sessionID], Turn{Role: role, Text: text})
}

// Turns returns a copy of the session's history, oldest first.
func (h *History) Turns(sessionID string) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	turns := h.sessions[sessionID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Len reports the number of turns in a session.
func (h *History) Len(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Reset discards a session's history.
func (h *History) Reset(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
}

// ContextWindow renders the session as "Role: text" lines and returns at
// most maxChars characters, keeping the suffix so the most recent turns
// always survive truncation. The cut is rune-safe.
func (h *History) ContextWindow(sessionID string, maxChars int) string {
	h.mu.RLock()
	turns := h.sessions[sessionID]
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Role + ": " + t.Text
	}
	h.mu.RUnlock()

	joined := strings.Join(lines, "\n")
	if maxChars <= 0 {
		return joined
	}

	runes := []rune(joined)
	if len(runes) <= maxChars {
		return joined
	}
	return string(runes[len(runes)-maxChars:])
}
