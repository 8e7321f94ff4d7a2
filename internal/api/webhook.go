// Package api exposes the agent over HTTP: conversational webhook
// endpoints for customer channels and an authenticated admin surface for
// inspecting orders, interactions, and the index.
package api

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crumbhq/crumb/internal/agent"
	"github.com/crumbhq/crumb/internal/ingest"
	"github.com/crumbhq/crumb/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// QueryRouter answers one user utterance for a session. Implemented by
// agent.Router.
type QueryRouter interface {
	Route(ctx context.Context, sessionID, text string) (string, error)
}

// Deps holds the dependencies of the HTTP surface.
type Deps struct {
	Router  QueryRouter
	Store   *storage.Store
	Indexer *ingest.Indexer
	Token   string
}

// NewHandler builds the full HTTP handler. The webhook endpoints are open
// (messaging providers cannot send bearer tokens); /admin is guarded.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/webhook", handleWebhook(deps))
	r.Post("/twilio", handleTwilio(deps))

	r.Route("/admin", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/orders", handleListOrders(deps))
		r.Get("/orders/{id}", handleGetOrder(deps))
		r.Get("/interactions", handleListInteractions(deps))
		r.Get("/interactions/{id}", handleGetInteraction(deps))
		r.Post("/documents", handleSubmitDocument(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// WebhookRequest is the JSON channel payload.
type WebhookRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// WebhookResponse carries the agent's reply. SessionID echoes (or assigns)
// the conversation id so clients can keep the thread going.
type WebhookResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

func handleWebhook(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req WebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		reply, err := deps.Router.Route(r.Context(), req.SessionID, req.Message)
		if errors.Is(err, agent.ErrEmptyQuery) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to answer: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(WebhookResponse{SessionID: req.SessionID, Reply: reply})
	}
}

// twiml is the Twilio messaging response envelope.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// handleTwilio serves Twilio's webhook: an incoming SMS/WhatsApp message as
// a form post, answered with TwiML. The sender's number is the session id,
// so each phone number is its own conversation.
func handleTwilio(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid form body: %v", err)
			return
		}

		body := r.PostFormValue("Body")
		from := r.PostFormValue("From")
		if from == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "From is required")
			return
		}

		reply, err := deps.Router.Route(r.Context(), from, body)
		if errors.Is(err, agent.ErrEmptyQuery) {
			reply = "Please send a message and I'll be happy to help."
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to answer: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, xml.Header)
		xml.NewEncoder(w).Encode(twiml{Message: reply})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
