package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/crumbhq/crumb/internal/agent"
	"github.com/crumbhq/crumb/internal/ingest"
	"github.com/crumbhq/crumb/internal/storage"
)

// echoRouter replies deterministically and records the sessions it served.
type echoRouter struct {
	sessions []string
}

func (e *echoRouter) Route(ctx context.Context, sessionID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", agent.ErrEmptyQuery
	}
	e.sessions = append(e.sessions, sessionID)
	return "reply to: " + text, nil
}

func newTestHandler(t *testing.T, router QueryRouter) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	deps := Deps{
		Router:  router,
		Store:   store,
		Indexer: ingest.NewIndexer(store, nil, nil),
		Token:   "admin-token",
	}
	return NewHandler(deps), store
}

func TestWebhook(t *testing.T) {
	router := &echoRouter{}
	h, _ := newTestHandler(t, router)

	body := `{"session_id":"s1","message":"what are your hours?"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp WebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.SessionID != "s1" {
		t.Errorf("session = %q", resp.SessionID)
	}
	if resp.Reply != "reply to: what are your hours?" {
		t.Errorf("reply = %q", resp.Reply)
	}
}

func TestWebhookAssignsSessionID(t *testing.T) {
	h, _ := newTestHandler(t, &echoRouter{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp WebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}
}

func TestWebhookEmptyMessage(t *testing.T) {
	h, _ := newTestHandler(t, &echoRouter{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"message":"  "}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWebhookMalformedBody(t *testing.T) {
	h, _ := newTestHandler(t, &echoRouter{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestTwilioWebhook(t *testing.T) {
	router := &echoRouter{}
	h, _ := newTestHandler(t, router)

	form := url.Values{"Body": {"I want 2 croissants"}, "From": {"+15551234567"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Response><Message>reply to: I want 2 croissants</Message></Response>") {
		t.Errorf("unexpected TwiML: %s", body)
	}
	if len(router.sessions) != 1 || router.sessions[0] != "+15551234567" {
		t.Errorf("phone number should be the session id: %v", router.sessions)
	}
}

func TestTwilioMissingFrom(t *testing.T) {
	h, _ := newTestHandler(t, &echoRouter{})

	form := url.Values{"Body": {"hello"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestTwilioEmptyBodyStillReplies(t *testing.T) {
	h, _ := newTestHandler(t, &echoRouter{})

	form := url.Values{"Body": {""}, "From": {"+15551234567"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	// Twilio expects valid TwiML even for garbage input.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Message>") {
		t.Errorf("expected a TwiML message, got %s", w.Body.String())
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	h, _ := newTestHandler(t, &echoRouter{})

	for _, path := range []string{"/admin/orders", "/admin/interactions"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d, want 401", path, w.Code)
		}

		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer wrong-token")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token: status = %d, want 401", path, w.Code)
		}
	}
}

func adminGet(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAdminListOrders(t *testing.T) {
	h, store := newTestHandler(t, &echoRouter{})

	for i := 0; i < 3; i++ {
		if _, err := store.RecordOrder("croissant", i+1, storage.OrderPending); err != nil {
			t.Fatal(err)
		}
	}

	w := adminGet(h, "/admin/orders?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var orders []storage.Order
	if err := json.Unmarshal(w.Body.Bytes(), &orders); err != nil {
		t.Fatalf("decoding orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}
	if orders[0].Quantity != 3 {
		t.Errorf("expected newest first, got %+v", orders[0])
	}
}

func TestAdminGetOrder(t *testing.T) {
	h, store := newTestHandler(t, &echoRouter{})

	id, err := store.RecordOrder("baguette", 1, storage.OrderPending)
	if err != nil {
		t.Fatal(err)
	}

	w := adminGet(h, fmt.Sprintf("/admin/orders/%d", id))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var order storage.Order
	if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
		t.Fatalf("decoding order: %v", err)
	}
	if order.ProductID != "baguette" {
		t.Errorf("order = %+v", order)
	}

	if w := adminGet(h, "/admin/orders/999"); w.Code != http.StatusNotFound {
		t.Errorf("missing order: status = %d, want 404", w.Code)
	}
	if w := adminGet(h, "/admin/orders/abc"); w.Code != http.StatusBadRequest {
		t.Errorf("bad order id: status = %d, want 400", w.Code)
	}
}

func TestAdminListInteractions(t *testing.T) {
	h, store := newTestHandler(t, &echoRouter{})

	if _, err := store.RecordInteraction("q1", "r1"); err != nil {
		t.Fatal(err)
	}

	w := adminGet(h, "/admin/interactions")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var interactions []storage.Interaction
	if err := json.Unmarshal(w.Body.Bytes(), &interactions); err != nil {
		t.Fatalf("decoding interactions: %v", err)
	}
	if len(interactions) != 1 || interactions[0].Query != "q1" {
		t.Errorf("interactions = %+v", interactions)
	}
}

func TestAdminSubmitDocument(t *testing.T) {
	h, store := newTestHandler(t, &echoRouter{})

	body := `{"title":"Store policies","content":"Returns within 7 days.","section":"faq"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/documents", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer admin-token")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["status"] != "queued" || resp["id"] == "" {
		t.Errorf("response = %v", resp)
	}

	if _, err := store.GetDocument(resp["id"]); err != nil {
		t.Errorf("document not stored: %v", err)
	}
	job, err := store.ClaimNextJob([]string{ingest.JobTypeEmbedDoc})
	if err != nil || job == nil {
		t.Errorf("embed job not queued: %v %v", job, err)
	}
}

func TestAdminSubmitDocumentValidation(t *testing.T) {
	h, _ := newTestHandler(t, &echoRouter{})

	cases := []string{
		`{"title":"t","section":"faq"}`,                  // no content
		`{"title":"t","content":"c","section":"drinks"}`, // bad section
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/admin/documents", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer admin-token")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, &echoRouter{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
