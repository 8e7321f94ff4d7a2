package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/crumbhq/crumb/internal/retrieval"
	"github.com/crumbhq/crumb/internal/storage"
)

type mockMenuSearcher struct {
	hits []retrieval.Hit
	err  error

	lastSection string
	lastK       int
}

func (m *mockMenuSearcher) Search(_ context.Context, _ string, section string, k int, _ float64) ([]retrieval.Hit, error) {
	m.lastSection = section
	m.lastK = k
	return m.hits, m.err
}

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{
		Store:    store,
		Router:   &echoRouter{},
		Searcher: &mockMenuSearcher{},
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_Ask(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAsk(deps)

	req := makeCallToolRequest("ask", map[string]interface{}{
		"message": "what time do you open?",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "reply to: what time do you open?" {
		t.Fatalf("unexpected reply: %s", got)
	}

	router := deps.Router.(*echoRouter)
	if len(router.sessions) != 1 || router.sessions[0] != "mcp" {
		t.Fatalf("expected default session 'mcp', got %v", router.sessions)
	}
}

func TestMCPTool_Ask_MissingMessage(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAsk(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error for missing message")
	}
}

func TestMCPTool_SearchMenu(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	searcher := &mockMenuSearcher{
		hits: []retrieval.Hit{
			{ID: "c1", Text: "Product: Croissant\nPrice: 1200", Score: 0.92},
			{ID: "c2", Text: "Product: Baguette\nPrice: 900", Score: 0.7},
		},
	}
	deps.Searcher = searcher
	handler := mcpSearchMenu(deps)

	req := makeCallToolRequest("search_menu", map[string]interface{}{
		"query": "pastries",
		"limit": 2,
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var items []struct {
		ID    string  `json:"id"`
		Text  string  `json:"text"`
		Score float32 `json:"score"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &items); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(items) != 2 || items[0].ID != "c1" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if searcher.lastSection != retrieval.SectionProduct {
		t.Fatalf("expected product section, got %q", searcher.lastSection)
	}
	if searcher.lastK != 2 {
		t.Fatalf("expected limit 2, got %d", searcher.lastK)
	}
}

func TestMCPTool_SearchMenu_NoHits(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchMenu(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_menu", map[string]interface{}{
		"query": "anything",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "[]" {
		t.Fatalf("expected empty array, got %s", got)
	}
}

func TestMCPTool_SearchMenu_SearchError(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Searcher = &mockMenuSearcher{err: errors.New("index offline")}
	handler := mcpSearchMenu(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_menu", map[string]interface{}{
		"query": "pastries",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error")
	}
}

func TestMCPTool_ListOrders(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpListOrders(deps)

	if _, err := store.RecordOrder("croissant", 2, storage.OrderPending); err != nil {
		t.Fatal(err)
	}

	result, err := handler(context.Background(), makeCallToolRequest("list_orders", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var orders []storage.Order
	if err := json.Unmarshal([]byte(toolText(t, result)), &orders); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(orders) != 1 || orders[0].ProductID != "croissant" || orders[0].Quantity != 2 {
		t.Fatalf("unexpected orders: %+v", orders)
	}
}

func TestMCPTool_ListOrders_Empty(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpListOrders(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_orders", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "[]" {
		t.Fatalf("expected empty array, got %s", got)
	}
}
