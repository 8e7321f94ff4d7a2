package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/crumbhq/crumb/internal/retrieval"
	"github.com/crumbhq/crumb/internal/storage"
)

// MCPSearcher abstracts semantic menu search for the MCP layer.
type MCPSearcher interface {
	Search(ctx context.Context, query, section string, k int, minScore float64) ([]retrieval.Hit, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Router   QueryRouter
	Searcher MCPSearcher
}

// NewMCPServer creates an MCP server exposing the agent to MCP clients:
// ask a question, search the menu, and list recent orders.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"crumb",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("crumb — conversational assistant for a bakery: answers product and policy questions and places orders."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask the bakery assistant a question or place an order in natural language."),
			mcp.WithString("message", mcp.Description("The question or order, e.g. 'I want 2 croissants'"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Conversation id for follow-up questions (optional)")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("search_menu",
			mcp.WithDescription("Semantically search the product menu and return matching items."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchMenu(deps),
	)

	s.AddTool(
		mcp.NewTool("list_orders",
			mcp.WithDescription("List the most recent orders."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of orders (default 10)")),
		),
		mcpListOrders(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		sessionID := req.GetString("session_id", "mcp")

		reply, err := deps.Router.Route(ctx, sessionID, message)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to answer: %v", err)), nil
		}
		return mcpText(reply), nil
	}
}

func mcpSearchMenu(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		// No score cut: menu browsing wants the closest items even when
		// none clears the answer threshold.
		hits, err := deps.Searcher.Search(ctx, query, retrieval.SectionProduct, limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(hits) == 0 {
			return mcpText("[]"), nil
		}

		type menuResult struct {
			ID    string  `json:"id"`
			Text  string  `json:"text"`
			Score float32 `json:"score"`
		}
		results := make([]menuResult, len(hits))
		for i, h := range hits {
			results[i] = menuResult{ID: h.ID, Text: h.Text, Score: h.Score}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListOrders(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		orders, err := deps.Store.ListOrders(limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list orders: %v", err)), nil
		}
		if orders == nil {
			orders = []storage.Order{}
		}

		b, err := json.Marshal(orders)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal orders: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
