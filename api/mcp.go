// MCP server exposing the chat loop and raw retrieval as tools.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jesamkim/aws-strands-agents-chatbot/agent"
	"github.com/jesamkim/aws-strands-agents-chatbot/model"
	"github.com/jesamkim/aws-strands-agents-chatbot/search"
	"github.com/jesamkim/aws-strands-agents-chatbot/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Engine *agent.Engine
	Search *search.Client
	Store  storage.ConversationStorage
}

// NewMCPServer creates an MCP server with the chatbot tools registered.
// Serve it over stdio with server.NewStdioServer.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"kb-chatbot",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("Conversational question answering grounded in the configured document index."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask the chatbot a question. Runs the full reasoning loop: keyword planning, document search, quality-gated answer synthesis with citations."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session to continue; omit to start a new one")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("kb_search",
			mcp.WithDescription("Search the document index directly with one or more keywords, skipping the reasoning loop."),
			mcp.WithArray("keywords", mcp.Description("Search keywords"), mcp.Required()),
			mcp.WithNumber("max_per_keyword", mcp.Description("Maximum results per keyword (default 3)")),
		),
		mcpSearch(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		sessionID := req.GetString("session_id", "")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		history, err := deps.Store.Load(ctx, sessionID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load session: %v", err)), nil
		}

		res := deps.Engine.Run(ctx, question, history)

		type askResult struct {
			SessionID         string `json:"session_id"`
			Answer            string `json:"answer"`
			Iterations        int    `json:"iterations"`
			TerminationReason string `json:"termination_reason"`
			Citations         []int  `json:"citations,omitempty"`
			Warning           string `json:"warning,omitempty"`
		}
		out := askResult{
			SessionID:         sessionID,
			Answer:            res.Content,
			Iterations:        res.IterationsUsed,
			TerminationReason: res.TerminationReason,
			Citations:         res.CitationsUsed,
		}

		now := time.Now()
		history = append(history,
			model.ConversationTurn{Role: model.RoleUser, Content: question, Timestamp: now},
			model.ConversationTurn{Role: model.RoleAssistant, Content: res.Content, Timestamp: now},
		)
		// The answer is already computed; report a persistence failure
		// without discarding it.
		if err := deps.Store.Save(ctx, sessionID, history); err != nil {
			out.Warning = fmt.Sprintf("session not persisted: %v", err)
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keywords := req.GetStringSlice("keywords", nil)
		if len(keywords) == 0 {
			return mcpError("keywords is required"), nil
		}
		if !deps.Search.Configured() {
			return mcpError("no document index configured"), nil
		}

		maxPerKeyword := req.GetInt("max_per_keyword", 3)
		if maxPerKeyword <= 0 {
			maxPerKeyword = 3
		}

		results, err := deps.Search.SearchMultiple(ctx, keywords, maxPerKeyword)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(results) == 0 {
			return mcpText("[]"), nil
		}

		type hit struct {
			Content string  `json:"content"`
			Score   float64 `json:"score"`
			Source  string  `json:"source"`
			Query   string  `json:"query"`
		}
		hits := make([]hit, len(results))
		for i, r := range results {
			hits[i] = hit{Content: r.Content, Score: r.Score, Source: r.Source, Query: r.Query}
		}

		b, err := json.Marshal(hits)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
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
