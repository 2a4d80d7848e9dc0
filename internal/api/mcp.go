package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gurukit/gurukit/internal/composer"
	"github.com/gurukit/gurukit/internal/fingerprint"
	"github.com/gurukit/gurukit/internal/storage"
)

// MCPMemory is the memory-tier surface used by the MCP tools.
// Satisfied by *cache.Store.
type MCPMemory interface {
	SaveMemory(e storage.MemoryEntry) error
	ForgetMemory(userID, fingerprint string) error
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Memory   MCPMemory
	Answerer Answerer
}

// NewMCPServer creates an MCP server with the tutoring tools and
// resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"gurukit",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("gurukit — curriculum-scoped tutoring with cached answers and per-student memory."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_tutor",
			mcp.WithDescription("Ask the curriculum tutor a question. Answers come from saved memory, the shared cache, or curriculum retrieval."),
			mcp.WithString("user_id", mcp.Description("Student identifier"), mcp.Required()),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("model", mcp.Description("Preferred provider (openai or gemini)")),
		),
		mcpAskTutor(deps),
	)

	s.AddTool(
		mcp.NewTool("save_memory",
			mcp.WithDescription("Save the student's most recent Q&A exchange to their permanent memory."),
			mcp.WithString("user_id", mcp.Description("Student identifier"), mcp.Required()),
		),
		mcpSaveMemory(deps),
	)

	s.AddTool(
		mcp.NewTool("forget_memory",
			mcp.WithDescription("Remove the student's most recent Q&A exchange from their permanent memory."),
			mcp.WithString("user_id", mcp.Description("Student identifier"), mcp.Required()),
		),
		mcpForgetMemory(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"tutor://recent",
			"Recent Exchanges",
			mcp.WithResourceDescription("Last 10 conversation turns for a user (set ?user_id=)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAskTutor(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		model := req.GetString("model", "")

		bundle := deps.Answerer.Answer(ctx, userID, question, model)

		b, err := json.Marshal(bundle)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		result := mcpText(string(b))
		result.IsError = bundle.CacheStatus == composer.StatusError
		return result, nil
	}
}

func mcpSaveMemory(deps MCPDeps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		turns, err := deps.Store.GetRecentTurns(userID, 1)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load history: %v", err)), nil
		}
		if len(turns) == 0 {
			return mcpError("nothing to save: no prior exchange for this user"), nil
		}

		last := turns[0]
		entry := storage.MemoryEntry{
			UserID:      userID,
			Fingerprint: fingerprint.Of(last.Question),
			Question:    last.Question,
			Answer:      last.Answer,
			Sources:     last.Sources,
			Images:      last.Images,
		}
		if err := deps.Memory.SaveMemory(entry); err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Saved to memory: %q", last.Question)), nil
	}
}

func mcpForgetMemory(deps MCPDeps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		turns, err := deps.Store.GetRecentTurns(userID, 1)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load history: %v", err)), nil
		}
		if len(turns) == 0 {
			return mcpError("nothing to forget: no prior exchange for this user"), nil
		}

		last := turns[0]
		err = deps.Memory.ForgetMemory(userID, fingerprint.Of(last.Question))
		if errors.Is(err, storage.ErrNotFound) {
			return mcpText("No saved memory found for the last exchange."), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to forget: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Removed from memory: %q", last.Question)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		userID := ""
		if args := req.Params.Arguments; args != nil {
			if v, ok := args["user_id"]; ok {
				if s, ok := v.(string); ok {
					userID = s
				}
			}
		}

		turns, err := deps.Store.GetRecentTurns(userID, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}

		type turnSummary struct {
			Question  string `json:"question"`
			Answer    string `json:"answer"`
			CreatedAt string `json:"created_at"`
		}

		summaries := make([]turnSummary, len(turns))
		for i, t := range turns {
			answer := t.Answer
			if utf8.RuneCountInString(answer) > 300 {
				runes := []rune(answer)
				answer = string(runes[:300]) + "..."
			}
			summaries[i] = turnSummary{
				Question:  t.Question,
				Answer:    answer,
				CreatedAt: t.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal turns: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
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
