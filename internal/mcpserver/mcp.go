// Package mcpserver exposes the companion session over the Model
// Context Protocol so external agents can recall memories and speak
// with the persona through the same service contract the TUI uses.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/solaceapp/solace/internal/remote"
	"github.com/solaceapp/solace/internal/session"
)

// Service is the slice of the companion API the MCP tools need.
type Service interface {
	Chat(ctx context.Context, message, sessionID string) (remote.ChatResult, error)
	Memories(ctx context.Context, sessionID, search string) ([]remote.Memory, error)
}

// SessionSource yields the locally persisted session, if any.
type SessionSource interface {
	Load() (session.Session, bool)
}

// Deps holds dependencies for the MCP server.
type Deps struct {
	Service  Service
	Sessions SessionSource
}

// NewServer creates an MCP server with the solace tools and resources
// registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"solace",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("solace — grief companion built on a loved one's chat history: recall their messages and talk in their voice."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("recall_memories",
			mcp.WithDescription("Search the loved one's indexed messages and return the most relevant ones."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		recallMemories(deps),
	)

	s.AddTool(
		mcp.NewTool("talk",
			mcp.WithDescription("Send one message to the persona and return the reply. Crisis escalation is flagged in the result."),
			mcp.WithString("message", mcp.Description("The message to send"), mcp.Required()),
		),
		talk(deps),
	)

	s.AddTool(
		mcp.NewTool("session_info",
			mcp.WithDescription("Return the active session: who the persona is and how many memories are indexed."),
		),
		sessionInfo(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"session://current",
			"Current Session",
			mcp.WithResourceDescription("The active companion session as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		resourceSession(deps),
	)

	return s
}

func activeSession(deps Deps) (session.Session, bool) {
	sess, ok := deps.Sessions.Load()
	if !ok || sess.SessionID == "" {
		return session.Session{}, false
	}
	return sess, true
}

func recallMemories(deps Deps) server.ToolHandlerFunc {
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

		sess, ok := activeSession(deps)
		if !ok {
			return mcpError("no active session: import a chat export first"), nil
		}

		memories, err := deps.Service.Memories(ctx, sess.SessionID, query)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}
		if len(memories) > limit {
			memories = memories[:limit]
		}
		if len(memories) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(memories)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func talk(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		sess, ok := activeSession(deps)
		if !ok {
			return mcpError("no active session: import a chat export first"), nil
		}

		result, err := deps.Service.Chat(ctx, message, sess.SessionID)
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reply: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func sessionInfo(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, ok := activeSession(deps)
		if !ok {
			return mcpText(`{"active":false}`), nil
		}
		b, err := json.Marshal(map[string]any{
			"active":       true,
			"session_id":   sess.SessionID,
			"person_name":  sess.PersonName,
			"memory_count": sess.MemoryCount,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal session: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func resourceSession(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sess, _ := deps.Sessions.Load()
		b, err := json.Marshal(sess)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal session: %w", err)
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
