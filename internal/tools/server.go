// Package tools exposes the query service as MCP tools.
package tools

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/KaramelBytes/granola-mcp/internal/query"
)

// Registered tool names.
const (
	ToolList              = "granola.meetings.list"
	ToolConversationsList = "granola.conversations.list"
	ToolGet               = "granola.meetings.get"
	ToolConversationsGet  = "granola.conversations.get"
	ToolSearch            = "granola.meetings.search"
	ToolExport            = "granola.meetings.export_markdown"
	ToolStats             = "granola.meetings.stats"
	ToolCacheStatus       = "granola.cache.status"
	ToolCacheRefresh      = "granola.cache.refresh"
)

// NewServer creates the MCP server with every tool registered.
func NewServer(svc *query.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"granola-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	Register(s, svc)
	return s
}

// Register adds the tools to s. The conversations names are aliases of
// the meetings list/get tools.
func Register(s *server.MCPServer, svc *query.Service) {
	for _, name := range []string{ToolList, ToolConversationsList} {
		t := NewListTool(svc, name)
		s.AddTool(t.Definition(), t.Handle)
	}
	for _, name := range []string{ToolGet, ToolConversationsGet} {
		t := NewGetTool(svc, name)
		s.AddTool(t.Definition(), t.Handle)
	}

	searchTool := NewSearchTool(svc)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	exportTool := NewExportTool(svc)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	statsTool := NewStatsTool(svc)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	statusTool := NewCacheStatusTool(svc)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	refreshTool := NewCacheRefreshTool(svc)
	s.AddTool(refreshTool.Definition(), refreshTool.Handle)
}

const instructions = `Read-only access to Granola meeting notes.

Start with granola.meetings.list or granola.meetings.search to find meeting ids, then
granola.meetings.get (include notes/metadata/transcript) or granola.meetings.export_markdown
for the content. Failed calls return {"error":{"kind","message"}}; on a parse_error the
cache file is unreadable, and granola.cache.status shows where it lives.`
