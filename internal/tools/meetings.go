package tools

import (
	"context"
	"fmt"

	"github.com/alpkeskin/gotoon"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/KaramelBytes/granola-mcp/internal/query"
	"github.com/KaramelBytes/granola-mcp/internal/render"
)

var stringItems = map[string]any{"type": "string"}

// ListTool serves granola.meetings.list and its conversations alias.
type ListTool struct {
	svc  *query.Service
	name string
}

func NewListTool(svc *query.Service, name string) *ListTool {
	return &ListTool{svc: svc, name: name}
}

func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool(t.name,
		mcp.WithDescription("List meetings newest first, with optional text, time-range and participant filters. "+
			"Returns summaries without note bodies; pass next_cursor back as cursor for the next page."),
		mcp.WithString("q", mcp.Description("Case-insensitive text matched against title, notes, overview and summary")),
		mcp.WithString("from_ts", mcp.Description("Inclusive lower bound on start_ts (ISO-8601)")),
		mcp.WithString("to_ts", mcp.Description("Inclusive upper bound on start_ts (ISO-8601)")),
		mcp.WithArray("participants",
			mcp.Description("Names or emails; a meeting matches if any of them is found among its participants"),
			mcp.Items(stringItems),
		),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50, max 500)")),
		mcp.WithString("cursor", mcp.Description("Opaque cursor from a previous page")),
	)
}

func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in query.ListInput
	if err := decodeArgs(req, &in); err != nil {
		return errorResult(err), nil
	}
	out, err := t.svc.List(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(out)
}

// GetTool serves granola.meetings.get and its conversations alias.
type GetTool struct {
	svc  *query.Service
	name string
}

func NewGetTool(svc *query.Service, name string) *GetTool {
	return &GetTool{svc: svc, name: name}
}

func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool(t.name,
		mcp.WithDescription("Get one meeting by id. Use include to add notes (notes/overview/summary), "+
			"metadata (raw conferencing metadata) or transcript (speaker turns)."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Meeting id")),
		mcp.WithArray("include",
			mcp.Description("Extra fields: notes, metadata, transcript"),
			mcp.Items(map[string]any{"type": "string", "enum": []string{query.IncludeNotes, query.IncludeMetadata, query.IncludeTranscript}}),
		),
	)
}

func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in query.GetInput
	if err := decodeArgs(req, &in); err != nil {
		return errorResult(err), nil
	}
	out, err := t.svc.Get(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(out)
}

type SearchTool struct {
	svc *query.Service
}

func NewSearchTool(svc *query.Service) *SearchTool {
	return &SearchTool{svc: svc}
}

func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolSearch,
		mcp.WithDescription("Search meetings by text with optional structured filters. Same paging contract as list."),
		mcp.WithString("q", mcp.Required(), mcp.Description("Case-insensitive text to search for")),
		mcp.WithObject("filters",
			mcp.Description("Optional filters; all given filters must match"),
			mcp.Properties(map[string]any{
				"platform":     map[string]any{"type": "string", "description": "Platform code such as meet, zoom, teams"},
				"folder_id":    map[string]any{"type": "string", "description": "Exact folder id"},
				"folder":       map[string]any{"type": "string", "description": "Glob over the folder name, e.g. \"hiring*\""},
				"participants": map[string]any{"type": "array", "items": stringItems},
				"from_ts":      map[string]any{"type": "string"},
				"to_ts":        map[string]any{"type": "string"},
			}),
		),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50, max 500)")),
		mcp.WithString("cursor", mcp.Description("Opaque cursor from a previous page")),
	)
}

func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in query.SearchInput
	if err := decodeArgs(req, &in); err != nil {
		return errorResult(err), nil
	}
	out, err := t.svc.Search(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(out)
}

type ExportTool struct {
	svc *query.Service
}

func NewExportTool(svc *query.Service) *ExportTool {
	return &ExportTool{svc: svc}
}

func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolExport,
		mcp.WithDescription("Render one meeting as markdown. Sections always appear in the order "+
			"title, metadata, participants, notes, overview, summary."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Meeting id")),
		mcp.WithArray("sections",
			mcp.Description("Sections to include (default: all)"),
			mcp.Items(map[string]any{"type": "string", "enum": render.Sections}),
		),
		mcp.WithNumber("max_tokens", mcp.Description("Truncate the markdown to roughly this many tokens")),
	)
}

func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in query.ExportInput
	if err := decodeArgs(req, &in); err != nil {
		return errorResult(err), nil
	}
	out, err := t.svc.Export(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(out)
}

// Stats output formats.
const (
	FormatJSON = "json"
	FormatTOON = "toon"
)

type statsArgs struct {
	query.StatsInput
	Format string `json:"format,omitempty"`
}

type StatsTool struct {
	svc *query.Service
}

func NewStatsTool(svc *query.Service) *StatsTool {
	return &StatsTool{svc: svc}
}

func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolStats,
		mcp.WithDescription("Count meetings per day, ISO week or month, plus per platform. "+
			"Unparsable start times are counted under \"unknown\"."),
		mcp.WithString("group_by", mcp.Enum(query.GroupByDay, query.GroupByWeek, query.GroupByMonth),
			mcp.Description("Grouping period (default day)")),
		mcp.WithString("window", mcp.Description("Only count meetings from the last window, e.g. 7d, 24h, 4w")),
		mcp.WithString("format", mcp.Enum(FormatJSON, FormatTOON), mcp.Description("Output encoding (default json)")),
	)
}

func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args statsArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	switch args.Format {
	case "", FormatJSON, FormatTOON:
	default:
		return errorResult(&query.ValidationError{Field: "format", Reason: fmt.Sprintf("unknown value %q (use json or toon)", args.Format)}), nil
	}
	out, err := t.svc.Stats(ctx, args.StatsInput)
	if err != nil {
		return errorResult(err), nil
	}
	if args.Format == FormatTOON {
		encoded, err := gotoon.Encode(out)
		if err != nil {
			return errorResult(fmt.Errorf("encode toon: %w", err)), nil
		}
		return mcp.NewToolResultText(encoded), nil
	}
	return jsonResult(out)
}
