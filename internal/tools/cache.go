package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/KaramelBytes/granola-mcp/internal/query"
)

type CacheStatusTool struct {
	svc *query.Service
}

func NewCacheStatusTool(svc *query.Service) *CacheStatusTool {
	return &CacheStatusTool{svc: svc}
}

func (t *CacheStatusTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolCacheStatus,
		mcp.WithDescription("Report the document source, cache location, size, freshness and whether the cache currently loads."),
	)
}

func (t *CacheStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var none struct{}
	if err := decodeArgs(req, &none); err != nil {
		return errorResult(err), nil
	}
	out, err := t.svc.CacheStatus(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(out)
}

type CacheRefreshTool struct {
	svc *query.Service
}

func NewCacheRefreshTool(svc *query.Service) *CacheRefreshTool {
	return &CacheRefreshTool{svc: svc}
}

func (t *CacheRefreshTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolCacheRefresh,
		mcp.WithDescription("Drop cached documents so the next call reads the source again. "+
			"For the remote API this deletes the persisted page files."),
	)
}

func (t *CacheRefreshTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var none struct{}
	if err := decodeArgs(req, &none); err != nil {
		return errorResult(err), nil
	}
	out, err := t.svc.CacheRefresh(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(out)
}
