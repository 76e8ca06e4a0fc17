package query

import (
	"context"
	"strings"

	"github.com/KaramelBytes/granola-mcp/internal/render"
	"github.com/KaramelBytes/granola-mcp/internal/utils"
)

type ExportInput struct {
	ID        string   `json:"id"`
	Sections  []string `json:"sections,omitempty"`
	MaxTokens int      `json:"max_tokens,omitempty"`
}

type ExportOutput struct {
	ID        string `json:"id"`
	Markdown  string `json:"markdown"`
	Tokens    int    `json:"tokens"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Export renders one meeting as markdown, optionally capped at MaxTokens.
func (s *Service) Export(ctx context.Context, in ExportInput) (*ExportOutput, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, invalid("id", "must not be empty")
	}
	for _, sec := range in.Sections {
		if !render.IsSection(sec) {
			return nil, invalid("sections", "unknown section %q (use %s)", sec, strings.Join(render.Sections, ", "))
		}
	}
	if in.MaxTokens < 0 {
		return nil, invalid("max_tokens", "must be >= 0, got %d", in.MaxTokens)
	}

	m, ok, err := s.store.MeetingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	md := render.Markdown(m, in.Sections)
	out := &ExportOutput{ID: id, Markdown: md}
	if in.MaxTokens > 0 {
		out.Markdown, out.Truncated = utils.TruncateToTokenLimit(md, in.MaxTokens)
	}
	out.Tokens = utils.CountTokens(out.Markdown)
	return out, nil
}
