package query

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"github.com/KaramelBytes/granola-mcp/internal/meetings"
)

// ListInput filters and pages the meeting list.
type ListInput struct {
	Q            string   `json:"q,omitempty"`
	FromTS       string   `json:"from_ts,omitempty"`
	ToTS         string   `json:"to_ts,omitempty"`
	Participants []string `json:"participants,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	Cursor       string   `json:"cursor,omitempty"`
}

// ListOutput is one page of summaries. NextCursor is set only when more remain.
type ListOutput struct {
	Items      []MeetingSummary `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
	Total      int              `json:"total"`
}

// SearchFilters narrow a search beyond the text match.
type SearchFilters struct {
	Platform     string   `json:"platform,omitempty"`
	FolderID     string   `json:"folder_id,omitempty"`
	Folder       string   `json:"folder,omitempty"`
	Participants []string `json:"participants,omitempty"`
	FromTS       string   `json:"from_ts,omitempty"`
	ToTS         string   `json:"to_ts,omitempty"`
}

type SearchInput struct {
	Q       string         `json:"q"`
	Filters *SearchFilters `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Cursor  string         `json:"cursor,omitempty"`
}

// SearchOutput shares the list page shape.
type SearchOutput = ListOutput

const cursorPrefix = "offset:"

// EncodeCursor returns the opaque token for offset.
func EncodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// DecodeCursor parses a token from EncodeCursor. An empty token is offset 0.
func DecodeCursor(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return 0, invalid("cursor", "not a valid cursor token")
	}
	s := string(b)
	if !strings.HasPrefix(s, cursorPrefix) {
		return 0, invalid("cursor", "not a valid cursor token")
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, cursorPrefix))
	if err != nil || n < 0 {
		return 0, invalid("cursor", "not a valid cursor token")
	}
	return n, nil
}

func (s *Service) resolveLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return s.defaultLimit, nil
	case limit < 0 || limit > s.maxLimit:
		return 0, invalid("limit", "must be between 1 and %d, got %d", s.maxLimit, limit)
	}
	return limit, nil
}

// List returns meetings matching every given filter, newest first.
func (s *Service) List(ctx context.Context, in ListInput) (*ListOutput, error) {
	limit, err := s.resolveLimit(in.Limit)
	if err != nil {
		return nil, err
	}
	offset, err := DecodeCursor(in.Cursor)
	if err != nil {
		return nil, err
	}
	all, err := s.store.Meetings(ctx)
	if err != nil {
		return nil, err
	}
	var matched []meetings.Meeting
	for _, m := range all {
		if matchesText(m, in.Q) && matchesRange(m, in.FromTS, in.ToTS) && matchesParticipants(m, in.Participants) {
			matched = append(matched, m)
		}
	}
	return page(matched, offset, limit), nil
}

// Search is List with a required query and structured filters.
func (s *Service) Search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	if strings.TrimSpace(in.Q) == "" {
		return nil, invalid("q", "must not be empty")
	}
	limit, err := s.resolveLimit(in.Limit)
	if err != nil {
		return nil, err
	}
	offset, err := DecodeCursor(in.Cursor)
	if err != nil {
		return nil, err
	}
	f := SearchFilters{}
	if in.Filters != nil {
		f = *in.Filters
	}
	var folderGlob glob.Glob
	if f.Folder != "" {
		folderGlob, err = glob.Compile(strings.ToLower(f.Folder))
		if err != nil {
			return nil, invalid("filters.folder", "bad pattern %q: %v", f.Folder, err)
		}
	}

	all, err := s.store.Meetings(ctx)
	if err != nil {
		return nil, err
	}
	var matched []meetings.Meeting
	for _, m := range all {
		if !matchesText(m, in.Q) || !matchesRange(m, f.FromTS, f.ToTS) || !matchesParticipants(m, f.Participants) {
			continue
		}
		if f.Platform != "" && !strings.EqualFold(m.Platform, f.Platform) {
			continue
		}
		if f.FolderID != "" && m.FolderID != f.FolderID {
			continue
		}
		if folderGlob != nil && (m.FolderName == "" || !folderGlob.Match(strings.ToLower(m.FolderName))) {
			continue
		}
		matched = append(matched, m)
	}
	s.log.Debugf("search %q matched %d meetings", in.Q, len(matched))
	return page(matched, offset, limit), nil
}

func page(matched []meetings.Meeting, offset, limit int) *ListOutput {
	out := &ListOutput{Items: []MeetingSummary{}, Total: len(matched)}
	if offset >= len(matched) {
		return out
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	for _, m := range matched[offset:end] {
		out.Items = append(out.Items, summarize(m))
	}
	if end < len(matched) {
		out.NextCursor = EncodeCursor(end)
	}
	return out
}
