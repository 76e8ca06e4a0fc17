// Package query answers list, search, get, stats, export and cache requests
// over the normalized meeting collection.
package query

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/KaramelBytes/granola-mcp/internal/config"
	"github.com/KaramelBytes/granola-mcp/internal/logging"
	"github.com/KaramelBytes/granola-mcp/internal/meetings"
	"github.com/KaramelBytes/granola-mcp/internal/source"
)

// Store is the normalized collection the service reads. *meetings.Adapter implements it.
type Store interface {
	Meetings(ctx context.Context) ([]meetings.Meeting, error)
	MeetingByID(ctx context.Context, id string) (meetings.Meeting, bool, error)
	Transcript(ctx context.Context, id string) ([]source.TranscriptTurn, error)
	Metadata(ctx context.Context, id string) (json.RawMessage, bool, error)
	CacheInfo(ctx context.Context) (meetings.Status, error)
	Refresh() error
	SourceName() string
}

// Service is built once per process and shared by every tool and command.
type Service struct {
	store        Store
	defaultLimit int
	maxLimit     int
	log          *logging.Logger
	now          func() time.Time
}

// New returns a service using cfg's paging limits.
func New(cfg *config.Global, store Store, logger *logging.Logger) *Service {
	s := &Service{
		store:        store,
		defaultLimit: 50,
		maxLimit:     500,
		log:          logger,
		now:          time.Now,
	}
	if cfg != nil {
		if cfg.DefaultLimit > 0 {
			s.defaultLimit = cfg.DefaultLimit
		}
		if cfg.MaxLimit > 0 {
			s.maxLimit = cfg.MaxLimit
		}
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}
	return s
}

// WithClock replaces the time source used by Stats windows.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// MeetingSummary is a meeting without its note bodies.
type MeetingSummary struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	StartTS      string   `json:"start_ts"`
	EndTS        string   `json:"end_ts,omitempty"`
	Participants []string `json:"participants"`
	Platform     string   `json:"platform,omitempty"`
	FolderID     string   `json:"folder_id,omitempty"`
	FolderName   string   `json:"folder_name,omitempty"`
}

func summarize(m meetings.Meeting) MeetingSummary {
	participants := m.Participants
	if participants == nil {
		participants = []string{}
	}
	return MeetingSummary{
		ID:           m.ID,
		Title:        m.Title,
		StartTS:      m.StartTS,
		EndTS:        m.EndTS,
		Participants: participants,
		Platform:     m.Platform,
		FolderID:     m.FolderID,
		FolderName:   m.FolderName,
	}
}

// matchesText is a case-insensitive substring test over title and note bodies.
func matchesText(m meetings.Meeting, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, field := range []string{m.Title, m.Notes, m.Overview, m.Summary} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// matchesRange compares ISO-8601 strings lexicographically, bounds inclusive.
// An empty start_ts is the smallest string, so only a lower bound drops it.
func matchesRange(m meetings.Meeting, from, to string) bool {
	if from != "" && m.StartTS < from {
		return false
	}
	if to != "" && m.StartTS > to {
		return false
	}
	return true
}

// matchesParticipants passes when any requested name is a case-insensitive
// substring of any participant.
func matchesParticipants(m meetings.Meeting, names []string) bool {
	var wanted []string
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			wanted = append(wanted, n)
		}
	}
	if len(wanted) == 0 {
		return true
	}
	for _, p := range m.Participants {
		lp := strings.ToLower(p)
		for _, w := range wanted {
			if strings.Contains(lp, w) {
				return true
			}
		}
	}
	return false
}
