package query

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/KaramelBytes/granola-mcp/internal/source"
)

// Include values accepted by Get.
const (
	IncludeNotes      = "notes"
	IncludeMetadata   = "metadata"
	IncludeTranscript = "transcript"
)

type GetInput struct {
	ID      string   `json:"id"`
	Include []string `json:"include,omitempty"`
}

type GetOutput struct {
	Meeting MeetingDetail `json:"meeting"`
}

// MeetingDetail is a summary plus whichever extras were requested. Extras
// that were not requested are left out of the JSON; requested extras with no
// value are null.
type MeetingDetail struct {
	MeetingSummary

	withNotes      bool
	withMetadata   bool
	withTranscript bool

	Notes      string
	Overview   string
	Summary    string
	Metadata   json.RawMessage
	Transcript []source.TranscriptTurn
}

func (d MeetingDetail) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(d.MeetingSummary)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	if d.withNotes {
		fields["notes"] = nullable(d.Notes)
		fields["overview"] = nullable(d.Overview)
		fields["summary"] = nullable(d.Summary)
	}
	if d.withMetadata {
		if len(d.Metadata) > 0 {
			fields["metadata"] = d.Metadata
		} else {
			fields["metadata"] = nil
		}
	}
	if d.withTranscript {
		if d.Transcript != nil {
			fields["transcript"] = d.Transcript
		} else {
			fields["transcript"] = nil
		}
	}
	return json.Marshal(fields)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Get returns one meeting with the requested extras.
func (s *Service) Get(ctx context.Context, in GetInput) (*GetOutput, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, invalid("id", "must not be empty")
	}
	var withNotes, withMetadata, withTranscript bool
	for _, inc := range in.Include {
		switch inc {
		case IncludeNotes:
			withNotes = true
		case IncludeMetadata:
			withMetadata = true
		case IncludeTranscript:
			withTranscript = true
		default:
			return nil, invalid("include", "unknown value %q (use notes, metadata or transcript)", inc)
		}
	}

	m, ok, err := s.store.MeetingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	d := MeetingDetail{
		MeetingSummary: summarize(m),
		withNotes:      withNotes,
		withMetadata:   withMetadata,
		withTranscript: withTranscript,
	}
	if withNotes {
		d.Notes, d.Overview, d.Summary = m.Notes, m.Overview, m.Summary
	}
	if withMetadata {
		raw, _, err := s.store.Metadata(ctx, id)
		if err != nil {
			return nil, err
		}
		d.Metadata = raw
	}
	if withTranscript {
		turns, err := s.store.Transcript(ctx, id)
		if err != nil {
			return nil, err
		}
		d.Transcript = turns
	}
	return &GetOutput{Meeting: d}, nil
}
