// Package render turns a meeting into markdown.
package render

import (
	"strings"

	"github.com/KaramelBytes/granola-mcp/internal/meetings"
)

// Section names accepted by Markdown.
const (
	SectionTitle        = "title"
	SectionMetadata     = "metadata"
	SectionParticipants = "participants"
	SectionNotes        = "notes"
	SectionOverview     = "overview"
	SectionSummary      = "summary"
)

// Sections lists every section in the order they are emitted.
var Sections = []string{
	SectionTitle,
	SectionMetadata,
	SectionParticipants,
	SectionNotes,
	SectionOverview,
	SectionSummary,
}

const none = "(none)"

// IsSection reports whether name is a known section.
func IsSection(name string) bool {
	for _, s := range Sections {
		if s == name {
			return true
		}
	}
	return false
}

// Markdown renders the requested sections of m in canonical order, whatever
// order they were requested in. An empty selection renders everything.
// Unknown names are ignored.
func Markdown(m meetings.Meeting, sections []string) string {
	want := make(map[string]bool, len(sections))
	for _, s := range sections {
		want[s] = true
	}
	all := len(sections) == 0

	var blocks []string
	for _, s := range Sections {
		if !all && !want[s] {
			continue
		}
		blocks = append(blocks, section(m, s))
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

func section(m meetings.Meeting, name string) string {
	switch name {
	case SectionTitle:
		return "# " + m.Title
	case SectionMetadata:
		var b strings.Builder
		b.WriteString("## Metadata\n")
		b.WriteString("- ID: " + m.ID + "\n")
		b.WriteString("- Start: " + orNone(m.StartTS) + "\n")
		b.WriteString("- End: " + orNone(m.EndTS) + "\n")
		b.WriteString("- Platform: " + orNone(m.Platform) + "\n")
		b.WriteString("- Folder: " + orNone(folderLabel(m)))
		return b.String()
	case SectionParticipants:
		if len(m.Participants) == 0 {
			return "## Participants\n" + none
		}
		lines := make([]string, len(m.Participants))
		for i, p := range m.Participants {
			lines[i] = "- " + p
		}
		return "## Participants\n" + strings.Join(lines, "\n")
	case SectionNotes:
		return "## Notes\n" + orNone(strings.TrimSpace(m.Notes))
	case SectionOverview:
		return "## Overview\n" + orNone(strings.TrimSpace(m.Overview))
	case SectionSummary:
		return "## Summary\n" + orNone(strings.TrimSpace(m.Summary))
	}
	return ""
}

func folderLabel(m meetings.Meeting) string {
	switch {
	case m.FolderName != "":
		return m.FolderName
	default:
		return m.FolderID
	}
}

func orNone(s string) string {
	if s == "" {
		return none
	}
	return s
}
