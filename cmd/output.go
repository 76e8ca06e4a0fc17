package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/KaramelBytes/granola-mcp/internal/query"
	"github.com/KaramelBytes/granola-mcp/internal/utils"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	badStyle     = lipgloss.NewStyle().Foreground(colorAccent)
	labelStyle   = lipgloss.NewStyle().Width(18)
)

func printJSON(w io.Writer, v any) error {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, headingStyle.Render(title))
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", labelStyle.Render(label+":"), value)
}

// printSummaries writes one page of meetings as a compact list.
func printSummaries(w io.Writer, out *query.ListOutput) {
	if len(out.Items) == 0 {
		fmt.Fprintln(w, "(no meetings)")
		return
	}
	for _, m := range out.Items {
		start := m.StartTS
		if start == "" {
			start = "(no start)"
		}
		fmt.Fprintf(w, "- %s  %s  %s\n", dimStyle.Render(start), m.Title, dimStyle.Render("["+m.ID+"]"))
		var extra []string
		if m.Platform != "" {
			extra = append(extra, m.Platform)
		}
		if m.FolderName != "" {
			extra = append(extra, "folder: "+m.FolderName)
		}
		if len(m.Participants) > 0 {
			extra = append(extra, strings.Join(m.Participants, ", "))
		}
		if len(extra) > 0 {
			fmt.Fprintf(w, "    %s\n", dimStyle.Render(strings.Join(extra, " · ")))
		}
	}
	fmt.Fprintf(w, "\n%d of %d meetings", len(out.Items), out.Total)
	if out.NextCursor != "" {
		fmt.Fprintf(w, " (next: --cursor %s)", out.NextCursor)
	}
	fmt.Fprintln(w)
}
