package cmd

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/granola-mcp/internal/query"
	"github.com/KaramelBytes/granola-mcp/internal/render"
)

var (
	listQuery        string
	listFrom         string
	listTo           string
	listParticipants []string
	listLimit        int
	listCursor       string
	listJSON         bool

	searchPlatform string
	searchFolderID string
	searchFolder   string

	getInclude []string

	exportSections  []string
	exportMaxTokens int
	exportRender    bool
	exportJSON      bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List meetings, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		out, err := a.svc.List(cmd.Context(), query.ListInput{
			Q:            listQuery,
			FromTS:       listFrom,
			ToTS:         listTo,
			Participants: listParticipants,
			Limit:        listLimit,
			Cursor:       listCursor,
		})
		if err != nil {
			return err
		}
		if listJSON {
			return printJSON(cmd.OutOrStdout(), out)
		}
		printSummaries(cmd.OutOrStdout(), out)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search meetings by text with optional filters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		in := query.SearchInput{Q: args[0], Limit: listLimit, Cursor: listCursor}
		f := cmd.Flags()
		if f.Changed("platform") || f.Changed("folder-id") || f.Changed("folder") ||
			f.Changed("participant") || f.Changed("from") || f.Changed("to") {
			in.Filters = &query.SearchFilters{
				Platform:     searchPlatform,
				FolderID:     searchFolderID,
				Folder:       searchFolder,
				Participants: listParticipants,
				FromTS:       listFrom,
				ToTS:         listTo,
			}
		}
		out, err := a.svc.Search(cmd.Context(), in)
		if err != nil {
			return err
		}
		if listJSON {
			return printJSON(cmd.OutOrStdout(), out)
		}
		printSummaries(cmd.OutOrStdout(), out)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one meeting as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		out, err := a.svc.Get(cmd.Context(), query.GetInput{ID: args[0], Include: getInclude})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export one meeting as markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportRender && exportJSON {
			return fmt.Errorf("use only one of --render or --json")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		out, err := a.svc.Export(cmd.Context(), query.ExportInput{
			ID:        args[0],
			Sections:  exportSections,
			MaxTokens: exportMaxTokens,
		})
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		switch {
		case exportJSON:
			return printJSON(w, out)
		case exportRender:
			rendered, err := glamour.Render(out.Markdown, "dark")
			if err != nil {
				return fmt.Errorf("render markdown: %w", err)
			}
			fmt.Fprint(w, rendered)
		default:
			fmt.Fprint(w, out.Markdown)
		}
		if out.Truncated {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: output truncated to ~%d tokens\n", exportMaxTokens)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{listCmd, searchCmd} {
		c.Flags().StringVar(&listFrom, "from", "", "only meetings starting at or after this ISO-8601 time")
		c.Flags().StringVar(&listTo, "to", "", "only meetings starting at or before this ISO-8601 time")
		c.Flags().StringSliceVar(&listParticipants, "participant", nil, "participant name or email (repeatable; any match)")
		c.Flags().IntVar(&listLimit, "limit", 0, "page size (default from config)")
		c.Flags().StringVar(&listCursor, "cursor", "", "cursor from a previous page")
		c.Flags().BoolVar(&listJSON, "json", false, "print the raw page as JSON")
	}
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "case-insensitive text filter")

	searchCmd.Flags().StringVar(&searchPlatform, "platform", "", "platform code (meet, zoom, teams, ...)")
	searchCmd.Flags().StringVar(&searchFolderID, "folder-id", "", "exact folder id")
	searchCmd.Flags().StringVar(&searchFolder, "folder", "", "glob over the folder name, e.g. 'hiring*'")

	getCmd.Flags().StringSliceVar(&getInclude, "include", nil,
		fmt.Sprintf("extras to include: %s, %s, %s", query.IncludeNotes, query.IncludeMetadata, query.IncludeTranscript))

	exportCmd.Flags().StringSliceVar(&exportSections, "sections", nil, fmt.Sprintf("sections to include (default all: %v)", render.Sections))
	exportCmd.Flags().IntVar(&exportMaxTokens, "max-tokens", 0, "truncate to roughly this many tokens")
	exportCmd.Flags().BoolVar(&exportRender, "render", false, "render the markdown for the terminal")
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "print the export result as JSON")

	rootCmd.AddCommand(listCmd, searchCmd, getCmd, exportCmd)
}
