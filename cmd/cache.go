package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/granola-mcp/internal/query"
)

var cacheJSON bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or refresh the document cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show source, cache location, freshness and load health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		st, err := a.svc.CacheStatus(cmd.Context())
		if err != nil {
			return err
		}
		if cacheJSON {
			return printJSON(cmd.OutOrStdout(), st)
		}
		printCacheStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Drop cached documents so the next read hits the source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		out, err := a.svc.CacheRefresh(cmd.Context())
		if err != nil {
			return err
		}
		if cacheJSON {
			return printJSON(cmd.OutOrStdout(), out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Cache refreshed (%s)\n", okStyle.Render("✓"), out.Source)
		return nil
	},
}

func printCacheStatus(w io.Writer, st *query.CacheStatusOutput) {
	heading(w, "Cache Status")
	field(w, "Source", st.Source)
	field(w, "Location", st.Location)
	if st.APIBase != "" {
		field(w, "API base", st.APIBase)
	}
	field(w, "Size", fmt.Sprintf("%d bytes", st.SizeBytes))
	field(w, "Entries", st.EntryCount)
	if st.TTLSeconds > 0 {
		field(w, "TTL", (time.Duration(st.TTLSeconds) * time.Second).String())
		field(w, "Fresh entries", st.FreshEntryCount)
	}
	if st.Fresh {
		field(w, "Fresh", okStyle.Render("yes"))
	} else {
		field(w, "Fresh", dimStyle.Render("no"))
	}
	if st.ModifiedAt != nil {
		field(w, "Modified", st.ModifiedAt.Format(time.RFC3339))
	}
	if st.OldestEntryAt != nil {
		field(w, "Oldest entry", st.OldestEntryAt.Format(time.RFC3339))
	}
	if st.LastLoadedAt != nil {
		field(w, "Last loaded", st.LastLoadedAt.Format(time.RFC3339))
	}
	field(w, "Meetings", st.MeetingCount)
	if st.ValidStructure {
		field(w, "Structure", okStyle.Render("valid"))
	} else {
		field(w, "Structure", badStyle.Render("invalid"))
		if st.LoadError != "" {
			field(w, "Load error", st.LoadError)
		}
	}
}

func init() {
	cacheCmd.PersistentFlags().BoolVar(&cacheJSON, "json", false, "output as JSON")
	cacheCmd.AddCommand(cacheStatusCmd, cacheRefreshCmd)
	rootCmd.AddCommand(cacheCmd)
}
