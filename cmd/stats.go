package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/alpkeskin/gotoon"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/granola-mcp/internal/query"
)

var (
	statsGroupBy string
	statsWindow  string
	statsJSON    bool
	statsToon    bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count meetings per period and platform",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsJSON && statsToon {
			return fmt.Errorf("use only one of --json or --toon")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		stats, err := a.svc.Stats(cmd.Context(), query.StatsInput{GroupBy: statsGroupBy, Window: statsWindow})
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		if statsJSON {
			return printJSON(w, stats)
		}
		if statsToon {
			output, err := gotoon.Encode(stats)
			if err != nil {
				return fmt.Errorf("failed to encode Toon: %w", err)
			}
			fmt.Fprintln(w, output)
			return nil
		}
		printStats(w, stats)
		return nil
	},
}

func printStats(w io.Writer, stats *query.StatsOutput) {
	heading(w, "Meeting Statistics")
	field(w, "Total", stats.Total)
	field(w, "Grouped by", stats.GroupBy)
	if stats.Window != "" {
		field(w, "Window", stats.Window)
	}

	fmt.Fprintln(w)
	heading(w, "By "+stats.GroupBy)
	periods := sortedKeys(stats.Counts.ByPeriod)
	// newest period first, unknown last
	sort.SliceStable(periods, func(i, j int) bool {
		if periods[i] == query.UnknownBucket || periods[j] == query.UnknownBucket {
			return periods[j] == query.UnknownBucket && periods[i] != query.UnknownBucket
		}
		return periods[i] > periods[j]
	})
	for _, p := range periods {
		field(w, "  "+p, stats.Counts.ByPeriod[p])
	}

	fmt.Fprintln(w)
	heading(w, "By platform")
	platforms := sortedKeys(stats.Counts.ByPlatform)
	sort.SliceStable(platforms, func(i, j int) bool {
		return stats.Counts.ByPlatform[platforms[i]] > stats.Counts.ByPlatform[platforms[j]]
	})
	for _, p := range platforms {
		field(w, "  "+p, stats.Counts.ByPlatform[p])
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	statsCmd.Flags().StringVar(&statsGroupBy, "group-by", query.GroupByDay, "period: day, week or month")
	statsCmd.Flags().StringVar(&statsWindow, "window", "", "only the last window, e.g. 7d, 24h, 4w")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	statsCmd.Flags().BoolVar(&statsToon, "toon", false, "output in Toon format")
	rootCmd.AddCommand(statsCmd)
}
