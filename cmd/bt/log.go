package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/ui"
)

var logCmd = &cobra.Command{
	Use:     "log",
	GroupID: "inspect",
	Short:   "List the runs recorded for a group",
	Long: `List a group's runs, newest first.

--since accepts RFC3339, a plain date, or natural language:
  bt log --since 2024-03-01
  bt log --since "last week"
  bt log --since "3 days ago" --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		group, _ := cmd.Flags().GetString("group")
		sinceFlag, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		var since time.Time
		if sinceFlag != "" {
			t, err := parseSince(sinceFlag, time.Now())
			if err != nil {
				return err
			}
			since = t
		}

		store, err := openStore(ctx, nil)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Read(ctx, group)
		if err != nil {
			return err
		}
		runs = filterRuns(runs, since, limit)

		w := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintf(w, "No runs recorded for %q.\n", group)
			return nil
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "COMMIT\tDATE\tTOOL\tCASES\tMESSAGE")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				ui.AccentStyle.Render(shortID(r.Commit.ID)),
				time.UnixMilli(r.Date).UTC().Format(time.DateTime),
				r.Tool,
				len(r.Benches),
				firstLine(r.Commit.Message),
			)
		}
		return tw.Flush()
	},
}

func init() {
	logCmd.Flags().StringP("group", "g", "Benchmark", "Benchmark group name")
	logCmd.Flags().String("since", "", "Only runs at or after this time")
	logCmd.Flags().IntP("limit", "n", 0, "Show at most this many runs (0 for all)")
	logCmd.Flags().Bool("json", false, "Output JSON")
	rootCmd.AddCommand(logCmd)
}

// parseSince accepts RFC3339, YYYY-MM-DD, or a natural language expression
// relative to now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: not a date or time expression", s)
	}
	return r.Time, nil
}

// filterRuns returns runs at or after since, newest first, capped at limit.
func filterRuns(runs []benchmark.Run, since time.Time, limit int) []benchmark.Run {
	out := make([]benchmark.Run, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		if !since.IsZero() && runs[i].Date < since.UnixMilli() {
			break
		}
		out = append(out, runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
