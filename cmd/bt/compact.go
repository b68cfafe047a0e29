package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benchtrail/benchtrail/internal/ui"
)

var compactCmd = &cobra.Command{
	Use:     "compact",
	GroupID: "maint",
	Short:   "Drop the oldest runs of a group",
	Long: `Keep only the newest --max-runs runs of a group. Dropped runs are gone
from the artifact for good, so compact asks for confirmation unless --yes
is given. Without a terminal, --yes is required.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		group, _ := cmd.Flags().GetString("group")
		maxRuns, _ := cmd.Flags().GetInt("max-runs")
		yes, _ := cmd.Flags().GetBool("yes")

		if maxRuns == 0 {
			maxRuns = cfg.MaxHistoryRuns
		}
		if maxRuns < 1 {
			return fmt.Errorf("--max-runs must be at least 1 (or set max_history_runs)")
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
		w := cmd.OutOrStdout()
		drop := len(runs) - maxRuns
		if drop <= 0 {
			fmt.Fprintf(w, "%q has %d run(s); nothing to drop.\n", group, len(runs))
			return nil
		}

		if !yes {
			ok, err := ui.Confirm(
				fmt.Sprintf("Drop %d run(s) from %q?", drop, group),
				fmt.Sprintf("The newest %d run(s) are kept. This cannot be undone.", maxRuns),
			)
			if errors.Is(err, ui.ErrNotInteractive) {
				return fmt.Errorf("refusing to drop %d run(s) without confirmation: pass --yes", drop)
			}
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(w, "Aborted.")
				return nil
			}
		}

		dropped, err := store.CompactTo(ctx, group, maxRuns)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Dropped %d run(s) from %q, kept %d.\n", dropped, group, maxRuns)
		return nil
	},
}

func init() {
	compactCmd.Flags().StringP("group", "g", "Benchmark", "Benchmark group name")
	compactCmd.Flags().Int("max-runs", 0, "Runs to keep (default: max_history_runs)")
	compactCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(compactCmd)
}
