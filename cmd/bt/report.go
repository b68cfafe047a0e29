package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
	"github.com/benchtrail/benchtrail/internal/report"
	"github.com/benchtrail/benchtrail/internal/ui"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	GroupID: "inspect",
	Short:   "Report on the latest run of a group",
	Long: `Compare the latest run of a group against the runs before it, or dump the
group's history.

Formats:
  markdown  verdict table, rendered on a terminal (default)
  csv       one row per case per run
  graph     ASCII trend of the last --last runs`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		group, _ := cmd.Flags().GetString("group")
		format, _ := cmd.Flags().GetString("format")
		last, _ := cmd.Flags().GetInt("last")

		policy, err := cfg.Policy()
		if err != nil {
			return err
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

		switch format {
		case "csv":
			return report.WriteCSV(w, group, runs)
		case "graph":
			report.WriteGraph(w, group, runs, policy.Metric, last)
			return nil
		case "markdown", "md":
			return writeMarkdownReport(w, group, runs, policy)
		default:
			return fmt.Errorf("unknown format %q (want markdown, csv, or graph)", format)
		}
	},
}

func init() {
	reportCmd.Flags().StringP("group", "g", "Benchmark", "Benchmark group name")
	reportCmd.Flags().String("format", "markdown", "Output format: markdown, csv, graph")
	reportCmd.Flags().Int("last", 10, "Runs to include in the graph")
	rootCmd.AddCommand(reportCmd)
}

func writeMarkdownReport(w io.Writer, group string, runs []benchmark.Run, policy regression.Policy) error {
	if len(runs) == 0 {
		return fmt.Errorf("no runs recorded for %q", group)
	}
	detector, err := regression.NewDetector(policy)
	if err != nil {
		return err
	}
	latest := runs[len(runs)-1]
	result := detector.Detect(runs[:len(runs)-1], latest)

	var buf bytes.Buffer
	if err := report.WriteSummary(&buf, report.Summary{Group: group, Run: latest, Result: &result}); err != nil {
		return err
	}
	out, err := ui.RenderMarkdown(w, buf.String())
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
