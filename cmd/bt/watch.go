package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
	"github.com/benchtrail/benchtrail/internal/ci"
	"github.com/benchtrail/benchtrail/internal/dashboard"
	"github.com/benchtrail/benchtrail/internal/pipeline"
	"github.com/benchtrail/benchtrail/internal/telemetry"
	"github.com/benchtrail/benchtrail/internal/ui"
	"github.com/benchtrail/benchtrail/internal/vcs/git"
	"github.com/benchtrail/benchtrail/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "record",
	Short:   "Record result files as they appear in a directory",
	Long: `Watch a directory and record every harness output file written to it,
tagged with the commit checked out in the current git repository.

With --dashboard-port, a dashboard server is started as well and receives
every recorded run and its verdicts over /ws.

Examples:
  bt watch --dir .benchmarks --tool pytest
  bt watch --dir out --tool gobench --existing --dashboard-port 8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		group, _ := cmd.Flags().GetString("group")
		tool, _ := cmd.Flags().GetString("tool")
		pattern, _ := cmd.Flags().GetString("pattern")
		debounce, _ := cmd.Flags().GetDuration("debounce")
		existing, _ := cmd.Flags().GetBool("existing")
		dashPort, _ := cmd.Flags().GetInt("dashboard-port")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		repo, err := git.New(".")
		if err != nil {
			return fmt.Errorf("watch needs a git repository to tag runs: %w", err)
		}
		if cfg.RepoURL == "" {
			cfg.RepoURL = ci.RepoURL("")
		}

		metrics := telemetry.NewMetrics()
		p, store, err := newPipeline(ctx, metrics)
		if err != nil {
			return err
		}
		defer store.Close()

		var handler *dashboard.Handler
		if dashPort > 0 {
			server := dashboard.NewServer(dashboard.Config{
				Port:    dashPort,
				Store:   store,
				Metrics: metrics.Handler(),
				Logger:  newLogger("[dashboard] "),
			})
			if err := server.Start(); err != nil {
				return err
			}
			defer server.Stop()
			handler = dashboard.NewHandler(server, newLogger("[dashboard] "))
		}

		w := cmd.OutOrStdout()
		logger := newLogger("[watch] ")
		daemon, err := watch.New(p, watch.Config{
			Dir:              dir,
			Group:            group,
			Tool:             tool,
			Pattern:          pattern,
			DebounceInterval: debounce,
			ProcessExisting:  existing,
			Commit: func(ctx context.Context, path string) (benchmark.Commit, error) {
				c, _, err := ci.ResolveCommit(ctx, ci.Options{Repo: repo, RepoURL: cfg.RepoURL})
				return c, err
			},
			OnOutcome: func(path, group string, out *pipeline.Outcome, err error) {
				if err != nil {
					logger.Printf("Failed to record %s: %v", path, err)
					return
				}
				regression.PrintResult(w, group, &out.Result)
				fmt.Fprintln(w, ui.Headline(&out.Result))
				if cfg.MetricsTextfile != "" {
					if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
						logger.Printf("Warning: %v", err)
					}
				}
				if handler != nil {
					handler.OnOutcome(group, out)
				}
			},
			Logger: logger,
		})
		if err != nil {
			return err
		}
		return daemon.Start(ctx)
	},
}

func init() {
	watchCmd.Flags().String("dir", ".", "Directory to watch")
	watchCmd.Flags().StringP("group", "g", "Benchmark", "Benchmark group name")
	watchCmd.Flags().StringP("tool", "t", "", "Harness that produces the files")
	watchCmd.Flags().String("pattern", "", "File name pattern (default: *.txt for gobench, *.json otherwise)")
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounceInterval, "Quiet period before a file is read")
	watchCmd.Flags().Bool("existing", false, "Also record files already in the directory")
	watchCmd.Flags().Int("dashboard-port", 0, "Start a dashboard on this port (0 to disable)")
	_ = watchCmd.MarkFlagRequired("tool")
	rootCmd.AddCommand(watchCmd)
}
