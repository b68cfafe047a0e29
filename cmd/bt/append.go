package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
	"github.com/benchtrail/benchtrail/internal/ci"
	"github.com/benchtrail/benchtrail/internal/harness"
	"github.com/benchtrail/benchtrail/internal/history"
	"github.com/benchtrail/benchtrail/internal/notify"
	"github.com/benchtrail/benchtrail/internal/pipeline"
	"github.com/benchtrail/benchtrail/internal/report"
	"github.com/benchtrail/benchtrail/internal/telemetry"
	"github.com/benchtrail/benchtrail/internal/ui"
	"github.com/benchtrail/benchtrail/internal/vcs/git"
)

var appendCmd = &cobra.Command{
	Use:     "append",
	GroupID: "record",
	Short:   "Record a benchmark result and check it for regressions",
	Long: `Parse a harness output file, append it to the group's history as a new
run, and compare it against the baseline.

The commit is taken from --commit, the GitHub Actions event payload, or the
local git repository, in that order.

Examples:
  bt append --tool pytest --file output.json
  bt append --tool gobench --file bench.txt --group "Go Benchmark"
  go test -bench . | tee bench.txt && bt append --tool gobench --file bench.txt`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecord(cmd, false)
	},
}

var checkCmd = &cobra.Command{
	Use:     "check",
	GroupID: "record",
	Short:   "Compare a benchmark result against history without recording it",
	Long: `Run the same comparison as append against a private copy of the history.
Nothing is written and no notifications are sent, but the exit code follows
the same regression policy.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecord(cmd, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{appendCmd, checkCmd} {
		addRecordFlags(c)
		rootCmd.AddCommand(c)
	}
}

func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("group", "g", "Benchmark", "Benchmark group name")
	cmd.Flags().StringP("tool", "t", "", "Harness that produced the file: "+fmt.Sprint(harness.Tools()))
	cmd.Flags().StringP("file", "f", "", "Harness output file")
	cmd.Flags().String("commit", "", "Commit id (default: from the CI event or git HEAD)")
	cmd.Flags().String("message", "", "Commit message override")
	cmd.Flags().String("author-name", "", "Commit author name override")
	cmd.Flags().String("author-email", "", "Commit author email override")
	cmd.Flags().String("timestamp", "", "Commit timestamp override (RFC3339)")
	cmd.Flags().String("commit-url", "", "Commit URL override")
	cmd.Flags().String("event-path", "", "CI event payload (default: $GITHUB_EVENT_PATH)")
	cmd.Flags().String("ref", "HEAD", "Git ref to resolve when no commit is given")
	cmd.Flags().String("date", "", "Run time (RFC3339, default: now)")
	_ = cmd.MarkFlagRequired("tool")
	_ = cmd.MarkFlagRequired("file")
}

func runRecord(cmd *cobra.Command, dryRun bool) error {
	ctx := cmd.Context()
	group, _ := cmd.Flags().GetString("group")
	tool, _ := cmd.Flags().GetString("tool")
	file, _ := cmd.Flags().GetString("file")
	dateFlag, _ := cmd.Flags().GetString("date")

	cases, err := harness.ParseFile(tool, file)
	if err != nil {
		return err
	}

	var date int64
	if dateFlag != "" {
		t, err := time.Parse(time.RFC3339, dateFlag)
		if err != nil {
			return fmt.Errorf("%w: --date: %v", benchmark.ErrInvalidRun, err)
		}
		date = ci.RunDate(t)
	}

	commit, source, err := resolveCommit(ctx, cmd)
	if err != nil {
		return err
	}
	logger := newLogger("[append] ")
	logger.Printf("Commit %s (from %s)", commit.ID, source)

	var metrics *telemetry.Metrics
	if cfg.MetricsTextfile != "" {
		metrics = telemetry.NewMetrics()
	}

	p, store, err := newPipeline(ctx, metrics)
	if err != nil {
		return err
	}
	defer store.Close()

	in := pipeline.Input{Group: group, Tool: tool, Commit: commit, Date: date, Cases: cases}
	var out *pipeline.Outcome
	if dryRun {
		out, err = p.DryRun(ctx, in)
	} else {
		out, err = p.Run(ctx, in)
	}
	if metrics != nil {
		if werr := metrics.WriteTextfile(cfg.MetricsTextfile); werr != nil {
			logger.Printf("Warning: %v", werr)
		}
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if out.Append.Duplicate {
		fmt.Fprintf(w, "Commit %s is already recorded in %q; comparing the stored run.\n", shortID(commit.ID), group)
	} else if !dryRun {
		fmt.Fprintf(w, "Recorded run %d of %q.\n", out.Append.Length, group)
	}
	if out.Compacted > 0 {
		fmt.Fprintf(w, "Dropped %d old run(s) past max_history_runs=%d.\n", out.Compacted, cfg.MaxHistoryRuns)
	}
	regression.PrintResult(w, group, &out.Result)
	fmt.Fprintln(w, ui.Headline(&out.Result))
	if out.NotifyErr != nil {
		logger.Printf("Warning: notification failed: %v", out.NotifyErr)
	}

	if err := report.AppendSummaryFile(cfg.SummaryFile, report.Summary{
		Group:  group,
		Run:    out.Run,
		Result: &out.Result,
		DryRun: dryRun,
	}); err != nil {
		logger.Printf("Warning: %v", err)
	}

	if out.ShouldFail {
		return errRegression
	}
	return nil
}

// newPipeline opens the store and builds a pipeline from cfg. The caller
// closes the store.
func newPipeline(ctx context.Context, metrics *telemetry.Metrics) (*pipeline.Pipeline, *history.Store, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, nil, err
	}
	detector, err := regression.NewDetector(policy)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx, metrics)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(store, detector, pipeline.Config{
		MaxHistoryRuns:   cfg.MaxHistoryRuns,
		FailOnRegression: cfg.FailOnRegression,
		NotifyAlways:     cfg.NotifyAlways,
		ReportURL:        cfg.RepoURL,
		Logger:           newLogger("[pipeline] "),
		Metrics:          metrics,
		Notifier:         newNotifier(),
	}), store, nil
}

func newNotifier() notify.Notifier {
	notifiers := notify.Multi{notify.NewLogNotifier(newLogger("[notify] "))}
	if cfg.Slack.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Slack.WebhookURL, cfg.Slack.Channel))
	}
	return notifiers
}

func resolveCommit(ctx context.Context, cmd *cobra.Command) (benchmark.Commit, ci.Source, error) {
	opts := ci.Options{RepoURL: cfg.RepoURL}
	opts.CommitID, _ = cmd.Flags().GetString("commit")
	opts.Message, _ = cmd.Flags().GetString("message")
	opts.AuthorName, _ = cmd.Flags().GetString("author-name")
	opts.AuthorEmail, _ = cmd.Flags().GetString("author-email")
	opts.Timestamp, _ = cmd.Flags().GetString("timestamp")
	opts.URL, _ = cmd.Flags().GetString("commit-url")
	opts.EventPath, _ = cmd.Flags().GetString("event-path")
	opts.Ref, _ = cmd.Flags().GetString("ref")

	// The working directory may not be a repository; flags and the event
	// payload still work without one.
	if repo, err := git.New("."); err == nil {
		opts.Repo = repo
	}
	c, source, err := ci.ResolveCommit(ctx, opts)
	if err != nil {
		return c, source, fmt.Errorf("%w: pass --commit", err)
	}
	if cfg.RepoURL == "" {
		cfg.RepoURL = ci.RepoURL(opts.EventPath)
	}
	return c, source, nil
}

func shortID(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}
