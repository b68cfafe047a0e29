// Package pipeline runs one benchmark result through the whole flow:
// build the run, append it to history, compare it against its baseline,
// compact old history, and tell people about regressions.
//
// A dry run performs the same steps against an in-memory copy of the
// history, so nothing durable is written and nobody is notified.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
	"github.com/benchtrail/benchtrail/internal/history"
	"github.com/benchtrail/benchtrail/internal/notify"
	"github.com/benchtrail/benchtrail/internal/publish"
	"github.com/benchtrail/benchtrail/internal/telemetry"
)

// Config holds pipeline settings.
type Config struct {
	// MaxHistoryRuns caps each group after an append. Zero keeps
	// everything.
	MaxHistoryRuns int

	// FailOnRegression makes Outcome.ShouldFail follow the detector's
	// ShouldFail. Otherwise regressions only alert.
	FailOnRegression bool

	// NotifyAlways sends a notification for every run, not just
	// regressions.
	NotifyAlways bool

	// ReportURL is passed to notifications.
	ReportURL string

	Logger   *log.Logger
	Metrics  *telemetry.Metrics
	Notifier notify.Notifier

	// Now defaults to time.Now.
	Now func() time.Time
}

// Input is one harness result to record.
type Input struct {
	Group  string
	Tool   string
	Commit benchmark.Commit

	// Date is the run time in epoch milliseconds. Zero means now.
	Date int64

	Cases []benchmark.Case
}

// Outcome describes a completed pipeline run.
type Outcome struct {
	Run    benchmark.Run
	Append history.AppendResult
	Result regression.Result

	// History is the group's history before the run, as compared against.
	History []benchmark.Run

	// Compacted counts runs dropped by retention.
	Compacted int

	DryRun bool

	// Notified is set when a notification was sent successfully.
	Notified bool

	// NotifyErr records a failed notification; it does not fail the run.
	NotifyErr error

	// ShouldFail is set when the run should fail the CI job.
	ShouldFail bool
}

// Pipeline wires a history store to a detector.
type Pipeline struct {
	store    *history.Store
	detector *regression.Detector
	config   Config
	logger   *log.Logger
}

// New creates a pipeline.
func New(store *history.Store, detector *regression.Detector, config Config) *Pipeline {
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[pipeline] ", log.LstdFlags)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Pipeline{store: store, detector: detector, config: config, logger: logger}
}

// Run records in and evaluates it.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Outcome, error) {
	return p.run(ctx, in, p.store, false)
}

// DryRun evaluates in as Run would, against a private copy of the history.
// The real store is only read.
func (p *Pipeline) DryRun(ctx context.Context, in Input) (*Outcome, error) {
	doc, _, err := p.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	content, err := publish.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to copy history: %w", err)
	}
	scratch := history.New(history.NewMemoryMedium(content), history.Config{
		Backoff: -1,
		Logger:  log.New(p.logger.Writer(), "[dry-run] ", p.logger.Flags()),
	})
	return p.run(ctx, in, scratch, true)
}

func (p *Pipeline) run(ctx context.Context, in Input, store *history.Store, dryRun bool) (*Outcome, error) {
	date := in.Date
	if date == 0 {
		date = p.config.Now().UnixMilli()
	}

	run, err := benchmark.NewRun(in.Commit, date, in.Tool, in.Cases)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Run: *run, DryRun: dryRun}

	res, err := store.Append(ctx, in.Group, *run)
	if p.config.Metrics != nil && !dryRun {
		p.config.Metrics.RecordAppend(in.Group, res, err, p.config.Now())
	}
	if err != nil {
		return out, err
	}
	out.Append = res

	runs, err := store.Read(ctx, in.Group)
	if err != nil {
		return out, err
	}
	prior, stored := splitAt(runs, run.Commit.ID)
	if stored != nil {
		// A resubmission is judged as originally recorded.
		out.Run = *stored
	}
	out.History = prior
	out.Result = p.detector.Detect(prior, out.Run)
	out.ShouldFail = p.config.FailOnRegression && out.Result.ShouldFail
	if p.config.Metrics != nil && !dryRun {
		p.config.Metrics.RecordResult(&out.Result)
	}

	if p.config.MaxHistoryRuns > 0 && !res.Duplicate {
		dropped, err := store.CompactTo(ctx, in.Group, p.config.MaxHistoryRuns)
		if err != nil {
			p.logger.Printf("Warning: failed to compact %q: %v", in.Group, err)
		}
		out.Compacted = dropped
	}

	if !dryRun {
		p.notify(ctx, in.Group, out)
	}
	return out, nil
}

func (p *Pipeline) notify(ctx context.Context, group string, out *Outcome) {
	if p.config.Notifier == nil {
		return
	}
	if !out.Result.HasRegression && !p.config.NotifyAlways {
		return
	}
	err := p.config.Notifier.Notify(ctx, notify.Alert{
		Group:     group,
		Commit:    out.Run.Commit,
		Result:    &out.Result,
		ReportURL: p.config.ReportURL,
	})
	if err != nil {
		p.logger.Printf("Warning: notification failed: %v", err)
		out.NotifyErr = err
		return
	}
	out.Notified = true
}

// splitAt returns the runs before the one with commit id, and that run.
// When the commit is no longer present (compacted away concurrently) the
// whole history is prior.
func splitAt(runs []benchmark.Run, id string) ([]benchmark.Run, *benchmark.Run) {
	for i := range runs {
		if runs[i].Commit.ID == id {
			return runs[:i], &runs[i]
		}
	}
	return runs, nil
}
