package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
	"github.com/benchtrail/benchtrail/internal/history"
	"github.com/benchtrail/benchtrail/internal/notify"
	"github.com/benchtrail/benchtrail/internal/telemetry"
)

type recordingNotifier struct {
	alerts []notify.Alert
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, a notify.Alert) error {
	r.alerts = append(r.alerts, a)
	return r.err
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newPipeline(t *testing.T, medium history.Medium, cfg Config) *Pipeline {
	t.Helper()
	store := history.New(medium, history.Config{Backoff: -1, Logger: quietLogger()})
	d, err := regression.NewDetector(regression.Policy{AlertThreshold: 2})
	require.NoError(t, err)
	cfg.Logger = quietLogger()
	return New(store, d, cfg)
}

func input(id string, date int64, value float64) Input {
	return Input{
		Group:  "Benchmark",
		Tool:   "pytest",
		Commit: benchmark.Commit{ID: id},
		Date:   date,
		Cases: []benchmark.Case{{
			Name:  "test_norm",
			Value: value,
			Unit:  "iter/sec",
			Extra: "mean: 1 msec\nrounds: 100",
		}},
	}
}

func TestRun_DetectsRegressionAndNotifies(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	m := telemetry.NewMetrics()
	p := newPipeline(t, history.NewMemoryMedium(nil), Config{FailOnRegression: true, Notifier: n, Metrics: m})

	out, err := p.Run(ctx, input("a", 1000, 1000))
	require.NoError(t, err)
	assert.False(t, out.Result.HasRegression)
	assert.Empty(t, out.History)
	assert.Empty(t, n.alerts, "no alert without a regression")

	out, err = p.Run(ctx, input("b", 2000, 400))
	require.NoError(t, err)
	assert.True(t, out.Result.HasRegression)
	assert.True(t, out.ShouldFail)
	assert.True(t, out.Notified)
	require.Len(t, out.History, 1)
	assert.Equal(t, "a", out.History[0].Commit.ID)
	require.Len(t, n.alerts, 1)
	assert.Equal(t, "b", n.alerts[0].Commit.ID)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AppendsTotal.WithLabelValues("Benchmark", telemetry.ResultAppended)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("regressed")))
}

func TestRun_RegressionWithoutFailPolicy(t *testing.T) {
	p := newPipeline(t, history.NewMemoryMedium(nil), Config{})
	ctx := context.Background()

	_, err := p.Run(ctx, input("a", 1000, 1000))
	require.NoError(t, err)
	out, err := p.Run(ctx, input("b", 2000, 100))
	require.NoError(t, err)
	assert.True(t, out.Result.ShouldFail)
	assert.False(t, out.ShouldFail)
}

func TestRun_DuplicateJudgedAsOriginallyRecorded(t *testing.T) {
	ctx := context.Background()
	medium := history.NewMemoryMedium(nil)
	p := newPipeline(t, medium, Config{})

	_, err := p.Run(ctx, input("a", 1000, 1000))
	require.NoError(t, err)
	_, err = p.Run(ctx, input("b", 2000, 400))
	require.NoError(t, err)
	_, err = p.Run(ctx, input("c", 3000, 400))
	require.NoError(t, err)
	writes := medium.Writes()

	// Resubmitting b compares it against a, not c.
	out, err := p.Run(ctx, input("b", 4000, 9999))
	require.NoError(t, err)
	assert.True(t, out.Append.Duplicate)
	assert.Equal(t, writes, medium.Writes())
	assert.Equal(t, 400.0, out.Run.Benches[0].Value)
	require.Len(t, out.History, 1)
	assert.True(t, out.Result.HasRegression)
}

func TestRun_CompactsAfterAppend(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, history.NewMemoryMedium(nil), Config{MaxHistoryRuns: 2})

	for i, id := range []string{"a", "b", "c"} {
		_, err := p.Run(ctx, input(id, int64(1000*(i+1)), 1000))
		require.NoError(t, err)
	}
	out, err := p.Run(ctx, input("d", 4000, 1000))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Compacted)

	runs, err := p.store.Read(ctx, "Benchmark")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].Commit.ID)
	assert.Equal(t, "d", runs[1].Commit.ID)
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, history.NewMemoryMedium(nil), Config{})

	_, err := p.Run(ctx, input("", 1000, 1000))
	assert.ErrorIs(t, err, benchmark.ErrInvalidRun)

	_, err = p.Run(ctx, input("a", 2000, 1000))
	require.NoError(t, err)
	_, err = p.Run(ctx, input("b", 1000, 1000))
	assert.ErrorIs(t, err, history.ErrOutOfOrder)
}

func TestRun_NotifyFailureDoesNotFailRun(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{err: errors.New("webhook down")}
	p := newPipeline(t, history.NewMemoryMedium(nil), Config{Notifier: n, NotifyAlways: true})

	out, err := p.Run(ctx, input("a", 1000, 1000))
	require.NoError(t, err)
	assert.False(t, out.Notified)
	assert.EqualError(t, out.NotifyErr, "webhook down")
	assert.Len(t, n.alerts, 1, "always notifies when configured")
}

func TestDryRun_LeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	medium := history.NewMemoryMedium(nil)
	n := &recordingNotifier{}
	p := newPipeline(t, medium, Config{Notifier: n, Now: func() time.Time { return time.UnixMilli(5000) }})

	_, err := p.Run(ctx, input("a", 1000, 1000))
	require.NoError(t, err)
	writes := medium.Writes()

	in := input("b", 0, 100)
	out, err := p.DryRun(ctx, in)
	require.NoError(t, err)
	assert.True(t, out.DryRun)
	assert.True(t, out.Result.HasRegression)
	assert.Equal(t, int64(5000), out.Run.Date)
	assert.Empty(t, n.alerts, "dry runs never notify")
	assert.Equal(t, writes, medium.Writes())

	runs, err := p.store.Read(ctx, "Benchmark")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestDryRun_EmptyHistory(t *testing.T) {
	p := newPipeline(t, history.NewMemoryMedium(nil), Config{})
	out, err := p.DryRun(context.Background(), input("a", 1000, 1000))
	require.NoError(t, err)
	require.Len(t, out.Result.Verdicts, 1)
	assert.Equal(t, regression.InsufficientBaseline, out.Result.Verdicts[0].Kind)
}
