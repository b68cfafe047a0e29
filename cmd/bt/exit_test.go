package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/config"
	"github.com/benchtrail/benchtrail/internal/harness"
	"github.com/benchtrail/benchtrail/internal/history"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"regression", errRegression, 1},
		{"wrapped regression", fmt.Errorf("check: %w", errRegression), 1},
		{"unknown tool", harness.ErrUnknownTool, 2},
		{"malformed output", &harness.ParseError{Tool: "json", Err: errors.New("eof")}, 2},
		{"invalid run", benchmark.ErrInvalidRun, 2},
		{"out of order", &history.OutOfOrderError{Group: "g"}, 2},
		{"corrupt", &history.CorruptHistoryError{Medium: "file x", Err: errors.New("bad")}, 2},
		{"config", config.ErrInvalidConfig, 2},
		{"concurrent append", &history.ConcurrentAppendError{Group: "g", Attempts: 5}, 3},
		{"timeout", &history.StoreTimeoutError{Op: "load", Timeout: time.Second}, 3},
		{"other", errors.New("boom"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("2024-03-01T10:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), got)

	got, err = parseSince("2024-03-01", now)
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 1, got.Day())

	got, err = parseSince("3 days ago", now)
	require.NoError(t, err)
	assert.True(t, got.Before(now))
	assert.Equal(t, 7, got.Day())

	_, err = parseSince("whenever", now)
	assert.Error(t, err)
}

func TestFilterRuns(t *testing.T) {
	day := func(d int) int64 { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC).UnixMilli() }
	runs := []benchmark.Run{
		{Commit: benchmark.Commit{ID: "a"}, Date: day(1)},
		{Commit: benchmark.Commit{ID: "b"}, Date: day(2)},
		{Commit: benchmark.Commit{ID: "c"}, Date: day(3)},
	}
	ids := func(rs []benchmark.Run) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.Commit.ID)
		}
		return out
	}

	assert.Equal(t, []string{"c", "b", "a"}, ids(filterRuns(runs, time.Time{}, 0)))
	assert.Equal(t, []string{"c", "b"}, ids(filterRuns(runs, time.Time{}, 2)))
	assert.Equal(t, []string{"c", "b"}, ids(filterRuns(runs, time.UnixMilli(day(2)), 0)))
	assert.Empty(t, filterRuns(runs, time.UnixMilli(day(4)), 0))
}
