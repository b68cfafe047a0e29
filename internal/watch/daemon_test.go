package watch

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/harness"
	"github.com/benchtrail/benchtrail/internal/pipeline"
)

type fakeRunner struct {
	mu     sync.Mutex
	inputs []pipeline.Input
}

func (f *fakeRunner) Run(_ context.Context, in pipeline.Input) (*pipeline.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	return &pipeline.Outcome{Run: benchmark.Run{Commit: in.Commit, Tool: in.Tool, Benches: in.Cases}}, nil
}

type event struct {
	path string
	out  *pipeline.Outcome
	err  error
}

const caseList = `[{"name": "test_norm", "value": 1000, "unit": "iter/sec"}]`

func startDaemon(t *testing.T, dir string, existing bool) (*fakeRunner, <-chan event) {
	t.Helper()
	runner := &fakeRunner{}
	events := make(chan event, 10)

	d, err := New(runner, Config{
		Dir:              dir,
		Group:            "Benchmark",
		Tool:             harness.ToolJSON,
		DebounceInterval: 50 * time.Millisecond,
		ProcessExisting:  existing,
		Commit: func(ctx context.Context, path string) (benchmark.Commit, error) {
			return benchmark.Commit{ID: filepath.Base(path)}, nil
		},
		OnOutcome: func(path, group string, out *pipeline.Outcome, err error) {
			events <- event{path: path, out: out, err: err}
		},
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Start() returned %v", err)
		}
	})

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	return runner, events
}

func waitEvent(t *testing.T, events <-chan event) event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a processed file")
		return event{}
	}
}

func TestNew_Validation(t *testing.T) {
	commit := func(context.Context, string) (benchmark.Commit, error) { return benchmark.Commit{}, nil }

	tests := []struct {
		name   string
		runner Runner
		config Config
	}{
		{"nil runner", nil, Config{Dir: "d", Group: "g", Commit: commit}},
		{"no dir", &fakeRunner{}, Config{Group: "g", Commit: commit}},
		{"no group", &fakeRunner{}, Config{Dir: "d", Commit: commit}},
		{"no commit", &fakeRunner{}, Config{Dir: "d", Group: "g"}},
		{"bad pattern", &fakeRunner{}, Config{Dir: "d", Group: "g", Commit: commit, Pattern: "["}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.runner, tt.config); err == nil {
				t.Error("New() succeeded, want error")
			}
		})
	}
}

func TestDefaultPattern(t *testing.T) {
	if got := DefaultPattern(harness.ToolGoBench); got != "*.txt" {
		t.Errorf("DefaultPattern(gobench) = %q", got)
	}
	if got := DefaultPattern(harness.ToolPytest); got != "*.json" {
		t.Errorf("DefaultPattern(pytest) = %q", got)
	}
}

func TestDaemon_RecordsNewFile(t *testing.T) {
	dir := t.TempDir()
	runner, events := startDaemon(t, dir, false)

	// Ignored: wrong extension.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "run1.json")
	if err := os.WriteFile(path, []byte(caseList), 0644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, events)
	if ev.err != nil {
		t.Fatalf("processing failed: %v", ev.err)
	}
	if ev.path != path {
		t.Errorf("processed %s, want %s", ev.path, path)
	}
	if ev.out.Run.Commit.ID != "run1.json" {
		t.Errorf("commit = %q", ev.out.Run.Commit.ID)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.inputs) != 1 {
		t.Fatalf("runner called %d times, want 1", len(runner.inputs))
	}
	in := runner.inputs[0]
	if in.Group != "Benchmark" || in.Tool != harness.ToolJSON || len(in.Cases) != 1 {
		t.Errorf("unexpected input %+v", in)
	}
}

func TestDaemon_ProcessExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.json"), []byte(caseList), 0644); err != nil {
		t.Fatal(err)
	}

	_, events := startDaemon(t, dir, true)

	ev := waitEvent(t, events)
	if ev.err != nil {
		t.Fatalf("processing failed: %v", ev.err)
	}
	if filepath.Base(ev.path) != "old.json" {
		t.Errorf("processed %s, want old.json", ev.path)
	}
}

func TestDaemon_ReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	_, events := startDaemon(t, dir, false)

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, events)
	if !errors.Is(ev.err, harness.ErrMalformedOutput) {
		t.Errorf("err = %v, want ErrMalformedOutput", ev.err)
	}
	if ev.out != nil {
		t.Error("outcome should be nil on error")
	}
}
