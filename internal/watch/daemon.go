// Package watch provides a daemon that records benchmark result files as
// they appear in a directory.
//
// The daemon:
//  1. Watches a results directory for new or rewritten files
//  2. Waits for writes to settle (debouncing)
//  3. Parses each settled file and runs it through the pipeline
//  4. Reports every outcome to an optional callback, e.g. the dashboard
package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/harness"
	"github.com/benchtrail/benchtrail/internal/pipeline"
)

// DefaultDebounceInterval is how long a file must be quiet before it is read.
const DefaultDebounceInterval = 500 * time.Millisecond

// Runner records one input. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Outcome, error)
}

// CommitFunc resolves the commit a result file belongs to.
type CommitFunc func(ctx context.Context, path string) (benchmark.Commit, error)

// OutcomeFunc is called after every processed file. Exactly one of out and
// err is set.
type OutcomeFunc func(path, group string, out *pipeline.Outcome, err error)

// Config holds configuration for the daemon.
type Config struct {
	Dir   string
	Group string
	Tool  string

	// Pattern filters file names (filepath.Match syntax). Empty selects a
	// default for the tool.
	Pattern string

	// DebounceInterval batches rapid writes to the same file.
	DebounceInterval time.Duration

	// ProcessExisting records files already in Dir on start.
	ProcessExisting bool

	Commit    CommitFunc
	OnOutcome OutcomeFunc

	Logger *log.Logger
}

// Daemon watches a directory and feeds result files to a Runner.
type Daemon struct {
	config Config
	runner Runner
	logger *log.Logger

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // path -> last event
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon. Use Start to begin watching.
func New(runner Runner, config Config) (*Daemon, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("dir cannot be empty")
	}
	if config.Group == "" {
		return nil, fmt.Errorf("group cannot be empty")
	}
	if config.Commit == nil {
		return nil, fmt.Errorf("commit resolver cannot be nil")
	}
	if config.Pattern == "" {
		config.Pattern = DefaultPattern(config.Tool)
	}
	if _, err := filepath.Match(config.Pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", config.Pattern, err)
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultDebounceInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		config:      config,
		runner:      runner,
		logger:      logger,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// DefaultPattern is the file pattern used for a tool's output.
func DefaultPattern(tool string) string {
	if tool == harness.ToolGoBench {
		return "*.txt"
	}
	return "*.json"
}

// Start begins watching. It blocks until ctx is cancelled or Stop is
// called.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Println("Starting daemon")

	if err := d.watcher.Add(d.config.Dir); err != nil {
		return fmt.Errorf("failed to watch results directory: %w", err)
	}
	d.logger.Printf("Watching: %s (%s) for %q", d.config.Dir, d.config.Pattern, d.config.Group)

	if d.config.ProcessExisting {
		if err := d.queueExisting(); err != nil {
			return err
		}
	}

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()

	select {
	case <-ctx.Done():
		d.logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.logger.Println("Daemon stopped")
	return nil
}

func (d *Daemon) queueExisting() error {
	matches, err := filepath.Glob(filepath.Join(d.config.Dir, d.config.Pattern))
	if err != nil {
		return fmt.Errorf("failed to list results directory: %w", err)
	}
	for _, path := range matches {
		d.queueChange(path)
	}
	d.logger.Printf("Queued %d existing file(s)", len(matches))
	return nil
}

func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			// Removal and chmod never produce a new result.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !d.matches(event.Name) {
				continue
			}

			d.logger.Printf("File event: %s %s", event.Op, event.Name)
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Daemon) matches(path string) bool {
	ok, _ := filepath.Match(d.config.Pattern, filepath.Base(path))
	return ok
}

func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			for _, path := range d.settled() {
				d.processFile(path)
			}
		}
	}
}

// settled dequeues files that have been quiet for the debounce interval,
// in the order they were last touched.
func (d *Daemon) settled() []string {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	now := time.Now()
	var ready []string
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
	}
	slices.SortFunc(ready, func(a, b string) int {
		return d.changeQueue[a].Compare(d.changeQueue[b])
	})
	for _, path := range ready {
		delete(d.changeQueue, path)
	}
	return ready
}

func (d *Daemon) processFile(path string) {
	d.logger.Printf("Processing: %s", path)
	out, err := d.record(path)
	if err != nil {
		d.logger.Printf("Error recording %s: %v", path, err)
	} else {
		d.logger.Printf("Recorded %s as %s in %q (regression: %v)",
			filepath.Base(path), out.Run.Commit.ID, d.config.Group, out.Result.HasRegression)
	}
	if d.config.OnOutcome != nil {
		d.config.OnOutcome(path, d.config.Group, out, err)
	}
}

func (d *Daemon) record(path string) (*pipeline.Outcome, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("result file vanished: %w", err)
	}
	cases, err := harness.ParseFile(d.config.Tool, path)
	if err != nil {
		return nil, err
	}
	commit, err := d.config.Commit(d.ctx, path)
	if err != nil {
		return nil, err
	}
	out, err := d.runner.Run(d.ctx, pipeline.Input{
		Group:  d.config.Group,
		Tool:   d.config.Tool,
		Commit: commit,
		Cases:  cases,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
