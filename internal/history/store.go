// Package history is the durable, append-only store of benchmark runs, one
// ordered feed per benchmark group.
//
// The store owns no locks. Every mutation is a read-modify-write cycle over a
// Medium whose Store call is a compare-and-swap on the medium's own revision.
// When another writer wins the race the whole cycle is retried, up to
// Config.MaxRetries attempts. This works across CI runners because the
// revision check happens at the medium (file hash, git ref, database row).
//
// Example:
//
//	store := history.New(history.NewFileMedium("dev/bench/data.js"), history.Config{})
//	res, err := store.Append(ctx, "Benchmark", run)
//	if errors.Is(err, history.ErrConcurrentAppend) {
//	    // surface as a retryable CI failure
//	}
package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/publish"
)

const (
	// DefaultMaxRetries bounds compare-and-swap attempts per operation.
	DefaultMaxRetries = 5

	// DefaultTimeout bounds each individual medium call.
	DefaultTimeout = 30 * time.Second

	// DefaultBackoff is the base delay between conflicting attempts.
	DefaultBackoff = 100 * time.Millisecond
)

// Observer receives store events. telemetry.Metrics implements it.
type Observer interface {
	ObserveStoreCall(op string, d time.Duration, err error)
	ObserveConflict(group string)
}

// Config holds store settings. Zero values select defaults.
type Config struct {
	// RepoURL, when set, is written to the artifact's repoUrl on every
	// write.
	RepoURL string

	MaxRetries int
	Timeout    time.Duration

	// Backoff is the base delay between attempts. Negative disables it.
	Backoff time.Duration

	Logger   *log.Logger
	Observer Observer
}

// AppendResult describes the outcome of Append.
type AppendResult struct {
	Group string

	// Index is the position of the run in the group.
	Index int

	// Length is the group length after the append. For a duplicate it is
	// the length the group had right after the original append.
	Length int

	// Previous is the run before this one in the group, if any.
	Previous *benchmark.Run

	// Duplicate is set when the commit was already present and nothing was
	// written.
	Duplicate bool

	// Attempts counts compare-and-swap attempts, including the successful
	// one.
	Attempts int

	Revision Revision
}

// Store is a history store over a Medium. It is safe for concurrent use.
type Store struct {
	medium Medium
	config Config
	logger *log.Logger
}

// New returns a store over medium.
func New(medium Medium, config Config) *Store {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Backoff == 0 {
		config.Backoff = DefaultBackoff
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	return &Store{medium: medium, config: config, logger: logger}
}

// Medium returns the underlying medium.
func (s *Store) Medium() Medium {
	return s.medium
}

// Close closes the underlying medium.
func (s *Store) Close() error {
	return s.medium.Close()
}

// Append adds run to the end of group. Resubmitting a commit already in the
// group returns the original result without writing. A run dated before the
// group's latest run is rejected with OutOfOrderError.
func (s *Store) Append(ctx context.Context, group string, run benchmark.Run) (AppendResult, error) {
	if err := run.Validate(); err != nil {
		return AppendResult{}, err
	}
	if group == "" {
		return AppendResult{}, &benchmark.ValidationError{Field: "group", Reason: "must not be empty"}
	}

	var result AppendResult
	err := s.update(ctx, group, func(doc *publish.Document) (bool, error) {
		runs := doc.Runs(group)

		if i := indexOfCommit(runs, run.Commit.ID); i >= 0 {
			result = AppendResult{Group: group, Index: i, Length: i + 1, Duplicate: true}
			if i > 0 {
				prev := runs[i-1].Clone()
				result.Previous = &prev
			}
			return false, nil
		}

		if n := len(runs); n > 0 && run.Date < runs[n-1].Date {
			return false, &OutOfOrderError{
				Group:      group,
				Date:       run.Date,
				LastDate:   runs[n-1].Date,
				LastCommit: runs[n-1].Commit.ID,
			}
		}

		result = AppendResult{Group: group, Index: len(runs), Length: len(runs) + 1}
		if n := len(runs); n > 0 {
			prev := runs[n-1].Clone()
			result.Previous = &prev
		}
		next := make([]benchmark.Run, 0, len(runs)+1)
		next = append(next, runs...)
		doc.SetRuns(group, append(next, run.Clone()))
		return true, nil
	}, func(attempts int, rev Revision) {
		result.Attempts = attempts
		result.Revision = rev
	})
	if err != nil {
		return AppendResult{}, err
	}

	if result.Duplicate {
		s.logger.Printf("commit %s already recorded in %q at index %d, nothing written", run.Commit.ID, group, result.Index)
	} else {
		s.logger.Printf("appended commit %s to %q (%d runs, %d attempt(s))", run.Commit.ID, group, result.Length, result.Attempts)
	}
	return result, nil
}

// Read returns a copy of the full ordered history of group. Unknown groups
// yield an empty slice.
func (s *Store) Read(ctx context.Context, group string) ([]benchmark.Run, error) {
	doc, _, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	runs := benchmark.CloneRuns(doc.Runs(group))
	if runs == nil {
		runs = []benchmark.Run{}
	}
	return runs, nil
}

// Groups lists group names in artifact order.
func (s *Store) Groups(ctx context.Context) ([]string, error) {
	doc, _, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Names(), nil
}

// Snapshot returns the decoded artifact and its revision. The document is the
// caller's to modify.
func (s *Store) Snapshot(ctx context.Context) (*publish.Document, Revision, error) {
	return s.load(ctx)
}

// CompactTo drops the oldest runs of group beyond maxRuns and returns how
// many were removed. The newest runs are always kept.
func (s *Store) CompactTo(ctx context.Context, group string, maxRuns int) (int, error) {
	if maxRuns < 1 {
		return 0, fmt.Errorf("compact %q: maxRuns must be at least 1, got %d", group, maxRuns)
	}

	dropped := 0
	err := s.update(ctx, group, func(doc *publish.Document) (bool, error) {
		runs := doc.Runs(group)
		if len(runs) <= maxRuns {
			dropped = 0
			return false, nil
		}
		dropped = len(runs) - maxRuns
		kept := make([]benchmark.Run, maxRuns)
		copy(kept, runs[dropped:])
		doc.SetRuns(group, kept)
		return true, nil
	}, nil)
	if err != nil {
		return 0, err
	}
	if dropped > 0 {
		s.logger.Printf("compacted %q: dropped %d oldest run(s), kept %d", group, dropped, maxRuns)
	}
	return dropped, nil
}

// mutateFunc edits doc in place and reports whether it changed.
type mutateFunc func(doc *publish.Document) (bool, error)

// update runs the read-modify-write cycle with bounded retries. A mutation
// that reports no change ends the cycle without writing.
func (s *Store) update(ctx context.Context, group string, mutate mutateFunc, done func(attempts int, rev Revision)) error {
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		doc, rev, err := s.load(ctx)
		if err != nil {
			return err
		}

		changed, err := mutate(doc)
		if err != nil {
			return err
		}
		if !changed {
			if done != nil {
				done(attempt, rev)
			}
			return nil
		}

		if s.config.RepoURL != "" {
			doc.RepoURL = s.config.RepoURL
		}
		content, err := publish.Encode(doc)
		if err != nil {
			return fmt.Errorf("failed to encode history: %w", err)
		}

		var newRev Revision
		err = s.call(ctx, "store", func(ctx context.Context) error {
			var err error
			newRev, err = s.medium.Store(ctx, content, rev)
			return err
		})
		if err == nil {
			if done != nil {
				done(attempt, newRev)
			}
			return nil
		}
		if !errors.Is(err, ErrRevisionConflict) {
			return err
		}

		if s.config.Observer != nil {
			s.config.Observer.ObserveConflict(group)
		}
		s.logger.Printf("revision %q of %s changed underneath us (attempt %d/%d), retrying",
			rev, s.medium, attempt, s.config.MaxRetries)
		if attempt < s.config.MaxRetries {
			if err := s.sleep(ctx, attempt); err != nil {
				return err
			}
		}
	}
	return &ConcurrentAppendError{Group: group, Attempts: s.config.MaxRetries}
}

func (s *Store) load(ctx context.Context) (*publish.Document, Revision, error) {
	var (
		content []byte
		rev     Revision
	)
	err := s.call(ctx, "load", func(ctx context.Context) error {
		var err error
		content, rev, err = s.medium.Load(ctx)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	if len(content) == 0 {
		return &publish.Document{RepoURL: s.config.RepoURL}, rev, nil
	}
	doc, err := publish.Decode(content)
	if err != nil {
		return nil, "", &CorruptHistoryError{Medium: s.medium.String(), Err: err}
	}
	return doc, rev, nil
}

// call runs one medium operation under the configured timeout. Deadline
// expiry, whether from the timeout or the caller's context, becomes a
// StoreTimeoutError.
func (s *Store) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	if s.config.Observer != nil {
		s.config.Observer.ObserveStoreCall(op, time.Since(start), err)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &StoreTimeoutError{Op: fmt.Sprintf("%s %s", op, s.medium), Timeout: s.config.Timeout, Err: err}
	}
	if errors.Is(err, ErrRevisionConflict) {
		return err
	}
	return fmt.Errorf("%s %s: %w", op, s.medium, err)
}

// sleep waits a jittered, linearly growing backoff before the next attempt.
func (s *Store) sleep(ctx context.Context, attempt int) error {
	base := s.config.Backoff * time.Duration(attempt)
	if base <= 0 {
		return ctx.Err()
	}
	d := base/2 + time.Duration(rand.Int64N(int64(base/2)+1))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func indexOfCommit(runs []benchmark.Run, id string) int {
	for i := range runs {
		if runs[i].Commit.ID == id {
			return i
		}
	}
	return -1
}
