// Package gitstore provides a history.Medium that keeps the artifact as a
// file on a git branch, the layout GitHub Pages benchmark dashboards use
// (dev/bench/data.js on gh-pages).
//
// The revision is the branch's commit hash. A write builds a new commit on
// top of the expected revision and advances the branch with a
// compare-and-swap ref update, so a writer that loaded an older commit
// always loses. With a remote configured the branch is fetched before every
// load and the new commit is pushed; a rejected push is a revision conflict
// and the store retries from a fresh fetch.
package gitstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/benchtrail/benchtrail/internal/history"
	"github.com/benchtrail/benchtrail/internal/vcs"
)

// Defaults for Options.
const (
	DefaultBranch = "gh-pages"
	DefaultFile   = "dev/bench/data.js"
)

// Options configures a Medium.
type Options struct {
	// Branch holding the artifact.
	Branch string

	// File is the artifact path within the branch.
	File string

	// Remote, when set, is fetched from and pushed to. Empty keeps history
	// in the local repository only.
	Remote string

	// Message is the commit message for artifact updates.
	Message string

	// Author is the commit identity. Zero uses vcs.DefaultIdentity.
	Author vcs.Person
}

// Medium stores the artifact on a git branch.
type Medium struct {
	repo vcs.Repository
	opts Options
}

// New returns a medium over repo.
func New(repo vcs.Repository, opts Options) *Medium {
	if opts.Branch == "" {
		opts.Branch = DefaultBranch
	}
	if opts.File == "" {
		opts.File = DefaultFile
	}
	if opts.Message == "" {
		opts.Message = "Add benchmark results"
	}
	return &Medium{repo: repo, opts: opts}
}

// localRef is the branch ref in the local repository.
func (m *Medium) localRef() string {
	return "refs/heads/" + m.opts.Branch
}

// trackingRef is the ref loads read from: the remote-tracking ref when a
// remote is configured, the local branch otherwise.
func (m *Medium) trackingRef() string {
	if m.opts.Remote == "" {
		return m.localRef()
	}
	return "refs/remotes/" + m.opts.Remote + "/" + m.opts.Branch
}

func (m *Medium) Load(ctx context.Context) ([]byte, history.Revision, error) {
	if m.opts.Remote != "" {
		refspec := "+" + m.localRef() + ":" + m.trackingRef()
		if err := m.repo.Fetch(ctx, m.opts.Remote, refspec); err != nil {
			// The branch not existing on the remote yet means empty history.
			if !errors.Is(err, vcs.ErrRefNotFound) {
				return nil, "", m.classify(err)
			}
			return nil, "", nil
		}
	}

	hash, err := m.repo.GetCommitHash(ctx, m.trackingRef())
	if errors.Is(err, vcs.ErrRefNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", m.classify(err)
	}

	content, err := m.repo.ExtractFileFromRef(ctx, hash, m.opts.File)
	if errors.Is(err, vcs.ErrPathNotFound) {
		return nil, history.Revision(hash), nil
	}
	if err != nil {
		return nil, "", m.classify(err)
	}
	return content, history.Revision(hash), nil
}

func (m *Medium) Store(ctx context.Context, content []byte, expected history.Revision) (history.Revision, error) {
	commit, err := m.repo.WriteFileCommit(ctx, vcs.FileCommitOptions{
		Parent:  string(expected),
		Path:    m.opts.File,
		Content: content,
		Message: m.opts.Message,
		Author:  m.opts.Author,
	})
	if err != nil {
		return "", m.classify(err)
	}

	if m.opts.Remote == "" {
		if err := m.repo.UpdateRef(ctx, m.localRef(), commit, string(expected)); err != nil {
			return "", m.classify(err)
		}
		return history.Revision(commit), nil
	}

	err = m.repo.Push(ctx, vcs.PushOptions{Remote: m.opts.Remote, Refspec: commit + ":" + m.localRef()})
	if err != nil {
		return "", m.classify(err)
	}

	// Mirror the pushed commit locally. These refs are caches, so a failure
	// here does not undo the successful push.
	_ = m.repo.UpdateRef(ctx, m.trackingRef(), commit, string(expected))
	_, _ = m.repo.Exec(ctx, "update-ref", m.localRef(), commit)
	return history.Revision(commit), nil
}

// classify maps a git failure onto the store's errors. A moved ref or a
// rejected push means another writer won, so the store reloads and retries.
// Timeouts pass through; the store reports them from the expired context.
func (m *Medium) classify(err error) error {
	switch {
	case errors.Is(err, vcs.ErrTimeout):
		return err
	case vcs.IsRetryable(err):
		return fmt.Errorf("%w: %w", history.ErrRevisionConflict, err)
	case vcs.IsFatal(err):
		return fmt.Errorf("git is unusable for %s: %w", m, err)
	}
	return err
}

func (m *Medium) String() string {
	if m.opts.Remote != "" {
		return fmt.Sprintf("git %s/%s:%s", m.opts.Remote, m.opts.Branch, m.opts.File)
	}
	return fmt.Sprintf("git %s:%s", m.opts.Branch, m.opts.File)
}

func (m *Medium) Close() error { return nil }
