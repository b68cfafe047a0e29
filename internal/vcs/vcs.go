// Package vcs defines the version control operations benchtrail needs.
//
// Two things touch version control:
//   - CI metadata resolution reads commit identity (hash, tree, author,
//     committer, message) for the run being recorded.
//   - The git-backed history medium keeps the artifact as a file on a branch
//     (the gh-pages dev/bench/data.js layout) and advances that branch with
//     a compare-and-swap ref update.
//
// Both go through the Repository interface. The implementation lives in
// internal/vcs/git and shells out to the git binary.
//
// # Usage
//
//	repo, err := git.New(".")
//	if err != nil {
//	    return err
//	}
//	info, err := repo.CommitInfo(ctx, "HEAD")
package vcs

import (
	"context"
	"time"
)

// Type represents the VCS backend type
type Type string

const (
	// TypeGit indicates a git repository
	TypeGit Type = "git"
)

// String returns the string representation of the VCS type
func (t Type) String() string {
	return string(t)
}

// Repository is the set of operations benchtrail performs on a repository.
type Repository interface {
	// Name returns the VCS type.
	Name() Type

	// RepoRoot returns the repository root directory path.
	RepoRoot() string

	// GetCommitHash resolves ref to a commit hash. Returns ErrRefNotFound
	// when the ref does not exist.
	GetCommitHash(ctx context.Context, ref string) (string, error)

	// CommitInfo returns identity and metadata for the commit at ref.
	CommitInfo(ctx context.Context, ref string) (*CommitInfo, error)

	// ExtractFileFromRef returns a file's content at ref. Returns
	// ErrPathNotFound when the file is absent at that commit.
	ExtractFileFromRef(ctx context.Context, ref, path string) ([]byte, error)

	// WriteFileCommit creates a commit that sets one file's content on top
	// of opts.Parent without touching the working tree or the index. It
	// returns the new commit hash. No ref is moved.
	WriteFileCommit(ctx context.Context, opts FileCommitOptions) (string, error)

	// UpdateRef points ref at newHash only if it currently points at
	// oldHash (empty oldHash: ref must not exist). Returns ErrRefMoved when
	// the ref changed.
	UpdateRef(ctx context.Context, ref, newHash, oldHash string) error

	// HasRemote reports whether the named remote is configured.
	HasRemote(name string) bool

	// Fetch fetches refspec from remote.
	Fetch(ctx context.Context, remote, refspec string) error

	// Push pushes to the remote. Returns ErrPushRejected on non-fast-forward.
	Push(ctx context.Context, opts PushOptions) error

	// Exec executes a raw VCS command (escape hatch).
	Exec(ctx context.Context, args ...string) ([]byte, error)
}

// Person is a commit author or committer.
type Person struct {
	Name  string
	Email string
	When  time.Time
}

// CommitInfo describes a commit.
type CommitInfo struct {
	Hash      string
	Tree      string
	Author    Person
	Committer Person
	Message   string
}

// FileCommitOptions configures WriteFileCommit.
type FileCommitOptions struct {
	// Parent is the parent commit. Empty creates a root commit.
	Parent string

	// Path is the file path relative to the repository root.
	Path string

	Content []byte

	// Message is the commit message (required)
	Message string

	// Author overrides the commit identity. Zero uses DefaultIdentity.
	Author Person
}

// PushOptions configures a push operation
type PushOptions struct {
	// Remote is the remote name. Empty uses origin.
	Remote string

	// Refspec is what to push, e.g. "<hash>:refs/heads/gh-pages".
	Refspec string
}

// DefaultIdentity is the commit identity used for artifact commits when no
// author is configured.
var DefaultIdentity = Person{
	Name:  "benchtrail",
	Email: "benchtrail@users.noreply.github.com",
}
