package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benchtrail/benchtrail/internal/vcs"
)

// commitFormat separates fields with NUL so messages may contain anything.
const commitFormat = "%H%x00%T%x00%an%x00%ae%x00%aI%x00%cn%x00%ce%x00%cI%x00%B"

// CommitInfo returns identity and metadata for the commit at ref
func (g *Git) CommitInfo(ctx context.Context, ref string) (*vcs.CommitInfo, error) {
	hash, err := g.GetCommitHash(ctx, ref)
	if err != nil {
		return nil, err
	}

	out, err := g.runRaw(ctx, nil, nil, "show", "-s", "--format="+commitFormat, hash)
	if err != nil {
		return nil, fmt.Errorf("git show failed: %w", err)
	}

	parts := strings.SplitN(string(out), "\x00", 9)
	if len(parts) != 9 {
		return nil, fmt.Errorf("unexpected git show output: got %d fields, expected 9", len(parts))
	}

	authorWhen, _ := time.Parse(time.RFC3339, parts[4])
	committerWhen, _ := time.Parse(time.RFC3339, parts[7])

	return &vcs.CommitInfo{
		Hash:      parts[0],
		Tree:      parts[1],
		Author:    vcs.Person{Name: parts[2], Email: parts[3], When: authorWhen},
		Committer: vcs.Person{Name: parts[5], Email: parts[6], When: committerWhen},
		Message:   strings.TrimRight(parts[8], "\n"),
	}, nil
}

// WriteFileCommit creates a commit setting one file on top of opts.Parent.
// The blob is written with hash-object, staged into a private index file
// seeded from the parent tree, and committed with commit-tree. The working
// tree, the real index, and all refs are left alone.
func (g *Git) WriteFileCommit(ctx context.Context, opts vcs.FileCommitOptions) (string, error) {
	if opts.Message == "" {
		return "", fmt.Errorf("commit message is required")
	}
	if opts.Path == "" {
		return "", fmt.Errorf("file path is required")
	}
	path := filepath.ToSlash(filepath.Clean(opts.Path))

	blob, err := g.run(ctx, nil, opts.Content, "hash-object", "-w", "--stdin")
	if err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "benchtrail-index-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	indexEnv := []string{"GIT_INDEX_FILE=" + filepath.Join(tmpDir, "index")}

	if opts.Parent != "" {
		_, err = g.run(ctx, indexEnv, nil, "read-tree", opts.Parent)
	} else {
		_, err = g.run(ctx, indexEnv, nil, "read-tree", "--empty")
	}
	if err != nil {
		return "", fmt.Errorf("failed to read parent tree: %w", err)
	}

	if _, err := g.run(ctx, indexEnv, nil, "update-index", "--add", "--cacheinfo", "100644,"+blob+","+path); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", path, err)
	}

	tree, err := g.run(ctx, indexEnv, nil, "write-tree")
	if err != nil {
		return "", fmt.Errorf("failed to write tree: %w", err)
	}

	author := opts.Author
	if author.Name == "" || author.Email == "" {
		author = vcs.DefaultIdentity
	}
	identityEnv := []string{
		"GIT_AUTHOR_NAME=" + author.Name,
		"GIT_AUTHOR_EMAIL=" + author.Email,
		"GIT_COMMITTER_NAME=" + author.Name,
		"GIT_COMMITTER_EMAIL=" + author.Email,
	}

	args := []string{"commit-tree", tree, "-m", opts.Message}
	if opts.Parent != "" {
		args = append(args, "-p", opts.Parent)
	}
	commit, err := g.run(ctx, identityEnv, nil, args...)
	if err != nil {
		return "", fmt.Errorf("failed to create commit: %w", err)
	}
	return commit, nil
}
