// Package git provides a Git implementation of the vcs.Repository interface.
//
// This package wraps git commands. Artifact commits are built with plumbing
// (hash-object, a temporary index, write-tree, commit-tree) so the user's
// working tree and index are never touched.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/benchtrail/benchtrail/internal/vcs"
)

// Git implements vcs.Repository for git repositories.
type Git struct {
	// repoRoot is the repository root directory path
	repoRoot string
}

var _ vcs.Repository = (*Git)(nil)

// New creates a new Git instance for the given repository.
// The path should be somewhere within a git repository.
func New(path string) (*Git, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, vcs.ErrVCSNotAvailable
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = absPath
	output, err := cmd.Output()
	if err != nil {
		return nil, vcs.ErrNotInVCS
	}

	return &Git{repoRoot: strings.TrimSpace(string(output))}, nil
}

// Name returns the VCS type (git)
func (g *Git) Name() vcs.Type {
	return vcs.TypeGit
}

// Version returns the git version string
func (g *Git) Version() (string, error) {
	cmd := exec.Command("git", "--version")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git version: %w", err)
	}

	// Output format: "git version 2.39.0"
	version := strings.TrimSpace(string(output))
	return strings.TrimPrefix(version, "git version "), nil
}

// RepoRoot returns the repository root directory path
func (g *Git) RepoRoot() string {
	return g.repoRoot
}

// Exec executes a raw git command
func (g *Git) Exec(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoRoot

	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("git %s failed: %w\n%s",
			strings.Join(args, " "), err, string(output))
	}

	return output, nil
}

// run executes git with extra environment and stdin, returning trimmed
// stdout. Stderr is folded into the error.
func (g *Git) run(ctx context.Context, env []string, stdin []byte, args ...string) (string, error) {
	out, err := g.runRaw(ctx, env, stdin, args...)
	return strings.TrimSpace(string(out)), err
}

// runRaw is run without trimming stdout.
func (g *Git) runRaw(ctx context.Context, env []string, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoRoot
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("git %s: %w", args[0], vcs.ErrTimeout)
			}
			return nil, ctxErr
		}
		return nil, &commandError{args: args, err: err, stderr: strings.TrimSpace(stderr.String())}
	}
	return stdout.Bytes(), nil
}

// commandError is a failed git invocation with its stderr.
type commandError struct {
	args   []string
	err    error
	stderr string
}

func (e *commandError) Error() string {
	return fmt.Sprintf("git %s failed: %v\n%s", strings.Join(e.args, " "), e.err, e.stderr)
}

func (e *commandError) Unwrap() error {
	return e.err
}

func isCommandError(err error) bool {
	var ce *commandError
	return errors.As(err, &ce)
}

func stderrContains(err error, needles ...string) bool {
	var ce *commandError
	if !errors.As(err, &ce) {
		return false
	}
	for _, n := range needles {
		if strings.Contains(ce.stderr, n) {
			return true
		}
	}
	return false
}
