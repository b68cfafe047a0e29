package git

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/benchtrail/benchtrail/internal/vcs"
)

// HasRemote returns true if the named remote is configured
func (g *Git) HasRemote(name string) bool {
	if name == "" {
		name = "origin"
	}
	cmd := exec.Command("git", "remote", "get-url", name)
	cmd.Dir = g.repoRoot
	return cmd.Run() == nil
}

// Fetch fetches refspec from the remote
// If remote is empty, uses the default remote (origin)
func (g *Git) Fetch(ctx context.Context, remote, refspec string) error {
	if remote == "" {
		remote = "origin"
	}
	if !g.HasRemote(remote) {
		return fmt.Errorf("%w: %s", vcs.ErrNoRemote, remote)
	}

	args := []string{"fetch", "--quiet", remote}
	if refspec != "" {
		args = append(args, refspec)
	}

	if _, err := g.run(ctx, nil, nil, args...); err != nil {
		if stderrContains(err, "couldn't find remote ref") {
			return fmt.Errorf("%w: %s %s", vcs.ErrRefNotFound, remote, refspec)
		}
		return fmt.Errorf("git fetch failed: %w", err)
	}
	return nil
}

// Push pushes changes to the remote
func (g *Git) Push(ctx context.Context, opts vcs.PushOptions) error {
	remote := opts.Remote
	if remote == "" {
		remote = "origin"
	}
	if !g.HasRemote(remote) {
		return fmt.Errorf("%w: %s", vcs.ErrNoRemote, remote)
	}
	if opts.Refspec == "" {
		return fmt.Errorf("push refspec is required")
	}

	if _, err := g.run(ctx, nil, nil, "push", "--quiet", remote, opts.Refspec); err != nil {
		// Check for push rejection
		if stderrContains(err, "rejected", "non-fast-forward", "fetch first") {
			return vcs.ErrPushRejected
		}
		return fmt.Errorf("git push failed: %w", err)
	}
	return nil
}
