package git

import (
	"context"
	"fmt"

	"github.com/benchtrail/benchtrail/internal/vcs"
)

// GetCommitHash returns the commit hash for the given reference
func (g *Git) GetCommitHash(ctx context.Context, ref string) (string, error) {
	out, err := g.run(ctx, nil, nil, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		if isCommandError(err) {
			return "", fmt.Errorf("%w: %s", vcs.ErrRefNotFound, ref)
		}
		return "", fmt.Errorf("failed to resolve ref %s: %w", ref, err)
	}
	return out, nil
}

// ExtractFileFromRef extracts a file's content from a specific ref
func (g *Git) ExtractFileFromRef(ctx context.Context, ref, path string) ([]byte, error) {
	if _, err := g.GetCommitHash(ctx, ref); err != nil {
		return nil, err
	}

	if _, err := g.run(ctx, nil, nil, "cat-file", "-e", ref+":"+path); err != nil {
		if isCommandError(err) {
			return nil, fmt.Errorf("%w: %s:%s", vcs.ErrPathNotFound, ref, path)
		}
		return nil, err
	}

	out, err := g.runRaw(ctx, nil, nil, "cat-file", "blob", ref+":"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract file from ref: %w", err)
	}
	return out, nil
}

// UpdateRef moves ref from oldHash to newHash atomically. An empty oldHash
// requires that the ref does not exist yet.
func (g *Git) UpdateRef(ctx context.Context, ref, newHash, oldHash string) error {
	_, err := g.run(ctx, nil, nil, "update-ref", "-m", "benchtrail: update history", ref, newHash, oldHash)
	if err != nil {
		if stderrContains(err, "cannot lock ref", "but expected", "already exists", "unable to resolve reference") {
			return fmt.Errorf("%w: %s", vcs.ErrRefMoved, ref)
		}
		return fmt.Errorf("failed to update %s: %w", ref, err)
	}
	return nil
}
