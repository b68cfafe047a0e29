package history

import (
	"context"
	"fmt"

	"github.com/benchtrail/benchtrail/internal/publish"
)

// MigrateOptions contains configuration for a migration between media.
type MigrateOptions struct {
	// DryRun validates the source without writing the destination.
	DryRun bool

	// Overwrite replaces existing destination history.
	Overwrite bool

	// RepoURL, when set, replaces the source repoUrl.
	RepoURL string
}

// MigrateResult contains statistics about the migration.
type MigrateResult struct {
	Groups   int
	Runs     int
	Bytes    int
	Revision Revision
}

// Migrate copies the artifact from src to dst. The source must decode
// cleanly; corrupt history is never copied. The destination write is a
// compare-and-swap against the revision observed before writing.
func Migrate(ctx context.Context, src, dst Medium, opts MigrateOptions) (*MigrateResult, error) {
	content, _, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", src, err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("source %s is empty", src)
	}
	doc, err := publish.Decode(content)
	if err != nil {
		return nil, &CorruptHistoryError{Medium: src.String(), Err: err}
	}
	if opts.RepoURL != "" {
		doc.RepoURL = opts.RepoURL
	}

	result := &MigrateResult{Groups: len(doc.Groups)}
	for _, g := range doc.Groups {
		result.Runs += len(g.Runs)
	}

	out, err := publish.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	result.Bytes = len(out)

	existing, rev, err := dst.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", dst, err)
	}
	if len(existing) > 0 && !opts.Overwrite {
		return nil, fmt.Errorf("%s: %w", dst, ErrNotEmpty)
	}
	if opts.DryRun {
		return result, nil
	}

	newRev, err := dst.Store(ctx, out, rev)
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", dst, err)
	}
	result.Revision = newRev
	return result, nil
}
