package main

import (
	"context"
	"fmt"

	"github.com/benchtrail/benchtrail/internal/config"
	"github.com/benchtrail/benchtrail/internal/history"
	"github.com/benchtrail/benchtrail/internal/history/gitstore"
	"github.com/benchtrail/benchtrail/internal/history/sqlstore"
	"github.com/benchtrail/benchtrail/internal/telemetry"
	"github.com/benchtrail/benchtrail/internal/vcs/git"
)

// openMedium opens the medium described by sc and gc.
func openMedium(ctx context.Context, sc config.StoreConfig, gc config.GitConfig) (history.Medium, error) {
	switch sc.Backend {
	case config.BackendFile:
		return history.NewFileMedium(sc.Path), nil
	case config.BackendMemory:
		return history.NewMemoryMedium(nil), nil
	case config.BackendSQLite, config.BackendPostgres:
		return sqlstore.Open(ctx, sc.Backend, sc.DSN, sc.Document)
	case config.BackendGit:
		repo, err := git.New(gc.Repo)
		if err != nil {
			return nil, fmt.Errorf("failed to open git repository %s: %w", gc.Repo, err)
		}
		if v, err := repo.Version(); err == nil {
			newLogger("[store] ").Printf("using git %s at %s", v, repo.RepoRoot())
		}
		return gitstore.New(repo, gitstore.Options{
			Branch: gc.Branch,
			File:   gc.File,
			Remote: gc.Remote,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown store.backend %q", config.ErrInvalidConfig, sc.Backend)
	}
}

// openStore opens the configured history store. metrics may be nil.
func openStore(ctx context.Context, metrics *telemetry.Metrics) (*history.Store, error) {
	medium, err := openMedium(ctx, cfg.Store, cfg.Git)
	if err != nil {
		return nil, err
	}
	hc := history.Config{
		RepoURL:    cfg.RepoURL,
		MaxRetries: cfg.Store.MaxRetries,
		Timeout:    cfg.Store.Timeout,
		Logger:     newLogger("[store] "),
	}
	if metrics != nil {
		hc.Observer = metrics
	}
	return history.New(medium, hc), nil
}
