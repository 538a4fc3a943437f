// Package app wires the snipsync components together: Engine is the client
// side used by the CLI, Backend the development snippet service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/bassista/snipsync/internal/config"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/repository"
)

// Backend is the development service container (immutable dependencies +
// lifecycle context). It is not a request context; handlers should still use
// gin's request context.
type Backend struct {
	Config *config.Config
	Repo   repository.Repository
	Store  *repository.Store

	BaseCtx context.Context
	Cancel  context.CancelFunc
}

// NewBackend loads the initial state from repo. A nil repo, or a seed file
// that does not exist yet, starts from the built-in data set.
func NewBackend(cfg *config.Config, repo repository.Repository) (*Backend, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var seed *repository.Seed
	if repo != nil {
		loaded, err := repo.Load(context.Background())
		switch {
		case err == nil:
			seed = loaded
		case errors.Is(err, fs.ErrNotExist):
			logger.WithComponent("app").Infof("seed file %s not found, starting from built-in data", cfg.Server.SeedFile)
		default:
			return nil, fmt.Errorf("load seed: %w", err)
		}
	}

	store, err := repository.NewStore(seed)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Backend{
		Config:  cfg,
		Repo:    repo,
		Store:   store,
		BaseCtx: ctx,
		Cancel:  cancel,
	}, nil
}

// StartWatchers reloads the store whenever the seed file changes.
func (b *Backend) StartWatchers() error {
	if b.Repo == nil {
		return nil
	}
	if err := b.Repo.StartWatcher(b.BaseCtx, b.Store); err != nil {
		return fmt.Errorf("cannot start seed file watcher: %w", err)
	}
	return nil
}

// Persist writes the current state back to the seed file, if any.
func (b *Backend) Persist(ctx context.Context) error {
	if b.Repo == nil {
		return nil
	}
	snap, err := b.Store.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := b.Repo.Save(ctx, snap); err != nil {
		return fmt.Errorf("persist seed: %w", err)
	}
	logger.WithComponent("app").Infof("state saved to %s", b.Config.Server.SeedFile)
	return nil
}

func (b *Backend) Shutdown() {
	if b == nil || b.Cancel == nil {
		return
	}
	b.Cancel()
}
