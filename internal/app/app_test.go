package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/bassista/snipsync/internal/config"
	"github.com/bassista/snipsync/internal/repository"
)

// mockRepository implements repository.Repository for testing
type mockRepository struct {
	loadErr        error
	watcherStarted bool
	watcherErr     error
	saveErr        error
	saved          *repository.Seed
	seed           *repository.Seed
}

func (m *mockRepository) Load(ctx context.Context) (*repository.Seed, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.seed, nil
}

func (m *mockRepository) Save(ctx context.Context, seed *repository.Seed) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = seed
	return nil
}

func (m *mockRepository) StartWatcher(ctx context.Context, target repository.Reloader) error {
	if m.watcherErr != nil {
		return m.watcherErr
	}
	m.watcherStarted = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{Server: config.ServerConfig{SeedFile: "seed.json"}}
}

func TestNewBackend_NilConfig(t *testing.T) {
	if _, err := NewBackend(nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestNewBackend_WithoutRepositoryUsesDefaultSeed(t *testing.T) {
	b, err := NewBackend(testConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Shutdown()

	snap, _ := b.Store.Snapshot()
	if len(snap.Snippets) != 3 {
		t.Errorf("expected built-in snippets, got %d", len(snap.Snippets))
	}
	if err := b.StartWatchers(); err != nil {
		t.Errorf("expected no-op watcher start, got %v", err)
	}
	if err := b.Persist(context.Background()); err != nil {
		t.Errorf("expected no-op persist, got %v", err)
	}
}

func TestNewBackend_LoadsSeedFromRepository(t *testing.T) {
	seed := repository.DefaultSeed()
	seed.Snippets = seed.Snippets[:1]
	repo := &mockRepository{seed: seed}

	b, err := NewBackend(testConfig(), repo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Shutdown()

	snap, _ := b.Store.Snapshot()
	if len(snap.Snippets) != 1 {
		t.Errorf("expected seed from repository, got %d snippets", len(snap.Snippets))
	}
}

func TestNewBackend_MissingSeedFileFallsBack(t *testing.T) {
	repo := &mockRepository{loadErr: fmt.Errorf("open seed file: %w", fs.ErrNotExist)}

	b, err := NewBackend(testConfig(), repo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Shutdown()

	snap, _ := b.Store.Snapshot()
	if len(snap.Snippets) != 3 {
		t.Errorf("expected built-in snippets, got %d", len(snap.Snippets))
	}
}

func TestNewBackend_InvalidSeedFails(t *testing.T) {
	repo := &mockRepository{loadErr: errors.New("validate seed file: boom")}
	if _, err := NewBackend(testConfig(), repo); err == nil {
		t.Error("expected load error to be returned")
	}
}

func TestBackend_StartWatchers(t *testing.T) {
	repo := &mockRepository{seed: repository.DefaultSeed()}
	b, _ := NewBackend(testConfig(), repo)
	defer b.Shutdown()

	if err := b.StartWatchers(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.watcherStarted {
		t.Error("expected watcher to be started")
	}

	repo.watcherErr = errors.New("no inotify")
	if err := b.StartWatchers(); err == nil {
		t.Error("expected watcher error to be returned")
	}
}

func TestBackend_Persist(t *testing.T) {
	repo := &mockRepository{seed: repository.DefaultSeed()}
	b, _ := NewBackend(testConfig(), repo)
	defer b.Shutdown()

	if err := b.Persist(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.saved == nil || len(repo.saved.Snippets) != 3 {
		t.Error("expected snapshot to be saved")
	}

	repo.saveErr = errors.New("disk full")
	if err := b.Persist(context.Background()); err == nil {
		t.Error("expected save error to be returned")
	}
}

func TestBackend_ShutdownCancelsContext(t *testing.T) {
	b, _ := NewBackend(testConfig(), nil)
	b.Shutdown()

	select {
	case <-b.BaseCtx.Done():
	default:
		t.Error("expected base context to be cancelled")
	}

	var nilBackend *Backend
	nilBackend.Shutdown()
}
