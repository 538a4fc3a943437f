package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bassista/snipsync/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
)

const watchDebounce = 200 * time.Millisecond

// JSONRepository handles disk persistence and watching of the seed file.
type JSONRepository struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate
	mu        sync.Mutex
}

// NewJSONRepository creates a repository for the given JSON file path.
func NewJSONRepository(path string) (Repository, error) {
	if path == "" {
		return nil, errors.New("seed file path is required")
	}

	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	return &JSONRepository{
		path:      path,
		dir:       dir,
		base:      filepath.Base(path),
		validator: validator.New(),
	}, nil
}

// Load reads the JSON file, applies defaults and validates it.
func (r *JSONRepository) Load(ctx context.Context) (*Seed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

func (r *JSONRepository) loadUnlocked() (*Seed, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer file.Close()

	var seed Seed
	if err := json.NewDecoder(file).Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	seed.ApplyDefaults()

	if err := r.validator.Struct(&seed); err != nil {
		return nil, fmt.Errorf("validate seed file: %w", err)
	}
	return &seed, nil
}

// Save validates and writes the seed atomically to disk.
func (r *JSONRepository) Save(ctx context.Context, seed *Seed) error {
	if seed == nil {
		return errors.New("seed is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.validator.Struct(seed); err != nil {
		return fmt.Errorf("validate before save: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	payload, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal seed: %w", err)
	}

	tmpFile, err := os.CreateTemp(r.dir, r.base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), r.path); err != nil {
		return fmt.Errorf("replace seed file: %w", err)
	}
	return nil
}

// StartWatcher reloads target whenever the seed file changes on disk.
// It watches the parent directory so temp+rename replacements are observed,
// filters events by basename and debounces bursts into a single reload.
// Cancel ctx to stop the watcher.
func (r *JSONRepository) StartWatcher(ctx context.Context, target Reloader) error {
	if target == nil {
		return errors.New("reload target is required")
	}
	onChange := r.MakeWatcherCallback(target)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	log := logger.WithComponent("repo")
	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, onChange)
		}
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != r.base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("watcher error: %v", err)
			}
		}
	}()

	log.Infof("watching seed file %s", r.path)
	return nil
}

// MakeWatcherCallback returns the reload performed after a debounced change.
// Disk content equal to the live state is ignored.
func (r *JSONRepository) MakeWatcherCallback(target Reloader) func() {
	log := logger.WithComponent("repo")
	return func() {
		diskSeed, err := r.Load(context.Background())
		if err != nil {
			log.Warnf("watch reload failed: %v", err)
			return
		}
		live, err := target.Snapshot()
		if err != nil {
			log.Warnf("watch reload failed: snapshot: %v", err)
			return
		}
		if AreSeedsEqual(live, diskSeed) {
			log.Debug("seed file unchanged, skipping reload")
			return
		}
		if err := target.Replace(diskSeed); err != nil {
			log.Warnf("watch reload failed: %v", err)
			return
		}
		log.Info("backend state reloaded from seed file")
	}
}
