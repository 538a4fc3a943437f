package repository

import "context"

// Saver persists a Seed.
// Small interface used by the backend shutdown hook.
type Saver interface {
	Save(ctx context.Context, seed *Seed) error
}

// Repository abstracts persistence and watching of the seed file.
// JSONRepository implements this interface.
type Repository interface {
	Saver
	Load(ctx context.Context) (*Seed, error)
	StartWatcher(ctx context.Context, target Reloader) error
}

// Reloader is the state the watcher refreshes after the seed file changes.
// *Store implements it.
type Reloader interface {
	Snapshot() (*Seed, error)
	Replace(seed *Seed) error
}
