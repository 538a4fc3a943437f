package cache

import "context"

// Fetcher loads the value for one cache key.
type Fetcher func(ctx context.Context) (any, error)

// Listener receives a snapshot of an entry after each state transition.
type Listener func(Entry)

// Reader is the read-only view of the cache used by views that render state.
type Reader interface {
	Peek(key string) Entry
	Subscribe(key string, fn Listener) (unsubscribe func())
}

// Querier loads entries through the cache.
type Querier interface {
	Reader
	Query(ctx context.Context, key string, fetch Fetcher) (any, error)
	Refetch(ctx context.Context, key string, fetch Fetcher) (any, error)
}

// Invalidator is the only write path mutations are given.
type Invalidator interface {
	Invalidate(prefixes ...string) []string
}

// Cache is the full contract the application container exposes.
type Cache interface {
	Querier
	Invalidator
}

var _ Cache = (*Store)(nil)
