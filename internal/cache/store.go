// Package cache is the process-wide resource cache: one entry per query key,
// at most one concurrent fetch per key, prefix invalidation and subscriptions.
package cache

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bassista/snipsync/internal/logger"
	"golang.org/x/sync/singleflight"
)

// ErrNoFetcher is returned when a key is loaded without a fetcher and none was
// registered by an earlier query.
var ErrNoFetcher = errors.New("cache: no fetcher registered for key")

type entry struct {
	Entry
	gen       uint64 // bumped on every invalidation
	flightGen uint64 // generation the current flight was started for
	flightSeq uint64 // identifies the current flight
	loading   bool
	fetch     Fetcher
	listeners map[uint64]Listener
}

type notification struct {
	fn    Listener
	entry Entry
}

// Store holds every cached query. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	flights singleflight.Group
	nextID  uint64
	seq     uint64
	now     func() time.Time

	pending  []notification
	draining bool
}

// NewStore creates an empty cache.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Peek returns the current snapshot for key without triggering a fetch.
func (s *Store) Peek(key string) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[key]; ok {
		return e.Entry
	}
	return Entry{Key: key, Status: StatusEmpty}
}

// Subscribe registers fn for every state transition of key. The returned func
// removes the subscription and may be called more than once.
func (s *Store) Subscribe(key string, fn Listener) func() {
	s.mu.Lock()
	e := s.entryLocked(key)
	s.nextID++
	id := s.nextID
	e.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if e, ok := s.entries[key]; ok {
				delete(e.listeners, id)
			}
		})
	}
}

// Query returns the value for key. A fresh entry is served from memory; any
// other state loads it, sharing a flight already running for the same
// generation of the key. fetch may be nil when an earlier query registered one.
func (s *Store) Query(ctx context.Context, key string, fetch Fetcher) (any, error) {
	return s.load(ctx, key, fetch, false)
}

// Refetch loads key even when it is fresh. The current value stays visible
// while the fetch runs.
func (s *Store) Refetch(ctx context.Context, key string, fetch Fetcher) (any, error) {
	return s.load(ctx, key, fetch, true)
}

func (s *Store) load(ctx context.Context, key string, fetch Fetcher, force bool) (any, error) {
	s.mu.Lock()
	e := s.entryLocked(key)
	if fetch != nil {
		e.fetch = fetch
	}
	if !force && e.Status == StatusFresh {
		v := e.Value
		s.mu.Unlock()
		return v, nil
	}
	if e.fetch == nil {
		s.mu.Unlock()
		return nil, ErrNoFetcher
	}
	ch := s.startLocked(ctx, e)
	s.mu.Unlock()
	s.flush()

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate marks every entry matching one of prefixes stale. Subscribed
// entries are refetched immediately; the others reload on next query.
// It returns the invalidated keys in sorted order.
//
// A prefix ending in ":" matches by plain string prefix. Any other prefix
// matches the key itself and keys continuing with ":".
func (s *Store) Invalidate(prefixes ...string) []string {
	s.mu.Lock()
	var keys []string
	for key, e := range s.entries {
		if !matchesAny(key, prefixes) {
			continue
		}
		if e.Status == StatusEmpty && !e.loading {
			continue
		}
		e.gen++
		keys = append(keys, key)
		if e.Status == StatusFresh {
			e.Status = StatusStale
			s.notifyLocked(e)
		}
		if len(e.listeners) > 0 && e.fetch != nil {
			s.startLocked(context.Background(), e)
		}
	}
	s.mu.Unlock()
	s.flush()

	sort.Strings(keys)
	if len(keys) > 0 {
		logger.WithComponent("cache").Debugf("invalidated %d entries for %v", len(keys), prefixes)
	}
	return keys
}

func (s *Store) entryLocked(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{
			Entry:     Entry{Key: key, Status: StatusEmpty},
			listeners: make(map[uint64]Listener),
		}
		s.entries[key] = e
	}
	return e
}

// startLocked joins the flight running for the entry's current generation or
// starts a new one. The flight runs detached from ctx cancellation so one
// caller giving up does not fail the others.
func (s *Store) startLocked(ctx context.Context, e *entry) <-chan singleflight.Result {
	if !e.loading || e.flightGen != e.gen {
		s.seq++
		e.flightSeq = s.seq
		e.flightGen = e.gen
		e.loading = true
		e.Status = StatusLoading
		s.notifyLocked(e)
		logger.WithComponent("cache").Tracef("%s: loading (flight %d)", e.Key, e.flightSeq)
	}

	key, gen, seq, fetch := e.Key, e.gen, e.flightSeq, e.fetch
	flightCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(key+"#"+strconv.FormatUint(seq, 10), func() (any, error) {
		v, err := fetch(flightCtx)
		s.land(key, gen, seq, v, err)
		return v, err
	})
	return ch
}

// land records the outcome of flight seq. Outcomes of superseded flights only
// reach their own waiters.
func (s *Store) land(key string, gen, seq uint64, v any, err error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.flightSeq != seq {
		s.mu.Unlock()
		logger.WithComponent("cache").Tracef("%s: discarded superseded flight %d", key, seq)
		return
	}
	e.loading = false
	e.UpdatedAt = s.now()
	switch {
	case err != nil:
		e.Status = StatusError
		e.Value = nil
		e.Err = err
	case gen == e.gen:
		e.Status = StatusFresh
		e.Value = v
		e.LastGood = v
		e.Err = nil
	default:
		// Invalidated while in flight with nobody subscribed.
		e.Status = StatusStale
		e.Value = v
		e.LastGood = v
		e.Err = nil
	}
	logger.WithComponent("cache").Tracef("%s: %s", key, e.Status)
	s.notifyLocked(e)
	s.mu.Unlock()
	s.flush()
}

// notifyLocked queues the entry's current snapshot for its listeners.
func (s *Store) notifyLocked(e *entry) {
	if len(e.listeners) == 0 {
		return
	}
	ids := make([]uint64, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s.pending = append(s.pending, notification{fn: e.listeners[id], entry: e.Entry})
	}
}

// flush delivers queued notifications outside the lock, in the order the
// transitions happened. Only one goroutine drains at a time; a listener that
// calls back into the store has its notifications delivered by the same loop.
func (s *Store) flush() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		notes := s.pending
		s.pending = nil
		s.mu.Unlock()
		for _, n := range notes {
			n.fn(n.entry)
		}
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func matchesAny(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if Matches(key, p) {
			return true
		}
	}
	return false
}

// Matches reports whether key falls under the invalidation prefix.
func Matches(key, prefix string) bool {
	if prefix == "" {
		return false
	}
	if strings.HasSuffix(prefix, ":") {
		return strings.HasPrefix(key, prefix)
	}
	return key == prefix || strings.HasPrefix(key, prefix+":")
}
