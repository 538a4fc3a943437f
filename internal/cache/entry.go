package cache

import "time"

// Status is the lifecycle state of a cache entry.
type Status int

const (
	StatusEmpty Status = iota
	StatusLoading
	StatusFresh
	StatusStale
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusLoading:
		return "loading"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is a snapshot of one cached query.
//
// Value is the current value. It survives a revalidation (Loading after Fresh
// or Stale) and is cleared when a fetch fails; LastGood keeps the most recent
// successful value for display next to the error.
type Entry struct {
	Key       string
	Status    Status
	Value     any
	LastGood  any
	Err       error
	UpdatedAt time.Time
}

// HasValue reports whether the entry carries a current value.
func (e Entry) HasValue() bool {
	return e.Status == StatusFresh || e.Status == StatusStale || (e.Status == StatusLoading && e.Value != nil)
}

// ValueAs returns the current value as T.
func ValueAs[T any](e Entry) (T, bool) {
	v, ok := e.Value.(T)
	return v, ok
}

// LastGoodAs returns the last successful value as T.
func LastGoodAs[T any](e Entry) (T, bool) {
	v, ok := e.LastGood.(T)
	return v, ok
}
