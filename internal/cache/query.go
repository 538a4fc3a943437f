package cache

import (
	"context"
	"fmt"
)

// Get loads key through q and returns it as T.
func Get[T any](ctx context.Context, q Querier, key string, fetch func(context.Context) (T, error)) (T, error) {
	v, err := q.Query(ctx, key, typed(fetch))
	return as[T](key, v, err)
}

// Reload forces a fetch of key through q and returns it as T.
func Reload[T any](ctx context.Context, q Querier, key string, fetch func(context.Context) (T, error)) (T, error) {
	v, err := q.Refetch(ctx, key, typed(fetch))
	return as[T](key, v, err)
}

// Mutate runs fn and, when it succeeds, invalidates prefixes. A failed
// mutation leaves the cache untouched.
func Mutate[T any](ctx context.Context, inv Invalidator, prefixes []string, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	inv.Invalidate(prefixes...)
	return v, nil
}

func typed[T any](fetch func(context.Context) (T, error)) Fetcher {
	if fetch == nil {
		return nil
	}
	return func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}
}

func as[T any](key string, v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: %s holds %T", key, v)
	}
	return out, nil
}
