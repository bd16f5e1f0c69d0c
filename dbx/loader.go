package dbx

import "context"

// Loader caches the rows fetched per key. Generated foreign-key services
// create one per resolve call, so rows sharing a reference load it once.
// A Loader is not safe for concurrent use.
type Loader[K comparable, V any] struct {
	fetch func(context.Context, K) ([]V, error)
	cache map[K][]V
}

// NewLoader returns a Loader over fetch, typically a repository method
// value such as repo.GetByID.
func NewLoader[K comparable, V any](fetch func(context.Context, K) ([]V, error)) *Loader[K, V] {
	return &Loader[K, V]{fetch: fetch, cache: make(map[K][]V)}
}

// Load returns the rows of key. Failed fetches are not cached.
func (l *Loader[K, V]) Load(ctx context.Context, key K) ([]V, error) {
	if rows, ok := l.cache[key]; ok {
		return rows, nil
	}
	rows, err := l.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	l.cache[key] = rows
	return rows, nil
}

// First returns the first row of key, or the zero value when there is none.
func (l *Loader[K, V]) First(ctx context.Context, key K) (V, error) {
	var zero V
	rows, err := l.Load(ctx, key)
	if err != nil || len(rows) == 0 {
		return zero, err
	}
	return rows[0], nil
}
