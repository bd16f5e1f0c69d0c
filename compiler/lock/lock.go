// Package lock serializes work on generated files.
//
// A Registry hands out one exclusive lock per key (a cleaned file path).
// Entries exist only while a key is held or awaited; the registry's own
// bookkeeping is guarded separately and is never held while waiting on a key.
package lock

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/syssam/zgen"
)

// DefaultTimeout bounds lock acquisition when the caller passes none.
const DefaultTimeout = 5 * time.Second

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Registry is a keyed mutual-exclusion primitive. The zero value is ready
// to use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Guard is a held lock. Release must be called exactly once; further calls
// have no effect.
type Guard struct {
	key  string
	r    *Registry
	e    *entry
	once sync.Once
}

// Key returns the locked key.
func (g *Guard) Key() string { return g.key }

// Release unlocks the key and drops its registry entry when no other holder
// is waiting.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.e.sem.Release(1)
		g.r.unref(g.key, g.e)
	})
}

// Acquire blocks until the lock for key is held, timeout elapses or ctx is
// done. A timeout is reported as *zgen.LockTimeoutError.
func (r *Registry) Acquire(ctx context.Context, key string, timeout time.Duration) (*Guard, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	key = filepath.Clean(key)
	e := r.ref(key)
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := e.sem.Acquire(wctx, 1); err != nil {
		r.unref(key, e)
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, zgen.NewLockTimeoutError(key, timeout)
		}
		return nil, err
	}
	return &Guard{key: key, r: r, e: e}, nil
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) ref(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]*entry)
	}
	e, ok := r.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		r.entries[key] = e
	}
	e.refs++
	return e
}

func (r *Registry) unref(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.refs--; e.refs == 0 {
		delete(r.entries, key)
	}
}
