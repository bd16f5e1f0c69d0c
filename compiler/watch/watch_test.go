package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer[string](30 * time.Millisecond)
	defer d.Stop()

	var calls, last atomic.Int32
	for i := range 10 {
		d.Trigger("a.sql", func() {
			calls.Add(1)
			last.Store(int32(i))
		})
		time.Sleep(2 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 9, last.Load(), "last trigger wins")
	assert.Zero(t, d.Pending())
}

func TestDebouncerSpaced(t *testing.T) {
	d := NewDebouncer[string](10 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for range 3 {
		d.Trigger("a.sql", func() { calls.Add(1) })
		time.Sleep(50 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerKeys(t *testing.T) {
	d := NewDebouncer[string](10 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	seen := make(map[string]int)
	for _, k := range []string{"a", "b", "a", "c", "b"} {
		d.Trigger(k, func() {
			mu.Lock()
			seen[k]++
			mu.Unlock()
		})
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, seen)
}

func TestDebouncerLateFireIsIgnored(t *testing.T) {
	d := NewDebouncer[string](time.Hour)
	defer d.Stop()

	gen := func() uint64 {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.pending["a"].gen
	}
	var first, stale, second atomic.Int32
	d.Trigger("a", func() { first.Add(1) })
	old := gen()
	d.fire("a", old, func() { first.Add(1) })
	assert.EqualValues(t, 1, first.Load())
	assert.Zero(t, d.Pending())

	d.Trigger("a", func() { second.Add(1) })
	d.fire("a", old, func() { stale.Add(1) })
	assert.Zero(t, stale.Load(), "a callback of an earlier round does not run")
	assert.Equal(t, 1, d.Pending(), "the newer trigger stays pending")

	d.fire("a", gen(), func() { second.Add(1) })
	assert.EqualValues(t, 1, second.Load())
}

func TestDebouncerStop(t *testing.T) {
	t.Run("drops pending", func(t *testing.T) {
		d := NewDebouncer[string](20 * time.Millisecond)
		var calls atomic.Int32
		d.Trigger("a", func() { calls.Add(1) })
		d.Stop()
		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, calls.Load())
		assert.False(t, d.Trigger("a", func() { calls.Add(1) }))
	})

	t.Run("waits for running", func(t *testing.T) {
		d := NewDebouncer[string](time.Millisecond)
		started := make(chan struct{})
		var done atomic.Bool
		d.Trigger("a", func() {
			close(started)
			time.Sleep(30 * time.Millisecond)
			done.Store(true)
		})
		<-started
		d.Stop()
		assert.True(t, done.Load())
	})

	t.Run("flush", func(t *testing.T) {
		d := NewDebouncer[string](20 * time.Millisecond)
		defer d.Stop()
		var calls atomic.Int32
		d.Trigger("a", func() { calls.Add(1) })
		d.Trigger("b", func() { calls.Add(1) })
		assert.Equal(t, 2, d.Pending())
		d.Flush()
		assert.Zero(t, d.Pending())
		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, calls.Load())
		assert.True(t, d.Trigger("a", func() { calls.Add(1) }))
	})
}

func TestOpOf(t *testing.T) {
	tests := []struct {
		in   fsnotify.Op
		want Op
		ok   bool
	}{
		{fsnotify.Create, Created, true},
		{fsnotify.Write, Changed, true},
		{fsnotify.Remove, Deleted, true},
		{fsnotify.Rename, Deleted, true},
		{fsnotify.Create | fsnotify.Write, Created, true},
		{fsnotify.Chmod, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			got, ok := opOf(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Tables")
	w, err := NewWatcher([]string{dir}, nil, nil)
	require.NoError(t, err)
	defer w.Close()
	require.DirExists(t, dir)

	var (
		mu     sync.Mutex
		events []Event
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, w, NewDebouncer[string](20*time.Millisecond), func(_ context.Context, e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		})
	}()

	file := filepath.Join(dir, "Customer.sql")
	for i := range 5 {
		require.NoError(t, os.WriteFile(file, []byte{byte('a' + i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1, "bursts of writes and other files are not dispatched")
	assert.Equal(t, file, events[0].Path)
}
