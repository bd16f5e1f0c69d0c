package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func counting(calls *atomic.Int32) Loader[string] {
	return func(path string) (string, error) {
		n := calls.Add(1)
		return path + "#" + string(rune('0'+n)), nil
	}
}

func TestCacheGet(t *testing.T) {
	var calls atomic.Int32
	c := New(counting(&calls))

	v, err := c.Get("Tables/Customer.sql")
	require.NoError(t, err)
	assert.Equal(t, "Tables/Customer.sql#1", v)

	v, err = c.Get("Tables/./Customer.sql")
	require.NoError(t, err)
	assert.Equal(t, "Tables/Customer.sql#1", v, "cleaned paths share an entry")
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCacheExpiry(t *testing.T) {
	var calls atomic.Int32
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(counting(&calls), WithTTL(time.Hour), WithClock(clk.Now))

	_, err := c.Get("a.sql")
	require.NoError(t, err)
	clk.Advance(59 * time.Minute)
	_, err = c.Get("a.sql")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	clk.Advance(2 * time.Minute)
	v, err := c.Get("a.sql")
	require.NoError(t, err)
	assert.Equal(t, "a.sql#2", v)
}

func TestCacheRefreshAndInvalidate(t *testing.T) {
	var calls atomic.Int32
	c := New(counting(&calls))

	_, err := c.Get("a.sql")
	require.NoError(t, err)

	v, err := c.Refresh("a.sql")
	require.NoError(t, err)
	assert.Equal(t, "a.sql#2", v)

	v, err = c.Get("a.sql")
	require.NoError(t, err)
	assert.Equal(t, "a.sql#2", v)

	c.Invalidate("a.sql")
	assert.Equal(t, 0, c.Len())
	v, err = c.Get("a.sql")
	require.NoError(t, err)
	assert.Equal(t, "a.sql#3", v)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCacheLoadError(t *testing.T) {
	fail := errors.New("boom")
	var broken atomic.Bool
	c := New(func(path string) (string, error) {
		if broken.Load() {
			return "", fail
		}
		return "ok", nil
	})

	_, err := c.Get("a.sql")
	require.NoError(t, err)

	broken.Store(true)
	_, err = c.Refresh("a.sql")
	require.ErrorIs(t, err, fail)

	v, err := c.Get("a.sql")
	require.NoError(t, err)
	assert.Equal(t, "ok", v, "failed refresh keeps the previous entry")
}

func TestCacheConcurrentGetSharesLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := New(func(path string) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	})

	const n = 16
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	results := make([]int, n)
	started.Add(n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			v, err := c.Get("shared.sql")
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestCacheDifferentPathsDoNotBlock(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	c := New(func(path string) (string, error) {
		if path == "slow.sql" {
			<-block
		}
		return path, nil
	})

	go func() { _, _ = c.Get("slow.sql") }()
	time.Sleep(10 * time.Millisecond)

	done := make(chan string, 1)
	go func() {
		v, _ := c.Get("fast.sql")
		done <- v
	}()
	select {
	case v := <-done:
		assert.Equal(t, "fast.sql", v)
	case <-time.After(time.Second):
		t.Fatal("lookup of an unrelated path waited on a pending load")
	}
}

// pausing returns a loader reporting the current source. Its first call
// reads the source, signals started, and waits for release.
func pausing(src *atomic.Value, started, release chan struct{}) Loader[string] {
	var calls atomic.Int32
	return func(string) (string, error) {
		v := src.Load().(string)
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return v, nil
	}
}

func TestCacheStaleLoadDoesNotOverwrite(t *testing.T) {
	t.Run("refresh", func(t *testing.T) {
		var src atomic.Value
		src.Store("old")
		started, release := make(chan struct{}), make(chan struct{})
		c := New(pausing(&src, started, release))

		done := make(chan string, 1)
		go func() {
			v, _ := c.Get("a.sql")
			done <- v
		}()
		<-started

		src.Store("new")
		v, err := c.Refresh("a.sql")
		require.NoError(t, err)
		assert.Equal(t, "new", v)

		close(release)
		assert.Equal(t, "old", <-done, "the pending get returns what it read")
		v, err = c.Get("a.sql")
		require.NoError(t, err)
		assert.Equal(t, "new", v, "the refreshed entry survives the older load")
	})

	t.Run("invalidate", func(t *testing.T) {
		var src atomic.Value
		src.Store("old")
		started, release := make(chan struct{}), make(chan struct{})
		c := New(pausing(&src, started, release))

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = c.Get("a.sql")
		}()
		<-started

		c.Invalidate("a.sql")
		close(release)
		<-done
		assert.Equal(t, 0, c.Len(), "a pending load does not restore a dropped entry")
	})

	t.Run("purge", func(t *testing.T) {
		var src atomic.Value
		src.Store("old")
		started, release := make(chan struct{}), make(chan struct{})
		c := New(pausing(&src, started, release))

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = c.Get("a.sql")
		}()
		<-started

		c.Purge()
		close(release)
		<-done
		assert.Equal(t, 0, c.Len())
	})
}
