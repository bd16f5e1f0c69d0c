package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/zgen"
)

func TestAcquireRelease(t *testing.T) {
	r := New()
	g, err := r.Acquire(context.Background(), "internal/dbo/repository/../repository/customer.go", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "internal/dbo/repository/customer.go", g.Key())
	assert.Equal(t, 1, r.Len())

	g.Release()
	g.Release()
	assert.Equal(t, 0, r.Len(), "entry removed once uncontended")

	g, err = r.Acquire(context.Background(), "internal/dbo/repository/customer.go", time.Second)
	require.NoError(t, err)
	g.Release()
}

func TestAcquireTimeout(t *testing.T) {
	r := New()
	held, err := r.Acquire(context.Background(), "a.go", time.Second)
	require.NoError(t, err)
	defer held.Release()

	start := time.Now()
	_, err = r.Acquire(context.Background(), "a.go", 30*time.Millisecond)
	require.Error(t, err)
	assert.True(t, zgen.IsLockTimeout(err))
	assert.ErrorIs(t, err, zgen.ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 1, r.Len(), "timed out waiter drops its reference")
}

func TestAcquireCanceled(t *testing.T) {
	r := New()
	held, err := r.Acquire(context.Background(), "a.go", time.Second)
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Acquire(ctx, "a.go", time.Second)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, zgen.IsLockTimeout(err))
}

func TestIndependentKeys(t *testing.T) {
	r := New()
	a, err := r.Acquire(context.Background(), "a.go", time.Second)
	require.NoError(t, err)
	defer a.Release()

	b, err := r.Acquire(context.Background(), "b.go", 10*time.Millisecond)
	require.NoError(t, err, "other keys proceed in parallel")
	b.Release()
}

func TestMutualExclusion(t *testing.T) {
	var (
		r      Registry
		inside atomic.Int32
		mu     sync.Mutex
		trace  []int
		wg     sync.WaitGroup
	)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := r.Acquire(context.Background(), "shared.go", 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer g.Release()
			assert.Equal(t, int32(1), inside.Add(1), "at most one holder")
			mu.Lock()
			trace = append(trace, i)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			trace = append(trace, i)
			mu.Unlock()
			inside.Add(-1)
		}()
	}
	wg.Wait()

	require.Len(t, trace, 40)
	for i := 0; i < len(trace); i += 2 {
		assert.Equal(t, trace[i], trace[i+1])
	}
	assert.Equal(t, 0, r.Len())
}
