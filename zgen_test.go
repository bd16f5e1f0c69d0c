package zgen_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/zgen"
)

func TestResultString(t *testing.T) {
	assert.Equal(t, "created", zgen.Created.String())
	assert.Equal(t, "updated", zgen.Updated.String())
	assert.Equal(t, "skipped", zgen.Skipped.String())
	assert.Equal(t, "deleted", zgen.Deleted.String())
	assert.False(t, zgen.Skipped.Changed())
	assert.True(t, zgen.Deleted.Changed())
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name string
		in   []zgen.Result
		want zgen.Result
	}{
		{"empty", nil, zgen.Skipped},
		{"all skipped", []zgen.Result{zgen.Skipped, zgen.Skipped}, zgen.Skipped},
		{"created wins", []zgen.Result{zgen.Updated, zgen.Created, zgen.Skipped}, zgen.Created},
		{"updated over deleted", []zgen.Result{zgen.Deleted, zgen.Updated}, zgen.Updated},
		{"deleted over skipped", []zgen.Result{zgen.Skipped, zgen.Deleted}, zgen.Deleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, zgen.Combine(tt.in...))
		})
	}
}

func TestStats(t *testing.T) {
	var (
		s  zgen.Stats
		wg sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Record(zgen.Created, nil)
			s.Record(zgen.Skipped, nil)
			s.Record(zgen.Updated, errors.New("boom"))
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, 50, snap.Created)
	assert.Equal(t, 50, snap.Skipped)
	assert.Equal(t, 50, snap.Failed)
	assert.Zero(t, snap.Updated)
	assert.Equal(t, 150, snap.Total())
}
