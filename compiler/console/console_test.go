package console

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &Options{NoColor: true, Level: slog.LevelDebug})

	l.Info("watching", "root", "database")
	Success(l, "created", "path", "internal/dbo/model/customer.go", "entity", "Customer")
	Skipped(l.With("run", "r1"), "unchanged", "took", 1500*time.Microsecond)
	l.WithGroup("cache").Debug("refresh", "path", "a b.sql")
	l.Error("merge failed", "err", "boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "INFO    watching root=database", lines[0])
	assert.Equal(t, "SUCCESS created path=internal/dbo/model/customer.go entity=Customer", lines[1])
	assert.Equal(t, "SKIPPED unchanged run=r1 took=1.5ms", lines[2])
	assert.Equal(t, `DEBUG   refresh cache.path="a b.sql"`, lines[3])
	assert.Equal(t, "ERROR   merge failed err=boom", lines[4])
}

func TestHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &Options{NoColor: true, Level: LevelSuccess})

	l.Info("hidden")
	Skipped(l, "hidden")
	Success(l, "shown")
	assert.Equal(t, "SUCCESS shown\n", buf.String())
}

func TestHandlerConcurrentLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &Options{NoColor: true})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Info("line", "payload", strings.Repeat("x", 64))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		assert.Equal(t, "INFO    line payload="+strings.Repeat("x", 64), line)
	}
}
