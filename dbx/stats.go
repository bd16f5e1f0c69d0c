package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultSlowThreshold is the duration above which a call counts as slow.
const DefaultSlowThreshold = 100 * time.Millisecond

// QueryStats counts the calls made through a Conn. It is safe for
// concurrent use.
type QueryStats struct {
	queries  atomic.Int64
	execs    atomic.Int64
	errors   atomic.Int64
	slow     atomic.Int64
	duration atomic.Int64 // nanoseconds
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	Queries  int64
	Execs    int64
	Errors   int64
	Slow     int64
	Duration time.Duration
}

// Snapshot returns the current counters.
func (s *QueryStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queries:  s.queries.Load(),
		Execs:    s.execs.Load(),
		Errors:   s.errors.Load(),
		Slow:     s.slow.Load(),
		Duration: time.Duration(s.duration.Load()),
	}
}

// Average returns the mean duration of a call.
func (s StatsSnapshot) Average() time.Duration {
	n := s.Queries + s.Execs
	if n == 0 {
		return 0
	}
	return s.Duration / time.Duration(n)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d errors=%d slow=%d avg=%s",
		s.Queries, s.Execs, s.Errors, s.Slow, s.Average())
}

type statsRecorder struct {
	stats *QueryStats
	slow  time.Duration
	log   *slog.Logger
}

// WithStats records every call into stats. Calls slower than slow are
// logged as warnings on log; a nil log only counts them.
func WithStats(stats *QueryStats, slow time.Duration, log *slog.Logger) Option {
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	return func(c *Conn) { c.stats = &statsRecorder{stats: stats, slow: slow, log: log} }
}

func (r *statsRecorder) record(ctx context.Context, query string, isQuery bool, start time.Time, err error) {
	d := time.Since(start)
	if isQuery {
		r.stats.queries.Add(1)
	} else {
		r.stats.execs.Add(1)
	}
	r.stats.duration.Add(int64(d))
	if err != nil {
		r.stats.errors.Add(1)
	}
	if d > r.slow {
		r.stats.slow.Add(1)
		if r.log != nil {
			r.log.WarnContext(ctx, "slow call", "statement", query, "duration", d)
		}
	}
}

// ExecContext runs query on the wrapped database.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := c.ExecQuerier.ExecContext(ctx, query, args...)
	if c.stats != nil {
		c.stats.record(ctx, query, false, start, err)
	}
	return res, err
}

// QueryContext runs query on the wrapped database.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := c.ExecQuerier.QueryContext(ctx, query, args...)
	if c.stats != nil {
		c.stats.record(ctx, query, true, start, err)
	}
	return rows, err
}
