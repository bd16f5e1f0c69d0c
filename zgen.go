// Package zgen keeps generated data-access code in sync with hand-written
// SQL schema definitions.
//
// Table and stored-procedure scripts are parsed into entities (see package
// schema and compiler/load), and every generated artifact is merged into its
// target file member by member (see compiler/source and compiler/gen), so
// hand-written declarations next to generated ones survive regeneration.
package zgen

import (
	"sync"
)

// Result is the outcome of a single synchronizer operation.
type Result uint8

// Synchronization outcomes.
const (
	Skipped Result = iota
	Created
	Updated
	Deleted
)

// String returns the lower-case outcome name.
func (r Result) String() string {
	switch r {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "skipped"
	}
}

// Changed reports whether the operation touched the filesystem.
func (r Result) Changed() bool { return r != Skipped }

// rank orders results for Combine. Created wins over Updated, which wins over
// Deleted, which wins over Skipped.
func (r Result) rank() int {
	switch r {
	case Created:
		return 3
	case Updated:
		return 2
	case Deleted:
		return 1
	default:
		return 0
	}
}

// Combine folds the results of several operations on related files into one.
func Combine(results ...Result) Result {
	out := Skipped
	for _, r := range results {
		if r.rank() > out.rank() {
			out = r
		}
	}
	return out
}

// Stats counts synchronization outcomes. It is safe for concurrent use.
type Stats struct {
	mu     sync.Mutex
	counts StatsSnapshot
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Created int
	Updated int
	Skipped int
	Deleted int
	Failed  int
}

// Total returns the number of recorded operations.
func (s StatsSnapshot) Total() int {
	return s.Created + s.Updated + s.Skipped + s.Deleted + s.Failed
}

// Record counts one operation. A non-nil error counts as a failure
// regardless of the result.
func (s *Stats) Record(r Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.counts.Failed++
		return
	}
	switch r {
	case Created:
		s.counts.Created++
	case Updated:
		s.counts.Updated++
	case Deleted:
		s.counts.Deleted++
	default:
		s.counts.Skipped++
	}
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}
