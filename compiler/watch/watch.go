// Package watch turns file system notifications on schema sources into
// debounced dispatches.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change an event reports.
type Op uint8

// Change kinds.
const (
	Created Op = iota + 1
	Changed
	Deleted
)

func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("op(%d)", o)
	}
}

// Event is a change of one source file.
type Event struct {
	Op   Op
	Path string
}

// opOf maps a notification to a change kind. Attribute changes are not
// reported.
func opOf(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return Deleted, true
	case op.Has(fsnotify.Create):
		return Created, true
	case op.Has(fsnotify.Write):
		return Changed, true
	default:
		return 0, false
	}
}

// IsSQL accepts *.sql files.
func IsSQL(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".sql")
}

// Watcher reports changes of the files in a set of directories.
type Watcher struct {
	fs    *fsnotify.Watcher
	log   *slog.Logger
	match func(string) bool
}

// NewWatcher watches dirs, creating the ones that do not exist yet. Only
// paths accepted by match are reported; a nil match accepts *.sql files.
func NewWatcher(dirs []string, match func(string) bool, log *slog.Logger) (*Watcher, error) {
	if match == nil {
		match = IsSQL
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch: create %s: %w", dir, err)
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch: add %s: %w", dir, err)
		}
		log.Debug("watching", "dir", dir)
	}
	return &Watcher{fs: fw, log: log, match: match}, nil
}

// Close stops the notifications.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run forwards the events of w through d to dispatch until ctx is done or
// the watcher is closed. It then drops pending work and waits for running
// dispatches. Dispatches are not canceled with ctx.
func Run(ctx context.Context, w *Watcher, d *Debouncer[string], dispatch func(context.Context, Event)) error {
	defer d.Stop()
	run := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			op, ok := opOf(ev.Op)
			if !ok || !w.match(ev.Name) {
				continue
			}
			e := Event{Op: op, Path: ev.Name}
			w.log.Debug("event", "op", op, "path", ev.Name)
			d.Trigger(ev.Name, func() { dispatch(run, e) })
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warn("events dropped", "error", err)
				continue
			}
			w.log.Error("watch failed", "error", err)
		}
	}
}
