package gen

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/compiler/load"
	"github.com/syssam/zgen/compiler/lock"
	"github.com/syssam/zgen/compiler/source"
)

// engine runs the read, merge, compare and write sequence shared by every
// synchronizer. All file access happens while the lock of the target path
// is held.
type engine struct {
	locks   *lock.Registry
	timeout time.Duration
	// trace observes locking and file access.
	trace func(op, path string)
}

func newEngine(locks *lock.Registry, timeout time.Duration) *engine {
	if timeout <= 0 {
		timeout = lock.DefaultTimeout
	}
	return &engine{locks: locks, timeout: timeout}
}

func (e *engine) observe(op, path string) {
	if e.trace != nil {
		e.trace(op, path)
	}
}

// acquire locks path for one read-modify-write.
func (e *engine) acquire(ctx context.Context, path string) (func(), error) {
	g, err := e.locks.Acquire(ctx, path, e.timeout)
	if err != nil {
		return nil, err
	}
	e.observe("lock", path)
	return func() {
		e.observe("unlock", path)
		g.Release()
	}, nil
}

// read returns the current content of path and whether it exists.
func (e *engine) read(path string) ([]byte, bool, error) {
	text, err := load.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		e.observe("read", path)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	e.observe("read", path)
	return []byte(text), true, nil
}

// commit writes out unless it equals the previous content.
func (e *engine) commit(path string, before []byte, exists bool, out []byte) (zgen.Result, error) {
	if exists && bytes.Equal(before, out) {
		return zgen.Skipped, nil
	}
	if err := writeFile(path, out); err != nil {
		return zgen.Skipped, zgen.NewIOError("write", path, err)
	}
	e.observe("write", path)
	if exists {
		return zgen.Updated, nil
	}
	return zgen.Created, nil
}

// merge generates into a Go source file. A missing file starts as an empty
// document of package pkg; mutate applies the generated declarations.
func (e *engine) merge(ctx context.Context, path, pkg string, mutate func(*source.Document) error) (zgen.Result, error) {
	release, err := e.acquire(ctx, path)
	if err != nil {
		return zgen.Skipped, err
	}
	defer release()

	before, exists, err := e.read(path)
	if err != nil {
		return zgen.Skipped, err
	}
	doc := source.New(path, pkg)
	if exists {
		if doc, err = source.Parse(path, before); err != nil {
			return zgen.Skipped, zgen.NewMergeError(path, "", "", err.Error())
		}
	}
	if err := mutate(doc); err != nil {
		return zgen.Skipped, err
	}
	out, err := doc.Bytes()
	if err != nil {
		return zgen.Skipped, zgen.NewMergeError(path, "", "", err.Error())
	}
	return e.commit(path, before, exists, out)
}

// prune deletes from a Go source file. remove reports whether it changed
// the document; the file itself is deleted when empty reports true.
func (e *engine) prune(ctx context.Context, path string, remove func(*source.Document) (bool, error), empty func(*source.Document) bool) (zgen.Result, error) {
	release, err := e.acquire(ctx, path)
	if err != nil {
		return zgen.Skipped, err
	}
	defer release()

	before, exists, err := e.read(path)
	if err != nil || !exists {
		return zgen.Skipped, err
	}
	doc, err := source.Parse(path, before)
	if err != nil {
		return zgen.Skipped, zgen.NewMergeError(path, "", "", err.Error())
	}
	changed, err := remove(doc)
	if err != nil || !changed {
		return zgen.Skipped, err
	}
	if empty(doc) {
		if err := removeFile(path); err != nil {
			return zgen.Skipped, zgen.NewIOError("remove", path, err)
		}
		e.observe("remove", path)
		return zgen.Deleted, nil
	}
	out, err := doc.Bytes()
	if err != nil {
		return zgen.Skipped, zgen.NewMergeError(path, "", "", err.Error())
	}
	return e.commit(path, before, true, out)
}

// put writes a whole text artifact.
func (e *engine) put(ctx context.Context, path string, content []byte) (zgen.Result, error) {
	release, err := e.acquire(ctx, path)
	if err != nil {
		return zgen.Skipped, err
	}
	defer release()

	before, exists, err := e.read(path)
	if err != nil {
		return zgen.Skipped, err
	}
	return e.commit(path, before, exists, content)
}

// update rewrites a text artifact through edit, which receives the current
// content (nil when missing) and returns the new one.
func (e *engine) update(ctx context.Context, path string, edit func(before []byte) ([]byte, error)) (zgen.Result, error) {
	release, err := e.acquire(ctx, path)
	if err != nil {
		return zgen.Skipped, err
	}
	defer release()

	before, exists, err := e.read(path)
	if err != nil {
		return zgen.Skipped, err
	}
	out, err := edit(before)
	if err != nil {
		return zgen.Skipped, err
	}
	return e.commit(path, before, exists, out)
}

// drop deletes a text artifact when owned accepts its content.
func (e *engine) drop(ctx context.Context, path string, owned func([]byte) bool) (zgen.Result, error) {
	release, err := e.acquire(ctx, path)
	if err != nil {
		return zgen.Skipped, err
	}
	defer release()

	before, exists, err := e.read(path)
	if err != nil || !exists || !owned(before) {
		return zgen.Skipped, err
	}
	if err := removeFile(path); err != nil {
		return zgen.Skipped, zgen.NewIOError("remove", path, err)
	}
	e.observe("remove", path)
	return zgen.Deleted, nil
}

// writeFile replaces path with data. The data goes to a temporary file in
// the same directory that is then renamed over path, so readers see either
// the old or the new content.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

// removeFile deletes path. A file that is already gone is not an error.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
