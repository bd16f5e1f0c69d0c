// Package console provides the slog sink used by the zgen command.
//
// Every record is written as one line under a single process-wide mutex so
// that output of concurrent synchronizations never interleaves.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Additional levels for synchronization outcomes.
const (
	LevelSkipped = slog.Level(1)
	LevelSuccess = slog.Level(2)
)

// mu guards every console write in the process.
var mu sync.Mutex

// Options configures a Handler.
type Options struct {
	// Level is the minimum level written. Defaults to info.
	Level slog.Leveler
	// NoColor disables ANSI colors.
	NoColor bool
	// Time formats a timestamp in front of every line when non-empty.
	TimeFormat string
}

// Handler is a line-oriented slog.Handler.
type Handler struct {
	w      io.Writer
	opts   Options
	attrs  string
	prefix string
}

// NewHandler returns a handler writing to w.
func NewHandler(w io.Writer, opts *Options) *Handler {
	h := &Handler{w: w}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	return h
}

// New returns a logger backed by a Handler.
func New(w io.Writer, opts *Options) *slog.Logger {
	return slog.New(NewHandler(w, opts))
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if h.opts.TimeFormat != "" && !r.Time.IsZero() {
		b.WriteString(r.Time.Format(h.opts.TimeFormat))
		b.WriteByte(' ')
	}
	b.WriteString(h.label(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	mu.Lock()
	defer mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		writeAttr(&b, h.prefix, a)
	}
	nh := *h
	nh.attrs = b.String()
	return &nh
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func (h *Handler) label(level slog.Level) string {
	var (
		text string
		c    *color.Color
	)
	switch {
	case level >= slog.LevelError:
		text, c = "ERROR", color.New(color.FgRed, color.Bold)
	case level >= slog.LevelWarn:
		text, c = "WARN", color.New(color.FgYellow)
	case level == LevelSuccess:
		text, c = "SUCCESS", color.New(color.FgGreen)
	case level == LevelSkipped:
		text, c = "SKIPPED", color.New(color.FgHiBlack)
	case level >= slog.LevelInfo:
		text, c = "INFO", color.New(color.FgCyan)
	default:
		text, c = "DEBUG", color.New(color.FgMagenta)
	}
	text = fmt.Sprintf("%-7s", text)
	if h.opts.NoColor {
		return text
	}
	c.EnableColor()
	return c.Sprint(text)
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, p, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	var v string
	switch a.Value.Kind() {
	case slog.KindDuration:
		v = a.Value.Duration().Round(time.Microsecond).String()
	default:
		v = a.Value.String()
	}
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		v = strconv.Quote(v)
	}
	b.WriteString(v)
}

// Success logs msg at LevelSuccess.
func Success(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelSuccess, msg, args...)
}

// Skipped logs msg at LevelSkipped.
func Skipped(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelSkipped, msg, args...)
}
