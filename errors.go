package zgen

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Standard sentinel errors for the failure classes of a synchronization pass.
var (
	// ErrParse is returned when schema text does not contain a structure
	// the parsers expect (header, parameter list, primary key, ...).
	ErrParse = errors.New("zgen: parse failed")

	// ErrLockTimeout is returned when a path lock could not be obtained
	// within its wait budget.
	ErrLockTimeout = errors.New("zgen: lock timeout")

	// ErrIO is returned when reading or writing an artifact fails.
	ErrIO = errors.New("zgen: i/o failed")

	// ErrMerge is returned when an enclosing type or member required by a
	// merge is missing from the target document.
	ErrMerge = errors.New("zgen: merge failed")

	// ErrConfig is returned for invalid or incomplete configuration.
	ErrConfig = errors.New("zgen: invalid configuration")
)

// ParseError reports schema text that did not match an expected pattern.
type ParseError struct {
	Source   string // File path or entity name, if known.
	Expected string // Pattern that was expected and not found.
	Cause    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("zgen: parse error")
	if e.Source != "" {
		b.WriteString(" in ")
		b.WriteString(e.Source)
	}
	if e.Expected != "" {
		b.WriteString(": ")
		b.WriteString(e.Expected)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// NewParseError creates a new ParseError.
func NewParseError(source, expected string, cause error) *ParseError {
	return &ParseError{Source: source, Expected: expected, Cause: cause}
}

// LockTimeoutError reports that a path lock was not acquired in time.
type LockTimeoutError struct {
	Key     string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("zgen: lock on %q not acquired within %s", e.Key, e.Timeout)
}

// Is reports whether the target matches ErrLockTimeout.
func (e *LockTimeoutError) Is(target error) bool {
	return target == ErrLockTimeout
}

// NewLockTimeoutError creates a new LockTimeoutError.
func NewLockTimeoutError(key string, timeout time.Duration) *LockTimeoutError {
	return &LockTimeoutError{Key: key, Timeout: timeout}
}

// IOError wraps a filesystem failure on an artifact or schema file.
type IOError struct {
	Op    string // "read", "write", "remove", ...
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("zgen: %s %s: %v", e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("zgen: %s %s failed", e.Op, e.Path)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// NewIOError creates a new IOError.
func NewIOError(op, path string, cause error) *IOError {
	return &IOError{Op: op, Path: path, Cause: cause}
}

// MergeError reports a document that lacks a declaration a merge depends on.
type MergeError struct {
	Path    string
	Owner   string // Enclosing type or function name.
	Member  string
	Message string
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	var b strings.Builder
	b.WriteString("zgen: merge error")
	if e.Path != "" {
		b.WriteString(" (file: ")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Owner != "" {
		b.WriteString(" on ")
		b.WriteString(e.Owner)
		if e.Member != "" {
			b.WriteString(".")
			b.WriteString(e.Member)
		}
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is reports whether the target matches ErrMerge.
func (e *MergeError) Is(target error) bool {
	return target == ErrMerge
}

// NewMergeError creates a new MergeError.
func NewMergeError(path, owner, member, message string) *MergeError {
	return &MergeError{Path: path, Owner: owner, Member: member, Message: message}
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("zgen: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("zgen: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{Option: option, Value: value, Message: message}
}

// IsParseError reports whether the error is a ParseError.
func IsParseError(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}

// IsLockTimeout reports whether the error is a LockTimeoutError.
func IsLockTimeout(err error) bool {
	var e *LockTimeoutError
	return errors.As(err, &e)
}

// IsIOError reports whether the error is an IOError.
func IsIOError(err error) bool {
	var e *IOError
	return errors.As(err, &e)
}

// IsMergeError reports whether the error is a MergeError.
func IsMergeError(err error) bool {
	var e *MergeError
	return errors.As(err, &e)
}

// IsConfigError reports whether the error is a ConfigError.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during a pass.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "zgen: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("zgen: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
