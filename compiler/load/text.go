package load

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/syssam/zgen"
)

// readAttempts bounds the retries of ReadFile while an editor is still
// writing the file.
const readAttempts = 3

// ReadFile reads a schema source as UTF-8 text. Transient failures (a file
// being rewritten by another process) are retried a few times before an
// IOError is returned; a missing file is reported immediately.
func ReadFile(path string) (string, error) {
	var err error
	for i := range readAttempts {
		var b []byte
		if b, err = os.ReadFile(path); err == nil {
			return strings.TrimPrefix(string(b), "\ufeff"), nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		time.Sleep(time.Duration(i+1) * 20 * time.Millisecond)
	}
	return "", zgen.NewIOError("read", path, err)
}

// stripComments removes -- line comments and /* */ block comments outside
// of string literals and bracketed identifiers. Newlines are kept so line
// oriented patterns still work.
func stripComments(s string) string {
	var (
		b     strings.Builder
		quote rune
	)
	b.Grow(len(s))
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case quote != 0:
			b.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(r)
		case r == '[':
			quote = ']'
			b.WriteRune(r)
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
			if i < len(rs) {
				b.WriteRune('\n')
			}
		case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			i += 2
			for i < len(rs) && !(rs[i] == '*' && i+1 < len(rs) && rs[i+1] == '/') {
				if rs[i] == '\n' {
					b.WriteRune('\n')
				}
				i++
			}
			i++
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitTopLevel splits s on sep, ignoring separators nested in parentheses,
// brackets or string literals. Empty parts are dropped.
func splitTopLevel(s string, sep rune) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[':
			quote = ']'
		case r == '(':
			depth++
		case r == ')':
			depth--
		case r == sep && depth == 0:
			if p := strings.TrimSpace(s[start:i]); p != "" {
				parts = append(parts, p)
			}
			start = i + len(string(r))
		}
	}
	if p := strings.TrimSpace(s[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

// matchParen returns the index of the parenthesis closing the one at open,
// or -1 when it is unbalanced.
func matchParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			quote = ']'
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// unquote strips identifier quoting: [name], "name" or `name`.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch {
		case s[0] == '[' && s[len(s)-1] == ']',
			s[0] == '"' && s[len(s)-1] == '"',
			s[0] == '`' && s[len(s)-1] == '`':
			return s[1 : len(s)-1]
		}
	}
	return s
}

// qualified splits a possibly quoted schema.name reference. The default
// schema is returned when the reference has no schema part.
func qualified(s, defaultSchema string) (schemaName, name string) {
	parts := splitTopLevel(s, '.')
	for i := range parts {
		parts[i] = unquote(parts[i])
	}
	switch len(parts) {
	case 0:
		return defaultSchema, ""
	case 1:
		return defaultSchema, parts[0]
	default:
		// database.schema.name keeps the last two parts.
		return parts[len(parts)-2], parts[len(parts)-1]
	}
}

// identList parses a parenthesized column list body such as
// "[A] ASC, [B] DESC" into column names.
func identList(s string) []string {
	var cols []string
	for _, part := range splitTopLevel(s, ',') {
		if f := fields(part); len(f) > 0 {
			cols = append(cols, unquote(f[0]))
		}
	}
	return cols
}

// fields splits on white space outside brackets and quotes.
func fields(s string) []string {
	var (
		out   []string
		quote rune
		depth int
		start = -1
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '[':
			quote = ']'
		case r == '\'' || r == '"':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
		case unicode.IsSpace(r) && depth == 0:
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

// normalizeType upper-cases builtin type names and keeps the case of
// schema-qualified user types.
func normalizeType(s string) string {
	if strings.Contains(s, ".") {
		sch, name := qualified(s, "")
		return sch + "." + name
	}
	return strings.ToUpper(unquote(s))
}
