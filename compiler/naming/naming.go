// Package naming converts schema identifiers into Go and file-system names.
package naming

import (
	"go/token"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	rules    = ruleset()
	acronyms = make(map[string]struct{})
)

// Casers hold state and are not shared between goroutines.
func title(s string) string { return cases.Title(language.Und, cases.NoLower).String(s) }
func lower(s string) string { return cases.Lower(language.Und).String(s) }

func ruleset() *inflect.Ruleset {
	rules := inflect.NewDefaultRuleset()
	// Common initialisms from golint and more.
	for _, w := range []string{"ACL", "API", "ASCII", "AWS", "CPU", "CSS", "DNS", "EOF", "GB", "GUID", "HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "KB", "MAC", "MB", "QPS", "RAM", "RPC", "SKU", "SLA", "SMTP", "SQL", "SSH", "SSO", "TCP", "TLS", "TTL", "UDP", "UI", "UID", "URI", "URL", "UTF8", "UUID", "VAT", "VM", "XML", "XSRF", "XSS"} {
		acronyms[w] = struct{}{}
		rules.AddAcronym(w)
	}
	return rules
}

// AddAcronym registers an additional initialism that Pascal and Camel keep
// in upper case. It must be called before names are generated.
func AddAcronym(word string) {
	w := strings.ToUpper(word)
	acronyms[w] = struct{}{}
	rules.AddAcronym(w)
}

func isAcronym(w string) bool {
	_, ok := acronyms[strings.ToUpper(w)]
	return ok
}

// words splits an identifier on separators and case changes:
// "GetByCustomerId" → [Get By Customer Id], "HTTPCode" → [HTTP Code],
// "UserIDs" → [User IDs].
func words(s string) []string {
	var (
		out []string
		cur []rune
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.' || r == '@':
			flush()
			continue
		case unicode.IsUpper(r) && len(cur) > 0:
			prev := rs[i-1]
			next := rune(0)
			if i+1 < len(rs) {
				next = rs[i+1]
			}
			switch {
			case unicode.IsLower(prev), unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(prev) && unicode.IsLower(next) && !pluralRun(rs, i):
				// Last upper-case letter of a run starts the next word.
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

// pluralRun reports whether rs[i] ends an upper-case run followed by a
// plural "s" that closes the word, as in "IDs".
func pluralRun(rs []rune, i int) bool {
	if i+1 >= len(rs) || rs[i+1] != 's' {
		return false
	}
	return i+2 == len(rs) || !unicode.IsLower(rs[i+2])
}

func pascalWord(w string) string {
	if isAcronym(w) {
		return strings.ToUpper(w)
	}
	if base, ok := strings.CutSuffix(w, "s"); ok && base != "" && isAcronym(base) {
		return strings.ToUpper(base) + "s"
	}
	return title(w)
}

// Pascal returns the exported Go spelling of s: "user_id" → "UserID",
// "GetById" → "GetByID".
func Pascal(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		b.WriteString(pascalWord(w))
	}
	return b.String()
}

// Camel returns the unexported Go spelling of s: "@CustomerId" →
// "customerID", "http_code" → "httpCode".
func Camel(s string) string {
	ws := words(s)
	if len(ws) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(lower(ws[0]))
	for _, w := range ws[1:] {
		b.WriteString(pascalWord(w))
	}
	return b.String()
}

// Snake returns the lower snake-case spelling of s: "UserIDs" → "user_ids".
func Snake(s string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = lower(w)
	}
	return strings.Join(ws, "_")
}

// Plural returns the plural form of name. Names the inflection rules leave
// unchanged get a "Slice" suffix so the result never equals its input.
func Plural(name string) string {
	p := rules.Pluralize(name)
	if p == name {
		p += "Slice"
	}
	return p
}

// Ident returns s unchanged unless it is a Go keyword or predeclared
// identifier, in which case an underscore is appended.
func Ident(s string) string {
	if token.IsKeyword(s) || predeclared[s] {
		return s + "_"
	}
	return s
}

var predeclared = map[string]bool{
	"any": true, "bool": true, "byte": true, "error": true, "false": true,
	"int": true, "len": true, "new": true, "nil": true, "string": true, "true": true,
}

// Receiver returns the receiver name for a type: the lower-cased initials of
// its words, "UserQuery" → "uq", "*User" → "u".
func Receiver(typ string) string {
	typ = strings.TrimLeft(typ, "*[]0123456789")
	var b strings.Builder
	for _, w := range words(typ) {
		r := []rune(w)
		b.WriteRune(unicode.ToLower(r[0]))
	}
	if b.Len() == 0 {
		return "r"
	}
	return Ident(b.String())
}
