package load

import (
	"regexp"
	"strings"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/schema"
)

const ident = `(?:\[[^\]]+\]|"[^"]+"|\w+)`

var (
	qualifiedIdent = ident + `(?:\s*\.\s*` + ident + `){0,2}`

	tableHeaderRe = regexp.MustCompile(`(?is)\bCREATE\s+TABLE\s+(` + qualifiedIdent + `)\s*\(`)
	columnRe      = regexp.MustCompile(`(?is)^(` + ident + `)\s+(` + qualifiedIdent + `)\s*(?:\(([^)]*)\))?(.*)$`)
	constraintRe  = regexp.MustCompile(`(?is)^CONSTRAINT\s+(` + ident + `)\s+(.*)$`)
	primaryKeyRe  = regexp.MustCompile(`(?is)^PRIMARY\s+KEY(?:\s+(?:NON)?CLUSTERED)?\s*\(([^)]*)\)`)
	foreignKeyRe  = regexp.MustCompile(`(?is)^FOREIGN\s+KEY\s*\(([^)]*)\)\s*REFERENCES\s+(` + qualifiedIdent + `)\s*(?:\(([^)]*)\))?`)
	referencesRe  = regexp.MustCompile(`(?is)\bREFERENCES\s+(` + qualifiedIdent + `)\s*(?:\(([^)]*)\))?`)
	indexRe       = regexp.MustCompile(`(?is)\bCREATE\s+(UNIQUE\s+)?(?:(CLUSTERED|NONCLUSTERED)\s+)?INDEX\s+(` + ident + `)\s+ON\s+(` + qualifiedIdent + `)\s*\(([^)]*)\)`)
	fullTextRe    = regexp.MustCompile(`(?is)\bCREATE\s+FULLTEXT\s+INDEX\s+ON\s+(` + qualifiedIdent + `)\s*\(([^)]*)\)\s*KEY\s+INDEX\s+(` + ident + `)(?:\s+ON\s+(` + ident + `))?`)
	defaultRe     = regexp.MustCompile(`(?is)\bDEFAULT\s+`)
	notNullRe     = regexp.MustCompile(`(?is)\bNOT\s+NULL\b`)
	identityRe    = regexp.MustCompile(`(?is)\bIDENTITY\b`)
	inlinePKRe    = regexp.MustCompile(`(?is)\bPRIMARY\s+KEY\b`)
	computedRe    = regexp.MustCompile(`(?is)^` + ident + `\s+AS\b`)
	skippedItemRe = regexp.MustCompile(`(?is)^(?:UNIQUE|CHECK|INDEX|PERIOD\s+FOR)\b`)
)

// ParseTable parses a CREATE TABLE script, together with the index
// statements that follow it, into a table definition. Text around the
// statements is ignored.
func ParseTable(text string) (*schema.Table, error) {
	src := stripComments(text)
	loc := tableHeaderRe.FindStringSubmatchIndex(src)
	if loc == nil {
		return nil, zgen.NewParseError("", "could not locate CREATE TABLE header", nil)
	}
	t := &schema.Table{}
	t.Schema, t.Name = qualified(src[loc[2]:loc[3]], schema.DefaultSchema)
	open := loc[1] - 1
	end := matchParen(src, open)
	if end < 0 {
		return nil, zgen.NewParseError(t.QualifiedName(), "unbalanced column list", nil)
	}
	for _, item := range splitTopLevel(src[open+1:end], ',') {
		if err := addTableItem(t, item); err != nil {
			return nil, err
		}
	}
	if len(t.Columns) == 0 {
		return nil, zgen.NewParseError(t.QualifiedName(), "no column definitions", nil)
	}
	if _, err := t.PrimaryKey(); err != nil {
		return nil, zgen.NewParseError(t.QualifiedName(), "no primary key constraint", err)
	}
	rest := src[end+1:]
	addIndexes(t, rest)
	addFullTextIndexes(t, rest)
	return t, nil
}

// addTableItem parses one top-level entry of the column list: a table
// constraint or a column definition.
func addTableItem(t *schema.Table, item string) error {
	var name string
	if m := constraintRe.FindStringSubmatch(item); m != nil {
		name, item = unquote(m[1]), strings.TrimSpace(m[2])
	}
	switch {
	case primaryKeyRe.MatchString(item):
		m := primaryKeyRe.FindStringSubmatch(item)
		t.Constraints = append(t.Constraints, &schema.Constraint{
			Name:    name,
			Kind:    schema.PrimaryKey,
			Columns: identList(m[1]),
		})
	case foreignKeyRe.MatchString(item):
		m := foreignKeyRe.FindStringSubmatch(item)
		fk := &schema.Constraint{
			Name:       name,
			Kind:       schema.ForeignKey,
			Columns:    identList(m[1]),
			RefColumns: identList(m[3]),
		}
		fk.RefSchema, fk.RefTable = qualified(m[2], t.Schema)
		t.Constraints = append(t.Constraints, fk)
	case name != "", skippedItemRe.MatchString(item), computedRe.MatchString(item):
		// Other named constraints, inline indexes and computed columns carry
		// nothing the generators use.
	default:
		return addColumn(t, item)
	}
	return nil
}

func addColumn(t *schema.Table, item string) error {
	m := columnRe.FindStringSubmatch(item)
	if m == nil {
		return zgen.NewParseError(t.QualifiedName(), "could not parse column definition "+quoteShort(item), nil)
	}
	c := &schema.Column{
		Name: unquote(m[1]),
		Type: normalizeType(m[2]),
	}
	length, rest := strings.TrimSpace(m[3]), m[4]
	c.Length = strings.Join(strings.Fields(length), "")
	c.Identity = identityRe.MatchString(rest)
	c.Default = defaultValue(rest)
	pk := inlinePKRe.MatchString(rest)
	// Columns are nullable unless declared otherwise.
	c.Nullable = !notNullRe.MatchString(rest) && !pk && !c.Identity
	t.Columns = append(t.Columns, c)
	if pk {
		t.Constraints = append(t.Constraints, &schema.Constraint{
			Kind:    schema.PrimaryKey,
			Columns: []string{c.Name},
		})
	}
	if r := referencesRe.FindStringSubmatch(rest); r != nil {
		fk := &schema.Constraint{
			Kind:       schema.ForeignKey,
			Columns:    []string{c.Name},
			RefColumns: identList(r[2]),
		}
		fk.RefSchema, fk.RefTable = qualified(r[1], t.Schema)
		t.Constraints = append(t.Constraints, fk)
	}
	return nil
}

// defaultValue extracts the literal or parenthesized expression following a
// DEFAULT keyword, with redundant outer parentheses removed.
func defaultValue(rest string) string {
	loc := defaultRe.FindStringIndex(rest)
	if loc == nil {
		return ""
	}
	s := strings.TrimSpace(rest[loc[1]:])
	var v string
	switch {
	case strings.HasPrefix(s, "("):
		end := matchParen(s, 0)
		if end < 0 {
			return ""
		}
		v = s[:end+1]
	case strings.HasPrefix(s, "'"), strings.HasPrefix(s, "N'"):
		start := strings.Index(s, "'")
		end := strings.Index(s[start+1:], "'")
		if end < 0 {
			return ""
		}
		v = s[:start+1+end+1]
	default:
		if f := fields(s); len(f) > 0 {
			v = f[0]
		}
	}
	for strings.HasPrefix(v, "(") && matchParen(v, 0) == len(v)-1 {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	return v
}

func addIndexes(t *schema.Table, src string) {
	for _, m := range indexRe.FindAllStringSubmatch(src, -1) {
		sch, name := qualified(m[4], schema.DefaultSchema)
		if !strings.EqualFold(sch, t.Schema) || !strings.EqualFold(name, t.Name) {
			continue
		}
		t.Indexes = append(t.Indexes, &schema.Index{
			Name:    unquote(m[3]),
			Unique:  strings.TrimSpace(m[1]) != "",
			Type:    strings.ToUpper(m[2]),
			Columns: identList(m[5]),
		})
	}
}

func addFullTextIndexes(t *schema.Table, src string) {
	for _, m := range fullTextRe.FindAllStringSubmatch(src, -1) {
		sch, name := qualified(m[1], schema.DefaultSchema)
		if !strings.EqualFold(sch, t.Schema) || !strings.EqualFold(name, t.Name) {
			continue
		}
		t.FullTextIndexes = append(t.FullTextIndexes, &schema.FullTextIndex{
			Columns:  identList(m[2]),
			KeyIndex: unquote(m[3]),
			Catalog:  unquote(m[4]),
		})
	}
}

func quoteShort(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return `"` + s + `"`
}
