package load

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/compiler/naming"
	"github.com/syssam/zgen/schema"
)

var (
	procHeaderRe = regexp.MustCompile(`(?is)\b(?:CREATE(?:\s+OR\s+ALTER)?|ALTER)\s+PROC(?:EDURE)?\s+(` + qualifiedIdent + `)`)
	paramRe      = regexp.MustCompile(`(?is)^(@\w+)\s+(?:AS\s+)?(` + qualifiedIdent + `)\s*(?:\(([^)]*)\))?(.*)$`)
	paramDefRe   = regexp.MustCompile(`(?is)=\s*('(?:[^']|'')*'|N'(?:[^']|'')*'|[^\s,]+)`)
	outputRe     = regexp.MustCompile(`(?is)\bOUT(?:PUT)?\b`)
	readOnlyRe   = regexp.MustCompile(`(?is)\bREADONLY\b`)
	returnsRe    = regexp.MustCompile(`(?im)--\s*@returns\s+(` + qualifiedIdent + `)`)
	procWithRe   = regexp.MustCompile(`(?is)\s*\bWITH\s+(?:RECOMPILE|ENCRYPTION|NATIVE_COMPILATION|SCHEMABINDING|EXEC(?:UTE)?\s+AS)\b.*$`)
)

// ParseProcedure parses a CREATE PROCEDURE script. The procedure name must
// follow the <prefix>_<Table>_<Action> convention; the owning table and the
// action are taken from it.
func ParseProcedure(text, prefix string) (*schema.Procedure, error) {
	var returns string
	if m := returnsRe.FindStringSubmatch(text); m != nil {
		returns = normalizeType(m[1])
	}
	src := stripComments(text)
	loc := procHeaderRe.FindStringSubmatchIndex(src)
	if loc == nil {
		return nil, zgen.NewParseError("", "could not locate CREATE PROCEDURE header", nil)
	}
	p := &schema.Procedure{ReturnType: returns}
	p.Schema, p.Name = qualified(src[loc[2]:loc[3]], schema.DefaultSchema)
	table, action, ok := schema.SplitProcedureName(p.Name, prefix)
	if !ok {
		return nil, zgen.NewParseError(p.QualifiedName(), "procedure name of the form "+prefix+"_<Table>_<Action>", nil)
	}
	p.Table, p.Action, p.Kind = table, action, schema.KindOf(action)

	body := src[loc[1]:]
	end := bodyStart(body)
	if end < 0 {
		return nil, zgen.NewParseError(p.QualifiedName(), "could not locate procedure parameter list", nil)
	}
	list := strings.TrimSpace(procWithRe.ReplaceAllString(body[:end], ""))
	if strings.HasPrefix(list, "(") && matchParen(list, 0) == len(list)-1 {
		list = list[1 : len(list)-1]
	}
	for _, item := range splitTopLevel(list, ',') {
		c, ok := parseParam(item)
		if !ok {
			return nil, zgen.NewParseError(p.QualifiedName(), "parameter declaration at "+quoteShort(item), nil)
		}
		p.Params = append(p.Params, c)
	}
	return p, nil
}

func parseParam(item string) (*schema.Column, bool) {
	m := paramRe.FindStringSubmatch(item)
	if m == nil {
		return nil, false
	}
	c := &schema.Column{
		Name: m[1],
		Type: normalizeType(m[2]),
	}
	length, rest := m[3], m[4]
	// Some scripts wrap the READONLY keyword of a table-valued parameter in
	// the length clause; that is not a size.
	if readOnlyRe.MatchString(length) {
		c.ReadOnly = true
	} else {
		c.Length = strings.Join(strings.Fields(length), "")
	}
	if d := paramDefRe.FindStringSubmatch(rest); d != nil {
		c.Default = d[1]
		c.Nullable = true
	}
	c.Output = outputRe.MatchString(rest)
	c.ReadOnly = c.ReadOnly || readOnlyRe.MatchString(rest)
	return c, true
}

// bodyStart returns the offset of the AS keyword that ends the parameter
// list, skipping any WITH options before it. Keywords inside parentheses,
// brackets or literals are ignored.
func bodyStart(s string) int {
	var (
		depth int
		quote byte
	)
	for i := 0; i < len(s); i++ {
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
		case depth == 0 && keywordAt(s, i, "AS"):
			// "@p AS int" is a legal parameter spelling.
			if !paramTypeAS(s[:i]) {
				return i
			}
		}
	}
	return -1
}

// keywordAt reports whether the keyword starts at offset i as a whole word.
func keywordAt(s string, i int, kw string) bool {
	if i+len(kw) > len(s) || !strings.EqualFold(s[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && isWordByte(s[i-1]) {
		return false
	}
	return i+len(kw) == len(s) || !isWordByte(s[i+len(kw)])
}

func isWordByte(c byte) bool {
	return c == '_' || c == '@' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

// paramTypeAS reports whether the text before an AS keyword ends with a bare
// parameter name, which makes the AS part of that parameter declaration, or
// with EXECUTE of a WITH EXECUTE AS option.
func paramTypeAS(before string) bool {
	f := fields(before)
	if len(f) == 0 {
		return false
	}
	last := f[len(f)-1]
	return strings.HasPrefix(last, "@") || strings.EqualFold(last, "EXECUTE") || strings.EqualFold(last, "EXEC")
}

// ProcedureFromPath derives the identity of a procedure from its script
// path, for scripts that no longer exist. Both "name.sql" and
// "schema.name.sql" file names are recognized; otherwise the schema is the
// directory above "Stored Procedures".
func ProcedureFromPath(path, prefix string) (*schema.Procedure, error) {
	p := &schema.Procedure{}
	p.Schema, p.Name = pathIdentity(path)
	table, action, ok := schema.SplitProcedureName(p.Name, prefix)
	if !ok {
		return nil, zgen.NewParseError(path, "procedure name of the form "+prefix+"_<Table>_<Action>", nil)
	}
	p.Table, p.Action, p.Kind = table, action, schema.KindOf(action)
	return p, nil
}

// TableFromPath derives the identity of a table from its script path.
func TableFromPath(path string) *schema.Table {
	t := &schema.Table{}
	t.Schema, t.Name = pathIdentity(path)
	return t
}

func pathIdentity(path string) (schemaName, name string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if sch, n, ok := strings.Cut(base, "."); ok {
		return sch, n
	}
	schemaName = filepath.Base(filepath.Dir(filepath.Dir(path)))
	if schemaName == "." || schemaName == string(filepath.Separator) {
		schemaName = schema.DefaultSchema
	}
	return schemaName, base
}

// ModelFromPath derives the name of a client model from its file name:
// "customer.model.ts" and "customer.ts" both name Customer.
func ModelFromPath(path string) *schema.Model {
	base, _, _ := strings.Cut(filepath.Base(path), ".")
	return &schema.Model{Name: naming.Pascal(base)}
}
