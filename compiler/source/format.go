package source

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/imports"
)

// Bytes returns the formatted file. Requested imports are added, imports
// the file no longer references are dropped, and the result is gofmt'ed.
// An unaliased import is only dropped when it was requested or its package
// name was seen in use.
func (d *Document) Bytes() ([]byte, error) {
	src := []byte(d.compose())
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, d.filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("source: merged %s does not parse: %w", d.filename, err)
	}
	changed := false
	for _, im := range d.imports {
		if hasImport(f, im.name, im.path) || !uses(f, im.name, im.path) {
			continue
		}
		changed = astutil.AddNamedImport(fset, f, im.name, im.path) || changed
	}
	for _, spec := range f.Imports {
		p, _ := strconv.Unquote(spec.Path.Value)
		var name string
		if spec.Name != nil {
			name = spec.Name.Name
		} else if !d.knowsName(p) {
			// The package name may differ from the path.
			continue
		}
		if !uses(f, name, p) {
			changed = astutil.DeleteNamedImport(fset, f, name, p) || changed
		}
	}
	if changed {
		var buf bytes.Buffer
		if err := format.Node(&buf, fset, f); err != nil {
			return nil, fmt.Errorf("source: print %s: %w", d.filename, err)
		}
		src = buf.Bytes()
	}
	out, err := imports.Process(d.filename, src, &imports.Options{
		FormatOnly: true,
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
	})
	if err != nil {
		return nil, fmt.Errorf("source: format %s: %w", d.filename, err)
	}
	return out, nil
}

func (d *Document) knowsName(p string) bool {
	if d.named[p] {
		return true
	}
	for _, im := range d.imports {
		if im.path == p && im.name == "" {
			return true
		}
	}
	return false
}

func hasImport(f *ast.File, name, p string) bool {
	for _, spec := range f.Imports {
		v, _ := strconv.Unquote(spec.Path.Value)
		if v != p {
			continue
		}
		if spec.Name == nil {
			return name == "" || name == ImportName(p)
		}
		return spec.Name.Name == name
	}
	return false
}

// uses reports whether the file refers to the package imported as name (or
// under its default name). Blank and dot imports always count as used, as
// do paths whose package name cannot be told from the path.
func uses(f *ast.File, name, p string) bool {
	switch name {
	case "_", ".":
		return true
	case "":
		name = ImportName(p)
		if name == "" {
			return true
		}
	}
	used := false
	ast.Inspect(f, func(n ast.Node) bool {
		if used {
			return false
		}
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if id, ok := sel.X.(*ast.Ident); ok && id.Name == name && id.Obj == nil {
				used = true
			}
		}
		return true
	})
	return used
}

// ImportName guesses the package name of an import path: the last element
// without a major version suffix ("/v5", ".v3") or "go-" prefix. It returns
// "" when the element is not a valid identifier.
func ImportName(p string) string {
	base := path.Base(p)
	if len(base) > 1 && base[0] == 'v' && isDigits(base[1:]) && path.Dir(p) != "." {
		base = path.Base(path.Dir(p))
	}
	if i := strings.LastIndex(base, ".v"); i > 0 && isDigits(base[i+2:]) {
		base = base[:i]
	}
	base = strings.TrimPrefix(base, "go-")
	if !token.IsIdentifier(base) {
		return ""
	}
	return base
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
