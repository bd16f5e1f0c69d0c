package source

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/syssam/zgen"
)

// FuncBody edits the statement list of a top-level function.
type FuncBody struct {
	d   *Document
	seg *segment
}

// Func returns the body of the named function declared without a receiver.
func (d *Document) Func(name string) (*FuncBody, bool) {
	for _, n := range d.nodes {
		if (n.sig.Kind == Func || n.sig.Kind == Constructor) && n.sig.Name == name {
			return &FuncBody{d: d, seg: n}, true
		}
	}
	return nil, false
}

// Remove drops the function from its document.
func (fb *FuncBody) Remove() bool { return fb.d.Remove(fb.seg.sig) }

// parse returns the declaration, the wrapped text and the offset of the
// declaration inside it.
func (fb *FuncBody) parse() (*ast.FuncDecl, *token.File, string, int, error) {
	const prefix = "package p\n\n"
	src := prefix + fb.seg.text + "\n"
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, fb.d.filename, src, parser.ParseComments)
	if err != nil {
		return nil, nil, "", 0, err
	}
	for _, decl := range f.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok && fd.Body != nil {
			return fd, fset.File(f.Pos()), src, len(prefix), nil
		}
	}
	return nil, nil, "", 0, zgen.NewMergeError(fb.d.filename, fb.seg.sig.Name, "", "function has no body")
}

// Statements returns the verbatim text of each statement, comments on the
// lines above a statement included.
func (fb *FuncBody) Statements() ([]string, error) {
	fd, tf, src, _, err := fb.parse()
	if err != nil {
		return nil, err
	}
	var (
		stmts []string
		prev  = tf.Offset(fd.Body.Lbrace) + 1
	)
	for _, st := range fd.Body.List {
		end := lineEnd(src, tf.Offset(st.End()))
		stmts = append(stmts, strings.TrimSpace(src[prev:end]))
		prev = end
	}
	return stmts, nil
}

// SetStatements replaces the statement list.
func (fb *FuncBody) SetStatements(stmts []string) error {
	fd, tf, src, base, err := fb.parse()
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString(src[base : tf.Offset(fd.Body.Lbrace)+1])
	for _, st := range stmts {
		sb.WriteString("\n\t")
		sb.WriteString(st)
	}
	sb.WriteString("\n}")
	fb.seg.text = sb.String()
	return nil
}
