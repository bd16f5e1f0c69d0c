// Package source implements a structured view of a Go source file that
// supports member-level merges.
//
// A Document keeps the verbatim text of every top-level declaration and of
// every field or method inside single type declarations. Edits replace,
// insert or drop one segment; all other text, comments and blank lines
// included, is carried over untouched. Bytes re-assembles the file, fixes
// the import block and formats the result.
package source

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// Kind is the kind of a declaration tracked by a Document.
type Kind uint8

// Declaration kinds.
const (
	// Decl is any top-level declaration without a more specific kind:
	// const and var blocks, grouped type declarations.
	Decl Kind = iota
	Type
	Field
	Method
	Constructor
	Func
)

var kindNames = [...]string{"decl", "type", "field", "method", "constructor", "func"}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Signature identifies a declaration. Owner is the enclosing or receiver
// type for fields, methods and constructors, and empty otherwise.
type Signature struct {
	Kind  Kind
	Owner string
	Name  string
}

// String formats the signature as kind:Owner.Name.
func (s Signature) String() string {
	if s.Owner == "" {
		return s.Kind.String() + ":" + s.Name
	}
	return s.Kind.String() + ":" + s.Owner + "." + s.Name
}

// Exported reports whether the declared name is exported.
func (s Signature) Exported() bool { return token.IsExported(s.Name) }

// Member is the text of one declaration. Doc holds its doc comment without
// the trailing newline, Text the declaration itself.
type Member struct {
	Sig  Signature
	Doc  string
	Text string
}

// TypeInfo describes a type declaration.
type TypeInfo struct {
	Name string
	// Kind is "struct", "interface" or "other".
	Kind string
	// Bases lists embedded types and interfaces.
	Bases []string
}

// segment is a declaration with the text in front of it. The leading text is
// split so that the doc comment can be replaced on its own.
type segment struct {
	space string // blank lines and detached comments
	doc   string // doc comment
	gap   string // text between doc comment and declaration
	text  string
	sig   Signature
	body  *body
}

// body is the member list of a single struct or interface declaration.
type body struct {
	kind    string
	open    string // declaration text up to and including '{'
	members []*segment
	close   string // text after the last member, including '}'
}

// Document is a parsed Go source file.
type Document struct {
	filename string
	pkg      string
	header   string
	nodes    []*segment
	trailer  string
	imports  []importSpec
	// named holds the unaliased imports whose package name was seen in use
	// when the file was parsed.
	named map[string]bool
}

type importSpec struct {
	name string
	path string
}

// New returns an empty document declaring package pkg.
func New(filename, pkg string) *Document {
	return &Document{filename: filename, pkg: pkg, header: "package " + pkg + "\n"}
}

// Parse parses Go source text into a Document.
func Parse(filename string, src []byte) (*Document, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("source: parse %s: %w", filename, err)
	}
	tf := fset.File(f.Pos())
	s := string(src)
	off := func(p token.Pos) int { return tf.Offset(p) }

	d := &Document{filename: filename, pkg: f.Name.Name, named: make(map[string]bool)}
	for _, spec := range f.Imports {
		if spec.Name != nil {
			continue
		}
		if p, _ := strconv.Unquote(spec.Path.Value); uses(f, "", p) {
			d.named[p] = true
		}
	}
	end := off(f.Name.End())
	decls := f.Decls
	for len(decls) > 0 {
		gd, ok := decls[0].(*ast.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			break
		}
		end = off(gd.End())
		decls = decls[1:]
	}
	end = lineEnd(s, end)
	d.header = s[:end]

	for _, decl := range decls {
		start := off(decl.Pos())
		var doc *ast.CommentGroup
		switch decl := decl.(type) {
		case *ast.GenDecl:
			doc = decl.Doc
		case *ast.FuncDecl:
			doc = decl.Doc
		}
		stop := lineEnd(s, off(decl.End()))
		seg := &segment{text: s[start:stop]}
		seg.space, seg.doc, seg.gap = splitLead(s, end, start, doc, off)
		seg.sig = declSignature(decl)
		if gd, ok := decl.(*ast.GenDecl); ok && seg.sig.Kind == Type {
			seg.body = parseBody(s, gd.Specs[0].(*ast.TypeSpec), start, stop, off)
		}
		d.nodes = append(d.nodes, seg)
		end = stop
	}
	d.trailer = s[end:]
	return d, nil
}

// lineEnd extends a declaration end over a comment on the same line.
func lineEnd(s string, end int) int {
	i := end
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if strings.HasPrefix(s[i:], "//") {
		if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
			return i + nl
		}
		return len(s)
	}
	return end
}

func splitLead(s string, from, to int, doc *ast.CommentGroup, off func(token.Pos) int) (space, docText, gap string) {
	if doc == nil || off(doc.Pos()) < from {
		return s[from:to], "", ""
	}
	ds, de := off(doc.Pos()), off(doc.End())
	return s[from:ds], s[ds:de], s[de:to]
}

func parseBody(s string, ts *ast.TypeSpec, start, stop int, off func(token.Pos) int) *body {
	var (
		fields *ast.FieldList
		kind   string
	)
	switch t := ts.Type.(type) {
	case *ast.StructType:
		fields, kind = t.Fields, "struct"
	case *ast.InterfaceType:
		fields, kind = t.Methods, "interface"
	default:
		return nil
	}
	if fields == nil || !fields.Opening.IsValid() || !fields.Closing.IsValid() {
		return nil
	}
	open := off(fields.Opening) + 1
	b := &body{kind: kind, open: s[start:open]}
	end := open
	for _, fd := range fields.List {
		fs := off(fd.Pos())
		fe := lineEnd(s, off(fd.End()))
		m := &segment{text: s[fs:fe], sig: fieldSignature(ts.Name.Name, kind, fd)}
		m.space, m.doc, m.gap = splitLead(s, end, fs, fd.Doc, off)
		b.members = append(b.members, m)
		end = fe
	}
	b.close = s[end:stop]
	return b
}

func declSignature(decl ast.Decl) Signature {
	switch decl := decl.(type) {
	case *ast.FuncDecl:
		if decl.Recv != nil && len(decl.Recv.List) > 0 {
			return Signature{Kind: Method, Owner: typeName(decl.Recv.List[0].Type), Name: decl.Name.Name}
		}
		if owner := constructed(decl.Type); owner != "" {
			return Signature{Kind: Constructor, Owner: owner, Name: decl.Name.Name}
		}
		return Signature{Kind: Func, Name: decl.Name.Name}
	case *ast.GenDecl:
		if decl.Tok == token.TYPE && len(decl.Specs) == 1 && !decl.Lparen.IsValid() {
			return Signature{Kind: Type, Name: decl.Specs[0].(*ast.TypeSpec).Name.Name}
		}
		var name string
		if len(decl.Specs) > 0 {
			switch sp := decl.Specs[0].(type) {
			case *ast.TypeSpec:
				name = sp.Name.Name
			case *ast.ValueSpec:
				name = sp.Names[0].Name
			}
		}
		return Signature{Kind: Decl, Name: name}
	}
	return Signature{Kind: Decl}
}

// constructed returns T when the first result of a function is T or *T for
// a non-predeclared T.
func constructed(ft *ast.FuncType) string {
	if ft.Results == nil || len(ft.Results.List) == 0 {
		return ""
	}
	expr := ft.Results.List[0].Type
	if st, ok := expr.(*ast.StarExpr); ok {
		expr = st.X
	}
	switch x := expr.(type) {
	case *ast.IndexExpr:
		expr = x.X
	case *ast.IndexListExpr:
		expr = x.X
	}
	id, ok := expr.(*ast.Ident)
	if !ok || predeclaredTypes[id.Name] {
		return ""
	}
	return id.Name
}

var predeclaredTypes = map[string]bool{
	"any": true, "bool": true, "byte": true, "comparable": true, "complex64": true,
	"complex128": true, "error": true, "float32": true, "float64": true, "int": true,
	"int8": true, "int16": true, "int32": true, "int64": true, "rune": true,
	"string": true, "uint": true, "uint8": true, "uint16": true, "uint32": true,
	"uint64": true, "uintptr": true,
}

func fieldSignature(owner, kind string, fd *ast.Field) Signature {
	if len(fd.Names) > 0 {
		k := Field
		if kind == "interface" {
			k = Method
		}
		return Signature{Kind: k, Owner: owner, Name: fd.Names[0].Name}
	}
	return Signature{Kind: Field, Owner: owner, Name: typeName(fd.Type)}
}

// typeName returns the base name of a receiver or embedded type expression.
func typeName(expr ast.Expr) string {
	switch x := expr.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.StarExpr:
		return typeName(x.X)
	case *ast.IndexExpr:
		return typeName(x.X)
	case *ast.IndexListExpr:
		return typeName(x.X)
	case *ast.SelectorExpr:
		return x.Sel.Name
	case *ast.ParenExpr:
		return typeName(x.X)
	}
	return ""
}

// Filename returns the file name the document was parsed from.
func (d *Document) Filename() string { return d.filename }

// Package returns the package name.
func (d *Document) Package() string { return d.pkg }

// Types returns the single type declarations in file order.
func (d *Document) Types() []TypeInfo {
	var types []TypeInfo
	for _, n := range d.nodes {
		if n.sig.Kind != Type {
			continue
		}
		types = append(types, n.typeInfo())
	}
	return types
}

// Type returns the declaration of the named type.
func (d *Document) Type(name string) (TypeInfo, bool) {
	if n := d.node(Signature{Kind: Type, Name: name}); n != nil {
		return n.typeInfo(), true
	}
	return TypeInfo{}, false
}

func (n *segment) typeInfo() TypeInfo {
	ti := TypeInfo{Name: n.sig.Name, Kind: "other"}
	if n.body == nil {
		return ti
	}
	ti.Kind = n.body.kind
	for _, m := range n.body.members {
		if m.sig.Kind == Field && isEmbedded(m.text) {
			ti.Bases = append(ti.Bases, m.sig.Name)
		}
	}
	return ti
}

// isEmbedded reports whether a field line declares an embedded type.
func isEmbedded(text string) bool {
	f := strings.Fields(text)
	return len(f) == 1 || (len(f) > 1 && strings.HasPrefix(f[1], "`")) || (len(f) > 1 && strings.HasPrefix(f[1], "//"))
}

// Members returns the declarations owned by a type in file order: body
// members first, then constructors and methods.
func (d *Document) Members(owner string) []Member {
	var out []Member
	if n := d.node(Signature{Kind: Type, Name: owner}); n != nil && n.body != nil {
		for _, m := range n.body.members {
			out = append(out, m.member())
		}
	}
	for _, n := range d.nodes {
		if n.sig.Owner == owner {
			out = append(out, n.member())
		}
	}
	return out
}

// Member returns the declaration with the given signature.
func (d *Document) Member(sig Signature) (Member, bool) {
	if seg := d.find(sig); seg != nil {
		return seg.member(), true
	}
	return Member{}, false
}

// HasMembers reports whether the owner has a member accepted by keep. A nil
// keep accepts every member.
func (d *Document) HasMembers(owner string, keep func(Signature) bool) bool {
	for _, m := range d.Members(owner) {
		if keep == nil || keep(m.Sig) {
			return true
		}
	}
	return false
}

// Empty reports whether the document has no declarations after its imports.
func (d *Document) Empty() bool { return len(d.nodes) == 0 }

func (n *segment) member() Member {
	var sb strings.Builder
	n.writeText(&sb)
	return Member{Sig: n.sig, Doc: n.doc, Text: sb.String()}
}

func (d *Document) node(sig Signature) *segment {
	for _, n := range d.nodes {
		if n.sig == sig {
			return n
		}
	}
	return nil
}

// find locates a top-level node or a body member.
func (d *Document) find(sig Signature) *segment {
	if n := d.node(sig); n != nil {
		return n
	}
	if sig.Owner == "" {
		return nil
	}
	if n := d.node(Signature{Kind: Type, Name: sig.Owner}); n != nil && n.body != nil {
		for _, m := range n.body.members {
			if m.sig == sig {
				return m
			}
		}
	}
	return nil
}
