package source

import (
	"fmt"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/syssam/zgen"
)

// Import is an import requested by extracted members.
type Import struct {
	Name string
	Path string
}

// Rendered is a generated file split into mergeable parts.
type Rendered struct {
	doc     *Document
	imports []Import
}

// Extract parses a rendered file so that its declarations can be merged
// into another document.
func Extract(filename string, src []byte) (*Rendered, error) {
	d, err := Parse(filename, src)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.ImportsOnly)
	if err != nil {
		return nil, fmt.Errorf("source: parse %s: %w", filename, err)
	}
	r := &Rendered{doc: d}
	for _, spec := range f.Imports {
		p, _ := strconv.Unquote(spec.Path.Value)
		im := Import{Path: p}
		// Generators alias imports whose name they cannot infer; an alias
		// equal to the package name is dropped.
		if spec.Name != nil && spec.Name.Name != ImportName(p) {
			im.Name = spec.Name.Name
		}
		r.imports = append(r.imports, im)
	}
	return r, nil
}

// Member returns the rendered declaration with the given signature.
func (r *Rendered) Member(sig Signature) (Member, error) {
	m, ok := r.doc.Member(sig)
	if !ok {
		return Member{}, zgen.NewMergeError(r.doc.filename, sig.Owner, sig.Name, "rendered output lacks "+sig.String())
	}
	return m, nil
}

// Members returns every rendered declaration owned by owner.
func (r *Rendered) Members(owner string) []Member {
	return r.doc.Members(owner)
}

// Imports returns the imports of the rendered file.
func (r *Rendered) Imports() []Import { return r.imports }

// Document returns the rendered file as a document.
func (r *Rendered) Document() *Document { return r.doc }

// MergeInto upserts the members with the given signatures into d and
// requests the rendered imports. Type signatures are only inserted when d
// lacks the type.
func (r *Rendered) MergeInto(d *Document, sigs ...Signature) error {
	for _, sig := range sigs {
		m, err := r.Member(sig)
		if err != nil {
			return err
		}
		if sig.Kind == Type {
			d.EnsureType(m)
			continue
		}
		if err := d.Upsert(m); err != nil {
			return err
		}
	}
	for _, im := range r.imports {
		d.AddImport(im.Name, im.Path)
	}
	return nil
}
