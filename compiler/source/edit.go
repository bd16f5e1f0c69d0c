package source

import (
	"strings"

	"github.com/syssam/zgen"
)

// Upsert replaces the declaration with the member's signature in place, or
// inserts it when absent:
//
//   - types and funcs are appended at the end of the file,
//   - fields and interface methods are appended to the owner's body,
//   - struct methods and constructors follow the last declaration that
//     belongs to the owner.
//
// Inserting a member whose owner type is missing is a *zgen.MergeError.
func (d *Document) Upsert(m Member) error {
	if seg := d.find(m.Sig); seg != nil {
		seg.replace(m)
		return nil
	}
	switch m.Sig.Kind {
	case Type, Func, Decl:
		d.nodes = append(d.nodes, d.newNode(m))
		return nil
	}
	owner := d.node(Signature{Kind: Type, Name: m.Sig.Owner})
	if owner == nil {
		return zgen.NewMergeError(d.filename, m.Sig.Owner, m.Sig.Name, "owner type not declared")
	}
	if m.Sig.Kind == Field || (m.Sig.Kind == Method && owner.body != nil && owner.body.kind == "interface") {
		if owner.body == nil {
			return zgen.NewMergeError(d.filename, m.Sig.Owner, m.Sig.Name, "owner type has no member list")
		}
		owner.body.append(m)
		return nil
	}
	at := 0
	for i, n := range d.nodes {
		if n == owner || n.sig.Owner == m.Sig.Owner {
			at = i + 1
		}
	}
	n := d.newNode(m)
	d.nodes = append(d.nodes[:at], append([]*segment{n}, d.nodes[at:]...)...)
	return nil
}

// EnsureType inserts the type declaration when no type of that name exists.
// It reports whether the document changed.
func (d *Document) EnsureType(m Member) bool {
	if d.node(Signature{Kind: Type, Name: m.Sig.Name}) != nil {
		return false
	}
	m.Sig = Signature{Kind: Type, Name: m.Sig.Name}
	d.nodes = append(d.nodes, d.newNode(m))
	return true
}

// Remove drops the declaration with the given signature and reports whether
// it existed.
func (d *Document) Remove(sig Signature) bool {
	for i, n := range d.nodes {
		if n.sig == sig {
			d.nodes = append(d.nodes[:i], d.nodes[i+1:]...)
			return true
		}
	}
	if sig.Owner == "" {
		return false
	}
	if n := d.node(Signature{Kind: Type, Name: sig.Owner}); n != nil && n.body != nil {
		return n.body.remove(sig)
	}
	return false
}

// RemoveType drops a type together with its constructors and methods.
func (d *Document) RemoveType(name string) bool {
	removed := false
	nodes := d.nodes[:0]
	for _, n := range d.nodes {
		if (n.sig.Kind == Type && n.sig.Name == name) || n.sig.Owner == name {
			removed = true
			continue
		}
		nodes = append(nodes, n)
	}
	d.nodes = nodes
	return removed
}

// AddImport requests an import. It is only kept when the file uses it.
func (d *Document) AddImport(name, path string) {
	for _, im := range d.imports {
		if im.path == path && im.name == name {
			return
		}
	}
	d.imports = append(d.imports, importSpec{name: name, path: path})
}

func (d *Document) newNode(m Member) *segment {
	n := &segment{space: "\n\n", text: m.Text, sig: m.Sig}
	if m.Doc != "" {
		n.doc, n.gap = m.Doc, "\n"
	}
	if m.Sig.Kind == Type {
		n.body = bodyOf(m)
	}
	return n
}

// bodyOf segments the text of a new type declaration.
func bodyOf(m Member) *body {
	doc, err := Parse("", []byte("package p\n\n"+m.Text+"\n"))
	if err != nil || len(doc.nodes) != 1 {
		return nil
	}
	b := doc.nodes[0].body
	if b != nil {
		// Drop the newline that follows the declaration in the wrapper.
		b.close = strings.TrimSuffix(b.close, "\n")
	}
	return b
}

func (n *segment) replace(m Member) {
	n.text = m.Text
	if m.Sig.Kind == Type {
		n.body = bodyOf(m)
	}
	switch {
	case m.Doc == "":
		n.doc, n.gap = "", ""
	case n.doc == "":
		n.doc, n.gap = m.Doc, "\n"
		if n.indented() {
			n.gap = "\n\t"
		}
	default:
		n.doc = m.Doc
	}
}

// indented reports whether the segment sits inside a type body.
func (n *segment) indented() bool {
	return strings.ContainsAny(lastLine(n.space), "\t ")
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func (b *body) append(m Member) {
	seg := &segment{space: "\n\t", text: m.Text, sig: m.Sig}
	if m.Doc != "" {
		seg.doc = strings.ReplaceAll(m.Doc, "\n", "\n\t")
		seg.gap = "\n\t"
	}
	if !strings.Contains(strings.SplitN(b.close, "}", 2)[0], "\n") {
		b.close = "\n" + strings.TrimLeft(b.close, " \t")
	}
	b.members = append(b.members, seg)
}

func (b *body) remove(sig Signature) bool {
	for i, m := range b.members {
		if m.sig == sig {
			b.members = append(b.members[:i], b.members[i+1:]...)
			return true
		}
	}
	return false
}

// compose assembles the document text.
func (d *Document) compose() string {
	var sb strings.Builder
	sb.WriteString(d.header)
	for _, n := range d.nodes {
		n.write(&sb)
	}
	sb.WriteString(d.trailer)
	if !strings.HasSuffix(sb.String(), "\n") {
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (n *segment) write(sb *strings.Builder) {
	sb.WriteString(n.space)
	sb.WriteString(n.doc)
	sb.WriteString(n.gap)
	n.writeText(sb)
}

func (n *segment) writeText(sb *strings.Builder) {
	if n.body == nil {
		sb.WriteString(n.text)
		return
	}
	sb.WriteString(n.body.open)
	for _, m := range n.body.members {
		m.write(sb)
	}
	sb.WriteString(n.body.close)
}
