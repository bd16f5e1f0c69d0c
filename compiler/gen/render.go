package gen

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/zgen/compiler/naming"
	"github.com/syssam/zgen/compiler/source"
	"github.com/syssam/zgen/schema"
)

// goFile starts a Jennifer file for a generated package.
func goFile(pkg Package) *jen.File {
	f := jen.NewFilePathName(pkg.Path, pkg.Name)
	f.ImportNames(importNames)
	return f
}

// extract renders f and splits the result into mergeable declarations.
func extract(filename string, f *jen.File) (*source.Rendered, error) {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("gen: render %s: %w", filepath.Base(filename), err)
	}
	return source.Extract(filename, buf.Bytes())
}

// procMethod is the Go method generated for a stored procedure.
type procMethod struct {
	proc    *schema.Procedure
	Name    string
	Params  []jen.Code
	Args    []jen.Code // parameter names, ctx first
	Results []jen.Code
	model   string // model package path
}

func newProcMethod(cfg *Config, p *schema.Procedure) *procMethod {
	l := cfg.Layout(p.Schema)
	m := &procMethod{
		proc:   p,
		Name:   methodName(p),
		Params: []jen.Code{jen.Id("ctx").Qual("context", "Context")},
		Args:   []jen.Code{jen.Id("ctx")},
		model:  l.Model.Path,
	}
	for _, c := range p.Params {
		name := paramName(c)
		m.Params = append(m.Params, jen.Id(name).Add(paramType(c, m.model)))
		m.Args = append(m.Args, jen.Id(name))
	}
	m.Results = []jen.Code{m.result(), jen.Error()}
	return m
}

// scalar reports whether the procedure returns a single value.
func (m *procMethod) scalar() bool {
	return !m.proc.Kind.Mutates() && m.proc.ReturnType != "" && IsScalar(m.proc.ReturnType)
}

// rowModel returns the model the procedure returns rows of.
func (m *procMethod) rowModel() string {
	if m.proc.ReturnType != "" {
		return naming.Pascal(unqualified(m.proc.ReturnType))
	}
	return namesOf(m.proc.Table).Entity
}

// returnsEntity reports whether the procedure returns rows of its own table.
func (m *procMethod) returnsEntity() bool {
	return !m.proc.Kind.Mutates() && !m.scalar() && m.rowModel() == namesOf(m.proc.Table).Entity
}

func (m *procMethod) result() jen.Code {
	switch {
	case m.proc.Kind.Mutates():
		return jen.Int64()
	case m.scalar():
		return baseType(KindOf(m.proc.ReturnType))
	default:
		return jen.Index().Op("*").Qual(m.model, m.rowModel())
	}
}

// call returns the dbx call that runs the procedure on db.
func (m *procMethod) call(db jen.Code) jen.Code {
	args := []jen.Code{jen.Id("ctx"), db, jen.Lit(m.proc.Schema + "." + m.proc.Name)}
	for _, c := range m.proc.Params {
		arg := jen.Id(paramName(c))
		if c.ReadOnly && tableTypeModel(c.Type) != "" {
			arg = jen.Qual(dbxPkg, "TableValue").Call(jen.Lit(c.Type), arg)
		}
		args = append(args, arg)
	}
	switch {
	case m.proc.Kind.Mutates():
		return jen.Qual(dbxPkg, "Exec").Call(args...)
	case m.scalar():
		return jen.Qual(dbxPkg, "Scalar").Types(baseType(KindOf(m.proc.ReturnType))).Call(args...)
	default:
		return jen.Qual(dbxPkg, "Query").Types(jen.Qual(m.model, m.rowModel())).Call(args...)
	}
}

// doc is the comment of every declaration of the method.
func (m *procMethod) doc() string {
	return fmt.Sprintf("%s calls %s.", m.Name, m.proc.QualifiedName())
}

func unqualified(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}

// renderModel renders the model struct of a table with its Fields method.
func renderModel(cfg *Config, t *schema.Table) *jen.File {
	n := namesOf(t.Name)
	l := cfg.Layout(t.Schema)
	f := goFile(l.Model)

	var fields []jen.Code
	for _, c := range t.Columns {
		fields = append(fields, jen.Id(fieldName(c.Name)).Add(columnType(c)).Tag(map[string]string{
			"db":   c.Name,
			"json": jsonName(c.Name),
		}))
	}
	for _, fk := range t.ForeignKeys() {
		nav := navigationName(fk)
		ref := refLayout(cfg, t, fk)
		fields = append(fields,
			jen.Commentf("%s holds the %s row referenced by %s.", nav, fk.RefTable, fk.Column()),
			jen.Id(nav).Op("*").Qual(ref.Model.Path, namesOf(fk.RefTable).Entity).Tag(map[string]string{
				"db":   "-",
				"json": jsonName(nav) + ",omitempty",
			}),
		)
	}
	f.Commentf("%s is a row of %s.", n.Entity, t.QualifiedName())
	f.Type().Id(n.Entity).Struct(fields...)

	f.Comment("Fields returns the addresses of the column fields in column order.")
	f.Func().Params(jen.Id("m").Op("*").Id(n.Entity)).Id("Fields").Params().Index().Any().Block(
		jen.Return(jen.Index().Any().ValuesFunc(func(g *jen.Group) {
			for _, c := range t.Columns {
				g.Op("&").Id("m").Dot(fieldName(c.Name))
			}
		})),
	)
	return f
}

// refLayout returns the layout of the schema a foreign key references.
func refLayout(cfg *Config, t *schema.Table, fk *schema.Constraint) Layout {
	if fk.RefSchema != "" {
		return cfg.Layout(fk.RefSchema)
	}
	return cfg.Layout(t.Schema)
}

// renderRepository renders the SQL repository with the method of p.
func renderRepository(cfg *Config, p *schema.Procedure) *jen.File {
	n := namesOf(p.Table)
	m := newProcMethod(cfg, p)
	f := goFile(cfg.Layout(p.Schema).Repository)
	ctor := n.constructor(n.SQLRepository)

	f.Commentf("%s runs the stored procedures of [%s].[%s].", n.SQLRepository, p.Schema, p.Table)
	f.Type().Id(n.SQLRepository).Struct(
		jen.Id("db").Qual(dbxPkg, "ExecQuerier"),
	)
	f.Commentf("%s returns a %s that calls procedures through db.", ctor, n.SQLRepository)
	f.Func().Id(ctor).Params(jen.Id("db").Qual(dbxPkg, "ExecQuerier")).Op("*").Id(n.SQLRepository).Block(
		jen.Return(jen.Op("&").Id(n.SQLRepository).Values(jen.Dict{jen.Id("db"): jen.Id("db")})),
	)
	f.Comment(m.doc())
	f.Func().Params(jen.Id("r").Op("*").Id(n.SQLRepository)).Id(m.Name).Params(m.Params...).Params(m.Results...).Block(
		jen.Return(m.call(jen.Id("r").Dot("db"))),
	)
	return f
}

// renderInterface renders an interface holding the method of p.
func renderInterface(cfg *Config, pkg Package, name, doc string, p *schema.Procedure) *jen.File {
	m := newProcMethod(cfg, p)
	f := goFile(pkg)
	f.Comment(doc)
	f.Type().Id(name).Interface(
		jen.Comment(m.doc()),
		jen.Id(m.Name).Params(m.Params...).Params(m.Results...),
	)
	return f
}

func renderRepositoryInterface(cfg *Config, p *schema.Procedure) *jen.File {
	n := namesOf(p.Table)
	doc := fmt.Sprintf("%s is the data access of [%s].[%s].", n.Repository, p.Schema, p.Table)
	return renderInterface(cfg, cfg.Layout(p.Schema).Repository, n.Repository, doc, p)
}

func renderServiceInterface(cfg *Config, p *schema.Procedure) *jen.File {
	n := namesOf(p.Table)
	doc := fmt.Sprintf("%s exposes the operations on %s rows.", n.Service, n.Entity)
	return renderInterface(cfg, cfg.Layout(p.Schema).Service, n.Service, doc, p)
}

// renderService renders the default service that passes calls through to
// the repository.
func renderService(cfg *Config, p *schema.Procedure) *jen.File {
	n := namesOf(p.Table)
	l := cfg.Layout(p.Schema)
	m := newProcMethod(cfg, p)
	f := goFile(l.Service)
	ctor := n.constructor(n.DefaultService)

	f.Commentf("%s implements %s on top of a %s.", n.DefaultService, n.Service, n.Repository)
	f.Type().Id(n.DefaultService).Struct(
		jen.Id("repo").Qual(l.Repository.Path, n.Repository),
	)
	f.Commentf("%s returns a %s backed by repo.", ctor, n.DefaultService)
	f.Func().Id(ctor).Params(jen.Id("repo").Qual(l.Repository.Path, n.Repository)).Op("*").Id(n.DefaultService).Block(
		jen.Return(jen.Op("&").Id(n.DefaultService).Values(jen.Dict{jen.Id("repo"): jen.Id("repo")})),
	)
	f.Comment(m.doc())
	f.Func().Params(jen.Id("s").Op("*").Id(n.DefaultService)).Id(m.Name).Params(m.Params...).Params(m.Results...).Block(
		jen.Return(jen.Id("s").Dot("repo").Dot(m.Name).Call(m.Args...)),
	)
	return f
}

// foreignDep is a repository the foreign-key service depends on.
type foreignDep struct {
	field  string
	entity string
	pkg    string // repository package path
}

// foreignDeps returns the owning repository followed by one repository
// per distinct referenced table.
func foreignDeps(cfg *Config, t *schema.Table) []foreignDep {
	n := namesOf(t.Name)
	deps := []foreignDep{{
		field:  naming.Camel(naming.Plural(n.Entity)),
		entity: n.Entity,
		pkg:    cfg.Layout(t.Schema).Repository.Path,
	}}
	for _, fk := range t.ForeignKeys() {
		d := foreignDep{
			field:  naming.Camel(naming.Plural(namesOf(fk.RefTable).Entity)),
			entity: namesOf(fk.RefTable).Entity,
			pkg:    refLayout(cfg, t, fk).Repository.Path,
		}
		dup := false
		for _, have := range deps {
			if have.entity == d.entity && have.pkg == d.pkg {
				dup = true
				break
			}
		}
		if !dup {
			deps = append(deps, d)
		}
	}
	return deps
}

func (d foreignDep) ref(deps []foreignDep) string {
	for _, have := range deps {
		if have.entity == d.entity && have.pkg == d.pkg {
			return have.field
		}
	}
	return d.field
}

// helperName is the method that attaches the rows of one foreign key.
func helperName(fk *schema.Constraint) string {
	return "append" + navigationName(fk)
}

// renderForeignService renders the complete foreign-key service of t. The
// passthrough method of p is included when p is not nil.
func renderForeignService(cfg *Config, t *schema.Table, p *schema.Procedure) *jen.File {
	n := namesOf(t.Name)
	l := cfg.Layout(t.Schema)
	f := goFile(l.Service)
	deps := foreignDeps(cfg, t)
	ctor := n.constructor(n.ForeignService)
	rows := jen.Index().Op("*").Qual(l.Model.Path, n.Entity)
	recv := jen.Id("s").Op("*").Id(n.ForeignService)

	f.Commentf("%s loads %s rows together with the rows their foreign keys reference.", n.ForeignService, n.Entity)
	f.Type().Id(n.ForeignService).StructFunc(func(g *jen.Group) {
		for _, d := range deps {
			g.Id(d.field).Qual(d.pkg, d.entity+"Repository")
		}
	})

	f.Commentf("%s returns a %s.", ctor, n.ForeignService)
	f.Func().Id(ctor).ParamsFunc(func(g *jen.Group) {
		for _, d := range deps {
			g.Id(d.field).Qual(d.pkg, d.entity+"Repository")
		}
	}).Op("*").Id(n.ForeignService).Block(
		jen.Return(jen.Op("&").Id(n.ForeignService).Values(jen.DictFunc(func(d jen.Dict) {
			for _, dep := range deps {
				d[jen.Id(dep.field)] = jen.Id(dep.field)
			}
		}))),
	)

	fks := t.ForeignKeys()
	f.Comment("resolve attaches the referenced rows to rows.")
	f.Func().Params(recv).Id("resolve").Params(jen.Id("ctx").Qual("context", "Context"), jen.Id("rows").Add(rows)).Error().BlockFunc(func(g *jen.Group) {
		for _, fk := range fks {
			g.If(jen.Err().Op(":=").Id("s").Dot(helperName(fk)).Call(jen.Id("ctx"), jen.Id("rows")), jen.Err().Op("!=").Nil()).Block(
				jen.Return(jen.Err()),
			)
		}
		g.Return(jen.Nil())
	})

	for _, fk := range fks {
		ref := refLayout(cfg, t, fk)
		dep := foreignDep{entity: namesOf(fk.RefTable).Entity, pkg: ref.Repository.Path}
		col := fieldName(fk.Column())
		key := jen.Id("row").Dot(col)
		var skip jen.Code = jen.Null()
		if c, ok := t.Column(fk.Column()); ok && c.Nullable {
			skip = jen.If(jen.Id("row").Dot(col).Op("==").Nil()).Block(jen.Continue())
			key = jen.Op("*").Id("row").Dot(col)
		}
		f.Commentf("%s attaches the %s row referenced by %s.", helperName(fk), fk.RefTable, fk.Column())
		f.Func().Params(recv).Id(helperName(fk)).Params(jen.Id("ctx").Qual("context", "Context"), jen.Id("rows").Add(rows)).Error().Block(
			jen.Id("refs").Op(":=").Qual(dbxPkg, "NewLoader").Call(jen.Id("s").Dot(dep.ref(deps)).Dot("GetByID")),
			jen.For(jen.List(jen.Id("_"), jen.Id("row")).Op(":=").Range().Id("rows")).Block(
				skip,
				jen.List(jen.Id("ref"), jen.Err()).Op(":=").Id("refs").Dot("First").Call(jen.Id("ctx"), key),
				jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Err())),
				jen.Id("row").Dot(navigationName(fk)).Op("=").Id("ref"),
			),
			jen.Return(jen.Nil()),
		)
	}

	if p != nil {
		m := newProcMethod(cfg, p)
		f.Commentf("%s calls %s and resolves foreign keys.", m.Name, p.QualifiedName())
		f.Func().Params(recv).Id(m.Name).Params(m.Params...).Params(m.Results...).Block(
			jen.List(jen.Id("rows"), jen.Err()).Op(":=").Id("s").Dot(deps[0].field).Dot(m.Name).Call(m.Args...),
			jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
			jen.If(jen.Err().Op(":=").Id("s").Dot("resolve").Call(jen.Id("ctx"), jen.Id("rows")), jen.Err().Op("!=").Nil()).Block(
				jen.Return(jen.Nil(), jen.Err()),
			),
			jen.Return(jen.Id("rows"), jen.Nil()),
		)
	}
	return f
}

// renderRegistry renders an empty registration list.
func renderRegistry(l Layout) *jen.File {
	f := goFile(l.Registry)
	f.Commentf("Register binds the generated repositories and services of schema %s.", l.Schema)
	f.Func().Id(registerFunc).Params(jen.Id("c").Op("*").Qual(containerPkg, "Container")).Error().Block(
		jen.Return(jen.Id("c").Dot("Err").Call()),
	)
	return f
}

const registerFunc = "Register"
