package gen

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/lithammer/dedent"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/schema"
)

// scriptColumn is a column as the script templates see it.
type scriptColumn struct {
	Name     string
	Type     string
	Nullable bool
}

// scriptData is the input of every script template.
type scriptData struct {
	Marker    string
	Schema    string
	Table     string
	Proc      string
	TableType string
	Key       scriptColumn
	Columns   []scriptColumn
	Insert    []scriptColumn
	Update    []scriptColumn
}

var scriptFuncs = template.FuncMap{
	"columns": func(cs []scriptColumn) string {
		names := make([]string, len(cs))
		for i, c := range cs {
			names[i] = "[" + c.Name + "]"
		}
		return strings.Join(names, ", ")
	},
	"params": func(cs []scriptColumn) string {
		names := make([]string, len(cs))
		for i, c := range cs {
			names[i] = "@" + c.Name
		}
		return strings.Join(names, ", ")
	},
	"assign": func(cs []scriptColumn) string {
		set := make([]string, len(cs))
		for i, c := range cs {
			set[i] = "[" + c.Name + "] = @" + c.Name
		}
		return strings.Join(set, ",\n        ")
	},
}

// declare renders a procedure parameter list, one parameter per line.
const declare = `
{{- define "declare"}}
{{- range $i, $c := .}}
    {{if $i}},{{else}} {{end}}@{{$c.Name}} {{$c.Type}}{{if $c.Nullable}} = NULL{{end}}
{{- end}}
{{- end}}`

func scriptTemplate(name, text string) *template.Template {
	t := template.Must(template.New(name).Funcs(scriptFuncs).Parse(strings.TrimLeft(dedent.Dedent(text), "\n")))
	return template.Must(t.Parse(declare))
}

var (
	insertTmpl = scriptTemplate("insert", `
		{{.Marker}}
		CREATE OR ALTER PROCEDURE [{{.Schema}}].[{{.Proc}}]
		{{- template "declare" .Insert}}
		AS
		BEGIN
		    INSERT INTO [{{.Schema}}].[{{.Table}}] ({{columns .Insert}})
		    VALUES ({{params .Insert}});
		END
	`)

	insertManyTmpl = scriptTemplate("insertMany", `
		{{.Marker}}
		CREATE OR ALTER PROCEDURE [{{.Schema}}].[{{.Proc}}]
		     @Rows [{{.Schema}}].[{{.TableType}}] READONLY
		AS
		BEGIN
		    INSERT INTO [{{.Schema}}].[{{.Table}}] ({{columns .Insert}})
		    SELECT {{columns .Insert}} FROM @Rows;
		END
	`)

	updateTmpl = scriptTemplate("update", `
		{{.Marker}}
		CREATE OR ALTER PROCEDURE [{{.Schema}}].[{{.Proc}}]
		     @{{.Key.Name}} {{.Key.Type}}
		{{- range .Update}}
		    ,@{{.Name}} {{.Type}}{{if .Nullable}} = NULL{{end}}
		{{- end}}
		AS
		BEGIN
		    UPDATE [{{.Schema}}].[{{.Table}}]
		    SET {{assign .Update}}
		    WHERE [{{.Key.Name}}] = @{{.Key.Name}};
		END
	`)

	deleteTmpl = scriptTemplate("delete", `
		{{.Marker}}
		CREATE OR ALTER PROCEDURE [{{.Schema}}].[{{.Proc}}]
		     @{{.Key.Name}} {{.Key.Type}}
		AS
		BEGIN
		    DELETE FROM [{{.Schema}}].[{{.Table}}]
		    WHERE [{{.Key.Name}}] = @{{.Key.Name}};
		END
	`)

	selectByTmpl = scriptTemplate("selectBy", `
		{{.Marker}}
		CREATE OR ALTER PROCEDURE [{{.Schema}}].[{{.Proc}}]
		     @{{.Key.Name}} {{.Key.Type}}
		AS
		BEGIN
		    SELECT {{columns .Columns}}
		    FROM [{{.Schema}}].[{{.Table}}]
		    WHERE [{{.Key.Name}}] = @{{.Key.Name}};
		END
	`)

	selectAllTmpl = scriptTemplate("selectAll", `
		{{.Marker}}
		CREATE OR ALTER PROCEDURE [{{.Schema}}].[{{.Proc}}]
		AS
		BEGIN
		    SELECT {{columns .Columns}}
		    FROM [{{.Schema}}].[{{.Table}}];
		END
	`)

	tableTypeTmpl = scriptTemplate("tableType", `
		{{.Marker}}
		CREATE TYPE [{{.Schema}}].[{{.TableType}}] AS TABLE
		(
		{{- range $i, $c := .Insert}}
		    {{if $i}},{{else}} {{end}}[{{$c.Name}}] {{$c.Type}}{{if $c.Nullable}} NULL{{else}} NOT NULL{{end}}
		{{- end}}
		);
	`)
)

// scriptMarker is the first line of every generated script of t. Files
// without it are never overwritten or deleted.
func scriptMarker(t *schema.Table) string {
	return "-- Code generated by zgen from " + t.QualifiedName() + ". DO NOT EDIT."
}

// ownedBy reports whether a script was generated for t.
func ownedBy(t *schema.Table) func([]byte) bool {
	marker := []byte(scriptMarker(t))
	return func(b []byte) bool {
		line, _, _ := bytes.Cut(b, []byte("\n"))
		return bytes.Equal(bytes.TrimRight(line, "\r"), marker)
	}
}

type scriptStep struct {
	action string
	tmpl   *template.Template
}

// script is one generated file of a script set.
type script struct {
	path string
	text []byte
}

func toScriptColumn(c *schema.Column) scriptColumn {
	return scriptColumn{Name: c.Name, Type: sqlType(c), Nullable: c.Nullable}
}

// renderScripts renders the procedure scripts and the table type of t.
func renderScripts(cfg *Config, t *schema.Table) ([]script, error) {
	key, err := t.PrimaryKeyColumn()
	if err != nil {
		return nil, zgen.NewParseError(t.QualifiedName(), "primary key column", err)
	}
	l := cfg.Layout(t.Schema)
	base := scriptData{
		Marker:    scriptMarker(t),
		Schema:    t.Schema,
		Table:     t.Name,
		TableType: tableTypeName(t),
		Key:       scriptColumn{Name: key.Name, Type: sqlType(key)},
	}
	for _, c := range t.Columns {
		sc := toScriptColumn(c)
		base.Columns = append(base.Columns, sc)
		if c.Identity {
			continue
		}
		base.Insert = append(base.Insert, sc)
		if !strings.EqualFold(c.Name, key.Name) {
			base.Update = append(base.Update, sc)
		}
	}

	var out []script
	add := func(dir, name string, tmpl *template.Template, data scriptData) error {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("gen: render %s: %w", name, err)
		}
		out = append(out, script{path: filepath.Join(dir, name+".sql"), text: buf.Bytes()})
		return nil
	}
	proc := func(action string, tmpl *template.Template, key *scriptColumn) error {
		d := base
		d.Proc = cfg.Prefix + "_" + t.Name + "_" + action
		if key != nil {
			d.Key = *key
		}
		return add(l.Procedures, d.Proc, tmpl, d)
	}

	var steps []scriptStep
	if len(base.Insert) > 0 {
		steps = append(steps, scriptStep{"Insert", insertTmpl}, scriptStep{"InsertMany", insertManyTmpl})
	}
	steps = append(steps, scriptStep{"GetById", selectByTmpl}, scriptStep{"GetAll", selectAllTmpl})
	// A table whose columns are all key or identity has nothing to update.
	if len(base.Update) > 0 {
		steps = append(steps, scriptStep{"Update", updateTmpl})
	}
	steps = append(steps, scriptStep{"Delete", deleteTmpl})
	for _, st := range steps {
		if err := proc(st.action, st.tmpl, nil); err != nil {
			return nil, err
		}
	}
	for _, fk := range t.ForeignKeys() {
		c, ok := t.Column(fk.Column())
		if !ok {
			continue
		}
		fkey := scriptColumn{Name: c.Name, Type: sqlType(c)}
		if err := proc("GetBy"+c.Name, selectByTmpl, &fkey); err != nil {
			return nil, err
		}
	}
	if len(base.Insert) > 0 {
		if err := add(l.Types, base.TableType, tableTypeTmpl, base); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ScriptSync maintains the stored procedure scripts and the table type of
// a table. Newly created scripts are appended to the project manifest.
type ScriptSync struct {
	cfg      *Config
	eng      *engine
	manifest *ManifestSync
}

// NewScriptSync returns the script set synchronizer.
func NewScriptSync(cfg *Config, eng *engine, manifest *ManifestSync) *ScriptSync {
	return &ScriptSync{cfg: cfg, eng: eng, manifest: manifest}
}

// owned returns the existing generated scripts of t.
func (s *ScriptSync) owned(t *schema.Table) ([]string, error) {
	l := s.cfg.Layout(t.Schema)
	matches, err := filepath.Glob(filepath.Join(l.Procedures, globEscape(s.cfg.Prefix+"_"+t.Name+"_")+"*.sql"))
	if err != nil {
		return nil, err
	}
	return append(matches, filepath.Join(l.Types, tableTypeName(t)+".sql")), nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`)
	return r.Replace(s)
}

// Generate writes every script of t. Scripts edited by hand are left alone
// and generated scripts the table no longer needs are deleted.
func (s *ScriptSync) Generate(ctx context.Context, t *schema.Table) (zgen.Result, error) {
	scripts, err := renderScripts(s.cfg, t)
	if err != nil {
		return zgen.Skipped, err
	}
	owned := ownedBy(t)
	var (
		results []zgen.Result
		created []string
		errs    []error
		want    = make(map[string]bool)
	)
	for _, sc := range scripts {
		want[sc.path] = true
		r, err := s.eng.update(ctx, sc.path, func(before []byte) ([]byte, error) {
			if before != nil && !owned(before) {
				return before, nil
			}
			return sc.text, nil
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if r == zgen.Created {
			created = append(created, sc.path)
		}
		results = append(results, r)
	}
	existing, err := s.owned(t)
	if err != nil {
		errs = append(errs, err)
	}
	for _, path := range existing {
		if want[path] {
			continue
		}
		r, err := s.eng.drop(ctx, path, owned)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, r)
	}
	if len(created) > 0 && s.manifest != nil {
		if _, err := s.manifest.Append(ctx, created...); err != nil {
			errs = append(errs, err)
		}
	}
	return zgen.Combine(results...), zgen.NewAggregateError(errs...)
}

// Delete removes every generated script of t. The manifest keeps its
// entries.
func (s *ScriptSync) Delete(ctx context.Context, t *schema.Table) (zgen.Result, error) {
	paths, err := s.owned(t)
	if err != nil {
		return zgen.Skipped, err
	}
	owned := ownedBy(t)
	var (
		results []zgen.Result
		errs    []error
	)
	for _, path := range paths {
		r, err := s.eng.drop(ctx, path, owned)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, r)
	}
	return zgen.Combine(results...), zgen.NewAggregateError(errs...)
}
