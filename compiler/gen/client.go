package gen

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/lithammer/dedent"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/compiler/naming"
	"github.com/syssam/zgen/schema"
)

const clientMarker = "// Code generated by zgen. DO NOT EDIT."

var clientTmpl = template.Must(template.New("client").Parse(strings.TrimLeft(dedent.Dedent(`
	{{.Marker}}
	// Source: {{.Source}}
	import { request } from './request';
	import type { {{.Model}} } from '{{.ModelImport}}';
	{{- range .Refs}}
	import { {{.Data}} } from './{{.File}}';
	{{- end}}

	const resource = '{{.Resource}}';

	export const {{.Data}} = {
	  getAll: () => request<{{.Model}}[]>('GET', resource),
	  getById: ({{.Key}}: {{.KeyType}}) => request<{{.Model}}>('GET', ` + "`${resource}/${encodeURIComponent({{.Key}})}`" + `),
	  create: (row: {{.Model}}) => request<{{.Model}}>('POST', resource, row),
	  update: (row: {{.Model}}) => request<{{.Model}}>('PUT', ` + "`${resource}/${encodeURIComponent(row.{{.Key}})}`" + `, row),
	  remove: ({{.Key}}: {{.KeyType}}) => request<void>('DELETE', ` + "`${resource}/${encodeURIComponent({{.Key}})}`" + `),
	{{- range .Refs}}
	  {{.Getter}}: (row: {{$.Model}}) => row.{{.Property}} == null ? Promise.resolve(undefined) : {{.Data}}.getById(row.{{.Property}}),
	{{- end}}
	};
`), "\n")))

// clientRef is a model referenced through a foreign-key property.
type clientRef struct {
	Property string
	Getter   string
	Data     string
	File     string
}

type clientData struct {
	Marker      string
	Source      string
	Model       string
	ModelImport string
	Data        string
	Resource    string
	Key         string
	KeyType     string
	Refs        []clientRef
}

// clientFile is the data module name of a model without extension.
func clientFile(model string) string {
	return strings.ReplaceAll(naming.Snake(model), "_", "-") + ".data"
}

func clientVar(model string) string {
	return naming.Camel(model) + "Data"
}

// ClientSync maintains the client data-access module of a model.
type ClientSync struct {
	cfg *Config
	eng *engine
}

// NewClientSync returns the client module synchronizer.
func NewClientSync(cfg *Config, eng *engine) *ClientSync {
	return &ClientSync{cfg: cfg, eng: eng}
}

// Path returns the module file of m.
func (s *ClientSync) Path(m *schema.Model) string {
	return filepath.Join(s.cfg.Path(s.cfg.Client.Output), clientFile(m.Name)+".ts")
}

// render renders the module of m declared in the file src.
func (s *ClientSync) render(m *schema.Model, src string) ([]byte, error) {
	out := filepath.Dir(s.Path(m))
	rel, err := filepath.Rel(out, src)
	if err != nil {
		return nil, fmt.Errorf("gen: client import %s: %w", src, err)
	}
	imp := strings.TrimSuffix(filepath.ToSlash(rel), ".ts")
	if !strings.HasPrefix(imp, ".") {
		imp = "./" + imp
	}
	key, ok := m.Property(m.PrimaryKey)
	if !ok {
		return nil, zgen.NewParseError(m.Name, "primary key property "+m.PrimaryKey, nil)
	}
	d := clientData{
		Marker:      clientMarker,
		Source:      path.Base(filepath.ToSlash(src)),
		Model:       m.Name,
		ModelImport: imp,
		Data:        clientVar(m.Name),
		Resource:    "/" + strings.ReplaceAll(naming.Snake(naming.Plural(m.Name)), "_", "-"),
		Key:         key.Name,
		KeyType:     strings.TrimSpace(strings.Split(key.Type, "|")[0]),
	}
	props := make([]string, 0, len(m.ForeignKeys))
	for p := range m.ForeignKeys {
		props = append(props, p)
	}
	slices.Sort(props)
	for _, p := range props {
		ref := m.ForeignKeys[p]
		if ref == m.Name {
			continue
		}
		d.Refs = append(d.Refs, clientRef{
			Property: p,
			Getter:   "get" + naming.Pascal(strings.TrimSuffix(strings.TrimSuffix(p, "Id"), "ID")),
			Data:     clientVar(ref),
			File:     clientFile(ref),
		})
	}
	var buf bytes.Buffer
	if err := clientTmpl.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("gen: render client %s: %w", m.Name, err)
	}
	return buf.Bytes(), nil
}

func clientOwned(b []byte) bool {
	return bytes.HasPrefix(b, []byte(clientMarker))
}

// Generate writes the module of m, whose declaration lives in src. A module
// without the generated marker is left alone.
func (s *ClientSync) Generate(ctx context.Context, m *schema.Model, src string) (zgen.Result, error) {
	text, err := s.render(m, src)
	if err != nil {
		return zgen.Skipped, err
	}
	return s.eng.update(ctx, s.Path(m), func(before []byte) ([]byte, error) {
		if before != nil && !clientOwned(before) {
			return before, nil
		}
		return text, nil
	})
}

// Delete removes the generated module of m.
func (s *ClientSync) Delete(ctx context.Context, m *schema.Model) (zgen.Result, error) {
	return s.eng.drop(ctx, s.Path(m), clientOwned)
}
