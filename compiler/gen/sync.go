package gen

import (
	"context"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/compiler/source"
	"github.com/syssam/zgen/schema"
)

// exportedMethod accepts the members a user can call: exported methods.
func exportedMethod(sig source.Signature) bool {
	return sig.Kind == source.Method && sig.Exported()
}

// memberSync merges the method of one procedure into the type of one file.
// It backs the repository and service synchronizers and their interfaces.
type memberSync struct {
	cfg    *Config
	eng    *engine
	pkg    func(Layout) Package
	file   func(names) string
	owner  func(names) string
	ctor   bool
	render func(*Config, *schema.Procedure) *jen.File
}

// Path returns the file the procedure's method is merged into.
func (s *memberSync) Path(p *schema.Procedure) string {
	return s.pkg(s.cfg.Layout(p.Schema)).File(s.file(namesOf(p.Table)))
}

func (s *memberSync) signatures(p *schema.Procedure) []source.Signature {
	owner := s.owner(namesOf(p.Table))
	sigs := []source.Signature{{Kind: source.Type, Name: owner}}
	if s.ctor {
		sigs = append(sigs, source.Signature{Kind: source.Constructor, Owner: owner, Name: "New" + owner})
	}
	return append(sigs, source.Signature{Kind: source.Method, Owner: owner, Name: methodName(p)})
}

// Generate inserts or replaces the method of p.
func (s *memberSync) Generate(ctx context.Context, p *schema.Procedure) (zgen.Result, error) {
	path := s.Path(p)
	r, err := extract(path, s.render(s.cfg, p))
	if err != nil {
		return zgen.Skipped, err
	}
	sigs := s.signatures(p)
	return s.eng.merge(ctx, path, s.pkg(s.cfg.Layout(p.Schema)).Name, func(d *source.Document) error {
		return r.MergeInto(d, sigs...)
	})
}

// Delete removes the method of p. A type left without exported methods is
// removed as well, and the file once nothing else is declared in it.
func (s *memberSync) Delete(ctx context.Context, p *schema.Procedure) (zgen.Result, error) {
	owner := s.owner(namesOf(p.Table))
	return s.eng.prune(ctx, s.Path(p), removeMethod(owner, methodName(p)), (*source.Document).Empty)
}

// removeMethod removes one method of owner, and owner itself when no
// exported method is left.
func removeMethod(owner, name string) func(*source.Document) (bool, error) {
	sig := source.Signature{Kind: source.Method, Owner: owner, Name: name}
	return func(d *source.Document) (bool, error) {
		if !d.Remove(sig) {
			return false, nil
		}
		if !d.HasMembers(owner, exportedMethod) {
			d.RemoveType(owner)
		}
		return true, nil
	}
}

// RepositorySync maintains the SQL repository of a table.
type RepositorySync struct{ memberSync }

// NewRepositorySync returns the repository synchronizer.
func NewRepositorySync(cfg *Config, eng *engine) *RepositorySync {
	return &RepositorySync{memberSync{
		cfg:    cfg,
		eng:    eng,
		pkg:    func(l Layout) Package { return l.Repository },
		file:   names.repositoryFile,
		owner:  func(n names) string { return n.SQLRepository },
		ctor:   true,
		render: renderRepository,
	}}
}

// Registration returns the binding of the repository to its interface.
func (s *RepositorySync) Registration(p *schema.Procedure) Registration {
	l := s.cfg.Layout(p.Schema)
	n := namesOf(p.Table)
	pkg := l.Repository.Name
	return Registration{
		Schema:  p.Schema,
		Types:   []string{pkg + "." + n.Repository, pkg + "." + n.SQLRepository},
		Ctor:    pkg + "." + n.constructor(n.SQLRepository),
		Imports: []string{l.Repository.Path},
	}
}

// RepositoryInterfaceSync maintains the repository interface of a table.
type RepositoryInterfaceSync struct{ memberSync }

// NewRepositoryInterfaceSync returns the repository interface synchronizer.
func NewRepositoryInterfaceSync(cfg *Config, eng *engine) *RepositoryInterfaceSync {
	return &RepositoryInterfaceSync{memberSync{
		cfg:    cfg,
		eng:    eng,
		pkg:    func(l Layout) Package { return l.Repository },
		file:   names.repositoryInterfaceFile,
		owner:  func(n names) string { return n.Repository },
		render: renderRepositoryInterface,
	}}
}

// ServiceSync maintains the default service of a table.
type ServiceSync struct{ memberSync }

// NewServiceSync returns the service synchronizer.
func NewServiceSync(cfg *Config, eng *engine) *ServiceSync {
	return &ServiceSync{memberSync{
		cfg:    cfg,
		eng:    eng,
		pkg:    func(l Layout) Package { return l.Service },
		file:   names.serviceFile,
		owner:  func(n names) string { return n.DefaultService },
		ctor:   true,
		render: renderService,
	}}
}

// Registration returns the binding of the service to its interface.
func (s *ServiceSync) Registration(p *schema.Procedure) Registration {
	l := s.cfg.Layout(p.Schema)
	n := namesOf(p.Table)
	pkg := l.Service.Name
	return Registration{
		Schema:  p.Schema,
		Types:   []string{pkg + "." + n.Service, pkg + "." + n.DefaultService},
		Ctor:    pkg + "." + n.constructor(n.DefaultService),
		Imports: []string{l.Service.Path},
	}
}

// ServiceInterfaceSync maintains the service interface of a table.
type ServiceInterfaceSync struct{ memberSync }

// NewServiceInterfaceSync returns the service interface synchronizer.
func NewServiceInterfaceSync(cfg *Config, eng *engine) *ServiceInterfaceSync {
	return &ServiceInterfaceSync{memberSync{
		cfg:    cfg,
		eng:    eng,
		pkg:    func(l Layout) Package { return l.Service },
		file:   names.serviceInterfaceFile,
		owner:  func(n names) string { return n.Service },
		render: renderServiceInterface,
	}}
}

// ForeignServiceSync maintains the foreign-key service of a table. The
// type, its constructor and the helpers follow the table's current foreign
// keys and are rebuilt on every run; passthrough methods are merged one
// procedure at a time.
type ForeignServiceSync struct {
	cfg *Config
	eng *engine
}

// NewForeignServiceSync returns the foreign-key service synchronizer.
func NewForeignServiceSync(cfg *Config, eng *engine) *ForeignServiceSync {
	return &ForeignServiceSync{cfg: cfg, eng: eng}
}

// Path returns the service file of the procedure's table.
func (s *ForeignServiceSync) Path(p *schema.Procedure) string {
	return s.cfg.Layout(p.Schema).Service.File(namesOf(p.Table).foreignServiceFile())
}

// applies reports whether p gets a foreign-key passthrough: only queries
// returning rows of their own table do.
func (s *ForeignServiceSync) applies(p *schema.Procedure) bool {
	return newProcMethod(s.cfg, p).returnsEntity()
}

// Generate rebuilds the service for t with the passthrough of p. Tables
// without foreign keys and procedures that write are skipped.
func (s *ForeignServiceSync) Generate(ctx context.Context, p *schema.Procedure, t *schema.Table) (zgen.Result, error) {
	if t == nil || !t.HasForeignKeys() || !s.applies(p) {
		return zgen.Skipped, nil
	}
	path := s.Path(p)
	r, err := extract(path, renderForeignService(s.cfg, t, p))
	if err != nil {
		return zgen.Skipped, err
	}
	owner := namesOf(t.Name).ForeignService
	return s.eng.merge(ctx, path, s.cfg.Layout(p.Schema).Service.Name, func(d *source.Document) error {
		helpers := make(map[string]bool)
		for _, m := range r.Members(owner) {
			if m.Sig.Kind == source.Method && !m.Sig.Exported() {
				helpers[m.Sig.Name] = true
			}
		}
		for _, m := range d.Members(owner) {
			if m.Sig.Kind == source.Method && !m.Sig.Exported() && !helpers[m.Sig.Name] {
				d.Remove(m.Sig)
			}
		}
		typ, err := r.Member(source.Signature{Kind: source.Type, Name: owner})
		if err != nil {
			return err
		}
		if err := d.Upsert(typ); err != nil {
			return err
		}
		for _, m := range r.Members(owner) {
			if m.Sig.Kind == source.Field {
				continue
			}
			if err := d.Upsert(m); err != nil {
				return err
			}
		}
		for _, im := range r.Imports() {
			d.AddImport(im.Name, im.Path)
		}
		return nil
	})
}

// Delete removes the passthrough of p. The service goes with its last
// passthrough.
func (s *ForeignServiceSync) Delete(ctx context.Context, p *schema.Procedure) (zgen.Result, error) {
	if p.Kind.Mutates() {
		return zgen.Skipped, nil
	}
	owner := namesOf(p.Table).ForeignService
	return s.eng.prune(ctx, s.Path(p), removeMethod(owner, methodName(p)), (*source.Document).Empty)
}

// Registration returns the provider of the foreign-key service.
func (s *ForeignServiceSync) Registration(p *schema.Procedure) Registration {
	l := s.cfg.Layout(p.Schema)
	n := namesOf(p.Table)
	pkg := l.Service.Name
	return Registration{
		Schema:  p.Schema,
		Types:   []string{pkg + "." + n.ForeignService},
		Ctor:    pkg + "." + n.constructor(n.ForeignService),
		Imports: []string{l.Service.Path},
	}
}

// ModelSync maintains the model struct of a table.
type ModelSync struct {
	cfg *Config
	eng *engine
}

// NewModelSync returns the model synchronizer.
func NewModelSync(cfg *Config, eng *engine) *ModelSync {
	return &ModelSync{cfg: cfg, eng: eng}
}

// Path returns the model file of t.
func (s *ModelSync) Path(t *schema.Table) string {
	return s.cfg.Layout(t.Schema).Model.File(namesOf(t.Name).modelFile())
}

// generatedField reports whether a struct field carries the db tag the
// generator writes.
func generatedField(m source.Member) bool {
	return m.Sig.Kind == source.Field && strings.Contains(m.Text, `db:"`)
}

// Generate merges the column fields and the Fields method. Generated
// fields of dropped columns are removed; other fields are kept.
func (s *ModelSync) Generate(ctx context.Context, t *schema.Table) (zgen.Result, error) {
	path := s.Path(t)
	r, err := extract(path, renderModel(s.cfg, t))
	if err != nil {
		return zgen.Skipped, err
	}
	owner := namesOf(t.Name).Entity
	return s.eng.merge(ctx, path, s.cfg.Layout(t.Schema).Model.Name, func(d *source.Document) error {
		want := make(map[source.Signature]bool)
		for _, m := range r.Members(owner) {
			want[m.Sig] = true
		}
		for _, m := range d.Members(owner) {
			if generatedField(m) && !want[m.Sig] {
				d.Remove(m.Sig)
			}
		}
		sigs := []source.Signature{{Kind: source.Type, Name: owner}}
		for _, m := range r.Members(owner) {
			sigs = append(sigs, m.Sig)
		}
		return r.MergeInto(d, sigs...)
	})
}

// Delete removes the model type with its methods, and the file when
// nothing else is declared in it.
func (s *ModelSync) Delete(ctx context.Context, t *schema.Table) (zgen.Result, error) {
	owner := namesOf(t.Name).Entity
	return s.eng.prune(ctx, s.Path(t),
		func(d *source.Document) (bool, error) { return d.RemoveType(owner), nil },
		(*source.Document).Empty,
	)
}
