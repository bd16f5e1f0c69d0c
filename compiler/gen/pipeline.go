package gen

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/compiler/cache"
	"github.com/syssam/zgen/compiler/console"
	"github.com/syssam/zgen/compiler/load"
	"github.com/syssam/zgen/compiler/lock"
	"github.com/syssam/zgen/compiler/watch"
	"github.com/syssam/zgen/schema"
)

// Pipeline routes source changes to the synchronizers of the artifacts
// they affect. Failures of one synchronizer are logged and returned; they
// never stop the others.
type Pipeline struct {
	cfg    *Config
	log    *slog.Logger
	eng    *engine
	tables *cache.Cache[*schema.Table]
	stats  zgen.Stats

	mu     sync.Mutex
	prints map[string]string // table path -> fingerprint

	model        *ModelSync
	scripts      *ScriptSync
	repo         *RepositorySync
	repoIface    *RepositoryInterfaceSync
	service      *ServiceSync
	serviceIface *ServiceInterfaceSync
	foreign      *ForeignServiceSync
	registry     *RegistrySync
	client       *ClientSync
}

// NewPipeline returns a pipeline for cfg. A nil logger discards output.
func NewPipeline(cfg *Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	eng := newEngine(lock.New(), cfg.LockTimeout)
	var opts []cache.Option
	if cfg.CacheTTL > 0 {
		opts = append(opts, cache.WithTTL(cfg.CacheTTL))
	}
	return &Pipeline{
		cfg:          cfg,
		log:          log,
		eng:          eng,
		tables:       cache.New(loadTable, opts...),
		prints:       make(map[string]string),
		model:        NewModelSync(cfg, eng),
		scripts:      NewScriptSync(cfg, eng, NewManifestSync(cfg, eng)),
		repo:         NewRepositorySync(cfg, eng),
		repoIface:    NewRepositoryInterfaceSync(cfg, eng),
		service:      NewServiceSync(cfg, eng),
		serviceIface: NewServiceInterfaceSync(cfg, eng),
		foreign:      NewForeignServiceSync(cfg, eng),
		registry:     NewRegistrySync(cfg, eng),
		client:       NewClientSync(cfg, eng),
	}
}

func loadTable(path string) (*schema.Table, error) {
	text, err := load.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := load.ParseTable(text)
	return t, withSource(err, path)
}

// withSource names the file a parse error came from.
func withSource(err error, path string) error {
	var pe *zgen.ParseError
	if errors.As(err, &pe) && pe.Source == "" {
		pe.Source = path
	}
	return err
}

// Stats returns the outcome counters of every run so far.
func (p *Pipeline) Stats() zgen.StatsSnapshot {
	return p.stats.Snapshot()
}

// run is one dispatch with its correlation id.
type run struct {
	p    *Pipeline
	log  *slog.Logger
	errs []error
	mu   sync.Mutex
}

func (p *Pipeline) begin() *run {
	return &run{p: p, log: p.log.With("run", uuid.NewString())}
}

// report records and logs the outcome of one synchronizer.
func (r *run) report(kind, entity, path string, res zgen.Result, err error) {
	r.p.stats.Record(res, err)
	args := []any{"kind", kind, "entity", entity, "path", path}
	switch {
	case err != nil:
		r.log.Error("synchronization failed", append(args, "error", err)...)
		r.fail(err)
	case res.Changed():
		console.Success(r.log, res.String(), args...)
	default:
		console.Skipped(r.log, res.String(), args...)
	}
}

func (r *run) fail(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *run) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return zgen.NewAggregateError(r.errs...)
}

// Dispatch routes a watcher event by the kind of source it names. Paths
// that are no schema source are ignored.
func (p *Pipeline) Dispatch(ctx context.Context, ev watch.Event) error {
	deleted := ev.Op == watch.Deleted
	switch p.cfg.Classify(ev.Path) {
	case TableSource:
		if deleted {
			return p.TableDeleted(ctx, ev.Path)
		}
		return p.TableChanged(ctx, ev.Path)
	case ProcedureSource:
		if deleted {
			return p.ProcedureDeleted(ctx, ev.Path)
		}
		return p.ProcedureChanged(ctx, ev.Path)
	case ModelSource:
		if deleted {
			return p.ModelDeleted(ctx, ev.Path)
		}
		return p.ModelChanged(ctx, ev.Path)
	default:
		p.log.Debug("ignored", "path", ev.Path, "op", ev.Op)
		return nil
	}
}

// TableChanged re-parses a table script and synchronizes its model and
// script set.
func (p *Pipeline) TableChanged(ctx context.Context, path string) error {
	r := p.begin()
	r.table(ctx, path)
	return r.err()
}

func (r *run) table(ctx context.Context, path string) {
	p := r.p
	t, err := p.tables.Refresh(path)
	if err != nil {
		r.report("table", "", path, zgen.Skipped, err)
		return
	}
	entity := t.QualifiedName()
	if fp, err := schema.Fingerprint(t); err == nil {
		p.mu.Lock()
		prev := p.prints[path]
		p.prints[path] = fp
		p.mu.Unlock()
		if prev == fp {
			r.log.Debug("definition unchanged", "entity", entity, "fingerprint", fp)
		}
	}
	res, err := p.model.Generate(ctx, t)
	r.report("model", entity, p.model.Path(t), res, err)
	res, err = p.scripts.Generate(ctx, t)
	r.report("scripts", entity, p.cfg.Layout(t.Schema).Procedures, res, err)
}

// TableDeleted removes the model and the script set of a deleted table.
func (p *Pipeline) TableDeleted(ctx context.Context, path string) error {
	r := p.begin()
	p.tables.Invalidate(path)
	p.mu.Lock()
	delete(p.prints, path)
	p.mu.Unlock()

	t := load.TableFromPath(path)
	entity := t.QualifiedName()
	res, err := p.model.Delete(ctx, t)
	r.report("model", entity, p.model.Path(t), res, err)
	res, err = p.scripts.Delete(ctx, t)
	r.report("scripts", entity, p.cfg.Layout(t.Schema).Procedures, res, err)
	return r.err()
}

// ProcedureChanged parses a procedure script and synchronizes the
// repository, the service, their interfaces and the foreign-key service.
// Implementations that are created are registered.
func (p *Pipeline) ProcedureChanged(ctx context.Context, path string) error {
	r := p.begin()
	r.procedure(ctx, path)
	return r.err()
}

func (r *run) procedure(ctx context.Context, path string) {
	p := r.p
	text, err := load.ReadFile(path)
	if err != nil {
		r.report("procedure", "", path, zgen.Skipped, err)
		return
	}
	proc, err := load.ParseProcedure(text, p.cfg.Prefix)
	if err != nil {
		r.report("procedure", "", path, zgen.Skipped, withSource(err, path))
		return
	}
	t, err := p.tables.Get(p.cfg.TablePath(proc.Schema, proc.Table))
	if err != nil {
		r.log.Debug("owning table unavailable", "entity", proc.QualifiedName(), "error", err)
		t = nil
	}
	entity := proc.QualifiedName()

	res, err := p.repo.Generate(ctx, proc)
	r.report("repository", entity, p.repo.Path(proc), res, err)
	r.register(ctx, entity, res, p.repo.Registration(proc))

	res, err = p.repoIface.Generate(ctx, proc)
	r.report("repository interface", entity, p.repoIface.Path(proc), res, err)

	res, err = p.service.Generate(ctx, proc)
	r.report("service", entity, p.service.Path(proc), res, err)
	r.register(ctx, entity, res, p.service.Registration(proc))

	res, err = p.serviceIface.Generate(ctx, proc)
	r.report("service interface", entity, p.serviceIface.Path(proc), res, err)

	res, err = p.foreign.Generate(ctx, proc, t)
	r.report("foreign service", entity, p.foreign.Path(proc), res, err)
	r.register(ctx, entity, res, p.foreign.Registration(proc))
}

// register adds a registration for an implementation that was just
// created.
func (r *run) register(ctx context.Context, entity string, res zgen.Result, reg Registration) {
	if res != zgen.Created {
		return
	}
	out, err := r.p.registry.Register(ctx, reg)
	r.report("registry", entity, r.p.registry.Path(reg.Schema), out, err)
}

// unregister drops the registration of an implementation that was just
// deleted.
func (r *run) unregister(ctx context.Context, entity string, res zgen.Result, reg Registration) {
	if res != zgen.Deleted {
		return
	}
	out, err := r.p.registry.Unregister(ctx, reg)
	r.report("registry", entity, r.p.registry.Path(reg.Schema), out, err)
}

// ProcedureDeleted removes the members generated for a deleted procedure.
func (p *Pipeline) ProcedureDeleted(ctx context.Context, path string) error {
	r := p.begin()
	proc, err := load.ProcedureFromPath(path, p.cfg.Prefix)
	if err != nil {
		r.report("procedure", "", path, zgen.Skipped, err)
		return r.err()
	}
	entity := proc.QualifiedName()

	res, err := p.repo.Delete(ctx, proc)
	r.report("repository", entity, p.repo.Path(proc), res, err)
	r.unregister(ctx, entity, res, p.repo.Registration(proc))

	res, err = p.repoIface.Delete(ctx, proc)
	r.report("repository interface", entity, p.repoIface.Path(proc), res, err)

	res, err = p.service.Delete(ctx, proc)
	r.report("service", entity, p.service.Path(proc), res, err)
	r.unregister(ctx, entity, res, p.service.Registration(proc))

	res, err = p.serviceIface.Delete(ctx, proc)
	r.report("service interface", entity, p.serviceIface.Path(proc), res, err)

	res, err = p.foreign.Delete(ctx, proc)
	r.report("foreign service", entity, p.foreign.Path(proc), res, err)
	r.unregister(ctx, entity, res, p.foreign.Registration(proc))
	return r.err()
}

// ModelChanged parses a client model and synchronizes its data module.
func (p *Pipeline) ModelChanged(ctx context.Context, path string) error {
	r := p.begin()
	text, err := load.ReadFile(path)
	if err != nil {
		r.report("client", "", path, zgen.Skipped, err)
		return r.err()
	}
	m, err := load.ParseModel(text)
	if err != nil {
		r.report("client", "", path, zgen.Skipped, withSource(err, path))
		return r.err()
	}
	res, err := p.client.Generate(ctx, m, path)
	r.report("client", m.Name, p.client.Path(m), res, err)
	return r.err()
}

// ModelDeleted removes the data module of a deleted client model.
func (p *Pipeline) ModelDeleted(ctx context.Context, path string) error {
	r := p.begin()
	m := load.ModelFromPath(path)
	res, err := p.client.Delete(ctx, m)
	r.report("client", m.Name, p.client.Path(m), res, err)
	return r.err()
}

// RegenerateAll synchronizes every table of a schema and then every
// procedure, so procedures see the scripts and tables of the first phase.
// Each phase runs on up to Workers goroutines.
func (p *Pipeline) RegenerateAll(ctx context.Context, schemaName string) error {
	r := p.begin()
	l := p.cfg.Layout(schemaName)
	r.log.Info("regenerating", "schema", schemaName)

	phases := []struct {
		dir string
		fn  func(context.Context, string)
	}{
		{l.Tables, r.table},
		{l.Procedures, r.procedure},
	}
	for _, ph := range phases {
		files, err := listSources(ph.dir)
		if err != nil {
			r.report("schema", schemaName, ph.dir, zgen.Skipped, err)
			continue
		}
		var g errgroup.Group
		g.SetLimit(p.cfg.WorkerCount())
		for _, f := range files {
			g.Go(func() error {
				ph.fn(ctx, f)
				return nil
			})
		}
		_ = g.Wait()
	}
	return r.err()
}
