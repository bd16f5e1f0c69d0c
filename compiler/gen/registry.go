package gen

import (
	"context"
	"go/ast"
	"go/parser"
	"go/types"
	"slices"
	"strings"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/compiler/source"
)

// Registration is one statement of a schema's registration list.
type Registration struct {
	Schema string
	// Types are the qualified type arguments: interface and implementation
	// for a binding, the concrete type alone for a provider.
	Types   []string
	Ctor    string
	Imports []string
}

// Statement returns the Go statement that registers r.
func (r Registration) Statement() string {
	fn := "Bind"
	if len(r.Types) == 1 {
		fn = "Provide"
	}
	return "container." + fn + "[" + strings.Join(r.Types, ", ") + "](c, " + r.Ctor + ")"
}

// typeArgs returns the type arguments of a container call statement, or
// nil when stmt is not one.
func typeArgs(stmt string) []string {
	expr, err := parser.ParseExpr(stmt)
	if err != nil {
		return nil
	}
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return nil
	}
	var idx []ast.Expr
	switch fn := call.Fun.(type) {
	case *ast.IndexExpr:
		idx = []ast.Expr{fn.Index}
	case *ast.IndexListExpr:
		idx = fn.Indices
	default:
		return nil
	}
	args := make([]string, len(idx))
	for i, e := range idx {
		args[i] = types.ExprString(e)
	}
	return args
}

// RegistrySync maintains the registration list of a schema. Statements are
// identified by their type arguments, so a list edited by hand keeps its
// order and its other statements.
type RegistrySync struct {
	cfg *Config
	eng *engine
}

// NewRegistrySync returns the registration list synchronizer.
func NewRegistrySync(cfg *Config, eng *engine) *RegistrySync {
	return &RegistrySync{cfg: cfg, eng: eng}
}

// Path returns the registration file of a schema.
func (s *RegistrySync) Path(schema string) string {
	return s.cfg.Layout(schema).Registry.File("registry.go")
}

func indexOf(stmts []string, r Registration) int {
	return slices.IndexFunc(stmts, func(st string) bool {
		return slices.Equal(typeArgs(st), r.Types)
	})
}

// Register adds the statement of r before the final return. A statement
// with the same type arguments is left untouched.
func (s *RegistrySync) Register(ctx context.Context, r Registration) (zgen.Result, error) {
	l := s.cfg.Layout(r.Schema)
	path := s.Path(r.Schema)
	return s.eng.merge(ctx, path, l.Registry.Name, func(d *source.Document) error {
		fb, ok := d.Func(registerFunc)
		if !ok {
			rendered, err := extract(path, renderRegistry(l))
			if err != nil {
				return err
			}
			if err := rendered.MergeInto(d, source.Signature{Kind: source.Func, Name: registerFunc}); err != nil {
				return err
			}
			fb, _ = d.Func(registerFunc)
		}
		stmts, err := fb.Statements()
		if err != nil {
			return zgen.NewMergeError(path, registerFunc, "", err.Error())
		}
		if indexOf(stmts, r) >= 0 {
			return nil
		}
		at := len(stmts)
		if at > 0 && strings.HasPrefix(stmts[at-1], "return") {
			at--
		}
		stmts = slices.Insert(stmts, at, r.Statement())
		if err := fb.SetStatements(stmts); err != nil {
			return zgen.NewMergeError(path, registerFunc, "", err.Error())
		}
		d.AddImport("", containerPkg)
		for _, im := range r.Imports {
			d.AddImport("", im)
		}
		return nil
	})
}

// Unregister removes the statement of r. Once only the return is left the
// Register function is dropped, and the file is deleted when it declares
// nothing else.
func (s *RegistrySync) Unregister(ctx context.Context, r Registration) (zgen.Result, error) {
	path := s.Path(r.Schema)
	return s.eng.prune(ctx, path,
		func(d *source.Document) (bool, error) {
			fb, ok := d.Func(registerFunc)
			if !ok {
				return false, nil
			}
			stmts, err := fb.Statements()
			if err != nil {
				return false, zgen.NewMergeError(path, registerFunc, "", err.Error())
			}
			i := indexOf(stmts, r)
			if i < 0 {
				return false, nil
			}
			stmts = slices.Delete(stmts, i, i+1)
			if len(stmts) == 0 || (len(stmts) == 1 && strings.HasPrefix(stmts[0], "return")) {
				fb.Remove()
				return true, nil
			}
			if err := fb.SetStatements(stmts); err != nil {
				return false, zgen.NewMergeError(path, registerFunc, "", err.Error())
			}
			return true, nil
		},
		(*source.Document).Empty,
	)
}
