package source

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/zgen"
)

const repoSource = `package repository

import (
	"context"

	"example.com/shop/internal/dbo/model"
)

// Hand-written note kept across merges.

// SQLCustomerRepository reads customers.
type SQLCustomerRepository struct {
	db any
}

// A returns a.
func (r *SQLCustomerRepository) A(ctx context.Context) ([]*model.Customer, error) {
	return nil, nil
}

func (r *SQLCustomerRepository) B() int { return 1 }

// helper is hand-written.
func helper() {}
`

func methodSig(owner, name string) Signature {
	return Signature{Kind: Method, Owner: owner, Name: name}
}

func methodNames(d *Document, owner string) []string {
	var names []string
	for _, m := range d.Members(owner) {
		if m.Sig.Kind == Method {
			names = append(names, m.Sig.Name)
		}
	}
	return names
}

func reparse(t *testing.T, d *Document) (*Document, []byte) {
	t.Helper()
	out, err := d.Bytes()
	require.NoError(t, err)
	nd, err := Parse(d.Filename(), out)
	require.NoError(t, err)
	return nd, out
}

func TestParseRoundTrip(t *testing.T) {
	d, err := Parse("customer_repository_sql.go", []byte(repoSource))
	require.NoError(t, err)
	out, err := d.Bytes()
	require.NoError(t, err)
	assert.Equal(t, repoSource, string(out))
}

func TestParseSignatures(t *testing.T) {
	d, err := Parse("x.go", []byte(`package x

type (
	A int
	B int
)

var defaultTimeout = 5

type Repo[T any] struct {
	Base
	items []T
}

func NewRepo[T any]() *Repo[T] { return nil }

func (r *Repo[T]) Len() int { return len(r.items) }

func helper() error { return nil }
`))
	require.NoError(t, err)
	assert.Equal(t, "x", d.Package())

	ti, ok := d.Type("Repo")
	require.True(t, ok)
	assert.Equal(t, "struct", ti.Kind)
	assert.Equal(t, []string{"Base"}, ti.Bases)

	var sigs []string
	for _, m := range d.Members("Repo") {
		sigs = append(sigs, m.Sig.String())
	}
	assert.Equal(t, []string{
		"field:Repo.Base",
		"field:Repo.items",
		"constructor:Repo.NewRepo",
		"method:Repo.Len",
	}, sigs)

	_, ok = d.Member(Signature{Kind: Func, Name: "helper"})
	assert.True(t, ok)
	_, ok = d.Type("A")
	assert.False(t, ok, "grouped declarations are opaque")
	assert.Len(t, d.Types(), 1)
}

func TestUpsertPreservesUnrelatedMembers(t *testing.T) {
	d, err := Parse("customer_repository_sql.go", []byte(repoSource))
	require.NoError(t, err)
	before := d.Members("SQLCustomerRepository")

	require.NoError(t, d.Upsert(Member{
		Sig:  methodSig("SQLCustomerRepository", "C"),
		Doc:  "// C counts.",
		Text: "func (r *SQLCustomerRepository) C() int { return 3 }",
	}))
	d, out := reparse(t, d)
	assert.Equal(t, []string{"A", "B", "C"}, methodNames(d, "SQLCustomerRepository"))
	assert.Contains(t, string(out), `func (r *SQLCustomerRepository) B() int { return 1 }

// C counts.
func (r *SQLCustomerRepository) C() int { return 3 }

// helper is hand-written.
func helper() {}
`)
	assert.Contains(t, string(out), "// Hand-written note kept across merges.")

	require.NoError(t, d.Upsert(Member{
		Sig:  methodSig("SQLCustomerRepository", "C"),
		Doc:  "// C counts again.",
		Text: "func (r *SQLCustomerRepository) C() int { return 30 }",
	}))
	d, _ = reparse(t, d)
	after := d.Members("SQLCustomerRepository")
	assert.Equal(t, []string{"A", "B", "C"}, methodNames(d, "SQLCustomerRepository"))
	for i := range before {
		assert.Equal(t, before[i], after[i], "member %s untouched", before[i].Sig)
	}
	c, ok := d.Member(methodSig("SQLCustomerRepository", "C"))
	require.True(t, ok)
	assert.Equal(t, "func (r *SQLCustomerRepository) C() int { return 30 }", c.Text)
	assert.Equal(t, "// C counts again.", c.Doc)
}

func TestUpsertInterfaceMethod(t *testing.T) {
	d := New("customer_service.go", "service")
	assert.True(t, d.EnsureType(Member{
		Sig:  Signature{Kind: Type, Name: "CustomerService"},
		Doc:  "// CustomerService serves customers.",
		Text: "type CustomerService interface{}",
	}))
	assert.False(t, d.EnsureType(Member{Sig: Signature{Kind: Type, Name: "CustomerService"}, Text: "type CustomerService int"}))

	require.NoError(t, d.Upsert(Member{Sig: methodSig("CustomerService", "GetAll"), Text: "GetAll() error"}))
	require.NoError(t, d.Upsert(Member{
		Sig:  methodSig("CustomerService", "GetByID"),
		Doc:  "// GetByID loads one customer.",
		Text: "GetByID(id int32) error",
	}))
	out, err := d.Bytes()
	require.NoError(t, err)
	assert.Equal(t, `package service

// CustomerService serves customers.
type CustomerService interface {
	GetAll() error
	// GetByID loads one customer.
	GetByID(id int32) error
}
`, string(out))

	d, out = reparse(t, d)
	require.NoError(t, d.Upsert(Member{
		Sig:  methodSig("CustomerService", "GetByID"),
		Doc:  "// GetByID loads one customer.",
		Text: "GetByID(id int32) error",
	}))
	again, err := d.Bytes()
	require.NoError(t, err)
	assert.Equal(t, string(out), string(again))
}

func TestUpsertMissingOwner(t *testing.T) {
	d := New("x.go", "x")
	err := d.Upsert(Member{Sig: methodSig("Missing", "M"), Text: "func (m *Missing) M() {}"})
	require.Error(t, err)
	assert.True(t, zgen.IsMergeError(err))
}

func TestRemoveToEmpty(t *testing.T) {
	d, err := Parse("x.go", []byte(`package x

type Only struct{}

// M is the only member.
func (o *Only) M() {}
`))
	require.NoError(t, err)
	exported := func(s Signature) bool { return s.Kind == Method && s.Exported() }
	assert.True(t, d.HasMembers("Only", exported))

	assert.True(t, d.Remove(methodSig("Only", "M")))
	assert.False(t, d.Remove(methodSig("Only", "M")))
	assert.False(t, d.HasMembers("Only", exported))

	assert.True(t, d.RemoveType("Only"))
	assert.True(t, d.Empty())
}

func TestRemoveField(t *testing.T) {
	d, err := Parse("x.go", []byte(`package x

type Customer struct {
	// ID is the key.
	ID   int32
	Name string // display name
}
`))
	require.NoError(t, err)
	require.True(t, d.Remove(Signature{Kind: Field, Owner: "Customer", Name: "ID"}))
	out, err := d.Bytes()
	require.NoError(t, err)
	assert.Equal(t, `package x

type Customer struct {
	Name string // display name
}
`, string(out))
}

func TestImports(t *testing.T) {
	d := New("r.go", "repository")
	d.EnsureType(Member{Sig: Signature{Kind: Type, Name: "R"}, Text: "type R struct{}"})
	require.NoError(t, d.Upsert(Member{
		Sig:  methodSig("R", "Get"),
		Text: "func (r *R) Get(ctx context.Context) error { return ctx.Err() }",
	}))
	d.AddImport("", "context")
	d.AddImport("", "strings")

	d, out := reparse(t, d)
	assert.Contains(t, string(out), `import "context"`)
	assert.NotContains(t, string(out), `"strings"`, "unused requests are ignored")

	require.True(t, d.Remove(methodSig("R", "Get")))
	_, out = reparse(t, d)
	assert.NotContains(t, string(out), "context", "unreferenced imports are dropped")
}

func TestImportsWithOtherPackageName(t *testing.T) {
	const src = `package repository

import (
	"context"

	"example.com/shop/internal/sqlutil"
)

type R struct{}

func (r *R) Get(ctx context.Context) error { return ctx.Err() }

func Open() *sql.DB { return sql.Must() }
`
	d, err := Parse("r.go", []byte(src))
	require.NoError(t, err)
	require.True(t, d.Remove(methodSig("R", "Get")))

	out, err := d.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"example.com/shop/internal/sqlutil"`, "a package named apart from its path is kept")
	assert.NotContains(t, string(out), `"context"`)
}

func TestImportName(t *testing.T) {
	tests := map[string]string{
		"context":                           "context",
		"github.com/dave/jennifer/jen":      "jen",
		"gopkg.in/yaml.v3":                  "yaml",
		"github.com/vmihailenco/msgpack/v5": "msgpack",
		"github.com/DATA-DOG/go-sqlmock":    "sqlmock",
		"example.com/weird-name":            "",
	}
	for p, want := range tests {
		t.Run(p, func(t *testing.T) {
			assert.Equal(t, want, ImportName(p))
		})
	}
}

func TestFuncStatements(t *testing.T) {
	d, err := Parse("registry.go", []byte(`package registry

import "example.com/shop/container"

func Register(c *container.Container) error {
	return c.Err()
}
`))
	require.NoError(t, err)
	fb, ok := d.Func("Register")
	require.True(t, ok)

	stmts, err := fb.Statements()
	require.NoError(t, err)
	assert.Equal(t, []string{"return c.Err()"}, stmts)

	require.NoError(t, fb.SetStatements([]string{"container.Bind[A, B](c, NewB)", "return c.Err()"}))
	d, out := reparse(t, d)
	assert.Contains(t, string(out), "\tcontainer.Bind[A, B](c, NewB)\n\treturn c.Err()\n}")

	fb, _ = d.Func("Register")
	stmts, err = fb.Statements()
	require.NoError(t, err)
	assert.Len(t, stmts, 2)

	_, ok = d.Func("Missing")
	assert.False(t, ok)
}

func TestExtract(t *testing.T) {
	r, err := Extract("rendered.go", []byte(`package repository

import (
	"context"

	dbx "example.com/shop/dbx"
)

// GetAll loads every row.
func (r *SQLCustomerRepository) GetAll(ctx context.Context) (int64, error) {
	return dbx.Exec(ctx, r.db, "zgen_Customer_GetAll")
}
`))
	require.NoError(t, err)
	assert.Equal(t, []Import{{Path: "context"}, {Name: "dbx", Path: "example.com/shop/dbx"}}, r.Imports())

	d, err := Parse("customer_repository_sql.go", []byte(repoSource))
	require.NoError(t, err)
	require.NoError(t, r.MergeInto(d, methodSig("SQLCustomerRepository", "GetAll")))
	_, out := reparse(t, d)
	assert.Contains(t, string(out), `dbx "example.com/shop/dbx"`)
	assert.Contains(t, string(out), "// GetAll loads every row.\nfunc (r *SQLCustomerRepository) GetAll(")

	err = r.MergeInto(d, methodSig("SQLCustomerRepository", "Missing"))
	assert.True(t, zgen.IsMergeError(err))
}

func TestMergeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	build := func(names []string) (*Document, []string) {
		seen := map[string]bool{"Added": true}
		d := New("t.go", "t")
		d.EnsureType(Member{Sig: Signature{Kind: Type, Name: "T"}, Text: "type T struct{}"})
		var kept []string
		for _, n := range names {
			n = "M" + n
			if seen[n] || len(kept) == 5 {
				continue
			}
			seen[n] = true
			kept = append(kept, n)
			_ = d.Upsert(Member{Sig: methodSig("T", n), Text: "func (t *T) " + n + "() {}"})
		}
		return d, kept
	}

	properties.Property("merging a member keeps the others in order", prop.ForAll(
		func(names []string) bool {
			d, kept := build(names)
			if err := d.Upsert(Member{Sig: methodSig("T", "Added"), Text: "func (t *T) Added() int { return 1 }"}); err != nil {
				return false
			}
			out, err := d.Bytes()
			if err != nil {
				return false
			}
			nd, err := Parse("t.go", out)
			if err != nil {
				return false
			}
			return strings.Join(methodNames(nd, "T"), ",") == strings.Join(append(kept, "Added"), ",")
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("re-merging identical members is a no-op", prop.ForAll(
		func(names []string) bool {
			d, kept := build(names)
			first, err := d.Bytes()
			if err != nil {
				return false
			}
			nd, err := Parse("t.go", first)
			if err != nil {
				return false
			}
			for _, n := range kept {
				m, _ := nd.Member(methodSig("T", n))
				if nd.Upsert(m) != nil {
					return false
				}
			}
			second, err := nd.Bytes()
			return err == nil && string(first) == string(second)
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
