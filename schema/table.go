package schema

import (
	"fmt"
	"strings"
)

// DefaultSchema is used when a script names a table without a schema.
const DefaultSchema = "dbo"

// Table is a parsed table script.
type Table struct {
	Schema          string           `msgpack:"schema"`
	Name            string           `msgpack:"name"`
	Columns         []*Column        `msgpack:"columns"`
	Constraints     []*Constraint    `msgpack:"constraints"`
	Indexes         []*Index         `msgpack:"indexes"`
	FullTextIndexes []*FullTextIndex `msgpack:"fulltext"`
}

// Column is a table column or a procedure parameter.
type Column struct {
	Name     string `msgpack:"name"`
	Type     string `msgpack:"type"`   // Upper-case builtin type (NVARCHAR) or a qualified user type (dbo.CustomerTableType).
	Length   string `msgpack:"length"` // Raw length/precision clause, e.g. "100", "18,2", "MAX".
	Nullable bool   `msgpack:"nullable"`
	Default  string `msgpack:"default"`
	Identity bool   `msgpack:"identity"`
	// ReadOnly marks table-valued procedure parameters.
	ReadOnly bool `msgpack:"readonly"`
	Output   bool `msgpack:"output"`
}

// ConstraintKind is the kind of a table constraint.
type ConstraintKind uint8

// Constraint kinds.
const (
	PrimaryKey ConstraintKind = iota + 1
	ForeignKey
)

// String returns the SQL spelling of the kind.
func (k ConstraintKind) String() string {
	switch k {
	case PrimaryKey:
		return "PRIMARY KEY"
	case ForeignKey:
		return "FOREIGN KEY"
	default:
		return "UNKNOWN"
	}
}

// Constraint is a primary or foreign key constraint.
type Constraint struct {
	Name       string         `msgpack:"name"`
	Kind       ConstraintKind `msgpack:"kind"`
	Columns    []string       `msgpack:"columns"`
	RefSchema  string         `msgpack:"ref_schema"`
	RefTable   string         `msgpack:"ref_table"`
	RefColumns []string       `msgpack:"ref_columns"`
}

// Column returns the first constrained column.
func (c *Constraint) Column() string {
	if len(c.Columns) == 0 {
		return ""
	}
	return c.Columns[0]
}

// RefColumn returns the first referenced column, falling back to the
// constrained column name when the reference list was omitted.
func (c *Constraint) RefColumn() string {
	if len(c.RefColumns) > 0 {
		return c.RefColumns[0]
	}
	return c.Column()
}

// Navigation returns the name under which the referenced row is attached to
// the owning row: the foreign key column without its "Id" suffix, or the
// referenced table name when nothing is left.
func (c *Constraint) Navigation() string {
	col := c.Column()
	for _, suffix := range []string{"Id", "ID", "_id", "_ID"} {
		if base, ok := strings.CutSuffix(col, suffix); ok && base != "" {
			return base
		}
	}
	return c.RefTable
}

// Index is a CREATE INDEX statement that targets the table.
type Index struct {
	Name    string   `msgpack:"name"`
	Unique  bool     `msgpack:"unique"`
	Type    string   `msgpack:"type"` // CLUSTERED, NONCLUSTERED or empty.
	Columns []string `msgpack:"columns"`
}

// FullTextIndex is a CREATE FULLTEXT INDEX statement that targets the table.
type FullTextIndex struct {
	Columns  []string `msgpack:"columns"`
	KeyIndex string   `msgpack:"key_index"`
	Catalog  string   `msgpack:"catalog"`
}

// QualifiedName returns the bracketed [schema].[name] form.
func (t *Table) QualifiedName() string {
	return fmt.Sprintf("[%s].[%s]", t.Schema, t.Name)
}

// Column returns the column with the given name, compared case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

// PrimaryKey returns the single primary key constraint. Generators depend on
// it, so a missing or duplicated key is an error.
func (t *Table) PrimaryKey() (*Constraint, error) {
	var pk *Constraint
	for _, c := range t.Constraints {
		if c.Kind != PrimaryKey {
			continue
		}
		if pk != nil {
			return nil, fmt.Errorf("table %s has more than one primary key", t.QualifiedName())
		}
		pk = c
	}
	if pk == nil {
		return nil, fmt.Errorf("table %s has no primary key", t.QualifiedName())
	}
	return pk, nil
}

// PrimaryKeyColumn returns the column of the primary key.
func (t *Table) PrimaryKeyColumn() (*Column, error) {
	pk, err := t.PrimaryKey()
	if err != nil {
		return nil, err
	}
	c, ok := t.Column(pk.Column())
	if !ok {
		return nil, fmt.Errorf("primary key column %q not declared in %s", pk.Column(), t.QualifiedName())
	}
	return c, nil
}

// ForeignKeys returns the foreign key constraints in declaration order.
func (t *Table) ForeignKeys() []*Constraint {
	var fks []*Constraint
	for _, c := range t.Constraints {
		if c.Kind == ForeignKey {
			fks = append(fks, c)
		}
	}
	return fks
}

// HasForeignKeys reports whether the table declares any foreign key.
func (t *Table) HasForeignKeys() bool {
	return len(t.ForeignKeys()) > 0
}
