package schema

import (
	"fmt"
	"strings"
)

// ProcedureKind classifies a stored procedure by its action.
type ProcedureKind uint8

// Procedure kinds.
const (
	Query ProcedureKind = iota
	Insert
	Update
	Delete
)

// String returns the kind name.
func (k ProcedureKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "query"
	}
}

// Mutates reports whether the kind writes rows.
func (k ProcedureKind) Mutates() bool { return k != Query }

// KindOf classifies an action name such as "GetById" or "InsertMany".
func KindOf(action string) ProcedureKind {
	switch {
	case hasPrefixFold(action, "Insert"):
		return Insert
	case hasPrefixFold(action, "Update"), hasPrefixFold(action, "Upsert"):
		return Update
	case hasPrefixFold(action, "Delete"):
		return Delete
	default:
		return Query
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// Procedure is a parsed stored procedure script.
type Procedure struct {
	Schema string `msgpack:"schema"`
	// Table is the owning table, taken from the procedure naming convention
	// <prefix>_<Table>_<Action>.
	Table      string        `msgpack:"table"`
	Name       string        `msgpack:"name"`
	Action     string        `msgpack:"action"`
	Kind       ProcedureKind `msgpack:"kind"`
	Params     []*Column     `msgpack:"params"`
	ReturnType string        `msgpack:"return_type"`
}

// QualifiedName returns the bracketed [schema].[name] form.
func (p *Procedure) QualifiedName() string {
	return fmt.Sprintf("[%s].[%s]", p.Schema, p.Name)
}

// TableValued returns the read-only table-valued parameters.
func (p *Procedure) TableValued() []*Column {
	var cols []*Column
	for _, c := range p.Params {
		if c.ReadOnly {
			cols = append(cols, c)
		}
	}
	return cols
}

// SplitProcedureName splits <prefix>_<Table>_<Action> into its table and
// action parts. The prefix comparison is case-insensitive.
func SplitProcedureName(name, prefix string) (table, action string, ok bool) {
	rest := name
	if prefix != "" {
		p := prefix + "_"
		if !hasPrefixFold(rest, p) {
			return "", "", false
		}
		rest = rest[len(p):]
	}
	table, action, ok = strings.Cut(rest, "_")
	if !ok || table == "" || action == "" {
		return "", "", false
	}
	return table, action, true
}
