// Package schema defines the entities parsed from hand-written schema
// sources: table scripts, stored-procedure scripts and client data-model
// declarations.
//
// Entities are built fresh on every parse and are not mutated afterwards.
// A re-parse supersedes the previous value; nothing in this package holds
// state across parses.
//
//	tbl, err := load.ParseTable(text)
//	pk, err := tbl.PrimaryKey()
//	for _, fk := range tbl.ForeignKeys() {
//	    fmt.Println(fk.Columns[0], "->", fk.RefTable)
//	}
package schema
