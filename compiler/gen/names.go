package gen

import (
	"github.com/syssam/zgen/compiler/naming"
	"github.com/syssam/zgen/schema"
)

// names holds the identifiers generated for one table.
type names struct {
	Entity         string // Customer
	File           string // customer
	Repository     string // CustomerRepository
	SQLRepository  string // SQLCustomerRepository
	Service        string // CustomerService
	DefaultService string // DefaultCustomerService
	ForeignService string // CustomerForeignService
}

func namesOf(table string) names {
	e := naming.Pascal(table)
	return names{
		Entity:         e,
		File:           naming.Snake(table),
		Repository:     e + "Repository",
		SQLRepository:  "SQL" + e + "Repository",
		Service:        e + "Service",
		DefaultService: "Default" + e + "Service",
		ForeignService: e + "ForeignService",
	}
}

// File names of the Go artifacts of a table.
func (n names) modelFile() string { return n.File + ".go" }
func (n names) repositoryInterfaceFile() string { return n.File + "_repository.go" }
func (n names) repositoryFile() string { return n.File + "_repository_sql.go" }
func (n names) serviceInterfaceFile() string { return n.File + "_service.go" }
func (n names) serviceFile() string { return n.File + "_service_default.go" }
func (n names) foreignServiceFile() string { return n.File + "_foreign_service.go" }
func (n names) constructor(typ string) string { return "New" + typ }

// tableTypeName is the user-defined table type used for bulk inserts.
func tableTypeName(t *schema.Table) string { return t.Name + "TableType" }

// methodName is the Go method generated for a procedure: GetById → GetByID.
func methodName(p *schema.Procedure) string {
	return naming.Pascal(p.Action)
}

// paramName is the Go parameter for @CustomerId: customerID.
func paramName(c *schema.Column) string {
	return naming.Ident(naming.Camel(c.Name))
}

// fieldName is the model field of a column.
func fieldName(column string) string {
	return naming.Pascal(column)
}

// navigationName is the model field that holds the row a foreign key
// references. It never collides with the column field.
func navigationName(fk *schema.Constraint) string {
	nav := naming.Pascal(fk.Navigation())
	if nav == fieldName(fk.Column()) {
		nav += "Ref"
	}
	return nav
}

// jsonName is the JSON key of a column: CustomerId → customerId.
func jsonName(column string) string {
	return naming.Camel(column)
}
