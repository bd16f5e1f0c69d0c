package gen

import (
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/zgen/compiler/naming"
	"github.com/syssam/zgen/schema"
)

// Import paths referenced by generated code.
const (
	dbxPkg       = "github.com/syssam/zgen/dbx"
	containerPkg = "github.com/syssam/zgen/container"
	decimalPkg   = "github.com/shopspring/decimal"
	uuidPkg      = "github.com/google/uuid"
)

// importNames registers package names so generated files import them
// without an alias.
var importNames = map[string]string{
	dbxPkg:       "dbx",
	containerPkg: "container",
	decimalPkg:   "decimal",
	uuidPkg:      "uuid",
}

// GoKind is the Go shape a SQL type maps to.
type GoKind uint8

// Go kinds.
const (
	KindAny GoKind = iota
	KindBool
	KindUint8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindString
	KindTime
	KindUUID
	KindBytes
)

var sqlKinds = map[string]GoKind{
	"BIT":              KindBool,
	"TINYINT":          KindUint8,
	"SMALLINT":         KindInt16,
	"INT":              KindInt32,
	"INTEGER":          KindInt32,
	"BIGINT":           KindInt64,
	"REAL":             KindFloat32,
	"FLOAT":            KindFloat64,
	"DECIMAL":          KindDecimal,
	"NUMERIC":          KindDecimal,
	"MONEY":            KindDecimal,
	"SMALLMONEY":       KindDecimal,
	"CHAR":             KindString,
	"VARCHAR":          KindString,
	"NCHAR":            KindString,
	"NVARCHAR":         KindString,
	"TEXT":             KindString,
	"NTEXT":            KindString,
	"XML":              KindString,
	"SYSNAME":          KindString,
	"DATE":             KindTime,
	"DATETIME":         KindTime,
	"DATETIME2":        KindTime,
	"SMALLDATETIME":    KindTime,
	"TIME":             KindTime,
	"DATETIMEOFFSET":   KindTime,
	"UNIQUEIDENTIFIER": KindUUID,
	"BINARY":           KindBytes,
	"VARBINARY":        KindBytes,
	"IMAGE":            KindBytes,
	"ROWVERSION":       KindBytes,
	"TIMESTAMP":        KindBytes,
}

// KindOf maps a SQL type name to its Go kind. Unknown and user-defined
// types map to KindAny.
func KindOf(sqlType string) GoKind {
	return sqlKinds[strings.ToUpper(sqlType)]
}

// IsScalar reports whether a SQL type name maps to a concrete Go type.
func IsScalar(sqlType string) bool {
	_, ok := sqlKinds[strings.ToUpper(sqlType)]
	return ok
}

// baseType returns the Jennifer code of the non-pointer Go type.
func baseType(k GoKind) *jen.Statement {
	switch k {
	case KindBool:
		return jen.Bool()
	case KindUint8:
		return jen.Uint8()
	case KindInt16:
		return jen.Int16()
	case KindInt32:
		return jen.Int32()
	case KindInt64:
		return jen.Int64()
	case KindFloat32:
		return jen.Float32()
	case KindFloat64:
		return jen.Float64()
	case KindDecimal:
		return jen.Qual(decimalPkg, "Decimal")
	case KindString:
		return jen.String()
	case KindTime:
		return jen.Qual("time", "Time")
	case KindUUID:
		return jen.Qual(uuidPkg, "UUID")
	case KindBytes:
		return jen.Index().Byte()
	default:
		return jen.Any()
	}
}

// columnType returns the Go type of a table column. Nullable columns are
// pointers unless the type is already nillable.
func columnType(c *schema.Column) *jen.Statement {
	k := KindOf(c.Type)
	if c.Nullable && k != KindAny && k != KindBytes {
		return jen.Op("*").Add(baseType(k))
	}
	return baseType(k)
}

// paramType returns the Go type of a procedure parameter. Table-valued
// parameters of <Table>TableType become model slices.
func paramType(p *schema.Column, modelPkg string) *jen.Statement {
	if p.ReadOnly {
		if m := tableTypeModel(p.Type); m != "" {
			return jen.Index().Op("*").Qual(modelPkg, naming.Pascal(m))
		}
		return jen.Any()
	}
	return columnType(p)
}

// tableTypeModel returns the model name of a <Table>TableType user type.
func tableTypeModel(typ string) string {
	if i := strings.LastIndexByte(typ, '.'); i >= 0 {
		typ = typ[i+1:]
	}
	name, ok := strings.CutSuffix(typ, "TableType")
	if !ok || name == "" {
		return ""
	}
	return name
}

// sqlType spells a column type with its length for scripts.
func sqlType(c *schema.Column) string {
	if c.Length == "" {
		return c.Type
	}
	return c.Type + "(" + c.Length + ")"
}
