package load

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/zgen"
	"github.com/syssam/zgen/schema"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	text, err := ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return text
}

func TestParseTable(t *testing.T) {
	tbl, err := ParseTable(readFixture(t, "Customer.sql"))
	require.NoError(t, err)

	assert.Equal(t, "dbo", tbl.Schema)
	assert.Equal(t, "Customer", tbl.Name)

	t.Run("columns", func(t *testing.T) {
		names := make([]string, 0, len(tbl.Columns))
		for _, c := range tbl.Columns {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"CustomerId", "Name", "Email", "RegionId", "CreditLimit", "CreatedAt"}, names)

		id, ok := tbl.Column("customerid")
		require.True(t, ok)
		assert.Equal(t, "INT", id.Type)
		assert.True(t, id.Identity)
		assert.False(t, id.Nullable)

		name, _ := tbl.Column("Name")
		assert.Equal(t, "NVARCHAR", name.Type)
		assert.Equal(t, "100", name.Length)
		assert.False(t, name.Nullable)

		email, _ := tbl.Column("Email")
		assert.True(t, email.Nullable)

		credit, _ := tbl.Column("CreditLimit")
		assert.Equal(t, "18,2", credit.Length)
		assert.Equal(t, "0", credit.Default)
		assert.True(t, credit.Nullable)

		created, _ := tbl.Column("CreatedAt")
		assert.Equal(t, "sysutcdatetime()", created.Default)
	})

	t.Run("constraints", func(t *testing.T) {
		pk, err := tbl.PrimaryKey()
		require.NoError(t, err)
		assert.Equal(t, "PK_Customer", pk.Name)
		assert.Equal(t, []string{"CustomerId"}, pk.Columns)

		fks := tbl.ForeignKeys()
		require.Len(t, fks, 1)
		assert.Equal(t, "RegionId", fks[0].Column())
		assert.Equal(t, "dbo", fks[0].RefSchema)
		assert.Equal(t, "Region", fks[0].RefTable)
		assert.Equal(t, "RegionId", fks[0].RefColumn())
		assert.Len(t, tbl.Constraints, 2)
	})

	t.Run("indexes", func(t *testing.T) {
		require.Len(t, tbl.Indexes, 1)
		ix := tbl.Indexes[0]
		assert.Equal(t, "IX_Customer_RegionId", ix.Name)
		assert.False(t, ix.Unique)
		assert.Equal(t, "NONCLUSTERED", ix.Type)
		assert.Equal(t, []string{"RegionId"}, ix.Columns)
	})
}

func TestParseTableVariants(t *testing.T) {
	t.Run("bare header and inline keys", func(t *testing.T) {
		tbl, err := ParseTable(`
CREATE TABLE sales.OrderLine (
	OrderLineId bigint primary key,
	OrderId int not null references sales.[Order](OrderId),
	Sku varchar(32)
)
CREATE UNIQUE INDEX UX_OrderLine_Sku ON sales.OrderLine (Sku)
CREATE FULLTEXT INDEX ON sales.OrderLine (Sku) KEY INDEX UX_OrderLine_Sku ON Catalog`)
		require.NoError(t, err)
		assert.Equal(t, "sales", tbl.Schema)
		assert.Equal(t, "OrderLine", tbl.Name)

		col, err := tbl.PrimaryKeyColumn()
		require.NoError(t, err)
		assert.Equal(t, "OrderLineId", col.Name)
		assert.Equal(t, "BIGINT", col.Type)

		fks := tbl.ForeignKeys()
		require.Len(t, fks, 1)
		assert.Equal(t, "sales", fks[0].RefSchema)
		assert.Equal(t, "Order", fks[0].RefTable)

		require.Len(t, tbl.Indexes, 1)
		assert.True(t, tbl.Indexes[0].Unique)
		require.Len(t, tbl.FullTextIndexes, 1)
		assert.Equal(t, "UX_OrderLine_Sku", tbl.FullTextIndexes[0].KeyIndex)
		assert.Equal(t, "Catalog", tbl.FullTextIndexes[0].Catalog)
	})

	t.Run("missing primary key", func(t *testing.T) {
		_, err := ParseTable("CREATE TABLE [dbo].[Log] ([Message] NVARCHAR(MAX) NULL)")
		require.Error(t, err)
		assert.ErrorIs(t, err, zgen.ErrParse)
		assert.Contains(t, err.Error(), "no primary key constraint")
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := ParseTable("SELECT 1")
		require.Error(t, err)
		assert.True(t, zgen.IsParseError(err))
	})

	t.Run("commented out columns are ignored", func(t *testing.T) {
		tbl, err := ParseTable(`CREATE TABLE [dbo].[Tag] (
	[TagId] INT NOT NULL PRIMARY KEY,
	-- [Legacy] INT NULL,
	/* [Other] INT NULL, */
	[Label] NVARCHAR(20) NOT NULL
)`)
		require.NoError(t, err)
		assert.Len(t, tbl.Columns, 2)
	})
}

func TestParseProcedure(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		p, err := ParseProcedure(readFixture(t, "zgen_Customer_GetById.sql"), "zgen")
		require.NoError(t, err)
		assert.Equal(t, "dbo", p.Schema)
		assert.Equal(t, "zgen_Customer_GetById", p.Name)
		assert.Equal(t, "Customer", p.Table)
		assert.Equal(t, "GetById", p.Action)
		assert.Equal(t, schema.Query, p.Kind)
		require.Len(t, p.Params, 1)
		assert.Equal(t, "@CustomerId", p.Params[0].Name)
		assert.Equal(t, "INT", p.Params[0].Type)
		assert.False(t, p.Params[0].Nullable)
	})

	t.Run("table valued with options", func(t *testing.T) {
		p, err := ParseProcedure(readFixture(t, "zgen_Customer_InsertMany.sql"), "zgen")
		require.NoError(t, err)
		assert.Equal(t, schema.Insert, p.Kind)
		require.Len(t, p.Params, 3)

		items := p.Params[0]
		assert.Equal(t, "dbo.CustomerTableType", items.Type)
		assert.True(t, items.ReadOnly)

		batch := p.Params[1]
		assert.Equal(t, "500", batch.Default)
		assert.True(t, batch.Nullable)

		assert.True(t, p.Params[2].Output)
		assert.Equal(t, []*schema.Column{items}, p.TableValued())
	})

	t.Run("readonly inside length clause", func(t *testing.T) {
		p, err := ParseProcedure(`CREATE PROC dbo.zgen_Customer_Import @Rows dbo.CustomerTableType(READONLY) AS SELECT 1`, "zgen")
		require.NoError(t, err)
		require.Len(t, p.Params, 1)
		assert.True(t, p.Params[0].ReadOnly)
		assert.Empty(t, p.Params[0].Length)
	})

	t.Run("no parameters", func(t *testing.T) {
		p, err := ParseProcedure("CREATE PROCEDURE [dbo].[zgen_Customer_GetAll] AS SELECT * FROM [dbo].[Customer]", "zgen")
		require.NoError(t, err)
		assert.Empty(t, p.Params)
	})

	t.Run("returns annotation", func(t *testing.T) {
		p, err := ParseProcedure(`-- @returns int
CREATE PROCEDURE [dbo].[zgen_Customer_CountActive] @Since DATETIME2 = NULL AS SELECT COUNT(*) FROM [dbo].[Customer]`, "zgen")
		require.NoError(t, err)
		assert.Equal(t, "INT", p.ReturnType)
		assert.Equal(t, "NULL", p.Params[0].Default)
	})

	t.Run("non conforming name", func(t *testing.T) {
		_, err := ParseProcedure("CREATE PROCEDURE [dbo].[GetCustomers] AS SELECT 1", "zgen")
		require.Error(t, err)
		assert.ErrorIs(t, err, zgen.ErrParse)
	})

	t.Run("missing parameter list", func(t *testing.T) {
		_, err := ParseProcedure("CREATE PROCEDURE [dbo].[zgen_Customer_Broken] @Id INT", "zgen")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not locate procedure parameter list")
	})
}

func TestProcedureFromPath(t *testing.T) {
	p, err := ProcedureFromPath(filepath.Join("database", "sales", "Stored Procedures", "zgen_Order_DeleteById.sql"), "zgen")
	require.NoError(t, err)
	assert.Equal(t, "sales", p.Schema)
	assert.Equal(t, "Order", p.Table)
	assert.Equal(t, schema.Delete, p.Kind)

	p, err = ProcedureFromPath("dbo.zgen_Order_GetAll.sql", "zgen")
	require.NoError(t, err)
	assert.Equal(t, "dbo", p.Schema)

	_, err = ProcedureFromPath("notes.sql", "zgen")
	assert.True(t, zgen.IsParseError(err))

	tbl := TableFromPath(filepath.Join("database", "dbo", "Tables", "Customer.sql"))
	assert.Equal(t, "dbo", tbl.Schema)
	assert.Equal(t, "Customer", tbl.Name)

	assert.Equal(t, "OrderLine", ModelFromPath(filepath.Join("web", "src", "models", "order_line.model.ts")).Name)
	assert.Equal(t, "Region", ModelFromPath("region.ts").Name)
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel(readFixture(t, "customer.model.ts"))
	require.NoError(t, err)
	assert.Equal(t, "Customer", m.Name)
	assert.Equal(t, "customerId", m.PrimaryKey)
	assert.Equal(t, map[string]string{"regionId": "Region"}, m.ForeignKeys)
	require.Len(t, m.Properties, 6)

	email, ok := m.Property("email")
	require.True(t, ok)
	assert.True(t, email.Optional)
	created, _ := m.Property("createdAt")
	assert.True(t, created.Optional)
	name, _ := m.Property("name")
	assert.False(t, name.Optional)

	t.Run("id fallback", func(t *testing.T) {
		m, err := ParseModel("export class Region {\n  id: number;\n  label: string;\n  describe(): string { return this.label; }\n}")
		require.NoError(t, err)
		assert.Equal(t, "id", m.PrimaryKey)
		assert.Len(t, m.Properties, 2)
	})

	t.Run("no key", func(t *testing.T) {
		_, err := ParseModel("export interface Note { text: string; }")
		assert.ErrorIs(t, err, zgen.ErrParse)
	})
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.sql")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbfCREATE TABLE"), 0o644))

	text, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE", text)

	_, err = ReadFile(filepath.Join(dir, "missing.sql"))
	require.Error(t, err)
	assert.True(t, zgen.IsIOError(err))
}

func TestParseDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("identical text yields identical fingerprints", prop.ForAll(
		func(table, column string, nullable bool) bool {
			null := "NOT NULL"
			if nullable {
				null = "NULL"
			}
			text := "CREATE TABLE [dbo].[" + table + "] (\n" +
				"\t[" + table + "Id] INT NOT NULL,\n" +
				"\t[" + column + "] NVARCHAR(50) " + null + ",\n" +
				"\tCONSTRAINT [PK_" + table + "] PRIMARY KEY ([" + table + "Id])\n)"
			a, err := ParseTable(text)
			if err != nil {
				return false
			}
			b, err := ParseTable(text)
			if err != nil {
				return false
			}
			fa, err := schema.Fingerprint(a)
			if err != nil {
				return false
			}
			fb, err := schema.Fingerprint(b)
			return err == nil && fa == fb && a.Columns[1].Nullable == nullable
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
