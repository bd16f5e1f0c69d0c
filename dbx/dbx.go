// Package dbx runs stored procedures for generated repositories.
//
// Generated repositories hold an ExecQuerier and call Query, Scalar or Exec
// with the procedure name and its arguments in declaration order. Rows are
// scanned through the Fields method that generated models implement.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect names.
const (
	SQLServer = "sqlserver"
	SQLite    = "sqlite"
)

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn is an ExecQuerier that knows how to spell a procedure call.
type Conn struct {
	ExecQuerier
	dialect string
	stmts   map[string]string
	tvp     func(TVP) (any, error)
	stats   *statsRecorder
}

// Option configures a Conn.
type Option func(*Conn)

// WithStatement runs stmt instead of a procedure call whenever proc is
// called. Dialects without stored procedures use it to define them.
func WithStatement(proc, stmt string) Option {
	return func(c *Conn) {
		if c.stmts == nil {
			c.stmts = make(map[string]string)
		}
		c.stmts[proc] = stmt
	}
}

// WithTableValues converts table-valued arguments into the value the
// driver expects, for example a driver specific TVP type.
func WithTableValues(conv func(TVP) (any, error)) Option {
	return func(c *Conn) { c.tvp = conv }
}

// Open wraps sql.Open and returns a Conn for the given dialect.
func Open(dialect, source string, opts ...Option) (*Conn, error) {
	db, err := sql.Open(dialect, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(dialect, db, opts...), nil
}

// OpenDB wraps an open database.
func OpenDB(dialect string, db ExecQuerier, opts ...Option) *Conn {
	c := &Conn{ExecQuerier: db, dialect: dialect}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DB returns the underlying *sql.DB, if any.
func (c *Conn) DB() *sql.DB {
	db, _ := c.ExecQuerier.(*sql.DB)
	return db
}

// Dialect returns the dialect name.
func (c *Conn) Dialect() string { return c.dialect }

// Close closes the underlying database when it is a *sql.DB.
func (c *Conn) Close() error {
	if db := c.DB(); db != nil {
		return db.Close()
	}
	return nil
}

// Statement returns the SQL that calls proc with n arguments.
func (c *Conn) Statement(proc string, n int) string {
	if stmt, ok := c.stmts[proc]; ok {
		return stmt
	}
	return callStatement(c.dialect, proc, n)
}

func (c *Conn) args(args []any) ([]any, error) {
	if c.tvp == nil {
		return args, nil
	}
	var out []any
	for i, a := range args {
		t, ok := a.(TVP)
		if !ok {
			continue
		}
		if out == nil {
			out = append([]any(nil), args...)
		}
		v, err := c.tvp(t)
		if err != nil {
			return nil, fmt.Errorf("dbx: table value %s: %w", t.TypeName, err)
		}
		out[i] = v
	}
	if out == nil {
		return args, nil
	}
	return out, nil
}

// callStatement spells EXEC proc @p1, @p2, ... for SQL Server and
// CALL proc(?, ...) elsewhere.
func callStatement(dialect, proc string, n int) string {
	var b strings.Builder
	if dialect == "" || dialect == SQLServer || dialect == "mssql" {
		b.WriteString("EXEC ")
		b.WriteString(proc)
		for i := range n {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(" @p")
			b.WriteString(strconv.Itoa(i + 1))
		}
		return b.String()
	}
	b.WriteString("CALL ")
	b.WriteString(proc)
	b.WriteByte('(')
	for i := range n {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('?')
	}
	b.WriteByte(')')
	return b.String()
}

func prepare(db ExecQuerier, proc string, args []any) (string, []any, error) {
	if c, ok := db.(*Conn); ok {
		argv, err := c.args(args)
		if err != nil {
			return "", nil, err
		}
		return c.Statement(proc, len(args)), argv, nil
	}
	return callStatement(SQLServer, proc, len(args)), args, nil
}

// Query calls proc and scans every row into a new T through its Fields
// method.
func Query[T any, PT interface {
	*T
	Fields() []any
}](ctx context.Context, db ExecQuerier, proc string, args ...any) ([]*T, error) {
	query, argv, err := prepare(db, proc, args)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, argv...)
	if err != nil {
		return nil, fmt.Errorf("dbx: query %s: %w", proc, err)
	}
	defer rows.Close()
	var out []*T
	for rows.Next() {
		v := new(T)
		if err := rows.Scan(PT(v).Fields()...); err != nil {
			return nil, fmt.Errorf("dbx: scan %s: %w", proc, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dbx: query %s: %w", proc, err)
	}
	return out, nil
}

// Scalar calls proc and returns the first column of its first row. A call
// that returns no rows reports sql.ErrNoRows.
func Scalar[T any](ctx context.Context, db ExecQuerier, proc string, args ...any) (T, error) {
	var v T
	query, argv, err := prepare(db, proc, args)
	if err != nil {
		return v, err
	}
	rows, err := db.QueryContext(ctx, query, argv...)
	if err != nil {
		return v, fmt.Errorf("dbx: query %s: %w", proc, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return v, fmt.Errorf("dbx: query %s: %w", proc, err)
		}
		return v, fmt.Errorf("dbx: query %s: %w", proc, sql.ErrNoRows)
	}
	cols, err := rows.Columns()
	if err != nil {
		return v, fmt.Errorf("dbx: query %s: %w", proc, err)
	}
	dest := make([]any, len(cols))
	dest[0] = &v
	for i := 1; i < len(dest); i++ {
		dest[i] = new(any)
	}
	if err := rows.Scan(dest...); err != nil {
		return v, fmt.Errorf("dbx: scan %s: %w", proc, err)
	}
	return v, nil
}

// Exec calls proc and returns the number of affected rows.
func Exec(ctx context.Context, db ExecQuerier, proc string, args ...any) (int64, error) {
	query, argv, err := prepare(db, proc, args)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, argv...)
	if err != nil {
		return 0, fmt.Errorf("dbx: exec %s: %w", proc, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("dbx: exec %s: %w", proc, err)
	}
	return n, nil
}

// TVP is a table-valued procedure argument.
type TVP struct {
	// TypeName is the qualified table type, e.g. dbo.CustomerTableType.
	TypeName string
	// Rows is a slice of model pointers.
	Rows any
}

// TableValue wraps rows as a table-valued argument of the named type.
func TableValue[T any](typeName string, rows []*T) TVP {
	return TVP{TypeName: typeName, Rows: rows}
}
