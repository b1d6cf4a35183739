// Package testutil provides a database/sql driver that stands in for the
// kittycore postgres schema. Tables and columns come from the bundled DDL, and
// writes made inside a transaction only land on commit.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"time"

	"kittycore/internal/infra/persistence/sqlbundle"
)

type column struct {
	name     string
	notNull  bool
	primary  bool
	refTable string
	refCol   string
}

type table struct {
	columns []column
}

func (t table) column(name string) (column, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

// StubConn holds the kitty tables written by the postgres store during tests.
type StubConn struct {
	Execs      []string
	Tables     map[string][]map[string]any
	FailExec   bool
	FailBegin  bool
	RowsErr    error
	FailTables map[string]bool
	FailCommit bool

	schema map[string]table
	staged map[string][]map[string]any
}

// NewStubDB registers a sql.DB backed by an in-memory connection that already
// carries the bundled postgres schema.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{
		Tables: make(map[string][]map[string]any),
		schema: make(map[string]table),
	}
	for _, stmt := range sqlbundle.SplitStatements(sqlbundle.Postgres()) {
		if err := conn.applyDDL(stmt); err != nil {
			panic(err)
		}
	}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Columns returns the declared columns of name in DDL order.
func (c *StubConn) Columns(name string) []string {
	t, ok := c.schema[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(t.columns))
	for _, col := range t.columns {
		out = append(out, col.name)
	}
	return out
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailExec {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx. Writes are staged on a copy of the
// tables until Commit.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	if c.staged != nil {
		return nil, fmt.Errorf("transaction already open")
	}
	c.staged = make(map[string][]map[string]any, len(c.Tables))
	for name, rows := range c.Tables {
		c.staged[name] = append([]map[string]any(nil), rows...)
	}
	return &stubTx{conn: c}, nil
}

func (c *StubConn) current() map[string][]map[string]any {
	if c.staged != nil {
		return c.staged
	}
	if c.Tables == nil {
		c.Tables = make(map[string][]map[string]any)
	}
	return c.Tables
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	up := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(up, "CREATE TABLE"):
		return driver.RowsAffected(0), c.applyDDL(query)
	case strings.HasPrefix(up, "CREATE INDEX"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(up, "TRUNCATE TABLE"):
		tables := c.current()
		for _, name := range parseTruncate(query) {
			if _, ok := c.schema[name]; !ok {
				return nil, fmt.Errorf("relation %q does not exist", name)
			}
			delete(tables, name)
		}
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(up, "INSERT INTO"):
		return c.insert(query, args)
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

func (c *StubConn) insert(query string, args []driver.NamedValue) (driver.Result, error) {
	name, cols, err := parseInsert(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[name] {
		return nil, fmt.Errorf("exec fail for %s", name)
	}
	def, ok := c.schema[name]
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", name)
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("column/arg mismatch for %s", name)
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		if _, ok := def.column(col); !ok {
			return nil, fmt.Errorf("column %q of relation %q does not exist", col, name)
		}
		row[col] = args[i].Value
	}
	tables := c.current()
	for _, col := range def.columns {
		value := row[col.name]
		if value == nil {
			if col.notNull {
				return nil, fmt.Errorf("null value in column %q of relation %q", col.name, name)
			}
			continue
		}
		if col.primary {
			for _, existing := range tables[name] {
				if sameValue(existing[col.name], value) {
					return nil, fmt.Errorf("duplicate key %v in %s", value, name)
				}
			}
		}
		if col.refTable != "" && !containsValue(tables[col.refTable], col.refCol, value) {
			return nil, fmt.Errorf("%s.%s %v violates foreign key on %s", name, col.name, value, col.refTable)
		}
	}
	tables[name] = append(tables[name], row)
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	name, cols, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[name] {
		return nil, fmt.Errorf("query fail for %s", name)
	}
	def, ok := c.schema[name]
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", name)
	}
	for _, col := range cols {
		if _, ok := def.column(col); !ok {
			return nil, fmt.Errorf("column %q of relation %q does not exist", col, name)
		}
	}
	tableRows := c.current()[name]
	values := make([][]driver.Value, 0, len(tableRows))
	for _, row := range tableRows {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{
		cols: cols,
		rows: values,
		err:  c.RowsErr,
	}, nil
}

// applyDDL records the columns of a CREATE TABLE statement. Each column
// definition sits on its own line, as in the bundled scripts.
func (c *StubConn) applyDDL(stmt string) error {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(stmt)), "CREATE TABLE") {
		return nil
	}
	open := strings.Index(stmt, "(")
	end := strings.LastIndex(stmt, ")")
	if open == -1 || end <= open {
		return fmt.Errorf("cannot parse create table: %s", stmt)
	}
	header := strings.Fields(stmt[:open])
	name := strings.ToLower(header[len(header)-1])
	if _, ok := c.schema[name]; ok {
		return nil
	}
	var def table
	for _, line := range strings.Split(stmt[open+1:end], "\n") {
		line = strings.TrimSuffix(strings.TrimSpace(line), ",")
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		up := strings.ToUpper(line)
		col := column{
			name:    strings.ToLower(fields[0]),
			primary: strings.Contains(up, "PRIMARY KEY"),
		}
		col.notNull = col.primary || strings.Contains(up, "NOT NULL")
		if idx := strings.Index(up, "REFERENCES "); idx != -1 {
			ref := strings.Fields(strings.NewReplacer("(", " ", ")", " ").Replace(line[idx+len("REFERENCES "):]))
			if len(ref) < 2 {
				return fmt.Errorf("cannot parse reference in %s: %s", name, line)
			}
			col.refTable, col.refCol = strings.ToLower(ref[0]), strings.ToLower(ref[1])
		}
		def.columns = append(def.columns, col)
	}
	c.schema[name] = def
	return nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	staged := t.conn.staged
	t.conn.staged = nil
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	t.conn.Tables = staged
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.staged = nil
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func sameValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func containsValue(rows []map[string]any, col string, value any) bool {
	for _, row := range rows {
		if sameValue(row[col], value) {
			return true
		}
	}
	return false
}

func parseInsert(query string) (string, []string, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	name := strings.ToLower(strings.TrimSpace(rest[:open]))
	return name, splitColumns(rest[open+1 : closeIdx]), nil
}

func parseTruncate(query string) []string {
	rest := strings.TrimSpace(query)[len("TRUNCATE TABLE"):]
	return splitColumns(strings.TrimSuffix(strings.TrimSpace(rest), ";"))
}

func parseSelect(query string) (string, []string, error) {
	lower := strings.ToLower(query)
	selectPrefix := "select "
	fromToken := " from "
	if !strings.HasPrefix(lower, selectPrefix) {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, fromToken)
	if fromIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	cols := query[len(selectPrefix):fromIdx]
	rest := strings.Fields(query[fromIdx+len(fromToken):])
	if len(rest) == 0 {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	return strings.ToLower(rest[0]), splitColumns(cols), nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
