// Package sqldb implements storage.Repository over database/sql. The SQL
// Server, MySQL and SQLite backends share it and differ only in their Dialect.
package sqldb

import (
	"context"
	"database/sql"
	"strconv"

	"ecomstaging/internal/ddl"
	"ecomstaging/internal/schema"
)

// Querier is the read side of *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Dialect captures everything a database/sql backend does differently.
type Dialect struct {
	// Name prefixes errors, e.g. "mysql".
	Name string

	// Renderer quotes identifiers and renders DDL.
	Renderer ddl.Renderer

	// MapType maps a semantic type to the physical column type.
	MapType func(schema.Type) string

	// Unqualified drops the schema part of table names, for stores that
	// have a single namespace.
	Unqualified bool

	// CreateSchema renders the statement creating a namespace. Nil means
	// namespaces need no creation.
	CreateSchema func(name string) string

	// Columns lists the columns of schemaName.table in ordinal order with
	// their physical types. An empty result means the table is absent.
	Columns func(ctx context.Context, q Querier, schemaName, table string) ([]ddl.ColumnDef, error)

	// Truncate renders the statement emptying a table inside a transaction.
	Truncate func(quotedFQN string) string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// MaxParams bounds bind parameters per INSERT statement.
	MaxParams int

	// BulkLoad, when set, replaces batched INSERTs with a native bulk path.
	// It runs inside tx and receives the unquoted table name.
	BulkLoad func(ctx context.Context, tx *sql.Tx, fqn string, cols []string, rows [][]any) (int64, error)

	// Value adapts a coerced value before it is bound. Nil passes values
	// through.
	Value func(t schema.Type, v any) any
}

// QuestionMark is the "?" placeholder style.
func QuestionMark(int) string { return "?" }

// AtP is the SQL Server "@pN" placeholder style.
func AtP(n int) string { return "@p" + strconv.Itoa(n) }

// QueryColumns runs query and scans (name, type) pairs into column defs with
// their semantic type classified.
func QueryColumns(ctx context.Context, q Querier, query string, args ...any) ([]ddl.ColumnDef, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ddl.ColumnDef
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		out = append(out, ddl.ColumnDef{Name: name, SQLType: typ, Type: ddl.Classify(typ), Nullable: true})
	}
	return out, rows.Err()
}
