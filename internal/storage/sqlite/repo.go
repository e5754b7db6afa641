// Package sqlite implements a SQLite-backed storage.Repository on the
// pure-Go modernc driver. A SQLite file is one namespace, so schema
// qualifiers are dropped. Replacement runs DELETE plus batched INSERTs in a
// single transaction.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"ecomstaging/internal/ddl"
	"ecomstaging/internal/schema"
	"ecomstaging/internal/storage/sqldb"
)

// timeLayout is how timestamps are stored; SQLite date functions read it.
const timeLayout = "2006-01-02 15:04:05.999999999"

// MapType maps a semantic type onto a SQLite declared type.
//
//	Text      -> TEXT
//	Integer   -> INTEGER
//	Decimal   -> NUMERIC
//	Timestamp -> TIMESTAMP
func MapType(t schema.Type) string {
	switch t {
	case schema.Integer:
		return "INTEGER"
	case schema.Decimal:
		return "NUMERIC"
	case schema.Timestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// Dialect returns the SQLite dialect.
func Dialect() sqldb.Dialect {
	return sqldb.Dialect{
		Name: "sqlite",
		Renderer: ddl.Renderer{
			Dialect:     "sqlite",
			QuoteIdent:  ddl.DoubleQuote,
			IfNotExists: true,
		},
		MapType:     MapType,
		Unqualified: true,
		Columns:     columns,
		Truncate:    func(q string) string { return "DELETE FROM " + q },
		Placeholder: sqldb.QuestionMark,
		MaxParams:   32766,
		Value: func(t schema.Type, v any) any {
			if ts, ok := v.(time.Time); ok {
				return ts.Format(timeLayout)
			}
			return v
		},
	}
}

// columns reads the declared types from PRAGMA table_info.
func columns(ctx context.Context, q sqldb.Querier, _ string, table string) ([]ddl.ColumnDef, error) {
	rows, err := q.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, errors.Wrap(err, "table_info")
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

// NewRepository opens the database at dsn. A single connection is used:
// SQLite serializes writers anyway and an in-memory DSN must not be split
// across connections.
func NewRepository(ctx context.Context, dsn string, timeout time.Duration) (*sqldb.Repository, error) {
	r, err := sqldb.Open(ctx, "sqlite", dsn, timeout, Dialect())
	if err != nil {
		return nil, err
	}
	r.DB().SetMaxOpenConns(1)
	return r, nil
}

// Open wraps an existing handle, for tests that share a *sql.DB.
func Open(db *sql.DB) *sqldb.Repository {
	db.SetMaxOpenConns(1)
	return sqldb.New(db, Dialect())
}
