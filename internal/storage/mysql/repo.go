// Package mysql implements a MySQL-backed storage.Repository. A MySQL schema
// is a database, so the staging schema is created with CREATE DATABASE.
// TRUNCATE commits implicitly in MySQL, so replacement uses DELETE plus
// batched INSERTs inside one transaction instead.
package mysql

import (
	"context"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"ecomstaging/internal/ddl"
	"ecomstaging/internal/schema"
	"ecomstaging/internal/storage/sqldb"
)

// MapType maps a semantic type onto a MySQL column type.
//
//	Text      -> LONGTEXT
//	Integer   -> BIGINT
//	Decimal   -> DECIMAL(38,10)
//	Timestamp -> DATETIME(6)
func MapType(t schema.Type) string {
	switch t {
	case schema.Integer:
		return "BIGINT"
	case schema.Decimal:
		return "DECIMAL(38,10)"
	case schema.Timestamp:
		return "DATETIME(6)"
	default:
		return "LONGTEXT"
	}
}

const columnsQuery = `SELECT COLUMN_NAME, COLUMN_TYPE
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

// Dialect returns the MySQL dialect.
func Dialect() sqldb.Dialect {
	return sqldb.Dialect{
		Name: "mysql",
		Renderer: ddl.Renderer{
			Dialect:     "mysql",
			QuoteIdent:  ddl.BacktickQuote,
			IfNotExists: true,
		},
		MapType: MapType,
		CreateSchema: func(name string) string {
			return "CREATE DATABASE IF NOT EXISTS " + ddl.BacktickQuote(name)
		},
		Columns: func(ctx context.Context, q sqldb.Querier, schemaName, table string) ([]ddl.ColumnDef, error) {
			return sqldb.QueryColumns(ctx, q, columnsQuery, schemaName, table)
		},
		Truncate:    func(q string) string { return "DELETE FROM " + q },
		Placeholder: sqldb.QuestionMark,
		MaxParams:   65535,
	}
}

// NewRepository validates dsn with the driver's parser and opens it.
func NewRepository(ctx context.Context, dsn string, timeout time.Duration) (*sqldb.Repository, error) {
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return nil, errors.Wrap(err, "mysql dsn")
	}
	return sqldb.Open(ctx, "mysql", dsn, timeout, Dialect())
}
