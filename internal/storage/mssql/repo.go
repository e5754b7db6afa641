// Package mssql implements a Microsoft SQL Server storage.Repository. Rows are
// written with the go-mssqldb bulk copy API after a TRUNCATE, both inside one
// transaction; SQL Server rolls back TRUNCATE with the transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/pkg/errors"

	"ecomstaging/internal/ddl"
	"ecomstaging/internal/schema"
	"ecomstaging/internal/storage/sqldb"
)

// MapType maps a semantic type onto a SQL Server column type.
//
//	Text      -> NVARCHAR(MAX)
//	Integer   -> BIGINT
//	Decimal   -> DECIMAL(38, 10)
//	Timestamp -> DATETIME2
func MapType(t schema.Type) string {
	switch t {
	case schema.Integer:
		return "BIGINT"
	case schema.Decimal:
		return "DECIMAL(38, 10)"
	case schema.Timestamp:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

const columnsQuery = `SELECT COLUMN_NAME, DATA_TYPE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(NULLIF(@p1, ''), SCHEMA_NAME()) AND TABLE_NAME = @p2
ORDER BY ORDINAL_POSITION`

// guard wraps CREATE TABLE since T-SQL has no CREATE TABLE IF NOT EXISTS:
//
//	IF OBJECT_ID(N'[schema].[table]', N'U') IS NULL
//	BEGIN
//	  CREATE TABLE ...
//	END;
func guard(quotedFQN, stmt string) string {
	lit := strings.ReplaceAll(quotedFQN, "'", "''")
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s\nEND;", lit, stmt)
}

func createSchema(name string) string {
	lit := strings.ReplaceAll(name, "'", "''")
	inner := strings.ReplaceAll("CREATE SCHEMA "+ddl.BracketQuote(name), "'", "''")
	return fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC(N'%s');", lit, inner)
}

// Dialect returns the SQL Server dialect.
func Dialect() sqldb.Dialect {
	r := ddl.Renderer{
		Dialect:    "mssql",
		QuoteIdent: ddl.BracketQuote,
		Guard:      guard,
		AddKeyword: "ADD",
	}
	return sqldb.Dialect{
		Name:         "mssql",
		Renderer:     r,
		MapType:      MapType,
		CreateSchema: createSchema,
		Columns: func(ctx context.Context, q sqldb.Querier, schemaName, table string) ([]ddl.ColumnDef, error) {
			return sqldb.QueryColumns(ctx, q, columnsQuery, schemaName, table)
		},
		Truncate:    func(q string) string { return "TRUNCATE TABLE " + q },
		Placeholder: sqldb.AtP,
		MaxParams:   2000,
		BulkLoad: func(ctx context.Context, tx *sql.Tx, fqn string, cols []string, rows [][]any) (int64, error) {
			return bulkCopy(ctx, tx, r.QuoteFQN(fqn), cols, rows)
		},
	}
}

// bulkCopy streams rows through mssql.CopyIn on tx.
func bulkCopy(ctx context.Context, tx *sql.Tx, quotedFQN string, cols []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(quotedFQN, mssql.BulkOptions{Tablock: true}, cols...))
	if err != nil {
		return 0, errors.Wrap(err, "prepare bulk")
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, errors.Wrapf(err, "bulk row %d", i)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, errors.Wrap(err, "bulk finalize")
	}
	return res.RowsAffected()
}

// NewRepository validates dsn with msdsn and opens it.
func NewRepository(ctx context.Context, dsn string, timeout time.Duration) (*sqldb.Repository, error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, errors.Wrap(err, "mssql dsn")
	}
	return sqldb.Open(ctx, "sqlserver", dsn, timeout, Dialect())
}
