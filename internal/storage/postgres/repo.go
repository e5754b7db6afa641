// Package postgres implements the default storage.Repository on pgx v5.
// Replacement is TRUNCATE followed by COPY, both inside one transaction, so a
// failed load leaves the previous contents in place.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"ecomstaging/internal/ddl"
	"ecomstaging/internal/schema"
	"ecomstaging/internal/storage"
)

// copyBatchSize bounds rows per COPY call within the replace transaction.
const copyBatchSize = 50000

// MapType maps a semantic type onto a Postgres column type.
//
//	Text      -> TEXT
//	Integer   -> BIGINT
//	Decimal   -> NUMERIC
//	Timestamp -> TIMESTAMP (no time zone)
func MapType(t schema.Type) string {
	switch t {
	case schema.Integer:
		return "BIGINT"
	case schema.Decimal:
		return "NUMERIC"
	case schema.Timestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

var renderer = ddl.Renderer{
	Dialect:     "postgres",
	QuoteIdent:  ddl.DoubleQuote,
	IfNotExists: true,
}

const columnsQuery = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND table_name = $2
ORDER BY ordinal_position`

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository opens a pool for dsn and pings it. Dial and ping failures
// are reported as storage.ErrUnreachable.
func NewRepository(ctx context.Context, dsn string, timeout time.Duration) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres dsn")
	}
	if timeout > 0 {
		cfg.ConnConfig.ConnectTimeout = timeout
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, storage.Unreachable(errors.Wrap(err, "pgxpool"))
	}
	r := &Repository{pool: pool}
	if err := r.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// wrap annotates err and marks transport failures unreachable. Server errors
// keep their detail and SQLSTATE in the message.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return errors.Wrapf(err, "%s (%s: %s)", op, pgErr.SQLState(), pgErr.Detail)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return storage.Unreachable(errors.Wrap(err, op))
	}
	return storage.MarkConnErr(errors.Wrap(err, op))
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return storage.Unreachable(errors.Wrap(err, "postgres: ping"))
	}
	return nil
}

func (r *Repository) EnsureSchema(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+ddl.DoubleQuote(name))
	return wrap(err, "create schema "+name)
}

func (r *Repository) TableColumns(ctx context.Context, fqn string) ([]ddl.ColumnDef, bool, error) {
	s, t := ddl.SplitFQN(fqn)
	rows, err := r.pool.Query(ctx, columnsQuery, s, t)
	if err != nil {
		return nil, false, wrap(err, "columns of "+fqn)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ddl.ColumnDef, error) {
		var name, typ string
		if err := row.Scan(&name, &typ); err != nil {
			return ddl.ColumnDef{}, err
		}
		return ddl.ColumnDef{Name: name, SQLType: typ, Type: ddl.Classify(typ), Nullable: true}, nil
	})
	if err != nil {
		return nil, false, wrap(err, "columns of "+fqn)
	}
	return out, len(out) > 0, nil
}

func (r *Repository) CreateTable(ctx context.Context, def ddl.TableDef) error {
	stmt, err := renderer.CreateTable(def)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, stmt)
	return wrap(err, "create table "+def.FQN)
}

func (r *Repository) AddColumn(ctx context.Context, fqn string, col ddl.ColumnDef) error {
	stmt, err := renderer.AddColumn(fqn, col)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, stmt)
	return wrap(err, "add column "+col.Name)
}

func (r *Repository) MapType(t schema.Type) string { return MapType(t) }

// ReplaceRows truncates fqn and COPYs rows into it inside one transaction.
func (r *Repository) ReplaceRows(ctx context.Context, fqn string, cols []ddl.ColumnDef, rows [][]any) (int64, error) {
	if len(cols) == 0 {
		return 0, errors.Errorf("postgres: replace %s: columns must not be empty", fqn)
	}
	rows, err := encodeRows(cols, rows)
	if err != nil {
		return 0, errors.Wrapf(err, "postgres: replace %s", fqn)
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+renderer.QuoteFQN(fqn)); err != nil {
		return 0, wrap(err, "truncate "+fqn)
	}

	ident := identifier(fqn)
	n, err := LoadBatches(ctx, names, rows, copyBatchSize, func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		return tx.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(batch))
	})
	if err != nil {
		return 0, wrap(err, "copy into "+fqn)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, wrap(err, "commit")
	}
	return n, nil
}

func (r *Repository) Close() { r.pool.Close() }

func identifier(fqn string) pgx.Identifier {
	s, t := ddl.SplitFQN(fqn)
	if s == "" {
		return pgx.Identifier{t}
	}
	return pgx.Identifier{s, t}
}

// encodeRows converts decimal strings into pgtype.Numeric for the binary COPY
// protocol. Other values pass through.
func encodeRows(cols []ddl.ColumnDef, rows [][]any) ([][]any, error) {
	var decimals []int
	for i, c := range cols {
		if c.Type == schema.Decimal {
			decimals = append(decimals, i)
		}
	}
	if len(decimals) == 0 {
		return rows, nil
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		conv := append([]any(nil), row...)
		for _, j := range decimals {
			if j >= len(conv) || conv[j] == nil {
				continue
			}
			s, ok := conv[j].(string)
			if !ok {
				continue
			}
			var n pgtype.Numeric
			if err := n.Scan(s); err != nil {
				return nil, errors.Wrapf(err, "row %d column %s", i, cols[j].Name)
			}
			conv[j] = n
		}
		out[i] = conv
	}
	return out, nil
}
