package sqldb

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"ecomstaging/internal/ddl"
	"ecomstaging/internal/schema"
	"ecomstaging/internal/storage"
)

// Repository is a database/sql backed storage.Repository.
type Repository struct {
	db *sql.DB
	d  Dialect
}

var _ storage.Repository = (*Repository)(nil)

// Open opens driverName with dsn and pings it within timeout. A failed ping
// is reported as storage.ErrUnreachable.
func Open(ctx context.Context, driverName, dsn string, timeout time.Duration, d Dialect) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.Errorf("%s: DSN must not be empty", d.Name)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: open", d.Name)
	}
	r := New(db, d)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// New wraps an open *sql.DB.
func New(db *sql.DB, d Dialect) *Repository {
	if d.MaxParams <= 0 {
		d.MaxParams = 999
	}
	if d.Placeholder == nil {
		d.Placeholder = QuestionMark
	}
	return &Repository{db: db, d: d}
}

// DB exposes the underlying handle.
func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return storage.MarkConnErr(errors.Wrapf(err, "%s: %s", r.d.Name, op))
}

// resolve applies the dialect's namespace rules to fqn.
func (r *Repository) resolve(fqn string) string {
	if r.d.Unqualified {
		_, t := ddl.SplitFQN(fqn)
		return t
	}
	return fqn
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storage.Unreachable(errors.Wrapf(err, "%s: ping", r.d.Name))
	}
	return nil
}

func (r *Repository) EnsureSchema(ctx context.Context, name string) error {
	if r.d.CreateSchema == nil || r.d.Unqualified || strings.TrimSpace(name) == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, r.d.CreateSchema(name))
	return r.wrap(err, "create schema "+name)
}

func (r *Repository) TableColumns(ctx context.Context, fqn string) ([]ddl.ColumnDef, bool, error) {
	s, t := ddl.SplitFQN(r.resolve(fqn))
	cols, err := r.d.Columns(ctx, r.db, s, t)
	if err != nil {
		return nil, false, r.wrap(err, "columns of "+fqn)
	}
	return cols, len(cols) > 0, nil
}

func (r *Repository) CreateTable(ctx context.Context, def ddl.TableDef) error {
	def.FQN = r.resolve(def.FQN)
	stmt, err := r.d.Renderer.CreateTable(def)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, stmt)
	return r.wrap(err, "create table "+def.FQN)
}

func (r *Repository) AddColumn(ctx context.Context, fqn string, col ddl.ColumnDef) error {
	stmt, err := r.d.Renderer.AddColumn(r.resolve(fqn), col)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, stmt)
	return r.wrap(err, "add column "+col.Name)
}

func (r *Repository) MapType(t schema.Type) string { return r.d.MapType(t) }

// ReplaceRows empties fqn and inserts rows inside one transaction, so readers
// see either the previous contents or the new ones.
func (r *Repository) ReplaceRows(ctx context.Context, fqn string, cols []ddl.ColumnDef, rows [][]any) (int64, error) {
	if len(cols) == 0 {
		return 0, errors.Errorf("%s: replace %s: columns must not be empty", r.d.Name, fqn)
	}
	fqn = r.resolve(fqn)
	quoted := r.d.Renderer.QuoteFQN(fqn)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, r.wrap(err, "begin tx")
	}
	rollback := func() { _ = tx.Rollback() }

	if _, err := tx.ExecContext(ctx, r.d.Truncate(quoted)); err != nil {
		rollback()
		return 0, r.wrap(err, "truncate "+fqn)
	}

	rows = r.adapt(cols, rows)
	var n int64
	if r.d.BulkLoad != nil {
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		n, err = r.d.BulkLoad(ctx, tx, fqn, names, rows)
	} else {
		n, err = r.insertBatches(ctx, tx, quoted, cols, rows)
	}
	if err != nil {
		rollback()
		return 0, r.wrap(err, "load "+fqn)
	}
	if err := tx.Commit(); err != nil {
		return 0, r.wrap(err, "commit")
	}
	return n, nil
}

func (r *Repository) adapt(cols []ddl.ColumnDef, rows [][]any) [][]any {
	if r.d.Value == nil {
		return rows
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		conv := make([]any, len(row))
		for j, v := range row {
			if v != nil && j < len(cols) {
				v = r.d.Value(cols[j].Type, v)
			}
			conv[j] = v
		}
		out[i] = conv
	}
	return out
}

// insertBatches writes rows with multi-row INSERTs sized to stay under the
// dialect's bind parameter limit.
func (r *Repository) insertBatches(ctx context.Context, tx *sql.Tx, quoted string, cols []ddl.ColumnDef, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = r.d.Renderer.QuoteIdent(c.Name)
	}
	per := r.d.MaxParams / len(cols)
	if per < 1 {
		per = 1
	}
	if per > 500 {
		per = 500
	}

	var inserted int64
	args := make([]any, 0, per*len(cols))
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		var sb strings.Builder
		sb.WriteString("INSERT INTO ")
		sb.WriteString(quoted)
		sb.WriteString(" (")
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString(") VALUES ")

		args = args[:0]
		p := 1
		for i, row := range batch {
			if len(row) != len(cols) {
				return inserted, errors.Errorf("row %d has %d values, want %d", start+i, len(row), len(cols))
			}
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			for j := range row {
				if j > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(r.d.Placeholder(p))
				p++
			}
			sb.WriteByte(')')
			args = append(args, row...)
		}

		res, err := tx.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return inserted, errors.Wrapf(err, "insert rows %d..%d", start, end-1)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		} else {
			inserted += int64(len(batch))
		}
	}
	return inserted, nil
}

func (r *Repository) Close() { _ = r.db.Close() }
