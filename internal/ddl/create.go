// Package ddl defines a small, backend-agnostic model for SQL DDL and a
// Renderer that turns it into dialect-specific statements.
//
// The model stays generic; a backend supplies its identifier quoting and the
// clauses it supports through Renderer. ColumnDef.Default is raw SQL and the
// caller is responsible for its safety.
package ddl

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Renderer renders CREATE TABLE and ADD COLUMN statements for one dialect.
type Renderer struct {
	// Dialect names the backend in error messages.
	Dialect string

	// QuoteIdent quotes one identifier segment. Required.
	QuoteIdent func(string) string

	// IfNotExists emits CREATE TABLE IF NOT EXISTS.
	IfNotExists bool

	// Guard, when set, wraps the CREATE TABLE statement for dialects that
	// lack IF NOT EXISTS.
	Guard func(quotedFQN, stmt string) string

	// AddKeyword is the ALTER TABLE clause adding a column. Defaults to
	// "ADD COLUMN".
	AddKeyword string
}

func (r Renderer) errorf(format string, args ...any) error {
	prefix := "ddl"
	if r.Dialect != "" {
		prefix = r.Dialect + " ddl"
	}
	return errors.Errorf(prefix+": "+format, args...)
}

// QuoteFQN quotes every dotted segment of fqn, skipping empty ones.
//
//	"dbt_dev.stg_orders" -> "dbt_dev"."stg_orders"
//	"stg_orders"         -> "stg_orders"
func (r Renderer) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, r.QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

// column renders "<name> <type> [NOT NULL] [DEFAULT <expr>]".
func (r Renderer) column(fqn string, c ColumnDef) (string, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return "", r.errorf("column with empty name in table %s", fqn)
	}
	typ := strings.TrimSpace(c.SQLType)
	if typ == "" {
		return "", r.errorf("column %s missing SQLType", name)
	}

	var sb strings.Builder
	sb.WriteString(r.QuoteIdent(name))
	sb.WriteByte(' ')
	sb.WriteString(typ)
	if !c.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if def := strings.TrimSpace(c.Default); def != "" {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(def)
	}
	return sb.String(), nil
}

// CreateTable renders a CREATE TABLE statement for t:
//
//	CREATE TABLE [IF NOT EXISTS] <fqn> (
//	  <col1-def>,
//	  <col2-def>,
//	  [PRIMARY KEY (<pk-cols>)]
//	);
//
// Primary-key columns are collected into a trailing table constraint.
func (r Renderer) CreateTable(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", r.errorf("table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", r.errorf("at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def, err := r.column(fqn, c)
		if err != nil {
			return "", err
		}
		cols = append(cols, def)
		if c.PrimaryKey {
			pks = append(pks, r.QuoteIdent(strings.TrimSpace(c.Name)))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	verb := "CREATE TABLE "
	if r.IfNotExists {
		verb = "CREATE TABLE IF NOT EXISTS "
	}
	quoted := r.QuoteFQN(fqn)
	stmt := fmt.Sprintf("%s%s (\n  %s\n);", verb, quoted, strings.Join(cols, ",\n  "))
	if r.Guard != nil {
		stmt = r.Guard(quoted, stmt)
	}
	return stmt, nil
}

// AddColumn renders an ALTER TABLE statement adding c to fqn.
func (r Renderer) AddColumn(fqn string, c ColumnDef) (string, error) {
	fqn = strings.TrimSpace(fqn)
	if fqn == "" {
		return "", r.errorf("table FQN must not be empty")
	}
	def, err := r.column(fqn, c)
	if err != nil {
		return "", err
	}
	kw := r.AddKeyword
	if kw == "" {
		kw = "ADD COLUMN"
	}
	return fmt.Sprintf("ALTER TABLE %s %s %s;", r.QuoteFQN(fqn), kw, def), nil
}

// DoubleQuote quotes an identifier ANSI style, doubling embedded quotes.
//
//	name     -> "name"
//	we"ird   -> "we""ird"
func DoubleQuote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// BracketQuote quotes an identifier SQL Server style.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func BracketQuote(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// BacktickQuote quotes an identifier MySQL style.
func BacktickQuote(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}
