package ddl

import (
	"strings"

	"ecomstaging/internal/schema"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - Type: semantic type the column stores
//   - SQLType: physical type in the target dialect (e.g., TEXT, BIGINT)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	Type       schema.Type
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name (FQN) and an ordered list of columns. The FQN
// is in dotted form ("schema.table") and is quoted by the renderer.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Define builds a TableDef for declared columns using mapType to pick the
// physical type. Staging columns are always nullable.
func Define(fqn string, cols []schema.Column, mapType func(schema.Type) string) TableDef {
	t := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(cols))}
	for i, c := range cols {
		t.Columns[i] = ColumnDef{
			Name:     c.Name,
			Type:     c.Type,
			SQLType:  mapType(c.Type),
			Nullable: true,
		}
	}
	return t
}

// Names returns the column names in order.
func (t TableDef) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// SplitFQN splits "schema.table" into its parts. A bare name yields an empty
// schema.
func SplitFQN(fqn string) (schemaName, table string) {
	fqn = strings.TrimSpace(fqn)
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "", fqn
}

// JoinFQN is the inverse of SplitFQN.
func JoinFQN(schemaName, table string) string {
	if schemaName == "" {
		return table
	}
	return schemaName + "." + table
}
