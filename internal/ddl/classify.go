package ddl

import (
	"strings"

	"ecomstaging/internal/schema"
)

// Classify maps a physical type reported by a database back to the semantic
// type it stores. Length, precision and zone qualifiers are ignored, so
// NVARCHAR(MAX), character varying(255) and text all classify as Text.
// Unrecognized types return schema.Unknown.
func Classify(physical string) schema.Type {
	t := strings.ToLower(strings.TrimSpace(physical))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimSuffix(t, " unsigned")

	switch {
	case strings.HasPrefix(t, "timestamp"), strings.HasPrefix(t, "datetime"),
		t == "date", t == "smalldatetime":
		return schema.Timestamp
	}

	switch t {
	case "text", "varchar", "character varying", "char", "character", "bpchar",
		"nvarchar", "nchar", "ntext", "tinytext", "mediumtext", "longtext",
		"string", "clob", "citext":
		return schema.Text
	case "bigint", "int", "integer", "int2", "int4", "int8", "smallint",
		"tinyint", "mediumint", "bigserial", "serial":
		return schema.Integer
	case "numeric", "decimal", "number", "real", "double", "double precision",
		"float", "float4", "float8", "money":
		return schema.Decimal
	default:
		return schema.Unknown
	}
}
