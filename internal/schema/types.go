// Package schema defines the semantic column types shared by the dataset
// registry, the coercion stage, and every storage backend, plus the header
// normalization rule used to turn raw CSV headers into column names.
//
// Semantic types are deliberately coarse. Backends map each one onto a
// physical SQL type (see the MapType functions under internal/storage) and
// compare existing tables at this level, so "double precision" and "numeric"
// are both Decimal for the purpose of schema compatibility.
package schema

import (
	"strings"

	"github.com/pkg/errors"
)

// Type is the semantic type of a staging column.
type Type int

const (
	// Unknown is returned when a physical type cannot be classified.
	Unknown Type = iota
	// Text is a variable-length string.
	Text
	// Integer is a 64-bit signed integer.
	Integer
	// Decimal is an arbitrary-precision numeric value.
	Decimal
	// Timestamp is a date-time without an enforced time zone.
	Timestamp
)

var typeNames = map[Type]string{
	Unknown:   "unknown",
	Text:      "text",
	Integer:   "integer",
	Decimal:   "decimal",
	Timestamp: "timestamp",
}

// String returns the lower-case name of t.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "unknown"
}

// Valid reports whether t is one of the four declarable types.
func (t Type) Valid() bool { return t >= Text && t <= Timestamp }

// ParseType parses a semantic type name. Accepted spellings are the names
// returned by String plus a few common synonyms ("string", "int", "numeric",
// "datetime").
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string":
		return Text, nil
	case "integer", "int", "bigint":
		return Integer, nil
	case "decimal", "numeric":
		return Decimal, nil
	case "timestamp", "datetime":
		return Timestamp, nil
	}
	return Unknown, errors.Errorf("schema: unknown type %q", s)
}

// Column is a declared staging column: a normalized name plus its semantic
// type. Aliases lists additional source header spellings (already normalized
// or not) that feed the same column.
type Column struct {
	Name    string
	Type    Type
	Aliases []string
}

// Names returns the declared names of cols in order.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
