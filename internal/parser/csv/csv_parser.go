// Package csv parses a delimited source file into an in-memory RecordSet.
// The first row is the header; header names are normalized into column names
// before any row is read. Structural problems (missing header, ragged rows,
// broken quoting) abort the whole file with a *ParseError.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"ecomstaging/internal/schema"
)

// Options configures the parser. The zero value reads comma-delimited UTF-8.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing whitespace from each field value.
	TrimSpace bool
}

// ParseError reports a structural problem in a source file.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error on line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause see through the wrapper.
func (e *ParseError) Cause() error { return e.Err }

// RecordSet is one parsed file: a normalized header and the raw rows aligned
// to it. Rows are kept positional to avoid a map per row on large files.
type RecordSet struct {
	Header []string
	Rows   [][]string

	// Raw holds the header exactly as read, BOM removed.
	Raw []string

	index map[string]int
}

// Len returns the number of data rows.
func (rs *RecordSet) Len() int { return len(rs.Rows) }

// Index returns the position of column name in the header.
func (rs *RecordSet) Index(name string) (int, bool) {
	i, ok := rs.index[name]
	return i, ok
}

// Field returns the raw value of column name in row, and whether the column
// exists.
func (rs *RecordSet) Field(row int, name string) (string, bool) {
	i, ok := rs.index[name]
	if !ok {
		return "", false
	}
	return rs.Rows[row][i], true
}

// Record returns row as a mapping from normalized column name to raw value.
func (rs *RecordSet) Record(row int) map[string]string {
	m := make(map[string]string, len(rs.Header))
	for i, h := range rs.Header {
		m[h] = rs.Rows[row][i]
	}
	return m
}

// Read consumes r fully and returns the parsed RecordSet. A leading UTF-8
// byte order mark is dropped.
func Read(r io.Reader, opt Options) (*RecordSet, error) {
	r = transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	// Width is fixed by the header row.
	cr.FieldsPerRecord = 0

	raw, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{Line: 1, Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, asParseError(err)
	}

	header, err := normalizeHeaders(raw)
	if err != nil {
		return nil, err
	}

	rs := &RecordSet{
		Header: header,
		Raw:    append([]string(nil), raw...),
		index:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		rs.index[h] = i
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, asParseError(err)
		}
		if opt.TrimSpace {
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

// normalizeHeaders maps each raw header to its column name. Blank headers get
// a positional "col_N" name; two headers landing on the same name is an error.
func normalizeHeaders(raw []string) ([]string, error) {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := schema.NormalizeName(h)
		if name == "" || name == "_" {
			name = fmt.Sprintf("col_%d", i)
		}
		if j, dup := seen[name]; dup {
			return nil, &ParseError{Line: 1, Err: errors.Errorf("headers %q and %q both normalize to %q", raw[j], h, name)}
		}
		seen[name] = i
		out[i] = name
	}
	return out, nil
}

func asParseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Err: pe.Err}
	}
	return errors.Wrap(err, "read csv")
}
