// Package transformer turns the raw string rows of a parsed source file into
// typed values aligned to a dataset's declared columns.
//
// Coercion is lenient: a value that does not parse as its declared type
// becomes NULL and is counted, it never rejects the row. Empty fields are
// NULL for every type.
package transformer

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	pcsv "ecomstaging/internal/parser/csv"
	"ecomstaging/internal/registry"
	"ecomstaging/internal/schema"
)

// Stats counts the values nulled during coercion.
type Stats struct {
	Rows             int
	NullifiedDates   int
	NullifiedNumbers int
}

// Mapping reports how a file header lined up with the declared columns.
type Mapping struct {
	// Missing lists declared columns absent from the header; they load as NULL.
	Missing []string
	// Dropped lists header columns that are not declared; they are not loaded.
	Dropped []string
}

type plannedCol struct {
	name string
	typ  schema.Type
	src  int // header position, -1 when the file lacks the column
}

// Coercer converts raw rows for one dataset. Build it with NewCoercer once
// the header is known.
type Coercer struct {
	cols []plannedCol
}

// NewCoercer resolves every declared column of spec against the header of rs,
// honoring column aliases.
func NewCoercer(spec registry.DatasetSpec, rs *pcsv.RecordSet) (*Coercer, Mapping) {
	var m Mapping
	claimed := make(map[int]bool, len(spec.Columns))
	cols := make([]plannedCol, 0, len(spec.Columns))

	for _, c := range spec.Columns {
		pc := plannedCol{name: c.Name, typ: c.Type, src: -1}
		for _, spelling := range append([]string{c.Name}, c.Aliases...) {
			if i, ok := rs.Index(schema.NormalizeName(spelling)); ok {
				pc.src = i
				break
			}
		}
		if pc.src < 0 {
			m.Missing = append(m.Missing, c.Name)
		} else {
			claimed[pc.src] = true
		}
		cols = append(cols, pc)
	}
	for i, h := range rs.Header {
		if !claimed[i] {
			m.Dropped = append(m.Dropped, h)
		}
	}
	return &Coercer{cols: cols}, m
}

// Width is the number of values per output row.
func (c *Coercer) Width() int { return len(c.cols) }

// Row converts one raw row into declared-column order. Nil entries are NULL.
func (c *Coercer) Row(raw []string, st *Stats) []any {
	out := make([]any, len(c.cols))
	for i, pc := range c.cols {
		if pc.src < 0 || pc.src >= len(raw) {
			continue
		}
		v := raw[pc.src]
		if v == "" {
			continue
		}
		if pc.typ == schema.Text {
			// Text keeps the value untrimmed, whitespace-only included.
			out[i] = v
			continue
		}
		s := strings.TrimSpace(v)
		if s == "" {
			continue
		}
		switch pc.typ {
		case schema.Integer:
			if v, ok := toInt(s); ok {
				out[i] = v
			} else {
				st.NullifiedNumbers++
			}
		case schema.Decimal:
			if v, ok := toDecimal(s); ok {
				out[i] = v
			} else {
				st.NullifiedNumbers++
			}
		case schema.Timestamp:
			if v, ok := ParseTimestamp(s); ok {
				out[i] = v
			} else {
				st.NullifiedDates++
			}
		}
	}
	st.Rows++
	return out
}

// Apply converts every row of rs.
func (c *Coercer) Apply(rs *pcsv.RecordSet) ([][]any, Stats) {
	var st Stats
	out := make([][]any, 0, rs.Len())
	for _, raw := range rs.Rows {
		out = append(out, c.Row(raw, &st))
	}
	return out, st
}

// toInt parses integers and accepts integral floats such as "42.0".
func toInt(s string) (int64, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if strings.IndexByte(s, '.') >= 0 {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
	}
	return 0, false
}

var (
	plainDecimal = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	expDecimal   = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)[eE][+-]?\d+$`)
)

// toDecimal validates s as a base-10 number and returns it in plain notation
// without losing digits.
func toDecimal(s string) (string, bool) {
	switch {
	case plainDecimal.MatchString(s):
		s = strings.TrimPrefix(s, "+")
		neg := strings.HasPrefix(s, "-")
		s = strings.TrimPrefix(s, "-")
		if strings.HasPrefix(s, ".") {
			s = "0" + s
		}
		s = strings.TrimSuffix(s, ".")
		if neg {
			s = "-" + s
		}
		return s, true
	case expDecimal.MatchString(s):
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return "", false
		}
		return ratString(r), true
	default:
		return "", false
	}
}

// ratString renders a terminating decimal exactly.
func ratString(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	// Denominator is 2^a*5^b for decimal input; scale until integral.
	prec := 0
	scaled := new(big.Rat).Set(r)
	ten := big.NewRat(10, 1)
	for !scaled.IsInt() && prec < 1000 {
		scaled.Mul(scaled, ten)
		prec++
	}
	return r.FloatString(prec)
}

// timestampLayouts are tried in order. ISO forms come first; slash dates are
// read month-first.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"20060102",
}

// ParseTimestamp parses s against the known layouts. Values without a zone
// are returned as UTC wall-clock time.
func ParseTimestamp(s string) (time.Time, bool) {
	if t, ok := parseISODateTime(s); ok {
		return t, true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseISODateTime is an allocation-free path for "2006-01-02 15:04:05",
// the layout every Olist timestamp uses.
func parseISODateTime(s string) (time.Time, bool) {
	if len(s) != 19 || s[4] != '-' || s[7] != '-' || s[10] != ' ' || s[13] != ':' || s[16] != ':' {
		return time.Time{}, false
	}
	num := func(i, n int) (int, bool) {
		v := 0
		for _, c := range []byte(s[i : i+n]) {
			if c < '0' || c > '9' {
				return 0, false
			}
			v = v*10 + int(c-'0')
		}
		return v, true
	}
	year, ok1 := num(0, 4)
	mon, ok2 := num(5, 2)
	day, ok3 := num(8, 2)
	hh, ok4 := num(11, 2)
	mm, ok5 := num(14, 2)
	ss, ok6 := num(17, 2)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return time.Time{}, false
	}
	if mon < 1 || mon > 12 || day < 1 || hh > 23 || mm > 59 || ss > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(mon), day, hh, mm, ss, 0, time.UTC)
	// time.Date normalizes overflow such as Feb 30; reject it.
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
