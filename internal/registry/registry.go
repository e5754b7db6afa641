// Package registry holds the static catalog of datasets ingested into the
// staging schema. Each DatasetSpec binds one source file to one target table
// and declares the typed column list that doubles as parser contract and
// table DDL.
//
// A Registry is built once at process start, validated eagerly, and never
// mutated afterwards; Specs returns a copy so callers cannot reorder or edit
// the catalog.
package registry

import (
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"

	"ecomstaging/internal/schema"
)

// DatasetSpec describes one flat file and the staging table it feeds.
type DatasetSpec struct {
	// SourceFile is the file name relative to the data directory.
	SourceFile string

	// TargetTable is the unqualified table name; the staging schema is
	// supplied by configuration.
	TargetTable string

	// Columns is the ordered, typed column list of the target table.
	Columns []schema.Column

	// DateColumns names the columns whose values are parsed as timestamps.
	DateColumns []string
}

// Name is the identifier used in logs and metrics.
func (d DatasetSpec) Name() string { return d.TargetTable }

// IsDateColumn reports whether name is listed in DateColumns.
func (d DatasetSpec) IsDateColumn(name string) bool {
	for _, c := range d.DateColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the declared column called name.
func (d DatasetSpec) Column(name string) (schema.Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return schema.Column{}, false
}

// clone returns a deep copy so the registry's slices are never shared.
func (d DatasetSpec) clone() DatasetSpec {
	out := d
	out.Columns = make([]schema.Column, len(d.Columns))
	for i, c := range d.Columns {
		c.Aliases = append([]string(nil), c.Aliases...)
		out.Columns[i] = c
	}
	out.DateColumns = append([]string(nil), d.DateColumns...)
	return out
}

// Validate checks the invariants of a single spec.
func (d DatasetSpec) Validate() error {
	if strings.TrimSpace(d.SourceFile) == "" {
		return errors.New("source file is empty")
	}
	if path.IsAbs(d.SourceFile) || strings.Contains(d.SourceFile, "..") {
		return errors.Errorf("source file %q must be relative to the data directory", d.SourceFile)
	}
	if !schema.IsNormalized(d.TargetTable) {
		return errors.Errorf("target table %q is not a bare normalized identifier", d.TargetTable)
	}
	if len(d.Columns) == 0 {
		return errors.Errorf("%s: no columns declared", d.TargetTable)
	}

	// Every spelling that can reach a column, keyed by its normalized form.
	seen := make(map[string]string, len(d.Columns))
	claim := func(spelling, owner string) error {
		n := schema.NormalizeName(spelling)
		if prev, ok := seen[n]; ok && prev != owner {
			return errors.Errorf("%s: %q and %q both normalize to %q", d.TargetTable, prev, owner, n)
		}
		seen[n] = owner
		return nil
	}

	for _, c := range d.Columns {
		if !schema.IsNormalized(c.Name) {
			return errors.Errorf("%s: column %q is not normalized (want %q)", d.TargetTable, c.Name, schema.NormalizeName(c.Name))
		}
		if !c.Type.Valid() {
			return errors.Errorf("%s: column %q has no type", d.TargetTable, c.Name)
		}
		if prev, ok := seen[c.Name]; ok && prev == c.Name {
			return errors.Errorf("%s: column %q declared twice", d.TargetTable, c.Name)
		}
		if err := claim(c.Name, c.Name); err != nil {
			return err
		}
		for _, a := range c.Aliases {
			if err := claim(a, c.Name); err != nil {
				return err
			}
		}
	}

	for _, dc := range d.DateColumns {
		c, ok := d.Column(dc)
		if !ok {
			return errors.Errorf("%s: date column %q is not a declared column", d.TargetTable, dc)
		}
		if c.Type != schema.Timestamp {
			return errors.Errorf("%s: date column %q is declared %s, want timestamp", d.TargetTable, dc, c.Type)
		}
	}
	for _, c := range d.Columns {
		if c.Type == schema.Timestamp && !d.IsDateColumn(c.Name) {
			return errors.Errorf("%s: timestamp column %q is missing from date columns", d.TargetTable, c.Name)
		}
	}
	return nil
}

// Registry is an ordered, immutable list of dataset specs.
type Registry struct {
	specs []DatasetSpec
}

// New validates specs and returns a Registry preserving their order. It fails
// when the list is empty, when any spec is invalid, or when two specs share a
// source file or target table.
func New(specs ...DatasetSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, errors.New("registry: no datasets declared")
	}

	files := make(map[string]bool, len(specs))
	tables := make(map[string]bool, len(specs))
	out := make([]DatasetSpec, 0, len(specs))

	for i, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, errors.Wrapf(err, "registry: dataset #%d", i)
		}
		if files[s.SourceFile] {
			return nil, errors.Errorf("registry: source file %q declared twice", s.SourceFile)
		}
		if tables[s.TargetTable] {
			return nil, errors.Errorf("registry: target table %q declared twice", s.TargetTable)
		}
		files[s.SourceFile] = true
		tables[s.TargetTable] = true
		out = append(out, s.clone())
	}
	return &Registry{specs: out}, nil
}

// MustNew is New for static catalogs; it panics on an invalid catalog.
func MustNew(specs ...DatasetSpec) *Registry {
	r, err := New(specs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Specs returns a copy of the catalog in declared order.
func (r *Registry) Specs() []DatasetSpec {
	out := make([]DatasetSpec, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.clone()
	}
	return out
}

// Len returns the number of datasets.
func (r *Registry) Len() int { return len(r.specs) }

// Lookup returns the spec whose target table is table.
func (r *Registry) Lookup(table string) (DatasetSpec, bool) {
	for _, s := range r.specs {
		if s.TargetTable == table {
			return s.clone(), true
		}
	}
	return DatasetSpec{}, false
}

// SourceFiles lists the expected file names in order.
func (r *Registry) SourceFiles() []string {
	out := make([]string, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.SourceFile
	}
	return out
}

// String renders a one-line-per-dataset summary.
func (r *Registry) String() string {
	var sb strings.Builder
	for _, s := range r.specs {
		fmt.Fprintf(&sb, "%s <- %s (%d columns", s.TargetTable, s.SourceFile, len(s.Columns))
		if len(s.DateColumns) > 0 {
			fmt.Fprintf(&sb, ", dates: %s", strings.Join(s.DateColumns, ", "))
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}
