// Package provision makes sure a staging table exists with the declared
// columns before data is written to it.
//
// Ensure is check-then-create: an absent table is created, a table missing
// declared columns gets them added, and a table whose columns disagree with
// the declaration at the semantic-type level is a *SchemaConflictError.
// Calling Ensure repeatedly with the same columns is a no-op.
package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ecomstaging/internal/ddl"
	"ecomstaging/internal/schema"
	"ecomstaging/internal/storage"
)

// Conflict describes one irreconcilable column.
type Conflict struct {
	Column string
	Want   schema.Type // Unknown when the column is not declared
	Got    string      // physical type in the store
}

func (c Conflict) String() string {
	if c.Want == schema.Unknown {
		return fmt.Sprintf("%s: undeclared column of type %s", c.Column, c.Got)
	}
	return fmt.Sprintf("%s: declared %s, found %s", c.Column, c.Want, c.Got)
}

// SchemaConflictError reports an existing table incompatible with the declared
// columns. It is fatal for the dataset, not for the run.
type SchemaConflictError struct {
	Table     string
	Conflicts []Conflict
}

func (e *SchemaConflictError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = c.String()
	}
	return fmt.Sprintf("schema conflict on %s: %s", e.Table, strings.Join(parts, "; "))
}

// Action says what Ensure did.
type Action int

const (
	Unchanged Action = iota
	Created
	Altered
)

func (a Action) String() string {
	switch a {
	case Created:
		return "created"
	case Altered:
		return "altered"
	default:
		return "unchanged"
	}
}

// Provisioner reconciles tables in one repository.
type Provisioner struct {
	repo storage.Repository
	log  logrus.FieldLogger
}

// New returns a Provisioner over repo.
func New(repo storage.Repository, log logrus.FieldLogger) *Provisioner {
	return &Provisioner{repo: repo, log: log}
}

// Ensure makes table (schema-qualified) match cols.
func (p *Provisioner) Ensure(ctx context.Context, table string, cols []schema.Column) (Action, error) {
	def := ddl.Define(table, cols, p.repo.MapType)

	existing, ok, err := p.repo.TableColumns(ctx, table)
	if err != nil {
		return Unchanged, errors.Wrapf(err, "inspect %s", table)
	}
	if !ok {
		if err := p.repo.CreateTable(ctx, def); err != nil {
			return Unchanged, errors.Wrapf(err, "create %s", table)
		}
		p.log.WithFields(logrus.Fields{"table": table, "columns": len(cols)}).Info("created table")
		return Created, nil
	}

	missing, conflict := diff(table, def, existing)
	if conflict != nil {
		return Unchanged, conflict
	}
	for _, c := range missing {
		if err := p.repo.AddColumn(ctx, table, c); err != nil {
			return Unchanged, errors.Wrapf(err, "add %s.%s", table, c.Name)
		}
		p.log.WithFields(logrus.Fields{"table": table, "column": c.Name, "type": c.SQLType}).Warn("added missing column")
	}
	if len(missing) > 0 {
		return Altered, nil
	}
	return Unchanged, nil
}

// diff compares declared columns with the store's. Names match
// case-insensitively since some stores fold identifier case.
func diff(table string, def ddl.TableDef, existing []ddl.ColumnDef) ([]ddl.ColumnDef, *SchemaConflictError) {
	have := make(map[string]ddl.ColumnDef, len(existing))
	for _, c := range existing {
		have[strings.ToLower(c.Name)] = c
	}
	declared := make(map[string]bool, len(def.Columns))

	var (
		missing   []ddl.ColumnDef
		conflicts []Conflict
	)
	for _, want := range def.Columns {
		key := strings.ToLower(want.Name)
		declared[key] = true
		got, ok := have[key]
		if !ok {
			missing = append(missing, want)
			continue
		}
		if got.Type != want.Type {
			conflicts = append(conflicts, Conflict{Column: want.Name, Want: want.Type, Got: got.SQLType})
		}
	}
	for _, c := range existing {
		if !declared[strings.ToLower(c.Name)] {
			conflicts = append(conflicts, Conflict{Column: c.Name, Got: c.SQLType})
		}
	}
	if len(conflicts) > 0 {
		return nil, &SchemaConflictError{Table: table, Conflicts: conflicts}
	}
	return missing, nil
}
