package provision

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"ecomstaging/internal/ddl"
	"ecomstaging/internal/schema"
	"ecomstaging/internal/storage"
	_ "ecomstaging/internal/storage/sqlite"
)

var customers = []schema.Column{
	{Name: "customer_id", Type: schema.Text},
	{Name: "customer_zip_code_prefix", Type: schema.Text},
	{Name: "customer_state", Type: schema.Text},
}

func newSQLite(t *testing.T) storage.Repository {
	t.Helper()
	repo, err := storage.New(context.Background(), storage.Config{
		Kind:           "sqlite",
		DSN:            filepath.Join(t.TempDir(), "p.db"),
		ConnectTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func TestEnsure_IdempotentCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log, hook := logtest.NewNullLogger()
	p := New(newSQLite(t), log)

	act, err := p.Ensure(ctx, "dbt_dev.stg_customers", customers)
	if err != nil || act != Created {
		t.Fatalf("first Ensure = %v, %v; want created", act, err)
	}
	act, err = p.Ensure(ctx, "dbt_dev.stg_customers", customers)
	if err != nil || act != Unchanged {
		t.Fatalf("second Ensure = %v, %v; want unchanged", act, err)
	}
	if n := len(hook.AllEntries()); n != 1 {
		t.Fatalf("log entries = %d, want 1 (create only)", n)
	}
}

func TestEnsure_AddsMissingColumns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log, hook := logtest.NewNullLogger()
	repo := newSQLite(t)
	p := New(repo, log)

	if _, err := p.Ensure(ctx, "dbt_dev.stg_customers", customers[:1]); err != nil {
		t.Fatalf("seed: %v", err)
	}
	act, err := p.Ensure(ctx, "dbt_dev.stg_customers", customers)
	if err != nil || act != Altered {
		t.Fatalf("Ensure = %v, %v; want altered", act, err)
	}

	cols, _, _ := repo.TableColumns(ctx, "dbt_dev.stg_customers")
	if len(cols) != 3 {
		t.Fatalf("columns = %d, want 3", len(cols))
	}
	if e := hook.LastEntry(); e.Level != logrus.WarnLevel || e.Data["table"] != "dbt_dev.stg_customers" {
		t.Fatalf("last entry = %v %v", e.Level, e.Data)
	}
}

// fakeRepo reports a fixed existing table.
type fakeRepo struct {
	storage.Repository
	existing []ddl.ColumnDef
	inspect  error
	created  bool
}

func (f *fakeRepo) TableColumns(context.Context, string) ([]ddl.ColumnDef, bool, error) {
	return f.existing, len(f.existing) > 0, f.inspect
}
func (f *fakeRepo) CreateTable(context.Context, ddl.TableDef) error { f.created = true; return nil }
func (f *fakeRepo) MapType(t schema.Type) string                  { return strings.ToUpper(t.String()) }

func TestEnsure_Conflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing []ddl.ColumnDef
		want     []string
	}{
		{
			name: "type conflict",
			existing: []ddl.ColumnDef{
				{Name: "customer_id", Type: schema.Text, SQLType: "text"},
				{Name: "customer_zip_code_prefix", Type: schema.Integer, SQLType: "bigint"},
				{Name: "customer_state", Type: schema.Text, SQLType: "text"},
			},
			want: []string{"customer_zip_code_prefix: declared text, found bigint"},
		},
		{
			name: "undeclared extra column",
			existing: []ddl.ColumnDef{
				{Name: "customer_id", Type: schema.Text, SQLType: "text"},
				{Name: "legacy_flag", Type: schema.Integer, SQLType: "int"},
			},
			want: []string{"legacy_flag: undeclared column of type int"},
		},
		{
			name: "unknown physical type",
			existing: []ddl.ColumnDef{
				{Name: "CUSTOMER_ID", Type: schema.Unknown, SQLType: "bytea"},
			},
			want: []string{"customer_id: declared text, found bytea"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			log, _ := logtest.NewNullLogger()
			repo := &fakeRepo{existing: tt.existing}
			_, err := New(repo, log).Ensure(context.Background(), "dbt_dev.stg_customers", customers)

			var sce *SchemaConflictError
			if !errors.As(err, &sce) {
				t.Fatalf("Ensure error = %v, want *SchemaConflictError", err)
			}
			if sce.Table != "dbt_dev.stg_customers" {
				t.Fatalf("Table = %q", sce.Table)
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Fatalf("error %q missing %q", err, w)
				}
			}
			if repo.created {
				t.Fatalf("CreateTable called on an existing table")
			}
		})
	}
}

func TestEnsure_InspectErrorPropagates(t *testing.T) {
	t.Parallel()

	log, _ := logtest.NewNullLogger()
	repo := &fakeRepo{inspect: storage.Unreachable(errors.New("connection reset"))}
	_, err := New(repo, log).Ensure(context.Background(), "t", customers)
	if !storage.IsUnreachable(err) {
		t.Fatalf("err = %v, want unreachable preserved", err)
	}
}
