// Package storage defines the backend-agnostic Repository used by the
// ingestion core and a small factory that backends register themselves with.
//
// Backends live in sub-packages (postgres, mssql, mysql, sqlite) and register
// in init; importing internal/storage/all wires every one of them.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"ecomstaging/internal/ddl"
	"ecomstaging/internal/schema"
)

// Repository is the relational store behind the staging schema. A Repository
// owns one connection pool and is not shared across runs.
type Repository interface {
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// EnsureSchema creates the namespace holding staging tables if absent.
	EnsureSchema(ctx context.Context, name string) error

	// TableColumns returns the columns of fqn in ordinal order. ok is false
	// when the table does not exist. ColumnDef.Type is the classified
	// semantic type of the physical column.
	TableColumns(ctx context.Context, fqn string) (cols []ddl.ColumnDef, ok bool, err error)

	// CreateTable creates def, tolerating a concurrent create when the
	// dialect allows it.
	CreateTable(ctx context.Context, def ddl.TableDef) error

	// AddColumn adds col to the existing table fqn.
	AddColumn(ctx context.Context, fqn string, col ddl.ColumnDef) error

	// ReplaceRows discards every row of fqn and writes rows in its place
	// within one transaction. rows are aligned to cols.
	ReplaceRows(ctx context.Context, fqn string, cols []ddl.ColumnDef, rows [][]any) (int64, error)

	// MapType returns the physical column type for a semantic type.
	MapType(t schema.Type) string

	Close()
}

// Config selects and parameterizes a backend.
type Config struct {
	Kind           string        // postgres | mssql | mysql | sqlite
	DSN            string        // backend-specific connection string
	ConnectTimeout time.Duration // bound on opening and pinging the store
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering the same kind
// again replaces the previous factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
