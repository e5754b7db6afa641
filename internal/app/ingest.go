// Package app wires configuration, storage, the ingestion core, the
// transformation runner and the orchestrator into the units the commands
// execute.
package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ecomstaging/internal/config"
	"ecomstaging/internal/ingest"
	"ecomstaging/internal/provision"
	"ecomstaging/internal/registry"
	"ecomstaging/internal/storage"
	_ "ecomstaging/internal/storage/all"
)

// Process exit statuses reported to the orchestrator.
const (
	ExitOK      = 0
	ExitFatal   = 1 // configuration or connectivity failure
	ExitPartial = 2 // some dataset skipped or failed
)

// ErrPartial is returned by the ingestion task when partial runs are
// treated as failures.
var ErrPartial = errors.New("ingestion finished with skipped or failed datasets")

// IngestOptions parameterizes one ingestion run.
type IngestOptions struct {
	Store    storage.Config
	Schema   string
	DataDir  string
	Registry *registry.Registry // nil means registry.Default()
	RunID    string             // empty means generated
}

// IngestOptionsFromConfig maps cfg onto IngestOptions.
func IngestOptionsFromConfig(cfg *config.Config) IngestOptions {
	return IngestOptions{
		Store: storage.Config{
			Kind:           cfg.DB.Kind,
			DSN:            cfg.DB.DSN(),
			ConnectTimeout: cfg.DB.ConnectTimeout,
		},
		Schema:  cfg.DB.Schema,
		DataDir: cfg.DataDir,
	}
}

// RunIngestion opens the store, loads every registered dataset and closes
// the store on every path. Connection failures come back as
// *ingest.ConnectivityError.
func RunIngestion(ctx context.Context, opts IngestOptions, log logrus.FieldLogger) (ingest.RunReport, error) {
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}

	repo, err := storage.New(ctx, opts.Store)
	if err != nil {
		if storage.IsUnreachable(err) {
			return ingest.RunReport{RunID: opts.RunID, Aborted: true}, &ingest.ConnectivityError{Err: err}
		}
		return ingest.RunReport{RunID: opts.RunID, Aborted: true}, errors.Wrapf(err, "open %s store", opts.Store.Kind)
	}
	defer repo.Close()

	prov := provision.New(repo, log)
	loader := ingest.NewLoader(repo, prov, opts.Schema, log)
	coord := ingest.NewCoordinator(repo, loader, log, ingest.WithRunID(opts.RunID))
	return coord.RunAll(ctx, reg, opts.DataDir)
}

// ExitCode maps a run result onto the process exit status.
func ExitCode(report ingest.RunReport, err error) int {
	switch {
	case err != nil:
		return ExitFatal
	case report.Partial():
		return ExitPartial
	default:
		return ExitOK
	}
}
