// Package ingest loads registered datasets into the staging schema.
//
// A Loader handles one dataset at a time: read the file, line its header up
// with the declared columns, coerce values, make sure the target table
// exists, then replace the table contents. A Coordinator runs the Loader over
// the whole registry and aggregates the outcomes into a RunReport.
package ingest

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"ecomstaging/internal/datasource/file"
	"ecomstaging/internal/ddl"
	"ecomstaging/internal/metrics"
	pcsv "ecomstaging/internal/parser/csv"
	"ecomstaging/internal/provision"
	"ecomstaging/internal/registry"
	"ecomstaging/internal/storage"
	"ecomstaging/internal/transformer"
)

// Loader loads single datasets into one repository.
type Loader struct {
	repo   storage.Repository
	prov   *provision.Provisioner
	schema string
	csv    pcsv.Options
	log    logrus.FieldLogger
}

// NewLoader returns a Loader writing into the staging schema schemaName.
func NewLoader(repo storage.Repository, prov *provision.Provisioner, schemaName string, log logrus.FieldLogger) *Loader {
	return &Loader{repo: repo, prov: prov, schema: schemaName, log: log}
}

// Schema returns the staging schema name.
func (l *Loader) Schema() string { return l.schema }

// Load reads dataDir/spec.SourceFile and fully replaces the target table.
// It never panics on bad input and never returns a nil Outcome.Err for a
// non-succeeded kind.
func (l *Loader) Load(ctx context.Context, spec registry.DatasetSpec, dataDir string) Outcome {
	start := time.Now()
	out := Outcome{
		Dataset: spec.Name(),
		Table:   ddl.JoinFQN(l.schema, spec.TargetTable),
		File:    filepath.Join(dataDir, spec.SourceFile),
	}
	log := l.log.WithFields(logrus.Fields{
		"dataset": out.Dataset,
		"table":   out.Table,
		"file":    out.File,
	})

	l.load(ctx, spec, &out, log)

	out.Elapsed = time.Since(start)
	l.report(out, log)
	return out
}

func (l *Loader) load(ctx context.Context, spec registry.DatasetSpec, out *Outcome, log logrus.FieldLogger) {
	fail := func(err error) {
		out.Kind = Failed
		out.Err = err
	}

	src := file.NewLocal(out.File)
	ok, err := src.Exists()
	if err != nil {
		fail(err)
		return
	}
	if !ok {
		// The table is still provisioned so the transformation phase finds
		// every staging table, empty or not.
		if _, err := l.prov.Ensure(ctx, out.Table, spec.Columns); err != nil {
			fail(err)
			return
		}
		out.Kind = SkippedMissingFile
		out.Err = errors.Wrap(ErrSourceMissing, out.File)
		return
	}

	rs, sum, err := l.read(ctx, src)
	out.Checksum = sum
	if err != nil {
		fail(err)
		return
	}

	coercer, mapping := transformer.NewCoercer(spec, rs)
	out.MissingColumns = mapping.Missing
	out.DroppedColumns = mapping.Dropped
	if len(mapping.Missing) > 0 {
		log.WithField("columns", mapping.Missing).Warn("declared columns absent from file; loading NULL")
	}
	if len(mapping.Dropped) > 0 {
		log.WithField("columns", mapping.Dropped).Warn("undeclared columns in file; not loaded")
	}
	rows, st := coercer.Apply(rs)
	out.NullifiedDates = st.NullifiedDates
	out.NullifiedNumbers = st.NullifiedNumbers

	action, err := l.prov.Ensure(ctx, out.Table, spec.Columns)
	if err != nil {
		fail(err)
		return
	}
	log.WithField("action", action.String()).Debug("table ensured")

	def := ddl.Define(out.Table, spec.Columns, l.repo.MapType)
	n, err := l.repo.ReplaceRows(ctx, out.Table, def.Columns, rows)
	if err != nil {
		fail(errors.Wrapf(err, "replace %s", out.Table))
		return
	}
	out.Rows = n
	out.Kind = Succeeded
}

// read parses the source while hashing the bytes that pass through.
func (l *Loader) read(ctx context.Context, src *file.Local) (*pcsv.RecordSet, uint64, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()

	h := xxh3.New()
	rs, err := pcsv.Read(io.TeeReader(rc, h), l.csv)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "parse %s", src.Path())
	}
	return rs, h.Sum64(), nil
}

func (l *Loader) report(out Outcome, log logrus.FieldLogger) {
	fields := logrus.Fields{
		"outcome": out.Kind.String(),
		"elapsed": out.Elapsed.Round(time.Millisecond).String(),
	}
	switch out.Kind {
	case Succeeded:
		fields["rows"] = out.Rows
		fields["checksum"] = out.Checksum
		if out.NullifiedDates > 0 {
			fields["nullified_dates"] = out.NullifiedDates
		}
		if out.NullifiedNumbers > 0 {
			fields["nullified_numbers"] = out.NullifiedNumbers
		}
		log.WithFields(fields).Info("dataset loaded")
	case SkippedMissingFile:
		log.WithFields(fields).Warn("source file missing; dataset skipped")
	default:
		log.WithFields(fields).WithError(out.Err).Error("dataset failed")
	}

	metrics.RecordDataset(out.Dataset, out.Kind.String(), out.Elapsed)
	metrics.RecordRows(out.Dataset, "loaded", out.Rows)
	metrics.RecordRows(out.Dataset, "nullified_dates", int64(out.NullifiedDates))
	metrics.RecordRows(out.Dataset, "nullified_numbers", int64(out.NullifiedNumbers))
}
