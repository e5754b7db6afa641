package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ecomstaging/internal/datasource/file"
	"ecomstaging/internal/registry"
	"ecomstaging/internal/storage"
)

// State is the lifecycle of a Coordinator.
type State int

const (
	NotStarted State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "not_started"
	}
}

// ConnectivityError reports that the store could not be reached. It aborts
// the run; the orchestrator may retry the whole ingestion.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string { return "connectivity: " + e.Err.Error() }
func (e *ConnectivityError) Unwrap() error { return e.Err }
func (e *ConnectivityError) Cause() error  { return e.Err }

// RunReport aggregates the outcomes of one run in registry order.
type RunReport struct {
	RunID    string
	Outcomes []Outcome
	Started  time.Time
	Elapsed  time.Duration

	// Aborted is set when the run stopped before visiting every dataset.
	Aborted bool
}

// Count returns the number of outcomes of kind k.
func (r RunReport) Count(k Kind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}

// Succeeded reports whether the run completed and every dataset loaded.
func (r RunReport) Succeeded() bool {
	return !r.Aborted && len(r.Outcomes) > 0 && r.Count(Succeeded) == len(r.Outcomes)
}

// Partial reports whether at least one dataset was skipped or failed.
func (r RunReport) Partial() bool {
	return r.Count(SkippedMissingFile)+r.Count(Failed) > 0
}

// Rows returns the total number of rows loaded.
func (r RunReport) Rows() int64 {
	var n int64
	for _, o := range r.Outcomes {
		n += o.Rows
	}
	return n
}

// Coordinator drives every registered dataset through a Loader, one at a
// time. A Coordinator performs a single run.
type Coordinator struct {
	repo   storage.Repository
	loader *Loader
	log    logrus.FieldLogger
	runID  string

	mu    sync.Mutex
	state State
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRunID sets the run identifier instead of a generated one.
func WithRunID(id string) CoordinatorOption {
	return func(c *Coordinator) {
		if id != "" {
			c.runID = id
		}
	}
}

// NewCoordinator returns a Coordinator in state NotStarted.
func NewCoordinator(repo storage.Repository, loader *Loader, log logrus.FieldLogger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{repo: repo, loader: loader, log: log, runID: uuid.NewString()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RunID returns the identifier attached to this run's logs and report.
func (c *Coordinator) RunID() string { return c.runID }

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// RunAll loads every dataset of reg from dataDir in registry order.
//
// Dataset failures are recorded in the report and do not stop the loop. The
// returned error is non-nil only when the run could not proceed: the store
// was unreachable (*ConnectivityError), the staging schema could not be
// created, or ctx was canceled. The report is valid in every case.
func (c *Coordinator) RunAll(ctx context.Context, reg *registry.Registry, dataDir string) (RunReport, error) {
	c.mu.Lock()
	if c.state != NotStarted {
		c.mu.Unlock()
		return RunReport{RunID: c.runID}, errors.Errorf("ingest: run %s already %s", c.runID, c.state)
	}
	c.state = Running
	c.mu.Unlock()
	defer c.setState(Completed)

	report := RunReport{RunID: c.runID, Started: time.Now()}
	log := c.log.WithField("run_id", c.runID)
	log.WithFields(logrus.Fields{"datasets": reg.Len(), "data_dir": dataDir, "schema": c.loader.Schema()}).Info("ingestion started")

	finish := func(err error) (RunReport, error) {
		report.Elapsed = time.Since(report.Started)
		c.summarize(log, report, err)
		return report, err
	}

	if err := c.repo.Ping(ctx); err != nil {
		report.Aborted = true
		return finish(&ConnectivityError{Err: err})
	}
	if err := c.repo.EnsureSchema(ctx, c.loader.Schema()); err != nil {
		report.Aborted = true
		if storage.IsUnreachable(err) {
			return finish(&ConnectivityError{Err: err})
		}
		return finish(errors.Wrapf(err, "ensure schema %s", c.loader.Schema()))
	}

	if !file.DirExists(dataDir) {
		log.WithFields(logrus.Fields{
			"data_dir": dataDir,
			"expected": reg.SourceFiles(),
		}).Warn("data directory not found; every dataset will be skipped")
	}

	for _, spec := range reg.Specs() {
		if err := ctx.Err(); err != nil {
			report.Aborted = true
			return finish(errors.Wrap(err, "ingest: run canceled"))
		}

		o := c.loader.Load(ctx, spec, dataDir)
		report.Outcomes = append(report.Outcomes, o)

		if o.Kind == Failed && storage.IsUnreachable(o.Err) {
			report.Aborted = true
			return finish(&ConnectivityError{Err: o.Err})
		}
	}
	return finish(nil)
}

func (c *Coordinator) summarize(log logrus.FieldLogger, r RunReport, err error) {
	fields := logrus.Fields{
		"succeeded": r.Count(Succeeded),
		"skipped":   r.Count(SkippedMissingFile),
		"failed":    r.Count(Failed),
		"rows":      r.Rows(),
		"elapsed":   r.Elapsed.Round(time.Millisecond).String(),
	}
	switch {
	case err != nil:
		log.WithFields(fields).WithError(err).Error("ingestion aborted")
	case r.Partial():
		log.WithFields(fields).Warn("ingestion completed with skipped or failed datasets")
	default:
		log.WithFields(fields).Info("ingestion completed")
	}
}
