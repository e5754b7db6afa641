// Package orchestrator sequences the pipeline phases. Each phase is a Task
// retried a fixed number of times with a fixed delay; a phase that exhausts
// its retries stops the pipeline. Schedule re-runs a pipeline on a cron
// spec.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ecomstaging/internal/metrics"
)

// Task is one retried phase.
type Task struct {
	Name       string
	Retries    int // extra attempts after the first
	RetryDelay time.Duration
	Run        func(ctx context.Context) error
}

// TaskError reports a task that failed on every attempt.
type TaskError struct {
	Task     string
	Attempts int
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed after %d attempt(s): %v", e.Task, e.Attempts, e.Err)
}
func (e *TaskError) Unwrap() error { return e.Err }
func (e *TaskError) Cause() error  { return e.Err }

type runIDKey struct{}

// WithRunID returns ctx carrying the pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run identifier carried by ctx, if any.
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Pipeline runs tasks in order.
type Pipeline struct {
	Name  string
	Tasks []Task
	Log   logrus.FieldLogger

	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline returns a Pipeline with the real sleep.
func NewPipeline(name string, log logrus.FieldLogger, tasks ...Task) *Pipeline {
	return &Pipeline{Name: name, Tasks: tasks, Log: log, Sleep: sleepCtx}
}

// Run executes every task in order under a fresh run ID and returns the
// first *TaskError, or the context error when ctx ends while waiting to
// retry.
func (p *Pipeline) Run(ctx context.Context) error {
	id := uuid.NewString()
	ctx = WithRunID(ctx, id)
	log := p.Log.WithFields(logrus.Fields{"pipeline": p.Name, "run_id": id})
	log.WithField("tasks", len(p.Tasks)).Info("pipeline started")
	start := time.Now()

	for _, t := range p.Tasks {
		if err := p.runTask(ctx, t, log.WithField("task", t.Name)); err != nil {
			log.WithError(err).WithField("elapsed", time.Since(start).Round(time.Millisecond).String()).Error("pipeline failed")
			return err
		}
	}
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond).String()).Info("pipeline succeeded")
	return nil
}

func (p *Pipeline) runTask(ctx context.Context, t Task, log logrus.FieldLogger) error {
	attempts := t.Retries + 1
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		alog := log.WithField("attempt", attempt)
		start := time.Now()
		err = t.Run(ctx)
		metrics.RecordPhase(t.Name, err, time.Since(start))
		if err == nil {
			alog.WithField("elapsed", time.Since(start).Round(time.Millisecond).String()).Info("task succeeded")
			return nil
		}
		if attempt == attempts {
			break
		}
		alog.WithError(err).WithField("retry_in", t.RetryDelay.String()).Warn("task failed; retrying")
		if serr := sleep(ctx, t.RetryDelay); serr != nil {
			return errors.Wrapf(serr, "task %s", t.Name)
		}
	}
	return &TaskError{Task: t.Name, Attempts: attempts, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tm := time.NewTimer(d)
	defer tm.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tm.C:
		return nil
	}
}
