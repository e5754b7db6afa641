package orchestrator

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct{ log logrus.FieldLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.WithFields(fields(kv)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.WithFields(fields(kv)).WithError(err).Error("cron: " + msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			f[k] = kv[i+1]
		}
	}
	return f
}

// Schedule runs fn on every activation of spec (standard five-field cron or
// a descriptor such as @daily) until ctx is done. An activation that fires
// while the previous run is still going is skipped; missed activations are
// not caught up. Failures of fn are logged and do not stop the schedule.
func Schedule(ctx context.Context, spec string, log logrus.FieldLogger, fn func(ctx context.Context) error) error {
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err := c.AddFunc(spec, func() {
		if err := fn(ctx); err != nil {
			log.WithError(err).Error("scheduled run failed")
		}
	})
	if err != nil {
		return errors.Wrapf(err, "schedule %q", spec)
	}

	log.WithField("schedule", spec).Info("scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("scheduler stopped")
	return nil
}
