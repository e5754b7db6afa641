// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	Level   string    // logrus level name; empty means info
	Format  string    // text | json; empty means text
	Output  io.Writer // defaults to os.Stderr
	Service string    // attached to every entry as "service"
}

// New returns an entry on a fresh logger carrying the service field. It never
// touches the logrus standard logger.
func New(opt Options) (*logrus.Entry, error) {
	l := logrus.New()

	out := opt.Output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	level := logrus.InfoLevel
	if opt.Level != "" {
		lv, err := logrus.ParseLevel(opt.Level)
		if err != nil {
			return nil, errors.Wrap(err, "logging")
		}
		level = lv
	}
	l.SetLevel(level)

	switch opt.Format {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("logging: unknown format %q", opt.Format)
	}

	svc := opt.Service
	if svc == "" {
		svc = "ecomstaging"
	}
	return l.WithField("service", svc), nil
}

// Must is New for process entry points; it falls back to a default text
// logger when opt is invalid and reports the problem through it.
func Must(opt Options) *logrus.Entry {
	e, err := New(opt)
	if err == nil {
		return e
	}
	fallback, _ := New(Options{Output: opt.Output, Service: opt.Service})
	fallback.WithError(err).Warn("invalid logging options; using defaults")
	return fallback
}
