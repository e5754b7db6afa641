// Package config centralizes process configuration. Every tunable is a
// command-line flag whose default is seeded from an environment variable,
// so `-h` lists all knobs and the process still runs with no arguments.
//
// Typical usage:
//
//	cfg, err := config.Load() // reads .env, os.Environ and os.Args
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"--db-port=6543"})
//
// The resulting Config is validated once and never mutated afterwards.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config holds all process configuration. All fields are plain values so
// the struct can be copied and shared across goroutines.
type Config struct {
	DB       DB
	DataDir  string // directory holding the source files
	Dbt      Dbt
	Log      Log
	Metrics  Metrics
	Pipeline Pipeline
}

// DB describes the target store.
type DB struct {
	Kind           string // postgres | mssql | mysql | sqlite
	User           string
	Password       string
	Host           string
	Port           int
	Name           string // database name; file path for sqlite
	Schema         string // staging schema
	ConnectTimeout time.Duration

	// url is DB_URL when set; it overrides Kind and the discrete parts.
	url string
	dsn string
}

// Dbt locates the transformation tool.
type Dbt struct {
	Binary      string
	ProjectDir  string
	ProfilesDir string
	WorkDir     string
}

// Log configures the process logger.
type Log struct {
	Level  string // logrus level name
	Format string // text | json
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend        string // none | pushgateway | datadog
	PushgatewayURL string
	DogStatsDAddr  string
	JobName        string
}

// Pipeline configures orchestration.
type Pipeline struct {
	Retries    int
	RetryDelay time.Duration
	Schedule   string // cron spec
}

// Error reports a missing or malformed setting. It is always fatal and is
// raised before any I/O.
type Error struct {
	Key    string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	if e.Value == "" {
		return "config: " + e.Key + ": " + e.Reason
	}
	return "config: " + e.Key + "=" + e.Value + ": " + e.Reason
}

// LoadFromArgs defines the flags on fs seeded from getenv, parses args and
// validates the result.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit flags in args override the seeded defaults.
func LoadFromArgs(fs *pflag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	f := RegisterFlags(fs, getenv)
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "config: parse flags")
	}
	return f.Resolve()
}

// Load is the production entry point. It first reads a .env file from the
// working directory when one exists, without overriding variables already
// set in the environment.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	return LoadFromArgs(pflag.CommandLine, os.Getenv, os.Args[1:])
}

// LoadDotEnv reads the given .env files (".env" when none are named) into
// the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "config: read %s", f)
		}
	}
	return nil
}
