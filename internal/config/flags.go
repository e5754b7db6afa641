package config

import (
	"github.com/spf13/pflag"
)

// Env keys read by RegisterFlags.
const (
	EnvDBKind           = "DB_KIND"
	EnvDBURL            = "DB_URL"
	EnvDBUser           = "DB_USER"
	EnvDBPassword       = "DB_PASSWORD"
	EnvDBHost           = "DB_HOST"
	EnvDBPort           = "DB_PORT"
	EnvDBName           = "DB_NAME"
	EnvDBSchema         = "DB_SCHEMA"
	EnvDBConnectTimeout = "DB_CONNECT_TIMEOUT"
	EnvDataDir          = "DATA_DIR"
	EnvDbtBinary        = "DBT_BINARY_PATH"
	EnvDbtProjectDir    = "DBT_PROJECT_DIR"
	EnvDbtProfilesDir   = "DBT_PROFILES_DIR"
	EnvDbtWorkDir       = "DBT_WORK_DIR"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFormat        = "LOG_FORMAT"
	EnvMetricsBackend   = "METRICS_BACKEND"
	EnvPushgatewayURL   = "PUSHGATEWAY_URL"
	EnvDogStatsDAddr    = "DOGSTATSD_ADDR"
	EnvJobName          = "JOB_NAME"
	EnvRetries          = "PIPELINE_RETRIES"
	EnvRetryDelay       = "PIPELINE_RETRY_DELAY"
	EnvSchedule         = "PIPELINE_SCHEDULE"
)

// Flags holds the raw, unvalidated values bound to a flag set. Numbers and
// durations stay strings until Resolve so that a malformed environment value
// surfaces as an *Error instead of being silently replaced by the default.
type Flags struct {
	dbKind, dbURL, dbUser, dbPassword, dbHost, dbPort string
	dbName, dbSchema, connectTimeout                  string

	dataDir string

	dbtBinary, dbtProject, dbtProfiles, dbtWorkDir string

	logLevel, logFormat string

	metricsBackend, pushgatewayURL, dogstatsdAddr, jobName string

	retries, retryDelay, schedule string
}

// RegisterFlags defines every configuration flag on fs with its default
// seeded from getenv. Call Resolve after fs has been parsed.
func RegisterFlags(fs *pflag.FlagSet, getenv func(string) string) *Flags {
	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	f := &Flags{}

	// Store
	fs.StringVar(&f.dbKind, "db-kind", envOr(EnvDBKind, "postgres"), "Store kind: postgres, mssql, mysql or sqlite")
	fs.StringVar(&f.dbURL, "db-url", getenv(EnvDBURL), "Database URL; overrides db-kind and the discrete connection flags")
	fs.StringVar(&f.dbUser, "db-user", envOr(EnvDBUser, "postgres"), "Database user")
	fs.StringVar(&f.dbPassword, "db-password", getenv(EnvDBPassword), "Database password")
	fs.StringVar(&f.dbHost, "db-host", envOr(EnvDBHost, "localhost"), "Database host")
	fs.StringVar(&f.dbPort, "db-port", envOr(EnvDBPort, "5432"), "Database port")
	fs.StringVar(&f.dbName, "db-name", envOr(EnvDBName, "ecommerce_analytics"), "Database name (file path for sqlite)")
	fs.StringVar(&f.dbSchema, "db-schema", envOr(EnvDBSchema, "dbt_dev"), "Staging schema")
	fs.StringVar(&f.connectTimeout, "db-connect-timeout", envOr(EnvDBConnectTimeout, "10s"), "Bound on connecting to the store")

	// Source files
	fs.StringVar(&f.dataDir, "data-dir", envOr(EnvDataDir, "data"), "Directory holding the source CSV files")

	// Transformation
	fs.StringVar(&f.dbtBinary, "dbt-binary", envOr(EnvDbtBinary, "dbt"), "dbt executable")
	fs.StringVar(&f.dbtProject, "dbt-project-dir", envOr(EnvDbtProjectDir, "dbt"), "dbt project directory")
	fs.StringVar(&f.dbtProfiles, "dbt-profiles-dir", envOr(EnvDbtProfilesDir, "dbt"), "dbt profiles directory")
	fs.StringVar(&f.dbtWorkDir, "dbt-work-dir", getenv(EnvDbtWorkDir), "Working directory for dbt (default: current)")

	// Logging
	fs.StringVar(&f.logLevel, "log-level", envOr(EnvLogLevel, "info"), "Log level: trace, debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", envOr(EnvLogFormat, "text"), "Log format: text or json")

	// Metrics
	fs.StringVar(&f.metricsBackend, "metrics-backend", envOr(EnvMetricsBackend, "none"), "Metrics backend: none, pushgateway or datadog")
	fs.StringVar(&f.pushgatewayURL, "pushgateway-url", getenv(EnvPushgatewayURL), "Prometheus Pushgateway URL")
	fs.StringVar(&f.dogstatsdAddr, "dogstatsd-addr", envOr(EnvDogStatsDAddr, "127.0.0.1:8125"), "DogStatsD address")
	fs.StringVar(&f.jobName, "job-name", envOr(EnvJobName, "ecomstaging"), "Job name used in metrics")

	// Orchestration
	fs.StringVar(&f.retries, "retries", envOr(EnvRetries, "3"), "Retries per pipeline phase")
	fs.StringVar(&f.retryDelay, "retry-delay", envOr(EnvRetryDelay, "30s"), "Delay between retries")
	fs.StringVar(&f.schedule, "schedule", envOr(EnvSchedule, "@daily"), "Cron spec for the schedule command")

	return f
}
