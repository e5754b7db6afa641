// Command ingest loads every Olist dataset into the staging schema once.
//
// It takes no arguments; configuration comes from the environment (and an
// optional .env file). The exit status is 0 when every dataset loaded, 2
// when some were skipped or failed, and 1 on configuration or connectivity
// failure.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"ecomstaging/internal/app"
	"ecomstaging/internal/config"
	"ecomstaging/internal/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(app.ExitFatal)
	}
	fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	os.Exit(run(fs, os.Getenv, os.Args[1:], os.Stderr))
}

func run(fs *pflag.FlagSet, getenv func(string) string, args []string, stderr io.Writer) int {
	cfg, err := config.LoadFromArgs(fs, getenv, args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return app.ExitFatal
	}

	log := logging.Must(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  stderr,
		Service: "ingest",
	})

	flush, err := app.SetupMetrics(cfg.Metrics, log)
	if err != nil {
		log.WithError(err).Error("metrics setup failed")
		return app.ExitFatal
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("store", cfg.DB.Redacted()).Info("connecting")
	report, err := app.RunIngestion(ctx, app.IngestOptionsFromConfig(cfg), log)
	return app.ExitCode(report, err)
}
