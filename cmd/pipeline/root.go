package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ecomstaging/internal/app"
	"ecomstaging/internal/config"
	"ecomstaging/internal/logging"
	"ecomstaging/internal/orchestrator"
	"ecomstaging/internal/registry"
)

// exitError carries a specific process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// runtimeEnv is what every command needs once flags are parsed.
type runtimeEnv struct {
	cfg *config.Config
	log *logrus.Entry
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Ingest the Olist datasets and run the dbt project",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := config.RegisterFlags(root.PersistentFlags(), getenv)

	// with resolves configuration, logging and metrics around fn.
	with := func(fn func(ctx context.Context, cmd *cobra.Command, env runtimeEnv) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.Resolve()
			if err != nil {
				return err
			}
			log, err := logging.New(logging.Options{
				Level:   cfg.Log.Level,
				Format:  cfg.Log.Format,
				Output:  cmd.ErrOrStderr(),
				Service: "pipeline",
			})
			if err != nil {
				return err
			}
			flush, err := app.SetupMetrics(cfg.Metrics, log)
			if err != nil {
				return err
			}
			defer flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return fn(ctx, cmd, runtimeEnv{cfg: cfg, log: log})
		}
	}

	var failOnPartial bool

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest then transform, retrying each phase",
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, _ *cobra.Command, env runtimeEnv) error {
			env.log.WithField("store", env.cfg.DB.Redacted()).Info("pipeline configured")
			return app.NewPipeline(env.cfg, env.log, failOnPartial).Run(ctx)
		}),
	}
	runCmd.Flags().BoolVar(&failOnPartial, "fail-on-partial", false, "Treat skipped or failed datasets as an ingestion failure")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load every dataset once, without retries",
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, _ *cobra.Command, env runtimeEnv) error {
			env.log.WithField("store", env.cfg.DB.Redacted()).Info("connecting")
			report, err := app.RunIngestion(ctx, app.IngestOptionsFromConfig(env.cfg), env.log)
			switch code := app.ExitCode(report, err); code {
			case app.ExitOK:
				return nil
			case app.ExitPartial:
				return &exitError{code: code, err: app.ErrPartial}
			default:
				return &exitError{code: code, err: err}
			}
		}),
	}

	transformCmd := &cobra.Command{
		Use:   "transform",
		Short: "Run `dbt run` then `dbt test` once, without retries",
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, _ *cobra.Command, env runtimeEnv) error {
			return app.NewDbtRunner(env.cfg, env.log).RunSteps(ctx, "run", "test")
		}),
	}

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on the configured cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, _ *cobra.Command, env runtimeEnv) error {
			p := app.NewPipeline(env.cfg, env.log, failOnPartial)
			return orchestrator.Schedule(ctx, env.cfg.Pipeline.Schedule, env.log, p.Run)
		}),
	}
	scheduleCmd.Flags().BoolVar(&failOnPartial, "fail-on-partial", false, "Treat skipped or failed datasets as an ingestion failure")

	datasetsCmd := &cobra.Command{
		Use:   "datasets",
		Short: "List the registered datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), registry.Default().String())
			return err
		},
	}

	root.AddCommand(runCmd, ingestCmd, transformCmd, scheduleCmd, datasetsCmd)
	return root
}

// execute runs root with args and maps the outcome onto an exit status.
func execute(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(root.ErrOrStderr(), "error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}
