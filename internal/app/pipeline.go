package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"ecomstaging/internal/config"
	"ecomstaging/internal/dbt"
	"ecomstaging/internal/orchestrator"
)

// Task names match the phases of the daily pipeline.
const (
	TaskIngest    = "ingest_data"
	TaskTransform = "transform_with_dbt"
)

// IngestTask loads every dataset. A partial run fails the task only when
// failOnPartial is set; otherwise the transformation still runs against the
// tables that were provisioned.
func IngestTask(cfg *config.Config, log logrus.FieldLogger, failOnPartial bool) orchestrator.Task {
	return orchestrator.Task{
		Name:       TaskIngest,
		Retries:    cfg.Pipeline.Retries,
		RetryDelay: cfg.Pipeline.RetryDelay,
		Run: func(ctx context.Context) error {
			opts := IngestOptionsFromConfig(cfg)
			opts.RunID = orchestrator.RunIDFrom(ctx)
			report, err := RunIngestion(ctx, opts, log)
			if err != nil {
				return err
			}
			if failOnPartial && report.Partial() {
				return ErrPartial
			}
			return nil
		},
	}
}

// TransformTask runs `dbt run` then `dbt test`.
func TransformTask(cfg *config.Config, log logrus.FieldLogger) orchestrator.Task {
	runner := NewDbtRunner(cfg, log)
	return orchestrator.Task{
		Name:       TaskTransform,
		Retries:    cfg.Pipeline.Retries,
		RetryDelay: cfg.Pipeline.RetryDelay,
		Run: func(ctx context.Context) error {
			return runner.RunSteps(ctx, "run", "test")
		},
	}
}

// NewDbtRunner builds the transformation runner from cfg.
func NewDbtRunner(cfg *config.Config, log logrus.FieldLogger) *dbt.Runner {
	return dbt.New(dbt.Config{
		Binary:      cfg.Dbt.Binary,
		ProjectDir:  cfg.Dbt.ProjectDir,
		ProfilesDir: cfg.Dbt.ProfilesDir,
		WorkDir:     cfg.Dbt.WorkDir,
	}, log)
}

// NewPipeline returns the ingest-then-transform pipeline.
func NewPipeline(cfg *config.Config, log logrus.FieldLogger, failOnPartial bool) *orchestrator.Pipeline {
	return orchestrator.NewPipeline("ecommerce_pipeline", log,
		IngestTask(cfg, log, failOnPartial),
		TransformTask(cfg, log),
	)
}
