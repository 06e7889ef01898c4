// Package app assembles the fx applications behind the commands.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/arbovirus-pipeline/internal/api"
	"github.com/tigerroll/arbovirus-pipeline/internal/job"
	"github.com/tigerroll/arbovirus-pipeline/internal/predict"
	"github.com/tigerroll/arbovirus-pipeline/internal/repository"
	gormadapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/component/tasklet/migration"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/job/runner"
	promrecorder "github.com/tigerroll/arbovirus-pipeline/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/listener"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
	"github.com/tigerroll/arbovirus-pipeline/resources"

	_ "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm/sqlite"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailed  = 1
	ExitStartup = 2
)

const pushTimeout = 10 * time.Second

// EnvFilePath returns ENV_FILE_PATH, or ".env" when it is unset.
func EnvFilePath() string {
	if p := os.Getenv("ENV_FILE_PATH"); p != "" {
		return p
	}
	return ".env"
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Warnf("Received signal '%v'. Stopping...", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// coreOptions are shared by every command: configuration, logging,
// the database connection with its stores, and the Prometheus registry.
func coreOptions(envFilePath string) fx.Option {
	return fx.Options(
		fx.Supply(
			config.EmbeddedConfig(resources.ApplicationYAML),
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		logger.Module,
		config.Module,
		gormadapter.Module,
		repository.Module,
		promrecorder.Module,
	)
}

// migrate brings the schema up to date.
func migrate(ctx context.Context, conn *gormadapter.GormDBAdapter) error {
	return migration.NewMigrator(conn).Up(ctx, resources.Migrations())
}

// start starts app within its start timeout.
func start(ctx context.Context, app *fx.App) error {
	if err := app.Err(); err != nil {
		return err
	}
	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	return app.Start(startCtx)
}

func stop(app *fx.App) {
	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Errorf("Shutdown failed: %v", err)
	}
}

// RunJob runs one batch job to completion and returns the process exit code.
func RunJob(ctx context.Context, jobName string) int {
	defer logger.Sync()

	var (
		cfg     *config.Config
		conn    *gormadapter.GormDBAdapter
		factory *job.Factory
		prom    *promrecorder.PrometheusRecorder
	)
	app := fx.New(
		coreOptions(EnvFilePath()),
		listener.Module,
		runner.Module,
		predict.Module,
		job.Module,
		fx.Populate(&cfg, &conn, &factory, &prom),
	)
	if err := start(ctx, app); err != nil {
		logger.Errorf("Job '%s' could not start: %v", jobName, err)
		return ExitStartup
	}

	code := launch(ctx, jobName, conn, factory)

	// Stopping flushes the asynchronous recorder before the registry is pushed.
	stop(app)
	pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := prom.Push(pushCtx, cfg.Arbo.Metrics.PushgatewayURL, jobName); err != nil {
		logger.Warnf("Job '%s': %v", jobName, err)
	}
	return code
}

func launch(ctx context.Context, jobName string, conn *gormadapter.GormDBAdapter, factory *job.Factory) int {
	if err := migrate(ctx, conn); err != nil {
		logger.Errorf("Job '%s' failed: schema migration: %v", jobName, err)
		return ExitFailed
	}

	run, err := factory.Launch(ctx, jobName)
	switch {
	case errors.Is(err, job.ErrInvalidJobConfig):
		logger.Errorf("Job '%s' is misconfigured: %v", jobName, err)
		return ExitStartup
	case run == nil:
		logger.Errorf("Job '%s' failed: %v", jobName, err)
		return ExitFailed
	}
	if err != nil {
		logger.Errorf("Job '%s' (run %s) finished with error: %v", jobName, run.ID, err)
	}
	logger.Infof("Job '%s' (run %s) finished with status %s in %s.", jobName, run.ID, run.Status, run.Duration())
	return run.Status.ExitCode()
}

// newServer builds the read API over the shared stores.
func newServer(
	cfg *config.Config,
	climate *repository.ClimateStore,
	cases *repository.ArbovirusStore,
	predictions *repository.PredictionStore,
	runs *repository.JobRunRepository,
	prom *promrecorder.PrometheusRecorder,
) *api.Server {
	return api.New(cfg.Arbo.API, api.Stores{
		Climate:     climate,
		Cases:       cases,
		Predictions: predictions,
		Runs:        runs,
	}, prom.Handler())
}

// ServeAPI serves the read API until ctx is done and returns the process exit
// code. The API never writes; the job entry points own schema migration.
func ServeAPI(ctx context.Context) int {
	defer logger.Sync()

	var srv *api.Server
	app := fx.New(
		coreOptions(EnvFilePath()),
		fx.Provide(newServer),
		fx.Populate(&srv),
	)
	if err := start(ctx, app); err != nil {
		logger.Errorf("API could not start: %v", err)
		return ExitStartup
	}
	defer stop(app)

	if err := srv.Run(ctx); err != nil {
		logger.Errorf("API stopped: %v", err)
		return ExitFailed
	}
	return ExitOK
}
