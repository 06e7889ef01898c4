package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/arbovirus-pipeline/internal/job"
	"github.com/tigerroll/arbovirus-pipeline/internal/repository"
	gormadapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
)

// isolate points the configuration at a private SQLite file.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "arbo.db")
	t.Setenv("ENV_FILE_PATH", filepath.Join(dir, "missing.env"))
	t.Setenv("ARBO_DATABASE_TYPE", "sqlite")
	t.Setenv("ARBO_DATABASE_PATH", path)
	t.Setenv("ARBO_SYSTEM_LOGGING_LEVEL", "ERROR")
	t.Setenv("ARBO_LOCATIONS", "3550308,3304557")
	return path
}

func TestRunJob_PredictorWithoutHistoryIsPartial(t *testing.T) {
	path := isolate(t)

	code := RunJob(context.Background(), job.PredictorJob)
	assert.Equal(t, ExitOK, code)

	conn, err := gormadapter.Open(config.DatabaseConfig{Type: "sqlite", Path: path}, "check")
	require.NoError(t, err)
	defer conn.Close()
	runs, err := repository.NewJobRunRepository(conn).FindJobRuns(context.Background(), job.PredictorJob, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, batchmodel.JobStatusPartial, runs[0].Status)
	assert.Equal(t, 2, runs[0].Counts.LocationsSkipped)
}

func TestServeAPI_LeavesSchemaToJobs(t *testing.T) {
	path := isolate(t)
	t.Setenv("ARBO_API_LISTEN_ADDR", "127.0.0.1:0")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	assert.Equal(t, ExitOK, ServeAPI(ctx))

	conn, err := gormadapter.Open(config.DatabaseConfig{Type: "sqlite", Path: path}, "check")
	require.NoError(t, err)
	defer conn.Close()
	_, err = repository.NewJobRunRepository(conn).FindJobRuns(context.Background(), job.PredictorJob, 10)
	assert.Error(t, err, "the API must not create the schema")
}

func TestRunJob_StartupErrors(t *testing.T) {
	for name, env := range map[string][2]string{
		"unknown database type": {"ARBO_DATABASE_TYPE", "oracle"},
		"unknown location":      {"ARBO_LOCATIONS", "9999999"},
		"bad backfill start":    {"ARBO_JOBS_BACKFILL_START_DATE", "yesterday"},
	} {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			t.Setenv(env[0], env[1])
			jobName := job.PredictorJob
			if env[0] == "ARBO_JOBS_BACKFILL_START_DATE" {
				jobName = job.BackfillJob
			}
			assert.Equal(t, ExitStartup, RunJob(context.Background(), jobName))
		})
	}
}

func TestRunJob_UnknownJob(t *testing.T) {
	isolate(t)
	assert.Equal(t, ExitStartup, RunJob(context.Background(), "weather"))
}

func TestEnvFilePath(t *testing.T) {
	t.Setenv("ENV_FILE_PATH", "")
	assert.Equal(t, ".env", EnvFilePath())
	t.Setenv("ENV_FILE_PATH", "/etc/arbo.env")
	assert.Equal(t, "/etc/arbo.env", EnvFilePath())
}
