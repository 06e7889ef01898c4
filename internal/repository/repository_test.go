package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	batchrepo "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/repository"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/test"
)

func TestClimateStore_UpsertAndFindExisting(t *testing.T) {
	ctx := context.Background()
	conn := test.OpenSQLite(t)
	store := NewClimateStore(conn)

	recs := []model.ClimateRecord{
		test.Climate("3550308", "2024-01-01", 24.5, 80, 3.2),
		test.Climate("3550308", "2024-01-02", 25.1, 78, 0),
	}
	require.NoError(t, store.Upsert(ctx, conn, recs))

	lookup := []model.ClimateRecord{
		test.Climate("3550308", "2024-01-02", 0, 0, 0),
		test.Climate("3550308", "2024-01-03", 0, 0, 0),
	}
	existing, err := store.FindExisting(ctx, conn, lookup)
	require.NoError(t, err)
	require.Len(t, existing, 1)
	got, ok := existing[lookup[0].Key()]
	require.True(t, ok)
	assert.True(t, got.SameAs(recs[1], 1e-9))
	assert.False(t, got.CreatedAt.IsZero())

	changed := test.Climate("3550308", "2024-01-02", 26.0, 78, 0)
	require.NoError(t, store.Upsert(ctx, conn, []model.ClimateRecord{changed}))

	all, err := store.Find(ctx, "3550308", model.DateRange{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.InDelta(t, 26.0, *all[1].Temperature, 1e-9)

	latest, found, err := store.LatestDate(ctx, "3550308", model.SourceOpenMeteo)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, test.Date("2024-01-02"), latest)

	_, found, err = store.LatestDate(ctx, "3304557", model.SourceOpenMeteo)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClimateStore_FindRange(t *testing.T) {
	ctx := context.Background()
	conn := test.OpenSQLite(t)
	store := NewClimateStore(conn)
	require.NoError(t, store.Upsert(ctx, conn, []model.ClimateRecord{
		test.Climate("3550308", "2024-01-31", 24, 80, 1),
		test.Climate("3550308", "2024-02-01", 25, 80, 1),
		test.Climate("3550308", "2024-02-29", 26, 80, 1),
		test.Climate("3550308", "2024-03-01", 27, 80, 1),
	}))

	got, err := store.Find(ctx, "3550308", model.NewDateRange(test.Date("2024-02-01"), test.Date("2024-02-29")))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-02-01", model.DateKey(got[0].Date))
	assert.Equal(t, "2024-02-29", model.DateKey(got[1].Date))
}

func TestArbovirusStore_UniquePerDisease(t *testing.T) {
	ctx := context.Background()
	conn := test.OpenSQLite(t)
	store := NewArbovirusStore(conn)

	dengue := test.Arbovirus("3550308", "2024-01-01", 120)
	zika := dengue
	zika.DiseaseType = "zika"
	zika.CaseCount = 3
	require.NoError(t, store.Upsert(ctx, conn, []model.ArbovirusRecord{dengue, zika}))
	require.NoError(t, store.Upsert(ctx, conn, []model.ArbovirusRecord{dengue}))

	all, err := store.Find(ctx, "3550308", "", model.DateRange{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := store.Find(ctx, "3550308", "zika", model.DateRange{})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, 3, only[0].CaseCount)

	existing, err := store.FindExisting(ctx, conn, []model.ArbovirusRecord{dengue})
	require.NoError(t, err)
	assert.Len(t, existing, 1)
	assert.Contains(t, existing, dengue.Key())
}

func TestArbovirusStore_LatestDiseaseDate(t *testing.T) {
	ctx := context.Background()
	conn := test.OpenSQLite(t)
	store := NewArbovirusStore(conn)

	zika := test.Arbovirus("3550308", "2024-01-08", 2)
	zika.DiseaseType = "zika"
	require.NoError(t, store.Upsert(ctx, conn, []model.ArbovirusRecord{
		test.Arbovirus("3550308", "2024-01-01", 10),
		test.Arbovirus("3550308", "2024-03-25", 40),
		zika,
	}))

	latest, found, err := store.LatestDate(ctx, "3550308", model.SourceInfoDengue)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, test.Date("2024-03-25"), latest)

	latest, found, err = store.LatestDiseaseDate(ctx, "3550308", model.SourceInfoDengue, "zika")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, test.Date("2024-01-08"), latest)

	_, found, err = store.LatestDiseaseDate(ctx, "3550308", model.SourceInfoDengue, "chikungunya")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPredictionStore_OverwritesPeriod(t *testing.T) {
	ctx := context.Background()
	conn := test.OpenSQLite(t)
	store := NewPredictionStore(conn)
	period := model.Period{Year: 2024, Month: time.February}

	first := model.PredictionRecord{
		LocationCode: "3550308", Period: period, RiskScore: 0.2, RiskLevel: model.RiskLow,
		HistoryPoints: 12, ModelVersion: "v1", GeneratedAt: time.Date(2024, 1, 31, 3, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Upsert(ctx, first))

	second := first
	second.RiskScore = 0.8
	second.RiskLevel = model.RiskVeryHigh
	second.ModelVersion = "v2"
	second.GeneratedAt = first.GeneratedAt.Add(time.Hour)
	require.NoError(t, store.Upsert(ctx, second))

	got, found, err := store.Find(ctx, "3550308", period)
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 0.8, got.RiskScore, 1e-9)
	assert.Equal(t, "v2", got.ModelVersion)
	assert.True(t, second.GeneratedAt.Equal(got.GeneratedAt))

	byPeriod, err := store.FindByPeriod(ctx, period)
	require.NoError(t, err)
	assert.Len(t, byPeriod, 1)
}

func TestPredictionStore_FindLatest(t *testing.T) {
	ctx := context.Background()
	conn := test.OpenSQLite(t)
	store := NewPredictionStore(conn)
	for _, p := range []struct {
		loc    string
		period model.Period
	}{
		{"3550308", model.Period{Year: 2024, Month: 1}},
		{"3550308", model.Period{Year: 2024, Month: 3}},
		{"3304557", model.Period{Year: 2024, Month: 2}},
	} {
		require.NoError(t, store.Upsert(ctx, model.PredictionRecord{
			LocationCode: p.loc, Period: p.period, RiskScore: 0.5, RiskLevel: model.RiskHigh,
			ModelVersion: "v1", GeneratedAt: time.Now().UTC(),
		}))
	}

	latest, err := store.FindLatest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "3304557", latest[0].LocationCode)
	assert.Equal(t, "2024-03", latest[1].Period.String())

	history, err := store.FindByLocation(ctx, "3550308", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-03", history[0].Period.String())
}

func TestJobRunRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	conn := test.OpenSQLite(t)
	repo := NewJobRunRepository(conn)
	require.NoError(t, repo.Ping(ctx))

	now := time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)
	run := batchmodel.NewJobRun("climate-collector")
	require.NoError(t, run.TransitionTo(batchmodel.JobStatusRunning, now))
	require.NoError(t, repo.SaveJobRun(ctx, run))

	run.Counts = batchmodel.RunCounts{LocationsTotal: 3, LocationsSucceeded: 2, LocationsFailed: 1, Inserted: 14}
	run.AddFailure("3304557: source unavailable")
	require.NoError(t, run.TransitionTo(batchmodel.JobStatusPartial, now.Add(time.Minute)))
	require.NoError(t, repo.FinalizeJobRun(ctx, run))
	assert.Equal(t, 1, run.Version)

	stored, err := repo.FindJobRunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, batchmodel.JobStatusPartial, stored.Status)
	assert.Equal(t, 14, stored.Counts.Inserted)
	assert.Equal(t, batchmodel.FailureList{"3304557: source unavailable"}, stored.Failures)
	require.NotNil(t, stored.FinishedAt)
	assert.Equal(t, time.Minute, stored.Duration())

	// a finalized run is never rewritten
	err = repo.FinalizeJobRun(ctx, run)
	assert.True(t, errors.Is(err, batchrepo.ErrOptimisticLockingFailure))

	_, err = repo.FindJobRunByID(ctx, "missing")
	assert.ErrorIs(t, err, batchrepo.ErrJobRunNotFound)

	runs, err := repo.FindJobRuns(ctx, "climate-collector", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	runs, err = repo.FindJobRuns(ctx, "predictor", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestJobRunRepository_PingAfterClose(t *testing.T) {
	conn := test.OpenSQLite(t)
	repo := NewJobRunRepository(conn)
	require.NoError(t, conn.Close())

	err := repo.Ping(context.Background())
	assert.ErrorIs(t, err, batchrepo.ErrStorageUnavailable)

	_, err = NewClimateStore(conn).Find(context.Background(), "3550308", model.DateRange{})
	assert.ErrorIs(t, err, batchrepo.ErrStorageUnavailable)
}
