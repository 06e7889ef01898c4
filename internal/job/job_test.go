package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/internal/merge"
	"github.com/tigerroll/arbovirus-pipeline/internal/normalize"
	"github.com/tigerroll/arbovirus-pipeline/internal/repository"
	"github.com/tigerroll/arbovirus-pipeline/internal/source"
	"github.com/tigerroll/arbovirus-pipeline/internal/source/infodengue"
	"github.com/tigerroll/arbovirus-pipeline/internal/source/openmeteo"
	gormadapter "github.com/tigerroll/arbovirus-pipeline/pkg/batch/adapter/database/gorm"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
	batchrepo "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/repository"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/job/runner"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/test"
)

var norm = &normalize.Normalizer{Today: test.Date("2024-06-30")}

// fakeClimateSource serves generated days and fails for the locations in failFor.
type fakeClimateSource struct {
	mu      sync.Mutex
	failFor map[string]error
	extra   []openmeteo.Daily
	ranges  map[string][]model.DateRange
}

func (s *fakeClimateSource) Name() string { return model.SourceOpenMeteo }

func (s *fakeClimateSource) Fetch(_ context.Context, loc model.Location, r model.DateRange) ([]openmeteo.Daily, error) {
	s.mu.Lock()
	if s.ranges == nil {
		s.ranges = map[string][]model.DateRange{}
	}
	s.ranges[loc.Code] = append(s.ranges[loc.Code], r)
	s.mu.Unlock()

	if err, ok := s.failFor[loc.Code]; ok {
		return nil, err
	}
	var out []openmeteo.Daily
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		out = append(out, openmeteo.Daily{
			Date:           model.DateKey(d),
			TemperatureAvg: model.Float(25 + float64(d.Day()%5)),
			Humidity:       model.Float(75),
			Precipitation:  model.Float(2.5),
		})
	}
	return append(out, s.extra...), nil
}

type fixture struct {
	conn    *gormadapter.GormDBAdapter
	runs    *repository.JobRunRepository
	runner  *runner.SimpleJobRunner
	climate *repository.ClimateStore
	cases   *repository.ArbovirusStore
	preds   *repository.PredictionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := test.OpenSQLite(t)
	runs := repository.NewJobRunRepository(conn)
	return &fixture{
		conn:    conn,
		runs:    runs,
		runner:  runner.NewSimpleJobRunner(runs, nil, nil, nil, runner.Config{Workers: 2}),
		climate: repository.NewClimateStore(conn),
		cases:   repository.NewArbovirusStore(conn),
		preds:   repository.NewPredictionStore(conn),
	}
}

func (f *fixture) climatePipeline(client source.Client[openmeteo.Daily], opts ...PipelineOption) *SourcePipeline[openmeteo.Daily, model.ClimateRecord] {
	merger := merge.New[model.ClimateRecord]("climate", f.climate, gormadapter.NewGormTransactionManager(f.conn), merge.Config{ChunkSize: 4, Tolerance: 1e-6})
	return NewSourcePipeline[openmeteo.Daily, model.ClimateRecord]("climate", client, norm.Climate, merger, opts...)
}

func locations(t *testing.T, codes ...string) []model.Location {
	t.Helper()
	locs, err := model.ResolveLocations(codes)
	require.NoError(t, err)
	return locs
}

var firstWeek = model.NewDateRange(test.Date("2024-01-01"), test.Date("2024-01-07"))

func TestCollector_IdempotentRuns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	collector := NewCollector(ClimateCollectorJob, f.runner, nil, f.climatePipeline(&fakeClimateSource{}))
	locs := locations(t, "3550308", "3304557")

	first, err := collector.Run(ctx, locs, firstWeek)
	require.NoError(t, err)
	assert.Equal(t, batchmodel.JobStatusSuccess, first.Status)
	assert.Equal(t, 14, first.Counts.Fetched)
	assert.Equal(t, 14, first.Counts.Inserted)

	second, err := collector.Run(ctx, locs, firstWeek)
	require.NoError(t, err)
	assert.Equal(t, batchmodel.JobStatusSuccess, second.Status)
	assert.Equal(t, 0, second.Counts.Inserted)
	assert.Equal(t, 0, second.Counts.Updated)
	assert.Equal(t, 14, second.Counts.Unchanged)

	stored, err := f.climate.Find(ctx, "3550308", model.DateRange{})
	require.NoError(t, err)
	assert.Len(t, stored, 7)

	runs, err := f.runs.FindJobRuns(ctx, ClimateCollectorJob, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestCollector_OneLocationFailsIsPartial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := &fakeClimateSource{failFor: map[string]error{
		"3304557": source.Unavailable(model.SourceOpenMeteo, "HTTP 503", errors.New("upstream down")),
	}}
	collector := NewCollector(ClimateCollectorJob, f.runner, nil, f.climatePipeline(src))

	run, err := collector.Run(ctx, locations(t, "3550308", "3304557", "2927408"), firstWeek)
	require.NoError(t, err)
	assert.Equal(t, batchmodel.JobStatusPartial, run.Status)
	assert.Equal(t, 2, run.Counts.LocationsSucceeded)
	assert.Equal(t, 1, run.Counts.LocationsFailed)
	require.Len(t, run.Failures, 1)
	assert.Contains(t, run.Failures[0], "3304557")

	for code, want := range map[string]int{"3550308": 7, "2927408": 7, "3304557": 0} {
		stored, err := f.climate.Find(ctx, code, model.DateRange{})
		require.NoError(t, err)
		assert.Len(t, stored, want, code)
	}

	persisted, err := f.runs.FindJobRunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, batchmodel.JobStatusPartial, persisted.Status)
}

func TestCollector_AllLocationsFailIsFailed(t *testing.T) {
	f := newFixture(t)
	boom := source.Unavailable(model.SourceOpenMeteo, "dial", errors.New("connection refused"))
	src := &fakeClimateSource{failFor: map[string]error{"3550308": boom, "3304557": boom}}
	collector := NewCollector(ClimateCollectorJob, f.runner, nil, f.climatePipeline(src))

	run, err := collector.Run(context.Background(), locations(t, "3550308", "3304557"), firstWeek)
	require.NoError(t, err)
	assert.Equal(t, batchmodel.JobStatusFailed, run.Status)
	assert.Equal(t, 1, run.Status.ExitCode())
}

func TestCollector_MalformedRecordsAreSkipped(t *testing.T) {
	f := newFixture(t)
	src := &fakeClimateSource{extra: []openmeteo.Daily{
		{Date: "2024-01-08", Humidity: model.Float(140)},
		{Date: "not-a-date", Humidity: model.Float(50)},
	}}
	collector := NewCollector(ClimateCollectorJob, f.runner, nil, f.climatePipeline(src))

	run, err := collector.Run(context.Background(), locations(t, "3550308"), firstWeek)
	require.NoError(t, err)
	assert.Equal(t, batchmodel.JobStatusSuccess, run.Status)
	assert.Equal(t, 9, run.Counts.Fetched)
	assert.Equal(t, 2, run.Counts.Skipped)
	assert.Equal(t, 7, run.Counts.Inserted)
}

func TestCollector_SkipLimitFailsLocation(t *testing.T) {
	f := newFixture(t)
	src := &fakeClimateSource{extra: []openmeteo.Daily{
		{Date: "2024-01-08", Humidity: model.Float(140)},
		{Date: "2024-01-09", Humidity: model.Float(-3)},
	}}
	collector := NewCollector(ClimateCollectorJob, f.runner, nil, f.climatePipeline(src, WithSkipLimit(1)))

	run, err := collector.Run(context.Background(), locations(t, "3550308"), firstWeek)
	require.NoError(t, err)
	assert.Equal(t, batchmodel.JobStatusFailed, run.Status)
	assert.Equal(t, 0, run.Counts.Inserted)
	assert.Contains(t, run.Failures[0], "skip limit")
}

// partialSource returns the first days of the range and then fails.
type partialSource struct{ fakeClimateSource }

func (s *partialSource) Fetch(ctx context.Context, loc model.Location, r model.DateRange) ([]openmeteo.Daily, error) {
	done := model.NewDateRange(r.From, r.From.AddDate(0, 0, 2))
	days, _ := s.fakeClimateSource.Fetch(ctx, loc, done)
	return days, &source.PartialError{Completed: done, Err: source.RateLimited(model.SourceOpenMeteo, time.Second)}
}

func TestCollector_PartialFetchKeepsPrefix(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	collector := NewCollector(BackfillJob, f.runner, nil, f.climatePipeline(&partialSource{}))

	run, err := collector.Run(ctx, locations(t, "3550308"), firstWeek)
	require.NoError(t, err)
	assert.Equal(t, batchmodel.JobStatusFailed, run.Status)
	assert.Equal(t, 3, run.Counts.Inserted)
	assert.Contains(t, run.Failures[0], "rate limited")

	latest, found, err := f.climate.LatestDate(ctx, "3550308", model.SourceOpenMeteo)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, test.Date("2024-01-03"), latest)
}

func TestSourcePipeline_ResumesFromLatestStoredDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.climate.Upsert(ctx, f.conn, []model.ClimateRecord{
		test.Climate("3550308", "2024-01-05", 25, 70, 1),
	}))
	src := &fakeClimateSource{}
	p := f.climatePipeline(src, WithResume(f.climate))
	loc := locations(t, "3550308")[0]

	res, err := p.Collect(ctx, loc, model.NewDateRange(test.Date("2024-01-01"), test.Date("2024-01-10")))
	require.NoError(t, err)
	require.Len(t, src.ranges["3550308"], 1)
	assert.Equal(t, "2024-01-05..2024-01-10", src.ranges["3550308"][0].String())
	assert.Equal(t, 6, res.Fetched)
	assert.Equal(t, batchmodel.MergeResult{Inserted: 5, Updated: 1}, res.Merge)

	res, err = p.Collect(ctx, loc, model.NewDateRange(test.Date("2024-01-01"), test.Date("2024-01-09")))
	require.NoError(t, err)
	assert.Equal(t, PipelineResult{}, res)
	assert.Len(t, src.ranges["3550308"], 1, "nothing fetched when already up to date")
}

// weeklyAlerts serves one alert per requested week and answers 503 to the
// first request for failOnce.
func weeklyAlerts(t *testing.T, failOnce string) *httptest.Server {
	t.Helper()
	var failed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("disease") == failOnce && failed.CompareAndSwap(false, true) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		year, _ := strconv.Atoi(q.Get("ey_start"))
		from, _ := strconv.Atoi(q.Get("ew_start"))
		to, _ := strconv.Atoi(q.Get("ew_end"))
		rows := []string{}
		for wk := from; wk <= to; wk++ {
			rows = append(rows, fmt.Sprintf(`{"SE":%d,"casos":%d}`, year*100+wk, wk))
		}
		_, _ = fmt.Fprintf(w, "[%s]", strings.Join(rows, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSourcePipeline_ResumeRecoversFailedDisease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	diseases := []string{"dengue", "chikungunya"}
	srv := weeklyAlerts(t, "chikungunya")
	client := infodengue.NewClient(config.InfoDengueConfig{URL: srv.URL, Diseases: diseases, Timeout: time.Second})
	merger := merge.New[model.ArbovirusRecord]("arbovirus", f.cases, gormadapter.NewGormTransactionManager(f.conn), merge.Config{ChunkSize: 8})
	p := NewSourcePipeline[infodengue.Alert, model.ArbovirusRecord]("arbovirus", client, norm.Arbovirus, merger,
		WithResume(ResumeAcrossDiseases(f.cases, diseases)))
	loc := locations(t, "3550308")[0]
	quarter := model.NewDateRange(test.Date("2024-01-01"), test.Date("2024-03-31"))

	weeks := func(disease string) int {
		recs, err := f.cases.Find(ctx, loc.Code, disease, model.DateRange{})
		require.NoError(t, err)
		return len(recs)
	}

	_, err := p.Collect(ctx, loc, quarter)
	require.ErrorIs(t, err, source.ErrSourceUnavailable)
	assert.Equal(t, 13, weeks("dengue"))
	assert.Equal(t, 0, weeks("chikungunya"))

	res, err := p.Collect(ctx, loc, quarter)
	require.NoError(t, err)
	assert.Equal(t, 13, res.Merge.Inserted)
	assert.Equal(t, 13, weeks("dengue"))
	assert.Equal(t, 13, weeks("chikungunya"))
}

func TestResumeAcrossDiseases_EarliestLatestDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	chik := test.Arbovirus("3550308", "2024-01-29", 4)
	chik.DiseaseType = "chikungunya"
	require.NoError(t, f.cases.Upsert(ctx, f.conn, []model.ArbovirusRecord{
		test.Arbovirus("3550308", "2024-03-25", 40),
		chik,
	}))

	latest, found, err := ResumeAcrossDiseases(f.cases, []string{"dengue", "chikungunya"}).LatestDate(ctx, "3550308", model.SourceInfoDengue)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, test.Date("2024-01-29"), latest)

	_, found, err = ResumeAcrossDiseases(f.cases, []string{"dengue", "zika"}).LatestDate(ctx, "3550308", model.SourceInfoDengue)
	require.NoError(t, err)
	assert.False(t, found, "a disease with no history restarts the full range")
}

// stubPipeline returns a fixed error for every location.
type stubPipeline struct {
	calls int
	mu    sync.Mutex
	err   error
}

func (p *stubPipeline) Name() string { return "stub" }

func (p *stubPipeline) Collect(context.Context, model.Location, model.DateRange) (PipelineResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return PipelineResult{}, p.err
}

func TestCollector_StorageUnavailableFailsRun(t *testing.T) {
	f := newFixture(t)
	f.runner = runner.NewSimpleJobRunner(f.runs, nil, nil, nil, runner.Config{Workers: 1})
	stub := &stubPipeline{err: fmt.Errorf("climate.FindExisting: %w", batchrepo.ErrStorageUnavailable)}
	second := &stubPipeline{}
	collector := NewCollector(ClimateCollectorJob, f.runner, nil, stub, second)

	run, err := collector.Run(context.Background(), locations(t, "3550308", "3304557", "2927408"), firstWeek)
	require.NoError(t, err)
	assert.Equal(t, batchmodel.JobStatusFailed, run.Status)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, 0, second.calls)
}

func TestCollector_PipelineErrorsAreJoined(t *testing.T) {
	f := newFixture(t)
	collector := NewCollector(BackfillJob, f.runner, nil,
		&stubPipeline{err: errors.New("climate down")},
		&stubPipeline{err: errors.New("cases down")})

	run, err := collector.Run(context.Background(), locations(t, "3550308"), firstWeek)
	require.NoError(t, err)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, "3550308: climate down; cases down", run.Failures[0])
}
