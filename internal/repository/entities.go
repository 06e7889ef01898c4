package repository

import (
	"time"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	batchmodel "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/domain/model"
)

// Unique key columns, matching the unique indexes of the migrations.
var (
	climateKeyColumns    = []string{"location_code", "date", "source"}
	arbovirusKeyColumns  = []string{"location_code", "date", "disease_type", "source"}
	predictionKeyColumns = []string{"location_code", "period"}
)

// Columns rewritten when an existing row changes. created_at is kept.
var (
	climateUpdateColumns = []string{
		"temperature", "temperature_min", "temperature_max", "humidity",
		"precipitation", "wind_speed", "pressure", "updated_at",
	}
	arbovirusUpdateColumns = []string{
		"epi_year", "epi_week", "case_count", "cases_confirmed", "incidence_rate",
		"alert_level", "population", "updated_at",
	}
	predictionUpdateColumns = []string{
		"risk_score", "risk_level", "history_points", "model_version", "generated_at", "updated_at",
	}
)

type climateEntity struct {
	ID             uint      `gorm:"primaryKey"`
	LocationCode   string    `gorm:"column:location_code"`
	Date           time.Time `gorm:"column:date"`
	Source         string    `gorm:"column:source"`
	Temperature    *float64  `gorm:"column:temperature"`
	TemperatureMin *float64  `gorm:"column:temperature_min"`
	TemperatureMax *float64  `gorm:"column:temperature_max"`
	Humidity       *float64  `gorm:"column:humidity"`
	Precipitation  *float64  `gorm:"column:precipitation"`
	WindSpeed      *float64  `gorm:"column:wind_speed"`
	Pressure       *float64  `gorm:"column:pressure"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (climateEntity) TableName() string { return "climate_records" }

func toClimateEntity(r model.ClimateRecord, now time.Time) climateEntity {
	return climateEntity{
		LocationCode:   r.LocationCode,
		Date:           model.Day(r.Date),
		Source:         r.Source,
		Temperature:    r.Temperature,
		TemperatureMin: r.TemperatureMin,
		TemperatureMax: r.TemperatureMax,
		Humidity:       r.Humidity,
		Precipitation:  r.Precipitation,
		WindSpeed:      r.WindSpeed,
		Pressure:       r.Pressure,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (e climateEntity) toModel() model.ClimateRecord {
	return model.ClimateRecord{
		LocationCode:   e.LocationCode,
		Date:           model.Day(e.Date),
		Source:         e.Source,
		Temperature:    e.Temperature,
		TemperatureMin: e.TemperatureMin,
		TemperatureMax: e.TemperatureMax,
		Humidity:       e.Humidity,
		Precipitation:  e.Precipitation,
		WindSpeed:      e.WindSpeed,
		Pressure:       e.Pressure,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

type arbovirusEntity struct {
	ID             uint      `gorm:"primaryKey"`
	LocationCode   string    `gorm:"column:location_code"`
	Date           time.Time `gorm:"column:date"`
	DiseaseType    string    `gorm:"column:disease_type"`
	Source         string    `gorm:"column:source"`
	EpiYear        int       `gorm:"column:epi_year"`
	EpiWeek        int       `gorm:"column:epi_week"`
	CaseCount      int       `gorm:"column:case_count"`
	CasesConfirmed *int      `gorm:"column:cases_confirmed"`
	IncidenceRate  *float64  `gorm:"column:incidence_rate"`
	AlertLevel     *int      `gorm:"column:alert_level"`
	Population     *int64    `gorm:"column:population"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (arbovirusEntity) TableName() string { return "arbovirus_records" }

func toArbovirusEntity(r model.ArbovirusRecord, now time.Time) arbovirusEntity {
	return arbovirusEntity{
		LocationCode:   r.LocationCode,
		Date:           model.Day(r.Date),
		DiseaseType:    r.DiseaseType,
		Source:         r.Source,
		EpiYear:        r.EpiYear,
		EpiWeek:        r.EpiWeek,
		CaseCount:      r.CaseCount,
		CasesConfirmed: r.CasesConfirmed,
		IncidenceRate:  r.IncidenceRate,
		AlertLevel:     r.AlertLevel,
		Population:     r.Population,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (e arbovirusEntity) toModel() model.ArbovirusRecord {
	return model.ArbovirusRecord{
		LocationCode:   e.LocationCode,
		Date:           model.Day(e.Date),
		DiseaseType:    e.DiseaseType,
		Source:         e.Source,
		EpiYear:        e.EpiYear,
		EpiWeek:        e.EpiWeek,
		CaseCount:      e.CaseCount,
		CasesConfirmed: e.CasesConfirmed,
		IncidenceRate:  e.IncidenceRate,
		AlertLevel:     e.AlertLevel,
		Population:     e.Population,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

type predictionEntity struct {
	ID            uint      `gorm:"primaryKey"`
	LocationCode  string    `gorm:"column:location_code"`
	Period        string    `gorm:"column:period"`
	RiskScore     float64   `gorm:"column:risk_score"`
	RiskLevel     string    `gorm:"column:risk_level"`
	HistoryPoints int       `gorm:"column:history_points"`
	ModelVersion  string    `gorm:"column:model_version"`
	GeneratedAt   time.Time `gorm:"column:generated_at"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (predictionEntity) TableName() string { return "prediction_records" }

func toPredictionEntity(r model.PredictionRecord, now time.Time) predictionEntity {
	return predictionEntity{
		LocationCode:  r.LocationCode,
		Period:        r.Period.String(),
		RiskScore:     r.RiskScore,
		RiskLevel:     r.RiskLevel,
		HistoryPoints: r.HistoryPoints,
		ModelVersion:  r.ModelVersion,
		GeneratedAt:   r.GeneratedAt.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (e predictionEntity) toModel() (model.PredictionRecord, error) {
	p, err := model.ParsePeriod(e.Period)
	if err != nil {
		return model.PredictionRecord{}, err
	}
	return model.PredictionRecord{
		LocationCode:  e.LocationCode,
		Period:        p,
		RiskScore:     e.RiskScore,
		RiskLevel:     e.RiskLevel,
		HistoryPoints: e.HistoryPoints,
		ModelVersion:  e.ModelVersion,
		GeneratedAt:   e.GeneratedAt.UTC(),
	}, nil
}

type jobRunEntity struct {
	ID                 string                 `gorm:"column:id;primaryKey"`
	JobName            string                 `gorm:"column:job_name"`
	Status             string                 `gorm:"column:status"`
	StartedAt          time.Time              `gorm:"column:started_at"`
	FinishedAt         *time.Time             `gorm:"column:finished_at"`
	LocationsTotal     int                    `gorm:"column:locations_total"`
	LocationsSucceeded int                    `gorm:"column:locations_succeeded"`
	LocationsFailed    int                    `gorm:"column:locations_failed"`
	LocationsSkipped   int                    `gorm:"column:locations_skipped"`
	Fetched            int                    `gorm:"column:fetched"`
	Inserted           int                    `gorm:"column:inserted"`
	Updated            int                    `gorm:"column:updated"`
	Unchanged          int                    `gorm:"column:unchanged"`
	Skipped            int                    `gorm:"column:skipped"`
	Failed             int                    `gorm:"column:failed"`
	Failures           batchmodel.FailureList `gorm:"column:failures"`
	Version            int                    `gorm:"column:version"`
}

func (jobRunEntity) TableName() string { return "job_runs" }

func toJobRunEntity(r *batchmodel.JobRun) jobRunEntity {
	c := r.Counts
	return jobRunEntity{
		ID:                 r.ID,
		JobName:            r.JobName,
		Status:             r.Status.String(),
		StartedAt:          r.StartedAt.UTC(),
		FinishedAt:         r.FinishedAt,
		LocationsTotal:     c.LocationsTotal,
		LocationsSucceeded: c.LocationsSucceeded,
		LocationsFailed:    c.LocationsFailed,
		LocationsSkipped:   c.LocationsSkipped,
		Fetched:            c.Fetched,
		Inserted:           c.Inserted,
		Updated:            c.Updated,
		Unchanged:          c.Unchanged,
		Skipped:            c.Skipped,
		Failed:             c.Failed,
		Failures:           r.Failures,
		Version:            r.Version,
	}
}

func (e jobRunEntity) toModel() *batchmodel.JobRun {
	var finished *time.Time
	if e.FinishedAt != nil {
		f := e.FinishedAt.UTC()
		finished = &f
	}
	failures := e.Failures
	if failures == nil {
		failures = batchmodel.FailureList{}
	}
	return &batchmodel.JobRun{
		ID:         e.ID,
		JobName:    e.JobName,
		Status:     batchmodel.JobStatus(e.Status),
		StartedAt:  e.StartedAt.UTC(),
		FinishedAt: finished,
		Counts: batchmodel.RunCounts{
			LocationsTotal:     e.LocationsTotal,
			LocationsSucceeded: e.LocationsSucceeded,
			LocationsFailed:    e.LocationsFailed,
			LocationsSkipped:   e.LocationsSkipped,
			Fetched:            e.Fetched,
			Inserted:           e.Inserted,
			Updated:            e.Updated,
			Unchanged:          e.Unchanged,
			Skipped:            e.Skipped,
			Failed:             e.Failed,
		},
		Failures: failures,
		Version:  e.Version,
	}
}
