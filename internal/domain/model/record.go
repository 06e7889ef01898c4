// Package model holds the records the pipeline collects and predicts.
package model

import (
	"fmt"
	"math"
	"time"
)

// Source tags.
const (
	SourceOpenMeteo  = "open-meteo"
	SourceInfoDengue = "infodengue"
)

// DateLayout is the wire and key layout of calendar dates.
const DateLayout = "2006-01-02"

// Record is a mergeable record. Key identifies the record under its uniqueness
// constraint; SameAs reports whether two records with the same key carry the
// same values.
type Record[T any] interface {
	Key() string
	RecordDate() time.Time
	SameAs(other T, tolerance float64) bool
}

// ClimateRecord is one day of weather at a location.
type ClimateRecord struct {
	LocationCode   string    `json:"location_code"`
	Date           time.Time `json:"date"`
	Source         string    `json:"source"`
	Temperature    *float64  `json:"temperature,omitempty"` // daily mean, °C
	TemperatureMin *float64  `json:"temperature_min,omitempty"`
	TemperatureMax *float64  `json:"temperature_max,omitempty"`
	Humidity       *float64  `json:"humidity,omitempty"`      // %
	Precipitation  *float64  `json:"precipitation,omitempty"` // mm
	WindSpeed      *float64  `json:"wind_speed,omitempty"`    // km/h
	Pressure       *float64  `json:"pressure,omitempty"`      // hPa
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Key returns location|date|source.
func (r ClimateRecord) Key() string {
	return fmt.Sprintf("%s|%s|%s", r.LocationCode, DateKey(r.Date), r.Source)
}

func (r ClimateRecord) RecordDate() time.Time { return r.Date }

// SameAs compares the measurement fields.
func (r ClimateRecord) SameAs(o ClimateRecord, tolerance float64) bool {
	return FloatPtrEqual(r.Temperature, o.Temperature, tolerance) &&
		FloatPtrEqual(r.TemperatureMin, o.TemperatureMin, tolerance) &&
		FloatPtrEqual(r.TemperatureMax, o.TemperatureMax, tolerance) &&
		FloatPtrEqual(r.Humidity, o.Humidity, tolerance) &&
		FloatPtrEqual(r.Precipitation, o.Precipitation, tolerance) &&
		FloatPtrEqual(r.WindSpeed, o.WindSpeed, tolerance) &&
		FloatPtrEqual(r.Pressure, o.Pressure, tolerance)
}

// ArbovirusRecord is one epidemiological week of one disease at a location.
// Date is the first day of the week.
type ArbovirusRecord struct {
	LocationCode   string    `json:"location_code"`
	Date           time.Time `json:"date"`
	DiseaseType    string    `json:"disease_type"`
	Source         string    `json:"source"`
	EpiYear        int       `json:"epi_year"`
	EpiWeek        int       `json:"epi_week"`
	CaseCount      int       `json:"case_count"`
	CasesConfirmed *int      `json:"cases_confirmed,omitempty"`
	IncidenceRate  *float64  `json:"incidence_rate,omitempty"` // per 100k inhabitants
	AlertLevel     *int      `json:"alert_level,omitempty"`    // 0..4
	Population     *int64    `json:"population,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Key returns location|date|disease|source.
func (r ArbovirusRecord) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", r.LocationCode, DateKey(r.Date), r.DiseaseType, r.Source)
}

func (r ArbovirusRecord) RecordDate() time.Time { return r.Date }

func (r ArbovirusRecord) SameAs(o ArbovirusRecord, tolerance float64) bool {
	return r.EpiYear == o.EpiYear &&
		r.EpiWeek == o.EpiWeek &&
		r.CaseCount == o.CaseCount &&
		intPtrEqual(r.CasesConfirmed, o.CasesConfirmed) &&
		FloatPtrEqual(r.IncidenceRate, o.IncidenceRate, tolerance) &&
		intPtrEqual(r.AlertLevel, o.AlertLevel) &&
		int64PtrEqual(r.Population, o.Population)
}

// Risk levels derived from the score quartiles.
const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
	RiskVeryHigh = "very_high"
)

// RiskLevelFor maps a score in [0,1] to its quartile level.
func RiskLevelFor(score float64) string {
	switch {
	case score < 0.25:
		return RiskLow
	case score < 0.5:
		return RiskModerate
	case score < 0.75:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// PredictionRecord is the outbreak risk of a location for one month.
// There is at most one per (LocationCode, Period); later runs overwrite it.
type PredictionRecord struct {
	LocationCode  string    `json:"location_code"`
	Period        Period    `json:"period"`
	RiskScore     float64   `json:"risk_score"`
	RiskLevel     string    `json:"risk_level"`
	HistoryPoints int       `json:"history_points"`
	ModelVersion  string    `json:"model_version"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Key returns location|period.
func (r PredictionRecord) Key() string {
	return r.LocationCode + "|" + r.Period.String()
}

// DateKey formats t as a UTC calendar date.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FloatPtrEqual compares two optional values within tolerance. nil equals nil only.
func FloatPtrEqual(a, b *float64, tolerance float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) <= tolerance
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
