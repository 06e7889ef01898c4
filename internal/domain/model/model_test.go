package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestFloatPtrEqual(t *testing.T) {
	assert.True(t, FloatPtrEqual(nil, nil, 1e-6))
	assert.False(t, FloatPtrEqual(Float(0), nil, 1e-6))
	assert.False(t, FloatPtrEqual(nil, Float(0), 1e-6))
	assert.True(t, FloatPtrEqual(Float(25.1), Float(25.1000004), 1e-6))
	assert.False(t, FloatPtrEqual(Float(25.1), Float(25.101), 1e-6))
}

func TestClimateRecord_KeyAndSameAs(t *testing.T) {
	a := ClimateRecord{LocationCode: "3550308", Date: day("2024-01-15"), Source: SourceOpenMeteo, Temperature: Float(24.3)}
	b := a
	b.Date = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	b.Temperature = Float(24.3 + 1e-9)
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "3550308|2024-01-15|open-meteo", a.Key())
	assert.True(t, a.SameAs(b, 1e-6))

	b.Humidity = Float(80)
	assert.False(t, a.SameAs(b, 1e-6))
}

func TestArbovirusRecord_SameAs(t *testing.T) {
	a := ArbovirusRecord{LocationCode: "3550308", Date: day("2024-01-07"), DiseaseType: "dengue", Source: SourceInfoDengue, EpiYear: 2024, EpiWeek: 1, CaseCount: 10, AlertLevel: Int(2)}
	b := a
	assert.True(t, a.SameAs(b, 1e-6))
	b.CaseCount = 11
	assert.False(t, a.SameAs(b, 1e-6))
	b = a
	b.AlertLevel = nil
	assert.False(t, a.SameAs(b, 1e-6))
	assert.Equal(t, "3550308|2024-01-07|dengue|infodengue", a.Key())
}

func TestRiskLevelFor(t *testing.T) {
	assert.Equal(t, RiskLow, RiskLevelFor(0))
	assert.Equal(t, RiskModerate, RiskLevelFor(0.25))
	assert.Equal(t, RiskHigh, RiskLevelFor(0.6))
	assert.Equal(t, RiskVeryHigh, RiskLevelFor(1))
}

func TestPeriod(t *testing.T) {
	p, err := ParsePeriod("2024-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01", p.String())
	assert.Equal(t, "2023-12", p.Add(-1).String())
	assert.Equal(t, "2025-01", p.Add(12).String())
	assert.Equal(t, day("2024-01-31"), p.End())
	assert.True(t, p.Add(-1).Before(p))

	_, err = ParsePeriod("2024-13")
	assert.Error(t, err)
}

func TestDateRange_ResumeAndSplit(t *testing.T) {
	r := NewDateRange(day("2024-01-01"), day("2024-01-10"))
	assert.Equal(t, 10, r.Days())

	resumed := r.Resume(day("2024-01-08"))
	assert.Equal(t, day("2024-01-08"), resumed.From)
	assert.Equal(t, 3, resumed.Days())

	assert.Equal(t, r, r.Resume(day("2023-12-01")))
	assert.True(t, r.Resume(day("2024-02-01")).IsEmpty())

	parts := r.Split(4)
	require.Len(t, parts, 3)
	assert.Equal(t, "2024-01-01..2024-01-04", parts[0].String())
	assert.Equal(t, "2024-01-09..2024-01-10", parts[2].String())
}

func TestEpiWeek(t *testing.T) {
	y, w := EpiWeek(day("2024-01-01"))
	assert.Equal(t, 2024, y)
	assert.Equal(t, 1, w)
	assert.Equal(t, day("2024-01-01"), EpiWeekStart(2024, 1))
	assert.Equal(t, day("2020-12-28"), EpiWeekStart(2020, 53))
}

func TestResolveLocations(t *testing.T) {
	locs, err := ResolveLocations([]string{"3550308", "5300108"})
	require.NoError(t, err)
	assert.Equal(t, "São Paulo", locs[0].Name)
	assert.Len(t, Catalog(), 6)

	_, err = ResolveLocations([]string{"0000000"})
	assert.Error(t, err)
}
