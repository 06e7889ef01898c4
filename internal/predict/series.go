// Package predict turns a monthly climate and case history into an outbreak risk score.
package predict

import (
	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
)

// Point aggregates one month of a location's history.
type Point struct {
	Period        model.Period `json:"period"`
	Temperature   float64      `json:"temperature"`   // mean of daily means, °C
	Humidity      float64      `json:"humidity"`      // mean, %
	Precipitation float64      `json:"precipitation"` // total, mm
	Cases         int          `json:"cases"`         // sum over the weeks starting in the month
}

// Series is the history a Model scores, oldest point first.
type Series struct {
	LocationCode string       `json:"location_code"`
	Target       model.Period `json:"target_period"`
	Points       []Point      `json:"points"`
}

// Window returns the lookback months preceding target, oldest first.
func Window(target model.Period, lookback int) []model.Period {
	out := make([]model.Period, 0, lookback)
	for i := lookback; i >= 1; i-- {
		out = append(out, target.Add(-i))
	}
	return out
}

// WindowRange is the day range covered by Window.
func WindowRange(target model.Period, lookback int) model.DateRange {
	return model.NewDateRange(target.Add(-lookback).Start(), target.Add(-1).End())
}

type monthAgg struct {
	temp, hum  sum
	precip     sum
	cases      int
	hasClimate bool
	hasCases   bool
}

type sum struct {
	total float64
	n     int
}

func (s *sum) add(v *float64) {
	if v != nil {
		s.total += *v
		s.n++
	}
}

func (s sum) mean() float64 {
	if s.n == 0 {
		return 0
	}
	return s.total / float64(s.n)
}

// BuildSeries aggregates daily climate and weekly case records into monthly
// points over the lookback window of target. A month becomes a point only
// when it has both climate and case data.
func BuildSeries(locationCode string, target model.Period, lookback int, climate []model.ClimateRecord, cases []model.ArbovirusRecord) Series {
	months := Window(target, lookback)
	aggs := make(map[model.Period]*monthAgg, len(months))
	for _, p := range months {
		aggs[p] = &monthAgg{}
	}

	for _, c := range climate {
		agg, ok := aggs[model.PeriodOf(c.Date)]
		if !ok {
			continue
		}
		agg.temp.add(c.Temperature)
		agg.hum.add(c.Humidity)
		agg.precip.add(c.Precipitation)
		if c.Temperature != nil || c.Humidity != nil || c.Precipitation != nil {
			agg.hasClimate = true
		}
	}
	for _, a := range cases {
		agg, ok := aggs[model.PeriodOf(a.Date)]
		if !ok {
			continue
		}
		agg.cases += a.CaseCount
		agg.hasCases = true
	}

	s := Series{LocationCode: locationCode, Target: target}
	for _, p := range months {
		agg := aggs[p]
		if !agg.hasClimate || !agg.hasCases {
			continue
		}
		s.Points = append(s.Points, Point{
			Period:        p,
			Temperature:   agg.temp.mean(),
			Humidity:      agg.hum.mean(),
			Precipitation: agg.precip.total,
			Cases:         agg.cases,
		})
	}
	return s
}
