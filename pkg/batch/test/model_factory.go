package test

import (
	"time"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
)

// Date parses YYYY-MM-DD as a UTC day and panics on bad input.
func Date(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// Climate builds a climate record with temperature, humidity and precipitation set.
func Climate(location, date string, temp, humidity, precip float64) model.ClimateRecord {
	return model.ClimateRecord{
		LocationCode:  location,
		Date:          Date(date),
		Source:        model.SourceOpenMeteo,
		Temperature:   model.Float(temp),
		Humidity:      model.Float(humidity),
		Precipitation: model.Float(precip),
	}
}

// Arbovirus builds a dengue record for the epidemiological week starting on date.
func Arbovirus(location, date string, cases int) model.ArbovirusRecord {
	d := Date(date)
	year, week := model.EpiWeek(d)
	return model.ArbovirusRecord{
		LocationCode: location,
		Date:         d,
		DiseaseType:  "dengue",
		Source:       model.SourceInfoDengue,
		EpiYear:      year,
		EpiWeek:      week,
		CaseCount:    cases,
	}
}
