// Package normalize turns raw provider payloads into canonical records.
// It performs no I/O; a record that fails validation yields ErrMalformedRecord.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/internal/source/infodengue"
	"github.com/tigerroll/arbovirus-pipeline/internal/source/openmeteo"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/exception"
)

const moduleName = "normalize"

// ErrMalformedRecord marks a single record that cannot be normalized.
var ErrMalformedRecord = errors.New("malformed record")

func malformed(loc model.Location, detail string) error {
	return exception.NewBatchError(moduleName, "malformed record for "+loc.Code,
		fmt.Errorf("%w: %s", ErrMalformedRecord, detail), true, false)
}

// Normalizer validates and converts raw records. Dates after Today are rejected.
type Normalizer struct {
	Today time.Time
}

// New returns a Normalizer pinned to the current UTC date.
func New() *Normalizer {
	return &Normalizer{Today: model.Day(time.Now().UTC())}
}

func (n *Normalizer) checkLocation(p *problems, loc model.Location) {
	if !ValidLocationCode(loc.Code) {
		p.addf("invalid location code %q", loc.Code)
	}
	if loc.State != "" && !ValidState(loc.State) {
		p.addf("invalid state %q", loc.State)
	}
}

// Climate converts one day of Open-Meteo data.
func (n *Normalizer) Climate(raw openmeteo.Daily, loc model.Location, src string) (model.ClimateRecord, error) {
	var p problems
	n.checkLocation(&p, loc)

	date, err := time.Parse(model.DateLayout, raw.Date)
	if err != nil {
		return model.ClimateRecord{}, malformed(loc, fmt.Sprintf("invalid date %q", raw.Date))
	}
	p.date(date, n.Today)

	temp := raw.TemperatureAvg
	if temp == nil && raw.TemperatureMin != nil && raw.TemperatureMax != nil {
		temp = model.Float((*raw.TemperatureMin + *raw.TemperatureMax) / 2)
	}
	rec := model.ClimateRecord{
		LocationCode:   loc.Code,
		Date:           date,
		Source:         src,
		Temperature:    temp,
		TemperatureMin: raw.TemperatureMin,
		TemperatureMax: raw.TemperatureMax,
		Humidity:       raw.Humidity,
		Precipitation:  raw.Precipitation,
		WindSpeed:      raw.WindSpeed,
		Pressure:       raw.Pressure,
	}
	if rec.Temperature == nil && rec.TemperatureMin == nil && rec.TemperatureMax == nil &&
		rec.Humidity == nil && rec.Precipitation == nil && rec.WindSpeed == nil && rec.Pressure == nil {
		p.addf("no measurements on %s", raw.Date)
	}

	p.inRange("temperature", rec.Temperature, temperatureRange)
	p.inRange("temperature_min", rec.TemperatureMin, temperatureRange)
	p.inRange("temperature_max", rec.TemperatureMax, temperatureRange)
	p.inRange("humidity", rec.Humidity, humidityRange)
	p.inRange("precipitation", rec.Precipitation, precipitationRange)
	p.inRange("wind_speed", rec.WindSpeed, windSpeedRange)
	p.inRange("pressure", rec.Pressure, pressureRange)
	if rec.TemperatureMin != nil && rec.TemperatureMax != nil && *rec.TemperatureMin > *rec.TemperatureMax {
		p.addf("temperature_min %.2f above temperature_max %.2f", *rec.TemperatureMin, *rec.TemperatureMax)
	}

	if len(p) > 0 {
		return model.ClimateRecord{}, malformed(loc, p.String())
	}
	return rec, nil
}

var alertColours = map[string]int{
	"verde":    1,
	"amarelo":  2,
	"laranja":  3,
	"vermelho": 4,
}

// Arbovirus converts one InfoDengue alert.
func (n *Normalizer) Arbovirus(raw infodengue.Alert, loc model.Location, src string) (model.ArbovirusRecord, error) {
	var p problems
	n.checkLocation(&p, loc)

	disease := strings.ToLower(strings.TrimSpace(raw.Disease))
	if !ValidDisease(disease) {
		p.addf("invalid disease %q", raw.Disease)
	}

	year, week, hasSE := parseSE(raw.SE)
	date, hasDate, err := parseWeekStart(raw.WeekStart)
	if err != nil {
		return model.ArbovirusRecord{}, malformed(loc, err.Error())
	}
	switch {
	case !hasDate && !hasSE:
		return model.ArbovirusRecord{}, malformed(loc, "neither data_iniSE nor SE present")
	case !hasDate:
		date = model.EpiWeekStart(year, week)
	case !hasSE:
		year, week = model.EpiWeek(date)
	}
	p.date(date, n.Today)
	p.epiWeek(year, week, n.Today)

	cases := raw.CasesEstimated
	if cases == nil {
		cases = raw.Cases
	}
	if cases == nil {
		p.addf("no case count")
	}
	p.inRange("case_count", cases, caseCountRange)
	p.inRange("cases_confirmed", raw.CasesConfirmed, caseCountRange)
	p.inRange("incidence_rate", raw.Incidence, incidenceRange)
	p.inRange("population", raw.Population, populationRange)

	level, err := parseLevel(raw.Level)
	if err != nil {
		p.addf("%v", err)
	}
	if level != nil {
		p.inRange("alert_level", model.Float(float64(*level)), alertLevelRange)
	}

	if len(p) > 0 {
		return model.ArbovirusRecord{}, malformed(loc, p.String())
	}

	rec := model.ArbovirusRecord{
		LocationCode:  loc.Code,
		Date:          date,
		DiseaseType:   disease,
		Source:        src,
		EpiYear:       year,
		EpiWeek:       week,
		CaseCount:     int(math.Round(*cases)),
		IncidenceRate: raw.Incidence,
		AlertLevel:    level,
	}
	if raw.CasesConfirmed != nil {
		rec.CasesConfirmed = model.Int(int(math.Round(*raw.CasesConfirmed)))
	}
	if raw.Population != nil {
		rec.Population = model.Int64(int64(math.Round(*raw.Population)))
	}
	return rec, nil
}

// parseSE splits YYYYWW.
func parseSE(v interface{}) (year, week int, ok bool) {
	var se int
	switch t := v.(type) {
	case float64:
		se = int(t)
	case int:
		se = t
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, 0, false
		}
		se = i
	default:
		return 0, 0, false
	}
	if se < 100000 {
		return 0, 0, false
	}
	return se / 100, se % 100, true
}

// parseWeekStart accepts epoch milliseconds or YYYY-MM-DD.
func parseWeekStart(v interface{}) (time.Time, bool, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case float64:
		return model.Day(time.UnixMilli(int64(t)).UTC()), true, nil
	case int64:
		return model.Day(time.UnixMilli(t).UTC()), true, nil
	case string:
		s := strings.TrimSpace(t)
		if len(s) > len(model.DateLayout) {
			s = s[:len(model.DateLayout)]
		}
		d, err := time.Parse(model.DateLayout, s)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid data_iniSE %q", t)
		}
		return d, true, nil
	default:
		return time.Time{}, false, fmt.Errorf("unsupported data_iniSE type %T", v)
	}
}

// parseLevel accepts a number or a colour name.
func parseLevel(v interface{}) (*int, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return model.Int(int(t)), nil
	case int:
		return model.Int(t), nil
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if s == "" {
			return nil, nil
		}
		if lvl, ok := alertColours[s]; ok {
			return model.Int(lvl), nil
		}
		if i, err := strconv.Atoi(s); err == nil {
			return model.Int(i), nil
		}
		return nil, fmt.Errorf("unknown alert level %q", t)
	default:
		return nil, fmt.Errorf("unsupported alert level type %T", v)
	}
}
