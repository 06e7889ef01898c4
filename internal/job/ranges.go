package job

import (
	"fmt"
	"time"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// Today returns the current calendar date in the named time zone, as a UTC midnight.
func Today(tz string) time.Time {
	now := time.Now()
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			logger.Warnf("Unknown time zone %q, using UTC: %v", tz, err)
		} else {
			now = now.In(loc)
		}
	}
	return model.Day(now)
}

// ClimateRange covers the daysBack complete days before today.
func ClimateRange(today time.Time, daysBack int) model.DateRange {
	return model.LastDays(today.AddDate(0, 0, -1), daysBack)
}

// EpiRange covers the current epidemiological week and the weeksBack before it.
func EpiRange(today time.Time, weeksBack int) model.DateRange {
	if weeksBack < 0 {
		weeksBack = 0
	}
	year, week := model.EpiWeek(today)
	start := model.EpiWeekStart(year, week).AddDate(0, 0, -7*weeksBack)
	return model.NewDateRange(start, today)
}

// BackfillRange runs from start (YYYY-MM-DD) to yesterday.
func BackfillRange(start string, today time.Time) (model.DateRange, error) {
	from, err := time.Parse(model.DateLayout, start)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("invalid backfill start date %q: want YYYY-MM-DD", start)
	}
	r := model.NewDateRange(from, today.AddDate(0, 0, -1))
	if r.IsEmpty() {
		return model.DateRange{}, fmt.Errorf("backfill start date %s is not in the past", start)
	}
	return r, nil
}

// TargetPeriod parses configured, defaulting to the month after today.
func TargetPeriod(configured string, today time.Time) (model.Period, error) {
	if configured == "" {
		return model.PeriodOf(today).Add(1), nil
	}
	return model.ParsePeriod(configured)
}
