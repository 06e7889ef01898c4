package model

import (
	"fmt"
	"strconv"
	"time"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: want YYYY-MM", s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// String returns "YYYY-MM".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Start is the first day of the month, UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the month, UTC.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Add returns the period n months later (earlier when n is negative).
func (p Period) Add(n int) Period {
	return PeriodOf(p.Start().AddDate(0, n, 0))
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool {
	return p.Start().Before(o.Start())
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange truncates both bounds to days.
func NewDateRange(from, to time.Time) DateRange {
	return DateRange{From: Day(from), To: Day(to)}
}

// LastDays returns the n days ending at end.
func LastDays(end time.Time, n int) DateRange {
	if n < 1 {
		n = 1
	}
	return NewDateRange(end.AddDate(0, 0, -(n - 1)), end)
}

// IsEmpty reports whether From is after To.
func (r DateRange) IsEmpty() bool {
	return r.From.After(r.To)
}

// Days returns the number of days in the range.
func (r DateRange) Days() int {
	if r.IsEmpty() {
		return 0
	}
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// Contains reports whether t's day lies in the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(r.From) && !d.After(r.To)
}

// Resume narrows the range to start at from when from lies after From.
// The returned range is empty when from is after To.
func (r DateRange) Resume(from time.Time) DateRange {
	d := Day(from)
	if d.After(r.From) {
		r.From = d
	}
	return r
}

// Split cuts the range into consecutive windows of at most days days.
func (r DateRange) Split(days int) []DateRange {
	if r.IsEmpty() {
		return nil
	}
	if days <= 0 {
		return []DateRange{r}
	}
	var out []DateRange
	for from := r.From; !from.After(r.To); from = from.AddDate(0, 0, days) {
		to := from.AddDate(0, 0, days-1)
		if to.After(r.To) {
			to = r.To
		}
		out = append(out, DateRange{From: from, To: to})
	}
	return out
}

// String returns "from..to".
func (r DateRange) String() string {
	return DateKey(r.From) + ".." + DateKey(r.To)
}

// EpiWeek returns the epidemiological year and week of t (ISO week numbering).
func EpiWeek(t time.Time) (year, week int) {
	return t.ISOWeek()
}

// EpiWeekStart returns the Monday starting ISO week (year, week).
func EpiWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset)
	return monday.AddDate(0, 0, (week-1)*7)
}

// MarshalJSON encodes the period as "YYYY-MM".
func (p Period) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON decodes "YYYY-MM".
func (p *Period) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("invalid period %s", b)
	}
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
