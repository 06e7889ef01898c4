package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var locationCodePattern = regexp.MustCompile(`^\d{7}$`)

var validStates = map[string]struct{}{
	"AC": {}, "AL": {}, "AP": {}, "AM": {}, "BA": {}, "CE": {}, "DF": {}, "ES": {}, "GO": {},
	"MA": {}, "MT": {}, "MS": {}, "MG": {}, "PA": {}, "PB": {}, "PR": {}, "PE": {}, "PI": {},
	"RJ": {}, "RN": {}, "RS": {}, "RO": {}, "RR": {}, "SC": {}, "SP": {}, "SE": {}, "TO": {},
}

var validDiseases = map[string]struct{}{
	"dengue":      {},
	"chikungunya": {},
	"zika":        {},
}

// Accepted measurement ranges.
var (
	temperatureRange   = bounds{-50, 60}
	humidityRange      = bounds{0, 100}
	precipitationRange = bounds{0, 1000}
	windSpeedRange     = bounds{0, 200}
	pressureRange      = bounds{800, 1200}
	caseCountRange     = bounds{0, 1_000_000}
	incidenceRange     = bounds{0, 10_000}
	alertLevelRange    = bounds{0, 4}
	populationRange    = bounds{1, 50_000_000}
)

var minDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

type bounds struct{ min, max float64 }

// problems collects validation failures of one record.
type problems []string

func (p *problems) addf(format string, args ...interface{}) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) inRange(field string, v *float64, b bounds) {
	if v == nil {
		return
	}
	if *v < b.min || *v > b.max {
		p.addf("%s %.2f outside [%g, %g]", field, *v, b.min, b.max)
	}
}

func (p problems) String() string {
	return strings.Join(p, "; ")
}

// ValidLocationCode reports whether code is a 7-digit IBGE municipality code.
func ValidLocationCode(code string) bool {
	return locationCodePattern.MatchString(code)
}

// ValidState reports whether uf is one of the 27 federative units.
func ValidState(uf string) bool {
	_, ok := validStates[strings.ToUpper(uf)]
	return ok
}

// ValidDisease reports whether disease is a tracked arbovirus.
func ValidDisease(disease string) bool {
	_, ok := validDiseases[strings.ToLower(disease)]
	return ok
}

func (p *problems) date(d, today time.Time) {
	if d.Before(minDate) {
		p.addf("date %s before %s", d.Format("2006-01-02"), minDate.Format("2006-01-02"))
	}
	if d.After(today) {
		p.addf("date %s in the future", d.Format("2006-01-02"))
	}
}

func (p *problems) epiWeek(year, week int, today time.Time) {
	if week < 1 || week > 53 {
		p.addf("epidemiological week %d outside [1, 53]", week)
	}
	if year < 2000 || year > today.Year()+1 {
		p.addf("year %d outside [2000, %d]", year, today.Year()+1)
	}
}
