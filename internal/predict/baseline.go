package predict

import (
	"context"
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"
)

// BaselineVersion is the version tag of the built-in model.
const BaselineVersion = "arbovirus_predictor-baseline-1"

// BaselineParams are the weights of the baseline logistic model. They can be
// overridden through model.params in the configuration.
type BaselineParams struct {
	Intercept           float64 `mapstructure:"intercept"`
	TemperatureWeight   float64 `mapstructure:"temperature_weight"`
	HumidityWeight      float64 `mapstructure:"humidity_weight"`
	PrecipitationWeight float64 `mapstructure:"precipitation_weight"`
	TrendWeight         float64 `mapstructure:"trend_weight"`
	LevelWeight         float64 `mapstructure:"level_weight"`
	OptimalTemperature  float64 `mapstructure:"optimal_temperature"`
	TemperatureSpread   float64 `mapstructure:"temperature_spread"`
	PrecipitationScale  float64 `mapstructure:"precipitation_scale"`
	MinHistory          int     `mapstructure:"min_history"`
	RecentMonths        int     `mapstructure:"recent_months"`
}

// DefaultBaselineParams returns the built-in weights.
func DefaultBaselineParams() BaselineParams {
	return BaselineParams{
		Intercept:           -2.5,
		TemperatureWeight:   1.5,
		HumidityWeight:      1.0,
		PrecipitationWeight: 0.8,
		TrendWeight:         1.2,
		LevelWeight:         1.5,
		OptimalTemperature:  27,
		TemperatureSpread:   6,
		PrecipitationScale:  200,
		MinHistory:          6,
		RecentMonths:        3,
	}
}

// Baseline combines climate suitability and case trend in a logistic function.
// It is deterministic.
type Baseline struct {
	version string
	params  BaselineParams
}

// NewBaseline builds the baseline model. overrides is decoded onto the defaults.
func NewBaseline(version string, overrides map[string]interface{}) (*Baseline, error) {
	params := DefaultBaselineParams()
	if len(overrides) > 0 {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &params,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(overrides); err != nil {
			return nil, fmt.Errorf("invalid baseline model params: %w", err)
		}
	}
	if params.MinHistory < 1 || params.RecentMonths < 1 || params.TemperatureSpread <= 0 || params.PrecipitationScale <= 0 {
		return nil, fmt.Errorf("invalid baseline model params: %+v", params)
	}
	if version == "" {
		version = BaselineVersion
	}
	return &Baseline{version: version, params: params}, nil
}

func (b *Baseline) Version() string { return b.version }

func (b *Baseline) MinHistory() int { return b.params.MinHistory }

// Predict scores s. It expects at least MinHistory points.
func (b *Baseline) Predict(_ context.Context, s Series) (float64, error) {
	n := len(s.Points)
	if n == 0 {
		return 0, ErrPredictionFailure
	}
	p := b.params
	recentN := min(p.RecentMonths, n)
	recent, earlier := s.Points[n-recentN:], s.Points[:n-recentN]

	var temp, hum, precip float64
	for _, pt := range recent {
		temp += pt.Temperature
		hum += pt.Humidity
		precip += pt.Precipitation
	}
	temp /= float64(recentN)
	hum /= float64(recentN)
	precip /= float64(recentN)

	tempSuitability := math.Exp(-math.Pow((temp-p.OptimalTemperature)/p.TemperatureSpread, 2))
	humidity := clamp(hum/100, 0, 1)
	rain := clamp(precip/p.PrecipitationScale, 0, 1)

	trend := 0.0
	if len(earlier) > 0 {
		trend = math.Tanh(math.Log((meanCases(recent) + 1) / (meanCases(earlier) + 1)))
	}
	level := 0.0
	if peak := maxCases(s.Points); peak > 0 {
		level = math.Log1p(float64(s.Points[n-1].Cases)) / math.Log1p(float64(peak))
	}

	z := p.Intercept +
		p.TemperatureWeight*tempSuitability +
		p.HumidityWeight*humidity +
		p.PrecipitationWeight*rain +
		p.TrendWeight*trend +
		p.LevelWeight*level
	return 1 / (1 + math.Exp(-z)), nil
}

func meanCases(points []Point) float64 {
	total := 0
	for _, pt := range points {
		total += pt.Cases
	}
	return float64(total) / float64(len(points))
}

func maxCases(points []Point) int {
	peak := 0
	for _, pt := range points {
		peak = max(peak, pt.Cases)
	}
	return peak
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
