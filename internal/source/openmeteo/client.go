// Package openmeteo fetches daily weather from the Open-Meteo forecast and archive APIs.
package openmeteo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/internal/source"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

var dailyVariables = []string{
	"temperature_2m_max",
	"temperature_2m_min",
	"temperature_2m_mean",
	"relative_humidity_2m_mean",
	"precipitation_sum",
	"wind_speed_10m_mean",
	"surface_pressure_mean",
}

// Daily is one day of the provider's daily aggregation. Missing observations are nil.
type Daily struct {
	Date           string
	TemperatureMax *float64
	TemperatureMin *float64
	TemperatureAvg *float64
	Humidity       *float64
	Precipitation  *float64
	WindSpeed      *float64
	Pressure       *float64
}

type dailyBlock struct {
	Time           []string   `json:"time"`
	TemperatureMax []*float64 `json:"temperature_2m_max"`
	TemperatureMin []*float64 `json:"temperature_2m_min"`
	TemperatureAvg []*float64 `json:"temperature_2m_mean"`
	Humidity       []*float64 `json:"relative_humidity_2m_mean"`
	Precipitation  []*float64 `json:"precipitation_sum"`
	WindSpeed      []*float64 `json:"wind_speed_10m_mean"`
	Pressure       []*float64 `json:"surface_pressure_mean"`
}

type response struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Timezone  string     `json:"timezone"`
	Daily     dailyBlock `json:"daily"`
	Error     bool       `json:"error"`
	Reason    string     `json:"reason"`
}

// Client reads one Open-Meteo endpoint.
type Client struct {
	baseURL    string
	timezone   string
	windowDays int
	http       *source.HTTPGetter
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, cfg config.OpenMeteoConfig) *Client {
	return &Client{
		baseURL:    baseURL,
		timezone:   cfg.Timezone,
		windowDays: cfg.WindowDays,
		http:       source.NewHTTPGetter(model.SourceOpenMeteo, cfg.Timeout, cfg.RequestsPerSecond, cfg.MaxResponseBytes),
	}
}

// NewForecastClient reads recent days from the forecast endpoint.
func NewForecastClient(cfg config.OpenMeteoConfig) *Client {
	return NewClient(cfg.ForecastURL, cfg)
}

// NewArchiveClient reads history from the archive endpoint.
func NewArchiveClient(cfg config.OpenMeteoConfig) *Client {
	return NewClient(cfg.ArchiveURL, cfg)
}

func (c *Client) Name() string { return model.SourceOpenMeteo }

// Fetch requests r in windows of window_days days.
func (c *Client) Fetch(ctx context.Context, loc model.Location, r model.DateRange) ([]Daily, error) {
	var (
		out  []Daily
		done model.DateRange
	)
	done.From, done.To = r.From, r.From.AddDate(0, 0, -1)

	for _, window := range r.Split(c.windowDays) {
		days, err := c.fetchWindow(ctx, loc, window)
		if err != nil {
			if len(out) == 0 {
				return nil, err
			}
			return out, &source.PartialError{Completed: done, Err: err}
		}
		out = append(out, days...)
		done.To = window.To
	}
	logger.Debugf("Open-Meteo: %d day(s) for %s over %s.", len(out), loc.Code, r)
	return out, nil
}

func (c *Client) fetchWindow(ctx context.Context, loc model.Location, w model.DateRange) ([]Daily, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	q.Set("daily", strings.Join(dailyVariables, ","))
	q.Set("timezone", c.timezone)
	q.Set("start_date", model.DateKey(w.From))
	q.Set("end_date", model.DateKey(w.To))

	var resp response
	if err := c.http.GetJSON(ctx, c.baseURL, q, &resp); err != nil {
		return nil, err
	}
	if resp.Error {
		return nil, source.Malformed(c.Name(), "provider error", fmt.Errorf("%s", resp.Reason))
	}
	return unpack(resp.Daily)
}

// unpack turns the column arrays into rows. Every present column must match
// the length of "time"; an absent column leaves the field nil.
func unpack(d dailyBlock) ([]Daily, error) {
	n := len(d.Time)
	columns := map[string][]*float64{
		"temperature_2m_max":        d.TemperatureMax,
		"temperature_2m_min":        d.TemperatureMin,
		"temperature_2m_mean":       d.TemperatureAvg,
		"relative_humidity_2m_mean": d.Humidity,
		"precipitation_sum":         d.Precipitation,
		"wind_speed_10m_mean":       d.WindSpeed,
		"surface_pressure_mean":     d.Pressure,
	}
	for name, col := range columns {
		if col != nil && len(col) != n {
			return nil, source.Malformed(model.SourceOpenMeteo, "inconsistent daily arrays",
				fmt.Errorf("%s has %d values for %d days", name, len(col), n))
		}
	}

	at := func(col []*float64, i int) *float64 {
		if col == nil {
			return nil
		}
		return col[i]
	}
	out := make([]Daily, n)
	for i := 0; i < n; i++ {
		out[i] = Daily{
			Date:           d.Time[i],
			TemperatureMax: at(d.TemperatureMax, i),
			TemperatureMin: at(d.TemperatureMin, i),
			TemperatureAvg: at(d.TemperatureAvg, i),
			Humidity:       at(d.Humidity, i),
			Precipitation:  at(d.Precipitation, i),
			WindSpeed:      at(d.WindSpeed, i),
			Pressure:       at(d.Pressure, i),
		}
	}
	return out, nil
}

var _ source.Client[Daily] = (*Client)(nil)
