// Package infodengue fetches weekly arbovirus alerts from the InfoDengue API.
package infodengue

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/tigerroll/arbovirus-pipeline/internal/domain/model"
	"github.com/tigerroll/arbovirus-pipeline/internal/source"
	config "github.com/tigerroll/arbovirus-pipeline/pkg/batch/core/config"
	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// Alert is one epidemiological week as reported by the provider. Fields
// whose type varies between API versions are kept as decoded.
type Alert struct {
	Disease        string      `mapstructure:"-"`
	WeekStart      interface{} `mapstructure:"data_iniSE"` // epoch milliseconds or YYYY-MM-DD
	SE             interface{} `mapstructure:"SE"`         // YYYYWW
	Cases          *float64    `mapstructure:"casos"`
	CasesEstimated *float64    `mapstructure:"casos_est"`
	CasesConfirmed *float64    `mapstructure:"casos_confirmados"`
	Incidence      *float64    `mapstructure:"p_inc100k"`
	Level          interface{} `mapstructure:"nivel"` // 1..4 or a colour name
	Population     *float64    `mapstructure:"pop"`
}

// Client reads the alertcity endpoint, one request per disease and epi-year.
type Client struct {
	baseURL  string
	diseases []string
	http     *source.HTTPGetter
}

// NewClient creates a client.
func NewClient(cfg config.InfoDengueConfig) *Client {
	return &Client{
		baseURL:  cfg.URL,
		diseases: cfg.Diseases,
		http:     source.NewHTTPGetter(model.SourceInfoDengue, cfg.Timeout, cfg.RequestsPerSecond, cfg.MaxResponseBytes),
	}
}

func (c *Client) Name() string { return model.SourceInfoDengue }

// Fetch returns the alerts of every configured disease for the weeks covering r.
func (c *Client) Fetch(ctx context.Context, loc model.Location, r model.DateRange) ([]Alert, error) {
	startYear, startWeek := model.EpiWeek(r.From)
	endYear, endWeek := model.EpiWeek(r.To)

	var out []Alert
	done := model.DateRange{From: r.From, To: r.From.AddDate(0, 0, -1)}
	for year := startYear; year <= endYear; year++ {
		fromWeek, toWeek := 1, lastWeek(year)
		if year == startYear {
			fromWeek = startWeek
		}
		if year == endYear {
			toWeek = endWeek
		}
		for _, disease := range c.diseases {
			alerts, err := c.fetchPage(ctx, loc, disease, year, fromWeek, toWeek)
			if err != nil {
				if len(out) == 0 {
					return nil, err
				}
				return out, &source.PartialError{Completed: done, Err: err}
			}
			out = append(out, alerts...)
		}
		done.To = model.EpiWeekStart(year, toWeek).AddDate(0, 0, 6)
		if done.To.After(r.To) {
			done.To = r.To
		}
	}
	logger.Debugf("InfoDengue: %d alert(s) for %s over %s.", len(out), loc.Code, r)
	return out, nil
}

// lastWeek returns the number of ISO weeks in year.
func lastWeek(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

func (c *Client) fetchPage(ctx context.Context, loc model.Location, disease string, year, fromWeek, toWeek int) ([]Alert, error) {
	q := url.Values{}
	q.Set("geocode", loc.Code)
	q.Set("disease", disease)
	q.Set("format", "json")
	q.Set("ew_start", strconv.Itoa(fromWeek))
	q.Set("ew_end", strconv.Itoa(toWeek))
	q.Set("ey_start", strconv.Itoa(year))
	q.Set("ey_end", strconv.Itoa(year))

	var rows []map[string]interface{}
	if err := c.http.GetJSON(ctx, c.baseURL, q, &rows); err != nil {
		return nil, err
	}
	return decodeAlerts(rows, disease)
}

func decodeAlerts(rows []map[string]interface{}, disease string) ([]Alert, error) {
	out := make([]Alert, 0, len(rows))
	for i, row := range rows {
		var a Alert
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &a,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(row); err != nil {
			return nil, source.Malformed(model.SourceInfoDengue, fmt.Sprintf("undecodable alert at index %d", i), err)
		}
		a.Disease = disease
		out = append(out, a)
	}
	return out, nil
}

var _ source.Client[Alert] = (*Client)(nil)
