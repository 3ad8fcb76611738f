// Package fred fetches daily Treasury constant-maturity yields from FRED.
package fred

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/stableyield/internal/httpclient"
	"github.com/rewired-gh/stableyield/internal/logger"
	"github.com/rewired-gh/stableyield/internal/models"
)

// ErrMissingAPIKey is returned when no FRED API key is configured.
var ErrMissingAPIKey = errors.New("FRED API key is not set (FRED_API_KEY)")

// missingValue is FRED's marker for a holiday or unpublished observation.
const missingValue = "."

// Observation is one entry of a series observations response.
type Observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type observationsResponse struct {
	Observations []Observation `json:"observations"`
}

// Client provides access to the FRED series observations API
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
}

// NewClient creates a new FRED client
func NewClient(baseURL, apiKey string, http *httpclient.Client) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, http: http}
}

// FetchSeries retrieves one series between start and end inclusive, keyed by
// date. Missing observations are NaN.
func (c *Client) FetchSeries(ctx context.Context, tenor models.Tenor, start, end models.Date) (map[models.Date]float64, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	u, err := url.Parse(c.baseURL + "/series/observations")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("series_id", string(tenor))
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	q.Set("observation_start", start.String())
	q.Set("observation_end", end.String())
	u.RawQuery = q.Encode()

	var resp observationsResponse
	if err := c.http.GetJSON(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", tenor, err)
	}
	return ParseObservations(resp.Observations)
}

// ParseObservations converts raw observations. A value of "." or one that
// does not parse as a number is a missing observation.
func ParseObservations(obs []Observation) (map[models.Date]float64, error) {
	out := make(map[models.Date]float64, len(obs))
	for _, o := range obs {
		date, err := models.ParseDate(o.Date)
		if err != nil {
			return nil, fmt.Errorf("observation date: %w", err)
		}
		out[date] = parseValue(o.Value)
	}
	return out, nil
}

func parseValue(s string) float64 {
	if s == missingValue {
		return math.NaN()
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return math.NaN()
	}
	return d.InexactFloat64()
}

// FetchYields retrieves every tenor concurrently and outer-merges them by
// date: a date observed in any series becomes a row, with NaN for tenors
// that have no observation on it.
func (c *Client) FetchYields(ctx context.Context, tenors []models.Tenor, start, end models.Date) (models.YieldSeries, error) {
	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	bySeries := make(map[models.Tenor]map[models.Date]float64, len(tenors))

	for _, tenor := range tenors {
		g.Go(func() error {
			values, err := c.FetchSeries(ctx, tenor, start, end)
			if err != nil {
				return err
			}
			logger.Debug("Fetched %d observations for %s", len(values), tenor)
			mu.Lock()
			bySeries[tenor] = values
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	series := Merge(tenors, bySeries)
	logger.Info("Fetched %d Treasury yield dates across %d tenors (%s to %s)", len(series), len(tenors), start, end)
	return series, nil
}

// Merge outer-joins per-tenor observations into one point per date, sorted.
func Merge(tenors []models.Tenor, bySeries map[models.Tenor]map[models.Date]float64) models.YieldSeries {
	dates := make(map[models.Date]struct{})
	for _, values := range bySeries {
		for d := range values {
			dates[d] = struct{}{}
		}
	}

	series := make(models.YieldSeries, 0, len(dates))
	for d := range dates {
		p := models.YieldPoint{Date: d, Values: make(map[models.Tenor]float64, len(tenors))}
		for _, tenor := range tenors {
			v, ok := bySeries[tenor][d]
			if !ok {
				v = math.NaN()
			}
			p.Values[tenor] = v
		}
		series = append(series, p)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series
}
