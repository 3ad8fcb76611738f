// Package defillama fetches aggregate stablecoin circulating supply.
package defillama

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/stableyield/internal/httpclient"
	"github.com/rewired-gh/stableyield/internal/logger"
	"github.com/rewired-gh/stableyield/internal/models"
)

// Client provides access to the DefiLlama stablecoins API
type Client struct {
	baseURL string
	http    *httpclient.Client
}

// pegged is a per-peg amount map; only the USD peg is read.
type pegged struct {
	PeggedUSD *decimal.Decimal `json:"peggedUSD"`
}

// ChartEntry is one day of the all-chains stablecoin chart. Date is a unix
// timestamp in seconds, sent either as a number or a string.
type ChartEntry struct {
	Date                decimal.Decimal `json:"date"`
	TotalCirculating    pegged          `json:"totalCirculating"`
	TotalCirculatingUSD pegged          `json:"totalCirculatingUSD"`
}

// NewClient creates a new DefiLlama client
func NewClient(baseURL string, http *httpclient.Client) *Client {
	return &Client{baseURL: baseURL, http: http}
}

// FetchMarketCaps retrieves daily circulating supply between start and end
// inclusive, sorted by date.
func (c *Client) FetchMarketCaps(ctx context.Context, start, end models.Date) (models.MarketCapSeries, error) {
	var entries []ChartEntry
	if err := c.http.GetJSON(ctx, c.baseURL+"/stablecoincharts/all", &entries); err != nil {
		return nil, fmt.Errorf("failed to fetch stablecoin chart: %w", err)
	}

	series, skipped := Process(entries, start, end)
	if skipped > 0 {
		logger.Warn("Skipped %d malformed stablecoin chart entries", skipped)
	}
	logger.Info("Fetched %d stablecoin market cap points (%s to %s)", len(series), start, end)
	return series, nil
}

// Process converts chart entries inside [start, end] into market-cap points.
// A zero start or end leaves that side open. Entries with no USD amount or
// an invalid value are dropped and counted.
func Process(entries []ChartEntry, start, end models.Date) (models.MarketCapSeries, int) {
	series := make(models.MarketCapSeries, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		date := models.DateOf(time.Unix(e.Date.IntPart(), 0).UTC())
		if !start.IsZero() && date.Before(start) {
			continue
		}
		if !end.IsZero() && date.After(end) {
			continue
		}

		p := models.MarketCapPoint{
			Date:           date,
			Circulating:    amount(e.TotalCirculating),
			CirculatingUSD: amount(e.TotalCirculatingUSD),
		}
		if err := p.Validate(); err != nil {
			skipped++
			continue
		}
		series = append(series, p)
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, skipped
}

func amount(p pegged) float64 {
	if p.PeggedUSD == nil {
		return math.NaN()
	}
	return p.PeggedUSD.InexactFloat64()
}
