package models

import (
	"errors"
	"fmt"
	"math"
)

// Tenor names a constant-maturity Treasury series by its FRED identifier.
type Tenor string

const (
	Tenor3M  Tenor = "DGS3MO"
	Tenor1Y  Tenor = "DGS1"
	Tenor2Y  Tenor = "DGS2"
	Tenor5Y  Tenor = "DGS5"
	Tenor10Y Tenor = "DGS10"
	Tenor30Y Tenor = "DGS30"
)

// Tenors lists every supported maturity, shortest first.
var Tenors = []Tenor{Tenor3M, Tenor1Y, Tenor2Y, Tenor5Y, Tenor10Y, Tenor30Y}

var tenorLabels = map[Tenor]string{
	Tenor3M:  "3-Month Treasury Bill",
	Tenor1Y:  "1-Year Treasury",
	Tenor2Y:  "2-Year Treasury",
	Tenor5Y:  "5-Year Treasury",
	Tenor10Y: "10-Year Treasury",
	Tenor30Y: "30-Year Treasury",
}

// Label returns a human-readable maturity name.
func (t Tenor) Label() string {
	if l, ok := tenorLabels[t]; ok {
		return l
	}
	return string(t)
}

// IsKnown reports whether t is one of Tenors.
func (t Tenor) IsKnown() bool {
	_, ok := tenorLabels[t]
	return ok
}

// Spread is a named long-minus-short tenor difference.
type Spread struct {
	Name  string
	Long  Tenor
	Short Tenor
}

// Value computes long - short for one yield observation.
// A missing leg makes the spread missing.
func (s Spread) Value(values map[Tenor]float64) float64 {
	long, ok := values[s.Long]
	if !ok {
		return math.NaN()
	}
	short, ok := values[s.Short]
	if !ok {
		return math.NaN()
	}
	return long - short
}

// Validate checks that both legs are known and distinct.
func (s Spread) Validate() error {
	if s.Name == "" {
		return errors.New("spread name must not be empty")
	}
	if !s.Long.IsKnown() {
		return fmt.Errorf("spread %s: unknown long tenor %q", s.Name, s.Long)
	}
	if !s.Short.IsKnown() {
		return fmt.Errorf("spread %s: unknown short tenor %q", s.Name, s.Short)
	}
	if s.Long == s.Short {
		return fmt.Errorf("spread %s: long and short tenor must differ", s.Name)
	}
	return nil
}

// DefaultSpreads are the curve spreads analyzed when none are configured.
var DefaultSpreads = []Spread{
	{Name: "10Y-2Y", Long: Tenor10Y, Short: Tenor2Y},
	{Name: "10Y-3M", Long: Tenor10Y, Short: Tenor3M},
	{Name: "2Y-3M", Long: Tenor2Y, Short: Tenor3M},
	{Name: "5Y-2Y", Long: Tenor5Y, Short: Tenor2Y},
	{Name: "30Y-10Y", Long: Tenor30Y, Short: Tenor10Y},
	{Name: "5Y-3M", Long: Tenor5Y, Short: Tenor3M},
}

// MarketCapPoint is one day of aggregate stablecoin supply.
type MarketCapPoint struct {
	Date           Date    `json:"date"`
	Circulating    float64 `json:"circulating_supply"`
	CirculatingUSD float64 `json:"circulating_supply_usd"`
}

// Validate checks market-cap field constraints.
func (p MarketCapPoint) Validate() error {
	if p.Date.IsZero() {
		return errors.New("market cap date must not be empty")
	}
	if math.IsNaN(p.CirculatingUSD) || math.IsInf(p.CirculatingUSD, 0) {
		return errors.New("circulating supply USD must be finite")
	}
	if p.CirculatingUSD < 0 {
		return errors.New("circulating supply USD must not be negative")
	}
	if p.Circulating < 0 {
		return errors.New("circulating supply must not be negative")
	}
	return nil
}

// MarketCapSeries holds market-cap points, not necessarily daily-contiguous.
type MarketCapSeries []MarketCapPoint

// YieldPoint holds the yields observed on one date, in percent.
// A NaN or absent entry is a missing observation.
type YieldPoint struct {
	Date   Date
	Values map[Tenor]float64
}

// Get returns the yield for a tenor, NaN if missing.
func (p YieldPoint) Get(t Tenor) float64 {
	if v, ok := p.Values[t]; ok {
		return v
	}
	return math.NaN()
}

// YieldSeries holds yield points, one per available date.
type YieldSeries []YieldPoint
