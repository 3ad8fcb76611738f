package analysis

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/stableyield/internal/models"
)

var origin = models.Date{Year: 2024, Month: time.January, Day: 1}

func day(i int) models.Date { return origin.AddDays(i) }

func capsFrom(start int, values ...float64) models.MarketCapSeries {
	out := make(models.MarketCapSeries, len(values))
	for i, v := range values {
		out[i] = models.MarketCapPoint{Date: day(start + i), Circulating: v, CirculatingUSD: v}
	}
	return out
}

func yieldsFrom(start, n int, fn func(i int) map[models.Tenor]float64) models.YieldSeries {
	out := make(models.YieldSeries, n)
	for i := range out {
		out[i] = models.YieldPoint{Date: day(start + i), Values: fn(i)}
	}
	return out
}

// flatYields gives every tenor the same value on each day.
func flatYields(start int, values ...float64) models.YieldSeries {
	return yieldsFrom(start, len(values), func(i int) map[models.Tenor]float64 {
		m := make(map[models.Tenor]float64, len(models.Tenors))
		for _, t := range models.Tenors {
			m[t] = values[i]
		}
		return m
	})
}

// syntheticSeries builds n days of a positive market-cap random walk and
// independent yield random walks for every tenor.
func syntheticSeries(n int, seed uint64) (models.MarketCapSeries, models.YieldSeries) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	caps := make([]float64, n)
	level := 1.5e11
	for i := range caps {
		level += rng.NormFloat64() * 5e8
		caps[i] = level
	}
	current := map[models.Tenor]float64{}
	for k, t := range models.Tenors {
		current[t] = 1 + float64(k)*0.5
	}
	yields := yieldsFrom(0, n, func(int) map[models.Tenor]float64 {
		m := make(map[models.Tenor]float64, len(models.Tenors))
		for _, t := range models.Tenors {
			current[t] += rng.NormFloat64() * 0.05
			m[t] = current[t]
		}
		return m
	})
	return capsFrom(0, caps...), yields
}

func syntheticTable(t *testing.T, n int, seed uint64) *Table {
	t.Helper()
	caps, yields := syntheticSeries(n, seed)
	table, err := Align(caps, yields, DefaultAlignOptions())
	require.NoError(t, err)
	return table
}

func tableOf(t *testing.T, columns map[string][]float64, order ...string) *Table {
	t.Helper()
	n := len(columns[order[0]])
	dates := make([]models.Date, n)
	for i := range dates {
		dates[i] = day(i)
	}
	table, err := NewTable(dates, order, columns)
	require.NoError(t, err)
	return table
}

func countNaN(xs []float64) int {
	n := 0
	for _, x := range xs {
		if math.IsNaN(x) {
			n++
		}
	}
	return n
}
