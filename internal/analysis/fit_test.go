package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitNonlinear_ExactLinear(t *testing.T) {
	xs := make([]float64, 20)
	ys := make([]float64, 20)
	for i := range xs {
		xs[i] = float64(i + 1)
		ys[i] = 2 + 3*xs[i]
	}
	table := tableOf(t, map[string][]float64{MarketCapColumn: ys, "DGS10": xs}, MarketCapColumn, "DGS10")

	fits, warnings, err := FitNonlinear(table, "DGS10")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "DGS10", fits.Column)

	assert.InDelta(t, 1.0, fits.Linear.RSquared, 1e-9)
	assert.InDelta(t, 2.0, fits.Linear.Coefficient("const"), 1e-8)
	assert.InDelta(t, 3.0, fits.Linear.Coefficient("x"), 1e-9)
	assert.Equal(t, 20, fits.Linear.Observations)

	assert.InDelta(t, 1.0, fits.Quadratic.RSquared, 1e-9)
	assert.InDelta(t, 0.0, fits.Quadratic.Coefficient("x^2"), 1e-8)

	assert.True(t, math.IsNaN(fits.Linear.SplitPoint))
	assert.InDelta(t, 10.5, fits.Threshold.SplitPoint, 1e-12)
	assert.True(t, math.IsNaN(fits.Linear.Coefficient("above_median")))
}

func TestFitNonlinear_RecoversThresholdJump(t *testing.T) {
	xs := make([]float64, 21)
	ys := make([]float64, 21)
	for i := range xs {
		xs[i] = float64(i + 1)
		ys[i] = 1 + 0.5*xs[i]
		if xs[i] > 11 {
			ys[i] += 10
		}
	}
	table := tableOf(t, map[string][]float64{MarketCapColumn: ys, "10Y-2Y": xs}, MarketCapColumn, "10Y-2Y")

	fits, _, err := FitNonlinear(table, "10Y-2Y")
	require.NoError(t, err)
	th := fits.Threshold
	assert.Equal(t, 11.0, th.SplitPoint)
	assert.InDelta(t, 10.0, th.Coefficient("above_median"), 1e-8)
	assert.InDelta(t, 0.5, th.Coefficient("x"), 1e-9)
	assert.InDelta(t, 1.0, th.RSquared, 1e-9)
	assert.Less(t, fits.Linear.RSquared, th.RSquared)

	models := fits.Models()
	require.Len(t, models, 3)
	assert.Equal(t, []Model{Linear, Quadratic, Threshold}, []Model{models[0].Model, models[1].Model, models[2].Model})
}

func TestFitNonlinear_SkipsIncompletePairs(t *testing.T) {
	nan := math.NaN()
	table := tableOf(t, map[string][]float64{
		MarketCapColumn: {3, 5, 7, 100, 11},
		"DGS1":          {1, 2, 3, nan, 5},
	}, MarketCapColumn, "DGS1")

	fits, _, err := FitNonlinear(table, "DGS1")
	require.NoError(t, err)
	assert.Equal(t, 4, fits.Linear.Observations)
	assert.InDelta(t, 2.0, fits.Linear.Coefficient("x"), 1e-9)
}

func TestFitNonlinear_InsufficientPairs(t *testing.T) {
	table := tableOf(t, map[string][]float64{
		MarketCapColumn: {1, 3},
		"DGS10":         {1, 2},
	}, MarketCapColumn, "DGS10")

	fits, warnings, err := FitNonlinear(table, "DGS10")
	require.NoError(t, err)
	assert.NotNil(t, fits.Linear.Coefficients)
	assert.Nil(t, fits.Quadratic.Coefficients)
	assert.True(t, math.IsNaN(fits.Quadratic.RSquared))
	assert.Nil(t, fits.Threshold.Coefficients)
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, UndefinedStatistic, w.Kind)
		assert.Equal(t, "fit", w.Engine)
	}
}

func TestFitNonlinear_ColumnNotFound(t *testing.T) {
	table := tableOf(t, map[string][]float64{MarketCapColumn: {1, 2, 3}}, MarketCapColumn)
	_, _, err := FitNonlinear(table, "DGS10")
	var notFound *ColumnNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "DGS10", notFound.Column)
}
