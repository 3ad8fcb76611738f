package analysis

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShift(t *testing.T) {
	out := Shift([]float64{1, 2, 3, 4}, 2)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, []float64{1, 2}, out[2:])

	back := Shift([]float64{1, 2, 3}, -1)
	assert.Equal(t, []float64{2, 3}, back[:2])
	assert.True(t, math.IsNaN(back[2]))
}

func TestLaggedCorrelations_RecoversLeadingColumn(t *testing.T) {
	const n, lag = 80, 5
	rng := rand.New(rand.NewPCG(1, 2))
	yield := make([]float64, n)
	caps := make([]float64, n)
	for i := range yield {
		yield[i] = 3 + rng.NormFloat64()
	}
	for i := range caps {
		if i < lag {
			caps[i] = rng.Float64()
			continue
		}
		caps[i] = 1e11 + 2e9*yield[i-lag]
	}
	table := tableOf(t, map[string][]float64{MarketCapColumn: caps, "DGS10": yield}, MarketCapColumn, "DGS10")

	lagged, warnings, err := LaggedCorrelations(table, []string{"DGS10", "DGS30"}, []int{lag, 20})
	require.NoError(t, err)
	require.Len(t, lagged, 2)
	require.Len(t, warnings, 1)
	assert.Equal(t, MissingColumn, warnings[0].Kind)

	assert.Equal(t, lag, lagged[0].Lag)
	assert.Equal(t, n-lag, lagged[0].Observations)
	assert.InDelta(t, 1.0, lagged[0].Coefficient, 1e-9)

	assert.Equal(t, 20, lagged[1].Lag)
	assert.Equal(t, n-20, lagged[1].Observations)
	assert.Less(t, math.Abs(lagged[1].Coefficient), 0.9)
}

func TestLaggedCorrelations_RequiresMarketCap(t *testing.T) {
	table := tableOf(t, map[string][]float64{"DGS10": {1, 2, 3}}, "DGS10")
	_, _, err := LaggedCorrelations(table, []string{"DGS10"}, []int{1})
	var notFound *ColumnNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRollingCorrelation_LeadingUndefined(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	const n, window = 50, 30
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
		y[i] = rng.NormFloat64()
	}

	out := RollingCorrelation(x, y, window)
	require.Len(t, out, n)
	for i := 0; i < window-1; i++ {
		assert.True(t, math.IsNaN(out[i]), "row %d", i)
	}
	for i := window - 1; i < n; i++ {
		require.False(t, math.IsNaN(out[i]), "row %d", i)
		assert.InDelta(t, correlate(x[i-window+1:i+1], y[i-window+1:i+1]), out[i], 1e-12)
	}
}

func TestRollingCorrelation_GapsAndZeroVariance(t *testing.T) {
	nan := math.NaN()
	x := []float64{1, 2, 3, 4, 5, 6}
	y := []float64{2, 2, 2, 1, nan, 3}

	out := RollingCorrelation(x, y, 3)
	assert.True(t, math.IsNaN(out[2]), "constant window")
	assert.False(t, math.IsNaN(out[3]))
	assert.True(t, math.IsNaN(out[4]), "window containing a gap")
	assert.True(t, math.IsNaN(out[5]), "window containing a gap")

	assert.Equal(t, len(x), countNaN(RollingCorrelation(x, y, 1)))
}

func TestRolling_SeriesCarriesDates(t *testing.T) {
	table := syntheticTable(t, 40, 9)

	s, err := Rolling(table, "DGS10", 30)
	require.NoError(t, err)
	assert.Equal(t, table.Dates(), s.Dates)
	assert.Len(t, s.Values, table.Len())
	assert.Equal(t, 29, countNaN(s.Values))

	_, err = Rolling(table, "missing", 30)
	assert.Error(t, err)
}

func TestRollingStd(t *testing.T) {
	nan := math.NaN()
	out := RollingStd([]float64{nan, 1, 3, 5, 5}, 2)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, math.Sqrt2, out[2], 1e-12)
	assert.InDelta(t, math.Sqrt2, out[3], 1e-12)
	assert.Equal(t, 0.0, out[4])

	mean := RollingMean([]float64{nan, 1, 3, 5, 5}, 2)
	assert.Equal(t, 2, countNaN(mean))
	assert.InDelta(t, 2.0, mean[2], 1e-12)
	assert.InDelta(t, 5.0, mean[4], 1e-12)
}
