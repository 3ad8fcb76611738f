package analysis

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrangerCausality_DetectsLeadingSeries(t *testing.T) {
	const n = 200
	rng := rand.New(rand.NewPCG(3, 4))
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
		if i > 0 {
			y[i] = 0.8*x[i-1] + 0.1*rng.NormFloat64()
		}
	}

	tests, err := GrangerCausality(y, x, "y", "x", 3)
	require.NoError(t, err)
	require.Len(t, tests, 3)
	for i, test := range tests {
		p := i + 1
		assert.Equal(t, "x", test.Cause)
		assert.Equal(t, "y", test.Effect)
		assert.Equal(t, p, test.Lag)
		assert.Equal(t, p, test.DFNum)
		assert.Equal(t, n-3*p-1, test.DFDen)
		assert.Less(t, test.PValue, 1e-6)
		assert.Greater(t, test.FStatistic, 0.0)
	}

	reverse, err := GrangerCausality(x, y, "x", "y", 1)
	require.NoError(t, err)
	assert.Greater(t, reverse[0].PValue, 0.001)
	assert.LessOrEqual(t, reverse[0].PValue, 1.0)
}

func TestGrangerCausality_ShortSeries(t *testing.T) {
	effect := []float64{1, 3, 2, 5, 4}
	cause := []float64{2, 1, 4, 3, 6}

	tests, err := GrangerCausality(effect, cause, "e", "c", 3)
	require.NoError(t, err)
	require.Len(t, tests, 3)
	assert.True(t, math.IsNaN(tests[1].FStatistic))
	assert.True(t, math.IsNaN(tests[1].PValue))
	assert.True(t, math.IsNaN(tests[2].FStatistic))
}

func TestGrangerCausality_BadInput(t *testing.T) {
	_, err := GrangerCausality([]float64{1, 2}, []float64{1}, "e", "c", 1)
	assert.Error(t, err)

	_, err = GrangerCausality([]float64{1, 2}, []float64{1, 2}, "e", "c", 0)
	assert.Error(t, err)
}

func TestGrangerPair_AtLag(t *testing.T) {
	pair := GrangerPair{
		Column:           "DGS10",
		YieldToMarketCap: []GrangerTest{{Lag: 1}, {Lag: 2}},
		MarketCapToYield: []GrangerTest{{Lag: 1}, {Lag: 2}},
	}
	to, from, ok := pair.MaxLag()
	require.True(t, ok)
	assert.Equal(t, 2, to.Lag)
	assert.Equal(t, 2, from.Lag)

	_, _, ok = pair.AtLag(3)
	assert.False(t, ok)
}

func TestPairedComplete(t *testing.T) {
	nan := math.NaN()
	a, b := pairedComplete([]float64{1, nan, 3, 4}, []float64{5, 6, nan, 8})
	assert.Equal(t, []float64{1, 4}, a)
	assert.Equal(t, []float64{5, 8}, b)
}
