package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// GrangerTest is the SSR F-test that lags of Cause improve an autoregression
// of Effect at one lag order.
type GrangerTest struct {
	Cause      string
	Effect     string
	Lag        int
	FStatistic float64
	PValue     float64
	DFNum      int
	DFDen      int
}

// GrangerPair holds both directions for one yield column at every lag 1..max.
type GrangerPair struct {
	Column           string
	YieldToMarketCap []GrangerTest
	MarketCapToYield []GrangerTest
}

// AtLag returns both directions at one lag order.
func (p GrangerPair) AtLag(lag int) (GrangerTest, GrangerTest, bool) {
	if lag < 1 || lag > len(p.YieldToMarketCap) || lag > len(p.MarketCapToYield) {
		return GrangerTest{}, GrangerTest{}, false
	}
	return p.YieldToMarketCap[lag-1], p.MarketCapToYield[lag-1], true
}

// MaxLag returns both directions at the highest lag tested.
func (p GrangerPair) MaxLag() (GrangerTest, GrangerTest, bool) {
	return p.AtLag(len(p.YieldToMarketCap))
}

// GrangerCausality tests whether cause Granger-causes effect for every lag
// order 1..maxLag. For order p the restricted model regresses effect on a
// constant and p of its own lags; the unrestricted model adds p lags of
// cause. Inputs must be complete and of equal length. Orders without enough
// degrees of freedom, or with a perfect unrestricted fit, give NaN.
func GrangerCausality(effect, cause []float64, effectName, causeName string, maxLag int) ([]GrangerTest, error) {
	if len(effect) != len(cause) {
		return nil, fmt.Errorf("effect has %d rows, cause has %d", len(effect), len(cause))
	}
	if maxLag < 1 {
		return nil, fmt.Errorf("max lag must be at least 1, got %d", maxLag)
	}
	out := make([]GrangerTest, 0, maxLag)
	for p := 1; p <= maxLag; p++ {
		test, err := grangerAt(effect, cause, p)
		if err != nil && !errors.Is(err, ErrInsufficientData) {
			return nil, err
		}
		test.Cause, test.Effect = causeName, effectName
		out = append(out, test)
	}
	return out, nil
}

func grangerAt(effect, cause []float64, p int) (GrangerTest, error) {
	test := GrangerTest{Lag: p, FStatistic: math.NaN(), PValue: math.NaN(), DFNum: p}
	nobs := len(effect) - p
	test.DFDen = nobs - 2*p - 1
	if test.DFDen <= 0 {
		return test, fmt.Errorf("%w: lag %d leaves %d residual degrees of freedom", ErrInsufficientData, p, test.DFDen)
	}

	y := make([]float64, nobs)
	restricted := mat.NewDense(nobs, 1+p, nil)
	unrestricted := mat.NewDense(nobs, 1+2*p, nil)
	for r := 0; r < nobs; r++ {
		t := r + p
		y[r] = effect[t]
		restricted.Set(r, 0, 1)
		unrestricted.Set(r, 0, 1)
		for j := 1; j <= p; j++ {
			restricted.Set(r, j, effect[t-j])
			unrestricted.Set(r, j, effect[t-j])
			unrestricted.Set(r, p+j, cause[t-j])
		}
	}

	_, rssR, _, err := regress(restricted, y)
	if err != nil {
		return test, err
	}
	_, rssU, _, err := regress(unrestricted, y)
	if err != nil {
		return test, err
	}
	if rssU <= 0 {
		return test, fmt.Errorf("%w: lag %d unrestricted model fits exactly", ErrInsufficientData, p)
	}

	num := math.Max(rssR-rssU, 0) / float64(p)
	den := rssU / float64(test.DFDen)
	test.FStatistic = num / den
	test.PValue = distuv.F{D1: float64(p), D2: float64(test.DFDen)}.Survival(test.FStatistic)
	return test, nil
}

// pairedComplete keeps rows where both a and b are present.
func pairedComplete(a, b []float64) ([]float64, []float64) {
	var xs, ys []float64
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	return xs, ys
}
