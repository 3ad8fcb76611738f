package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/stableyield/internal/models"
)

// pearson correlates the complete pairs of x and y. It returns NaN when
// fewer than two pairs remain or either side has zero variance, and the
// number of pairs used.
func pearson(x, y []float64) (float64, int) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return correlate(xs, ys), len(xs)
}

// correlate expects complete, equal-length samples.
func correlate(xs, ys []float64) float64 {
	if len(xs) < 2 || constant(xs) || constant(ys) {
		return math.NaN()
	}
	r := stat.Correlation(xs, ys, nil)
	return math.Max(-1, math.Min(1, r))
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

// Shift moves values n rows forward: out[i] = xs[i-n]. The first n entries
// become NaN. A negative n shifts backward. Shifting is by row, not by
// calendar day.
func Shift(xs []float64, n int) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		j := i - n
		if j < 0 || j >= len(xs) {
			out[i] = math.NaN()
			continue
		}
		out[i] = xs[j]
	}
	return out
}

// LagCorrelation is the correlation of today's market cap with a column's
// value Lag rows earlier.
type LagCorrelation struct {
	Column       string
	Lag          int
	Coefficient  float64
	Observations int
}

// LaggedCorrelations correlates the market-cap column with each requested
// column shifted by each lag.
func LaggedCorrelations(t *Table, columns []string, lags []int) ([]LagCorrelation, []Warning, error) {
	target, err := t.column(MarketCapColumn)
	if err != nil {
		return nil, nil, err
	}
	var warnings []Warning
	for _, name := range t.Absent(columns) {
		warnings = append(warnings, missing("lagged", name))
	}

	var out []LagCorrelation
	for _, name := range t.Present(columns) {
		if name == MarketCapColumn {
			continue
		}
		col, _ := t.column(name)
		for _, lag := range lags {
			r, n := pearson(target, Shift(col, lag))
			if math.IsNaN(r) {
				warnings = append(warnings, undefined("lagged", name, fmt.Sprintf("lag %d: zero variance or fewer than 2 pairs", lag)))
			}
			out = append(out, LagCorrelation{Column: name, Lag: lag, Coefficient: r, Observations: n})
		}
	}
	return out, warnings, nil
}

// RollingCorrelation returns, for each row i >= window-1, the correlation of
// x and y over the trailing window rows ending at i. The result has the
// input length; the first window-1 entries, and any window containing a
// missing value or a zero-variance side, are NaN.
func RollingCorrelation(x, y []float64, window int) []float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 2 {
		return out
	}
	xs := make([]float64, window)
	ys := make([]float64, window)
	for i := window - 1; i < n; i++ {
		ok := true
		for k := 0; k < window; k++ {
			xv, yv := x[i-window+1+k], y[i-window+1+k]
			if math.IsNaN(xv) || math.IsNaN(yv) {
				ok = false
				break
			}
			xs[k], ys[k] = xv, yv
		}
		if ok {
			out[i] = correlate(xs, ys)
		}
	}
	return out
}

// RollingSeries is one column's rolling correlation with market cap.
type RollingSeries struct {
	Column string
	Window int
	Dates  []models.Date
	Values []float64
}

// Rolling computes the rolling correlation of market cap with one column.
func Rolling(t *Table, column string, window int) (RollingSeries, error) {
	target, err := t.column(MarketCapColumn)
	if err != nil {
		return RollingSeries{}, err
	}
	col, err := t.column(column)
	if err != nil {
		return RollingSeries{}, err
	}
	return RollingSeries{
		Column: column,
		Window: window,
		Dates:  t.Dates(),
		Values: RollingCorrelation(target, col, window),
	}, nil
}

// RollingStd returns the trailing-window sample standard deviation of xs,
// NaN until a full window of non-missing values is available.
func RollingStd(xs []float64, window int) []float64 {
	return rollingWelford(xs, window, func(w *welford) float64 { return w.std(1) })
}

// RollingMean is the trailing-window mean with the same missing-value rule
// as RollingStd.
func RollingMean(xs []float64, window int) []float64 {
	return rollingWelford(xs, window, func(w *welford) float64 { return w.mean })
}

func rollingWelford(xs []float64, window int, stat func(*welford) float64) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = math.NaN()
		if window < 2 || i < window-1 {
			continue
		}
		var w welford
		for _, x := range xs[i-window+1 : i+1] {
			if math.IsNaN(x) {
				w = welford{}
				break
			}
			w.add(x)
		}
		if w.count == window {
			out[i] = stat(&w)
		}
	}
	return out
}
