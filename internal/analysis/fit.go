package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Model names a regression specification of market cap on one column.
type Model string

const (
	Linear    Model = "linear"
	Quadratic Model = "quadratic"
	Threshold Model = "threshold"
)

// Fit is one fitted model. Coefficients line up with Terms; both are nil
// when the model could not be estimated, in which case RSquared is NaN.
type Fit struct {
	Model        Model
	Terms        []string
	Coefficients []float64
	RSquared     float64
	Observations int
	// SplitPoint is the median of X used by the threshold model, NaN otherwise.
	SplitPoint float64
}

// Coefficient returns the coefficient for a term, NaN if absent.
func (f Fit) Coefficient(term string) float64 {
	for i, t := range f.Terms {
		if t == term && i < len(f.Coefficients) {
			return f.Coefficients[i]
		}
	}
	return math.NaN()
}

// FitSet holds the three models fitted against one column.
type FitSet struct {
	Column    string
	Linear    Fit
	Quadratic Fit
	Threshold Fit
}

// Models returns the fits in a fixed order.
func (s FitSet) Models() []Fit {
	return []Fit{s.Linear, s.Quadratic, s.Threshold}
}

// FitNonlinear regresses market cap on column using linear, quadratic and
// median-threshold specifications over complete pairs. R² is in-sample.
func FitNonlinear(t *Table, column string) (FitSet, []Warning, error) {
	y, err := t.column(MarketCapColumn)
	if err != nil {
		return FitSet{}, nil, err
	}
	x, err := t.column(column)
	if err != nil {
		return FitSet{}, nil, err
	}

	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}

	var warnings []Warning
	fits := FitSet{Column: column}
	var errs [3]error
	fits.Linear, errs[0] = fitLinear(xs, ys)
	fits.Quadratic, errs[1] = fitQuadratic(xs, ys)
	fits.Threshold, errs[2] = fitThreshold(xs, ys)
	for i, fit := range fits.Models() {
		switch {
		case errs[i] != nil && !errors.Is(errs[i], ErrInsufficientData):
			return FitSet{}, nil, fmt.Errorf("%s fit on %s: %w", fit.Model, column, errs[i])
		case errs[i] != nil:
			warnings = append(warnings, undefined("fit", column, fmt.Sprintf("%s: %v", fit.Model, errs[i])))
		case math.IsNaN(fit.RSquared):
			warnings = append(warnings, undefined("fit", column, fmt.Sprintf("%s: R² undefined for constant response", fit.Model)))
		}
	}
	return fits, warnings, nil
}

func fitLinear(xs, ys []float64) (Fit, error) {
	return fitDesign(Linear, []string{"const", "x"}, xs, ys, math.NaN(), func(x float64) []float64 {
		return []float64{1, x}
	})
}

func fitQuadratic(xs, ys []float64) (Fit, error) {
	return fitDesign(Quadratic, []string{"const", "x", "x^2"}, xs, ys, math.NaN(), func(x float64) []float64 {
		return []float64{1, x, x * x}
	})
}

// fitThreshold adds a 0/1 indicator for X above its sample median.
func fitThreshold(xs, ys []float64) (Fit, error) {
	split := median(xs)
	return fitDesign(Threshold, []string{"const", "x", "above_median"}, xs, ys, split, func(x float64) []float64 {
		above := 0.0
		if x > split {
			above = 1
		}
		return []float64{1, x, above}
	})
}

func fitDesign(model Model, terms []string, xs, ys []float64, split float64, row func(float64) []float64) (Fit, error) {
	fit := Fit{Model: model, RSquared: math.NaN(), Observations: len(xs), SplitPoint: split}
	if len(xs) < len(terms) {
		return fit, fmt.Errorf("%w: %d pairs for %d terms", ErrInsufficientData, len(xs), len(terms))
	}
	design := mat.NewDense(len(xs), len(terms), nil)
	for i, x := range xs {
		design.SetRow(i, row(x))
	}
	coef, _, r2, err := regress(design, ys)
	if err != nil {
		return fit, err
	}
	fit.Terms = terms
	fit.Coefficients = coef
	fit.RSquared = r2
	return fit, nil
}
