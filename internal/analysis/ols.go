package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// svdRankTol is the relative singular-value cutoff for the rank-deficient fallback.
const svdRankTol = 1e-12

// leastSquares solves min ||X b - Y|| for every column of Y and returns the
// coefficients (cols(X) x cols(Y)) and the residual matrix. Columns of X are
// scaled to unit max-abs before a QR solve, which falls back to the
// minimum-norm SVD solution when X is rank deficient.
func leastSquares(x *mat.Dense, y *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	rows, cols := x.Dims()
	yr, yc := y.Dims()
	if rows != yr {
		return nil, nil, fmt.Errorf("design has %d rows, response has %d", rows, yr)
	}
	if rows < cols {
		return nil, nil, fmt.Errorf("%w: %d rows for %d regressors", ErrInsufficientData, rows, cols)
	}

	scale := make([]float64, cols)
	scaled := mat.DenseCopyOf(x)
	for j := 0; j < cols; j++ {
		scale[j] = 1
		if m := mat.Norm(x.ColView(j), math.Inf(1)); m > 0 {
			scale[j] = m
		}
		for i := 0; i < rows; i++ {
			scaled.Set(i, j, x.At(i, j)/scale[j])
		}
	}

	var b mat.Dense
	var qr mat.QR
	qr.Factorize(scaled)
	if err := qr.SolveTo(&b, false, y); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, nil, fmt.Errorf("QR solve failed: %w", err)
		}
		var svd mat.SVD
		if ok := svd.Factorize(scaled, mat.SVDThin); !ok {
			return nil, nil, fmt.Errorf("SVD factorization failed after QR: %w", err)
		}
		rank := svd.Rank(svdRankTol)
		if rank == 0 {
			b = *mat.NewDense(cols, yc, nil)
		} else {
			b.Reset()
			svd.SolveTo(&b, y, rank)
		}
	}

	for j := 0; j < cols; j++ {
		for k := 0; k < yc; k++ {
			b.Set(j, k, b.At(j, k)/scale[j])
		}
	}

	var fitted, resid mat.Dense
	fitted.Mul(x, &b)
	resid.Sub(y, &fitted)
	return &b, &resid, nil
}

// regress fits a single response and returns coefficients, residual sum of
// squares and in-sample R².
func regress(x *mat.Dense, y []float64) ([]float64, float64, float64, error) {
	b, resid, err := leastSquares(x, mat.NewDense(len(y), 1, y))
	if err != nil {
		return nil, math.NaN(), math.NaN(), err
	}
	_, cols := x.Dims()
	coef := make([]float64, cols)
	for i := range coef {
		coef[i] = b.At(i, 0)
	}
	rss := mat.Dot(resid.ColView(0), resid.ColView(0))
	return coef, rss, rSquared(y, rss), nil
}

// rSquared is 1 - RSS/TSS; NaN when y has no variation.
func rSquared(y []float64, rss float64) float64 {
	var w welford
	w.addAll(y)
	tss := w.m2
	if w.count < 2 || w.min == w.max || tss == 0 {
		return math.NaN()
	}
	return 1 - rss/tss
}
