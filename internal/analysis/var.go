package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// VARModel is a reduced-form vector autoregression with a constant:
//
//	y_t = c + A_1 y_{t-1} + ... + A_p y_{t-p} + u_t
//
// No stationarity test or differencing is applied to the inputs.
type VARModel struct {
	Variables    []string
	Lags         int
	Observations int
	// Intercept holds c, one entry per equation.
	Intercept []float64
	// Coefficients holds A_1..A_p; row = equation, column = lagged variable.
	Coefficients []*mat.Dense
	// SigmaU is the degrees-of-freedom adjusted residual covariance.
	SigmaU *mat.SymDense
	LogDet float64
	AIC    float64
	BIC    float64
	HQIC   float64
}

// Coefficient returns the effect of variable lagged by lag on equation.
func (m *VARModel) Coefficient(lag int, equation, variable string) float64 {
	if m == nil || lag < 1 || lag > len(m.Coefficients) {
		return math.NaN()
	}
	eq, v := indexOf(m.Variables, equation), indexOf(m.Variables, variable)
	if eq < 0 || v < 0 {
		return math.NaN()
	}
	return m.Coefficients[lag-1].At(eq, v)
}

// LagOrderCriteria are information criteria of a VAR(p) on a common sample.
type LagOrderCriteria struct {
	Lags int
	AIC  float64
	BIC  float64
	HQIC float64
}

// FitVAR estimates a VAR(lags) with constant by equation-wise OLS.
// data is T x K with rows in time order and no missing values.
func FitVAR(data *mat.Dense, names []string, lags int) (*VARModel, error) {
	return fitVAR(data, names, lags, 0)
}

// fitVAR drops the first skip rows of usable observations so that models of
// different orders can share a sample.
func fitVAR(data *mat.Dense, names []string, lags, skip int) (*VARModel, error) {
	T, K := data.Dims()
	if len(names) != K {
		return nil, fmt.Errorf("got %d names for %d variables", len(names), K)
	}
	if lags < 1 {
		return nil, fmt.Errorf("lags must be at least 1, got %d", lags)
	}
	nobs := T - lags - skip
	regressors := 1 + lags*K
	if nobs <= regressors {
		return nil, fmt.Errorf("%w: VAR(%d) over %d variables needs more than %d rows, have %d",
			ErrInsufficientData, lags, K, regressors+lags+skip, T)
	}

	y := mat.NewDense(nobs, K, nil)
	x := mat.NewDense(nobs, regressors, nil)
	for r := 0; r < nobs; r++ {
		t := r + lags + skip
		for k := 0; k < K; k++ {
			y.Set(r, k, data.At(t, k))
		}
		x.Set(r, 0, 1)
		col := 1
		for j := 1; j <= lags; j++ {
			for k := 0; k < K; k++ {
				x.Set(r, col, data.At(t-j, k))
				col++
			}
		}
	}

	b, resid, err := leastSquares(x, y)
	if err != nil {
		return nil, fmt.Errorf("VAR(%d) estimation: %w", lags, err)
	}

	m := &VARModel{
		Variables:    append([]string(nil), names...),
		Lags:         lags,
		Observations: nobs,
		Intercept:    make([]float64, K),
		Coefficients: make([]*mat.Dense, lags),
	}
	for eq := 0; eq < K; eq++ {
		m.Intercept[eq] = b.At(0, eq)
	}
	for j := 0; j < lags; j++ {
		a := mat.NewDense(K, K, nil)
		offset := 1 + j*K
		for eq := 0; eq < K; eq++ {
			for v := 0; v < K; v++ {
				a.Set(eq, v, b.At(offset+v, eq))
			}
		}
		m.Coefficients[j] = a
	}

	var utu mat.Dense
	utu.Mul(resid.T(), resid)
	m.SigmaU = covariance(&utu, float64(nobs-regressors))
	mle := covariance(&utu, float64(nobs))

	logDet, sign := mat.LogDet(mle)
	if sign <= 0 {
		logDet = math.NaN()
	}
	free := float64(lags*K*K + K)
	n := float64(nobs)
	m.LogDet = logDet
	m.AIC = logDet + 2*free/n
	m.BIC = logDet + math.Log(n)*free/n
	m.HQIC = logDet + 2*math.Log(math.Log(n))*free/n
	return m, nil
}

func covariance(utu *mat.Dense, df float64) *mat.SymDense {
	k, _ := utu.Dims()
	sym := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			sym.SetSym(i, j, utu.At(i, j)/df)
		}
	}
	return sym
}

// SelectLagOrder fits VAR(1)..VAR(maxLag) on the same sample (the first
// maxLag rows are reserved as presample for every order) and returns their
// criteria and the AIC-minimizing order.
func SelectLagOrder(data *mat.Dense, names []string, maxLag int) ([]LagOrderCriteria, int, error) {
	var out []LagOrderCriteria
	best, bestAIC := 0, math.Inf(1)
	for p := 1; p <= maxLag; p++ {
		m, err := fitVAR(data, names, p, maxLag-p)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, LagOrderCriteria{Lags: p, AIC: m.AIC, BIC: m.BIC, HQIC: m.HQIC})
		if m.AIC < bestAIC {
			best, bestAIC = p, m.AIC
		}
	}
	return out, best, nil
}

// completeRows builds a T x K matrix from the named columns keeping only
// rows where every column is present.
func completeRows(t *Table, names []string) (*mat.Dense, error) {
	cols := make([][]float64, len(names))
	for i, name := range names {
		col, err := t.column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	var data []float64
	rows := 0
	for r := 0; r < t.Len(); r++ {
		ok := true
		for _, col := range cols {
			if math.IsNaN(col[r]) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		for _, col := range cols {
			data = append(data, col[r])
		}
		rows++
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: no complete rows over %v", ErrInsufficientData, names)
	}
	return mat.NewDense(rows, len(names), data), nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
