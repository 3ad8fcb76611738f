package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Summary holds descriptive statistics of one column's non-missing values.
type Summary struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q25    float64
	Median float64
	Q75    float64
	Max    float64
}

// Describe summarizes each requested column that exists in the table.
// Absent columns are skipped with a MissingColumn warning.
func Describe(t *Table, columns []string) ([]Summary, []Warning) {
	var warnings []Warning
	for _, name := range t.Absent(columns) {
		warnings = append(warnings, missing("describe", name))
	}

	present := t.Present(columns)
	summaries := make([]Summary, 0, len(present))
	for _, name := range present {
		col, _ := t.column(name)
		s := summarize(name, col)
		if s.Count < 2 {
			warnings = append(warnings, undefined("describe", name, "fewer than 2 observations for standard deviation"))
		}
		summaries = append(summaries, s)
	}
	return summaries, warnings
}

func summarize(name string, col []float64) Summary {
	var w welford
	w.addAll(col)
	sorted := finite(col)
	sort.Float64s(sorted)

	s := Summary{
		Column: name,
		Count:  w.count,
		Mean:   w.meanOrNaN(),
		Std:    w.std(1),
		Min:    math.NaN(),
		Max:    math.NaN(),
		Q25:    quantile(sorted, 0.25),
		Median: quantile(sorted, 0.5),
		Q75:    quantile(sorted, 0.75),
	}
	if w.count > 0 {
		s.Min, s.Max = w.min, w.max
	}
	return s
}

// quantile interpolates linearly between the order statistics of an
// ascending slice (the (n-1)p definition). NaN for an empty slice.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// median of the non-missing values of xs.
func median(xs []float64) float64 {
	sorted := finite(xs)
	sort.Float64s(sorted)
	return quantile(sorted, 0.5)
}

func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// CorrMatrix is a symmetric Pearson correlation matrix over named columns.
type CorrMatrix struct {
	Columns []string
	Values  *mat.SymDense
}

// Index returns the position of a column, -1 if absent.
func (m CorrMatrix) Index(name string) int {
	for i, c := range m.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// At returns the correlation between two columns, NaN if either is absent.
func (m CorrMatrix) At(a, b string) float64 {
	i, j := m.Index(a), m.Index(b)
	if i < 0 || j < 0 || m.Values == nil {
		return math.NaN()
	}
	return m.Values.At(i, j)
}

// CorrelationMatrix computes pairwise Pearson correlations over the requested
// columns present in the table. Each pair uses only rows where both values
// are present, so different pairs may use different rows.
func CorrelationMatrix(t *Table, columns []string) (CorrMatrix, []Warning) {
	var warnings []Warning
	for _, name := range t.Absent(columns) {
		warnings = append(warnings, missing("correlation", name))
	}

	present := t.Present(columns)
	n := len(present)
	m := CorrMatrix{Columns: present}
	if n == 0 {
		return m, warnings
	}
	m.Values = mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		xi, _ := t.column(present[i])
		for j := i; j < n; j++ {
			xj, _ := t.column(present[j])
			r, _ := pearson(xi, xj)
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			if math.IsNaN(r) {
				warnings = append(warnings, undefined("correlation", present[i]+"/"+present[j],
					"zero variance or fewer than 2 paired observations"))
			}
			m.Values.SetSym(i, j, r)
		}
	}
	return m, warnings
}
