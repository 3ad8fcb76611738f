package analysis

import (
	"math"
)

// ExtremeSummary compares market-cap percentage changes on days with an
// extreme move in a yield or spread against all other days. It is
// descriptive only; no test of the difference in means is made.
type ExtremeSummary struct {
	Column     string
	Multiplier float64
	// DiffStd is the population standard deviation of the column's day-over-day difference.
	DiffStd float64
	// Cutoff is Multiplier * DiffStd.
	Cutoff            float64
	ExtremeCount      int
	NormalCount       int
	ExtremeMeanChange float64
	NormalMeanChange  float64
}

// Diff returns day-over-day differences; the first entry is NaN.
func Diff(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = xs[i] - xs[i-1]
	}
	return out
}

// PctChange returns fractional day-over-day changes. The first entry, and
// any change from a zero prior value, is NaN.
func PctChange(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		v := xs[i]/xs[i-1] - 1
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// ClassifyExtremes flags rows whose |diff| exceeds multiplier times the
// population standard deviation of the non-missing diffs. Rows with a
// missing diff are never extreme.
func ClassifyExtremes(diff []float64, multiplier float64) ([]bool, float64) {
	var w welford
	w.addAll(diff)
	std := w.std(0)
	flags := make([]bool, len(diff))
	if math.IsNaN(std) {
		return flags, std
	}
	cutoff := multiplier * std
	for i, d := range diff {
		flags[i] = !math.IsNaN(d) && math.Abs(d) > cutoff
	}
	return flags, std
}

// ExtremeEvents partitions rows by extreme moves in column and reports the
// mean market-cap percentage change on each side.
func ExtremeEvents(t *Table, column string, multiplier float64) (ExtremeSummary, []Warning, error) {
	caps, err := t.column(MarketCapColumn)
	if err != nil {
		return ExtremeSummary{}, nil, err
	}
	col, err := t.column(column)
	if err != nil {
		return ExtremeSummary{}, nil, err
	}

	flags, std := ClassifyExtremes(Diff(col), multiplier)
	changes := PctChange(caps)

	var extreme, normal welford
	s := ExtremeSummary{Column: column, Multiplier: multiplier, DiffStd: std, Cutoff: multiplier * std}
	for i, isExtreme := range flags {
		if isExtreme {
			s.ExtremeCount++
			if !math.IsNaN(changes[i]) {
				extreme.add(changes[i])
			}
			continue
		}
		s.NormalCount++
		if !math.IsNaN(changes[i]) {
			normal.add(changes[i])
		}
	}
	s.ExtremeMeanChange = extreme.meanOrNaN()
	s.NormalMeanChange = normal.meanOrNaN()

	var warnings []Warning
	if math.IsNaN(std) {
		warnings = append(warnings, undefined("extreme", column, "no day-over-day differences"))
	}
	if math.IsNaN(s.ExtremeMeanChange) {
		warnings = append(warnings, undefined("extreme", column, "no extreme days with a defined market-cap change"))
	}
	if math.IsNaN(s.NormalMeanChange) {
		warnings = append(warnings, undefined("extreme", column, "no normal days with a defined market-cap change"))
	}
	return s, warnings, nil
}
