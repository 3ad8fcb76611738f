package analysis

import "math"

// welford accumulates a running mean and sum of squared deviations.
type welford struct {
	count int
	mean  float64
	m2    float64
	min   float64
	max   float64
}

func (w *welford) add(x float64) {
	if w.count == 0 || x < w.min {
		w.min = x
	}
	if w.count == 0 || x > w.max {
		w.max = x
	}
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

// addAll feeds every non-NaN value of xs.
func (w *welford) addAll(xs []float64) {
	for _, x := range xs {
		if !math.IsNaN(x) {
			w.add(x)
		}
	}
}

// variance divides by count-ddof; NaN when that is not positive.
func (w *welford) variance(ddof int) float64 {
	n := w.count - ddof
	if n <= 0 {
		return math.NaN()
	}
	if w.min == w.max {
		return 0
	}
	return w.m2 / float64(n)
}

func (w *welford) std(ddof int) float64 {
	return math.Sqrt(w.variance(ddof))
}

func (w *welford) meanOrNaN() float64 {
	if w.count == 0 {
		return math.NaN()
	}
	return w.mean
}
