// Package report renders an analysis result as a plain-text report.
package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rewired-gh/stableyield/internal/analysis"
	"github.com/rewired-gh/stableyield/internal/models"
)

// keyFindingThreshold is the |r| above which the 10Y correlation is called
// positive or negative.
const keyFindingThreshold = 0.2

// Meta describes the run a report belongs to.
type Meta struct {
	RunID       string
	Start       models.Date
	End         models.Date
	GeneratedAt time.Time
}

// Render returns the full report as a string.
func Render(res *analysis.Result, meta Meta) string {
	var buf bytes.Buffer
	_ = Write(&buf, res, meta)
	return buf.String()
}

// Write renders every section of the report to w.
func Write(w io.Writer, res *analysis.Result, meta Meta) error {
	r := &renderer{w: w}

	r.printf("Stablecoin Market Cap vs. Treasury Yields\n")
	if meta.RunID != "" {
		r.printf("Run: %s\n", meta.RunID)
	}
	r.printf("Window: %s to %s (%d aligned rows)\n", meta.Start, meta.End, res.Table().Len())
	if !meta.GeneratedAt.IsZero() {
		r.printf("Generated: %s\n", meta.GeneratedAt.UTC().Format(time.RFC3339))
	}
	r.printf("\n")

	r.summary(res)
	r.correlation(res)
	r.lagged(res)
	r.rolling(res)
	r.fits(res)
	r.extremes(res)
	r.vectorAutoregression(res)
	r.granger(res)
	r.keyFindings(res)
	r.limitations()
	r.warnings(res)
	return r.err
}

// KeyFinding classifies the market cap / 10Y correlation. ok is false when
// the correlation is unavailable.
func KeyFinding(res *analysis.Result) (string, bool) {
	r := res.Correlation.At(analysis.MarketCapColumn, string(models.Tenor10Y))
	if math.IsNaN(r) {
		return "", false
	}
	switch {
	case r < -keyFindingThreshold:
		return "There is a negative correlation between stablecoin market cap and 10Y Treasury yield.", true
	case r > keyFindingThreshold:
		return "There is a positive correlation between stablecoin market cap and 10Y Treasury yield.", true
	default:
		return "There is little to no correlation between stablecoin market cap and 10Y Treasury yield.", true
	}
}

type renderer struct {
	w   io.Writer
	err error
}

func (r *renderer) printf(format string, args ...interface{}) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

func (r *renderer) section(title string) {
	r.printf("%s\n%s\n", title, strings.Repeat("-", len(title)))
}

// table writes tab-separated rows aligned into columns.
func (r *renderer) table(rows [][]string) {
	if r.err != nil {
		return
	}
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")+"\t"); err != nil {
			r.err = err
			return
		}
	}
	r.err = tw.Flush()
}

func (r *renderer) summary(res *analysis.Result) {
	r.section("Summary Statistics (all yields and spreads)")
	rows := [][]string{{"", "count", "mean", "std", "min", "25%", "50%", "75%", "max"}}
	for _, s := range res.Summaries {
		rows = append(rows, []string{s.Column, fmt.Sprint(s.Count),
			num(s.Mean), num(s.Std), num(s.Min), num(s.Q25), num(s.Median), num(s.Q75), num(s.Max)})
	}
	r.table(rows)
	r.printf("\n")
}

func (r *renderer) correlation(res *analysis.Result) {
	r.section("Correlation Matrix (all yields and spreads)")
	cols := res.Correlation.Columns
	header := append([]string{""}, cols...)
	rows := [][]string{header}
	for _, a := range cols {
		row := []string{a}
		for _, b := range cols {
			row = append(row, fixed(res.Correlation.At(a, b), 3))
		}
		rows = append(rows, row)
	}
	r.table(rows)
	r.printf("\n")
}

func (r *renderer) lagged(res *analysis.Result) {
	r.section("Lagged Correlations (Stablecoin Market Cap vs. Yields/Spreads)")
	for _, l := range res.Lagged {
		r.printf("  %d-day lag: %s vs. %s: %s\n", l.Lag, analysis.MarketCapColumn, l.Column, fixed(l.Coefficient, 3))
	}
	r.printf("\n")
}

func (r *renderer) rolling(res *analysis.Result) {
	r.section(fmt.Sprintf("Rolling %d-day Correlations (Stablecoin Market Cap vs. Yields/Spreads)", res.RollingWindow()))
	rows := [][]string{{"", "latest", "mean", "min", "max", "windows"}}
	for s := range res.Rolling() {
		latest, mean, lo, hi, n := rollingStats(s.Values)
		rows = append(rows, []string{s.Column, fixed(latest, 3), fixed(mean, 3), fixed(lo, 3), fixed(hi, 3), fmt.Sprint(n)})
	}
	r.table(rows)
	r.printf("\n")
}

func rollingStats(values []float64) (latest, mean, lo, hi float64, n int) {
	latest, mean, lo, hi = math.NaN(), math.NaN(), math.Inf(1), math.Inf(-1)
	sum := 0.0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		latest = v
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		n++
	}
	if n == 0 {
		return latest, mean, math.NaN(), math.NaN(), 0
	}
	return latest, sum / float64(n), lo, hi, n
}

func (r *renderer) fits(res *analysis.Result) {
	r.section("Nonlinear Fits (market cap on each column, in-sample R²)")
	rows := [][]string{{"", "linear", "quadratic", "threshold", "split", "jump", "n"}}
	for _, f := range res.Fits {
		rows = append(rows, []string{f.Column,
			fixed(f.Linear.RSquared, 4), fixed(f.Quadratic.RSquared, 4), fixed(f.Threshold.RSquared, 4),
			fixed(f.Threshold.SplitPoint, 3), num(f.Threshold.Coefficient("above_median")),
			fmt.Sprint(f.Linear.Observations)})
	}
	r.table(rows)
	r.printf("\n")
}

func (r *renderer) extremes(res *analysis.Result) {
	r.section("Extreme Yield Moves (market cap % change, descriptive)")
	rows := [][]string{{"", "cutoff", "extreme days", "normal days", "extreme mean", "normal mean"}}
	for _, e := range res.Extremes {
		rows = append(rows, []string{e.Column, fixed(e.Cutoff, 4),
			fmt.Sprint(e.ExtremeCount), fmt.Sprint(e.NormalCount),
			pct(e.ExtremeMeanChange), pct(e.NormalMeanChange)})
	}
	r.table(rows)
	r.printf("\n")
}

func (r *renderer) vectorAutoregression(res *analysis.Result) {
	r.section("Vector Autoregression")
	m := res.VAR
	if m == nil {
		r.printf("  Not estimated (see warnings).\n\n")
		return
	}
	r.printf("  VAR(%d) with constant over %s\n", m.Lags, strings.Join(m.Variables, ", "))
	r.printf("  Observations: %d  log|Sigma|: %s  AIC: %s  BIC: %s  HQIC: %s\n\n",
		m.Observations, fixed(m.LogDet, 4), fixed(m.AIC, 4), fixed(m.BIC, 4), fixed(m.HQIC, 4))

	r.printf("  Lag-1 coefficients (row = equation, column = lagged variable):\n")
	rows := [][]string{append([]string{""}, m.Variables...)}
	for _, eq := range m.Variables {
		row := []string{eq}
		for _, v := range m.Variables {
			row = append(row, num(m.Coefficient(1, eq, v)))
		}
		rows = append(rows, row)
	}
	r.table(rows)
	r.printf("\n")

	if len(res.LagOrder) > 0 {
		r.printf("  Lag order selection (common sample):\n")
		rows := [][]string{{"", "AIC", "BIC", "HQIC"}}
		for _, c := range res.LagOrder {
			label := fmt.Sprint(c.Lags)
			if c.Lags == res.BestOrder {
				label += "*"
			}
			rows = append(rows, []string{label, fixed(c.AIC, 4), fixed(c.BIC, 4), fixed(c.HQIC, 4)})
		}
		r.table(rows)
		r.printf("  * minimizes AIC\n")
	}
	r.printf("\n")
}

func (r *renderer) granger(res *analysis.Result) {
	r.section("Granger Causality Test Results (SSR F-test, highest lag)")
	for _, pair := range res.Granger {
		to, from, ok := pair.MaxLag()
		if !ok {
			continue
		}
		r.printf("\n%s (lag %d):\n", pair.Column, to.Lag)
		r.printf("Yield to Market Cap:\n")
		r.printf("F-statistic: %s\n", fixed(to.FStatistic, 2))
		r.printf("p-value: %s\n", fixed(to.PValue, 4))
		r.printf("Market Cap to Yield:\n")
		r.printf("F-statistic: %s\n", fixed(from.FStatistic, 2))
		r.printf("p-value: %s\n", fixed(from.PValue, 4))
	}
	r.printf("\n")
}

func (r *renderer) keyFindings(res *analysis.Result) {
	r.section("Key Findings")
	if finding, ok := KeyFinding(res); ok {
		r.printf("%s\n", finding)
	} else {
		r.printf("10Y correlation unavailable.\n")
	}
	r.printf("\n")
}

func (r *renderer) limitations() {
	r.section("Limitations")
	r.printf("  - Yields enter the VAR and Granger tests in levels; no stationarity test or differencing is applied.\n")
	r.printf("  - Correlations, fit R² and extreme-move means are in-sample and carry no significance test.\n")
	r.printf("  - Lags and rolling windows count aligned rows, not calendar days.\n\n")
}

func (r *renderer) warnings(res *analysis.Result) {
	if len(res.Warnings) == 0 {
		return
	}
	r.section(fmt.Sprintf("Warnings (%d)", len(res.Warnings)))
	for _, w := range res.Warnings {
		r.printf("  %s\n", w)
	}
}

func fixed(v float64, prec int) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.*f", prec, v)
}

// num formats with up to six significant digits, scientific for large magnitudes.
func num(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.6g", v)
}

func pct(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.3f%%", v*100)
}
