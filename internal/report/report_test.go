package report

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/stableyield/internal/analysis"
	"github.com/rewired-gh/stableyield/internal/models"
)

var start = models.Date{Year: 2024, Month: time.January, Day: 1}

// buildResult runs the analyzer over n days where market cap falls as the
// 10Y yield rises, with slope > 0 giving a negative relation.
func buildResult(t *testing.T, n int, slope float64) *analysis.Result {
	t.Helper()
	caps := make(models.MarketCapSeries, n)
	yields := make(models.YieldSeries, n)
	for i := 0; i < n; i++ {
		d := start.AddDays(i)
		ten := 3 + 0.5*math.Sin(float64(i)/7) + 0.01*float64(i%5)
		caps[i] = models.MarketCapPoint{Date: d, CirculatingUSD: 1.5e11 - slope*1e10*ten + 1e8*math.Cos(float64(i))}
		values := map[models.Tenor]float64{}
		for k, tenor := range models.Tenors {
			values[tenor] = ten - 0.3*float64(len(models.Tenors)-k) + 0.05*math.Sin(float64(i*(k+2)))
		}
		values[models.Tenor10Y] = ten
		yields[i] = models.YieldPoint{Date: d, Values: values}
	}
	table, err := analysis.Align(caps, yields, analysis.DefaultAlignOptions())
	require.NoError(t, err)
	res, err := analysis.New(analysis.DefaultConfig()).Run(table)
	require.NoError(t, err)
	return res
}

func TestRender_ContainsEverySection(t *testing.T) {
	res := buildResult(t, 120, 1)
	out := Render(res, Meta{RunID: "run-1", Start: start, End: start.AddDays(119), GeneratedAt: time.Now()})

	for _, heading := range []string{
		"Summary Statistics", "Correlation Matrix", "Lagged Correlations",
		"Rolling 30-day Correlations", "Nonlinear Fits", "Extreme Yield Moves",
		"Vector Autoregression", "Lag order selection", "Granger Causality",
		"Key Findings", "Limitations",
	} {
		assert.Contains(t, out, heading)
	}
	assert.Contains(t, out, "Run: run-1")
	assert.Contains(t, out, "2024-01-01 to 2024-04-29 (120 aligned rows)")
	assert.Contains(t, out, "  5-day lag: circulating_supply_usd vs. DGS10: ")
	assert.Contains(t, out, "  20-day lag: circulating_supply_usd vs. 10Y-2Y: ")
	assert.Contains(t, out, "DGS10 (lag 5):")
	assert.Contains(t, out, "no stationarity test")
}

func TestKeyFinding(t *testing.T) {
	negative, ok := KeyFinding(buildResult(t, 60, 1))
	require.True(t, ok)
	assert.Contains(t, negative, "negative correlation")

	positive, ok := KeyFinding(buildResult(t, 60, -1))
	require.True(t, ok)
	assert.Contains(t, positive, "positive correlation")
}

func TestRender_ShortRunShowsWarnings(t *testing.T) {
	res := buildResult(t, 10, 1)
	out := Render(res, Meta{Start: start, End: start.AddDays(9)})

	assert.Contains(t, out, "Not estimated (see warnings).")
	assert.Contains(t, out, "Warnings (")
	assert.NotContains(t, out, "Run: ")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWrite_PropagatesWriterError(t *testing.T) {
	err := Write(failingWriter{}, buildResult(t, 40, 1), Meta{})
	assert.EqualError(t, err, "disk full")
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "NaN", fixed(math.NaN(), 3))
	assert.Equal(t, "-0.500", fixed(-0.5, 3))
	assert.Equal(t, "1.5e+11", num(1.5e11))
	assert.Equal(t, "2.500%", pct(0.025))
	assert.True(t, strings.HasPrefix(pct(math.NaN()), "NaN"))
}
