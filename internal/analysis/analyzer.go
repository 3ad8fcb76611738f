package analysis

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/stableyield/internal/logger"
	"github.com/rewired-gh/stableyield/internal/models"
)

// Config selects columns and parameters for a run.
type Config struct {
	// Columns are the yield and spread columns to analyze against market cap.
	Columns []string
	// Lags are row offsets for lagged correlation.
	Lags []int
	// RollingWindow is the trailing window, in rows, for rolling correlation.
	RollingWindow int
	// MaxLag is the VAR order and the highest Granger lag tested.
	MaxLag int
	// ExtremeMultiplier scales the diff standard deviation into the extreme cutoff.
	ExtremeMultiplier float64
	// VolatilityWindow is the window for rolling volatility of market-cap changes.
	VolatilityWindow int
}

// DefaultConfig analyzes every tenor and default spread.
func DefaultConfig() Config {
	columns := make([]string, 0, len(models.Tenors)+len(models.DefaultSpreads))
	for _, t := range models.Tenors {
		columns = append(columns, string(t))
	}
	for _, s := range models.DefaultSpreads {
		columns = append(columns, s.Name)
	}
	return Config{
		Columns:           columns,
		Lags:              []int{5, 20},
		RollingWindow:     30,
		MaxLag:            5,
		ExtremeMultiplier: 2.0,
		VolatilityWindow:  20,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if len(c.Columns) == 0 {
		return errors.New("at least one analysis column is required")
	}
	for _, lag := range c.Lags {
		if lag < 1 {
			return fmt.Errorf("lags must be positive, got %d", lag)
		}
	}
	if c.RollingWindow < 2 {
		return errors.New("rolling window must be at least 2")
	}
	if c.MaxLag < 1 {
		return errors.New("max lag must be at least 1")
	}
	if c.ExtremeMultiplier <= 0 {
		return errors.New("extreme multiplier must be positive")
	}
	if c.VolatilityWindow < 2 {
		return errors.New("volatility window must be at least 2")
	}
	return nil
}

// Result bundles every statistic computed from one aligned table. Each
// field can be rendered on its own; rolling series are computed on demand.
type Result struct {
	// Columns are the requested analysis columns present in the table.
	Columns     []string
	Summaries   []Summary
	Correlation CorrMatrix
	Lagged      []LagCorrelation
	Fits        []FitSet
	Extremes    []ExtremeSummary
	// VAR is nil when the joint model could not be estimated.
	VAR       *VARModel
	LagOrder  []LagOrderCriteria
	BestOrder int
	Granger   []GrangerPair
	Warnings  []Warning

	table            *Table
	rollingWindow    int
	volatilityWindow int
}

// Table returns the aligned table the result was computed from.
func (r *Result) Table() *Table { return r.table }

// RollingWindow returns the configured rolling correlation window.
func (r *Result) RollingWindow() int { return r.rollingWindow }

// VolatilityWindow returns the configured volatility window.
func (r *Result) VolatilityWindow() int { return r.volatilityWindow }

// Rolling yields each analysis column's rolling correlation with market
// cap, computing each series only when it is consumed.
func (r *Result) Rolling() iter.Seq[RollingSeries] {
	return func(yield func(RollingSeries) bool) {
		for _, col := range r.Columns {
			s, err := Rolling(r.table, col, r.rollingWindow)
			if err != nil {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

// RollingFor computes the rolling correlation for one column.
func (r *Result) RollingFor(column string) (RollingSeries, error) {
	return Rolling(r.table, column, r.rollingWindow)
}

// Volatility is the rolling standard deviation of market-cap percentage changes.
func (r *Result) Volatility() []float64 {
	caps, _ := r.table.column(MarketCapColumn)
	return RollingStd(PctChange(caps), r.volatilityWindow)
}

// Tenors returns the maturity columns present in the table, shortest first.
func (r *Result) Tenors() []string {
	return tenorColumns(r.table)
}

// Analyzer runs every engine over an aligned table.
type Analyzer struct {
	config Config
}

// New creates an analyzer.
func New(config Config) *Analyzer {
	return &Analyzer{config: config}
}

// Run computes a fresh Result. Engines run concurrently; each writes only
// its own slot. Structural failures abort the run, undefined statistics are
// returned as warnings.
func (a *Analyzer) Run(t *Table) (*Result, error) {
	if err := a.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	if t == nil || t.Len() == 0 {
		return nil, ErrNoOverlap
	}
	if !t.Has(MarketCapColumn) {
		return nil, &ColumnNotFoundError{Column: MarketCapColumn}
	}

	var columns []string
	for _, name := range t.Present(a.config.Columns) {
		if name != MarketCapColumn {
			columns = append(columns, name)
		}
	}
	res := &Result{
		Columns:          columns,
		table:            t,
		rollingWindow:    a.config.RollingWindow,
		volatilityWindow: a.config.VolatilityWindow,
	}
	var absent []Warning
	for _, name := range t.Absent(a.config.Columns) {
		absent = append(absent, missing("analyzer", name))
	}
	if len(absent) > 0 {
		logger.Warn("Skipping %d requested columns absent from the aligned table", len(absent))
	}
	described := append([]string{MarketCapColumn}, res.Columns...)

	var g errgroup.Group
	var engineWarnings [6][]Warning

	g.Go(timed("describe", func() error {
		var w1, w2 []Warning
		res.Summaries, w1 = Describe(t, described)
		res.Correlation, w2 = CorrelationMatrix(t, described)
		engineWarnings[0] = append(w1, w2...)
		return nil
	}))
	g.Go(timed("lagged", func() error {
		var err error
		res.Lagged, engineWarnings[1], err = LaggedCorrelations(t, res.Columns, a.config.Lags)
		return err
	}))
	g.Go(timed("fit", func() error {
		for _, col := range res.Columns {
			fits, w, err := FitNonlinear(t, col)
			if err != nil {
				return err
			}
			res.Fits = append(res.Fits, fits)
			engineWarnings[2] = append(engineWarnings[2], w...)
		}
		return nil
	}))
	g.Go(timed("extreme", func() error {
		for _, col := range res.Columns {
			s, w, err := ExtremeEvents(t, col, a.config.ExtremeMultiplier)
			if err != nil {
				return err
			}
			res.Extremes = append(res.Extremes, s)
			engineWarnings[3] = append(engineWarnings[3], w...)
		}
		return nil
	}))
	g.Go(timed("var", func() error {
		var err error
		engineWarnings[4], err = a.runVAR(t, res)
		return err
	}))
	g.Go(timed("granger", func() error {
		var err error
		res.Granger, engineWarnings[5], err = a.runGranger(t)
		return err
	}))

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Warnings = absent
	for _, w := range engineWarnings {
		res.Warnings = append(res.Warnings, w...)
	}
	for _, w := range res.Warnings {
		logger.Debug("Analysis warning: %s", w)
	}
	logger.Info("Analysis complete: %d rows, %d columns, %d warnings", t.Len(), len(res.Columns), len(res.Warnings))
	return res, nil
}

func (a *Analyzer) runVAR(t *Table, res *Result) ([]Warning, error) {
	names := append([]string{MarketCapColumn}, tenorColumns(t)...)
	if len(names) < 2 {
		return []Warning{undefined("var", "", "no maturity columns in aligned table")}, nil
	}
	data, err := completeRows(t, names)
	if errors.Is(err, ErrInsufficientData) {
		return []Warning{undefined("var", "", err.Error())}, nil
	}
	if err != nil {
		return nil, err
	}

	res.VAR, err = FitVAR(data, names, a.config.MaxLag)
	if errors.Is(err, ErrInsufficientData) {
		return []Warning{undefined("var", "", err.Error())}, nil
	}
	if err != nil {
		return nil, err
	}

	res.LagOrder, res.BestOrder, err = SelectLagOrder(data, names, a.config.MaxLag)
	if errors.Is(err, ErrInsufficientData) {
		return []Warning{undefined("var", "", "lag order selection: "+err.Error())}, nil
	}
	return nil, err
}

func (a *Analyzer) runGranger(t *Table) ([]GrangerPair, []Warning, error) {
	caps, _ := t.column(MarketCapColumn)
	var pairs []GrangerPair
	var warnings []Warning
	for _, name := range tenorColumns(t) {
		col, _ := t.column(name)
		mc, y := pairedComplete(caps, col)

		toCap, err := GrangerCausality(mc, y, MarketCapColumn, name, a.config.MaxLag)
		if err != nil {
			return nil, nil, fmt.Errorf("granger %s -> %s: %w", name, MarketCapColumn, err)
		}
		fromCap, err := GrangerCausality(y, mc, name, MarketCapColumn, a.config.MaxLag)
		if err != nil {
			return nil, nil, fmt.Errorf("granger %s -> %s: %w", MarketCapColumn, name, err)
		}
		for _, test := range append(append([]GrangerTest(nil), toCap...), fromCap...) {
			if math.IsNaN(test.FStatistic) {
				warnings = append(warnings, undefined("granger", name,
					fmt.Sprintf("%s -> %s lag %d: insufficient degrees of freedom or exact fit", test.Cause, test.Effect, test.Lag)))
			}
		}
		pairs = append(pairs, GrangerPair{Column: name, YieldToMarketCap: toCap, MarketCapToYield: fromCap})
	}
	return pairs, warnings, nil
}

func tenorColumns(t *Table) []string {
	var out []string
	for _, name := range t.Columns() {
		if models.Tenor(name).IsKnown() {
			out = append(out, name)
		}
	}
	return out
}

func timed(engine string, fn func() error) func() error {
	return func() error {
		start := time.Now()
		err := fn()
		logger.Debug("Engine %s finished in %v", engine, time.Since(start))
		if err != nil {
			return fmt.Errorf("%s engine: %w", engine, err)
		}
		return nil
	}
}
