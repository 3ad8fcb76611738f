// Package export writes analysis results to an XLSX workbook with native charts.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/stableyield/internal/analysis"
	"github.com/rewired-gh/stableyield/internal/logger"
	"github.com/rewired-gh/stableyield/internal/models"
)

// Sheet names. None contain spaces so chart ranges need no quoting.
const (
	SheetAligned      = "Aligned"
	SheetSummary      = "Summary"
	SheetCorrelation  = "Correlation"
	SheetRolling      = "Rolling"
	SheetVolatility   = "Volatility"
	SheetYieldChanges = "YieldChanges"
	SheetCharts       = "Charts"
	SheetScatter      = "Scatter"
)

// chartRows is the vertical spacing between stacked charts.
const chartRows = 18

// Workbook writes res to path, creating parent directories.
func Workbook(res *analysis.Result, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	w := &writer{f: f, res: res, rows: res.Table().Len()}
	steps := []func() error{
		w.aligned,
		w.summary,
		w.correlation,
		w.rolling,
		w.volatility,
		w.yieldChanges,
		w.charts,
		w.scatter,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	if idx, err := f.GetSheetIndex(SheetAligned); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	logger.Info("Wrote workbook %s", path)
	return nil
}

type writer struct {
	f    *excelize.File
	res  *analysis.Result
	rows int
	// columns maps an aligned-table column to its letter on SheetAligned.
	columns map[string]string
	rollingCols map[string]string
	changes map[string]string
}

func (w *writer) sheet(name string) error {
	if name == SheetAligned {
		// NewFile starts with one default sheet; rename it instead of adding.
		return w.f.SetSheetName(w.f.GetSheetName(0), name)
	}
	if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	return nil
}

func (w *writer) row(sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// dateSheet writes a header row, the table dates in column A and one column
// per series, returning each series name's column letter.
func (w *writer) dateSheet(sheet string, names []string, series [][]float64) (map[string]string, error) {
	if err := w.sheet(sheet); err != nil {
		return nil, err
	}
	header := []interface{}{"date"}
	letters := make(map[string]string, len(names))
	for i, name := range names {
		header = append(header, name)
		letter, err := excelize.ColumnNumberToName(i + 2)
		if err != nil {
			return nil, err
		}
		letters[name] = letter
	}
	if err := w.row(sheet, 1, header); err != nil {
		return nil, err
	}
	for r, d := range w.res.Table().Dates() {
		values := []interface{}{d.String()}
		for _, s := range series {
			values = append(values, cell(s[r]))
		}
		if err := w.row(sheet, r+2, values); err != nil {
			return nil, err
		}
	}
	return letters, nil
}

func (w *writer) aligned() error {
	table := w.res.Table()
	names := table.Columns()
	series := make([][]float64, len(names))
	for i, name := range names {
		series[i], _ = table.Column(name)
	}
	var err error
	w.columns, err = w.dateSheet(SheetAligned, names, series)
	return err
}

func (w *writer) summary() error {
	if err := w.sheet(SheetSummary); err != nil {
		return err
	}
	header := []interface{}{"column", "count", "mean", "std", "min", "25%", "50%", "75%", "max"}
	if err := w.row(SheetSummary, 1, header); err != nil {
		return err
	}
	for i, s := range w.res.Summaries {
		values := []interface{}{s.Column, s.Count, cell(s.Mean), cell(s.Std), cell(s.Min),
			cell(s.Q25), cell(s.Median), cell(s.Q75), cell(s.Max)}
		if err := w.row(SheetSummary, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) correlation() error {
	if err := w.sheet(SheetCorrelation); err != nil {
		return err
	}
	cols := w.res.Correlation.Columns
	header := []interface{}{""}
	for _, c := range cols {
		header = append(header, c)
	}
	if err := w.row(SheetCorrelation, 1, header); err != nil {
		return err
	}
	for i, a := range cols {
		values := []interface{}{a}
		for _, b := range cols {
			values = append(values, cell(w.res.Correlation.At(a, b)))
		}
		if err := w.row(SheetCorrelation, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) rolling() error {
	var names []string
	var series [][]float64
	for s := range w.res.Rolling() {
		names = append(names, s.Column)
		series = append(series, s.Values)
	}
	var err error
	w.rollingCols, err = w.dateSheet(SheetRolling, names, series)
	return err
}

func (w *writer) volatility() error {
	_, err := w.dateSheet(SheetVolatility, []string{"market_cap_volatility"}, [][]float64{w.res.Volatility()})
	return err
}

// yieldChanges is the rolling mean of each tenor's percentage change.
func (w *writer) yieldChanges() error {
	tenors := w.res.Tenors()
	series := make([][]float64, len(tenors))
	for i, name := range tenors {
		col, _ := w.res.Table().Column(name)
		series[i] = analysis.RollingMean(analysis.PctChange(col), w.res.VolatilityWindow())
	}
	var err error
	w.changes, err = w.dateSheet(SheetYieldChanges, tenors, series)
	return err
}

func (w *writer) charts() error {
	if err := w.sheet(SheetCharts); err != nil {
		return err
	}
	table := w.res.Table()
	var spreads []string
	for _, name := range table.Columns() {
		if name != analysis.MarketCapColumn && !models.Tenor(name).IsKnown() {
			spreads = append(spreads, name)
		}
	}

	charts := []struct {
		title  string
		yTitle string
		sheet  string
		refs   map[string]string
		names  []string
	}{
		{"Stablecoin Market Cap Over Time", "Stablecoin Market Cap (USD)", SheetAligned, w.columns, []string{analysis.MarketCapColumn}},
		{"Treasury Yields (All Maturities)", "Yield (%)", SheetAligned, w.columns, w.res.Tenors()},
		{"Treasury Yield Spreads", "Yield Spread (%)", SheetAligned, w.columns, spreads},
		{fmt.Sprintf("Rolling %d-day Correlation with Market Cap", w.res.RollingWindow()), "Correlation", SheetRolling, w.rollingCols, w.res.Columns},
		{"Market Cap Volatility (rolling std of % change)", "Volatility", SheetVolatility, map[string]string{"market_cap_volatility": "B"}, []string{"market_cap_volatility"}},
		{fmt.Sprintf("%d-Day Rolling Average Yield Changes", w.res.VolatilityWindow()), "Percentage Change", SheetYieldChanges, w.changes, w.res.Tenors()},
	}

	anchor := 1
	for _, c := range charts {
		if len(c.names) == 0 {
			continue
		}
		chart := &excelize.Chart{
			Type:         excelize.Line,
			Title:        []excelize.RichTextRun{{Text: c.title}},
			Legend:       excelize.ChartLegend{Position: "bottom"},
			YAxis:        excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: c.yTitle}}},
			Dimension:    excelize.ChartDimension{Width: 960, Height: 320},
			ShowBlanksAs: "gap",
		}
		for _, name := range c.names {
			chart.Series = append(chart.Series, w.series(c.sheet, c.refs[name], "A"))
		}
		cell, _ := excelize.CoordinatesToCellName(1, anchor)
		if err := w.f.AddChart(SheetCharts, cell, chart); err != nil {
			return fmt.Errorf("failed to add chart %q: %w", c.title, err)
		}
		anchor += chartRows
	}
	return nil
}

// scatter plots market cap against each analysis column.
func (w *writer) scatter() error {
	if err := w.sheet(SheetScatter); err != nil {
		return err
	}
	mc := w.columns[analysis.MarketCapColumn]
	for i, name := range w.res.Columns {
		label := "Yield"
		if !models.Tenor(name).IsKnown() {
			label = "Spread"
		}
		series := w.series(SheetAligned, mc, w.columns[name])
		series.Marker = excelize.ChartMarker{Symbol: "circle", Size: 4}
		chart := &excelize.Chart{
			Type:      excelize.Scatter,
			Series:    []excelize.ChartSeries{series},
			Title:     []excelize.RichTextRun{{Text: fmt.Sprintf("Market Cap vs. %s %s", name, label)}},
			XAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: fmt.Sprintf("%s %s (%%)", name, label)}}},
			YAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Stablecoin Market Cap (USD)"}}},
			Legend:    excelize.ChartLegend{Position: "none"},
			Dimension: excelize.ChartDimension{Width: 480, Height: 320},
		}
		col := 1 + (i%2)*9
		cell, _ := excelize.CoordinatesToCellName(col, 1+(i/2)*chartRows)
		if err := w.f.AddChart(SheetScatter, cell, chart); err != nil {
			return fmt.Errorf("failed to add scatter for %s: %w", name, err)
		}
	}
	return nil
}

// series references values in column valueCol against categories in catCol,
// both on sheet, over every data row.
func (w *writer) series(sheet, valueCol, catCol string) excelize.ChartSeries {
	last := w.rows + 1
	return excelize.ChartSeries{
		Name:       fmt.Sprintf("%s!$%s$1", sheet, valueCol),
		Categories: fmt.Sprintf("%s!$%s$2:$%s$%d", sheet, catCol, catCol, last),
		Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", sheet, valueCol, valueCol, last),
	}
}

// cell leaves undefined values blank.
func cell(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
