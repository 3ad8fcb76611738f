// Package analysis aligns stablecoin market-cap and Treasury yield series and
// computes correlation, regression, extreme-event and causality diagnostics.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/rewired-gh/stableyield/internal/models"
)

// MarketCapColumn is the aligned-table column holding USD circulating supply.
const MarketCapColumn = "circulating_supply_usd"

// Table is a date-aligned set of named float columns, one row per date in
// ascending order. NaN marks a missing value. A Table is never modified after
// construction; accessors return copies.
type Table struct {
	dates   []models.Date
	names   []string
	columns map[string][]float64
}

// NewTable builds a table from dates and columns listed in order.
// Dates must be strictly ascending and every column must match their length.
func NewTable(dates []models.Date, order []string, columns map[string][]float64) (*Table, error) {
	for i := 1; i < len(dates); i++ {
		if !dates[i-1].Before(dates[i]) {
			return nil, fmt.Errorf("dates must be strictly ascending: %s then %s", dates[i-1], dates[i])
		}
	}
	t := &Table{
		dates:   append([]models.Date(nil), dates...),
		columns: make(map[string][]float64, len(order)),
	}
	for _, name := range order {
		col, ok := columns[name]
		if !ok {
			return nil, &ColumnNotFoundError{Column: name}
		}
		if len(col) != len(dates) {
			return nil, fmt.Errorf("column %s has %d values, want %d", name, len(col), len(dates))
		}
		if _, dup := t.columns[name]; dup {
			return nil, fmt.Errorf("duplicate column %s", name)
		}
		t.names = append(t.names, name)
		t.columns[name] = append([]float64(nil), col...)
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.dates) }

// Dates returns the row dates in ascending order.
func (t *Table) Dates() []models.Date {
	return append([]models.Date(nil), t.dates...)
}

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.names...)
}

// Has reports whether the table holds a column.
func (t *Table) Has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	col, ok := t.columns[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), col...), true
}

func (t *Table) column(name string) ([]float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, &ColumnNotFoundError{Column: name}
	}
	return col, nil
}

// Present filters names down to the columns that exist in the table,
// preserving the requested order and dropping duplicates.
func (t *Table) Present(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, name := range names {
		if seen[name] || !t.Has(name) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Absent returns the requested names that the table does not hold.
func (t *Table) Absent(names []string) []string {
	var out []string
	for _, name := range names {
		if !t.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// AlignOptions controls how the two source series are joined.
type AlignOptions struct {
	// Spreads are derived per row from the row's raw yields.
	Spreads []models.Spread
	// KeyColumns must be non-missing for a row to survive.
	KeyColumns []string
}

// DefaultAlignOptions drops rows missing market cap, the 10Y or the 3M yield.
func DefaultAlignOptions() AlignOptions {
	return AlignOptions{
		Spreads:    models.DefaultSpreads,
		KeyColumns: []string{MarketCapColumn, string(models.Tenor10Y), string(models.Tenor3M)},
	}
}

// Align inner-joins the market-cap and yield series on calendar date.
// Dates present in only one series are dropped, as are rows missing any
// key column; nothing is imputed. When two points share a date the later
// one in input order wins.
func Align(caps models.MarketCapSeries, yields models.YieldSeries, opts AlignOptions) (*Table, error) {
	if len(caps) == 0 {
		return nil, fmt.Errorf("%w: market cap series has no rows", ErrEmptyInput)
	}
	if len(yields) == 0 {
		return nil, fmt.Errorf("%w: yield series has no rows", ErrEmptyInput)
	}

	capByDate := make(map[models.Date]float64, len(caps))
	for _, p := range caps {
		capByDate[p.Date] = p.CirculatingUSD
	}

	yieldByDate := make(map[models.Date]map[models.Tenor]float64, len(yields))
	observed := make(map[models.Tenor]bool)
	for _, p := range yields {
		yieldByDate[p.Date] = p.Values
		for tenor, v := range p.Values {
			if !math.IsNaN(v) {
				observed[tenor] = true
			}
		}
	}

	var dates []models.Date
	for d := range capByDate {
		if _, ok := yieldByDate[d]; ok {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, ErrNoOverlap
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	tenors := observedTenors(observed)
	order := []string{MarketCapColumn}
	for _, tenor := range tenors {
		order = append(order, string(tenor))
	}
	var spreads []models.Spread
	for _, s := range opts.Spreads {
		if observed[s.Long] && observed[s.Short] {
			spreads = append(spreads, s)
			order = append(order, s.Name)
		}
	}

	known := make(map[string]bool, len(order))
	for _, name := range order {
		known[name] = true
	}
	for _, key := range opts.KeyColumns {
		if !known[key] {
			return nil, &ColumnNotFoundError{Column: key}
		}
	}

	columns := make(map[string][]float64, len(order))
	var kept []models.Date
	for _, d := range dates {
		values := yieldByDate[d]
		row := make(map[string]float64, len(order))
		row[MarketCapColumn] = capByDate[d]
		for _, tenor := range tenors {
			row[string(tenor)] = yieldValue(values, tenor)
		}
		for _, s := range spreads {
			row[s.Name] = yieldValue(values, s.Long) - yieldValue(values, s.Short)
		}
		if !complete(row, opts.KeyColumns) {
			continue
		}
		kept = append(kept, d)
		for _, name := range order {
			columns[name] = append(columns[name], row[name])
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no rows with complete key columns %v", ErrNoOverlap, opts.KeyColumns)
	}

	return NewTable(kept, order, columns)
}

func observedTenors(observed map[models.Tenor]bool) []models.Tenor {
	var out []models.Tenor
	for _, tenor := range models.Tenors {
		if observed[tenor] {
			out = append(out, tenor)
		}
	}
	var extra []models.Tenor
	for tenor := range observed {
		if !tenor.IsKnown() {
			extra = append(extra, tenor)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

func yieldValue(values map[models.Tenor]float64, tenor models.Tenor) float64 {
	if v, ok := values[tenor]; ok {
		return v
	}
	return math.NaN()
}

func complete(row map[string]float64, keys []string) bool {
	for _, key := range keys {
		if math.IsNaN(row[key]) {
			return false
		}
	}
	return true
}
