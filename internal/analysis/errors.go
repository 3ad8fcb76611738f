package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput means one of the source series has no rows.
	ErrEmptyInput = errors.New("empty input series")
	// ErrNoOverlap means the aligned table would have no rows.
	ErrNoOverlap = errors.New("series have no overlapping dates")
	// ErrInsufficientData means a model has too few observations to be estimated.
	ErrInsufficientData = errors.New("insufficient observations")
)

// ColumnNotFoundError is returned when an engine that requires a column is
// invoked on a table that does not have it.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column not found: %s", e.Column)
}

// WarningKind classifies non-fatal analysis gaps.
type WarningKind string

const (
	// MissingColumn marks a requested column absent from the table.
	MissingColumn WarningKind = "missing_column"
	// UndefinedStatistic marks a result slot left NaN by zero variance or too few observations.
	UndefinedStatistic WarningKind = "undefined_statistic"
)

// Warning is a recovered per-column or per-statistic gap.
type Warning struct {
	Kind   WarningKind
	Engine string
	Column string
	Detail string
}

func (w Warning) String() string {
	if w.Column == "" {
		return fmt.Sprintf("[%s] %s: %s", w.Engine, w.Kind, w.Detail)
	}
	return fmt.Sprintf("[%s] %s %s: %s", w.Engine, w.Kind, w.Column, w.Detail)
}

func missing(engine, column string) Warning {
	return Warning{Kind: MissingColumn, Engine: engine, Column: column, Detail: "not present in aligned table"}
}

func undefined(engine, column, detail string) Warning {
	return Warning{Kind: UndefinedStatistic, Engine: engine, Column: column, Detail: detail}
}
