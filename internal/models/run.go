package models

import (
	"errors"
	"time"
)

// Run records one completed analysis invocation.
type Run struct {
	ID         string
	StartDate  Date
	EndDate    Date
	Rows       int
	Warnings   int
	Report     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Validate checks run field constraints.
func (r *Run) Validate() error {
	if r.ID == "" {
		return errors.New("run ID must not be empty")
	}
	if r.Rows < 0 {
		return errors.New("run rows must not be negative")
	}
	if !r.StartDate.IsZero() && !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return errors.New("run end date must not precede start date")
	}
	if r.FinishedAt.Before(r.StartedAt) {
		return errors.New("finished at must be >= started at")
	}
	return nil
}
