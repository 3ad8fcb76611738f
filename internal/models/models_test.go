package models

import (
	"math"
	"testing"
	"time"
)

func TestMarketCapPointValidate(t *testing.T) {
	day := Date{Year: 2024, Month: time.March, Day: 1}
	tests := []struct {
		name    string
		point   MarketCapPoint
		wantErr bool
	}{
		{
			name:    "valid point",
			point:   MarketCapPoint{Date: day, Circulating: 1.5e11, CirculatingUSD: 1.5e11},
			wantErr: false,
		},
		{
			name:    "zero supply is allowed",
			point:   MarketCapPoint{Date: day},
			wantErr: false,
		},
		{
			name:    "empty date",
			point:   MarketCapPoint{CirculatingUSD: 1},
			wantErr: true,
		},
		{
			name:    "negative supply",
			point:   MarketCapPoint{Date: day, CirculatingUSD: -1},
			wantErr: true,
		},
		{
			name:    "NaN supply",
			point:   MarketCapPoint{Date: day, CirculatingUSD: math.NaN()},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("MarketCapPoint.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDateOfDropsTimeOfDay(t *testing.T) {
	morning := time.Date(2024, time.May, 3, 0, 0, 1, 0, time.UTC)
	evening := time.Date(2024, time.May, 3, 23, 59, 59, 999, time.UTC)
	if DateOf(morning) != DateOf(evening) {
		t.Errorf("DateOf(%v) != DateOf(%v)", morning, evening)
	}
	if got := DateOf(evening).String(); got != "2024-05-03" {
		t.Errorf("String() = %q, want 2024-05-03", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2023-12-31")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.AddDays(1).String() != "2024-01-01" {
		t.Errorf("AddDays(1) = %s, want 2024-01-01", d.AddDays(1))
	}
	if !d.Before(d.AddDays(1)) || d.After(d.AddDays(1)) {
		t.Error("date ordering is wrong")
	}
	if _, err := ParseDate("31/12/2023"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestSpreadValue(t *testing.T) {
	s := Spread{Name: "10Y-2Y", Long: Tenor10Y, Short: Tenor2Y}
	got := s.Value(map[Tenor]float64{Tenor10Y: 4.25, Tenor2Y: 4.75})
	if math.Abs(got-(-0.5)) > 1e-12 {
		t.Errorf("Value() = %f, want -0.5", got)
	}
	if !math.IsNaN(s.Value(map[Tenor]float64{Tenor10Y: 4.25})) {
		t.Error("expected NaN when a leg is missing")
	}
}

func TestSpreadValidate(t *testing.T) {
	for _, s := range DefaultSpreads {
		if err := s.Validate(); err != nil {
			t.Errorf("default spread %s invalid: %v", s.Name, err)
		}
	}
	bad := []Spread{
		{Name: "", Long: Tenor10Y, Short: Tenor2Y},
		{Name: "x", Long: "DGS7", Short: Tenor2Y},
		{Name: "y", Long: Tenor2Y, Short: Tenor2Y},
	}
	for _, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("expected error for spread %+v", s)
		}
	}
}

func TestRunValidate(t *testing.T) {
	now := time.Now()
	start := Date{Year: 2024, Month: time.January, Day: 1}
	tests := []struct {
		name    string
		run     Run
		wantErr bool
	}{
		{
			name:    "valid run",
			run:     Run{ID: "r1", StartDate: start, EndDate: start.AddDays(30), Rows: 20, StartedAt: now.Add(-time.Second), FinishedAt: now},
			wantErr: false,
		},
		{
			name:    "empty ID",
			run:     Run{StartedAt: now, FinishedAt: now},
			wantErr: true,
		},
		{
			name:    "end before start",
			run:     Run{ID: "r1", StartDate: start, EndDate: start.AddDays(-1), StartedAt: now, FinishedAt: now},
			wantErr: true,
		},
		{
			name:    "finished before started",
			run:     Run{ID: "r1", StartedAt: now, FinishedAt: now.Add(-time.Minute)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Run.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
