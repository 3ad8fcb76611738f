// Package storage provides SQLite-backed persistence for fetched series and analysis runs.
package storage

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/stableyield/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db      *sql.DB
	maxRuns int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/stableyield/data.db.
func New(maxRuns int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "stableyield", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxRuns: maxRuns}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS market_caps (
			date            TEXT PRIMARY KEY,
			circulating     REAL,
			circulating_usd REAL NOT NULL,
			fetched_at      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS treasury_yields (
			date       TEXT NOT NULL,
			tenor      TEXT NOT NULL,
			value      REAL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (date, tenor)
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id          TEXT PRIMARY KEY,
			start_date  TEXT NOT NULL,
			end_date    TEXT NOT NULL,
			row_count   INTEGER NOT NULL,
			warnings    INTEGER NOT NULL,
			report      TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON analysis_runs(finished_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveMarketCaps upserts market-cap points by date.
func (s *Storage) SaveMarketCaps(series models.MarketCapSeries) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO market_caps (date, circulating, circulating_usd, fetched_at)
		VALUES (?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare market cap insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, p := range series {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid market cap on %s: %w", p.Date, err)
		}
		if _, err := stmt.Exec(p.Date.String(), nullable(p.Circulating), p.CirculatingUSD, now); err != nil {
			return fmt.Errorf("failed to insert market cap: %w", err)
		}
	}
	return tx.Commit()
}

// LoadMarketCaps returns stored market caps in [start, end], ascending.
// A zero bound is open.
func (s *Storage) LoadMarketCaps(start, end models.Date) (models.MarketCapSeries, error) {
	where, args := dateRange(start, end)
	rows, err := s.db.Query(`SELECT date, circulating, circulating_usd FROM market_caps`+where+` ORDER BY date`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query market caps: %w", err)
	}
	defer rows.Close()

	series := models.MarketCapSeries{}
	for rows.Next() {
		var date string
		var circ sql.NullFloat64
		var p models.MarketCapPoint
		if err := rows.Scan(&date, &circ, &p.CirculatingUSD); err != nil {
			return nil, fmt.Errorf("failed to scan market cap: %w", err)
		}
		if p.Date, err = models.ParseDate(date); err != nil {
			return nil, err
		}
		p.Circulating = fromNullable(circ)
		series = append(series, p)
	}
	return series, rows.Err()
}

// SaveYields upserts one row per (date, tenor). Missing values are stored as NULL.
func (s *Storage) SaveYields(series models.YieldSeries) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO treasury_yields (date, tenor, value, fetched_at)
		VALUES (?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare yield insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, p := range series {
		for tenor, v := range p.Values {
			if _, err := stmt.Exec(p.Date.String(), string(tenor), nullable(v), now); err != nil {
				return fmt.Errorf("failed to insert yield: %w", err)
			}
		}
	}
	return tx.Commit()
}

// LoadYields returns stored yields in [start, end] grouped by date, ascending.
func (s *Storage) LoadYields(start, end models.Date) (models.YieldSeries, error) {
	where, args := dateRange(start, end)
	rows, err := s.db.Query(`SELECT date, tenor, value FROM treasury_yields`+where+` ORDER BY date, tenor`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query yields: %w", err)
	}
	defer rows.Close()

	series := models.YieldSeries{}
	for rows.Next() {
		var date, tenor string
		var value sql.NullFloat64
		if err := rows.Scan(&date, &tenor, &value); err != nil {
			return nil, fmt.Errorf("failed to scan yield: %w", err)
		}
		d, err := models.ParseDate(date)
		if err != nil {
			return nil, err
		}
		if n := len(series); n == 0 || series[n-1].Date != d {
			series = append(series, models.YieldPoint{Date: d, Values: map[models.Tenor]float64{}})
		}
		series[len(series)-1].Values[models.Tenor(tenor)] = fromNullable(value)
	}
	return series, rows.Err()
}

// AddRun records a finished analysis and keeps at most maxRuns newest runs.
func (s *Storage) AddRun(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO analysis_runs
			(id, start_date, end_date, row_count, warnings, report, started_at, finished_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		run.ID, run.StartDate.String(), run.EndDate.String(), run.Rows, run.Warnings, run.Report,
		run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if _, err = tx.Exec(rotateRunsSQL, s.maxRuns); err != nil {
		return fmt.Errorf("failed to enforce run cap: %w", err)
	}

	return tx.Commit()
}

// GetRun returns one run by ID.
func (s *Storage) GetRun(id string) (*models.Run, error) {
	row := s.db.QueryRow(`SELECT `+runCols+` FROM analysis_runs WHERE id = ?`, id)
	r, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Storage) ListRuns(limit int) ([]*models.Run, error) {
	rows, err := s.db.Query(`SELECT `+runCols+` FROM analysis_runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()
	runs := []*models.Run{}
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RotateRuns keeps at most maxRuns newest runs by finished_at.
func (s *Storage) RotateRuns() error {
	if _, err := s.db.Exec(rotateRunsSQL, s.maxRuns); err != nil {
		return fmt.Errorf("failed to rotate runs: %w", err)
	}
	return nil
}

const rotateRunsSQL = `
	DELETE FROM analysis_runs WHERE id NOT IN (
		SELECT id FROM analysis_runs ORDER BY finished_at DESC LIMIT ?
	)`

const runCols = `id, start_date, end_date, row_count, warnings, report, started_at, finished_at`

func scanRun(scan func(...any) error) (*models.Run, error) {
	var r models.Run
	var start, end string
	var startedNano, finishedNano int64
	err := scan(&r.ID, &start, &end, &r.Rows, &r.Warnings, &r.Report, &startedNano, &finishedNano)
	if err != nil {
		return nil, err
	}
	if r.StartDate, err = parseStoredDate(start); err != nil {
		return nil, err
	}
	if r.EndDate, err = parseStoredDate(end); err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, startedNano)
	r.FinishedAt = time.Unix(0, finishedNano)
	return &r, nil
}

// parseStoredDate maps the zero date's rendering back to the zero value.
func parseStoredDate(s string) (models.Date, error) {
	if s == (models.Date{}).String() {
		return models.Date{}, nil
	}
	return models.ParseDate(s)
}

func dateRange(start, end models.Date) (string, []any) {
	var conds []string
	var args []any
	if !start.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, start.String())
	}
	if !end.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, end.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
