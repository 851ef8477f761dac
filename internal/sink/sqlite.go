package sink

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mokoia/spawatch/internal/models"
)

// SQLiteSink persists run output to a local SQLite database: snapshot and
// mirror tables replaced per (run, horizon) inside a transaction, and an
// append-only historical table that is never updated or deleted.
type SQLiteSink struct {
	path string
	db   *sql.DB
}

// NewSQLite opens (creating if needed) the database and ensures the schema.
func NewSQLite(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteSink{path: path, db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	horizon     TEXT    NOT NULL,
	run_id      TEXT    NOT NULL,
	run_at      TEXT    NOT NULL,
	date        TEXT    NOT NULL,
	hour        INTEGER NOT NULL,
	spas_booked INTEGER NOT NULL,
	capacity    INTEGER NOT NULL,
	revenue     REAL    NOT NULL,
	breakdown   TEXT    NOT NULL,
	PRIMARY KEY (horizon, date, hour)
);
CREATE TABLE IF NOT EXISTS mirrors (
	horizon     TEXT    NOT NULL,
	run_id      TEXT    NOT NULL,
	run_at      TEXT    NOT NULL,
	date        TEXT    NOT NULL,
	hour        INTEGER NOT NULL,
	spas_booked INTEGER NOT NULL,
	factor      REAL    NOT NULL,
	revenue     REAL    NOT NULL,
	breakdown   TEXT    NOT NULL,
	PRIMARY KEY (horizon, date, hour)
);
CREATE TABLE IF NOT EXISTS anomalies (
	horizon TEXT    NOT NULL,
	run_id  TEXT    NOT NULL,
	run_at  TEXT    NOT NULL,
	date    TEXT    NOT NULL,
	hour    INTEGER NOT NULL,
	reason  TEXT    NOT NULL,
	detail  TEXT    NOT NULL,
	PRIMARY KEY (horizon, date, hour)
);
CREATE TABLE IF NOT EXISTS historical (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	run_at      TEXT    NOT NULL,
	horizon     TEXT    NOT NULL,
	date        TEXT    NOT NULL,
	hour        INTEGER NOT NULL,
	spas_booked INTEGER NOT NULL,
	capacity    INTEGER NOT NULL,
	revenue     REAL    NOT NULL,
	breakdown   TEXT    NOT NULL,
	fetched_at  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_historical_slot ON historical (date, hour);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// WriteSnapshot replaces the horizon's snapshot (observations plus
// anomalies) with this run's bundles.
func (s *SQLiteSink) WriteSnapshot(horizon models.Horizon, bundles []models.Bundle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM snapshots WHERE horizon = ?", string(horizon)); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM anomalies WHERE horizon = ?", string(horizon)); err != nil {
		return err
	}

	obsStmt, err := tx.Prepare(`
		INSERT INTO snapshots (horizon, run_id, run_at, date, hour, spas_booked, capacity, revenue, breakdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer obsStmt.Close()

	anomalyStmt, err := tx.Prepare(`
		INSERT INTO anomalies (horizon, run_id, run_at, date, hour, reason, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer anomalyStmt.Close()

	for _, b := range bundles {
		runAt := b.RunTimestamp.UTC().Format(time.RFC3339)
		for i, obs := range b.Observations {
			if _, err := obsStmt.Exec(
				string(horizon), b.RunID, runAt,
				obs.Slot.Date.Format("2006-01-02"), obs.Slot.HourOfDay,
				obs.SpasBooked, obs.Capacity,
				b.Revenues[i].TotalRevenue, formatBreakdown(b.Revenues[i].SegmentBreakdown),
			); err != nil {
				return err
			}
		}
		for _, a := range b.Anomalies {
			if _, err := anomalyStmt.Exec(
				string(horizon), b.RunID, runAt,
				a.Slot.Date.Format("2006-01-02"), a.Slot.HourOfDay,
				a.Reason, a.Detail,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// WriteMirror replaces the horizon's mirror record set.
func (s *SQLiteSink) WriteMirror(horizon models.Horizon, bundles []models.Bundle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM mirrors WHERE horizon = ?", string(horizon)); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO mirrors (horizon, run_id, run_at, date, hour, spas_booked, factor, revenue, breakdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bundles {
		runAt := b.RunTimestamp.UTC().Format(time.RFC3339)
		for _, m := range b.Mirrors {
			if _, err := stmt.Exec(
				string(horizon), b.RunID, runAt,
				m.Observation.SourceSlot.Date.Format("2006-01-02"), m.Observation.SourceSlot.HourOfDay,
				m.Observation.SpasBooked, m.Observation.ReductionFactor,
				m.Revenue.TotalRevenue, formatBreakdown(m.Revenue.SegmentBreakdown),
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// AppendHistorical inserts records into the append-only series.
func (s *SQLiteSink) AppendHistorical(records []models.HistoricalRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO historical (run_id, run_at, horizon, date, hour, spas_booked, capacity, revenue, breakdown, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(
			r.RunID, r.RunTimestamp.UTC().Format(time.RFC3339),
			string(r.Observation.Slot.Horizon),
			r.Observation.Slot.Date.Format("2006-01-02"), r.Observation.Slot.HourOfDay,
			r.Observation.SpasBooked, r.Observation.Capacity,
			r.Revenue.TotalRevenue, formatBreakdown(r.Revenue.SegmentBreakdown),
			r.Observation.FetchedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SnapshotBooked returns the current snapshot's booked count per slot key
// ("YYYY-MM-DD/HH") for one horizon.
func (s *SQLiteSink) SnapshotBooked(horizon models.Horizon) (map[string]int, error) {
	rows, err := s.db.Query(
		"SELECT date, hour, spas_booked FROM snapshots WHERE horizon = ?", string(horizon))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var date string
		var hour, booked int
		if err := rows.Scan(&date, &hour, &booked); err != nil {
			return nil, err
		}
		result[fmt.Sprintf("%s/%02d", date, hour)] = booked
	}
	return result, rows.Err()
}

// HistoricalCount returns the total number of records in the series,
// optionally filtered to one slot key.
func (s *SQLiteSink) HistoricalCount(date string, hour int) (int, error) {
	var count int
	var err error
	if date == "" {
		err = s.db.QueryRow("SELECT COUNT(*) FROM historical").Scan(&count)
	} else {
		err = s.db.QueryRow(
			"SELECT COUNT(*) FROM historical WHERE date = ? AND hour = ?", date, hour).Scan(&count)
	}
	return count, err
}

func (s *SQLiteSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
