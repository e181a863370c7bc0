package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Plutor-05/xrd-figure/internal/analysis"
	"github.com/Plutor-05/xrd-figure/internal/match"
)

// RunSummary is the stored header row of one analysis run.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	DataFile     string    `json:"data_file"`
	Strategy     string    `json:"strategy"`
	Tolerance    float64   `json:"tolerance"`
	TotalPeaks   int       `json:"total_peaks"`
	MatchedPeaks int       `json:"matched_peaks"`
	MatchRate    float64   `json:"match_rate"`
	NoRefData    bool      `json:"no_ref_data"`
	StartedAt    time.Time `json:"started_at"`
	DurationMs   int64     `json:"duration_ms"`
}

// StoredMatch is one persisted match row.
type StoredMatch struct {
	DetectedAngle     float64 `json:"detected_angle"`
	DetectedIntensity float64 `json:"detected_intensity"`
	RefAngle          float64 `json:"ref_angle"`
	RefIntensity      float64 `json:"ref_intensity"`
	PhaseID           string  `json:"phase_id"`
	Symbol            string  `json:"symbol"`
	AngleDelta        float64 `json:"angle_delta"`
	Quality           float64 `json:"quality"`
}

// StoredRun is a run with its peaks, matches and report rows.
type StoredRun struct {
	RunSummary
	Peaks      []StoredPeak      `json:"peaks"`
	Matches    []StoredMatch     `json:"matches"`
	PhaseStats []match.PhaseStat `json:"phase_stats"`
}

// StoredPeak is one persisted detected peak.
type StoredPeak struct {
	Angle       float64 `json:"angle"`
	Intensity   float64 `json:"intensity"`
	SampleIndex int     `json:"sample_index"`
}

// SaveRun persists a completed analysis run with its detected peaks,
// matches and per-phase statistics in one transaction.
func (db *DB) SaveRun(run *analysis.Run) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("db: beginning save: %w", err)
	}
	defer tx.Rollback()

	strategy, tolerance := "", 0.0
	matched, rate := 0, 0.0
	if run.Matches != nil {
		strategy = run.Matches.Strategy.String()
		tolerance = run.Matches.Tolerance
	}
	if run.Report != nil {
		matched = run.Report.MatchedPeaks
		rate = run.Report.MatchRate
	}

	if _, err := tx.Exec(`
		INSERT INTO runs (run_id, data_file, strategy, tolerance, total_peaks,
			matched_peaks, match_rate, no_ref_data, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.DataFile, strategy, tolerance, len(run.Detected),
		matched, rate, run.NoRefData, run.StartedAt, run.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("db: inserting run %s: %w", run.ID, err)
	}

	for i, p := range run.Detected {
		if _, err := tx.Exec(`
			INSERT INTO run_peaks (run_id, peak_index, angle, intensity, sample_index)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, p.Angle, p.Intensity, p.Index,
		); err != nil {
			return fmt.Errorf("db: inserting peak %d of run %s: %w", i, run.ID, err)
		}
	}

	if run.Matches != nil {
		for i, m := range run.Matches.Matches {
			if _, err := tx.Exec(`
				INSERT INTO run_matches (run_id, match_index, detected_angle,
					detected_intensity, ref_angle, ref_intensity, phase_id,
					symbol, angle_delta, quality)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, i, m.Detected.Angle, m.Detected.Intensity,
				m.Ref.Angle, m.Ref.Intensity, m.Ref.PhaseID, m.Ref.Symbol,
				m.AngleDelta, m.Quality,
			); err != nil {
				return fmt.Errorf("db: inserting match %d of run %s: %w", i, run.ID, err)
			}
		}
	}

	if run.Report != nil {
		for _, ps := range run.Report.PhaseStats {
			if _, err := tx.Exec(`
				INSERT INTO run_phase_stats (run_id, phase_id, match_count, percentage)
				VALUES (?, ?, ?, ?)`,
				run.ID, ps.PhaseID, ps.Count, ps.Percentage,
			); err != nil {
				return fmt.Errorf("db: inserting phase stat %q of run %s: %w", ps.PhaseID, run.ID, err)
			}
		}
	}

	return tx.Commit()
}

// ListRuns returns run summaries newest first, capped at limit (<=0 means
// no cap).
func (db *DB) ListRuns(limit int) ([]RunSummary, error) {
	q := `SELECT run_id, data_file, strategy, tolerance, total_peaks,
		matched_peaks, match_rate, no_ref_data, started_at, duration_ms
		FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("db: listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.DataFile, &r.Strategy, &r.Tolerance,
			&r.TotalPeaks, &r.MatchedPeaks, &r.MatchRate, &r.NoRefData,
			&r.StartedAt, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("db: scanning run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun fetches one stored run with its peaks, matches and phase stats.
// Returns sql.ErrNoRows when the run does not exist.
func (db *DB) GetRun(runID string) (*StoredRun, error) {
	var r StoredRun
	err := db.QueryRow(`SELECT run_id, data_file, strategy, tolerance,
		total_peaks, matched_peaks, match_rate, no_ref_data, started_at, duration_ms
		FROM runs WHERE run_id = ?`, runID).
		Scan(&r.RunID, &r.DataFile, &r.Strategy, &r.Tolerance, &r.TotalPeaks,
			&r.MatchedPeaks, &r.MatchRate, &r.NoRefData, &r.StartedAt, &r.DurationMs)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("db: fetching run %s: %w", runID, err)
	}

	peakRows, err := db.Query(`SELECT angle, intensity, sample_index
		FROM run_peaks WHERE run_id = ? ORDER BY peak_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("db: fetching peaks of run %s: %w", runID, err)
	}
	defer peakRows.Close()
	for peakRows.Next() {
		var p StoredPeak
		if err := peakRows.Scan(&p.Angle, &p.Intensity, &p.SampleIndex); err != nil {
			return nil, fmt.Errorf("db: scanning peak: %w", err)
		}
		r.Peaks = append(r.Peaks, p)
	}
	if err := peakRows.Err(); err != nil {
		return nil, err
	}

	matchRows, err := db.Query(`SELECT detected_angle, detected_intensity,
		ref_angle, ref_intensity, phase_id, symbol, angle_delta, quality
		FROM run_matches WHERE run_id = ? ORDER BY match_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("db: fetching matches of run %s: %w", runID, err)
	}
	defer matchRows.Close()
	for matchRows.Next() {
		var m StoredMatch
		if err := matchRows.Scan(&m.DetectedAngle, &m.DetectedIntensity,
			&m.RefAngle, &m.RefIntensity, &m.PhaseID, &m.Symbol,
			&m.AngleDelta, &m.Quality); err != nil {
			return nil, fmt.Errorf("db: scanning match: %w", err)
		}
		r.Matches = append(r.Matches, m)
	}
	if err := matchRows.Err(); err != nil {
		return nil, err
	}

	statRows, err := db.Query(`SELECT phase_id, match_count, percentage
		FROM run_phase_stats WHERE run_id = ?
		ORDER BY match_count DESC, phase_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("db: fetching phase stats of run %s: %w", runID, err)
	}
	defer statRows.Close()
	for statRows.Next() {
		var ps match.PhaseStat
		if err := statRows.Scan(&ps.PhaseID, &ps.Count, &ps.Percentage); err != nil {
			return nil, fmt.Errorf("db: scanning phase stat: %w", err)
		}
		r.PhaseStats = append(r.PhaseStats, ps)
	}
	return &r, statRows.Err()
}

// DeleteRun removes a run and its dependent rows.
func (db *DB) DeleteRun(runID string) error {
	res, err := db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("db: deleting run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
