package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// TraceRun is one row of the run index.
type TraceRun struct {
	RunID              string
	VideoKey           string
	VideoPath          string
	RunDir             string
	Localizer          string
	ScaleMMPerPixel    float64
	ReferenceX         int
	FrameRate          float64
	Status             string
	ErrorMessage       string
	FramesProcessed    int
	DetectionsValid    int
	DetectionsRejected int
	RecordsWritten     int
	AppVersion         string
	StartedAt          time.Time
	FinishedAt         time.Time // zero while running
}

// RunStats are the counters written when a run finishes.
type RunStats struct {
	FramesProcessed    int
	DetectionsValid    int
	DetectionsRejected int
	RecordsWritten     int
}

// InsertRun stores a new run in the running state. An empty RunID is filled
// with a fresh UUID.
func (db *DB) InsertRun(r *TraceRun) error {
	if r.RunID == "" {
		r.RunID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = StatusRunning
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO trace_runs (
			run_id, video_key, video_path, run_dir, localizer,
			scale_mm_per_pixel, reference_x, frame_rate, status,
			app_version, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.VideoKey, r.VideoPath, r.RunDir, r.Localizer,
		r.ScaleMMPerPixel, r.ReferenceX, r.FrameRate, r.Status,
		r.AppVersion, r.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	return nil
}

// FinishRun records the final status and counters of a run.
func (db *DB) FinishRun(runID, status string, stats RunStats, errMsg string, finishedAt time.Time) error {
	var errVal interface{}
	if errMsg != "" {
		errVal = errMsg
	}
	res, err := db.Exec(`
		UPDATE trace_runs
		SET status = ?, error_message = ?, frames_processed = ?,
		    detections_valid = ?, detections_rejected = ?, records_written = ?,
		    finished_at = ?
		WHERE run_id = ?`,
		status, errVal, stats.FramesProcessed,
		stats.DetectionsValid, stats.DetectionsRejected, stats.RecordsWritten,
		finishedAt.UnixNano(), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const selectRuns = `
	SELECT run_id, video_key, video_path, run_dir, localizer,
	       scale_mm_per_pixel, reference_x, frame_rate, status, error_message,
	       frames_processed, detections_valid, detections_rejected, records_written,
	       app_version, started_at, finished_at
	FROM trace_runs`

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns() ([]TraceRun, error) {
	rows, err := db.Query(selectRuns + ` ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []TraceRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by ID.
func (db *DB) GetRun(runID string) (TraceRun, error) {
	r, err := scanRun(db.QueryRow(selectRuns+` WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return TraceRun{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return r, err
}

// LatestRunForKey returns the most recent run of a video key.
func (db *DB) LatestRunForKey(key string) (TraceRun, error) {
	r, err := scanRun(db.QueryRow(selectRuns+` WHERE video_key = ? ORDER BY started_at DESC LIMIT 1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return TraceRun{}, fmt.Errorf("video %s: %w", key, ErrRunNotFound)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (TraceRun, error) {
	var (
		r          TraceRun
		errMsg     sql.NullString
		appVersion sql.NullString
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := s.Scan(
		&r.RunID, &r.VideoKey, &r.VideoPath, &r.RunDir, &r.Localizer,
		&r.ScaleMMPerPixel, &r.ReferenceX, &r.FrameRate, &r.Status, &errMsg,
		&r.FramesProcessed, &r.DetectionsValid, &r.DetectionsRejected, &r.RecordsWritten,
		&appVersion, &startedAt, &finishedAt,
	)
	if err != nil {
		return TraceRun{}, err
	}
	r.ErrorMessage = errMsg.String
	r.AppVersion = appVersion.String
	r.StartedAt = time.Unix(0, startedAt)
	if finishedAt.Valid {
		r.FinishedAt = time.Unix(0, finishedAt.Int64)
	}
	return r, nil
}
