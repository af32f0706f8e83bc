package tracestore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/motion.trace/internal/db"
	"github.com/banshee-data/motion.trace/internal/fsutil"
	"github.com/banshee-data/motion.trace/internal/monitoring"
)

// flushEvery bounds how many rows may sit in the CSV buffer.
const flushEvery = 256

// Run is an open trace file for one video. Append and Finish must be called
// from the goroutine that owns the run.
type Run struct {
	ID          string
	Key         string
	Dir         string
	VideoPath   string
	CSVPath     string
	SidecarPath string

	store     *Store
	file      fsutil.File
	w         *csv.Writer
	startedAt time.Time
	records   int
	pending   int

	finishOnce sync.Once
	finishErr  error
}

// Append writes one record.
func (r *Run) Append(rec Record) error {
	if err := r.w.Write(rec.row()); err != nil {
		return fmt.Errorf("write trace row: %w", err)
	}
	r.records++
	monitoring.RecordsWrittenTotal.Inc()
	if r.pending++; r.pending >= flushEvery {
		r.pending = 0
		r.w.Flush()
		if err := r.w.Error(); err != nil {
			return fmt.Errorf("flush trace rows: %w", err)
		}
	}
	return nil
}

// Records returns the number of rows appended so far.
func (r *Run) Records() int { return r.records }

// Finish flushes and closes the trace file and records the outcome in the
// run index. Only the first call has any effect; later calls return the
// first call's error.
func (r *Run) Finish(status string, stats db.RunStats, runErr error) error {
	r.finishOnce.Do(func() {
		monitoring.ActiveRuns.Dec()

		r.w.Flush()
		var errs []error
		if err := r.w.Error(); err != nil {
			errs = append(errs, fmt.Errorf("flush trace rows: %w", err))
		}
		if err := r.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync trace file: %w", err))
		}
		if err := r.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trace file: %w", err))
		}
		if len(errs) > 0 && status != db.StatusFailed {
			status = db.StatusFailed
			if runErr == nil {
				runErr = errors.Join(errs...)
			}
		}

		stats.RecordsWritten = r.records
		finishedAt := r.store.clock.Now()
		if idx := r.store.index; idx != nil {
			msg := ""
			if runErr != nil {
				msg = runErr.Error()
			}
			if err := idx.FinishRun(r.ID, status, stats, msg, finishedAt); err != nil {
				errs = append(errs, err)
			}
		}

		monitoring.RunsTotal.WithLabelValues(status).Inc()
		monitoring.RunDuration.Observe(finishedAt.Sub(r.startedAt).Seconds())
		r.store.logf("Finished run %s (%s): %d frames, %d records in %s",
			r.ID, status, stats.FramesProcessed, r.records, finishedAt.Sub(r.startedAt).Round(time.Millisecond))
		r.finishErr = errors.Join(errs...)
	})
	return r.finishErr
}
