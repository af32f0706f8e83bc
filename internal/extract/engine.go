// Package extract drives a frame source through a localizer, gates each
// detection against the calibration reference line and appends the accepted
// positions to a trace sink.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/motion.trace/internal/calibration"
	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/locate"
	"github.com/banshee-data/motion.trace/internal/monitoring"
	"github.com/banshee-data/motion.trace/internal/preview"
	"github.com/banshee-data/motion.trace/internal/timeutil"
	"github.com/banshee-data/motion.trace/internal/tracestore"
)

var (
	ErrAlreadyRunning = errors.New("extraction already running")
	ErrNotCalibrated  = calibration.ErrNotCalibrated
)

// State is the engine lifecycle.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Sink receives accepted records. *tracestore.Run satisfies it.
type Sink interface {
	Append(rec tracestore.Record) error
}

// Publisher receives every processed frame for preview. *preview.Slot
// satisfies it.
type Publisher interface {
	Put(f preview.Frame)
}

// Options configures an Engine.
type Options struct {
	Reference calibration.Reference

	// Line is the live reference line. When nil a fixed line at
	// Reference.ReferenceX is used.
	Line *calibration.ReferenceLine

	// AnchorY measures y from the calibrated origin instead of the frame top.
	// It has no effect when the reference carries no origin.
	AnchorY bool

	Preview       Publisher
	OnStateChange func(State)
	Clock         timeutil.Clock

	// KeepRunning is the cooperative cancellation flag. When shared, its owner
	// is responsible for setting it before each Run; a private flag is armed
	// by Run itself.
	KeepRunning *atomic.Bool
}

// RunStats summarizes one Run.
type RunStats struct {
	Frames    int
	Valid     int
	Accepted  int
	Rejected  int
	Invalid   int
	Cancelled bool
	Duration  time.Duration
}

// Engine runs one extraction at a time.
type Engine struct {
	opts       Options
	line       *calibration.ReferenceLine
	keep       *atomic.Bool
	sharedKeep bool
	clock      timeutil.Clock
	logf       func(string, ...interface{})

	mu    sync.Mutex
	state State
}

// NewEngine returns a stopped engine.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		opts:  opts,
		line:  opts.Line,
		keep:  opts.KeepRunning,
		clock: opts.Clock,
		logf:  monitoring.Component("Extract"),
	}
	if e.line == nil {
		e.line = calibration.NewReferenceLine(opts.Reference.ReferenceX)
	}
	if e.keep == nil {
		e.keep = &atomic.Bool{}
	} else {
		e.sharedKeep = true
	}
	if e.clock == nil {
		e.clock = timeutil.RealClock{}
	}
	return e
}

// State reports whether a Run is in progress.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stop asks the current run to end at the next frame boundary.
func (e *Engine) Stop() { e.keep.Store(false) }

// Line returns the reference line the engine gates against.
func (e *Engine) Line() *calibration.ReferenceLine { return e.line }

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	if e.opts.OnStateChange != nil {
		e.opts.OnStateChange(s)
	}
}

// Run reads src to the end, or until Stop or ctx cancellation, appending one
// record per accepted detection to sink. The caller owns src and loc.
func (e *Engine) Run(ctx context.Context, src frame.Source, loc locate.Localizer, sink Sink) (stats RunStats, err error) {
	if err := e.opts.Reference.Validate(); err != nil {
		return RunStats{}, err
	}

	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return RunStats{}, ErrAlreadyRunning
	}
	e.state = StateRunning
	e.mu.Unlock()
	if e.opts.OnStateChange != nil {
		e.opts.OnStateChange(StateRunning)
	}
	if !e.sharedKeep {
		e.keep.Store(true)
	}

	start := e.clock.Now()
	defer func() {
		stats.Duration = e.clock.Since(start)
		e.setState(StateStopped)
	}()

	for {
		if !e.keep.Load() || ctx.Err() != nil {
			stats.Cancelled = true
			e.logf("Stopped after %d frames", stats.Frames)
			return stats, nil
		}
		f, ok := src.Next()
		if !ok {
			return stats, nil
		}
		stats.Frames++
		monitoring.FramesProcessedTotal.Inc()

		det := loc.Locate(f)
		refX := e.line.X()
		pf := preview.Frame{Image: f.Image, Index: f.Index, Detection: det, ReferenceX: refX}

		switch {
		case !det.Valid:
			stats.Invalid++
			monitoring.DetectionsTotal.WithLabelValues(monitoring.OutcomeInvalid).Inc()
		case det.X <= refX:
			stats.Valid++
			stats.Rejected++
			monitoring.DetectionsTotal.WithLabelValues(monitoring.OutcomeRejected).Inc()
		default:
			stats.Valid++
			if err = sink.Append(e.record(f, det, refX)); err != nil {
				return stats, fmt.Errorf("frame %d: %w", f.Index, err)
			}
			stats.Accepted++
			pf.Accepted = true
			monitoring.DetectionsTotal.WithLabelValues(monitoring.OutcomeAccepted).Inc()
		}

		if e.opts.Preview != nil {
			e.opts.Preview.Put(pf)
		}
	}
}

// record converts an accepted detection to millimetres.
func (e *Engine) record(f frame.Frame, det locate.Detection, refX int) tracestore.Record {
	ref := e.opts.Reference
	y := det.Y
	if e.opts.AnchorY && ref.Origin != nil {
		y -= ref.Origin.Y
	}
	return tracestore.Record{
		TimeS:  f.Timestamp,
		XPixel: det.X,
		YPixel: det.Y,
		XMM:    float64(det.X-refX) * ref.ScaleMMPerPixel,
		YMM:    float64(y) * ref.ScaleMMPerPixel,
	}
}
