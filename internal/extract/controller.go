package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/motion.trace/internal/calibration"
	"github.com/banshee-data/motion.trace/internal/db"
	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/locate"
	"github.com/banshee-data/motion.trace/internal/monitoring"
	"github.com/banshee-data/motion.trace/internal/preview"
	"github.com/banshee-data/motion.trace/internal/timeutil"
	"github.com/banshee-data/motion.trace/internal/tracestore"
)

// ErrDirectoryInUse is returned by NewController when another controller
// already owns the working directory.
var ErrDirectoryInUse = errors.New("working directory already has a controller")

var (
	controllersMu sync.Mutex
	controllers   = make(map[string]*Controller)
)

// ControllerConfig wires a Controller to its store, calibration and the
// per-video source and localizer constructors.
type ControllerConfig struct {
	Store     *tracestore.Store
	Reference calibration.Reference
	// Line is shared with the foreground so the operator can move it while a
	// batch is running. Defaults to a line at Reference.ReferenceX.
	Line      *calibration.ReferenceLine
	AnchorY   bool
	FrameRate float64
	Localizer locate.Kind

	OpenSource   func(path string) (frame.Source, error)
	NewLocalizer func() (locate.Localizer, error)

	Clock         timeutil.Clock
	OnStateChange func(State)
}

// Result is the outcome of one video in a batch.
type Result struct {
	Key    string
	RunID  string
	Dir    string
	Status string
	Stats  RunStats
	Err    error
}

// Controller owns the extraction worker for one working directory. Its
// methods are safe to call from the foreground while the worker runs.
type Controller struct {
	cfg    ControllerConfig
	key    string
	engine *Engine
	slot   preview.Slot
	keep   atomic.Bool
	logf   func(string, ...interface{})

	mu      sync.Mutex
	running bool
	done    chan struct{}
	results []Result
	err     error
}

// NewController registers a controller for cfg.Store's working directory.
// Call Release when done with it.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("controller needs a trace store")
	}
	if cfg.OpenSource == nil || cfg.NewLocalizer == nil {
		return nil, errors.New("controller needs source and localizer constructors")
	}
	if cfg.Line == nil {
		cfg.Line = calibration.NewReferenceLine(cfg.Reference.ReferenceX)
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = frame.DefaultFrameRate
	}

	key := filepath.Clean(cfg.Store.WorkDir())
	controllersMu.Lock()
	defer controllersMu.Unlock()
	if _, ok := controllers[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryInUse, key)
	}

	c := &Controller{cfg: cfg, key: key, logf: monitoring.Component("Controller")}
	c.engine = NewEngine(Options{
		Reference:     cfg.Reference,
		Line:          cfg.Line,
		AnchorY:       cfg.AnchorY,
		Preview:       &c.slot,
		OnStateChange: cfg.OnStateChange,
		Clock:         cfg.Clock,
		KeepRunning:   &c.keep,
	})
	controllers[key] = c
	return c, nil
}

// Release stops any active batch, waits for it and frees the working
// directory for another controller.
func (c *Controller) Release() {
	c.Stop()
	c.Wait()
	controllersMu.Lock()
	if controllers[c.key] == c {
		delete(controllers, c.key)
	}
	controllersMu.Unlock()
}

// Toggle starts a batch when idle and stops the active one otherwise. It
// reports whether a batch was started.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	if c.Running() {
		c.Stop()
		return false, nil
	}
	if err := c.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Start launches the batch worker over every discovered video.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.cfg.Reference.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}
	c.running = true
	c.done = make(chan struct{})
	c.results = nil
	c.err = nil
	c.keep.Store(true)
	go c.work(ctx, c.done)
	return nil
}

// Stop asks the worker to finish at the next frame boundary. The current
// video's run is closed as cancelled and no further videos are started.
func (c *Controller) Stop() { c.keep.Store(false) }

// Wait blocks until the active batch, if any, has finished and returns its
// error.
func (c *Controller) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
	return c.Err()
}

// Running reports whether a batch is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Err returns the joined per-video errors of the last batch.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Results returns the per-video outcomes of the last batch.
func (c *Controller) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

// Preview returns the latest published frame.
func (c *Controller) Preview() (preview.Frame, uint64, bool) { return c.slot.Latest() }

// SetReferenceX moves the gating line. Runs already in progress pick it up
// from some subsequent frame.
func (c *Controller) SetReferenceX(x int) { c.cfg.Line.Set(x) }

// ReferenceX returns the current gating line position.
func (c *Controller) ReferenceX() int { return c.cfg.Line.X() }

func (c *Controller) work(ctx context.Context, done chan struct{}) {
	var errs []error
	defer func() {
		c.mu.Lock()
		c.running = false
		c.err = errors.Join(errs...)
		c.mu.Unlock()
		close(done)
	}()

	videos, err := c.cfg.Store.Discover()
	if err != nil {
		errs = append(errs, err)
		return
	}
	if len(videos) == 0 {
		c.logf("No videos found in %s", c.cfg.Store.WorkDir())
		return
	}

	for _, v := range videos {
		if !c.keep.Load() || ctx.Err() != nil {
			c.logf("Stopped before %s", v.Key)
			return
		}
		res := c.process(ctx, v)
		c.mu.Lock()
		c.results = append(c.results, res)
		c.mu.Unlock()
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.Key, res.Err))
		}
	}
}

// process runs one video from Begin through Finish.
func (c *Controller) process(ctx context.Context, v tracestore.Video) Result {
	res := Result{Key: v.Key, Status: db.StatusFailed}

	ref := c.cfg.Reference
	ref.ReferenceX = c.cfg.Line.X()
	run, err := c.cfg.Store.Begin(v, ref, tracestore.RunMeta{
		Localizer: string(c.cfg.Localizer),
		FrameRate: c.cfg.FrameRate,
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.RunID, res.Dir = run.ID, run.Dir

	stats, runErr := c.extract(ctx, run)
	res.Stats = stats
	switch {
	case runErr != nil:
		res.Status = db.StatusFailed
	case stats.Cancelled:
		res.Status = db.StatusCancelled
	default:
		res.Status = db.StatusCompleted
	}

	finishErr := run.Finish(res.Status, db.RunStats{
		FramesProcessed:    stats.Frames,
		DetectionsValid:    stats.Valid,
		DetectionsRejected: stats.Rejected,
	}, runErr)
	if finishErr != nil && res.Status != db.StatusFailed {
		res.Status = db.StatusFailed
	}
	res.Err = errors.Join(runErr, finishErr)
	c.logf("%s: %s, %d/%d frames accepted", v.Key, res.Status, stats.Accepted, stats.Frames)
	return res
}

func (c *Controller) extract(ctx context.Context, run *tracestore.Run) (RunStats, error) {
	src, err := c.cfg.OpenSource(run.VideoPath)
	if err != nil {
		return RunStats{}, fmt.Errorf("open video: %w", err)
	}
	defer src.Close()

	loc, err := c.cfg.NewLocalizer()
	if err != nil {
		return RunStats{}, fmt.Errorf("create localizer: %w", err)
	}
	defer loc.Close()

	return c.engine.Run(ctx, src, loc, run)
}
