package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/motion.trace/internal/api"
	"github.com/banshee-data/motion.trace/internal/config"
	"github.com/banshee-data/motion.trace/internal/db"
	"github.com/banshee-data/motion.trace/internal/extract"
	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/fsutil"
	"github.com/banshee-data/motion.trace/internal/locate"
	"github.com/banshee-data/motion.trace/internal/monitoring"
	"github.com/banshee-data/motion.trace/internal/preview"
	"github.com/banshee-data/motion.trace/internal/timeutil"
	"github.com/banshee-data/motion.trace/internal/tracestore"
	"github.com/banshee-data/motion.trace/internal/video"
	"github.com/banshee-data/motion.trace/internal/vision"
)

func runExtract(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	common := addCommonFlags(fs)
	localizer := fs.String("localizer", "", "Localizer: segmentation or region-track (default from config)")
	box := fs.String("box", "", "Initial region-track box as x,y,w,h")
	xStart := fs.Int("x-start", -1, "Override the calibrated reference line x position")
	previewPath := fs.String("preview", "", "Write the annotated latest frame to this PNG while running")
	fs.Parse(args)

	cfg, dir, err := common.load()
	if err != nil {
		return err
	}

	kind := cfg.GetLocalizer()
	if *localizer != "" {
		if kind, err = locate.ParseKind(*localizer); err != nil {
			return err
		}
	}
	trackBox := cfg.GetTrackBox()
	if *box != "" {
		if trackBox, err = parseBox(*box); err != nil {
			return err
		}
	}

	_, ref, err := loadReference(fsutil.OSFileSystem{}, dir)
	if err != nil {
		return err
	}
	if *xStart >= 0 {
		ref.ReferenceX = *xStart
	}

	var index *db.DB
	if name := cfg.GetIndexDB(); name != "" {
		if index, err = db.Open(filepath.Join(dir, name)); err != nil {
			return err
		}
		defer index.Close()
	}

	store, err := tracestore.NewStore(tracestore.Options{
		WorkDir:    dir,
		Extensions: cfg.GetVideoExtensions(),
		Index:      index,
	})
	if err != nil {
		return err
	}

	frameRate := cfg.GetFrameRate()
	rotation := cfg.GetRotation()
	seg := newSegmenter(cfg)
	ctrl, err := extract.NewController(extract.ControllerConfig{
		Store:     store,
		Reference: ref,
		AnchorY:   cfg.GetAnchorYToOrigin(),
		FrameRate: frameRate,
		Localizer: kind,
		OpenSource: func(path string) (frame.Source, error) {
			src, err := video.Open(path, frameRate, rotation)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
		NewLocalizer: func() (locate.Localizer, error) {
			return locate.New(locate.Options{
				Kind:       kind,
				Segmenter:  seg,
				NewTracker: vision.NewMILTracker,
				Box:        trackBox,
			})
		},
		OnStateChange: func(s extract.State) { monitoring.Logf("[Extract] %s", s) },
	})
	if err != nil {
		return err
	}
	defer ctrl.Release()

	background, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()
	if addr := cfg.GetMetricsListen(); addr != "" {
		srv := api.NewServer(background, ctrl, index, vision.Annotate)
		monitoring.StartMetricsServer(background, addr, api.LoggingMiddleware(srv.ServeMux()))
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	go func() {
		select {
		case <-ctx.Done():
			// Restore default handling so a second signal kills the process.
			stopSignals()
			monitoring.Logf("Stopping after the current frame; signal again to abort")
			ctrl.Stop()
		case <-background.Done():
		}
	}()

	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	previewDone := make(chan struct{})
	if *previewPath != "" {
		w := &previewWriter{
			latest: ctrl.Preview,
			write:  func(f preview.Frame) error { return writePreview(*previewPath, f) },
		}
		go w.run(timeutil.RealClock{}, cfg.GetPreviewInterval(), background.Done(), previewDone)
	} else {
		close(previewDone)
	}

	runErr := ctrl.Wait()
	cancelBackground()
	<-previewDone

	printResults(out, ctrl.Results())
	return runErr
}

func newSegmenter(cfg *config.Config) locate.Segmenter {
	if cfg.GetSegmenter() == config.SegmenterNative {
		return locate.NewBrightRegionSegmenter(cfg.GetThreshold())
	}
	return vision.NewContourSegmenter(cfg.GetThreshold())
}

func writePreview(path string, f preview.Frame) error {
	img, err := vision.Annotate(f)
	if err != nil {
		return err
	}
	return vision.WritePNG(path, img)
}

// previewWriter copies the latest published frame out on a timer, skipping
// ticks where nothing new was published.
type previewWriter struct {
	latest func() (preview.Frame, uint64, bool)
	write  func(preview.Frame) error
	last   uint64
}

// tick writes the latest frame if it is newer than the last one written.
func (w *previewWriter) tick() (bool, error) {
	f, seq, ok := w.latest()
	if !ok || seq == w.last {
		return false, nil
	}
	w.last = seq
	return true, w.write(f)
}

func (w *previewWriter) run(clock timeutil.Clock, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			if _, err := w.tick(); err != nil {
				monitoring.Logf("[Preview] %v", err)
			}
		case <-stop:
			if _, err := w.tick(); err != nil {
				monitoring.Logf("[Preview] %v", err)
			}
			return
		}
	}
}

func printResults(out io.Writer, results []extract.Result) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No videos processed")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTATUS\tFRAMES\tACCEPTED\tREJECTED\tINVALID\tDURATION\tERROR")
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.Key, r.Status, r.Stats.Frames, r.Stats.Accepted, r.Stats.Rejected, r.Stats.Invalid,
			r.Stats.Duration.Round(time.Millisecond), errText)
	}
	tw.Flush()
}
