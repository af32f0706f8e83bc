package locate

import (
	"image"

	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/monitoring"
)

// RegionTracker is an incremental visual tracker: it is seeded with a box on
// one frame and then updates the box frame by frame.
type RegionTracker interface {
	Init(img image.Image, box image.Rectangle) bool
	Update(img image.Image) (image.Rectangle, bool)
	Close() error
}

// RegionTrackLocalizer follows an operator-supplied box with a RegionTracker
// and reports the box centre. Once the tracker fails the localizer stays lost
// for the rest of the run.
type RegionTrackLocalizer struct {
	tracker     RegionTracker
	box         image.Rectangle
	initialized bool
	lost        bool
	logf        func(string, ...interface{})
}

// NewRegionTrackLocalizer returns a localizer that seeds tracker with box on
// the first frame it sees.
func NewRegionTrackLocalizer(tracker RegionTracker, box image.Rectangle) *RegionTrackLocalizer {
	return &RegionTrackLocalizer{
		tracker: tracker,
		box:     box.Canon(),
		logf:    monitoring.Component("RegionTrack"),
	}
}

// Lost reports whether tracking has been given up for this run.
func (l *RegionTrackLocalizer) Lost() bool { return l.lost }

// Locate implements Localizer.
func (l *RegionTrackLocalizer) Locate(f frame.Frame) Detection {
	if l.lost || f.Image == nil {
		return Invalid
	}

	if !l.initialized {
		l.initialized = true
		box := l.box.Intersect(f.Bounds())
		if box.Empty() {
			l.markLost(f.Index, "initial box %v lies outside the frame", l.box)
			return Invalid
		}
		if !l.tracker.Init(f.Image, box) {
			l.markLost(f.Index, "tracker refused initial box %v", box)
			return Invalid
		}
		l.box = box
		return boxCentre(box)
	}

	box, ok := l.tracker.Update(f.Image)
	if !ok || box.Empty() {
		l.markLost(f.Index, "tracker lost the object")
		return Invalid
	}
	l.box = box
	return boxCentre(box)
}

// Close implements Localizer.
func (l *RegionTrackLocalizer) Close() error {
	return l.tracker.Close()
}

func (l *RegionTrackLocalizer) markLost(index int, format string, v ...interface{}) {
	l.lost = true
	l.logf("frame %d: "+format+"; no further detections this run", append([]interface{}{index}, v...)...)
}

func boxCentre(r image.Rectangle) Detection {
	d, _ := centre(float64(r.Min.X+r.Max.X)/2, float64(r.Min.Y+r.Max.Y)/2)
	return d
}
