package vision

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/banshee-data/motion.trace/internal/locate"
)

// MILTracker adapts OpenCV's MIL tracker to locate.RegionTracker.
type MILTracker struct {
	tracker gocv.Tracker
}

// NewMILTracker creates a tracker for one run. It matches the signature of
// locate.Options.NewTracker.
func NewMILTracker() (locate.RegionTracker, error) {
	return &MILTracker{tracker: gocv.NewTrackerMIL()}, nil
}

// Init implements locate.RegionTracker.
func (t *MILTracker) Init(img image.Image, box image.Rectangle) bool {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return false
	}
	defer mat.Close()
	return t.tracker.Init(mat, box)
}

// Update implements locate.RegionTracker.
func (t *MILTracker) Update(img image.Image) (image.Rectangle, bool) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return image.Rectangle{}, false
	}
	defer mat.Close()
	return t.tracker.Update(mat)
}

// Close implements locate.RegionTracker.
func (t *MILTracker) Close() error {
	return t.tracker.Close()
}
