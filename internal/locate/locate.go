// Package locate finds the tracked object in a frame. A Localizer turns each
// frame into a Detection; frame-local failures yield an invalid Detection and
// never an error.
package locate

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/banshee-data/motion.trace/internal/frame"
)

// Detection is a localization result in frame pixel coordinates.
type Detection struct {
	X, Y  int
	Valid bool
}

// Point returns the detection position as an image.Point.
func (d Detection) Point() image.Point { return image.Pt(d.X, d.Y) }

// Invalid is the "no usable object" result.
var Invalid = Detection{}

// Localizer returns the object position for one frame. Implementations may
// keep state across frames of a single run.
type Localizer interface {
	Locate(f frame.Frame) Detection
	Close() error
}

// Kind selects a localization strategy.
type Kind string

const (
	KindSegmentation Kind = "segmentation"
	KindRegionTrack  Kind = "region-track"
)

// ParseKind validates a localizer name. The empty string selects segmentation.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindSegmentation, nil
	case KindSegmentation, KindRegionTrack:
		return k, nil
	default:
		return "", fmt.Errorf("unknown localizer %q (want %s or %s)", s, KindSegmentation, KindRegionTrack)
	}
}

// centre rounds a floating-point centroid to the nearest pixel, halves away
// from zero. Earlier motion-trace tooling truncated toward zero instead, so
// traces from it can sit up to one pixel left of or above ours. It reports
// false for NaN or infinite coordinates.
func centre(x, y float64) (Detection, bool) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return Invalid, false
	}
	return Detection{X: int(math.Round(x)), Y: int(math.Round(y)), Valid: true}, true
}
