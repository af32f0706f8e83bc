package locate

import (
	"image"

	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/monitoring"
)

// DefaultThreshold is the binarization cut-off on the 0..255 gray scale.
// Only near-saturated pixels (the lit marker) survive it.
const DefaultThreshold = 250

// Region is one connected bright region of a binarized frame, described by
// its area and raw pixel moments.
type Region struct {
	Area float64 // enclosed area used for ranking regions
	M00  float64 // zeroth moment (pixel mass)
	M10  float64 // first moment in x
	M01  float64 // first moment in y
}

// Segmenter splits a frame into bright regions in discovery order.
type Segmenter interface {
	Segment(img image.Image) ([]Region, error)
}

// SegmentationLocalizer reports the centroid of the largest bright region.
// It keeps no state between frames.
type SegmentationLocalizer struct {
	seg  Segmenter
	logf func(string, ...interface{})
}

// NewSegmentationLocalizer wraps seg.
func NewSegmentationLocalizer(seg Segmenter) *SegmentationLocalizer {
	return &SegmentationLocalizer{seg: seg, logf: monitoring.Component("Segmentation")}
}

// Locate implements Localizer.
func (l *SegmentationLocalizer) Locate(f frame.Frame) Detection {
	if f.Image == nil {
		return Invalid
	}
	regions, err := l.seg.Segment(f.Image)
	if err != nil {
		l.logf("frame %d: segmentation failed: %v", f.Index, err)
		return Invalid
	}
	r, ok := Largest(regions)
	if !ok || r.Area <= 0 || r.M00 == 0 {
		return Invalid
	}
	d, _ := centre(r.M10/r.M00, r.M01/r.M00)
	return d
}

// Close implements Localizer.
func (l *SegmentationLocalizer) Close() error {
	if c, ok := l.seg.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Largest returns the region with the greatest area. Ties keep the region
// found first.
func Largest(regions []Region) (Region, bool) {
	if len(regions) == 0 {
		return Region{}, false
	}
	best := regions[0]
	for _, r := range regions[1:] {
		if r.Area > best.Area {
			best = r
		}
	}
	return best, true
}
