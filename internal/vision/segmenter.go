// Package vision holds the OpenCV-backed localization primitives and the
// preview overlays.
package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/banshee-data/motion.trace/internal/locate"
)

// ContourSegmenter binarizes a frame and returns one region per external
// contour. Contour area ranks the regions; the moments come from the filled
// contour mask so they agree with the pixel centroid.
type ContourSegmenter struct {
	Threshold uint8
}

// NewContourSegmenter returns a segmenter cutting at threshold.
func NewContourSegmenter(threshold uint8) *ContourSegmenter {
	return &ContourSegmenter{Threshold: threshold}
}

// Segment implements locate.Segmenter.
func (s *ContourSegmenter) Segment(img image.Image) ([]locate.Region, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, float32(s.Threshold), 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	regions := make([]locate.Region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))

		mask := gocv.Zeros(binary.Rows(), binary.Cols(), gocv.MatTypeCV8UC1)
		gocv.DrawContours(&mask, contours, i, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
		m := gocv.Moments(mask, true)
		mask.Close()

		regions = append(regions, locate.Region{
			Area: area,
			M00:  m["m00"],
			M10:  m["m10"],
			M01:  m["m01"],
		})
	}
	return regions, nil
}
