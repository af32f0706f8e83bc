package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/banshee-data/motion.trace/internal/preview"
)

var (
	ColorAccepted  = color.RGBA{G: 255, A: 255}
	ColorRejected  = color.RGBA{R: 255, A: 255}
	ColorReference = color.RGBA{B: 255, A: 255}
	ColorPoint     = color.RGBA{R: 255, G: 64, B: 255, A: 255}
	ColorOrigin    = color.RGBA{R: 255, G: 255, A: 255}
)

const (
	markerRadius    = 6
	markerThickness = 2
	lineThickness   = 1
)

// Annotate draws the reference line and, for a valid detection, a marker
// coloured by whether the detection was recorded.
func Annotate(f preview.Frame) (image.Image, error) {
	mat, err := gocv.ImageToMatRGB(f.Image)
	if err != nil {
		return nil, fmt.Errorf("convert frame %d: %w", f.Index, err)
	}
	defer mat.Close()

	drawReferenceLine(&mat, f.ReferenceX)
	if f.Detection.Valid {
		c := ColorRejected
		if f.Accepted {
			c = ColorAccepted
		}
		gocv.Circle(&mat, f.Detection.Point(), markerRadius, c, markerThickness)
	}
	return mat.ToImage()
}

// CalibrationOverlay draws the clicked points with their coordinates, the
// reference line and, when set, the origin.
func CalibrationOverlay(img image.Image, points []image.Point, referenceX int, origin *image.Point) (image.Image, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert calibration frame: %w", err)
	}
	defer mat.Close()

	drawReferenceLine(&mat, referenceX)
	for _, p := range points {
		gocv.Circle(&mat, p, markerRadius, ColorPoint, markerThickness)
		gocv.PutText(&mat, fmt.Sprintf("(%d, %d)", p.X, p.Y), p.Add(image.Pt(markerRadius+2, -markerRadius)),
			gocv.FontHersheyPlain, 1, ColorPoint, 1)
	}
	if len(points) == 2 {
		gocv.Line(&mat, points[0], points[1], ColorPoint, lineThickness)
	}
	if origin != nil {
		gocv.Line(&mat, origin.Add(image.Pt(-markerRadius, 0)), origin.Add(image.Pt(markerRadius, 0)), ColorOrigin, markerThickness)
		gocv.Line(&mat, origin.Add(image.Pt(0, -markerRadius)), origin.Add(image.Pt(0, markerRadius)), ColorOrigin, markerThickness)
	}
	return mat.ToImage()
}

func drawReferenceLine(mat *gocv.Mat, x int) {
	if x < 0 || x >= mat.Cols() {
		return
	}
	gocv.Line(mat, image.Pt(x, 0), image.Pt(x, mat.Rows()-1), ColorReference, lineThickness)
}

// WritePNG encodes img to path through OpenCV's image writer.
func WritePNG(path string, img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("convert %s: %w", path, err)
	}
	defer mat.Close()
	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("write %s: encoder failed", path)
	}
	return nil
}
