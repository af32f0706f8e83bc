package vision

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/locate"
	"github.com/banshee-data/motion.trace/internal/preview"
	"github.com/banshee-data/motion.trace/internal/testutil"
)

func rgbAt(img image.Image, x, y int) color.RGBA {
	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

func TestContourSegmenter_SingleSquare(t *testing.T) {
	seg := NewContourSegmenter(locate.DefaultThreshold)
	img := testutil.SquaresImage(200, 100, testutil.Square{CX: 120, CY: 50, Size: 10})

	regions, err := seg.Segment(img)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Greater(t, regions[0].Area, 0.0)
	assert.InDelta(t, 119.5, regions[0].M10/regions[0].M00, 1e-9)
	assert.InDelta(t, 49.5, regions[0].M01/regions[0].M00, 1e-9)
}

func TestContourSegmenter_MatchesNativeLocalizer(t *testing.T) {
	frames := testutil.SquareFrames(200, 100, image.Pt(120, 50), image.Pt(130, 50), image.Pt(125, 40))
	cv := locate.NewSegmentationLocalizer(NewContourSegmenter(locate.DefaultThreshold))
	native := locate.NewSegmentationLocalizer(locate.NewBrightRegionSegmenter(locate.DefaultThreshold))

	for i, img := range frames {
		f := frame.New(img, i+1, frame.DefaultFrameRate)
		assert.Equal(t, native.Locate(f), cv.Locate(f), "frame %d", i+1)
	}
}

func TestContourSegmenter_LargestWins(t *testing.T) {
	img := testutil.SquaresImage(200, 100,
		testutil.Square{CX: 30, CY: 30, Size: 6},
		testutil.Square{CX: 150, CY: 60, Size: 20},
	)
	loc := locate.NewSegmentationLocalizer(NewContourSegmenter(locate.DefaultThreshold))
	d := loc.Locate(frame.New(img, 1, frame.DefaultFrameRate))
	assert.Equal(t, locate.Detection{X: 150, Y: 60, Valid: true}, d)
}

func TestContourSegmenter_NoForeground(t *testing.T) {
	regions, err := NewContourSegmenter(locate.DefaultThreshold).Segment(testutil.BlackImage(50, 50))
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestAnnotate(t *testing.T) {
	img := testutil.SquaresImage(200, 100, testutil.Square{CX: 120, CY: 50, Size: 10})

	accepted, err := Annotate(preview.Frame{
		Image:      img,
		Index:      1,
		Detection:  locate.Detection{X: 120, Y: 50, Valid: true},
		Accepted:   true,
		ReferenceX: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, ColorReference, rgbAt(accepted, 100, 10))
	assert.Equal(t, ColorAccepted, rgbAt(accepted, 120+markerRadius, 50))

	rejected, err := Annotate(preview.Frame{
		Image:      img,
		Index:      1,
		Detection:  locate.Detection{X: 120, Y: 50, Valid: true},
		ReferenceX: 150,
	})
	require.NoError(t, err)
	assert.Equal(t, ColorRejected, rgbAt(rejected, 120+markerRadius, 50))

	// The source image is not modified.
	assert.Equal(t, color.RGBA{A: 255}, rgbAt(img, 100, 10))
}

func TestCalibrationOverlay(t *testing.T) {
	img := testutil.BlackImage(200, 100)
	origin := image.Pt(20, 80)
	out, err := CalibrationOverlay(img, []image.Point{{X: 40, Y: 50}, {X: 140, Y: 50}}, 60, &origin)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), out.Bounds())
	assert.Equal(t, ColorReference, rgbAt(out, 60, 5))
	assert.Equal(t, ColorOrigin, rgbAt(out, 20, 80))
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.png")
	require.NoError(t, WritePNG(path, testutil.WhiteImage(16, 16)))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
