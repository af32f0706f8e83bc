package locate

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/testutil"
)

func TestBrightRegionSegmenter_SingleSquare(t *testing.T) {
	t.Parallel()

	seg := NewBrightRegionSegmenter(DefaultThreshold)
	img := testutil.SquaresImage(200, 100, testutil.Square{CX: 120, CY: 50, Size: 10})

	regions, err := seg.Segment(img)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	// Polygon through the boundary pixel centres spans 9x9.
	assert.Equal(t, 81.0, regions[0].Area)
	assert.Equal(t, 100.0, regions[0].M00)
	assert.InDelta(t, 119.5, regions[0].M10/regions[0].M00, 1e-9)
	assert.InDelta(t, 49.5, regions[0].M01/regions[0].M00, 1e-9)
}

func TestBrightRegionSegmenter_TwoSquares(t *testing.T) {
	t.Parallel()

	seg := NewBrightRegionSegmenter(DefaultThreshold)
	img := testutil.SquaresImage(200, 100,
		testutil.Square{CX: 20, CY: 20, Size: 4},
		testutil.Square{CX: 150, CY: 60, Size: 12},
	)

	l := NewSegmentationLocalizer(seg)
	got := l.Locate(frame.New(img, 1, frame.DefaultFrameRate))
	assert.Equal(t, Detection{X: 150, Y: 60, Valid: true}, got)
}

func TestBrightRegionSegmenter_DiagonalPixelsAreConnected(t *testing.T) {
	t.Parallel()

	img := testutil.BlackImage(10, 10)
	img.Set(2, 2, image.White)
	img.Set(3, 3, image.White)

	regions, err := NewBrightRegionSegmenter(DefaultThreshold).Segment(img)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, 2.0, regions[0].M00)
	assert.Equal(t, 0.0, regions[0].Area)
}

func TestBrightRegionSegmenter_DegenerateRegionsHaveNoArea(t *testing.T) {
	t.Parallel()

	line := func(x0, y0, dx, dy, n int) *image.RGBA {
		img := testutil.BlackImage(50, 50)
		for i := 0; i < n; i++ {
			img.Set(x0+i*dx, y0+i*dy, image.White)
		}
		return img
	}

	tests := []struct {
		name string
		img  *image.RGBA
	}{
		{"single pixel", line(30, 20, 0, 0, 1)},
		{"horizontal line", line(10, 20, 1, 0, 15)},
		{"vertical line", line(30, 5, 0, 1, 15)},
		{"diagonal line", line(5, 5, 1, 1, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			regions, err := NewBrightRegionSegmenter(DefaultThreshold).Segment(tt.img)
			require.NoError(t, err)
			require.Len(t, regions, 1)
			assert.Equal(t, 0.0, regions[0].Area)

			got := NewSegmentationLocalizer(NewBrightRegionSegmenter(DefaultThreshold)).
				Locate(frame.New(tt.img, 1, frame.DefaultFrameRate))
			assert.False(t, got.Valid)
		})
	}
}

func TestBrightRegionSegmenter_ThickLineHasArea(t *testing.T) {
	t.Parallel()

	img := testutil.BlackImage(50, 50)
	for x := 10; x < 20; x++ {
		img.Set(x, 20, image.White)
		img.Set(x, 21, image.White)
	}

	regions, err := NewBrightRegionSegmenter(DefaultThreshold).Segment(img)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, 9.0, regions[0].Area)
}

func TestBrightRegionSegmenter_ExtremeFrames(t *testing.T) {
	t.Parallel()

	l := NewSegmentationLocalizer(NewBrightRegionSegmenter(DefaultThreshold))

	black := l.Locate(frame.New(testutil.BlackImage(64, 48), 1, frame.DefaultFrameRate))
	assert.False(t, black.Valid, "all-black frame must not yield a detection")

	white := l.Locate(frame.New(testutil.WhiteImage(64, 48), 2, frame.DefaultFrameRate))
	assert.True(t, white.Valid)
	assert.Equal(t, image.Pt(32, 24), white.Point())
}

func TestBrightRegionSegmenter_OffsetBounds(t *testing.T) {
	t.Parallel()

	full := testutil.SquaresImage(100, 100, testutil.Square{CX: 60, CY: 60, Size: 10})
	sub := full.SubImage(image.Rect(40, 40, 100, 100))

	got := NewSegmentationLocalizer(NewBrightRegionSegmenter(DefaultThreshold)).
		Locate(frame.New(sub, 1, frame.DefaultFrameRate))
	assert.Equal(t, Detection{X: 60, Y: 60, Valid: true}, got)
}

func TestBrightRegionSegmenter_BelowThresholdIgnored(t *testing.T) {
	t.Parallel()

	img := testutil.BlackImage(20, 20)
	img.Pix[img.PixOffset(5, 5)+0] = 250
	img.Pix[img.PixOffset(5, 5)+1] = 250
	img.Pix[img.PixOffset(5, 5)+2] = 250

	regions, err := NewBrightRegionSegmenter(DefaultThreshold).Segment(img)
	require.NoError(t, err)
	assert.Empty(t, regions, "a pixel at exactly the threshold is background")
}
