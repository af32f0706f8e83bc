package locate

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/testutil"
)

// scriptedTracker replays a fixed sequence of Update results.
type scriptedTracker struct {
	initOK  bool
	initBox image.Rectangle
	updates []image.Rectangle // an empty rectangle means failure
	calls   int
	closed  bool
}

func (s *scriptedTracker) Init(_ image.Image, box image.Rectangle) bool {
	s.initBox = box
	return s.initOK
}

func (s *scriptedTracker) Update(image.Image) (image.Rectangle, bool) {
	if s.calls >= len(s.updates) {
		return image.Rectangle{}, false
	}
	r := s.updates[s.calls]
	s.calls++
	return r, !r.Empty()
}

func (s *scriptedTracker) Close() error {
	s.closed = true
	return nil
}

func frames(n int) []frame.Frame {
	out := make([]frame.Frame, n)
	for i := range out {
		out[i] = frame.New(testutil.BlackImage(200, 100), i+1, frame.DefaultFrameRate)
	}
	return out
}

func TestRegionTrackLocalizer_FollowsBox(t *testing.T) {
	t.Parallel()

	tr := &scriptedTracker{
		initOK: true,
		updates: []image.Rectangle{
			image.Rect(20, 10, 40, 30),
			image.Rect(30, 10, 50, 30),
		},
	}
	l := NewRegionTrackLocalizer(tr, image.Rect(10, 10, 30, 30))
	fs := frames(3)

	assert.Equal(t, Detection{X: 20, Y: 20, Valid: true}, l.Locate(fs[0]))
	assert.Equal(t, image.Rect(10, 10, 30, 30), tr.initBox)
	assert.Equal(t, Detection{X: 30, Y: 20, Valid: true}, l.Locate(fs[1]))
	assert.Equal(t, Detection{X: 40, Y: 20, Valid: true}, l.Locate(fs[2]))

	require.NoError(t, l.Close())
	assert.True(t, tr.closed)
}

func TestRegionTrackLocalizer_LostIsPermanent(t *testing.T) {
	t.Parallel()

	tr := &scriptedTracker{
		initOK: true,
		updates: []image.Rectangle{
			{}, // lost on the second frame
			image.Rect(0, 0, 10, 10),
		},
	}
	l := NewRegionTrackLocalizer(tr, image.Rect(10, 10, 30, 30))
	fs := frames(4)

	assert.True(t, l.Locate(fs[0]).Valid)
	assert.False(t, l.Locate(fs[1]).Valid)
	assert.True(t, l.Lost())
	// The tracker would report success again, but the localizer must not re-acquire.
	assert.False(t, l.Locate(fs[2]).Valid)
	assert.False(t, l.Locate(fs[3]).Valid)
	assert.Equal(t, 1, tr.calls, "no updates after the track is lost")
}

func TestRegionTrackLocalizer_InitFailure(t *testing.T) {
	t.Parallel()

	l := NewRegionTrackLocalizer(&scriptedTracker{initOK: false}, image.Rect(10, 10, 30, 30))
	for _, f := range frames(2) {
		assert.False(t, l.Locate(f).Valid)
	}
	assert.True(t, l.Lost())
}

func TestRegionTrackLocalizer_BoxOutsideFrame(t *testing.T) {
	t.Parallel()

	tr := &scriptedTracker{initOK: true}
	l := NewRegionTrackLocalizer(tr, image.Rect(500, 500, 520, 520))
	assert.False(t, l.Locate(frames(1)[0]).Valid)
	assert.True(t, l.Lost())
	assert.True(t, tr.initBox.Empty(), "tracker must not be initialized off-frame")
}

func TestNew(t *testing.T) {
	t.Parallel()

	seg, err := New(Options{Kind: KindSegmentation, Segmenter: NewBrightRegionSegmenter(DefaultThreshold)})
	require.NoError(t, err)
	assert.IsType(t, &SegmentationLocalizer{}, seg)

	trk, err := New(Options{
		Kind:       KindRegionTrack,
		NewTracker: func() (RegionTracker, error) { return &scriptedTracker{initOK: true}, nil },
		Box:        image.Rect(0, 0, 5, 5),
	})
	require.NoError(t, err)
	assert.IsType(t, &RegionTrackLocalizer{}, trk)

	_, err = New(Options{Kind: KindRegionTrack, NewTracker: func() (RegionTracker, error) { return &scriptedTracker{}, nil }})
	assert.Error(t, err, "empty box must be rejected")

	_, err = New(Options{Kind: KindSegmentation})
	assert.Error(t, err, "missing segmenter must be rejected")
}
