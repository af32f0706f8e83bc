package frame

import "image"

// SliceSource serves pre-decoded images as a frame stream.
type SliceSource struct {
	images    []image.Image
	frameRate float64
	rotation  Rotation
	next      int
}

// NewSliceSource returns a source over images at frameRate with no rotation.
func NewSliceSource(frameRate float64, images ...image.Image) *SliceSource {
	return &SliceSource{images: images, frameRate: frameRate, rotation: RotateNone}
}

// WithRotation sets the rotation applied to each image as it is served.
func (s *SliceSource) WithRotation(r Rotation) *SliceSource {
	s.rotation = r
	return s
}

// Next returns the next frame. A nil image ends the stream, the same way a
// decode failure does for a video file.
func (s *SliceSource) Next() (Frame, bool) {
	if s.next >= len(s.images) || s.images[s.next] == nil {
		return Frame{}, false
	}
	img := Rotate(s.images[s.next], s.rotation)
	s.next++
	return New(img, s.next, s.frameRate), true
}

// Close releases nothing; it exists to satisfy Source.
func (s *SliceSource) Close() error { return nil }
