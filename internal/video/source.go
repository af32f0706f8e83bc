// Package video decodes video containers into frames with OpenCV.
package video

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/monitoring"
)

// ErrNoFrames is returned when a container yields no decodable frame.
var ErrNoFrames = errors.New("video has no decodable frames")

// FileSource reads a video file sequentially. A decode failure ends the
// stream the same way end of file does.
type FileSource struct {
	path      string
	capture   *gocv.VideoCapture
	mat       gocv.Mat
	rotated   gocv.Mat
	rotation  frame.Rotation
	frameRate float64
	index     int
	logf      func(string, ...interface{})
}

// Open starts decoding path. Every frame is rotated by rotation and stamped
// at index/frameRate seconds.
func Open(path string, frameRate float64, rotation frame.Rotation) (*FileSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open video %s: container not readable", path)
	}
	if frameRate <= 0 {
		frameRate = frame.DefaultFrameRate
	}
	return &FileSource{
		path:      path,
		capture:   capture,
		mat:       gocv.NewMat(),
		rotated:   gocv.NewMat(),
		rotation:  rotation,
		frameRate: frameRate,
		logf:      monitoring.Component("Video"),
	}, nil
}

// FrameCount is the container's frame count estimate, or 0 when unknown.
func (s *FileSource) FrameCount() int {
	n := int(s.capture.Get(gocv.VideoCaptureFrameCount))
	if n < 0 {
		return 0
	}
	return n
}

// Next implements frame.Source.
func (s *FileSource) Next() (frame.Frame, bool) {
	img, ok := s.read()
	if !ok {
		return frame.Frame{}, false
	}
	s.index++
	return frame.New(img, s.index, s.frameRate), true
}

func (s *FileSource) read() (image.Image, bool) {
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, false
	}
	src := s.mat
	if code, ok := rotateFlag(s.rotation); ok {
		gocv.Rotate(s.mat, &s.rotated, code)
		src = s.rotated
	}
	img, err := src.ToImage()
	if err != nil {
		s.logf("%s: frame %d: %v", s.path, s.index+1, err)
		return nil, false
	}
	return img, true
}

// Close implements frame.Source.
func (s *FileSource) Close() error {
	s.mat.Close()
	s.rotated.Close()
	return s.capture.Close()
}

func rotateFlag(r frame.Rotation) (gocv.RotateFlag, bool) {
	switch r {
	case frame.RotateCCW90:
		return gocv.Rotate90CounterClockwise, true
	case frame.RotateCW90:
		return gocv.Rotate90Clockwise, true
	case frame.Rotate180:
		return gocv.Rotate180Clockwise, true
	default:
		return 0, false
	}
}

// FirstFrame decodes the first frame of path, rotated.
func FirstFrame(path string, rotation frame.Rotation) (image.Image, error) {
	s, err := Open(path, 0, rotation)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	img, ok := s.read()
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNoFrames)
	}
	return img, nil
}

// LastFrame decodes the final frame of path, rotated. It seeks to the last
// frame the container reports and falls back to reading the whole stream
// when seeking does not produce a frame.
func LastFrame(path string, rotation frame.Rotation) (image.Image, error) {
	s, err := Open(path, 0, rotation)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if n := s.FrameCount(); n > 0 {
		s.capture.Set(gocv.VideoCapturePosFrames, float64(n-1))
		if img, ok := s.read(); ok {
			return img, nil
		}
		s.capture.Set(gocv.VideoCapturePosFrames, 0)
	}

	var last image.Image
	for {
		img, ok := s.read()
		if !ok {
			break
		}
		last = img
	}
	if last == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNoFrames)
	}
	return last, nil
}
