// Package frame defines decoded video frames and the sources that yield them
// in capture order.
package frame

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/gift"
)

// DefaultFrameRate is the capture rate of the high-speed camera the traces are
// recorded with. Container metadata is not trusted for timing.
const DefaultFrameRate = 480.0

// Frame is one decoded, orientation-normalized video frame.
// Index counts from 1 for the first decoded frame.
type Frame struct {
	Image     image.Image
	Index     int
	Timestamp float64 // seconds since the start of the video
}

// Bounds returns the image bounds, or an empty rectangle for a frame with no image.
func (f Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// Timestamp returns the capture time of the frame at index for a fixed frame rate.
func Timestamp(index int, frameRate float64) float64 {
	return float64(index) * (1 / frameRate)
}

// New stamps img as the frame at index.
func New(img image.Image, index int, frameRate float64) Frame {
	return Frame{Image: img, Index: index, Timestamp: Timestamp(index, frameRate)}
}

// Source yields frames in strictly increasing index order. Next returns
// ok=false at end of stream; decode failures are reported as end of stream.
type Source interface {
	Next() (f Frame, ok bool)
	Close() error
}

// Rotation is the one-time orientation fix applied to every decoded frame.
type Rotation string

const (
	RotateNone  Rotation = "none"
	RotateCW90  Rotation = "cw90"
	RotateCCW90 Rotation = "ccw90"
	Rotate180   Rotation = "180"
)

// ParseRotation validates a rotation name. The empty string means RotateNone.
func ParseRotation(s string) (Rotation, error) {
	switch r := Rotation(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RotateNone, nil
	case RotateNone, RotateCW90, RotateCCW90, Rotate180:
		return r, nil
	default:
		return "", fmt.Errorf("unknown rotation %q (want none, cw90, ccw90 or 180)", s)
	}
}

// Rotate applies r to img and returns a new image. RotateNone returns img unchanged.
func Rotate(img image.Image, r Rotation) image.Image {
	var filter gift.Filter
	switch r {
	case RotateCCW90:
		filter = gift.Rotate90()
	case RotateCW90:
		filter = gift.Rotate270()
	case Rotate180:
		filter = gift.Rotate180()
	default:
		return img
	}
	g := gift.New(filter)
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}
