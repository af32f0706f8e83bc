// Package preview holds the single "latest frame" slot a background run
// publishes into and the foreground reads from.
package preview

import (
	"image"
	"sync"

	"github.com/banshee-data/motion.trace/internal/locate"
)

// Frame is one published preview: the frame image plus what the run decided
// about it. The image is owned by the slot once published and must not be
// modified by either side.
type Frame struct {
	Image      image.Image
	Index      int
	Detection  locate.Detection
	Accepted   bool
	ReferenceX int
}

// Slot keeps only the most recent Frame. Put and Latest are mutually
// exclusive, so a reader never sees half of one publication and half of another.
type Slot struct {
	mu      sync.Mutex
	current Frame
	has     bool
	seq     uint64
}

// Put replaces the current frame.
func (s *Slot) Put(f Frame) {
	s.mu.Lock()
	s.current = f
	s.has = true
	s.seq++
	s.mu.Unlock()
}

// Latest returns the most recent frame, its publication sequence number, and
// whether anything has been published yet.
func (s *Slot) Latest() (Frame, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.seq, s.has
}
