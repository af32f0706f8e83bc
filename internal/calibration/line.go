package calibration

import "sync/atomic"

// ReferenceLine is the live x position of the gating line. The foreground may
// move it while a worker reads it; a worker sees either the old or the new
// value for any given frame.
type ReferenceLine struct {
	x atomic.Int64
}

// NewReferenceLine returns a line at x.
func NewReferenceLine(x int) *ReferenceLine {
	l := &ReferenceLine{}
	l.x.Store(int64(x))
	return l
}

// X returns the current position.
func (l *ReferenceLine) X() int { return int(l.x.Load()) }

// Set moves the line.
func (l *ReferenceLine) Set(x int) { l.x.Store(int64(x)) }
