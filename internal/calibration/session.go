// Package calibration turns two clicked pixel points and a known physical
// length into a millimetre-per-pixel scale, and holds the reference line that
// gates which detections are recorded.
package calibration

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrNotOpen           = errors.New("calibration session is not open")
	ErrAlreadyCalibrated = errors.New("calibration already complete; reset to measure again")
	ErrNeedTwoPoints     = errors.New("two reference points are required")
	ErrInvalidLength     = errors.New("only positive finite numbers are allowed")
	ErrDegeneratePoints  = errors.New("reference points coincide")
	ErrNotCalibrated     = errors.New("no calibration reference")
)

// State is the calibration session lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingPoints
	StateAwaitingLength
	StateCalibrated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPoints:
		return "awaiting-points"
	case StateAwaitingLength:
		return "awaiting-length"
	case StateCalibrated:
		return "calibrated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Reference is the immutable pixel-to-millimetre mapping handed to an
// extraction run.
type Reference struct {
	ScaleMMPerPixel float64
	ReferenceX      int
	Origin          *image.Point
}

// Validate reports ErrNotCalibrated unless the scale is finite and positive.
func (r Reference) Validate() error {
	if !(r.ScaleMMPerPixel > 0) || math.IsInf(r.ScaleMMPerPixel, 0) {
		return fmt.Errorf("%w: scale %v mm/px", ErrNotCalibrated, r.ScaleMMPerPixel)
	}
	return nil
}

// ComputeScale returns lengthMM divided by the pixel distance between p0 and p1.
func ComputeScale(p0, p1 image.Point, lengthMM float64) (float64, error) {
	if err := checkLength(lengthMM); err != nil {
		return 0, err
	}
	d := PixelDistance(p0, p1)
	if d == 0 {
		return 0, fmt.Errorf("%w: both at %v", ErrDegeneratePoints, p0)
	}
	return lengthMM / d, nil
}

// PixelDistance is the Euclidean distance between two pixels.
func PixelDistance(p0, p1 image.Point) float64 {
	return math.Hypot(float64(p1.X-p0.X), float64(p1.Y-p0.Y))
}

// ParseLength parses an operator-entered length.
func ParseLength(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLength, s)
	}
	if err := checkLength(v); err != nil {
		return 0, err
	}
	return v, nil
}

func checkLength(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidLength, v)
	}
	return nil
}

// Session is the interactive calibration state machine. All methods are safe
// for concurrent use.
type Session struct {
	mu       sync.Mutex
	state    State
	width    int
	points   []image.Point
	lengthMM float64
	scale    float64
	origin   *image.Point
	line     *ReferenceLine
}

// NewSession returns an idle session whose reference line starts at x=0.
func NewSession() *Session {
	return &Session{line: NewReferenceLine(0)}
}

// Open starts measuring against a frame frameWidth pixels wide.
func (s *Session) Open(frameWidth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = frameWidth
	s.line.Set(clamp(s.line.X(), 0, frameWidth))
	if s.state == StateIdle {
		s.state = StateAwaitingPoints
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Points returns a copy of the clicked points.
func (s *Session) Points() []image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]image.Point(nil), s.points...)
}

// Click records a reference point. A third click discards the previous pair
// and starts a new one.
func (s *Session) Click(p image.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle:
		return ErrNotOpen
	case StateCalibrated:
		return ErrAlreadyCalibrated
	}
	if len(s.points) == 2 {
		s.points = s.points[:0]
	}
	s.points = append(s.points, p)
	if len(s.points) == 2 {
		s.state = StateAwaitingLength
	} else {
		s.state = StateAwaitingPoints
	}
	return nil
}

// SubmitLength parses the known distance between the two points in
// millimetres and completes the calibration. Rejected input leaves the
// session unchanged.
func (s *Session) SubmitLength(input string) error {
	lengthMM, err := ParseLength(input)
	if err != nil {
		return err
	}
	return s.SubmitLengthMM(lengthMM)
}

// SubmitLengthMM is SubmitLength for an already parsed value.
func (s *Session) SubmitLengthMM(lengthMM float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle:
		return ErrNotOpen
	case StateCalibrated:
		return ErrAlreadyCalibrated
	case StateAwaitingPoints:
		return fmt.Errorf("%w: have %d", ErrNeedTwoPoints, len(s.points))
	}
	scale, err := ComputeScale(s.points[0], s.points[1], lengthMM)
	if err != nil {
		return err
	}
	s.lengthMM = lengthMM
	s.scale = scale
	s.state = StateCalibrated
	return nil
}

// Reset discards points and scale and waits for a new pair of clicks. The
// reference line and origin are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = nil
	s.lengthMM = 0
	s.scale = 0
	if s.state != StateIdle {
		s.state = StateAwaitingPoints
	}
}

// SetReferenceX moves the reference line. It may be called in any state,
// including while a run reads the line. Once the session is open the value
// is clamped to the frame width.
func (s *Session) SetReferenceX(x int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		x = clamp(x, 0, s.width)
	}
	s.line.Set(x)
	return x
}

// Line returns the live reference line shared with extraction runs.
func (s *Session) Line() *ReferenceLine { return s.line }

// SetOrigin records an optional origin point for origin-anchored y.
func (s *Session) SetOrigin(p image.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origin = &p
}

// LengthMM returns the accepted reference length, or 0 before calibration.
func (s *Session) LengthMM() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lengthMM
}

// Reference returns the calibration result, or ErrNotCalibrated.
func (s *Session) Reference() (Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCalibrated {
		return Reference{}, fmt.Errorf("%w: session is %s", ErrNotCalibrated, s.state)
	}
	ref := Reference{ScaleMMPerPixel: s.scale, ReferenceX: s.line.X()}
	if s.origin != nil {
		o := *s.origin
		ref.Origin = &o
	}
	return ref, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if hi > lo && v > hi {
		return hi
	}
	return v
}
