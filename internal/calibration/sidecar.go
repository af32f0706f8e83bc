package calibration

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/banshee-data/motion.trace/internal/fsutil"
)

// SessionFileName is the per-working-directory calibration written by the
// calibrate command and read by extract.
const SessionFileName = "calibration.json"

// Sidecar is the on-disk calibration record stored next to each video and
// as the working-directory session file. Only "x start" is required; older
// sidecars carry nothing else.
type Sidecar struct {
	XStart          int      `json:"x start"`
	ScaleMMPerPixel float64  `json:"mm per pixel,omitempty"`
	LengthMM        float64  `json:"length mm,omitempty"`
	Points          [][2]int `json:"points,omitempty"`
	Origin          *[2]int  `json:"origin,omitempty"`
	FrameRate       float64  `json:"frame rate,omitempty"`
}

// SidecarFor builds the sidecar describing ref.
func SidecarFor(ref Reference) Sidecar {
	sc := Sidecar{XStart: ref.ReferenceX, ScaleMMPerPixel: ref.ScaleMMPerPixel}
	if ref.Origin != nil {
		sc.Origin = &[2]int{ref.Origin.X, ref.Origin.Y}
	}
	return sc
}

// Snapshot captures the whole session, including points and length, for the
// session file. It does not require the session to be calibrated.
func (s *Session) Snapshot() Sidecar {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := Sidecar{XStart: s.line.X(), ScaleMMPerPixel: s.scale, LengthMM: s.lengthMM}
	for _, p := range s.points {
		sc.Points = append(sc.Points, [2]int{p.X, p.Y})
	}
	if s.origin != nil {
		sc.Origin = &[2]int{s.origin.X, s.origin.Y}
	}
	return sc
}

// Restore loads a saved session. A sidecar with two points and a length
// is replayed through the state machine, so an inconsistent file fails the
// same way interactive input would.
func (s *Session) Restore(sc Sidecar, frameWidth int) error {
	s.mu.Lock()
	s.state = StateIdle
	s.points = nil
	s.scale = 0
	s.lengthMM = 0
	s.origin = nil
	s.mu.Unlock()

	s.Open(frameWidth)
	s.SetReferenceX(sc.XStart)
	if sc.Origin != nil {
		s.SetOrigin(image.Pt(sc.Origin[0], sc.Origin[1]))
	}
	for _, p := range sc.Points {
		if err := s.Click(image.Pt(p[0], p[1])); err != nil {
			return err
		}
	}
	if sc.LengthMM > 0 {
		if err := s.SubmitLengthMM(sc.LengthMM); err != nil {
			return fmt.Errorf("restore calibration: %w", err)
		}
	}
	return nil
}

// Reference converts the sidecar back into a Reference. A sidecar without a
// usable scale yields ErrNotCalibrated; the scale is never defaulted.
func (sc Sidecar) Reference() (Reference, error) {
	ref := Reference{ScaleMMPerPixel: sc.ScaleMMPerPixel, ReferenceX: sc.XStart}
	if sc.Origin != nil {
		ref.Origin = &image.Point{X: sc.Origin[0], Y: sc.Origin[1]}
	}
	if err := ref.Validate(); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

// SaveSidecar writes sc as indented JSON.
func SaveSidecar(fs fsutil.FileSystem, path string, sc Sidecar) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	if err := fs.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write sidecar %s: %w", path, err)
	}
	return nil
}

// LoadSidecar reads a sidecar written by SaveSidecar or by older tooling.
func LoadSidecar(fs fsutil.FileSystem, path string) (Sidecar, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return Sidecar{}, fmt.Errorf("read sidecar %s: %w", path, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Sidecar{}, fmt.Errorf("parse sidecar %s: %w", path, err)
	}
	if _, ok := raw["x start"]; !ok {
		return Sidecar{}, fmt.Errorf("sidecar %s: missing \"x start\"", path)
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return Sidecar{}, fmt.Errorf("parse sidecar %s: %w", path, err)
	}
	return sc, nil
}
