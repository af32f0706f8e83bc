package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/motion.trace/internal/calibration"
	"github.com/banshee-data/motion.trace/internal/fsutil"
	"github.com/banshee-data/motion.trace/internal/tracestore"
	"github.com/banshee-data/motion.trace/internal/units"
	"github.com/banshee-data/motion.trace/internal/video"
	"github.com/banshee-data/motion.trace/internal/vision"
)

const calibrationImage = "calibration.png"

func runCalibrate(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
	common := addCommonFlags(fs)
	p1 := fs.String("p1", "", "First reference point as x,y")
	p2 := fs.String("p2", "", "Second reference point as x,y")
	length := fs.String("length", "", "Known distance between p1 and p2")
	xStart := fs.Int("x-start", -1, "Reference line x position in pixels")
	origin := fs.String("origin", "", "Origin point as x,y for origin-anchored y")
	unit := fs.String("unit", "", "Length unit: "+units.GetValidUnitsString())
	interactive := fs.Bool("interactive", false, "Read calibration commands from stdin")
	fs.Parse(args)

	cfg, dir, err := common.load()
	if err != nil {
		return err
	}
	if *unit == "" {
		*unit = cfg.GetLengthUnit()
	}
	if !units.IsValid(*unit) {
		return fmt.Errorf("invalid unit %q, want one of %s", *unit, units.GetValidUnitsString())
	}

	store, err := tracestore.NewStore(tracestore.Options{WorkDir: dir, Extensions: cfg.GetVideoExtensions()})
	if err != nil {
		return err
	}
	videos, err := store.Discover()
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		return fmt.Errorf("no videos in %s", dir)
	}
	first, err := video.FirstFrame(videos[0].Path, cfg.GetRotation())
	if err != nil {
		return err
	}
	width := first.Bounds().Dx()

	osfs := fsutil.OSFileSystem{}
	session := calibration.NewSession()
	if sc, err := calibration.LoadSidecar(osfs, sessionPath(dir)); err == nil {
		if err := session.Restore(sc, width); err != nil {
			fmt.Fprintf(out, "Ignoring saved calibration: %v\n", err)
			session = calibration.NewSession()
		}
	}
	session.Open(width)

	if err := applyFlags(session, *p1, *p2, *length, *xStart, *origin, *unit); err != nil {
		return err
	}

	if *interactive {
		fmt.Fprintf(out, "Calibrating against %s (%dx%d)\n", videos[0].Path, width, first.Bounds().Dy())
		if err := interact(session, *unit, in, out); err != nil {
			return err
		}
	}

	sc := session.Snapshot()
	sc.FrameRate = cfg.GetFrameRate()
	if err := calibration.SaveSidecar(osfs, sessionPath(dir), sc); err != nil {
		return err
	}

	var o *image.Point
	if sc.Origin != nil {
		o = &image.Point{X: sc.Origin[0], Y: sc.Origin[1]}
	}
	overlay, err := vision.CalibrationOverlay(first, session.Points(), session.Line().X(), o)
	if err != nil {
		return err
	}
	if err := vision.WritePNG(filepath.Join(dir, calibrationImage), overlay); err != nil {
		return err
	}

	printStatus(session, *unit, out)
	if _, err := session.Reference(); err != nil {
		fmt.Fprintln(out, "Calibration incomplete: extract will refuse to run until a scale is set")
	}
	return nil
}

// applyFlags feeds the non-interactive flags through the session. New
// points discard any previous measurement; a length alone re-measures the
// saved points.
func applyFlags(s *calibration.Session, p1, p2, length string, xStart int, origin, unit string) error {
	if xStart >= 0 {
		s.SetReferenceX(xStart)
	}
	if origin != "" {
		p, err := parsePoint(origin)
		if err != nil {
			return err
		}
		s.SetOrigin(p)
	}
	if (p1 == "") != (p2 == "") {
		return errors.New("-p1 and -p2 must be given together")
	}
	if p1 != "" {
		a, err := parsePoint(p1)
		if err != nil {
			return err
		}
		b, err := parsePoint(p2)
		if err != nil {
			return err
		}
		s.Reset()
		if err := s.Click(a); err != nil {
			return err
		}
		if err := s.Click(b); err != nil {
			return err
		}
	}
	if length != "" {
		if p1 == "" && s.State() == calibration.StateCalibrated {
			// A new length for the saved points replaces the old scale.
			if err := remeasure(s); err != nil {
				return err
			}
		}
		if err := submitLength(s, length, unit); err != nil {
			return err
		}
	}
	return nil
}

// remeasure clears the scale and clicks the same points again so a new
// length can be submitted.
func remeasure(s *calibration.Session) error {
	pts := s.Points()
	s.Reset()
	for _, p := range pts {
		if err := s.Click(p); err != nil {
			return err
		}
	}
	return nil
}

func submitLength(s *calibration.Session, input, unit string) error {
	v, err := calibration.ParseLength(input)
	if err != nil {
		return err
	}
	return s.SubmitLengthMM(units.ToMillimetres(v, unit))
}

func interact(s *calibration.Session, unit string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Commands: click x y | length L | line X | origin x y | reset | status | done")
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "[%s]> ", s.State())
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		done, err := applyCommand(s, sc.Text(), unit, out)
		if err != nil {
			fmt.Fprintf(out, "Rejected: %v\n", err)
			continue
		}
		if done {
			return nil
		}
	}
}

// applyCommand runs one interactive command line. A rejected command leaves
// the session unchanged.
func applyCommand(s *calibration.Session, line, unit string, out io.Writer) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	args := fields[1:]
	switch strings.ToLower(fields[0]) {
	case "click":
		p, err := pointArgs(args)
		if err != nil {
			return false, err
		}
		if err := s.Click(p); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Point %d at (%d, %d)\n", len(s.Points()), p.X, p.Y)
	case "length":
		if len(args) != 1 {
			return false, errors.New("usage: length L")
		}
		if err := submitLength(s, args[0], unit); err != nil {
			return false, err
		}
		printStatus(s, unit, out)
	case "line":
		if len(args) != 1 {
			return false, errors.New("usage: line X")
		}
		x, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("line: %w", err)
		}
		fmt.Fprintf(out, "Reference line at x=%d\n", s.SetReferenceX(x))
	case "origin":
		p, err := pointArgs(args)
		if err != nil {
			return false, err
		}
		s.SetOrigin(p)
		fmt.Fprintf(out, "Origin at (%d, %d)\n", p.X, p.Y)
	case "reset":
		s.Reset()
		fmt.Fprintln(out, "Points cleared")
	case "status":
		printStatus(s, unit, out)
	case "done", "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
	return false, nil
}

func pointArgs(args []string) (image.Point, error) {
	if len(args) == 1 {
		return parsePoint(args[0])
	}
	if len(args) != 2 {
		return image.Point{}, errors.New("want x y")
	}
	return parsePoint(args[0] + "," + args[1])
}

func printStatus(s *calibration.Session, unit string, out io.Writer) {
	fmt.Fprintf(out, "State: %s\n", s.State())
	fmt.Fprintf(out, "Points: %v\n", s.Points())
	fmt.Fprintf(out, "Reference line: x=%d\n", s.Line().X())
	if ref, err := s.Reference(); err == nil {
		fmt.Fprintf(out, "Length: %g %s\n", units.FromMillimetres(s.LengthMM(), unit), unit)
		fmt.Fprintf(out, "Scale: %g mm/pixel\n", ref.ScaleMMPerPixel)
	}
}
