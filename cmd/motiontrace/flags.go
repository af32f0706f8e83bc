package main

import (
	"flag"
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/motion.trace/internal/calibration"
	"github.com/banshee-data/motion.trace/internal/config"
	"github.com/banshee-data/motion.trace/internal/fsutil"
)

// commonFlags are registered on every subcommand that works on a directory.
type commonFlags struct {
	dir        *string
	configPath *string
	envPath    *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		dir:        fs.String("dir", "", "Working directory (default: config working_dir or ./Videos)"),
		configPath: fs.String("config", "", "JSON configuration file"),
		envPath:    fs.String("env", ".env", "Optional .env file"),
	}
}

// load reads the configuration and resolves the working directory, giving
// -dir precedence over the configuration.
func (c commonFlags) load() (*config.Config, string, error) {
	cfg, err := config.Load(*c.configPath, *c.envPath)
	if err != nil {
		return nil, "", err
	}
	dir := cfg.GetWorkingDir()
	if *c.dir != "" {
		dir = *c.dir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolve working directory: %w", err)
	}
	return cfg, abs, nil
}

// parsePoint parses "x,y".
func parsePoint(s string) (image.Point, error) {
	v, err := parseInts(s, 2)
	if err != nil {
		return image.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	return image.Pt(v[0], v[1]), nil
}

// parseBox parses "x,y,w,h" into a rectangle.
func parseBox(s string) (image.Rectangle, error) {
	v, err := parseInts(s, 4)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("box %q: %w", s, err)
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("box %q: width and height must be positive", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated integers", n)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func sessionPath(dir string) string {
	return filepath.Join(dir, calibration.SessionFileName)
}

// loadReference reads the working directory's calibration session.
func loadReference(fs fsutil.FileSystem, dir string) (calibration.Sidecar, calibration.Reference, error) {
	sc, err := calibration.LoadSidecar(fs, sessionPath(dir))
	if err != nil {
		return calibration.Sidecar{}, calibration.Reference{}, fmt.Errorf("%w (run motiontrace calibrate first)", err)
	}
	ref, err := sc.Reference()
	if err != nil {
		return calibration.Sidecar{}, calibration.Reference{}, err
	}
	return sc, ref, nil
}
