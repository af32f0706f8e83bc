package tracestore

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/banshee-data/motion.trace/internal/calibration"
)

// RunData is a finalized run read back from disk.
type RunData struct {
	Key       string
	Dir       string
	VideoPath string
	Sidecar   calibration.Sidecar
	Records   []Record // pixel coordinates are absolute frame coordinates
	Layout    Layout   // layout of the CSV on disk
}

// PNGPath is where the rendered trace figure for the run is written.
func (d RunData) PNGPath() string { return filepath.Join(d.Dir, d.Key+".png") }

// HTMLPath is where the interactive chart for the run is written.
func (d RunData) HTMLPath() string { return filepath.Join(d.Dir, d.Key+".html") }

// Load reads the run stored under key. Legacy traces have the sidecar's
// x start added back to their pixel x.
func (s *Store) Load(key string) (RunData, error) {
	dir := s.RunDir(key)
	data := RunData{Key: key, Dir: dir}

	sc, err := calibration.LoadSidecar(s.fs, filepath.Join(dir, key+".json"))
	if err != nil {
		return RunData{}, err
	}
	data.Sidecar = sc

	csvPath := filepath.Join(dir, key+".csv")
	raw, err := s.fs.ReadFile(csvPath)
	if err != nil {
		return RunData{}, fmt.Errorf("open trace file: %w", err)
	}
	data.Records, data.Layout, err = ReadRecords(bytes.NewReader(raw))
	if err != nil {
		return RunData{}, fmt.Errorf("read %s: %w", csvPath, err)
	}
	if data.Layout == LayoutLegacy {
		for i := range data.Records {
			data.Records[i].XPixel += sc.XStart
		}
		s.logf("Run %s uses the legacy trace layout; offset pixel x by x start %d", key, sc.XStart)
	}

	if p, ok := s.videoInRunDir(key); ok {
		data.VideoPath = p
	}
	return data, nil
}

// Runs lists the keys of run directories that hold a trace file.
func (s *Store) Runs() ([]string, error) {
	entries, err := s.fs.ReadDir(s.workDir)
	if err != nil {
		return nil, fmt.Errorf("read working directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if !e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		if s.fs.Exists(filepath.Join(s.workDir, e.Name(), e.Name()+".csv")) {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}
