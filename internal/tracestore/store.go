package tracestore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.trace/internal/calibration"
	"github.com/banshee-data/motion.trace/internal/db"
	"github.com/banshee-data/motion.trace/internal/fsutil"
	"github.com/banshee-data/motion.trace/internal/monitoring"
	"github.com/banshee-data/motion.trace/internal/security"
	"github.com/banshee-data/motion.trace/internal/timeutil"
	"github.com/banshee-data/motion.trace/internal/version"
)

// DefaultExtensions are the video container extensions picked up by Discover.
var DefaultExtensions = []string{".mp4"}

// Video is a discovered input video.
type Video struct {
	Key      string // file name without extension; names the run directory
	Path     string
	InRunDir bool // already relocated into <workdir>/<key>/
}

// Options configures a Store.
type Options struct {
	WorkDir    string
	Extensions []string
	Index      *db.DB // optional run index
	Clock      timeutil.Clock
	FS         fsutil.FileSystem // defaults to the OS filesystem
}

// Store lays out run directories inside a single working directory.
type Store struct {
	workDir string
	exts    []string
	index   *db.DB
	clock   timeutil.Clock
	fs      fsutil.FileSystem
	logf    func(string, ...interface{})
}

// NewStore prepares opts.WorkDir, creating it if missing.
func NewStore(opts Options) (*Store, error) {
	if opts.WorkDir == "" {
		return nil, errors.New("working directory not set")
	}
	abs, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	s := &Store{
		workDir: abs,
		exts:    opts.Extensions,
		index:   opts.Index,
		clock:   opts.Clock,
		fs:      opts.FS,
		logf:    monitoring.Component("TraceStore"),
	}
	if len(s.exts) == 0 {
		s.exts = DefaultExtensions
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.fs == nil {
		s.fs = fsutil.OSFileSystem{}
	}
	if err := s.fs.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	return s, nil
}

// WorkDir returns the absolute working directory.
func (s *Store) WorkDir() string { return s.workDir }

// Index returns the run index, or nil when none is configured.
func (s *Store) Index() *db.DB { return s.index }

func (s *Store) isVideo(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range s.exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Discover lists loose videos in the working directory and videos already
// relocated into run directories, ordered by key. When both exist for one
// key the loose video wins, since processing it replaces the old run.
func (s *Store) Discover() ([]Video, error) {
	entries, err := s.fs.ReadDir(s.workDir)
	if err != nil {
		return nil, fmt.Errorf("read working directory: %w", err)
	}

	byKey := make(map[string]Video)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !e.IsDir() {
			if !s.isVideo(name) {
				continue
			}
			key := strings.TrimSuffix(name, filepath.Ext(name))
			if security.ValidateRunKey(key) != nil {
				continue
			}
			if prev, ok := byKey[key]; ok && !prev.InRunDir {
				s.logf("Skipping %s: another video already uses key %q", name, key)
				continue
			}
			byKey[key] = Video{Key: key, Path: filepath.Join(s.workDir, name)}
			continue
		}
		if _, ok := byKey[name]; ok {
			continue
		}
		if p, ok := s.videoInRunDir(name); ok {
			byKey[name] = Video{Key: name, Path: p, InRunDir: true}
		}
	}

	videos := make([]Video, 0, len(byKey))
	for _, v := range byKey {
		videos = append(videos, v)
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].Key < videos[j].Key })
	return videos, nil
}

func (s *Store) videoInRunDir(key string) (string, bool) {
	for _, ext := range s.exts {
		p := filepath.Join(s.workDir, key, key+ext)
		if fi, err := s.fs.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// RunDir returns the run directory for key.
func (s *Store) RunDir(key string) string { return filepath.Join(s.workDir, key) }

// RunMeta describes how a run was configured, for the index.
type RunMeta struct {
	Localizer string
	FrameRate float64
}

// Begin creates (or re-initializes) the run directory for v, relocates the
// video into it, and returns a Run ready for Append. On error nothing is
// left behind: a new run directory is assembled under a hidden staging name
// and only renamed into place once its CSV header and sidecar are written.
func (s *Store) Begin(v Video, ref calibration.Reference, meta RunMeta) (*Run, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if err := security.ValidateRunKey(v.Key); err != nil {
		return nil, err
	}
	runDir := s.RunDir(v.Key)
	if err := security.ValidatePathWithinDirectory(runDir, s.workDir); err != nil {
		return nil, err
	}

	ext := filepath.Ext(v.Path)
	videoDst := filepath.Join(runDir, v.Key+ext)
	csvPath := filepath.Join(runDir, v.Key+".csv")
	sidecarPath := filepath.Join(runDir, v.Key+".json")
	sc := calibration.SidecarFor(ref)
	sc.FrameRate = meta.FrameRate

	if _, err := s.fs.Stat(runDir); err == nil {
		if err := s.reinitialize(runDir, csvPath, sidecarPath, sc); err != nil {
			return nil, err
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := s.stage(v.Key, runDir, sc); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("stat run directory: %w", err)
	}

	if filepath.Clean(v.Path) != videoDst {
		if err := s.fs.Rename(v.Path, videoDst); err != nil {
			if !v.InRunDir {
				// Undo only a directory this call created from staging.
				if fresh, _ := s.isFreshRunDir(runDir, v.Key); fresh {
					s.fs.RemoveAll(runDir)
				}
			}
			return nil, fmt.Errorf("relocate video into %s: %w", runDir, err)
		}
	}

	f, err := s.fs.OpenAppend(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	run := &Run{
		Key:         v.Key,
		Dir:         runDir,
		VideoPath:   videoDst,
		CSVPath:     csvPath,
		SidecarPath: sidecarPath,
		store:       s,
		file:        f,
		w:           csv.NewWriter(f),
		startedAt:   s.clock.Now(),
	}

	if s.index != nil {
		row := &db.TraceRun{
			VideoKey:        v.Key,
			VideoPath:       videoDst,
			RunDir:          runDir,
			Localizer:       meta.Localizer,
			ScaleMMPerPixel: ref.ScaleMMPerPixel,
			ReferenceX:      ref.ReferenceX,
			FrameRate:       meta.FrameRate,
			AppVersion:      version.Version,
			StartedAt:       run.startedAt,
		}
		if err := s.index.InsertRun(row); err != nil {
			f.Close()
			return nil, err
		}
		run.ID = row.RunID
	} else {
		run.ID = uuid.New().String()
	}

	monitoring.ActiveRuns.Inc()
	s.logf("Started run %s for %s in %s", run.ID, v.Key, runDir)
	return run, nil
}

// stage builds a fresh run directory under a hidden name and renames it into place.
func (s *Store) stage(key, runDir string, sc calibration.Sidecar) error {
	staging := filepath.Join(s.workDir, fmt.Sprintf(".%s.staging-%s", key, uuid.New().String()))
	if err := s.fs.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			s.fs.RemoveAll(staging)
		}
	}()

	if err := s.writeHeader(filepath.Join(staging, key+".csv")); err != nil {
		return err
	}
	if err := calibration.SaveSidecar(s.fs, filepath.Join(staging, key+".json"), sc); err != nil {
		return err
	}
	if err := s.fs.Rename(staging, runDir); err != nil {
		return fmt.Errorf("move staging directory into place: %w", err)
	}
	ok = true
	return nil
}

// reinitialize truncates an existing run's CSV and rewrites its sidecar. Both
// files are replaced by rename so a failure leaves the previous run intact.
func (s *Store) reinitialize(runDir, csvPath, sidecarPath string, sc calibration.Sidecar) error {
	tmp := csvPath + ".tmp-" + uuid.New().String()
	if err := s.writeHeader(tmp); err != nil {
		return err
	}
	if err := calibration.SaveSidecar(s.fs, sidecarPath, sc); err != nil {
		s.fs.RemoveAll(tmp)
		return err
	}
	if err := s.fs.Rename(tmp, csvPath); err != nil {
		s.fs.RemoveAll(tmp)
		return fmt.Errorf("replace trace file: %w", err)
	}
	s.logf("Re-processing existing run directory %s", runDir)
	return nil
}

func (s *Store) writeHeader(path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("write trace header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write trace header: %w", err)
	}
	if err := s.fs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	return nil
}

// isFreshRunDir reports whether dir holds only the files stage writes.
func (s *Store) isFreshRunDir(dir, key string) (bool, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Name() != key+".csv" && e.Name() != key+".json" {
			return false, nil
		}
	}
	return true, nil
}
