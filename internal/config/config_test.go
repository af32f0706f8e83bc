package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/locate"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	if cfg.GetWorkingDir() != "./Videos" {
		t.Errorf("GetWorkingDir() = %q, want ./Videos", cfg.GetWorkingDir())
	}
	if cfg.GetFrameRate() != 480 {
		t.Errorf("GetFrameRate() = %v, want 480", cfg.GetFrameRate())
	}
	if cfg.GetThreshold() != 250 {
		t.Errorf("GetThreshold() = %d, want 250", cfg.GetThreshold())
	}
	if cfg.GetRotation() != frame.RotateCCW90 {
		t.Errorf("GetRotation() = %q, want ccw90", cfg.GetRotation())
	}
	if cfg.GetPreviewInterval() != 250*time.Millisecond {
		t.Errorf("GetPreviewInterval() = %s, want 250ms", cfg.GetPreviewInterval())
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := &Config{}
	def := DefaultConfig()

	assert.Equal(t, def.GetWorkingDir(), cfg.GetWorkingDir())
	assert.Equal(t, def.GetFrameRate(), cfg.GetFrameRate())
	assert.Equal(t, def.GetThreshold(), cfg.GetThreshold())
	assert.Equal(t, def.GetLocalizer(), cfg.GetLocalizer())
	assert.Equal(t, def.GetSegmenter(), cfg.GetSegmenter())
	assert.Equal(t, def.GetRotation(), cfg.GetRotation())
	assert.Equal(t, def.GetVideoExtensions(), cfg.GetVideoExtensions())
	assert.Equal(t, def.GetAnchorYToOrigin(), cfg.GetAnchorYToOrigin())
	assert.Equal(t, def.GetIndexDB(), cfg.GetIndexDB())
	assert.Equal(t, def.GetPreviewInterval(), cfg.GetPreviewInterval())
	assert.Equal(t, def.GetMetricsListen(), cfg.GetMetricsListen())
	assert.Equal(t, def.GetLengthUnit(), cfg.GetLengthUnit())
	assert.True(t, cfg.GetTrackBox().Empty())
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "motiontrace.json")

	testJSON := `{
  "working_dir": "/data/videos",
  "frame_rate": 240,
  "threshold": 200,
  "localizer": "region-track",
  "track_box": [10, 20, 30, 40],
  "anchor_y_to_origin": true,
  "index_db": "",
  "length_unit": "cm"
}`
	require.NoError(t, os.WriteFile(configPath, []byte(testJSON), 0o644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/data/videos", cfg.GetWorkingDir())
	assert.Equal(t, 240.0, cfg.GetFrameRate())
	assert.Equal(t, uint8(200), cfg.GetThreshold())
	assert.Equal(t, locate.KindRegionTrack, cfg.GetLocalizer())
	assert.Equal(t, image.Rect(10, 20, 40, 60), cfg.GetTrackBox())
	assert.True(t, cfg.GetAnchorYToOrigin())
	assert.Equal(t, "", cfg.GetIndexDB(), "explicit empty disables the index")
	assert.Equal(t, "cm", cfg.GetLengthUnit())
	// Omitted fields keep their defaults.
	assert.Equal(t, frame.RotateCCW90, cfg.GetRotation())
	assert.Equal(t, SegmenterOpenCV, cfg.GetSegmenter())
}

func TestLoadConfig_Rejects(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "cfg.yaml", `{}`},
		{"bad json", "bad.json", `{"frame_rate": }`},
		{"zero frame rate", "fps.json", `{"frame_rate": 0}`},
		{"threshold out of range", "th.json", `{"threshold": 300}`},
		{"unknown localizer", "loc.json", `{"localizer": "kalman"}`},
		{"unknown segmenter", "seg.json", `{"segmenter": "cuda"}`},
		{"unknown rotation", "rot.json", `{"rotation": "cw45"}`},
		{"short track box", "box.json", `{"track_box": [1, 2, 3]}`},
		{"empty track box", "box0.json", `{"track_box": [1, 2, 0, 4]}`},
		{"bad extension", "ext.json", `{"video_extensions": ["mp4"]}`},
		{"bad interval", "iv.json", `{"preview_interval": "soon"}`},
		{"absolute index", "idx.json", `{"index_db": "/tmp/runs.db"}`},
		{"unknown unit", "unit.json", `{"length_unit": "ft"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "motiontrace.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"frame_rate": 240, "threshold": 200}`), 0o644))

	t.Setenv("MOTIONTRACE_FRAME_RATE", "1000")
	t.Setenv("MOTIONTRACE_VIDEO_EXTENSIONS", ".mp4,.avi")

	cfg, err := Load(configPath, "")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, cfg.GetFrameRate())
	assert.Equal(t, uint8(200), cfg.GetThreshold())
	assert.Equal(t, []string{".mp4", ".avi"}, cfg.GetVideoExtensions())
}

func TestLoad_DotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	dotenv := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("MOTIONTRACE_SEGMENTER=native\nMOTIONTRACE_TRACK_BOX=1,2,3,4\n"), 0o644))

	// godotenv sets process variables; register them for cleanup first.
	t.Setenv("MOTIONTRACE_SEGMENTER", "")
	t.Setenv("MOTIONTRACE_TRACK_BOX", "")
	os.Unsetenv("MOTIONTRACE_SEGMENTER")
	os.Unsetenv("MOTIONTRACE_TRACK_BOX")

	cfg, err := Load("", dotenv)
	require.NoError(t, err)
	assert.Equal(t, SegmenterNative, cfg.GetSegmenter())
	assert.Equal(t, image.Rect(1, 2, 4, 6), cfg.GetTrackBox())
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Equal(t, 480.0, cfg.GetFrameRate())
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("MOTIONTRACE_THRESHOLD", "bright")
	_, err := Load("", "")
	assert.Error(t, err)
}
