// Package config loads motiontrace settings from an optional JSON file,
// an optional .env file and MOTIONTRACE_* environment variables, in that
// order of increasing precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/locate"
	"github.com/banshee-data/motion.trace/internal/units"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MOTIONTRACE_"

// Segmenter backends.
const (
	SegmenterOpenCV = "opencv"
	SegmenterNative = "native"
)

// Config is the root configuration. Every field is optional; the Get*
// methods supply defaults for fields left unset.
type Config struct {
	WorkingDir      *string  `json:"working_dir,omitempty" env:"WORKING_DIR"`
	FrameRate       *float64 `json:"frame_rate,omitempty" env:"FRAME_RATE"`
	Threshold       *int     `json:"threshold,omitempty" env:"THRESHOLD"`
	Localizer       *string  `json:"localizer,omitempty" env:"LOCALIZER"`
	Segmenter       *string  `json:"segmenter,omitempty" env:"SEGMENTER"`
	Rotation        *string  `json:"rotation,omitempty" env:"ROTATION"`
	VideoExtensions []string `json:"video_extensions,omitempty" env:"VIDEO_EXTENSIONS" envSeparator:","`
	AnchorYToOrigin *bool    `json:"anchor_y_to_origin,omitempty" env:"ANCHOR_Y_TO_ORIGIN"`
	MetricsListen   *string  `json:"metrics_listen,omitempty" env:"METRICS_LISTEN"`
	LengthUnit      *string  `json:"length_unit,omitempty" env:"LENGTH_UNIT"`

	// TrackBox is the initial region-track box as [x, y, w, h].
	TrackBox []int `json:"track_box,omitempty" env:"TRACK_BOX" envSeparator:","`

	// IndexDB is relative to the working directory.
	IndexDB *string `json:"index_db,omitempty" env:"INDEX_DB"`

	// PreviewInterval is a duration string like "250ms".
	PreviewInterval *string `json:"preview_interval,omitempty" env:"PREVIEW_INTERVAL"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() *Config {
	return &Config{
		WorkingDir:      ptrString("./Videos"),
		FrameRate:       ptrFloat64(frame.DefaultFrameRate),
		Threshold:       ptrInt(locate.DefaultThreshold),
		Localizer:       ptrString(string(locate.KindSegmentation)),
		Segmenter:       ptrString(SegmenterOpenCV),
		Rotation:        ptrString(string(frame.RotateCCW90)),
		VideoExtensions: []string{".mp4"},
		AnchorYToOrigin: ptrBool(false),
		IndexDB:         ptrString("runs.db"),
		PreviewInterval: ptrString("250ms"),
		MetricsListen:   ptrString(""),
		LengthUnit:      ptrString(units.MM),
	}
}

// LoadConfig loads a Config from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file are left nil and fall back to defaults.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Load builds the effective configuration: the JSON file at path (if path is
// non-empty), then the .env file at dotenvPath (if it exists), then the
// process environment.
func Load(path, dotenvPath string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if dotenvPath != "" {
		// godotenv never overrides variables already set in the environment.
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays MOTIONTRACE_* environment variables onto cfg and
// re-validates it.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.FrameRate != nil && !(*c.FrameRate > 0) {
		return fmt.Errorf("frame_rate must be positive, got %v", *c.FrameRate)
	}
	if c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 255) {
		return fmt.Errorf("threshold must be between 0 and 255, got %d", *c.Threshold)
	}
	if c.Localizer != nil {
		if _, err := locate.ParseKind(*c.Localizer); err != nil {
			return err
		}
	}
	if c.Segmenter != nil && *c.Segmenter != SegmenterOpenCV && *c.Segmenter != SegmenterNative {
		return fmt.Errorf("segmenter must be %s or %s, got %q", SegmenterOpenCV, SegmenterNative, *c.Segmenter)
	}
	if c.Rotation != nil {
		if _, err := frame.ParseRotation(*c.Rotation); err != nil {
			return err
		}
	}
	for _, ext := range c.VideoExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("video extension %q must start with a dot", ext)
		}
	}
	if c.TrackBox != nil {
		if len(c.TrackBox) != 4 {
			return fmt.Errorf("track_box must be [x, y, w, h], got %v", c.TrackBox)
		}
		if c.TrackBox[2] <= 0 || c.TrackBox[3] <= 0 {
			return fmt.Errorf("track_box width and height must be positive, got %v", c.TrackBox)
		}
	}
	if c.PreviewInterval != nil && *c.PreviewInterval != "" {
		d, err := time.ParseDuration(*c.PreviewInterval)
		if err != nil {
			return fmt.Errorf("invalid preview_interval '%s': %w", *c.PreviewInterval, err)
		}
		if d < 0 {
			return fmt.Errorf("preview_interval must not be negative, got %s", d)
		}
	}
	if c.IndexDB != nil && filepath.IsAbs(*c.IndexDB) {
		return fmt.Errorf("index_db must be relative to the working directory, got %q", *c.IndexDB)
	}
	if c.LengthUnit != nil && !units.IsValid(*c.LengthUnit) {
		return fmt.Errorf("length_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.LengthUnit)
	}
	return nil
}

// GetWorkingDir returns the working directory or the default.
func (c *Config) GetWorkingDir() string {
	if c.WorkingDir == nil || *c.WorkingDir == "" {
		return "./Videos" // default
	}
	return *c.WorkingDir
}

// GetFrameRate returns the frame rate or the default.
func (c *Config) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return frame.DefaultFrameRate
	}
	return *c.FrameRate
}

// GetThreshold returns the binarization threshold or the default.
func (c *Config) GetThreshold() uint8 {
	if c.Threshold == nil {
		return locate.DefaultThreshold
	}
	return uint8(*c.Threshold)
}

// GetLocalizer returns the localizer kind or the default.
func (c *Config) GetLocalizer() locate.Kind {
	if c.Localizer == nil {
		return locate.KindSegmentation
	}
	k, err := locate.ParseKind(*c.Localizer)
	if err != nil {
		return locate.KindSegmentation // default on parse error
	}
	return k
}

// GetSegmenter returns the segmenter backend or the default.
func (c *Config) GetSegmenter() string {
	if c.Segmenter == nil || *c.Segmenter == "" {
		return SegmenterOpenCV
	}
	return *c.Segmenter
}

// GetRotation returns the one-time frame rotation or the default.
func (c *Config) GetRotation() frame.Rotation {
	if c.Rotation == nil {
		return frame.RotateCCW90
	}
	r, err := frame.ParseRotation(*c.Rotation)
	if err != nil {
		return frame.RotateCCW90 // default on parse error
	}
	return r
}

// GetVideoExtensions returns the video extensions or the default.
func (c *Config) GetVideoExtensions() []string {
	if len(c.VideoExtensions) == 0 {
		return []string{".mp4"}
	}
	return c.VideoExtensions
}

// GetTrackBox returns the initial region-track box, or an empty rectangle
// when none is configured.
func (c *Config) GetTrackBox() image.Rectangle {
	if len(c.TrackBox) != 4 {
		return image.Rectangle{}
	}
	x, y, w, h := c.TrackBox[0], c.TrackBox[1], c.TrackBox[2], c.TrackBox[3]
	return image.Rect(x, y, x+w, y+h)
}

// GetAnchorYToOrigin returns the anchor_y_to_origin value or the default.
func (c *Config) GetAnchorYToOrigin() bool {
	if c.AnchorYToOrigin == nil {
		return false
	}
	return *c.AnchorYToOrigin
}

// GetIndexDB returns the run index file name or the default. An explicit
// empty string disables the index.
func (c *Config) GetIndexDB() string {
	if c.IndexDB == nil {
		return "runs.db"
	}
	return *c.IndexDB
}

// GetPreviewInterval parses and returns the PreviewInterval as a time.Duration.
func (c *Config) GetPreviewInterval() time.Duration {
	if c.PreviewInterval == nil || *c.PreviewInterval == "" {
		return 250 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.PreviewInterval)
	if err != nil {
		return 250 * time.Millisecond // default on parse error
	}
	return d
}

// GetMetricsListen returns the listen address for /metrics and the control
// API; empty disables the server.
func (c *Config) GetMetricsListen() string {
	if c.MetricsListen == nil {
		return ""
	}
	return *c.MetricsListen
}

// GetLengthUnit returns the calibration length unit or the default.
func (c *Config) GetLengthUnit() string {
	if c.LengthUnit == nil || *c.LengthUnit == "" {
		return units.MM
	}
	return *c.LengthUnit
}
