package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/cyclopcam/gatecount/pkg/nn"
)

var ErrInvalidConfidence = errors.New("Confidence threshold must be between 0 and 1")
var ErrNoStorage = errors.New("One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')")

type Config struct {
	Listen    string          `json:"listen"`    // HTTP listen address, eg ":8080"
	DB        dbh.DBConfig    `json:"db"`        // Counting sessions and crossings
	Storage   StorageConfig   `json:"storage"`   // Where count reports are written
	Source    SourceConfig    `json:"source"`    // The video to count
	Detector  DetectorConfig  `json:"detector"`  // Object detection
	Gate      GateConfig      `json:"gate"`      // Gate line and track bookkeeping
	RateLimit RateLimitConfig `json:"rateLimit"` // HTTP API rate limit
}

// One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')
type StorageConfig struct {
	Filesystem *StorageConfigFS  `json:"filesystem"`
	GCS        *StorageConfigGCS `json:"gcs"`
}

type StorageConfigFS struct {
	Root string `json:"root"` // Path to the root of the filesystem
}

type StorageConfigGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
	Public bool   `json:"public"` // Whether the bucket is public
}

type SourceConfig struct {
	Path     string  `json:"path"`     // Video file, stream URL, capture device number, or a directory of images
	FPS      float64 `json:"fps"`      // Frame rate for image directories (video files carry their own)
	MaxWidth int     `json:"maxWidth"` // Downscale frames wider than this before counting. Zero keeps the native size.
}

type DetectorConfig struct {
	Model          string   `json:"model"`          // Model identifier, eg "yolov8n". Resolved inside ModelDir.
	ModelDir       string   `json:"modelDir"`       // Directory with <model>.onnx and optionally <model>.json
	Width          int      `json:"width"`          // NN input width, if there is no <model>.json
	Height         int      `json:"height"`         // NN input height, if there is no <model>.json
	Confidence     float32  `json:"confidence"`     // Detections below this are discarded
	InferenceWidth int      `json:"inferenceWidth"` // Frames are scaled down to this width before detection
	Classes        []string `json:"classes"`        // Only these classes are tracked
	Labels         string   `json:"labels"`         // If set, replay this labels file instead of running a detector
}

type GateConfig struct {
	LinePosition float64 `json:"linePosition"` // Fraction of frame height. Exclusive range (0, 1).
	LineY        int     `json:"lineY"`        // Fixed line in pixels. Overrides linePosition when positive.
	MaxTrackAge  int     `json:"maxTrackAge"`  // Frames before an unseen track is forgotten. Zero disables eviction.
	ShowCounts   bool    `json:"showCounts"`   // Draw running counts onto frames
}

type RateLimitConfig struct {
	Requests      int `json:"requests"`      // Requests allowed per IP, per window. Zero disables rate limiting.
	WindowSeconds int `json:"windowSeconds"` // Length of the window
}

// ModelFile returns the path of the model weights
func (d *DetectorConfig) ModelFile() string {
	return filepath.Join(d.ModelDir, d.Model+".onnx")
}

// ModelConfigFile returns the path of the optional model config JSON
func (d *DetectorConfig) ModelConfigFile() string {
	return filepath.Join(d.ModelDir, d.Model+".json")
}

// GateSessionConfig converts to the counter's own config
func (c *Config) GateSessionConfig() gate.Config {
	return gate.Config{
		LinePosition: c.Gate.LinePosition,
		LineY:        c.Gate.LineY,
		MaxTrackAge:  c.Gate.MaxTrackAge,
		ShowCounts:   c.Gate.ShowCounts,
	}
}

// Default returns a config that works out of the box, with a local sqlite DB and report directory
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DB:     dbh.MakeSqliteConfig("gatecount.sqlite"),
		Storage: StorageConfig{
			Filesystem: &StorageConfigFS{Root: "reports"},
		},
		Source: SourceConfig{
			FPS: 25,
		},
		Detector: DetectorConfig{
			Model:          "yolov8n",
			ModelDir:       "models",
			Width:          640,
			Height:         640,
			Confidence:     nn.DefaultProbabilityThreshold,
			InferenceWidth: 640,
			Classes:        []string{"car", "motorcycle", "bus", "truck"},
		},
		Gate: GateConfig{
			LinePosition: gate.DefaultLinePosition,
			MaxTrackAge:  gate.DefaultMaxTrackAge,
			ShowCounts:   true,
		},
		RateLimit: RateLimitConfig{
			Requests:      120,
			WindowSeconds: 60,
		},
	}
}

// Load reads a JSON config file. Values missing from the file keep their defaults.
func Load(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := Default()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !(c.Detector.Confidence >= 0 && c.Detector.Confidence <= 1) {
		return fmt.Errorf("%w (got %v)", ErrInvalidConfidence, c.Detector.Confidence)
	}
	gateCfg := c.GateSessionConfig()
	if err := gateCfg.Validate(); err != nil {
		return err
	}
	if c.Storage.Filesystem == nil && c.Storage.GCS == nil {
		return ErrNoStorage
	}
	if c.Storage.GCS != nil && c.Storage.GCS.Bucket == "" {
		return fmt.Errorf("GCS storage needs a bucket name")
	}
	if c.Detector.Labels == "" && c.Detector.Model == "" {
		return fmt.Errorf("Either detector.model or detector.labels must be set")
	}
	if c.RateLimit.Requests < 0 || (c.RateLimit.Requests > 0 && c.RateLimit.WindowSeconds <= 0) {
		return fmt.Errorf("Invalid rate limit %v requests per %v seconds", c.RateLimit.Requests, c.RateLimit.WindowSeconds)
	}
	return nil
}
