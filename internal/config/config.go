// Package config holds every tunable constant of the specimen pipeline in one
// place and loads overrides from the environment.
//
// The defaults reproduce the empirically tuned values the detector was built
// around (20 px margin, 8-85% single-specimen area window, 2-60% multi-specimen
// window). They are not derived from first principles and should be re-tuned
// for specimen types that differ from the original training material.
//
// # Sources
//
// Load applies, in order:
//  1. Default()
//  2. an optional .env file (SPECIMEN_ENV_FILE, default ".env")
//  3. SPECIMEN_* environment variables
//
// and validates the result before returning it.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Detection configures both detection modes and the working-resolution contract.
type Detection struct {
	// SingleMaxDim is the working dimension for single-specimen detection.
	SingleMaxDim int `json:"single_max_dim" validate:"gt=0"`

	// MultiMaxDim is the working dimension for multi-specimen detection.
	MultiMaxDim int `json:"multi_max_dim" validate:"gt=0"`

	// Margin is the fixed pixel margin added around every rescaled box.
	Margin int `json:"margin" validate:"gte=0"`

	// SingleMinAreaRatio and SingleMaxAreaRatio bound a single-mode candidate's
	// area as a fraction of the working image.
	SingleMinAreaRatio float64 `json:"single_min_area_ratio" validate:"gte=0,lt=1"`
	SingleMaxAreaRatio float64 `json:"single_max_area_ratio" validate:"gt=0,lte=1,gtfield=SingleMinAreaRatio"`

	// TargetAreaRatio is the area fraction at which the area score saturates.
	TargetAreaRatio float64 `json:"target_area_ratio" validate:"gt=0,lte=1"`

	// SaliencyBelow enables the saliency strategy when the best score is lower.
	SaliencyBelow float64 `json:"saliency_below"`

	// FallbackBelow selects the center-crop fallback when the best score is lower.
	FallbackBelow float64 `json:"fallback_below"`

	// FallbackInset is the per-side fraction trimmed by the fallback box.
	FallbackInset float64 `json:"fallback_inset" validate:"gte=0,lt=0.5"`

	// CannyLow and CannyHigh are the hysteresis thresholds (0-255).
	CannyLow  int `json:"canny_low" validate:"gte=0,lte=255"`
	CannyHigh int `json:"canny_high" validate:"gte=0,lte=255,gtefield=CannyLow"`

	// MinAreaRatio and MaxAreaRatio bound multi-mode candidates.
	MinAreaRatio float64 `json:"min_area_ratio" validate:"gte=0,lt=1"`
	MaxAreaRatio float64 `json:"max_area_ratio" validate:"gt=0,lte=1,gtfield=MinAreaRatio"`

	// MaxAspectRatio rejects slivers whose long/short side ratio is larger.
	MaxAspectRatio float64 `json:"max_aspect_ratio" validate:"gte=1"`

	// IoUThreshold is the non-max suppression overlap limit.
	IoUThreshold float64 `json:"iou_threshold" validate:"gt=0,lte=1"`

	// MaxSpecimens caps the number of multi-mode detections.
	MaxSpecimens int `json:"max_specimens" validate:"gt=0"`

	// SaturationThreshold is the 8-bit HSV saturation cut for the colour strategy.
	SaturationThreshold uint8 `json:"saturation_threshold"`

	// AdaptiveBlock and AdaptiveC parameterize the adaptive Gaussian threshold.
	AdaptiveBlock int     `json:"adaptive_block" validate:"gt=1"`
	AdaptiveC     float64 `json:"adaptive_c"`

	// BackgroundClusterRatio skips k-means clusters larger than this fraction.
	BackgroundClusterRatio float64 `json:"background_cluster_ratio" validate:"gt=0,lte=1"`

	// Seed drives k-means++ initialization so detection stays reproducible.
	Seed int64 `json:"seed"`

	// ClassName labels multi-mode detections.
	ClassName string `json:"class_name" validate:"required"`
}

// Dataset configures training-set preparation.
type Dataset struct {
	// MaxDim is the normalization dimension for corrected training images and
	// for the inference image the predictor sees.
	MaxDim int `json:"max_dim" validate:"gt=0"`

	TestSplit         float64 `json:"test_split" validate:"gte=0,lt=1"`
	Seed              int64   `json:"seed"`
	TargetOrientation string  `json:"target_orientation" validate:"oneof=left right"`

	// HeadLandmarkID designates the landmark compared to the body centroid.
	HeadLandmarkID int `json:"head_landmark_id"`

	// Workers bounds parallel image processing.
	Workers int `json:"workers" validate:"gt=0"`
}

// Server configures the MCP stdio server.
type Server struct {
	// MaxRequestBytes bounds one JSON-RPC line on stdin.
	MaxRequestBytes int `json:"max_request_bytes" validate:"gte=65536"`

	// BoxColor and MarkColor are the overlay colors, "#RRGGBB[AA]".
	BoxColor  string `json:"box_color" validate:"hexcolor"`
	MarkColor string `json:"mark_color" validate:"hexcolor"`
}

// Log configures the logger.
type Log struct {
	Level string `json:"level" validate:"oneof=trace debug info warn error"`

	// File enables a rotated log file in addition to stderr when non-empty.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" validate:"gte=0"`
}

// Config is the complete configuration threaded through every stage.
type Config struct {
	Detection Detection `json:"detection"`
	Dataset   Dataset   `json:"dataset"`
	Server    Server    `json:"server"`
	Log       Log       `json:"log"`

	// ProjectRoot is the default project directory for dataset/model tools.
	ProjectRoot string `json:"project_root"`

	// HistoryDB is the SQLite file recording predictions; empty disables it.
	HistoryDB string `json:"history_db"`
}

// DefaultDetection returns the tuned detection defaults.
func DefaultDetection() Detection {
	return Detection{
		SingleMaxDim:           1000,
		MultiMaxDim:            1500,
		Margin:                 20,
		SingleMinAreaRatio:     0.08,
		SingleMaxAreaRatio:     0.85,
		TargetAreaRatio:        0.4,
		SaliencyBelow:          0.4,
		FallbackBelow:          0.25,
		FallbackInset:          0.15,
		CannyLow:               50,
		CannyHigh:              150,
		MinAreaRatio:           0.02,
		MaxAreaRatio:           0.6,
		MaxAspectRatio:         10,
		IoUThreshold:           0.3,
		MaxSpecimens:           20,
		SaturationThreshold:    30,
		AdaptiveBlock:          21,
		AdaptiveC:              5,
		BackgroundClusterRatio: 0.7,
		Seed:                   42,
		ClassName:              "specimen",
	}
}

// DefaultDataset returns the dataset preparation defaults.
func DefaultDataset() Dataset {
	return Dataset{
		MaxDim:            1500,
		TestSplit:         0.2,
		Seed:              42,
		TargetOrientation: "left",
		HeadLandmarkID:    0,
		Workers:           runtime.NumCPU(),
	}
}

// Default returns a complete configuration with all defaults applied.
func Default() Config {
	return Config{
		Detection: DefaultDetection(),
		Dataset:   DefaultDataset(),
		Server: Server{
			MaxRequestBytes: 1024 * 1024,
			BoxColor:        "#00FF00",
			MarkColor:       "#FF0000",
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxAgeDays: 7,
			MaxBackups: 3,
		},
		ProjectRoot: ".",
	}
}

// Load builds the configuration from defaults, an optional .env file and the
// SPECIMEN_* environment variables.
func Load() (Config, error) {
	envFile := os.Getenv("SPECIMEN_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct constraints on the configuration.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"SPECIMEN_LOG_LEVEL":          &cfg.Log.Level,
		"SPECIMEN_LOG_FILE":           &cfg.Log.File,
		"SPECIMEN_PROJECT_ROOT":       &cfg.ProjectRoot,
		"SPECIMEN_HISTORY_DB":         &cfg.HistoryDB,
		"SPECIMEN_TARGET_ORIENTATION": &cfg.Dataset.TargetOrientation,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SPECIMEN_MARGIN":          &cfg.Detection.Margin,
		"SPECIMEN_SINGLE_MAX_DIM":  &cfg.Detection.SingleMaxDim,
		"SPECIMEN_MULTI_MAX_DIM":   &cfg.Detection.MultiMaxDim,
		"SPECIMEN_MAX_SPECIMENS":   &cfg.Detection.MaxSpecimens,
		"SPECIMEN_DATASET_MAX_DIM": &cfg.Dataset.MaxDim,
		"SPECIMEN_HEAD_LANDMARK":   &cfg.Dataset.HeadLandmarkID,
		"SPECIMEN_WORKERS":         &cfg.Dataset.Workers,
		"SPECIMEN_MAX_REQUEST":     &cfg.Server.MaxRequestBytes,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"SPECIMEN_MIN_AREA_RATIO": &cfg.Detection.MinAreaRatio,
		"SPECIMEN_MAX_AREA_RATIO": &cfg.Detection.MaxAreaRatio,
		"SPECIMEN_IOU_THRESHOLD":  &cfg.Detection.IoUThreshold,
		"SPECIMEN_TEST_SPLIT":     &cfg.Dataset.TestSplit,
	}
	for key, dst := range floats {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = f
		}
	}

	if v, ok := os.LookupEnv("SPECIMEN_SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SPECIMEN_SEED: %w", err)
		}
		cfg.Dataset.Seed = n
	}
	return nil
}
