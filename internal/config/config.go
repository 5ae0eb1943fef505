// Package config loads fiber-gauge settings from a YAML file, a .env file and
// the process environment, and validates the result.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables. Missing config files are not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "fiber-gauge.yaml"

// Environment variables read by ApplyEnv.
const (
	EnvConfig   = "FIBER_GAUGE_CONFIG"
	EnvCutoff   = "FIBER_GAUGE_CUTOFF"
	EnvPPM      = "FIBER_GAUGE_PPM"
	EnvLogLevel = "FIBER_GAUGE_LOG_LEVEL"
	EnvDetector = "FIBER_GAUGE_DETECTOR"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	Analysis   Analysis   `yaml:"analysis"`
	Edges      Edges      `yaml:"edges"`
	Annotation Annotation `yaml:"annotation"`
	Logging    Logging    `yaml:"logging"`
}

// Analysis holds the calibration and aggregation settings.
type Analysis struct {
	// Cutoff is the number of rows kept from the top of the micrograph;
	// rows below it usually hold the instrument's scale bar.
	Cutoff int `yaml:"cutoff" validate:"min=1,max=2000"`

	// PixelsPerMicrometer converts pixel diameters to physical units.
	PixelsPerMicrometer float64 `yaml:"pixels_per_micrometer" validate:"gt=0"`

	// SampleLimit caps how many diameters per quadrant enter the quadrant mean.
	SampleLimit int `yaml:"sample_limit" validate:"min=1"`

	// Parallel processes the four quadrants concurrently.
	Parallel bool `yaml:"parallel"`
}

// Edges holds the edge detector settings.
type Edges struct {
	LowThreshold  float64 `yaml:"low_threshold" validate:"gte=0"`
	HighThreshold float64 `yaml:"high_threshold" validate:"gtefield=LowThreshold"`
	L2Gradient    bool    `yaml:"l2_gradient"`
	BlurRadius    float64 `yaml:"blur_radius" validate:"gte=0"`
	Backend       string  `yaml:"backend" validate:"required"`
}

// Annotation holds the output rendering settings.
type Annotation struct {
	Color          string `yaml:"color" validate:"required,hexcolor"`
	Stroke         int    `yaml:"stroke" validate:"min=1,max=10"`
	QuadrantGuides bool   `yaml:"quadrant_guides"`
	PreviewSize    int    `yaml:"preview_size" validate:"min=16,max=4096"`
}

// Logging controls the logger built by the logging package.
type Logging struct {
	Level      string `yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Analysis.Cutoff = 872
	cfg.Analysis.PixelsPerMicrometer = 47
	cfg.Analysis.SampleLimit = 50
	cfg.Analysis.Parallel = true

	cfg.Edges.LowThreshold = 50
	cfg.Edges.HighThreshold = 150
	cfg.Edges.Backend = "native"

	cfg.Annotation.Color = "#00FF00"
	cfg.Annotation.Stroke = 1
	cfg.Annotation.PreviewSize = 400

	cfg.Logging.Level = "info"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 3
	cfg.Logging.MaxAgeDays = 7

	return cfg
}

// Load reads the .env file in the working directory if present, then the
// YAML file at path (or $FIBER_GAUGE_CONFIG, or DefaultPath when both are
// empty), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path = DefaultPath
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from the FIBER_GAUGE_* environment variables.
// Unset or empty variables leave the current value alone.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvCutoff); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvCutoff, v, err)
		}
		c.Analysis.Cutoff = n
	}
	if v := os.Getenv(EnvPPM); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPPM, v, err)
		}
		c.Analysis.PixelsPerMicrometer = f
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvDetector); v != "" {
		c.Edges.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Cutoff bounds, kept in step with the validate tag on Analysis.Cutoff.
const (
	MinCutoff = 1
	MaxCutoff = 2000
)

// ValidateCutoff checks a cutoff supplied outside the config file, such as a
// tool argument, against the same bounds as Analysis.Cutoff.
func ValidateCutoff(cutoff int) error {
	if err := validate.Var(cutoff, fmt.Sprintf("min=%d,max=%d", MinCutoff, MaxCutoff)); err != nil {
		return fmt.Errorf("cutoff %d outside %d..%d", cutoff, MinCutoff, MaxCutoff)
	}
	return nil
}

// Validate checks every field against its constraints and reports all
// violations in one error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
