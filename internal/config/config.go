// Package config resolves pdfpulse settings from defaults, an optional YAML
// file, an optional .env file and PDFPULSE_* environment variables, in that
// order of precedence (later wins). Command-line flags are applied on top by
// the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Thekiidd/pdfpulse/compose"
	"github.com/Thekiidd/pdfpulse/compress"
	"github.com/Thekiidd/pdfpulse/validate"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PDFPULSE_"

// ByteSize is a byte count that reads from YAML and the environment either
// as a plain integer or as a human-readable size such as "5 MiB".
type ByteSize int64

// ParseByteSize parses "5242880", "5MiB" or "5 MB".
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Config holds every tunable of the library and CLI.
type Config struct {
	MaxFileSize     ByteSize `yaml:"max_file_size"`
	PageWidth       float64  `yaml:"page_width"`  // points
	PageHeight      float64  `yaml:"page_height"` // points
	JPEGQuality     int      `yaml:"jpeg_quality"`
	MaxDimension    int      `yaml:"max_dimension"` // pixels, 0 keeps image size
	CompressStreams bool     `yaml:"compress_streams"`
	StatsPath       string   `yaml:"stats_path"`
	Workers         int      `yaml:"workers"`
	LogLevel        string   `yaml:"log_level"`
	OutputDir       string   `yaml:"output_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxFileSize:     ByteSize(validate.DefaultMaxFileSize),
		PageWidth:       compose.DefaultPageWidth,
		PageHeight:      compose.DefaultPageHeight,
		JPEGQuality:     compress.DefaultQuality,
		CompressStreams: true,
		StatsPath:       defaultStatsPath(),
		Workers:         4,
		LogLevel:        "warn",
		OutputDir:       ".",
	}
}

func defaultStatsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pdfpulse.db"
	}
	return filepath.Join(dir, "pdfpulse", "stats.db")
}

// Load resolves the configuration. configPath names an optional YAML file;
// an empty path skips it, a missing file is an error. envPath names an
// optional .env file; a missing one is ignored. Variables already set in
// the process environment win over the .env file.
func Load(configPath, envPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	fileVars := map[string]string{}
	if envPath != "" {
		vars, err := godotenv.Read(envPath)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, os.ErrNotExist):
			logrus.WithField("env_path", envPath).Debug("no .env file, using the process environment")
		default:
			return nil, fmt.Errorf("failed to read env file %s: %w", envPath, err)
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides fields from PDFPULSE_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("MAX_FILE_SIZE"); ok {
		n, err := ParseByteSize(v)
		if err != nil {
			return fmt.Errorf("%sMAX_FILE_SIZE: %w", EnvPrefix, err)
		}
		c.MaxFileSize = n
	}
	floats := []struct {
		name string
		dst  *float64
	}{
		{"PAGE_WIDTH", &c.PageWidth},
		{"PAGE_HEIGHT", &c.PageHeight},
	}
	for _, f := range floats {
		if v, ok := get(f.name); ok {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, f.name, err)
			}
			*f.dst = n
		}
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"JPEG_QUALITY", &c.JPEGQuality},
		{"MAX_DIMENSION", &c.MaxDimension},
		{"WORKERS", &c.Workers},
	}
	for _, f := range ints {
		if v, ok := get(f.name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, f.name, err)
			}
			*f.dst = n
		}
	}
	if v, ok := get("COMPRESS_STREAMS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCOMPRESS_STREAMS: %w", EnvPrefix, err)
		}
		c.CompressStreams = b
	}
	if v, ok := get("STATS_PATH"); ok {
		c.StatsPath = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("OUTPUT_DIR"); ok {
		c.OutputDir = v
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.MaxFileSize <= 0:
		return fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)
	case c.PageWidth <= 0 || c.PageHeight <= 0:
		return fmt.Errorf("page size must be positive, got %gx%g", c.PageWidth, c.PageHeight)
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality)
	case c.MaxDimension < 0:
		return fmt.Errorf("max_dimension must not be negative, got %d", c.MaxDimension)
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Level returns the configured log level, warn when unparseable.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.WarnLevel
	}
	return level
}

// Named page sizes in points.
var pageSizes = map[string][2]float64{
	"letter": {612, 792},
	"legal":  {612, 1008},
	"a4":     {595.28, 841.89},
	"a5":     {419.53, 595.28},
}

// PageSize parses a named size ("a4", "letter") or WIDTHxHEIGHT in points.
func PageSize(s string) (width, height float64, err error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if wh, ok := pageSizes[s]; ok {
		return wh[0], wh[1], nil
	}
	ws, hs, ok := strings.Cut(s, "x")
	if ok {
		w, werr := strconv.ParseFloat(ws, 64)
		h, herr := strconv.ParseFloat(hs, 64)
		if werr == nil && herr == nil && w > 0 && h > 0 {
			return w, h, nil
		}
	}
	return 0, 0, fmt.Errorf("invalid page size %q", s)
}
