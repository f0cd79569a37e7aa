package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-ir-query/internal/log"
	"github.com/l3aro/go-ir-query/pkg/ir"
	"github.com/l3aro/go-ir-query/pkg/layout"
	"github.com/l3aro/go-ir-query/pkg/textsource"
)

// Config holds all configuration for go-ir-query
type Config struct {
	// Bracket matching safety bounds; 0 disables a bound
	BracketMaxDistance int `yaml:"bracket_max_distance" env:"IRQ_BRACKET_MAX_DISTANCE"`
	BracketMaxDepth    int `yaml:"bracket_max_depth" env:"IRQ_BRACKET_MAX_DEPTH"`

	// Layout geometry
	LayoutStrategy    string `yaml:"layout_strategy" env:"IRQ_LAYOUT_STRATEGY"`
	LayoutStartX      int    `yaml:"layout_start_x" env:"IRQ_LAYOUT_START_X"`
	LayoutStartY      int    `yaml:"layout_start_y" env:"IRQ_LAYOUT_START_Y"`
	LayoutDistanceX   int    `yaml:"layout_distance_x" env:"IRQ_LAYOUT_DISTANCE_X"`
	LayoutDistanceY   int    `yaml:"layout_distance_y" env:"IRQ_LAYOUT_DISTANCE_Y"`
	LayoutColumnWidth int    `yaml:"layout_column_width" env:"IRQ_LAYOUT_COLUMN_WIDTH"`
	LayoutMaxDepth    int    `yaml:"layout_max_depth" env:"IRQ_LAYOUT_MAX_DEPTH"`

	// ReparseThreshold is the edited-character count that forces a full re-parse
	ReparseThreshold int `yaml:"reparse_threshold" env:"IRQ_REPARSE_THRESHOLD"`

	// Snapshot cache
	CacheDir  string `yaml:"cache_dir" env:"IRQ_CACHE_DIR"`
	CacheSize int    `yaml:"cache_size" env:"IRQ_CACHE_SIZE"`

	// Workers bounds concurrent parses during scans
	Workers int `yaml:"workers" env:"IRQ_WORKERS"`

	// Extensions of IR dump files picked up by scans
	Extensions []string `yaml:"extensions" env:"IRQ_EXTENSIONS"`

	// Logging
	LogLevel string `yaml:"log_level" env:"IRQ_LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"IRQ_LOG_JSON"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	lo := layout.DefaultOptions()
	return &Config{
		BracketMaxDistance: textsource.DefaultMaxDistance,
		BracketMaxDepth:    textsource.DefaultMaxDepth,
		LayoutStrategy:     string(lo.Strategy),
		LayoutStartX:       lo.StartX,
		LayoutStartY:       lo.StartY,
		LayoutDistanceX:    lo.DistanceX,
		LayoutDistanceY:    lo.DistanceY,
		LayoutColumnWidth:  lo.ColumnWidth,
		LayoutMaxDepth:     lo.MaxDepth,
		ReparseThreshold:   64,
		CacheDir:           ".irq/cache",
		CacheSize:          128,
		Workers:            4,
		Extensions:         []string{".ir"},
		LogLevel:           "info",
		LogJSON:            false,
	}
}

// globalConfigFilePath returns the global config file path (~/.irq/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".irq/config.yaml"
	}
	return filepath.Join(home, ".irq", "config.yaml")
}

// projectConfigFilePath returns the project-level config file path (./.irq/config.yaml)
func projectConfigFilePath() string {
	return ".irq/config.yaml"
}

// GlobalPath returns where the global config file lives.
func GlobalPath() string {
	return globalConfigFilePath()
}

// ProjectPath returns where the project config file lives.
func ProjectPath() string {
	return projectConfigFilePath()
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.irq/config.yaml)
// 3. Global config (~/.irq/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{globalConfigFilePath(), projectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// envInt binds an integer environment variable to a field.
type envInt struct {
	name  string
	field *int
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	ints := []envInt{
		{"IRQ_BRACKET_MAX_DISTANCE", &cfg.BracketMaxDistance},
		{"IRQ_BRACKET_MAX_DEPTH", &cfg.BracketMaxDepth},
		{"IRQ_LAYOUT_START_X", &cfg.LayoutStartX},
		{"IRQ_LAYOUT_START_Y", &cfg.LayoutStartY},
		{"IRQ_LAYOUT_DISTANCE_X", &cfg.LayoutDistanceX},
		{"IRQ_LAYOUT_DISTANCE_Y", &cfg.LayoutDistanceY},
		{"IRQ_LAYOUT_COLUMN_WIDTH", &cfg.LayoutColumnWidth},
		{"IRQ_LAYOUT_MAX_DEPTH", &cfg.LayoutMaxDepth},
		{"IRQ_REPARSE_THRESHOLD", &cfg.ReparseThreshold},
		{"IRQ_CACHE_SIZE", &cfg.CacheSize},
		{"IRQ_WORKERS", &cfg.Workers},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		i, ok := parseInt(v)
		if !ok {
			return fmt.Errorf("%s: invalid integer %q", e.name, v)
		}
		*e.field = i
	}

	if v := os.Getenv("IRQ_LAYOUT_STRATEGY"); v != "" {
		cfg.LayoutStrategy = v
	}
	if v := os.Getenv("IRQ_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("IRQ_EXTENSIONS"); v != "" {
		cfg.Extensions = splitList(v)
	}
	if v := os.Getenv("IRQ_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("IRQ_LOG_JSON"); v != "" {
		cfg.LogJSON = v == "true" || v == "1" || v == "yes"
	}
	return nil
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	if c.BracketMaxDistance < 0 {
		return fmt.Errorf("bracket_max_distance must be non-negative")
	}
	if c.BracketMaxDepth < 0 {
		return fmt.Errorf("bracket_max_depth must be non-negative")
	}
	if _, err := layout.ParseStrategy(c.LayoutStrategy); err != nil {
		return fmt.Errorf("layout_strategy: %w", err)
	}
	if c.LayoutDistanceX <= 0 || c.LayoutDistanceY <= 0 {
		return fmt.Errorf("layout distances must be positive")
	}
	if c.LayoutColumnWidth <= 0 {
		return fmt.Errorf("layout_column_width must be positive")
	}
	if c.LayoutMaxDepth <= 0 {
		return fmt.Errorf("layout_max_depth must be positive")
	}
	if c.ReparseThreshold <= 0 {
		return fmt.Errorf("reparse_threshold must be positive")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("at least one IR file extension is required")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("invalid extension %q (must start with '.')", ext)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseOptions returns the extraction options described by the config.
func (c *Config) ParseOptions() ir.Options {
	return ir.Options{
		Brackets: textsource.Limits{
			MaxDistance: c.BracketMaxDistance,
			MaxDepth:    c.BracketMaxDepth,
		},
	}
}

// LayoutOptions returns the layout geometry described by the config.
func (c *Config) LayoutOptions() layout.Options {
	strategy, err := layout.ParseStrategy(c.LayoutStrategy)
	if err != nil {
		strategy = layout.Tree
	}
	return layout.Options{
		Strategy:    strategy,
		StartX:      c.LayoutStartX,
		StartY:      c.LayoutStartY,
		DistanceX:   c.LayoutDistanceX,
		DistanceY:   c.LayoutDistanceY,
		ColumnWidth: c.LayoutColumnWidth,
		MaxDepth:    c.LayoutMaxDepth,
	}
}

// Logger builds the logger described by the config, writing to w.
func (c *Config) Logger(w io.Writer) *log.DefaultLogger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	return log.New(log.LoggerConfig{
		Level:      level,
		JSONOutput: c.LogJSON,
		Output:     w,
	})
}

// CachePath is the snapshot cache file inside CacheDir.
func (c *Config) CachePath() string {
	return filepath.Join(c.CacheDir, "graphs.msgpack")
}

// parseInt attempts to parse a string as int
func parseInt(s string) (int, bool) {
	var i int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &i); err != nil {
		return 0, false
	}
	return i, true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
