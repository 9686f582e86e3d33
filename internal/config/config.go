package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"fidx/internal/logging"
)

// Config represents the main configuration for fidx.
type Config struct {
	InstanceID  string         `toml:"instance_id"`
	BaseDir     string         `toml:"base_dir"`
	LogDir      string         `toml:"log_dir"`
	LogLevel    string         `toml:"log_level"`    // debug|info|warn|error
	MetricsAddr string         `toml:"metrics_addr"` // empty disables /metrics
	Database    DatabaseConfig `toml:"database"`
	Queue       QueueConfig    `toml:"queue"`
	Scan        ScanConfig     `toml:"scan"`
	Tagging     TaggingConfig  `toml:"tagging"`
	Rules       []RuleConfig   `toml:"rules"`
}

// DatabaseConfig represents configuration for the index database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// QueueConfig sizes the event queue between the watcher and the index.
type QueueConfig struct {
	MaxCapacity   int    `toml:"max_capacity"`
	DebounceDelay string `toml:"debounce_delay"` // Go duration, e.g. "500ms"
	BatchSize     int    `toml:"batch_size"`
}

// ScanConfig holds defaults for scans and the ignore patterns applied to
// scans and watches alike.
type ScanConfig struct {
	Recursive       bool     `toml:"recursive"`
	Extensions      []string `toml:"extensions"`
	ExcludePatterns []string `toml:"exclude_patterns"`
	MaxDepth        int      `toml:"max_depth"` // 0 = unlimited; the root is depth 0
	Ignore          []string `toml:"ignore"`
}

// TaggingConfig controls the rule engine.
type TaggingConfig struct {
	UseDefaultRules bool `toml:"use_default_rules"`
	TagCacheSize    int  `toml:"tag_cache_size"`
}

// Default values written by NewConfig.
const (
	DefaultMaxCapacity   = 10000
	DefaultDebounceDelay = 500 * time.Millisecond
	DefaultBatchSize     = 100
	DefaultTagCacheSize  = 256
)

// NewConfig creates a new Config with default settings rooted at baseDir.
func NewConfig(instanceID, baseDir string) *Config {
	return &Config{
		InstanceID: instanceID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		LogLevel:   "info",
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Queue: QueueConfig{
			MaxCapacity:   DefaultMaxCapacity,
			DebounceDelay: DefaultDebounceDelay.String(),
			BatchSize:     DefaultBatchSize,
		},
		Scan: ScanConfig{
			Recursive:       true,
			Extensions:      []string{},
			ExcludePatterns: []string{"node_modules"},
			Ignore:          []string{"*.tmp", "*.swp", ".DS_Store"},
		},
		Tagging: TaggingConfig{
			UseDefaultRules: true,
			TagCacheSize:    DefaultTagCacheSize,
		},
	}
}

// Validate checks the fields that are parsed later, so a bad config fails
// before anything is opened.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.Queue.Debounce(); err != nil {
		return err
	}
	if c.Scan.MaxDepth < 0 {
		return fmt.Errorf("scan.max_depth must not be negative, got %d", c.Scan.MaxDepth)
	}
	if _, err := c.BuildRules(); err != nil {
		return err
	}
	return nil
}

// Debounce parses DebounceDelay. An empty value means the default.
func (q QueueConfig) Debounce() (time.Duration, error) {
	if q.DebounceDelay == "" {
		return DefaultDebounceDelay, nil
	}
	d, err := time.ParseDuration(q.DebounceDelay)
	if err != nil {
		return 0, fmt.Errorf("invalid queue.debounce_delay %q: %w", q.DebounceDelay, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("queue.debounce_delay must not be negative, got %s", d)
	}
	return d, nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
