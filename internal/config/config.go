package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
)

const (
	// ProjectConfigName is the per-directory config file name.
	ProjectConfigName = ".gamescout.yaml"

	envPrefix = "GAMESCOUT_"
)

// Config represents the complete gamescout configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Catalog   CatalogConfig   `yaml:"catalog" json:"catalog"`
	Provider  ProviderConfig  `yaml:"provider" json:"provider"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`

	// RulesPath points at an optional YAML file overriding the built-in
	// franchise, synonym, intent and scoring tables. Empty uses built-ins.
	RulesPath string `yaml:"rules_path" json:"rules_path"`
}

// CatalogConfig selects and locates the primary catalog.
type CatalogConfig struct {
	// Backend is "sqlite" (default), "bleve", or "postgres".
	Backend   string `yaml:"backend" json:"backend"`
	Path      string `yaml:"path" json:"path"`
	BlevePath string `yaml:"bleve_path" json:"bleve_path"`
	DSN       string `yaml:"dsn" json:"dsn"`

	// PageSize is how many records each sub-query may return.
	PageSize       int           `yaml:"page_size" json:"page_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// ProviderConfig configures the external metadata provider. An empty
// endpoint disables the provider.
type ProviderConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	APIKey   string `yaml:"api_key" json:"-"`

	// Timeout bounds a single provider call.
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second" json:"rate_per_second"`
	Burst         int           `yaml:"burst" json:"burst"`
	MaxFailures   int           `yaml:"max_failures" json:"max_failures"`
	ResetTimeout  time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
}

// SearchConfig tunes the retrieval stage.
type SearchConfig struct {
	MaxVariants     int           `yaml:"max_variants" json:"max_variants"`
	MaxInFlight     int           `yaml:"max_in_flight" json:"max_in_flight"`
	ViabilityFloor  int           `yaml:"viability_floor" json:"viability_floor"`
	PipelineTimeout time.Duration `yaml:"pipeline_timeout" json:"pipeline_timeout"`
	Retries         int           `yaml:"retries" json:"retries"`
}

// CacheConfig sizes the response cache. Size 0 disables caching.
type CacheConfig struct {
	Size int           `yaml:"size" json:"size"`
	TTL  time.Duration `yaml:"ttl" json:"ttl"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	Path      string `yaml:"path" json:"path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// TelemetryConfig configures local query metrics.
type TelemetryConfig struct {
	Disabled bool   `yaml:"disabled" json:"disabled"`
	Path     string `yaml:"path" json:"path"`
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Version: 1,
		Catalog: CatalogConfig{
			Backend:        "sqlite",
			Path:           filepath.Join(dataDir, "catalog.db"),
			BlevePath:      filepath.Join(dataDir, "catalog.bleve"),
			PageSize:       50,
			ConnectTimeout: 10 * time.Second,
		},
		Provider: ProviderConfig{
			Timeout:       5 * time.Second,
			RatePerSecond: 4,
			Burst:         4,
			MaxFailures:   5,
			ResetTimeout:  30 * time.Second,
		},
		Search: SearchConfig{
			MaxVariants:     5,
			MaxInFlight:     5,
			ViabilityFloor:  10,
			PipelineTimeout: 15 * time.Second,
			Retries:         1,
		},
		Cache: CacheConfig{
			Size: 512,
			TTL:  5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Telemetry: TelemetryConfig{
			Path: filepath.Join(dataDir, "metrics.db"),
		},
	}
}

// DefaultDataDir returns ~/.gamescout, falling back to the temp directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".gamescout")
	}
	return filepath.Join(home, ".gamescout")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/gamescout/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/gamescout/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gamescout", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "gamescout", "config.yaml")
	}
	return filepath.Join(home, ".config", "gamescout", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the given working directory.
// Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/gamescout/config.yaml)
//  3. Project config (.gamescout.yaml in dir)
//  4. Environment variables (GAMESCOUT_*)
//
// Any problem is returned as a configuration error.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if projectPath := filepath.Join(dir, ProjectConfigName); fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads defaults overlaid with a single YAML file, then env vars.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML merges the non-zero values of a YAML file into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return gserrors.New(gserrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return gserrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	setString(&c.Catalog.Backend, other.Catalog.Backend)
	setString(&c.Catalog.Path, other.Catalog.Path)
	setString(&c.Catalog.BlevePath, other.Catalog.BlevePath)
	setString(&c.Catalog.DSN, other.Catalog.DSN)
	setInt(&c.Catalog.PageSize, other.Catalog.PageSize)
	setDuration(&c.Catalog.ConnectTimeout, other.Catalog.ConnectTimeout)

	setString(&c.Provider.Endpoint, other.Provider.Endpoint)
	setString(&c.Provider.APIKey, other.Provider.APIKey)
	setDuration(&c.Provider.Timeout, other.Provider.Timeout)
	if other.Provider.RatePerSecond != 0 {
		c.Provider.RatePerSecond = other.Provider.RatePerSecond
	}
	setInt(&c.Provider.Burst, other.Provider.Burst)
	setInt(&c.Provider.MaxFailures, other.Provider.MaxFailures)
	setDuration(&c.Provider.ResetTimeout, other.Provider.ResetTimeout)

	setInt(&c.Search.MaxVariants, other.Search.MaxVariants)
	setInt(&c.Search.MaxInFlight, other.Search.MaxInFlight)
	setInt(&c.Search.ViabilityFloor, other.Search.ViabilityFloor)
	setDuration(&c.Search.PipelineTimeout, other.Search.PipelineTimeout)
	setInt(&c.Search.Retries, other.Search.Retries)

	setInt(&c.Cache.Size, other.Cache.Size)
	setDuration(&c.Cache.TTL, other.Cache.TTL)

	setString(&c.Logging.Level, other.Logging.Level)
	setString(&c.Logging.Path, other.Logging.Path)
	setInt(&c.Logging.MaxSizeMB, other.Logging.MaxSizeMB)
	setInt(&c.Logging.MaxFiles, other.Logging.MaxFiles)

	// A false bool is indistinguishable from unset, so a later file can
	// disable telemetry but not re-enable it.
	if other.Telemetry.Disabled {
		c.Telemetry.Disabled = true
	}
	setString(&c.Telemetry.Path, other.Telemetry.Path)

	setString(&c.RulesPath, other.RulesPath)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies GAMESCOUT_* environment variable overrides.
// Unlike file values, env vars may set explicit zeros.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"CATALOG_BACKEND":    &c.Catalog.Backend,
		"CATALOG_PATH":       &c.Catalog.Path,
		"CATALOG_BLEVE_PATH": &c.Catalog.BlevePath,
		"CATALOG_DSN":        &c.Catalog.DSN,
		"PROVIDER_ENDPOINT":  &c.Provider.Endpoint,
		"PROVIDER_API_KEY":   &c.Provider.APIKey,
		"LOG_LEVEL":          &c.Logging.Level,
		"LOG_PATH":           &c.Logging.Path,
		"TELEMETRY_PATH":     &c.Telemetry.Path,
		"RULES_PATH":         &c.RulesPath,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CATALOG_PAGE_SIZE":      &c.Catalog.PageSize,
		"PROVIDER_BURST":         &c.Provider.Burst,
		"PROVIDER_MAX_FAILURES":  &c.Provider.MaxFailures,
		"SEARCH_MAX_VARIANTS":    &c.Search.MaxVariants,
		"SEARCH_MAX_IN_FLIGHT":   &c.Search.MaxInFlight,
		"SEARCH_VIABILITY_FLOOR": &c.Search.ViabilityFloor,
		"SEARCH_RETRIES":         &c.Search.Retries,
		"CACHE_SIZE":             &c.Cache.Size,
	}
	for name, dst := range ints {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return envError(name, v, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"CATALOG_CONNECT_TIMEOUT": &c.Catalog.ConnectTimeout,
		"PROVIDER_TIMEOUT":        &c.Provider.Timeout,
		"PROVIDER_RESET_TIMEOUT":  &c.Provider.ResetTimeout,
		"SEARCH_PIPELINE_TIMEOUT": &c.Search.PipelineTimeout,
		"CACHE_TTL":               &c.Cache.TTL,
	}
	for name, dst := range durations {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return envError(name, v, err)
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "PROVIDER_RATE"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return envError("PROVIDER_RATE", v, err)
		}
		c.Provider.RatePerSecond = f
	}
	if v, ok := os.LookupEnv(envPrefix + "TELEMETRY_DISABLED"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return envError("TELEMETRY_DISABLED", v, err)
		}
		c.Telemetry.Disabled = b
	}
	return nil
}

func envError(name, value string, err error) error {
	return gserrors.ConfigError(fmt.Sprintf("invalid value %q for %s%s", value, envPrefix, name), err).
		WithDetail("env", envPrefix+name)
}

// Validate validates the configuration and returns a configuration error
// describing the first problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Catalog.Backend) {
	case "sqlite":
		if c.Catalog.Path == "" {
			return invalid("catalog.path is required for the sqlite backend")
		}
	case "bleve":
		if c.Catalog.Path == "" || c.Catalog.BlevePath == "" {
			return invalid("catalog.path and catalog.bleve_path are required for the bleve backend")
		}
	case "postgres":
		if c.Catalog.DSN == "" {
			return invalid("catalog.dsn is required for the postgres backend")
		}
	default:
		return invalid(fmt.Sprintf("catalog.backend must be 'sqlite', 'bleve', or 'postgres', got %q", c.Catalog.Backend))
	}
	if c.Catalog.PageSize <= 0 {
		return invalid(fmt.Sprintf("catalog.page_size must be positive, got %d", c.Catalog.PageSize))
	}

	if c.Provider.Endpoint != "" {
		if !strings.HasPrefix(c.Provider.Endpoint, "http://") && !strings.HasPrefix(c.Provider.Endpoint, "https://") {
			return invalid(fmt.Sprintf("provider.endpoint must be an http(s) URL, got %q", c.Provider.Endpoint))
		}
		if c.Provider.Timeout <= 0 {
			return invalid("provider.timeout must be positive")
		}
		if c.Provider.RatePerSecond <= 0 {
			return invalid("provider.rate_per_second must be positive")
		}
		if c.Provider.Burst <= 0 {
			return invalid("provider.burst must be positive")
		}
	}

	if c.Search.MaxVariants < 1 {
		return invalid(fmt.Sprintf("search.max_variants must be at least 1, got %d", c.Search.MaxVariants))
	}
	if c.Search.MaxInFlight < 1 {
		return invalid(fmt.Sprintf("search.max_in_flight must be at least 1, got %d", c.Search.MaxInFlight))
	}
	if c.Search.ViabilityFloor < 0 {
		return invalid(fmt.Sprintf("search.viability_floor must be non-negative, got %d", c.Search.ViabilityFloor))
	}
	if c.Search.Retries < 0 {
		return invalid(fmt.Sprintf("search.retries must be non-negative, got %d", c.Search.Retries))
	}
	if c.Search.PipelineTimeout <= 0 {
		return invalid("search.pipeline_timeout must be positive")
	}

	if c.Cache.Size < 0 {
		return invalid(fmt.Sprintf("cache.size must be non-negative, got %d", c.Cache.Size))
	}
	if c.Cache.Size > 0 && c.Cache.TTL <= 0 {
		return invalid("cache.ttl must be positive when the cache is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid(fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Logging.Level))
	}
	return nil
}

func invalid(msg string) error {
	return gserrors.ConfigError(msg, nil).
		WithSuggestion("fix the value in " + ProjectConfigName + " or the user config, or unset the matching GAMESCOUT_ variable")
}

// WriteYAML writes the configuration to a YAML file, creating parent
// directories as needed.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
