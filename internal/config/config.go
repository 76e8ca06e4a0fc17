package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Source selectors accepted by the "source" key.
const (
	SourceAuto   = "auto"
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Global configuration structure.
type Global struct {
	// Document source selection
	Source    string `mapstructure:"source" yaml:"source"`
	CachePath string `mapstructure:"cache_path" yaml:"cache_path"`

	// Remote API
	APIToken               string `mapstructure:"api_token" yaml:"api_token"`
	APIBase                string `mapstructure:"api_base" yaml:"api_base"`
	RemoteCacheDir         string `mapstructure:"remote_cache_dir" yaml:"remote_cache_dir"`
	CacheTTLSec            int    `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`
	PageSize               int    `mapstructure:"page_size" yaml:"page_size"`
	IncludeLastViewedPanel bool   `mapstructure:"include_last_viewed_panel" yaml:"include_last_viewed_panel"`

	// Query defaults
	DefaultLimit int `mapstructure:"default_limit" yaml:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit" yaml:"max_limit"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Logging
	LogDir string `mapstructure:"log_dir" yaml:"log_dir"`
	Debug  bool   `mapstructure:"debug" yaml:"debug"`
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/granola-mcp/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "granola-mcp", "config.yaml")
}

// DefaultCachePath is where the Granola desktop app keeps its local cache.
func DefaultCachePath() string {
	return filepath.Join(xdg.ConfigHome, "Granola", "cache-v3.json")
}

func defaultRemoteCacheDir() string {
	return filepath.Join(xdg.CacheHome, "granola-mcp", "remote")
}

func defaultLogDir() string {
	return filepath.Join(xdg.StateHome, "granola-mcp", "logs")
}

// Defaults returns a configuration populated with built-in defaults only.
func Defaults() *Global {
	return &Global{
		Source:                 SourceAuto,
		CachePath:              DefaultCachePath(),
		APIBase:                "https://api.granola.ai",
		RemoteCacheDir:         defaultRemoteCacheDir(),
		CacheTTLSec:            86400,
		PageSize:               100,
		IncludeLastViewedPanel: true,
		DefaultLimit:           50,
		MaxLimit:               500,
		HTTPTimeoutSec:         30,
		RetryMaxAttempts:       3,
		RetryBaseDelayMs:       1000,
		RetryMaxDelayMs:        8000,
		LogDir:                 defaultLogDir(),
	}
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to DefaultConfigPath(), creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("GRANOLA")
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("source", d.Source)
	v.SetDefault("cache_path", d.CachePath)
	v.SetDefault("api_token", "")
	v.SetDefault("api_base", d.APIBase)
	v.SetDefault("remote_cache_dir", d.RemoteCacheDir)
	v.SetDefault("cache_ttl_sec", d.CacheTTLSec)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("include_last_viewed_panel", d.IncludeLastViewedPanel)
	v.SetDefault("default_limit", d.DefaultLimit)
	v.SetDefault("max_limit", d.MaxLimit)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", d.HTTPTimeoutSec)
	v.SetDefault("retry_max_attempts", d.RetryMaxAttempts)
	v.SetDefault("retry_base_delay_ms", d.RetryBaseDelayMs)
	v.SetDefault("retry_max_delay_ms", d.RetryMaxDelayMs)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("debug", false)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(filepath.Dir(DefaultConfigPath()))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Validate checks the configuration for values the sources cannot work with.
func (c *Global) Validate() error {
	switch c.Source {
	case SourceAuto, SourceLocal:
	case SourceRemote:
		if c.APIToken == "" {
			return fmt.Errorf("source %q requires api_token (or GRANOLA_API_TOKEN)", c.Source)
		}
	default:
		return fmt.Errorf("invalid source: %q (use auto, local or remote)", c.Source)
	}
	if c.CacheTTLSec < 0 {
		return fmt.Errorf("cache_ttl_sec must be >= 0, got %d", c.CacheTTLSec)
	}
	if c.PageSize < 0 || c.DefaultLimit < 0 || c.MaxLimit < 0 {
		return fmt.Errorf("page_size, default_limit and max_limit must be >= 0")
	}
	if c.RetryMaxAttempts < 0 || c.RetryBaseDelayMs < 0 || c.RetryMaxDelayMs < 0 {
		return fmt.Errorf("retry settings must be >= 0")
	}
	return nil
}

// ResolvedSource returns the concrete source kind after applying "auto".
func (c *Global) ResolvedSource() string {
	if c.Source == SourceAuto || c.Source == "" {
		if c.APIToken != "" {
			return SourceRemote
		}
		return SourceLocal
	}
	return c.Source
}

// CacheTTL returns the remote cache freshness window.
func (c *Global) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// HTTPTimeout returns the per-attempt HTTP timeout, defaulting to 30s.
func (c *Global) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}
