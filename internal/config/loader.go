package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Normalize when fields are unset.
const (
	DefaultAddr             = ":8080"
	DefaultResponseCacheTTL = 2 * time.Hour
	DefaultHealthCacheTTL   = 5 * time.Minute
	DefaultMaxConcurrent    = 5
	DefaultTimeout          = 30 * time.Second
	DefaultPriority         = 1
)

// BackendConfig describes one configured backend.
// Zero values mean "unspecified" and are replaced by defaults in Normalize.
type BackendConfig struct {
	Name           string            `json:"name" yaml:"name" toml:"name"`
	Kind           string            `json:"kind" yaml:"kind" toml:"kind"`
	BaseURL        string            `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey         string            `json:"api_key" yaml:"api_key" toml:"api_key"`
	Models         map[string]string `json:"models" yaml:"models" toml:"models"`
	MaxConcurrent  int               `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	Priority       int               `json:"priority" yaml:"priority" toml:"priority"`
	Enabled        *bool             `json:"enabled" yaml:"enabled" toml:"enabled"`
	HealthEndpoint string            `json:"health_endpoint" yaml:"health_endpoint" toml:"health_endpoint"`
}

// IsEnabled resolves the tri-state enabled flag; unset means enabled.
func (b BackendConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// Timeout returns the per-request timeout for this backend.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// Config holds runtime parameters for the service.
type Config struct {
	Addr                    string          `json:"addr" yaml:"addr" toml:"addr"`
	RedisAddr               string          `json:"redis_addr" yaml:"redis_addr" toml:"redis_addr"`
	PromptDBPath            string          `json:"prompt_db_path" yaml:"prompt_db_path" toml:"prompt_db_path"`
	ResponseCacheTTLSeconds int             `json:"response_cache_ttl_seconds" yaml:"response_cache_ttl_seconds" toml:"response_cache_ttl_seconds"`
	HealthCacheTTLSeconds   int             `json:"health_cache_ttl_seconds" yaml:"health_cache_ttl_seconds" toml:"health_cache_ttl_seconds"`
	LogLevel                string          `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSEnabled             bool            `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins      []string        `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	Backends                []BackendConfig `json:"backends" yaml:"backends" toml:"backends"`
}

// ResponseCacheTTL returns the TTL for cached responses.
func (c Config) ResponseCacheTTL() time.Duration {
	return time.Duration(c.ResponseCacheTTLSeconds) * time.Second
}

// HealthCacheTTL returns the TTL for cached health determinations.
func (c Config) HealthCacheTTL() time.Duration {
	return time.Duration(c.HealthCacheTTLSeconds) * time.Second
}

// envRef matches ${VAR} and ${VAR:default} references in config files.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// expandEnv substitutes ${VAR} and ${VAR:default} in the raw config text
// before parsing, so secrets like API keys stay out of the file itself.
func expandEnv(raw []byte) []byte {
	return envRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		parts := envRef.FindSubmatch(m)
		if v, ok := os.LookupEnv(string(parts[1])); ok {
			return []byte(v)
		}
		return parts[2]
	})
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	b = expandEnv(b)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	cfg.Normalize()
	return cfg, cfg.Validate()
}

// Normalize fills unset fields with package defaults.
func (c *Config) Normalize() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ResponseCacheTTLSeconds <= 0 {
		c.ResponseCacheTTLSeconds = int(DefaultResponseCacheTTL / time.Second)
	}
	if c.HealthCacheTTLSeconds <= 0 {
		c.HealthCacheTTLSeconds = int(DefaultHealthCacheTTL / time.Second)
	}
	for i := range c.Backends {
		b := &c.Backends[i]
		if b.MaxConcurrent <= 0 {
			b.MaxConcurrent = DefaultMaxConcurrent
		}
		if b.TimeoutSeconds <= 0 {
			b.TimeoutSeconds = int(DefaultTimeout / time.Second)
		}
		if b.Priority <= 0 {
			b.Priority = DefaultPriority
		}
		if b.HealthEndpoint == "" && b.BaseURL != "" {
			b.HealthEndpoint = strings.TrimRight(b.BaseURL, "/") + defaultHealthPath(b.Kind)
		}
	}
}

// defaultHealthPath picks the conventional liveness path per backend kind.
func defaultHealthPath(kind string) string {
	if kind == "ollama" {
		return "/api/tags"
	}
	return "/models"
}

// Validate checks structural requirements; a failure here is fatal at startup.
func (c Config) Validate() error {
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d]: name is required", i)
		}
		if b.BaseURL == "" {
			return fmt.Errorf("backend %q: base_url is required", b.Name)
		}
		switch b.Kind {
		case "ollama", "openai":
		default:
			return fmt.Errorf("backend %q: unknown kind %q", b.Name, b.Kind)
		}
	}
	return nil
}
