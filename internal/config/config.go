package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the esdex service configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Redis         RedisConfig         `yaml:"redis"`
	Index         IndexConfig         `yaml:"index"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
	Models        []ModelConfig       `yaml:"models"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ElasticsearchConfig holds cluster connection settings.
type ElasticsearchConfig struct {
	Addresses        []string `yaml:"addresses"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	APIKey           string   `yaml:"api_key"`
	MaxRetries       int      `yaml:"max_retries"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RedisConfig holds the reindex lock store. Locking is off without addrs.
type RedisConfig struct {
	Addrs      []string `yaml:"addrs"`
	Password   string   `yaml:"password"`
	LockTTLSec int      `yaml:"lock_ttl_sec"`
}

// IndexConfig holds import batching settings.
type IndexConfig struct {
	ImportChunkSize  int `yaml:"import_chunk_size"` // 0 = one bulk request per type
	ReindexChunkSize int `yaml:"reindex_chunk_size"`
}

// ModelConfig declares a searchable model served over HTTP.
type ModelConfig struct {
	Name         string         `yaml:"name"`
	DocumentType string         `yaml:"document_type"`
	Conversions  string         `yaml:"conversions"`
	Suggest      []string       `yaml:"suggest"`
	Locations    []string       `yaml:"locations"`
	Parent       string         `yaml:"parent"`
	Mappings     map[string]any `yaml:"mappings"`
	Settings     map[string]any `yaml:"settings"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, applying env expansion, defaults and validation.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Elasticsearch.ReadinessTimeout <= 0 {
		c.Elasticsearch.ReadinessTimeout = 10
	}
	if c.Redis.LockTTLSec <= 0 {
		c.Redis.LockTTLSec = 600
	}
	if c.Index.ReindexChunkSize <= 0 {
		c.Index.ReindexChunkSize = 1000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch.addresses is required")
	}
	if c.Elasticsearch.APIKey != "" && c.Elasticsearch.Username != "" {
		return fmt.Errorf("elasticsearch: api_key and username are mutually exclusive")
	}
	if c.Index.ImportChunkSize < 0 {
		return fmt.Errorf("index.import_chunk_size must not be negative, got %d", c.Index.ImportChunkSize)
	}
	return c.validateModels()
}

func (c *Config) validateModels() error {
	names := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d].name is required", i)
		}
		if names[m.Name] {
			return fmt.Errorf("models.%s is declared twice", m.Name)
		}
		names[m.Name] = true
	}
	parents := make(map[string]string, len(c.Models))
	for _, m := range c.Models {
		parents[m.Name] = m.Parent
	}
	for _, m := range c.Models {
		if m.Parent == "" {
			continue
		}
		if m.Parent == m.Name {
			return fmt.Errorf("models.%s.parent must not reference itself", m.Name)
		}
		if !names[m.Parent] {
			return fmt.Errorf("models.%s.parent references unknown model %q", m.Name, m.Parent)
		}
		if parents[m.Parent] != "" {
			return fmt.Errorf("models.%s.parent %q is itself a child; only two levels are supported", m.Name, m.Parent)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
