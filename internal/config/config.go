package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dshills/repoaudit/internal/providers"
)

const (
	envPrefix  = "REPOAUDIT"
	configType = "yaml"
	appName    = "repoaudit"
)

// ErrInvalid matches every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the effective repoaudit configuration.
type Config struct {
	Provider         string        `mapstructure:"provider" yaml:"provider"`
	Model            string        `mapstructure:"model" yaml:"model"`
	Host             string        `mapstructure:"host" yaml:"host"`
	APIKey           string        `mapstructure:"api_key" yaml:"api_key"`
	Concurrency      int           `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"-"`
	Retries          int           `mapstructure:"retries" yaml:"retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff" yaml:"-"`
	MaxFileBytes     int           `mapstructure:"max_file_bytes" yaml:"max_file_bytes"`
	MaxFileLines     int           `mapstructure:"max_file_lines" yaml:"max_file_lines"`
	Include          []string      `mapstructure:"include" yaml:"include"`
	Exclude          []string      `mapstructure:"exclude" yaml:"exclude"`
	Format           string        `mapstructure:"format" yaml:"format"`
	Output           string        `mapstructure:"output" yaml:"output"`
	SkipRepoAnalyses bool          `mapstructure:"skip_repo_analyses" yaml:"skip_repo_analyses"`
	MetricsFile      string        `mapstructure:"metrics_file" yaml:"metrics_file"`
	Cache            CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Privacy          PrivacyConfig `mapstructure:"privacy" yaml:"privacy"`
	Log              LogConfig     `mapstructure:"log" yaml:"log"`
}

// CacheConfig controls the analysis cache.
type CacheConfig struct {
	Enabled       bool     `mapstructure:"enabled" yaml:"enabled"`
	Backend       string   `mapstructure:"backend" yaml:"backend"`
	Dir           string   `mapstructure:"dir" yaml:"dir"`
	MemoryEntries int      `mapstructure:"memory_entries" yaml:"memory_entries"`
	S3            S3Config `mapstructure:"s3" yaml:"s3"`
	PostgresDSN   string   `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

// S3Config configures the S3-compatible cache backend.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Secure    bool   `mapstructure:"secure" yaml:"secure"`
}

// PrivacyConfig controls what is removed from content before it is sent.
type PrivacyConfig struct {
	RedactSecrets bool     `mapstructure:"redact_secrets" yaml:"redact_secrets"`
	RedactPaths   []string `mapstructure:"redact_paths" yaml:"redact_paths"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("provider", "ollama")
	v.SetDefault("model", "")
	v.SetDefault("host", "")
	v.SetDefault("api_key", "")
	v.SetDefault("concurrency", 8)
	v.SetDefault("timeout", "120s")
	v.SetDefault("retries", 2)
	v.SetDefault("retry_backoff", "2s")
	v.SetDefault("max_file_bytes", 100000)
	v.SetDefault("max_file_lines", 4000)
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", []string{"**/*.min.js", "**/*.lock", "**/go.sum"})
	v.SetDefault("format", "markdown")
	v.SetDefault("output", "")
	v.SetDefault("skip_repo_analyses", false)
	v.SetDefault("metrics_file", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "disk")
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.memory_entries", 1024)
	v.SetDefault("cache.s3.endpoint", "")
	v.SetDefault("cache.s3.bucket", "")
	v.SetDefault("cache.s3.region", "")
	v.SetDefault("cache.s3.prefix", appName)
	v.SetDefault("cache.s3.access_key", "")
	v.SetDefault("cache.s3.secret_key", "")
	v.SetDefault("cache.s3.secure", true)
	v.SetDefault("cache.postgres_dsn", "")

	v.SetDefault("privacy.redact_secrets", true)
	v.SetDefault("privacy.redact_paths", []string{"**/.env", "**/.env.*", "**/*secrets*", "**/*.pem", "**/*.key"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Default returns a Config with all defaults applied.
func Default() Config {
	v := viper.New()
	applyDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return cfg
}

// Keys returns every known configuration key in dotted form, sorted.
func Keys() []string {
	v := viper.New()
	applyDefaults(v)
	keys := v.AllKeys()
	slices.Sort(keys)
	return keys
}

// ConfigDir returns the platform-appropriate config directory.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	default:
		return filepath.Join(home, ".config", appName), nil
	}
}

// ConfigPath returns the full path to the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadDotEnv loads KEY=value pairs from files into the environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the effective config by merging defaults, the config file at
// path (ConfigPath when empty), the environment, and overrides, in
// increasing precedence. A missing config file is not an error.
func Load(path string, overrides map[string]any) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}
	for key, val := range overrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	applyDefaults(v)
	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return v, nil
		}
		path = p
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return v, nil
}

// Validate checks the config and returns the first problem found, wrapped
// in ErrInvalid.
func (c Config) Validate() error {
	switch {
	case !slices.Contains(providers.Names, c.Provider) && c.Provider != "google":
		return invalid("provider", "unknown provider %q (want one of %s)", c.Provider, strings.Join(providers.Names, ", "))
	case c.Concurrency < 1:
		return invalid("concurrency", "must be at least 1, got %d", c.Concurrency)
	case c.Timeout <= 0:
		return invalid("timeout", "must be positive, got %s", c.Timeout)
	case c.Retries < 0:
		return invalid("retries", "must not be negative, got %d", c.Retries)
	case c.RetryBackoff < 0:
		return invalid("retry_backoff", "must not be negative, got %s", c.RetryBackoff)
	case c.MaxFileBytes < 0:
		return invalid("max_file_bytes", "must not be negative, got %d", c.MaxFileBytes)
	case c.MaxFileLines < 0:
		return invalid("max_file_lines", "must not be negative, got %d", c.MaxFileLines)
	case !slices.Contains([]string{"markdown", "json", "text"}, c.Format):
		return invalid("format", "unsupported format %q", c.Format)
	case !slices.Contains([]string{"disk", "s3", "postgres"}, c.Cache.Backend):
		return invalid("cache.backend", "unknown backend %q", c.Cache.Backend)
	case c.Cache.Enabled && c.Cache.Backend == "s3" && c.Cache.S3.Bucket == "":
		return invalid("cache.s3.bucket", "is required for the s3 backend")
	case c.Cache.Enabled && c.Cache.Backend == "postgres" && c.Cache.PostgresDSN == "":
		return invalid("cache.postgres_dsn", "is required for the postgres backend")
	case c.Cache.MemoryEntries < 0:
		return invalid("cache.memory_entries", "must not be negative, got %d", c.Cache.MemoryEntries)
	case !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(c.Log.Level)):
		return invalid("log.level", "unknown level %q", c.Log.Level)
	case !slices.Contains([]string{"text", "json"}, c.Log.Format):
		return invalid("log.format", "unknown format %q", c.Log.Format)
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s", ErrInvalid, key, fmt.Sprintf(format, args...))
}

// Redacted returns a copy safe to print: credentials are masked.
func (c Config) Redacted() Config {
	c.APIKey = mask(c.APIKey)
	c.Cache.S3.AccessKey = mask(c.Cache.S3.AccessKey)
	c.Cache.S3.SecretKey = mask(c.Cache.S3.SecretKey)
	if c.Cache.PostgresDSN != "" {
		c.Cache.PostgresDSN = maskDSN(c.Cache.PostgresDSN)
	}
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// maskDSN hides the password in a URL-style DSN.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	userinfo := dsn[scheme+3 : at]
	if i := strings.Index(userinfo, ":"); i >= 0 {
		return dsn[:scheme+3] + userinfo[:i] + ":********" + dsn[at:]
	}
	return dsn
}
