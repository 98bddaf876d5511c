package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// fileView renders durations as strings; the rest of Config marshals as is.
type fileView struct {
	Config       `yaml:",inline"`
	Timeout      string `yaml:"timeout"`
	RetryBackoff string `yaml:"retry_backoff"`
}

// Marshal renders cfg as YAML in the config file format.
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(fileView{
		Config:       cfg,
		Timeout:      cfg.Timeout.String(),
		RetryBackoff: cfg.RetryBackoff.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// Init writes the default config to path (ConfigPath when empty) and
// returns the path written. An existing file is kept unless force is set.
func Init(path string, force bool) (string, error) {
	path, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}
	data, err := Marshal(Default())
	if err != nil {
		return "", err
	}
	return path, writeFile(path, data)
}

// Set updates one dotted key in the config file at path, creating the file
// if needed. The value is parsed according to the key's type and the
// resulting file must validate.
func Set(path, key, value string) error {
	path, err := resolvePath(path)
	if err != nil {
		return err
	}
	if !slices.Contains(Keys(), key) {
		return fmt.Errorf("%w: unknown config key: %s", ErrInvalid, key)
	}
	typed, err := parseValue(key, value)
	if err != nil {
		return err
	}

	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("reading config file: %w", err)
	}
	setNested(doc, strings.Split(key, "."), typed)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if _, err := decode(out); err != nil {
		return err
	}
	return writeFile(path, out)
}

// decode validates a config document on top of the defaults.
func decode(data []byte) (Config, error) {
	v := viper.New()
	applyDefaults(v)
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

func parseValue(key, value string) (any, error) {
	v := viper.New()
	applyDefaults(v)
	switch def := v.Get(key).(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be true or false", ErrInvalid, key)
		}
		return b, nil
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalid, key)
		}
		return n, nil
	case []string:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	case string:
		if key == "timeout" || key == "retry_backoff" {
			if _, err := time.ParseDuration(value); err != nil {
				return nil, fmt.Errorf("%w: %s must be a duration such as 30s", ErrInvalid, key)
			}
		}
		return value, nil
	default:
		return nil, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalid, key, def)
	}
}

func setNested(doc map[string]any, path []string, value any) {
	for _, part := range path[:len(path)-1] {
		next, ok := doc[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			doc[part] = next
		}
		doc = next
	}
	doc[path[len(path)-1]] = value
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return ConfigPath()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
