package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/aphrc/proposal-review/internal/ports"
)

// ConfigLoader parses, completes and validates service configuration.
// Results are cached by the SHA256 of the normalized config so reloading
// an unchanged file skips validation.
type ConfigLoader struct {
	validator *validator.Validate
	// lookup reads environment overrides. Tests replace it.
	lookup func(string) (string, bool)

	// WARNING: cached configs are shared and MUST NOT be mutated.
	cache   map[string]*Config
	cacheMu sync.RWMutex
	sf      singleflight.Group
}

// NewConfigLoader creates a loader that reads overrides from the process
// environment.
func NewConfigLoader() (*ConfigLoader, error) {
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	return &ConfigLoader{
		validator: v,
		lookup:    os.LookupEnv,
		cache:     make(map[string]*Config),
	}, nil
}

// LoadFromFile loads the config at path. An empty path loads defaults
// plus environment overrides.
func (cl *ConfigLoader) LoadFromFile(ctx context.Context, path string) (*Config, error) {
	if path == "" {
		return cl.load(ctx, nil)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ports.NewConfigError(path, ports.ErrConfigNotFound)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return cl.load(ctx, data)
}

// LoadFromReader loads a config from r.
func (cl *ConfigLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.load(ctx, data)
}

func (cl *ConfigLoader) load(ctx context.Context, data []byte) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, err := parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	applyDefaults(cfg)
	applyEnv(cfg, cl.lookup)

	hash, err := configHash(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if cached, ok := cl.cached(hash); ok {
			return cached, nil
		}
		if err := cl.validate(cfg); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		cl.store(hash, cfg)
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Config), nil
}

// parseYAML decodes strictly so typos in keys are reported.
func parseYAML(data []byte) (*Config, error) {
	var cfg Config
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &cfg, nil
}

func (cl *ConfigLoader) validate(cfg *Config) error {
	if err := cl.validator.Struct(cfg); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := validateConfigSemantics(cfg); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// Validate checks a config built in code, such as DefaultConfig with
// fields set by hand.
func (cl *ConfigLoader) Validate(cfg *Config) error {
	return cl.validate(cfg)
}

// configHash re-encodes the config so formatting differences in the
// source do not change the key.
func configHash(cfg *Config) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func (cl *ConfigLoader) cached(hash string) (*Config, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()
	cfg, ok := cl.cache[hash]
	return cfg, ok
}

func (cl *ConfigLoader) store(hash string, cfg *Config) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()
	cl.cache[hash] = cfg
}
