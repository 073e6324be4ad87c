// Package config loads and validates entitystore configuration
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Index   IndexConfig   `yaml:"index"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig configures the gRPC and observability listeners
type ServerConfig struct {
	Port        int `yaml:"port" validate:"min=1,max=65535"`
	MetricsPort int `yaml:"metrics_port" validate:"min=0,max=65535,nefield=Port"` // 0 disables
	// RateLimit is requests per second across all clients; 0 disables limiting
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`
}

// StorageConfig selects and configures the blob store backend
type StorageConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=memory file badger sqlite minio dynamodb"`
	Path        string `yaml:"path"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Endpoint    string `yaml:"endpoint"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Secure      bool   `yaml:"secure"`
	Table       string `yaml:"table"`
	Region      string `yaml:"region"`
	Compression string `yaml:"compression" validate:"oneof=none zstd lz4"`
}

// IndexConfig configures the attribute index
type IndexConfig struct {
	// Key is the storage key the index snapshot is saved under
	Key string `yaml:"key" validate:"required"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Port:        50051,
			MetricsPort: 9090,
		},
		Storage: StorageConfig{
			Backend:     "file",
			Path:        "./data",
			Compression: "none",
		},
		Index: IndexConfig{Key: "attribute-index"},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateStorage, StorageConfig{})
	return v
}

// validateStorage checks the fields each backend needs
func validateStorage(sl validator.StructLevel) {
	s := sl.Current().Interface().(StorageConfig)
	require := func(value, field string) {
		if value == "" {
			sl.ReportError(value, field, field, "required_for_backend", s.Backend)
		}
	}

	switch s.Backend {
	case "file", "badger", "sqlite":
		require(s.Path, "Path")
	case "minio":
		require(s.Endpoint, "Endpoint")
		require(s.Bucket, "Bucket")
	case "dynamodb":
		require(s.Table, "Table")
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads path over the defaults and validates the result. An empty path
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write saves cfg as YAML at path
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
