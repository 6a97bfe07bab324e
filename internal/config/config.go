// Package config loads the kboard YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "config.yml"

// Backend kinds.
const (
	BackendMemory = "memory"
	BackendS3     = "s3"
	BackendRedis  = "redis"
)

type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	DisableChecksum bool   `yaml:"disable_checksum"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

type BackendConfig struct {
	Kind string `yaml:"kind"`
}

type BoardConfig struct {
	// DefaultLists are provisioned when the board has no lists.
	DefaultLists []string `yaml:"default_lists"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type ClientConfig struct {
	ServerURL string        `yaml:"server_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	S3      S3Config      `yaml:"s3"`
	Redis   RedisConfig   `yaml:"redis"`
	Board   BoardConfig   `yaml:"board"`
	Log     LogConfig     `yaml:"log"`
	Client  ClientConfig  `yaml:"client"`
}

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080", StaticDir: "static"},
		Backend: BackendConfig{Kind: BackendMemory},
		S3:      S3Config{Key: "board.json", Region: "us-east-1"},
		Redis:   RedisConfig{Addr: "localhost:6379", Namespace: "kboard"},
		Board:   BoardConfig{DefaultLists: []string{"To Do", "In Progress", "Done"}},
		Log:     LogConfig{Level: "info"},
		Client:  ClientConfig{ServerURL: "http://localhost:8080", Timeout: 5 * time.Second},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings required by the selected backend.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendMemory:
	case BackendS3:
		if c.S3.Endpoint == "" {
			return errors.New("s3.endpoint is required")
		}
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket is required")
		}
		if c.S3.Key == "" {
			return errors.New("s3.key is required")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required")
		}
		if c.Redis.Namespace == "" {
			return errors.New("redis.namespace is required")
		}
	default:
		return fmt.Errorf("unknown backend kind %q", c.Backend.Kind)
	}
	if c.Client.Timeout < 0 {
		return errors.New("client.timeout must not be negative")
	}
	return nil
}
