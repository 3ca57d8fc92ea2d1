// Package config loads the tourguide configuration file.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing file means defaults.
const DefaultPath = "tourguide.yaml"

// Config is the whole application configuration.
type Config struct {
	Log          LogConfig          `yaml:"log" json:"log"`
	Server       ServerConfig       `yaml:"server" json:"server"`
	Browser      BrowserConfig      `yaml:"browser" json:"browser"`
	Service      ServiceConfig      `yaml:"service" json:"service"`
	Store        StoreConfig        `yaml:"store" json:"store"`
	Bus          BusConfig          `yaml:"bus" json:"bus"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" json:"orchestrator"`
	Catalog      CatalogConfig      `yaml:"catalog" json:"catalog"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr" json:"addr"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

type BrowserConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Headless bool   `yaml:"headless" json:"headless"`
	Width    int    `yaml:"width" json:"width"`
	Height   int    `yaml:"height" json:"height"`
	Install  bool   `yaml:"install" json:"install"`
	StartURL string `yaml:"start_url" json:"start_url"`
}

// ServiceConfig points at the remote tutorial service. An empty URL disables it.
type ServiceConfig struct {
	URL       string        `yaml:"url" json:"url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	CacheSize int           `yaml:"cache_size" json:"cache_size"`
}

type StoreConfig struct {
	// Driver is one of memory, file, redis.
	Driver        string        `yaml:"driver" json:"driver"`
	Path          string        `yaml:"path" json:"path"`
	RedisAddr     string        `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" json:"redis_password"`
	RedisDB       int           `yaml:"redis_db" json:"redis_db"`
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
	// EncryptionKey is a base64 AES-256 key. Empty stores records in clear.
	EncryptionKey string `yaml:"encryption_key" json:"encryption_key"`
	// FallbackKeys are older base64 keys still accepted for reading.
	FallbackKeys []string `yaml:"fallback_keys" json:"fallback_keys"`
}

type BusConfig struct {
	// Driver is memory or nats.
	Driver  string `yaml:"driver" json:"driver"`
	NATSURL string `yaml:"nats_url" json:"nats_url"`
	Prefix  string `yaml:"prefix" json:"prefix"`
	Mailbox int    `yaml:"mailbox" json:"mailbox"`
}

type OrchestratorConfig struct {
	ViewportPollInterval time.Duration `yaml:"viewport_poll_interval" json:"viewport_poll_interval"`
	ViewportMaxRetries   int           `yaml:"viewport_max_retries" json:"viewport_max_retries"`
	FallbackTimeout      time.Duration `yaml:"fallback_timeout" json:"fallback_timeout"`
}

// CatalogConfig points at a directory of authored tutorials. An empty dir disables it.
type CatalogConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: ":8080", CORSOrigins: []string{"*"}},
		Browser: BrowserConfig{
			Enabled:  true,
			Headless: true,
			Width:    1280,
			Height:   800,
		},
		Service: ServiceConfig{
			URL:       "http://localhost:8000",
			Timeout:   60 * time.Second,
			CacheSize: 256,
		},
		Store: StoreConfig{
			Driver:    "file",
			Path:      ".tourguide/sessions",
			RedisAddr: "localhost:6379",
		},
		Bus: BusConfig{Driver: "memory", Prefix: "tourguide", Mailbox: 64},
		Orchestrator: OrchestratorConfig{
			ViewportPollInterval: 100 * time.Millisecond,
			ViewportMaxRetries:   50,
			FallbackTimeout:      30 * time.Second,
		},
	}
}

// Load reads a YAML (or JSON, by extension) file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown drivers and malformed keys.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Bus.Driver {
	case "memory", "nats":
	default:
		return fmt.Errorf("unknown bus driver %q", c.Bus.Driver)
	}
	if _, _, err := c.Store.Keys(); err != nil {
		return err
	}
	return nil
}

// Keys decodes the encryption keys. A nil active key means encryption is off.
func (s StoreConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	decodeKey := func(k string) ([]byte, error) {
		b, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return nil, fmt.Errorf("encryption key is not base64: %w", err)
		}
		if len(b) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(b))
		}
		return b, nil
	}
	if active, err = decodeKey(s.EncryptionKey); err != nil {
		return nil, nil, err
	}
	for _, k := range s.FallbackKeys {
		b, err := decodeKey(k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, b)
	}
	return active, fallback, nil
}
