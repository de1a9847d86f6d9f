package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "STOREFRONT_"

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
	} `koanf:"app"`

	Log struct {
		Level    string `koanf:"level"`
		FilePath string `koanf:"file_path"`
	} `koanf:"log"`

	HTTP struct {
		RequestTimeout     time.Duration `koanf:"request_timeout"`
		ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
		MaxRequestBodySize int64         `koanf:"max_request_body_size"`
	} `koanf:"http"`

	API struct {
		BaseURL string        `koanf:"base_url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"api"`

	Breaker struct {
		MaxFailures uint32        `koanf:"max_failures"`
		OpenTimeout time.Duration `koanf:"open_timeout"`
	} `koanf:"breaker"`

	Catalog struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"catalog"`

	Auth struct {
		// TokenFile backs the "remember me" credential lifetime.
		TokenFile string `koanf:"token_file"`
	} `koanf:"auth"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Receipt struct {
		Format     string        `koanf:"format"`
		ArchiveTTL time.Duration `koanf:"archive_ttl"`
	} `koanf:"receipt"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
		Topic   string   `koanf:"topic"`
	} `koanf:"kafka"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":                   "storefront",
		"app.http_addr":              "127.0.0.1:3000",
		"log.level":                  "info",
		"http.request_timeout":       "30s",
		"http.shutdown_timeout":      "10s",
		"http.max_request_body_size": 1 << 20,
		"api.base_url":               "http://localhost:8080/api/v1",
		"api.timeout":                "15s",
		"breaker.max_failures":       5,
		"breaker.open_timeout":       "30s",
		"catalog.ttl":                "5m",
		"receipt.format":             "pdf",
		"receipt.archive_ttl":        "720h",
		"idempotency.ttl":            "24h",
		"kafka.topic":                "raniamart.checkout.completed",
	}
}

// Load layers defaults, <dir>/base.yaml, <dir>/<envName>.yaml and STOREFRONT_* variables,
// in that order. Missing YAML files are skipped. Nested keys use "__" in variable names,
// e.g. STOREFRONT_API__BASE_URL.
func Load(dir, envName string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if dir != "" {
		for _, name := range []string{"base", envName} {
			if name == "" {
				continue
			}
			path := fmt.Sprintf("%s/%s.yaml", dir, name)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute url, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	switch c.Receipt.Format {
	case "pdf", "txt":
	default:
		return fmt.Errorf("receipt.format must be pdf or txt, got %q", c.Receipt.Format)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic required when kafka.brokers is set")
	}
	return nil
}
