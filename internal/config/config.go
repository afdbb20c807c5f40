package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Pricing  PricingConfig  `yaml:"pricing"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	TokenTTLHours   int    `yaml:"token_ttl_hours"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

type StorageConfig struct {
	Root          string `yaml:"root"`
	BaseURL       string `yaml:"base_url"`
	SignSecret    string `yaml:"sign_secret"`
	URLTTLMinutes int    `yaml:"url_ttl_minutes"`
}

type PricingConfig struct {
	TaxRate      float64 `yaml:"tax_rate"`
	FlatShipping float64 `yaml:"flat_shipping"`
}

// Load reads the YAML file, then overlays LASERCUT_* environment variables so
// secrets never have to live in the file.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := envconfig.Process("lasercut", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment overrides: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3000
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.RabbitMQ.Host == "" {
		c.RabbitMQ.Host = "localhost"
	}
	if c.RabbitMQ.Port == 0 {
		c.RabbitMQ.Port = 5672
	}
	if c.Auth.TokenTTLHours == 0 {
		c.Auth.TokenTTLHours = 24
	}
	if c.Auth.CacheTTLSeconds == 0 {
		c.Auth.CacheTTLSeconds = 30
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "./data/files"
	}
	if c.Storage.BaseURL == "" {
		c.Storage.BaseURL = fmt.Sprintf("http://localhost:%d", c.HTTP.Port)
	}
	if c.Storage.URLTTLMinutes == 0 {
		c.Storage.URLTTLMinutes = 60
	}
	if c.Pricing.TaxRate == 0 {
		c.Pricing.TaxRate = 0.12
	}
	if c.Pricing.FlatShipping == 0 {
		c.Pricing.FlatShipping = 15
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Storage.SignSecret == "" {
		return fmt.Errorf("storage.sign_secret is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	return nil
}
