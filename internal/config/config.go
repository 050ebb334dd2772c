package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Authority  AuthorityConfig  `yaml:"authority"`
	Payments   PaymentsConfig   `yaml:"payments"`
	Holds      HoldsConfig      `yaml:"holds"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// AuthorityConfig points at the external booking authority that finalizes
// reservations from holds.
type AuthorityConfig struct {
	BaseURL        string `yaml:"base_url"`
	BookPath       string `yaml:"book_path"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c AuthorityConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type PaymentsConfig struct {
	DefaultMethodID    int    `yaml:"default_method_id"`
	DestinationAccount string `yaml:"destination_account"`
}

type HoldsConfig struct {
	DefaultTTLSeconds    int64 `yaml:"default_ttl_seconds"`
	SweepIntervalSeconds int   `yaml:"sweep_interval_seconds"`
}

func (c HoldsConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; it only feeds the ${VAR} expansion below.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Authority.BaseURL == "" {
		return errors.New("authority base_url is required")
	}

	if c.Holds.DefaultTTLSeconds <= 0 {
		return fmt.Errorf("holds default_ttl_seconds must be positive, got %d", c.Holds.DefaultTTLSeconds)
	}

	keys := make(map[string]bool)
	for _, k := range c.API.Auth.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("api key for client '%s' is empty", k.Name)
		}
		if keys[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		keys[k.Key] = true
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Authority.BookPath == "" {
		c.Authority.BookPath = "/api/v1/hoteles/book"
	}
	if c.Authority.TimeoutSeconds == 0 {
		c.Authority.TimeoutSeconds = 10
	}

	if c.Payments.DefaultMethodID == 0 {
		c.Payments.DefaultMethodID = 2
	}

	if c.Holds.DefaultTTLSeconds == 0 {
		c.Holds.DefaultTTLSeconds = 15 * 60
	}
	if c.Holds.SweepIntervalSeconds == 0 {
		c.Holds.SweepIntervalSeconds = 60
	}

	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		c.Kafka.Topic = "reservation-events"
	}
}
