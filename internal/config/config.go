// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// OrderRateLimit caps order creations per user per OrderRateWindow.
	// Requires Redis; zero disables the limit.
	OrderRateLimit  int           `yaml:"order_rate_limit"`
	OrderRateWindow time.Duration `yaml:"order_rate_window"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig is optional; an empty URL disables the catalog cache.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type GatewayConfig struct {
	Provider        string        `yaml:"provider"` // razorpay | sandbox
	KeyID           string        `yaml:"key_id"`
	KeySecret       string        `yaml:"key_secret"`
	WebhookSecret   string        `yaml:"webhook_secret"`
	BaseURL         string        `yaml:"base_url"`
	Currency        string        `yaml:"currency"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialBackoff  time.Duration `yaml:"initial_backoff"`
	WebhookMaxBytes int64         `yaml:"webhook_max_bytes"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	AdminRole string `yaml:"admin_role"`
}

// MessagingConfig is optional; an empty AMQP URL disables event publishing.
type MessagingConfig struct {
	AMQPURL   string `yaml:"amqp_url"`
	Exchange  string `yaml:"exchange"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Auth      AuthConfig      `yaml:"auth"`
	Messaging MessagingConfig `yaml:"messaging"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	ProviderRazorpay = "razorpay"
	ProviderSandbox  = "sandbox"
)

// LoadConfig parses -config / -dev flags, reads .env if present and loads the file.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	// .env is a convenience for local runs; absence is fine
	_ = godotenv.Load()

	return Load(configPath, dev)
}

// Load reads the YAML file at path, applies env overrides and defaults and validates.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// secrets are never required to live in the YAML file
func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Gateway.KeyID, "GATEWAY_KEY_ID")
	override(&cfg.Gateway.KeySecret, "GATEWAY_KEY_SECRET")
	override(&cfg.Gateway.WebhookSecret, "GATEWAY_WEBHOOK_SECRET")
	override(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	override(&cfg.Messaging.AMQPURL, "AMQP_URL")
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 25 * time.Second
	}
	if cfg.HTTP.OrderRateLimit < 0 {
		cfg.HTTP.OrderRateLimit = 0
	}
	if cfg.HTTP.OrderRateWindow <= 0 {
		cfg.HTTP.OrderRateWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	g := &cfg.Gateway
	if g.Provider == "" {
		g.Provider = ProviderRazorpay
		if cfg.Runtime.Dev && g.KeyID == "" {
			g.Provider = ProviderSandbox
		}
	}
	if g.Provider == ProviderSandbox && cfg.Runtime.Dev {
		if g.KeySecret == "" {
			g.KeySecret = "sandbox_key_secret"
		}
		if g.WebhookSecret == "" {
			g.WebhookSecret = "sandbox_webhook_secret"
		}
	}
	if g.Currency == "" {
		g.Currency = "INR"
	}
	if g.Timeout <= 0 {
		g.Timeout = 15 * time.Second
	}
	if g.MaxAttempts <= 0 {
		g.MaxAttempts = 3
	}
	if g.InitialBackoff <= 0 {
		g.InitialBackoff = 200 * time.Millisecond
	}
	if g.WebhookMaxBytes <= 0 {
		g.WebhookMaxBytes = 64 << 10
	}

	if cfg.Auth.AdminRole == "" {
		cfg.Auth.AdminRole = "admin"
	}
	if cfg.Messaging.Exchange == "" {
		cfg.Messaging.Exchange = "payments.events"
	}
	if cfg.Messaging.Workers <= 0 {
		cfg.Messaging.Workers = 2
	}
	if cfg.Messaging.QueueSize <= 0 {
		cfg.Messaging.QueueSize = 256
	}
}

// Validate fails fast on anything the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	switch c.Gateway.Provider {
	case ProviderRazorpay:
		if c.Gateway.KeyID == "" {
			errs = append(errs, errors.New("gateway.key_id is required"))
		}
		if c.Gateway.KeySecret == "" {
			errs = append(errs, errors.New("gateway.key_secret is required"))
		}
	case ProviderSandbox:
		if !c.Runtime.Dev {
			errs = append(errs, errors.New("gateway.provider sandbox is only allowed with -dev"))
		}
	default:
		errs = append(errs, fmt.Errorf("gateway.provider %q is not supported", c.Gateway.Provider))
	}
	if c.Gateway.WebhookSecret == "" {
		errs = append(errs, errors.New("gateway.webhook_secret is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	return errors.Join(errs...)
}

// catalog rows are edited outside this service; keep cached prices short-lived
func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Minute
	}
	return d
}
