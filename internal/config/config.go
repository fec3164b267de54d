// Package config holds the configuration of the cart service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Storage   StorageConfig   `koanf:"storage"`
	NATS      NATSConfig      `koanf:"nats"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
	Shutdown  ShutdownConfig  `koanf:"shutdown"`
}

type ServerConfig struct {
	Port           int `koanf:"port"`
	MaxHeaderBytes int `koanf:"maxheaderbytes"`
	Timeout        struct {
		Read       time.Duration `koanf:"read"`
		Write      time.Duration `koanf:"write"`
		Idle       time.Duration `koanf:"idle"`
		ReadHeader time.Duration `koanf:"readheader"`
	} `koanf:"timeout"`
}

type CatalogConfig struct {
	URL            string               `koanf:"url"`
	Timeout        time.Duration        `koanf:"timeout"`
	Currency       string               `koanf:"currency"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

type CircuitBreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutivefailures"`
	ErrorRatePercent    int           `koanf:"errorratepercent"`
	OpenTimeout         time.Duration `koanf:"opentimeout"`
}

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type StorageConfig struct {
	Driver   string `koanf:"driver"`
	Key      string `koanf:"key"`
	Postgres struct {
		URL     string        `koanf:"url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"postgres"`
	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`
}

// NATSConfig is optional: notifications are only published when URL is set.
type NATSConfig struct {
	URL     string        `koanf:"url"`
	Subject string        `koanf:"subject"`
	Timeout time.Duration `koanf:"timeout"`
}

type TelemetryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// Default returns the values used for everything the sources leave unset.
func Default() Config {
	var cfg Config

	cfg.Server.Port = 8080
	cfg.Server.MaxHeaderBytes = 1 << 20
	cfg.Server.Timeout.Read = 5 * time.Second
	cfg.Server.Timeout.Write = 10 * time.Second
	cfg.Server.Timeout.Idle = 60 * time.Second
	cfg.Server.Timeout.ReadHeader = 2 * time.Second

	cfg.Catalog.Timeout = 3 * time.Second
	cfg.Catalog.Currency = "BRL"
	cfg.Catalog.CircuitBreaker.ConsecutiveFailures = 5
	cfg.Catalog.CircuitBreaker.ErrorRatePercent = 50
	cfg.Catalog.CircuitBreaker.OpenTimeout = 10 * time.Second

	cfg.Storage.Driver = DriverMemory
	cfg.Storage.Key = "cart"
	cfg.Storage.Postgres.Timeout = 5 * time.Second

	cfg.NATS.Subject = "cart.notifications"
	cfg.NATS.Timeout = 5 * time.Second

	cfg.Log.Level = "info"
	cfg.Shutdown.Timeout = 15 * time.Second

	return cfg
}

func (c Config) Validate() error {
	return errors.Join(
		c.Server.Validate(),
		c.Catalog.Validate(),
		c.Storage.Validate(),
		c.NATS.Validate(),
		c.Telemetry.Validate(),
		c.Shutdown.Validate(),
	)
}

func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n--- Server ---\n  port: %d\n  maxheaderbytes: %d\n  timeout: read=%v write=%v idle=%v readheader=%v\n",
		c.Server.Port, c.Server.MaxHeaderBytes,
		c.Server.Timeout.Read, c.Server.Timeout.Write, c.Server.Timeout.Idle, c.Server.Timeout.ReadHeader)
	fmt.Fprintf(&b, "\n--- Catalog ---\n  url: %s\n  timeout: %v\n  currency: %s\n  circuitbreaker: consecutivefailures=%d errorratepercent=%d opentimeout=%v\n",
		c.Catalog.URL, c.Catalog.Timeout, c.Catalog.Currency,
		c.Catalog.CircuitBreaker.ConsecutiveFailures, c.Catalog.CircuitBreaker.ErrorRatePercent, c.Catalog.CircuitBreaker.OpenTimeout)
	fmt.Fprintf(&b, "\n--- Storage ---\n  driver: %s\n  key: %s\n  postgres.url: %s\n  redis.addr: %s\n  redis.password: %s\n  redis.db: %d\n",
		c.Storage.Driver, c.Storage.Key, maskURL(c.Storage.Postgres.URL),
		c.Storage.Redis.Addr, maskSecret(c.Storage.Redis.Password), c.Storage.Redis.DB)
	fmt.Fprintf(&b, "\n--- NATS ---\n  url: %s\n  subject: %s\n  timeout: %v\n", maskURL(c.NATS.URL), c.NATS.Subject, c.NATS.Timeout)
	fmt.Fprintf(&b, "\n--- Telemetry ---\n  enabled: %v\n  endpoint: %s\n  insecure: %v\n", c.Telemetry.Enabled, c.Telemetry.Endpoint, c.Telemetry.Insecure)
	fmt.Fprintf(&b, "\n--- Log ---\n  level: %s\n", c.Log.Level)
	fmt.Fprintf(&b, "\n--- Shutdown ---\n  timeout: %v\n", c.Shutdown.Timeout)
	return b.String()
}

func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP server port: %d", c.Port)
	}
	if c.Timeout.Read <= 0 {
		return fmt.Errorf("invalid HTTP server read timeout: %v", c.Timeout.Read)
	}
	if c.Timeout.Write <= 0 {
		return fmt.Errorf("invalid HTTP server write timeout: %v", c.Timeout.Write)
	}
	if c.Timeout.Idle <= 0 {
		return fmt.Errorf("invalid HTTP server idle timeout: %v", c.Timeout.Idle)
	}
	if c.Timeout.ReadHeader <= 0 {
		return fmt.Errorf("invalid HTTP server read header timeout: %v", c.Timeout.ReadHeader)
	}
	return nil
}

func (c CatalogConfig) Validate() error {
	u, err := url.Parse(c.URL)
	if c.URL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("catalog URL must be absolute: %q", c.URL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be greater than 0")
	}
	if _, err := c.CurrencyUnit(); err != nil {
		return err
	}
	if c.CircuitBreaker.ConsecutiveFailures == 0 {
		return fmt.Errorf("catalog.circuitbreaker.consecutivefailures must be greater than 0")
	}
	if c.CircuitBreaker.ErrorRatePercent < 0 || c.CircuitBreaker.ErrorRatePercent > 100 {
		return fmt.Errorf("catalog.circuitbreaker.errorratepercent must be between 0 and 100")
	}
	if c.CircuitBreaker.OpenTimeout <= 0 {
		return fmt.Errorf("catalog.circuitbreaker.opentimeout must be greater than 0")
	}
	return nil
}

// CurrencyUnit is the currency assigned to catalog prices.
func (c CatalogConfig) CurrencyUnit() (currency.Unit, error) {
	unit, err := currency.ParseISO(c.Currency)
	if err != nil {
		return currency.Unit{}, fmt.Errorf("catalog currency[%s] is not valid: %w", c.Currency, err)
	}
	return unit, nil
}

func (c StorageConfig) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("storage key is not configured")
	}

	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is not configured")
		}
		return nil
	case DriverPostgres:
		if !isValidPostgresURL(c.Postgres.URL) {
			return fmt.Errorf("database URL must start with 'postgres://': %s", maskURL(c.Postgres.URL))
		}
		if c.Postgres.Timeout <= 0 {
			return fmt.Errorf("database timeout must be greater than 0")
		}
		return nil
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Driver)
	}
}

func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

func (c NATSConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Subject == "" {
		return fmt.Errorf("NATS subject is not configured")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("nats dial timeout is not configured")
	}
	return nil
}

func (c TelemetryConfig) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("OTel endpoint is not configured")
	}
	return nil
}

func (c ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown timeout is not configured")
	}
	return nil
}

func isValidPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

func maskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	parts := strings.Split(url, "@")
	if len(parts) == 2 {
		return "****@" + parts[1]
	}
	return url
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
