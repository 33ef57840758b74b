// Package config loads server settings from defaults, an optional YAML file
// named by STOREFRONT_CONFIG, and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Port           string        `yaml:"port"`
	DatabaseURL    string        `yaml:"database_url"`
	RedisURL       string        `yaml:"redis_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	KafkaBrokers string `yaml:"kafka_brokers"`
	KafkaTopic   string `yaml:"kafka_topic"`
	KafkaGroupID string `yaml:"kafka_group_id"`

	TaxRate          string `yaml:"tax_rate"`
	DeliveryLeadDays int    `yaml:"delivery_lead_days"`

	CartTTL    time.Duration `yaml:"cart_ttl"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	AdminName     string `yaml:"admin_name"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`

	NotifyAdminEmail string `yaml:"notify_admin_email"`
	NotifyFromEmail  string `yaml:"notify_from_email"`
	SendGridAPIKey   string `yaml:"sendgrid_api_key"`

	OutboxInterval time.Duration `yaml:"outbox_interval"`
	OutboxBatch    int           `yaml:"outbox_batch"`

	Tracing string `yaml:"tracing"`

	// Tax is TaxRate parsed by Load.
	Tax decimal.Decimal `yaml:"-"`
}

func Defaults() Config {
	return Config{
		Port:             "8080",
		RequestTimeout:   10 * time.Second,
		KafkaTopic:       "storefront.orders",
		KafkaGroupID:     "storefront-notifier",
		TaxRate:          "0.0875",
		DeliveryLeadDays: 2,
		CartTTL:          7 * 24 * time.Hour,
		SessionTTL:       24 * time.Hour,
		AdminName:        "Administrator",
		NotifyFromEmail:  "orders@localhost",
		OutboxInterval:   time.Second,
		OutboxBatch:      100,
		Tracing:          "none",
	}
}

func Load() (Config, error) {
	cfg := Defaults()
	if path := getenv("STOREFRONT_CONFIG", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, ErrInvalidConfig)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DeliveryLead is the delivery estimate added to the placement time.
func (c Config) DeliveryLead() time.Duration {
	return time.Duration(c.DeliveryLeadDays) * 24 * time.Hour
}

func (c *Config) applyEnv() error {
	c.Port = getenv("PORT", c.Port)
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getenv("REDIS_URL", c.RedisURL)
	c.KafkaBrokers = getenv("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopic = getenv("KAFKA_TOPIC", c.KafkaTopic)
	c.KafkaGroupID = getenv("KAFKA_GROUP_ID", c.KafkaGroupID)
	c.TaxRate = getenv("TAX_RATE", c.TaxRate)
	c.AdminName = getenv("ADMIN_NAME", c.AdminName)
	c.AdminEmail = getenv("ADMIN_EMAIL", c.AdminEmail)
	c.AdminPassword = getenv("ADMIN_PASSWORD", c.AdminPassword)
	c.NotifyAdminEmail = getenv("NOTIFY_ADMIN_EMAIL", c.NotifyAdminEmail)
	c.NotifyFromEmail = getenv("NOTIFY_FROM_EMAIL", c.NotifyFromEmail)
	c.SendGridAPIKey = getenv("SENDGRID_API_KEY", c.SendGridAPIKey)
	c.Tracing = strings.ToLower(getenv("TRACING", c.Tracing))

	var err error
	if c.DeliveryLeadDays, err = envInt("DELIVERY_LEAD_DAYS", c.DeliveryLeadDays); err != nil {
		return err
	}
	if c.OutboxBatch, err = envInt("OUTBOX_BATCH", c.OutboxBatch); err != nil {
		return err
	}
	for key, dst := range map[string]*time.Duration{
		"REQUEST_TIMEOUT": &c.RequestTimeout,
		"CART_TTL":        &c.CartTTL,
		"SESSION_TTL":     &c.SessionTTL,
		"OUTBOX_INTERVAL": &c.OutboxInterval,
	} {
		if *dst, err = envDuration(key, *dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validate() error {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil || rate.IsNegative() {
		return fmt.Errorf("TAX_RATE %q: %w", c.TaxRate, ErrInvalidConfig)
	}
	c.Tax = rate
	if c.DeliveryLeadDays < 0 {
		return fmt.Errorf("DELIVERY_LEAD_DAYS must be >= 0: %w", ErrInvalidConfig)
	}
	if c.OutboxBatch <= 0 {
		return fmt.Errorf("OUTBOX_BATCH must be > 0: %w", ErrInvalidConfig)
	}
	switch c.Tracing {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("TRACING %q: %w", c.Tracing, ErrInvalidConfig)
	}
	return nil
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) (int, error) {
	v := getenv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", k, v, ErrInvalidConfig)
	}
	return n, nil
}

// envDuration accepts Go durations ("90s") or plain milliseconds.
func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := getenv(k, "")
	if v == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", k, v, ErrInvalidConfig)
	}
	return d, nil
}
