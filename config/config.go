// Package config defines the host daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Broadcast transports.
const (
	TransportNone  = "none"
	TransportNATS  = "nats"
	TransportKafka = "kafka"
)

// Duration is a time.Duration that unmarshals from a YAML string like "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RedisConfig configures the Redis state backend.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password,omitempty"`
	DB       int      `yaml:"db,omitempty"`
	Prefix   string   `yaml:"prefix,omitempty"`
	TTL      Duration `yaml:"ttl,omitempty"`
}

// PostgresConfig configures the Postgres state backend.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// StoreConfig selects and configures the state persistence backend.
type StoreConfig struct {
	Backend  string         `yaml:"backend"`
	Redis    RedisConfig    `yaml:"redis,omitempty"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// NATSConfig configures the NATS broadcast transport.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject,omitempty"`
}

// KafkaConfig configures the Kafka broadcast transport.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic,omitempty"`
	GroupID string   `yaml:"groupId,omitempty"`
}

// BroadcastConfig selects the cross-host broadcast transport.
type BroadcastConfig struct {
	Transport string      `yaml:"transport"`
	NATS      NATSConfig  `yaml:"nats,omitempty"`
	Kafka     KafkaConfig `yaml:"kafka,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug | info | warn | error
	Format string `yaml:"format,omitempty"` // text | json
}

// HostConfig is the full daemon configuration.
type HostConfig struct {
	Name            string          `yaml:"name,omitempty"`
	Listen          string          `yaml:"listen,omitempty"`
	AssetBase       string          `yaml:"assetBase,omitempty"`
	WidgetDirs      []string        `yaml:"widgetDirs,omitempty"`
	PersistDebounce Duration        `yaml:"persistDebounce,omitempty"`
	Store           StoreConfig     `yaml:"store"`
	Broadcast       BroadcastConfig `yaml:"broadcast"`
	Log             LogConfig       `yaml:"log"`
}

// Default returns a HostConfig with every field at its default.
func Default() *HostConfig {
	return &HostConfig{
		Listen:    ":8090",
		AssetBase: "/assets",
		Store:     StoreConfig{Backend: StoreMemory},
		Broadcast: BroadcastConfig{Transport: TransportNone},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// LoadFromFile loads a host configuration from a YAML file, applying
// defaults for absent fields.
func LoadFromFile(path string) (*HostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends are complete and known.
func (c *HostConfig) Validate() error {
	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Broadcast.Transport {
	case TransportNone:
	case TransportNATS:
		if c.Broadcast.NATS.URL == "" {
			return fmt.Errorf("broadcast.nats.url is required for the nats transport")
		}
	case TransportKafka:
		if len(c.Broadcast.Kafka.Brokers) == 0 {
			return fmt.Errorf("broadcast.kafka.brokers is required for the kafka transport")
		}
	default:
		return fmt.Errorf("unknown broadcast transport %q", c.Broadcast.Transport)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
