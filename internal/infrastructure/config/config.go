package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers understood by the infrastructure/database package.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Webhook identity policies.
//
// "required" rejects uplinks that carry no usable device EUI.
// "optional" stores the measurement without a sensor association.
const (
	IdentityRequired = "required"
	IdentityOptional = "optional"
)

// Config is the root configuration structure for ITH Monitor Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Downlink  DownlinkConfig  `yaml:"downlink"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig contains relational store settings.
//
// For the sqlite driver only Path, WALMode and BusyTimeout are used.
// For the postgres driver Host, Port, User, Password, Name and SSLMode are used,
// unless DSN is set, which replaces them all.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	Driver       string `yaml:"driver"`
	Path         string `yaml:"path"`
	WALMode      bool   `yaml:"wal_mode"`
	BusyTimeout  int    `yaml:"busy_timeout"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host         string           `yaml:"host"`
	Port         int              `yaml:"port"`
	Timeouts     APITimeoutConfig `yaml:"timeouts"`
	CORS         CORSConfig       `yaml:"cors"`
	MaxBodyBytes int64            `yaml:"max_body_bytes"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebhookConfig controls how network-server uplinks are ingested.
type WebhookConfig struct {
	IdentityPolicy string `yaml:"identity_policy"`
}

// DownlinkConfig contains network-server downlink API settings.
type DownlinkConfig struct {
	// BaseURL overrides the region-derived cluster URL when set.
	BaseURL  string `yaml:"base_url"`
	Region   string `yaml:"region"`
	APIKey   string `yaml:"api_key"`
	FPort    int    `yaml:"f_port"`
	Priority string `yaml:"priority"`
	// Timeout in seconds for a single push request.
	Timeout int `yaml:"timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// WebSocketConfig contains live stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ITHMONITOR_SECTION_KEY
// For example: ITHMONITOR_DB_HOST, ITHMONITOR_API_PORT, ITHMONITOR_TTN_API_KEY
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// Used when no config file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			Path:         "./data/ithmonitor.db",
			WALMode:      true,
			BusyTimeout:  5,
			Port:         5432,
			SSLMode:      "disable",
			MaxOpenConns: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			MaxBodyBytes: 1 << 20,
		},
		Webhook: WebhookConfig{
			IdentityPolicy: IdentityRequired,
		},
		Downlink: DownlinkConfig{
			Region:   "nam1",
			FPort:    1,
			Priority: "NORMAL",
			Timeout:  10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ithmonitor-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Org:           "ithmonitor",
			Bucket:        "mediciones",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("ITHMONITOR_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ITHMONITOR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ITHMONITOR_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ITHMONITOR_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("ITHMONITOR_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ITHMONITOR_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ITHMONITOR_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ITHMONITOR_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// API
	if v := os.Getenv("ITHMONITOR_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ITHMONITOR_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Webhook
	if v := os.Getenv("ITHMONITOR_IDENTITY_POLICY"); v != "" {
		cfg.Webhook.IdentityPolicy = v
	}

	// Downlink
	if v := os.Getenv("ITHMONITOR_TTN_API_KEY"); v != "" {
		cfg.Downlink.APIKey = v
	}
	if v := os.Getenv("ITHMONITOR_TTN_BASE_URL"); v != "" {
		cfg.Downlink.BaseURL = v
	}
	if v := os.Getenv("ITHMONITOR_TTN_REGION"); v != "" {
		cfg.Downlink.Region = v
	}

	// MQTT
	if v := os.Getenv("ITHMONITOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ITHMONITOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ITHMONITOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("ITHMONITOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN != "" {
			break
		}
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required for the postgres driver")
		}
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for the postgres driver")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			errs = append(errs, "database.port must be between 1 and 65535")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be %q or %q", DriverSQLite, DriverPostgres))
	}
	if c.Database.MaxOpenConns < 0 {
		errs = append(errs, "database.max_open_conns must not be negative")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch c.Webhook.IdentityPolicy {
	case IdentityRequired, IdentityOptional:
	default:
		errs = append(errs, fmt.Sprintf("webhook.identity_policy must be %q or %q", IdentityRequired, IdentityOptional))
	}

	if c.Downlink.FPort < 1 || c.Downlink.FPort > 223 {
		errs = append(errs, "downlink.f_port must be between 1 and 223")
	}
	if c.Downlink.BaseURL == "" && c.Downlink.Region == "" {
		errs = append(errs, "downlink.region or downlink.base_url is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DownlinkBaseURL returns the network-server cluster URL used for downlink pushes.
func (c *Config) DownlinkBaseURL() string {
	if c.Downlink.BaseURL != "" {
		return strings.TrimRight(c.Downlink.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.cloud.thethings.network", c.Downlink.Region)
}

// GetDownlinkTimeout returns the downlink push timeout as a Duration.
func (c *Config) GetDownlinkTimeout() time.Duration {
	return time.Duration(c.Downlink.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
