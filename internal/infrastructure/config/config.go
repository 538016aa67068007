package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for twinbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Instance InstanceConfig    `yaml:"instance"`
	Database DatabaseConfig    `yaml:"database"`
	MQTT     MQTTConfig        `yaml:"mqtt"`
	API      APIConfig         `yaml:"api"`
	InfluxDB InfluxDBConfig    `yaml:"influxdb"`
	Logging  LoggingConfig     `yaml:"logging"`
	Sync     SyncConfig        `yaml:"sync"`
	Tenants  map[string]Tenant `yaml:"tenants"`
}

// InstanceConfig identifies this process instance within a scaled-out deployment.
type InstanceConfig struct {
	// ID is the stable instance identifier used as the origin tag on outbound
	// bus events. Leave empty to have a random identity assigned at startup.
	ID string `yaml:"id"`
}

// DatabaseConfig contains SQLite database settings for the local registry.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP status API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings for sync-activity recording.
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

// SyncConfig contains settings for the reconciliation engine.
type SyncConfig struct {
	// PollIntervalMS is the attribute-poll scheduler period in milliseconds.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// PageSize is the number of attribute-requested devices fetched per page
	// during a poll run.
	PageSize int `yaml:"page_size"`

	// LockTTLSeconds bounds how long a crashed instance can hold the cluster
	// poll lock before another instance may steal it.
	LockTTLSeconds int `yaml:"lock_ttl_seconds"`

	// RequestTimeoutSeconds is the per-request timeout for hub transport calls.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

// Tenant maps one tenant to its hub endpoint and per-direction sync toggles.
type Tenant struct {
	// HubName is the hub endpoint name. Must be unique across tenants
	// (case-insensitive); uniqueness is enforced by Validate.
	HubName string `yaml:"hub_name"`

	// ConnectionString is the hub shared-access connection string.
	ConnectionString string `yaml:"connection_string"`

	// HubToLocal enables hub → local registry propagation. Default true.
	HubToLocal *bool `yaml:"hub_to_local_enabled"`

	// LocalToHub enables local registry → hub propagation. Default true.
	LocalToHub *bool `yaml:"local_to_hub_enabled"`
}

// HubToLocalEnabled reports whether hub → local propagation is on (default true).
func (t Tenant) HubToLocalEnabled() bool {
	return t.HubToLocal == nil || *t.HubToLocal
}

// LocalToHubEnabled reports whether local → hub propagation is on (default true).
func (t Tenant) LocalToHubEnabled() bool {
	return t.LocalToHub == nil || *t.LocalToHub
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TWINBRIDGE_SECTION_KEY
// For example: TWINBRIDGE_DATABASE_PATH, TWINBRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/twinbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "twinbridge-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Sync: SyncConfig{
			PollIntervalMS:        2000,
			PageSize:              1000,
			LockTTLSeconds:        60,
			RequestTimeoutSeconds: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TWINBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Instance
	if v := os.Getenv("TWINBRIDGE_INSTANCE_ID"); v != "" {
		cfg.Instance.ID = v
	}

	// Database
	if v := os.Getenv("TWINBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("TWINBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TWINBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TWINBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("TWINBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Sync
	if v := os.Getenv("TWINBRIDGE_SYNC_POLL_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Sync.PollIntervalMS = ms
		}
	}
}

// Validate checks the configuration for errors.
//
// Beyond field-level checks it enforces the hub-name uniqueness invariant:
// two tenants sharing one hub name would make reverse tenant resolution
// ambiguous, so ambiguity is rejected here at load time rather than
// surfacing at lookup time.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Sync validation
	if c.Sync.PollIntervalMS < 1 {
		errs = append(errs, "sync.poll_interval_ms must be positive")
	}
	if c.Sync.PageSize < 1 {
		errs = append(errs, "sync.page_size must be positive")
	}

	// Tenant validation: required fields plus case-insensitive hub-name
	// uniqueness across all tenants.
	seenHubs := make(map[string]string, len(c.Tenants))
	for tenantID, tenant := range c.Tenants {
		if tenant.HubName == "" {
			errs = append(errs, fmt.Sprintf("tenants.%s.hub_name is required", tenantID))
			continue
		}
		if tenant.ConnectionString == "" {
			errs = append(errs, fmt.Sprintf("tenants.%s.connection_string is required", tenantID))
		}

		key := strings.ToLower(tenant.HubName)
		if other, dup := seenHubs[key]; dup {
			errs = append(errs, fmt.Sprintf(
				"tenants.%s.hub_name %q is already mapped to tenant %q", tenantID, tenant.HubName, other))
		} else {
			seenHubs[key] = tenantID
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the attribute-poll scheduler period as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Sync.PollIntervalMS) * time.Millisecond
}

// LockTTL returns the cluster poll-lock lease duration.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Sync.LockTTLSeconds) * time.Second
}

// RequestTimeout returns the per-request timeout for hub transport calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Sync.RequestTimeoutSeconds) * time.Second
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
