package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for netbeacon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Network    NetworkConfig    `yaml:"network"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	NTP        NTPConfig        `yaml:"ntp"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Topics     TopicsConfig     `yaml:"topics"`
	Announce   AnnounceConfig   `yaml:"announce"`
	Console    ConsoleConfig    `yaml:"console"`
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	DevBroker  DevBrokerConfig  `yaml:"devbroker"`
}

// DeviceConfig describes how the device identifies itself to the broker.
type DeviceConfig struct {
	// Label is the fixed prefix of the device identity. The hardware
	// address is appended to it (e.g. "myDevice_AA:BB:CC:DD:EE:FF").
	Label string `yaml:"label"`
}

// NetworkConfig contains network link settings.
type NetworkConfig struct {
	// Interface is the network interface to watch. Empty picks the first
	// non-loopback interface that is up.
	Interface string `yaml:"interface"`

	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`

	// JoinCommand is an optional command run once to associate the link
	// (e.g. ["nmcli", "device", "wifi", "connect", "{ssid}", "password", "{password}"]).
	// The placeholders {ssid}, {password} and {interface} are expanded.
	JoinCommand []string `yaml:"join_command"`

	// JoinTimeout bounds the wait for the link to come up.
	JoinTimeout time.Duration `yaml:"join_timeout"`

	// PollInterval is the delay between link status polls while joining.
	PollInterval time.Duration `yaml:"poll_interval"`
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
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// KeepAlive is the MQTT keep-alive interval.
	KeepAlive time.Duration `yaml:"keep_alive"`

	// ConnectTimeout bounds a single connect attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	// Delay is the wait between failed connect attempts.
	Delay time.Duration `yaml:"delay"`

	// MaxDelay caps the delay when Multiplier is greater than 1.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier grows the delay after each failure. 1 (or 0) keeps it fixed.
	Multiplier float64 `yaml:"multiplier"`

	// MaxAttempts limits connect attempts per outage. 0 means unlimited.
	MaxAttempts int `yaml:"max_attempts"`
}

// NTPConfig contains time synchronisation settings.
type NTPConfig struct {
	Server string `yaml:"server"`

	// Offset is the fixed UTC offset applied to formatted time, in seconds.
	Offset int `yaml:"offset"`

	// UpdateInterval is how long a successful sync stays fresh.
	UpdateInterval time.Duration `yaml:"update_interval"`

	// Timeout bounds a single NTP query.
	Timeout time.Duration `yaml:"timeout"`
}

// HeartbeatConfig contains the periodic publish settings.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`

	// MaxPayload is the largest formatted time payload accepted, in bytes.
	MaxPayload int `yaml:"max_payload"`

	// LoopTick is the idle delay between loop iterations.
	LoopTick time.Duration `yaml:"loop_tick"`
}

// TopicsConfig names the fixed broker topics.
type TopicsConfig struct {
	Announce string `yaml:"announce"`
	Inbound  string `yaml:"inbound"`

	// IPSuffix is appended to the device identity for the IP address topic.
	IPSuffix string `yaml:"ip_suffix"`
}

// AnnounceConfig holds the message published after every connect.
type AnnounceConfig struct {
	Payload string `yaml:"payload"`
}

// ConsoleConfig contains console output settings.
type ConsoleConfig struct {
	// SerialPort mirrors console output to a serial device when set.
	SerialPort string `yaml:"serial_port"`
	Baud       int    `yaml:"baud"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite journal settings.
type DatabaseConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout int           `yaml:"busy_timeout"`
	Retention   time.Duration `yaml:"retention"`
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

// SupervisorConfig controls restarts of the beacon process.
type SupervisorConfig struct {
	RestartDelay       time.Duration `yaml:"restart_delay"`
	MaxRestartAttempts int           `yaml:"max_restart_attempts"`
	GracefulTimeout    time.Duration `yaml:"graceful_timeout"`
}

// DevBrokerConfig configures the embedded development broker.
type DevBrokerConfig struct {
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: NETBEACON_SECTION_KEY
// For example: NETBEACON_MQTT_HOST, NETBEACON_WIFI_PASSWORD
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with the stock beacon settings.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Label: "myDevice_",
		},
		Network: NetworkConfig{
			JoinTimeout:  10 * time.Second,
			PollInterval: 500 * time.Millisecond,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:           "localhost",
				Port:           1883,
				KeepAlive:      15 * time.Second,
				ConnectTimeout: 5 * time.Second,
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				Delay:       5 * time.Second,
				MaxDelay:    5 * time.Second,
				Multiplier:  1,
				MaxAttempts: 0,
			},
		},
		NTP: NTPConfig{
			Server:         "pool.ntp.org",
			Offset:         3600,
			UpdateInterval: 60 * time.Second,
			Timeout:        2 * time.Second,
		},
		Heartbeat: HeartbeatConfig{
			Interval:   1000 * time.Millisecond,
			MaxPayload: 50,
			LoopTick:   10 * time.Millisecond,
		},
		Topics: TopicsConfig{
			Announce: "outTopic",
			Inbound:  "inTopic",
			IPSuffix: "/IPaddr",
		},
		Announce: AnnounceConfig{
			Payload: "hello world",
		},
		Console: ConsoleConfig{
			Baud: 57600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Database: DatabaseConfig{
			Path:        "./data/netbeacon.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   7 * 24 * time.Hour,
		},
		Supervisor: SupervisorConfig{
			RestartDelay:       time.Second,
			MaxRestartAttempts: 0,
			GracefulTimeout:    5 * time.Second,
		},
		DevBroker: DevBrokerConfig{
			Port: 1883,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Secrets belong here rather than in the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NETBEACON_DEVICE_LABEL"); v != "" {
		cfg.Device.Label = v
	}

	// Network
	if v := os.Getenv("NETBEACON_WIFI_SSID"); v != "" {
		cfg.Network.SSID = v
	}
	if v := os.Getenv("NETBEACON_WIFI_PASSWORD"); v != "" {
		cfg.Network.Password = v
	}
	if v := os.Getenv("NETBEACON_INTERFACE"); v != "" {
		cfg.Network.Interface = v
	}

	// MQTT
	if v := os.Getenv("NETBEACON_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NETBEACON_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("NETBEACON_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NETBEACON_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("NETBEACON_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.Label == "" {
		errs = append(errs, "device.label is required")
	}

	if c.Network.JoinTimeout <= 0 {
		errs = append(errs, "network.join_timeout must be positive")
	}
	if c.Network.PollInterval <= 0 {
		errs = append(errs, "network.poll_interval must be positive")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.Delay <= 0 {
		errs = append(errs, "mqtt.reconnect.delay must be positive")
	}
	if c.MQTT.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "mqtt.reconnect.max_attempts must not be negative")
	}

	if c.NTP.Server == "" {
		errs = append(errs, "ntp.server is required")
	}

	if c.Heartbeat.Interval <= 0 {
		errs = append(errs, "heartbeat.interval must be positive")
	}
	if c.Heartbeat.MaxPayload <= 0 {
		errs = append(errs, "heartbeat.max_payload must be positive")
	}

	if c.Topics.Announce == "" || c.Topics.Inbound == "" {
		errs = append(errs, "topics.announce and topics.inbound are required")
	}
	if c.Topics.IPSuffix == "" {
		errs = append(errs, "topics.ip_suffix is required")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerAddress returns the broker as host:port.
func (c *Config) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}
