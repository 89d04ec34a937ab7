package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
device:
  label: "bench_"
network:
  ssid: "lab"
  join_timeout: 3s
mqtt:
  broker:
    host: "broker.lan"
    port: 1884
  auth:
    username: "probe"
  reconnect:
    delay: 2s
heartbeat:
  interval: 250ms
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Label != "bench_" {
		t.Errorf("Device.Label = %q, want %q", cfg.Device.Label, "bench_")
	}
	if cfg.Network.JoinTimeout != 3*time.Second {
		t.Errorf("Network.JoinTimeout = %v, want 3s", cfg.Network.JoinTimeout)
	}
	if cfg.BrokerAddress() != "broker.lan:1884" {
		t.Errorf("BrokerAddress() = %q, want %q", cfg.BrokerAddress(), "broker.lan:1884")
	}
	if cfg.MQTT.Reconnect.Delay != 2*time.Second {
		t.Errorf("MQTT.Reconnect.Delay = %v, want 2s", cfg.MQTT.Reconnect.Delay)
	}
	if cfg.Heartbeat.Interval != 250*time.Millisecond {
		t.Errorf("Heartbeat.Interval = %v, want 250ms", cfg.Heartbeat.Interval)
	}

	// Untouched sections keep their defaults.
	if cfg.Topics.Announce != "outTopic" {
		t.Errorf("Topics.Announce = %q, want %q", cfg.Topics.Announce, "outTopic")
	}
	if cfg.Heartbeat.MaxPayload != 50 {
		t.Errorf("Heartbeat.MaxPayload = %d, want 50", cfg.Heartbeat.MaxPayload)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
mqtt:
  broker:
    port: 0
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for port 0, got nil")
	}
	if !strings.Contains(err.Error(), "mqtt.broker.port") {
		t.Errorf("Load() error = %v, want mention of mqtt.broker.port", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing device label",
			mutate:  func(c *Config) { c.Device.Label = "" },
			wantErr: true,
		},
		{
			name:    "zero join timeout",
			mutate:  func(c *Config) { c.Network.JoinTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero reconnect delay",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Delay = 0 },
			wantErr: true,
		},
		{
			name:    "zero heartbeat interval",
			mutate:  func(c *Config) { c.Heartbeat.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "missing inbound topic",
			mutate:  func(c *Config) { c.Topics.Inbound = "" },
			wantErr: true,
		},
		{
			name: "journal enabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("NETBEACON_DEVICE_LABEL", "rack7_")
	t.Setenv("NETBEACON_WIFI_SSID", "office")
	t.Setenv("NETBEACON_WIFI_PASSWORD", "wifi-secret")
	t.Setenv("NETBEACON_MQTT_HOST", "mqtt.example.com")
	t.Setenv("NETBEACON_MQTT_PORT", "8883")
	t.Setenv("NETBEACON_MQTT_USERNAME", "testuser")
	t.Setenv("NETBEACON_MQTT_PASSWORD", "testpass")
	t.Setenv("NETBEACON_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Device.Label != "rack7_" {
		t.Errorf("Device.Label = %q, want %q", cfg.Device.Label, "rack7_")
	}
	if cfg.Network.SSID != "office" || cfg.Network.Password != "wifi-secret" {
		t.Errorf("Network = %q/%q, want office/wifi-secret", cfg.Network.SSID, cfg.Network.Password)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %q/%q, want testuser/testpass", cfg.MQTT.Auth.Username, cfg.MQTT.Auth.Password)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := Default()
	t.Setenv("NETBEACON_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("Default MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Reconnect.Delay != 5*time.Second {
		t.Errorf("Default MQTT.Reconnect.Delay = %v, want 5s", cfg.MQTT.Reconnect.Delay)
	}
	if cfg.Network.JoinTimeout != 10*time.Second {
		t.Errorf("Default Network.JoinTimeout = %v, want 10s", cfg.Network.JoinTimeout)
	}
	if cfg.NTP.Offset != 3600 {
		t.Errorf("Default NTP.Offset = %d, want 3600", cfg.NTP.Offset)
	}
	if cfg.Heartbeat.Interval != time.Second {
		t.Errorf("Default Heartbeat.Interval = %v, want 1s", cfg.Heartbeat.Interval)
	}
	if cfg.Topics.IPSuffix != "/IPaddr" {
		t.Errorf("Default Topics.IPSuffix = %q, want /IPaddr", cfg.Topics.IPSuffix)
	}
}
