package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, HardwareSimulate, cfg.Hardware.Mode)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Empty(t, cfg.Database.Path)
	assert.Equal(t, 10*time.Second, cfg.HardwareTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.HardwareRetryWait())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  ignore_pause: true
database:
  path: /var/lib/labrun/journal.db
hardware:
  mode: serial
  address: 127.0.0.1:7000
  retries: 2
mqtt:
  enabled: true
  host: broker.local
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Engine.IgnorePause)
	assert.False(t, cfg.Engine.StartPaused)
	assert.Equal(t, "/var/lib/labrun/journal.db", cfg.Database.Path)
	assert.Equal(t, HardwareSerial, cfg.Hardware.Mode)
	assert.Equal(t, 2, cfg.Hardware.Retries)
	assert.Equal(t, "ok\r\nok\r\n", cfg.Hardware.Ack)
	assert.Equal(t, "broker.local", cfg.MQTT.Host)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "hardware:\n  mode: simulate\n")
	t.Setenv("LABENGINE_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("LABENGINE_ENGINE_START_PAUSED", "true")
	t.Setenv("LABENGINE_MQTT_PORT", "8883")
	t.Setenv("LABENGINE_LOGGING_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.True(t, cfg.Engine.StartPaused)
	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestEnvOverrideParseErrors(t *testing.T) {
	t.Setenv("LABENGINE_HARDWARE_RETRIES", "many")
	_, err := LoadOrDefault("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LABENGINE_HARDWARE_RETRIES")
}

func TestLoadOrDefaultWithoutFile(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown hardware mode",
			mutate:  func(c *Config) { c.Hardware.Mode = "usb" },
			wantErr: "hardware.mode",
		},
		{
			name:    "serial without address",
			mutate:  func(c *Config) { c.Hardware.Mode = HardwareSerial },
			wantErr: "hardware.address",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Hardware.Retries = -1 },
			wantErr: "hardware.retries",
		},
		{
			name:    "bad qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name: "mqtt without port",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Port = 0
			},
			wantErr: "mqtt.port",
		},
		{
			name:    "file output without path",
			mutate:  func(c *Config) { c.Logging.Output = "file" },
			wantErr: "logging.file.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	_, err = Load(writeConfig(t, "engine: ["))
	assert.ErrorContains(t, err, "parsing config file")

	_, err = Load(writeConfig(t, "hardware:\n  mode: usb\n"))
	assert.ErrorContains(t, err, "validating config")
}
