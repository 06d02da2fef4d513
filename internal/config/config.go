// Package config loads labrun configuration.
//
// Values come from, in order of precedence:
//  1. LABENGINE_SECTION_KEY environment variables
//  2. the YAML file passed to Load
//  3. Default()
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Hardware modes.
const (
	HardwareSimulate = "simulate"
	HardwareSerial   = "serial"
)

// Config is the root configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Database DatabaseConfig `yaml:"database"`
	Hardware HardwareConfig `yaml:"hardware"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// EngineConfig contains run-control settings.
type EngineConfig struct {
	IgnorePause bool `yaml:"ignore_pause"`
	StartPaused bool `yaml:"start_paused"`
}

// DatabaseConfig contains run journal settings. An empty path disables
// the journal.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HardwareConfig selects and configures the hardware backend.
type HardwareConfig struct {
	Mode         string `yaml:"mode"`
	Address      string `yaml:"address"`
	Ack          string `yaml:"ack"`
	Timeout      int    `yaml:"timeout"`    // milliseconds
	Retries      int    `yaml:"retries"`
	RetryWait    int    `yaml:"retry_wait"` // milliseconds
	ErrorKeyword string `yaml:"error_keyword"`
	AlarmKeyword string `yaml:"alarm_keyword"`
}

// MQTTConfig contains status publisher settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         int    `yaml:"qos"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains rotating log file settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

// Load reads path over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, or Default plus environment overrides when path
// is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg := Default()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration: simulated hardware, no
// journal, no MQTT.
func Default() *Config {
	return &Config{
		Hardware: HardwareConfig{
			Mode:         HardwareSimulate,
			Ack:          "ok\r\nok\r\n",
			Timeout:      10000,
			Retries:      0,
			RetryWait:    100,
			ErrorKeyword: "error",
			AlarmKeyword: "alarm",
		},
		MQTT: MQTTConfig{
			Host:        "localhost",
			Port:        1883,
			ClientID:    "labrun",
			QoS:         1,
			TopicPrefix: "labengine",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
			File: FileLoggingConfig{
				MaxSize:    50,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies LABENGINE_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config) error {
	var errs []string

	boolVar := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
				return
			}
			*dst = b
		}
	}
	intVar := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
				return
			}
			*dst = n
		}
	}
	stringVar := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	// Engine
	boolVar("LABENGINE_ENGINE_IGNORE_PAUSE", &cfg.Engine.IgnorePause)
	boolVar("LABENGINE_ENGINE_START_PAUSED", &cfg.Engine.StartPaused)

	// Database
	stringVar("LABENGINE_DATABASE_PATH", &cfg.Database.Path)

	// Hardware
	stringVar("LABENGINE_HARDWARE_MODE", &cfg.Hardware.Mode)
	stringVar("LABENGINE_HARDWARE_ADDRESS", &cfg.Hardware.Address)
	intVar("LABENGINE_HARDWARE_RETRIES", &cfg.Hardware.Retries)

	// MQTT
	boolVar("LABENGINE_MQTT_ENABLED", &cfg.MQTT.Enabled)
	stringVar("LABENGINE_MQTT_HOST", &cfg.MQTT.Host)
	intVar("LABENGINE_MQTT_PORT", &cfg.MQTT.Port)
	stringVar("LABENGINE_MQTT_USERNAME", &cfg.MQTT.Username)
	stringVar("LABENGINE_MQTT_PASSWORD", &cfg.MQTT.Password)

	// Logging
	stringVar("LABENGINE_LOGGING_LEVEL", &cfg.Logging.Level)
	stringVar("LABENGINE_LOGGING_FORMAT", &cfg.Logging.Format)
	stringVar("LABENGINE_LOGGING_OUTPUT", &cfg.Logging.Output)

	if len(errs) > 0 {
		return fmt.Errorf("environment overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	switch c.Hardware.Mode {
	case HardwareSimulate:
	case HardwareSerial:
		if c.Hardware.Address == "" {
			errs = append(errs, "hardware.address is required in serial mode")
		}
		if c.Hardware.Ack == "" {
			errs = append(errs, "hardware.ack is required in serial mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("hardware.mode must be %q or %q", HardwareSimulate, HardwareSerial))
	}
	if c.Hardware.Retries < 0 {
		errs = append(errs, "hardware.retries must not be negative")
	}
	if c.Hardware.Timeout <= 0 {
		errs = append(errs, "hardware.timeout must be positive")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Host == "" {
			errs = append(errs, "mqtt.host is required when mqtt is enabled")
		}
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			errs = append(errs, "mqtt.port must be between 1 and 65535")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "stderr":
	case "file":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required when logging.output is file")
		}
	default:
		errs = append(errs, "logging.output must be stdout, stderr, or file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// HardwareTimeout returns the serial response timeout.
func (c *Config) HardwareTimeout() time.Duration {
	return time.Duration(c.Hardware.Timeout) * time.Millisecond
}

// HardwareRetryWait returns the pause before a reconnect.
func (c *Config) HardwareRetryWait() time.Duration {
	return time.Duration(c.Hardware.RetryWait) * time.Millisecond
}
