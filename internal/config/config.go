// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker            string
	MQTTClientIDLogger    string
	MQTTClientIDWeb       string
	MQTTClientIDSimulator string
	MQTTClientIDConsole   string

	// Topics
	TopicIMU     string // device node; scalar fields arrive on TopicIMU/<field>
	TopicSamples string // resolved samples, republished for live views

	// Logging
	LogPath  string // CSV sample log
	LogLevel string // logrus level name

	// Resolver
	RepNeutralThreshold float64
	UpdateQueueSize     int // burst ceiling before MQTT delivery stalls

	// Web Server
	WebServerPort int

	// Simulator
	SimInterval       int // milliseconds
	SimSessionID      int
	SimMode           int
	SimPartialUpdates bool
	SimAmplitude      float64 // degrees

	// Forecast
	ForecastSessionsToUse  int
	ForecastUseLatest      bool
	ForecastMinSessions    int
	ForecastMaxROM         float64
	ForecastClipMin        float64
	ForecastClipMax        float64
	ForecastTargetFraction float64
	ForecastMaxHorizon     int
}

// EnvPrefix prefixes environment variables that override file values,
// e.g. REHAB_MQTT_BROKER.
const EnvPrefix = "REHAB"

// defaults also define the set of accepted keys.
var defaults = map[string]any{
	"MQTT_BROKER":              "tcp://localhost:1883",
	"MQTT_CLIENT_ID_LOGGER":    "rehab-logger",
	"MQTT_CLIENT_ID_WEB":       "rehab-web",
	"MQTT_CLIENT_ID_SIMULATOR": "rehab-simulator",
	"MQTT_CLIENT_ID_CONSOLE":   "rehab-console",

	"TOPIC_IMU":     "IMU",
	"TOPIC_SAMPLES": "rehab/samples",

	"LOG_PATH":  "imu_data.csv",
	"LOG_LEVEL": "info",

	"REP_NEUTRAL_THRESHOLD": 1e-3,
	"UPDATE_QUEUE_SIZE":     256,

	"WEB_SERVER_PORT": 8080,

	"SIM_INTERVAL":        100,
	"SIM_SESSION_ID":      1,
	"SIM_MODE":            1,
	"SIM_PARTIAL_UPDATES": true,
	"SIM_AMPLITUDE":       45.0,

	"FORECAST_SESSIONS_TO_USE": 20,
	"FORECAST_USE_LATEST":      false,
	"FORECAST_MIN_SESSIONS":    10,
	"FORECAST_MAX_ROM":         170.0,
	"FORECAST_CLIP_MIN":        -70.0,
	"FORECAST_CLIP_MAX":        70.0,
	"FORECAST_TARGET_FRACTION": 0.95,
	"FORECAST_MAX_HORIZON":     1000,
}

// Package-level singleton, set once by InitGlobal and read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE configuration file. Blank lines and lines starting
// with # are ignored. Keys missing from the file take their defaults, and
// REHAB_<KEY> environment variables win over both.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	for _, key := range v.AllKeys() {
		if _, ok := defaults[strings.ToUpper(key)]; !ok {
			return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(key))
		}
	}

	return fromViper(v)
}

// Defaults returns the configuration with no file, environment overrides only.
func Defaults() (*Config, error) {
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	for key := range defaults {
		if err := cfg.setValue(key, v.Get(key)); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key string, raw any) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker, err = cast.ToStringE(raw)
	case "MQTT_CLIENT_ID_LOGGER":
		c.MQTTClientIDLogger, err = cast.ToStringE(raw)
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb, err = cast.ToStringE(raw)
	case "MQTT_CLIENT_ID_SIMULATOR":
		c.MQTTClientIDSimulator, err = cast.ToStringE(raw)
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole, err = cast.ToStringE(raw)

	// Topics
	case "TOPIC_IMU":
		c.TopicIMU, err = cast.ToStringE(raw)
	case "TOPIC_SAMPLES":
		c.TopicSamples, err = cast.ToStringE(raw)

	// Logging
	case "LOG_PATH":
		c.LogPath, err = cast.ToStringE(raw)
	case "LOG_LEVEL":
		c.LogLevel, err = cast.ToStringE(raw)

	// Resolver
	case "REP_NEUTRAL_THRESHOLD":
		c.RepNeutralThreshold, err = cast.ToFloat64E(raw)
	case "UPDATE_QUEUE_SIZE":
		c.UpdateQueueSize, err = cast.ToIntE(raw)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = cast.ToIntE(raw)

	// Simulator
	case "SIM_INTERVAL":
		c.SimInterval, err = cast.ToIntE(raw)
	case "SIM_SESSION_ID":
		c.SimSessionID, err = cast.ToIntE(raw)
	case "SIM_MODE":
		c.SimMode, err = cast.ToIntE(raw)
	case "SIM_PARTIAL_UPDATES":
		c.SimPartialUpdates, err = cast.ToBoolE(raw)
	case "SIM_AMPLITUDE":
		c.SimAmplitude, err = cast.ToFloat64E(raw)

	// Forecast
	case "FORECAST_SESSIONS_TO_USE":
		c.ForecastSessionsToUse, err = cast.ToIntE(raw)
	case "FORECAST_USE_LATEST":
		c.ForecastUseLatest, err = cast.ToBoolE(raw)
	case "FORECAST_MIN_SESSIONS":
		c.ForecastMinSessions, err = cast.ToIntE(raw)
	case "FORECAST_MAX_ROM":
		c.ForecastMaxROM, err = cast.ToFloat64E(raw)
	case "FORECAST_CLIP_MIN":
		c.ForecastClipMin, err = cast.ToFloat64E(raw)
	case "FORECAST_CLIP_MAX":
		c.ForecastClipMax, err = cast.ToFloat64E(raw)
	case "FORECAST_TARGET_FRACTION":
		c.ForecastTargetFraction, err = cast.ToFloat64E(raw)
	case "FORECAST_MAX_HORIZON":
		c.ForecastMaxHorizon, err = cast.ToIntE(raw)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	if err != nil {
		return fmt.Errorf("invalid %s %v: %w", key, raw, err)
	}
	return nil
}

// validate checks that required fields are set and in range.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicIMU == "" {
		return fmt.Errorf("TOPIC_IMU is required")
	}
	if c.LogPath == "" {
		return fmt.Errorf("LOG_PATH is required")
	}
	if c.RepNeutralThreshold <= 0 {
		return fmt.Errorf("REP_NEUTRAL_THRESHOLD must be positive, got %g", c.RepNeutralThreshold)
	}
	if c.UpdateQueueSize <= 0 {
		return fmt.Errorf("UPDATE_QUEUE_SIZE must be positive, got %d", c.UpdateQueueSize)
	}
	if c.SimInterval <= 0 {
		return fmt.Errorf("SIM_INTERVAL must be positive, got %d", c.SimInterval)
	}
	if c.SimMode != 1 && c.SimMode != 2 {
		return fmt.Errorf("SIM_MODE must be 1 (y axis) or 2 (z axis), got %d", c.SimMode)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
