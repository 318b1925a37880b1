// Package config loads the daemon's optional configuration file (§6):
// wake-webhook connection parameters and remote-bridge pairing settings.
package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/cua-dev/cuad/internal/state"
)

// Config holds all runtime configuration for the daemon. Every field has
// a safe zero-value default, since the config file itself is optional.
type Config struct {
	WakeWebhookURL   string
	WakeWebhookToken string

	RemoteBridgeEnabled  bool
	RemoteBridgeBindMode string
	RemoteBridgePort     int
	RemoteBridgeSecret   string
	RemoteBridgeTokenTTLSeconds int

	AccessibilityMaxDepth int
	SettlingSleepMillis   int
}

// Load reads configuration from viper, which merges the optional config
// file at state.ConfigFile() (if present) with built-in defaults. A
// missing config file is not an error — the daemon runs with defaults.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("remote_bridge.enabled", false)
	v.SetDefault("remote_bridge.bind_mode", "loopback")
	v.SetDefault("remote_bridge.port", 8787)
	v.SetDefault("remote_bridge.token_ttl_seconds", 3600)
	v.SetDefault("accessibility.max_depth", 50)
	v.SetDefault("accessibility.settling_sleep_millis", 150)

	path, err := state.ConfigFile()
	if err != nil {
		return Config{}, err
	}
	dir := filepath.Dir(path)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	v.AddConfigPath(dir)
	v.SetConfigName(name)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, err
		}
	}

	return Config{
		WakeWebhookURL:              v.GetString("wake_webhook.url"),
		WakeWebhookToken:            v.GetString("wake_webhook.token"),
		RemoteBridgeEnabled:         v.GetBool("remote_bridge.enabled"),
		RemoteBridgeBindMode:        v.GetString("remote_bridge.bind_mode"),
		RemoteBridgePort:            v.GetInt("remote_bridge.port"),
		RemoteBridgeSecret:          v.GetString("remote_bridge.secret"),
		RemoteBridgeTokenTTLSeconds: v.GetInt("remote_bridge.token_ttl_seconds"),
		AccessibilityMaxDepth:       v.GetInt("accessibility.max_depth"),
		SettlingSleepMillis:         v.GetInt("accessibility.settling_sleep_millis"),
	}, nil
}
