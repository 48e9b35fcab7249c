// Package config provides configuration management for dropwatch.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings lists every recognized environment variable and the
// mapstructure key it binds to, matching the environment table verbatim.
var envBindings = map[string]string{
	"DATABASE_URL":                "database_url",
	"POLL_INTERVAL_MINUTES":       "poll_interval_minutes",
	"DISCOVERY_INTERVAL_HOURS":    "discovery_interval_hours",
	"PRE_START_WINDOW_MINUTES":    "pre_start_window_minutes",
	"TIMEZONE":                    "timezone",
	"LOG_LEVEL":                   "log_level",
	"REQUEST_DELAY_SECONDS":       "request_delay_seconds",
	"MAX_RETRIES":                 "max_retries",
	"NOTIFICATIONS_ENABLED":       "notifications_enabled",
	"TELEGRAM_BOT_TOKEN":          "telegram_bot_token",
	"TELEGRAM_CHAT_ID":            "telegram_chat_id",
	"PROXY_ENABLED":               "proxy_enabled",
	"PROXY_USERNAME":              "proxy_username",
	"PROXY_PASSWORD":              "proxy_password",
	"PROXY_ENDPOINT":              "proxy_endpoint",
	"ENABLE_TIMESTAMP_CORRECTION": "enable_timestamp_correction",
}

// Load reads configuration from the process environment, optionally
// preloaded from a .env file. A missing .env file is not an error — it
// is a development convenience, not a required configuration source.
func Load(dotenvPath string) (*Config, error) {
	_ = godotenv.Load(dotenvPath)

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for envKey, mapKey := range envBindings {
		if err := v.BindEnv(mapKey, envKey); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", envKey, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("poll_interval_minutes", 5)
	v.SetDefault("discovery_interval_hours", 2)
	v.SetDefault("pre_start_window_minutes", 30)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("log_level", "info")
	v.SetDefault("request_delay_seconds", 1)
	v.SetDefault("max_retries", 3)
	v.SetDefault("notifications_enabled", true)
	v.SetDefault("proxy_enabled", false)
	v.SetDefault("enable_timestamp_correction", true)
}
