// Package config loads event-server and bridge configuration, layering
// environment variables over an optional YAML file the way viper is used
// elsewhere in this codebase's ancestry.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EventServer is the enumerated configuration of one event server, per
// the external-interfaces contract.
type EventServer struct {
	AppName          string
	Workers          int
	IntakeCapacity   int
	PollInterval     time.Duration
	CleanupInterval  time.Duration
	CleanupRetention time.Duration
	AllowedHosts     []string
}

func defaults(v *viper.Viper) {
	v.SetDefault("workers", 4)
	v.SetDefault("intake_capacity", 256)
	v.SetDefault("poll_interval", "1s")
	v.SetDefault("cleanup_interval", "5m")
	v.SetDefault("cleanup_retention", "24h")
	v.SetDefault("allowed_hosts", []string{})
}

// Load reads an EventServer config for appName, layering (in increasing
// precedence) defaults, an optional YAML file at configPath, and
// SYFTBOX_-prefixed environment variables. configPath may be empty, in
// which case only defaults and environment apply.
func Load(appName, configPath string) (EventServer, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("syftbox")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return EventServer{}, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		}
	}

	pollInterval, err := time.ParseDuration(v.GetString("poll_interval"))
	if err != nil {
		return EventServer{}, fmt.Errorf("config: poll_interval: %w", err)
	}
	cleanupInterval, err := time.ParseDuration(v.GetString("cleanup_interval"))
	if err != nil {
		return EventServer{}, fmt.Errorf("config: cleanup_interval: %w", err)
	}
	cleanupRetention, err := time.ParseDuration(v.GetString("cleanup_retention"))
	if err != nil {
		return EventServer{}, fmt.Errorf("config: cleanup_retention: %w", err)
	}

	return EventServer{
		AppName:          appName,
		Workers:          v.GetInt("workers"),
		IntakeCapacity:   v.GetInt("intake_capacity"),
		PollInterval:     pollInterval,
		CleanupInterval:  cleanupInterval,
		CleanupRetention: cleanupRetention,
		AllowedHosts:     v.GetStringSlice("allowed_hosts"),
	}, nil
}
