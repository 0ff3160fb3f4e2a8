// Package config loads daemon configuration from environment variables.
// Every setting has a default suitable for local use.
package config

import (
	"os"
	"time"
)

// Config holds the buskitd settings.
type Config struct {
	// ServiceName is the bus name the demo clock service registers under.
	ServiceName string

	// TickInterval is how often the clock service fans out the time to its
	// subscribers.
	TickInterval time.Duration

	// DumpInterval is how often the subscription dump is logged at debug
	// level. Zero disables periodic dumps.
	DumpInterval time.Duration
}

// Load reads configuration from the environment, using defaults where a
// variable is unset or unparsable.
func Load() *Config {
	return &Config{
		ServiceName:  getEnv("BUSKIT_SERVICE_NAME", "com.buskit.clock"),
		TickInterval: getDurationEnv("BUSKIT_TICK_INTERVAL", time.Second),
		DumpInterval: getDurationEnv("BUSKIT_DUMP_INTERVAL", 0),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
