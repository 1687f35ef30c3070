// Package config provides configuration parsing for the metricsviewer.
//
// The Prometheus server URL is the one piece of required configuration; a
// missing URL produces a readable setup message rather than a crash.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/josevnz/dashkit/pkg/promrange"
)

// Config holds all metricsviewer configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	// PromURL is the base URL of the Prometheus server, e.g.
	// http://raspberrypi:9090
	PromURL string
	// Query is the default expression when the client does not send one.
	Query string
	// Window is how far back a query reaches by default.
	Window time.Duration
	// Step is the sampling resolution, as a Prometheus duration string.
	Step string
}

// ParseFlags parses command-line flags and environment variables into a
// Config. Environment variables are used as fallbacks when flags are not
// provided.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8081"), "HTTP listen address")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.PromURL, "prom-url", getEnv("PROMETHEUS_URL", ""), "Prometheus server base URL (required)")
	flag.StringVar(&cfg.Query, "query", getEnv("QUERY", promrange.DefaultQuery), "Default query expression")
	flag.DurationVar(&cfg.Window, "window", getEnvDuration("WINDOW", promrange.DefaultWindow), "Default query window")
	flag.StringVar(&cfg.Step, "step", getEnv("STEP", promrange.DefaultStep), "Sampling step, e.g. 30s")

	flag.Parse()

	if cfg.PromURL == "" {
		fmt.Fprintln(os.Stderr, "Error: the Prometheus server URL is not configured.")
		fmt.Fprintln(os.Stderr, "Please define the following environment variable and restart (example below):")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, `  PROMETHEUS_URL="http://raspberrypi:9090/"`)
		fmt.Fprintln(os.Stderr, "  export PROMETHEUS_URL")
		fmt.Fprintln(os.Stderr, "  metricsviewer")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "New to Prometheus? See https://prometheus.io/docs/prometheus/latest/querying/api/")
		os.Exit(1)
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
