package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:   "bolt",
			BoltPath: "brandwatch.db",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
			URL:        "http://127.0.0.1:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Scan: ScanConfig{
			Concurrency:   20,
			MaxCandidates: 500,
			MaxDuration:   30 * time.Minute,
			Strategies: []string{
				"omission", "substitution", "transposition",
				"homoglyph", "tld_variation", "combosquat",
			},
			FlushInterval:        time.Second,
			ScheduleInterval:     24 * time.Hour,
			FullScheduleInterval: 7 * 24 * time.Hour,
		},
		Probe: ProbeConfig{
			DNSTimeout:   2 * time.Second,
			HTTPTimeout:  5 * time.Second,
			WhoisTimeout: 5 * time.Second,
			Resolvers:    []string{"1.1.1.1:53", "8.8.8.8:53"},
			RDAPBaseURL:  "https://rdap.org",
			WhoisRate:    2,
			WhoisBurst:   4,
			UserAgent:    "brandwatch/0.1",
		},
		Risk: RiskConfig{
			Registered:            20,
			MX:                    30,
			ActiveSite:            15,
			Similarity:            50,
			RecentRegistration:    15,
			MultiStrategy:         5,
			RecentRegistrationAge: 30 * 24 * time.Hour,
			MinimumInterest:       25,
			SimilarityFloor:       0.3,
		},
		Persistence: PersistenceConfig{
			MaxRetries:     3,
			InitialBackoff: 100 * time.Millisecond,
		},
		Alerts: AlertsConfig{
			WebhookTimeout: 10 * time.Second,
		},
		Poll: PollConfig{
			Interval:    5 * time.Second,
			MaxAttempts: 120,
		},
	}
}

// WriteDefault writes a default configuration to the specified path
func WriteDefault(path string) error {
	cfg := DefaultConfig()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
