package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hakim/brandwatch/internal/models"
)

// Config represents the application configuration
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Scan        ScanConfig        `mapstructure:"scan" yaml:"scan"`
	Probe       ProbeConfig       `mapstructure:"probe" yaml:"probe"`
	Risk        RiskConfig        `mapstructure:"risk" yaml:"risk"`
	Persistence PersistenceConfig `mapstructure:"persistence" yaml:"persistence"`
	Alerts      AlertsConfig      `mapstructure:"alerts" yaml:"alerts"`
	Poll        PollConfig        `mapstructure:"poll" yaml:"poll"`
}

// StorageConfig selects the record store
type StorageConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	BoltPath    string `mapstructure:"bolt_path" yaml:"bolt_path"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url"`
}

// ServerConfig configures the HTTP API and the address CLI clients talk to
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	URL        string `mapstructure:"url" yaml:"url"`
}

// LogConfig configures logrus output
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// ScanConfig controls candidate generation and the worker pool
type ScanConfig struct {
	Concurrency      int           `mapstructure:"concurrency" yaml:"concurrency"`
	MaxCandidates    int           `mapstructure:"max_candidates" yaml:"max_candidates"`
	MaxDuration      time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
	Strategies       []string      `mapstructure:"strategies" yaml:"strategies"`
	CountryCode      string        `mapstructure:"country_code" yaml:"country_code"`
	FlushInterval    time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
	ScheduleInterval time.Duration `mapstructure:"schedule_interval" yaml:"schedule_interval"`

	// FullScheduleInterval is how old a brand's last completed full scan may
	// get before the scheduler runs a full scan instead of an incremental one.
	FullScheduleInterval time.Duration `mapstructure:"full_schedule_interval" yaml:"full_schedule_interval"`
}

// ProbeConfig holds per-probe timeouts and upstream settings
type ProbeConfig struct {
	DNSTimeout   time.Duration `mapstructure:"dns_timeout" yaml:"dns_timeout"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
	WhoisTimeout time.Duration `mapstructure:"whois_timeout" yaml:"whois_timeout"`
	Resolvers    []string      `mapstructure:"resolvers" yaml:"resolvers"`
	RDAPBaseURL  string        `mapstructure:"rdap_base_url" yaml:"rdap_base_url"`
	WhoisRate    float64       `mapstructure:"whois_rate" yaml:"whois_rate"`
	WhoisBurst   int           `mapstructure:"whois_burst" yaml:"whois_burst"`
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// RiskConfig holds the scorer weights
type RiskConfig struct {
	Registered            float64       `mapstructure:"registered" yaml:"registered"`
	MX                    float64       `mapstructure:"mx" yaml:"mx"`
	ActiveSite            float64       `mapstructure:"active_site" yaml:"active_site"`
	Similarity            float64       `mapstructure:"similarity" yaml:"similarity"`
	RecentRegistration    float64       `mapstructure:"recent_registration" yaml:"recent_registration"`
	MultiStrategy         float64       `mapstructure:"multi_strategy" yaml:"multi_strategy"`
	RecentRegistrationAge time.Duration `mapstructure:"recent_registration_age" yaml:"recent_registration_age"`
	MinimumInterest       int           `mapstructure:"minimum_interest" yaml:"minimum_interest"`
	SimilarityFloor       float64       `mapstructure:"similarity_floor" yaml:"similarity_floor"`
}

// PersistenceConfig bounds threat upsert retries
type PersistenceConfig struct {
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
}

// AlertsConfig configures alert delivery
type AlertsConfig struct {
	WebhookURL     string        `mapstructure:"webhook_url" yaml:"webhook_url"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout" yaml:"webhook_timeout"`
}

// PollConfig is the client-side polling contract
type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// Load reads configuration from a YAML file layered over the defaults.
// If path is empty, searches for brandwatch.yaml in the current directory,
// ./configs and ~/.config/brandwatch/; a missing file leaves the defaults.
// BRANDWATCH_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	base, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("failed to read defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("brandwatch")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "brandwatch"))
		}
	}

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("BRANDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "bolt":
		if c.Storage.BoltPath == "" {
			errs = append(errs, errors.New("storage.bolt_path cannot be empty"))
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("storage.postgres_url cannot be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be bolt or postgres, got %q", c.Storage.Driver))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if c.Scan.Concurrency <= 0 {
		errs = append(errs, errors.New("scan.concurrency must be positive"))
	}
	if c.Scan.MaxCandidates <= 0 {
		errs = append(errs, errors.New("scan.max_candidates must be positive"))
	}
	if c.Scan.MaxDuration <= 0 {
		errs = append(errs, errors.New("scan.max_duration must be positive"))
	}
	if c.Scan.FlushInterval <= 0 {
		errs = append(errs, errors.New("scan.flush_interval must be positive"))
	}
	if c.Scan.ScheduleInterval < 0 {
		errs = append(errs, errors.New("scan.schedule_interval cannot be negative"))
	}
	if c.Scan.FullScheduleInterval < 0 {
		errs = append(errs, errors.New("scan.full_schedule_interval cannot be negative"))
	}
	for _, s := range c.Scan.Strategies {
		if _, ok := models.ParseStrategy(s); !ok {
			errs = append(errs, fmt.Errorf("scan.strategies: unknown strategy %q", s))
		}
	}

	if c.Probe.DNSTimeout <= 0 || c.Probe.HTTPTimeout <= 0 || c.Probe.WhoisTimeout <= 0 {
		errs = append(errs, errors.New("probe timeouts must be positive"))
	}
	if len(c.Probe.Resolvers) == 0 {
		errs = append(errs, errors.New("probe.resolvers cannot be empty"))
	}
	if c.Probe.WhoisRate <= 0 || c.Probe.WhoisBurst <= 0 {
		errs = append(errs, errors.New("probe.whois_rate and probe.whois_burst must be positive"))
	}

	if c.Risk.MinimumInterest < 0 || c.Risk.MinimumInterest > 100 {
		errs = append(errs, errors.New("risk.minimum_interest must be between 0 and 100"))
	}
	if c.Risk.SimilarityFloor < 0 || c.Risk.SimilarityFloor > 1 {
		errs = append(errs, errors.New("risk.similarity_floor must be between 0 and 1"))
	}
	for name, w := range map[string]float64{
		"registered":          c.Risk.Registered,
		"mx":                  c.Risk.MX,
		"active_site":         c.Risk.ActiveSite,
		"similarity":          c.Risk.Similarity,
		"recent_registration": c.Risk.RecentRegistration,
		"multi_strategy":      c.Risk.MultiStrategy,
	} {
		if w < 0 {
			errs = append(errs, fmt.Errorf("risk.%s cannot be negative", name))
		}
	}

	if c.Persistence.MaxRetries < 0 {
		errs = append(errs, errors.New("persistence.max_retries cannot be negative"))
	}
	if c.Poll.Interval <= 0 || c.Poll.MaxAttempts <= 0 {
		errs = append(errs, errors.New("poll.interval and poll.max_attempts must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
