package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jensholdgaard/timedrun/internal/monotime"
)

// Config represents the application configuration.
type Config struct {
	Clock          ClockConfig          `yaml:"clock"`
	Probe          ProbeConfig          `yaml:"probe"`
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// ClockConfig holds clock behavior settings.
type ClockConfig struct {
	Overflow string `yaml:"overflow"` // "error" or "saturate"
}

// OverflowPolicy returns the parsed overflow policy.
func (c ClockConfig) OverflowPolicy() (monotime.OverflowPolicy, error) {
	return monotime.ParseOverflowPolicy(c.Overflow)
}

// TargetKind selects what a probe target runs.
type TargetKind string

const (
	KindLatency  TargetKind = "latency"
	KindFallible TargetKind = "fallible"
	KindDatabase TargetKind = "database"
)

// ProbeConfig holds probe runner settings.
type ProbeConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timeout  time.Duration  `yaml:"timeout"`
	Targets  []TargetConfig `yaml:"targets"`
}

// TargetConfig describes one probed operation.
type TargetConfig struct {
	Name      string        `yaml:"name"`
	Kind      TargetKind    `yaml:"kind"`
	Latency   time.Duration `yaml:"latency"`    // latency targets
	FailTimes int           `yaml:"fail_times"` // fallible targets
	Timeout   time.Duration `yaml:"timeout"`    // overrides probe.timeout when set
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Driver   string `yaml:"driver"` // "postgres", "sql" or "memory"

	// MemoryRetention caps results kept per target by the memory driver.
	MemoryRetention int `yaml:"memory_retention"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		Clock: ClockConfig{
			Overflow: "error",
		},
		Probe: ProbeConfig{
			Interval: 30 * time.Second,
			Timeout:  5 * time.Second,
		},
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			Driver:          "memory",
			MemoryRetention: 1000,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "timeprobe",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "timeprobe-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "sql", "memory":
		// valid
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q: must be \"postgres\", \"sql\" or \"memory\"", c.Database.Driver))
	}

	if c.Database.MemoryRetention < 0 {
		errs = append(errs, fmt.Errorf("memory_retention must not be negative, got %d", c.Database.MemoryRetention))
	}

	if _, err := c.Clock.OverflowPolicy(); err != nil {
		errs = append(errs, err)
	}

	if c.Probe.Interval <= 0 {
		errs = append(errs, fmt.Errorf("probe interval must be positive, got %v", c.Probe.Interval))
	}
	if c.Probe.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("probe timeout must be positive, got %v", c.Probe.Timeout))
	}

	seen := make(map[string]bool, len(c.Probe.Targets))
	for i, t := range c.Probe.Targets {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("probe target %d has no name", i))
		} else if seen[t.Name] {
			errs = append(errs, fmt.Errorf("duplicate probe target %q", t.Name))
		}
		seen[t.Name] = true

		switch t.Kind {
		case KindLatency, KindFallible, KindDatabase:
			// valid
		default:
			errs = append(errs, fmt.Errorf("probe target %q: unknown kind %q", t.Name, t.Kind))
		}
		if t.Latency < 0 || t.Timeout < 0 || t.FailTimes < 0 {
			errs = append(errs, fmt.Errorf("probe target %q: negative latency, timeout or fail_times", t.Name))
		}
	}

	return errors.Join(errs...)
}
