package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/tabwarden/pkg/log"
	"github.com/cuemby/tabwarden/pkg/storage"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Storage   StorageConfig   `yaml:"storage"`
	API       APIConfig       `yaml:"api"`
	Browser   BrowserConfig   `yaml:"browser"`
	Timers    TimersConfig    `yaml:"timers"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
	KeepAlive KeepAliveConfig `yaml:"keepalive"`
	Health    HealthConfig    `yaml:"health"`
	Log       LogConfig       `yaml:"log"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// APIConfig configures the HTTP API
type APIConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedIPs     []string `yaml:"allowed_ips"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit"`
	Burst          int      `yaml:"burst"`
}

// BrowserConfig configures the CDP connection
type BrowserConfig struct {
	// CDPURL attaches to a running browser. Empty launches one.
	CDPURL         string        `yaml:"cdp_url"`
	ExecPath       string        `yaml:"exec_path"`
	Headless       bool          `yaml:"headless"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	AgentHeartbeat time.Duration `yaml:"agent_heartbeat"`
}

// TimersConfig tunes the timer registry
type TimersConfig struct {
	ReloadRetries int `yaml:"reload_retries"`
}

// RecoveryConfig tunes startup recovery
type RecoveryConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// KeepAliveConfig holds the suspension-prevention periods
type KeepAliveConfig struct {
	ProcessInterval time.Duration `yaml:"process_interval"`
	TabInterval     time.Duration `yaml:"tab_interval"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// HealthConfig tunes dependency health checks
type HealthConfig struct {
	Interval time.Duration `yaml:"interval"`
	Retries  int           `yaml:"retries"`

	// StartPeriod gives a launched browser time to come up before
	// failed checks count
	StartPeriod time.Duration `yaml:"start_period"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir: "./tabwarden-data",
		Storage: StorageConfig{Driver: storage.DriverBolt},
		API: APIConfig{
			Addr:           "127.0.0.1:7420",
			AllowedIPs:     []string{"127.0.0.0/8", "::1"},
			AllowedOrigins: []string{"*"},
			RateLimit:      20,
			Burst:          40,
		},
		Browser: BrowserConfig{
			Headless:       true,
			CallTimeout:    10 * time.Second,
			AgentHeartbeat: 25 * time.Second,
		},
		Timers:   TimersConfig{ReloadRetries: 0},
		Recovery: RecoveryConfig{Concurrency: 4},
		KeepAlive: KeepAliveConfig{
			ProcessInterval: 20 * time.Second,
			TabInterval:     30 * time.Second,
			SweepInterval:   2 * time.Minute,
		},
		Health: HealthConfig{
			Interval:    30 * time.Second,
			Retries:     3,
			StartPeriod: 15 * time.Second,
		},
		Log: LogConfig{Level: string(log.InfoLevel)},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case storage.DriverBolt, storage.DriverSQLite, storage.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if c.DataDir == "" && c.Storage.Driver != storage.DriverMemory {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.API.Addr == "" {
		errs = append(errs, errors.New("api.addr is required"))
	}
	if c.API.RateLimit < 0 || c.API.Burst < 0 {
		errs = append(errs, errors.New("api.rate_limit and api.burst must not be negative"))
	}
	if c.Timers.ReloadRetries < 0 {
		errs = append(errs, errors.New("timers.reload_retries must not be negative"))
	}
	if c.Health.StartPeriod < 0 {
		errs = append(errs, errors.New("health.start_period must not be negative"))
	}
	if c.Recovery.Concurrency <= 0 {
		errs = append(errs, errors.New("recovery.concurrency must be positive"))
	}

	for _, p := range []struct {
		name  string
		value time.Duration
	}{
		{"browser.call_timeout", c.Browser.CallTimeout},
		{"browser.agent_heartbeat", c.Browser.AgentHeartbeat},
		{"keepalive.process_interval", c.KeepAlive.ProcessInterval},
		{"keepalive.tab_interval", c.KeepAlive.TabInterval},
		{"keepalive.sweep_interval", c.KeepAlive.SweepInterval},
		{"health.interval", c.Health.Interval},
	} {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", p.name))
		}
	}

	switch log.Level(c.Log.Level) {
	case log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel:
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}

	return errors.Join(errs...)
}
