package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
)

// AppConfig represents the complete application configuration.
type AppConfig struct {
	// HTTP server for metrics and diagnostics
	Server ServerConfig `toml:"server"`

	// Scheduler policy and timer settings
	Scheduler SchedulerConfig `toml:"scheduler"`

	// Demo workload driven by the run command
	Workload WorkloadConfig `toml:"workload"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Listen address (default: ":9465")
	ListenAddress string `toml:"listen_address"`

	// Metrics endpoint path (default: "/metrics")
	MetricsPath string `toml:"metrics_path"`
}

// SchedulerConfig contains scheduler policy and timing settings.
type SchedulerConfig struct {
	// Scheduling policy: "round-robin" or "mlfqs". Fixed for the run;
	// there is no way to switch policies after boot.
	Policy string `toml:"policy"`

	// Timer interrupt frequency in ticks per second (default: 100).
	// One second of wall time is TickHz ticks; the load average and
	// recent-CPU decay run on this boundary.
	TickHz int `toml:"tick_hz"`

	// Ticks a thread may run before the round-robin policy forces a
	// yield (default: 4).
	TimeSlice int `toml:"time_slice"`
}

// WorkloadConfig contains settings for the demo workload.
type WorkloadConfig struct {
	// Number of worker threads to spawn (default: 8).
	Threads int `toml:"threads"`

	// Seconds to run the workload before shutting down (default: 10).
	DurationSeconds int `toml:"duration_seconds"`
}

// LoggingConfig contains the complete logging configuration.
type LoggingConfig struct {
	Defaults LogDefaults `toml:"defaults"`
	Outputs  []LogOutput `toml:"outputs"`
}

// LogDefaults contains global logger settings applied to every component
// logger.
type LogDefaults struct {
	// Log level: trace, debug, info, warn, error, fatal
	Level string `toml:"level"`

	// Caller reporting depth (0 disables)
	Caller int `toml:"caller"`

	// Field name for the timestamp ("" uses the library default)
	TimeField string `toml:"time_field"`

	// Timestamp format ("", "Unix", "UnixMs", or a Go layout)
	TimeFormat string `toml:"time_format"`

	// Timezone: "Local", "UTC", or an IANA location name
	TimeLocation string `toml:"time_location"`
}

// LogOutput describes one log destination.
type LogOutput struct {
	// Output type: "console" or "file"
	Type string `toml:"type"`

	// Whether this output is active
	Enabled bool `toml:"enabled"`

	Console *ConsoleConfig `toml:"console"`
	File    *FileConfig    `toml:"file"`
}

// ConsoleConfig contains console output settings.
type ConsoleConfig struct {
	// Destination: "stdout" or "stderr"
	Writer string `toml:"writer"`

	// Format: "auto" (colorized), "logfmt", or "glog"
	Format string `toml:"format"`

	ColorOutput bool `toml:"color_output"`
	QuoteString bool `toml:"quote_string"`

	// FastIO bypasses formatting and writes raw JSON lines
	FastIO bool `toml:"fast_io"`

	// Async buffers writes through a background goroutine
	Async bool `toml:"async"`
}

// FileConfig contains file output settings.
type FileConfig struct {
	Filename     string `toml:"filename"`
	MaxSize      int64  `toml:"max_size"` // MB
	MaxBackups   int    `toml:"max_backups"`
	TimeFormat   string `toml:"time_format"`
	LocalTime    bool   `toml:"local_time"`
	EnsureFolder bool   `toml:"ensure_folder"`
	Async        bool   `toml:"async"`
}

// Scheduling policy names accepted by SchedulerConfig.Policy.
const (
	PolicyRoundRobin = "round-robin"
	PolicyMLFQS      = "mlfqs"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			ListenAddress: ":9465",
			MetricsPath:   "/metrics",
		},
		Scheduler: SchedulerConfig{
			Policy:    PolicyRoundRobin,
			TickHz:    100,
			TimeSlice: 4,
		},
		Workload: WorkloadConfig{
			Threads:         8,
			DurationSeconds: 10,
		},
		Logging: LoggingConfig{
			Defaults: LogDefaults{
				Level:        "info",
				Caller:       0,
				TimeLocation: "Local",
			},
			Outputs: []LogOutput{
				{
					Type:    "console",
					Enabled: true,
					Console: &ConsoleConfig{
						Writer:      "stderr",
						Format:      "auto",
						ColorOutput: true,
						QuoteString: true,
					},
				},
			},
		},
	}
}

// LoadConfig loads configuration from a TOML file, falling back to
// defaults when no path is given or the file does not exist.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}

	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	return config, nil
}

// Validate checks the configuration for errors.
func (c *AppConfig) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address cannot be empty")
	}
	if c.Server.MetricsPath == "" {
		return fmt.Errorf("server.metrics_path cannot be empty")
	}

	switch c.Scheduler.Policy {
	case PolicyRoundRobin, PolicyMLFQS:
	default:
		return fmt.Errorf("scheduler.policy must be %q or %q, got %q",
			PolicyRoundRobin, PolicyMLFQS, c.Scheduler.Policy)
	}
	if c.Scheduler.TickHz <= 0 {
		return fmt.Errorf("scheduler.tick_hz must be positive, got %d", c.Scheduler.TickHz)
	}
	if c.Scheduler.TimeSlice <= 0 {
		return fmt.Errorf("scheduler.time_slice must be positive, got %d", c.Scheduler.TimeSlice)
	}

	if c.Workload.Threads < 0 {
		return fmt.Errorf("workload.threads cannot be negative, got %d", c.Workload.Threads)
	}

	enabled := 0
	for _, out := range c.Logging.Outputs {
		if out.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one logging output must be enabled")
	}

	return nil
}
