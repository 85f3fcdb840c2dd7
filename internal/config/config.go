package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Worker     WorkerConfig     `mapstructure:"worker" validate:"required"`
	Notifier   NotifierConfig   `mapstructure:"notifier" validate:"required"`
	Automation AutomationConfig `mapstructure:"automation"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL selects the in-memory task store, which keeps no state
// across restarts and is only suitable for development and tests.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// WorkerConfig tunes the background worker loop.
type WorkerConfig struct {
	// PollIntervalSeconds bounds how long the worker blocks on an empty
	// queue before re-checking its shutdown flag.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`

	// ShutdownGraceSeconds bounds how long Stop waits for the in-flight
	// task to finish before giving up.
	ShutdownGraceSeconds int `mapstructure:"shutdown_grace_seconds" validate:"required,gt=0"`

	// RecoverOnStart re-enqueues pending tasks and resets interrupted
	// processing tasks when the worker starts.
	RecoverOnStart bool `mapstructure:"recover_on_start"`

	// LogDir is where per-task execution logs are written.
	LogDir string `mapstructure:"log_dir" validate:"required"`
}

// NotifierConfig tunes webhook callback delivery.
type NotifierConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}

// AutomationConfig tunes the simulated automation executor.
type AutomationConfig struct {
	// ItemDelayMillis adds an artificial per-item execution delay, useful
	// for exercising the queue and progress reporting locally.
	ItemDelayMillis int `mapstructure:"item_delay_ms" validate:"gte=0"`
}
