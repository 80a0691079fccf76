// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Store() StoreConfig
	Browser() BrowserConfig
	Scheduler() SchedulerConfig
	Channel() ChannelConfig
	Server() ServerConfig

	// Browser Setters
	SetBrowserEngine(engine string)
	SetBrowserHeadless(bool)
	SetBrowserStartURL(url string)

	// Scheduler Setters
	SetSchedulerWaitStrategy(strategy string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	StoreCfg     StoreConfig     `mapstructure:"store" yaml:"store"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	SchedulerCfg SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	ChannelCfg   ChannelConfig   `mapstructure:"channel" yaml:"channel"`
	ServerCfg    ServerConfig    `mapstructure:"server" yaml:"server"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseCfg }
func (c *Config) Store() StoreConfig         { return c.StoreCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Scheduler() SchedulerConfig { return c.SchedulerCfg }
func (c *Config) Channel() ChannelConfig     { return c.ChannelCfg }
func (c *Config) Server() ServerConfig       { return c.ServerCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserEngine(engine string) { c.BrowserCfg.Engine = engine }
func (c *Config) SetBrowserHeadless(b bool)      { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserStartURL(url string)  { c.BrowserCfg.StartURL = url }

func (c *Config) SetSchedulerWaitStrategy(strategy string) {
	c.SchedulerCfg.WaitStrategy = strategy
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	Color       bool   `mapstructure:"color" yaml:"color"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	// LogFile, when set, receives a JSON copy of every entry, rotated by size.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Store backends.
const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
)

// StoreConfig selects where named configurations are persisted.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Path is the JSON file used by the file backend.
	Path string `mapstructure:"path" yaml:"path"`
}

// Browser engines.
const (
	EngineChrome = "chrome"
	EngineStatic = "static"
)

// BrowserConfig holds settings for the page the tasks run against.
type BrowserConfig struct {
	Engine          string        `mapstructure:"engine" yaml:"engine"`
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	StartURL        string        `mapstructure:"start_url" yaml:"start_url"`
	LaunchTimeout   time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	// RemoteURL attaches to an already running browser instead of launching one.
	RemoteURL string `mapstructure:"remote_url" yaml:"remote_url"`
}

// Wait strategies.
const (
	WaitFixed = "fixed"
	WaitReady = "ready"
)

// SchedulerConfig tunes how the scheduler waits between tasks.
type SchedulerConfig struct {
	WaitStrategy string        `mapstructure:"wait_strategy" yaml:"wait_strategy"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	TaskDelay    time.Duration `mapstructure:"task_delay" yaml:"task_delay"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`
}

// ChannelConfig tunes the controller/executor message bus.
type ChannelConfig struct {
	// ReplyTimeout bounds how long a sender waits for a reply. Zero waits forever.
	ReplyTimeout time.Duration `mapstructure:"reply_timeout" yaml:"reply_timeout"`
}

// ServerConfig configures the WebSocket trigger endpoint.
type ServerConfig struct {
	Addr      string  `mapstructure:"addr" yaml:"addr"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", LogFormatConsole)
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "taskpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.color", true)

	// -- Store --
	v.SetDefault("store.backend", StoreBackendFile)
	v.SetDefault("store.path", "~/.taskpilot/configurations.json")

	// -- Browser --
	v.SetDefault("browser.engine", EngineChrome)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.start_url", "about:blank")
	v.SetDefault("browser.launch_timeout", "30s")

	// -- Scheduler --
	v.SetDefault("scheduler.wait_strategy", WaitFixed)
	v.SetDefault("scheduler.settle_delay", "2s")
	v.SetDefault("scheduler.task_delay", "500ms")
	v.SetDefault("scheduler.ready_timeout", "10s")

	// -- Channel --
	v.SetDefault("channel.reply_timeout", "0s")

	// -- Server --
	v.SetDefault("server.addr", "127.0.0.1:8765")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.burst", 10)
}

// Load unmarshals the viper state into a Config, expands home-relative paths
// and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	storePath, err := homedir.Expand(c.StoreCfg.Path)
	if err != nil {
		return fmt.Errorf("failed to expand store.path: %w", err)
	}
	c.StoreCfg.Path = storePath

	logFile, err := homedir.Expand(c.LoggerCfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to expand logger.log_file: %w", err)
	}
	c.LoggerCfg.LogFile = logFile
	return nil
}

// Validate checks the configuration for values the components cannot work with.
func (c *Config) Validate() error {
	var errs []error

	switch c.LoggerCfg.Format {
	case LogFormatConsole, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("logger.format must be one of [%s, %s], got %q", LogFormatConsole, LogFormatJSON, c.LoggerCfg.Format))
	}

	switch strings.ToLower(c.StoreCfg.Backend) {
	case StoreBackendFile:
		if c.StoreCfg.Path == "" {
			errs = append(errs, errors.New("store.path is required for the file backend"))
		}
	case StoreBackendPostgres:
		if c.DatabaseCfg.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be one of [%s, %s], got %q", StoreBackendFile, StoreBackendPostgres, c.StoreCfg.Backend))
	}

	switch strings.ToLower(c.BrowserCfg.Engine) {
	case EngineChrome, EngineStatic:
	default:
		errs = append(errs, fmt.Errorf("browser.engine must be one of [%s, %s], got %q", EngineChrome, EngineStatic, c.BrowserCfg.Engine))
	}

	switch strings.ToLower(c.SchedulerCfg.WaitStrategy) {
	case WaitFixed, WaitReady:
	default:
		errs = append(errs, fmt.Errorf("scheduler.wait_strategy must be one of [%s, %s], got %q", WaitFixed, WaitReady, c.SchedulerCfg.WaitStrategy))
	}

	if c.SchedulerCfg.SettleDelay < 0 {
		errs = append(errs, errors.New("scheduler.settle_delay must not be negative"))
	}
	if c.SchedulerCfg.TaskDelay < 0 {
		errs = append(errs, errors.New("scheduler.task_delay must not be negative"))
	}
	if c.SchedulerCfg.ReadyTimeout < 0 {
		errs = append(errs, errors.New("scheduler.ready_timeout must not be negative"))
	}
	if c.ChannelCfg.ReplyTimeout < 0 {
		errs = append(errs, errors.New("channel.reply_timeout must not be negative"))
	}
	if c.ServerCfg.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}

	return errors.Join(errs...)
}
