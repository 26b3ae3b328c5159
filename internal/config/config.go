// File: internal/config/config.go

// Package config loads and validates scrapedeck settings from viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Engine() EngineConfig
	Browser() BrowserConfig
	Profiles() ProfilesConfig
	Sessions() SessionsConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserNavigationTimeout(d time.Duration)

	// Engine Setters
	SetEngineOutputDir(dir string)

	// Profiles Setters
	SetStartupProfile(path string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	EngineCfg   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	ProfilesCfg ProfilesConfig `mapstructure:"profiles" yaml:"profiles"`
	SessionsCfg SessionsConfig `mapstructure:"sessions" yaml:"sessions"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Engine() EngineConfig     { return c.EngineCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Profiles() ProfilesConfig { return c.ProfilesCfg }
func (c *Config) Sessions() SessionsConfig { return c.SessionsCfg }

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserNavigationTimeout(d time.Duration) {
	c.BrowserCfg.NavigationTimeout = d
}
func (c *Config) SetEngineOutputDir(dir string)  { c.EngineCfg.OutputDir = dir }
func (c *Config) SetStartupProfile(path string) { c.ProfilesCfg.StartupProfile = path }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the optional run history database. An empty URL
// disables history.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" yaml:"url"`
	ArchiveItems bool   `mapstructure:"archive_items" yaml:"archive_items"`
}

// EngineConfig configures the extraction engine.
type EngineConfig struct {
	EventBuffer int    `mapstructure:"event_buffer" yaml:"event_buffer"`
	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
	// MaxItems caps the records emitted per run. Zero means no cap.
	MaxItems int `mapstructure:"max_items" yaml:"max_items"`
}

// BrowserConfig holds settings for the browser that renders target pages.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NoSandbox         bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// ProfilesConfig locates profile files.
type ProfilesConfig struct {
	Dir            string `mapstructure:"dir" yaml:"dir"`
	StartupProfile string `mapstructure:"startup_profile" yaml:"startup_profile"`
}

// SessionsConfig locates stored browser sessions.
type SessionsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "scrapedeck")
	v.SetDefault("logger.log_file", "~/.scrapedeck/scrapedeck.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Database --
	v.SetDefault("database.url", "")
	v.SetDefault("database.archive_items", false)

	// -- Engine --
	v.SetDefault("engine.event_buffer", 256)
	v.SetDefault("engine.output_dir", "exports")
	v.SetDefault("engine.max_items", 0)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.post_load_wait", "1500ms")
	v.SetDefault("browser.args", []string{"disable-dev-shm-usage"})

	// -- Profiles & Sessions --
	v.SetDefault("profiles.dir", "~/.scrapedeck/profiles")
	v.SetDefault("profiles.startup_profile", "")
	v.SetDefault("sessions.dir", "~/.scrapedeck/sessions")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	v.BindEnv("database.url", "SCRAPEDECK_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves a leading ~ in every configured path.
func (c *Config) ExpandPaths() error {
	paths := map[string]*string{
		"logger.log_file":          &c.LoggerCfg.LogFile,
		"engine.output_dir":        &c.EngineCfg.OutputDir,
		"profiles.dir":             &c.ProfilesCfg.Dir,
		"profiles.startup_profile": &c.ProfilesCfg.StartupProfile,
		"sessions.dir":             &c.SessionsCfg.Dir,
		"browser.exec_path":        &c.BrowserCfg.ExecPath,
	}
	for key, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand %s: %w", key, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(c.LoggerCfg.Level))); err != nil {
		return fmt.Errorf("logger.level %q is not a valid level", c.LoggerCfg.Level)
	}
	if c.EngineCfg.EventBuffer < 0 {
		return fmt.Errorf("engine.event_buffer must not be negative")
	}
	if c.EngineCfg.MaxItems < 0 {
		return fmt.Errorf("engine.max_items must not be negative")
	}
	if strings.TrimSpace(c.EngineCfg.OutputDir) == "" {
		return fmt.Errorf("engine.output_dir is required")
	}
	if c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.BrowserCfg.PostLoadWait < 0 {
		return fmt.Errorf("browser.post_load_wait must not be negative")
	}
	if strings.TrimSpace(c.ProfilesCfg.Dir) == "" {
		return fmt.Errorf("profiles.dir is required")
	}
	if strings.TrimSpace(c.SessionsCfg.Dir) == "" {
		return fmt.Errorf("sessions.dir is required")
	}
	return nil
}
