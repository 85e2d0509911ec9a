// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment variable override (GLIMPSE_AGENT_MAX_ITERATIONS, ...).
const EnvPrefix = "GLIMPSE"

// Supported reasoning providers.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Agent() AgentConfig
	Reasoning() ReasoningConfig
	Capture() CaptureConfig
	Display() DisplayConfig
	Input() InputConfig
	Abort() AbortConfig
	RunLog() RunLogConfig
	Metrics() MetricsConfig
	Database() DatabaseConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	AgentCfg     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	ReasoningCfg ReasoningConfig `mapstructure:"reasoning" yaml:"reasoning"`
	CaptureCfg   CaptureConfig   `mapstructure:"capture" yaml:"capture"`
	DisplayCfg   DisplayConfig   `mapstructure:"display" yaml:"display"`
	InputCfg     InputConfig     `mapstructure:"input" yaml:"input"`
	AbortCfg     AbortConfig     `mapstructure:"abort" yaml:"abort"`
	RunLogCfg    RunLogConfig    `mapstructure:"runlog" yaml:"runlog"`
	MetricsCfg   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	DatabaseCfg  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Agent() AgentConfig         { return c.AgentCfg }
func (c *Config) Reasoning() ReasoningConfig { return c.ReasoningCfg }
func (c *Config) Capture() CaptureConfig     { return c.CaptureCfg }
func (c *Config) Display() DisplayConfig     { return c.DisplayCfg }
func (c *Config) Input() InputConfig         { return c.InputCfg }
func (c *Config) Abort() AbortConfig         { return c.AbortCfg }
func (c *Config) RunLog() RunLogConfig       { return c.RunLogCfg }
func (c *Config) Metrics() MetricsConfig     { return c.MetricsCfg }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseCfg }

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

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AgentConfig tunes the control loop.
type AgentConfig struct {
	MaxIterations   int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	SaveScreenshots bool          `mapstructure:"save_screenshots" yaml:"save_screenshots"`
	IterationDelay  time.Duration `mapstructure:"iteration_delay" yaml:"iteration_delay"`
	PostActionDelay time.Duration `mapstructure:"post_action_delay" yaml:"post_action_delay"`
	// MaxTaskDuration bounds a whole run. Zero disables the bound.
	MaxTaskDuration time.Duration `mapstructure:"max_task_duration" yaml:"max_task_duration"`
	// MaxWait caps a single wait decision.
	MaxWait        time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
	BlockedActions []string      `mapstructure:"blocked_actions" yaml:"blocked_actions"`

	// AbortPollInterval is how often the abort signal is checked while a run is in flight.
	AbortPollInterval time.Duration `mapstructure:"abort_poll_interval" yaml:"abort_poll_interval"`
}

// ReasoningConfig selects and tunes the vision model endpoint.
type ReasoningConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	// Endpoint overrides the provider's default base URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"-"`
	// Timeout applies to each individual decide call.
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	TimeoutRetries int           `mapstructure:"timeout_retries" yaml:"timeout_retries"`
	ParseRetries   int           `mapstructure:"parse_retries" yaml:"parse_retries"`
	// ContextWindow keeps the most recent N conversation entries. Zero keeps everything.
	ContextWindow     int     `mapstructure:"context_window" yaml:"context_window"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Temperature       float32 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// CaptureConfig controls screenshot handling.
type CaptureConfig struct {
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	// Screenshots larger than MaxWidth x MaxHeight are downscaled before reasoning.
	MaxWidth      int `mapstructure:"max_width" yaml:"max_width"`
	MaxHeight     int `mapstructure:"max_height" yaml:"max_height"`
	PersistBuffer int `mapstructure:"persist_buffer" yaml:"persist_buffer"`
}

// DisplayConfig describes the browser-hosted display surface driven over CDP.
type DisplayConfig struct {
	// RemoteURL attaches to an already running browser (ws://host:9222/...). Empty launches one.
	RemoteURL         string   `mapstructure:"remote_url" yaml:"remote_url"`
	StartURL          string   `mapstructure:"start_url" yaml:"start_url"`
	Headless          bool     `mapstructure:"headless" yaml:"headless"`
	Width             int      `mapstructure:"width" yaml:"width"`
	Height            int      `mapstructure:"height" yaml:"height"`
	DeviceScaleFactor float64  `mapstructure:"device_scale_factor" yaml:"device_scale_factor"`
	NoSandbox         bool     `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	Args              []string `mapstructure:"args" yaml:"args"`
}

// InputConfig tunes how decisions become input events.
type InputConfig struct {
	Humanize       bool    `mapstructure:"humanize" yaml:"humanize"`
	ScrollNotchPx  float64 `mapstructure:"scroll_notch_px" yaml:"scroll_notch_px"`
	ClickHoldMinMs int     `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs int     `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`
	KeyPauseMeanMs float64 `mapstructure:"key_pause_mean_ms" yaml:"key_pause_mean_ms"`
}

// AbortConfig configures the reserved-corner abort convention.
type AbortConfig struct {
	CornerEnabled bool    `mapstructure:"corner_enabled" yaml:"corner_enabled"`
	Corner        string  `mapstructure:"corner" yaml:"corner"`
	CornerRadius  float64 `mapstructure:"corner_radius" yaml:"corner_radius"`
}

// RunLogConfig controls the append-only run journal.
type RunLogConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Buffer     int    `mapstructure:"buffer" yaml:"buffer"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// DatabaseConfig holds the optional run history database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
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

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "glimpse")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Agent --
	v.SetDefault("agent.max_iterations", 30)
	v.SetDefault("agent.save_screenshots", false)
	v.SetDefault("agent.iteration_delay", "500ms")
	v.SetDefault("agent.post_action_delay", "1s")
	v.SetDefault("agent.max_task_duration", "10m")
	v.SetDefault("agent.max_wait", "30s")
	v.SetDefault("agent.abort_poll_interval", "250ms")
	v.SetDefault("agent.blocked_actions", []string{})

	// -- Reasoning --
	v.SetDefault("reasoning.provider", ProviderOllama)
	v.SetDefault("reasoning.model", "qwen3-vl:235b-cloud")
	v.SetDefault("reasoning.endpoint", "")
	v.SetDefault("reasoning.api_key", "")
	v.SetDefault("reasoning.timeout", "45s")
	v.SetDefault("reasoning.timeout_retries", 1)
	v.SetDefault("reasoning.parse_retries", 1)
	v.SetDefault("reasoning.context_window", 0)
	v.SetDefault("reasoning.requests_per_minute", 0)
	v.SetDefault("reasoning.temperature", 0.2)
	v.SetDefault("reasoning.max_tokens", 1024)

	// -- Capture --
	v.SetDefault("capture.screenshot_dir", "screenshots")
	v.SetDefault("capture.max_width", 1920)
	v.SetDefault("capture.max_height", 1080)
	v.SetDefault("capture.persist_buffer", 16)

	// -- Display --
	v.SetDefault("display.remote_url", "")
	v.SetDefault("display.start_url", "about:blank")
	v.SetDefault("display.headless", false)
	v.SetDefault("display.width", 1280)
	v.SetDefault("display.height", 800)
	v.SetDefault("display.device_scale_factor", 1.0)
	v.SetDefault("display.no_sandbox", false)

	// -- Input --
	v.SetDefault("input.humanize", true)
	v.SetDefault("input.scroll_notch_px", 100.0)
	v.SetDefault("input.click_hold_min_ms", 50)
	v.SetDefault("input.click_hold_max_ms", 120)
	v.SetDefault("input.key_pause_mean_ms", 50.0)

	// -- Abort --
	v.SetDefault("abort.corner_enabled", true)
	v.SetDefault("abort.corner", "top-left")
	v.SetDefault("abort.corner_radius", 5.0)

	// -- Run log --
	v.SetDefault("runlog.path", "logs/runs.jsonl")
	v.SetDefault("runlog.max_size", 50)
	v.SetDefault("runlog.max_backups", 3)
	v.SetDefault("runlog.buffer", 256)

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9464")

	// -- Database --
	v.SetDefault("database.url", "")
}

// BindEnvironment wires the GLIMPSE_ prefixed environment variables and the conventional
// provider key variable into v.
func BindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("reasoning.api_key", EnvPrefix+"_REASONING_API_KEY", "GEMINI_API_KEY")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	BindEnvironment(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in every filesystem path.
func (c *Config) expandPaths() error {
	paths := []*string{&c.LoggerCfg.LogFile, &c.CaptureCfg.ScreenshotDir, &c.RunLogCfg.Path}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.AgentCfg.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if err := c.ReasoningCfg.Validate(); err != nil {
		return fmt.Errorf("reasoning configuration invalid: %w", err)
	}
	if c.CaptureCfg.MaxWidth <= 0 || c.CaptureCfg.MaxHeight <= 0 {
		return fmt.Errorf("capture.max_width and capture.max_height must be positive integers")
	}
	if c.DisplayCfg.Width <= 0 || c.DisplayCfg.Height <= 0 {
		return fmt.Errorf("display.width and display.height must be positive integers")
	}
	if c.DisplayCfg.DeviceScaleFactor <= 0 {
		return fmt.Errorf("display.device_scale_factor must be positive")
	}
	if c.AbortCfg.CornerEnabled {
		if _, ok := Corners[c.AbortCfg.Corner]; !ok {
			return fmt.Errorf("abort.corner must be one of top-left, top-right, bottom-left, bottom-right")
		}
		if c.AbortCfg.CornerRadius < 0 {
			return fmt.Errorf("abort.corner_radius must not be negative")
		}
	}
	if c.InputCfg.ClickHoldMaxMs < c.InputCfg.ClickHoldMinMs {
		return fmt.Errorf("input.click_hold_max_ms must be >= input.click_hold_min_ms")
	}
	return nil
}

// Corners lists the accepted abort corner names.
var Corners = map[string]struct{}{
	"top-left":     {},
	"top-right":    {},
	"bottom-left":  {},
	"bottom-right": {},
}

// Validate checks the control loop settings.
func (a *AgentConfig) Validate() error {
	if a.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be a positive integer")
	}
	if a.IterationDelay < 0 || a.PostActionDelay < 0 {
		return fmt.Errorf("iteration_delay and post_action_delay must not be negative")
	}
	if a.MaxTaskDuration < 0 {
		return fmt.Errorf("max_task_duration must not be negative")
	}
	if a.MaxWait <= 0 {
		return fmt.Errorf("max_wait must be a positive duration")
	}
	if a.AbortPollInterval <= 0 {
		return fmt.Errorf("abort_poll_interval must be a positive duration")
	}
	return nil
}

// Validate checks the reasoning settings.
func (r *ReasoningConfig) Validate() error {
	switch r.Provider {
	case ProviderOllama:
	case ProviderGemini:
		if r.APIKey == "" {
			return fmt.Errorf("api_key is required for the %s provider (set GEMINI_API_KEY)", ProviderGemini)
		}
	default:
		return fmt.Errorf("unknown provider '%s'. Supported: [%s, %s]", r.Provider, ProviderOllama, ProviderGemini)
	}
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	if r.TimeoutRetries < 0 || r.ParseRetries < 0 {
		return fmt.Errorf("timeout_retries and parse_retries must not be negative")
	}
	if r.ContextWindow < 0 {
		return fmt.Errorf("context_window must not be negative")
	}
	if r.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	return nil
}
