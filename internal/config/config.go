package config

import (
	"fmt"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Target   TargetConfig   `mapstructure:"target" yaml:"target"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless       bool     `mapstructure:"headless" yaml:"headless"`
	ViewportWidth  int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int      `mapstructure:"viewport_height" yaml:"viewport_height"`
	Args           []string `mapstructure:"args" yaml:"args"`
}

// SelectorConfig names the DOM regions of the target application. The exact
// strings are an external-interface contract with the target, so they live in
// configuration rather than in code.
type SelectorConfig struct {
	DatasetControl string `mapstructure:"dataset_control" yaml:"dataset_control"`
	Region         string `mapstructure:"region" yaml:"region"`
	Interpretation string `mapstructure:"interpretation" yaml:"interpretation"`
	Details        string `mapstructure:"details" yaml:"details"`
}

// TargetConfig describes the application under capture.
type TargetConfig struct {
	URL       string         `mapstructure:"url" yaml:"url"`
	States    []string       `mapstructure:"states" yaml:"states"`
	Selectors SelectorConfig `mapstructure:"selectors" yaml:"selectors"`
}

// CaptureConfig tunes the capture run itself.
type CaptureConfig struct {
	OutputDir         string        `mapstructure:"output_dir" yaml:"output_dir"`
	ReportFile        string        `mapstructure:"report_file" yaml:"report_file"`
	ManifestFile      string        `mapstructure:"manifest_file" yaml:"manifest_file"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SettleWait        time.Duration `mapstructure:"settle_wait" yaml:"settle_wait"`
	InitialSettle     time.Duration `mapstructure:"initial_settle" yaml:"initial_settle"`
	NetworkQuiet      time.Duration `mapstructure:"network_quiet" yaml:"network_quiet"`
}

// DatabaseConfig holds the optional run-history database connection.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "snapwalk")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1400)
	v.SetDefault("browser.viewport_height", 900)

	// -- Target --
	v.SetDefault("target.url", "http://localhost:4173")
	v.SetDefault("target.states", []string{"TRA vs TFA", "Hypothermia", "COVID-19"})
	v.SetDefault("target.selectors.dataset_control", `select[aria-label="Select Dataset"]`)
	v.SetDefault("target.selectors.region", `.lg\:col-span-2`)
	v.SetDefault("target.selectors.interpretation", `span.px-2.py-1.rounded`)
	v.SetDefault("target.selectors.details", `.space-y-6 > div:nth-child(2)`)

	// -- Capture --
	v.SetDefault("capture.output_dir", "validation_screenshots")
	v.SetDefault("capture.report_file", "results_summary.txt")
	v.SetDefault("capture.manifest_file", "manifest.json")
	v.SetDefault("capture.navigation_timeout", "90s")
	v.SetDefault("capture.settle_wait", "500ms")
	v.SetDefault("capture.initial_settle", "1s")
	v.SetDefault("capture.network_quiet", "500ms")
}

// NewDefaultConfig creates a configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the static defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.Target.URL == "" {
		return fmt.Errorf("target.url must be set")
	}
	if len(c.Target.States) == 0 {
		return fmt.Errorf("target.states must name at least one state")
	}
	sel := c.Target.Selectors
	if sel.DatasetControl == "" || sel.Region == "" || sel.Interpretation == "" || sel.Details == "" {
		return fmt.Errorf("all target.selectors must be set")
	}
	if c.Capture.OutputDir == "" {
		return fmt.Errorf("capture.output_dir must be set")
	}
	if c.Capture.SettleWait <= 0 {
		return fmt.Errorf("capture.settle_wait must be positive")
	}
	if c.Capture.NavigationTimeout <= 0 {
		return fmt.Errorf("capture.navigation_timeout must be positive")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive")
	}
	return nil
}

// ResolveOutputDir expands a leading ~ in the configured output directory.
func (c *Config) ResolveOutputDir() (string, error) {
	dir, err := homedir.Expand(c.Capture.OutputDir)
	if err != nil {
		return "", fmt.Errorf("failed to expand output directory %q: %w", c.Capture.OutputDir, err)
	}
	return dir, nil
}
