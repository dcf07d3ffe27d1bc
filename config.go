package main

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".nutshell/"

const (
	defaultMaxSteps  = 10
	defaultMinLength = 50
)

//go:embed config/settings.yaml
var defaultSettingsYAML string

// ConfigOverrides holds file path overrides for embedded configurations
type ConfigOverrides struct {
	SettingsPath *string
	APIKey       *string
	Strategy     *string
}

// WorkflowSettings bounds the page automation workflow
type WorkflowSettings struct {
	MaxSteps     int           `yaml:"max_steps"`
	Timeout      time.Duration `yaml:"timeout"`
	ExpandDelay  time.Duration `yaml:"expand_delay"`
	PanelDelay   time.Duration `yaml:"panel_delay"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MinLength    int           `yaml:"min_length"`
}

// CaptionSettings configures the Data API captions client
type CaptionSettings struct {
	APIBase           string  `yaml:"api_base"`
	APIKey            string  `yaml:"api_key"`
	AccessToken       string  `yaml:"access_token"`
	Format            string  `yaml:"format"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Retries           int     `yaml:"retries"`
}

// InnertubeSettings configures the page transcript endpoint
type InnertubeSettings struct {
	BaseURL       string `yaml:"base_url"`
	ClientVersion string `yaml:"client_version"`
}

// WatcherSettings configures the page mutation watcher
type WatcherSettings struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
	// MenuDelay bounds the wait for a dropdown to open after a menu click
	MenuDelay time.Duration `yaml:"menu_delay"`
}

// OverlaySettings configures the terminal overlays
type OverlaySettings struct {
	ErrorDismiss time.Duration `yaml:"error_dismiss"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	Strategy  Strategy          `yaml:"strategy"`
	UserAgent string            `yaml:"user_agent"`
	Workflow  WorkflowSettings  `yaml:"workflow"`
	Captions  CaptionSettings   `yaml:"captions"`
	Innertube InnertubeSettings `yaml:"innertube"`
	Watcher   WatcherSettings   `yaml:"watcher"`
	Overlay   OverlaySettings   `yaml:"overlay"`
	Server    struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// Config holds configuration and overrides
type Config struct {
	Settings  *Settings
	Overrides *ConfigOverrides
}

// NewConfig loads settings, applies the environment and then the overrides
func NewConfig(overrides *ConfigOverrides) (*Config, error) {
	if err := ensureConfigExists(); err != nil {
		return nil, fmt.Errorf("ensuring config files exist: %w", err)
	}

	var (
		settings *Settings
		err      error
	)
	if overrides != nil && overrides.SettingsPath != nil {
		// Explicit settings file must exist
		settings, err = loadSettingsRequired(*overrides.SettingsPath)
	} else {
		settings, err = loadSettings(GetConfigPath("settings.yaml"))
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	applyEnv(settings)

	if overrides != nil {
		if overrides.APIKey != nil && *overrides.APIKey != "" {
			settings.Captions.APIKey = *overrides.APIKey
		}
		if overrides.Strategy != nil && *overrides.Strategy != "" {
			settings.Strategy = Strategy(*overrides.Strategy)
		}
	}

	if err := settings.validate(); err != nil {
		return nil, err
	}

	return &Config{Settings: settings, Overrides: overrides}, nil
}

// GetConfigPath returns the full path to a config file
func GetConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// defaultSettings parses the embedded settings
func defaultSettings() *Settings {
	var s Settings
	if err := yaml.Unmarshal([]byte(defaultSettingsYAML), &s); err != nil {
		panic(fmt.Sprintf("embedded settings.yaml is invalid: %v", err))
	}
	return &s
}

// loadSettings loads settings from YAML file with fallback to defaults
func loadSettings(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return defaultSettings(), nil
	}
	return parseSettings(data)
}

// loadSettingsRequired loads settings from YAML file, failing if file doesn't exist
func loadSettingsRequired(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, err
	}
	return parseSettings(data)
}

// parseSettings overlays data on the embedded defaults so missing keys keep
// their default values.
func parseSettings(data []byte) (*Settings, error) {
	settings := defaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	settings.Workflow = settings.Workflow.withDefaults()
	return settings, nil
}

func applyEnv(s *Settings) {
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		s.Captions.APIKey = v
	}
	if v := os.Getenv("YOUTUBE_ACCESS_TOKEN"); v != "" {
		s.Captions.AccessToken = v
	}
}

func (s *Settings) validate() error {
	switch s.Strategy {
	case StrategyDOM, StrategyAPI:
	case "":
		s.Strategy = StrategyDOM
	default:
		return fmt.Errorf("unknown strategy %q (want %q or %q)", s.Strategy, StrategyDOM, StrategyAPI)
	}
	return nil
}

// withDefaults repairs values that would make the workflow unusable.
// Zero delays are kept: they are valid for fixtures.
func (w WorkflowSettings) withDefaults() WorkflowSettings {
	if w.MaxSteps <= 0 {
		log.Printf("Warning: workflow.max_steps is %d, defaulting to %d", w.MaxSteps, defaultMaxSteps)
		w.MaxSteps = defaultMaxSteps
	}
	if w.MinLength <= 0 {
		log.Printf("Warning: workflow.min_length is %d, defaulting to %d", w.MinLength, defaultMinLength)
		w.MinLength = defaultMinLength
	}
	for _, d := range []*time.Duration{&w.Timeout, &w.ExpandDelay, &w.PanelDelay, &w.RetryDelay, &w.PollInterval} {
		if *d < 0 {
			*d = 0
		}
	}
	return w
}

// ensureConfigExists creates config directory and writes settings.yaml if needed
func ensureConfigExists() error {
	err := os.MkdirAll(defaultConfigDir, 0755)
	if err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write settings.yaml - this should be customized by users
	settingsFile := GetConfigPath("settings.yaml")
	if _, err := os.Stat(settingsFile); os.IsNotExist(err) {
		err = os.WriteFile(settingsFile, []byte(defaultSettingsYAML), 0644)
		if err != nil {
			return fmt.Errorf("writing settings.yaml: %w", err)
		}
	}

	return nil
}
