// Package config provides configuration management for the pointer heatmap recorder.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"pointerheat/internal/hotkey"
	"pointerheat/internal/topology"
)

// AppName names the configuration directory
const AppName = "pointerheat"

// Config represents the application configuration
type Config struct {
	// Capture contains pointer capture and storage settings
	Capture CaptureConfig `json:"capture"`

	// Heatmap contains binning and rendering settings
	Heatmap HeatmapConfig `json:"heatmap"`

	// Display contains topology settings
	Display DisplayConfig `json:"display"`

	// General contains general application settings
	General GeneralConfig `json:"general"`
}

// CaptureConfig controls how samples are captured and persisted
type CaptureConfig struct {
	// DataFile is the sample file; relative paths live in the config directory
	DataFile string `json:"data_file"`

	// PollIntervalMs is the cursor polling period on platforms without a move hook
	PollIntervalMs int `json:"poll_interval_ms"`

	// QueueSize is the event buffer between the capture thread and the recorder
	QueueSize int `json:"queue_size"`

	// StartOnLaunch begins a capture session as soon as the service starts
	StartOnLaunch bool `json:"start_on_launch"`
}

// HeatmapConfig controls binning and rendering
type HeatmapConfig struct {
	// ResolutionX is the number of grid columns
	ResolutionX int `json:"resolution_x"`

	// ResolutionY is the number of grid rows
	ResolutionY int `json:"resolution_y"`

	// Smoothing is the gaussian sigma in cells applied when rendering (0 disables)
	Smoothing float64 `json:"smoothing"`

	// ImageWidth is the width in pixels of exported PNG heatmaps
	ImageWidth int `json:"image_width"`

	// ExportDir is where PNG exports are written (defaults to the working directory)
	ExportDir string `json:"export_dir,omitempty"`
}

// DisplayConfig controls topology resolution
type DisplayConfig struct {
	// FallbackEnabled allows capture to proceed with a single assumed screen
	FallbackEnabled bool `json:"fallback_enabled"`

	// FallbackWidth is the width of the assumed screen
	FallbackWidth int `json:"fallback_width"`

	// FallbackHeight is the height of the assumed screen
	FallbackHeight int `json:"fallback_height"`

	// Regions overrides screen enumeration when non-empty
	Regions []topology.Region `json:"regions,omitempty"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// StartOnBoot determines if app starts on login
	StartOnBoot bool `json:"start_on_boot"`

	// APIEnabled enables the HTTP API and browser control panel
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the port for the API server
	APIPort int `json:"api_port"`

	// APIToken is an optional authentication token for API requests
	APIToken string `json:"api_token,omitempty"`

	// ToggleHotkey starts or stops capture from anywhere, e.g. "Ctrl+Alt+H"
	ToggleHotkey string `json:"toggle_hotkey,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			DataFile:       "pointer_data.json",
			PollIntervalMs: 20,
			QueueSize:      1000,
		},
		Heatmap: HeatmapConfig{
			ResolutionX: 120,
			ResolutionY: 120,
			Smoothing:   1.0,
			ImageWidth:  1400,
		},
		Display: DisplayConfig{
			FallbackEnabled: true,
			FallbackWidth:   1920,
			FallbackHeight:  1080,
		},
		General: GeneralConfig{
			APIEnabled: true,
			APIPort:    18090,
		},
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	if c.Heatmap.ResolutionX < 1 || c.Heatmap.ResolutionY < 1 {
		errs = append(errs, fmt.Errorf("heatmap resolution must be positive, got %dx%d", c.Heatmap.ResolutionX, c.Heatmap.ResolutionY))
	}
	if c.Heatmap.Smoothing < 0 {
		errs = append(errs, fmt.Errorf("heatmap smoothing must not be negative, got %g", c.Heatmap.Smoothing))
	}
	if c.Heatmap.ImageWidth < 0 {
		errs = append(errs, fmt.Errorf("image width must not be negative, got %d", c.Heatmap.ImageWidth))
	}
	if c.Capture.DataFile == "" {
		errs = append(errs, errors.New("capture data file must be set"))
	}
	if c.Display.FallbackEnabled && (c.Display.FallbackWidth <= 0 || c.Display.FallbackHeight <= 0) {
		errs = append(errs, fmt.Errorf("fallback size must be positive, got %dx%d", c.Display.FallbackWidth, c.Display.FallbackHeight))
	}
	if c.General.APIPort < 0 || c.General.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("api port out of range: %d", c.General.APIPort))
	}
	if c.General.ToggleHotkey != "" {
		if _, err := hotkey.ParseCombo(c.General.ToggleHotkey); err != nil {
			errs = append(errs, fmt.Errorf("toggle hotkey: %w", err))
		}
	}
	return errors.Join(errs...)
}

// FallbackRegion returns the configured fallback screen, or nil when disabled
func (c *Config) FallbackRegion() *topology.Region {
	if !c.Display.FallbackEnabled {
		return nil
	}
	r := topology.Fallback(c.Display.FallbackWidth, c.Display.FallbackHeight)
	return &r
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a configuration manager rooted in the OS config directory
func NewManager() (*Manager, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(filepath.Join(configDir, "config.json")), nil
}

// NewManagerAt creates a configuration manager for an explicit file
func NewManagerAt(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// getConfigDir returns the per-user configuration directory
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", AppName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, AppName)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", AppName)
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return configDir, nil
}

// Path returns the configuration file path
func (m *Manager) Path() string {
	return m.configPath
}

// Dir returns the directory holding the configuration file
func (m *Manager) Dir() string {
	return filepath.Dir(m.configPath)
}

// DataPath returns the resolved sample file path
func (m *Manager) DataPath() string {
	m.mu.Lock()
	file := m.config.Capture.DataFile
	m.mu.Unlock()

	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(m.Dir(), file)
}

// Load reads the configuration from disk
func (m *Manager) Load() error {
	m.mu.Lock()

	data, err := os.ReadFile(m.configPath)
	if errors.Is(err, os.ErrNotExist) {
		// No config file, use defaults
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("parse %s: %w", m.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}
	m.config = cfg
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.config
	cp.Display.Regions = append([]topology.Region(nil), m.config.Display.Regions...)
	return &cp
}

// Set validates and replaces the configuration
func (m *Manager) Set(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = config
	cb := m.onChanged
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
