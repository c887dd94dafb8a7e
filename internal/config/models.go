package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bryanchriswhite/RiverLayout/internal/logger"
	"github.com/bryanchriswhite/RiverLayout/internal/tiler"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Namespace      string       `json:"namespace" yaml:"namespace"`
	Layout         string       `json:"layout" yaml:"layout"`
	MainRatio      float64      `json:"main_ratio" yaml:"main_ratio"`
	LogLevel       string       `json:"log_level" yaml:"log_level"`
	LogPretty      bool         `json:"log_pretty" yaml:"log_pretty"`
	WaylandDisplay string       `json:"wayland_display" yaml:"wayland_display"`
	Status         StatusConfig `json:"status" yaml:"status"`
	NotifyOnExit   bool         `json:"notify_on_exit" yaml:"notify_on_exit"`
}

// StatusConfig represents the status API configuration
type StatusConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Port    int  `json:"port" yaml:"port"`
}

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "riverlayout"

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $XDG_CONFIG_HOME/riverlayout/config.yaml, falling
// back to ~/.config.
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "riverlayout", "config.yaml"), nil
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = p
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	// Try to read config file
	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Str("namespace", m.config.Namespace).
		Str("layout", m.config.Layout).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns default configuration
func Defaults() *Config {
	return &Config{
		Namespace: DefaultNamespace,
		Layout:    tiler.Tile.String(),
		MainRatio: tiler.DefaultMainRatio,
		LogLevel:  "info",
		Status: StatusConfig{
			Enabled: false,
			Port:    8765,
		},
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Validate checks the values a run depends on.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if strings.IndexByte(c.Namespace, 0) >= 0 {
		return fmt.Errorf("namespace must not contain NUL bytes")
	}
	if _, err := tiler.ParseKind(c.Layout); err != nil {
		return err
	}
	if c.MainRatio < tiler.MinMainRatio || c.MainRatio > tiler.MaxMainRatio {
		return fmt.Errorf("main_ratio %v out of range [%v, %v]", c.MainRatio, tiler.MinMainRatio, tiler.MaxMainRatio)
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", c.LogLevel)
	}
	if c.Status.Port < 0 || c.Status.Port > 65535 {
		return fmt.Errorf("invalid status port: %d", c.Status.Port)
	}
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// Update validates and replaces the entire configuration
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

type field struct {
	get func(c *Config) interface{}
	set func(c *Config, v string) error
}

var fields = map[string]field{
	"namespace": {
		get: func(c *Config) interface{} { return c.Namespace },
		set: func(c *Config, v string) error { c.Namespace = v; return nil },
	},
	"layout": {
		get: func(c *Config) interface{} { return c.Layout },
		set: func(c *Config, v string) error {
			kind, err := tiler.ParseKind(v)
			if err != nil {
				return err
			}
			c.Layout = kind.String()
			return nil
		},
	},
	"main_ratio": {
		get: func(c *Config) interface{} { return c.MainRatio },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid number: %s", v)
			}
			c.MainRatio = f
			return nil
		},
	},
	"log_level": {
		get: func(c *Config) interface{} { return c.LogLevel },
		set: func(c *Config, v string) error { c.LogLevel = strings.ToLower(v); return nil },
	},
	"log_pretty": {
		get: func(c *Config) interface{} { return c.LogPretty },
		set: func(c *Config, v string) error { return setBool(&c.LogPretty, v) },
	},
	"wayland_display": {
		get: func(c *Config) interface{} { return c.WaylandDisplay },
		set: func(c *Config, v string) error { c.WaylandDisplay = v; return nil },
	},
	"status.enabled": {
		get: func(c *Config) interface{} { return c.Status.Enabled },
		set: func(c *Config, v string) error { return setBool(&c.Status.Enabled, v) },
	},
	"status.port": {
		get: func(c *Config) interface{} { return c.Status.Port },
		set: func(c *Config, v string) error {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid port number: %s", v)
			}
			c.Status.Port = port
			return nil
		},
	},
	"notify_on_exit": {
		get: func(c *Config) interface{} { return c.NotifyOnExit },
		set: func(c *Config, v string) error { return setBool(&c.NotifyOnExit, v) },
	},
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid boolean: %s (use: true or false)", v)
	}
	*dst = b
	return nil
}

// Keys lists the settable configuration keys.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the value stored under key.
func (m *Manager) Value(key string) (interface{}, error) {
	f, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("configuration key not found: %s", key)
	}
	return f.get(m.Get()), nil
}

// Set parses value for key, validates the result and saves it.
func (m *Manager) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("configuration key not found: %s", key)
	}
	cfg := m.Get()
	if err := f.set(cfg, value); err != nil {
		return err
	}
	return m.Update(cfg)
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
