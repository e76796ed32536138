// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/toeirei/shipmaster/internal/fatal"
	"github.com/toeirei/shipmaster/internal/i18n"
	"github.com/toeirei/shipmaster/internal/logging"
	"gopkg.in/yaml.v3"
)

// Conventional file names inside the base directory.
const (
	DefaultConfigName   = "shipmaster.yaml"
	DefaultSettingsName = "settings.json"
	EnvFileName         = ".env"
)

var (
	ErrConfigNotFound   = errors.New("config file not found")
	ErrConfigParse      = errors.New("config file could not be parsed")
	ErrSettingsNotFound = errors.New("settings file not found")
	ErrSettingsParse    = errors.New("settings file could not be parsed")
)

// Loader locates and reads the configuration and settings files of one
// invocation. Both are read at most once; later calls return the cached
// result, including a cached failure.
type Loader struct {
	base         string
	configPath   string
	settingsPath string

	configOnce sync.Once
	cfg        *Config
	cfgErr     error

	settingsOnce sync.Once
	settings     map[string]any
	settingsErr  error
}

// NewLoader resolves the file locations. An explicit configPath moves the
// base directory to that file's parent; otherwise the config is expected at
// <base>/shipmaster.yaml. An empty base means the working directory.
func NewLoader(base, configPath, settingsPath string) *Loader {
	if base == "" {
		base = "."
	}
	base = absPath(base)

	l := &Loader{base: base}
	if configPath != "" {
		l.configPath = absPath(expandHome(configPath))
		l.base = filepath.Dir(l.configPath)
	} else {
		l.configPath = filepath.Join(l.base, DefaultConfigName)
	}
	if settingsPath != "" {
		l.settingsPath = absPath(expandHome(settingsPath))
	} else {
		l.settingsPath = filepath.Join(l.base, DefaultSettingsName)
	}
	return l
}

// Base is the directory relative paths in the config are resolved against.
func (l *Loader) Base() string { return l.base }

// ConfigPath is the config file location.
func (l *Loader) ConfigPath() string { return l.configPath }

// SettingsPath is the settings file location.
func (l *Loader) SettingsPath() string { return l.settingsPath }

// ResolvePath joins parts, expands a leading "~" and makes the result
// absolute relative to the base directory.
func (l *Loader) ResolvePath(parts ...string) string {
	p := expandHome(filepath.Join(parts...))
	if !filepath.IsAbs(p) {
		p = filepath.Join(l.base, p)
	}
	return filepath.Clean(p)
}

// Config reads and parses the configuration file.
func (l *Loader) Config() (*Config, error) {
	l.configOnce.Do(func() {
		l.loadEnvFile()
		l.cfg, l.cfgErr = readConfig(l.configPath)
	})
	return l.cfg, l.cfgErr
}

// Settings reads and parses the settings JSON file.
func (l *Loader) Settings() (map[string]any, error) {
	l.settingsOnce.Do(func() {
		l.settings, l.settingsErr = readSettings(l.settingsPath)
	})
	return l.settings, l.settingsErr
}

// loadEnvFile exports <base>/.env without overriding variables that are
// already set.
func (l *Loader) loadEnvFile() {
	p := filepath.Join(l.base, EnvFileName)
	if _, err := os.Stat(p); err != nil {
		return
	}
	if err := godotenv.Load(p); err != nil {
		logging.Warnf("%s: %v", i18n.T("config.env_file_failed", p), err)
		return
	}
	logging.Debugf("loaded environment from %s", p)
}

func readConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fatal.New(fatal.Environment, fmt.Errorf("%w: %s", ErrConfigNotFound, path), i18n.T("config.not_found", path))
		}
		return nil, fatal.New(fatal.Environment, err, i18n.T("config.read_failed", path))
	}

	var sections map[string]any
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, fatal.New(fatal.Environment, fmt.Errorf("%w: %w", ErrConfigParse, err), i18n.T("config.parse_failed", path))
	}
	logging.Debugf("loaded config from %s", path)
	return New(path, sections), nil
}

func readSettings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fatal.New(fatal.Environment, fmt.Errorf("%w: %s", ErrSettingsNotFound, path), i18n.T("settings.not_found", path))
		}
		return nil, fatal.New(fatal.Environment, err, i18n.T("settings.read_failed", path))
	}

	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fatal.New(fatal.Environment, fmt.Errorf("%w: %w", ErrSettingsParse, err), i18n.T("settings.parse_failed", path))
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
