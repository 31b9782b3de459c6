// Package app holds process configuration: YAML settings files with
// environment overrides.
package app

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from chorus.yaml.
// Field names match snake_case YAML keys.
type Settings struct {
	DatabaseURL string `yaml:"database_url"`
	Addr        string `yaml:"addr"`
	CORSOrigin  string `yaml:"cors_origin"`
}

// Config holds the effective runtime values after defaults and environment
// overrides are applied.
type Config struct {
	DatabaseURL string
	Addr        string
	CORSOrigin  string
}

const (
	defaultDatabaseURL = "chorus.db"
	defaultAddr        = ":8080"
	defaultCORSOrigin  = "http://localhost:3000"
)

// ConfigDir returns ~/.config/chorus/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chorus"), nil
}

// LoadSettings loads configuration using the documented lookup order.
// Lookup order (first found wins):
// 1) ~/.config/chorus/chorus.yaml
// 2) /etc/chorus/chorus.yaml
// 3) ./chorus.yaml (lowest priority; allows repo-local overrides)
// Environment variables are handled separately in Effective.
func LoadSettings() (Settings, error) {
	var paths []string
	if dir, err := ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "chorus.yaml"))
	}
	paths = append(paths,
		filepath.Join(string(os.PathSeparator), "etc", "chorus", "chorus.yaml"),
		"chorus.yaml",
	)

	for _, path := range paths {
		s, err := loadSettingsFile(path)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return Settings{}, err
		}
	}
	return Settings{}, nil
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Effective resolves the runtime configuration: defaults, then settings
// file, then environment (DATABASE_URL, CHORUS_ADDR, CHORUS_CORS_ORIGIN).
func Effective() (Config, error) {
	s, err := LoadSettings()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DatabaseURL: defaultDatabaseURL,
		Addr:        defaultAddr,
		CORSOrigin:  defaultCORSOrigin,
	}
	if s.DatabaseURL != "" {
		cfg.DatabaseURL = s.DatabaseURL
	}
	if s.Addr != "" {
		cfg.Addr = s.Addr
	}
	if s.CORSOrigin != "" {
		cfg.CORSOrigin = s.CORSOrigin
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("CHORUS_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("CHORUS_CORS_ORIGIN"); v != "" {
		cfg.CORSOrigin = v
	}
	return cfg, nil
}
