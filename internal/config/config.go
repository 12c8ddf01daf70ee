// Package config loads process configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvDB      = "MEMORY_STORE_DB"
	EnvProject = "MEMORY_STORE_PROJECT"
	EnvPort    = "MEMORY_STORE_PORT"
	EnvPrivate = "MEMORY_STORE_PRIVATE"
)

const dirName = ".memory-store"

// Config is the process configuration.
type Config struct {
	DBPath             string        `yaml:"db_path"`
	DefaultProject     string        `yaml:"default_project"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	PrivateFiles       bool          `yaml:"private_files"`
	MaxSessions        int           `yaml:"max_sessions"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	LogFormat          string        `yaml:"log_format"`
	Verbose            bool          `yaml:"verbose"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:               "127.0.0.1",
		Port:               3789,
		PrivateFiles:       true,
		MaxSessions:        3,
		SessionIdleTimeout: 15 * time.Minute,
		LogFormat:          "console",
	}
}

// DefaultPath returns ~/.memory-store/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, dirName, "config.yaml"), nil
}

// Load builds the configuration. path names a YAML file; when it is empty
// the default location is used if a file exists there. A named file that
// does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	if err := cfg.mergeEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.fillPaths(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDB); ok && strings.TrimSpace(v) != "" {
		c.DBPath = v
	}
	if v, ok := lookup(EnvProject); ok && strings.TrimSpace(v) != "" {
		c.DefaultProject = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvPrivate); ok && v != "" {
		private, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", EnvPrivate, v)
		}
		c.PrivateFiles = private
	}
	return nil
}

func (c *Config) fillPaths() error {
	if c.DBPath != "" {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("locate home directory: %w", err)
	}
	c.DBPath = filepath.Join(home, dirName, "memory-store.sqlite")
	return nil
}

// Validate checks value ranges. Load calls it; callers that override fields
// afterwards should call it again.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db path is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", c.MaxSessions)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
