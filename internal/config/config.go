// Package config resolves daemon settings from defaults, the state dir's
// config.yaml, the environment (optionally seeded from a .env file) and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the optional config file inside the state dir.
const FileName = "config.yaml"

// Environment variables.
const (
	EnvHome     = "CPBENCH_HOME"
	EnvPort     = "CC_PORT"
	EnvCompiler = "CPBENCH_CXX"
	EnvFlags    = "CPBENCH_CXXFLAGS"
	EnvLogLevel = "CPBENCH_LOG_LEVEL"
)

type ListenerConfig struct {
	Port    int  `yaml:"port"`
	Enabled bool `yaml:"enabled"`
}

type CompilerConfig struct {
	Path  string `yaml:"path"`
	Flags string `yaml:"flags"`
}

type RunnerConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type ImportsConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the resolved daemon configuration.
type Config struct {
	StateDir string         `yaml:"state_dir"`
	Listener ListenerConfig `yaml:"listener"`
	Compiler CompilerConfig `yaml:"compiler"`
	Runner   RunnerConfig   `yaml:"runner"`
	Imports  ImportsConfig  `yaml:"imports"`
	Log      LogConfig      `yaml:"log"`
	Watch    WatchConfig    `yaml:"watch"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StateDir: defaultStateDir(),
		Listener: ListenerConfig{Port: 12345, Enabled: true},
		Compiler: CompilerConfig{Path: "g++", Flags: "-std=c++17 -O2"},
		Runner:   RunnerConfig{Timeout: 2 * time.Second},
		Imports:  ImportsConfig{TTL: 30 * time.Second},
		Log:      LogConfig{Level: "info"},
		Watch:    WatchConfig{Enabled: true},
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cpbench"
	}
	return filepath.Join(home, ".cpbench")
}

// Options carries flag values and sources. Zero values mean "not set".
type Options struct {
	EnvFile  string
	StateDir string
	Port     int
	LogLevel string

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if opts.EnvFile != "" {
		dotenv, err := godotenv.Read(opts.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", opts.EnvFile, err)
		}
		lookup = layered(lookup, dotenv)
	}

	cfg := Default()

	// The state dir decides where config.yaml lives, so resolve it first.
	stateDir := cfg.StateDir
	if v, ok := lookup(EnvHome); ok && v != "" {
		stateDir = v
	}
	if opts.StateDir != "" {
		stateDir = opts.StateDir
	}

	if err := cfg.mergeFile(filepath.Join(stateDir, FileName)); err != nil {
		return nil, err
	}
	cfg.StateDir = stateDir

	if err := cfg.mergeEnv(lookup); err != nil {
		return nil, err
	}

	if opts.Port != 0 {
		cfg.Listener.Port = opts.Port
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return errors.New("state_dir must not be empty")
	}
	if c.Listener.Port < 1 || c.Listener.Port > 65535 {
		return fmt.Errorf("listener.port %d out of range", c.Listener.Port)
	}
	if c.Compiler.Path == "" {
		return errors.New("compiler.path must not be empty")
	}
	if c.Runner.Timeout <= 0 {
		return fmt.Errorf("runner.timeout must be positive, got %s", c.Runner.Timeout)
	}
	if c.Imports.TTL <= 0 {
		return fmt.Errorf("imports.ttl must be positive, got %s", c.Imports.TTL)
	}
	return nil
}

// YAML renders the configuration as it would appear in config.yaml.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Listener.Port = port
	}
	if v, ok := lookup(EnvCompiler); ok && v != "" {
		c.Compiler.Path = v
	}
	if v, ok := lookup(EnvFlags); ok {
		c.Compiler.Flags = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// layered consults primary first and falls back to values from a .env file.
func layered(primary func(string) (string, bool), fallback map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := primary(key); ok {
			return v, true
		}
		v, ok := fallback[key]
		return v, ok
	}
}
