package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Options{StateDir: dir, LookupEnv: env(nil)})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.StateDir)
	assert.Equal(t, 12345, cfg.Listener.Port)
	assert.True(t, cfg.Listener.Enabled)
	assert.Equal(t, "g++", cfg.Compiler.Path)
	assert.Equal(t, "-std=c++17 -O2", cfg.Compiler.Flags)
	assert.Equal(t, 2*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Imports.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Watch.Enabled)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := "listener:\n  port: 20000\ncompiler:\n  path: clang++\nrunner:\n  timeout: 3s\nwatch:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(file), 0644))

	cfg, err := Load(Options{
		StateDir:  dir,
		LookupEnv: env(map[string]string{EnvPort: "20001", EnvLogLevel: "debug"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 20001, cfg.Listener.Port, "env beats file")
	assert.Equal(t, "clang++", cfg.Compiler.Path, "file beats default")
	assert.Equal(t, 3*time.Second, cfg.Runner.Timeout)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)

	cfg, err = Load(Options{
		StateDir:  dir,
		Port:      20002,
		LogLevel:  "warn",
		LookupEnv: env(map[string]string{EnvPort: "20001", EnvLogLevel: "debug"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 20002, cfg.Listener.Port, "flag beats env")
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_StateDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("imports:\n  ttl: 5s\n"), 0644))

	cfg, err := Load(Options{LookupEnv: env(map[string]string{EnvHome: dir})})
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.StateDir)
	assert.Equal(t, 5*time.Second, cfg.Imports.TTL)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "dev.env")
	require.NoError(t, os.WriteFile(envFile, []byte("CC_PORT=27121\nCPBENCH_CXX=clang++\n"), 0644))

	cfg, err := Load(Options{
		StateDir:  dir,
		EnvFile:   envFile,
		LookupEnv: env(map[string]string{EnvCompiler: "g++-13"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 27121, cfg.Listener.Port)
	assert.Equal(t, "g++-13", cfg.Compiler.Path, "process env beats .env file")
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(Options{StateDir: dir, LookupEnv: env(map[string]string{EnvPort: "http"})})
	assert.Error(t, err)

	_, err = Load(Options{StateDir: dir, Port: 70000, LookupEnv: env(nil)})
	assert.ErrorContains(t, err, "out of range")

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("runner: [\n"), 0644))
	_, err = Load(Options{StateDir: dir, LookupEnv: env(nil)})
	assert.ErrorContains(t, err, "parse")

	_, err = Load(Options{StateDir: t.TempDir(), EnvFile: filepath.Join(dir, "missing.env"), LookupEnv: env(nil)})
	assert.Error(t, err)
}

func TestYAML_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.StateDir = "/tmp/x"
	data, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "timeout: 2s")

	var back Config
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, *cfg, back)
}
