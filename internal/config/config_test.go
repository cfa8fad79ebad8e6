package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return dir
}

func TestNewDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultMetricsNamespace, cfg.MetricsNamespace)
	assert.Equal(t, DefaultSnapshotInterval, cfg.Snapshot.Interval.Std())
	assert.Equal(t, DefaultSnapshotKeep, cfg.Snapshot.Keep)
	assert.Zero(t, cfg.DepthLimit)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ConfigFileName)
}

func TestLoadFull(t *testing.T) {
	dir := writeConfig(t, `
addr: ":9090"
log_level: debug
log_format: json
metrics_namespace: statehub
depth_limit: 64

signals:
  - name: greeting
    type: string
    initial: "hello"
    persist: true
  - name: counter
    type: int
    initial: 7
    persist: true
  - name: flags
    type: json

sources:
  - path: ./flags.yaml
    signal: flags
    format: yaml
    debounce: 250ms

snapshot:
  backend: disk
  interval: 5s
  keep: 3
  disk:
    dir: ./snaps

gateway:
  heartbeat_interval: 10s
  send_buffer: 128
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "statehub", cfg.MetricsNamespace)
	assert.Equal(t, 64, cfg.DepthLimit)

	require.Len(t, cfg.Signals, 3)
	assert.Equal(t, "greeting", cfg.Signals[0].Name)
	assert.True(t, cfg.Signals[0].Persist)
	assert.False(t, cfg.Signals[2].Persist)

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "flags", cfg.Sources[0].Signal)
	assert.Equal(t, 250*time.Millisecond, cfg.Sources[0].Debounce.Std())

	assert.Equal(t, "disk", cfg.Snapshot.Backend)
	assert.Equal(t, 5*time.Second, cfg.Snapshot.Interval.Std())
	assert.Equal(t, 3, cfg.Snapshot.Keep)
	assert.Equal(t, "./snaps", cfg.Snapshot.Disk.Dir)

	assert.Equal(t, 10*time.Second, cfg.Gateway.HeartbeatInterval.Std())
	assert.Equal(t, 128, cfg.Gateway.SendBuffer)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), cfg.Path())
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := writeConfig(t, `
signals:
  - name: counter
    type: int
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, DefaultSnapshotInterval, cfg.Snapshot.Interval.Std())
	assert.Equal(t, DefaultSnapshotKeep, cfg.Snapshot.Keep)
}

func TestLoadBadYAML(t *testing.T) {
	dir := writeConfig(t, "signals: [\n")
	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestDurationParsing(t *testing.T) {
	dir := writeConfig(t, `
snapshot:
  backend: disk
  interval: 90s
`)
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Snapshot.Interval.Std())

	dir = writeConfig(t, `
snapshot:
  interval: ninety seconds
`)
	_, err = Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "log_level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: "log_format",
		},
		{
			name:    "negative depth limit",
			mutate:  func(c *Config) { c.DepthLimit = -1 },
			wantErr: "depth_limit",
		},
		{
			name: "unnamed signal",
			mutate: func(c *Config) {
				c.Signals = []SignalConfig{{Type: "int"}}
			},
			wantErr: "empty name",
		},
		{
			name: "unknown signal type",
			mutate: func(c *Config) {
				c.Signals = []SignalConfig{{Name: "x", Type: "decimal"}}
			},
			wantErr: "unknown type",
		},
		{
			name: "duplicate signal",
			mutate: func(c *Config) {
				c.Signals = []SignalConfig{
					{Name: "x", Type: "int"},
					{Name: "x", Type: "string"},
				}
			},
			wantErr: "declared twice",
		},
		{
			name: "source without declared signal",
			mutate: func(c *Config) {
				c.Sources = []SourceConfig{{Path: "f.json", Signal: "ghost"}}
			},
			wantErr: "undeclared signal",
		},
		{
			name: "source with unknown format",
			mutate: func(c *Config) {
				c.Signals = []SignalConfig{{Name: "x", Type: "json"}}
				c.Sources = []SourceConfig{{Path: "f.toml", Signal: "x", Format: "toml"}}
			},
			wantErr: "unknown format",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Snapshot.Backend = "dynamo" },
			wantErr: "unknown snapshot backend",
		},
		{
			name: "disk backend without dir",
			mutate: func(c *Config) {
				c.Snapshot.Backend = "disk"
				c.Snapshot.Disk.Dir = ""
			},
			wantErr: "disk.dir",
		},
		{
			name: "s3 backend without bucket",
			mutate: func(c *Config) {
				c.Snapshot.Backend = "s3"
			},
			wantErr: "bucket",
		},
		{
			name: "s3 backend without region or endpoint",
			mutate: func(c *Config) {
				c.Snapshot.Backend = "s3"
				c.Snapshot.S3.Bucket = "b"
			},
			wantErr: "region or endpoint",
		},
		{
			name: "redis backend without addr",
			mutate: func(c *Config) {
				c.Snapshot.Backend = "redis"
			},
			wantErr: "redis.addr",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestInitialJSON(t *testing.T) {
	dir := writeConfig(t, `
signals:
  - name: greeting
    type: string
    initial: "hello"
  - name: counter
    type: int
    initial: 7
  - name: flags
    type: json
    initial:
      beta: true
      limit: 10
  - name: bare
    type: string
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	data, err := cfg.Signals[0].InitialJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"hello"`, string(data))

	data, err = cfg.Signals[1].InitialJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `7`, string(data))

	data, err = cfg.Signals[2].InitialJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"beta": true, "limit": 10}`, string(data))

	data, err = cfg.Signals[3].InitialJSON()
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for level, want := range cases {
		cfg := New()
		cfg.LogLevel = level
		assert.Equal(t, want, cfg.SlogLevel(), "level %s", level)
	}
}

func TestPersistedNames(t *testing.T) {
	cfg := New()
	cfg.Signals = []SignalConfig{
		{Name: "a", Type: "int", Persist: true},
		{Name: "b", Type: "int"},
		{Name: "c", Type: "string", Persist: true},
	}
	assert.Equal(t, []string{"a", "c"}, cfg.PersistedNames())
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("addr: :1\n"), 0644))
	assert.True(t, Exists(dir))
}
