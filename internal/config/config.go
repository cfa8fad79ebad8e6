package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "weft.yaml"

	// DefaultAddr is the default gateway listen address.
	DefaultAddr = ":8080"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultMetricsNamespace is the default Prometheus namespace.
	DefaultMetricsNamespace = "weft"

	// DefaultSnapshotInterval is the default time between snapshots.
	DefaultSnapshotInterval = 30 * time.Second

	// DefaultSnapshotKeep is how many versioned snapshots Prune leaves
	// behind by default.
	DefaultSnapshotKeep = 10
)

// Duration wraps time.Duration so YAML fields accept strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete weft.yaml configuration.
type Config struct {
	// Addr is the gateway listen address.
	Addr string `yaml:"addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format"`

	// MetricsNamespace prefixes all Prometheus metric names.
	MetricsNamespace string `yaml:"metrics_namespace"`

	// DepthLimit bounds nested notification depth. Zero disables the
	// guard, which is the engine default: cyclic writes then recurse.
	DepthLimit int `yaml:"depth_limit"`

	// Signals declares the named signals the service serves.
	Signals []SignalConfig `yaml:"signals"`

	// Sources declares file-backed signals.
	Sources []SourceConfig `yaml:"sources"`

	// Snapshot configures snapshot persistence.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Gateway configures WebSocket session handling.
	Gateway GatewayConfig `yaml:"gateway"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// SignalConfig declares one named signal.
type SignalConfig struct {
	// Name is the registry name clients address the signal by.
	Name string `yaml:"name"`

	// Type is the element type: string, int, float, bool, or json.
	Type string `yaml:"type"`

	// Initial is the initial value. When absent the type's zero value is
	// used (json signals start as null).
	Initial any `yaml:"initial"`

	// Persist includes the signal in snapshots.
	Persist bool `yaml:"persist"`
}

// InitialJSON returns the declared initial value encoded as JSON, or nil
// when no initial value is declared.
func (s SignalConfig) InitialJSON() (json.RawMessage, error) {
	if s.Initial == nil {
		return nil, nil
	}
	data, err := json.Marshal(s.Initial)
	if err != nil {
		return nil, fmt.Errorf("config: signal %q: initial value not representable as JSON: %w", s.Name, err)
	}
	return data, nil
}

// SourceConfig declares one file-backed signal.
type SourceConfig struct {
	// Path is the watched file.
	Path string `yaml:"path"`

	// Signal is the name of the declared signal the file feeds.
	Signal string `yaml:"signal"`

	// Format is how file contents are decoded: raw, json, or yaml.
	Format string `yaml:"format"`

	// Debounce coalesces bursts of file events. Zero uses the source
	// package default.
	Debounce Duration `yaml:"debounce"`
}

// SnapshotConfig configures snapshot persistence.
type SnapshotConfig struct {
	// Backend selects the store: "" (disabled), disk, s3, or redis.
	Backend string `yaml:"backend"`

	// Interval is the time between periodic snapshots.
	Interval Duration `yaml:"interval"`

	// Keep bounds how many versioned snapshots survive pruning.
	// Zero disables pruning.
	Keep int `yaml:"keep"`

	// Disk configures the disk backend.
	Disk DiskConfig `yaml:"disk"`

	// S3 configures the S3 backend.
	S3 S3Config `yaml:"s3"`

	// Redis configures the Redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// DiskConfig configures the disk snapshot backend.
type DiskConfig struct {
	// Dir is the snapshot directory.
	Dir string `yaml:"dir"`
}

// S3Config configures the S3 snapshot backend. Credentials come from the
// AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY environment variables.
type S3Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `yaml:"bucket"`

	// Region is the AWS region.
	Region string `yaml:"region"`

	// Prefix is the key prefix for snapshot objects.
	Prefix string `yaml:"prefix"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string `yaml:"endpoint"`
}

// RedisConfig configures the Redis snapshot backend.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string `yaml:"addr"`

	// Password authenticates with the server; empty means none.
	Password string `yaml:"password"`

	// DB is the database number.
	DB int `yaml:"db"`

	// Prefix is the key prefix for snapshot keys.
	Prefix string `yaml:"prefix"`
}

// GatewayConfig configures WebSocket session handling. Zero values defer
// to the live package defaults.
type GatewayConfig struct {
	// HeartbeatInterval is how often the server pings idle sessions.
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`

	// ReadTimeout bounds the wait for any inbound frame.
	ReadTimeout Duration `yaml:"read_timeout"`

	// WriteTimeout bounds each outbound write.
	WriteTimeout Duration `yaml:"write_timeout"`

	// SendBuffer is the per-session outbound frame buffer.
	SendBuffer int `yaml:"send_buffer"`
}

// New creates a Config with default values and no declared signals.
func New() *Config {
	return &Config{
		Addr:             DefaultAddr,
		LogLevel:         DefaultLogLevel,
		LogFormat:        "text",
		MetricsNamespace: DefaultMetricsNamespace,
		Snapshot: SnapshotConfig{
			Interval: Duration(DefaultSnapshotInterval),
			Keep:     DefaultSnapshotKeep,
			Disk:     DiskConfig{Dir: "snapshots"},
		},
	}
}

// Load reads weft.yaml from the specified directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config: no %s found at %s", ConfigFileName, path)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// Path returns the path the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = DefaultMetricsNamespace
	}
	if c.Snapshot.Interval <= 0 {
		c.Snapshot.Interval = Duration(DefaultSnapshotInterval)
	}
	if c.Snapshot.Keep == 0 {
		c.Snapshot.Keep = DefaultSnapshotKeep
	}
	if c.Snapshot.Backend == "disk" && c.Snapshot.Disk.Dir == "" {
		c.Snapshot.Disk.Dir = "snapshots"
	}
}

// signalTypes are the accepted SignalConfig.Type values.
var signalTypes = map[string]bool{
	"string": true,
	"int":    true,
	"float":  true,
	"bool":   true,
	"json":   true,
}

// Validate checks the configuration for contradictions the service cannot
// start with.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}

	if c.DepthLimit < 0 {
		return fmt.Errorf("config: depth_limit must not be negative")
	}

	declared := make(map[string]SignalConfig, len(c.Signals))
	for _, sig := range c.Signals {
		if sig.Name == "" {
			return fmt.Errorf("config: signal with empty name")
		}
		if !signalTypes[sig.Type] {
			return fmt.Errorf("config: signal %q: unknown type %q", sig.Name, sig.Type)
		}
		if _, dup := declared[sig.Name]; dup {
			return fmt.Errorf("config: signal %q declared twice", sig.Name)
		}
		if _, err := sig.InitialJSON(); err != nil {
			return err
		}
		declared[sig.Name] = sig
	}

	for _, src := range c.Sources {
		if src.Path == "" {
			return fmt.Errorf("config: source with empty path")
		}
		if _, ok := declared[src.Signal]; !ok {
			return fmt.Errorf("config: source %s feeds undeclared signal %q", src.Path, src.Signal)
		}
		switch src.Format {
		case "", "raw", "json", "yaml", "yml":
		default:
			return fmt.Errorf("config: source %s: unknown format %q", src.Path, src.Format)
		}
		if src.Debounce < 0 {
			return fmt.Errorf("config: source %s: debounce must not be negative", src.Path)
		}
	}

	switch c.Snapshot.Backend {
	case "":
	case "disk":
		if c.Snapshot.Disk.Dir == "" {
			return fmt.Errorf("config: snapshot.disk.dir is required for the disk backend")
		}
	case "s3":
		if c.Snapshot.S3.Bucket == "" {
			return fmt.Errorf("config: snapshot.s3.bucket is required for the s3 backend")
		}
		if c.Snapshot.S3.Region == "" && c.Snapshot.S3.Endpoint == "" {
			return fmt.Errorf("config: snapshot.s3 needs a region or endpoint")
		}
	case "redis":
		if c.Snapshot.Redis.Addr == "" {
			return fmt.Errorf("config: snapshot.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown snapshot backend %q", c.Snapshot.Backend)
	}

	if c.Snapshot.Keep < 0 {
		return fmt.Errorf("config: snapshot.keep must not be negative")
	}
	if c.Gateway.SendBuffer < 0 {
		return fmt.Errorf("config: gateway.send_buffer must not be negative")
	}

	return nil
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// PersistedNames returns the names of signals declared with persist: true.
func (c *Config) PersistedNames() []string {
	var names []string
	for _, sig := range c.Signals {
		if sig.Persist {
			names = append(names, sig.Name)
		}
	}
	return names
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
