// Package config loads the service configuration from defaults, an optional
// YAML file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crowdchat/parley/internal/telemetry"
	"github.com/crowdchat/parley/record"
)

// Config is the complete service configuration.
type Config struct {
	// Server holds the HTTP listener settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Collection holds the conversation collection settings.
	Collection CollectionConfig `yaml:"collection" env:"COLLECTION"`

	// Roster maps model variant names to how many conversations each still
	// needs. YAML only; there is no sensible env encoding for it.
	Roster map[string]int `yaml:"roster" env:"-"`

	// Record holds the terminal record sink settings.
	Record RecordConfig `yaml:"record" env:"RECORD"`

	// Redis holds the connection settings shared by the Redis-backed sink.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database holds the qualification store settings.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Auth holds the WebSocket authentication settings.
	Auth AuthConfig `yaml:"auth" env:"AUTH"`

	// RateLimit holds the per-client connection rate limit.
	RateLimit RateLimitConfig `yaml:"rate_limit" env:"RATE_LIMIT"`

	// Log holds the logging settings.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry holds the OpenTelemetry settings.
	Telemetry telemetry.Config `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string `yaml:"addr" env:"ADDR"`
	// ReadTimeout bounds request reads.
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// WriteTimeout bounds response writes. WebSocket connections are exempt.
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// CollectionConfig holds the conversation collection settings.
type CollectionConfig struct {
	// IncludePersona shares the persona set with both parties at start.
	IncludePersona bool `yaml:"include_persona" env:"INCLUDE_PERSONA"`
	// RequireLocation rejects scenarios without a location.
	RequireLocation bool `yaml:"require_location" env:"REQUIRE_LOCATION"`
	// ResponseTimeout bounds each wait for a participant action.
	ResponseTimeout time.Duration `yaml:"response_timeout" env:"RESPONSE_TIMEOUT"`
	// TaskType tags persisted records.
	TaskType string `yaml:"task_type" env:"TASK_TYPE"`
	// DatasetTag labels the scenario source in persisted records.
	DatasetTag string `yaml:"dataset_tag" env:"DATASET_TAG"`
	// CatalogPath points at a YAML scenario catalog. Empty uses the
	// built-in settings.
	CatalogPath string `yaml:"catalog_path" env:"CATALOG_PATH"`
}

// RecordConfig holds the terminal record sink settings.
type RecordConfig struct {
	// Backend selects the sink: memory, file, or redis.
	Backend string `yaml:"backend" env:"BACKEND"`
	// BaseDir is the root directory of the file sink.
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
	// KeyPrefix namespaces Redis sink keys.
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// TTL expires Redis sink entries; zero keeps them forever.
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig holds the qualification store settings.
type DatabaseConfig struct {
	// Path is the SQLite database file; ":memory:" for ephemeral runs.
	Path string `yaml:"path" env:"PATH"`
}

// AuthConfig holds the WebSocket authentication settings.
type AuthConfig struct {
	// JWTSecret signs and verifies worker tokens. Empty disables auth;
	// only acceptable for local runs.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// TokenTTL bounds issued token lifetimes.
	TokenTTL time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
}

// RateLimitConfig holds the per-client connection rate limit.
type RateLimitConfig struct {
	// Enabled switches the limiter on.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// RPS is the sustained connections-per-second allowance per client.
	RPS float64 `yaml:"rps" env:"RPS"`
	// Burst is the instantaneous allowance per client.
	Burst int `yaml:"burst" env:"BURST"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths are zap sink URLs.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// Loader builds a Config from defaults, file, and environment.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the PARLEY env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "PARLEY"}
}

// WithConfigPath sets the YAML file to load. A missing file is not an error;
// defaults and environment still apply.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds an extra validation step run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration. Precedence, lowest to highest: defaults,
// YAML file, environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// MustLoad loads the configuration from path and panics on failure. For use
// in main only.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}
	return cfg
}

// Validate reports structural problems in the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server addr is empty")
	}
	if c.Collection.ResponseTimeout <= 0 {
		errs = append(errs, "collection response_timeout must be positive")
	}
	if c.Collection.TaskType == "" {
		errs = append(errs, "collection task_type is empty")
	}
	switch c.Record.Backend {
	case "memory", "file", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unknown record backend %q", c.Record.Backend))
	}
	if c.Record.Backend == "file" && c.Record.BaseDir == "" {
		errs = append(errs, "file record backend needs base_dir")
	}
	if c.Record.Backend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, "redis record backend needs redis addr")
	}
	for name, n := range c.Roster {
		if n <= 0 {
			errs = append(errs, fmt.Sprintf("roster entry %q must be positive", name))
		}
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, "rate limit needs positive rps and burst")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SinkConfig translates the record and redis sections into the sink factory's
// input.
func (c *Config) SinkConfig() record.SinkConfig {
	return record.SinkConfig{
		Backend:  record.Backend(c.Record.Backend),
		TaskType: c.Collection.TaskType,
		BaseDir:  c.Record.BaseDir,
		Redis: record.RedisOptions{
			Addr:         c.Redis.Addr,
			Password:     c.Redis.Password,
			DB:           c.Redis.DB,
			PoolSize:     c.Redis.PoolSize,
			MinIdleConns: c.Redis.MinIdleConns,
			KeyPrefix:    c.Record.KeyPrefix,
			TTL:          c.Record.TTL,
		},
	}
}
