package record

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crowdchat/parley/types"
)

// SinkConfig selects and configures a sink backend.
type SinkConfig struct {
	Backend  Backend `yaml:"backend"`
	TaskType string  `yaml:"task_type"`

	// BaseDir is the chat data folder for the file backend.
	BaseDir string `yaml:"base_dir"`

	Redis RedisOptions `yaml:"redis"`
}

// RedisOptions holds connection settings for the redis backend.
type RedisOptions struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	KeyPrefix    string        `yaml:"key_prefix"`
	TTL          time.Duration `yaml:"ttl"`
}

// NewSink builds a sink for the configured backend.
func NewSink(cfg SinkConfig, logger *zap.Logger) (Sink, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemorySink(), nil
	case BackendFile:
		if cfg.BaseDir == "" {
			return nil, types.NewError(types.ErrConfiguration, "file sink needs a base directory")
		}
		return NewFileSink(cfg.BaseDir, cfg.TaskType, logger)
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, types.NewError(types.ErrConfiguration, "redis sink needs an address")
		}
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		return NewRedisSink(client, RedisSinkConfig{KeyPrefix: cfg.Redis.KeyPrefix, TTL: cfg.Redis.TTL}, logger), nil
	default:
		return nil, types.NewErrorf(types.ErrConfiguration, "unknown record backend %q", cfg.Backend)
	}
}
