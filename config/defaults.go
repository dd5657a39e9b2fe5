package config

import (
	"time"

	"github.com/crowdchat/parley/internal/telemetry"
	"github.com/crowdchat/parley/scenario"
)

// DefaultConfig returns the defaults every deployment starts from.
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Collection: DefaultCollectionConfig(),
		Record:     DefaultRecordConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DatabaseConfig{Path: "parley.db"},
		Auth:       DefaultAuthConfig(),
		RateLimit:  DefaultRateLimitConfig(),
		Log:        DefaultLogConfig(),
		Telemetry: telemetry.Config{
			ServiceName: "parleyd",
			SampleRate:  1.0,
		},
	}
}

// DefaultServerConfig returns the default listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultCollectionConfig returns the default collection settings.
func DefaultCollectionConfig() CollectionConfig {
	return CollectionConfig{
		IncludePersona:  true,
		ResponseTimeout: 3 * time.Minute,
		TaskType:        "multiparty_chat",
		DatasetTag:      scenario.DefaultDatasetTag,
	}
}

// DefaultRecordConfig returns the default sink settings.
func DefaultRecordConfig() RecordConfig {
	return RecordConfig{
		Backend: "file",
		BaseDir: "chat_data",
	}
}

// DefaultRedisConfig returns the default Redis connection settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultAuthConfig returns the default authentication settings.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		TokenTTL: 4 * time.Hour,
	}
}

// DefaultRateLimitConfig returns the default rate limit settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled: true,
		RPS:     1,
		Burst:   5,
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stderr"},
	}
}
