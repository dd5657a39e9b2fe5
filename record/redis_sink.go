package record

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crowdchat/parley/types"
)

const defaultKeyPrefix = "parley:records"

// RedisSink writes records into Redis for distributed deployments where a
// separate exporter drains them. The at-most-once contract rides on SETNX:
// the key is derived from the conversation ID, so a duplicate write is
// detected even across processes.
type RedisSink struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// RedisSinkConfig configures a RedisSink.
type RedisSinkConfig struct {
	KeyPrefix string
	// TTL bounds how long a record lingers before the exporter must have
	// drained it. Zero means no expiry.
	TTL time.Duration
}

// NewRedisSink wraps an existing client.
func NewRedisSink(client redis.UniversalClient, cfg RedisSinkConfig, logger *zap.Logger) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	return &RedisSink{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
		logger:    logger.With(zap.String("component", "redis_sink")),
	}
}

// Write stores the record under a conversation-derived key. Returns the key
// as the record's location.
func (s *RedisSink) Write(ctx context.Context, rec *TerminalRecord) (string, error) {
	if err := validateRecord(rec); err != nil {
		return "", err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal terminal record: %w", err)
	}

	key := fmt.Sprintf("%s:%s", s.keyPrefix, rec.ConversationID)
	ok, err := s.client.SetNX(ctx, key, data, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis write: %w", err)
	}
	if !ok {
		return "", types.NewErrorf(types.ErrAlreadyWritten, "record for conversation %s already written to %s", rec.ConversationID, key)
	}

	s.logger.Info("terminal record saved",
		zap.String("conversation_id", rec.ConversationID),
		zap.String("model", rec.ModelIdentity),
		zap.String("key", key),
	)
	return key, nil
}
