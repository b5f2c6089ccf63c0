package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// OutboxKey is the Redis list a mail relay consumes with BRPOP.
const OutboxKey = "mail:outbox"

// RedisOutbox hands emails to an external relay through a Redis list.
type RedisOutbox struct {
	rdb redis.Cmdable
	key string
}

// NewRedisOutbox returns a Sender pushing onto OutboxKey.
func NewRedisOutbox(rdb redis.Cmdable) *RedisOutbox {
	return &RedisOutbox{rdb: rdb, key: OutboxKey}
}

// Send LPUSHes the JSON encoded email.
func (o *RedisOutbox) Send(ctx context.Context, e Email) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	if err := o.rdb.LPush(ctx, o.key, string(payload)).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", o.key, err)
	}
	return nil
}

// LogSender only logs; it is used when no outbox is configured.
type LogSender struct {
	Log zerolog.Logger
}

// Send logs the envelope. The body is left out since it carries codes.
func (s LogSender) Send(_ context.Context, e Email) error {
	s.Log.Info().Str("kind", e.Kind).Str("subject", e.Subject).Msg("email not delivered: no outbox configured")
	return nil
}
