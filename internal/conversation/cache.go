package conversation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DecisionCache stores classifier verdicts keyed by the message that
// produced them, so repeated identical inputs skip the LLM round trip.
type DecisionCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// decisionKey builds a stable cache key from a classifier name and the
// normalized message text.
func decisionKey(classifier, message string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(message))))
	return fmt.Sprintf("decision:%s:%s", classifier, hex.EncodeToString(sum[:]))
}

// RedisDecisionCache backs DecisionCache with Redis so verdicts survive
// restarts and are shared across workers.
type RedisDecisionCache struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisDecisionCache(client *redis.Client, tracer trace.Tracer) *RedisDecisionCache {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("booking.internal.conversation.decisions")
	}
	return &RedisDecisionCache{redis: client, tracer: tracer}
}

func (c *RedisDecisionCache) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := c.tracer.Start(ctx, "conversation.decision_cache_get")
	defer span.End()

	value, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		span.RecordError(err)
		return "", false, fmt.Errorf("conversation: failed to read decision cache: %w", err)
	}
	return value, true, nil
}

func (c *RedisDecisionCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, span := c.tracer.Start(ctx, "conversation.decision_cache_set")
	defer span.End()

	if err := c.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to write decision cache: %w", err)
	}
	return nil
}

type memoryCacheEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryDecisionCache is an in-process DecisionCache for tests and
// single-node deployments without Redis.
type MemoryDecisionCache struct {
	mu      sync.Mutex
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

func NewMemoryDecisionCache() *MemoryDecisionCache {
	return &MemoryDecisionCache{
		entries: make(map[string]memoryCacheEntry),
		now:     time.Now,
	}
}

func (c *MemoryDecisionCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryDecisionCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryCacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}
