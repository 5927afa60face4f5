package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const stateTTL = 24 * time.Hour

// StateStore persists per-conversation state between turns.
type StateStore interface {
	Save(ctx context.Context, conversationID string, state *ConversationState) error
	Load(ctx context.Context, conversationID string) (*ConversationState, error)
	Delete(ctx context.Context, conversationID string) error
}

// RedisStateStore keeps conversation state in Redis with a sliding TTL so
// abandoned conversations expire on their own.
type RedisStateStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisStateStore(client *redis.Client, tracer trace.Tracer) *RedisStateStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("booking.internal.conversation.state")
	}
	return &RedisStateStore{redis: client, tracer: tracer}
}

func (s *RedisStateStore) Save(ctx context.Context, conversationID string, state *ConversationState) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_state")
	defer span.End()

	if state == nil {
		// Delete the key if state is nil
		if err := s.redis.Del(ctx, stateKey(conversationID)).Err(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("conversation: failed to delete state: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(conversationID), data, stateTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Load(ctx context.Context, conversationID string) (*ConversationState, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // No state stored
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load state: %w", err)
	}

	var state ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return &state, nil
}

func (s *RedisStateStore) Delete(ctx context.Context, conversationID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_state")
	defer span.End()

	if err := s.redis.Del(ctx, stateKey(conversationID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete state: %w", err)
	}
	return nil
}

func stateKey(id string) string {
	return fmt.Sprintf("conversation_state:%s", id)
}
