package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "conversation:session:"

// RedisStore keeps sessions as JSON values in Redis with the idle window as
// the key TTL. Redis expiry is the primary garbage collector; the idle check
// in Get is a second guard for records written with a longer TTL before a
// config change.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = &RedisStore{}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, conversationId string) (*ConversationSession, error) {
	key := redisKeyPrefix + conversationId

	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get %s: %w", conversationId, err)
	}

	var sess ConversationSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// Corrupt record: discard, don't repair
		s.client.Del(ctx, key)
		return nil, nil
	}

	if sess.IdleFor(time.Now()) > s.ttl {
		s.client.Del(ctx, key)
		return nil, nil
	}

	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, session *ConversationSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("session marshal %s: %w", session.ConversationId, err)
	}

	key := redisKeyPrefix + session.ConversationId
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session save %s: %w", session.ConversationId, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, conversationId string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+conversationId).Err(); err != nil {
		return fmt.Errorf("session clear %s: %w", conversationId, err)
	}
	return nil
}
