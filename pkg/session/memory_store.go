package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is the go-cache backed store used by tests, the simulator and
// single-node deployments without Redis. Values are stored as JSON so the
// expiry and corruption semantics match the Redis store.
type MemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

var _ Store = &MemoryStore{}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	// Purge expired items every 10 minutes
	return &MemoryStore{
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (s *MemoryStore) Get(ctx context.Context, conversationId string) (*ConversationSession, error) {
	x, found := s.cache.Get(conversationId)
	if !found {
		return nil, nil
	}

	raw, ok := x.([]byte)
	if !ok {
		s.cache.Delete(conversationId)
		return nil, nil
	}

	var sess ConversationSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.cache.Delete(conversationId)
		return nil, nil
	}

	if sess.IdleFor(time.Now()) > s.ttl {
		s.cache.Delete(conversationId)
		return nil, nil
	}

	return &sess, nil
}

func (s *MemoryStore) Save(ctx context.Context, session *ConversationSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.cache.Set(session.ConversationId, raw, cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, conversationId string) error {
	s.cache.Delete(conversationId)
	return nil
}
