package trace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// MemoryStore retains closed traces in process memory. Used by tests, the
// simulator and deployments that do not need durable trace history. Records
// expire after the retention window.
type MemoryStore struct {
	traces *cache.Cache

	mu             sync.Mutex
	byConversation map[string][]uuid.UUID
}

var _ Store = &MemoryStore{}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &MemoryStore{
		traces:         cache.New(retention, 30*time.Minute),
		byConversation: make(map[string][]uuid.UUID),
	}
}

func (s *MemoryStore) Save(ctx context.Context, t *ConversationTrace) error {
	s.traces.Set(t.Id.String(), t, cache.DefaultExpiration)

	s.mu.Lock()
	// Newest first
	s.byConversation[t.ConversationId] = append([]uuid.UUID{t.Id}, s.byConversation[t.ConversationId]...)
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*ConversationTrace, error) {
	if x, found := s.traces.Get(id.String()); found {
		return x.(*ConversationTrace), nil
	}
	return nil, nil
}

func (s *MemoryStore) ListByConversation(ctx context.Context, conversationId string, limit int) ([]*ConversationTrace, error) {
	s.mu.Lock()
	ids := append([]uuid.UUID(nil), s.byConversation[conversationId]...)
	s.mu.Unlock()

	var result []*ConversationTrace
	live := ids[:0:0]
	for _, id := range ids {
		x, found := s.traces.Get(id.String())
		if !found {
			continue
		}
		live = append(live, id)
		if limit <= 0 || len(result) < limit {
			result = append(result, x.(*ConversationTrace))
		}
	}

	// Drop index entries whose traces the cache already expired
	if len(live) != len(ids) {
		s.mu.Lock()
		if len(live) == 0 {
			delete(s.byConversation, conversationId)
		} else {
			s.byConversation[conversationId] = live
		}
		s.mu.Unlock()
	}

	return result, nil
}
