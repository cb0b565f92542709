package trace

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	tr, err := store.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("missing trace must not error: %v", err)
	}
	if tr != nil {
		t.Errorf("missing trace must come back nil")
	}
}

func TestMemoryStoreListPrunesExpiredIndexEntries(t *testing.T) {
	store := NewMemoryStore(time.Nanosecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Save(ctx, &ConversationTrace{Id: uuid.New(), ConversationId: "c1", Closed: true}); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(time.Millisecond)

	traces, err := store.ListByConversation(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(traces) != 0 {
		t.Fatalf("expired traces must not be listed, got %d", len(traces))
	}

	store.mu.Lock()
	_, indexed := store.byConversation["c1"]
	store.mu.Unlock()
	if indexed {
		t.Errorf("index entries for expired traces must be dropped")
	}
}
