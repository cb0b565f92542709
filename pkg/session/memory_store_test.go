package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	sess := New("c1", "t1", "agendar_consulta")
	sess.State = StateCollectingInfo
	sess.CollectedData["nome"] = "Maria"
	sess.AppendTurn("user", "quero agendar")

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a session")
	}
	if got.AgentId != "agendar_consulta" || got.State != StateCollectingInfo {
		t.Errorf("state lost in round trip: %+v", got)
	}
	if got.CollectedData["nome"] != "Maria" {
		t.Errorf("collected data lost")
	}
	if len(got.History) != 1 {
		t.Errorf("history lost")
	}
}

func TestMemoryStoreMissingSession(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("missing session must not be an error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing session")
	}
}

func TestMemoryStoreIdleExpiry(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	sess := New("c1", "t1", "agent")
	sess.LastActivityAt = time.Now().Add(-2 * time.Hour)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Errorf("idle session past the TTL must read as absent")
	}

	// The expired entry is also evicted
	if again, _ := store.Get(ctx, "c1"); again != nil {
		t.Errorf("expired session should have been evicted")
	}
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, New("c1", "t1", "agent")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Clear(ctx, "c1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if got, _ := store.Get(ctx, "c1"); got != nil {
		t.Errorf("cleared session must be gone")
	}

	// Clearing a missing session is a no-op
	if err := store.Clear(ctx, "absent"); err != nil {
		t.Errorf("clear of a missing session must not fail: %v", err)
	}
}
