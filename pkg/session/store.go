package session

import (
	"context"
	"time"
)

// DefaultTTL is the default idle expiry window for a session.
const DefaultTTL = 60 * time.Minute

// Store persists one session per conversation id with idle expiry.
//
// Get returns (nil, nil) when no live session exists: missing, expired (the
// record is purged lazily) or unreadable (the record is discarded, not
// repaired). Save refreshes the TTL to the full idle window.
//
// The store provides no cross-request locking. Two concurrent saves for the
// same conversation id resolve as last-write-wins; callers that need strict
// per-conversation ordering must serialize requests upstream.
type Store interface {
	Get(ctx context.Context, conversationId string) (*ConversationSession, error)
	Save(ctx context.Context, session *ConversationSession) error
	Clear(ctx context.Context, conversationId string) error
}
