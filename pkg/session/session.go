package session

import (
	"time"
)

// State is the agent-owned conversation state machine value.
type State string

const (
	StateInitial             State = "INITIAL"
	StateCollectingInfo      State = "COLLECTING_INFO"
	StateProcessing          State = "PROCESSING"
	StateWaitingConfirmation State = "WAITING_CONFIRMATION"
	StateCompleted           State = "COMPLETED"
	StateHandoffRequested    State = "HANDOFF_REQUESTED"
)

// IsTerminal reports whether the session should be cleared after this turn.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateHandoffRequested
}

// MaxHistoryTurns caps the per-session message history. Older turns are
// dropped from the front; RecentTurns reads from the tail.
const MaxHistoryTurns = 20

// Turn is one message inside a session's history.
type Turn struct {
	Role    string    `json:"role"` // "user" | "model"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// ConversationSession is the persisted in-progress state for one conversation,
// owned by a single agent. At most one active session exists per conversation
// id; expired sessions are treated as absent by the stores.
type ConversationSession struct {
	ConversationId string            `json:"conversation_id"`
	TenantId       string            `json:"tenant_id"`
	AgentId        string            `json:"agent_id"`
	State          State             `json:"state"`
	AwaitingInput  string            `json:"awaiting_input,omitempty"` // kind of input the agent expects next
	CollectedData  map[string]string `json:"collected_data"`
	History        []Turn            `json:"history"`
	Turns          int               `json:"turns"` // completed exchanges; survives history trimming
	StartedAt      time.Time         `json:"started_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
}

// New creates a fresh session owned by the given agent.
func New(conversationId, tenantId, agentId string) *ConversationSession {
	now := time.Now()
	return &ConversationSession{
		ConversationId: conversationId,
		TenantId:       tenantId,
		AgentId:        agentId,
		State:          StateInitial,
		CollectedData:  make(map[string]string),
		StartedAt:      now,
		LastActivityAt: now,
	}
}

// AppendTurn records one message, dropping the oldest entries beyond the cap.
func (s *ConversationSession) AppendTurn(role, content string) {
	s.History = append(s.History, Turn{Role: role, Content: content, At: time.Now()})
	if role == "model" {
		s.Turns++
	}
	if len(s.History) > MaxHistoryTurns {
		s.History = s.History[len(s.History)-MaxHistoryTurns:]
	}
}

// RecentTurns returns up to n most recent turns, oldest first.
func (s *ConversationSession) RecentTurns(n int) []Turn {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if n > len(s.History) {
		n = len(s.History)
	}
	return s.History[len(s.History)-n:]
}

// TurnCount is the number of completed user/model exchanges.
func (s *ConversationSession) TurnCount() int {
	return s.Turns
}

// Touch refreshes the idle clock.
func (s *ConversationSession) Touch() {
	s.LastActivityAt = time.Now()
}

// IdleFor reports how long the session has been without activity.
func (s *ConversationSession) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivityAt)
}
