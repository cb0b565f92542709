package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "HANDOFF_REQUESTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Event type codes used on the bus.
const (
	TypeHandoffRequested     = "HANDOFF_REQUESTED"
	TypePipelineExhausted    = "PIPELINE_EXHAUSTED"
	TypeConversationAnswered = "CONVERSATION_ANSWERED"
)

// NewHandoffRequested is emitted when an agent flow escalates to a human.
func NewHandoffRequested(conversationId, tenantId, agentId, reason string) Event {
	return BaseEvent{
		Type: TypeHandoffRequested,
		Data: map[string]interface{}{
			"conversation_id": conversationId,
			"tenant_id":       tenantId,
			"agent_id":        agentId,
			"reason":          reason,
		},
		OccurredAt: time.Now(),
	}
}

// NewPipelineExhausted is emitted when no stage produced an answer.
func NewPipelineExhausted(conversationId, tenantId, message string) Event {
	return BaseEvent{
		Type: TypePipelineExhausted,
		Data: map[string]interface{}{
			"conversation_id": conversationId,
			"tenant_id":       tenantId,
			"message":         message,
		},
		OccurredAt: time.Now(),
	}
}
