package dto

import (
	"github.com/google/uuid"
)

type ProcessMessageRequest struct {
	ConversationId string            `json:"conversation_id" validate:"required"`
	TenantId       string            `json:"tenant_id" validate:"required"`
	Message        string            `json:"message" validate:"required,max=4000"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	DebugMode      bool              `json:"debug_mode,omitempty"`
}

type SuggestedActionDTO struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

type ProcessMessageResponse struct {
	Answer        *string                `json:"answer"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	NextSteps     []SuggestedActionDTO   `json:"next_steps,omitempty"`
	GenerateAudio bool                   `json:"generate_audio,omitempty"`
	TraceId       uuid.UUID              `json:"trace_id"`
}

type ClearSessionResponse struct {
	ConversationId string `json:"conversation_id"`
	Cleared        bool   `json:"cleared"`
}

// HandoffMessage is the watermill payload emitted when an agent flow
// escalates to a human.
type HandoffMessage struct {
	ConversationId string `json:"conversation_id"`
	TenantId       string `json:"tenant_id"`
	AgentId        string `json:"agent_id"`
	Reason         string `json:"reason"`
}

// ProcessedMessage is the watermill payload emitted after every invocation.
type ProcessedMessage struct {
	ConversationId string    `json:"conversation_id"`
	TenantId       string    `json:"tenant_id"`
	RespondedBy    string    `json:"responded_by,omitempty"`
	TraceId        uuid.UUID `json:"trace_id"`
	Answered       bool      `json:"answered"`
}
