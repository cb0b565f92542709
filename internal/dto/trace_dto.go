package dto

import (
	"time"

	"github.com/google/uuid"
)

type StageTraceDTO struct {
	StageName  string `json:"stage_name"`
	Priority   int    `json:"priority"`
	DurationMs int64  `json:"duration_ms"`
	Status     string `json:"status"`
	Decision   string `json:"decision,omitempty"`
	Error      string `json:"error,omitempty"`
}

type TraceResponse struct {
	Id             uuid.UUID       `json:"id"`
	ConversationId string          `json:"conversation_id"`
	TenantId       string          `json:"tenant_id"`
	AgentId        string          `json:"agent_id,omitempty"`
	Message        string          `json:"message"`
	Stages         []StageTraceDTO `json:"stages"`
	StagesExecuted int             `json:"stages_executed"`
	StagesSkipped  int             `json:"stages_skipped"`
	HadError       bool            `json:"had_error"`
	RespondedBy    string          `json:"responded_by,omitempty"`
	FinalAnswer    *string         `json:"final_answer"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        *time.Time      `json:"ended_at"`
	Closed         bool            `json:"closed"`
}

type StageStatisticDTO struct {
	StageName     string  `json:"stage_name"`
	Executions    int     `json:"executions"`
	Skips         int     `json:"skips"`
	Errors        int     `json:"errors"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	ErrorRate     float64 `json:"error_rate"`
}
