package trace

import (
	"time"

	"github.com/google/uuid"
)

// StageStatus is the recorded outcome of one stage's participation.
type StageStatus string

const (
	StatusSkipped          StageStatus = "SKIPPED"
	StatusExecutedContinue StageStatus = "EXECUTED_CONTINUE"
	StatusExecutedStop     StageStatus = "EXECUTED_STOP"
	StatusError            StageStatus = "ERROR"
)

// StageTrace is one entry in the invocation timeline. Fields are written once
// by the recorder and never mutated afterward.
type StageTrace struct {
	StageName  string        `json:"stage_name"`
	Priority   int           `json:"priority"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    time.Time     `json:"ended_at"`
	DurationMs int64         `json:"duration_ms"`
	Status     StageStatus `json:"status"`
	Decision   string      `json:"decision,omitempty"` // stage's declared rationale
	Error      string      `json:"error,omitempty"`
}

// ConversationTrace is the full per-invocation record. The stage list is
// append-only while the trace is open; once closed the trace is immutable.
type ConversationTrace struct {
	Id             uuid.UUID    `json:"id"`
	ConversationId string       `json:"conversation_id"`
	TenantId       string       `json:"tenant_id"`
	AgentId        string       `json:"agent_id,omitempty"` // owning agent when a session was active
	Message        string       `json:"message"`
	DebugMode      bool         `json:"debug_mode"`
	Stages         []StageTrace `json:"stages"`

	// Running totals, maintained incrementally on every AddStageTrace so the
	// closed trace needs no re-scan.
	StagesExecuted int    `json:"stages_executed"`
	StagesSkipped  int    `json:"stages_skipped"`
	HadError       bool   `json:"had_error"`
	RespondedBy    string `json:"responded_by,omitempty"` // stage that produced the final answer

	FinalAnswer *string    `json:"final_answer"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"`
	Closed      bool       `json:"closed"`
}

// StageStatistic aggregates one stage's behavior over a conversation's trace
// history. Operational insight only, never used for routing decisions.
type StageStatistic struct {
	StageName     string  `json:"stage_name"`
	Executions    int     `json:"executions"`
	Skips         int     `json:"skips"`
	Errors        int     `json:"errors"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	ErrorRate     float64 `json:"error_rate"`
}
