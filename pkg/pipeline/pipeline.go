package pipeline

import (
	"context"

	"github.com/google/uuid"
)

// Reserved metadata keys the orchestrator interprets.
const (
	// MetaRewrittenMessage lets a stage replace the working message for the
	// remainder of the dispatch loop (e.g. a resolved follow-up question).
	MetaRewrittenMessage = "pipeline.rewritten_message"

	// MetaAllStagesFailed marks an invocation where no stage produced an
	// answer.
	MetaAllStagesFailed = "pipeline.all_stages_failed"

	// MetaOwningAgent names the agent that owns the active session, for the
	// trace.
	MetaOwningAgent = "pipeline.owning_agent"
)

// ProcessingContext carries one inbound message through the dispatch loop.
// It is owned exclusively by the current invocation and never persisted.
type ProcessingContext struct {
	ConversationId string
	TenantId       string
	Message        string
	Parameters     map[string]string
	Metadata       map[string]interface{} // carried forward between stages
	DebugMode      bool
	TraceId        uuid.UUID
}

// NewProcessingContext builds a context with an initialized metadata map.
func NewProcessingContext(conversationId, tenantId, message string) *ProcessingContext {
	return &ProcessingContext{
		ConversationId: conversationId,
		TenantId:       tenantId,
		Message:        message,
		Metadata:       make(map[string]interface{}),
	}
}

// ProcessingResult is a stage's output. ShouldContinue=false means "stop:
// this is the final answer".
type ProcessingResult struct {
	Content        *string
	ShouldContinue bool
	Metadata       map[string]interface{}
	NextSteps      []SuggestedAction
	GenerateAudio  bool

	// Decision is the stage's rationale, recorded verbatim in the trace.
	Decision string
}

// Stop builds a terminal result carrying the final answer.
func Stop(content string) *ProcessingResult {
	return &ProcessingResult{Content: &content, ShouldContinue: false}
}

// Continue builds a pass-through result whose metadata is merged into the
// shared context for later stages.
func Continue(metadata map[string]interface{}) *ProcessingResult {
	return &ProcessingResult{ShouldContinue: true, Metadata: metadata}
}

// Stage is one unit in the pipeline. CanHandle must be side-effect-free (it
// may call external services); Process advances the conversation one turn.
type Stage interface {
	Name() string
	Priority() int
	CanHandle(ctx context.Context, pctx *ProcessingContext) bool
	Process(ctx context.Context, pctx *ProcessingContext) (*ProcessingResult, error)
}
