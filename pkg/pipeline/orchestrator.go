package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"ai-conversation-be/pkg/trace"

	"github.com/google/uuid"
)

// Result is the invocation outcome handed back to the caller. Answer is nil
// when no stage stopped the pipeline.
type Result struct {
	Answer        *string
	Metadata      map[string]interface{}
	NextSteps     []SuggestedAction
	GenerateAudio bool
	TraceId       uuid.UUID
}

// Orchestrator drives the per-message dispatch loop over the registered
// stages. One invocation is strictly sequential: a stage only starts after
// the previous one has fully returned.
type Orchestrator struct {
	registry *Registry
	recorder *trace.Recorder
	logger   *log.Logger
}

func NewOrchestrator(registry *Registry, recorder *trace.Recorder, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		recorder: recorder,
		logger:   logger,
	}
}

// Process dispatches one inbound message. Stages run in descending priority
// order; the first stage whose result carries ShouldContinue=false owns the
// answer. A stage failure is recorded and treated as a skip: the pipeline
// never aborts because of one stage.
func (o *Orchestrator) Process(ctx context.Context, pctx *ProcessingContext) (*Result, error) {
	traceId := o.recorder.StartTrace(trace.Meta{
		ConversationId: pctx.ConversationId,
		TenantId:       pctx.TenantId,
		Message:        pctx.Message,
		DebugMode:      pctx.DebugMode,
	})
	pctx.TraceId = traceId
	if pctx.Metadata == nil {
		pctx.Metadata = make(map[string]interface{})
	}

	o.logger.Printf("[PIPELINE] Start trace=%s conversation=%s message=%s",
		traceId, pctx.ConversationId, truncateLog(pctx.Message, 60))

	for _, stage := range o.registry.Stages() {
		started := time.Now()

		if !stage.CanHandle(ctx, pctx) {
			o.recorder.AddStageTrace(traceId, trace.StageTrace{
				StageName: stage.Name(),
				Priority:  stage.Priority(),
				StartedAt: started,
				EndedAt:   started,
				Status:    trace.StatusSkipped,
			})
			continue
		}

		result, err := o.runStage(ctx, stage, pctx)
		ended := time.Now()

		if err != nil {
			o.logger.Printf("[PIPELINE] Stage %s failed: %v", stage.Name(), err)
			o.recorder.AddStageTrace(traceId, trace.StageTrace{
				StageName:  stage.Name(),
				Priority:   stage.Priority(),
				StartedAt:  started,
				EndedAt:    ended,
				DurationMs: ended.Sub(started).Milliseconds(),
				Status:     trace.StatusError,
				Error:      err.Error(),
			})
			// A failing stage is treated as if it had skipped
			continue
		}

		status := trace.StatusExecutedContinue
		if !result.ShouldContinue {
			status = trace.StatusExecutedStop
		}
		o.recorder.AddStageTrace(traceId, trace.StageTrace{
			StageName:  stage.Name(),
			Priority:   stage.Priority(),
			StartedAt:  started,
			EndedAt:    ended,
			DurationMs: ended.Sub(started).Milliseconds(),
			Status:     status,
			Decision:   result.Decision,
		})

		if !result.ShouldContinue {
			o.mergeMetadata(pctx, result.Metadata)
			if err := o.recorder.EndTrace(ctx, traceId, result.Content); err != nil {
				o.logger.Printf("[PIPELINE] Failed to close trace %s: %v", traceId, err)
			}
			o.logger.Printf("[PIPELINE] Stop at stage %s trace=%s", stage.Name(), traceId)
			return &Result{
				Answer:        result.Content,
				Metadata:      pctx.Metadata,
				NextSteps:     result.NextSteps,
				GenerateAudio: result.GenerateAudio,
				TraceId:       traceId,
			}, nil
		}

		// Later stages may read earlier stages' findings
		o.mergeMetadata(pctx, result.Metadata)
	}

	// Every stage skipped or continued without stopping
	pctx.Metadata[MetaAllStagesFailed] = true
	if err := o.recorder.EndTrace(ctx, traceId, nil); err != nil {
		o.logger.Printf("[PIPELINE] Failed to close trace %s: %v", traceId, err)
	}
	o.logger.Printf("[PIPELINE] Exhausted: no stage produced an answer trace=%s", traceId)

	return &Result{
		Answer:   nil,
		Metadata: pctx.Metadata,
		TraceId:  traceId,
	}, nil
}

// runStage executes one stage with panic recovery so a misbehaving stage
// cannot abort the invocation.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, pctx *ProcessingContext) (result *ProcessingResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("stage %s panicked: %v", stage.Name(), r)
		}
	}()

	result, err = stage.Process(ctx, pctx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("stage %s returned no result", stage.Name())
	}
	return result, nil
}

// mergeMetadata copies a stage's metadata into the shared context. The merge
// is shallow; later keys overwrite earlier ones. The reserved rewritten
// message key replaces the working message for the rest of the loop.
func (o *Orchestrator) mergeMetadata(pctx *ProcessingContext, metadata map[string]interface{}) {
	for k, v := range metadata {
		if k == MetaOwningAgent {
			if agentId, ok := v.(string); ok && agentId != "" {
				o.recorder.SetAgentId(pctx.TraceId, agentId)
			}
			pctx.Metadata[k] = v
			continue
		}
		if k == MetaRewrittenMessage {
			if rewritten, ok := v.(string); ok && rewritten != "" {
				o.logger.Printf("[PIPELINE] Message rewritten: %s", truncateLog(rewritten, 60))
				pctx.Message = rewritten
			}
			continue
		}
		pctx.Metadata[k] = v
	}
}

// truncateLog truncates string for logging
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
