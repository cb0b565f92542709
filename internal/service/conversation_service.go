package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-conversation-be/internal/constant"
	"ai-conversation-be/internal/dto"
	"ai-conversation-be/internal/pkg/logger"
	"ai-conversation-be/pkg/pipeline"
	"ai-conversation-be/pkg/session"
	agentstage "ai-conversation-be/pkg/stage/agent"
)

type IConversationService interface {
	ProcessMessage(ctx context.Context, req *dto.ProcessMessageRequest) (*dto.ProcessMessageResponse, error)
	ClearSession(ctx context.Context, conversationId string) error
}

type conversationService struct {
	orchestrator *pipeline.Orchestrator
	sessions     session.Store
	publisher    IPublisherService
	log          logger.ILogger
}

func NewConversationService(
	orchestrator *pipeline.Orchestrator,
	sessions session.Store,
	publisher IPublisherService,
	log logger.ILogger,
) IConversationService {
	return &conversationService{
		orchestrator: orchestrator,
		sessions:     sessions,
		publisher:    publisher,
		log:          log,
	}
}

func (s *conversationService) ProcessMessage(ctx context.Context, req *dto.ProcessMessageRequest) (*dto.ProcessMessageResponse, error) {
	pctx := pipeline.NewProcessingContext(req.ConversationId, req.TenantId, req.Message)
	pctx.Parameters = req.Parameters
	pctx.DebugMode = req.DebugMode

	result, err := s.orchestrator.Process(ctx, pctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	if result.Answer == nil {
		s.log.Warn("conversation", "Pipeline exhausted without an answer", map[string]interface{}{
			"conversation_id": req.ConversationId,
			"trace_id":        result.TraceId.String(),
		})
		if result.Metadata == nil {
			result.Metadata = make(map[string]interface{})
		}
		result.Metadata[constant.MetaFallbackAnswer] = constant.DefaultExhaustedAnswer
	}

	s.emitOutcome(ctx, req, result)

	nextSteps := make([]dto.SuggestedActionDTO, len(result.NextSteps))
	for i, a := range result.NextSteps {
		nextSteps[i] = dto.SuggestedActionDTO{Label: a.Label, Value: a.Value, Type: a.Type}
	}

	return &dto.ProcessMessageResponse{
		Answer:        result.Answer,
		Metadata:      result.Metadata,
		NextSteps:     nextSteps,
		GenerateAudio: result.GenerateAudio,
		TraceId:       result.TraceId,
	}, nil
}

// emitOutcome publishes the post-invocation events. Failures are logged, never
// surfaced: eventing is auxiliary to answering the user.
func (s *conversationService) emitOutcome(ctx context.Context, req *dto.ProcessMessageRequest, result *pipeline.Result) {
	respondedBy := ""
	if agentId, ok := result.Metadata[pipeline.MetaOwningAgent].(string); ok {
		respondedBy = agentId
	}

	processed := dto.ProcessedMessage{
		ConversationId: req.ConversationId,
		TenantId:       req.TenantId,
		RespondedBy:    respondedBy,
		TraceId:        result.TraceId,
		Answered:       result.Answer != nil,
	}
	if payload, err := json.Marshal(processed); err == nil {
		if err := s.publisher.Publish(ctx, constant.TopicConversationProcessed, payload); err != nil {
			s.log.Warn("conversation", "Failed to publish processed event", map[string]interface{}{
				"conversation_id": req.ConversationId,
				"error":           err.Error(),
			})
		}
	}

	if requested, _ := result.Metadata[agentstage.MetaHandoffRequested].(bool); !requested {
		return
	}
	reason, _ := result.Metadata[agentstage.MetaHandoffReason].(string)

	handoff := dto.HandoffMessage{
		ConversationId: req.ConversationId,
		TenantId:       req.TenantId,
		AgentId:        respondedBy,
		Reason:         reason,
	}
	payload, err := json.Marshal(handoff)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, constant.TopicConversationHandoff, payload); err != nil {
		s.log.Error("conversation", "Failed to publish handoff event", map[string]interface{}{
			"conversation_id": req.ConversationId,
			"error":           err.Error(),
		})
	}
}

func (s *conversationService) ClearSession(ctx context.Context, conversationId string) error {
	if err := s.sessions.Clear(ctx, conversationId); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.log.Info("conversation", "Session cleared by operator", map[string]interface{}{
		"conversation_id": conversationId,
	})
	return nil
}
