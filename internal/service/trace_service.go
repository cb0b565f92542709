package service

import (
	"context"
	"fmt"

	"ai-conversation-be/internal/dto"
	"ai-conversation-be/pkg/trace"

	"github.com/google/uuid"
)

type ITraceService interface {
	GetTrace(ctx context.Context, id uuid.UUID) (*dto.TraceResponse, error)
	GetConversationTraces(ctx context.Context, conversationId string, limit int) ([]*dto.TraceResponse, error)
	GetConversationStats(ctx context.Context, conversationId string) ([]dto.StageStatisticDTO, error)
}

type traceService struct {
	recorder *trace.Recorder
}

func NewTraceService(recorder *trace.Recorder) ITraceService {
	return &traceService{recorder: recorder}
}

func (s *traceService) GetTrace(ctx context.Context, id uuid.UUID) (*dto.TraceResponse, error) {
	t, err := s.recorder.GetTrace(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get trace: %w", err)
	}
	if t == nil {
		return nil, nil
	}
	return toTraceResponse(t), nil
}

func (s *traceService) GetConversationTraces(ctx context.Context, conversationId string, limit int) ([]*dto.TraceResponse, error) {
	traces, err := s.recorder.GetTracesByConversation(ctx, conversationId, limit)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	out := make([]*dto.TraceResponse, len(traces))
	for i, t := range traces {
		out[i] = toTraceResponse(t)
	}
	return out, nil
}

func (s *traceService) GetConversationStats(ctx context.Context, conversationId string) ([]dto.StageStatisticDTO, error) {
	stats, err := s.recorder.StageStatistics(ctx, conversationId)
	if err != nil {
		return nil, fmt.Errorf("stage statistics: %w", err)
	}
	out := make([]dto.StageStatisticDTO, len(stats))
	for i, st := range stats {
		out[i] = dto.StageStatisticDTO{
			StageName:     st.StageName,
			Executions:    st.Executions,
			Skips:         st.Skips,
			Errors:        st.Errors,
			AvgDurationMs: st.AvgDurationMs,
			ErrorRate:     st.ErrorRate,
		}
	}
	return out, nil
}

func toTraceResponse(t *trace.ConversationTrace) *dto.TraceResponse {
	stages := make([]dto.StageTraceDTO, len(t.Stages))
	for i, st := range t.Stages {
		stages[i] = dto.StageTraceDTO{
			StageName:  st.StageName,
			Priority:   st.Priority,
			DurationMs: st.DurationMs,
			Status:     string(st.Status),
			Decision:   st.Decision,
			Error:      st.Error,
		}
	}
	return &dto.TraceResponse{
		Id:             t.Id,
		ConversationId: t.ConversationId,
		TenantId:       t.TenantId,
		AgentId:        t.AgentId,
		Message:        t.Message,
		Stages:         stages,
		StagesExecuted: t.StagesExecuted,
		StagesSkipped:  t.StagesSkipped,
		HadError:       t.HadError,
		RespondedBy:    t.RespondedBy,
		FinalAnswer:    t.FinalAnswer,
		StartedAt:      t.StartedAt,
		EndedAt:        t.EndedAt,
		Closed:         t.Closed,
	}
}
