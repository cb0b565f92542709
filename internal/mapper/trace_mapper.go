package mapper

import (
	"encoding/json"

	"ai-conversation-be/internal/model"
	"ai-conversation-be/pkg/trace"

	"gorm.io/datatypes"
)

type TraceMapper struct{}

func NewTraceMapper() *TraceMapper {
	return &TraceMapper{}
}

func (m *TraceMapper) ToModel(t *trace.ConversationTrace) (*model.ConversationTrace, error) {
	if t == nil {
		return nil, nil
	}

	stagesJSON, err := json.Marshal(t.Stages)
	if err != nil {
		return nil, err
	}

	return &model.ConversationTrace{
		Id:             t.Id,
		ConversationId: t.ConversationId,
		TenantId:       t.TenantId,
		AgentId:        t.AgentId,
		Message:        t.Message,
		DebugMode:      t.DebugMode,
		Stages:         datatypes.JSON(stagesJSON),
		StagesExecuted: t.StagesExecuted,
		StagesSkipped:  t.StagesSkipped,
		HadError:       t.HadError,
		RespondedBy:    t.RespondedBy,
		FinalAnswer:    t.FinalAnswer,
		StartedAt:      t.StartedAt,
		EndedAt:        t.EndedAt,
	}, nil
}

func (m *TraceMapper) ToDomain(mod *model.ConversationTrace) (*trace.ConversationTrace, error) {
	if mod == nil {
		return nil, nil
	}

	var stages []trace.StageTrace
	if len(mod.Stages) > 0 {
		if err := json.Unmarshal(mod.Stages, &stages); err != nil {
			return nil, err
		}
	}

	return &trace.ConversationTrace{
		Id:             mod.Id,
		ConversationId: mod.ConversationId,
		TenantId:       mod.TenantId,
		AgentId:        mod.AgentId,
		Message:        mod.Message,
		DebugMode:      mod.DebugMode,
		Stages:         stages,
		StagesExecuted: mod.StagesExecuted,
		StagesSkipped:  mod.StagesSkipped,
		HadError:       mod.HadError,
		RespondedBy:    mod.RespondedBy,
		FinalAnswer:    mod.FinalAnswer,
		StartedAt:      mod.StartedAt,
		EndedAt:        mod.EndedAt,
		// Persisted traces are closed: the recorder saves exactly once
		Closed: true,
	}, nil
}
