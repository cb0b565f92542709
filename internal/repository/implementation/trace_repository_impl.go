package implementation

import (
	"context"
	"errors"

	"ai-conversation-be/internal/mapper"
	"ai-conversation-be/internal/model"
	"ai-conversation-be/pkg/trace"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TraceRepositoryImpl persists closed invocation traces. It is the database
// backend behind the trace recorder's Store port.
type TraceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TraceMapper
}

func NewTraceRepository(db *gorm.DB) trace.Store {
	return &TraceRepositoryImpl{
		db:     db,
		mapper: mapper.NewTraceMapper(),
	}
}

func (r *TraceRepositoryImpl) Save(ctx context.Context, t *trace.ConversationTrace) error {
	m, err := r.mapper.ToModel(t)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *TraceRepositoryImpl) Get(ctx context.Context, id uuid.UUID) (*trace.ConversationTrace, error) {
	var m model.ConversationTrace
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToDomain(&m)
}

func (r *TraceRepositoryImpl) ListByConversation(ctx context.Context, conversationId string, limit int) ([]*trace.ConversationTrace, error) {
	var models []*model.ConversationTrace
	query := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	traces := make([]*trace.ConversationTrace, 0, len(models))
	for _, m := range models {
		t, err := r.mapper.ToDomain(m)
		if err != nil {
			return nil, err
		}
		traces = append(traces, t)
	}
	return traces, nil
}
