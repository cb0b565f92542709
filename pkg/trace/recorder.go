package trace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists closed traces and serves the read-side queries.
type Store interface {
	Save(ctx context.Context, trace *ConversationTrace) error
	Get(ctx context.Context, id uuid.UUID) (*ConversationTrace, error)
	ListByConversation(ctx context.Context, conversationId string, limit int) ([]*ConversationTrace, error)
}

// Meta carries the invocation identifiers a trace is opened with.
type Meta struct {
	ConversationId string
	TenantId       string
	AgentId        string
	Message        string
	DebugMode      bool
}

// Recorder owns open traces. An open trace lives in memory and is touched by
// exactly one invocation; it reaches the store only once, on EndTrace, after
// which it is immutable.
type Recorder struct {
	store Store

	mu   sync.Mutex
	open map[uuid.UUID]*ConversationTrace
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store: store,
		open:  make(map[uuid.UUID]*ConversationTrace),
	}
}

// StartTrace opens a trace for one invocation and returns its id.
func (r *Recorder) StartTrace(meta Meta) uuid.UUID {
	t := &ConversationTrace{
		Id:             uuid.New(),
		ConversationId: meta.ConversationId,
		TenantId:       meta.TenantId,
		AgentId:        meta.AgentId,
		Message:        meta.Message,
		DebugMode:      meta.DebugMode,
		StartedAt:      time.Now(),
	}

	r.mu.Lock()
	r.open[t.Id] = t
	r.mu.Unlock()

	return t.Id
}

// AddStageTrace appends one stage entry and updates the running totals.
func (r *Recorder) AddStageTrace(traceId uuid.UUID, entry StageTrace) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.open[traceId]
	if !ok {
		return
	}

	t.Stages = append(t.Stages, entry)

	switch entry.Status {
	case StatusSkipped:
		t.StagesSkipped++
	case StatusError:
		t.StagesExecuted++
		t.HadError = true
	case StatusExecutedStop:
		t.StagesExecuted++
		t.RespondedBy = entry.StageName
	default:
		t.StagesExecuted++
	}
}

// SetAgentId records the session-owning agent once it is known mid-invocation.
func (r *Recorder) SetAgentId(traceId uuid.UUID, agentId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.open[traceId]; ok && t.AgentId == "" {
		t.AgentId = agentId
	}
}

// EndTrace closes the trace with the final answer and hands it to the store.
func (r *Recorder) EndTrace(ctx context.Context, traceId uuid.UUID, finalAnswer *string) error {
	r.mu.Lock()
	t, ok := r.open[traceId]
	if ok {
		delete(r.open, traceId)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("trace %s is not open", traceId)
	}

	now := time.Now()
	t.FinalAnswer = finalAnswer
	t.EndedAt = &now
	t.Closed = true

	return r.store.Save(ctx, t)
}

// GetTrace fetches one trace by id. Open traces are visible too so a debug
// caller can inspect an in-flight invocation; they are returned as a snapshot
// so the caller never races with AddStageTrace.
func (r *Recorder) GetTrace(ctx context.Context, id uuid.UUID) (*ConversationTrace, error) {
	r.mu.Lock()
	if t, ok := r.open[id]; ok {
		snapshot := *t
		snapshot.Stages = append([]StageTrace(nil), t.Stages...)
		r.mu.Unlock()
		return &snapshot, nil
	}
	r.mu.Unlock()

	return r.store.Get(ctx, id)
}

// GetTracesByConversation returns the most recent closed traces for a
// conversation, newest first.
func (r *Recorder) GetTracesByConversation(ctx context.Context, conversationId string, limit int) ([]*ConversationTrace, error) {
	return r.store.ListByConversation(ctx, conversationId, limit)
}

// StageStatistics aggregates per-stage counts, average duration and error rate
// over a conversation's trace history.
func (r *Recorder) StageStatistics(ctx context.Context, conversationId string) ([]StageStatistic, error) {
	traces, err := r.store.ListByConversation(ctx, conversationId, 0)
	if err != nil {
		return nil, err
	}

	type acc struct {
		executions int
		skips      int
		errors     int
		totalMs    int64
		order      int
	}

	byStage := make(map[string]*acc)
	order := 0
	for _, t := range traces {
		for _, st := range t.Stages {
			a, ok := byStage[st.StageName]
			if !ok {
				a = &acc{order: order}
				order++
				byStage[st.StageName] = a
			}
			switch st.Status {
			case StatusSkipped:
				a.skips++
			case StatusError:
				a.errors++
				a.executions++
				a.totalMs += st.DurationMs
			default:
				a.executions++
				a.totalMs += st.DurationMs
			}
		}
	}

	stats := make([]StageStatistic, len(byStage))
	for name, a := range byStage {
		s := StageStatistic{
			StageName:  name,
			Executions: a.executions,
			Skips:      a.skips,
			Errors:     a.errors,
		}
		if a.executions > 0 {
			s.AvgDurationMs = float64(a.totalMs) / float64(a.executions)
			s.ErrorRate = float64(a.errors) / float64(a.executions)
		}
		stats[a.order] = s
	}

	return stats, nil
}
