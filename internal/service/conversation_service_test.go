package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"ai-conversation-be/internal/constant"
	"ai-conversation-be/internal/dto"
	"ai-conversation-be/pkg/pipeline"
	"ai-conversation-be/pkg/session"
	agentstage "ai-conversation-be/pkg/stage/agent"
	"ai-conversation-be/pkg/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	published []publishedEvent
	err       error
}

type publishedEvent struct {
	topic   string
	payload []byte
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedEvent{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) byTopic(topic string) [][]byte {
	var out [][]byte
	for _, e := range p.published {
		if e.topic == topic {
			out = append(out, e.payload)
		}
	}
	return out
}

// noopLogger satisfies logger.ILogger without touching the filesystem.
type noopLogger struct{}

func (noopLogger) Debug(string, string, map[string]interface{}) {}
func (noopLogger) Info(string, string, map[string]interface{})  {}
func (noopLogger) Warn(string, string, map[string]interface{})  {}
func (noopLogger) Error(string, string, map[string]interface{}) {}
func (noopLogger) Sync() error                                  { return nil }

// scriptedStage hands back a fixed result so the orchestrator can be real.
type scriptedStage struct {
	result *pipeline.ProcessingResult
}

func (s *scriptedStage) Name() string  { return "scripted" }
func (s *scriptedStage) Priority() int { return 50 }
func (s *scriptedStage) CanHandle(context.Context, *pipeline.ProcessingContext) bool {
	return s.result != nil
}
func (s *scriptedStage) Process(context.Context, *pipeline.ProcessingContext) (*pipeline.ProcessingResult, error) {
	return s.result, nil
}

func newService(stageResult *pipeline.ProcessingResult, publisher IPublisherService) (IConversationService, session.Store) {
	pipeLogger := log.New(io.Discard, "", 0)
	recorder := trace.NewRecorder(trace.NewMemoryStore(time.Hour))
	orchestrator := pipeline.NewOrchestrator(
		pipeline.NewRegistry(&scriptedStage{result: stageResult}), recorder, pipeLogger)
	sessions := session.NewMemoryStore(time.Hour)
	return NewConversationService(orchestrator, sessions, publisher, noopLogger{}), sessions
}

func TestProcessMessageReturnsAnswerAndPublishesOutcome(t *testing.T) {
	publisher := &recordingPublisher{}
	result := pipeline.Stop("Olá! Como posso ajudar?")
	svc, _ := newService(result, publisher)

	resp, err := svc.ProcessMessage(context.Background(), &dto.ProcessMessageRequest{
		ConversationId: "c1",
		TenantId:       "t1",
		Message:        "oi",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Answer)
	assert.Equal(t, "Olá! Como posso ajudar?", *resp.Answer)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", resp.TraceId.String())

	processed := publisher.byTopic(constant.TopicConversationProcessed)
	require.Len(t, processed, 1)

	var event dto.ProcessedMessage
	require.NoError(t, json.Unmarshal(processed[0], &event))
	assert.Equal(t, "c1", event.ConversationId)
	assert.True(t, event.Answered)

	assert.Empty(t, publisher.byTopic(constant.TopicConversationHandoff))
}

func TestProcessMessagePublishesHandoff(t *testing.T) {
	publisher := &recordingPublisher{}
	result := pipeline.Stop("Vou transferir você para um atendente.")
	result.Metadata = map[string]interface{}{
		pipeline.MetaOwningAgent:        "agendar_consulta",
		agentstage.MetaHandoffRequested: true,
		agentstage.MetaHandoffReason:    "user asked for a human",
	}
	svc, _ := newService(result, publisher)

	_, err := svc.ProcessMessage(context.Background(), &dto.ProcessMessageRequest{
		ConversationId: "c1",
		TenantId:       "t1",
		Message:        "quero falar com humano",
	})
	require.NoError(t, err)

	handoffs := publisher.byTopic(constant.TopicConversationHandoff)
	require.Len(t, handoffs, 1)

	var event dto.HandoffMessage
	require.NoError(t, json.Unmarshal(handoffs[0], &event))
	assert.Equal(t, "agendar_consulta", event.AgentId)
	assert.Equal(t, "user asked for a human", event.Reason)
}

func TestProcessMessageExhaustedPipeline(t *testing.T) {
	publisher := &recordingPublisher{}
	svc, _ := newService(nil, publisher) // the only stage skips

	resp, err := svc.ProcessMessage(context.Background(), &dto.ProcessMessageRequest{
		ConversationId: "c1",
		TenantId:       "t1",
		Message:        "pergunta sem resposta",
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Answer)

	failed, _ := resp.Metadata[pipeline.MetaAllStagesFailed].(bool)
	assert.True(t, failed)
	assert.Equal(t, constant.DefaultExhaustedAnswer, resp.Metadata[constant.MetaFallbackAnswer],
		"clients get an advisory fallback text alongside the nil answer")

	processed := publisher.byTopic(constant.TopicConversationProcessed)
	require.Len(t, processed, 1)

	var event dto.ProcessedMessage
	require.NoError(t, json.Unmarshal(processed[0], &event))
	assert.False(t, event.Answered)
}

func TestProcessMessageSurvivesPublisherFailure(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	svc, _ := newService(pipeline.Stop("resposta"), publisher)

	resp, err := svc.ProcessMessage(context.Background(), &dto.ProcessMessageRequest{
		ConversationId: "c1",
		TenantId:       "t1",
		Message:        "oi",
	})
	require.NoError(t, err, "eventing is auxiliary, the answer must still be returned")
	require.NotNil(t, resp.Answer)
}

func TestClearSession(t *testing.T) {
	svc, sessions := newService(pipeline.Stop("ok"), &recordingPublisher{})
	ctx := context.Background()

	require.NoError(t, sessions.Save(ctx, session.New("c1", "t1", "agendar_consulta")))
	require.NoError(t, svc.ClearSession(ctx, "c1"))

	sess, err := sessions.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}
