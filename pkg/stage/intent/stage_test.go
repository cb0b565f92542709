package intent

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"ai-conversation-be/pkg/llm"
	"ai-conversation-be/pkg/pipeline"
)

type stubProvider struct {
	response string
	err      error
}

func (p *stubProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (*llm.Completion, error) {
	last := ""
	if len(history) > 0 {
		last = history[len(history)-1].Content
	}
	return p.Generate(ctx, last, opts...)
}

func (p *stubProvider) Generate(context.Context, string, ...llm.Option) (*llm.Completion, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Completion{Message: p.response}, nil
}

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func TestProcessPublishesIntentMetadata(t *testing.T) {
	provider := &stubProvider{response: `{
		"intent": "Question",
		"confidence": 0.85,
		"rewritten_message": "",
		"suggested_actions": ["agendar_consulta"]
	}`}
	stage := NewStage(provider, nil, discard())

	result, err := stage.Process(context.Background(),
		pipeline.NewProcessingContext("c1", "t1", "quanto custa a consulta?"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ShouldContinue {
		t.Fatal("intent detection must never own the answer")
	}
	if result.Metadata[MetaIntent] != "question" {
		t.Errorf("intent must be normalized to lowercase, got %v", result.Metadata[MetaIntent])
	}
	if result.Metadata[MetaConfidence] != 0.85 {
		t.Errorf("confidence = %v, want 0.85", result.Metadata[MetaConfidence])
	}
	if len(result.NextSteps) != 1 || result.NextSteps[0].Value != "agendar_consulta" {
		t.Errorf("suggested actions lost: %+v", result.NextSteps)
	}
	if _, present := result.Metadata[pipeline.MetaRewrittenMessage]; present {
		t.Errorf("empty rewrite must not publish the rewritten-message key")
	}
}

func TestProcessRewritesFollowUpQuestions(t *testing.T) {
	provider := &stubProvider{response: `{
		"intent": "question",
		"confidence": 0.9,
		"rewritten_message": "quanto custa a consulta de cardiologia?"
	}`}
	stage := NewStage(provider, nil, discard())

	result, err := stage.Process(context.Background(),
		pipeline.NewProcessingContext("c1", "t1", "e quanto custa?"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Metadata[pipeline.MetaRewrittenMessage] != "quanto custa a consulta de cardiologia?" {
		t.Errorf("rewritten message missing: %v", result.Metadata)
	}
}

func TestProcessIdenticalRewriteIsDropped(t *testing.T) {
	provider := &stubProvider{response: `{
		"intent": "question",
		"confidence": 0.9,
		"rewritten_message": "quanto custa?"
	}`}
	stage := NewStage(provider, nil, discard())

	result, err := stage.Process(context.Background(),
		pipeline.NewProcessingContext("c1", "t1", "quanto custa?"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, present := result.Metadata[pipeline.MetaRewrittenMessage]; present {
		t.Errorf("a rewrite equal to the original must be dropped")
	}
}

func TestProcessPassesThroughOnFailure(t *testing.T) {
	for _, provider := range []*stubProvider{
		{err: errors.New("model server down")},
		{response: "not json"},
	} {
		stage := NewStage(provider, nil, discard())

		result, err := stage.Process(context.Background(),
			pipeline.NewProcessingContext("c1", "t1", "qualquer coisa"))
		if err != nil {
			t.Fatalf("classification failures must pass through: %v", err)
		}
		if !result.ShouldContinue {
			t.Fatal("must continue on failure")
		}
		if len(result.Metadata) != 0 {
			t.Errorf("failed classification must not publish metadata: %v", result.Metadata)
		}
	}
}
