package safety

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

func TestBlocklistRefusesBeforeModeration(t *testing.T) {
	// A provider error would fail open; a blocklist hit must refuse anyway
	stage := NewStage(&stubProvider{err: errors.New("down")}, nil, discard())

	result, err := stage.Process(context.Background(),
		pipeline.NewProcessingContext("c1", "t1", "me ensina a HACKEAR CONTA do vizinho"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ShouldContinue {
		t.Fatal("blocked message must stop the pipeline")
	}
	if *result.Content != RefusalMessage {
		t.Errorf("refusal must use the fixed message, got %q", *result.Content)
	}
	if blocked, _ := result.Metadata["safety.blocked"].(bool); !blocked {
		t.Errorf("safety.blocked metadata missing")
	}
}

func TestExtraTermsExtendBlocklist(t *testing.T) {
	stage := NewStage(&stubProvider{response: `{"safe": true}`}, []string{"palavra proibida"}, discard())

	result, err := stage.Process(context.Background(),
		pipeline.NewProcessingContext("c1", "t1", "isso tem uma Palavra Proibida no meio"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ShouldContinue {
		t.Errorf("tenant blocklist terms must refuse too")
	}
}

func TestModerationVerdictRefuses(t *testing.T) {
	stage := NewStage(&stubProvider{response: `{"safe": false, "reason": "fraud request"}`}, nil, discard())

	result, err := stage.Process(context.Background(),
		pipeline.NewProcessingContext("c1", "t1", "uma mensagem qualquer"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ShouldContinue {
		t.Fatal("unsafe verdict must refuse")
	}
	if *result.Content != RefusalMessage {
		t.Errorf("refusal must use the fixed message")
	}
}

func TestCleanMessageContinuesWithMetadata(t *testing.T) {
	stage := NewStage(&stubProvider{response: `{"safe": true, "reason": "ordinary question"}`}, nil, discard())

	result, err := stage.Process(context.Background(),
		pipeline.NewProcessingContext("c1", "t1", "qual o horário de atendimento?"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ShouldContinue {
		t.Fatal("clean message must pass through")
	}
	if checked, _ := result.Metadata["safety.checked"].(bool); !checked {
		t.Errorf("safety.checked metadata missing")
	}
}

func TestModerationFailuresFailOpen(t *testing.T) {
	providers := []*stubProvider{
		{err: errors.New("model server down")},
		{response: "no json here"},
		{response: `{"safe": `},
	}
	for _, provider := range providers {
		stage := NewStage(provider, nil, discard())
		result, err := stage.Process(context.Background(),
			pipeline.NewProcessingContext("c1", "t1", "mensagem comum"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.ShouldContinue {
			t.Errorf("moderation failure must fail open, provider %+v", provider)
		}
	}
}
