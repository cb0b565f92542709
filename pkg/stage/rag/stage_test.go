package rag

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"ai-conversation-be/pkg/llm"
	"ai-conversation-be/pkg/pipeline"
	"ai-conversation-be/pkg/retrieval"
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

func seededRetriever() *retrieval.StaticRetriever {
	r := retrieval.NewStaticRetriever()
	r.Add("tenant-1", retrieval.Document{
		Id:      "doc-1",
		Title:   "Convênios aceitos",
		Content: "Atendemos Unimed, Bradesco Saúde e SulAmérica.",
	})
	return r
}

func TestCanHandleRequiresKnowledgeBase(t *testing.T) {
	stage := NewStage(seededRetriever(), &stubProvider{}, discard())
	ctx := context.Background()

	if !stage.CanHandle(ctx, pipeline.NewProcessingContext("c1", "tenant-1", "convênios?")) {
		t.Errorf("tenant with indexed content must be handled")
	}
	if stage.CanHandle(ctx, pipeline.NewProcessingContext("c1", "tenant-empty", "convênios?")) {
		t.Errorf("tenant without a knowledge base must be skipped")
	}
}

func TestProcessAnswersFromFragments(t *testing.T) {
	provider := &stubProvider{response: "Atendemos Unimed, Bradesco Saúde e SulAmérica."}
	stage := NewStage(seededRetriever(), provider, discard())

	result, err := stage.Process(context.Background(),
		pipeline.NewProcessingContext("c1", "tenant-1", "quais convênios vocês aceitam?"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ShouldContinue {
		t.Fatal("an answered question must stop the pipeline")
	}
	if used, _ := result.Metadata["rag.fragments_used"].(int); used != 1 {
		t.Errorf("fragments_used = %v, want 1", result.Metadata["rag.fragments_used"])
	}
	if _, ok := result.Metadata["rag.top_score"]; !ok {
		t.Errorf("top_score metadata missing")
	}
}

func TestProcessPassesThroughWithoutRelevantFragments(t *testing.T) {
	stage := NewStage(seededRetriever(), &stubProvider{response: "irrelevant"}, discard())

	result, err := stage.Process(context.Background(),
		pipeline.NewProcessingContext("c1", "tenant-1", "xyzzy"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ShouldContinue {
		t.Fatal("no fragments must mean pass-through, not a made-up answer")
	}
	if noResults, _ := result.Metadata["rag.no_results"].(bool); !noResults {
		t.Errorf("rag.no_results metadata missing")
	}
}

func TestProcessSurfacesGenerationFailure(t *testing.T) {
	for _, provider := range []*stubProvider{
		{err: errors.New("model server down")},
		{response: "  "},
	} {
		stage := NewStage(seededRetriever(), provider, discard())

		_, err := stage.Process(context.Background(),
			pipeline.NewProcessingContext("c1", "tenant-1", "quais convênios vocês aceitam?"))
		if err == nil {
			t.Errorf("generation failure must be surfaced for the orchestrator to isolate")
		}
	}
}
