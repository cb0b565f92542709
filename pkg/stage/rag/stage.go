package rag

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"ai-conversation-be/pkg/llm"
	"ai-conversation-be/pkg/pipeline"
	"ai-conversation-be/pkg/retrieval"
)

// DefaultLimit caps how many knowledge fragments are stuffed into the answer
// prompt.
const DefaultLimit = 5

// Stage answers general questions over the tenant's knowledge base. It is the
// catch-all at the bottom of the pipeline; tenants without indexed content
// skip it, which is how an invocation can exhaust every stage.
type Stage struct {
	retriever retrieval.Retriever
	provider  llm.Provider
	limit     int
	logger    *log.Logger
	timeout   time.Duration
}

var _ pipeline.Stage = &Stage{}

func NewStage(retriever retrieval.Retriever, provider llm.Provider, logger *log.Logger) *Stage {
	return &Stage{
		retriever: retriever,
		provider:  provider,
		limit:     DefaultLimit,
		logger:    logger,
		timeout:   30 * time.Second,
	}
}

func (s *Stage) Name() string  { return "rag_responder" }
func (s *Stage) Priority() int { return 20 }

func (s *Stage) CanHandle(ctx context.Context, pctx *pipeline.ProcessingContext) bool {
	has, err := s.retriever.HasKnowledgeBase(ctx, pctx.TenantId)
	if err != nil {
		s.logger.Printf("[RAG] Knowledge base check failed for tenant %s: %v", pctx.TenantId, err)
		return false
	}
	return has
}

func (s *Stage) Process(ctx context.Context, pctx *pipeline.ProcessingContext) (*pipeline.ProcessingResult, error) {
	docs, err := s.retriever.Search(ctx, pctx.TenantId, pctx.Message, s.limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}
	if len(docs) == 0 {
		s.logger.Printf("[RAG] No relevant fragments for %s, passing through", pctx.ConversationId)
		return &pipeline.ProcessingResult{
			ShouldContinue: true,
			Metadata:       map[string]interface{}{"rag.no_results": true},
			Decision:       "no relevant fragments",
		}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := s.provider.Generate(ctx, s.buildPrompt(pctx.Message, docs),
		llm.WithTemperature(0.3),
		llm.WithMaxTokens(500),
	)
	if err != nil {
		return nil, fmt.Errorf("answer generation: %w", err)
	}

	answer := strings.TrimSpace(completion.Message)
	if answer == "" {
		return nil, fmt.Errorf("answer generation: empty completion")
	}

	result := pipeline.Stop(answer)
	result.Metadata = map[string]interface{}{
		"rag.fragments_used": len(docs),
		"rag.top_score":      docs[0].Score,
	}
	result.Decision = fmt.Sprintf("answered from %d fragments", len(docs))
	return result, nil
}

func (s *Stage) buildPrompt(message string, docs []retrieval.Document) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You answer questions for a Brazilian service desk using ONLY the\n")
	prompt.WriteString("knowledge fragments below. Answer in Brazilian Portuguese.\n")
	prompt.WriteString("If the fragments do not cover the question, say you don't have that\n")
	prompt.WriteString("information and suggest talking to an attendant.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<knowledge>\n")
	for i, doc := range docs {
		prompt.WriteString(fmt.Sprintf("[%d] %s\n%s\n\n", i+1, doc.Title, doc.Content))
	}
	prompt.WriteString("</knowledge>\n\n")

	prompt.WriteString("<question>\n")
	prompt.WriteString(message)
	prompt.WriteString("\n</question>")

	return prompt.String()
}
