package intent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"ai-conversation-be/pkg/llm"
	"ai-conversation-be/pkg/pipeline"
)

// Metadata keys published for downstream stages and the caller.
const (
	MetaIntent     = "intent.name"
	MetaConfidence = "intent.confidence"
)

// analysis is the classifier's structured output.
type analysis struct {
	Intent           string   `json:"intent"`
	Confidence       float64  `json:"confidence"`
	RewrittenMessage string   `json:"rewritten_message"`
	SuggestedActions []string `json:"suggested_actions"`
}

// Stage classifies the user's intent and resolves follow-up references into a
// standalone question for the stages below it. It always continues: its value
// is the metadata it leaves behind.
type Stage struct {
	provider llm.Provider
	intents  []string
	logger   *log.Logger
	timeout  time.Duration
}

var _ pipeline.Stage = &Stage{}

func NewStage(provider llm.Provider, intents []string, logger *log.Logger) *Stage {
	if len(intents) == 0 {
		intents = []string{"question", "request", "complaint", "other"}
	}
	return &Stage{
		provider: provider,
		intents:  intents,
		logger:   logger,
		timeout:  10 * time.Second,
	}
}

func (s *Stage) Name() string  { return "intent_detector" }
func (s *Stage) Priority() int { return 40 }

func (s *Stage) CanHandle(_ context.Context, _ *pipeline.ProcessingContext) bool {
	return true
}

func (s *Stage) Process(ctx context.Context, pctx *pipeline.ProcessingContext) (*pipeline.ProcessingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := s.provider.Generate(ctx, s.buildPrompt(pctx),
		llm.WithTemperature(0.0),
		llm.WithMaxTokens(200),
	)
	if err != nil {
		s.logger.Printf("[INTENT] Classification failed, passing through: %v", err)
		return pipeline.Continue(nil), nil
	}

	var out analysis
	if parsed := llm.DecodeJSON(completion.Message, &out); !parsed.OK {
		s.logger.Printf("[INTENT] Malformed classifier output, passing through: %v", parsed.Err)
		return pipeline.Continue(nil), nil
	}

	metadata := map[string]interface{}{
		MetaIntent:     strings.ToLower(strings.TrimSpace(out.Intent)),
		MetaConfidence: out.Confidence,
	}
	if rewritten := strings.TrimSpace(out.RewrittenMessage); rewritten != "" && rewritten != pctx.Message {
		metadata[pipeline.MetaRewrittenMessage] = rewritten
	}

	result := pipeline.Continue(metadata)
	raw := make([]interface{}, len(out.SuggestedActions))
	for i, a := range out.SuggestedActions {
		raw[i] = a
	}
	result.NextSteps = pipeline.NormalizeActions(raw)
	result.Decision = "intent: " + out.Intent
	return result, nil
}

func (s *Stage) buildPrompt(pctx *pipeline.ProcessingContext) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You classify the intent of a user message for a Brazilian service desk\n")
	prompt.WriteString("and rewrite follow-up questions into standalone form.\n")
	prompt.WriteString("You do NOT answer the message.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<intents>\n")
	prompt.WriteString(strings.Join(s.intents, ", "))
	prompt.WriteString("\n</intents>\n\n")

	prompt.WriteString("<user_message>\n")
	prompt.WriteString(pctx.Message)
	prompt.WriteString("\n</user_message>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString(fmt.Sprintf("  \"intent\": \"%s\",\n", strings.Join(s.intents, "|")))
	prompt.WriteString("  \"confidence\": 0.9,\n")
	prompt.WriteString("  \"rewritten_message\": \"standalone version of the question, or the original\",\n")
	prompt.WriteString("  \"suggested_actions\": [\"short follow-up the user might pick\"]\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}
