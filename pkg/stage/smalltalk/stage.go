package smalltalk

import (
	"context"
	"log"
	"strings"
	"time"

	"ai-conversation-be/pkg/llm"
	"ai-conversation-be/pkg/pipeline"
)

// fallbackReply is used when the model call fails; smalltalk must never leak
// an error to the user.
const fallbackReply = "Olá! Como posso ajudar você hoje?"

var greetings = []string{
	"oi", "olá", "ola", "bom dia", "boa tarde", "boa noite",
	"tudo bem", "e aí", "eae", "obrigado", "obrigada", "valeu", "tchau",
}

// Stage answers greetings and pleasantries so they never reach the heavier
// stages. Activation is deterministic; only the reply wording uses the model.
type Stage struct {
	provider llm.Provider
	logger   *log.Logger
	timeout  time.Duration
}

var _ pipeline.Stage = &Stage{}

func NewStage(provider llm.Provider, logger *log.Logger) *Stage {
	return &Stage{
		provider: provider,
		logger:   logger,
		timeout:  10 * time.Second,
	}
}

func (s *Stage) Name() string  { return "smalltalk" }
func (s *Stage) Priority() int { return 80 }

// CanHandle fires on short messages that are purely conversational.
func (s *Stage) CanHandle(_ context.Context, pctx *pipeline.ProcessingContext) bool {
	normalized := strings.ToLower(strings.TrimSpace(pctx.Message))
	normalized = strings.Trim(normalized, "!?.,:;")
	if len(normalized) > 40 {
		return false
	}
	for _, g := range greetings {
		if normalized == g || strings.HasPrefix(normalized, g+" ") || strings.HasPrefix(normalized, g+",") {
			return true
		}
	}
	return false
}

func (s *Stage) Process(ctx context.Context, pctx *pipeline.ProcessingContext) (*pipeline.ProcessingResult, error) {
	reply := s.generateReply(ctx, pctx.Message)

	result := pipeline.Stop(reply)
	result.Decision = "smalltalk reply"
	return result, nil
}

func (s *Stage) generateReply(ctx context.Context, message string) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := s.provider.Generate(ctx, s.buildPrompt(message),
		llm.WithTemperature(0.7),
		llm.WithMaxTokens(80),
	)
	if err != nil {
		s.logger.Printf("[SMALLTALK] Reply generation failed, using canned reply: %v", err)
		return fallbackReply
	}

	reply := strings.TrimSpace(completion.Message)
	if reply == "" {
		return fallbackReply
	}
	return reply
}

func (s *Stage) buildPrompt(message string) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are a warm, brief assistant for a Brazilian service desk.\n")
	prompt.WriteString("Answer the greeting in Brazilian Portuguese in ONE short sentence.\n")
	prompt.WriteString("Offer to help. Never ask for personal data.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<user_message>\n")
	prompt.WriteString(message)
	prompt.WriteString("\n</user_message>\n")

	return prompt.String()
}
