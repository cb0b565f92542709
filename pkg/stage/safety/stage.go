package safety

import (
	"context"
	"log"
	"strings"
	"time"

	"ai-conversation-be/pkg/llm"
	"ai-conversation-be/pkg/pipeline"
)

// RefusalMessage is the fixed answer for blocked content.
const RefusalMessage = "Desculpe, não posso ajudar com esse assunto. Posso ajudar com outra coisa?"

// defaultBlocklist catches content deterministically before any model call.
var defaultBlocklist = []string{
	"como fabricar arma",
	"como fazer bomba",
	"comprar drogas",
	"hackear conta",
	"roubar senha",
	"falsificar documento",
}

// verdict is the moderation call's structured output.
type verdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason"`
}

// Stage is the content filter at the top of the pipeline. It inspects every
// message: a violation stops the pipeline with a fixed refusal, a clean
// message continues with `safety.checked` metadata. Moderation failures fail
// open so the filter never blocks legitimate traffic by accident.
type Stage struct {
	provider  llm.Provider
	blocklist []string
	logger    *log.Logger
	timeout   time.Duration
}

var _ pipeline.Stage = &Stage{}

func NewStage(provider llm.Provider, extraTerms []string, logger *log.Logger) *Stage {
	blocklist := make([]string, 0, len(defaultBlocklist)+len(extraTerms))
	blocklist = append(blocklist, defaultBlocklist...)
	for _, term := range extraTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			blocklist = append(blocklist, term)
		}
	}
	return &Stage{
		provider:  provider,
		blocklist: blocklist,
		logger:    logger,
		timeout:   10 * time.Second,
	}
}

func (s *Stage) Name() string  { return "safety_filter" }
func (s *Stage) Priority() int { return 100 }

func (s *Stage) CanHandle(_ context.Context, _ *pipeline.ProcessingContext) bool {
	return true
}

func (s *Stage) Process(ctx context.Context, pctx *pipeline.ProcessingContext) (*pipeline.ProcessingResult, error) {
	if term := s.matchesBlocklist(pctx.Message); term != "" {
		s.logger.Printf("[SAFETY] Blocked message on %s (term: %s)", pctx.ConversationId, term)
		return s.refuse("blocked term: " + term), nil
	}

	if verdict := s.moderate(ctx, pctx.Message); verdict != nil && !verdict.Safe {
		s.logger.Printf("[SAFETY] Blocked message on %s (moderation: %s)", pctx.ConversationId, verdict.Reason)
		return s.refuse("moderation: " + verdict.Reason), nil
	}

	result := pipeline.Continue(map[string]interface{}{
		"safety.checked": true,
	})
	result.Decision = "message clean"
	return result, nil
}

func (s *Stage) refuse(decision string) *pipeline.ProcessingResult {
	result := pipeline.Stop(RefusalMessage)
	result.Metadata = map[string]interface{}{
		"safety.blocked": true,
	}
	result.Decision = decision
	return result
}

func (s *Stage) matchesBlocklist(message string) string {
	lower := strings.ToLower(message)
	for _, term := range s.blocklist {
		if strings.Contains(lower, term) {
			return term
		}
	}
	return ""
}

// moderate asks the model for a safe/unsafe verdict. Returns nil when the
// call or its output is unusable; the caller treats that as clean.
func (s *Stage) moderate(ctx context.Context, message string) *verdict {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := s.provider.Generate(ctx, s.buildPrompt(message),
		llm.WithTemperature(0.0),
		llm.WithMaxTokens(100),
	)
	if err != nil {
		s.logger.Printf("[SAFETY] Moderation call failed, failing open: %v", err)
		return nil
	}

	var v verdict
	if parsed := llm.DecodeJSON(completion.Message, &v); !parsed.OK {
		s.logger.Printf("[SAFETY] Malformed moderation output, failing open: %v", parsed.Err)
		return nil
	}
	return &v
}

func (s *Stage) buildPrompt(message string) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are a content moderator for a customer service assistant.\n")
	prompt.WriteString("Flag requests for illegal activity, violence, self-harm or fraud.\n")
	prompt.WriteString("Ordinary questions, complaints and personal data are SAFE.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<user_message>\n")
	prompt.WriteString(message)
	prompt.WriteString("\n</user_message>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\"safe\": true, \"reason\": \"brief explanation\"}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}
