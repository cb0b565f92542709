package contextswitch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"ai-conversation-be/pkg/llm"
	"ai-conversation-be/pkg/session"
)

// Classification of a new message against the active session's topic.
type Classification string

const (
	Continuation  Classification = "CONTINUATION"
	ContextSwitch Classification = "CONTEXT_SWITCH"
	Clarification Classification = "CLARIFICATION"
	Ambiguous     Classification = "AMBIGUOUS"
)

// DefaultThreshold is the confidence required before a CONTEXT_SWITCH verdict
// is allowed to discard in-progress state.
const DefaultThreshold = 0.75

// Analysis is the classifier output. Consumed once per invocation, never
// persisted.
type Analysis struct {
	Classification Classification `json:"classification"`
	Confidence     float64        `json:"confidence"`
	Rationale      string         `json:"rationale"`
}

// ShouldSwitch applies the caller decision rule: only a confident
// CONTEXT_SWITCH clears the active session. Everything else keeps routing to
// the active agent (safety bias toward continuity).
func (a *Analysis) ShouldSwitch(threshold float64) bool {
	return a.Classification == ContextSwitch && a.Confidence >= threshold
}

// Input describes the active session and the new message to classify.
type Input struct {
	AgentName        string
	AgentDescription string
	AwaitingInput    string // kind of input the agent expects next
	Message          string
	History          []session.Turn // at most the last 3 are used
}

// Detector classifies a new message with one low-budget completion call.
// It never fails: any classifier error degrades to a CONTINUATION default so
// callers never special-case detector failure.
type Detector struct {
	provider llm.Provider
	logger   *log.Logger
	timeout  time.Duration
}

func NewDetector(provider llm.Provider, logger *log.Logger) *Detector {
	return &Detector{
		provider: provider,
		logger:   logger,
		timeout:  10 * time.Second,
	}
}

// Analyze runs the classification call.
func (d *Detector) Analyze(ctx context.Context, in Input) *Analysis {
	prompt := d.buildPrompt(in)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	completion, err := d.provider.Generate(ctx, prompt,
		llm.WithTemperature(0.0),
		llm.WithMaxTokens(150),
	)
	if err != nil {
		d.logger.Printf("[DETECTOR] Classification call failed: %v", err)
		return fallbackAnalysis("classifier call failed")
	}

	var analysis Analysis
	if parsed := llm.DecodeJSON(completion.Message, &analysis); !parsed.OK {
		d.logger.Printf("[DETECTOR] Malformed classifier output, using fallback: %v", parsed.Err)
		return fallbackAnalysis("classifier output unreadable")
	}

	analysis.Classification = Classification(strings.ToUpper(string(analysis.Classification)))
	switch analysis.Classification {
	case Continuation, ContextSwitch, Clarification, Ambiguous:
	default:
		d.logger.Printf("[DETECTOR] Unknown classification %q, using fallback", analysis.Classification)
		return fallbackAnalysis("unknown classification")
	}

	if analysis.Confidence < 0 {
		analysis.Confidence = 0
	} else if analysis.Confidence > 1 {
		analysis.Confidence = 1
	}

	d.logger.Printf("[DETECTOR] %s (confidence: %.2f): %s",
		analysis.Classification, analysis.Confidence, analysis.Rationale)

	return &analysis
}

func fallbackAnalysis(reason string) *Analysis {
	return &Analysis{
		Classification: Continuation,
		Confidence:     0.5,
		Rationale:      "Fallback: " + reason + ", keeping active session",
	}
}

func (d *Detector) buildPrompt(in Input) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are a context-switch analyzer for a conversational assistant.\n")
	prompt.WriteString("Your ONLY job is to decide whether the new message continues the active flow or abandons it.\n")
	prompt.WriteString("You do NOT answer the message. You only classify it.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<active_flow>\n")
	prompt.WriteString(fmt.Sprintf("AGENT: %s\n", in.AgentName))
	if in.AgentDescription != "" {
		prompt.WriteString(fmt.Sprintf("PURPOSE: %s\n", in.AgentDescription))
	}
	if in.AwaitingInput != "" {
		prompt.WriteString(fmt.Sprintf("WAITING_FOR: %s\n", in.AwaitingInput))
	}
	prompt.WriteString("</active_flow>\n\n")

	history := in.History
	if len(history) > 3 {
		history = history[len(history)-3:]
	}
	if len(history) > 0 {
		prompt.WriteString("<recent_history>\n")
		for _, turn := range history {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
		}
		prompt.WriteString("</recent_history>\n\n")
	}

	prompt.WriteString("<new_message>\n")
	prompt.WriteString(in.Message)
	prompt.WriteString("\n</new_message>\n\n")

	prompt.WriteString("<classifications>\n")
	prompt.WriteString("CONTINUATION: Message answers or advances what the agent is waiting for\n")
	prompt.WriteString("  - Providing the requested value (a date, a document number, a name)\n")
	prompt.WriteString("  - Confirming or refusing the agent's question\n\n")
	prompt.WriteString("CONTEXT_SWITCH: Message abandons the flow for an unrelated topic\n")
	prompt.WriteString("  - Asking about a different subject while the agent waits for data\n")
	prompt.WriteString("  - Explicitly giving up ('esquece', 'deixa pra depois')\n\n")
	prompt.WriteString("CLARIFICATION: Message asks about the flow itself\n")
	prompt.WriteString("  - 'why do you need that?', 'what format?'\n\n")
	prompt.WriteString("AMBIGUOUS: Cannot tell with confidence\n")
	prompt.WriteString("</classifications>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"classification\": \"CONTINUATION|CONTEXT_SWITCH|CLARIFICATION|AMBIGUOUS\",\n")
	prompt.WriteString("  \"confidence\": 0.95,\n")
	prompt.WriteString("  \"rationale\": \"Brief explanation\"\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}
