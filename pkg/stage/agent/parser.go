package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"ai-conversation-be/pkg/llm"
	"ai-conversation-be/pkg/session"
)

// extraction is the structured output of one parsing call.
type extraction struct {
	Fields       map[string]string `json:"fields"`
	Confirmation string            `json:"confirmation"` // yes | no | unclear
}

// parser turns a free-form user message into collected field values using a
// low-budget completion call.
type parser struct {
	provider llm.Provider
	logger   *log.Logger
	timeout  time.Duration
}

func newParser(provider llm.Provider, logger *log.Logger) *parser {
	return &parser{
		provider: provider,
		logger:   logger,
		timeout:  15 * time.Second,
	}
}

// extract pulls field values for the pending steps out of the message. On any
// parsing failure it degrades to assigning the raw message to the field the
// agent is currently waiting for, so a flow is never stuck on a malformed
// model reply.
func (p *parser) extract(ctx context.Context, def *Definition, sess *session.ConversationSession, message string) extraction {
	prompt := p.buildPrompt(def, sess, message)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	completion, err := p.provider.Generate(ctx, prompt,
		llm.WithTemperature(0.0),
		llm.WithMaxTokens(300),
	)
	if err != nil {
		p.logger.Printf("[AGENT] Extraction call failed: %v", err)
		return p.fallback(def, sess, message)
	}

	var out extraction
	if parsed := llm.DecodeJSON(completion.Message, &out); !parsed.OK {
		p.logger.Printf("[AGENT] Malformed extraction output, using fallback: %v", parsed.Err)
		return p.fallback(def, sess, message)
	}

	if out.Fields == nil {
		out.Fields = make(map[string]string)
	}
	out.Confirmation = strings.ToLower(strings.TrimSpace(out.Confirmation))
	switch out.Confirmation {
	case "yes", "no":
	default:
		out.Confirmation = "unclear"
	}

	// Discard values for fields the agent does not know about
	known := make(map[string]bool, len(def.Steps))
	for _, step := range def.Steps {
		known[step.Field] = true
	}
	for field := range out.Fields {
		if !known[field] || strings.TrimSpace(out.Fields[field]) == "" {
			delete(out.Fields, field)
		}
	}

	return out
}

// fallback assigns the raw message to the awaited field verbatim.
func (p *parser) fallback(def *Definition, sess *session.ConversationSession, message string) extraction {
	out := extraction{Fields: make(map[string]string), Confirmation: "unclear"}
	if sess.AwaitingInput != "" {
		out.Fields[sess.AwaitingInput] = strings.TrimSpace(message)
	} else if step := def.NextMissingStep(sess.CollectedData); step != nil {
		out.Fields[step.Field] = strings.TrimSpace(message)
	}
	return out
}

func (p *parser) buildPrompt(def *Definition, sess *session.ConversationSession, message string) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString(fmt.Sprintf("You extract structured data for the '%s' flow.\n", def.Name))
	prompt.WriteString("Extract ONLY values the user actually provided. Never invent values.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<fields>\n")
	for _, step := range def.Steps {
		if _, done := sess.CollectedData[step.Field]; done {
			continue
		}
		prompt.WriteString(fmt.Sprintf("%s (%s): %s\n", step.Field, step.Kind, step.Question))
		if len(step.Choices) > 0 {
			prompt.WriteString(fmt.Sprintf("  allowed: %s\n", strings.Join(step.Choices, ", ")))
		}
	}
	prompt.WriteString("</fields>\n\n")

	if sess.AwaitingInput != "" {
		prompt.WriteString(fmt.Sprintf("<awaiting>%s</awaiting>\n\n", sess.AwaitingInput))
	}

	if turns := sess.RecentTurns(4); len(turns) > 0 {
		prompt.WriteString("<recent_history>\n")
		for _, turn := range turns {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
		}
		prompt.WriteString("</recent_history>\n\n")
	}

	prompt.WriteString("<user_message>\n")
	prompt.WriteString(message)
	prompt.WriteString("\n</user_message>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"fields\": {\"field_name\": \"extracted value\"},\n")
	prompt.WriteString("  \"confirmation\": \"yes|no|unclear\"\n")
	prompt.WriteString("}\n")
	prompt.WriteString("Omit fields the user did not provide. confirmation reflects whether the\n")
	prompt.WriteString("user agreed to proceed, if they were asked to confirm.\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}
