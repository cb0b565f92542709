package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ai-conversation-be/pkg/contextswitch"
	"ai-conversation-be/pkg/llm"
	"ai-conversation-be/pkg/pipeline"
	"ai-conversation-be/pkg/session"
)

// Metadata keys the stage publishes for the service layer.
const (
	MetaHandoffRequested = "agent.handoff_requested"
	MetaHandoffReason    = "agent.handoff_reason"
	MetaContextSwitch    = "agent.context_switch"
	MetaState            = "agent.state"
)

// Stage runs goal-directed multi-turn flows. It owns the conversation while a
// session is active: every message routes here first until the flow reaches a
// terminal state or the context-switch detector releases it.
type Stage struct {
	registry  *Registry
	sessions  session.Store
	detector  *contextswitch.Detector
	parser    *parser
	threshold float64
	logger    *log.Logger
}

var _ pipeline.Stage = &Stage{}

func NewStage(registry *Registry, sessions session.Store, detector *contextswitch.Detector, provider llm.Provider, threshold float64, logger *log.Logger) *Stage {
	if threshold <= 0 {
		threshold = contextswitch.DefaultThreshold
	}
	return &Stage{
		registry:  registry,
		sessions:  sessions,
		detector:  detector,
		parser:    newParser(provider, logger),
		threshold: threshold,
		logger:    logger,
	}
}

func (s *Stage) Name() string  { return "stateful_agent" }
func (s *Stage) Priority() int { return 60 }

// CanHandle is true when a session is already active for the conversation, or
// when the message activates one of the registered agents.
func (s *Stage) CanHandle(ctx context.Context, pctx *pipeline.ProcessingContext) bool {
	sess, err := s.sessions.Get(ctx, pctx.ConversationId)
	if err != nil {
		s.logger.Printf("[AGENT] Session lookup failed for %s: %v", pctx.ConversationId, err)
		return false
	}
	if sess != nil {
		return true
	}
	_, ok := s.registry.Match(pctx.Message)
	return ok
}

func (s *Stage) Process(ctx context.Context, pctx *pipeline.ProcessingContext) (*pipeline.ProcessingResult, error) {
	sess, err := s.sessions.Get(ctx, pctx.ConversationId)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if sess == nil {
		return s.startFlow(ctx, pctx)
	}
	return s.continueFlow(ctx, pctx, sess)
}

// startFlow activates the matching agent and asks its first question.
func (s *Stage) startFlow(ctx context.Context, pctx *pipeline.ProcessingContext) (*pipeline.ProcessingResult, error) {
	def, ok := s.registry.Match(pctx.Message)
	if !ok {
		// Session vanished between CanHandle and Process; let later stages run
		return pipeline.Continue(nil), nil
	}

	sess := session.New(pctx.ConversationId, pctx.TenantId, def.Id)
	sess.AppendTurn("user", pctx.Message)

	// The activation message may already carry field values
	extracted := s.parser.extract(ctx, def, sess, pctx.Message)
	for field, value := range extracted.Fields {
		sess.CollectedData[field] = value
	}

	return s.advance(ctx, pctx, def, sess)
}

// continueFlow routes a message into the active session, consulting the
// context-switch detector first.
func (s *Stage) continueFlow(ctx context.Context, pctx *pipeline.ProcessingContext, sess *session.ConversationSession) (*pipeline.ProcessingResult, error) {
	def, ok := s.registry.Get(sess.AgentId)
	if !ok {
		s.logger.Printf("[AGENT] Session %s owned by unknown agent %s, clearing", sess.ConversationId, sess.AgentId)
		if err := s.sessions.Clear(ctx, sess.ConversationId); err != nil {
			s.logger.Printf("[AGENT] Failed to clear session %s: %v", sess.ConversationId, err)
		}
		return pipeline.Continue(nil), nil
	}

	if def.MatchesHandoff(pctx.Message) {
		return s.handoff(ctx, pctx, def, sess, "user asked for a human")
	}

	analysis := s.detector.Analyze(ctx, contextswitch.Input{
		AgentName:        def.Name,
		AgentDescription: def.Description,
		AwaitingInput:    sess.AwaitingInput,
		Message:          pctx.Message,
		History:          sess.RecentTurns(3),
	})
	if analysis.ShouldSwitch(s.threshold) {
		s.logger.Printf("[AGENT] Context switch (%.2f) on %s, releasing flow: %s",
			analysis.Confidence, sess.ConversationId, analysis.Rationale)
		if err := s.sessions.Clear(ctx, sess.ConversationId); err != nil {
			s.logger.Printf("[AGENT] Failed to clear session %s: %v", sess.ConversationId, err)
		}
		// The new topic may belong to another registered agent; hand the
		// same message straight to it instead of waiting for the next turn.
		if _, ok := s.registry.Match(pctx.Message); ok {
			result, err := s.startFlow(ctx, pctx)
			if err != nil {
				return nil, err
			}
			if result.Metadata == nil {
				result.Metadata = make(map[string]interface{})
			}
			result.Metadata[MetaContextSwitch] = true
			return result, nil
		}
		return &pipeline.ProcessingResult{
			ShouldContinue: true,
			Metadata: map[string]interface{}{
				MetaContextSwitch: true,
			},
			Decision: "context switch: " + analysis.Rationale,
		}, nil
	}

	if sess.TurnCount() >= def.TurnLimit() {
		return s.handoff(ctx, pctx, def, sess, "flow exceeded turn limit")
	}

	sess.AppendTurn("user", pctx.Message)

	if sess.State == session.StateWaitingConfirmation {
		return s.resolveConfirmation(ctx, pctx, def, sess)
	}

	extracted := s.parser.extract(ctx, def, sess, pctx.Message)
	for field, value := range extracted.Fields {
		sess.CollectedData[field] = value
	}

	return s.advance(ctx, pctx, def, sess)
}

// advance moves the flow to the next missing step or wraps it up.
func (s *Stage) advance(ctx context.Context, pctx *pipeline.ProcessingContext, def *Definition, sess *session.ConversationSession) (*pipeline.ProcessingResult, error) {
	if step := def.NextMissingStep(sess.CollectedData); step != nil {
		sess.State = session.StateCollectingInfo
		sess.AwaitingInput = step.Field
		return s.reply(ctx, pctx, def, sess, step.Question)
	}

	if def.RequiresConfirmation {
		sess.State = session.StateWaitingConfirmation
		sess.AwaitingInput = "confirmation"
		return s.reply(ctx, pctx, def, sess, s.confirmationSummary(def, sess))
	}

	return s.complete(ctx, pctx, def, sess)
}

// resolveConfirmation handles the yes/no turn before completion.
func (s *Stage) resolveConfirmation(ctx context.Context, pctx *pipeline.ProcessingContext, def *Definition, sess *session.ConversationSession) (*pipeline.ProcessingResult, error) {
	extracted := s.parser.extract(ctx, def, sess, pctx.Message)

	switch extracted.Confirmation {
	case "yes":
		return s.complete(ctx, pctx, def, sess)
	case "no":
		sess.State = session.StateCollectingInfo
		sess.CollectedData = make(map[string]string)
		sess.AwaitingInput = ""
		if step := def.NextMissingStep(sess.CollectedData); step != nil {
			sess.AwaitingInput = step.Field
			return s.reply(ctx, pctx, def, sess,
				"Sem problemas, vamos recomeçar. "+step.Question)
		}
		return s.complete(ctx, pctx, def, sess)
	default:
		return s.reply(ctx, pctx, def, sess,
			"Desculpe, não entendi. "+s.confirmationSummary(def, sess))
	}
}

// complete finishes the flow, clears the session and emits the final answer.
func (s *Stage) complete(ctx context.Context, pctx *pipeline.ProcessingContext, def *Definition, sess *session.ConversationSession) (*pipeline.ProcessingResult, error) {
	sess.State = session.StateProcessing
	answer := def.RenderCompletion(sess.CollectedData)
	sess.State = session.StateCompleted

	if err := s.sessions.Clear(ctx, sess.ConversationId); err != nil {
		s.logger.Printf("[AGENT] Failed to clear completed session %s: %v", sess.ConversationId, err)
	}

	result := pipeline.Stop(answer)
	result.Metadata = map[string]interface{}{
		pipeline.MetaOwningAgent: def.Id,
		MetaState:                string(session.StateCompleted),
	}
	result.Decision = "flow completed"
	return result, nil
}

// handoff escalates to a human and terminates the session.
func (s *Stage) handoff(ctx context.Context, pctx *pipeline.ProcessingContext, def *Definition, sess *session.ConversationSession, reason string) (*pipeline.ProcessingResult, error) {
	s.logger.Printf("[AGENT] Handoff on %s: %s", sess.ConversationId, reason)
	sess.State = session.StateHandoffRequested

	if err := s.sessions.Clear(ctx, sess.ConversationId); err != nil {
		s.logger.Printf("[AGENT] Failed to clear session %s after handoff: %v", sess.ConversationId, err)
	}

	message := def.HandoffMessage
	if message == "" {
		message = "Vou transferir você para um de nossos atendentes. Um momento, por favor."
	}

	result := pipeline.Stop(message)
	result.Metadata = map[string]interface{}{
		pipeline.MetaOwningAgent: def.Id,
		MetaState:                string(session.StateHandoffRequested),
		MetaHandoffRequested:     true,
		MetaHandoffReason:        reason,
	}
	result.Decision = "handoff: " + reason
	return result, nil
}

// reply saves the session and stops the pipeline with the agent's question.
func (s *Stage) reply(ctx context.Context, pctx *pipeline.ProcessingContext, def *Definition, sess *session.ConversationSession, content string) (*pipeline.ProcessingResult, error) {
	sess.AppendTurn("model", content)
	sess.Touch()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	result := pipeline.Stop(content)
	result.Metadata = map[string]interface{}{
		pipeline.MetaOwningAgent: def.Id,
		MetaState:                string(sess.State),
	}
	result.Decision = "awaiting " + sess.AwaitingInput
	return result, nil
}

// confirmationSummary renders the collected values for the user to approve.
func (s *Stage) confirmationSummary(def *Definition, sess *session.ConversationSession) string {
	var b strings.Builder
	b.WriteString("Confirma os dados abaixo?\n")
	for _, step := range def.Steps {
		if value, ok := sess.CollectedData[step.Field]; ok {
			b.WriteString(fmt.Sprintf("- %s: %s\n", step.Question, value))
		}
	}
	b.WriteString("Responda sim para confirmar ou não para corrigir.")
	return b.String()
}
