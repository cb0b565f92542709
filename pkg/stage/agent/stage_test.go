package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"ai-conversation-be/pkg/contextswitch"
	"ai-conversation-be/pkg/llm"
	"ai-conversation-be/pkg/pipeline"
	"ai-conversation-be/pkg/session"
)

// routedProvider answers the detector and extraction prompts separately so a
// test can script each concern.
type routedProvider struct {
	detect  string
	extract func(prompt string) string
	err     error
}

func (p *routedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (*llm.Completion, error) {
	last := ""
	if len(history) > 0 {
		last = history[len(history)-1].Content
	}
	return p.Generate(ctx, last, opts...)
}

func (p *routedProvider) Generate(_ context.Context, prompt string, _ ...llm.Option) (*llm.Completion, error) {
	if p.err != nil {
		return nil, p.err
	}
	if strings.Contains(prompt, "context-switch analyzer") {
		response := p.detect
		if response == "" {
			response = `{"classification": "CONTINUATION", "confidence": 0.9, "rationale": "advances the flow"}`
		}
		return &llm.Completion{Message: response}, nil
	}
	if strings.Contains(prompt, "You extract structured data") && p.extract != nil {
		return &llm.Completion{Message: p.extract(prompt)}, nil
	}
	return &llm.Completion{Message: `{"fields": {}, "confirmation": "unclear"}`}, nil
}

// extractFromUserMessage scripts the extraction call on the raw user message
// embedded in the prompt.
func extractFromUserMessage(script map[string]string) func(string) string {
	return func(prompt string) string {
		start := strings.Index(prompt, "<user_message>\n")
		if start == -1 {
			return `{"fields": {}, "confirmation": "unclear"}`
		}
		rest := prompt[start+len("<user_message>\n"):]
		end := strings.Index(rest, "\n</user_message>")
		if end >= 0 {
			rest = rest[:end]
		}
		if response, ok := script[rest]; ok {
			return response
		}
		return `{"fields": {}, "confirmation": "unclear"}`
	}
}

func newTestStage(provider llm.Provider) (*Stage, session.Store) {
	return newTestStageWithAgents(provider, schedulingAgent())
}

func newTestStageWithAgents(provider llm.Provider, agents ...*Definition) (*Stage, session.Store) {
	logger := log.New(io.Discard, "", 0)
	store := session.NewMemoryStore(time.Hour)
	detector := contextswitch.NewDetector(provider, logger)
	stage := NewStage(NewRegistry(agents...), store, detector, provider, 0.75, logger)
	return stage, store
}

func process(t *testing.T, stage *Stage, message string) *pipeline.ProcessingResult {
	t.Helper()
	result, err := stage.Process(context.Background(), pipeline.NewProcessingContext("c1", "t1", message))
	if err != nil {
		t.Fatalf("Process(%q) failed: %v", message, err)
	}
	return result
}

func TestCanHandle(t *testing.T) {
	provider := &routedProvider{}
	stage, store := newTestStage(provider)
	ctx := context.Background()

	if stage.CanHandle(ctx, pipeline.NewProcessingContext("c1", "t1", "bom dia")) {
		t.Errorf("no session and no keyword must not claim the message")
	}
	if !stage.CanHandle(ctx, pipeline.NewProcessingContext("c1", "t1", "quero agendar")) {
		t.Errorf("activation keyword must claim the message")
	}

	if err := store.Save(ctx, session.New("c2", "t1", "agendar_consulta")); err != nil {
		t.Fatal(err)
	}
	if !stage.CanHandle(ctx, pipeline.NewProcessingContext("c2", "t1", "qualquer coisa")) {
		t.Errorf("an active session must claim every message")
	}
}

func TestFullFlowWithConfirmation(t *testing.T) {
	provider := &routedProvider{extract: extractFromUserMessage(map[string]string{
		"Maria da Silva": `{"fields": {"nome": "Maria da Silva"}, "confirmation": "unclear"}`,
		"123.456.789-00": `{"fields": {"cpf": "123.456.789-00"}, "confirmation": "unclear"}`,
		"sim":            `{"fields": {}, "confirmation": "yes"}`,
	})}
	stage, store := newTestStage(provider)
	ctx := context.Background()

	// Activation asks the first question
	result := process(t, stage, "quero agendar uma consulta")
	if result.ShouldContinue {
		t.Fatal("agent must own the turn")
	}
	if *result.Content != "Qual o seu nome completo?" {
		t.Fatalf("expected first question, got %q", *result.Content)
	}
	if result.Metadata[pipeline.MetaOwningAgent] != "agendar_consulta" {
		t.Errorf("owning agent metadata missing")
	}

	sess, _ := store.Get(ctx, "c1")
	if sess == nil || sess.State != session.StateCollectingInfo || sess.AwaitingInput != "nome" {
		t.Fatalf("session not awaiting nome: %+v", sess)
	}

	// Each answer advances one step
	result = process(t, stage, "Maria da Silva")
	if *result.Content != "Qual o seu CPF?" {
		t.Fatalf("expected CPF question, got %q", *result.Content)
	}

	result = process(t, stage, "123.456.789-00")
	if !strings.Contains(*result.Content, "Confirma os dados abaixo?") {
		t.Fatalf("expected confirmation summary, got %q", *result.Content)
	}
	if !strings.Contains(*result.Content, "Maria da Silva") {
		t.Errorf("summary must list collected values")
	}
	sess, _ = store.Get(ctx, "c1")
	if sess.State != session.StateWaitingConfirmation {
		t.Fatalf("expected WAITING_CONFIRMATION, got %s", sess.State)
	}

	// Confirmation completes the flow and clears the session
	result = process(t, stage, "sim")
	if *result.Content != "Perfeito, Maria da Silva! Registrei o CPF 123.456.789-00." {
		t.Fatalf("completion message wrong: %q", *result.Content)
	}
	if result.Metadata[MetaState] != string(session.StateCompleted) {
		t.Errorf("expected COMPLETED state metadata, got %v", result.Metadata[MetaState])
	}
	if sess, _ = store.Get(ctx, "c1"); sess != nil {
		t.Errorf("completed session must be cleared")
	}
}

func TestConfirmationNoRestartsCollection(t *testing.T) {
	provider := &routedProvider{extract: extractFromUserMessage(map[string]string{
		"não": `{"fields": {}, "confirmation": "no"}`,
	})}
	stage, store := newTestStage(provider)
	ctx := context.Background()

	sess := session.New("c1", "t1", "agendar_consulta")
	sess.State = session.StateWaitingConfirmation
	sess.AwaitingInput = "confirmation"
	sess.CollectedData = map[string]string{"nome": "Maria", "cpf": "123"}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	result := process(t, stage, "não")
	if !strings.Contains(*result.Content, "vamos recomeçar") {
		t.Fatalf("refusal must restart the flow, got %q", *result.Content)
	}
	if !strings.Contains(*result.Content, "Qual o seu nome completo?") {
		t.Errorf("restart must re-ask the first question")
	}

	sess, _ = store.Get(ctx, "c1")
	if len(sess.CollectedData) != 0 {
		t.Errorf("collected data must be discarded on refusal: %+v", sess.CollectedData)
	}
	if sess.AwaitingInput != "nome" {
		t.Errorf("expected awaiting nome, got %s", sess.AwaitingInput)
	}
}

func TestUnclearConfirmationReasks(t *testing.T) {
	provider := &routedProvider{}
	stage, store := newTestStage(provider)
	ctx := context.Background()

	sess := session.New("c1", "t1", "agendar_consulta")
	sess.State = session.StateWaitingConfirmation
	sess.AwaitingInput = "confirmation"
	sess.CollectedData = map[string]string{"nome": "Maria", "cpf": "123"}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	result := process(t, stage, "talvez")
	if !strings.Contains(*result.Content, "não entendi") {
		t.Fatalf("unclear answers must re-ask, got %q", *result.Content)
	}
	sess, _ = store.Get(ctx, "c1")
	if sess.State != session.StateWaitingConfirmation {
		t.Errorf("state must stay WAITING_CONFIRMATION, got %s", sess.State)
	}
}

func TestHandoffKeywordEscalates(t *testing.T) {
	provider := &routedProvider{}
	stage, store := newTestStage(provider)
	ctx := context.Background()

	sess := session.New("c1", "t1", "agendar_consulta")
	sess.State = session.StateCollectingInfo
	sess.AwaitingInput = "cpf"
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	result := process(t, stage, "quero falar com humano")
	if result.ShouldContinue {
		t.Fatal("handoff must stop the pipeline")
	}
	if requested, _ := result.Metadata[MetaHandoffRequested].(bool); !requested {
		t.Errorf("handoff metadata missing")
	}
	if result.Metadata[MetaState] != string(session.StateHandoffRequested) {
		t.Errorf("expected HANDOFF_REQUESTED state metadata")
	}
	if sess, _ = store.Get(ctx, "c1"); sess != nil {
		t.Errorf("session must be cleared after handoff")
	}
}

func TestContextSwitchReleasesFlow(t *testing.T) {
	provider := &routedProvider{
		detect: `{"classification": "CONTEXT_SWITCH", "confidence": 0.9, "rationale": "unrelated question"}`,
	}
	stage, store := newTestStage(provider)
	ctx := context.Background()

	sess := session.New("c1", "t1", "agendar_consulta")
	sess.State = session.StateCollectingInfo
	sess.AwaitingInput = "cpf"
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	result := process(t, stage, "quero saber sobre convênios")
	if !result.ShouldContinue {
		t.Fatal("a confident switch must release the message to later stages")
	}
	if released, _ := result.Metadata[MetaContextSwitch].(bool); !released {
		t.Errorf("context switch metadata missing")
	}
	if sess, _ = store.Get(ctx, "c1"); sess != nil {
		t.Errorf("session must be cleared on context switch")
	}
}

func TestContextSwitchStartsMatchingFlow(t *testing.T) {
	provider := &routedProvider{
		detect: `{"classification": "CONTEXT_SWITCH", "confidence": 0.95, "rationale": "asks for a boleto instead"}`,
	}
	billing := &Definition{
		Id:             "segunda_via_boleto",
		Name:           "Segunda via de boleto",
		IntentKeywords: []string{"segunda via", "boleto"},
		Steps: []Step{
			{Field: "cpf", Question: "Qual o seu CPF?", Kind: FieldDocument},
		},
	}
	stage, store := newTestStageWithAgents(provider, schedulingAgent(), billing)
	ctx := context.Background()

	sess := session.New("c1", "t1", "agendar_consulta")
	sess.State = session.StateCollectingInfo
	sess.AwaitingInput = "nome"
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	// The switching message activates another agent: the same turn must land
	// in the new flow instead of passing through to later stages.
	result := process(t, stage, "preciso da segunda via do boleto")
	if result.ShouldContinue {
		t.Fatal("a switch into another agent's intent must start that flow")
	}
	if *result.Content != "Qual o seu CPF?" {
		t.Fatalf("new flow must ask its first question, got %q", *result.Content)
	}
	if result.Metadata[pipeline.MetaOwningAgent] != "segunda_via_boleto" {
		t.Errorf("owning agent must be the new flow, got %v", result.Metadata[pipeline.MetaOwningAgent])
	}
	if released, _ := result.Metadata[MetaContextSwitch].(bool); !released {
		t.Errorf("context switch metadata missing")
	}

	sess, _ = store.Get(ctx, "c1")
	if sess == nil || sess.AgentId != "segunda_via_boleto" || sess.AwaitingInput != "cpf" {
		t.Fatalf("session must now belong to the new agent: %+v", sess)
	}
}

func TestLowConfidenceSwitchKeepsFlow(t *testing.T) {
	provider := &routedProvider{
		detect: `{"classification": "CONTEXT_SWITCH", "confidence": 0.5, "rationale": "maybe"}`,
		extract: extractFromUserMessage(map[string]string{
			"quero saber sobre convênios": `{"fields": {"cpf": "quero saber sobre convênios"}, "confirmation": "unclear"}`,
		}),
	}
	stage, store := newTestStage(provider)
	ctx := context.Background()

	sess := session.New("c1", "t1", "agendar_consulta")
	sess.State = session.StateCollectingInfo
	sess.AwaitingInput = "cpf"
	sess.CollectedData = map[string]string{"nome": "Maria"}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	result := process(t, stage, "quero saber sobre convênios")
	if result.ShouldContinue {
		t.Fatal("a low-confidence switch must keep routing to the agent")
	}
	if sess, _ = store.Get(ctx, "c1"); sess == nil {
		t.Errorf("session must survive a low-confidence switch")
	}
}

func TestTurnLimitEscalates(t *testing.T) {
	provider := &routedProvider{}
	def := schedulingAgent()
	def.MaxTurns = 3
	stage, store := newTestStageWithAgents(provider, def)
	ctx := context.Background()

	sess := session.New("c1", "t1", "agendar_consulta")
	sess.State = session.StateCollectingInfo
	sess.AwaitingInput = "nome"
	for i := 0; i < def.MaxTurns; i++ {
		sess.AppendTurn("user", fmt.Sprintf("tentativa %d", i))
		sess.AppendTurn("model", "Qual o seu nome completo?")
	}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	result := process(t, stage, "ainda não sei")
	if result.ShouldContinue {
		t.Fatal("exceeding the turn limit must stop with a handoff")
	}
	if requested, _ := result.Metadata[MetaHandoffRequested].(bool); !requested {
		t.Errorf("handoff metadata missing")
	}
	if result.Metadata[MetaHandoffReason] != "flow exceeded turn limit" {
		t.Errorf("unexpected reason: %v", result.Metadata[MetaHandoffReason])
	}
}

func TestTurnLimitAboveHistoryCapStillFires(t *testing.T) {
	provider := &routedProvider{extract: extractFromUserMessage(map[string]string{})}
	def := schedulingAgent()
	def.MaxTurns = session.MaxHistoryTurns/2 + 5
	stage, store := newTestStageWithAgents(provider, def)
	ctx := context.Background()

	sess := session.New("c1", "t1", "agendar_consulta")
	sess.State = session.StateCollectingInfo
	sess.AwaitingInput = "nome"
	// More exchanges than the trimmed history can hold
	for i := 0; i < def.MaxTurns; i++ {
		sess.AppendTurn("user", fmt.Sprintf("tentativa %d", i))
		sess.AppendTurn("model", "Qual o seu nome completo?")
	}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	result := process(t, stage, "ainda não sei")
	if result.ShouldContinue {
		t.Fatal("limits beyond the history window must still escalate")
	}
	if requested, _ := result.Metadata[MetaHandoffRequested].(bool); !requested {
		t.Errorf("handoff metadata missing")
	}
}

func TestExtractionFailureFallsBackToRawMessage(t *testing.T) {
	// Provider fails entirely: the detector degrades to CONTINUATION and the
	// parser assigns the raw message to the awaited field.
	provider := &routedProvider{err: errors.New("model server down")}
	stage, store := newTestStage(provider)
	ctx := context.Background()

	sess := session.New("c1", "t1", "agendar_consulta")
	sess.State = session.StateCollectingInfo
	sess.AwaitingInput = "nome"
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	result := process(t, stage, "Maria da Silva")
	if *result.Content != "Qual o seu CPF?" {
		t.Fatalf("flow must advance on fallback, got %q", *result.Content)
	}

	sess, _ = store.Get(ctx, "c1")
	if sess.CollectedData["nome"] != "Maria da Silva" {
		t.Errorf("raw message must be assigned to the awaited field: %+v", sess.CollectedData)
	}
}

func TestUnknownAgentClearsSession(t *testing.T) {
	provider := &routedProvider{}
	stage, store := newTestStage(provider)
	ctx := context.Background()

	if err := store.Save(ctx, session.New("c1", "t1", "agente_removido")); err != nil {
		t.Fatal(err)
	}

	result := process(t, stage, "olá")
	if !result.ShouldContinue {
		t.Fatal("an orphaned session must not block later stages")
	}
	if sess, _ := store.Get(ctx, "c1"); sess != nil {
		t.Errorf("orphaned session must be cleared")
	}
}
