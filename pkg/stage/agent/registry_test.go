package agent

import (
	"testing"
)

func schedulingAgent() *Definition {
	return &Definition{
		Id:             "agendar_consulta",
		Name:           "Agendamento de consulta",
		IntentKeywords: []string{"agendar", "marcar consulta"},
		Steps: []Step{
			{Field: "nome", Question: "Qual o seu nome completo?", Kind: FieldText},
			{Field: "cpf", Question: "Qual o seu CPF?", Kind: FieldDocument},
		},
		RequiresConfirmation: true,
		HandoffKeywords:      []string{"atendente", "falar com humano"},
		CompletionMessage:    "Perfeito, {nome}! Registrei o CPF {cpf}.",
	}
}

func TestMatchesIntentIsCaseInsensitive(t *testing.T) {
	def := schedulingAgent()

	tests := []struct {
		message string
		want    bool
	}{
		{"Quero AGENDAR uma consulta", true},
		{"preciso marcar consulta amanhã", true},
		{"quanto custa a consulta?", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := def.MatchesIntent(tt.message); got != tt.want {
			t.Errorf("MatchesIntent(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestMatchesHandoff(t *testing.T) {
	def := schedulingAgent()

	if !def.MatchesHandoff("quero falar com HUMANO agora") {
		t.Errorf("handoff keywords must match case-insensitively")
	}
	if def.MatchesHandoff("meu nome é Maria") {
		t.Errorf("ordinary answers must not trigger handoff")
	}
}

func TestNextMissingStepFollowsDeclaredOrder(t *testing.T) {
	def := schedulingAgent()

	step := def.NextMissingStep(map[string]string{})
	if step == nil || step.Field != "nome" {
		t.Fatalf("first missing step must be nome, got %v", step)
	}

	step = def.NextMissingStep(map[string]string{"nome": "Maria"})
	if step == nil || step.Field != "cpf" {
		t.Fatalf("next missing step must be cpf, got %v", step)
	}

	if step = def.NextMissingStep(map[string]string{"nome": "Maria", "cpf": "123"}); step != nil {
		t.Errorf("complete data must yield nil, got %v", step)
	}
}

func TestRenderCompletion(t *testing.T) {
	def := schedulingAgent()

	got := def.RenderCompletion(map[string]string{"nome": "Maria", "cpf": "123.456.789-00"})
	want := "Perfeito, Maria! Registrei o CPF 123.456.789-00."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Unfilled placeholders stay verbatim rather than rendering empty
	got = def.RenderCompletion(map[string]string{"nome": "Maria"})
	if got != "Perfeito, Maria! Registrei o CPF {cpf}." {
		t.Errorf("got %q", got)
	}
}

func TestTurnLimit(t *testing.T) {
	def := schedulingAgent()

	if got := def.TurnLimit(); got != DefaultMaxTurns {
		t.Errorf("unset limit must fall back to default, got %d", got)
	}

	def.MaxTurns = 25
	if got := def.TurnLimit(); got != 25 {
		t.Errorf("declared limit must win, got %d", got)
	}
}

func TestRegistryMatchReturnsFirstHit(t *testing.T) {
	first := schedulingAgent()
	second := &Definition{Id: "boleto", IntentKeywords: []string{"boleto", "agendar"}}
	r := NewRegistry(first, second)

	def, ok := r.Match("quero agendar")
	if !ok || def.Id != "agendar_consulta" {
		t.Errorf("registration order decides ties, got %v", def)
	}

	def, ok = r.Match("segunda via do boleto")
	if !ok || def.Id != "boleto" {
		t.Errorf("expected boleto agent, got %v", def)
	}

	if _, ok := r.Match("bom dia"); ok {
		t.Errorf("no keyword must mean no match")
	}
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(schedulingAgent())

	if _, ok := r.Get("agendar_consulta"); !ok {
		t.Errorf("registered agent must be retrievable by id")
	}
	if _, ok := r.Get("missing"); ok {
		t.Errorf("unknown id must report absence")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}
