package bootstrap

import (
	agentstage "ai-conversation-be/pkg/stage/agent"
)

// defaultHandoffKeywords escalate any active flow to a human.
var defaultHandoffKeywords = []string{
	"atendente", "falar com humano", "falar com alguém", "quero uma pessoa",
}

// defaultAgentRegistry declares the built-in goal-directed flows. Tenant-side
// flow definitions are out of scope; these cover the service desk defaults.
func defaultAgentRegistry() *agentstage.Registry {
	scheduling := &agentstage.Definition{
		Id:          "agendar_consulta",
		Name:        "Agendamento de consulta",
		Description: "Coleta os dados do paciente e agenda uma consulta",
		IntentKeywords: []string{
			"agendar", "marcar consulta", "marcar uma consulta", "quero uma consulta",
		},
		Steps: []agentstage.Step{
			{Field: "nome", Question: "Qual o seu nome completo?", Kind: agentstage.FieldText},
			{Field: "cpf", Question: "Qual o seu CPF?", Kind: agentstage.FieldDocument},
			{Field: "data_nascimento", Question: "Qual a sua data de nascimento? (ex: 15/03/1990)", Kind: agentstage.FieldDate},
			{Field: "especialidade", Question: "Para qual especialidade?", Kind: agentstage.FieldChoice,
				Choices: []string{"clínico geral", "cardiologia", "dermatologia", "ortopedia"}},
		},
		RequiresConfirmation: true,
		HandoffKeywords:      defaultHandoffKeywords,
		CompletionMessage: "Perfeito, {nome}! Sua consulta de {especialidade} foi registrada. " +
			"Você receberá a confirmação com data e horário em breve.",
		HandoffMessage: "Vou transferir seu agendamento para um de nossos atendentes. Um momento, por favor.",
		// Four collected fields plus confirmation need more room than the default
		MaxTurns: 12,
	}

	secondCopy := &agentstage.Definition{
		Id:          "segunda_via_boleto",
		Name:        "Segunda via de boleto",
		Description: "Emite a segunda via de um boleto em aberto",
		IntentKeywords: []string{
			"segunda via", "2a via", "boleto", "reemitir fatura",
		},
		Steps: []agentstage.Step{
			{Field: "cpf", Question: "Qual o CPF do titular?", Kind: agentstage.FieldDocument},
			{Field: "mes_referencia", Question: "Qual o mês de referência do boleto?", Kind: agentstage.FieldText},
		},
		RequiresConfirmation: false,
		HandoffKeywords:      defaultHandoffKeywords,
		CompletionMessage: "Prontinho! A segunda via do boleto de {mes_referencia} foi enviada " +
			"para o contato cadastrado no CPF informado.",
	}

	return agentstage.NewRegistry(scheduling, secondCopy)
}
