package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"ai-conversation-be/pkg/contextswitch"
	"ai-conversation-be/pkg/llm"
	"ai-conversation-be/pkg/pipeline"
	"ai-conversation-be/pkg/retrieval"
	"ai-conversation-be/pkg/session"
	agentstage "ai-conversation-be/pkg/stage/agent"
	"ai-conversation-be/pkg/stage/intent"
	"ai-conversation-be/pkg/stage/rag"
	"ai-conversation-be/pkg/stage/safety"
	"ai-conversation-be/pkg/stage/smalltalk"
	"ai-conversation-be/pkg/trace"

	"github.com/fatih/color"
)

// scriptedProvider answers prompts from a fixed playbook so the full pipeline
// can run offline, without any model server.
type scriptedProvider struct{}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (*llm.Completion, error) {
	last := ""
	if len(history) > 0 {
		last = history[len(history)-1].Content
	}
	return p.Generate(ctx, last, opts...)
}

func (p *scriptedProvider) Generate(_ context.Context, prompt string, _ ...llm.Option) (*llm.Completion, error) {
	switch {
	case strings.Contains(prompt, "content moderator"):
		return reply(`{"safe": true, "reason": "ordinary request"}`), nil

	case strings.Contains(prompt, "Answer the greeting"):
		return reply("Olá! Como posso ajudar você hoje?"), nil

	case strings.Contains(prompt, "context-switch analyzer"):
		return reply(`{"classification": "CONTINUATION", "confidence": 0.92, "rationale": "answers the pending question"}`), nil

	case strings.Contains(prompt, "You extract structured data"):
		return reply(extractionFor(userMessage(prompt))), nil

	case strings.Contains(prompt, "classify the intent"):
		return reply(`{"intent": "question", "confidence": 0.85, "rewritten_message": "", "suggested_actions": ["agendar_consulta"]}`), nil

	case strings.Contains(prompt, "knowledge fragments"):
		return reply("Atendemos os convênios Unimed, Bradesco Saúde e SulAmérica. Traga sua carteirinha no dia da consulta."), nil
	}
	return reply(`{}`), nil
}

func userMessage(prompt string) string {
	start := strings.Index(prompt, "<user_message>\n")
	if start == -1 {
		return ""
	}
	rest := prompt[start+len("<user_message>\n"):]
	end := strings.Index(rest, "\n</user_message>")
	if end == -1 {
		return rest
	}
	return rest[:end]
}

func extractionFor(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "maria"):
		return `{"fields": {"nome": "Maria da Silva"}, "confirmation": "unclear"}`
	case strings.Contains(message, "123.456.789-00"):
		return `{"fields": {"cpf": "123.456.789-00"}, "confirmation": "unclear"}`
	case strings.Contains(message, "15/03/1990"):
		return `{"fields": {"data_nascimento": "15/03/1990"}, "confirmation": "unclear"}`
	case strings.Contains(lower, "cardio"):
		return `{"fields": {"especialidade": "cardiologia"}, "confirmation": "unclear"}`
	case lower == "sim" || strings.HasPrefix(lower, "sim,"):
		return `{"fields": {}, "confirmation": "yes"}`
	}
	return `{"fields": {}, "confirmation": "unclear"}`
}

func reply(content string) *llm.Completion {
	return &llm.Completion{Message: content, PromptTokens: 50, CompletionTokens: 30}
}

func main() {
	color.Cyan("🚀 Offline pipeline simulation\n")

	provider := &scriptedProvider{}
	pipeLogger := log.New(os.Stdout, "", log.LstdFlags)

	sessions := session.NewMemoryStore(60 * time.Minute)
	recorder := trace.NewRecorder(trace.NewMemoryStore(24 * time.Hour))
	detector := contextswitch.NewDetector(provider, pipeLogger)

	retriever := retrieval.NewStaticRetriever()
	retriever.Add("tenant-1", retrieval.Document{
		Id:      "doc-1",
		Title:   "Convênios aceitos",
		Content: "Atendemos Unimed, Bradesco Saúde e SulAmérica.",
	})

	registry := agentstage.NewRegistry(&agentstage.Definition{
		Id:          "agendar_consulta",
		Name:        "Agendamento de consulta",
		Description: "Coleta os dados do paciente e agenda uma consulta",
		IntentKeywords: []string{
			"agendar", "marcar consulta", "marcar uma consulta",
		},
		Steps: []agentstage.Step{
			{Field: "nome", Question: "Qual o seu nome completo?", Kind: agentstage.FieldText},
			{Field: "cpf", Question: "Qual o seu CPF?", Kind: agentstage.FieldDocument},
			{Field: "data_nascimento", Question: "Qual a sua data de nascimento? (ex: 15/03/1990)", Kind: agentstage.FieldDate},
			{Field: "especialidade", Question: "Para qual especialidade?", Kind: agentstage.FieldChoice},
		},
		RequiresConfirmation: true,
		HandoffKeywords:      []string{"atendente", "falar com humano"},
		CompletionMessage:    "Perfeito, {nome}! Sua consulta de {especialidade} foi registrada.",
	})

	stages := pipeline.NewRegistry(
		safety.NewStage(provider, nil, pipeLogger),
		smalltalk.NewStage(provider, pipeLogger),
		agentstage.NewStage(registry, sessions, detector, provider, 0.75, pipeLogger),
		intent.NewStage(provider, nil, pipeLogger),
		rag.NewStage(retriever, provider, pipeLogger),
	)
	orchestrator := pipeline.NewOrchestrator(stages, recorder, pipeLogger)

	script := []string{
		"Olá!",
		"Quero marcar uma consulta",
		"Maria da Silva",
		"123.456.789-00",
		"15/03/1990",
		"cardiologia",
		"sim",
		"quero saber sobre convênios",
	}

	ctx := context.Background()
	for _, message := range script {
		color.Yellow("\nUSER: %s", message)

		pctx := pipeline.NewProcessingContext("conv-sim-1", "tenant-1", message)
		result, err := orchestrator.Process(ctx, pctx)
		if err != nil {
			color.Red("pipeline error: %v", err)
			continue
		}

		if result.Answer != nil {
			color.Green("BOT:  %s", *result.Answer)
		} else {
			color.Red("BOT:  (no stage answered)")
		}
		printTrace(ctx, recorder, result)
	}
}

func printTrace(ctx context.Context, recorder *trace.Recorder, result *pipeline.Result) {
	t, err := recorder.GetTrace(ctx, result.TraceId)
	if err != nil || t == nil {
		return
	}
	for _, st := range t.Stages {
		line := fmt.Sprintf("  %-16s %-18s %4dms  %s", st.StageName, st.Status, st.DurationMs, st.Decision)
		switch st.Status {
		case trace.StatusSkipped:
			color.White(line)
		case trace.StatusError:
			color.Red(line + "  " + st.Error)
		case trace.StatusExecutedStop:
			color.Green(line)
		default:
			color.Cyan(line)
		}
	}
}
