package bootstrap

import (
	"context"
	"log"
	"os"
	"time"

	"ai-conversation-be/internal/config"
	"ai-conversation-be/internal/controller"
	"ai-conversation-be/internal/pkg/logger"
	"ai-conversation-be/internal/pkg/mailer"
	"ai-conversation-be/internal/repository/implementation"
	"ai-conversation-be/internal/service"
	"ai-conversation-be/pkg/contextswitch"
	"ai-conversation-be/pkg/llm/factory"
	"ai-conversation-be/pkg/pipeline"
	"ai-conversation-be/pkg/retrieval"
	"ai-conversation-be/pkg/session"
	agentstage "ai-conversation-be/pkg/stage/agent"
	"ai-conversation-be/pkg/stage/intent"
	"ai-conversation-be/pkg/stage/rag"
	"ai-conversation-be/pkg/stage/safety"
	"ai-conversation-be/pkg/stage/smalltalk"
	"ai-conversation-be/pkg/trace"

	pktNats "ai-conversation-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ConversationController controller.IConversationController
	TraceController        controller.ITraceController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	pipelineLogger := newPipelineFileLogger("logs/llm_pipeline.log")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 3. Domain components
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.HuggingFaceAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	sessionTTL := time.Duration(cfg.Pipeline.SessionTTLMinutes) * time.Minute
	var sessionStore session.Store
	if cfg.Pipeline.SessionBackend == "memory" {
		sessionStore = session.NewMemoryStore(sessionTTL)
		log.Printf("[INFO] Using in-memory session store (TTL %s)", sessionTTL)
	} else {
		sessionStore = session.NewRedisStore(rdb, sessionTTL)
		log.Printf("[INFO] Using Redis session store (TTL %s)", sessionTTL)
	}

	embedder := retrieval.NewOllamaEmbedder(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	retriever := implementation.NewKnowledgeRepository(db, embedder)

	traceStore := implementation.NewTraceRepository(db)
	recorder := trace.NewRecorder(traceStore)

	detector := contextswitch.NewDetector(llmProvider, pipelineLogger)
	agentRegistry := defaultAgentRegistry()

	stageRegistry := pipeline.NewRegistry(
		safety.NewStage(llmProvider, nil, pipelineLogger),
		smalltalk.NewStage(llmProvider, pipelineLogger),
		agentstage.NewStage(agentRegistry, sessionStore, detector, llmProvider,
			cfg.Pipeline.ContextSwitchThreshold, pipelineLogger),
		intent.NewStage(llmProvider, nil, pipelineLogger),
		rag.NewStage(retriever, llmProvider, pipelineLogger),
	)
	orchestrator := pipeline.NewOrchestrator(stageRegistry, recorder, pipelineLogger)

	// 4. Services
	publisherService := service.NewPublisherService(pubSub)
	conversationService := service.NewConversationService(orchestrator, sessionStore, publisherService, sysLogger)
	traceService := service.NewTraceService(recorder)
	consumerService := service.NewConsumerService(
		pubSub,
		natsPub,
		emailService,
		cfg.SMTP.EscalationEmail,
	)

	// 5. Controllers
	return &Container{
		ConversationController: controller.NewConversationController(conversationService, traceService),
		TraceController:        controller.NewTraceController(traceService),

		ConsumerService: consumerService,
	}
}

// newPipelineFileLogger opens the dedicated pipeline log. Falls back to stderr
// when the file cannot be opened so pipeline logging never disables itself.
func newPipelineFileLogger(path string) *log.Logger {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(f, "", log.LstdFlags)
}
