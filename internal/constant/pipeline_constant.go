package constant

// Watermill topics carrying pipeline outcomes to the consumer service.
const (
	TopicConversationProcessed = "conversation.processed"
	TopicConversationHandoff   = "conversation.handoff"
)

// MetaFallbackAnswer carries the advisory fallback text on exhausted
// responses. The answer itself stays nil.
const MetaFallbackAnswer = "pipeline.fallback_answer"

// DefaultExhaustedAnswer is what the caller may show when no stage produced
// an answer. The service keeps the answer nil; this is advisory for clients.
const DefaultExhaustedAnswer = "Desculpe, não consegui entender sua solicitação. Pode reformular?"
