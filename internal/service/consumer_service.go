package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ai-conversation-be/internal/constant"
	"ai-conversation-be/internal/dto"
	"ai-conversation-be/internal/pkg/mailer"
	"ai-conversation-be/pkg/events"
	natsbus "ai-conversation-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub          *gochannel.GoChannel
	eventPublisher  *natsbus.Publisher
	emailService    mailer.IEmailService
	escalationEmail string
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	eventPublisher *natsbus.Publisher,
	emailService mailer.IEmailService,
	escalationEmail string,
) IConsumerService {
	return &consumerService{
		pubSub:          pubSub,
		eventPublisher:  eventPublisher,
		emailService:    emailService,
		escalationEmail: escalationEmail,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	handoffs, err := cs.pubSub.Subscribe(ctx, constant.TopicConversationHandoff)
	if err != nil {
		return err
	}
	processed, err := cs.pubSub.Subscribe(ctx, constant.TopicConversationProcessed)
	if err != nil {
		return err
	}

	go func() {
		for msg := range handoffs {
			cs.processHandoff(ctx, msg)
		}
	}()
	go func() {
		for msg := range processed {
			cs.processOutcome(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processHandoff(ctx context.Context, msg *message.Message) {
	var payload dto.HandoffMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal handoff message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Processing handoff for conversation %s (agent %s)", payload.ConversationId, payload.AgentId)

	if cs.eventPublisher != nil {
		evt := events.NewHandoffRequested(payload.ConversationId, payload.TenantId, payload.AgentId, payload.Reason)
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			log.Printf("[ERROR] Failed to publish handoff event: %v", err)
			msg.Nack() // Retry
			return
		}
	}

	if cs.emailService != nil && cs.escalationEmail != "" {
		if err := cs.emailService.SendHandoffEscalation(cs.escalationEmail, payload.ConversationId, payload.AgentId, payload.Reason); err != nil {
			// Email is best-effort; the NATS event already went out
			log.Printf("[WARN] Failed to send escalation email for %s: %v", payload.ConversationId, err)
		}
	}

	log.Printf("[SUCCESS] Handoff escalated for conversation %s", payload.ConversationId)
	msg.Ack()
}

func (cs *consumerService) processOutcome(ctx context.Context, msg *message.Message) {
	var payload dto.ProcessedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal processed message: %v", err)
		msg.Ack()
		return
	}

	if cs.eventPublisher != nil {
		var evt events.Event
		if payload.Answered {
			evt = events.BaseEvent{
				Type: events.TypeConversationAnswered,
				Data: map[string]interface{}{
					"conversation_id": payload.ConversationId,
					"tenant_id":       payload.TenantId,
					"responded_by":    payload.RespondedBy,
					"trace_id":        payload.TraceId.String(),
				},
				OccurredAt: time.Now(),
			}
		} else {
			evt = events.NewPipelineExhausted(payload.ConversationId, payload.TenantId, "")
		}
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			log.Printf("[ERROR] Failed to publish outcome event: %v", err)
			msg.Nack()
			return
		}
	}

	msg.Ack()
}
