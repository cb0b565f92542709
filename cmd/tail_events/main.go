package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-conversation-be/pkg/events"
	natsbus "ai-conversation-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

// Tails the operator event bus. Useful while verifying handoff escalation end
// to end without a NATS dashboard.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://localhost:4222"
	}

	sub, err := natsbus.NewSubscriber(url)
	if err != nil {
		log.Fatalf("Error: Failed to connect subscriber: %v", err)
	}
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = sub.Subscribe(ctx, "events.>", "event-tail", func(_ context.Context, event events.Event) error {
		switch event.EventType() {
		case events.TypeHandoffRequested:
			color.Red("%-22s %v", event.EventType(), event.Payload())
		case events.TypePipelineExhausted:
			color.Yellow("%-22s %v", event.EventType(), event.Payload())
		case events.TypeConversationAnswered:
			color.Green("%-22s %v", event.EventType(), event.Payload())
		default:
			color.White("%-22s %v", event.EventType(), event.Payload())
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error: Failed to subscribe: %v", err)
	}

	color.Cyan("👂 Tailing events.> on %s (Ctrl+C to stop)", url)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
}
