package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/clearpath/triage/internal/messaging"
	"github.com/clearpath/triage/internal/positivity"
	"github.com/clearpath/triage/internal/triage"
)

// PositiveVerdict is published back on safety.positive.result.
type PositiveVerdict struct {
	SubmissionID string   `json:"submission_id"`
	Positive     bool     `json:"positive"`
	Score        float64  `json:"score"`
	Terms        []string `json:"terms"`
}

func main() {
	log.Println("Starting positive-language sentiment service...")

	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "safety-sentimentd"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	detector := positivity.NewDetector()

	// The triage engine publishes checks fire-and-forget; nothing here
	// feeds back into safety routing, so failures are only logged.
	err = natsClient.SubscribePositiveCheck(func(data []byte) {
		var event triage.PositiveCheckEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[sentimentd] failed to unmarshal check: %v", err)
			return
		}

		result := detector.Score(event.Content)
		if !result.Positive {
			return
		}

		log.Printf("[sentimentd] POSITIVE submission=%s score=%.2f terms=%v",
			event.SubmissionID, result.Score, result.Terms)

		verdict, err := json.Marshal(PositiveVerdict{
			SubmissionID: event.SubmissionID,
			Positive:     result.Positive,
			Score:        result.Score,
			Terms:        result.Terms,
		})
		if err != nil {
			log.Printf("[sentimentd] failed to marshal verdict: %v", err)
			return
		}
		if err := natsClient.PublishPositiveResult(verdict); err != nil {
			log.Printf("[sentimentd] failed to publish verdict: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to positive checks: %v", err)
	}

	log.Printf("Positive-language sentiment service running")
	log.Printf("  nats_url: %s", natsConfig.URL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
}
