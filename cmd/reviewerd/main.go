package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clearpath/triage/internal/alerts"
	"github.com/clearpath/triage/internal/config"
	"github.com/clearpath/triage/internal/messaging"
	"github.com/clearpath/triage/internal/results"
)

// historyWindow is how far back the repeat-flag count looks.
const historyWindow = 7 * 24 * time.Hour

// positiveResult mirrors the payload published on safety.positive.result.
type positiveResult struct {
	SubmissionID string   `json:"submission_id"`
	Score        float64  `json:"score"`
	Terms        []string `json:"terms"`
}

func main() {
	log.Println("Starting reviewer console service...")

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := results.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	store := results.NewStore(db)

	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATS.URL
	natsConfig.Name = "safety-reviewerd"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Each alert is annotated with the actor's recent flag history so a
	// reviewer sees repeat signals without a separate query.
	err = natsClient.SubscribeAlerts(func(data []byte) {
		var alert alerts.Alert
		if err := json.Unmarshal(data, &alert); err != nil {
			log.Printf("[reviewerd] failed to unmarshal alert: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		recent, err := store.CountFlaggedSince(ctx, alert.ActorID, historyWindow)
		if err != nil {
			log.Printf("[reviewerd] flag history lookup actor=%s: %v", alert.ActorID, err)
			recent = -1 // unknown
		}

		log.Printf("[reviewerd] ALERT severity=%s submission=%s actor=%s recent_flags=%d reasons=%v",
			alert.Severity, alert.SubmissionID, alert.ActorID, recent, alert.FlaggedReasons)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to alerts: %v", err)
	}

	err = natsClient.SubscribePositiveResult(func(data []byte) {
		var result positiveResult
		if err := json.Unmarshal(data, &result); err != nil {
			log.Printf("[reviewerd] failed to unmarshal positive result: %v", err)
			return
		}
		log.Printf("[reviewerd] highlight submission=%s score=%.2f terms=%v",
			result.SubmissionID, result.Score, result.Terms)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to positive results: %v", err)
	}

	log.Printf("Reviewer console service running")
	log.Printf("  nats_url:       %s", cfg.NATS.URL)
	log.Printf("  history_window: %s", historyWindow)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
	db.Close()
}
