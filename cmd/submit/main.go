// Command submit publishes a single submission onto the triage intake
// subject. Used by operators to re-queue a submission or exercise the
// pipeline in a fresh environment.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/clearpath/triage/internal/messaging"
)

func main() {
	content := flag.String("content", "", "submission text (required)")
	contentContext := flag.String("context", "general", "submission context label")
	actorID := flag.String("actor", "", "actor identifier")
	submissionID := flag.String("id", "", "submission identifier (generated when empty)")
	flag.Parse()

	if *content == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *submissionID == "" {
		*submissionID = uuid.New().String()
	}

	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "safety-submit"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"submission_id": *submissionID,
		"actor_id":      *actorID,
		"context":       *contentContext,
		"content":       *content,
		"ts":            time.Now().Unix(),
	})
	if err != nil {
		log.Fatalf("failed to marshal submission: %v", err)
	}

	if err := natsClient.PublishSubmission(payload); err != nil {
		log.Fatalf("failed to publish submission: %v", err)
	}
	natsClient.Close()

	log.Printf("published submission %s", *submissionID)
}
