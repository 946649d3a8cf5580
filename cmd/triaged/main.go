package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clearpath/triage/internal/alerts"
	"github.com/clearpath/triage/internal/config"
	"github.com/clearpath/triage/internal/messaging"
	"github.com/clearpath/triage/internal/moderation"
	"github.com/clearpath/triage/internal/results"
	"github.com/clearpath/triage/internal/rules"
	"github.com/clearpath/triage/internal/server"
	"github.com/clearpath/triage/internal/triage"
	"github.com/clearpath/triage/internal/verdictcache"
)

// Submission is the NATS payload published by the ingestion layer for each
// learner submission that needs triage.
type Submission struct {
	SubmissionID string `json:"submission_id"`
	ActorID      string `json:"actor_id"`
	Context      string `json:"context"`
	Content      string `json:"content"`
	Ts           int64  `json:"ts"`
}

func main() {
	log.Println("Starting safety triage service...")

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// --- Postgres ---
	db, err := results.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	if err := results.Migrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	resultStore := results.NewStore(db)

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancelPing()
	cache := verdictcache.NewCache(rdb, cfg.CacheTTL())

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATS.URL
	natsConfig.Name = "safety-triaged"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Engine wiring ---
	analyzer := moderation.NewClient(moderation.Config{
		Endpoint: cfg.Moderation.Endpoint,
		Model:    cfg.Moderation.Model,
		APIKey:   cfg.Moderation.APIKey,
		Timeout:  cfg.ModerationTimeout(),
	})

	dispatcher := triage.NewDispatcher(resultStore, alerts.NewNotifier(natsClient), cfg.TrackCleared)
	accumulator := triage.NewBatchAccumulator(cfg.BatchConfig())

	engine := triage.NewEngine(rules.NewEngine(), analyzer, accumulator, dispatcher, triage.EngineConfig{
		CallTimeout:          cfg.ModerationTimeout(),
		MaxInflightImmediate: cfg.MaxInflightImmediate,
	})
	engine.SetVerdictCache(cache)
	engine.SetPositivePublisher(natsClient)

	flusher := triage.NewFlusher(accumulator, analyzer, dispatcher, engine.WakeSignal(), cfg.FlushEvery(), cfg.ModerationTimeout())
	flusher.SetVerdictCache(cache)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		flusher.Run(ctx)
	}()

	// --- Submission intake ---
	err = natsClient.SubscribeSubmissions(func(data []byte) {
		var sub Submission
		if err := json.Unmarshal(data, &sub); err != nil {
			log.Printf("[triaged] failed to unmarshal submission: %v", err)
			return
		}
		if sub.SubmissionID == "" {
			sub.SubmissionID = uuid.New().String()
		}

		result := engine.Route(context.Background(), sub.Content, sub.Context, sub.SubmissionID, sub.ActorID)

		verdict, err := json.Marshal(result)
		if err != nil {
			log.Printf("[triaged] failed to marshal verdict: %v", err)
			return
		}
		if err := natsClient.PublishVerdict(sub.SubmissionID, verdict); err != nil {
			log.Printf("[triaged] failed to publish verdict: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to submissions: %v", err)
	}

	// --- Status surface ---
	statusServer := server.New(cfg.ListenAddr, accumulator, resultStore)
	go func() {
		if err := statusServer.Start(); err != nil {
			log.Printf("[triaged] status server error: %v", err)
		}
	}()

	batchCfg := cfg.BatchConfig()
	log.Printf("Safety triage service running")
	log.Printf("  listen_addr:          %s", cfg.ListenAddr)
	log.Printf("  nats_url:             %s", cfg.NATS.URL)
	log.Printf("  redis_addr:           %s", cfg.Redis.Addr)
	log.Printf("  max_items:            %d", batchCfg.MaxItems)
	log.Printf("  max_estimated_tokens: %d", batchCfg.MaxEstimatedTokens)
	log.Printf("  max_batch_age:        %s", batchCfg.MaxBatchAge)
	log.Printf("  flush_interval:       %s", cfg.FlushEvery())

	// Graceful shutdown. Stop intake first, then let the flusher finish
	// any in-flight flush before closing the stores.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
	cancel()
	wg.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[triaged] status server shutdown: %v", err)
	}

	rdb.Close()
	db.Close()
}
