// Package server exposes the read-only operational surface of the triage
// engine over HTTP: queue status, result lookup, health, and Prometheus
// metrics.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/clearpath/triage/internal/metrics"
	"github.com/clearpath/triage/internal/triage"
)

// StatusResponse is the GET /status payload.
type StatusResponse struct {
	QueueLength           int                `json:"queue_length"`
	EstimatedTokens       int                `json:"estimated_tokens"`
	SecondsSinceLastFlush float64            `json:"seconds_since_last_flush"`
	Config                triage.BatchConfig `json:"batch_config"`
}

// ResultLookup answers result queries from storage. sql.ErrNoRows (wrapped
// or not) means no result exists yet for the submission.
type ResultLookup interface {
	LatestBySubmission(ctx context.Context, submissionID string) (*triage.ResultRecord, error)
}

// Server serves the status endpoints.
type Server struct {
	acc    *triage.BatchAccumulator
	lookup ResultLookup
	http   *http.Server
}

// New builds a status server over the accumulator. lookup may be nil; the
// result endpoint is mounted only when it is provided.
func New(addr string, acc *triage.BatchAccumulator, lookup ResultLookup) *Server {
	s := &Server{acc: acc, lookup: lookup}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	if lookup != nil {
		mux.HandleFunc("/results/latest", s.handleLatestResult)
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called. It blocks; run it in its own
// goroutine.
func (s *Server) Start() error {
	log.Printf("[server] status surface listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := s.acc.Stats()
	resp := StatusResponse{
		QueueLength:           stats.Items,
		EstimatedTokens:       stats.EstimatedTokens,
		SecondsSinceLastFlush: time.Since(stats.LastFlush).Seconds(),
		Config:                s.acc.Config(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[server] encode status: %v", err)
	}
}

func (s *Server) handleLatestResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	submissionID := r.URL.Query().Get("submission_id")
	if submissionID == "" {
		http.Error(w, "submission_id is required", http.StatusBadRequest)
		return
	}

	rec, err := s.lookup.LatestBySubmission(r.Context(), submissionID)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "no result for submission", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[server] result lookup submission=%s: %v", submissionID, err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		log.Printf("[server] encode result: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
