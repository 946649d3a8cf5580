package triage

import (
	"context"
	"log"
	"strconv"

	"github.com/clearpath/triage/internal/metrics"
)

// Persister stores analysis results. It must tolerate being called more
// than once for the same submission (a fallback verdict may later be
// superseded by a batch verdict); the dispatcher does not deduplicate.
type Persister interface {
	Persist(ctx context.Context, rec ResultRecord) error
}

// Alerter notifies a human reviewer about a flagged result. Delivery is
// fire-and-forget from the dispatcher's perspective.
type Alerter interface {
	Alert(ctx context.Context, rec ResultRecord) error
}

// Dispatcher fans each analysis result out to persistence and alerting.
// Every flagged result is persisted and alerted exactly once; non-flagged
// results are persisted only when the dispatcher tracks cleared content.
// Per-item error markers are always persisted so lost batches stay visible
// to monitoring. A failure on one item never affects its siblings — the
// dispatcher logs and moves on.
type Dispatcher struct {
	persister    Persister
	alerter      Alerter
	trackCleared bool
}

// NewDispatcher builds a dispatcher. trackCleared controls whether
// non-flagged results are persisted.
func NewDispatcher(persister Persister, alerter Alerter, trackCleared bool) *Dispatcher {
	return &Dispatcher{
		persister:    persister,
		alerter:      alerter,
		trackCleared: trackCleared,
	}
}

// Dispatch delivers one result. It never returns an error: collaborator
// failures are logged and counted, not propagated.
func (d *Dispatcher) Dispatch(ctx context.Context, rec ResultRecord) {
	metrics.ResultsTotal.WithLabelValues(rec.Result.Method(), strconv.FormatBool(rec.Result.IsFlagged)).Inc()

	if d.shouldPersist(rec.Result) && d.persister != nil {
		if err := d.persister.Persist(ctx, rec); err != nil {
			metrics.CollaboratorErrorsTotal.WithLabelValues("persist").Inc()
			log.Printf("[dispatch] persist failed submission=%s: %v", rec.SubmissionID, err)
		}
	}

	if rec.Result.IsFlagged && d.alerter != nil {
		if err := d.alerter.Alert(ctx, rec); err != nil {
			metrics.CollaboratorErrorsTotal.WithLabelValues("alert").Inc()
			log.Printf("[dispatch] alert failed submission=%s: %v", rec.SubmissionID, err)
		}
	}
}

func (d *Dispatcher) shouldPersist(result AnalysisResult) bool {
	if result.IsFlagged || d.trackCleared {
		return true
	}
	// Error markers must reach storage regardless, they are the only
	// trace a failed batch leaves.
	return result.Metadata["error"] != ""
}
