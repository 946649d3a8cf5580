// Package alerts delivers flagged-result notifications to human reviewers
// via the safety.alert NATS subject. Delivery is fire-and-forget from the
// triage engine's perspective: a failed publish is logged and counted,
// never propagated back into dispatch.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/clearpath/triage/internal/messaging"
	"github.com/clearpath/triage/internal/triage"
)

// excerptLimit bounds how much submission text travels with an alert.
// Reviewers load the full content from storage.
const excerptLimit = 280

// Alert is the payload published for each flagged result.
type Alert struct {
	SubmissionID    string   `json:"submission_id"`
	ActorID         string   `json:"actor_id"`
	Context         string   `json:"context"`
	Severity        string   `json:"severity"`
	FlaggedReasons  []string `json:"flagged_reasons"`
	ConfidenceScore float64  `json:"confidence_score"`
	AnalysisMethod  string   `json:"analysis_method"`
	ContentExcerpt  string   `json:"content_excerpt"`
	Ts              int64    `json:"ts"`
}

// Notifier publishes alerts over NATS.
type Notifier struct {
	nats *messaging.NATSClient
}

var _ triage.Alerter = (*Notifier)(nil)

// NewNotifier creates a notifier over an established NATS client.
func NewNotifier(nats *messaging.NATSClient) *Notifier {
	return &Notifier{nats: nats}
}

// Alert publishes one flagged result for human review.
func (n *Notifier) Alert(_ context.Context, rec triage.ResultRecord) error {
	payload := Alert{
		SubmissionID:    rec.SubmissionID,
		ActorID:         rec.ActorID,
		Context:         rec.Context,
		Severity:        string(rec.Result.Severity),
		FlaggedReasons:  rec.Result.FlaggedReasons,
		ConfidenceScore: rec.Result.ConfidenceScore,
		AnalysisMethod:  rec.Result.Method(),
		ContentExcerpt:  excerpt(rec.Content),
		Ts:              rec.Timestamp.Unix(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("alerts: marshal: %w", err)
	}
	if err := n.nats.PublishAlert(data); err != nil {
		return fmt.Errorf("alerts: publish: %w", err)
	}

	log.Printf("[alerts] ALERT severity=%s submission=%s actor=%s method=%s",
		payload.Severity, payload.SubmissionID, payload.ActorID, payload.AnalysisMethod)
	return nil
}

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLimit {
		return content
	}
	return string(runes[:excerptLimit]) + "…"
}
