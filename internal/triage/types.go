// Package triage implements the content safety triage and batching engine:
// obvious danger signals are escalated to the moderation model immediately,
// while ambiguous submissions are accumulated and analyzed in cost-amortized
// batches by a background flusher.
package triage

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Severity is the four-step ladder shared by the rule tiers, the moderation
// model's verdicts, and alert routing.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank maps each severity to its position on the ladder.
// Unknown values rank below low.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the severity's position on the ladder (low=1 .. critical=4),
// or 0 for unknown values.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether s is one of the four ladder values.
func (s Severity) Valid() bool {
	return severityRank[s] != 0
}

// Analysis method values recorded in AnalysisResult metadata. They identify
// which path produced a result, which is what lets auditors distinguish
// "still pending" from "cleared".
const (
	MethodImmediateAI     = "immediate_ai"
	MethodBatchAI         = "batch_ai"
	MethodObviousFallback = "obvious_flag_fallback"
	MethodBatchQueued     = "batch_queued"
	MethodEmptyContent    = "empty_content"
)

// MetaMethod is the metadata key holding the analysis method.
const MetaMethod = "analysis_method"

// AnalysisResult is the normalized outcome of either analysis path. Results
// are created once and never mutated after dispatch; a superseding verdict
// (e.g. a batch verdict after a local fallback) is emitted as a new result.
type AnalysisResult struct {
	IsFlagged        bool              `json:"is_flagged"`
	Severity         Severity          `json:"severity"`
	FlaggedReasons   []string          `json:"flagged_reasons"`
	ConfidenceScore  float64           `json:"confidence_score"`
	SuggestedActions []string          `json:"suggested_actions"`
	Metadata         map[string]string `json:"analysis_metadata"`
}

// Method returns the analysis method recorded in the result's metadata.
func (r AnalysisResult) Method() string {
	return r.Metadata[MetaMethod]
}

// BatchItem is one deferred analysis request waiting in the accumulator.
// Every item in the queue has already failed the obvious-flag pre-filter;
// dangerous content never enters this structure.
type BatchItem struct {
	Content      string    `json:"content"`
	Context      string    `json:"context"` // e.g. "response", "reflection", "general"
	SubmissionID string    `json:"submission_id"`
	ActorID      string    `json:"actor_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	Fingerprint  string    `json:"content_fingerprint"`
}

// Fingerprint returns a stable hex-encoded hash of the normalized
// (lower-cased, trimmed) content. Callers use it for verdict caching and
// deduplication; the accumulator itself does not enforce uniqueness.
func Fingerprint(content string) string {
	normalized := strings.ToLower(strings.TrimSpace(content))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// EstimateTokens approximates the moderation-model token cost of one item's
// content. Four bytes per token is coarse but cheap; trigger logic only
// depends on this function, so a real tokenizer can be swapped in here.
func EstimateTokens(item BatchItem) int {
	return len(item.Content) / 4
}

// ResultRecord bundles an AnalysisResult with the submission context the
// persistence and alert collaborators need.
type ResultRecord struct {
	SubmissionID string
	ActorID      string
	Content      string
	Context      string
	Timestamp    time.Time
	Result       AnalysisResult
}
