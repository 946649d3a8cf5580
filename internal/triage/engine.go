package triage

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/clearpath/triage/internal/metrics"
	"github.com/clearpath/triage/internal/rules"
)

// Analyzer is the external moderation model boundary. Both methods must
// honor context cancellation; a timeout is reported as an ordinary error.
type Analyzer interface {
	// AnalyzeOne analyzes a single item (immediate path).
	AnalyzeOne(ctx context.Context, content, contentContext string) (*AnalysisResult, error)

	// AnalyzeBatch analyzes all items in one call (batch path). Verdicts
	// are positional: results[i] belongs to items[i]. The slice may be
	// shorter than items or hold nil entries; callers treat those
	// positions as per-item failures.
	AnalyzeBatch(ctx context.Context, items []BatchItem) ([]*AnalysisResult, error)
}

// VerdictCache caches final verdicts by content fingerprint so repeated
// submissions of identical content skip the moderation model. Both methods
// are fail-open: a broken cache only costs extra analysis.
type VerdictCache interface {
	Get(ctx context.Context, fingerprint string) (*AnalysisResult, bool)
	Put(ctx context.Context, fingerprint string, result AnalysisResult)
}

// PositivePublisher publishes fire-and-forget positive-language check
// events to the independent sentiment consumer.
type PositivePublisher interface {
	PublishPositiveCheck(data []byte) error
}

// PositiveCheckEvent is the payload published for the positivity detector.
type PositiveCheckEvent struct {
	Content      string `json:"content"`
	Context      string `json:"context"`
	SubmissionID string `json:"submission_id"`
	Ts           int64  `json:"ts"`
}

// EngineConfig tunes the escalation engine.
type EngineConfig struct {
	// CallTimeout bounds each external moderation call. A timed-out call
	// is treated identically to a failed one.
	CallTimeout time.Duration

	// MaxInflightImmediate caps concurrent immediate-path calls. When no
	// slot frees up within CallTimeout the call counts as failed and the
	// rule-engine fallback still produces a flagged verdict.
	MaxInflightImmediate int64
}

// DefaultEngineConfig returns the standard engine tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CallTimeout:          30 * time.Second,
		MaxInflightImmediate: 8,
	}
}

// Engine is the escalation decision point. Obvious danger goes to the
// moderation model immediately (degrading to the rule verdict if the model
// is unreachable); everything else is deferred into the batch accumulator.
type Engine struct {
	rules      *rules.Engine
	analyzer   Analyzer
	acc        *BatchAccumulator
	dispatcher *Dispatcher
	cache      VerdictCache      // optional
	positive   PositivePublisher // optional
	sem        *semaphore.Weighted
	timeout    time.Duration
	wake       chan struct{}
}

// NewEngine wires an escalation engine over its collaborators.
func NewEngine(ruleEngine *rules.Engine, analyzer Analyzer, acc *BatchAccumulator, dispatcher *Dispatcher, cfg EngineConfig) *Engine {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultEngineConfig().CallTimeout
	}
	if cfg.MaxInflightImmediate <= 0 {
		cfg.MaxInflightImmediate = DefaultEngineConfig().MaxInflightImmediate
	}

	return &Engine{
		rules:      ruleEngine,
		analyzer:   analyzer,
		acc:        acc,
		dispatcher: dispatcher,
		sem:        semaphore.NewWeighted(cfg.MaxInflightImmediate),
		timeout:    cfg.CallTimeout,
		wake:       make(chan struct{}, 1),
	}
}

// SetVerdictCache installs an optional fingerprint verdict cache.
func (e *Engine) SetVerdictCache(cache VerdictCache) {
	e.cache = cache
}

// SetPositivePublisher installs the optional positive-language publisher.
func (e *Engine) SetPositivePublisher(p PositivePublisher) {
	e.positive = p
}

// WakeSignal returns the channel the flusher selects on. A signal means
// "something was enqueued, consider flushing"; it carries no data.
func (e *Engine) WakeSignal() <-chan struct{} {
	return e.wake
}

// Route triages one submission and always returns a result: a final
// verdict for obvious content (model's or the rule fallback), or a queued
// placeholder for deferred content. It never returns an error to the
// caller; every moderation failure resolves internally.
func (e *Engine) Route(ctx context.Context, content, contentContext, submissionID, actorID string) AnalysisResult {
	e.publishPositiveCheck(content, contentContext, submissionID)

	if strings.TrimSpace(content) == "" {
		metrics.SubmissionsTotal.WithLabelValues("empty").Inc()
		return AnalysisResult{
			Severity:        SeverityLow,
			ConfidenceScore: 1,
			Metadata:        map[string]string{MetaMethod: MethodEmptyContent},
		}
	}

	fingerprint := Fingerprint(content)
	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, fingerprint); ok {
			metrics.SubmissionsTotal.WithLabelValues("cached").Inc()
			result := *cached
			result.Metadata = cloneMeta(cached.Metadata)
			result.Metadata["cache_hit"] = "true"
			// A hit skips only the model call. This is a new submission,
			// so the verdict still fans out under the new identifiers; a
			// repeated flagged submission alerts again.
			e.dispatcher.Dispatch(ctx, ResultRecord{
				SubmissionID: submissionID,
				ActorID:      actorID,
				Content:      content,
				Context:      contentContext,
				Timestamp:    time.Now(),
				Result:       result,
			})
			return result
		}
	}

	verdict := e.rules.Check(content)
	if verdict.Obvious {
		metrics.SubmissionsTotal.WithLabelValues("immediate").Inc()

		result := e.analyzeImmediate(ctx, content, contentContext, verdict)
		e.dispatcher.Dispatch(ctx, ResultRecord{
			SubmissionID: submissionID,
			ActorID:      actorID,
			Content:      content,
			Context:      contentContext,
			Timestamp:    time.Now(),
			Result:       result,
		})
		if e.cache != nil && result.Method() == MethodImmediateAI {
			e.cache.Put(ctx, fingerprint, result)
		}
		return result
	}

	metrics.SubmissionsTotal.WithLabelValues("batched").Inc()
	e.acc.Append(BatchItem{
		Content:      content,
		Context:      contentContext,
		SubmissionID: submissionID,
		ActorID:      actorID,
		EnqueuedAt:   time.Now(),
		Fingerprint:  fingerprint,
	})

	stats := e.acc.Stats()
	metrics.QueueLength.Set(float64(stats.Items))
	metrics.QueueEstimatedTokens.Set(float64(stats.EstimatedTokens))

	e.signalWake()

	return AnalysisResult{
		Severity: SeverityLow,
		Metadata: map[string]string{
			MetaMethod: MethodBatchQueued,
			"status":   "queued",
		},
	}
}

// analyzeImmediate calls the model for content the rule engine already
// judged obvious. Whatever goes wrong — no free slot, timeout, transport
// error, unparsable response — the result is still a flagged verdict
// synthesized from the rule match. This path must never produce
// "not flagged" by failure.
func (e *Engine) analyzeImmediate(ctx context.Context, content, contentContext string, verdict rules.Verdict) AnalysisResult {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.sem.Acquire(callCtx, 1); err != nil {
		log.Printf("[triage] immediate slot unavailable: %v (falling back to rule verdict)", err)
		return e.fallbackResult(verdict)
	}
	defer e.sem.Release(1)

	result, err := e.analyzer.AnalyzeOne(callCtx, content, contentContext)
	if err != nil {
		log.Printf("[triage] immediate analysis failed: %v (falling back to rule verdict)", err)
		return e.fallbackResult(verdict)
	}
	return *result
}

// fallbackResult synthesizes a flagged verdict from the rule match.
func (e *Engine) fallbackResult(verdict rules.Verdict) AnalysisResult {
	metrics.FallbacksTotal.Inc()
	return AnalysisResult{
		IsFlagged:        true,
		Severity:         Severity(verdict.Severity),
		FlaggedReasons:   verdict.Reasons,
		ConfidenceScore:  verdict.Confidence,
		SuggestedActions: verdict.SuggestedActions,
		Metadata:         map[string]string{MetaMethod: MethodObviousFallback},
	}
}

// signalWake nudges the flusher without blocking; a pending signal is
// enough, the flusher coalesces them.
func (e *Engine) signalWake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) publishPositiveCheck(content, contentContext, submissionID string) {
	if e.positive == nil {
		return
	}

	data, err := json.Marshal(PositiveCheckEvent{
		Content:      content,
		Context:      contentContext,
		SubmissionID: submissionID,
		Ts:           time.Now().Unix(),
	})
	if err != nil {
		return
	}
	if err := e.positive.PublishPositiveCheck(data); err != nil {
		log.Printf("[triage] positive-language publish failed: %v", err)
	}
}

func cloneMeta(meta map[string]string) map[string]string {
	clone := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		clone[k] = v
	}
	return clone
}
