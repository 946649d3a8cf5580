package triage

import (
	"context"
	"log"
	"time"

	"github.com/clearpath/triage/internal/metrics"
)

// DefaultFlushInterval is how often the flusher re-evaluates the triggers
// on its own, independent of enqueue wakeups.
const DefaultFlushInterval = 5 * time.Minute

// Flusher is the single background worker that drains the accumulator when
// a flush trigger fires and submits the drained batch to the moderation
// model in one call. It is started once at process startup; enqueue paths
// reach it only through the accumulator and the wake channel.
type Flusher struct {
	acc        *BatchAccumulator
	analyzer   Analyzer
	dispatcher *Dispatcher
	cache      VerdictCache // optional
	wake       <-chan struct{}
	interval   time.Duration
	timeout    time.Duration
}

// NewFlusher builds a flusher. wake is the engine's wake signal; interval
// and timeout fall back to defaults when non-positive.
func NewFlusher(acc *BatchAccumulator, analyzer Analyzer, dispatcher *Dispatcher, wake <-chan struct{}, interval, timeout time.Duration) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if timeout <= 0 {
		timeout = DefaultEngineConfig().CallTimeout
	}

	return &Flusher{
		acc:        acc,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		wake:       wake,
		interval:   interval,
		timeout:    timeout,
	}
}

// SetVerdictCache installs an optional fingerprint verdict cache so batch
// verdicts are reusable for identical future content.
func (f *Flusher) SetVerdictCache(cache VerdictCache) {
	f.cache = cache
}

// Run loops until ctx is canceled, checking the flush triggers on every
// tick and every wake signal. An iteration that already drained a batch
// finishes analyzing and dispatching it even if shutdown begins meanwhile;
// Flush uses its own call-scoped context for the external call.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	log.Printf("[flusher] started interval=%s", f.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[flusher] stopped")
			return
		case <-ticker.C:
			f.Flush()
		case <-f.wake:
			f.Flush()
		}
	}
}

// Flush drains the accumulator if a trigger is due and processes the
// drained batch to completion: one external call, then per-item dispatch
// in batch order. A no-op when nothing is due.
func (f *Flusher) Flush() {
	batch := f.acc.DrainIfDue(time.Now())
	if len(batch) == 0 {
		return
	}

	stats := f.acc.Stats()
	metrics.QueueLength.Set(float64(stats.Items))
	metrics.QueueEstimatedTokens.Set(float64(stats.EstimatedTokens))
	metrics.FlushBatchSize.Observe(float64(len(batch)))

	log.Printf("[flusher] flushing batch items=%d", len(batch))

	// The drained batch is past the point of no return: it never goes
	// back to the queue. Use a call-scoped context so process shutdown
	// does not abort the in-flight analysis mid-dispatch.
	callCtx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	results, err := f.analyzer.AnalyzeBatch(callCtx, batch)
	if err != nil {
		log.Printf("[flusher] batch analysis failed items=%d: %v", len(batch), err)
		metrics.FlushesTotal.WithLabelValues("failed").Inc()
	} else {
		metrics.FlushesTotal.WithLabelValues("analyzed").Inc()
	}

	// Dispatch strictly in batch order; verdicts are positional. Items
	// without a usable verdict (failed call, short response array, bad
	// element) each get an explicit error result — they are failed, not
	// silently dropped, and the batch is not retried here.
	for i, item := range batch {
		var result AnalysisResult
		switch {
		case err != nil:
			result = errorResult("batch analysis call failed: " + err.Error())
		case i >= len(results) || results[i] == nil:
			log.Printf("[flusher] no verdict for item %d/%d submission=%s", i+1, len(batch), item.SubmissionID)
			result = errorResult("no verdict returned for item")
		default:
			result = *results[i]
			if f.cache != nil && item.Fingerprint != "" {
				f.cache.Put(callCtx, item.Fingerprint, result)
			}
		}

		f.dispatcher.Dispatch(callCtx, ResultRecord{
			SubmissionID: item.SubmissionID,
			ActorID:      item.ActorID,
			Content:      item.Content,
			Context:      item.Context,
			Timestamp:    time.Now(),
			Result:       result,
		})
	}
}

// errorResult marks one batch item as failed. It is not a verdict: the
// content was never analyzed, and monitoring distinguishes it from a
// cleared result by the error marker in the metadata.
func errorResult(reason string) AnalysisResult {
	return AnalysisResult{
		Severity: SeverityLow,
		Metadata: map[string]string{
			MetaMethod: MethodBatchAI,
			"error":    reason,
		},
	}
}
