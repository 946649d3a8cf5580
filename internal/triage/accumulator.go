package triage

import (
	"sync"
	"time"
)

// Default flush thresholds. A flush is due when ANY threshold is met —
// these are backpressure and latency bounds, not a cost optimum.
const (
	DefaultMaxEstimatedTokens = 100_000
	DefaultMaxBatchAge        = 2 * time.Hour
	DefaultMaxItems           = 50
)

// BatchConfig holds the flush-trigger thresholds. It is fixed at startup;
// nothing requires mid-run mutation.
type BatchConfig struct {
	MaxEstimatedTokens int           `json:"max_estimated_tokens"`
	MaxBatchAge        time.Duration `json:"max_batch_age"`
	MaxItems           int           `json:"max_items"`
}

// DefaultBatchConfig returns the standard thresholds.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxEstimatedTokens: DefaultMaxEstimatedTokens,
		MaxBatchAge:        DefaultMaxBatchAge,
		MaxItems:           DefaultMaxItems,
	}
}

// QueueStats is a read-only snapshot of the accumulator for the status
// surface and metrics.
type QueueStats struct {
	Items           int       `json:"queue_length"`
	EstimatedTokens int       `json:"estimated_tokens"`
	LastFlush       time.Time `json:"last_flush"`
}

// BatchAccumulator is the ordered in-memory queue of pending analysis
// requests plus the last-flush clock. One mutex owns both: an append that
// races with a drain is either fully included in the draining snapshot or
// fully deferred to the next batch, never partially observed.
type BatchAccumulator struct {
	mu        sync.Mutex
	cfg       BatchConfig
	items     []BatchItem
	tokens    int // running sum of EstimateTokens over items
	lastFlush time.Time
}

// NewBatchAccumulator creates an empty accumulator. The last-flush clock
// starts at now so the age trigger measures from process start.
func NewBatchAccumulator(cfg BatchConfig) *BatchAccumulator {
	return &BatchAccumulator{
		cfg:       cfg,
		lastFlush: time.Now(),
	}
}

// Config returns the active thresholds.
func (a *BatchAccumulator) Config() BatchConfig {
	return a.cfg
}

// Append adds one item to the end of the queue.
func (a *BatchAccumulator) Append(item BatchItem) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.items = append(a.items, item)
	a.tokens += EstimateTokens(item)
}

// Len returns the current queue length.
func (a *BatchAccumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// ShouldFlush reports whether a flush is due at the given time: the queue
// is older than MaxBatchAge, or has reached MaxItems, or its estimated
// token cost has reached MaxEstimatedTokens. An empty queue never flushes.
// The answer is advisory — DrainIfDue rechecks under the lock before
// draining, so callers may consult this without holding anything.
func (a *BatchAccumulator) ShouldFlush(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shouldFlushLocked(now)
}

func (a *BatchAccumulator) shouldFlushLocked(now time.Time) bool {
	if len(a.items) == 0 {
		return false
	}
	if now.Sub(a.lastFlush) > a.cfg.MaxBatchAge {
		return true
	}
	if len(a.items) >= a.cfg.MaxItems {
		return true
	}
	return a.tokens >= a.cfg.MaxEstimatedTokens
}

// Drain atomically empties the queue, resets the last-flush clock to now,
// and returns the drained snapshot in append order. Draining an empty
// queue returns nil and still resets the clock.
func (a *BatchAccumulator) Drain(now time.Time) []BatchItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.drainLocked(now)
}

// DrainIfDue drains only if a flush is due, rechecking the trigger inside
// the critical section. This is the flusher's entry point: two wakeups
// racing for the same batch cannot both drain it.
func (a *BatchAccumulator) DrainIfDue(now time.Time) []BatchItem {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.shouldFlushLocked(now) {
		return nil
	}
	return a.drainLocked(now)
}

func (a *BatchAccumulator) drainLocked(now time.Time) []BatchItem {
	drained := a.items
	a.items = nil
	a.tokens = 0
	a.lastFlush = now
	return drained
}

// Stats returns a consistent snapshot of queue length, estimated tokens,
// and the last-flush time.
func (a *BatchAccumulator) Stats() QueueStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return QueueStats{
		Items:           len(a.items),
		EstimatedTokens: a.tokens,
		LastFlush:       a.lastFlush,
	}
}
