// Package moderation implements the HTTP client for the external AI
// moderation model. One client serves both triage paths: single-item calls
// for the immediate path and enumerated multi-item calls for the batch
// path, sharing the same prompt construction and response parsing.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/clearpath/triage/internal/metrics"
	"github.com/clearpath/triage/internal/triage"
)

// Config defines how to contact the moderation API. The endpoint is any
// OpenAI-compatible chat-completions URL.
type Config struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Client calls the external moderation model. A circuit breaker sits in
// front of the HTTP call so a failing provider is not hammered while the
// triage engine degrades to its local fallbacks.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

var _ triage.Analyzer = (*Client)(nil)

// NewClient builds a moderation client from configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "moderation-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[moderation] breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// AnalyzeOne submits a single item for analysis and returns its verdict.
// Call failures, timeouts, an open breaker, and malformed responses all
// surface as errors; the caller applies the rule-engine fallback.
func (c *Client) AnalyzeOne(ctx context.Context, content, contentContext string) (*triage.AnalysisResult, error) {
	start := time.Now()
	raw, err := c.complete(ctx, singleUserPrompt(content, contentContext))
	metrics.ModerationLatency.WithLabelValues("single").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	var wire wireVerdict
	if err := json.Unmarshal(stripFences(raw), &wire); err != nil {
		return nil, fmt.Errorf("moderation: parse verdict: %w", err)
	}
	result, err := wire.toResult(triage.MethodImmediateAI, c.model)
	if err != nil {
		return nil, fmt.Errorf("moderation: %w", err)
	}
	return result, nil
}

// AnalyzeBatch submits all items in one call and returns per-item verdicts
// keyed by position. The returned slice mirrors the model's response array
// and may be shorter than items, or carry nil entries where an element
// failed validation — the caller treats those positions as failed items.
func (c *Client) AnalyzeBatch(ctx context.Context, items []triage.BatchItem) ([]*triage.AnalysisResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	start := time.Now()
	raw, err := c.complete(ctx, batchUserPrompt(items))
	metrics.ModerationLatency.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	var wires []wireVerdict
	if err := json.Unmarshal(stripFences(raw), &wires); err != nil {
		return nil, fmt.Errorf("moderation: parse batch verdicts: %w", err)
	}

	results := make([]*triage.AnalysisResult, len(wires))
	for i, wire := range wires {
		result, err := wire.toResult(triage.MethodBatchAI, c.model)
		if err != nil {
			// One bad element does not fail the batch; the unmatched
			// item gets a per-item error result downstream.
			continue
		}
		results[i] = result
	}
	return results, nil
}

// chat-completions wire structures.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete posts one chat-completions request through the circuit breaker
// and returns the assistant message body.
func (c *Client) complete(ctx context.Context, userPrompt string) ([]byte, error) {
	if c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("moderation: client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("moderation: marshal request: %w", err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("moderation: new request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("moderation: call: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, fmt.Errorf("moderation: api error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		}

		var parsed chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("moderation: decode response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return nil, fmt.Errorf("moderation: response has no choices")
		}
		return []byte(parsed.Choices[0].Message.Content), nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// wireVerdict is the JSON shape the model is instructed to return, one per
// analyzed item.
type wireVerdict struct {
	IsFlagged        bool     `json:"is_flagged"`
	Severity         string   `json:"severity"`
	FlaggedReasons   []string `json:"flagged_reasons"`
	ConfidenceScore  float64  `json:"confidence_score"`
	SuggestedActions []string `json:"suggested_actions"`
}

func (w wireVerdict) toResult(method, model string) (*triage.AnalysisResult, error) {
	severity := triage.Severity(strings.ToLower(w.Severity))
	if !severity.Valid() {
		return nil, fmt.Errorf("invalid severity %q", w.Severity)
	}
	if w.ConfidenceScore < 0 || w.ConfidenceScore > 1 {
		return nil, fmt.Errorf("confidence %v out of range", w.ConfidenceScore)
	}

	return &triage.AnalysisResult{
		IsFlagged:        w.IsFlagged,
		Severity:         severity,
		FlaggedReasons:   w.FlaggedReasons,
		ConfidenceScore:  w.ConfidenceScore,
		SuggestedActions: w.SuggestedActions,
		Metadata: map[string]string{
			triage.MetaMethod: method,
			"model":           model,
		},
	}, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one, a habit chat models have even when told not to.
func stripFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return []byte(strings.TrimSpace(s))
}
