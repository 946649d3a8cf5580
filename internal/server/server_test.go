package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clearpath/triage/internal/triage"
)

// fakeLookup serves canned result records by submission ID.
type fakeLookup struct {
	recs map[string]*triage.ResultRecord
	err  error
}

func (f *fakeLookup) LatestBySubmission(_ context.Context, submissionID string) (*triage.ResultRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.recs[submissionID]
	if !ok {
		return nil, fmt.Errorf("results: latest by submission: %w", sql.ErrNoRows)
	}
	return rec, nil
}

func newTestServer(t *testing.T, acc *triage.BatchAccumulator, lookup ResultLookup) *httptest.Server {
	t.Helper()
	s := New(":0", acc, lookup)
	return httptest.NewServer(s.http.Handler)
}

func TestStatus_ReportsQueueState(t *testing.T) {
	acc := triage.NewBatchAccumulator(triage.DefaultBatchConfig())
	acc.Append(triage.BatchItem{Content: strings.Repeat("x", 400)}) // 100 tokens
	acc.Append(triage.BatchItem{Content: strings.Repeat("y", 40)})  // 10 tokens

	srv := newTestServer(t, acc, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if status.QueueLength != 2 {
		t.Errorf("QueueLength = %d, want 2", status.QueueLength)
	}
	if status.EstimatedTokens != 110 {
		t.Errorf("EstimatedTokens = %d, want 110", status.EstimatedTokens)
	}
	if status.SecondsSinceLastFlush < 0 || status.SecondsSinceLastFlush > 60 {
		t.Errorf("SecondsSinceLastFlush = %v, want a small positive value", status.SecondsSinceLastFlush)
	}
	if status.Config.MaxItems != triage.DefaultMaxItems {
		t.Errorf("Config.MaxItems = %d, want default", status.Config.MaxItems)
	}
	if status.Config.MaxBatchAge != 2*time.Hour {
		t.Errorf("Config.MaxBatchAge = %v, want 2h", status.Config.MaxBatchAge)
	}
}

func TestStatus_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, triage.NewBatchAccumulator(triage.DefaultBatchConfig()), nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestLatestResult_Found(t *testing.T) {
	lookup := &fakeLookup{recs: map[string]*triage.ResultRecord{
		"sub-1": {
			SubmissionID: "sub-1",
			ActorID:      "actor-1",
			Result: triage.AnalysisResult{
				IsFlagged: true,
				Severity:  triage.SeverityHigh,
				Metadata:  map[string]string{triage.MetaMethod: triage.MethodBatchAI},
			},
		},
	}}
	srv := newTestServer(t, triage.NewBatchAccumulator(triage.DefaultBatchConfig()), lookup)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/results/latest?submission_id=sub-1")
	if err != nil {
		t.Fatalf("GET /results/latest: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var rec triage.ResultRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.SubmissionID != "sub-1" || !rec.Result.IsFlagged || rec.Result.Severity != triage.SeverityHigh {
		t.Errorf("record = %+v, want the stored flagged result", rec)
	}
}

func TestLatestResult_Errors(t *testing.T) {
	srv := newTestServer(t, triage.NewBatchAccumulator(triage.DefaultBatchConfig()), &fakeLookup{})
	defer srv.Close()

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown submission", "/results/latest?submission_id=nope", http.StatusNotFound},
		{"missing parameter", "/results/latest", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestLatestResult_NotMountedWithoutLookup(t *testing.T) {
	srv := newTestServer(t, triage.NewBatchAccumulator(triage.DefaultBatchConfig()), nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/results/latest?submission_id=sub-1")
	if err != nil {
		t.Fatalf("GET /results/latest: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, triage.NewBatchAccumulator(triage.DefaultBatchConfig()), nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	srv := newTestServer(t, triage.NewBatchAccumulator(triage.DefaultBatchConfig()), nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
