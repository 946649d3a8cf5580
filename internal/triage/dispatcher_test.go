package triage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func flaggedRecord(submissionID string) ResultRecord {
	return ResultRecord{
		SubmissionID: submissionID,
		ActorID:      "actor-1",
		Content:      "content",
		Context:      "response",
		Timestamp:    time.Now(),
		Result: AnalysisResult{
			IsFlagged:       true,
			Severity:        SeverityHigh,
			FlaggedReasons:  []string{"threat language"},
			ConfidenceScore: 0.9,
			Metadata:        map[string]string{MetaMethod: MethodBatchAI},
		},
	}
}

func clearedRecord(submissionID string) ResultRecord {
	rec := flaggedRecord(submissionID)
	rec.Result.IsFlagged = false
	rec.Result.Severity = SeverityLow
	rec.Result.FlaggedReasons = nil
	return rec
}

func TestDispatch_FlaggedPersistsAndAlertsOnce(t *testing.T) {
	persister := &fakePersister{}
	alerter := &fakeAlerter{}
	d := NewDispatcher(persister, alerter, false)

	d.Dispatch(context.Background(), flaggedRecord("sub-1"))

	if got := persister.records(); len(got) != 1 {
		t.Errorf("persist calls = %d, want 1", len(got))
	}
	if got := alerter.records(); len(got) != 1 {
		t.Errorf("alert calls = %d, want 1", len(got))
	}
}

func TestDispatch_ClearedRespectsTrackCleared(t *testing.T) {
	tests := []struct {
		name         string
		trackCleared bool
		wantPersists int
	}{
		{"tracking disabled", false, 0},
		{"tracking enabled", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			persister := &fakePersister{}
			alerter := &fakeAlerter{}
			d := NewDispatcher(persister, alerter, tt.trackCleared)

			d.Dispatch(context.Background(), clearedRecord("sub-1"))

			if got := persister.records(); len(got) != tt.wantPersists {
				t.Errorf("persist calls = %d, want %d", len(got), tt.wantPersists)
			}
			if got := alerter.records(); len(got) != 0 {
				t.Errorf("alert calls = %d for cleared result, want 0", len(got))
			}
		})
	}
}

// Error markers are always persisted: they are the only trace of a lost
// batch item.
func TestDispatch_ErrorMarkerAlwaysPersisted(t *testing.T) {
	persister := &fakePersister{}
	d := NewDispatcher(persister, &fakeAlerter{}, false)

	rec := clearedRecord("sub-1")
	rec.Result.Metadata["error"] = "batch analysis call failed"
	d.Dispatch(context.Background(), rec)

	if got := persister.records(); len(got) != 1 {
		t.Errorf("persist calls = %d for error marker, want 1", len(got))
	}
}

// A persist failure must not suppress the alert, and vice versa.
func TestDispatch_CollaboratorFailuresIndependent(t *testing.T) {
	persister := &fakePersister{err: errors.New("db down")}
	alerter := &fakeAlerter{err: errors.New("nats down")}
	d := NewDispatcher(persister, alerter, false)

	d.Dispatch(context.Background(), flaggedRecord("sub-1"))

	if got := alerter.records(); len(got) != 1 {
		t.Errorf("alert attempts = %d despite persist failure, want 1", len(got))
	}

	// And dispatching the next record still works.
	d.Dispatch(context.Background(), flaggedRecord("sub-2"))
	if got := persister.records(); len(got) != 2 {
		t.Errorf("persist attempts = %d, want 2", len(got))
	}
}

func TestDispatch_NilCollaborators(t *testing.T) {
	d := NewDispatcher(nil, nil, true)

	// Must not panic.
	d.Dispatch(context.Background(), flaggedRecord("sub-1"))
	d.Dispatch(context.Background(), clearedRecord("sub-2"))
}
