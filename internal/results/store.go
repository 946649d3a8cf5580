// Package results provides PostgreSQL-backed storage for analysis results.
// Each row captures the submission, the actor, and the full verdict
// (reasons and suggested actions as JSONB) for moderator review and audit.
// Inserts are append-only: a superseding verdict for the same submission is
// a new row, never an update, so the audit trail keeps every emission.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/clearpath/triage/internal/triage"
)

// Store manages analysis results in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a result store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("results: open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("results: ping: %w", err)
	}
	return db, nil
}

// Persist inserts one analysis result. Safe to call multiple times for the
// same submission ID; callers reading results should prefer the latest row
// whose analysis method is not a fallback.
func (s *Store) Persist(ctx context.Context, rec triage.ResultRecord) error {
	if !rec.Result.Severity.Valid() {
		return fmt.Errorf("results: invalid severity %q", rec.Result.Severity)
	}

	reasons, err := encodeStringList(rec.Result.FlaggedReasons)
	if err != nil {
		return fmt.Errorf("results: marshal reasons: %w", err)
	}
	actions, err := encodeStringList(rec.Result.SuggestedActions)
	if err != nil {
		return fmt.Errorf("results: marshal actions: %w", err)
	}
	metadata, err := json.Marshal(rec.Result.Metadata)
	if err != nil {
		return fmt.Errorf("results: marshal metadata: %w", err)
	}

	const query = `
		INSERT INTO safety_results
			(submission_id, actor_id, context, content, is_flagged, severity,
			 confidence_score, flagged_reasons, suggested_actions, analysis_metadata, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.db.ExecContext(ctx, query,
		rec.SubmissionID,
		rec.ActorID,
		rec.Context,
		rec.Content,
		rec.Result.IsFlagged,
		string(rec.Result.Severity),
		rec.Result.ConfidenceScore,
		reasons,
		actions,
		metadata,
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("results: insert: %w", err)
	}
	return nil
}

// LatestBySubmission returns the most recent result row for a submission,
// or sql.ErrNoRows if none exists.
func (s *Store) LatestBySubmission(ctx context.Context, submissionID string) (*triage.ResultRecord, error) {
	const query = `
		SELECT submission_id, actor_id, context, content, is_flagged, severity,
		       confidence_score, flagged_reasons, suggested_actions, analysis_metadata, analyzed_at
		FROM safety_results
		WHERE submission_id = $1
		ORDER BY analyzed_at DESC, id DESC
		LIMIT 1`

	var (
		rec      triage.ResultRecord
		severity string
		reasons  []byte
		actions  []byte
		metadata []byte
	)
	err := s.db.QueryRowContext(ctx, query, submissionID).Scan(
		&rec.SubmissionID,
		&rec.ActorID,
		&rec.Context,
		&rec.Content,
		&rec.Result.IsFlagged,
		&severity,
		&rec.Result.ConfidenceScore,
		&reasons,
		&actions,
		&metadata,
		&rec.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("results: latest by submission: %w", err)
	}

	rec.Result.Severity = triage.Severity(severity)
	if rec.Result.FlaggedReasons, err = decodeStringList(reasons); err != nil {
		return nil, fmt.Errorf("results: unmarshal reasons: %w", err)
	}
	if rec.Result.SuggestedActions, err = decodeStringList(actions); err != nil {
		return nil, fmt.Errorf("results: unmarshal actions: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Result.Metadata); err != nil {
			return nil, fmt.Errorf("results: unmarshal metadata: %w", err)
		}
	}
	return &rec, nil
}

// CountFlaggedSince returns how many flagged results an actor accumulated
// within the given window. Used by reviewer tooling to spot repeat signals.
func (s *Store) CountFlaggedSince(ctx context.Context, actorID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM safety_results
		WHERE actor_id = $1
		  AND is_flagged = TRUE
		  AND analyzed_at >= NOW() - $2::interval`

	var count int
	err := s.db.QueryRowContext(ctx, query, actorID, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("results: count flagged: %w", err)
	}
	return count, nil
}

// encodeStringList marshals an ordered string list for a JSONB column.
// nil encodes as an empty array so the round trip is exact either way.
func encodeStringList(list []string) ([]byte, error) {
	if list == nil {
		list = []string{}
	}
	return json.Marshal(list)
}

// decodeStringList is the inverse of encodeStringList.
func decodeStringList(data []byte) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}
