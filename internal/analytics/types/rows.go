package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// MatchRunRow mirrors the match_runs BigQuery schema. One row is written per
// terminal job attempt.
type MatchRunRow struct {
	JobID          string             `bigquery:"job_id"`
	Kind           string             `bigquery:"kind"`
	State          string             `bigquery:"state"`
	RequestID      *string            `bigquery:"request_id"`
	Attempts       int64              `bigquery:"attempts"`
	EnqueuedAt     time.Time          `bigquery:"enqueued_at"`
	StartedAt      *time.Time         `bigquery:"started_at"`
	FinishedAt     time.Time          `bigquery:"finished_at"`
	DurationMs     int64              `bigquery:"duration_ms"`
	NewMatches     int64              `bigquery:"new_matches"`
	UpdatedMatches int64              `bigquery:"updated_matches"`
	Deactivated    int64              `bigquery:"deactivated"`
	Processed      int64              `bigquery:"processed"`
	Failed         int64              `bigquery:"failed"`
	TopScore       *float64           `bigquery:"top_score"`
	ErrorCode      *string            `bigquery:"error_code"`
	ErrorMessage   *string            `bigquery:"error_message"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}
