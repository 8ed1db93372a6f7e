// Package jobs records reconciliation runs. A Store keeps one Job per run
// together with its output, so results can be fetched again by id.
package jobs

import (
	"maps"
	"slices"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/agentstation/recon/pkg/confidence"
	"github.com/agentstation/recon/pkg/merge"
)

// Status is the terminal state of a job.
type Status string

// Job statuses.
const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DefaultEntityType is recorded when a request names none.
const DefaultEntityType = "customer"

// Job is one reconciliation run.
type Job struct {
	ID            string             `json:"reconciliation_id" yaml:"reconciliation_id"`
	EntityType    string             `json:"entity_type" yaml:"entity_type"`
	Strategy      merge.Strategy     `json:"merge_strategy" yaml:"merge_strategy"`
	Status        Status             `json:"status" yaml:"status"`
	OriginalCount int                `json:"original_records" yaml:"original_records"`
	DedupedCount  int                `json:"deduplicated_records" yaml:"deduplicated_records"`
	MatchedPairs  int                `json:"matched_pairs" yaml:"matched_pairs"`
	Records       []merge.Record     `json:"merged_records" yaml:"merged_records"`
	Confidence    confidence.Summary `json:"confidence_scores" yaml:"confidence_scores"`
	Duration      time.Duration      `json:"execution_time" yaml:"execution_time"`
	CreatedAt     utc.Time           `json:"timestamp" yaml:"timestamp"`
	Error         string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewID returns a fresh job id.
func NewID() string {
	return uuid.NewString()
}

// Summary returns the list view of the job.
func (j *Job) Summary() Summary {
	return Summary{
		ID:            j.ID,
		EntityType:    j.EntityType,
		Strategy:      j.Strategy,
		Status:        j.Status,
		OriginalCount: j.OriginalCount,
		DedupedCount:  j.DedupedCount,
		MatchedPairs:  j.MatchedPairs,
		Duration:      j.Duration,
		CreatedAt:     j.CreatedAt,
		Error:         j.Error,
	}
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	if j.Records != nil {
		c.Records = make([]merge.Record, len(j.Records))
		for i, r := range j.Records {
			c.Records[i] = cloneRecord(r)
		}
	}
	return &c
}

func cloneRecord(r merge.Record) merge.Record {
	out := merge.Record{
		Record:     r.Record.Clone(),
		MergedFrom: slices.Clone(r.MergedFrom),
	}
	if r.SimilarityScore != nil {
		s := *r.SimilarityScore
		out.SimilarityScore = &s
	}
	out.Provenance = maps.Clone(r.Provenance)
	return out
}

// Summary is a job without its output records.
type Summary struct {
	ID            string         `json:"reconciliation_id" yaml:"reconciliation_id"`
	EntityType    string         `json:"entity_type" yaml:"entity_type"`
	Strategy      merge.Strategy `json:"merge_strategy" yaml:"merge_strategy"`
	Status        Status         `json:"status" yaml:"status"`
	OriginalCount int            `json:"original_records" yaml:"original_records"`
	DedupedCount  int            `json:"deduplicated_records" yaml:"deduplicated_records"`
	MatchedPairs  int            `json:"matched_pairs" yaml:"matched_pairs"`
	Duration      time.Duration  `json:"execution_time" yaml:"execution_time"`
	CreatedAt     utc.Time       `json:"timestamp" yaml:"timestamp"`
	Error         string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// Page is one slice of the job history.
type Page struct {
	Jobs   []Summary `json:"reconciliations" yaml:"reconciliations"`
	Total  int       `json:"total" yaml:"total"`
	Limit  int       `json:"limit" yaml:"limit"`
	Offset int       `json:"offset" yaml:"offset"`
}

// Counts are totals across the job history.
type Counts struct {
	Total     int `json:"total_reconciliations" yaml:"total_reconciliations"`
	Completed int `json:"completed" yaml:"completed"`
	Failed    int `json:"failed" yaml:"failed"`
}
