package table

import (
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/recon/internal/fieldpattern"
	"github.com/agentstation/recon/pkg/jobs"
	"github.com/agentstation/recon/pkg/matcher"
	"github.com/agentstation/recon/pkg/merge"
	"github.com/agentstation/recon/pkg/provenance"
	"github.com/agentstation/recon/pkg/records"
)

func testRecords(t *testing.T) []records.Record {
	t.Helper()
	recs, err := records.FromMaps([]map[string]any{
		{"id": "1", "name": "Ann", "email": "ann@example.com"},
		{"id": "2", "name": "Bob", "age": 41},
		{"name": nil},
	})
	require.NoError(t, err)
	return recs
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "age", "email", "name"}, Columns(testRecords(t)))
	assert.Empty(t, Columns(nil))
}

func TestRecordsToTableData(t *testing.T) {
	data := RecordsToTableData(testRecords(t))

	require.Len(t, data.Rows, 3)
	assert.Equal(t, []string{"1", "-", "ann@example.com", "Ann"}, data.Rows[0])
	assert.Equal(t, []string{"2", "41", "-", "Bob"}, data.Rows[1])
	assert.Equal(t, []string{"-", "-", "-", "-"}, data.Rows[2])
}

func TestMergedToTableData(t *testing.T) {
	recs := testRecords(t)
	score := 0.91
	merged := []merge.Record{
		{Record: recs[0], MergedFrom: []string{"1", "4"}, SimilarityScore: &score},
		merge.Passthrough(recs[1]),
	}

	data := MergedToTableData(merged)
	assert.Equal(t, []string{"Merged From", "Score", "id", "age", "email", "name"}, data.Headers)
	assert.Equal(t, "1 + 4", data.Rows[0][0])
	assert.Equal(t, "0.9100", data.Rows[0][1])
	assert.Equal(t, []string{"-", "-"}, data.Rows[1][:2])
	assert.Equal(t, AlignRight, data.ColumnAlignment[1])
}

func TestCandidatesAndValidations(t *testing.T) {
	cands := []matcher.Candidate{
		{IndexA: 0, IndexB: 2, IDA: "a", IDB: "c", Score: 0.95, Fields: []string{"email", "name"}},
	}
	data := CandidatesToTableData(cands)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, []string{"0", "2", "a", "c", "0.9500", "high", "email, name"}, data.Rows[0])
	assert.Len(t, data.ColumnAlignment, len(data.Headers))

	vals := []matcher.Validation{
		{Candidate: cands[0], Valid: true},
		{Candidate: cands[0], Errors: []string{"low score", "missing email"}},
	}
	data = ValidationsToTableData(vals)
	assert.Equal(t, "yes", data.Rows[0][3])
	assert.Equal(t, "-", data.Rows[0][4])
	assert.Equal(t, "no", data.Rows[1][3])
	assert.Equal(t, "low score; missing email", data.Rows[1][4])
}

func TestJobsToTableData(t *testing.T) {
	created := utc.Time{Time: time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)}
	job := &jobs.Job{
		ID:            "job-1",
		EntityType:    "customer",
		Strategy:      merge.LatestWins,
		Status:        jobs.StatusFailed,
		OriginalCount: 4,
		DedupedCount:  3,
		MatchedPairs:  1,
		Duration:      1500 * time.Millisecond,
		CreatedAt:     created,
		Error:         "boom",
	}

	list := JobsToTableData([]jobs.Summary{job.Summary()})
	require.Len(t, list.Rows, 1)
	assert.Equal(t, "job-1", list.Rows[0][0])
	assert.Equal(t, "4", list.Rows[0][4])
	assert.Equal(t, "1.5s", list.Rows[0][7])
	assert.Equal(t, "2025-03-01 12:30:00", list.Rows[0][8])

	detail := JobToTableData(job)
	assert.Contains(t, detail.Rows, []string{"Error", "boom"})
	assert.Contains(t, detail.Rows, []string{"Matched Pairs", "1"})
}

func TestProvenanceToTableData(t *testing.T) {
	recs := testRecords(t)
	prev := records.String("Anne")
	merged := []merge.Record{
		{
			Record:     recs[0],
			MergedFrom: []string{"1", "4"},
			Provenance: provenance.Fields{
				"name":  {Source: "4", Field: "name", Value: records.String("Ann"), Confidence: 0.9, Reason: provenance.ReasonOverlay, PreviousValue: &prev},
				"email": {Source: "1", Field: "email", Value: records.String("ann@example.com"), Confidence: 0.9, Reason: provenance.ReasonKept},
			},
		},
		merge.Passthrough(recs[1]),
	}

	data := ProvenanceToTableData(merged, nil)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"1+4", "email", "ann@example.com", "-", "1", "90%", "kept"}, data.Rows[0])
	assert.Equal(t, []string{"", "name", "Ann", "Anne", "4", "90%", "overlay"}, data.Rows[1])

	set, err := fieldpattern.CompileSet([]string{"NA*"})
	require.NoError(t, err)
	data = ProvenanceToTableData(merged, set)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "1+4", data.Rows[0][0])
	assert.Equal(t, "name", data.Rows[0][1])
}
