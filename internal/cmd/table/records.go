package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/pkg/confidence"
	"github.com/agentstation/recon/pkg/jobs"
	"github.com/agentstation/recon/pkg/matcher"
	"github.com/agentstation/recon/pkg/merge"
	"github.com/agentstation/recon/pkg/records"
)

// RecordsToTableData converts records to one row per record, one column
// per field.
func RecordsToTableData(recs []records.Record) Data {
	cols := Columns(recs)
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = Cell(r, c)
		}
		rows = append(rows, row)
	}
	return Data{Headers: cols, Rows: rows}
}

// MergedToTableData converts merge output. Two leading columns show the
// source records and the pair score for merged rows.
func MergedToTableData(recs []merge.Record) Data {
	plain := make([]records.Record, len(recs))
	for i, r := range recs {
		plain[i] = r.Record
	}
	cols := Columns(plain)

	headers := append([]string{"Merged From", "Score"}, cols...)
	align := make([]Align, len(headers))
	align[1] = AlignRight

	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		from, score := "-", "-"
		if r.IsMerged() {
			from = strings.Join(r.MergedFrom, " + ")
		}
		if r.SimilarityScore != nil {
			score = Score(*r.SimilarityScore)
		}
		row := []string{from, score}
		for _, c := range cols {
			row = append(row, Cell(r.Record, c))
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// CandidatesToTableData converts match candidates.
func CandidatesToTableData(cands []matcher.Candidate) Data {
	rows := make([][]string, 0, len(cands))
	for _, c := range cands {
		rows = append(rows, []string{
			strconv.Itoa(c.IndexA),
			strconv.Itoa(c.IndexB),
			c.IDA,
			c.IDB,
			Score(c.Score),
			string(confidence.Classify(c.Score)),
			strings.Join(c.Fields, ", "),
		})
	}
	return Data{
		Headers: []string{"Index 1", "Index 2", "Entity 1", "Entity 2", "Score", "Band", "Fields"},
		Rows:    rows,
		ColumnAlignment: []Align{
			AlignRight, AlignRight, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignLeft,
		},
	}
}

// ValidationsToTableData converts validated matches.
func ValidationsToTableData(vals []matcher.Validation) Data {
	rows := make([][]string, 0, len(vals))
	for _, v := range vals {
		valid := "yes"
		if !v.Valid {
			valid = "no"
		}
		errs := strings.Join(v.Errors, "; ")
		if errs == "" {
			errs = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(v.IndexA),
			strconv.Itoa(v.IndexB),
			Score(v.Score),
			valid,
			errs,
		})
	}
	return Data{
		Headers:         []string{"Index 1", "Index 2", "Score", "Valid", "Errors"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignRight, AlignRight, AlignRight, AlignCenter, AlignLeft},
	}
}

// JobsToTableData converts job summaries.
func JobsToTableData(summaries []jobs.Summary) Data {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.ID,
			string(s.Status),
			s.EntityType,
			string(s.Strategy),
			strconv.Itoa(s.OriginalCount),
			strconv.Itoa(s.DedupedCount),
			strconv.Itoa(s.MatchedPairs),
			s.Duration.String(),
			s.CreatedAt.Time.Format("2006-01-02 15:04:05"),
		})
	}
	return Data{
		Headers: []string{"ID", "Status", "Entity", "Strategy", "Original", "Deduped", "Pairs", "Duration", "Created"},
		Rows:    rows,
		ColumnAlignment: []Align{
			AlignLeft, AlignLeft, AlignLeft, AlignLeft,
			AlignRight, AlignRight, AlignRight, AlignRight, AlignLeft,
		},
	}
}

// JobToTableData converts a job header into property/value rows. The
// output records are rendered separately.
func JobToTableData(job *jobs.Job) Data {
	rows := [][]string{
		{"ID", job.ID},
		{"Status", string(job.Status)},
		{"Entity Type", job.EntityType},
		{"Strategy", job.Strategy.Name()},
		{"Original Records", strconv.Itoa(job.OriginalCount)},
		{"Deduplicated Records", strconv.Itoa(job.DedupedCount)},
		{"Matched Pairs", strconv.Itoa(job.MatchedPairs)},
		{"Output Records", strconv.Itoa(len(job.Records))},
		{"Duration", job.Duration.String()},
		{"Created", job.CreatedAt.Time.Format("2006-01-02 15:04:05 MST")},
	}
	if job.Error != "" {
		rows = append(rows, []string{"Error", job.Error})
	}
	rows = append(rows, ConfidenceToTableData(job.Confidence).Rows...)
	return Data{Headers: []string{"Property", "Value"}, Rows: rows}
}

// ConfidenceToTableData converts a confidence summary into property/value rows.
func ConfidenceToTableData(s confidence.Summary) Data {
	return Data{
		Headers: []string{"Property", "Value"},
		Rows: [][]string{
			{"Average Confidence", Score(s.Average)},
			{"Min / Max Confidence", Score(s.Min) + " / " + Score(s.Max)},
			{"Std Deviation", Score(s.StdDev)},
			{"High / Medium / Low", fmt.Sprintf("%d / %d / %d", s.HighCount, s.MediumCount, s.LowCount)},
		},
	}
}

// StatsToTableData converts service statistics.
func StatsToTableData(s recon.ServiceStats) Data {
	return Data{
		Headers: []string{"Property", "Value"},
		Rows: [][]string{
			{"Total Reconciliations", strconv.Itoa(s.TotalReconciliations)},
			{"Completed", strconv.Itoa(s.Completed)},
			{"Failed", strconv.Itoa(s.Failed)},
			{"Retained Jobs", strconv.Itoa(s.RetainedJobs)},
			{"Uptime", fmt.Sprintf("%.1fs", s.UptimeSeconds)},
			{"Heap Memory", fmt.Sprintf("%.1f MB", s.MemoryUsageMB)},
			{"CPU Usage", fmt.Sprintf("%.1f%%", s.CPUUsagePercent)},
			{"System Memory Used", fmt.Sprintf("%.1f MB", s.SystemMemoryUsedMB)},
			{"Goroutines", strconv.Itoa(s.Goroutines)},
			{"Similarity Cache Entries", strconv.Itoa(s.CacheEntries)},
		},
	}
}
