package table

import (
	"fmt"
	"maps"
	"slices"

	"github.com/agentstation/recon/internal/fieldpattern"
	"github.com/agentstation/recon/pkg/merge"
	"github.com/agentstation/recon/pkg/provenance"
	"github.com/agentstation/recon/pkg/records"
)

// ProvenanceToTableData converts the provenance of merged records into a
// single table, limited to the fields in the set. A nil set shows every
// field.
func ProvenanceToTableData(recs []merge.Record, fields *fieldpattern.Set) Data {
	var rows [][]string

	for _, r := range recs {
		if len(r.Provenance) == 0 {
			continue
		}
		names := fields.Filter(slices.Sorted(maps.Keys(r.Provenance)))
		for i, f := range names {
			// Record key only on its first row
			key := ""
			if i == 0 {
				key = r.Key()
			}
			p := r.Provenance[f]
			rows = append(rows, []string{
				key,
				f,
				formatValue(&p.Value),
				formatValue(p.PreviousValue),
				p.Source,
				formatConfidence(p),
				string(p.Reason),
			})
		}
	}

	return Data{
		Headers: []string{"Record", "Field", "Value", "Previous", "Source", "Confidence", "Reason"},
		Rows:    rows,
		ColumnAlignment: []Align{
			AlignLeft,  // Record
			AlignLeft,  // Field
			AlignLeft,  // Value
			AlignLeft,  // Previous
			AlignLeft,  // Source
			AlignRight, // Confidence
			AlignLeft,  // Reason
		},
	}
}

func formatValue(v *records.Value) string {
	switch {
	case v == nil:
		return "-"
	case v.IsNull():
		return "<null>"
	case v.IsEmpty():
		return "<empty>"
	}
	return v.Text()
}

func formatConfidence(p provenance.Provenance) string {
	return fmt.Sprintf("%.0f%%", p.Confidence*100)
}
