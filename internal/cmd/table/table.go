// Package table converts reconciliation results into rows for the CLI's
// table output.
package table

import (
	"slices"
	"strconv"

	"github.com/agentstation/recon/pkg/records"
)

// Align is a column alignment. The zero value leaves it to the renderer.
type Align int

const (
	AlignDefault Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Data is a renderer-agnostic table. It lives apart from the output
// package so result converters do not import the renderer.
type Data struct {
	Headers []string
	Rows    [][]string

	// ColumnAlignment may be shorter than Headers or empty.
	ColumnAlignment []Align
}

// Columns returns the union of field names across recs, sorted, with
// "id" first when present.
func Columns(recs []records.Record) []string {
	seen := make(map[string]bool)
	for _, r := range recs {
		for k := range r.Fields {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		if k != "id" {
			cols = append(cols, k)
		}
	}
	slices.Sort(cols)
	if seen["id"] {
		cols = append([]string{"id"}, cols...)
	}
	return cols
}

// Cell renders a field value for display. Missing and null fields show as "-".
func Cell(r records.Record, field string) string {
	v, ok := r.Get(field)
	if !ok || v.IsNull() {
		return "-"
	}
	return v.Text()
}

// Score formats a similarity score with four decimals.
func Score(s float64) string {
	return strconv.FormatFloat(s, 'f', 4, 64)
}
