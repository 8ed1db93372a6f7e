// Package provenance records which source record supplied each field of a
// merged record, and why.
package provenance

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/agentstation/recon/pkg/records"
)

// Reason explains how a merged field got its value.
type Reason string

// Merge reasons.
const (
	// ReasonKept means the first record's value survived unchanged.
	ReasonKept Reason = "kept"
	// ReasonOverlay means the second record's value replaced the first's.
	ReasonOverlay Reason = "overlay"
	// ReasonFilled means the second record filled a gap in the first.
	ReasonFilled Reason = "filled"
	// ReasonConcatenated means both differing values were joined.
	ReasonConcatenated Reason = "concatenated"
)

// Provenance tracks the origin of one merged field value.
type Provenance struct {
	Source        string         `json:"source" yaml:"source"` // contributing record id(s)
	Field         string         `json:"field" yaml:"field"`
	Value         records.Value  `json:"value" yaml:"value"`
	Confidence    float64        `json:"confidence" yaml:"confidence"` // pair similarity score
	Reason        Reason         `json:"reason" yaml:"reason"`
	PreviousValue *records.Value `json:"previous_value,omitempty" yaml:"previous_value,omitempty"`
}

// Fields maps a field name to its provenance within one merged record.
type Fields map[string]Provenance

// Map tracks provenance for many merged records.
type Map map[string][]Provenance // key is "recordID:field"

// Tracker collects provenance during a merge.
type Tracker interface {
	// Track records provenance for a field of a merged record
	Track(recordID, field string, p Provenance)

	// FindByField retrieves provenance for a specific field
	FindByField(recordID, field string) []Provenance

	// FindByRecord retrieves all provenance for a merged record
	FindByRecord(recordID string) map[string][]Provenance

	// Map returns a copy of everything tracked
	Map() Map

	// Enabled reports whether tracking is on
	Enabled() bool
}

type tracker struct {
	provenance Map
	enabled    bool
}

// NewTracker creates a new provenance tracker. A disabled tracker drops
// every call.
func NewTracker(enabled bool) Tracker {
	return &tracker{
		provenance: make(Map),
		enabled:    enabled,
	}
}

func (p *tracker) Enabled() bool {
	return p.enabled
}

func (p *tracker) Track(recordID, field string, history Provenance) {
	if !p.enabled {
		return
	}
	key := makeKey(recordID, field)
	p.provenance[key] = append(p.provenance[key], history)
}

func (p *tracker) FindByField(recordID, field string) []Provenance {
	if !p.enabled {
		return nil
	}
	return p.provenance[makeKey(recordID, field)]
}

func (p *tracker) FindByRecord(recordID string) map[string][]Provenance {
	if !p.enabled {
		return nil
	}

	result := make(map[string][]Provenance)
	prefix := recordID + ":"
	for key, info := range p.provenance {
		if field, found := strings.CutPrefix(key, prefix); found {
			result[field] = info
		}
	}
	return result
}

func (p *tracker) Map() Map {
	if !p.enabled {
		return nil
	}
	result := make(Map, len(p.provenance))
	for k, v := range p.provenance {
		result[k] = slices.Clone(v)
	}
	return result
}

func makeKey(recordID, field string) string {
	return recordID + ":" + field
}

// splitKey cuts at the last colon since record ids may contain colons.
func splitKey(key string) (recordID, field string, ok bool) {
	i := strings.LastIndex(key, ":")
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// Report is a human-readable view of a Map.
type Report struct {
	Records map[string]map[string][]Provenance // record id -> field -> history
}

// GenerateReport groups a Map by merged record.
func GenerateReport(m Map) *Report {
	report := &Report{Records: make(map[string]map[string][]Provenance)}
	for key, infos := range m {
		id, field, ok := splitKey(key)
		if !ok {
			continue
		}
		fields, exists := report.Records[id]
		if !exists {
			fields = make(map[string][]Provenance)
			report.Records[id] = fields
		}
		fields[field] = infos
	}
	return report
}

// String renders the report with records and fields in sorted order.
func (r *Report) String() string {
	var sb strings.Builder

	sb.WriteString("Provenance Report\n")
	sb.WriteString("=================\n\n")

	for _, id := range slices.Sorted(maps.Keys(r.Records)) {
		fields := r.Records[id]
		sb.WriteString(fmt.Sprintf("record: %s\n", id))
		sb.WriteString(strings.Repeat("-", 40))
		sb.WriteString("\n")

		for _, field := range slices.Sorted(maps.Keys(fields)) {
			for _, info := range fields[field] {
				sb.WriteString(fmt.Sprintf("  %s: %q from %s (%s, %.2f)\n",
					field, info.Value.Text(), info.Source, info.Reason, info.Confidence))
				if info.PreviousValue != nil {
					sb.WriteString(fmt.Sprintf("    previous: %q\n", info.PreviousValue.Text()))
				}
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
