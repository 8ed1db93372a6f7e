package provenance

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/recon/pkg/records"
)

func TestTrackerDisabled(t *testing.T) {
	tr := NewTracker(false)
	tr.Track("a+b", "name", Provenance{Field: "name"})

	assert.False(t, tr.Enabled())
	assert.Nil(t, tr.FindByField("a+b", "name"))
	assert.Nil(t, tr.FindByRecord("a+b"))
	assert.Nil(t, tr.Map())
}

func TestTrackerFind(t *testing.T) {
	prev := records.String("Bob")
	name := Provenance{
		Source:        "2",
		Field:         "name",
		Value:         records.String("Robert"),
		Confidence:    0.92,
		Reason:        ReasonOverlay,
		PreviousValue: &prev,
	}
	email := Provenance{
		Source:     "1",
		Field:      "email",
		Value:      records.String("bob@example.com"),
		Confidence: 0.92,
		Reason:     ReasonKept,
	}

	tr := NewTracker(true)
	tr.Track("1+2", "name", name)
	tr.Track("1+2", "email", email)
	tr.Track("3+4", "name", email)

	if diff := cmp.Diff([]Provenance{name}, tr.FindByField("1+2", "name")); diff != "" {
		t.Errorf("FindByField mismatch (-want +got):\n%s", diff)
	}

	want := map[string][]Provenance{"name": {name}, "email": {email}}
	if diff := cmp.Diff(want, tr.FindByRecord("1+2")); diff != "" {
		t.Errorf("FindByRecord mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackerMapIsCopy(t *testing.T) {
	tr := NewTracker(true)
	tr.Track("1+2", "name", Provenance{Field: "name", Value: records.String("a")})

	m := tr.Map()
	m["1+2:name"][0].Source = "mutated"
	m["1+2:other"] = nil

	assert.Empty(t, tr.FindByField("1+2", "name")[0].Source)
	assert.Len(t, tr.Map(), 1)
}

func TestReport(t *testing.T) {
	prev := records.Null()
	m := Map{
		"b+c:email":  {{Source: "c", Value: records.String("x@y.z"), Reason: ReasonFilled, Confidence: 0.8, PreviousValue: &prev}},
		"a:1+2:name": {{Source: "2", Value: records.String("Ann"), Reason: ReasonKept, Confidence: 1}},
		"malformed":  {{Source: "z"}},
	}

	report := GenerateReport(m)
	require.Len(t, report.Records, 2)
	assert.Contains(t, report.Records, "a:1+2")

	out := report.String()
	assert.Contains(t, out, "record: a:1+2\n")
	assert.Contains(t, out, `name: "Ann" from 2 (kept, 1.00)`)
	assert.Contains(t, out, `email: "x@y.z" from c (filled, 0.80)`)
	assert.Contains(t, out, "previous: \"\"")
	assert.Less(t, strings.Index(out, "record: a:1+2"), strings.Index(out, "record: b+c"))
}
