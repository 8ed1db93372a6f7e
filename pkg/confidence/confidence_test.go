package confidence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/recon/pkg/matcher"
)

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize(nil)
	assert.Equal(t, Summary{}, got)
	assert.Equal(t, 0, got.Count)

	assert.Equal(t, Summary{}, Summarize([]matcher.Candidate{}))
}

func TestSummarize(t *testing.T) {
	cands := []matcher.Candidate{{Score: 0.95}, {Score: 0.9}, {Score: 0.7}, {Score: 0.65}}
	got := Summarize(cands)

	assert.Equal(t, 4, got.Count)
	assert.InDelta(t, 0.8, got.Average, 1e-9)
	assert.Equal(t, 0.65, got.Min)
	assert.Equal(t, 0.95, got.Max)

	// population variance: (0.15² + 0.1² + 0.1² + 0.15²) / 4
	want := math.Sqrt((0.0225 + 0.01 + 0.01 + 0.0225) / 4)
	assert.InDelta(t, want, got.StdDev, 1e-9)

	assert.Equal(t, 1, got.HighCount)
	assert.Equal(t, 2, got.MediumCount)
	assert.Equal(t, 1, got.LowCount)
}

func TestSummarizeSingle(t *testing.T) {
	got := SummarizeScores([]float64{0.82})
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, 0.82, got.Average)
	assert.Equal(t, 0.0, got.StdDev)
	assert.Equal(t, 1, got.MediumCount)
}

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Band
	}{
		{1.0, BandHigh},
		{0.9000001, BandHigh},
		{0.9, BandMedium},
		{0.7, BandMedium},
		{0.6999999, BandLow},
		{0, BandLow},
	}
	for _, tt := range tests {
		if got := Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
