// Package confidence summarizes the similarity scores of accepted matches.
package confidence

import (
	"math"

	"github.com/agentstation/recon/pkg/matcher"
)

// Band boundaries. High is strictly above HighThreshold, low is strictly
// below MediumThreshold, and medium is the closed range between them.
const (
	HighThreshold   = 0.9
	MediumThreshold = 0.7
)

// Band is a coarse confidence bucket.
type Band string

// Confidence bands.
const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Classify returns the band a score falls into.
func Classify(score float64) Band {
	switch {
	case score > HighThreshold:
		return BandHigh
	case score >= MediumThreshold:
		return BandMedium
	default:
		return BandLow
	}
}

// Summary holds descriptive statistics over match scores.
type Summary struct {
	Count       int     `json:"count" yaml:"count"`
	Average     float64 `json:"average_confidence" yaml:"average_confidence"`
	Min         float64 `json:"min_confidence" yaml:"min_confidence"`
	Max         float64 `json:"max_confidence" yaml:"max_confidence"`
	StdDev      float64 `json:"std_confidence" yaml:"std_confidence"`
	HighCount   int     `json:"high_confidence_count" yaml:"high_confidence_count"`
	MediumCount int     `json:"medium_confidence_count" yaml:"medium_confidence_count"`
	LowCount    int     `json:"low_confidence_count" yaml:"low_confidence_count"`
}

// Summarize aggregates candidate scores. Empty input yields the zero Summary.
func Summarize(cands []matcher.Candidate) Summary {
	scores := make([]float64, len(cands))
	for i, c := range cands {
		scores[i] = c.Score
	}
	return SummarizeScores(scores)
}

// SummarizeScores aggregates raw scores. The standard deviation is the
// population form (divides by n).
func SummarizeScores(scores []float64) Summary {
	if len(scores) == 0 {
		return Summary{}
	}

	s := Summary{
		Count: len(scores),
		Min:   scores[0],
		Max:   scores[0],
	}
	var sum float64
	for _, v := range scores {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		switch Classify(v) {
		case BandHigh:
			s.HighCount++
		case BandMedium:
			s.MediumCount++
		default:
			s.LowCount++
		}
	}
	s.Average = sum / float64(len(scores))

	var sq float64
	for _, v := range scores {
		d := v - s.Average
		sq += d * d
	}
	s.StdDev = math.Sqrt(sq / float64(len(scores)))

	return s
}
