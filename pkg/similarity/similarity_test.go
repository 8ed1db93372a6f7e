package similarity

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/records"
)

func rec(fields map[string]string) records.Record {
	vals := make(map[string]records.Value, len(fields))
	for k, v := range fields {
		vals[k] = records.String(v)
	}
	return records.New(0, vals)
}

func newScorer(t *testing.T, opts ...Option) *Scorer {
	t.Helper()
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"john doe", "john doe", 1},
		{"kitten", "sitting", 1 - 3.0/7.0},
		{"abc", "xyz", 0},
		{"", "", 1},
		{"café", "cafe", 0.75},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.a, tt.b), func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestScoreCaseAndWhitespaceInsensitive(t *testing.T) {
	s := newScorer(t)
	a := rec(map[string]string{"name": "john doe", "email": "j@x.com"})
	b := rec(map[string]string{"name": "  John Doe ", "email": "J@X.COM"})
	assert.Equal(t, 1.0, s.Score(a, b, []string{"name", "email"}, nil))
}

func TestScoreSkipsMissingAndEmptyFields(t *testing.T) {
	s := newScorer(t)
	a := rec(map[string]string{"name": "Alice", "email": "a@x.com", "phone": ""})
	b := rec(map[string]string{"name": "Alice", "phone": "555"})

	// Only name contributes.
	assert.Equal(t, 1.0, s.Score(a, b, []string{"name", "email", "phone"}, nil))

	nullPhone := records.New(0, map[string]records.Value{"phone": records.Null()})
	assert.Equal(t, 0.0, s.Score(nullPhone, b, []string{"phone"}, nil))
}

func TestScoreNoContributingFields(t *testing.T) {
	s := newScorer(t)
	a := rec(map[string]string{"name": "Alice"})
	b := rec(map[string]string{"email": "a@x.com"})
	assert.Equal(t, 0.0, s.Score(a, b, []string{"name", "email"}, nil))
	assert.Equal(t, 0.0, s.Score(a, b, nil, nil))
}

func TestScoreWeighted(t *testing.T) {
	s := newScorer(t)
	a := rec(map[string]string{"name": "abcd", "email": "same"})
	b := rec(map[string]string{"name": "wxyz", "email": "same"})
	fields := []string{"name", "email"}

	assert.InDelta(t, 0.5, s.Score(a, b, fields, nil), 1e-9)
	assert.InDelta(t, 0.3/0.7, s.Score(a, b, fields, DefaultWeights()), 1e-9)

	// Zero weight drops the field entirely.
	assert.Equal(t, 1.0, s.Score(a, b, fields, map[string]float64{"name": 0, "email": 1}))

	// Unlisted fields weigh 1.0 once any weight is given.
	assert.InDelta(t, 2.0/3.0, s.Score(a, b, fields, map[string]float64{"name": 0.5}), 1e-9)
}

func TestScoreExtremeWeights(t *testing.T) {
	s := newScorer(t)
	a := rec(map[string]string{"name": "John Smith", "email": "john@example.com"})
	b := rec(map[string]string{"name": "John Smith", "email": "john@example.com"})
	fields := []string{"name", "email"}

	huge := map[string]float64{"name": 1e308, "email": 1e308}
	assert.Equal(t, 1.0, s.Score(a, b, fields, huge))

	c := rec(map[string]string{"name": "abcd", "email": "john@example.com"})
	d := rec(map[string]string{"name": "wxyz", "email": "john@example.com"})
	assert.InDelta(t, 0.5, s.Score(c, d, fields, huge), 1e-9)
	assert.InDelta(t, 0.25, s.Score(c, d, fields, map[string]float64{"name": 1.5e308, "email": 0.5e308}), 1e-9)

	// Weights that never pass validation still yield a score in range.
	for _, w := range []float64{math.Inf(1), math.NaN()} {
		score := s.Score(a, b, fields, map[string]float64{"name": w})
		assert.False(t, math.IsNaN(score))
		assert.Equal(t, 1.0, score)
	}
}

func TestScoreNumbers(t *testing.T) {
	s := newScorer(t)
	a := records.New(0, map[string]records.Value{"age": records.Number(30)})
	b := records.New(1, map[string]records.Value{"age": records.String("30")})
	assert.Equal(t, 1.0, s.Score(a, b, []string{"age"}, nil))
}

func TestScoreSymmetry(t *testing.T) {
	samples := []records.Record{
		rec(map[string]string{"name": "Jonathan Smith", "email": "js@example.com"}),
		rec(map[string]string{"name": "Jon Smith", "email": "jsmith@example.com", "phone": "555-1234"}),
		rec(map[string]string{"name": "J. Smyth", "phone": "5551234"}),
		rec(map[string]string{"email": ""}),
	}
	fields := []string{"name", "email", "phone"}

	for _, size := range []int{0, 4} {
		s := newScorer(t, WithCacheSize(size))
		for i := range samples {
			for j := range samples {
				ab := s.Score(samples[i], samples[j], fields, DefaultWeights())
				ba := s.Score(samples[j], samples[i], fields, DefaultWeights())
				assert.Equal(t, ab, ba, "cache=%d pair (%d,%d)", size, i, j)
				assert.True(t, ab >= 0 && ab <= 1)
				assert.False(t, math.IsNaN(ab))
			}
		}
	}
}

func TestCacheDoesNotChangeResults(t *testing.T) {
	cached := newScorer(t, WithCacheSize(2))
	uncached := newScorer(t, WithCacheSize(0))
	pairs := [][2]string{{"alpha", "alpine"}, {"beta", "betamax"}, {"gamma", "ram"}, {"alpha", "alpine"}}
	for _, p := range pairs {
		assert.Equal(t, uncached.FieldRatio(p[0], p[1]), cached.FieldRatio(p[0], p[1]))
	}
	assert.Equal(t, 2, cached.Len())
	assert.Equal(t, 0, uncached.Len())
}

func TestScorerConcurrentUse(t *testing.T) {
	s := newScorer(t, WithCacheSize(16))
	a := rec(map[string]string{"name": "Maria Garcia"})
	b := rec(map[string]string{"name": "Mariah Garcia"})
	want := s.Score(a, b, []string{"name"}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := s.Score(a, b, []string{"name"}, nil); got != want {
					t.Errorf("Score() = %v, want %v", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 0.8, cfg.MatchThreshold)
	assert.Equal(t, 0.9, cfg.DedupThreshold)

	cfg.MatchThreshold = 1.2
	assert.True(t, errors.IsValidationError(cfg.Validate()))

	cfg = DefaultConfig()
	cfg.DedupThreshold = -0.1
	assert.True(t, errors.IsValidationError(cfg.Validate()))

	cfg = DefaultConfig()
	cfg.Weights = map[string]float64{"name": -1}
	assert.True(t, errors.IsValidationError(cfg.Validate()))
}

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights map[string]float64
		valid   bool
	}{
		{"nil", nil, true},
		{"defaults", DefaultWeights(), true},
		{"zero", map[string]float64{"name": 0}, true},
		{"huge finite", map[string]float64{"name": 1e308, "email": 1e308}, true},
		{"negative", map[string]float64{"name": -0.1}, false},
		{"nan", map[string]float64{"name": math.NaN()}, false},
		{"positive infinity", map[string]float64{"name": math.Inf(1)}, false},
		{"negative infinity", map[string]float64{"email": math.Inf(-1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeights(tt.weights)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}
}
