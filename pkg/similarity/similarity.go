// Package similarity scores how alike two records are over a chosen set of
// fields. Each field is compared with a normalized Levenshtein ratio and
// the per-field ratios are combined into a weighted mean.
package similarity

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentstation/recon/pkg/records"
)

// DefaultCacheSize is the number of field-pair ratios kept by default.
const DefaultCacheSize = 10000

// Scorer computes record similarity. It is safe for concurrent use.
type Scorer struct {
	cache *lru.Cache[pair, float64]
}

type pair struct {
	a, b string
}

// Option configures a Scorer.
type Option func(*options) error

type options struct {
	cacheSize int
}

// WithCacheSize bounds the field-ratio cache. Zero disables caching.
func WithCacheSize(size int) Option {
	return func(o *options) error {
		if size < 0 {
			size = 0
		}
		o.cacheSize = size
		return nil
	}
}

// New creates a Scorer.
func New(opts ...Option) (*Scorer, error) {
	o := &options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	s := &Scorer{}
	if o.cacheSize > 0 {
		cache, err := lru.New[pair, float64](o.cacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// Score returns the weighted similarity of a and b over fields, in [0, 1].
//
// A field counts only when both records hold a non-empty value for it.
// When no field counts the score is 0. With a nil or empty weights map
// every field weighs 1.0.
func (s *Scorer) Score(a, b records.Record, fields []string, weights map[string]float64) float64 {
	// Weights are scaled by the largest so huge ones cannot overflow the sums.
	var scale float64
	for _, field := range fields {
		scale = max(scale, weightOf(field, weights))
	}
	if scale == 0 {
		return 0
	}

	var total, weightSum float64
	for _, field := range fields {
		w := weightOf(field, weights) / scale
		if w == 0 {
			continue
		}

		va, ok := a.Get(field)
		if !ok {
			continue
		}
		vb, ok := b.Get(field)
		if !ok {
			continue
		}
		ta, tb := Normalize(va.Text()), Normalize(vb.Text())
		if va.IsNull() || vb.IsNull() || ta == "" || tb == "" {
			continue
		}

		total += w * s.ratio(ta, tb)
		weightSum += w
	}

	if weightSum == 0 {
		return 0
	}
	score := total / weightSum
	if score > 1 {
		return 1
	}
	return score
}

// weightOf returns the weight of field, 1.0 when weights does not list it.
// Zero, negative and non-finite weights exclude the field.
func weightOf(field string, weights map[string]float64) float64 {
	w, ok := weights[field]
	if !ok {
		return 1
	}
	if w > 0 && !math.IsInf(w, 1) {
		return w
	}
	return 0
}

// FieldRatio compares two raw field values after normalization.
func (s *Scorer) FieldRatio(a, b string) float64 {
	return s.ratio(Normalize(a), Normalize(b))
}

func (s *Scorer) ratio(a, b string) float64 {
	if s == nil || s.cache == nil {
		return Ratio(a, b)
	}
	key := pair{a, b}
	if b < a {
		key = pair{b, a}
	}
	if r, ok := s.cache.Get(key); ok {
		return r
	}
	r := Ratio(key.a, key.b)
	s.cache.Add(key, r)
	return r
}

// Ratio is 1 - levenshtein(a, b) / max(len(a), len(b)) measured in runes.
// Inputs are compared as given; callers normalize first.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// Normalize trims surrounding whitespace and lowercases.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Len reports how many ratios are cached.
func (s *Scorer) Len() int {
	if s == nil || s.cache == nil {
		return 0
	}
	return s.cache.Len()
}
