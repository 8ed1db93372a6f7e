package matcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/records"
)

func people(rows ...map[string]string) []records.Record {
	out := make([]records.Record, len(rows))
	for i, row := range rows {
		fields := make(map[string]records.Value, len(row))
		for k, v := range row {
			fields[k] = records.String(v)
		}
		out[i] = records.New(i, fields)
	}
	return out
}

func newMatcher(t *testing.T, opts ...Option) *Matcher {
	t.Helper()
	m, err := New(opts...)
	require.NoError(t, err)
	return m
}

func TestFindMatchesBasic(t *testing.T) {
	recs := people(
		map[string]string{"id": "1", "name": "john doe", "email": "j@x.com"},
		map[string]string{"id": "2", "name": "John Doe", "email": "j@x.com"},
		map[string]string{"id": "3", "name": "Maria Garcia", "email": "m@y.com"},
	)

	got, err := newMatcher(t).FindMatches(context.Background(), recs, []string{"name", "email"}, 0.8)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].IndexA)
	assert.Equal(t, 1, got[0].IndexB)
	assert.Equal(t, "1", got[0].IDA)
	assert.Equal(t, "2", got[0].IDB)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, []string{"name", "email"}, got[0].Fields)
}

func TestFindMatchesIDFallsBackToIndex(t *testing.T) {
	recs := people(
		map[string]string{"name": "Alice"},
		map[string]string{"name": "alice"},
	)
	got, err := newMatcher(t).FindMatches(context.Background(), recs, []string{"name"}, 0.8)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0", got[0].IDA)
	assert.Equal(t, "1", got[0].IDB)
}

func TestFindMatchesNoFields(t *testing.T) {
	recs := people(map[string]string{"name": "A"}, map[string]string{"name": "A"})
	got, err := newMatcher(t).FindMatches(context.Background(), recs, nil, 0.5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindMatchesOrderedAndDeterministic(t *testing.T) {
	var rows []map[string]string
	for i := 0; i < 60; i++ {
		rows = append(rows, map[string]string{"name": fmt.Sprintf("customer %d", i%7)})
	}
	recs := people(rows...)

	first, err := newMatcher(t, WithWorkers(8)).FindMatches(context.Background(), recs, []string{"name"}, 0.9)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	for k := 1; k < len(first); k++ {
		prev, cur := first[k-1], first[k]
		ordered := prev.IndexA < cur.IndexA || (prev.IndexA == cur.IndexA && prev.IndexB < cur.IndexB)
		assert.True(t, ordered, "candidate %d out of order", k)
	}
	for _, c := range first {
		assert.Less(t, c.IndexA, c.IndexB)
	}

	serial, err := newMatcher(t, WithWorkers(1)).FindMatches(context.Background(), recs, []string{"name"}, 0.9)
	require.NoError(t, err)
	assert.Equal(t, first, serial)
}

func TestThresholdMonotonicity(t *testing.T) {
	recs := people(
		map[string]string{"name": "Jonathan Smith"},
		map[string]string{"name": "Jonathon Smith"},
		map[string]string{"name": "Jon Smith"},
		map[string]string{"name": "John Smithe"},
		map[string]string{"name": "Joan Smith"},
	)
	m := newMatcher(t)

	prev := -1
	for _, threshold := range []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.0} {
		got, err := m.FindMatches(context.Background(), recs, []string{"name"}, threshold)
		require.NoError(t, err)
		if prev >= 0 {
			assert.GreaterOrEqual(t, len(got), prev, "lowering threshold to %v lost matches", threshold)
		}
		prev = len(got)
	}
	assert.Equal(t, 10, prev, "threshold 0 accepts every pair")
}

func TestBatchTooLarge(t *testing.T) {
	recs := make([]records.Record, 11)
	for i := range recs {
		recs[i] = records.New(i, nil)
	}

	_, err := newMatcher(t, WithMaxBatchSize(10)).FindMatches(context.Background(), recs, []string{"name"}, 0.8)
	require.Error(t, err)
	assert.True(t, errors.IsBatchTooLarge(err))

	_, err = newMatcher(t, WithMaxBatchSize(11)).FindMatches(context.Background(), recs, []string{"name"}, 0.8)
	assert.NoError(t, err)
}

func TestInvalidThreshold(t *testing.T) {
	_, err := newMatcher(t).FindMatches(context.Background(), nil, []string{"name"}, 1.5)
	assert.True(t, errors.IsValidationError(err))
}

func TestFindMatchesDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	recs := people(
		map[string]string{"name": "A"},
		map[string]string{"name": "A"},
		map[string]string{"name": "A"},
	)
	got, err := newMatcher(t).FindMatches(ctx, recs, []string{"name"}, 0.5)
	assert.Nil(t, got)
	assert.True(t, errors.IsTimeout(err))
}

func TestFindMatchesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recs := people(map[string]string{"name": "A"}, map[string]string{"name": "A"})
	got, err := newMatcher(t).FindMatches(ctx, recs, []string{"name"}, 0.5)
	assert.Nil(t, got)
	assert.True(t, errors.IsCanceled(err))
}

func TestFindWeighted(t *testing.T) {
	recs := people(
		map[string]string{"name": "abcd", "email": "same@x.com"},
		map[string]string{"name": "wxyz", "email": "same@x.com"},
	)
	m := newMatcher(t)
	q := Query{Fields: []string{"name", "email"}, Threshold: 0.8}

	got, err := m.Find(context.Background(), recs, q)
	require.NoError(t, err)
	assert.Empty(t, got)

	q.Weights = map[string]float64{"name": 0.1, "email": 0.9}
	got, err = m.Find(context.Background(), recs, q)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.9, got[0].Score, 1e-9)
}
