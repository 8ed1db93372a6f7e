package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/merge"
)

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestReconcileRequestDefaults(t *testing.T) {
	cfg := recon.DefaultConfig()
	body := decode[ReconcileRequest](t, `{"data": [{"name": "a"}, {"name": "b"}]}`)

	req, err := body.toRequest(cfg)
	require.NoError(t, err)

	assert.Len(t, req.Records, 2)
	assert.Equal(t, 0, req.Records[0].Origin)
	assert.Equal(t, 1, req.Records[1].Origin)
	assert.Equal(t, "customer", req.EntityType)
	assert.True(t, req.Dedupe)
	assert.Equal(t, cfg.DefaultMatchThreshold, req.MatchThreshold)
	assert.Equal(t, cfg.DefaultDedupThreshold, req.Similarity.DedupThreshold)
	assert.Equal(t, cfg.DefaultStrategy, req.Strategy)
	assert.Zero(t, req.Timeout)
}

func TestReconcileRequestOverrides(t *testing.T) {
	body := decode[ReconcileRequest](t, `{
		"data": [],
		"matching_config": {
			"matching_fields": ["email"],
			"similarity_fields": ["name"],
			"similarity_threshold": 0.75,
			"field_weights": {"email": 2},
			"use_default_weights": true
		},
		"entity_type": "supplier",
		"threshold": 0.6,
		"deduplication": false,
		"merge_strategy": "FIRST_WINS",
		"timeout_seconds": 1.5
	}`)

	req, err := body.toRequest(recon.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"email"}, req.MatchFields)
	assert.Equal(t, []string{"name"}, req.Similarity.Fields)
	assert.Equal(t, 0.75, req.Similarity.DedupThreshold)
	assert.Equal(t, map[string]float64{"email": 2}, req.Similarity.Weights)
	assert.True(t, req.UseDefaultWeights)
	assert.Equal(t, "supplier", req.EntityType)
	assert.Equal(t, 0.6, req.MatchThreshold)
	assert.False(t, req.Dedupe)
	// Case is normalized by the engine.
	assert.Equal(t, merge.Strategy("FIRST_WINS"), req.Strategy)
	assert.Equal(t, 1500*time.Millisecond, req.Timeout)
}

func TestReconcileRequestRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing data", `{}`},
		{"null data", `{"data": null}`},
		{"negative timeout", `{"data": [], "timeout_seconds": -1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode[ReconcileRequest](t, tt.body).toRequest(recon.DefaultConfig())
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}
}

func TestMatchRequestThreshold(t *testing.T) {
	assert.Equal(t, 0.8, decode[MatchRequest](t, `{"data": []}`).threshold(0.8))
	assert.Equal(t, 0.0, decode[MatchRequest](t, `{"data": [], "threshold": 0}`).threshold(0.8))
}

func TestDeduplicateRequestSimilarity(t *testing.T) {
	cfg, err := decode[DeduplicateRequest](t, `{
		"data": [],
		"deduplication_config": {"similarity_fields": ["name"]}
	}`).similarity(0.9)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, cfg.Fields)
	assert.Equal(t, 0.9, cfg.DedupThreshold)

	_, err = decode[DeduplicateRequest](t, `{
		"data": [],
		"deduplication_config": {"similarity_threshold": 2}
	}`).similarity(0.9)
	assert.True(t, errors.IsValidationError(err))

	_, err = decode[DeduplicateRequest](t, `{
		"data": [],
		"deduplication_config": {"field_weights": {"name": -1}}
	}`).similarity(0.9)
	assert.True(t, errors.IsValidationError(err))
}

func TestValidateRequestRules(t *testing.T) {
	rules := decode[ValidateRequest](t, `{"matches": []}`).rules()
	assert.Equal(t, 0.8, rules.MinScore)
	assert.Empty(t, rules.RequiredFields)

	rules = decode[ValidateRequest](t, `{
		"matches": [],
		"validation_rules": {"min_similarity_score": 0.5, "required_fields": ["email"]}
	}`).rules()
	assert.Equal(t, 0.5, rules.MinScore)
	assert.Equal(t, []string{"email"}, rules.RequiredFields)
}
