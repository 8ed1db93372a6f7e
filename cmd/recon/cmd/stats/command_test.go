package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/recon"
	"github.com/agentstation/recon/internal/cmd/application"
	"github.com/agentstation/recon/pkg/errors"
	"github.com/agentstation/recon/pkg/logging"
)

func TestStats(t *testing.T) {
	engine, err := recon.New(recon.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	defer func() { _ = engine.Close() }()

	for _, format := range []string{"json", "table"} {
		cmd := NewCommand(&application.Mock{EngineValue: engine, Format: format})
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(nil)
		require.NoError(t, cmd.ExecuteContext(context.Background()))

		if format == "json" {
			var s recon.ServiceStats
			require.NoError(t, json.Unmarshal(out.Bytes(), &s))
			assert.Zero(t, s.TotalReconciliations)
			assert.Positive(t, s.Goroutines)
		} else {
			assert.Contains(t, out.String(), "Total Reconciliations")
		}
	}
}

func TestStatsEngineError(t *testing.T) {
	cmd := NewCommand(&application.Mock{
		EngineErr: errors.NewConfigError("store", "unavailable", nil),
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs(nil)
	err := cmd.ExecuteContext(context.Background())
	var cfgErr *errors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
