package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
)

func TestStatsCmd_EmptyCatalog(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "", "stats")

	assert.Contains(t, out, "records: 0")
	assert.Contains(t, out, "No queries recorded")
}

func TestStatsCmd_ReportsPersistedQueries(t *testing.T) {
	// Given: a catalog and two searches, one with no hits
	env := newTestEnv(t)
	env.ingestGames(t)
	env.mustRun(t, "", "search", "celeste")
	env.mustRun(t, "", "search", "qwzxv")

	// When: reading stats as JSON in a later process
	out := env.mustRun(t, "", "stats", "--json")

	// Then: the flushed telemetry is summarized
	var res struct {
		Catalog struct {
			Records int `json:"records"`
		} `json:"catalog"`
		Days    int `json:"days"`
		Queries struct {
			TotalQueries    int64 `json:"total_queries"`
			ZeroResultCount int64 `json:"zero_result_count"`
		} `json:"queries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, 3, res.Catalog.Records)
	assert.Equal(t, 7, res.Days)
	assert.Equal(t, int64(2), res.Queries.TotalQueries)
	assert.Equal(t, int64(1), res.Queries.ZeroResultCount)
}

func TestStatsCmd_TelemetryDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Telemetry.Disabled = true
	env.save(t)
	env.ingestGames(t)
	env.mustRun(t, "", "search", "celeste")

	out := env.mustRun(t, "", "stats")

	assert.Contains(t, out, "Telemetry is disabled")
	assert.NoFileExists(t, env.cfg.Telemetry.Path)
}

func TestStatsCmd_InvalidDays(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "stats", "--days", "0")

	require.Error(t, err)
	assert.Equal(t, gserrors.ErrCodeInvalidInput, gserrors.GetCode(err))
}
