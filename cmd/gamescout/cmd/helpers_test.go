package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/gamescout/internal/config"
)

// testEnv is an isolated home with a config file pointing every data path
// into a temp directory.
type testEnv struct {
	dir        string
	configPath string
	cfg        *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))

	cfg := config.NewConfig()
	cfg.Catalog.Path = filepath.Join(dir, "data", "catalog.db")
	cfg.Catalog.BlevePath = filepath.Join(dir, "data", "catalog.bleve")
	cfg.Telemetry.Path = filepath.Join(dir, "data", "metrics.db")
	cfg.Logging.Path = filepath.Join(dir, "logs", "gamescout.log")

	env := &testEnv{dir: dir, configPath: filepath.Join(dir, "gamescout.yaml"), cfg: cfg}
	env.save(t)
	return env
}

func (e *testEnv) save(t *testing.T) {
	t.Helper()
	require.NoError(t, e.cfg.WriteYAML(e.configPath))
}

// run executes the root command with args against the env's config.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := root.ExecuteContext(context.Background())
	_ = stopProfilingAndLogging(root, nil)
	return out.String(), err
}

// mustRun is run that fails the test on error.
func (e *testEnv) mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := e.run(t, stdin, args...)
	require.NoError(t, err, out)
	return out
}

// writeFile writes content under the env's directory and returns its path.
func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// gamesJSONL is a small, complete catalog.
const gamesJSONL = `{"id":"1","name":"Hollow Knight","category":"main_game","platforms":["PC","Nintendo Switch"],"genres":["Metroidvania"],"developer":"Team Cherry","publisher":"Team Cherry","release_date":"2017-02-24T00:00:00Z","rating":87,"rating_count":900,"follower_count":50000,"has_summary":true,"has_cover":true,"engagement":{"reviews":120,"list_adds":800}}
{"id":"2","name":"Hollow Knight Silksong","category":"main_game","platforms":["PC","Nintendo Switch"],"genres":["Metroidvania"],"developer":"Team Cherry","publisher":"Team Cherry","release_date":"2025-09-04T00:00:00Z","rating":90,"rating_count":300,"follower_count":80000,"has_summary":true,"has_cover":true}
{"id":"3","name":"Celeste","category":"main_game","platforms":["PC"],"genres":["Platformer"],"developer":"Maddy Makes Games","publisher":"Maddy Makes Games","release_date":"2018-01-25T00:00:00Z","rating":92,"rating_count":700,"follower_count":40000,"has_summary":true,"has_cover":true}
`

// ingestGames loads gamesJSONL into the env's catalog.
func (e *testEnv) ingestGames(t *testing.T) {
	t.Helper()
	e.mustRun(t, gamesJSONL, "ingest", "-")
}
