package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"search", "shell", "ingest", "moderate", "config", "stats", "doctor", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := root.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"config", "debug", "profile-cpu", "profile-mem", "profile-trace"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.Execute())

	assert.Contains(t, buf.String(), "gamescout version")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"frobnicate"})

	assert.Error(t, root.Execute())
}

func TestRootCmd_InvalidConfigFails(t *testing.T) {
	// Given: a config with an unknown backend
	env := newTestEnv(t)
	env.cfg.Catalog.Backend = "mongodb"
	env.save(t)

	// When: running a command that needs the catalog
	_, err := env.run(t, "", "search", "celeste")

	// Then: the config error surfaces
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.backend")
}

func TestRootCmd_ProfilesWritten(t *testing.T) {
	env := newTestEnv(t)
	cpu := env.dir + "/cpu.out"
	heap := env.dir + "/heap.out"

	env.mustRun(t, "", "--profile-cpu", cpu, "--profile-mem", heap, "version", "--short")

	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
	assert.Nil(t, profileSession)
}
