package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nonEmpty(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestOptions_Enabled(t *testing.T) {
	assert.False(t, Options{}.Enabled())
	assert.True(t, Options{HeapPath: "heap.out"}.Enabled())
}

func TestSession_WritesRequestedProfiles(t *testing.T) {
	// Given: all three profiles requested
	dir := t.TempDir()
	opts := Options{
		CPUPath:   filepath.Join(dir, "cpu.out"),
		HeapPath:  filepath.Join(dir, "heap.out"),
		TracePath: filepath.Join(dir, "trace.out"),
	}

	// When: a session runs some work and stops
	s, err := Start(opts)
	require.NoError(t, err)
	sum := 0
	for i := 0; i < 100_000; i++ {
		sum += i
	}
	require.NoError(t, s.Stop())

	// Then: each file has content
	nonEmpty(t, opts.CPUPath)
	nonEmpty(t, opts.HeapPath)
	nonEmpty(t, opts.TracePath)
	assert.Positive(t, sum)
}

func TestSession_StopIsIdempotent(t *testing.T) {
	s, err := Start(Options{CPUPath: filepath.Join(t.TempDir(), "cpu.out")})
	require.NoError(t, err)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	var nilSession *Session
	assert.NoError(t, nilSession.Stop())
}

func TestStart_BadTracePathStopsCPU(t *testing.T) {
	dir := t.TempDir()

	_, err := Start(Options{
		CPUPath:   filepath.Join(dir, "cpu.out"),
		TracePath: filepath.Join(dir, "missing", "trace.out"),
	})
	require.Error(t, err)

	// The CPU profiler was released, so a new one can start.
	s, err := Start(Options{CPUPath: filepath.Join(dir, "cpu2.out")})
	require.NoError(t, err)
	require.NoError(t, s.Stop())
}
