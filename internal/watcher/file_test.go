package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForOp(t *testing.T, w *FileWatcher, op Operation) FileEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok, "events channel closed")
			for _, e := range batch {
				if e.Operation == op {
					return e
				}
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", op)
			return FileEvent{}
		}
	}
}

func startWatcher(t *testing.T, path string, opts Options) *FileWatcher {
	t.Helper()
	w, err := NewFileWatcher([]string{path}, opts)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	go func() { _ = w.Start(ctx) }()
	// Give the watcher a moment to register.
	time.Sleep(50 * time.Millisecond)
	return w
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{PollInterval: time.Second}.WithDefaults()

	assert.Equal(t, time.Second, opts.PollInterval)
	assert.Equal(t, DefaultOptions().DebounceWindow, opts.DebounceWindow)
	assert.Equal(t, DefaultOptions().EventBufferSize, opts.EventBufferSize)
}

func TestNewFileWatcher_NoPaths(t *testing.T) {
	_, err := NewFileWatcher(nil, DefaultOptions())

	assert.Error(t, err)
}

func TestNewFileWatcher_DeduplicatesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	w, err := NewFileWatcher([]string{path, filepath.Join(dir, ".", "rules.yaml")}, Options{ForcePolling: true})
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, []string{path}, w.Paths())
	assert.Equal(t, "polling", w.Mode())
}

func TestPoller_DetectsLifecycle(t *testing.T) {
	// Given: a poller over a file that does not exist yet
	path := filepath.Join(t.TempDir(), "rules.yaml")
	p := newPoller([]string{path})
	assert.Empty(t, p.check())

	// When/Then: create, modify and delete are each reported once
	require.NoError(t, os.WriteFile(path, []byte("a"), 0644))
	events := p.check()
	require.Len(t, events, 1)
	assert.Equal(t, OpCreate, events[0].Operation)
	assert.Empty(t, p.check())

	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))
	events = p.check()
	require.Len(t, events, 1)
	assert.Equal(t, OpModify, events[0].Operation)

	require.NoError(t, os.Remove(path))
	events = p.check()
	require.Len(t, events, 1)
	assert.Equal(t, OpDelete, events[0].Operation)
}

func TestFileWatcher_PollingReportsChange(t *testing.T) {
	// Given: a polling watcher over an existing file
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))
	w := startWatcher(t, path, Options{ForcePolling: true, PollInterval: 20 * time.Millisecond, DebounceWindow: 20 * time.Millisecond})

	// When: the file grows
	require.NoError(t, os.WriteFile(path, []byte("version two"), 0644))

	// Then: a modify event names it
	got := waitForOp(t, w, OpModify)
	assert.Equal(t, path, got.Path)
}

func TestFileWatcher_FsnotifyReportsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))
	w := startWatcher(t, path, Options{DebounceWindow: 20 * time.Millisecond})
	if w.Mode() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}

	// Writes to siblings in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))

	got := waitForOp(t, w, OpModify)
	assert.Equal(t, path, got.Path)
}

func TestFileWatcher_AtomicSaveIsModify(t *testing.T) {
	// Given: a watched file
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))
	w := startWatcher(t, path, Options{DebounceWindow: 50 * time.Millisecond})
	if w.Mode() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}

	// When: an editor replaces it via rename
	tmp := filepath.Join(dir, ".rules.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("v2"), 0644))
	require.NoError(t, os.Rename(tmp, path))

	// Then: the batch reports a change, not a deletion
	got := waitForOp(t, w, OpCreate)
	assert.Equal(t, path, got.Path)
}

func TestFileWatcher_StopClosesChannels(t *testing.T) {
	w, err := NewFileWatcher([]string{filepath.Join(t.TempDir(), "rules.yaml")}, Options{ForcePolling: true})
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
}

func TestFileWatcher_ContextCancelStops(t *testing.T) {
	w, err := NewFileWatcher([]string{filepath.Join(t.TempDir(), "rules.yaml")}, Options{ForcePolling: true, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
