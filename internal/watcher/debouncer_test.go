package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(path string, op Operation) FileEvent {
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}
}

func nextBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_SingleEventPassesThrough(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(ev("/r/rules.yaml", OpModify))

	batch := nextBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want []Operation
	}{
		{"modify burst", []Operation{OpModify, OpModify, OpModify}, []Operation{OpModify}},
		{"create then modify", []Operation{OpCreate, OpModify}, []Operation{OpCreate}},
		{"modify then delete", []Operation{OpModify, OpDelete}, []Operation{OpDelete}},
		{"delete then create", []Operation{OpDelete, OpCreate}, []Operation{OpModify}},
		{"create then delete", []Operation{OpCreate, OpDelete}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a debouncer
			d := NewDebouncer(30 * time.Millisecond)
			defer d.Stop()

			// When: the operations arrive inside one window
			for _, op := range tt.ops {
				d.Add(ev("/r/rules.yaml", op))
			}

			// Then: at most one merged event comes out
			if tt.want == nil {
				select {
				case batch := <-d.Output():
					t.Fatalf("expected nothing, got %v", batch)
				case <-time.After(100 * time.Millisecond):
				}
				return
			}
			batch := nextBatch(t, d)
			require.Len(t, batch, 1)
			assert.Equal(t, tt.want[0], batch[0].Operation)
		})
	}
}

func TestDebouncer_DifferentPathsStaySeparate(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(ev("/r/rules.yaml", OpModify))
	d.Add(ev("/r/config.yaml", OpModify))

	assert.Len(t, nextBatch(t, d), 2)
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(time.Hour)
	d.Add(ev("/r/rules.yaml", OpModify))

	d.Stop()
	d.Stop()
	d.Add(ev("/r/rules.yaml", OpModify))

	_, ok := <-d.Output()
	assert.False(t, ok)
}
