package watcher

import (
	"os"
	"time"
)

// poller detects changes by comparing stat snapshots. It backs FileWatcher
// when fsnotify is unavailable, e.g. on some network mounts.
type poller struct {
	state map[string]snapshot
}

type snapshot struct {
	exists  bool
	modTime time.Time
	size    int64
}

func newPoller(paths []string) *poller {
	p := &poller{state: make(map[string]snapshot, len(paths))}
	for _, path := range paths {
		p.state[path] = stat(path)
	}
	return p
}

func stat(path string) snapshot {
	info, err := os.Stat(path)
	if err != nil {
		return snapshot{}
	}
	return snapshot{exists: true, modTime: info.ModTime(), size: info.Size()}
}

// check returns one event per path whose snapshot changed since last call.
func (p *poller) check() []FileEvent {
	var events []FileEvent
	now := time.Now()
	for path, prev := range p.state {
		cur := stat(path)
		if cur == prev {
			continue
		}
		p.state[path] = cur

		op := OpModify
		switch {
		case !prev.exists:
			op = OpCreate
		case !cur.exists:
			op = OpDelete
		}
		events = append(events, FileEvent{Path: path, Operation: op, Timestamp: now})
	}
	return events
}
