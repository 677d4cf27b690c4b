// Package watcher reports changes to a small set of files, such as the
// search rules file, so a long-running process can reload them in place.
//
// fsnotify is used when available. It watches each file's parent directory,
// so editors that save by writing a temp file and renaming it over the
// original are still seen. When fsnotify cannot start, the watcher polls
// file size and modification time instead.
//
// Bursts of events for one path are debounced into a single event:
//
//	w, err := watcher.NewFileWatcher([]string{rulesPath}, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go func() { _ = w.Start(ctx) }()
//
//	for batch := range w.Events() {
//	    for _, ev := range batch {
//	        if ev.Operation != watcher.OpDelete {
//	            _ = engine.ReloadRules(ev.Path)
//	        }
//	    }
//	}
package watcher
