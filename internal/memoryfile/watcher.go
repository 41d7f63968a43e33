package memoryfile

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/haasonsaas/agentcore/internal/observability"
)

// Watcher watches the memory file for edits made outside the core (a user
// hand-editing it in their own editor) and pushes the fresh content to the
// prompt assembler on change.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *observability.Logger
	done    chan struct{}
}

// Watch starts watching path, invoking onChange (with the file's fresh
// content) whenever it is written or created. The returned Watcher must be
// closed to release the underlying inotify/kqueue handle.
func Watch(path string, logger *observability.Logger, onChange func(content string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		// A not-yet-created memory file is not fatal: watch its directory
		// instead so a later create is still observed.
		if dirErr := fw.Add(filepath.Dir(path)); dirErr != nil {
			_ = fw.Close()
			return nil, err
		}
	}

	w := &Watcher{watcher: fw, logger: logger, done: make(chan struct{})}
	go w.loop(path, onChange)
	return w, nil
}

func (w *Watcher) loop(path string, onChange func(string)) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			content, err := Read(path)
			if err != nil {
				if w.logger != nil {
					w.logger.Warn(context.Background(), "memoryfile: reload failed", "path", path, "error", err)
				}
				continue
			}
			onChange(content)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn(context.Background(), "memoryfile: watch error", "error", err)
			}
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
