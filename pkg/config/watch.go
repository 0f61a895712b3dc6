package config

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads Config from disk whenever the backing file changes,
// grounded on the teacher's pkg/termsocket.Manager fsnotify fallback
// (watch the file, debounce-free here since config reloads are rare and
// idempotent rather than high-frequency like PTY output).
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	OnChange func(Config)
}

// NewWatcher starts watching path for writes. The caller must call Close
// when done.
func NewWatcher(path string, onChange func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &Watcher{watcher: fw, path: path, OnChange: onChange}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				continue
			}
			if w.OnChange != nil {
				w.OnChange(cfg)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
