// Package watch re-runs reconciliation whenever an artifact
// directory changes, with a quiet-period debounce so a publishing
// burst triggers one run instead of dozens.
package watch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

// DefaultDebounce is the quiet period after the last event before a
// reconciliation run starts.
const DefaultDebounce = 500 * time.Millisecond

// Runner reconciles one directory.
type Runner func(dir string) error

// Watcher watches a set of artifact directories and calls its Runner
// for each dirty directory after the debounce window closes.
type Watcher struct {
	Debounce time.Duration

	dirs    []string
	run     Runner
	watcher *fsnotify.Watcher
}

// New builds a Watcher over dirs.  The directories themselves are
// watched, not their delta subdirectories, so writing deltas does not
// feed back into the watcher.
func New(dirs []string, run Runner) (w *Watcher, err error) {
	defer Return(&err)

	w = &Watcher{Debounce: DefaultDebounce, dirs: dirs, run: run}
	w.watcher, err = fsnotify.NewWatcher()
	Ck(err)
	for _, dir := range dirs {
		err = w.watcher.Add(dir)
		Ck(err)
	}
	return w, nil
}

// Run services events until done is closed, then releases the
// underlying watcher.  Runner errors are logged and watching
// continues; a watch loop that dies on the first bad run defeats its
// purpose.
func (w *Watcher) Run(done <-chan struct{}) (err error) {
	defer Return(&err)
	defer w.watcher.Close()

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	dirty := make(map[string]bool)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			dir := filepath.Dir(event.Name)
			dirty[dir] = true
			log.Debugf("watch: %s", event)
			timer.Reset(w.Debounce)
		case werr, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watch: %v", werr)
		case <-timer.C:
			for dir := range dirty {
				if err := w.run(dir); err != nil {
					log.Errorf("watch %s: %v", dir, err)
				}
			}
			dirty = make(map[string]bool)
		case <-done:
			return nil
		}
	}
}
