package tplregistry

import (
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher notifies on changes to .Jenkinsfile entries in the templates
// directory, including ones made outside of CreateTemplate/EditTemplate
// (e.g. an operator editing the file directly on disk); CreateTemplate and
// EditTemplate also send a notification of their own, so a change made
// through them can be reported more than once. It does not change list_templates'
// contract — reconciliation there is still authoritative and runs
// synchronously on every call (§5 "Shared resources").
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan string
}

// Watch starts watching the Registry's templates directory and returns a
// channel of template names (without the .Jenkinsfile suffix) that changed.
// The channel is closed when ctx-independent Close is called.
func (r *Registry) Watch() (<-chan string, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(r.templatesDir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, changes: make(chan string, 16)}
	r.watcher = w

	go w.run()
	return w.changes, nil
}

func (w *Watcher) run() {
	defer close(w.changes)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".Jenkinsfile") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.notify(templateNameFromPath(event.Name))
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) notify(name string) {
	select {
	case w.changes <- name:
	default:
		// Drop the notification if nobody is reading; list_templates
		// re-reconciles from disk on every call regardless.
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func templateNameFromPath(path string) string {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	return strings.TrimSuffix(base, ".Jenkinsfile")
}
