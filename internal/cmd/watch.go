package cmd

import (
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/lukasmartinelli-alt/cuckoodrive/syncer"
)

// fsnotifyWatcher adapts github.com/fsnotify/fsnotify to syncer.Watcher.
// The syncer package itself stays free of filesystem-notification
// dependencies; the concrete watcher is wired only here.
type fsnotifyWatcher struct {
	w      *fsnotify.Watcher
	events chan struct{}
	done   chan struct{}
}

var _ syncer.Watcher = (*fsnotifyWatcher)(nil)

// watchTree opens a recursive watch rooted at dir, coalescing every
// fsnotify event (create, write, remove, rename) into a single "something
// changed" signal on Events() — the caller re-runs a full Sync rather than
// reconciling individual filesystem events, since Sync is already cheap to
// re-run (it compares sizes before touching anything).
func watchTree(dir string) (*fsnotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := addRecursive(w, dir); err != nil {
		w.Close()
		return nil, err
	}

	fw := &fsnotifyWatcher{w: w, events: make(chan struct{}, 1), done: make(chan struct{})}
	go fw.loop()
	return fw, nil
}

func addRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}

func (fw *fsnotifyWatcher) loop() {
	defer close(fw.events)
	for {
		select {
		case _, ok := <-fw.w.Events:
			if !ok {
				return
			}
			select {
			case fw.events <- struct{}{}:
			default:
			}
		case _, ok := <-fw.w.Errors:
			if !ok {
				return
			}
		case <-fw.done:
			return
		}
	}
}

func (fw *fsnotifyWatcher) Events() <-chan struct{} { return fw.events }

func (fw *fsnotifyWatcher) Close() error {
	close(fw.done)
	return fw.w.Close()
}
