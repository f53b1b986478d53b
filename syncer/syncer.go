// Package syncer implements the sync driver: a client that walks a local
// directory tree and mirrors it onto a partedfs.FS, observing only the
// fan-out filesystem's public contract (walk, exists, getsize, open,
// makedir, rename, remove, removedir). It performs no retries of its own; the first
// error aborts the run.
package syncer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/partedfs"
)

// EventKind classifies a reported sync action for presentation.
type EventKind int

const (
	// EventCopied reports a file that did not exist on the remote and was
	// created.
	EventCopied EventKind = iota
	// EventUpdated reports a file whose remote copy existed but whose size
	// differed from the local source, and was overwritten.
	EventUpdated
	// EventSkipped reports a file left untouched because it already
	// matched.
	EventSkipped
	// EventDir reports a directory created on the remote.
	EventDir
	// EventRemoved reports a remote file or directory deleted because it
	// no longer exists locally.
	EventRemoved
	// EventMoved reports a remote file renamed into place to match a local
	// file that would otherwise have been copied from scratch.
	EventMoved
)

// Event is reported once per file or directory visited, through Options.OnEvent.
type Event struct {
	Kind EventKind
	Path string
}

// Options configures a Sync run.
type Options struct {
	// DryRun reports what would happen without performing any remote
	// mutation.
	DryRun bool
	// OnEvent, if non-nil, is called once per reported action in the order
	// decided by the three-pass walk (directories, reconcile, then files).
	OnEvent func(Event)
}

// hasConflict compares modified times: the two copies conflict when the
// source is strictly newer than the already-synced destination would
// suggest was last pushed. Sync itself decides whether to patch a file
// purely on size difference; this predicate is for callers that want a
// stronger comparison.
func hasConflict(localModTime, remoteModTime time.Time) bool {
	return localModTime.After(remoteModTime)
}

// HasConflict exports the modified-time conflict predicate for callers
// (e.g. a future three-way merge mode) that need it independent of Sync.
func HasConflict(localModTime, remoteModTime time.Time) bool {
	return hasConflict(localModTime, remoteModTime)
}

// Sync walks localRoot (a real directory on disk) and mirrors its content
// onto dst at remoteRoot, in three passes: every directory first, then a
// reconcile pass that renames or removes remote entries with no local
// counterpart, then every file. A file already present on dst with an
// identical size is left untouched; otherwise it is copied or overwritten
// whole.
func Sync(ctx context.Context, localRoot, remoteRoot string, dst *partedfs.FS, opts Options) error {
	dirs, files, err := plan(localRoot)
	if err != nil {
		return fmt.Errorf("syncer: walking %s: %w", localRoot, err)
	}

	for _, rel := range dirs {
		remotePath := path.Join(remoteRoot, filepath.ToSlash(rel))
		if err := syncDir(ctx, dst, remotePath, opts); err != nil {
			return err
		}
	}

	moved, err := reconcile(ctx, localRoot, remoteRoot, dirs, files, dst, opts)
	if err != nil {
		return err
	}

	for _, rel := range files {
		localPath := filepath.Join(localRoot, rel)
		remotePath := path.Join(remoteRoot, filepath.ToSlash(rel))
		if moved[remotePath] {
			continue
		}
		if err := syncFile(ctx, localPath, remotePath, dst, opts); err != nil {
			return err
		}
	}

	return nil
}

// plan walks localRoot once and returns directories and files relative to
// it, directories before files, each lexically sorted within its group so
// runs are deterministic.
func plan(localRoot string) (dirs, files []string, err error) {
	err = filepath.WalkDir(localRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(localRoot, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, rel)
		} else {
			files = append(files, rel)
		}
		return nil
	})
	sort.Strings(dirs)
	sort.Strings(files)
	return dirs, files, err
}

// reconcile compares the remote tree against the local plan and applies
// what the copy pass cannot express. A remote file with no local
// counterpart is renamed into place when a pending copy of identical size
// is waiting to be created — the closest a size-based comparison gets to
// recognizing a local move — and removed otherwise. A remote directory
// with no local counterpart is removed with its contents. Returns the set
// of remote paths satisfied by a rename so the copy pass skips them.
func reconcile(ctx context.Context, localRoot, remoteRoot string, dirs, files []string, dst *partedfs.FS, opts Options) (map[string]bool, error) {
	wantFiles := make(map[string]bool, len(files))
	for _, rel := range files {
		wantFiles[path.Join(remoteRoot, filepath.ToSlash(rel))] = true
	}
	wantDirs := make(map[string]bool, len(dirs))
	for _, rel := range dirs {
		wantDirs[path.Join(remoteRoot, filepath.ToSlash(rel))] = true
	}

	// Pending copies keyed by size: local files the copy pass would have
	// to create from scratch.
	pending := make(map[int64][]string)
	for _, rel := range files {
		remotePath := path.Join(remoteRoot, filepath.ToSlash(rel))
		exists, err := dst.Exists(ctx, remotePath)
		if err != nil {
			return nil, fmt.Errorf("syncer: checking %s: %w", remotePath, err)
		}
		if exists {
			continue
		}
		fi, err := os.Stat(filepath.Join(localRoot, rel))
		if err != nil {
			return nil, fmt.Errorf("syncer: stat %s: %w", rel, err)
		}
		pending[fi.Size()] = append(pending[fi.Size()], remotePath)
	}

	var orphanFiles []backend.FileInfo
	err := dst.WalkFiles(ctx, remoteRoot, func(info backend.FileInfo) error {
		if !wantFiles[info.Path()] {
			orphanFiles = append(orphanFiles, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("syncer: walking remote %s: %w", remoteRoot, err)
	}

	moved := make(map[string]bool)
	for _, orphan := range orphanFiles {
		if targets := pending[orphan.Size()]; len(targets) > 0 {
			target := targets[0]
			pending[orphan.Size()] = targets[1:]
			if !opts.DryRun {
				if err := dst.Rename(ctx, orphan.Path(), target); err != nil {
					return nil, fmt.Errorf("syncer: moving %s to %s: %w", orphan.Path(), target, err)
				}
			}
			moved[target] = true
			report(opts, Event{Kind: EventMoved, Path: target})
			continue
		}
		if !opts.DryRun {
			if err := dst.Remove(ctx, orphan.Path()); err != nil {
				return nil, fmt.Errorf("syncer: removing %s: %w", orphan.Path(), err)
			}
		}
		report(opts, Event{Kind: EventRemoved, Path: orphan.Path()})
	}

	var orphanDirs []string
	err = dst.WalkDirs(ctx, remoteRoot, func(info backend.FileInfo) error {
		if !wantDirs[info.Path()] {
			orphanDirs = append(orphanDirs, info.Path())
			// Children go with their parent; no need to visit them.
			return partedfs.ErrSkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("syncer: walking remote %s: %w", remoteRoot, err)
	}
	for _, dir := range orphanDirs {
		if !opts.DryRun {
			rmOpts := backend.RemoveDirOptions{Recursive: true, Force: true}
			if err := dst.RemoveDir(ctx, dir, rmOpts); err != nil {
				return nil, fmt.Errorf("syncer: removing directory %s: %w", dir, err)
			}
		}
		report(opts, Event{Kind: EventRemoved, Path: dir})
	}

	return moved, nil
}

func syncDir(ctx context.Context, dst *partedfs.FS, remotePath string, opts Options) error {
	exists, err := dst.Exists(ctx, remotePath)
	if err != nil {
		return fmt.Errorf("syncer: checking %s: %w", remotePath, err)
	}
	if exists {
		return nil
	}

	if !opts.DryRun {
		if err := dst.MakeDir(ctx, remotePath, backend.MakeDirOptions{Recursive: true, AllowRecreate: true}); err != nil {
			return fmt.Errorf("syncer: creating directory %s: %w", remotePath, err)
		}
	}
	report(opts, Event{Kind: EventDir, Path: remotePath})
	return nil
}

func syncFile(ctx context.Context, localPath, remotePath string, dst *partedfs.FS, opts Options) error {
	localInfo, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("syncer: stat %s: %w", localPath, err)
	}

	exists, err := dst.Exists(ctx, remotePath)
	if err != nil {
		return fmt.Errorf("syncer: checking %s: %w", remotePath, err)
	}

	if exists {
		remoteSize, err := dst.GetSize(ctx, remotePath)
		if err != nil {
			return fmt.Errorf("syncer: sizing %s: %w", remotePath, err)
		}
		if remoteSize == localInfo.Size() {
			report(opts, Event{Kind: EventSkipped, Path: remotePath})
			return nil
		}
	}

	kind := EventCopied
	if exists {
		kind = EventUpdated
	}

	if !opts.DryRun {
		if err := pushFile(ctx, localPath, remotePath, dst); err != nil {
			return fmt.Errorf("syncer: pushing %s: %w", localPath, err)
		}
	}

	report(opts, Event{Kind: kind, Path: remotePath})
	return nil
}

func pushFile(ctx context.Context, localPath, remotePath string, dst *partedfs.FS) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := dst.Open(ctx, remotePath, backend.ModeWrite)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func report(opts Options, ev Event) {
	if opts.OnEvent != nil {
		opts.OnEvent(ev)
	}
}

// Watcher observes a local directory for changes and signals Events on a
// channel, re-triggering a Sync. This package has no implementation of the
// interface and no import of a filesystem-notification library; the
// concrete Watcher lives in the CLI wiring.
type Watcher interface {
	// Events returns a channel that receives a value each time the watched
	// tree changes. The channel is closed when the watcher is closed.
	Events() <-chan struct{}
	Close() error
}
