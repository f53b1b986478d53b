// Package lock implements an advisory cross-writer lock: a sentinel file
// on a backend.Backend (typically the assembled composite) that cooperating
// processes use to serialize access to the same logical namespace. It
// protects cooperating writers, not adversarial ones or torn state.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
)

// Options configures a FileLock. Filename defaults to ".lock", Timeout to
// 10s, and Delay to 500ms when left zero.
type Options struct {
	Filename string
	Timeout  time.Duration
	Delay    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Filename == "" {
		o.Filename = ".lock"
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Delay <= 0 {
		o.Delay = 500 * time.Millisecond
	}
	return o
}

// FileLock guards a single path on b with a sentinel file.
type FileLock struct {
	b    backend.Backend
	path string
	opts Options
}

// New constructs a FileLock over b's root, or wherever Options.Filename
// points — the sentinel lives at "/"+Filename.
func New(b backend.Backend, opts Options) *FileLock {
	opts = opts.withDefaults()
	return &FileLock{b: b, path: "/" + opts.Filename, opts: opts}
}

// Lock is the guard value returned by Acquire. Release is idempotent and
// safe to call from a defer, so the lock is released on every exit path.
type Lock struct {
	fl       *FileLock
	released bool
}

// Release removes the sentinel file, silently becoming a no-op if already
// released. Backend I/O errors other than "already gone" propagate.
func (l *Lock) Release(ctx context.Context) error {
	if l.released {
		return nil
	}
	l.released = true

	err := l.fl.b.Remove(ctx, l.fl.path)
	if _, ok := err.(backend.NotFoundError); ok {
		return nil
	}
	return err
}

// Acquire creates the sentinel file, retrying at Delay intervals until
// Timeout elapses, at which point it fails with LockTimeoutError. Any other
// backend I/O error propagates unchanged.
func (fl *FileLock) Acquire(ctx context.Context) (*Lock, error) {
	deadline := time.Now().Add(fl.opts.Timeout)

	for {
		exists, err := fl.b.Exists(ctx, fl.path)
		if err != nil {
			return nil, err
		}
		if !exists {
			s, err := fl.b.Open(ctx, fl.path, backend.ModeWrite)
			if err != nil {
				return nil, err
			}
			// Tag the sentinel with a unique holder id. Purely diagnostic:
			// acquisition and release never read it back.
			if _, err := s.Write([]byte(uuid.NewString())); err != nil {
				s.Close()
				return nil, err
			}
			if err := s.Close(); err != nil {
				return nil, err
			}
			return &Lock{fl: fl}, nil
		}

		if !time.Now().Before(deadline) {
			return nil, backend.LockTimeoutError{Path: fl.path}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(fl.opts.Delay):
		}
	}
}
