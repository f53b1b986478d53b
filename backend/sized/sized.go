// Package sized provides a wrapper around any backend.Backend that
// enforces a hard capacity ceiling and reports free space: it embeds the
// underlying driver, intercepts the calls that need accounting, and
// delegates everything else straight through.
package sized

import (
	"context"
	"sync/atomic"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
)

// Backend wraps a backend.Backend with an immutable max_size and a
// monotonically-tracked cur_size. Accounting is approximate, updated by
// measuring the actual bytes written or removed.
type Backend struct {
	backend.Backend
	maxSize int64
	curSize atomic.Int64
}

// Wrap constructs a Backend with curSize starting at zero. Use Seed instead
// when b may already hold content.
func Wrap(b backend.Backend, maxSize int64) *Backend {
	return &Backend{Backend: b, maxSize: maxSize}
}

// Seed constructs a Backend and initializes curSize by walking the
// underlying backend's existing content, for the common case of wrapping a
// backend that already has files on it (e.g. on process restart).
func Seed(ctx context.Context, b backend.Backend, maxSize int64) (*Backend, error) {
	sb := Wrap(b, maxSize)

	total, err := sumSizes(ctx, b, "/")
	if err != nil {
		return nil, err
	}
	sb.curSize.Store(total)

	return sb, nil
}

func sumSizes(ctx context.Context, b backend.Backend, dir string) (int64, error) {
	entries, err := b.ListDir(ctx, dir, backend.ListOptions{Full: true})
	if err != nil {
		return 0, err
	}

	var total int64
	for _, entry := range entries {
		isDir, err := b.IsDir(ctx, entry)
		if err != nil {
			return 0, err
		}
		if isDir {
			sub, err := sumSizes(ctx, b, entry)
			if err != nil {
				return 0, err
			}
			total += sub
			continue
		}

		size, err := b.GetSize(ctx, entry)
		if err != nil {
			return 0, err
		}
		total += size
	}

	return total, nil
}

// MaxSize returns the immutable capacity ceiling.
func (s *Backend) MaxSize() int64 { return s.maxSize }

// CurSize returns the current tracked usage.
func (s *Backend) CurSize() int64 { return s.curSize.Load() }

// FreeSpace implements the direct-accessor path of backend.FreeSpace.
func (s *Backend) FreeSpace(ctx context.Context) (uint64, error) {
	free := s.maxSize - s.curSize.Load()
	if free < 0 {
		free = 0
	}
	return uint64(free), nil
}

// GetMeta answers "free_space" directly; everything else proxies through.
func (s *Backend) GetMeta(ctx context.Context, name string) (interface{}, error) {
	if name == "free_space" {
		return s.FreeSpace(ctx)
	}
	return s.Backend.GetMeta(ctx, name)
}

// Open wraps write-mode streams so every Write is checked against the
// remaining capacity before it reaches the underlying backend.
func (s *Backend) Open(ctx context.Context, path string, mode backend.Mode) (backend.Stream, error) {
	stream, err := s.Backend.Open(ctx, path, mode)
	if err != nil {
		return nil, err
	}

	if mode == backend.ModeRead {
		return stream, nil
	}

	return &sizedStream{Stream: stream, owner: s, path: path}, nil
}

// Remove decrements curSize by the removed path's measured size before
// delegating. The measurement happens before removal since most backends
// can't report the size of something no longer there.
func (s *Backend) Remove(ctx context.Context, path string) error {
	size, sizeErr := s.Backend.GetSize(ctx, path)

	if err := s.Backend.Remove(ctx, path); err != nil {
		return err
	}

	if sizeErr == nil {
		s.release(size)
	}

	return nil
}

func (s *Backend) release(n int64) {
	if s.curSize.Add(-n) < 0 {
		s.curSize.Store(0)
	}
}

// sizedStream enforces the owner's remaining capacity on every Write and
// keeps curSize in step with bytes actually accepted by the underlying
// stream.
type sizedStream struct {
	backend.Stream
	owner *Backend
	path  string
}

func (s *sizedStream) Write(p []byte) (int, error) {
	free := s.owner.maxSize - s.owner.curSize.Load()
	if int64(len(p)) > free {
		return 0, backend.CapacityError{Path: s.path, DriverName: s.owner.Name()}
	}

	n, err := s.Stream.Write(p)
	if n > 0 {
		s.owner.curSize.Add(int64(n))
	}
	return n, err
}
