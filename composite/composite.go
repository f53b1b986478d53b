// Package composite implements the fan-out composite backend: a
// backend.Backend that holds several underlying backends and mirrors
// directory operations and whole-file renames/removes across all of them,
// while spreading new writes onto whichever backend currently has the most
// free space.
package composite

import (
	"context"
	"path"
	"sort"
	"time"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
)

type namedBackend struct {
	name   string
	b      backend.Backend
	closed bool
}

// FS fans a single logical namespace out across an ordered list of
// backends. The list is fixed for the lifetime of an FS.
type FS struct {
	backends []namedBackend
}

// New constructs an empty composite. Use Add to register backends in the
// order they should be tried and, for ties, preferred as a write target.
func New() *FS {
	return &FS{}
}

// Add registers b under name, at the end of the insertion order.
func (c *FS) Add(name string, b backend.Backend) {
	c.backends = append(c.backends, namedBackend{name: name, b: b})
}

// Backends returns the registered backends in insertion order. The slice is
// a copy; callers cannot mutate the composite's membership through it.
func (c *FS) Backends() []backend.Backend {
	out := make([]backend.Backend, len(c.backends))
	for i, nb := range c.backends {
		out[i] = nb.b
	}
	return out
}

func (c *FS) Name() string { return "composite" }

// CloseBackend marks the named backend closed for the rest of the session:
// it is excluded from writer selection, though reads against content it
// already holds keep working. A closed backend cannot be reopened or
// re-added mid-session. Returns false if name is not registered.
func (c *FS) CloseBackend(name string) bool {
	for i := range c.backends {
		if c.backends[i].name == name {
			c.backends[i].closed = true
			return true
		}
	}
	return false
}

// bestWriter is a pure function of the registered backends' current free
// space, recomputed on every call; there is no cached field to invalidate.
// Ties go to the earliest-inserted backend, since a strict-greater
// comparison only ever replaces the running winner.
func (c *FS) bestWriter(ctx context.Context) (backend.Backend, error) {
	var chosen backend.Backend
	var best uint64
	found := false

	for _, nb := range c.backends {
		if nb.closed {
			continue
		}
		free, err := backend.FreeSpace(ctx, nb.b)
		if err != nil {
			continue
		}
		if !found || free > best {
			chosen, best, found = nb.b, free, true
		}
	}

	if !found {
		return nil, backend.NoMetaError{Name: "free_space", DriverName: c.Name()}
	}
	return chosen, nil
}

// BestWriter exposes the same selection bestWriter uses, for callers (tests,
// diagnostics) that want to know where the next write would land without
// performing one.
func (c *FS) BestWriter(ctx context.Context) (string, error) {
	var chosenName string
	var best uint64
	found := false

	for _, nb := range c.backends {
		if nb.closed {
			continue
		}
		free, err := backend.FreeSpace(ctx, nb.b)
		if err != nil {
			continue
		}
		if !found || free > best {
			chosenName, best, found = nb.name, free, true
		}
	}

	if !found {
		return "", backend.NoMetaError{Name: "free_space", DriverName: c.Name()}
	}
	return chosenName, nil
}

func (c *FS) Exists(ctx context.Context, p string) (bool, error) {
	for _, nb := range c.backends {
		exists, err := nb.b.Exists(ctx, p)
		if err != nil {
			return false, err
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

func (c *FS) IsFile(ctx context.Context, p string) (bool, error) {
	for _, nb := range c.backends {
		isFile, err := nb.b.IsFile(ctx, p)
		if err != nil {
			return false, err
		}
		if isFile {
			return true, nil
		}
	}
	return false, nil
}

func (c *FS) IsDir(ctx context.Context, p string) (bool, error) {
	for _, nb := range c.backends {
		isDir, err := nb.b.IsDir(ctx, p)
		if err != nil {
			return false, err
		}
		if isDir {
			return true, nil
		}
	}
	return false, nil
}

// Open routes by mode: read mode scans backends in insertion order
// for the first one holding path; write mode clears path from
// wherever it already lives, then creates it on the current best writer;
// read-write opens in place if present, else behaves like write.
func (c *FS) Open(ctx context.Context, p string, mode backend.Mode) (backend.Stream, error) {
	if isDir, err := c.IsDir(ctx, p); err != nil {
		return nil, err
	} else if isDir {
		return nil, backend.InvalidResourceError{Path: p}
	}

	switch mode {
	case backend.ModeRead:
		for _, nb := range c.backends {
			if exists, err := nb.b.Exists(ctx, p); err != nil {
				return nil, err
			} else if exists {
				return nb.b.Open(ctx, p, backend.ModeRead)
			}
		}
		return nil, backend.NotFoundError{Path: p}

	case backend.ModeReadWrite:
		for _, nb := range c.backends {
			if exists, err := nb.b.Exists(ctx, p); err != nil {
				return nil, err
			} else if exists {
				return nb.b.Open(ctx, p, backend.ModeReadWrite)
			}
		}
		fallthrough

	default: // backend.ModeWrite, and ModeReadWrite-without-existing-file
		if err := c.removeIfExists(ctx, p); err != nil {
			return nil, err
		}
		w, err := c.bestWriter(ctx)
		if err != nil {
			return nil, err
		}
		return w.Open(ctx, p, backend.ModeWrite)
	}
}

func (c *FS) removeIfExists(ctx context.Context, p string) error {
	if err := c.Remove(ctx, p); err != nil {
		if _, ok := err.(backend.NotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Remove deletes path from every backend that holds it.
func (c *FS) Remove(ctx context.Context, p string) error {
	if isDir, err := c.IsDir(ctx, p); err != nil {
		return err
	} else if isDir {
		return backend.InvalidResourceError{Path: p}
	}

	var matched bool
	for _, nb := range c.backends {
		exists, err := nb.b.Exists(ctx, p)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		matched = true
		if err := nb.b.Remove(ctx, p); err != nil {
			return err
		}
	}

	if !matched {
		return backend.NotFoundError{Path: p}
	}
	return nil
}

// RemoveDir removes the directory from every backend that holds it.
func (c *FS) RemoveDir(ctx context.Context, p string, opts backend.RemoveDirOptions) error {
	if path.Clean("/"+p) == "/" {
		return backend.InvalidPathError{Path: p}
	}

	var matched bool
	for _, nb := range c.backends {
		exists, err := nb.b.Exists(ctx, p)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		matched = true
		if err := nb.b.RemoveDir(ctx, p, opts); err != nil {
			return err
		}
	}

	if !matched {
		if opts.Force {
			return nil
		}
		return backend.NotFoundError{Path: p}
	}
	return nil
}

// Rename renames path on every backend that holds it.
func (c *FS) Rename(ctx context.Context, src, dst string) error {
	var matched bool
	for _, nb := range c.backends {
		exists, err := nb.b.Exists(ctx, src)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		matched = true
		if err := nb.b.Rename(ctx, src, dst); err != nil {
			return err
		}
	}

	if !matched {
		return backend.NotFoundError{Path: src}
	}
	return nil
}

// SetTimes applies to every backend currently holding path.
func (c *FS) SetTimes(ctx context.Context, p string, accessed, modified *time.Time) error {
	for _, nb := range c.backends {
		exists, err := nb.b.Exists(ctx, p)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if err := nb.b.SetTimes(ctx, p, accessed, modified); err != nil {
			return err
		}
	}
	return nil
}

// MakeDir mirrors the directory onto every registered backend.
func (c *FS) MakeDir(ctx context.Context, p string, opts backend.MakeDirOptions) error {
	for _, nb := range c.backends {
		if err := nb.b.MakeDir(ctx, p, opts); err != nil {
			return err
		}
	}
	return nil
}

// ListDir unions each backend's listing of path.
func (c *FS) ListDir(ctx context.Context, p string, opts backend.ListOptions) ([]string, error) {
	if p == "" {
		p = "/"
	}
	if isDir, err := c.IsDir(ctx, p); err != nil {
		return nil, err
	} else if !isDir {
		if exists, _ := c.Exists(ctx, p); !exists {
			return nil, backend.NotFoundError{Path: p}
		}
		return nil, backend.InvalidResourceError{Path: p}
	}

	seen := make(map[string]bool)
	var out []string
	for _, nb := range c.backends {
		names, err := nb.b.ListDir(ctx, p, opts)
		if err != nil {
			if _, ok := err.(backend.NotFoundError); ok {
				continue
			}
			return nil, err
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}

	sort.Strings(out)
	return out, nil
}

// GetSize delegates to the first backend holding path.
func (c *FS) GetSize(ctx context.Context, p string) (int64, error) {
	for _, nb := range c.backends {
		if exists, err := nb.b.Exists(ctx, p); err != nil {
			return 0, err
		} else if exists {
			return nb.b.GetSize(ctx, p)
		}
	}
	return 0, backend.NotFoundError{Path: p}
}

// GetInfo delegates to the first backend holding path.
func (c *FS) GetInfo(ctx context.Context, p string) (backend.FileInfo, error) {
	for _, nb := range c.backends {
		if exists, err := nb.b.Exists(ctx, p); err != nil {
			return nil, err
		} else if exists {
			return nb.b.GetInfo(ctx, p)
		}
	}
	return nil, backend.NotFoundError{Path: p}
}

// GetMeta is not meaningful at the composite level: each member backend has
// its own free_space and there is no single aggregate the core defines.
func (c *FS) GetMeta(ctx context.Context, name string) (interface{}, error) {
	return nil, backend.NoMetaError{Name: name, DriverName: c.Name()}
}

// SysPath always fails: a composite has no single native path.
func (c *FS) SysPath(ctx context.Context, p string) (string, error) {
	return "", backend.NoSysPathError{Path: p}
}
