// Package localdisk implements a backend.Backend backed by a directory on
// the local filesystem: every logical path is a subpath of a configured
// root directory, created on demand.
//
// It is a real, usable remote for single-host setups (several localdisk
// backends rooted at different mount points behave like independent
// capacity-limited stores) and doubles as the sync driver's demo target.
package localdisk

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/factory"
)

const driverName = "localdisk"

func init() {
	factory.Register(driverName, func(params map[string]interface{}) (backend.Backend, error) {
		root, ok := params["rootdirectory"]
		if !ok {
			return nil, fmt.Errorf("%s: \"rootdirectory\" parameter is required", driverName)
		}
		return New(fmt.Sprint(root))
	})
}

// Backend roots a backend.Backend at a directory on the local filesystem,
// creating it if necessary.
type Backend struct {
	root string
}

var _ backend.Backend = (*Backend)(nil)

// New constructs a Backend rooted at root, creating the directory if it
// does not already exist.
func New(root string) (*Backend, error) {
	if root == "" {
		return nil, fmt.Errorf("%s: rootdirectory must not be empty", driverName)
	}
	if err := os.MkdirAll(root, 0o777); err != nil {
		return nil, err
	}
	return &Backend{root: root}, nil
}

func (d *Backend) Name() string { return driverName }

// fullPath joins p onto the root directory.
func (d *Backend) fullPath(p string) string {
	return filepath.Join(d.root, filepath.FromSlash(path.Clean("/"+p)))
}

func (d *Backend) Exists(ctx context.Context, p string) (bool, error) {
	_, err := os.Stat(d.fullPath(p))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, backend.Error{DriverName: d.Name(), Err: err}
	}
	return true, nil
}

func (d *Backend) IsFile(ctx context.Context, p string) (bool, error) {
	fi, err := os.Stat(d.fullPath(p))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, backend.Error{DriverName: d.Name(), Err: err}
	}
	return !fi.IsDir(), nil
}

func (d *Backend) IsDir(ctx context.Context, p string) (bool, error) {
	fi, err := os.Stat(d.fullPath(p))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, backend.Error{DriverName: d.Name(), Err: err}
	}
	return fi.IsDir(), nil
}

func (d *Backend) Open(ctx context.Context, p string, mode backend.Mode) (backend.Stream, error) {
	full := d.fullPath(p)

	if fi, err := os.Stat(full); err == nil && fi.IsDir() {
		return nil, backend.InvalidResourceError{Path: p}
	}

	switch mode {
	case backend.ModeRead:
		f, err := os.OpenFile(full, os.O_RDONLY, 0o644)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, backend.NotFoundError{Path: p}
			}
			return nil, backend.Error{DriverName: d.Name(), Err: err}
		}
		return f, nil

	case backend.ModeWrite:
		if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
			return nil, backend.Error{DriverName: d.Name(), Err: err}
		}
		f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, backend.Error{DriverName: d.Name(), Err: err}
		}
		return f, nil

	default: // backend.ModeReadWrite
		if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
			return nil, backend.Error{DriverName: d.Name(), Err: err}
		}
		f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, backend.Error{DriverName: d.Name(), Err: err}
		}
		return f, nil
	}
}

func (d *Backend) ListDir(ctx context.Context, p string, opts backend.ListOptions) ([]string, error) {
	full := d.fullPath(p)

	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, backend.NotFoundError{Path: p}
		}
		return nil, backend.Error{DriverName: d.Name(), Err: err}
	}

	logical := path.Clean("/" + p)
	var out []string
	for _, e := range entries {
		if opts.DirsOnly && !e.IsDir() {
			continue
		}
		if opts.FilesOnly && e.IsDir() {
			continue
		}
		if opts.Wildcard != "" {
			if matched, _ := path.Match(opts.Wildcard, e.Name()); !matched {
				continue
			}
		}
		if opts.Full || opts.Absolute {
			out = append(out, path.Join(logical, e.Name()))
		} else {
			out = append(out, e.Name())
		}
	}

	sort.Strings(out)
	return out, nil
}

func (d *Backend) MakeDir(ctx context.Context, p string, opts backend.MakeDirOptions) error {
	full := d.fullPath(p)

	if _, err := os.Stat(full); err == nil {
		if opts.AllowRecreate {
			return nil
		}
		return backend.InvalidResourceError{Path: p}
	}

	if opts.Recursive {
		if err := os.MkdirAll(full, 0o777); err != nil {
			return backend.Error{DriverName: d.Name(), Err: err}
		}
		return nil
	}

	if err := os.Mkdir(full, 0o777); err != nil {
		if os.IsNotExist(err) {
			return backend.NotFoundError{Path: path.Dir(p)}
		}
		return backend.Error{DriverName: d.Name(), Err: err}
	}
	return nil
}

func (d *Backend) RemoveDir(ctx context.Context, p string, opts backend.RemoveDirOptions) error {
	if path.Clean("/"+p) == "/" {
		return backend.InvalidPathError{Path: p}
	}

	full := d.fullPath(p)
	if _, err := os.Stat(full); os.IsNotExist(err) {
		if opts.Force {
			return nil
		}
		return backend.NotFoundError{Path: p}
	}

	if opts.Recursive {
		if err := os.RemoveAll(full); err != nil {
			return backend.Error{DriverName: d.Name(), Err: err}
		}
		return nil
	}

	if err := os.Remove(full); err != nil {
		return backend.Error{DriverName: d.Name(), Err: err}
	}
	return nil
}

func (d *Backend) Remove(ctx context.Context, p string) error {
	full := d.fullPath(p)

	fi, err := os.Stat(full)
	if os.IsNotExist(err) {
		return backend.NotFoundError{Path: p}
	}
	if err != nil {
		return backend.Error{DriverName: d.Name(), Err: err}
	}
	if fi.IsDir() {
		return backend.InvalidResourceError{Path: p}
	}

	if err := os.Remove(full); err != nil {
		return backend.Error{DriverName: d.Name(), Err: err}
	}
	return nil
}

func (d *Backend) Rename(ctx context.Context, src, dst string) error {
	fullSrc := d.fullPath(src)
	fullDst := d.fullPath(dst)

	if _, err := os.Stat(fullSrc); os.IsNotExist(err) {
		return backend.NotFoundError{Path: src}
	}

	if err := os.MkdirAll(filepath.Dir(fullDst), 0o777); err != nil {
		return backend.Error{DriverName: d.Name(), Err: err}
	}
	if err := os.Rename(fullSrc, fullDst); err != nil {
		return backend.Error{DriverName: d.Name(), Err: err}
	}
	return nil
}

func (d *Backend) GetSize(ctx context.Context, p string) (int64, error) {
	fi, err := os.Stat(d.fullPath(p))
	if os.IsNotExist(err) {
		return 0, backend.NotFoundError{Path: p}
	}
	if err != nil {
		return 0, backend.Error{DriverName: d.Name(), Err: err}
	}
	if fi.IsDir() {
		return 0, nil
	}
	return fi.Size(), nil
}

// fileInfo adapts os.FileInfo to backend.FileInfo. The local filesystem has
// no portable way to read atime through the standard library, so
// AccessedTime reports ModTime as its best-available approximation —
// SetTimes still lets callers record a distinct accessed time going forward.
type fileInfo struct {
	os.FileInfo
	path string
}

func (fi fileInfo) Path() string            { return fi.path }
func (fi fileInfo) CreatedTime() time.Time  { return fi.ModTime() }
func (fi fileInfo) ModifiedTime() time.Time { return fi.ModTime() }
func (fi fileInfo) AccessedTime() time.Time { return fi.ModTime() }

func (d *Backend) GetInfo(ctx context.Context, p string) (backend.FileInfo, error) {
	full := d.fullPath(p)
	fi, err := os.Stat(full)
	if os.IsNotExist(err) {
		return nil, backend.NotFoundError{Path: p}
	}
	if err != nil {
		return nil, backend.Error{DriverName: d.Name(), Err: err}
	}

	return fileInfo{FileInfo: fi, path: p}, nil
}

func (d *Backend) SetTimes(ctx context.Context, p string, accessed, modified *time.Time) error {
	full := d.fullPath(p)
	fi, err := os.Stat(full)
	if os.IsNotExist(err) {
		return backend.NotFoundError{Path: p}
	}
	if err != nil {
		return backend.Error{DriverName: d.Name(), Err: err}
	}

	acc := fi.ModTime()
	mod := fi.ModTime()
	if accessed != nil {
		acc = *accessed
	}
	if modified != nil {
		mod = *modified
	}

	if err := os.Chtimes(full, acc, mod); err != nil {
		return backend.Error{DriverName: d.Name(), Err: err}
	}
	return nil
}

// GetMeta always fails: localdisk reports no metadata of its own. The
// sized wrapper is the way to give a localdisk backend a capacity ceiling
// and a free_space answer.
func (d *Backend) GetMeta(ctx context.Context, name string) (interface{}, error) {
	return nil, backend.NoMetaError{Name: name, DriverName: d.Name()}
}

func (d *Backend) SysPath(ctx context.Context, p string) (string, error) {
	return d.fullPath(p), nil
}
