// Package partedfs implements the parted virtual filesystem: it presents a
// backend.Backend (or a composite of several, see package composite) as a
// namespace of whole logical files, each of which may physically be split
// across any number of ".partN" siblings named by package partpath.
package partedfs

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"time"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/part"
	"github.com/lukasmartinelli-alt/cuckoodrive/partedfile"
	"github.com/lukasmartinelli-alt/cuckoodrive/partpath"
)

// FS wraps a backend.Backend W, splitting every file it writes into parts of
// at most maxPartSize bytes.
type FS struct {
	w           backend.Backend
	maxPartSize int64
}

// New wraps w with the given per-part cap, which must be positive.
func New(w backend.Backend, maxPartSize int64) *FS {
	return &FS{w: w, maxPartSize: maxPartSize}
}

// Name returns the underlying backend's name.
func (fs *FS) Name() string { return fs.w.Name() }

func (fs *FS) partZero(p string) string { return partpath.Encode(p, 0) }

// listParts returns the part indices physically present for logical path p,
// ascending, by listing p's parent directory and decoding its children.
func (fs *FS) listParts(ctx context.Context, p string) ([]int, error) {
	dir := path.Dir(p)
	children, err := fs.w.ListDir(ctx, dir, backend.ListOptions{FilesOnly: true, Full: true})
	if err != nil {
		if _, ok := err.(backend.NotFoundError); ok {
			return nil, nil
		}
		return nil, err
	}

	var idxs []int
	for _, c := range children {
		logical, n, ok := partpath.Decode(c)
		if ok && logical == p {
			idxs = append(idxs, n)
		}
	}
	sort.Ints(idxs)
	return idxs, nil
}

// Exists reports whether p names either a directory or a file (part 0) in W.
func (fs *FS) Exists(ctx context.Context, p string) (bool, error) {
	if isDir, err := fs.w.IsDir(ctx, p); err != nil {
		return false, err
	} else if isDir {
		return true, nil
	}
	return fs.w.Exists(ctx, fs.partZero(p))
}

// IsFile reports whether p names a logical file — part 0 present in W.
func (fs *FS) IsFile(ctx context.Context, p string) (bool, error) {
	return fs.w.Exists(ctx, fs.partZero(p))
}

// IsDir delegates straight to W; directories are not parted.
func (fs *FS) IsDir(ctx context.Context, p string) (bool, error) {
	return fs.w.IsDir(ctx, p)
}

// ListDir returns the union of W's subdirectories of p and the logical names
// decoded from every "*.part0" file directly under p.
func (fs *FS) ListDir(ctx context.Context, p string, opts backend.ListOptions) ([]string, error) {
	if isDir, err := fs.w.IsDir(ctx, p); err != nil {
		return nil, err
	} else if !isDir {
		if exists, _ := fs.w.Exists(ctx, p); !exists {
			return nil, backend.NotFoundError{Path: p}
		}
		return nil, backend.InvalidResourceError{Path: p}
	}

	children, err := fs.w.ListDir(ctx, p, backend.ListOptions{Full: true})
	if err != nil {
		return nil, err
	}

	var logical []string
	for _, child := range children {
		isChildDir, err := fs.w.IsDir(ctx, child)
		if err != nil {
			return nil, err
		}
		if isChildDir {
			if opts.FilesOnly {
				continue
			}
			logical = append(logical, child)
			continue
		}
		if opts.DirsOnly {
			continue
		}
		name, idx, ok := partpath.Decode(child)
		if !ok || idx != 0 {
			continue
		}
		logical = append(logical, name)
	}

	var out []string
	for _, l := range logical {
		base := path.Base(l)
		if opts.Wildcard != "" {
			if matched, _ := path.Match(opts.Wildcard, base); !matched {
				continue
			}
		}
		if opts.Full || opts.Absolute {
			out = append(out, l)
		} else {
			out = append(out, base)
		}
	}

	sort.Strings(out)
	return out, nil
}

// openParts opens every existing physical part of p, in ascending order, in
// the given mode, seeding each part.Part with its backend-reported size.
func (fs *FS) openParts(ctx context.Context, p string, mode backend.Mode) ([]*part.Part, error) {
	idxs, err := fs.listParts(ctx, p)
	if err != nil {
		return nil, err
	}

	parts := make([]*part.Part, 0, len(idxs))
	for _, i := range idxs {
		phys := partpath.Encode(p, i)
		size, err := fs.w.GetSize(ctx, phys)
		if err != nil {
			return nil, err
		}
		s, err := fs.w.Open(ctx, phys, mode)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part.New(s, fs.maxPartSize, size))
	}
	return parts, nil
}

func (fs *FS) removeParts(ctx context.Context, p string) error {
	idxs, err := fs.listParts(ctx, p)
	if err != nil {
		return err
	}
	for _, i := range idxs {
		if err := fs.w.Remove(ctx, partpath.Encode(p, i)); err != nil {
			return err
		}
	}
	return nil
}

// Open implements the per-mode semantics: read-only requires the
// file to already exist and opens every part; plain write removes any
// existing parts and starts a fresh part 0; read-write opens existing parts
// if present, otherwise behaves like write.
func (fs *FS) Open(ctx context.Context, p string, mode backend.Mode) (*partedfile.File, error) {
	if isDir, err := fs.w.IsDir(ctx, p); err != nil {
		return nil, err
	} else if isDir {
		return nil, backend.InvalidResourceError{Path: p}
	}

	isFile, err := fs.w.Exists(ctx, fs.partZero(p))
	if err != nil {
		return nil, err
	}

	switch mode {
	case backend.ModeRead:
		if !isFile {
			return nil, backend.NotFoundError{Path: p}
		}
		parts, err := fs.openParts(ctx, p, backend.ModeRead)
		if err != nil {
			return nil, err
		}
		return partedfile.New(ctx, fs.w, p, mode, fs.maxPartSize, parts), nil

	case backend.ModeReadWrite:
		if isFile {
			parts, err := fs.openParts(ctx, p, backend.ModeReadWrite)
			if err != nil {
				return nil, err
			}
			return partedfile.New(ctx, fs.w, p, mode, fs.maxPartSize, parts), nil
		}
		fallthrough

	default: // backend.ModeWrite, and ModeReadWrite-without-existing-file
		if isFile {
			if err := fs.removeParts(ctx, p); err != nil {
				return nil, err
			}
		}
		s, err := fs.w.Open(ctx, fs.partZero(p), backend.ModeWrite)
		if err != nil {
			return nil, err
		}
		p0 := part.New(s, fs.maxPartSize, 0)
		return partedfile.New(ctx, fs.w, p, mode, fs.maxPartSize, []*part.Part{p0}), nil
	}
}

// Remove deletes every part of the logical file p.
func (fs *FS) Remove(ctx context.Context, p string) error {
	if isDir, err := fs.w.IsDir(ctx, p); err != nil {
		return err
	} else if isDir {
		return backend.InvalidResourceError{Path: p}
	}

	isFile, err := fs.w.Exists(ctx, fs.partZero(p))
	if err != nil {
		return err
	}
	if !isFile {
		return backend.NotFoundError{Path: p}
	}
	return fs.removeParts(ctx, p)
}

// MakeDir and RemoveDir mirror straight through to W; only files are parted.
func (fs *FS) MakeDir(ctx context.Context, p string, opts backend.MakeDirOptions) error {
	return fs.w.MakeDir(ctx, p, opts)
}

func (fs *FS) RemoveDir(ctx context.Context, p string, opts backend.RemoveDirOptions) error {
	return fs.w.RemoveDir(ctx, p, opts)
}

// Rename renames a directory straight through to W, or every part of a file
// in ascending order, preserving each part's index at the destination.
func (fs *FS) Rename(ctx context.Context, src, dst string) error {
	if isDir, err := fs.w.IsDir(ctx, src); err != nil {
		return err
	} else if isDir {
		return fs.w.Rename(ctx, src, dst)
	}

	idxs, err := fs.listParts(ctx, src)
	if err != nil {
		return err
	}
	if len(idxs) == 0 {
		return backend.NotFoundError{Path: src}
	}
	for _, i := range idxs {
		if err := fs.w.Rename(ctx, partpath.Encode(src, i), partpath.Encode(dst, i)); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FS) copyPhysical(ctx context.Context, src, dst string) error {
	r, err := fs.w.Open(ctx, src, backend.ModeRead)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := fs.w.Open(ctx, dst, backend.ModeWrite)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Copy copies a directory's full tree, or a file's parts one by one,
// preserving part indices. W has no Copy primitive of its own, so each part
// is copied through a plain Open-read/Open-write/io.Copy round trip.
func (fs *FS) Copy(ctx context.Context, src, dst string) error {
	isDir, err := fs.w.IsDir(ctx, src)
	if err != nil {
		return err
	}
	if isDir {
		return fs.copyDir(ctx, src, dst)
	}

	idxs, err := fs.listParts(ctx, src)
	if err != nil {
		return err
	}
	if len(idxs) == 0 {
		return backend.NotFoundError{Path: src}
	}
	for _, i := range idxs {
		if err := fs.copyPhysical(ctx, partpath.Encode(src, i), partpath.Encode(dst, i)); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FS) copyDir(ctx context.Context, src, dst string) error {
	if err := fs.w.MakeDir(ctx, dst, backend.MakeDirOptions{Recursive: true, AllowRecreate: true}); err != nil {
		return err
	}

	children, err := fs.ListDir(ctx, src, backend.ListOptions{Full: true})
	if err != nil {
		return err
	}
	for _, c := range children {
		name := path.Base(c)
		isDir, err := fs.w.IsDir(ctx, c)
		if err != nil {
			return err
		}
		if isDir {
			if err := fs.copyDir(ctx, c, path.Join(dst, name)); err != nil {
				return err
			}
			continue
		}
		if err := fs.Copy(ctx, c, path.Join(dst, name)); err != nil {
			return err
		}
	}
	return nil
}

// GetSize sums W.GetSize over every part.
func (fs *FS) GetSize(ctx context.Context, p string) (int64, error) {
	idxs, err := fs.listParts(ctx, p)
	if err != nil {
		return 0, err
	}
	if len(idxs) == 0 {
		return 0, backend.NotFoundError{Path: p}
	}

	var total int64
	for _, i := range idxs {
		sz, err := fs.w.GetSize(ctx, partpath.Encode(p, i))
		if err != nil {
			return 0, err
		}
		total += sz
	}
	return total, nil
}

type fileInfo struct {
	path    string
	size    int64
	modTime time.Time
	accTime time.Time
	isDir   bool
}

func (fi fileInfo) Path() string            { return fi.path }
func (fi fileInfo) Size() int64             { return fi.size }
func (fi fileInfo) CreatedTime() time.Time  { return fi.modTime }
func (fi fileInfo) ModifiedTime() time.Time { return fi.modTime }
func (fi fileInfo) AccessedTime() time.Time { return fi.accTime }
func (fi fileInfo) IsDir() bool             { return fi.isDir }

// GetInfo delegates to W for directories. For files it assembles size as the
// sum of every part and created_time/modified_time as the max modified_time
// across parts — there is no per-part creation time to draw from, so the
// most recent modification is the safest "known after" bound.
func (fs *FS) GetInfo(ctx context.Context, p string) (backend.FileInfo, error) {
	if isDir, err := fs.w.IsDir(ctx, p); err != nil {
		return nil, err
	} else if isDir {
		return fs.w.GetInfo(ctx, p)
	}

	idxs, err := fs.listParts(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(idxs) == 0 {
		return nil, backend.NotFoundError{Path: p}
	}

	var size int64
	var maxMod, maxAcc time.Time
	for _, i := range idxs {
		info, err := fs.w.GetInfo(ctx, partpath.Encode(p, i))
		if err != nil {
			return nil, err
		}
		size += info.Size()
		if info.ModifiedTime().After(maxMod) {
			maxMod = info.ModifiedTime()
		}
		if info.AccessedTime().After(maxAcc) {
			maxAcc = info.AccessedTime()
		}
	}

	return fileInfo{path: p, size: size, modTime: maxMod, accTime: maxAcc}, nil
}

// SetTimes applies straight through to W for a directory, or to every part
// of a file.
func (fs *FS) SetTimes(ctx context.Context, p string, accessed, modified *time.Time) error {
	if isDir, err := fs.w.IsDir(ctx, p); err != nil {
		return err
	} else if isDir {
		return fs.w.SetTimes(ctx, p, accessed, modified)
	}

	idxs, err := fs.listParts(ctx, p)
	if err != nil {
		return err
	}
	if len(idxs) == 0 {
		return backend.NotFoundError{Path: p}
	}
	for _, i := range idxs {
		if err := fs.w.SetTimes(ctx, partpath.Encode(p, i), accessed, modified); err != nil {
			return err
		}
	}
	return nil
}

// GetMeta delegates to W unchanged.
func (fs *FS) GetMeta(ctx context.Context, name string) (interface{}, error) {
	return fs.w.GetMeta(ctx, name)
}

// ErrSkipDir, returned from a WalkFn, skips descending into the directory
// just visited without aborting the walk.
var ErrSkipDir = errors.New("partedfs: skip this directory")

// WalkFn is called once per logical entry encountered by Walk.
type WalkFn func(info backend.FileInfo) error

// Walk visits every directory and file under from, depth-first, directories
// before their children, files in lexical order alongside them.
func (fs *FS) Walk(ctx context.Context, from string, f WalkFn) error {
	return fs.walk(ctx, from, f, false, false)
}

// WalkFiles visits only files under from.
func (fs *FS) WalkFiles(ctx context.Context, from string, f WalkFn) error {
	return fs.walk(ctx, from, f, true, false)
}

// WalkDirs visits only directories under from.
func (fs *FS) WalkDirs(ctx context.Context, from string, f WalkFn) error {
	return fs.walk(ctx, from, f, false, true)
}

func (fs *FS) walk(ctx context.Context, from string, f WalkFn, filesOnly, dirsOnly bool) error {
	children, err := fs.ListDir(ctx, from, backend.ListOptions{Full: true})
	if err != nil {
		return err
	}
	sort.Strings(children)

	for _, child := range children {
		info, err := fs.GetInfo(ctx, child)
		if err != nil {
			if _, ok := err.(backend.NotFoundError); ok {
				// Removed between listing and stat; nothing left to visit.
				continue
			}
			return err
		}

		if info.IsDir() {
			if !filesOnly {
				if err := f(info); err != nil {
					if err == ErrSkipDir {
						continue
					}
					return err
				}
			}
			if err := fs.walk(ctx, child, f, filesOnly, dirsOnly); err != nil {
				return err
			}
			continue
		}

		if dirsOnly {
			continue
		}
		if err := f(info); err != nil && err != ErrSkipDir {
			return err
		}
	}
	return nil
}
