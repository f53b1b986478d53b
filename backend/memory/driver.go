// Package memory implements an in-process backend.Backend backed by a map.
// Intended for tests and local demos, not production placement; it has no
// capacity ceiling of its own (wrap it in backend/sized to give it one).
package memory

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/factory"
)

func init() {
	factory.Register("memory", func(parameters map[string]interface{}) (backend.Backend, error) {
		return New(), nil
	})
}

type node struct {
	isDir   bool
	data    []byte
	modTime time.Time
	accTime time.Time
}

// Backend is a backend.Backend implementation backed by an in-memory map of
// normalized path to node. Safe for concurrent use.
type Backend struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

// New constructs an empty Backend, rooted at "/".
func New() *Backend {
	now := time.Now()
	return &Backend{
		nodes: map[string]*node{
			"/": {isDir: true, modTime: now, accTime: now},
		},
	}
}

var _ backend.Backend = (*Backend)(nil)

func (b *Backend) Name() string { return "memory" }

func normalize(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	return cleaned
}

func (b *Backend) Exists(ctx context.Context, p string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.nodes[normalize(p)]
	return ok, nil
}

func (b *Backend) IsFile(ctx context.Context, p string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.nodes[normalize(p)]
	return ok && !n.isDir, nil
}

func (b *Backend) IsDir(ctx context.Context, p string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.nodes[normalize(p)]
	return ok && n.isDir, nil
}

// ensureDir creates p and all missing ancestors as directories.
func (b *Backend) ensureDir(p string) {
	p = normalize(p)
	if n, ok := b.nodes[p]; ok && n.isDir {
		return
	}
	if p != "/" {
		b.ensureDir(path.Dir(p))
	}
	now := time.Now()
	b.nodes[p] = &node{isDir: true, modTime: now, accTime: now}
}

func (b *Backend) Open(ctx context.Context, p string, mode backend.Mode) (backend.Stream, error) {
	normalized := normalize(p)

	b.mu.Lock()
	defer b.mu.Unlock()

	n, exists := b.nodes[normalized]
	if exists && n.isDir {
		return nil, backend.InvalidResourceError{Path: p}
	}

	switch mode {
	case backend.ModeRead:
		if !exists {
			return nil, backend.NotFoundError{Path: p}
		}
	case backend.ModeWrite:
		b.ensureDir(path.Dir(normalized))
		now := time.Now()
		n = &node{modTime: now, accTime: now}
		b.nodes[normalized] = n
	case backend.ModeReadWrite:
		if !exists {
			b.ensureDir(path.Dir(normalized))
			now := time.Now()
			n = &node{modTime: now, accTime: now}
			b.nodes[normalized] = n
		}
	}

	return &stream{b: b, node: n}, nil
}

type stream struct {
	b      *Backend
	node   *node
	pos    int64
	closed bool
}

func (s *stream) Read(p []byte) (int, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()

	if s.pos >= int64(len(s.node.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.node.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *stream) Write(p []byte) (int, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	end := s.pos + int64(len(p))
	if end > int64(len(s.node.data)) {
		grown := make([]byte, end)
		copy(grown, s.node.data)
		s.node.data = grown
	}
	n := copy(s.node.data[s.pos:end], p)
	s.pos += int64(n)
	s.node.modTime = time.Now()
	return n, nil
}

func (s *stream) Seek(offset int64, whence int) (int64, error) {
	s.b.mu.RLock()
	size := int64(len(s.node.data))
	s.b.mu.RUnlock()

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = s.pos + offset
	case io.SeekEnd:
		newPos = size + offset
	}
	if newPos < 0 {
		return s.pos, backend.InvalidOffsetError{Offset: newPos}
	}
	s.pos = newPos
	return s.pos, nil
}

func (s *stream) Close() error {
	s.closed = true
	return nil
}

func (b *Backend) ListDir(ctx context.Context, p string, opts backend.ListOptions) ([]string, error) {
	normalized := normalize(p)

	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.nodes[normalized]
	if !ok {
		return nil, backend.NotFoundError{Path: p}
	}
	if !n.isDir {
		return nil, backend.InvalidResourceError{Path: p}
	}

	var names []string
	for key, child := range b.nodes {
		if key == normalized {
			continue
		}
		if path.Dir(key) != normalized {
			continue
		}
		if opts.DirsOnly && !child.isDir {
			continue
		}
		if opts.FilesOnly && child.isDir {
			continue
		}
		base := path.Base(key)
		if opts.Wildcard != "" {
			if matched, _ := path.Match(opts.Wildcard, base); !matched {
				continue
			}
		}
		if opts.Full || opts.Absolute {
			names = append(names, key)
		} else {
			names = append(names, base)
		}
	}

	sort.Strings(names)
	return names, nil
}

func (b *Backend) MakeDir(ctx context.Context, p string, opts backend.MakeDirOptions) error {
	normalized := normalize(p)

	b.mu.Lock()
	defer b.mu.Unlock()

	if n, ok := b.nodes[normalized]; ok {
		if !n.isDir {
			return backend.InvalidResourceError{Path: p}
		}
		if !opts.AllowRecreate {
			return backend.InvalidResourceError{Path: p}
		}
		return nil
	}

	parent := path.Dir(normalized)
	if _, ok := b.nodes[parent]; !ok {
		if !opts.Recursive {
			return backend.NotFoundError{Path: parent}
		}
	}

	b.ensureDir(normalized)
	return nil
}

func (b *Backend) RemoveDir(ctx context.Context, p string, opts backend.RemoveDirOptions) error {
	normalized := normalize(p)
	if normalized == "/" {
		return backend.InvalidPathError{Path: p}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[normalized]
	if !ok {
		if opts.Force {
			return nil
		}
		return backend.NotFoundError{Path: p}
	}
	if !n.isDir {
		return backend.InvalidResourceError{Path: p}
	}

	hasChildren := false
	for key := range b.nodes {
		if path.Dir(key) == normalized {
			hasChildren = true
			break
		}
	}
	if hasChildren && !opts.Recursive {
		return backend.InvalidResourceError{Path: p}
	}

	prefix := normalized + "/"
	for key := range b.nodes {
		if key == normalized || strings.HasPrefix(key, prefix) {
			delete(b.nodes, key)
		}
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, p string) error {
	normalized := normalize(p)

	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[normalized]
	if !ok {
		return backend.NotFoundError{Path: p}
	}
	if n.isDir {
		return backend.InvalidResourceError{Path: p}
	}

	delete(b.nodes, normalized)
	return nil
}

func (b *Backend) Rename(ctx context.Context, src, dst string) error {
	normSrc := normalize(src)
	normDst := normalize(dst)

	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[normSrc]
	if !ok {
		return backend.NotFoundError{Path: src}
	}

	b.ensureDir(path.Dir(normDst))

	if n.isDir {
		prefix := normSrc + "/"
		for key, child := range b.nodes {
			if key == normSrc {
				continue
			}
			if strings.HasPrefix(key, prefix) {
				newKey := normDst + strings.TrimPrefix(key, normSrc)
				b.nodes[newKey] = child
				delete(b.nodes, key)
			}
		}
	}

	b.nodes[normDst] = n
	delete(b.nodes, normSrc)
	return nil
}

func (b *Backend) GetSize(ctx context.Context, p string) (int64, error) {
	normalized := normalize(p)

	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.nodes[normalized]
	if !ok {
		return 0, backend.NotFoundError{Path: p}
	}
	if n.isDir {
		return 0, nil
	}
	return int64(len(n.data)), nil
}

type fileInfo struct {
	path     string
	size     int64
	modTime  time.Time
	accTime  time.Time
	isDir    bool
}

func (fi fileInfo) Path() string               { return fi.path }
func (fi fileInfo) Size() int64                { return fi.size }
func (fi fileInfo) CreatedTime() time.Time     { return fi.modTime }
func (fi fileInfo) ModifiedTime() time.Time    { return fi.modTime }
func (fi fileInfo) AccessedTime() time.Time    { return fi.accTime }
func (fi fileInfo) IsDir() bool                { return fi.isDir }

func (b *Backend) GetInfo(ctx context.Context, p string) (backend.FileInfo, error) {
	normalized := normalize(p)

	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.nodes[normalized]
	if !ok {
		return nil, backend.NotFoundError{Path: p}
	}

	size := int64(0)
	if !n.isDir {
		size = int64(len(n.data))
	}

	return fileInfo{
		path:    p,
		size:    size,
		modTime: n.modTime,
		accTime: n.accTime,
		isDir:   n.isDir,
	}, nil
}

func (b *Backend) SetTimes(ctx context.Context, p string, accessed, modified *time.Time) error {
	normalized := normalize(p)

	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[normalized]
	if !ok {
		return backend.NotFoundError{Path: p}
	}

	if accessed != nil {
		n.accTime = *accessed
	}
	if modified != nil {
		n.modTime = *modified
	}
	return nil
}

func (b *Backend) GetMeta(ctx context.Context, name string) (interface{}, error) {
	return nil, backend.NoMetaError{Name: name, DriverName: b.Name()}
}

func (b *Backend) SysPath(ctx context.Context, p string) (string, error) {
	return "", backend.NoSysPathError{Path: p}
}
