// Package backend defines the storage contract every CuckooDrive remote
// must satisfy, along with the small set of value types (Stream, FileInfo,
// list/mkdir/rmdir options) that flow across it.
//
// The canonical approach to adding a new remote is to implement Backend
// directly against the underlying client library, then wrap the result in
// sized.Backend so the fan-out layer can reason about its free space. See
// backend/localdisk and backend/memory for the pattern.
package backend

import (
	"context"
	"io"
	"regexp"
	"time"
)

// Mode selects how Open treats an existing file at path.
type Mode int

const (
	// ModeRead opens an existing file for reading only.
	ModeRead Mode = iota
	// ModeWrite truncates (or creates) the file for writing from byte 0.
	ModeWrite
	// ModeReadWrite opens an existing file in place, or behaves like
	// ModeWrite if the file does not yet exist.
	ModeReadWrite
)

// Stream is a handle returned by Backend.Open. Implementations need not be
// safe for concurrent use; callers that need that guarantee provide it
// themselves.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// FileInfo describes a single path on a Backend.
type FileInfo interface {
	Path() string
	Size() int64
	CreatedTime() time.Time
	ModifiedTime() time.Time
	AccessedTime() time.Time
	IsDir() bool
}

// ListOptions filters the result of Backend.ListDir.
type ListOptions struct {
	// DirsOnly restricts the listing to subdirectories.
	DirsOnly bool
	// FilesOnly restricts the listing to regular files.
	FilesOnly bool
	// Wildcard, if non-empty, is a path.Match pattern applied to
	// the base name of each entry.
	Wildcard string
	// Full returns entries joined with the listed directory's path.
	Full bool
	// Absolute returns entries as absolute paths regardless of Full.
	Absolute bool
}

// MakeDirOptions configures Backend.MakeDir.
type MakeDirOptions struct {
	// Recursive creates missing parent directories.
	Recursive bool
	// AllowRecreate suppresses the error when the directory already exists.
	AllowRecreate bool
}

// RemoveDirOptions configures Backend.RemoveDir.
type RemoveDirOptions struct {
	// Recursive removes non-empty directories.
	Recursive bool
	// Force suppresses NotFoundError for a missing directory.
	Force bool
}

// Backend is the capability contract every CuckooDrive remote satisfies:
// a single named key/value-ish file store with a capacity ceiling that it
// may or may not be able to report.
type Backend interface {
	// Name identifies the backend implementation, e.g. "localdisk", "s3".
	Name() string

	Open(ctx context.Context, path string, mode Mode) (Stream, error)
	Exists(ctx context.Context, path string) (bool, error)
	IsFile(ctx context.Context, path string) (bool, error)
	IsDir(ctx context.Context, path string) (bool, error)
	ListDir(ctx context.Context, path string, opts ListOptions) ([]string, error)
	MakeDir(ctx context.Context, path string, opts MakeDirOptions) error
	RemoveDir(ctx context.Context, path string, opts RemoveDirOptions) error
	Remove(ctx context.Context, path string) error
	Rename(ctx context.Context, src, dst string) error
	GetSize(ctx context.Context, path string) (int64, error)
	GetInfo(ctx context.Context, path string) (FileInfo, error)
	SetTimes(ctx context.Context, path string, accessed, modified *time.Time) error

	// GetMeta returns a backend-specific metadata value, or fails with
	// NoMetaError if name is not known to this backend.
	GetMeta(ctx context.Context, name string) (interface{}, error)

	// SysPath returns the backend's native filesystem path for path, for
	// backends (like localdisk) that have a single well-defined one. Any
	// backend without one, notably the fan-out composite, fails with
	// NoSysPathError.
	SysPath(ctx context.Context, path string) (string, error)
}

// freeSpacer is implemented by backends (notably sized.Backend) that can
// report free space directly, without going through GetMeta.
type freeSpacer interface {
	FreeSpace(ctx context.Context) (uint64, error)
}

// FreeSpace reports free space for b, preferring a direct FreeSpace method
// when the backend has one, falling back to the "free_space" meta key, and
// finally failing with NoMetaError. This precedence is what lets sized
// wrappers answer cheaply while still letting any Backend opt in through
// GetMeta alone.
func FreeSpace(ctx context.Context, b Backend) (uint64, error) {
	if fs, ok := b.(freeSpacer); ok {
		return fs.FreeSpace(ctx)
	}

	v, err := b.GetMeta(ctx, "free_space")
	if err != nil {
		return 0, NoMetaError{Name: "free_space", DriverName: b.Name()}
	}

	free, ok := v.(uint64)
	if !ok {
		return 0, NoMetaError{Name: "free_space", DriverName: b.Name()}
	}

	return free, nil
}

// PathRegexp is the expression a logical or physical path must match.
// CuckooDrive paths are POSIX-style, absolute, and slash-separated; any
// non-empty Unicode component is legal, since there's no repository-name
// grammar to enforce here.
var PathRegexp = regexp.MustCompile(`^/([^/\x00]+(/[^/\x00]+)*)?$`)
