// Package partedfile implements the parted file stream: a single logical
// byte stream stitched together out of fixed-cap backend.Stream parts. It
// knows nothing about names or listings — partedfs owns that — only how to
// turn a file pointer into reads and writes against
// whichever part currently owns it, expanding onto a new part on demand.
package partedfile

import (
	"context"
	"io"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/part"
	"github.com/lukasmartinelli-alt/cuckoodrive/partpath"
)

// File is a logical stream spanning one or more fixed-size parts held open
// against w. Callers obtain one through partedfs.FS.Open; File itself does
// not look anything up by name.
//
// File captures the context it was opened with and reuses it for every
// backend call made over its lifetime, the same way a cloud SDK's Reader
// keeps the ctx passed to its constructor — Read/Write/Seek/Close need to
// satisfy io.ReadWriteSeeker, which leaves no room for a per-call ctx.
type File struct {
	ctx         context.Context
	w           backend.Backend
	path        string
	mode        backend.Mode
	maxPartSize int64

	parts  []*part.Part
	fp     int64
	closed bool
	poison error
}

// New wraps parts, which must already be open against w in ascending part
// order starting at part 0, into a single logical stream at path. For a
// brand-new file parts holds just the freshly allocated part 0.
func New(ctx context.Context, w backend.Backend, path string, mode backend.Mode, maxPartSize int64, parts []*part.Part) *File {
	return &File{
		ctx:         ctx,
		w:           w,
		path:        path,
		mode:        mode,
		maxPartSize: maxPartSize,
		parts:       parts,
	}
}

// totalSize is the logical end-of-file offset: the sum of every part's size.
func (f *File) totalSize() int64 {
	var n int64
	for _, p := range f.parts {
		n += p.Size()
	}
	return n
}

// currentPart returns the part owning f.fp, positioning its cursor at
// fp mod maxPartSize. In a writable mode it expands onto a new part when fp
// sits exactly one part past the last one; in read mode, or when fp is
// further out, it fails with PointerOutOfBoundsError (which Read reports as
// io.EOF).
func (f *File) currentPart() (*part.Part, error) {
	k := int(f.fp / f.maxPartSize)

	if k < len(f.parts) {
		p := f.parts[k]
		if _, err := p.Seek(f.fp%f.maxPartSize, io.SeekStart); err != nil {
			return nil, err
		}
		return p, nil
	}

	if k == len(f.parts) && f.mode != backend.ModeRead {
		return f.expand()
	}

	return nil, backend.PointerOutOfBoundsError{Path: f.path, At: f.fp}
}

// expand allocates the next part against w. A genuine CapacityError (no
// backend had room) is returned verbatim and leaves the stream unpoisoned —
// the caller can still retry against more room becoming available — while
// any other failure (a NoMetaError from a composite that can't pick a
// writer, or a backend I/O error opening the new part) poisons the stream
// the same way a mid-write backend error does. Either way
// the stream is left consistent with the parts that already exist — expand
// never appends a half-created part to f.parts.
func (f *File) expand() (*part.Part, error) {
	idx := len(f.parts)
	physical := partpath.Encode(f.path, idx)

	stream, err := f.w.Open(f.ctx, physical, backend.ModeWrite)
	if err != nil {
		if _, ok := err.(backend.CapacityError); ok {
			return nil, err
		}
		f.poison = err
		return nil, backend.PoisonedError{Path: f.path, Err: err}
	}

	p := part.New(stream, f.maxPartSize, 0)
	f.parts = append(f.parts, p)
	return p, nil
}

// Write implements io.Writer. It drains b across as many parts as needed,
// expanding onto a new one each time the current part reports PartFullError,
// and poisons the stream on any other backend error.
func (f *File) Write(b []byte) (int, error) {
	if f.closed {
		return 0, backend.ClosedError{Path: f.path}
	}
	if f.poison != nil {
		return 0, backend.PoisonedError{Path: f.path, Err: f.poison}
	}

	var total int
	for len(b) > 0 {
		cp, err := f.currentPart()
		if err != nil {
			return total, err
		}

		n, err := cp.Write(b)
		f.fp += int64(n)
		total += n
		b = b[n:]

		if err != nil {
			if _, ok := err.(backend.PartFullError); ok {
				continue
			}
			// Capacity exhaustion is not a stream fault: the parts written
			// so far stay valid and the caller may retry once room frees up.
			if _, ok := err.(backend.CapacityError); ok {
				return total, err
			}
			f.poison = err
			return total, backend.PoisonedError{Path: f.path, Err: err}
		}
	}

	return total, nil
}

// Read implements io.Reader. It rejects a request whose buffer exceeds
// maxPartSize with UnsupportedError — a chunked reader's sizehint must fit
// within a single part — and otherwise straddles the part boundary at most
// once, since len(p) <= maxPartSize bounds the read to at most two parts.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, backend.ClosedError{Path: f.path}
	}
	if f.poison != nil {
		return 0, backend.PoisonedError{Path: f.path, Err: f.poison}
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > f.maxPartSize {
		return 0, backend.UnsupportedError{Op: "read sizehint exceeds max_part_size"}
	}
	// EOF before currentPart: in a writable mode currentPart would expand,
	// and reads must never allocate parts.
	if f.fp >= f.totalSize() {
		return 0, io.EOF
	}

	cp, err := f.currentPart()
	if err != nil {
		if _, ok := err.(backend.PointerOutOfBoundsError); ok {
			return 0, io.EOF
		}
		return 0, err
	}

	offsetInPart := f.fp % f.maxPartSize
	remaining := cp.Size() - offsetInPart
	if remaining < 0 {
		remaining = 0
	}

	if int64(len(p)) <= remaining {
		n, err := cp.Read(p)
		f.fp += int64(n)
		if err == io.EOF {
			err = nil
		}
		return n, err
	}

	n1, err := cp.Read(p[:remaining])
	f.fp += int64(n1)
	if err != nil && err != io.EOF {
		f.poison = err
		return n1, backend.PoisonedError{Path: f.path, Err: err}
	}

	if f.fp >= f.totalSize() {
		if n1 == 0 {
			return 0, io.EOF
		}
		return n1, nil
	}

	next, err := f.currentPart()
	if err != nil {
		if _, ok := err.(backend.PointerOutOfBoundsError); ok {
			return n1, nil
		}
		return n1, err
	}

	n2, err := next.Read(p[n1:])
	f.fp += int64(n2)
	if err == io.EOF {
		err = nil
	}
	return n1 + n2, err
}

// ReadAll drains every remaining byte of the file from the current cursor
// onward, the unbounded-read mode described alongside Read.
func (f *File) ReadAll() ([]byte, error) {
	var out []byte
	buf := make([]byte, f.maxPartSize)
	for {
		n, err := f.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, nil
		}
	}
}

// Seek implements io.Seeker for SeekStart and SeekCurrent only; seeking from
// the end is UnsupportedError since no part tracks total file length on its
// own. Every part's cursor is repositioned to match: the part now owning fp
// to fp mod maxPartSize, every other part to its own start.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return f.fp, backend.ClosedError{Path: f.path}
	}
	if f.poison != nil {
		return f.fp, backend.PoisonedError{Path: f.path, Err: f.poison}
	}

	var newFp int64
	switch whence {
	case io.SeekStart:
		newFp = offset
	case io.SeekCurrent:
		newFp = f.fp + offset
	case io.SeekEnd:
		return f.fp, backend.UnsupportedError{Op: "seek relative to end"}
	default:
		return f.fp, backend.UnsupportedError{Op: "seek whence"}
	}

	if newFp < 0 {
		return f.fp, backend.InvalidOffsetError{Path: f.path, Offset: newFp}
	}

	f.fp = newFp
	k := int(f.fp / f.maxPartSize)
	for i, p := range f.parts {
		if i == k {
			if _, err := p.Seek(f.fp%f.maxPartSize, io.SeekStart); err != nil {
				return f.fp, err
			}
			continue
		}
		if _, err := p.Seek(0, io.SeekStart); err != nil {
			return f.fp, err
		}
	}

	return f.fp, nil
}

// Tell reports the current file pointer without side effects.
func (f *File) Tell() (int64, error) {
	return f.fp, nil
}

// Close closes every held-open part, idempotently, returning the first
// error encountered.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var firstErr error
	for _, p := range f.parts {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
