// Package part implements the file-part stream: a length-capped wrapper
// around a single backend.Stream that rejects writes past its cap instead
// of silently growing forever. It is the unit partedfile.File stitches
// together into one logical stream.
package part

import (
	"io"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
)

// Part wraps a single backend.Stream with a hard maxSize. It tracks its own
// size so callers can ask how full it is without a round-trip to the backend.
type Part struct {
	stream backend.Stream
	max    int64
	size   int64
	closed bool
}

// New wraps stream, which must already be positioned at the start of the
// part, with the given cap. size is the part's current length (0 for a
// freshly-allocated part, or the backend-reported size when reopening an
// existing one).
func New(stream backend.Stream, max, size int64) *Part {
	return &Part{stream: stream, max: max, size: size}
}

// Size reports the part's current length — flushed content plus anything
// buffered by the underlying stream.
func (p *Part) Size() int64 {
	return p.size
}

// Max reports the part's capacity.
func (p *Part) Max() int64 {
	return p.max
}

// Read delegates to the underlying stream unchanged.
func (p *Part) Read(b []byte) (int, error) {
	return p.stream.Read(b)
}

// Write writes b to the underlying stream, failing with PartFullError
// before the cap is exceeded. Written in the returned error is the number
// of bytes from b that made it in before the cap was hit, so the caller
// can carry the remainder into a new part.
func (p *Part) Write(b []byte) (int, error) {
	pos, err := p.stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	room := p.max - pos
	if room <= 0 {
		return 0, backend.PartFullError{Written: 0}
	}

	toWrite := b
	truncated := false
	if int64(len(b)) > room {
		toWrite = b[:room]
		truncated = true
	}

	n, err := p.stream.Write(toWrite)
	if n > 0 && pos+int64(n) > p.size {
		p.size = pos + int64(n)
	}
	if err != nil {
		return n, err
	}
	if truncated {
		return n, backend.PartFullError{Written: n}
	}
	return n, nil
}

// Seek delegates to the underlying stream.
func (p *Part) Seek(offset int64, whence int) (int64, error) {
	return p.stream.Seek(offset, whence)
}

// Tell returns the part's current cursor position.
func (p *Part) Tell() (int64, error) {
	return p.stream.Seek(0, io.SeekCurrent)
}

// Close is idempotent.
func (p *Part) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.stream.Close()
}
