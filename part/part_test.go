package part_test

import (
	"context"
	"io"
	"testing"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/memory"
	"github.com/lukasmartinelli-alt/cuckoodrive/part"
)

func openStream(t *testing.T) backend.Stream {
	t.Helper()
	b := memory.New()
	s, err := b.Open(context.Background(), "/p.part0", backend.ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestWriteWithinCap(t *testing.T) {
	p := part.New(openStream(t), 8, 0)

	n, err := p.Write([]byte("1234"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 4 || p.Size() != 4 {
		t.Fatalf("n=%d size=%d, want 4/4", n, p.Size())
	}
}

func TestWritePastCapReturnsPartFull(t *testing.T) {
	p := part.New(openStream(t), 4, 0)

	n, err := p.Write([]byte("123456"))
	if n != 4 {
		t.Fatalf("expected 4 bytes written before cap, got %d", n)
	}
	pfe, ok := err.(backend.PartFullError)
	if !ok {
		t.Fatalf("expected PartFullError, got %T: %v", err, err)
	}
	if pfe.Written != 4 {
		t.Fatalf("expected Written=4, got %d", pfe.Written)
	}
}

func TestWriteExactlyAtCapSucceeds(t *testing.T) {
	p := part.New(openStream(t), 4, 0)

	n, err := p.Write([]byte("1234"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4, got %d", n)
	}

	// A further write of any size must now fail immediately.
	n, err = p.Write([]byte("x"))
	if n != 0 {
		t.Fatalf("expected 0 bytes written, got %d", n)
	}
	if _, ok := err.(backend.PartFullError); !ok {
		t.Fatalf("expected PartFullError, got %T", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	p := part.New(openStream(t), 8, 0)
	if err := p.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got: %v", err)
	}
}

func TestReadDelegates(t *testing.T) {
	s := openStream(t)
	p := part.New(s, 8, 0)
	p.Write([]byte("abcd"))
	p.Seek(0, io.SeekStart)

	buf := make([]byte, 4)
	n, err := p.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "abcd" {
		t.Fatalf("got %q", buf[:n])
	}
}
