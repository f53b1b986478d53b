package localdisk

import (
	"context"
	"io"
	"testing"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/factory"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	w, err := b.Open(ctx, "/a/b.txt", backend.ModeWrite)
	if err != nil {
		t.Fatalf("open for write: %v", err)
	}
	if _, err := w.Write([]byte("hello world")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := b.Open(ctx, "/a/b.txt", backend.ModeRead)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
}

func TestOpenReadMissingFails(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Open(context.Background(), "/missing.txt", backend.ModeRead)
	if _, ok := err.(backend.NotFoundError); !ok {
		t.Fatalf("got %v, want NotFoundError", err)
	}
}

func TestRemoveAndExists(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	w, _ := b.Open(ctx, "/f.txt", backend.ModeWrite)
	w.Write([]byte("x"))
	w.Close()

	if exists, _ := b.Exists(ctx, "/f.txt"); !exists {
		t.Fatal("expected file to exist")
	}

	if err := b.Remove(ctx, "/f.txt"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if exists, _ := b.Exists(ctx, "/f.txt"); exists {
		t.Fatal("expected file to be gone")
	}

	if err := b.Remove(ctx, "/f.txt"); err == nil {
		t.Fatal("expected NotFoundError removing twice")
	}
}

func TestRenameMovesFile(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	w, _ := b.Open(ctx, "/src.txt", backend.ModeWrite)
	w.Write([]byte("payload"))
	w.Close()

	if err := b.Rename(ctx, "/src.txt", "/dir/dst.txt"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if exists, _ := b.Exists(ctx, "/src.txt"); exists {
		t.Fatal("source should be gone after rename")
	}
	if exists, _ := b.Exists(ctx, "/dir/dst.txt"); !exists {
		t.Fatal("destination should exist after rename")
	}
}

func TestListDirFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	for _, name := range []string{"/b.txt", "/a.txt", "/c.txt"} {
		w, _ := b.Open(ctx, name, backend.ModeWrite)
		w.Close()
	}
	b.MakeDir(ctx, "/sub", backend.MakeDirOptions{})

	names, err := b.ListDir(ctx, "/", backend.ListOptions{FilesOnly: true})
	if err != nil {
		t.Fatalf("listdir: %v", err)
	}
	want := []string{"a.txt", "b.txt", "c.txt"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestSysPathReturnsAbsolutePath(t *testing.T) {
	b := newTestBackend(t)

	got, err := b.SysPath(context.Background(), "/a/b.txt")
	if err != nil {
		t.Fatalf("syspath: %v", err)
	}
	if got == "" {
		t.Fatal("expected non-empty syspath")
	}
}

func TestRegisteredWithFactory(t *testing.T) {
	if !factory.Registered("localdisk") {
		t.Fatal("expected localdisk to self-register with backend/factory")
	}
}
