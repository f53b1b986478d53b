package memory

import (
	"context"
	"io"
	"testing"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
)

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := New()

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

	isDir, err := b.IsDir(ctx, "/a")
	if err != nil || !isDir {
		t.Fatalf("expected /a to be an implicitly-created directory, got isDir=%v err=%v", isDir, err)
	}
}

func TestRemoveRequiresFile(t *testing.T) {
	ctx := context.Background()
	b := New()

	b.MakeDir(ctx, "/dir", backend.MakeDirOptions{Recursive: true})

	if err := b.Remove(ctx, "/dir"); err == nil {
		t.Fatal("expected error removing a directory with Remove")
	} else if _, ok := err.(backend.InvalidResourceError); !ok {
		t.Fatalf("expected InvalidResourceError, got %T", err)
	}

	if err := b.Remove(ctx, "/nope"); err == nil {
		t.Fatal("expected NotFoundError")
	} else if _, ok := err.(backend.NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %T", err)
	}
}

func TestRenamePreservesContent(t *testing.T) {
	ctx := context.Background()
	b := New()

	w, _ := b.Open(ctx, "/src.txt", backend.ModeWrite)
	w.Write([]byte("payload"))
	w.Close()

	if err := b.Rename(ctx, "/src.txt", "/dst.txt"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if exists, _ := b.Exists(ctx, "/src.txt"); exists {
		t.Fatal("source should no longer exist")
	}

	r, err := b.Open(ctx, "/dst.txt", backend.ModeRead)
	if err != nil {
		t.Fatalf("open dst: %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != "payload" {
		t.Fatalf("got %q", got)
	}
}

func TestListDirFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	b := New()

	for _, p := range []string{"/x/a.txt", "/x/b.txt"} {
		w, _ := b.Open(ctx, p, backend.ModeWrite)
		w.Close()
	}
	b.MakeDir(ctx, "/x/sub", backend.MakeDirOptions{Recursive: true})

	names, err := b.ListDir(ctx, "/x", backend.ListOptions{FilesOnly: true})
	if err != nil {
		t.Fatalf("listdir: %v", err)
	}
	if len(names) != 2 || names[0] != "a.txt" || names[1] != "b.txt" {
		t.Fatalf("unexpected listing: %v", names)
	}
}
