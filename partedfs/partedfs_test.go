package partedfs_test

import (
	"context"
	"sort"
	"testing"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/memory"
	"github.com/lukasmartinelli-alt/cuckoodrive/partedfs"
)

func TestWriteReadRoundTripAcrossParts(t *testing.T) {
	ctx := context.Background()
	fs := partedfs.New(memory.New(), 4)

	w, err := fs.Open(ctx, "/a/big.txt", backend.ModeWrite)
	if err != nil {
		t.Fatalf("open for write: %v", err)
	}
	if _, err := w.Write([]byte("0123456789AB")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := fs.Open(ctx, "/a/big.txt", backend.ModeRead)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer r.Close()

	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("readall: %v", err)
	}
	if string(got) != "0123456789AB" {
		t.Fatalf("got %q", got)
	}
}

func TestListDirUnionOfDirsAndLogicalFiles(t *testing.T) {
	ctx := context.Background()
	fs := partedfs.New(memory.New(), 4)

	w, _ := fs.Open(ctx, "/dir/file.txt", backend.ModeWrite)
	w.Write([]byte("0123456789")) // spans 3 parts
	w.Close()

	if err := fs.MakeDir(ctx, "/dir/sub", backend.MakeDirOptions{Recursive: true}); err != nil {
		t.Fatalf("makedir: %v", err)
	}

	names, err := fs.ListDir(ctx, "/dir", backend.ListOptions{})
	if err != nil {
		t.Fatalf("listdir: %v", err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "file.txt" || names[1] != "sub" {
		t.Fatalf("expected exactly one logical file and one dir, got %v", names)
	}
}

func TestOverwriteRemovesStalePartsWhenShrinking(t *testing.T) {
	ctx := context.Background()
	fs := partedfs.New(memory.New(), 4)

	w, _ := fs.Open(ctx, "/f", backend.ModeWrite)
	w.Write([]byte("0123456789")) // 3 parts
	w.Close()

	w2, err := fs.Open(ctx, "/f", backend.ModeWrite)
	if err != nil {
		t.Fatalf("reopen for write: %v", err)
	}
	w2.Write([]byte("ab")) // 1 part
	w2.Close()

	size, err := fs.GetSize(ctx, "/f")
	if err != nil {
		t.Fatalf("getsize: %v", err)
	}
	if size != 2 {
		t.Fatalf("expected size 2 after shrinking overwrite, got %d", size)
	}

	if exists, _ := fs.Exists(ctx, "/f"); !exists {
		t.Fatal("expected /f to still exist")
	}
}

func TestRenamePreservesPartsAndIndices(t *testing.T) {
	ctx := context.Background()
	fs := partedfs.New(memory.New(), 4)

	w, _ := fs.Open(ctx, "/src", backend.ModeWrite)
	w.Write([]byte("0123456789"))
	w.Close()

	if err := fs.Rename(ctx, "/src", "/dst"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if exists, _ := fs.Exists(ctx, "/src"); exists {
		t.Fatal("source should no longer exist")
	}
	r, err := fs.Open(ctx, "/dst", backend.ModeRead)
	if err != nil {
		t.Fatalf("open dst: %v", err)
	}
	defer r.Close()
	got, _ := r.ReadAll()
	if string(got) != "0123456789" {
		t.Fatalf("got %q", got)
	}
}

func TestRemoveDeletesEveryPart(t *testing.T) {
	ctx := context.Background()
	underlying := memory.New()
	fs := partedfs.New(underlying, 4)

	w, _ := fs.Open(ctx, "/f", backend.ModeWrite)
	w.Write([]byte("0123456789"))
	w.Close()

	if err := fs.Remove(ctx, "/f"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	for _, phys := range []string{"/f.part0", "/f.part1", "/f.part2"} {
		if exists, _ := underlying.Exists(ctx, phys); exists {
			t.Fatalf("expected %s to be removed", phys)
		}
	}
}

func TestGetInfoAggregatesAcrossParts(t *testing.T) {
	ctx := context.Background()
	fs := partedfs.New(memory.New(), 4)

	w, _ := fs.Open(ctx, "/f", backend.ModeWrite)
	w.Write([]byte("0123456789"))
	w.Close()

	info, err := fs.GetInfo(ctx, "/f")
	if err != nil {
		t.Fatalf("getinfo: %v", err)
	}
	if info.Size() != 10 {
		t.Fatalf("expected size 10, got %d", info.Size())
	}
	if info.IsDir() {
		t.Fatal("expected a file")
	}
}

func TestWalkFilesVisitsEachLogicalFileOnce(t *testing.T) {
	ctx := context.Background()
	fs := partedfs.New(memory.New(), 4)

	for _, p := range []string{"/a", "/b/c"} {
		w, _ := fs.Open(ctx, p, backend.ModeWrite)
		w.Write([]byte("0123456789")) // multi-part each
		w.Close()
	}

	var visited []string
	err := fs.WalkFiles(ctx, "/", func(info backend.FileInfo) error {
		visited = append(visited, info.Path())
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	sort.Strings(visited)
	if len(visited) != 2 || visited[0] != "/a" || visited[1] != "/b/c" {
		t.Fatalf("unexpected walk result: %v", visited)
	}
}

func TestOpenReadMissingFileFails(t *testing.T) {
	ctx := context.Background()
	fs := partedfs.New(memory.New(), 4)

	_, err := fs.Open(ctx, "/nope", backend.ModeRead)
	if _, ok := err.(backend.NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestOpenOnDirectoryFails(t *testing.T) {
	ctx := context.Background()
	fs := partedfs.New(memory.New(), 4)
	fs.MakeDir(ctx, "/d", backend.MakeDirOptions{Recursive: true})

	_, err := fs.Open(ctx, "/d", backend.ModeWrite)
	if _, ok := err.(backend.InvalidResourceError); !ok {
		t.Fatalf("expected InvalidResourceError, got %T: %v", err, err)
	}
}
