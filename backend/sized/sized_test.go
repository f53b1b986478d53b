package sized_test

import (
	"context"
	"testing"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/memory"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/sized"
)

func TestFreeSpaceTracksWrites(t *testing.T) {
	ctx := context.Background()
	b := sized.Wrap(memory.New(), 10)

	free, err := b.FreeSpace(ctx)
	if err != nil || free != 10 {
		t.Fatalf("expected free=10, got %d err=%v", free, err)
	}

	w, err := b.Open(ctx, "/f", backend.ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := w.Write([]byte("1234567")); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	free, err = b.FreeSpace(ctx)
	if err != nil || free != 3 {
		t.Fatalf("expected free=3 after 7-byte write, got %d err=%v", free, err)
	}
}

func TestWriteExceedingCapacityFails(t *testing.T) {
	ctx := context.Background()
	b := sized.Wrap(memory.New(), 4)

	w, err := b.Open(ctx, "/f", backend.ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("12345")); err == nil {
		t.Fatal("expected capacity error")
	} else if _, ok := err.(backend.CapacityError); !ok {
		t.Fatalf("expected CapacityError, got %T: %v", err, err)
	}
}

func TestRemoveReleasesCapacity(t *testing.T) {
	ctx := context.Background()
	b := sized.Wrap(memory.New(), 10)

	w, _ := b.Open(ctx, "/f", backend.ModeWrite)
	w.Write([]byte("12345"))
	w.Close()

	if free, _ := b.FreeSpace(ctx); free != 5 {
		t.Fatalf("expected free=5, got %d", free)
	}

	if err := b.Remove(ctx, "/f"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if free, _ := b.FreeSpace(ctx); free != 10 {
		t.Fatalf("expected free=10 after remove, got %d", free)
	}
}

func TestGetMetaFreeSpace(t *testing.T) {
	ctx := context.Background()
	b := sized.Wrap(memory.New(), 100)

	free, err := backend.FreeSpace(ctx, b)
	if err != nil {
		t.Fatalf("FreeSpace helper: %v", err)
	}
	if free != 100 {
		t.Fatalf("expected 100, got %d", free)
	}
}
