package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/memory"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/sized"
)

func TestWrapPassesThroughOperations(t *testing.T) {
	ctx := context.Background()
	inner := sized.Wrap(memory.New(), 1024)
	wrapped := Wrap(inner, nil)

	w, err := wrapped.Open(ctx, "/a.txt", backend.ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := w.Write([]byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	size, err := wrapped.GetSize(ctx, "/a.txt")
	if err != nil {
		t.Fatalf("getsize: %v", err)
	}
	if size != 2 {
		t.Fatalf("got size %d, want 2", size)
	}
}

func TestWrapReportsFreeSpace(t *testing.T) {
	ctx := context.Background()
	inner := sized.Wrap(memory.New(), 1024)
	wrapped := Wrap(inner, nil)

	free, err := backend.FreeSpace(ctx, wrapped)
	if err != nil {
		t.Fatalf("freespace: %v", err)
	}
	if free != 1024 {
		t.Fatalf("got free %d, want 1024", free)
	}
}

func TestWrapPreservesName(t *testing.T) {
	wrapped := Wrap(memory.New(), nil)
	if wrapped.Name() != "memory" {
		t.Fatalf("got name %q, want %q", wrapped.Name(), "memory")
	}
}

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

// The free/used space gauge pair is re-sampled after a write-mode stream
// closes and after a remove, and shows up under the exported names.
func TestGaugePairSampledOnWriteCloseAndRemove(t *testing.T) {
	ctx := context.Background()
	inner := sized.Wrap(memory.New(), 1024)
	wrapped := Wrap(inner, nil)
	Register()

	w, err := wrapped.Open(ctx, "/g", backend.ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := w.Write([]byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	body := scrape(t)
	for _, want := range []string{
		`cuckoodrive_storage_free_space_bytes{backend="memory"} 1022`,
		`cuckoodrive_storage_used_space_bytes{backend="memory"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output:\n%s", want, body)
		}
	}

	if err := wrapped.Remove(ctx, "/g"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	body = scrape(t)
	for _, want := range []string{
		`cuckoodrive_storage_free_space_bytes{backend="memory"} 1024`,
		`cuckoodrive_storage_used_space_bytes{backend="memory"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q after remove in scrape output:\n%s", want, body)
		}
	}
}
