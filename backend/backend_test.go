package backend

import (
	"context"
	"testing"
	"time"
)

type stubBackend struct {
	name string
	meta map[string]interface{}
}

func (s *stubBackend) Name() string { return s.name }
func (s *stubBackend) Open(ctx context.Context, path string, mode Mode) (Stream, error) {
	return nil, nil
}
func (s *stubBackend) Exists(ctx context.Context, path string) (bool, error)  { return false, nil }
func (s *stubBackend) IsFile(ctx context.Context, path string) (bool, error)  { return false, nil }
func (s *stubBackend) IsDir(ctx context.Context, path string) (bool, error)   { return false, nil }
func (s *stubBackend) ListDir(ctx context.Context, path string, opts ListOptions) ([]string, error) {
	return nil, nil
}
func (s *stubBackend) MakeDir(ctx context.Context, path string, opts MakeDirOptions) error {
	return nil
}
func (s *stubBackend) RemoveDir(ctx context.Context, path string, opts RemoveDirOptions) error {
	return nil
}
func (s *stubBackend) Remove(ctx context.Context, path string) error           { return nil }
func (s *stubBackend) Rename(ctx context.Context, src, dst string) error       { return nil }
func (s *stubBackend) GetSize(ctx context.Context, path string) (int64, error) { return 0, nil }
func (s *stubBackend) GetInfo(ctx context.Context, path string) (FileInfo, error) {
	return nil, nil
}
func (s *stubBackend) SetTimes(ctx context.Context, path string, accessed, modified *time.Time) error {
	return nil
}
func (s *stubBackend) GetMeta(ctx context.Context, name string) (interface{}, error) {
	v, ok := s.meta[name]
	if !ok {
		return nil, NoMetaError{Name: name, DriverName: s.name}
	}
	return v, nil
}
func (s *stubBackend) SysPath(ctx context.Context, path string) (string, error) {
	return "", NoSysPathError{Path: path}
}

var _ Backend = (*stubBackend)(nil)

func TestFreeSpaceFromMeta(t *testing.T) {
	b := &stubBackend{name: "stub", meta: map[string]interface{}{"free_space": uint64(1024)}}

	free, err := FreeSpace(context.Background(), b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if free != 1024 {
		t.Fatalf("expected 1024, got %d", free)
	}
}

func TestFreeSpaceNoMeta(t *testing.T) {
	b := &stubBackend{name: "stub", meta: map[string]interface{}{}}

	if _, err := FreeSpace(context.Background(), b); err == nil {
		t.Fatal("expected NoMetaError")
	} else if _, ok := err.(NoMetaError); !ok {
		t.Fatalf("expected NoMetaError, got %T: %v", err, err)
	}
}

func TestPathRegexp(t *testing.T) {
	cases := map[string]bool{
		"/":         true,
		"/a":        true,
		"/a/b":      true,
		"":          false,
		"relative":  false,
		"/a//b":     false,
	}
	for p, want := range cases {
		if got := PathRegexp.MatchString(p); got != want {
			t.Errorf("PathRegexp.MatchString(%q) = %v, want %v", p, got, want)
		}
	}
}
