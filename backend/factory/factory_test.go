package factory_test

import (
	"context"
	"testing"
	"time"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/factory"
)

type stub struct{ name string }

func (s *stub) Name() string { return s.name }
func (s *stub) Open(ctx context.Context, path string, mode backend.Mode) (backend.Stream, error) {
	return nil, backend.NotFoundError{Path: path}
}
func (s *stub) Exists(ctx context.Context, path string) (bool, error) { return false, nil }
func (s *stub) IsFile(ctx context.Context, path string) (bool, error) { return false, nil }
func (s *stub) IsDir(ctx context.Context, path string) (bool, error)  { return false, nil }
func (s *stub) ListDir(ctx context.Context, path string, opts backend.ListOptions) ([]string, error) {
	return nil, nil
}
func (s *stub) MakeDir(ctx context.Context, path string, opts backend.MakeDirOptions) error {
	return nil
}
func (s *stub) RemoveDir(ctx context.Context, path string, opts backend.RemoveDirOptions) error {
	return nil
}
func (s *stub) Remove(ctx context.Context, path string) error           { return nil }
func (s *stub) Rename(ctx context.Context, src, dst string) error       { return nil }
func (s *stub) GetSize(ctx context.Context, path string) (int64, error) { return 0, nil }
func (s *stub) GetInfo(ctx context.Context, path string) (backend.FileInfo, error) {
	return nil, backend.NotFoundError{Path: path}
}
func (s *stub) SetTimes(ctx context.Context, path string, accessed, modified *time.Time) error {
	return nil
}
func (s *stub) GetMeta(ctx context.Context, name string) (interface{}, error) {
	return nil, backend.NoMetaError{Name: name, DriverName: s.name}
}
func (s *stub) SysPath(ctx context.Context, path string) (string, error) {
	return "", backend.NoSysPathError{Path: path}
}

func TestRegisterAndCreate(t *testing.T) {
	factory.Register("factory-test-stub", func(parameters map[string]interface{}) (backend.Backend, error) {
		return &stub{name: "factory-test-stub"}, nil
	})

	b, err := factory.Create("factory-test-stub", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Name() != "factory-test-stub" {
		t.Fatalf("expected stub backend, got %T", b)
	}
	if !factory.Registered("factory-test-stub") {
		t.Fatal("expected factory-test-stub to be Registered")
	}
}

func TestCreateUnregisteredFails(t *testing.T) {
	_, err := factory.Create("factory-test-does-not-exist", nil)
	if _, ok := err.(factory.InvalidBackendTypeError); !ok {
		t.Fatalf("expected InvalidBackendTypeError, got %T: %v", err, err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	factory.Register("factory-test-dup", func(parameters map[string]interface{}) (backend.Backend, error) {
		return &stub{name: "factory-test-dup"}, nil
	})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering a duplicate name")
		}
	}()
	factory.Register("factory-test-dup", func(parameters map[string]interface{}) (backend.Backend, error) {
		return &stub{name: "factory-test-dup"}, nil
	})
}

func TestRegisterNilConstructorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering a nil Constructor")
		}
	}()
	factory.Register("factory-test-nil", nil)
}
