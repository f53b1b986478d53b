package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testConfig = `
version: 0.1
composite:
  maxpartsize: 1024
  lock:
    filename: .lock
    timeout: 2s
    delay: 10ms
backends:
  - name: east
    type: memory
  - name: west
    type: localdisk
    maxsize: 4096
    params:
      rootdirectory: %s
log:
  level: debug
  formatter: text
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	cfgPath := filepath.Join(root, "cuckoo.yml")
	content := strings.ReplaceAll(testConfig, "%s", filepath.Join(root, "west"))
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return cfgPath
}

func TestLoadConfigAndBuildComposite(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if err := configureLogging(cfg); err != nil {
		t.Fatalf("configureLogging: %v", err)
	}

	ctx := context.Background()
	fs, err := buildComposite(ctx, cfg)
	if err != nil {
		t.Fatalf("buildComposite: %v", err)
	}
	if len(fs.Backends()) != 2 {
		t.Fatalf("got %d backends, want 2", len(fs.Backends()))
	}

	dst := buildPartedFS(fs, cfg)
	if dst == nil {
		t.Fatal("expected non-nil partedfs.FS")
	}

	fl := buildLock(fs, cfg)
	guard, err := fl.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	if err := guard.Release(ctx); err != nil {
		t.Fatalf("release lock: %v", err)
	}
}

func TestLoadConfigRejectsMissingFile(t *testing.T) {
	if _, err := loadConfig("/no/such/file.yml"); err == nil {
		t.Fatal("expected error loading missing config file")
	}
}
