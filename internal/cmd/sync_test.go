package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSyncCommandDryRunOverLocalTree(t *testing.T) {
	cfgPath := writeTestConfig(t)

	localDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(localDir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("writing local file: %v", err)
	}

	cmd := SyncCmd
	cmd.SetContext(context.Background())
	cmd.SetArgs(nil)
	if err := cmd.Flags().Set("config", cfgPath); err != nil {
		t.Fatalf("setting config flag: %v", err)
	}
	if err := cmd.Flags().Set("dry-run", "true"); err != nil {
		t.Fatalf("setting dry-run flag: %v", err)
	}
	defer func() {
		cmd.Flags().Set("config", "")
		cmd.Flags().Set("dry-run", "false")
	}()

	if err := cmd.RunE(cmd, []string{localDir}); err != nil {
		t.Fatalf("running sync (dry-run): %v", err)
	}
}
