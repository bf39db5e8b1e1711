package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteStarterYAMLCreatesReadableFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()

	if err := WriteStarterYAML(dir, cfg); err != nil {
		t.Fatalf("WriteStarterYAML: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".tbnexplorer2", "config.yaml"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "tbnexplorer2 starter configuration") {
		t.Error("missing starter header comment")
	}
	if !strings.Contains(string(data), "backend") {
		t.Error("expected solvers.backend to appear in the YAML output")
	}
}
