package config_test

import (
	"path/filepath"
	"testing"

	"github.com/soilvm/soil/config"
)

func TestDefaultConfigIsUsable(t *testing.T) {
	cfg := config.Default()
	if cfg.Memory.SizeBytes == 0 {
		t.Fatal("expected a nonzero default memory size")
	}
	if cfg.Filesystem.Root == "" {
		t.Fatal("expected a default filesystem root")
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Memory.SizeBytes != config.Default().Memory.SizeBytes {
		t.Fatalf("expected default memory size when config file is absent")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soil.toml")
	cfg := config.Default()
	cfg.Memory.SizeBytes = 2048
	cfg.Trace.Calls = true
	cfg.Inspector.Port = 9999

	if err := cfg.Save(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Memory.SizeBytes != 2048 || !loaded.Trace.Calls || loaded.Inspector.Port != 9999 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}
