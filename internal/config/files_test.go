package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveDesignFilesDefaults(t *testing.T) {
	root := t.TempDir()
	top := filepath.Join(root, "top.json")
	sub := filepath.Join(root, "cells", "alu.yaml")
	writeFile(t, top, "{}")
	writeFile(t, sub, "cells: []")
	writeFile(t, filepath.Join(root, "notes.txt"), "skip")
	writeFile(t, filepath.Join(root, "netconn.json"), "{}")
	writeFile(t, filepath.Join(root, ".netconn_cache", "index.json"), "{}")

	files, err := DefaultConfig().ResolveDesignFiles(root)
	if err != nil {
		t.Fatalf("ResolveDesignFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 design files, got %v", files)
	}
	if !containsPath(files, top) || !containsPath(files, sub) {
		t.Fatalf("expected %s and %s, got %v", top, sub, files)
	}
}

func TestResolveDesignFilesExclude(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "rtl", "core.json")
	drop := filepath.Join(root, "rtl", "old", "core.json")
	writeFile(t, keep, "{}")
	writeFile(t, drop, "{}")

	cfg := Config{Design: DesignConfig{
		Files:   []string{"rtl/**/*.json"},
		Exclude: []string{"rtl/old/*"},
	}}
	files, err := cfg.ResolveDesignFiles(root)
	if err != nil {
		t.Fatalf("ResolveDesignFiles: %v", err)
	}
	if len(files) != 1 || !containsPath(files, keep) {
		t.Fatalf("expected only %s, got %v", keep, files)
	}
}

func TestResolveDesignFilesSingleFile(t *testing.T) {
	root := t.TempDir()
	f := filepath.Join(root, "one.yaml")
	writeFile(t, f, "cells: []")

	files, err := DefaultConfig().ResolveDesignFiles(f)
	if err != nil {
		t.Fatalf("ResolveDesignFiles: %v", err)
	}
	if len(files) != 1 || files[0] != f {
		t.Fatalf("expected [%s], got %v", f, files)
	}
	if got := DefaultConfig().LibraryName(f); got != "one" {
		t.Fatalf("expected library name one, got %q", got)
	}
}

func containsPath(files []string, target string) bool {
	for _, f := range files {
		if filepath.Clean(f) == filepath.Clean(target) {
			return true
		}
	}
	return false
}
