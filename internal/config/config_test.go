package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/netconn/internal/diag"
	"github.com/robert-at-pretension-io/netconn/internal/tech"
)

func TestLoadFileYAMLAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netconn.yaml")
	writeFile(t, path, `
check:
  rules:
    bus-width-conflict: error
    unconnected-port: "off"
technology:
  primitives:
    - name: diode
      function: device
      ports: [{name: a}, {name: k, topology: 1}]
  arcs:
    - name: fat_bus
      bus: true
analysis:
  maxParallelCells: 2
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Analysis.WidthPolicy != "wider" {
		t.Fatalf("expected default width policy, got %q", cfg.Analysis.WidthPolicy)
	}
	if cfg.CacheEnabled() {
		t.Fatalf("cache should default to off")
	}
	if cfg.Parallelism() != 2 {
		t.Fatalf("expected parallelism 2, got %d", cfg.Parallelism())
	}
	if len(cfg.Design.Files) == 0 {
		t.Fatalf("expected default design globs")
	}
	if got := cfg.RuleSeverity(diag.CodeBusWidthConflict, diag.SeverityWarning); got != diag.SeverityError {
		t.Fatalf("expected error severity, got %q", got)
	}
	if got := cfg.RuleSeverity(diag.CodeBadNetName, diag.SeverityWarning); got != diag.SeverityWarning {
		t.Fatalf("expected default severity, got %q", got)
	}
	if cfg.IsRuleEnabled("unconnected-port") {
		t.Fatalf("unconnected-port should be off")
	}

	tt, err := cfg.Tech()
	if err != nil {
		t.Fatalf("Tech: %v", err)
	}
	if p, ok := tt.Primitive("diode"); !ok || p.PortIndex("k") != 1 {
		t.Fatalf("diode primitive not merged: %+v", p)
	}
	if a, ok := tt.ArcProto("fat_bus"); !ok || !a.Bus {
		t.Fatalf("fat_bus arc not merged")
	}
	if _, ok := tt.Primitive("nmos"); !ok {
		t.Fatalf("builtin primitives lost")
	}
	if _, ok := tech.Schematic().Primitive("diode"); ok {
		t.Fatalf("extension leaked into the builtin technology")
	}
}

func TestLoadFileRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"policy", `{"analysis":{"widthPolicy":"narrow"}}`, "widthPolicy"},
		{"parallel", `{"analysis":{"maxParallelCells":-1}}`, "maxParallelCells"},
		{"severity", `{"check":{"rules":{"bad-net-name":"fatal"}}}`, "bad-net-name"},
		{"syntax", `{"check":`, "parsing config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "netconn.json")
			writeFile(t, path, tt.body)
			_, err := LoadFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"netconn.json", "netconn.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := DefaultConfig()
			cfg.Analysis.WidthPolicy = "first"
			cfg.Check.IgnoreCells = []string{"scratch*"}
			if err := cfg.Save(path); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if got.Analysis.WidthPolicy != "first" {
				t.Fatalf("width policy lost: %q", got.Analysis.WidthPolicy)
			}
			if !got.ShouldIgnoreCell("scratch{sch}") || got.ShouldIgnoreCell("alu{sch}") {
				t.Fatalf("ignore patterns not applied")
			}
		})
	}
}

func TestLoadSearchesRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "netconn.json"), `{"analysis":{"widthPolicy":"first"}}`)
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.WidthPolicy != "first" {
		t.Fatalf("expected config from root, got %q", cfg.Analysis.WidthPolicy)
	}
	if got := cfg.CacheDir(root); got != filepath.Join(root, ".netconn_cache") {
		t.Fatalf("unexpected cache dir %s", got)
	}
}
