package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/netconn/internal/config"
)

const projectYAML = `
name: amp
cells:
  - name: amp
    view: schematic
    nodes:
      - {id: 1, name: m1, prim: nmos}
      - {id: 2, prim: ground}
      - {id: 3, prim: wire_pin}
    arcs:
      - {id: 10, proto: wire, head: {node: 1, port: s}, tail: {node: 2, port: gnd}}
      - {id: 11, proto: wire, head: {node: 1, port: d}, tail: {node: 3, port: wire}}
    exports:
      - {id: 20, name: out, node: 3, port: wire, characteristic: output}
  - name: amp
    view: icon
    nodes:
      - {id: 1, prim: wire_pin}
    exports:
      - {id: 2, name: out, node: 1, port: wire, characteristic: output}
  - name: top
    view: schematic
    nodes:
      - {id: 1, name: a1, cell: "amp{ic}"}
      - {id: 2, prim: wire_pin}
    arcs:
      - {id: 3, proto: wire, name: y, head: {node: 1, port: out}, tail: {node: 2, port: wire}}
    exports:
      - {id: 4, name: y, node: 2, port: wire}
`

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestRunComputesProject(t *testing.T) {
	root := writeProject(t, map[string]string{"amp.yaml": projectYAML})
	idx := NewWithConfig(nil)

	res, err := idx.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(res.Files) != 1 || filepath.Base(res.Files[0]) != "amp.yaml" {
		t.Fatalf("unexpected files: %v", res.Files)
	}
	if res.Library != filepath.Base(root) {
		t.Fatalf("library = %q, want %q", res.Library, filepath.Base(root))
	}
	if len(res.Report.Results) != 3 || len(res.Tables.Cells) != 3 {
		t.Fatalf("expected 3 cells, got %d results and %d rows", len(res.Report.Results), len(res.Tables.Cells))
	}
	if len(res.Levels) == 0 || res.Levels[len(res.Levels)-1][0] != "top{sch}" {
		t.Fatalf("expected top last, got levels %v", res.Levels)
	}

	if len(res.Violations) != 1 {
		t.Fatalf("expected one violation, got %#v", res.Violations)
	}
	v := res.Violations[0]
	if v.Rule != "unconnected-port" || v.Cell != "amp{sch}" || v.Port != "g" {
		t.Fatalf("unexpected violation: %#v", v)
	}
	if res.Summary.Warnings != 1 || res.HasErrors() {
		t.Fatalf("unexpected summary: %#v", res.Summary)
	}
	if res.PolicyCached || res.Previous != nil {
		t.Fatalf("cache disabled, but got cached=%v previous=%v", res.PolicyCached, res.Previous != nil)
	}
	if delta := res.Delta(); len(delta.Added.Cells) != 3 || len(delta.Removed.Cells) != 0 {
		t.Fatalf("unexpected delta: %#v", delta)
	}
}

func TestRunReusesCaches(t *testing.T) {
	root := writeProject(t, map[string]string{"amp.yaml": projectYAML})
	cfg := config.DefaultConfig()
	enabled := true
	cfg.Analysis.Cache.Enabled = &enabled

	first, err := NewWithConfig(cfg).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	if first.PolicyCached || first.Previous != nil {
		t.Fatalf("first run should start cold")
	}
	for _, name := range []string{"fact_tables.json", "policy_cache.json", "index.json"} {
		if _, err := os.Stat(filepath.Join(root, ".netconn_cache", name)); err != nil {
			t.Fatalf("expected %s in cache: %v", name, err)
		}
	}

	second, err := NewWithConfig(cfg).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if !second.PolicyCached {
		t.Fatalf("expected cached policy result")
	}
	if second.Previous == nil || !second.Delta().Empty() {
		t.Fatalf("expected an empty delta against the previous run")
	}
	if second.PreviousSession != first.Session || second.Session == first.Session {
		t.Fatalf("expected the previous session %q, got %q", first.Session, second.PreviousSession)
	}
	if len(second.Violations) != len(first.Violations) {
		t.Fatalf("cached violations differ: %v vs %v", second.Violations, first.Violations)
	}

	cfg.Check.Rules["unconnected-port"] = "error"
	third, err := NewWithConfig(cfg).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("third Run error: %v", err)
	}
	if third.PolicyCached || !third.HasErrors() {
		t.Fatalf("rule change should re-evaluate: cached=%v summary=%#v", third.PolicyCached, third.Summary)
	}
}

func TestRunSelectsCells(t *testing.T) {
	root := writeProject(t, map[string]string{"amp.yaml": projectYAML})

	idx := NewWithConfig(nil)
	idx.Cells = []string{"top{sch}"}
	res, err := idx.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(res.Tables.Cells) != 1 || res.Tables.Cells[0].Cell != "top{sch}" {
		t.Fatalf("unexpected cells: %#v", res.Tables.Cells)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations in top, got %#v", res.Violations)
	}

	idx.Cells = []string{"nope{sch}"}
	if _, err := idx.Run(context.Background(), root); err == nil || !strings.Contains(err.Error(), "nope{sch}") {
		t.Fatalf("expected unknown cell error, got %v", err)
	}
}

func TestRunIgnoresCells(t *testing.T) {
	root := writeProject(t, map[string]string{"amp.yaml": projectYAML})
	cfg := config.DefaultConfig()
	cfg.Check.IgnoreCells = []string{"amp*"}

	res, err := NewWithConfig(cfg).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(res.Tables.Cells) != 1 || len(res.Violations) != 0 {
		t.Fatalf("expected only top, got %#v and %#v", res.Tables.Cells, res.Violations)
	}
}

func TestRunRejectsBrokenDesign(t *testing.T) {
	root := writeProject(t, map[string]string{
		"amp.yaml": projectYAML,
		"bad.yaml": "cells:\n  - name: x\n    colour: red\n",
	})
	_, err := NewWithConfig(nil).Run(context.Background(), root)
	if err == nil || !strings.Contains(err.Error(), "design contract broken") || !strings.Contains(err.Error(), "bad.yaml") {
		t.Fatalf("expected design contract error naming bad.yaml, got %v", err)
	}
}

func TestRunWithoutDesignFiles(t *testing.T) {
	root := writeProject(t, map[string]string{"notes.txt": "nothing"})
	if _, err := NewWithConfig(nil).Run(context.Background(), root); err == nil {
		t.Fatalf("expected an error for an empty project")
	}
}

func TestRunLoadsPolicyDir(t *testing.T) {
	root := writeProject(t, map[string]string{"amp.yaml": projectYAML})
	if err := os.MkdirAll(filepath.Join(root, "rules"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	rule := `package netconn.connectivity

import rego.v1

raw contains v if {
	some c in input.cells
	c.width > 1
	v := {"rule": "wide-interface", "severity": "info", "cell": c.cell, "node": -1, "port": "", "export": "", "message": "wide"}
}
`
	if err := os.WriteFile(filepath.Join(root, "rules", "wide.rego"), []byte(rule), 0o644); err != nil {
		t.Fatalf("write rule: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.Check.PolicyDir = "rules"

	res, err := NewWithConfig(cfg).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Summary.Info == 0 {
		t.Fatalf("expected the custom rule to fire, got %#v", res.Violations)
	}
}
