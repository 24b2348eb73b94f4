package hierarchy

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildGraphLevels(t *testing.T) {
	g := buildGraph(decode(t, chainYAML))
	want := [][]string{
		{"lone{sch}", "res{ic}", "res{sch}"},
		{"mid{sch}"},
		{"top{sch}"},
	}
	if !reflect.DeepEqual(g.levels, want) {
		t.Fatalf("levels = %v, want %v", g.levels, want)
	}
	if len(g.blocked) != 0 {
		t.Fatalf("unexpected blocked cells: %v", g.blocked)
	}
	if !reflect.DeepEqual(g.deps["top{sch}"], []string{"mid{sch}"}) {
		t.Fatalf("top deps = %v", g.deps["top{sch}"])
	}
}

func TestBuildGraphBlocksCycles(t *testing.T) {
	g := buildGraph(decode(t, cycleYAML))
	if !reflect.DeepEqual(g.levels, [][]string{{"d{sch}"}}) {
		t.Fatalf("levels = %v", g.levels)
	}
	for _, key := range []string{"a{sch}", "b{sch}", "c{sch}"} {
		if !g.blocked[key] {
			t.Fatalf("%s should be blocked", key)
		}
	}
	if got := g.cyclic(); !reflect.DeepEqual(got, []string{"a{sch}", "b{sch}"}) {
		t.Fatalf("cyclic = %v", got)
	}
}

func TestComputeImpact(t *testing.T) {
	graph := dependentsGraph{
		"a": {"b": true, "c": true},
		"b": {"d": true},
		"c": {"d": true},
	}

	report := computeImpact("a", graph)
	if report.Root != "a" {
		t.Fatalf("expected root a, got %s", report.Root)
	}
	want := [][]string{{"b", "c"}, {"d"}}
	if !reflect.DeepEqual(report.Levels, want) {
		t.Fatalf("levels = %v, want %v", report.Levels, want)
	}
	if got := report.Cells(); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Fatalf("cells = %v", got)
	}

	out := FormatImpactReport(report)
	if !strings.Contains(out, "level 1 (2): b, c") || !strings.Contains(out, "level 2 (1): d") {
		t.Fatalf("unexpected report:\n%s", out)
	}
}
