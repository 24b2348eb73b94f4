package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/netconn/internal/design"
	"github.com/robert-at-pretension-io/netconn/internal/netcell"
)

// dependentsGraph maps a cell key to the cells that instantiate it.
type dependentsGraph map[string]map[string]bool

// depGraph is the instantiation DAG of a library. Self icons are not
// edges, so an icon of its own parent does not form a cycle.
type depGraph struct {
	deps       map[string][]string
	dependents dependentsGraph
	// levels[0] holds cells with no sub-cells; every cell sits one level
	// above its deepest dependency.
	levels [][]string
	// blocked holds cells on a cycle or above one. They never get a level.
	blocked map[string]bool
}

func buildGraph(lib *design.Library) *depGraph {
	g := &depGraph{
		deps:       make(map[string][]string, len(lib.Cells)),
		dependents: make(dependentsGraph),
		blocked:    make(map[string]bool),
	}
	keys := lib.Keys()
	for _, key := range keys {
		c, _ := lib.Cell(key)
		deps := netcell.Dependencies(lib, c)
		g.deps[key] = deps
		for _, dep := range deps {
			if g.dependents[dep] == nil {
				g.dependents[dep] = make(map[string]bool)
			}
			g.dependents[dep][key] = true
		}
	}

	pending := make(map[string]int, len(keys))
	var frontier []string
	for _, key := range keys {
		pending[key] = len(g.deps[key])
		if pending[key] == 0 {
			frontier = append(frontier, key)
		}
	}
	for len(frontier) > 0 {
		sort.Strings(frontier)
		g.levels = append(g.levels, frontier)
		var next []string
		for _, key := range frontier {
			for parent := range g.dependents[key] {
				pending[parent]--
				if pending[parent] == 0 {
					next = append(next, parent)
				}
			}
		}
		frontier = next
	}
	for _, key := range keys {
		if pending[key] > 0 {
			g.blocked[key] = true
		}
	}
	return g
}

// cyclic returns the blocked cells that lie on a cycle themselves, as
// opposed to merely instantiating one.
func (g *depGraph) cyclic() []string {
	var out []string
	for key := range g.blocked {
		if g.reaches(key, key) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func (g *depGraph) reaches(from, target string) bool {
	seen := map[string]bool{}
	stack := append([]string(nil), g.deps[from]...)
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if k == target {
			return true
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		stack = append(stack, g.deps[k]...)
	}
	return false
}

// ImpactReport lists the cells whose interfaces may change when Root
// changes, grouped by distance up the hierarchy.
type ImpactReport struct {
	Root   string     `json:"root"`
	Levels [][]string `json:"levels"`
}

// Cells returns every impacted cell, Root excluded.
func (r ImpactReport) Cells() []string {
	var out []string
	for _, l := range r.Levels {
		out = append(out, l...)
	}
	return out
}

func computeImpact(root string, dependents dependentsGraph) ImpactReport {
	visited := map[string]bool{root: true}
	frontier := []string{root}
	var levels [][]string

	for len(frontier) > 0 {
		var next []string
		for _, f := range frontier {
			for dep := range dependents[f] {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				next = append(next, dep)
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Strings(next)
		levels = append(levels, next)
		frontier = next
	}

	return ImpactReport{Root: root, Levels: levels}
}

// FormatImpactReport renders a report for terminal output.
func FormatImpactReport(report ImpactReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s\n", report.Root)
	for i, level := range report.Levels {
		fmt.Fprintf(&b, "    level %d (%d): %s\n", i+1, len(level), strings.Join(level, ", "))
	}
	return b.String()
}
