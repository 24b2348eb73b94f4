package netcell

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/netconn/internal/design"
	"github.com/robert-at-pretension-io/netconn/internal/tech"
)

// cellBuilder assembles design cells for tests.
type cellBuilder struct {
	c      *design.Cell
	nextID int
}

func schematic(name string) *cellBuilder {
	return &cellBuilder{c: &design.Cell{Name: name, View: design.ViewSchematic}, nextID: 1}
}

func icon(name string) *cellBuilder {
	return &cellBuilder{c: &design.Cell{Name: name, View: design.ViewIcon}, nextID: 1}
}

func (b *cellBuilder) id() int {
	id := b.nextID
	b.nextID++
	return id
}

// prim adds a primitive node; an empty name makes it temporary.
func (b *cellBuilder) prim(name, prim string) int {
	n := &design.Node{ID: b.id(), Name: name, Prim: prim}
	b.c.Nodes = append(b.c.Nodes, n)
	return n.ID
}

func (b *cellBuilder) global(prim, signal string) int {
	id := b.prim("", prim)
	b.c.Nodes[len(b.c.Nodes)-1].Global = signal
	return id
}

func (b *cellBuilder) inst(name, cellKey string) int {
	n := &design.Node{ID: b.id(), Name: name, Cell: cellKey}
	b.c.Nodes = append(b.c.Nodes, n)
	return n.ID
}

func (b *cellBuilder) arc(proto, name string, hn int, hp string, tn int, tp string) int {
	a := &design.Arc{
		ID:    b.id(),
		Proto: proto,
		Name:  name,
		Head:  design.End{Node: hn, Port: hp},
		Tail:  design.End{Node: tn, Port: tp},
	}
	b.c.Arcs = append(b.c.Arcs, a)
	return a.ID
}

func (b *cellBuilder) wire(hn int, hp string, tn int, tp string) int {
	return b.arc(tech.ArcWire, "", hn, hp, tn, tp)
}

func (b *cellBuilder) export(name string, node int, port string) int {
	e := &design.Export{ID: b.id(), Name: name, Node: node, Port: port}
	b.c.Exports = append(b.c.Exports, e)
	return e.ID
}

// pinExport adds a wire pin exported under name and returns the pin id.
func (b *cellBuilder) pinExport(name string) int {
	pin := b.prim("", "wire_pin")
	b.export(name, pin, "wire")
	return pin
}

func library(t *testing.T, cells ...*cellBuilder) *design.Library {
	t.Helper()
	lib := &design.Library{Name: "test"}
	for _, b := range cells {
		lib.Cells = append(lib.Cells, b.c)
	}
	require.NoError(t, lib.Index())
	return lib
}

// solver computes cells of a library bottom-up with a plain memo.
type solver struct {
	lib    *design.Library
	policy WidthPolicy
	memo   map[string]*Cell
	runs   map[string]int
}

func newSolver(lib *design.Library) *solver {
	return &solver{lib: lib, memo: make(map[string]*Cell), runs: make(map[string]int)}
}

func (s *solver) cell(key string) (*Cell, error) {
	if c, ok := s.memo[key]; ok {
		return c, nil
	}
	dc, ok := s.lib.Cell(key)
	if !ok {
		return nil, fmt.Errorf("no cell %s", key)
	}
	s.runs[key]++
	c, err := Compute(dc, Env{
		Tech:        tech.Schematic(),
		Lib:         s.lib,
		WidthPolicy: s.policy,
		Lookup: func(k string) (*Interface, error) {
			sub, err := s.cell(k)
			if err != nil {
				return nil, err
			}
			return sub.Interface, nil
		},
	})
	if err != nil {
		return nil, err
	}
	s.memo[key] = c
	return c, nil
}

func compute(t *testing.T, lib *design.Library, key string) *Cell {
	t.Helper()
	c, err := newSolver(lib).cell(key)
	require.NoError(t, err)
	return c
}

func exportID(t *testing.T, c *design.Cell, name string) int {
	t.Helper()
	for _, e := range c.Exports {
		if e.Name == name {
			return e.ID
		}
	}
	t.Fatalf("no export %q in %s", name, c.Key())
	return 0
}
