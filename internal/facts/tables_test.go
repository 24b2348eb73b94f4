package facts

import (
	"context"
	"testing"

	"github.com/robert-at-pretension-io/netconn/internal/design"
	"github.com/robert-at-pretension-io/netconn/internal/diag"
	"github.com/robert-at-pretension-io/netconn/internal/hierarchy"
)

const ampYAML = `
name: amp
cells:
  - name: amp
    view: schematic
    nodes:
      - {id: 1, name: m1, prim: nmos}
      - {id: 2, prim: ground}
      - {id: 3, prim: wire_pin}
      - {id: 4, prim: wire_pin}
    arcs:
      - {id: 10, proto: wire, head: {node: 1, port: s}, tail: {node: 2, port: gnd}}
      - {id: 11, proto: wire, name: "out", head: {node: 1, port: d}, tail: {node: 3, port: wire}}
    exports:
      - {id: 20, name: out, node: 3, port: wire, characteristic: output}
      - {id: 21, name: nc, node: 4, port: wire}
  - name: broken
    view: schematic
    nodes:
      - {id: 1, prim: nmos}
    arcs:
      - {id: 2, proto: wire, head: {node: 1, port: zz}, tail: {node: 1, port: g}}
`

func buildReport(t *testing.T) *hierarchy.Report {
	t.Helper()
	lib, err := design.Decode([]byte(ampYAML), design.FormatYAML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	svc, err := hierarchy.New(lib, hierarchy.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()
	report, err := svc.ComputeAll(context.Background())
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	return report
}

func TestBuildPopulatesRelations(t *testing.T) {
	tables := Build(buildReport(t), nil)

	if len(tables.Cells) != 2 {
		t.Fatalf("expected 2 cell rows, got %#v", tables.Cells)
	}
	if tables.Cells[0].Cell != "amp{sch}" || tables.Cells[0].Error != "" {
		t.Fatalf("unexpected amp row: %#v", tables.Cells[0])
	}
	if tables.Cells[1].Cell != "broken{sch}" || tables.Cells[1].Error == "" {
		t.Fatalf("expected broken cell to carry its error: %#v", tables.Cells[1])
	}

	if len(tables.Globals) != 1 || tables.Globals[0].Name != "gnd" || tables.Globals[0].Slot != 0 {
		t.Fatalf("unexpected globals: %#v", tables.Globals)
	}
	if len(tables.Exports) != 2 || tables.Exports[0].Offset != 1 || tables.Exports[0].Characteristic != "output" {
		t.Fatalf("unexpected exports: %#v", tables.Exports)
	}
	// three slots under three relations
	if len(tables.Equivs) != 9 {
		t.Fatalf("expected 9 equiv rows, got %d", len(tables.Equivs))
	}

	var out, nc NetRow
	for _, e := range tables.Exports {
		for _, n := range tables.Nets {
			if n.Net != e.Net {
				continue
			}
			if e.Name == "out" {
				out = n
			} else {
				nc = n
			}
		}
	}
	if out.Attachments != 1 || len(out.Names) == 0 || out.Names[0] != "out" {
		t.Fatalf("unexpected out net: %#v", out)
	}
	if nc.Attachments != 0 || !nc.Exported {
		t.Fatalf("unexpected nc net: %#v", nc)
	}

	if len(tables.Unconnected) != 1 || tables.Unconnected[0].Port != "g" || tables.Unconnected[0].Name != "m1" {
		t.Fatalf("expected the m1 gate unconnected, got %#v", tables.Unconnected)
	}
	if tables.Unconnected[0].Kind != "device" {
		t.Fatalf("unexpected node kind %q", tables.Unconnected[0].Kind)
	}

	var failed bool
	for _, d := range tables.Diagnostics {
		if d.Cell == "broken{sch}" && d.Code == diag.CodeAnalysisFailed && d.Arc == 2 {
			failed = true
		}
	}
	if !failed {
		t.Fatalf("expected analysis-failed diagnostic for broken{sch}, got %#v", tables.Diagnostics)
	}
}

func TestBuildAppliesSeverities(t *testing.T) {
	off := func(code string, def diag.Severity) diag.Severity {
		if code == diag.CodeAnalysisFailed {
			return diag.SeverityOff
		}
		return def
	}
	tables := Build(buildReport(t), off)
	for _, d := range tables.Diagnostics {
		if d.Code == diag.CodeAnalysisFailed {
			t.Fatalf("diagnostic should have been dropped: %#v", d)
		}
	}
}

func TestBuildNilReport(t *testing.T) {
	tables := Build(nil, nil)
	if tables.Len() != 0 || tables.Cells == nil {
		t.Fatalf("expected empty non-nil tables, got %#v", tables)
	}
}
