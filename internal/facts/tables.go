// Package facts flattens computed cells into relational tables for rule
// engines, contract checks and run-to-run deltas.
package facts

import (
	"sort"

	"github.com/robert-at-pretension-io/netconn/internal/diag"
	"github.com/robert-at-pretension-io/netconn/internal/equiv"
	"github.com/robert-at-pretension-io/netconn/internal/hierarchy"
	"github.com/robert-at-pretension-io/netconn/internal/netcell"
)

// Tables is the relational model of one run. Each slice is a relation
// with flat rows, ordered by cell.
type Tables struct {
	Cells       []CellRow        `json:"cells"`
	Globals     []GlobalRow      `json:"globals"`
	Exports     []ExportRow      `json:"exports"`
	Equivs      []EquivRow       `json:"equivs"`
	Nets        []NetRow         `json:"nets"`
	Unconnected []UnconnectedRow `json:"unconnected"`
	Diagnostics []DiagnosticRow  `json:"diagnostics"`
}

type CellRow struct {
	Cell     string `json:"cell"`
	Revision string `json:"revision"`
	Width    int    `json:"width"`
	Nets     int    `json:"nets"`
	Error    string `json:"error,omitempty"`
}

type GlobalRow struct {
	Cell           string `json:"cell"`
	Name           string `json:"name"`
	Slot           int    `json:"slot"`
	Characteristic string `json:"characteristic"`
	Partitioned    bool   `json:"partitioned"`
}

// ExportRow places an export in the interface slot space. Net is the
// strict net of its first bit.
type ExportRow struct {
	Cell           string `json:"cell"`
	Name           string `json:"name"`
	Offset         int    `json:"offset"`
	Width          int    `json:"width"`
	Characteristic string `json:"characteristic"`
	Net            int    `json:"net"`
}

// EquivRow is one entry of a published equivalent-port table.
type EquivRow struct {
	Cell string `json:"cell"`
	Kind string `json:"kind"`
	Slot int    `json:"slot"`
	Rep  int    `json:"rep"`
}

// NetRow describes one strict net of a cell.
type NetRow struct {
	Cell        string   `json:"cell"`
	Net         int      `json:"net"`
	Names       []string `json:"names"`
	Globals     []string `json:"globals"`
	Exported    bool     `json:"exported"`
	Attachments int      `json:"attachments"`
}

// UnconnectedRow is a node port that nothing is wired to.
type UnconnectedRow struct {
	Cell string `json:"cell"`
	Node int    `json:"node"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	Port string `json:"port"`
}

type DiagnosticRow struct {
	Cell     string `json:"cell"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Node     int    `json:"node"`
	Arc      int    `json:"arc"`
	Export   int    `json:"export"`
}

// Build converts a run into tables. Diagnostic severities are remapped by
// sev, which may be nil.
func Build(report *hierarchy.Report, sev diag.SeverityFunc) Tables {
	tables := emptyTables()
	if report == nil {
		return tables
	}

	for _, res := range report.Results {
		if res.Err != nil {
			tables.Cells = append(tables.Cells, CellRow{
				Cell:  res.Key.Cell,
				Error: res.Err.Error(),
			})
			continue
		}
		addCell(&tables, res.Cell)
	}

	for _, d := range diag.Apply(report.Diagnostics(), sev) {
		tables.Diagnostics = append(tables.Diagnostics, DiagnosticRow{
			Cell:     d.Cell,
			Code:     d.Code,
			Severity: string(d.Severity),
			Message:  d.Message,
			Node:     d.Node,
			Arc:      d.Arc,
			Export:   d.Export,
		})
	}

	sort.SliceStable(tables.Cells, func(i, j int) bool { return tables.Cells[i].Cell < tables.Cells[j].Cell })
	return tables
}

func addCell(tables *Tables, c *netcell.Cell) {
	in := c.Interface
	nl := c.Netlist(equiv.N)
	tables.Cells = append(tables.Cells, CellRow{
		Cell:     c.Key,
		Revision: in.Revision,
		Width:    in.Width(),
		Nets:     nl.Len(),
	})

	for i, g := range in.Globals {
		tables.Globals = append(tables.Globals, GlobalRow{
			Cell:           c.Key,
			Name:           g.Name,
			Slot:           i,
			Characteristic: string(g.Characteristic),
			Partitioned:    in.IsPartitioned(g.Name),
		})
	}

	src := c.Source()
	for i, p := range in.Exports {
		net := -1
		if p.Width > 0 {
			if n, err := nl.NetOfExport(src.Exports[i].ID, 0); err == nil {
				net = n
			}
		}
		tables.Exports = append(tables.Exports, ExportRow{
			Cell:           c.Key,
			Name:           p.Name,
			Offset:         p.Offset,
			Width:          p.Width,
			Characteristic: string(p.Characteristic),
			Net:            net,
		})
	}

	for _, k := range equiv.Kinds {
		for slot, rep := range in.Equiv(k) {
			tables.Equivs = append(tables.Equivs, EquivRow{
				Cell: c.Key,
				Kind: k.String(),
				Slot: slot,
				Rep:  rep,
			})
		}
	}

	att := nl.Attachments()
	for _, n := range nl.Nets {
		tables.Nets = append(tables.Nets, NetRow{
			Cell:        c.Key,
			Net:         n.ID,
			Names:       nonNil(n.Names),
			Globals:     nonNil(n.Globals),
			Exported:    n.Exported,
			Attachments: att[n.ID],
		})
	}

	for _, node := range src.Nodes {
		ports, err := c.UnconnectedPorts(node.ID)
		if err != nil || len(ports) == 0 {
			continue
		}
		kind, _ := c.NodeKind(node.ID)
		for _, p := range ports {
			tables.Unconnected = append(tables.Unconnected, UnconnectedRow{
				Cell: c.Key,
				Node: node.ID,
				Name: node.Name,
				Kind: kind,
				Port: p,
			})
		}
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
