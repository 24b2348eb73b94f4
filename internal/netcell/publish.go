package netcell

import (
	"github.com/robert-at-pretension-io/netconn/internal/design"
	"github.com/robert-at-pretension-io/netconn/internal/diag"
	"github.com/robert-at-pretension-io/netconn/internal/equiv"
	"github.com/robert-at-pretension-io/netconn/internal/tech"
)

// publish reads the interface slots out of the closed relations. Roots are
// the smallest member of their class, so every entry points back into the
// interface slot space.
func (c *Cell) publish(gs *globalSet, revision string) *Interface {
	in := &Interface{
		Cell:        c.Key,
		Revision:    revision,
		Globals:     append([]Global{}, gs.list...),
		Partitioned: append([]string(nil), gs.partitioned...),
		Exports:     make([]PortInfo, len(c.x.cell.Exports)),
	}
	off := c.Layout.exportBase()
	for i, e := range c.x.cell.Exports {
		ch, _ := tech.ParseCharacteristic(e.Characteristic)
		in.Exports[i] = PortInfo{Name: e.Name, Offset: off, Width: c.names.exportWidth[i], Characteristic: ch}
		off += c.names.exportWidth[i]
	}
	width := c.Layout.drawnBase()
	for _, k := range equiv.Kinds {
		tbl := c.eq.Map(k).Roots(width)
		switch k {
		case equiv.N:
			in.EquivN = tbl
		case equiv.P:
			in.EquivP = tbl
		case equiv.A:
			in.EquivA = tbl
		}
	}
	return in
}

// checkIconPorts compares the exports of a schematic with those of its
// icon by name in both directions.
func checkIconPorts(c *design.Cell, lib *design.Library, dl *diag.List) {
	if lib == nil || c.IsIcon() {
		return
	}
	for _, icon := range lib.IconsOf(c) {
		have := make(map[string]bool, len(c.Exports))
		for _, e := range c.Exports {
			have[e.Name] = true
		}
		onIcon := make(map[string]bool, len(icon.Exports))
		for _, e := range icon.Exports {
			onIcon[e.Name] = true
			if !have[e.Name] {
				dl.Add(diag.CodeIconPortMismatch, "icon %s port %q has no schematic export", icon.Key(), e.Name)
			}
		}
		for _, e := range c.Exports {
			if !onIcon[e.Name] {
				dl.AtExport(diag.CodeIconPortMismatch, e.ID, "export %q is missing on icon %s", e.Name, icon.Key())
			}
		}
	}
}
