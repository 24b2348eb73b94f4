package netcell

import (
	"fmt"

	"github.com/robert-at-pretension-io/netconn/internal/busname"
	"github.com/robert-at-pretension-io/netconn/internal/diag"
)

// WidthPolicy decides the width of a drawn group when two sources
// disagree.
type WidthPolicy string

const (
	// WidthWider keeps the larger of the two widths.
	WidthWider WidthPolicy = "wider"
	// WidthFirst keeps the width seen first.
	WidthFirst WidthPolicy = "first"
)

// ParseWidthPolicy accepts "" as the default policy.
func ParseWidthPolicy(s string) (WidthPolicy, error) {
	switch WidthPolicy(s) {
	case "", WidthWider:
		return WidthWider, nil
	case WidthFirst:
		return WidthFirst, nil
	}
	return "", fmt.Errorf("unknown width policy %q", s)
}

// nameBinding ties a user name to a drawn group.
type nameBinding struct {
	drawn int
	slots []int // net-name slot per bit
}

// naming is the result of name collection and width reconciliation.
type naming struct {
	widths      []int    // drawn -> bus width, at least 1
	drawnNames  []string // drawn -> first name seen, "" when unnamed
	exportWidth []int
	slotNames   []string // net-name slot -> scalar name
	bindings    []nameBinding
}

func exportNameWidth(name string) int {
	n, err := busname.Parse(name)
	if err != nil {
		return 1
	}
	return n.Width()
}

// reconcile collects net names and settles the width of every drawn group.
func reconcile(x *index, g *drawnGroups, policy WidthPolicy, dl *diag.List) *naming {
	nm := &naming{
		widths:      make([]int, g.numDrawns),
		drawnNames:  make([]string, g.numDrawns),
		exportWidth: make([]int, x.numExports),
	}
	slotOf := make(map[string]int)
	bind := func(d int, name busname.Name) {
		b := nameBinding{drawn: d, slots: make([]int, name.Width())}
		for i, bit := range name.Bits() {
			s, ok := slotOf[bit]
			if !ok {
				s = len(nm.slotNames)
				slotOf[bit] = s
				nm.slotNames = append(nm.slotNames, bit)
			}
			b.slots[i] = s
		}
		nm.bindings = append(nm.bindings, b)
		if nm.drawnNames[d] == "" {
			nm.drawnNames[d] = name.String()
		}
	}
	constrain := func(d, w int, report func(format string, args ...any)) {
		cur := nm.widths[d]
		switch {
		case cur == 0:
			nm.widths[d] = w
		case cur != w:
			report("width %d conflicts with width %d of %s", w, cur, nm.label(d))
			if policy != WidthFirst && w > cur {
				nm.widths[d] = w
			}
		}
	}

	for i, e := range x.cell.Exports {
		name, err := busname.Parse(e.Name)
		if err != nil {
			dl.AtExport(diag.CodeBadNetName, e.ID, "%v", err)
			name = busname.Scalar(e.Name)
		}
		d := g.of[i]
		nm.exportWidth[i] = name.Width()
		bind(d, name)
		constrain(d, name.Width(), func(f string, args ...any) {
			dl.AtExport(diag.CodeBusWidthConflict, e.ID, "export %q: "+f, append([]any{e.Name}, args...)...)
		})
	}

	for i, a := range x.cell.Arcs {
		if a.IsTemporary() || x.arcProto[i].NonElectrical {
			continue
		}
		name, err := busname.Parse(a.Name)
		if err != nil {
			dl.AtArc(diag.CodeBadNetName, a.ID, "%v", err)
			name = busname.Scalar(a.Name)
		}
		d := g.of[x.arcAddr(i)]
		bind(d, name)
		constrain(d, name.Width(), func(f string, args ...any) {
			dl.AtArc(diag.CodeBusWidthConflict, a.ID, "arc %q: "+f, append([]any{a.Name}, args...)...)
		})
	}

	for i, a := range x.cell.Arcs {
		if !a.IsTemporary() || x.arcProto[i].Bus || x.arcProto[i].NonElectrical {
			continue
		}
		constrain(g.of[x.arcAddr(i)], 1, func(f string, args ...any) {
			dl.AtArc(diag.CodeBusWidthConflict, a.ID, "unnamed wire: "+f, args...)
		})
	}

	for i := range x.nodes {
		ni := &x.nodes[i]
		if ni.prim == nil || ni.prim.IsPin() || ni.prim.IsWireConnector() || ni.prim.IsGlobalSource() {
			continue
		}
		for p := 0; p < ni.numPorts; p++ {
			constrain(g.of[ni.portStart+p], ni.arraySize, func(f string, args ...any) {
				dl.AtNode(diag.CodeBusWidthConflict, ni.node.ID, "port %s: "+f, append([]any{ni.prim.Ports[p].Name}, args...)...)
			})
		}
	}

	for i := range x.nodes {
		ni := &x.nodes[i]
		if ni.inst == nil {
			continue
		}
		copies := ni.copies()
		if copies == 0 {
			copies = 1
		}
		for p := 0; p < ni.numPorts; p++ {
			d := g.of[ni.portStart+p]
			pw := ni.portWidth(p)
			if w := nm.widths[d]; w == copies*pw || w == pw {
				continue
			}
			constrain(d, copies*pw, func(f string, args ...any) {
				dl.AtNode(diag.CodeBusWidthConflict, ni.node.ID, "port %s: "+f, append([]any{ni.inst.proto.Exports[p].Name}, args...)...)
			})
		}
	}

	for d, w := range nm.widths {
		if w == 0 {
			nm.widths[d] = 1
		}
	}
	return nm
}

func (nm *naming) label(d int) string {
	if n := nm.drawnNames[d]; n != "" {
		return fmt.Sprintf("net %q", n)
	}
	return fmt.Sprintf("group %d", d)
}
