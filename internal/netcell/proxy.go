package netcell

import (
	"fmt"
	"sort"

	"github.com/robert-at-pretension-io/netconn/internal/design"
	"github.com/robert-at-pretension-io/netconn/internal/diag"
)

// instance is a node whose prototype is another cell.
type instance struct {
	proto  *design.Cell // cell named by the node
	target *design.Cell // cell whose interface is expanded
	// selfIcon marks an icon of the parent's own schematic. It is drawn for
	// documentation and never expanded.
	selfIcon bool
	iface    *Interface
	portMap  []int // proto export -> target export, -1 when unmatched
}

// Proxy is one expanded copy of a sub-cell instance. Offset and Width
// locate its private slice of the equivalence map.
type Proxy struct {
	Node   int    `json:"node"`
	Name   string `json:"name,omitempty"`
	Copy   int    `json:"copy"`
	Target string `json:"target"`
	Offset int    `json:"offset"`
	Width  int    `json:"width"`
}

// instanceTarget picks the cell behind an instance: the schematic of an
// icon when one exists, otherwise the prototype itself.
func instanceTarget(lib *design.Library, parent, proto *design.Cell) (target *design.Cell, selfIcon bool) {
	if !proto.IsIcon() {
		return proto, false
	}
	if !parent.IsIcon() && parent.Name == proto.Name {
		return proto, true
	}
	if sch, ok := lib.SchematicOf(proto); ok {
		return sch, false
	}
	return proto, false
}

// Dependencies lists the keys of the cells whose interfaces are needed to
// compute c, sorted and without duplicates. Unknown prototypes are left
// for Compute to report.
func Dependencies(lib *design.Library, c *design.Cell) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range c.Nodes {
		if n.Cell == "" {
			continue
		}
		proto, ok := lib.Cell(n.Cell)
		if !ok {
			continue
		}
		target, self := instanceTarget(lib, c, proto)
		if self || seen[target.Key()] {
			continue
		}
		seen[target.Key()] = true
		out = append(out, target.Key())
	}
	sort.Strings(out)
	return out
}

func resolveInstance(parent, proto *design.Cell, env *Env) (*instance, error) {
	target, self := instanceTarget(env.Lib, parent, proto)
	inst := &instance{proto: proto, target: target, selfIcon: self}
	if self {
		return inst, nil
	}
	if env.Lookup == nil {
		return nil, fmt.Errorf("no interface source for %s", target.Key())
	}
	iface, err := env.Lookup(target.Key())
	if err != nil {
		return nil, err
	}
	inst.iface = iface
	inst.portMap = make([]int, len(proto.Exports))
	for i, e := range proto.Exports {
		if target == proto {
			inst.portMap[i] = i
		} else {
			inst.portMap[i] = iface.ExportIndex(e.Name)
		}
	}
	return inst, nil
}

// protoPortIndex resolves a port name on the instance node.
func (in *instance) protoPortIndex(name string) int {
	for i, e := range in.proto.Exports {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// copies is the number of proxies of a node: one per bit of an icon's
// instance name, one for a direct schematic instance, none for an icon of
// its own parent.
func (ni *nodeInfo) copies() int {
	switch {
	case ni.inst == nil || ni.inst.selfIcon:
		return 0
	case ni.inst.proto.IsIcon():
		return ni.arraySize
	}
	return 1
}

// portWidth is the bus width of one port of an instance node.
func (ni *nodeInfo) portWidth(local int) int {
	in := ni.inst
	if in.iface != nil {
		if t := in.portMap[local]; t >= 0 {
			return in.iface.Exports[t].Width
		}
	}
	return exportNameWidth(in.proto.Exports[local].Name)
}

// instanceBit maps bit b of proxy copy k onto a drawn group of width wd,
// replicating when the group is narrower than the whole array. A group
// narrower than one port keeps only its own bits; it returns -1 for the
// rest, which stay unconnected.
func instanceBit(k, b, pw, copies, wd int) int {
	idx := k*pw + b
	switch {
	case wd >= copies*pw:
		return idx
	case wd < pw:
		if b < wd {
			return b
		}
		return -1
	}
	return idx % wd
}

// layoutProxies assigns map slices to every proxy starting at base and
// reports duplicate instance names.
func layoutProxies(x *index, base int, dl *diag.List) ([]Proxy, int) {
	var out []Proxy
	seen := make(map[string]int)
	next := base
	for i := range x.nodes {
		ni := &x.nodes[i]
		n := ni.copies()
		for k := 0; k < n; k++ {
			p := Proxy{
				Node:   ni.node.ID,
				Copy:   k,
				Target: ni.inst.target.Key(),
				Offset: next,
				Width:  ni.inst.iface.Width(),
			}
			if !ni.node.IsTemporary() {
				p.Name = ni.name.Bit(k)
				if prev, dup := seen[p.Name]; dup {
					dl.AtNode(diag.CodeDuplicateInstance, ni.node.ID, "instance name %q also used by node %d", p.Name, prev)
				} else {
					seen[p.Name] = ni.node.ID
				}
			}
			next += p.Width
			out = append(out, p)
		}
	}
	return out, next
}
