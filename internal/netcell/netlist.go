package netcell

import (
	"fmt"

	"github.com/robert-at-pretension-io/netconn/internal/design"
	"github.com/robert-at-pretension-io/netconn/internal/equiv"
)

// Net is one electrically distinct signal of a cell under a relation.
type Net struct {
	ID       int      `json:"id"`
	Names    []string `json:"names,omitempty"`
	Globals  []string `json:"globals,omitempty"`
	Exported bool     `json:"exported"`
}

// Netlist numbers the nets of a cell densely. Proxy-internal signals that
// never reach this cell's own wiring are not nets of the cell.
type Netlist struct {
	Kind equiv.Kind
	Nets []Net

	cell  *Cell
	netOf map[int]int // root address -> net id
}

// Netlist builds the net numbering for one relation. Nets are ordered by
// their smallest address, so globals come first, then exports.
func (c *Cell) Netlist(k equiv.Kind) *Netlist {
	nl := &Netlist{Kind: k, cell: c, netOf: make(map[int]int)}
	limit := c.Layout.proxyBase()
	roots := c.eq.Map(k).Roots(limit)
	netFor := func(addr int) *Net {
		r := roots[addr]
		id, ok := nl.netOf[r]
		if !ok {
			id = len(nl.Nets)
			nl.netOf[r] = id
			nl.Nets = append(nl.Nets, Net{ID: id})
		}
		return &nl.Nets[id]
	}
	for a := 0; a < limit; a++ {
		n := netFor(a)
		switch {
		case a < c.Layout.Globals:
			n.Globals = append(n.Globals, c.Interface.Globals[a].Name)
		case a < c.Layout.drawnBase():
			n.Exported = true
		case a >= c.Layout.nameBase():
			n.Names = append(n.Names, c.names.slotNames[a-c.Layout.nameBase()])
		}
	}
	return nl
}

// Len returns the number of nets.
func (nl *Netlist) Len() int { return len(nl.Nets) }

func (nl *Netlist) netAt(addr int) int {
	return nl.netOf[nl.cell.eq.Resolve(nl.Kind, addr)]
}

func (nl *Netlist) drawnNet(d, bit int) (int, error) {
	if bit < 0 || bit >= nl.cell.names.widths[d] {
		return -1, fmt.Errorf("bit %d out of range for width %d", bit, nl.cell.names.widths[d])
	}
	return nl.netAt(nl.cell.drawnBit(d, bit)), nil
}

// NetOfExport returns the net of one bit of an export, by export id.
func (nl *Netlist) NetOfExport(id, bit int) (int, error) {
	i, ok := nl.cell.x.exportByID[id]
	if !ok {
		return -1, fmt.Errorf("cell %s: no export %d", nl.cell.Key, id)
	}
	if bit < 0 || bit >= nl.cell.names.exportWidth[i] {
		return -1, fmt.Errorf("cell %s: export %d has no bit %d", nl.cell.Key, id, bit)
	}
	return nl.netAt(nl.cell.Interface.Exports[i].Offset + bit), nil
}

// NetOfArc returns the net of one bit of an arc, by arc id.
func (nl *Netlist) NetOfArc(id, bit int) (int, error) {
	a, ok := nl.cell.x.arcByID[id]
	if !ok {
		return -1, fmt.Errorf("cell %s: no arc %d", nl.cell.Key, id)
	}
	n, err := nl.drawnNet(nl.cell.drawn.of[nl.cell.x.arcAddr(a)], bit)
	if err != nil {
		return -1, fmt.Errorf("cell %s: arc %d: %w", nl.cell.Key, id, err)
	}
	return n, nil
}

// NetOfPort returns the net of one bit of a node port.
func (nl *Netlist) NetOfPort(node int, port string, bit int) (int, error) {
	addr, err := nl.cell.x.resolvePort(node, port)
	if err != nil {
		return -1, fmt.Errorf("cell %s: node %d port %q: %w", nl.cell.Key, node, port, err)
	}
	n, err := nl.drawnNet(nl.cell.drawn.of[addr], bit)
	if err != nil {
		return -1, fmt.Errorf("cell %s: node %d port %q: %w", nl.cell.Key, node, port, err)
	}
	return n, nil
}

// ArcWidth returns the bus width of the group an arc belongs to.
func (c *Cell) ArcWidth(id int) (int, error) {
	a, ok := c.x.arcByID[id]
	if !ok {
		return 0, fmt.Errorf("cell %s: no arc %d", c.Key, id)
	}
	return c.names.widths[c.drawn.of[c.x.arcAddr(a)]], nil
}

// UnconnectedPorts lists the ports of a node that no export or electrical
// arc reaches, directly or through ports tied inside the primitive.
func (c *Cell) UnconnectedPorts(node int) ([]string, error) {
	i, ok := c.x.nodeByID[node]
	if !ok {
		return nil, fmt.Errorf("cell %s: no node %d", c.Key, node)
	}
	ni := &c.x.nodes[i]
	var out []string
	for p := 0; p < ni.numPorts; p++ {
		addr := ni.portStart + p
		if c.drawn.of[addr] < c.drawn.numConnected || c.wired(addr) {
			continue
		}
		out = append(out, c.portName(ni, p))
	}
	return out, nil
}

// wired reports whether an export or electrical arc sits on the port.
// Wire connector ports are wired without joining the arcs' groups.
func (c *Cell) wired(addr int) bool {
	found := false
	c.x.ring(addr, func(elem int, _ bool) {
		if c.x.isExport(elem) || !c.x.arcProto[c.x.arcOf(elem)].NonElectrical {
			found = true
		}
	})
	return found
}

// FullyConnected reports whether every port of the node is wired.
func (c *Cell) FullyConnected(node int) (bool, error) {
	ports, err := c.UnconnectedPorts(node)
	if err != nil {
		return false, err
	}
	return len(ports) == 0, nil
}

func (c *Cell) portName(ni *nodeInfo, p int) string {
	if ni.prim != nil {
		return ni.prim.Ports[p].Name
	}
	return ni.inst.proto.Exports[p].Name
}

// GroupRanges returns the drawn-group boundaries: groups below exported
// contain an export, groups below connected contain an arc, the rest are
// lone node ports.
func (c *Cell) GroupRanges() (exported, connected, total int) {
	return c.drawn.numExported, c.drawn.numConnected, c.drawn.numDrawns
}

// NodeIDs returns the node ids of the cell in order.
func (c *Cell) NodeIDs() []int {
	out := make([]int, len(c.x.nodes))
	for i, ni := range c.x.nodes {
		out[i] = ni.node.ID
	}
	return out
}

// Signature is the naming-independent signature of the published
// interface under relation k.
func (c *Cell) Signature(k equiv.Kind) string {
	return c.Interface.Signature(k)
}

// NetOfProxy returns the net an interface slot of a proxy belongs to, or
// -1 when the slot stays internal to the sub-cell.
func (nl *Netlist) NetOfProxy(p Proxy, slot int) int {
	if slot < 0 || slot >= p.Width {
		return -1
	}
	id, ok := nl.netOf[nl.cell.eq.Resolve(nl.Kind, p.Offset+slot)]
	if !ok {
		return -1
	}
	return id
}

// Source returns the design cell that was computed.
func (c *Cell) Source() *design.Cell { return c.x.cell }

// Node kinds reported by NodeKind besides primitive functions.
const (
	KindInstance = "instance"
	KindSelfIcon = "self-icon"
)

// NodeKind returns the primitive function of a node, or KindInstance or
// KindSelfIcon for cell instances.
func (c *Cell) NodeKind(node int) (string, error) {
	i, ok := c.x.nodeByID[node]
	if !ok {
		return "", fmt.Errorf("cell %s: no node %d", c.Key, node)
	}
	ni := &c.x.nodes[i]
	switch {
	case ni.prim != nil:
		return string(ni.prim.Function), nil
	case ni.inst.selfIcon:
		return KindSelfIcon, nil
	}
	return KindInstance, nil
}

// Attachments counts, per net, what drives or loads it: primitive ports
// other than pins and wire connectors, instance port bits, and globals.
// A net with no attachments only joins wires, pins and exports.
func (nl *Netlist) Attachments() []int {
	c := nl.cell
	out := make([]int, len(nl.Nets))
	for _, n := range nl.Nets {
		out[n.ID] += len(n.Globals)
	}
	for i := range c.x.nodes {
		ni := &c.x.nodes[i]
		if ni.prim == nil || ni.prim.IsPin() || ni.prim.IsWireConnector() {
			continue
		}
		for p := 0; p < ni.numPorts; p++ {
			d := c.drawn.of[ni.portStart+p]
			for b := 0; b < c.names.widths[d]; b++ {
				out[nl.netAt(c.drawnBit(d, b))]++
			}
		}
	}
	for _, p := range c.Proxies {
		for s := 0; s < p.Width; s++ {
			if id := nl.NetOfProxy(p, s); id >= 0 {
				out[id]++
			}
		}
	}
	return out
}
