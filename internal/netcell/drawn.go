package netcell

import (
	"github.com/robert-at-pretension-io/netconn/internal/diag"
)

// drawnGroups partitions every address into groups merged by direct
// wiring. Groups are numbered in discovery order: export seeds first,
// then arc seeds, then node ports that nothing reached.
type drawnGroups struct {
	of           []int // address -> group
	numExported  int
	numConnected int
	numDrawns    int
}

// joins reports whether an arc end and the port it sits on exchange
// connectivity.
func (x *index) joins(port, arc int) bool {
	if x.arcProto[arc].NonElectrical {
		return false
	}
	ni := x.nodeOfPort(port)
	if ni.prim == nil {
		return true
	}
	if ni.prim.IsWireConnector() {
		return false
	}
	if ni.prim.IsBusPin() && !x.arcProto[arc].Bus {
		return false
	}
	return true
}

// extractDrawn runs the flood fill with an explicit work stack.
func extractDrawn(x *index) *drawnGroups {
	g := &drawnGroups{of: make([]int, x.total())}
	for i := range g.of {
		g.of[i] = -1
	}
	stack := make([]int, 0, 64)

	fill := func(seed int) {
		id := g.numDrawns
		g.numDrawns++
		g.of[seed] = id
		stack = append(stack[:0], seed)
		push := func(addr int) {
			if g.of[addr] < 0 {
				g.of[addr] = id
				stack = append(stack, addr)
			}
		}
		for len(stack) > 0 {
			addr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch {
			case x.isExport(addr):
				push(x.exportPort[addr])
			case x.isArc(addr):
				a := x.arcOf(addr)
				if x.joins(x.arcHead[a], a) {
					push(x.arcHead[a])
				}
				if x.joins(x.arcTail[a], a) {
					push(x.arcTail[a])
				}
			default:
				x.ring(addr, func(elem int, _ bool) {
					if x.isExport(elem) {
						push(elem)
						return
					}
					if x.joins(addr, x.arcOf(elem)) {
						push(elem)
					}
				})
				x.topologyPeers(addr, push)
			}
		}
	}

	for e := 0; e < x.numExports; e++ {
		if g.of[e] < 0 {
			fill(e)
		}
	}
	g.numExported = g.numDrawns
	for a := 0; a < x.numArcs; a++ {
		if addr := x.arcAddr(a); g.of[addr] < 0 {
			fill(addr)
		}
	}
	g.numConnected = g.numDrawns
	for p := x.numExports; p < x.numExports+x.numNodePorts; p++ {
		if g.of[p] < 0 {
			fill(p)
		}
	}
	return g
}

// topologyPeers calls fn for the other ports of the same primitive that
// share the port's topology class. Isolated ports have no peers.
func (x *index) topologyPeers(port int, fn func(int)) {
	ni := x.nodeOfPort(port)
	if ni.prim == nil || ni.prim.IsWireConnector() {
		return
	}
	local := x.localOfPort(port)
	self := ni.prim.Ports[local]
	if self.Isolated {
		return
	}
	for i, p := range ni.prim.Ports {
		if i == local || p.Isolated || p.Topology != self.Topology {
			continue
		}
		fn(ni.portStart + i)
	}
}

// wireJoin is a wire connector joining exactly two arcs.
type wireJoin struct {
	node   int // node index
	a1, a2 int // arc indices
}

// wireJoins lists the wire connectors that merge two arc groups. A
// connector with more than two electrical arcs is reported and skipped.
func wireJoins(x *index, dl *diag.List) []wireJoin {
	var out []wireJoin
	for i := range x.nodes {
		ni := &x.nodes[i]
		if ni.prim == nil || !ni.prim.IsWireConnector() {
			continue
		}
		var arcs []int
		for p := 0; p < ni.numPorts; p++ {
			x.ring(ni.portStart+p, func(elem int, _ bool) {
				if x.isArc(elem) && !x.arcProto[x.arcOf(elem)].NonElectrical {
					arcs = append(arcs, x.arcOf(elem))
				}
			})
		}
		switch {
		case len(arcs) == 2:
			out = append(out, wireJoin{node: i, a1: arcs[0], a2: arcs[1]})
		case len(arcs) > 2:
			dl.AtNode(diag.CodeWireConnectorArcs, ni.node.ID, "wire connector has %d arcs, expected 2", len(arcs))
		}
	}
	return out
}
