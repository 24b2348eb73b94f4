package netcell

import (
	"errors"

	"github.com/robert-at-pretension-io/netconn/internal/busname"
	"github.com/robert-at-pretension-io/netconn/internal/design"
	"github.com/robert-at-pretension-io/netconn/internal/diag"
	"github.com/robert-at-pretension-io/netconn/internal/tech"
)

// nodeInfo is a node with its prototype resolved.
type nodeInfo struct {
	node      *design.Node
	prim      *tech.Primitive // nil for cell instances
	inst      *instance       // nil for primitives
	portStart int
	numPorts  int
	name      busname.Name // zero Name when temporary
	arraySize int
}

// index is the connectivity index of one cell. Addresses are laid out as
// [exports][node ports][arcs]. Every node port is the anchor of a ring
// linking the exports and arc ends attached to it; conn holds the next
// element of each ring and tail ends of arcs are stored as ^addr so that
// they continue through tailConn instead.
type index struct {
	cell  *design.Cell
	nodes []nodeInfo

	nodeByID   map[int]int
	arcByID    map[int]int
	exportByID map[int]int

	numExports   int
	numNodePorts int
	numArcs      int

	exportPort []int // export -> port address
	arcHead    []int // arc -> port address
	arcTail    []int
	arcProto   []*tech.ArcProto
	portNode   []int // port address - numExports -> node index
	portLocal  []int // port address - numExports -> port index on node

	conn     []int
	tailConn []int
}

func (x *index) total() int { return x.numExports + x.numNodePorts + x.numArcs }

func (x *index) arcAddr(a int) int { return x.numExports + x.numNodePorts + a }

func (x *index) isExport(addr int) bool { return addr < x.numExports }

func (x *index) isPort(addr int) bool {
	return addr >= x.numExports && addr < x.numExports+x.numNodePorts
}

func (x *index) isArc(addr int) bool { return addr >= x.numExports+x.numNodePorts }

func (x *index) arcOf(addr int) int { return addr - x.numExports - x.numNodePorts }

func (x *index) nodeOfPort(addr int) *nodeInfo {
	return &x.nodes[x.portNode[addr-x.numExports]]
}

func (x *index) localOfPort(addr int) int { return x.portLocal[addr-x.numExports] }

// next follows one link of a ring.
func (x *index) next(elem int) int {
	if elem < 0 {
		return x.tailConn[^elem]
	}
	return x.conn[elem]
}

// ring calls fn for every export and arc end wired to the port at addr.
// tail is set for arc tail ends.
func (x *index) ring(addr int, fn func(elem int, tail bool)) {
	for e := x.conn[addr]; e != addr; e = x.next(e) {
		if e < 0 {
			fn(^e, true)
		} else {
			fn(e, false)
		}
	}
}

func (x *index) link(port, elem int) {
	x.conn[elem] = x.conn[port]
	x.conn[port] = elem
}

func (x *index) linkTail(port, arcAddr int) {
	x.tailConn[arcAddr] = x.conn[port]
	x.conn[port] = ^arcAddr
}

// buildIndex resolves every prototype and port of the cell. Any failure
// to resolve is fatal for the cell.
func buildIndex(c *design.Cell, env *Env, dl *diag.List) (*index, error) {
	key := c.Key()
	x := &index{
		cell:       c,
		nodeByID:   make(map[int]int, len(c.Nodes)),
		arcByID:    make(map[int]int, len(c.Arcs)),
		exportByID: make(map[int]int, len(c.Exports)),
		numExports: len(c.Exports),
		numArcs:    len(c.Arcs),
	}

	x.nodes = make([]nodeInfo, len(c.Nodes))
	next := x.numExports
	for i, n := range c.Nodes {
		if _, dup := x.nodeByID[n.ID]; dup {
			return nil, diag.Fatal(key, "node", n.ID, errors.New("duplicate id"), "node %q", n.Name)
		}
		x.nodeByID[n.ID] = i
		ni := nodeInfo{node: n, arraySize: 1}
		switch {
		case n.Prim != "" && n.Cell != "":
			return nil, diag.Fatal(key, "node", n.ID, diag.ErrUnresolvedProto, "both primitive %q and cell %q given", n.Prim, n.Cell)
		case n.Prim != "":
			p, ok := env.Tech.Primitive(n.Prim)
			if !ok {
				return nil, diag.Fatal(key, "node", n.ID, diag.ErrUnresolvedProto, "primitive %q", n.Prim)
			}
			ni.prim = p
			ni.numPorts = len(p.Ports)
		case n.Cell != "":
			proto, ok := env.Lib.Cell(n.Cell)
			if !ok {
				return nil, diag.Fatal(key, "node", n.ID, diag.ErrUnresolvedProto, "cell %q", n.Cell)
			}
			inst, err := resolveInstance(c, proto, env)
			if err != nil {
				return nil, diag.Fatal(key, "node", n.ID, err, "instance of %s", n.Cell)
			}
			ni.inst = inst
			ni.numPorts = len(proto.Exports)
		default:
			return nil, diag.Fatal(key, "node", n.ID, diag.ErrUnresolvedProto, "no prototype")
		}
		if !n.IsTemporary() {
			name, err := busname.Parse(n.Name)
			if err != nil {
				dl.AtNode(diag.CodeBadNetName, n.ID, "%v", err)
				name = busname.Scalar(n.Name)
			}
			ni.name = name
			ni.arraySize = name.Width()
		}
		ni.portStart = next
		next += ni.numPorts
		x.nodes[i] = ni
	}
	x.numNodePorts = next - x.numExports

	x.portNode = make([]int, x.numNodePorts)
	x.portLocal = make([]int, x.numNodePorts)
	for i, ni := range x.nodes {
		for p := 0; p < ni.numPorts; p++ {
			x.portNode[ni.portStart+p-x.numExports] = i
			x.portLocal[ni.portStart+p-x.numExports] = p
		}
	}

	x.conn = make([]int, x.total())
	x.tailConn = make([]int, x.total())
	for i := range x.conn {
		x.conn[i] = i
		x.tailConn[i] = i
	}

	x.exportPort = make([]int, x.numExports)
	for i, e := range c.Exports {
		if _, dup := x.exportByID[e.ID]; dup {
			return nil, diag.Fatal(key, "export", e.ID, errors.New("duplicate id"), "export %q", e.Name)
		}
		x.exportByID[e.ID] = i
		port, err := x.resolvePort(e.Node, e.Port)
		if err != nil {
			return nil, diag.Fatal(key, "export", e.ID, err, "export %q on node %d port %q", e.Name, e.Node, e.Port)
		}
		x.exportPort[i] = port
		x.link(port, i)
	}

	x.arcHead = make([]int, x.numArcs)
	x.arcTail = make([]int, x.numArcs)
	x.arcProto = make([]*tech.ArcProto, x.numArcs)
	for i, a := range c.Arcs {
		if _, dup := x.arcByID[a.ID]; dup {
			return nil, diag.Fatal(key, "arc", a.ID, errors.New("duplicate id"), "arc %q", a.Name)
		}
		x.arcByID[a.ID] = i
		ap, ok := env.Tech.ArcProto(a.Proto)
		if !ok {
			return nil, diag.Fatal(key, "arc", a.ID, diag.ErrUnresolvedProto, "arc prototype %q", a.Proto)
		}
		x.arcProto[i] = ap
		head, err := x.resolvePort(a.Head.Node, a.Head.Port)
		if err != nil {
			return nil, diag.Fatal(key, "arc", a.ID, err, "head on node %d port %q", a.Head.Node, a.Head.Port)
		}
		tail, err := x.resolvePort(a.Tail.Node, a.Tail.Port)
		if err != nil {
			return nil, diag.Fatal(key, "arc", a.ID, err, "tail on node %d port %q", a.Tail.Node, a.Tail.Port)
		}
		x.arcHead[i] = head
		x.arcTail[i] = tail
		addr := x.arcAddr(i)
		x.link(head, addr)
		x.linkTail(tail, addr)
	}
	return x, nil
}

// resolvePort maps a node id and port name to a port address.
func (x *index) resolvePort(nodeID int, port string) (int, error) {
	ni, ok := x.nodeByID[nodeID]
	if !ok {
		return 0, diag.ErrUnresolvedNode
	}
	info := &x.nodes[ni]
	var local int
	if info.prim != nil {
		local = info.prim.PortIndex(port)
	} else {
		local = info.inst.protoPortIndex(port)
	}
	if local < 0 {
		return 0, diag.ErrUnresolvedPort
	}
	return info.portStart + local, nil
}
