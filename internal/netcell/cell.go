// Package netcell computes the connectivity of one cell: drawn groups,
// net names and bus widths, expansion of sub-cell instances into proxies,
// and the N, P and A equivalence relations over the cell's signals. The
// result publishes an Interface that parents consume in place of the
// cell's internals.
package netcell

import (
	"time"

	"github.com/robert-at-pretension-io/netconn/internal/design"
	"github.com/robert-at-pretension-io/netconn/internal/diag"
	"github.com/robert-at-pretension-io/netconn/internal/equiv"
	"github.com/robert-at-pretension-io/netconn/internal/tech"
)

// Env is what Compute needs from outside the cell. Lookup returns the
// published interface of a sub-cell and must only be called for cells
// listed by Dependencies.
type Env struct {
	Tech        tech.Technology
	Lib         *design.Library
	Lookup      func(key string) (*Interface, error)
	WidthPolicy WidthPolicy
	// Revision is stamped on the published Interface.
	Revision string
}

// Layout gives the regions of the equivalence map of a cell:
// [globals][export bits][drawn bits][net names][proxies].
type Layout struct {
	Globals    int `json:"globals"`
	ExportBits int `json:"exportBits"`
	DrawnBits  int `json:"drawnBits"`
	NetNames   int `json:"netNames"`
	ProxyBits  int `json:"proxyBits"`
}

func (l Layout) exportBase() int { return l.Globals }
func (l Layout) drawnBase() int  { return l.Globals + l.ExportBits }
func (l Layout) nameBase() int   { return l.drawnBase() + l.DrawnBits }
func (l Layout) proxyBase() int  { return l.nameBase() + l.NetNames }

// Width is the total width of the map.
func (l Layout) Width() int { return l.proxyBase() + l.ProxyBits }

// Cell is the computed connectivity of one cell revision. It is read-only
// after Compute returns and safe for concurrent readers.
type Cell struct {
	Key         string
	Interface   *Interface
	Diagnostics []diag.Diagnostic
	Proxies     []Proxy
	// SelfIcons holds ids of nodes that are icons of this cell and were
	// not expanded.
	SelfIcons []int
	Layout    Layout
	// Phases is the wall time of each step of Compute, in order.
	Phases []Phase

	x           *index
	drawn       *drawnGroups
	names       *naming
	drawnOffset []int
	eq          *equiv.Set
}

// Phase is the time one step of Compute took.
type Phase struct {
	Name    string        `json:"name"`
	Elapsed time.Duration `json:"elapsed"`
}

type stopwatch struct {
	last   time.Time
	phases []Phase
}

func (sw *stopwatch) lap(name string) {
	now := time.Now()
	sw.phases = append(sw.phases, Phase{Name: name, Elapsed: now.Sub(sw.last)})
	sw.last = now
}

// Compute builds the connectivity of c. Sub-cell interfaces come from
// env.Lookup. A returned error is a *diag.FatalError; design problems
// that still allow a result are in Cell.Diagnostics.
func Compute(c *design.Cell, env Env) (*Cell, error) {
	if env.WidthPolicy == "" {
		env.WidthPolicy = WidthWider
	}
	sw := &stopwatch{last: time.Now()}
	dl := diag.NewList(c.Key())
	x, err := buildIndex(c, &env, dl)
	if err != nil {
		return nil, err
	}
	sw.lap("index")
	g := extractDrawn(x)
	sw.lap("drawn")
	nm := reconcile(x, g, env.WidthPolicy, dl)
	joins := wireJoins(x, dl)
	gs := collectGlobals(x, g, dl)
	sw.lap("naming")

	out := &Cell{Key: c.Key(), x: x, drawn: g, names: nm}
	out.Layout.Globals = len(gs.list)
	for _, w := range nm.exportWidth {
		out.Layout.ExportBits += w
	}
	out.drawnOffset = make([]int, g.numDrawns)
	for d, w := range nm.widths {
		out.drawnOffset[d] = out.Layout.DrawnBits
		out.Layout.DrawnBits += w
	}
	out.Layout.NetNames = len(nm.slotNames)
	proxies, end := layoutProxies(x, out.Layout.proxyBase(), dl)
	out.Proxies = proxies
	out.Layout.ProxyBits = end - out.Layout.proxyBase()
	for _, ni := range x.nodes {
		if ni.inst != nil && ni.inst.selfIcon {
			out.SelfIcons = append(out.SelfIcons, ni.node.ID)
		}
	}
	sw.lap("layout")

	eq := equiv.NewSet(out.Layout.Width())
	out.eq = eq
	out.bindNames(eq)
	out.joinWireConnectors(eq, joins)
	out.bindGlobals(eq, gs)
	out.expandProxies(eq, gs)
	out.shortResistors(eq)
	eq.Close()
	sw.lap("relations")

	checkIconPorts(c, env.Lib, dl)
	out.Interface = out.publish(gs, env.Revision)
	out.Diagnostics = dl.Items()
	sw.lap("publish")
	out.Phases = sw.phases
	return out, nil
}

// drawnBit is the map address of bit b of drawn group d.
func (c *Cell) drawnBit(d, b int) int {
	return c.Layout.drawnBase() + c.drawnOffset[d] + b
}

// bindNames ties drawn bits to export bits and to net-name slots.
func (c *Cell) bindNames(eq *equiv.Set) {
	off := c.Layout.exportBase()
	for i, w := range c.names.exportWidth {
		d := c.drawn.of[i]
		for j := 0; j < w && j < c.names.widths[d]; j++ {
			eq.UnionAll(off+j, c.drawnBit(d, j))
		}
		off += w
	}
	for _, b := range c.names.bindings {
		for j, s := range b.slots {
			if j >= c.names.widths[b.drawn] {
				break
			}
			eq.UnionAll(c.Layout.nameBase()+s, c.drawnBit(b.drawn, j))
		}
	}
}

// joinBits merges two drawn groups bit by bit, replicating the narrower.
func (c *Cell) joinBits(d1, d2 int, union func(a, b int)) {
	w1, w2 := c.names.widths[d1], c.names.widths[d2]
	w := max(w1, w2)
	for j := 0; j < w; j++ {
		union(c.drawnBit(d1, j%w1), c.drawnBit(d2, j%w2))
	}
}

func (c *Cell) joinWireConnectors(eq *equiv.Set, joins []wireJoin) {
	for _, j := range joins {
		c.joinBits(c.drawn.of[c.x.arcAddr(j.a1)], c.drawn.of[c.x.arcAddr(j.a2)], eq.UnionAll)
	}
}

// bindGlobals ties every bit at a global source to its global slot.
func (c *Cell) bindGlobals(eq *equiv.Set, gs *globalSet) {
	for _, src := range gs.sources {
		ni := &c.x.nodes[src.node]
		slot := gs.index[src.global]
		d := c.drawn.of[ni.portStart]
		for b := 0; b < c.names.widths[d]; b++ {
			eq.UnionAll(slot, c.drawnBit(d, b))
		}
	}
}

// expandProxies replays each sub-cell's equivalent-port tables inside its
// proxy slices, then ties proxy globals and ports to this cell.
func (c *Cell) expandProxies(eq *equiv.Set, gs *globalSet) {
	byNode := make(map[int][]Proxy)
	for _, p := range c.Proxies {
		byNode[p.Node] = append(byNode[p.Node], p)
	}
	for i := range c.x.nodes {
		ni := &c.x.nodes[i]
		ps := byNode[ni.node.ID]
		if len(ps) == 0 {
			continue
		}
		iface := ni.inst.iface
		copies := len(ps)
		for _, p := range ps {
			for _, k := range equiv.Kinds {
				tbl := iface.Equiv(k)
				for s := range tbl {
					if tbl[s] != s {
						eq.Union(k, p.Offset+s, p.Offset+tbl[s])
					}
				}
			}
			for gi, g := range iface.Globals {
				if iface.IsPartitioned(g.Name) {
					continue
				}
				eq.UnionAll(p.Offset+gi, gs.index[g.Name])
			}
			for port := 0; port < ni.numPorts; port++ {
				t := ni.inst.portMap[port]
				if t < 0 {
					continue
				}
				info := iface.Exports[t]
				d := c.drawn.of[ni.portStart+port]
				wd := c.names.widths[d]
				for b := 0; b < info.Width; b++ {
					if bit := instanceBit(p.Copy, b, info.Width, copies, wd); bit >= 0 {
						eq.UnionAll(p.Offset+info.Offset+b, c.drawnBit(d, bit))
					}
				}
			}
		}
	}
}

// shortResistors adds the relation-specific shorts: simple resistors in P
// and A, poly and well resistors in A only.
func (c *Cell) shortResistors(eq *equiv.Set) {
	for i := range c.x.nodes {
		ni := &c.x.nodes[i]
		if ni.prim == nil || ni.numPorts != 2 {
			continue
		}
		var kinds []equiv.Kind
		switch {
		case ni.prim.IsResistor():
			kinds = []equiv.Kind{equiv.P, equiv.A}
		case ni.prim.IsPolyWellResistor():
			kinds = []equiv.Kind{equiv.A}
		default:
			continue
		}
		d1, d2 := c.drawn.of[ni.portStart], c.drawn.of[ni.portStart+1]
		for _, k := range kinds {
			c.joinBits(d1, d2, func(a, b int) { eq.Union(k, a, b) })
		}
	}
}
