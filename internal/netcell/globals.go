package netcell

import (
	"sort"

	"github.com/robert-at-pretension-io/netconn/internal/diag"
	"github.com/robert-at-pretension-io/netconn/internal/tech"
)

// globalSource is a primitive that introduces a global into the cell.
type globalSource struct {
	node   int // node index
	global string
}

// globalSet is the ordered, deduplicated set of globals of a cell.
type globalSet struct {
	list        []Global
	index       map[string]int
	partitioned []string
	sources     []globalSource
}

// collectGlobals gathers the locally sourced globals and those inherited
// from instances. A child global the child partitioned is not inherited.
func collectGlobals(x *index, g *drawnGroups, dl *diag.List) *globalSet {
	chars := make(map[string]tech.Characteristic)
	var names []string
	partitioned := make(map[string]bool)
	add := func(name string, c tech.Characteristic, report func(format string, args ...any)) {
		prev, ok := chars[name]
		if !ok {
			chars[name] = c
			names = append(names, name)
			return
		}
		switch {
		case prev == tech.CharUnknown:
			chars[name] = c
		case c != tech.CharUnknown && c != prev:
			report("global %q is %s here but %s elsewhere", name, c, prev)
		}
	}

	gs := &globalSet{index: make(map[string]int)}
	for i := range x.nodes {
		ni := &x.nodes[i]
		if ni.prim == nil || !ni.prim.IsGlobalSource() {
			continue
		}
		id := ni.node.ID
		var name string
		var c tech.Characteristic
		switch ni.prim.Function {
		case tech.FuncGround:
			name, c = tech.GroundGlobal, tech.CharGround
		case tech.FuncPower:
			name, c = tech.PowerGlobal, tech.CharPower
		default:
			name = ni.node.Global
			if name == "" && !ni.node.IsTemporary() {
				name = ni.node.Name
			}
			if name == "" {
				dl.AtNode(diag.CodeBadNetName, id, "global source has no signal name")
				continue
			}
			var err error
			if c, err = tech.ParseCharacteristic(ni.node.Characteristic); err != nil {
				dl.AtNode(diag.CodeGlobalCharacteristic, id, "%v", err)
			}
		}
		if ni.prim.Function == tech.FuncGlobalPartition {
			partitioned[name] = true
			if g.of[ni.portStart] >= g.numExported {
				dl.AtNode(diag.CodeGlobalPartitionNoPort, id, "partition of global %q is not exported", name)
			}
		}
		add(name, c, func(f string, args ...any) { dl.AtNode(diag.CodeGlobalCharacteristic, id, f, args...) })
		gs.sources = append(gs.sources, globalSource{node: i, global: name})
	}

	for i := range x.nodes {
		ni := &x.nodes[i]
		if ni.copies() == 0 {
			continue
		}
		id := ni.node.ID
		for _, cg := range ni.inst.iface.Globals {
			if ni.inst.iface.IsPartitioned(cg.Name) {
				continue
			}
			add(cg.Name, cg.Characteristic, func(f string, args ...any) { dl.AtNode(diag.CodeGlobalCharacteristic, id, f, args...) })
		}
	}

	sort.SliceStable(names, func(i, j int) bool { return globalLess(names[i], names[j]) })
	for i, n := range names {
		gs.index[n] = i
		gs.list = append(gs.list, Global{Name: n, Characteristic: chars[n]})
		if partitioned[n] {
			gs.partitioned = append(gs.partitioned, n)
		}
	}
	return gs
}

// globalLess orders ground first, power second, then by name.
func globalLess(a, b string) bool {
	rank := func(s string) int {
		switch s {
		case tech.GroundGlobal:
			return 0
		case tech.PowerGlobal:
			return 1
		}
		return 2
	}
	if ra, rb := rank(a), rank(b); ra != rb {
		return ra < rb
	}
	return a < b
}
