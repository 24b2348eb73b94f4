package netcell

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/netconn/internal/equiv"
	"github.com/robert-at-pretension-io/netconn/internal/tech"
)

// Global is a hierarchy-wide signal carried by a cell.
type Global struct {
	Name           string              `json:"name"`
	Characteristic tech.Characteristic `json:"characteristic,omitempty"`
}

// PortInfo describes one export in the interface slot space.
type PortInfo struct {
	Name           string              `json:"name"`
	Offset         int                 `json:"offset"`
	Width          int                 `json:"width"`
	Characteristic tech.Characteristic `json:"characteristic,omitempty"`
}

// Interface is everything a parent needs to know about a cell. Its slot
// space is [globals][export bits]; the equivalent-port tables map every
// slot to the smallest slot it is equivalent to under N, P and A.
//
// An Interface is immutable once published.
type Interface struct {
	Cell        string     `json:"cell"`
	Revision    string     `json:"revision"`
	Globals     []Global   `json:"globals"`
	Partitioned []string   `json:"partitioned,omitempty"`
	Exports     []PortInfo `json:"exports"`
	EquivN      []int      `json:"equivN"`
	EquivP      []int      `json:"equivP"`
	EquivA      []int      `json:"equivA"`
}

// Width returns the number of interface slots.
func (in *Interface) Width() int {
	return len(in.EquivN)
}

// Equiv returns the table of one relation.
func (in *Interface) Equiv(k equiv.Kind) []int {
	switch k {
	case equiv.P:
		return in.EquivP
	case equiv.A:
		return in.EquivA
	}
	return in.EquivN
}

// GlobalIndex returns the slot of a global, or -1.
func (in *Interface) GlobalIndex(name string) int {
	for i, g := range in.Globals {
		if g.Name == name {
			return i
		}
	}
	return -1
}

// ExportIndex returns the index of the named export, or -1.
func (in *Interface) ExportIndex(name string) int {
	for i, p := range in.Exports {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// IsPartitioned reports whether the cell rebinds the global to an export,
// which keeps it from propagating to parents.
func (in *Interface) IsPartitioned(name string) bool {
	for _, p := range in.Partitioned {
		if p == name {
			return true
		}
	}
	return false
}

// SameNet reports whether two exports (bit 0 of each) are equivalent
// under relation k.
func (in *Interface) SameNet(k equiv.Kind, a, b string) (bool, error) {
	ia, ib := in.ExportIndex(a), in.ExportIndex(b)
	if ia < 0 || ib < 0 {
		return false, fmt.Errorf("cell %s: unknown export %q or %q", in.Cell, a, b)
	}
	tbl := in.Equiv(k)
	return tbl[in.Exports[ia].Offset] == tbl[in.Exports[ib].Offset], nil
}

// Digest hashes the published content. Parents fold child digests into
// their own revision key, so any change here invalidates them.
func (in *Interface) Digest() string {
	data, err := json.Marshal(in)
	if err != nil {
		panic(err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Signature is a naming-independent description of the interface under
// one relation: globals by name, exports by position and width only.
// Two cells with equal signatures are interchangeable for netlist
// comparison.
func (in *Interface) Signature(k equiv.Kind) string {
	var b strings.Builder
	b.WriteString("g")
	for _, g := range in.Globals {
		b.WriteString(":" + g.Name)
	}
	b.WriteString("|w")
	for _, p := range in.Exports {
		fmt.Fprintf(&b, ":%d", p.Width)
	}
	b.WriteString("|" + k.String())
	for _, v := range in.Equiv(k) {
		fmt.Fprintf(&b, ":%d", v)
	}
	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:])
}
