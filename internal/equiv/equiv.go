// Package equiv implements the dense disjoint-set maps behind the three
// equivalence relations of a cell: N (strict), P (resistors shorted) and
// A (resistors and poly/well resistors shorted).
//
// The root of every class is its smallest member, so both the partition
// and the representative of each element are independent of the order in
// which unions were issued.
package equiv

import "fmt"

// Map is a union-find over the integers [0, Len()).
type Map struct {
	parent []int
	closed bool
}

// NewMap returns an identity map of the given width.
func NewMap(n int) *Map {
	m := &Map{parent: make([]int, n)}
	for i := range m.parent {
		m.parent[i] = i
	}
	return m
}

// Len returns the width of the map.
func (m *Map) Len() int { return len(m.parent) }

// Find returns the current root of a, compressing the path behind it.
func (m *Map) Find(a int) int {
	root := a
	for m.parent[root] != root {
		root = m.parent[root]
	}
	for m.parent[a] != root {
		next := m.parent[a]
		m.parent[a] = root
		a = next
	}
	return root
}

// Union merges the classes of a and b. It reports whether they were
// distinct before the call.
func (m *Map) Union(a, b int) bool {
	if m.closed {
		panic("equiv: union after close")
	}
	ra, rb := m.Find(a), m.Find(b)
	if ra == rb {
		return false
	}
	if ra < rb {
		m.parent[rb] = ra
	} else {
		m.parent[ra] = rb
	}
	return true
}

// Close flattens every entry to point straight at its root. After Close
// the map is read-only and Resolve is a single array lookup.
func (m *Map) Close() {
	for i := range m.parent {
		m.parent[i] = m.Find(i)
	}
	m.closed = true
}

// Resolve returns the canonical representative of a.
func (m *Map) Resolve(a int) int {
	if m.closed {
		return m.parent[a]
	}
	return m.Find(a)
}

// Roots returns the resolved representatives of the first n entries.
func (m *Map) Roots(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = m.Resolve(i)
	}
	return out
}

// Classes returns the classes with more than one member, each sorted, in
// order of their smallest member.
func (m *Map) Classes() [][]int {
	byRoot := make(map[int]int)
	var out [][]int
	for i := range m.parent {
		r := m.Resolve(i)
		idx, ok := byRoot[r]
		if !ok {
			idx = len(out)
			byRoot[r] = idx
			out = append(out, nil)
		}
		out[idx] = append(out[idx], i)
	}
	multi := out[:0]
	for _, c := range out {
		if len(c) > 1 {
			multi = append(multi, c)
		}
	}
	return multi
}

// Kind selects one of the three relations.
type Kind int

const (
	N Kind = iota // strict electrical equivalence
	P             // resistors shorted
	A             // resistors and poly/well resistors shorted
)

// Kinds lists the relations in publication order.
var Kinds = [...]Kind{N, P, A}

func (k Kind) String() string {
	switch k {
	case N:
		return "N"
	case P:
		return "P"
	case A:
		return "A"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "N", "n":
		return N, nil
	case "P", "p":
		return P, nil
	case "A", "a":
		return A, nil
	}
	return N, fmt.Errorf("unknown equivalence kind %q", s)
}

// Set holds the three relations over one address space.
type Set struct {
	maps [3]*Map
}

// NewSet returns three identity maps of width n.
func NewSet(n int) *Set {
	s := &Set{}
	for i := range s.maps {
		s.maps[i] = NewMap(n)
	}
	return s
}

// Len returns the shared width.
func (s *Set) Len() int { return s.maps[N].Len() }

// Map returns the map of one relation.
func (s *Set) Map(k Kind) *Map { return s.maps[k] }

// Union merges a and b in one relation.
func (s *Set) Union(k Kind, a, b int) { s.maps[k].Union(a, b) }

// UnionAll merges a and b in every relation.
func (s *Set) UnionAll(a, b int) {
	for _, m := range s.maps {
		m.Union(a, b)
	}
}

// Close closes every relation.
func (s *Set) Close() {
	for _, m := range s.maps {
		m.Close()
	}
}

// Resolve returns the representative of a under relation k.
func (s *Set) Resolve(k Kind, a int) int { return s.maps[k].Resolve(a) }
