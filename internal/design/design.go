// Package design holds the read-only schematic model the connectivity
// engine consumes: a library of cells, each an ordered list of nodes, arcs
// and exports with stable integer ids.
package design

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Views with special meaning to the engine. Any other view is content.
const (
	ViewSchematic = "schematic"
	ViewIcon      = "icon"
)

// Library is a named set of cells.
type Library struct {
	Name  string  `json:"name" yaml:"name"`
	Cells []*Cell `json:"cells" yaml:"cells"`

	byKey map[string]*Cell
}

// Cell is one view of a logical cell.
type Cell struct {
	Name     string    `json:"name" yaml:"name"`
	View     string    `json:"view" yaml:"view"`
	Revision int       `json:"revision,omitempty" yaml:"revision,omitempty"`
	Nodes    []*Node   `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Arcs     []*Arc    `json:"arcs,omitempty" yaml:"arcs,omitempty"`
	Exports  []*Export `json:"exports,omitempty" yaml:"exports,omitempty"`
}

// Node is an instance of a primitive (Prim) or of another cell (Cell,
// given as a cell key such as "inv{ic}").
type Node struct {
	ID       int    `json:"id" yaml:"id"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	TempName bool   `json:"tempName,omitempty" yaml:"tempName,omitempty"`
	Prim     string `json:"prim,omitempty" yaml:"prim,omitempty"`
	Cell     string `json:"cell,omitempty" yaml:"cell,omitempty"`
	// Global names the signal of a global or global-partition primitive.
	Global         string `json:"global,omitempty" yaml:"global,omitempty"`
	Characteristic string `json:"characteristic,omitempty" yaml:"characteristic,omitempty"`
}

// End is one end of an arc.
type End struct {
	Node int    `json:"node" yaml:"node"`
	Port string `json:"port" yaml:"port"`
}

// Arc is a two-ended wire.
type Arc struct {
	ID       int    `json:"id" yaml:"id"`
	Proto    string `json:"proto" yaml:"proto"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	TempName bool   `json:"tempName,omitempty" yaml:"tempName,omitempty"`
	Head     End    `json:"head" yaml:"head"`
	Tail     End    `json:"tail" yaml:"tail"`
}

// Export publishes a node port under a name.
type Export struct {
	ID             int    `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Node           int    `json:"node" yaml:"node"`
	Port           string `json:"port" yaml:"port"`
	Characteristic string `json:"characteristic,omitempty" yaml:"characteristic,omitempty"`
}

// Key formats the unique cell key "name{view}" with the usual short view
// abbreviations.
func Key(name, view string) string {
	switch view {
	case ViewSchematic:
		return name + "{sch}"
	case ViewIcon:
		return name + "{ic}"
	}
	return name + "{" + view + "}"
}

// SplitKey is the inverse of Key.
func SplitKey(key string) (name, view string, err error) {
	open := strings.LastIndexByte(key, '{')
	if open <= 0 || !strings.HasSuffix(key, "}") {
		return "", "", fmt.Errorf("bad cell key %q", key)
	}
	name = key[:open]
	switch abbrev := key[open+1 : len(key)-1]; abbrev {
	case "sch":
		view = ViewSchematic
	case "ic":
		view = ViewIcon
	case "":
		return "", "", fmt.Errorf("bad cell key %q", key)
	default:
		view = abbrev
	}
	return name, view, nil
}

// Key returns the cell key.
func (c *Cell) Key() string { return Key(c.Name, c.View) }

// IsIcon reports whether the cell is an icon view.
func (c *Cell) IsIcon() bool { return c.View == ViewIcon }

// IsTemporary reports whether the node has no user-assigned name.
func (n *Node) IsTemporary() bool { return n.TempName || n.Name == "" }

// IsTemporary reports whether the arc has no user-assigned name.
func (a *Arc) IsTemporary() bool { return a.TempName || a.Name == "" }

// ContentHash digests everything about the cell that affects
// connectivity. Two cells with equal hashes and revisions are treated as
// the same revision.
func (c *Cell) ContentHash() string {
	data, err := json.Marshal(c)
	if err != nil {
		// Cell holds only plain fields; Marshal cannot fail.
		panic(err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Index builds the key lookup table and checks library-level structure.
func (l *Library) Index() error {
	l.byKey = make(map[string]*Cell, len(l.Cells))
	for i, c := range l.Cells {
		if c == nil {
			return fmt.Errorf("library %s: cell %d is empty", l.Name, i)
		}
		if c.Name == "" {
			return fmt.Errorf("library %s: cell %d has no name", l.Name, i)
		}
		if c.View == "" {
			c.View = ViewSchematic
		}
		key := c.Key()
		if _, dup := l.byKey[key]; dup {
			return fmt.Errorf("library %s: duplicate cell %s", l.Name, key)
		}
		l.byKey[key] = c
	}
	return nil
}

// Cell looks a cell up by key.
func (l *Library) Cell(key string) (*Cell, bool) {
	if l.byKey == nil {
		if err := l.Index(); err != nil {
			return nil, false
		}
	}
	c, ok := l.byKey[key]
	return c, ok
}

// SchematicOf returns the schematic view that shares the icon's name.
func (l *Library) SchematicOf(icon *Cell) (*Cell, bool) {
	if icon == nil || !icon.IsIcon() {
		return nil, false
	}
	return l.Cell(Key(icon.Name, ViewSchematic))
}

// IconsOf returns icon views of the same logical cell.
func (l *Library) IconsOf(c *Cell) []*Cell {
	if c == nil || c.IsIcon() {
		return nil
	}
	if icon, ok := l.Cell(Key(c.Name, ViewIcon)); ok {
		return []*Cell{icon}
	}
	return nil
}

// Keys returns all cell keys sorted.
func (l *Library) Keys() []string {
	keys := make([]string, 0, len(l.Cells))
	for _, c := range l.Cells {
		keys = append(keys, c.Key())
	}
	sort.Strings(keys)
	return keys
}
