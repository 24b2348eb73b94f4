package design

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invYAML = `
name: demo
cells:
  - name: inv
    view: schematic
    revision: 3
    nodes:
      - {id: 1, prim: nmos}
      - {id: 2, prim: ground}
    arcs:
      - id: 10
        proto: wire
        head: {node: 1, port: s}
        tail: {node: 2, port: gnd}
    exports:
      - {id: 20, name: a, node: 1, port: g, characteristic: input}
  - name: inv
    view: icon
    exports:
      - {id: 1, name: a, node: 5, port: wire}
    nodes:
      - {id: 5, prim: wire_pin}
`

func TestDecodeYAML(t *testing.T) {
	lib, err := Decode([]byte(invYAML), FormatYAML)
	require.NoError(t, err)

	sch, ok := lib.Cell("inv{sch}")
	require.True(t, ok)
	assert.Equal(t, 3, sch.Revision)
	require.Len(t, sch.Arcs, 1)
	assert.Equal(t, "gnd", sch.Arcs[0].Tail.Port)
	assert.True(t, sch.Nodes[0].IsTemporary())

	icon, ok := lib.Cell("inv{ic}")
	require.True(t, ok)
	got, ok := lib.SchematicOf(icon)
	require.True(t, ok)
	assert.Same(t, sch, got)
	assert.Equal(t, []*Cell{icon}, lib.IconsOf(sch))
	assert.Equal(t, []string{"inv{ic}", "inv{sch}"}, lib.Keys())
}

func TestJSONRoundTripKeepsHash(t *testing.T) {
	lib, err := Decode([]byte(invYAML), FormatYAML)
	require.NoError(t, err)
	data, err := Encode(lib, FormatJSON)
	require.NoError(t, err)

	again, err := Decode(data, FormatJSON)
	require.NoError(t, err)
	a, _ := lib.Cell("inv{sch}")
	b, _ := again.Cell("inv{sch}")
	assert.Equal(t, a.ContentHash(), b.ContentHash())

	b.Nodes[0].Prim = "pmos"
	assert.NotEqual(t, a.ContentHash(), b.ContentHash())
}

func TestDuplicateCellRejected(t *testing.T) {
	_, err := Decode([]byte(`{"cells":[{"name":"a"},{"name":"a","view":"schematic"}]}`), FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate cell a{sch}")
}

func TestLoadFilesMerges(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.json")
	p2 := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(p1, []byte(`{"cells":[{"name":"a","view":"schematic"}]}`), 0o644))
	require.NoError(t, os.WriteFile(p2, []byte("cells:\n  - name: b\n    view: icon\n"), 0o644))

	lib, err := LoadFiles("merged", []string{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a{sch}", "b{ic}"}, lib.Keys())

	_, err = LoadFile(filepath.Join(dir, "x.txt"))
	assert.Error(t, err)
}

func TestSplitKey(t *testing.T) {
	name, view, err := SplitKey("alu{sch}")
	require.NoError(t, err)
	assert.Equal(t, "alu", name)
	assert.Equal(t, ViewSchematic, view)

	name, view, err = SplitKey("a{b}{lay}")
	require.NoError(t, err)
	assert.Equal(t, "a{b}", name)
	assert.Equal(t, "lay", view)

	_, _, err = SplitKey("plain")
	assert.Error(t, err)
}
