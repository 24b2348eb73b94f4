package tech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchematicQueries(t *testing.T) {
	s := Schematic()

	res, ok := s.Primitive("resistor")
	require.True(t, ok)
	assert.True(t, res.IsResistor())
	assert.False(t, res.IsPolyWellResistor())
	assert.Equal(t, 1, res.PortIndex("b"))
	assert.Equal(t, -1, res.PortIndex("zz"))

	poly, _ := s.Primitive("poly_resistor")
	assert.True(t, poly.IsPolyWellResistor())

	gnd, _ := s.Primitive("ground")
	assert.True(t, gnd.IsGlobalSource())

	busPin, _ := s.Primitive("bus_pin")
	assert.True(t, busPin.IsPin())
	assert.True(t, busPin.IsBusPin())

	bus, ok := s.ArcProto(ArcBus)
	require.True(t, ok)
	assert.True(t, bus.Bus)
	ann, _ := s.ArcProto(ArcAnnotation)
	assert.True(t, ann.NonElectrical)
}

func TestExtendDoesNotMutateBase(t *testing.T) {
	base := Schematic()
	ext, err := base.Extend([]Primitive{
		{Name: "diode", Function: FuncDevice, Ports: []PortDef{{Name: "a"}, {Name: "k", Topology: 1}}},
	}, []ArcProto{{Name: "thick", Bus: true}})
	require.NoError(t, err)

	_, ok := ext.Primitive("diode")
	assert.True(t, ok)
	_, ok = base.Primitive("diode")
	assert.False(t, ok)
	_, ok = ext.ArcProto("thick")
	assert.True(t, ok)
}

func TestExtendRejectsBadDefinitions(t *testing.T) {
	_, err := Schematic().Extend([]Primitive{{Name: "x", Function: "mystery"}}, nil)
	require.Error(t, err)

	_, err = Schematic().Extend([]Primitive{
		{Name: "x", Function: FuncDevice, Ports: []PortDef{{Name: "a"}, {Name: "a"}}},
	}, nil)
	require.Error(t, err)
}

func TestParseCharacteristic(t *testing.T) {
	c, err := ParseCharacteristic("GND")
	require.NoError(t, err)
	assert.Equal(t, CharGround, c)
	_, err = ParseCharacteristic("sideways")
	assert.Error(t, err)
}

func TestFingerprintTracksDefinitions(t *testing.T) {
	base := Schematic()
	same, err := base.Extend(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, base.Fingerprint(), same.Fingerprint())

	ext, err := base.Extend(nil, []ArcProto{{Name: "fat_bus", Bus: true}})
	require.NoError(t, err)
	assert.NotEqual(t, base.Fingerprint(), ext.Fingerprint())
}
