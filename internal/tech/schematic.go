package tech

// Arc prototype names of the builtin schematic technology.
const (
	ArcWire       = "wire"
	ArcBus        = "bus"
	ArcAnnotation = "annotation"
)

var schematicPrims = []Primitive{
	{Name: "wire_pin", Function: FuncPin, Ports: []PortDef{{Name: "wire"}}},
	{Name: "bus_pin", Function: FuncBusPin, Ports: []PortDef{{Name: "bus"}}},
	{Name: "wire_con", Function: FuncWireConnector, Ports: []PortDef{{Name: "wire"}}},
	{Name: "off_page", Function: FuncPin, Ports: []PortDef{{Name: "a"}, {Name: "y"}}},
	{Name: "resistor", Function: FuncResistor, Ports: []PortDef{{Name: "a"}, {Name: "b", Topology: 1}}},
	{Name: "poly_resistor", Function: FuncPolyResistor, Ports: []PortDef{{Name: "a"}, {Name: "b", Topology: 1}}},
	{Name: "well_resistor", Function: FuncWellResistor, Ports: []PortDef{{Name: "a"}, {Name: "b", Topology: 1}}},
	{Name: "capacitor", Function: FuncDevice, Ports: []PortDef{{Name: "a"}, {Name: "b", Topology: 1}}},
	{Name: "ground", Function: FuncGround, Ports: []PortDef{{Name: "gnd"}}},
	{Name: "power", Function: FuncPower, Ports: []PortDef{{Name: "vdd"}}},
	{Name: "global", Function: FuncGlobal, Ports: []PortDef{{Name: "global"}}},
	{Name: "global_partition", Function: FuncGlobalPartition, Ports: []PortDef{{Name: "part"}}},
	{Name: "nmos", Function: FuncDevice, Ports: []PortDef{
		{Name: "g"}, {Name: "s", Topology: 1}, {Name: "d", Topology: 2},
	}},
	{Name: "pmos", Function: FuncDevice, Ports: []PortDef{
		{Name: "g"}, {Name: "s", Topology: 1}, {Name: "d", Topology: 2},
	}},
	// The two gate ports of a transmission gate are drawn on both sides and
	// tied inside the primitive.
	{Name: "tgate", Function: FuncDevice, Ports: []PortDef{
		{Name: "g"}, {Name: "g2"}, {Name: "a", Topology: 1}, {Name: "b", Topology: 2},
	}},
	{Name: "buffer", Function: FuncDevice, Ports: []PortDef{
		{Name: "a"}, {Name: "y", Topology: 1}, {Name: "en", Topology: 1, Isolated: true},
	}},
}

var schematicArcs = []ArcProto{
	{Name: ArcWire},
	{Name: ArcBus, Bus: true},
	{Name: ArcAnnotation, NonElectrical: true},
}

// Schematic returns the builtin schematic technology.
func Schematic() *Table {
	t, err := NewTable("schematic", schematicPrims, schematicArcs)
	if err != nil {
		panic(err)
	}
	return t
}
