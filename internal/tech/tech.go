// Package tech answers the capability queries the connectivity engine
// makes about primitive nodes and arc prototypes. It does not model
// geometry: a primitive is its function plus an ordered port list.
package tech

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Function classifies a primitive for connectivity purposes.
type Function string

const (
	FuncPin             Function = "pin"
	FuncBusPin          Function = "bus-pin"
	FuncWireConnector   Function = "wire-connector"
	FuncResistor        Function = "resistor"
	FuncPolyResistor    Function = "poly-resistor"
	FuncWellResistor    Function = "well-resistor"
	FuncGround          Function = "ground"
	FuncPower           Function = "power"
	FuncGlobal          Function = "global"
	FuncGlobalPartition Function = "global-partition"
	FuncDevice          Function = "device"
)

// Characteristic is the electrical role of an export or global signal.
type Characteristic string

const (
	CharUnknown Characteristic = ""
	CharInput   Characteristic = "input"
	CharOutput  Characteristic = "output"
	CharBidir   Characteristic = "bidir"
	CharGround  Characteristic = "ground"
	CharPower   Characteristic = "power"
)

// Builtin global names.
const (
	GroundGlobal = "gnd"
	PowerGlobal  = "vdd"
)

// PortDef is one port of a primitive. Ports sharing a Topology number are
// tied inside the primitive unless Isolated is set.
type PortDef struct {
	Name     string `json:"name" yaml:"name"`
	Topology int    `json:"topology" yaml:"topology"`
	Isolated bool   `json:"isolated,omitempty" yaml:"isolated,omitempty"`
}

// Primitive is a technology node prototype.
type Primitive struct {
	Name     string    `json:"name" yaml:"name"`
	Function Function  `json:"function" yaml:"function"`
	Ports    []PortDef `json:"ports" yaml:"ports"`
}

// ArcProto is a technology arc prototype.
type ArcProto struct {
	Name          string `json:"name" yaml:"name"`
	NonElectrical bool   `json:"nonElectrical,omitempty" yaml:"nonElectrical,omitempty"`
	Bus           bool   `json:"bus,omitempty" yaml:"bus,omitempty"`
}

// Technology is the read-only capability source the engine consults.
type Technology interface {
	Primitive(name string) (*Primitive, bool)
	ArcProto(name string) (*ArcProto, bool)
}

// PortIndex returns the index of the named port, or -1.
func (p *Primitive) PortIndex(name string) int {
	for i, port := range p.Ports {
		if port.Name == name {
			return i
		}
	}
	return -1
}

// IsPin reports whether the primitive is a pin (wire or bus).
func (p *Primitive) IsPin() bool {
	return p.Function == FuncPin || p.Function == FuncBusPin
}

// IsBusPin reports whether the primitive is a bus pin.
func (p *Primitive) IsBusPin() bool { return p.Function == FuncBusPin }

// IsWireConnector reports whether the primitive joins exactly two arcs.
func (p *Primitive) IsWireConnector() bool { return p.Function == FuncWireConnector }

// IsGlobalSource reports whether the primitive introduces a global signal.
func (p *Primitive) IsGlobalSource() bool {
	switch p.Function {
	case FuncGround, FuncPower, FuncGlobal, FuncGlobalPartition:
		return true
	}
	return false
}

// IsResistor reports whether the primitive is a simple two-terminal
// resistor, shorted under relations P and A.
func (p *Primitive) IsResistor() bool { return p.Function == FuncResistor }

// IsPolyWellResistor reports whether the primitive is shorted under A only.
func (p *Primitive) IsPolyWellResistor() bool {
	return p.Function == FuncPolyResistor || p.Function == FuncWellResistor
}

// Table is a map-backed Technology.
type Table struct {
	name  string
	prims map[string]*Primitive
	arcs  map[string]*ArcProto
}

// NewTable builds a technology from explicit definitions.
func NewTable(name string, prims []Primitive, arcs []ArcProto) (*Table, error) {
	t := &Table{
		name:  name,
		prims: make(map[string]*Primitive),
		arcs:  make(map[string]*ArcProto),
	}
	if err := t.add(prims, arcs); err != nil {
		return nil, err
	}
	return t, nil
}

// Extend returns a copy of t with extra or replacement definitions.
func (t *Table) Extend(prims []Primitive, arcs []ArcProto) (*Table, error) {
	out := &Table{
		name:  t.name,
		prims: make(map[string]*Primitive, len(t.prims)+len(prims)),
		arcs:  make(map[string]*ArcProto, len(t.arcs)+len(arcs)),
	}
	for k, v := range t.prims {
		out.prims[k] = v
	}
	for k, v := range t.arcs {
		out.arcs[k] = v
	}
	if err := out.add(prims, arcs); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Table) add(prims []Primitive, arcs []ArcProto) error {
	for i := range prims {
		p := prims[i]
		if p.Name == "" {
			return fmt.Errorf("technology %s: primitive %d has no name", t.name, i)
		}
		if err := validFunction(p.Function); err != nil {
			return fmt.Errorf("technology %s: primitive %s: %w", t.name, p.Name, err)
		}
		seen := make(map[string]bool, len(p.Ports))
		for _, port := range p.Ports {
			if port.Name == "" || seen[port.Name] {
				return fmt.Errorf("technology %s: primitive %s: bad or repeated port name %q", t.name, p.Name, port.Name)
			}
			seen[port.Name] = true
		}
		p.Ports = append([]PortDef(nil), p.Ports...)
		t.prims[p.Name] = &p
	}
	for i := range arcs {
		a := arcs[i]
		if a.Name == "" {
			return fmt.Errorf("technology %s: arc %d has no name", t.name, i)
		}
		t.arcs[a.Name] = &a
	}
	return nil
}

func validFunction(f Function) error {
	switch f {
	case FuncPin, FuncBusPin, FuncWireConnector, FuncResistor, FuncPolyResistor,
		FuncWellResistor, FuncGround, FuncPower, FuncGlobal, FuncGlobalPartition, FuncDevice:
		return nil
	}
	return fmt.Errorf("unknown function %q", f)
}

// Name returns the technology name.
func (t *Table) Name() string { return t.name }

// Primitive looks up a primitive by name.
func (t *Table) Primitive(name string) (*Primitive, bool) {
	p, ok := t.prims[name]
	return p, ok
}

// ArcProto looks up an arc prototype by name.
func (t *Table) ArcProto(name string) (*ArcProto, bool) {
	a, ok := t.arcs[name]
	return a, ok
}

// PrimitiveNames lists primitives in sorted order.
func (t *Table) PrimitiveNames() []string {
	names := make([]string, 0, len(t.prims))
	for n := range t.prims {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Fingerprint digests every definition. Cached results computed under a
// different fingerprint are not reused.
func (t *Table) Fingerprint() string {
	h := sha256.New()
	for _, n := range t.PrimitiveNames() {
		p := t.prims[n]
		fmt.Fprintf(h, "p %s %s", p.Name, p.Function)
		for _, port := range p.Ports {
			fmt.Fprintf(h, " %s/%d/%t", port.Name, port.Topology, port.Isolated)
		}
		h.Write([]byte{'\n'})
	}
	arcs := make([]string, 0, len(t.arcs))
	for n := range t.arcs {
		arcs = append(arcs, n)
	}
	sort.Strings(arcs)
	for _, n := range arcs {
		a := t.arcs[n]
		fmt.Fprintf(h, "a %s %t %t\n", a.Name, a.NonElectrical, a.Bus)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ParseCharacteristic accepts the common spellings of a characteristic.
func ParseCharacteristic(s string) (Characteristic, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return CharUnknown, nil
	case "input", "in":
		return CharInput, nil
	case "output", "out":
		return CharOutput, nil
	case "bidir", "inout", "bidirectional":
		return CharBidir, nil
	case "ground", "gnd":
		return CharGround, nil
	case "power", "pwr":
		return CharPower, nil
	}
	return CharUnknown, fmt.Errorf("unknown characteristic %q", s)
}
