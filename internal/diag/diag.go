// Package diag holds the two error severities of the connectivity engine:
// fatal construction errors, which stop analysis of a single cell, and
// diagnostics, which are accumulated while the cell is still computed.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Severity of a diagnostic after config remapping.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityOff     Severity = "off"
)

// Diagnostic codes.
const (
	CodeBusWidthConflict      = "bus-width-conflict"
	CodeBadNetName            = "bad-net-name"
	CodeDuplicateInstance     = "duplicate-instance-name"
	CodeIconPortMismatch      = "icon-port-mismatch"
	CodeWireConnectorArcs     = "wire-connector-arcs"
	CodeGlobalCharacteristic  = "global-characteristic-conflict"
	CodeGlobalPartitionNoPort = "global-partition-unexported"
	CodeHierarchyCycle        = "hierarchy-cycle"
	CodeAnalysisFailed        = "analysis-failed"
)

// defaultSeverity is used when the config does not mention a code.
var defaultSeverity = map[string]Severity{
	CodeBusWidthConflict:      SeverityWarning,
	CodeBadNetName:            SeverityWarning,
	CodeDuplicateInstance:     SeverityWarning,
	CodeIconPortMismatch:      SeverityWarning,
	CodeWireConnectorArcs:     SeverityError,
	CodeGlobalCharacteristic:  SeverityWarning,
	CodeGlobalPartitionNoPort: SeverityInfo,
	CodeHierarchyCycle:        SeverityError,
	CodeAnalysisFailed:        SeverityError,
}

// DefaultSeverity returns the built-in severity for a code.
func DefaultSeverity(code string) Severity {
	if s, ok := defaultSeverity[code]; ok {
		return s
	}
	return SeverityWarning
}

// Diagnostic is a non-fatal design problem found while computing a cell.
// Node, Arc and Export hold element ids, or -1 when not applicable.
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Cell     string   `json:"cell"`
	Message  string   `json:"message"`
	Node     int      `json:"node"`
	Arc      int      `json:"arc"`
	Export   int      `json:"export"`
}

func (d Diagnostic) String() string {
	var loc []string
	if d.Node >= 0 {
		loc = append(loc, fmt.Sprintf("node %d", d.Node))
	}
	if d.Arc >= 0 {
		loc = append(loc, fmt.Sprintf("arc %d", d.Arc))
	}
	if d.Export >= 0 {
		loc = append(loc, fmt.Sprintf("export %d", d.Export))
	}
	where := d.Cell
	if len(loc) > 0 {
		where += " (" + strings.Join(loc, ", ") + ")"
	}
	return fmt.Sprintf("%s: %s [%s] %s", where, d.Severity, d.Code, d.Message)
}

// List accumulates diagnostics for one cell.
type List struct {
	cell  string
	items []Diagnostic
}

// NewList creates an empty list bound to a cell name.
func NewList(cell string) *List {
	return &List{cell: cell}
}

// Add records a diagnostic that is not tied to a specific element.
func (l *List) Add(code, format string, args ...any) {
	l.add(code, -1, -1, -1, format, args...)
}

// AtNode records a diagnostic located at a node.
func (l *List) AtNode(code string, node int, format string, args ...any) {
	l.add(code, node, -1, -1, format, args...)
}

// AtArc records a diagnostic located at an arc.
func (l *List) AtArc(code string, arc int, format string, args ...any) {
	l.add(code, -1, arc, -1, format, args...)
}

// AtExport records a diagnostic located at an export.
func (l *List) AtExport(code string, export int, format string, args ...any) {
	l.add(code, -1, -1, export, format, args...)
}

func (l *List) add(code string, node, arc, export int, format string, args ...any) {
	l.items = append(l.items, Diagnostic{
		Code:     code,
		Severity: DefaultSeverity(code),
		Cell:     l.cell,
		Message:  fmt.Sprintf(format, args...),
		Node:     node,
		Arc:      arc,
		Export:   export,
	})
}

// Len returns the number of recorded diagnostics.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Items returns a copy of the recorded diagnostics in recording order.
func (l *List) Items() []Diagnostic {
	if l == nil {
		return nil
	}
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	return out
}

// Count returns how many diagnostics carry the given code.
func (l *List) Count(code string) int {
	n := 0
	for _, d := range l.Items() {
		if d.Code == code {
			n++
		}
	}
	return n
}

// SeverityFunc maps a code and its default severity to the effective one.
type SeverityFunc func(code string, def Severity) Severity

// Apply remaps severities and drops diagnostics switched off.
func Apply(items []Diagnostic, sev SeverityFunc) []Diagnostic {
	if sev == nil {
		return items
	}
	out := make([]Diagnostic, 0, len(items))
	for _, d := range items {
		d.Severity = sev(d.Code, d.Severity)
		if d.Severity == SeverityOff {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Sort orders diagnostics by cell, then code, then location, then message.
func Sort(items []Diagnostic) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Cell != b.Cell {
			return a.Cell < b.Cell
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		if a.Arc != b.Arc {
			return a.Arc < b.Arc
		}
		if a.Export != b.Export {
			return a.Export < b.Export
		}
		return a.Message < b.Message
	})
}

// HasErrors reports whether any diagnostic is at error severity.
func HasErrors(items []Diagnostic) bool {
	for _, d := range items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
