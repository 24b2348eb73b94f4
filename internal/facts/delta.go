package facts

import (
	"strconv"
	"strings"
)

// Delta captures added and removed rows between two runs.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// Empty reports whether the two runs produced identical tables.
func (d Delta) Empty() bool {
	return d.Added.Len() == 0 && d.Removed.Len() == 0
}

// Len returns the total number of rows.
func (t Tables) Len() int {
	return len(t.Cells) + len(t.Globals) + len(t.Exports) + len(t.Equivs) +
		len(t.Nets) + len(t.Unconnected) + len(t.Diagnostics)
}

// ComputeDelta computes row-level additions and removals between two runs.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

func diffTables(from, to Tables) Tables {
	return Tables{
		Cells: diffRows(from.Cells, to.Cells, func(r CellRow) string {
			return r.Cell + "|" + r.Revision + "|" + intKey(r.Width) + "|" + intKey(r.Nets) + "|" + r.Error
		}),
		Globals: diffRows(from.Globals, to.Globals, func(r GlobalRow) string {
			return r.Cell + "|" + r.Name + "|" + intKey(r.Slot) + "|" + r.Characteristic + "|" + boolKey(r.Partitioned)
		}),
		Exports: diffRows(from.Exports, to.Exports, func(r ExportRow) string {
			return r.Cell + "|" + r.Name + "|" + intKey(r.Offset) + "|" + intKey(r.Width) + "|" + r.Characteristic + "|" + intKey(r.Net)
		}),
		Equivs: diffRows(from.Equivs, to.Equivs, func(r EquivRow) string {
			return r.Cell + "|" + r.Kind + "|" + intKey(r.Slot) + "|" + intKey(r.Rep)
		}),
		Nets: diffRows(from.Nets, to.Nets, func(r NetRow) string {
			return r.Cell + "|" + intKey(r.Net) + "|" + strings.Join(r.Names, ",") + "|" +
				strings.Join(r.Globals, ",") + "|" + boolKey(r.Exported) + "|" + intKey(r.Attachments)
		}),
		Unconnected: diffRows(from.Unconnected, to.Unconnected, func(r UnconnectedRow) string {
			return r.Cell + "|" + intKey(r.Node) + "|" + r.Name + "|" + r.Kind + "|" + r.Port
		}),
		Diagnostics: diffRows(from.Diagnostics, to.Diagnostics, func(r DiagnosticRow) string {
			return r.Cell + "|" + r.Code + "|" + r.Severity + "|" + r.Message + "|" +
				intKey(r.Node) + "|" + intKey(r.Arc) + "|" + intKey(r.Export)
		}),
	}
}

func emptyTables() Tables {
	return Tables{
		Cells:       []CellRow{},
		Globals:     []GlobalRow{},
		Exports:     []ExportRow{},
		Equivs:      []EquivRow{},
		Nets:        []NetRow{},
		Unconnected: []UnconnectedRow{},
		Diagnostics: []DiagnosticRow{},
	}
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intKey(v int) string {
	return strconv.Itoa(v)
}
