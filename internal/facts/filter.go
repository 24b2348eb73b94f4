package facts

// FilterTablesByCells returns a new Tables containing only rows of the
// given cells.
func FilterTablesByCells(tables Tables, cells map[string]bool) Tables {
	out := emptyTables()
	if len(cells) == 0 {
		return out
	}
	out.Cells = filterRows(tables.Cells, cells, func(r CellRow) string { return r.Cell })
	out.Globals = filterRows(tables.Globals, cells, func(r GlobalRow) string { return r.Cell })
	out.Exports = filterRows(tables.Exports, cells, func(r ExportRow) string { return r.Cell })
	out.Equivs = filterRows(tables.Equivs, cells, func(r EquivRow) string { return r.Cell })
	out.Nets = filterRows(tables.Nets, cells, func(r NetRow) string { return r.Cell })
	out.Unconnected = filterRows(tables.Unconnected, cells, func(r UnconnectedRow) string { return r.Cell })
	out.Diagnostics = filterRows(tables.Diagnostics, cells, func(r DiagnosticRow) string { return r.Cell })
	return out
}

// FilterDeltaByCells returns a new Delta containing only rows of the
// given cells.
func FilterDeltaByCells(delta Delta, cells map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByCells(delta.Added, cells),
		Removed: FilterTablesByCells(delta.Removed, cells),
	}
}

func filterRows[T any](rows []T, cells map[string]bool, cell func(T) string) []T {
	out := []T{}
	for _, row := range rows {
		if cells[cell(row)] {
			out = append(out, row)
		}
	}
	return out
}
