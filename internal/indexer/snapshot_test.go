package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/netconn/internal/facts"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tables := facts.Tables{
		Cells: []facts.CellRow{
			{Cell: "inv{sch}", Revision: "abc", Width: 3, Nets: 4},
		},
		Globals: []facts.GlobalRow{
			{Cell: "inv{sch}", Name: "vdd", Slot: 0, Characteristic: "power"},
		},
		Exports:     []facts.ExportRow{},
		Equivs:      []facts.EquivRow{{Cell: "inv{sch}", Kind: "N", Slot: 0, Rep: 0}},
		Nets:        []facts.NetRow{{Cell: "inv{sch}", Net: 0, Names: []string{"vdd"}, Globals: []string{"vdd"}, Attachments: 1}},
		Unconnected: []facts.UnconnectedRow{},
		Diagnostics: []facts.DiagnosticRow{},
	}
	require.NoError(t, saveSnapshot(dir, runSnapshot{Library: "cmos", Session: "s1", Tables: tables}))

	snap, err := loadSnapshot(dir, "cmos")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, tables, snap.Tables)
	assert.Equal(t, "s1", snap.Session)
	assert.False(t, snap.SavedAt.IsZero())

	other, err := loadSnapshot(dir, "analog")
	require.NoError(t, err)
	assert.Nil(t, other, "a snapshot of another library must not be used")
}

func TestSnapshotMisses(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"missing", "", false},
		{"old format", `{"version":1,"tables":{}}`, false},
		{"other engine", `{"version":2,"engine":"netconn-0","library":"cmos","tables":{}}`, false},
		{"truncated", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.content != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFile), []byte(tt.content), 0o644))
			}
			snap, err := loadSnapshot(dir, "cmos")
			assert.Nil(t, snap)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
