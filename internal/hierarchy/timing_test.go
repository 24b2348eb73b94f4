package hierarchy

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/netconn/internal/netcell"
)

func readTimingEvents(t *testing.T, path string) []timingEvent {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []timingEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev timingEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev), scanner.Text())
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestTimingLogWritesCellsAndSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timing.jsonl")
	origin := time.Now()
	tl := openTimingLog(path, "sess", origin)
	require.True(t, tl.enabled(), "open error: %v", tl.Err())

	tl.stage("level_0", origin, "ok")
	k := Key{Cell: "inv{sch}", Revision: "abc"}
	tl.cell(k, "computed", origin, 3*time.Millisecond, []netcell.Phase{
		{Name: "index", Elapsed: time.Millisecond},
		{Name: "relations", Elapsed: 2 * time.Millisecond},
	})
	tl.cell(Key{Cell: "buf{sch}", Revision: "def"}, "disk_hit", origin, 0, nil)
	require.NoError(t, tl.Close())
	// dropped after close
	tl.stage("late", origin, "ok")

	events := readTimingEvents(t, path)
	require.Len(t, events, 4)
	assert.Equal(t, "stage", events[0].Kind)
	assert.Equal(t, "level_0", events[0].Name)

	inv := events[1]
	assert.Equal(t, "sess", inv.Session)
	assert.Equal(t, "abc", inv.Revision)
	assert.Equal(t, 3.0, inv.DurationMS)
	assert.Equal(t, map[string]float64{"index": 1, "relations": 2}, inv.PhasesMS)
	assert.Empty(t, events[2].PhasesMS)

	summary := events[3]
	assert.Equal(t, "summary", summary.Kind)
	assert.Equal(t, map[string]float64{"index": 1, "relations": 2}, summary.PhasesMS)
	assert.Equal(t, map[string]int{"computed": 1, "disk_hit": 1}, summary.Counts)
}

func TestTimingFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.jsonl")
	t.Setenv(TimingEnv, path)

	s, err := New(decode(t, chainYAML), Options{})
	require.NoError(t, err)
	_, err = s.ComputeAll(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	computed := map[string]bool{}
	var sawRun, sawSummary bool
	for _, ev := range readTimingEvents(t, path) {
		require.Equal(t, s.SessionID, ev.Session)
		switch ev.Kind {
		case "cell":
			if ev.Status == "computed" {
				computed[ev.Cell] = true
				assert.Contains(t, ev.PhasesMS, "publish", ev.Cell)
			}
		case "stage":
			sawRun = sawRun || (ev.Name == "compute_all" && ev.Status == "ok")
		case "summary":
			sawSummary = true
			// res{ic} is computed as well
			assert.Equal(t, 5, ev.Counts["computed"])
		}
	}
	for _, key := range []string{"res{sch}", "mid{sch}", "top{sch}", "lone{sch}"} {
		assert.True(t, computed[key], "no compute event for %s", key)
	}
	assert.True(t, sawRun, "missing compute_all stage event")
	assert.True(t, sawSummary, "missing summary event")
}

func TestTimingDisabledWithoutPath(t *testing.T) {
	t.Setenv(TimingEnv, "")
	tl := openTimingLog(resolveTimingPath(""), "x", time.Now())
	assert.False(t, tl.enabled())
	tl.stage("noop", time.Now(), "ok")
	tl.cell(Key{Cell: "a{sch}"}, "computed", time.Now(), 0, nil)
	assert.NoError(t, tl.Close())

	var nilLog *timingLog
	nilLog.stage("noop", time.Now(), "ok")
	assert.NoError(t, nilLog.Close())
}
