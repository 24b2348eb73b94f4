package hierarchy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robert-at-pretension-io/netconn/internal/netcell"
)

func TestInterfaceCacheGetPut(t *testing.T) {
	dir := t.TempDir()
	cache := newInterfaceCache(dir, "v1")
	if err := cache.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	in := &netcell.Interface{
		Cell:     "inv{sch}",
		Revision: "r1",
		Exports:  []netcell.PortInfo{{Name: "a", Width: 1}},
		EquivN:   []int{0},
		EquivP:   []int{0},
		EquivA:   []int{0},
	}
	if err := cache.Put("inv{sch}", in); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := cache.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := newInterfaceCache(dir, "v1")
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok, err := reloaded.Get("inv{sch}", "r1")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if got.Exports[0].Name != "a" || got.Width() != 1 {
		t.Fatalf("unexpected interface: %+v", got)
	}
	if _, ok, _ := reloaded.Get("inv{sch}", "r2"); ok {
		t.Fatalf("stale revision served")
	}

	other := newInterfaceCache(dir, "v2")
	if err := other.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok, _ := other.Get("inv{sch}", "r1"); ok {
		t.Fatalf("entry from another engine version served")
	}
}

func TestInterfaceCacheResetsOnIndexVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte(`{"version":99,"entries":{"x{sch}":{"revision":"r"}}}`), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	cache := newInterfaceCache(dir, "v1")
	if err := cache.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cache.index.Entries) != 0 {
		t.Fatalf("expected reset index, got %v", cache.index.Entries)
	}
	if err := cache.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if string(data) == `{"version":99,"entries":{"x{sch}":{"revision":"r"}}}` {
		t.Fatalf("index was not rewritten")
	}
}
