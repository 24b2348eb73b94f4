package hierarchy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/robert-at-pretension-io/netconn/internal/netcell"
)

const cacheIndexVersion = 1

type cacheEntry struct {
	Revision      string `json:"revision"`
	InterfacePath string `json:"interface_path"`
	EngineVersion string `json:"engine_version"`
}

type cacheIndex struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// interfaceCache persists published interfaces between runs. Entries are
// keyed by cell and only served for the exact revision they were stored
// under.
type interfaceCache struct {
	dir           string
	engineVersion string
	mu            sync.Mutex
	index         cacheIndex
	dirty         bool
}

func newInterfaceCache(dir, engineVersion string) *interfaceCache {
	return &interfaceCache{
		dir:           dir,
		engineVersion: engineVersion,
		index: cacheIndex{
			Version: cacheIndexVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

func (c *interfaceCache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *interfaceCache) interfaceDir() string {
	return filepath.Join(c.dir, "interfaces")
}

func (c *interfaceCache) pathForCell(cell string) string {
	h := sha256.Sum256([]byte(cell))
	return filepath.Join(c.interfaceDir(), hex.EncodeToString(h[:])+".json")
}

func (c *interfaceCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != cacheIndexVersion {
		c.index = cacheIndex{Version: cacheIndexVersion, Entries: make(map[string]cacheEntry)}
		c.dirty = true
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]cacheEntry)
	}
	c.index = idx
	return nil
}

// Save writes the index if anything changed since Load.
func (c *interfaceCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := writeJSONAtomic(c.indexPath(), c.index); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *interfaceCache) Get(cell, revision string) (*netcell.Interface, bool, error) {
	c.mu.Lock()
	entry, ok := c.index.Entries[cell]
	c.mu.Unlock()
	if !ok || entry.Revision != revision || entry.EngineVersion != c.engineVersion {
		return nil, false, nil
	}

	data, err := os.ReadFile(entry.InterfacePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cached interface: %w", err)
	}
	var in netcell.Interface
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, false, fmt.Errorf("parse cached interface: %w", err)
	}
	if in.Cell != cell || in.Revision != revision {
		return nil, false, nil
	}
	return &in, true, nil
}

func (c *interfaceCache) Put(cell string, in *netcell.Interface) error {
	path := c.pathForCell(cell)
	if err := writeJSONAtomic(path, in); err != nil {
		return err
	}

	c.mu.Lock()
	c.index.Entries[cell] = cacheEntry{
		Revision:      in.Revision,
		InterfacePath: path,
		EngineVersion: c.engineVersion,
	}
	c.dirty = true
	c.mu.Unlock()
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
