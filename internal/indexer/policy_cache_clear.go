package indexer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-at-pretension-io/netconn/internal/config"
)

// ClearCache removes the stored policy result, the previous run's tables
// and the interface cache for the given root path. Returns the cache
// directory that was targeted.
func ClearCache(rootPath string, cfg *config.Config) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("clear cache: config is nil")
	}
	cacheDir := cfg.CacheDir(rootPath)
	if err := clearPolicyCache(cacheDir); err != nil {
		return cacheDir, err
	}
	if err := os.Remove(filepath.Join(cacheDir, snapshotFile)); err != nil && !os.IsNotExist(err) {
		return cacheDir, fmt.Errorf("remove fact tables cache: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(cacheDir, "interfaces")); err != nil {
		return cacheDir, fmt.Errorf("remove interface cache: %w", err)
	}
	if err := os.Remove(filepath.Join(cacheDir, "index.json")); err != nil && !os.IsNotExist(err) {
		return cacheDir, fmt.Errorf("remove interface index: %w", err)
	}
	return cacheDir, nil
}

func clearPolicyCache(cacheDir string) error {
	path := policyCachePath(cacheDir)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove policy cache: %w", err)
	}
	return nil
}
