package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-at-pretension-io/netconn/internal/policy"
)

const policyCacheVersion = 1

// policyCacheEntry stores the last policy result with the digest of the
// input that produced it.
type policyCacheEntry struct {
	Version   int           `json:"version"`
	InputHash string        `json:"input_hash"`
	Result    policy.Result `json:"result"`
}

func loadPolicyCache(dir string) (*policyCacheEntry, error) {
	path := policyCachePath(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry policyCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse policy cache: %w", err)
	}
	return &entry, nil
}

func savePolicyCache(dir string, entry policyCacheEntry) error {
	path := policyCachePath(dir)
	if err := writeJSONAtomic(path, entry); err != nil {
		return fmt.Errorf("write policy cache: %w", err)
	}
	return nil
}

func policyCachePath(dir string) string {
	return filepath.Join(dir, "policy_cache.json")
}

func policyCacheValid(entry *policyCacheEntry, hash string) bool {
	return entry != nil && entry.Version == policyCacheVersion && entry.InputHash == hash
}

// policyInputHash covers everything a policy result depends on: the rule
// sources, the severity overrides and the tables.
func policyInputHash(engine *policy.Engine, input policy.Input) (string, error) {
	payload := struct {
		Policy string       `json:"policy"`
		Input  policy.Input `json:"input"`
	}{
		Policy: engine.Fingerprint(),
		Input:  input,
	}
	hash, err := hashJSON(payload)
	if err != nil {
		return "", fmt.Errorf("hash policy input: %w", err)
	}
	return hash, nil
}
