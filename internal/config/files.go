package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// designExts are the file extensions the design loader understands
var designExts = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// ResolveDesignFiles expands the design globs and returns a sorted file list.
// A rootPath naming a file resolves to that file alone.
func (c *Config) ResolveDesignFiles(rootPath string) ([]string, error) {
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		return []string{rootPath}, nil
	}

	fileSet := make(map[string]bool)
	for _, pattern := range c.Design.Files {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(rootPath, pattern)
		}
		matches, err := expandGlob(pattern)
		if err != nil {
			// Invalid patterns match nothing
			continue
		}
		for _, match := range matches {
			if designExts[strings.ToLower(filepath.Ext(match))] {
				fileSet[filepath.Clean(match)] = true
			}
		}
	}

	for _, pattern := range c.Design.Exclude {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(rootPath, pattern)
		}
		matches, err := expandGlob(pattern)
		if err != nil {
			continue
		}
		for _, match := range matches {
			delete(fileSet, filepath.Clean(match))
		}
	}

	files := make([]string, 0, len(fileSet))
	for f := range fileSet {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// LibraryName picks the merged library name for a project root
func (c *Config) LibraryName(rootPath string) string {
	if c.Design.Library != "" {
		return c.Design.Library
	}
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return "design"
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		return strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	}
	return filepath.Base(abs)
}

// expandGlob expands a glob pattern, handling ** for recursive matching
func expandGlob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return expandDoubleStarGlob(pattern)
	}
	return filepath.Glob(pattern)
}

// expandDoubleStarGlob handles ** patterns by walking the directory tree
func expandDoubleStarGlob(pattern string) ([]string, error) {
	var results []string

	parts := strings.SplitN(pattern, "**", 2)
	if len(parts) != 2 {
		return filepath.Glob(pattern)
	}

	baseDir := filepath.Clean(parts[0])
	if baseDir == "" {
		baseDir = "."
	}
	suffix := strings.TrimPrefix(parts[1], string(filepath.Separator))

	err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if info.IsDir() {
			return nil
		}
		if suffix == "" {
			results = append(results, path)
			return nil
		}
		relPath, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}
		if matchSuffix(relPath, suffix) {
			results = append(results, path)
		}
		return nil
	})

	return results, err
}

// matchSuffix checks if a path matches a suffix pattern (after **)
func matchSuffix(path, pattern string) bool {
	pattern = strings.TrimPrefix(pattern, string(filepath.Separator))

	// No directory component: match against the file name
	if !strings.Contains(pattern, string(filepath.Separator)) {
		matched, _ := filepath.Match(pattern, filepath.Base(path))
		return matched
	}

	if matched, _ := filepath.Match(pattern, path); matched {
		return true
	}
	if len(path) > len(pattern) {
		matched, _ := filepath.Match(pattern, path[len(path)-len(pattern):])
		return matched
	}
	return false
}
