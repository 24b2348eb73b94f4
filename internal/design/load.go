package design

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format of a design file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%s: unsupported design file extension", path)
}

// Decode parses a library from raw bytes and indexes it.
func Decode(data []byte, format Format) (*Library, error) {
	var lib Library
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &lib); err != nil {
			return nil, fmt.Errorf("parsing design json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &lib); err != nil {
			return nil, fmt.Errorf("parsing design yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown design format %q", format)
	}
	if err := lib.Index(); err != nil {
		return nil, err
	}
	return &lib, nil
}

// LoadFile reads one design file.
func LoadFile(path string) (*Library, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading design file: %w", err)
	}
	lib, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if lib.Name == "" {
		lib.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return lib, nil
}

// LoadFiles reads several design files into a single library. Cell keys
// must be unique across all files.
func LoadFiles(name string, paths []string) (*Library, error) {
	merged := &Library{Name: name}
	for _, p := range paths {
		lib, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		merged.Cells = append(merged.Cells, lib.Cells...)
	}
	if err := merged.Index(); err != nil {
		return nil, err
	}
	return merged, nil
}

// Encode serializes a library in the given format.
func Encode(lib *Library, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(lib, "", "  ")
	case FormatYAML:
		return yaml.Marshal(lib)
	}
	return nil, fmt.Errorf("unknown design format %q", format)
}
