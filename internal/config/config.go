package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/netconn/internal/diag"
	"github.com/robert-at-pretension-io/netconn/internal/tech"
)

// Config is the top-level configuration for netconn
type Config struct {
	// Design selects the design files to load
	Design DesignConfig `json:"design,omitempty" yaml:"design,omitempty"`

	// Technology extends the builtin schematic technology
	Technology TechnologyConfig `json:"technology,omitempty" yaml:"technology,omitempty"`

	// Check contains diagnostic and policy configuration
	Check CheckConfig `json:"check,omitempty" yaml:"check,omitempty"`

	// Analysis contains analysis options
	Analysis AnalysisConfig `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

// DesignConfig lists design files by glob
type DesignConfig struct {
	// Library names the merged library (defaults to the project directory name)
	Library string `json:"library,omitempty" yaml:"library,omitempty"`

	// Files is a list of glob patterns for design files (.json, .yaml, .yml)
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`

	// Exclude is a list of glob patterns to exclude
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// TechnologyConfig adds or replaces primitives and arc prototypes
type TechnologyConfig struct {
	Primitives []tech.Primitive `json:"primitives,omitempty" yaml:"primitives,omitempty"`
	Arcs       []tech.ArcProto  `json:"arcs,omitempty" yaml:"arcs,omitempty"`
}

// CheckConfig contains diagnostic configuration
type CheckConfig struct {
	// Rules maps diagnostic and policy codes to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty" yaml:"rules,omitempty"`

	// PolicyDir holds extra .rego modules evaluated with the builtin policy
	PolicyDir string `json:"policyDir,omitempty" yaml:"policyDir,omitempty"`

	// IgnoreCells is a list of cell key patterns to skip in reports
	IgnoreCells []string `json:"ignoreCells,omitempty" yaml:"ignoreCells,omitempty"`
}

// CacheConfig controls the on-disk interface cache
type CacheConfig struct {
	// Enabled turns on the disk cache
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Dir is the cache directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// AnalysisConfig contains analysis options
type AnalysisConfig struct {
	// MaxParallelCells limits concurrent cell computation (0 = auto, 1 = serial)
	MaxParallelCells int `json:"maxParallelCells,omitempty" yaml:"maxParallelCells,omitempty"`

	// WidthPolicy resolves bus width conflicts: "wider" or "first"
	WidthPolicy string `json:"widthPolicy,omitempty" yaml:"widthPolicy,omitempty"`

	// Cache controls the on-disk interface cache
	Cache CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty"`
}

const defaultCacheDir = ".netconn_cache"

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Design: DesignConfig{
			Files:   []string{"*.json", "*.yaml", "**/*.json", "**/*.yaml"},
			Exclude: []string{defaultCacheDir + "/**", "netconn.json", "netconn.yaml"},
		},
		Check: CheckConfig{
			Rules: map[string]string{},
		},
		Analysis: AnalysisConfig{
			MaxParallelCells: 0, // auto
			WidthPolicy:      "wider",
			Cache: CacheConfig{
				Enabled: boolPtr(false),
				Dir:     defaultCacheDir,
			},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./netconn.json, ./.netconn.json, ./netconn.yaml (current working directory)
//  2. the same names under <rootPath> (if different from cwd)
//  3. ~/.config/netconn/config.json, ~/.config/netconn/config.yaml
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()
	names := []string{"netconn.json", ".netconn.json", "netconn.yaml"}

	var searchPaths []string
	for _, n := range names {
		searchPaths = append(searchPaths, filepath.Join(cwd, n))
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			for _, n := range names {
				searchPaths = append(searchPaths, filepath.Join(rootPath, n))
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "netconn", "config.json"),
			filepath.Join(home, ".config", "netconn", "config.yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if len(c.Design.Files) == 0 {
		c.Design.Files = def.Design.Files
		if len(c.Design.Exclude) == 0 {
			c.Design.Exclude = def.Design.Exclude
		}
	}
	if c.Check.Rules == nil {
		c.Check.Rules = make(map[string]string)
	}
	if c.Analysis.WidthPolicy == "" {
		c.Analysis.WidthPolicy = def.Analysis.WidthPolicy
	}
	if c.Analysis.Cache.Dir == "" {
		c.Analysis.Cache.Dir = defaultCacheDir
	}
	if c.Analysis.Cache.Enabled == nil {
		c.Analysis.Cache.Enabled = boolPtr(false)
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Analysis.WidthPolicy {
	case "", "wider", "first":
	default:
		return fmt.Errorf("analysis.widthPolicy: unknown policy %q", c.Analysis.WidthPolicy)
	}
	if c.Analysis.MaxParallelCells < 0 {
		return fmt.Errorf("analysis.maxParallelCells: must not be negative")
	}
	for code, sev := range c.Check.Rules {
		switch diag.Severity(sev) {
		case diag.SeverityOff, diag.SeverityInfo, diag.SeverityWarning, diag.SeverityError:
		default:
			return fmt.Errorf("check.rules.%s: unknown severity %q", code, sev)
		}
	}
	return nil
}

// Save writes the configuration to a file, as YAML for .yaml/.yml paths
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// RuleSeverity returns the severity for a code, or the default if not configured
func (c *Config) RuleSeverity(code string, def diag.Severity) diag.Severity {
	if severity, ok := c.Check.Rules[code]; ok {
		return diag.Severity(severity)
	}
	return def
}

// IsRuleEnabled returns true if the code is not set to "off"
func (c *Config) IsRuleEnabled(code string) bool {
	if severity, ok := c.Check.Rules[code]; ok {
		return severity != string(diag.SeverityOff)
	}
	return true // enabled by default
}

// ShouldIgnoreCell checks if a cell key matches an ignore pattern
func (c *Config) ShouldIgnoreCell(key string) bool {
	for _, pattern := range c.Check.IgnoreCells {
		if matched, _ := filepath.Match(pattern, key); matched {
			return true
		}
	}
	return false
}

// Tech returns the builtin schematic technology extended with configured definitions
func (c *Config) Tech() (*tech.Table, error) {
	base := tech.Schematic()
	if len(c.Technology.Primitives) == 0 && len(c.Technology.Arcs) == 0 {
		return base, nil
	}
	t, err := base.Extend(c.Technology.Primitives, c.Technology.Arcs)
	if err != nil {
		return nil, fmt.Errorf("technology config: %w", err)
	}
	return t, nil
}

// Parallelism returns the effective cell worker limit
func (c *Config) Parallelism() int {
	if c.Analysis.MaxParallelCells > 0 {
		return c.Analysis.MaxParallelCells
	}
	return runtime.NumCPU()
}

// CacheEnabled reports whether the disk cache is on
func (c *Config) CacheEnabled() bool {
	return c.Analysis.Cache.Enabled != nil && *c.Analysis.Cache.Enabled
}

// CacheDir resolves the cache directory against the project root
func (c *Config) CacheDir(rootPath string) string {
	baseDir := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(rootPath)
	}
	dir := c.Analysis.Cache.Dir
	if dir == "" {
		dir = defaultCacheDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	return dir
}
