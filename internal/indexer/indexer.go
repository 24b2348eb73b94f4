// Package indexer runs one analysis over a project: it resolves and checks
// the design files, computes every cell through the hierarchy service,
// flattens the results into tables and evaluates the connectivity rules.
//
// The indexer does not repair inputs. A design file that breaks the design
// contract, or tables that break the tables contract, stop the run with the
// offending paths; fix the producer instead of patching data here.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/netconn/internal/config"
	"github.com/robert-at-pretension-io/netconn/internal/design"
	"github.com/robert-at-pretension-io/netconn/internal/facts"
	"github.com/robert-at-pretension-io/netconn/internal/hierarchy"
	"github.com/robert-at-pretension-io/netconn/internal/logging"
	"github.com/robert-at-pretension-io/netconn/internal/netcell"
	"github.com/robert-at-pretension-io/netconn/internal/policy"
	"github.com/robert-at-pretension-io/netconn/internal/validator"
)

// Indexer holds the settings of a run.
type Indexer struct {
	Config *config.Config

	Logger   *zap.Logger
	Registry *prometheus.Registry

	// TimingPath enables the JSONL timing log of the hierarchy service.
	TimingPath string

	// Cells restricts reported tables and violations to these keys. Every
	// cell is still computed.
	Cells []string
}

// Result is the outcome of a run.
type Result struct {
	Files   []string          `json:"files"`
	Library string            `json:"library"`
	Session string            `json:"session"`
	Levels  [][]string        `json:"levels"`
	Stats   hierarchy.Stats   `json:"stats"`
	Report  *hierarchy.Report `json:"-"`

	Tables facts.Tables `json:"-"`
	// Previous holds the tables of the last cached run over the same
	// library, when there was one.
	Previous        *facts.Tables `json:"-"`
	PreviousSession string        `json:"previous_session,omitempty"`

	Violations   []policy.Violation `json:"violations"`
	Summary      policy.Summary     `json:"summary"`
	PolicyCached bool               `json:"policy_cached"`

	Duration time.Duration `json:"-"`
}

// HasErrors reports whether the run produced error-level violations.
func (r *Result) HasErrors() bool {
	return r.Summary.Errors > 0
}

// Delta compares the run against the previous cached run, or against an
// empty run when there is none.
func (r *Result) Delta() facts.Delta {
	var prev facts.Tables
	if r.Previous != nil {
		prev = *r.Previous
	}
	return facts.ComputeDelta(prev, r.Tables)
}

// NewWithConfig creates an Indexer for cfg; a nil cfg means defaults.
func NewWithConfig(cfg *config.Config) *Indexer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Indexer{Config: cfg}
}

// Load resolves the design files under rootPath, checks each against the
// design contract and merges them into one library.
func (idx *Indexer) Load(rootPath string) ([]string, *design.Library, error) {
	log := logging.OrNop(idx.Logger)
	files, err := idx.Config.ResolveDesignFiles(rootPath)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve design files: %w", err)
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no design files found under %s", rootPath)
	}
	log.Debug("design files resolved", zap.Int("files", len(files)))

	v, err := validator.New()
	if err != nil {
		return nil, nil, fmt.Errorf("initialize validator: %w", err)
	}
	var errs []error
	for _, f := range files {
		if err := v.ValidateDesignFile(f); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return files, nil, fmt.Errorf("design contract broken: %w", errors.Join(errs...))
	}

	lib, err := design.LoadFiles(idx.Config.LibraryName(rootPath), files)
	if err != nil {
		return files, nil, err
	}
	log.Debug("library loaded", zap.String("library", lib.Name), zap.Int("cells", len(lib.Cells)))
	return files, lib, nil
}

// Run performs a full analysis of rootPath.
func (idx *Indexer) Run(ctx context.Context, rootPath string) (*Result, error) {
	start := time.Now()
	log := logging.OrNop(idx.Logger)
	cfg := idx.Config

	files, lib, err := idx.Load(rootPath)
	if err != nil {
		return nil, err
	}

	tk, err := cfg.Tech()
	if err != nil {
		return nil, err
	}
	opts := hierarchy.Options{
		Tech:             tk,
		WidthPolicy:      netcell.WidthPolicy(cfg.Analysis.WidthPolicy),
		MaxParallelCells: cfg.Parallelism(),
		TimingPath:       idx.TimingPath,
		Logger:           log,
		Registry:         idx.Registry,
	}
	cacheDir := ""
	if cfg.CacheEnabled() {
		cacheDir = cfg.CacheDir(rootPath)
		opts.CacheDir = cacheDir
	}

	svc, err := hierarchy.New(lib, opts)
	if err != nil {
		return nil, fmt.Errorf("initialize hierarchy: %w", err)
	}
	report, err := svc.ComputeAll(ctx)
	levels := svc.Levels()
	if cerr := svc.Close(); cerr != nil {
		log.Warn("closing hierarchy service", zap.Error(cerr))
	}
	if err != nil {
		return nil, err
	}

	res := &Result{
		Files:   files,
		Library: lib.Name,
		Session: report.Session,
		Levels:  levels,
		Stats:   report.Stats,
		Report:  report,
	}

	all := facts.Build(report, cfg.RuleSeverity)
	kept := make(map[string]bool)
	for _, r := range report.Results {
		if !cfg.ShouldIgnoreCell(r.Key.Cell) {
			kept[r.Key.Cell] = true
		}
	}
	all = facts.FilterTablesByCells(all, kept)

	selected, err := idx.selectCells(lib, kept)
	if err != nil {
		return nil, err
	}
	res.Tables = facts.FilterTablesByCells(all, selected)

	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("initialize validator: %w", err)
	}
	if errs := v.ValidationErrors(validator.DefTables, res.Tables); len(errs) > 0 {
		return nil, fmt.Errorf("tables contract broken:\n  %s", strings.Join(errs, "\n  "))
	}

	if cacheDir != "" {
		snap, err := loadSnapshot(cacheDir, lib.Name)
		if err != nil {
			log.Warn("previous tables unavailable", zap.Error(err))
		} else if snap != nil {
			prev := facts.FilterTablesByCells(snap.Tables, selected)
			res.Previous = &prev
			res.PreviousSession = snap.Session
		}
	}

	if err := idx.evaluate(ctx, rootPath, cacheDir, res); err != nil {
		return nil, err
	}

	if cacheDir != "" {
		if err := saveSnapshot(cacheDir, runSnapshot{Library: lib.Name, Session: res.Session, Tables: all}); err != nil {
			log.Warn("run snapshot save failed", zap.Error(err))
		}
	}

	res.Duration = time.Since(start)
	log.Info("run complete",
		zap.String("library", lib.Name),
		zap.Int("cells", len(report.Results)),
		zap.Int("failed", len(report.Failed())),
		zap.Int64("computed", res.Stats.Computed),
		zap.Int64("disk_hits", res.Stats.DiskHits),
		zap.Int("violations", res.Summary.TotalViolations),
		zap.Bool("policy_cached", res.PolicyCached),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// selectCells applies the Cells restriction to the kept set.
func (idx *Indexer) selectCells(lib *design.Library, kept map[string]bool) (map[string]bool, error) {
	if len(idx.Cells) == 0 {
		return kept, nil
	}
	selected := make(map[string]bool)
	var unknown []string
	for _, key := range idx.Cells {
		if _, ok := lib.Cell(key); !ok {
			unknown = append(unknown, key)
			continue
		}
		if kept[key] {
			selected[key] = true
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown cell(s): %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}

func (idx *Indexer) evaluate(ctx context.Context, rootPath, cacheDir string, res *Result) error {
	log := logging.OrNop(idx.Logger)
	engine, err := policy.New(idx.policyDir(rootPath))
	if err != nil {
		return fmt.Errorf("initialize policy engine: %w", err)
	}
	input := policy.Input{Tables: res.Tables, Rules: idx.Config.Check.Rules}

	var hash string
	if cacheDir != "" {
		hash, err = policyInputHash(engine, input)
		if err != nil {
			log.Warn("policy cache disabled", zap.Error(err))
		} else {
			entry, err := loadPolicyCache(cacheDir)
			if err != nil {
				log.Warn("policy cache unreadable", zap.Error(err))
			}
			if policyCacheValid(entry, hash) {
				res.Violations = entry.Result.Violations
				res.Summary = entry.Result.Summary
				res.PolicyCached = true
				return nil
			}
		}
	}

	result, err := engine.Evaluate(ctx, input)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	res.Violations = result.Violations
	res.Summary = result.Summary

	if cacheDir != "" && hash != "" {
		if err := savePolicyCache(cacheDir, policyCacheEntry{
			Version:   policyCacheVersion,
			InputHash: hash,
			Result:    *result,
		}); err != nil {
			log.Warn("policy cache save failed", zap.Error(err))
		}
	}
	return nil
}

// policyDir resolves the configured policy directory against the project
// root.
func (idx *Indexer) policyDir(rootPath string) string {
	dir := idx.Config.Check.PolicyDir
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	base := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		base = filepath.Dir(rootPath)
	}
	return filepath.Join(base, dir)
}
