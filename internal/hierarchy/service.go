// Package hierarchy computes the cells of a library bottom-up. Each cell
// is computed once per revision; a revision covers the cell's content,
// its icons and the published interfaces of everything it instantiates,
// so editing a sub-cell makes every ancestor recompute on next request
// while unrelated cells keep their memoized results.
package hierarchy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/robert-at-pretension-io/netconn/internal/design"
	"github.com/robert-at-pretension-io/netconn/internal/diag"
	"github.com/robert-at-pretension-io/netconn/internal/netcell"
	"github.com/robert-at-pretension-io/netconn/internal/tech"
)

// EngineVersion is folded into every revision and disk cache entry.
// Bump it whenever the connectivity rules change.
const EngineVersion = "netconn-1"

// Options configure a Service. The zero value computes with the builtin
// schematic technology, no disk cache and one worker per CPU.
type Options struct {
	Tech             tech.Technology
	WidthPolicy      netcell.WidthPolicy
	MaxParallelCells int
	// CacheDir enables the on-disk interface cache.
	CacheDir string
	// TimingPath enables the JSONL timing log. When empty the
	// NETCONN_TIMING_JSONL variable is consulted.
	TimingPath string
	Logger     *zap.Logger
	// Registry receives the service metrics. A private registry is
	// created when nil.
	Registry *prometheus.Registry
}

// Key identifies one revision of a cell.
type Key struct {
	Cell     string `json:"cell"`
	Revision string `json:"revision"`
}

func (k Key) String() string {
	rev := k.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return k.Cell + "@" + rev
}

// Stale reports whether k is an older revision of the cell current names.
func (k Key) Stale(current Key) bool {
	return k.Cell == current.Cell && k.Revision != current.Revision
}

// entry is a memoized result. cell stays nil while only the interface
// was loaded from disk and is attached at most once.
type entry struct {
	key    Key
	iface  *netcell.Interface
	cell   atomic.Pointer[netcell.Cell]
	digest string
}

func newEntry(k Key, iface *netcell.Interface, cell *netcell.Cell) *entry {
	e := &entry{key: k, iface: iface, digest: iface.Digest()}
	if cell != nil {
		e.cell.Store(cell)
	}
	return e
}

// request holds the cells already resolved by one call, so a sub-cell
// instantiated along many paths is resolved and hashed once.
type request struct {
	mu   sync.Mutex
	done map[string]resolved
}

type resolved struct {
	e   *entry
	err error
}

func newRequest() *request {
	return &request{done: make(map[string]resolved)}
}

func (r *request) get(key string, full bool) (resolved, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.done[key]
	if !ok || (v.err == nil && full && v.e.cell.Load() == nil) {
		return resolved{}, false
	}
	return v, true
}

func (r *request) put(key string, v resolved) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[key] = v
}

// Stats counts how requests were served since the service was created.
type Stats struct {
	Computed int64 `json:"computed"`
	MemoHits int64 `json:"memoHits"`
	DiskHits int64 `json:"diskHits"`
}

// Service memoizes cell results for one library. The library must not be
// edited while a request is running; call Invalidate after an edit.
type Service struct {
	SessionID string

	lib    *design.Library
	tech   tech.Technology
	techID string
	opts   Options
	log    *zap.Logger
	reg    *prometheus.Registry
	m      *metrics
	timing *timingLog
	disk   *interfaceCache
	flight singleflight.Group

	mu     sync.Mutex
	memo   map[Key]*entry
	latest map[string]Key
	graph  *depGraph

	computed atomic.Int64
	memoHits atomic.Int64
	diskHits atomic.Int64
}

// New indexes lib and prepares a service over it.
func New(lib *design.Library, opts Options) (*Service, error) {
	if lib == nil {
		return nil, errors.New("hierarchy: nil library")
	}
	if err := lib.Index(); err != nil {
		return nil, err
	}
	if opts.Tech == nil {
		opts.Tech = tech.Schematic()
	}
	if opts.WidthPolicy == "" {
		opts.WidthPolicy = netcell.WidthWider
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	s := &Service{
		SessionID: uuid.NewString(),
		lib:       lib,
		tech:      opts.Tech,
		techID:    fingerprint(opts.Tech),
		opts:      opts,
		log:       opts.Logger,
		reg:       opts.Registry,
		m:         newMetrics(opts.Registry),
		memo:      make(map[Key]*entry),
		latest:    make(map[string]Key),
		graph:     buildGraph(lib),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.With(zap.String("session", s.SessionID), zap.String("library", lib.Name))

	if opts.CacheDir != "" {
		s.disk = newInterfaceCache(opts.CacheDir, EngineVersion)
		if err := s.disk.Load(); err != nil {
			return nil, err
		}
	}
	s.timing = openTimingLog(resolveTimingPath(opts.TimingPath), s.SessionID, time.Now())
	if err := s.timing.Err(); err != nil {
		s.log.Warn("timing log disabled", zap.Error(err))
	}

	s.log.Debug("hierarchy ready",
		zap.Int("cells", len(lib.Cells)),
		zap.Int("levels", len(s.graph.levels)),
		zap.Int("blocked", len(s.graph.blocked)),
	)
	return s, nil
}

func fingerprint(t tech.Technology) string {
	if f, ok := t.(interface{ Fingerprint() string }); ok {
		return f.Fingerprint()
	}
	return fmt.Sprintf("%T", t)
}

// Close flushes the disk cache index and the timing log.
func (s *Service) Close() error {
	var errs []error
	if s.disk != nil {
		errs = append(errs, s.disk.Save())
	}
	errs = append(errs, s.timing.Close())
	return errors.Join(errs...)
}

// Library returns the library the service computes.
func (s *Service) Library() *design.Library { return s.lib }

// Registry returns the metrics registry.
func (s *Service) Registry() *prometheus.Registry { return s.reg }

// Stats returns request counters.
func (s *Service) Stats() Stats {
	return Stats{
		Computed: s.computed.Load(),
		MemoHits: s.memoHits.Load(),
		DiskHits: s.diskHits.Load(),
	}
}

// Cell returns the full connectivity of a cell, computing it and its
// sub-cells as needed.
func (s *Service) Cell(ctx context.Context, key string) (*netcell.Cell, error) {
	e, err := s.resolve(ctx, newRequest(), key, true, nil)
	if err != nil {
		return nil, err
	}
	return e.cell.Load(), nil
}

// Interface returns the published interface of a cell. It may be served
// from the disk cache without computing the cell.
func (s *Service) Interface(ctx context.Context, key string) (*netcell.Interface, error) {
	e, err := s.resolve(ctx, newRequest(), key, false, nil)
	if err != nil {
		return nil, err
	}
	return e.iface, nil
}

// Revision returns the current key of a cell.
func (s *Service) Revision(ctx context.Context, key string) (Key, error) {
	e, err := s.resolve(ctx, newRequest(), key, false, nil)
	if err != nil {
		return Key{}, err
	}
	return e.key, nil
}

// Levels returns the cells grouped bottom-up; every cell comes after all
// the cells it instantiates. Cells on or above a cycle are not listed.
func (s *Service) Levels() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.graph.levels))
	for i, l := range s.graph.levels {
		out[i] = append([]string(nil), l...)
	}
	return out
}

// Impact reports which cells instantiate key, directly or not.
func (s *Service) Impact(key string) ImpactReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return computeImpact(key, s.graph.dependents)
}

// Invalidate drops the memoized results of key and of every cell that
// instantiates it, after the caller edited key in place. The dependency
// graph is rebuilt so new or removed instances are seen.
func (s *Service) Invalidate(key string) (ImpactReport, error) {
	if err := s.lib.Index(); err != nil {
		return ImpactReport{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old := computeImpact(key, s.graph.dependents)
	s.graph = buildGraph(s.lib)
	report := computeImpact(key, s.graph.dependents)

	drop := map[string]bool{key: true}
	for _, c := range old.Cells() {
		drop[c] = true
	}
	for _, c := range report.Cells() {
		drop[c] = true
	}
	for k := range s.memo {
		if drop[k.Cell] {
			delete(s.memo, k)
		}
	}
	for c := range drop {
		delete(s.latest, c)
	}
	s.log.Debug("invalidated", zap.String("cell", key), zap.Int("dependents", len(drop)-1))
	return report, nil
}

// resolve returns the current entry of key. Results, including failures,
// are remembered in req; a failure below a cycle does not depend on the
// path that reached it.
func (s *Service) resolve(ctx context.Context, req *request, key string, full bool, path []string) (*entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v, ok := req.get(key, full); ok {
		return v.e, v.err
	}
	for _, p := range path {
		if p == key {
			chain := append(append([]string(nil), path...), key)
			return nil, diag.Fatal(key, "cell", 0, diag.ErrCycle, "%s", strings.Join(chain, " -> "))
		}
	}
	e, err := s.resolveUncached(ctx, req, key, full, append(path[:len(path):len(path)], key))
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	req.put(key, resolved{e: e, err: err})
	return e, err
}

func (s *Service) resolveUncached(ctx context.Context, req *request, key string, full bool, path []string) (*entry, error) {
	c, ok := s.lib.Cell(key)
	if !ok {
		return nil, diag.Fatal(key, "cell", 0, diag.ErrUnresolvedProto, "no such cell")
	}

	deps := netcell.Dependencies(s.lib, c)
	children := make(map[string]*entry, len(deps))
	for _, dep := range deps {
		child, err := s.resolve(ctx, req, dep, false, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, diag.Fatal(key, "cell", 0, err, "sub-cell %s", dep)
		}
		children[dep] = child
	}

	k := Key{Cell: key, Revision: s.revision(c, deps, children)}
	if e, ok := s.lookup(k, full); ok {
		s.memoHits.Add(1)
		s.m.memoHits.Inc()
		return e, nil
	}
	if !full && s.disk != nil {
		in, ok, err := s.disk.Get(key, k.Revision)
		if err != nil {
			s.log.Warn("disk cache read failed", zap.String("cell", key), zap.Error(err))
		} else if ok {
			s.diskHits.Add(1)
			s.m.diskHits.Inc()
			s.timing.cell(k, "disk_hit", time.Now(), 0, nil)
			return s.store(newEntry(k, in, nil)), nil
		}
	}

	// Children are all resolved here, so no flight waits on another.
	v, err, _ := s.flight.Do(k.Cell+"@"+k.Revision, func() (any, error) {
		if e, ok := s.lookup(k, true); ok {
			return e, nil
		}
		return s.compute(ctx, c, k, children)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

// revision digests everything that can change the result of computing c.
func (s *Service) revision(c *design.Cell, deps []string, children map[string]*entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s\n%s\n", EngineVersion, s.techID, s.opts.WidthPolicy, c.ContentHash())
	for _, icon := range s.lib.IconsOf(c) {
		fmt.Fprintf(h, "icon %s\n", icon.ContentHash())
	}
	for _, dep := range deps {
		fmt.Fprintf(h, "%s=%s\n", dep, children[dep].digest)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Service) compute(ctx context.Context, c *design.Cell, k Key, children map[string]*entry) (*entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	cell, err := netcell.Compute(c, netcell.Env{
		Tech: s.tech,
		Lib:  s.lib,
		Lookup: func(key string) (*netcell.Interface, error) {
			if e, ok := children[key]; ok {
				return e.iface, nil
			}
			return nil, fmt.Errorf("sub-cell %s was not resolved", key)
		},
		WidthPolicy: s.opts.WidthPolicy,
		Revision:    k.Revision,
	})
	elapsed := time.Since(start)
	if err != nil {
		s.m.fatal.Inc()
		s.timing.cell(k, "fatal", start, elapsed, nil)
		s.log.Warn("cell analysis failed", zap.String("cell", k.Cell), zap.Error(err))
		return nil, err
	}

	s.computed.Add(1)
	s.m.computed.Inc()
	s.m.seconds.Observe(elapsed.Seconds())
	for _, d := range cell.Diagnostics {
		s.m.diagnostics.WithLabelValues(d.Code).Inc()
	}
	s.timing.cell(k, "computed", start, elapsed, cell.Phases)
	s.log.Debug("cell computed",
		zap.Stringer("key", k),
		zap.Int("diagnostics", len(cell.Diagnostics)),
		zap.Int("proxies", len(cell.Proxies)),
		zap.Duration("elapsed", elapsed),
	)

	if s.disk != nil {
		if err := s.disk.Put(k.Cell, cell.Interface); err != nil {
			s.log.Warn("disk cache write failed", zap.String("cell", k.Cell), zap.Error(err))
		}
	}
	return s.store(newEntry(k, cell.Interface, cell)), nil
}

func (s *Service) lookup(k Key, full bool) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.memo[k]
	if !ok || (full && e.cell.Load() == nil) {
		return nil, false
	}
	return e, true
}

// store publishes e and returns the entry memoized for its key. A key is
// stored once: when an interface-only entry is already memoized the
// computed cell is attached to it instead. Older revisions of the same
// cell are dropped.
func (s *Service) store(e *entry) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.memo[e.key]; ok {
		if cell := e.cell.Load(); cell != nil && cur.cell.Load() == nil {
			if cur.digest == e.digest {
				cell.Interface = cur.iface
			}
			cur.cell.Store(cell)
		}
		return cur
	}
	if prev, ok := s.latest[e.key.Cell]; ok && prev != e.key {
		delete(s.memo, prev)
	}
	s.memo[e.key] = e
	s.latest[e.key.Cell] = e.key
	return e
}

// Result is the outcome of one cell in ComputeAll.
type Result struct {
	Key  Key
	Cell *netcell.Cell
	Err  error
}

// Report collects the outcome of ComputeAll, ordered by cell key.
type Report struct {
	Session string
	Results []Result
	Stats   Stats
}

// Result returns the outcome for one cell.
func (r *Report) Result(key string) (Result, bool) {
	i := sort.Search(len(r.Results), func(i int) bool { return r.Results[i].Key.Cell >= key })
	if i < len(r.Results) && r.Results[i].Key.Cell == key {
		return r.Results[i], true
	}
	return Result{}, false
}

// Failed returns the cells that could not be analyzed.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Diagnostics returns the diagnostics of every analyzed cell plus one
// diagnostic per failed cell, sorted.
func (r *Report) Diagnostics() []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, diag.AsDiagnostic(res.Key.Cell, res.Err))
			continue
		}
		out = append(out, res.Cell.Diagnostics...)
	}
	diag.Sort(out)
	return out
}

// ComputeAll computes every cell of the library, one DAG level at a time
// with up to MaxParallelCells cells in flight. A cell's fatal error is
// recorded in its Result; only cancellation aborts the run.
func (s *Service) ComputeAll(ctx context.Context) (*Report, error) {
	runStart := time.Now()
	s.mu.Lock()
	g := s.graph
	s.mu.Unlock()

	var mu sync.Mutex
	req := newRequest()
	results := make([]Result, 0, len(s.lib.Cells))
	run := func(ctx context.Context, key string) {
		res := Result{Key: Key{Cell: key}}
		e, err := s.resolve(ctx, req, key, true, nil)
		if err != nil {
			res.Err = err
		} else {
			res.Key = e.key
			res.Cell = e.cell.Load()
		}
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}

	limit := s.opts.MaxParallelCells
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	for i, level := range g.levels {
		if err := ctx.Err(); err != nil {
			s.timing.stage("compute_all", runStart, "canceled")
			return nil, err
		}
		levelStart := time.Now()
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(limit)
		for _, key := range level {
			eg.Go(func() error {
				run(egCtx, key)
				return egCtx.Err()
			})
		}
		if err := eg.Wait(); err != nil {
			s.timing.stage("compute_all", runStart, "canceled")
			return nil, err
		}
		s.timing.stage(fmt.Sprintf("level_%d", i), levelStart, "ok")
	}

	// Blocked cells fail on their cycle; run them serially for the errors.
	blocked := make([]string, 0, len(g.blocked))
	for key := range g.blocked {
		blocked = append(blocked, key)
	}
	sort.Strings(blocked)
	for _, key := range blocked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run(ctx, key)
	}
	if cyc := g.cyclic(); len(cyc) > 0 {
		s.log.Warn("instantiation cycle", zap.Strings("cells", cyc))
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Key.Cell < results[j].Key.Cell })
	s.timing.stage("compute_all", runStart, "ok")
	s.log.Info("library computed",
		zap.Int("cells", len(results)),
		zap.Int("failed", len((&Report{Results: results}).Failed())),
		zap.Duration("elapsed", time.Since(runStart)),
	)
	return &Report{Session: s.SessionID, Results: results, Stats: s.Stats()}, nil
}
