package hierarchy

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/robert-at-pretension-io/netconn/internal/netcell"
)

// TimingEnv names the environment variable that enables the JSONL timing
// log when Options.TimingPath is empty.
const TimingEnv = "NETCONN_TIMING_JSONL"

// timingEvent is one line of the timing log. Kind is "stage" for a
// ComputeAll level or run, "cell" for one resolved cell and "summary" for
// the totals written on close.
type timingEvent struct {
	Session    string             `json:"session"`
	Kind       string             `json:"kind"`
	Name       string             `json:"name,omitempty"`
	Cell       string             `json:"cell,omitempty"`
	Revision   string             `json:"revision,omitempty"`
	Status     string             `json:"status,omitempty"`
	StartMS    float64            `json:"start_ms"`
	DurationMS float64            `json:"duration_ms"`
	PhasesMS   map[string]float64 `json:"phases_ms,omitempty"`
	Counts     map[string]int     `json:"counts,omitempty"`
}

// timingLog writes timing events of one session. A nil or disabled log
// drops every event.
type timingLog struct {
	session string
	origin  time.Time

	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	err    error
	phases map[string]time.Duration
	counts map[string]int
}

func resolveTimingPath(opt string) string {
	if opt != "" {
		return opt
	}
	return os.Getenv(TimingEnv)
}

func openTimingLog(path, session string, origin time.Time) *timingLog {
	tl := &timingLog{
		session: session,
		origin:  origin,
		phases:  make(map[string]time.Duration),
		counts:  make(map[string]int),
	}
	if path == "" {
		return tl
	}
	f, err := os.Create(path)
	if err != nil {
		tl.err = err
		return tl
	}
	tl.file = f
	tl.enc = json.NewEncoder(f)
	return tl
}

func (tl *timingLog) enabled() bool {
	if tl == nil {
		return false
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.enc != nil
}

// Err returns the first open or write error.
func (tl *timingLog) Err() error {
	if tl == nil {
		return nil
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.err
}

func (tl *timingLog) stage(name string, start time.Time, status string) {
	if !tl.enabled() {
		return
	}
	tl.emit(timingEvent{
		Kind:       "stage",
		Name:       name,
		Status:     status,
		StartMS:    ms(start.Sub(tl.origin)),
		DurationMS: ms(time.Since(start)),
	})
}

// cell logs one resolved cell. Compute phases are added to the session
// totals.
func (tl *timingLog) cell(k Key, status string, start time.Time, elapsed time.Duration, phases []netcell.Phase) {
	if !tl.enabled() {
		return
	}
	ev := timingEvent{
		Kind:       "cell",
		Cell:       k.Cell,
		Revision:   k.Revision,
		Status:     status,
		StartMS:    ms(start.Sub(tl.origin)),
		DurationMS: ms(elapsed),
	}
	if len(phases) > 0 {
		ev.PhasesMS = make(map[string]float64, len(phases))
	}
	tl.mu.Lock()
	tl.counts[status]++
	for _, p := range phases {
		ev.PhasesMS[p.Name] += ms(p.Elapsed)
		tl.phases[p.Name] += p.Elapsed
	}
	tl.mu.Unlock()
	tl.emit(ev)
}

func (tl *timingLog) emit(ev timingEvent) {
	if tl == nil {
		return
	}
	ev.Session = tl.session
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.enc == nil {
		return
	}
	if err := tl.enc.Encode(ev); err != nil && tl.err == nil {
		tl.err = err
	}
}

// Close writes the session summary and closes the file. Later events
// are dropped.
func (tl *timingLog) Close() error {
	if tl == nil {
		return nil
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file == nil {
		return nil
	}
	summary := timingEvent{
		Session:    tl.session,
		Kind:       "summary",
		DurationMS: ms(time.Since(tl.origin)),
		PhasesMS:   make(map[string]float64, len(tl.phases)),
		Counts:     tl.counts,
	}
	for name, d := range tl.phases {
		summary.PhasesMS[name] = ms(d)
	}
	err := tl.enc.Encode(summary)
	if cerr := tl.file.Close(); err == nil {
		err = cerr
	}
	tl.file, tl.enc = nil, nil
	return err
}

func ms(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
