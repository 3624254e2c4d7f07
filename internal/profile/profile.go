// Package profile times each allocator pass: no sampling, just wall
// time per named stage plus counters the stage wants to report (the
// allocator counts intervals produced and spill slots used).
package profile

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Stat is one named pass's timing and counters.
type Stat struct {
	Name     string
	Duration time.Duration
	Counters map[string]int64
}

// Profiler accumulates Stat entries across one allocate() run.
type Profiler struct {
	mu      sync.Mutex
	enabled bool
	stats   []Stat
	start   map[string]time.Time
	counts  map[string]map[string]int64
}

func New(enabled bool) *Profiler {
	return &Profiler{
		enabled: enabled,
		start:   make(map[string]time.Time),
		counts:  make(map[string]map[string]int64),
	}
}

// Begin marks the start of a named pass; pair with End.
func (p *Profiler) Begin(name string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start[name] = time.Now()
	if p.counts[name] == nil {
		p.counts[name] = make(map[string]int64)
	}
}

// Count increments a named counter within the named pass.
func (p *Profiler) Count(pass, counter string, delta int64) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts[pass] == nil {
		p.counts[pass] = make(map[string]int64)
	}
	p.counts[pass][counter] += delta
}

// End closes out a pass started with Begin and records its Stat.
func (p *Profiler) End(name string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	started, ok := p.start[name]
	if !ok {
		return
	}
	p.stats = append(p.stats, Stat{
		Name:     name,
		Duration: time.Since(started),
		Counters: p.counts[name],
	})
	delete(p.start, name)
}

// Stats returns every recorded pass, sorted slowest-first.
func (p *Profiler) Stats() []Stat {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Stat, len(p.stats))
	copy(out, p.stats)
	sort.Slice(out, func(i, j int) bool { return out[i].Duration > out[j].Duration })
	return out
}

// Report writes a plain-text summary to w.
func (p *Profiler) Report(w io.Writer) error {
	for _, s := range p.Stats() {
		if _, err := fmt.Fprintf(w, "%-16s %v", s.Name, s.Duration); err != nil {
			return err
		}
		for k, v := range s.Counters {
			if _, err := fmt.Fprintf(w, "  %s=%d", k, v); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
