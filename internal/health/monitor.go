// Package health aggregates per-MX-host probe outcomes and answers
// whether a host has become unreliable enough to rotate away from.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mailprobe/mailprobe/types"
)

// hostHealth is the mutable per-host aggregate. Counts only ever grow
// for the lifetime of the owning Monitor.
type hostHealth struct {
	total       int
	successes   int
	timeouts    int
	refusals    int
	latency     time.Duration
	lastChecked time.Time
}

// HostStats is a read-only snapshot of one host's aggregate.
type HostStats struct {
	Host          string  `json:"host"`
	Total         int     `json:"total"`
	Successes     int     `json:"successes"`
	Timeouts      int     `json:"timeouts"`
	Refusals      int     `json:"refusals"`
	SuccessRate   float64 `json:"success_rate"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
	NeedsRotation bool    `json:"needs_rotation"`
	LastChecked   string  `json:"last_checked"`
}

// Monitor owns all per-host aggregates; no other component mutates
// them. It is safe for concurrent recorders. A Monitor belongs to
// whoever runs a batch — it is deliberately not a package singleton,
// and durability across processes comes from the probe log, not from
// this in-memory state.
type Monitor struct {
	mu        sync.Mutex
	hosts     map[string]*hostHealth
	threshold float64
	minSample int
	clk       clock.Clock
}

// timeoutRateCeiling is the timeout share above which a host is
// rotated even when its overall success rate still clears the
// threshold.
const timeoutRateCeiling = 0.3

// NewMonitor creates a monitor. threshold is the minimum acceptable
// success rate, minSample the number of recorded checks below which
// rotation is never suggested (avoids flapping on sparse early data).
func NewMonitor(threshold float64, minSample int, clk clock.Clock) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{
		hosts:     make(map[string]*hostHealth),
		threshold: threshold,
		minSample: minSample,
		clk:       clk,
	}
}

// RecordCheck folds one completed check into the host's aggregate.
// Safe to call from concurrent pipelines.
func (m *Monitor) RecordCheck(host string, success bool, latency time.Duration, kind types.FailureKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hosts[host]
	if !ok {
		h = &hostHealth{}
		m.hosts[host] = h
	}
	h.total++
	h.latency += latency
	h.lastChecked = m.clk.Now()
	if success {
		h.successes++
		return
	}
	switch kind {
	case types.FailTimeout:
		h.timeouts++
	case types.FailRefused:
		h.refusals++
	}
}

// NeedsRotation reports whether the host's observed reliability calls
// for rotating to a different probing source. Always false below the
// minimum sample size.
func (m *Monitor) NeedsRotation(host string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hosts[host]
	if !ok {
		return false
	}
	return m.needsRotation(h)
}

func (m *Monitor) needsRotation(h *hostHealth) bool {
	if h.total < m.minSample {
		return false
	}
	successRate := float64(h.successes) / float64(h.total)
	timeoutRate := float64(h.timeouts) / float64(h.total)
	return successRate < m.threshold || timeoutRate > timeoutRateCeiling
}

// Summary snapshots every tracked host, ranked by check volume. The
// snapshot may be slightly stale relative to concurrent recorders.
func (m *Monitor) Summary() []HostStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]HostStats, 0, len(m.hosts))
	for host, h := range m.hosts {
		s := HostStats{
			Host:          host,
			Total:         h.total,
			Successes:     h.successes,
			Timeouts:      h.timeouts,
			Refusals:      h.refusals,
			NeedsRotation: m.needsRotation(h),
		}
		if h.total > 0 {
			s.SuccessRate = float64(h.successes) / float64(h.total)
			s.AvgLatencyMS = float64(h.latency.Milliseconds()) / float64(h.total)
		}
		if !h.lastChecked.IsZero() {
			s.LastChecked = h.lastChecked.UTC().Format(time.RFC3339)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Host < out[j].Host
	})
	return out
}
