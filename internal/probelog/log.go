// Package probelog is the durable monitoring substrate: an
// append-only, line-delimited JSON log with one entry per completed
// probe attempt, plus a replay pass that re-derives aggregate
// statistics for a trailing time window purely from the file. No
// running process's in-memory state is consulted during replay.
package probelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mailprobe/mailprobe/types"
)

// Entry is one logged probe attempt (or catch-all short-circuit).
type Entry struct {
	Timestamp      time.Time     `json:"timestamp"`
	Email          string        `json:"email"`
	Domain         string        `json:"domain"`
	MXHost         string        `json:"mx_host"`
	Status         types.Outcome `json:"status"`
	Attempts       int           `json:"attempts"`
	ResponseTimeMS float64       `json:"response_time_ms"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
}

// Writer appends entries to the log file. Safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// Open opens (creating if needed) the log file for appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open probe log: %w", err)
	}
	return &Writer{f: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one entry as a single JSON line.
func (w *Writer) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(e)
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// Thresholds mirrors the rotation policy applied during replay.
type Thresholds struct {
	RotationThreshold float64
	MinSampleSize     int
}

// replayTimeoutCeiling matches the live monitor's timeout-rate bound.
const replayTimeoutCeiling = 0.3

// HostWindow is one host's aggregate over the replayed window.
type HostWindow struct {
	Host          string  `json:"host"`
	Total         int     `json:"total"`
	Successes     int     `json:"successes"`
	Timeouts      int     `json:"timeouts"`
	SuccessRate   float64 `json:"success_rate"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
	NeedsRotation bool    `json:"needs_rotation"`
}

// WindowStats is the replayed aggregate for a trailing window.
type WindowStats struct {
	Since       time.Time    `json:"since"`
	Total       int          `json:"total"`
	Successes   int          `json:"successes"`
	SuccessRate float64      `json:"success_rate"`
	Hosts       []HostWindow `json:"hosts"`
	Rotations   []string     `json:"rotations"`
}

// Replay reads the log and aggregates every entry newer than since.
// A missing file yields empty stats: no probes have been logged yet.
// Malformed lines (e.g. a torn final write) are skipped.
func Replay(path string, since time.Time, th Thresholds) (WindowStats, error) {
	stats := WindowStats{Since: since}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("open probe log: %w", err)
	}
	defer f.Close()

	type acc struct {
		total     int
		successes int
		timeouts  int
		latencyMS float64
	}
	hosts := make(map[string]*acc)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		if !e.Timestamp.After(since) {
			continue
		}

		stats.Total++
		if e.Success {
			stats.Successes++
		}
		if e.MXHost == "" {
			continue
		}
		a, ok := hosts[e.MXHost]
		if !ok {
			a = &acc{}
			hosts[e.MXHost] = a
		}
		a.total++
		a.latencyMS += e.ResponseTimeMS
		if e.Success {
			a.successes++
		} else if e.Status == types.OutcomeTimeout {
			a.timeouts++
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("scan probe log: %w", err)
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successes) / float64(stats.Total)
	}
	for host, a := range hosts {
		hw := HostWindow{
			Host:        host,
			Total:       a.total,
			Successes:   a.successes,
			Timeouts:    a.timeouts,
			SuccessRate: float64(a.successes) / float64(a.total),
		}
		hw.AvgLatencyMS = a.latencyMS / float64(a.total)
		if a.total >= th.MinSampleSize {
			timeoutRate := float64(a.timeouts) / float64(a.total)
			hw.NeedsRotation = hw.SuccessRate < th.RotationThreshold || timeoutRate > replayTimeoutCeiling
		}
		if hw.NeedsRotation {
			stats.Rotations = append(stats.Rotations, host)
		}
		stats.Hosts = append(stats.Hosts, hw)
	}
	sort.Slice(stats.Hosts, func(i, j int) bool {
		if stats.Hosts[i].Total != stats.Hosts[j].Total {
			return stats.Hosts[i].Total > stats.Hosts[j].Total
		}
		return stats.Hosts[i].Host < stats.Hosts[j].Host
	})
	sort.Strings(stats.Rotations)
	return stats, nil
}
