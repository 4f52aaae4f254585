package probelog_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailprobe/mailprobe/internal/probelog"
	"github.com/mailprobe/mailprobe/types"
)

func testThresholds() probelog.Thresholds {
	return probelog.Thresholds{RotationThreshold: 0.5, MinSampleSize: 2}
}

func entryAt(ts time.Time, host string, status types.Outcome) probelog.Entry {
	return probelog.Entry{
		Timestamp:      ts,
		Email:          "user@example.com",
		Domain:         "example.com",
		MXHost:         host,
		Status:         status,
		Attempts:       1,
		ResponseTimeMS: 12.5,
		Success:        status.Success(),
	}
}

func TestWriter_AppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.jsonl")
	w, err := probelog.Open(path)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, w.Append(entryAt(now.Add(-2*time.Hour), "old.example.com", types.OutcomeValid)))
	require.NoError(t, w.Append(entryAt(now, "mx.example.com", types.OutcomeValid)))
	require.NoError(t, w.Append(entryAt(now, "mx.example.com", types.OutcomeMailboxNotFound)))
	require.NoError(t, w.Close())

	stats, err := probelog.Replay(path, now.Add(-time.Hour), testThresholds())
	require.NoError(t, err)

	// The two-hour-old entry falls outside the window.
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Successes)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	require.Len(t, stats.Hosts, 1)
	assert.Equal(t, "mx.example.com", stats.Hosts[0].Host)
	assert.Equal(t, 2, stats.Hosts[0].Total)
	assert.InDelta(t, 12.5, stats.Hosts[0].AvgLatencyMS, 1e-9)
}

func TestReplay_RotationFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.jsonl")
	w, err := probelog.Open(path)
	require.NoError(t, err)

	now := time.Now().UTC()
	// bad host: all timeouts; good host: all accepted.
	for i := 0; i < 4; i++ {
		require.NoError(t, w.Append(entryAt(now, "bad.example.com", types.OutcomeTimeout)))
		require.NoError(t, w.Append(entryAt(now, "good.example.com", types.OutcomeValid)))
	}
	// sparse host: failing but below the sample floor.
	require.NoError(t, w.Append(entryAt(now, "sparse.example.com", types.OutcomeMailboxNotFound)))
	require.NoError(t, w.Close())

	stats, err := probelog.Replay(path, now.Add(-time.Minute), testThresholds())
	require.NoError(t, err)

	assert.Equal(t, []string{"bad.example.com"}, stats.Rotations)
	for _, h := range stats.Hosts {
		assert.Equal(t, h.Host == "bad.example.com", h.NeedsRotation, h.Host)
	}
}

func TestReplay_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.jsonl")
	w, err := probelog.Open(path)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, w.Append(entryAt(now, "mx.example.com", types.OutcomeValid)))
	require.NoError(t, w.Close())

	// Simulate a torn final write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"timestamp":"2026-`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	stats, err := probelog.Replay(path, now.Add(-time.Minute), testThresholds())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestReplay_MissingFile(t *testing.T) {
	stats, err := probelog.Replay(filepath.Join(t.TempDir(), "nope.jsonl"), time.Now(), testThresholds())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Empty(t, stats.Hosts)
}
