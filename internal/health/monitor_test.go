package health_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mailprobe/mailprobe/internal/health"
	"github.com/mailprobe/mailprobe/types"
)

func TestMonitor_NoRotationBelowMinimumSample(t *testing.T) {
	m := health.NewMonitor(0.5, 10, nil)

	// 9 straight failures: still below the sample floor.
	for i := 0; i < 9; i++ {
		m.RecordCheck("mx.example.com", false, 10*time.Millisecond, types.FailTimeout)
	}
	assert.False(t, m.NeedsRotation("mx.example.com"))
}

func TestMonitor_RotationOnLowSuccessRate(t *testing.T) {
	m := health.NewMonitor(0.5, 10, nil)

	for i := 0; i < 4; i++ {
		m.RecordCheck("mx.example.com", true, time.Millisecond, "")
	}
	for i := 0; i < 6; i++ {
		m.RecordCheck("mx.example.com", false, time.Millisecond, types.FailOther)
	}
	assert.True(t, m.NeedsRotation("mx.example.com"))
}

func TestMonitor_RotationOnTimeoutRate(t *testing.T) {
	m := health.NewMonitor(0.5, 10, nil)

	// 60% success clears the threshold, but 40% timeouts does not.
	for i := 0; i < 6; i++ {
		m.RecordCheck("mx.example.com", true, time.Millisecond, "")
	}
	for i := 0; i < 4; i++ {
		m.RecordCheck("mx.example.com", false, time.Millisecond, types.FailTimeout)
	}
	assert.True(t, m.NeedsRotation("mx.example.com"))
}

func TestMonitor_HealthyHostStays(t *testing.T) {
	m := health.NewMonitor(0.5, 10, nil)

	for i := 0; i < 12; i++ {
		m.RecordCheck("mx.example.com", true, time.Millisecond, "")
	}
	assert.False(t, m.NeedsRotation("mx.example.com"))
}

func TestMonitor_UnknownHost(t *testing.T) {
	m := health.NewMonitor(0.5, 10, nil)
	assert.False(t, m.NeedsRotation("never-seen.example.com"))
}

func TestMonitor_SummaryRankedByVolume(t *testing.T) {
	m := health.NewMonitor(0.5, 10, nil)

	m.RecordCheck("small.example.com", true, 10*time.Millisecond, "")
	for i := 0; i < 3; i++ {
		m.RecordCheck("big.example.com", i%2 == 0, 20*time.Millisecond, types.FailRefused)
	}

	sum := m.Summary()
	assert.Len(t, sum, 2)
	assert.Equal(t, "big.example.com", sum[0].Host)
	assert.Equal(t, 3, sum[0].Total)
	assert.Equal(t, 2, sum[0].Successes)
	assert.Equal(t, 1, sum[0].Refusals)
	assert.InDelta(t, 2.0/3.0, sum[0].SuccessRate, 1e-9)
	assert.InDelta(t, 20.0, sum[0].AvgLatencyMS, 1e-9)
	assert.False(t, sum[0].NeedsRotation)
	assert.NotEmpty(t, sum[0].LastChecked)

	assert.Equal(t, "small.example.com", sum[1].Host)
	assert.Equal(t, 1.0, sum[1].SuccessRate)
}

func TestMonitor_ConcurrentRecorders(t *testing.T) {
	m := health.NewMonitor(0.5, 10, nil)

	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				m.RecordCheck("mx.example.com", g%2 == 0, time.Millisecond, types.FailTimeout)
			}
		}(g)
	}
	wg.Wait()

	sum := m.Summary()
	assert.Len(t, sum, 1)
	assert.Equal(t, 1000, sum[0].Total)
	assert.Equal(t, 500, sum[0].Successes)
	assert.Equal(t, 500, sum[0].Timeouts)
}
