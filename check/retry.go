package check

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/mailprobe/mailprobe/internal/throttle"
	"github.com/mailprobe/mailprobe/types"
)

// Prober runs one handshake attempt. *Probe is the production
// implementation.
type Prober interface {
	Run(mxHost, email string) Attempt
}

// AttemptFunc observes one completed handshake attempt. Used to feed
// the append-only probe log.
type AttemptFunc func(attempt int, att Attempt, latency time.Duration)

// RetryResult is the terminal classification of a full retry loop.
type RetryResult struct {
	Outcome  types.Outcome
	Code     int
	Detail   string
	Attempts int
	// Kind tags the failure for host-health breakdown. On exhaustion
	// it reflects the last raw symptom (timeout/refused), even though
	// the outcome reported upward is ServerUnavailable.
	Kind types.FailureKind
}

// Retrier wraps a Prober with bounded retry and exponential backoff.
// Only transient transport failures are retried; definitive protocol
// verdicts return on the first attempt. The retry decision consults
// Outcome.Retryable, never the shape of an error value.
type Retrier struct {
	probe       Prober
	gate        *throttle.Gate
	maxAttempts int
	base        time.Duration
	clk         clock.Clock
	log         *logrus.Logger
}

// NewRetrier builds a retrier. maxAttempts below 1 is treated as 1; a
// nil clock defaults to the wall clock; a nil gate disables
// throttling.
func NewRetrier(probe Prober, gate *throttle.Gate, maxAttempts int, base time.Duration, clk clock.Clock, log *logrus.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	if gate == nil {
		gate = throttle.New(0, clk)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Retrier{
		probe:       probe,
		gate:        gate,
		maxAttempts: maxAttempts,
		base:        base,
		clk:         clk,
		log:         log,
	}
}

// Run probes mxHost for email until a terminal outcome or the attempt
// budget runs out. Before each attempt it waits for a throttle slot;
// before each retry it sleeps base × 2^(attempt−1). When the budget
// is exhausted without a resolved outcome, the classification is
// ServerUnavailable — "retries exhausted", not the last raw symptom.
func (r *Retrier) Run(mxHost, email string, onAttempt AttemptFunc) RetryResult {
	var att Attempt
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		r.gate.Wait()

		start := r.clk.Now()
		att = r.probe.Run(mxHost, email)
		latency := r.clk.Since(start)

		if onAttempt != nil {
			onAttempt(attempt, att, latency)
		}

		if !att.Outcome.Retryable() {
			return RetryResult{
				Outcome:  att.Outcome,
				Code:     att.Code,
				Detail:   att.Detail,
				Attempts: attempt,
				Kind:     types.KindOf(att.Outcome),
			}
		}

		if attempt < r.maxAttempts {
			delay := r.base * time.Duration(1<<(attempt-1))
			r.log.WithFields(logrus.Fields{
				"mx_host": mxHost,
				"email":   email,
				"attempt": attempt,
				"outcome": att.Outcome,
				"delay":   delay,
			}).Debug("transient failure, backing off")
			r.clk.Sleep(delay)
		}
	}

	return RetryResult{
		Outcome:  types.OutcomeServerUnavailable,
		Detail:   fmt.Sprintf("retries exhausted after %d attempts; last failure: %s", r.maxAttempts, att.Detail),
		Attempts: r.maxAttempts,
		Kind:     types.KindOf(att.Outcome),
	}
}
