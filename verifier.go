package mailprobe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/mailprobe/mailprobe/check"
	"github.com/mailprobe/mailprobe/internal/health"
	"github.com/mailprobe/mailprobe/internal/probelog"
	"github.com/mailprobe/mailprobe/internal/throttle"
	"github.com/mailprobe/mailprobe/types"
)

// Verifier drives the per-address pipeline (syntax filter → MX
// resolution → catch-all short-circuit or retried SMTP probe) across
// batches of addresses under a bounded permit pool. Each Verifier
// owns its own health monitor; cross-process durability comes only
// from the probe log.
//
// Call Close when done to release the probe log.
type Verifier struct {
	cfg      Config
	syntax   *check.SyntaxFilter
	mx       *check.MXLookup
	catchAll *check.CatchAll
	retrier  *check.Retrier
	monitor  *health.Monitor
	sem      *semaphore.Weighted
	plog     *probelog.Writer
	clk      clock.Clock
	log      *logrus.Logger
}

// New creates a Verifier from the given configuration.
func New(cfg Config) (*Verifier, error) {
	if cfg.HeloDomain == "" || cfg.MailFrom == "" {
		return nil, ErrMissingIdentity
	}
	cfg = cfg.withDefaults()

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = check.NewDNSResolver(cfg.Timeout)
	}

	probe := check.NewProbe(check.ProbeConfig{
		HeloDomain: cfg.HeloDomain,
		MailFrom:   cfg.MailFrom,
		Port:       cfg.Port,
		Timeout:    cfg.Timeout,
	}, cfg.Dial, cfg.Logger)

	gate := throttle.New(cfg.RateLimitDelay, cfg.Clock)

	var plog *probelog.Writer
	if cfg.ProbeLog != "" {
		w, err := probelog.Open(cfg.ProbeLog)
		if err != nil {
			return nil, err
		}
		plog = w
	}

	return &Verifier{
		cfg:      cfg,
		syntax:   check.NewSyntaxFilter(),
		mx:       check.NewMXLookup(resolver, cfg.Logger),
		catchAll: check.NewCatchAll(cfg.CatchAllDomains),
		retrier:  check.NewRetrier(probe, gate, cfg.MaxRetries, cfg.RetryDelayBase, cfg.Clock, cfg.Logger),
		monitor:  health.NewMonitor(cfg.RotationThreshold, cfg.MinSampleSize, cfg.Clock),
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		plog:     plog,
		clk:      cfg.Clock,
		log:      cfg.Logger,
	}, nil
}

// Close releases resources held by the Verifier. Safe to call when no
// probe log is configured.
func (v *Verifier) Close() error {
	if v.plog != nil {
		return v.plog.Close()
	}
	return nil
}

// VerifyBatch validates the addresses concurrently and returns one
// record per address, positionally matching the input regardless of
// completion order. One address's failure never aborts or affects its
// siblings. The batch is rejected before any network activity when it
// is empty or exceeds MaxBatchSize.
func (v *Verifier) VerifyBatch(ctx context.Context, emails []string) ([]types.Record, error) {
	if len(emails) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(emails) > v.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(emails), v.cfg.MaxBatchSize)
	}

	v.log.WithField("count", len(emails)).Info("batch validation started")

	results := make([]types.Record, len(emails))
	var wg sync.WaitGroup
	for i, raw := range emails {
		wg.Add(1)
		go func(i int, raw string) {
			defer wg.Done()
			// The permit wraps the whole pipeline, retries and
			// backoff included, not just the network step.
			if err := v.sem.Acquire(ctx, 1); err != nil {
				results[i] = types.Record{
					Email:    check.Normalize(raw),
					Status:   types.OutcomeSMTPError,
					Details:  fmt.Sprintf("concurrency permit: %v", err),
					Attempts: 1,
				}
				return
			}
			defer v.sem.Release(1)
			results[i] = v.Verify(ctx, raw)
		}(i, raw)
	}
	wg.Wait()

	v.log.WithField("count", len(results)).Info("batch validation finished")
	return results, nil
}

// Verify runs the full pipeline for a single address. It never
// returns an error: every failure symptom, including an unexpected
// internal one, maps to a classification.
func (v *Verifier) Verify(ctx context.Context, raw string) (rec types.Record) {
	email := check.Normalize(raw)
	start := v.clk.Now()

	// Set once resolution picks an exchanger, so a late failure still
	// reports which host the pipeline was talking to.
	var mxHost string

	defer func() {
		if r := recover(); r != nil {
			v.log.WithFields(logrus.Fields{
				"email": email,
				"panic": r,
			}).Error("pipeline failure")
			rec = types.Record{
				Email:          email,
				Status:         types.OutcomeSMTPError,
				Details:        fmt.Sprintf("internal error: %v", r),
				MXHost:         mxHost,
				Attempts:       1,
				ResponseTimeMS: millis(v.clk.Since(start)),
			}
		}
	}()

	if !v.syntax.Valid(email) {
		return v.finish(types.Record{
			Email:    email,
			Status:   types.OutcomeInvalidSyntax,
			Details:  "address does not match the accepted grammar",
			Attempts: 1,
		}, start)
	}

	domain := check.Domain(email)
	records := v.mx.Resolve(ctx, domain)
	if len(records) == 0 {
		return v.finish(types.Record{
			Email:    email,
			Status:   types.OutcomeNoMX,
			Details:  "no mail exchangers known for domain",
			Attempts: 1,
		}, start)
	}
	// Only the preferred exchanger is probed; secondary hosts often
	// carry stricter anti-abuse policies.
	mxHost = records[0].Host

	if v.catchAll.Match(domain) {
		elapsed := v.clk.Since(start)
		v.monitor.RecordCheck(mxHost, true, elapsed, "")
		v.logAttempt(email, domain, mxHost, types.OutcomeCatchAll, 1, elapsed, "")
		return types.Record{
			Email:          email,
			Status:         types.OutcomeCatchAll,
			Details:        fmt.Sprintf("provider %s accepts any recipient; existence cannot be verified", domain),
			MXHost:         mxHost,
			Attempts:       1,
			ResponseTimeMS: millis(elapsed),
		}
	}

	res := v.retrier.Run(mxHost, email, func(attempt int, att check.Attempt, latency time.Duration) {
		detail := ""
		if !att.Outcome.Success() {
			detail = att.Detail
		}
		v.logAttempt(email, domain, mxHost, att.Outcome, attempt, latency, detail)
	})

	elapsed := v.clk.Since(start)
	v.monitor.RecordCheck(mxHost, res.Outcome.Success(), elapsed, res.Kind)

	return types.Record{
		Email:          email,
		Status:         res.Outcome,
		Valid:          res.Outcome == types.OutcomeValid,
		Details:        res.Detail,
		MXHost:         mxHost,
		Attempts:       res.Attempts,
		ResponseTimeMS: millis(elapsed),
	}
}

// HostSummary snapshots the in-process health aggregates, ranked by
// check volume.
func (v *Verifier) HostSummary() []health.HostStats {
	return v.monitor.Summary()
}

// NeedsRotation reports whether the host's observed reliability calls
// for rotating the probing source.
func (v *Verifier) NeedsRotation(host string) bool {
	return v.monitor.NeedsRotation(host)
}

// Stats replays the probe log and aggregates every attempt from the
// trailing window, independent of any in-memory state.
func (v *Verifier) Stats(trailingHours float64) (probelog.WindowStats, error) {
	since := v.clk.Now().Add(-time.Duration(trailingHours * float64(time.Hour)))
	return probelog.Replay(v.cfg.ProbeLog, since, probelog.Thresholds{
		RotationThreshold: v.cfg.RotationThreshold,
		MinSampleSize:     v.cfg.MinSampleSize,
	})
}

func (v *Verifier) logAttempt(email, domain, mxHost string, status types.Outcome, attempt int, latency time.Duration, errDetail string) {
	if v.plog == nil {
		return
	}
	err := v.plog.Append(probelog.Entry{
		Timestamp:      v.clk.Now().UTC(),
		Email:          email,
		Domain:         domain,
		MXHost:         mxHost,
		Status:         status,
		Attempts:       attempt,
		ResponseTimeMS: millis(latency),
		Success:        status.Success(),
		Error:          errDetail,
	})
	if err != nil {
		v.log.WithError(err).Warn("probe log append failed")
	}
}

func (v *Verifier) finish(rec types.Record, start time.Time) types.Record {
	rec.ResponseTimeMS = millis(v.clk.Since(start))
	return rec
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
