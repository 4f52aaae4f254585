package mailprobe

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mailprobe/mailprobe/check"
)

// Config enumerates every recognized option of the engine. Zero
// values for optional fields are replaced by the documented defaults;
// HeloDomain and MailFrom are required because every probe announces
// them to a remote server.
type Config struct {
	// HeloDomain is the domain sent in the EHLO/HELO command. Required.
	HeloDomain string
	// MailFrom is the address sent in the MAIL FROM command. Required.
	MailFrom string

	// Timeout bounds the TCP connect and each read/write of one probe
	// session. Default: 5s.
	Timeout time.Duration
	// MaxRetries is the total attempt budget per address, including
	// the first attempt. Default: 3.
	MaxRetries int
	// RetryDelayBase is the base of the exponential backoff between
	// attempts: base × 2^(attempt−1). Default: 1s.
	RetryDelayBase time.Duration
	// MaxConcurrent caps simultaneously active pipelines, not just
	// open sockets. Default: 5.
	MaxConcurrent int
	// RateLimitDelay is the fixed spacing enforced between handshake
	// attempts globally, additive to the concurrency cap. Set
	// negative to disable. Default: 2s.
	RateLimitDelay time.Duration
	// CatchAllDomains lists providers that accept any recipient.
	// Default: check.DefaultCatchAllDomains.
	CatchAllDomains []string
	// RotationThreshold is the success rate below which a host is
	// flagged for rotation. Default: 0.5.
	RotationThreshold float64
	// MinSampleSize is the check count below which rotation is never
	// suggested. Default: 10.
	MinSampleSize int
	// MaxBatchSize rejects oversized batches before any network
	// activity. Default: 100.
	MaxBatchSize int
	// Port is the SMTP port. Default: "25".
	Port string
	// ProbeLog is the path of the append-only JSONL probe log. Empty
	// disables logging (and windowed Stats replay).
	ProbeLog string

	// Logger receives structured operational logs. Default: the
	// standard logrus logger.
	Logger *logrus.Logger
	// Resolver overrides the DNS collaborator. Default: a resolver
	// over the system nameservers.
	Resolver check.Resolver
	// Dial overrides the TCP transport collaborator. Default:
	// net.DialTimeout.
	Dial check.DialFunc
	// Clock overrides the time source for backoff, throttling and
	// timestamps. Default: the wall clock.
	Clock clock.Clock
}

// DefaultConfig returns a Config with every optional field set to its
// default. HeloDomain and MailFrom remain empty and must be filled by
// the caller.
func DefaultConfig() Config {
	return Config{
		Timeout:           5 * time.Second,
		MaxRetries:        3,
		RetryDelayBase:    time.Second,
		MaxConcurrent:     5,
		RateLimitDelay:    2 * time.Second,
		CatchAllDomains:   check.DefaultCatchAllDomains,
		RotationThreshold: 0.5,
		MinSampleSize:     10,
		MaxBatchSize:      100,
		Port:              "25",
	}
}

// withDefaults fills unset optional fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RetryDelayBase == 0 {
		c.RetryDelayBase = def.RetryDelayBase
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = def.MaxConcurrent
	}
	if c.RateLimitDelay == 0 {
		c.RateLimitDelay = def.RateLimitDelay
	}
	if c.CatchAllDomains == nil {
		c.CatchAllDomains = def.CatchAllDomains
	}
	if c.RotationThreshold == 0 {
		c.RotationThreshold = def.RotationThreshold
	}
	if c.MinSampleSize == 0 {
		c.MinSampleSize = def.MinSampleSize
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = def.MaxBatchSize
	}
	if c.Port == "" {
		c.Port = def.Port
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

// ConfigFromEnv builds a Config from MAILPROBE_* environment
// variables, loading a .env file first when one exists. Unset
// variables keep their defaults.
func ConfigFromEnv() Config {
	_ = godotenv.Load()

	c := DefaultConfig()
	c.HeloDomain = envStr("MAILPROBE_HELO_DOMAIN", c.HeloDomain)
	c.MailFrom = envStr("MAILPROBE_MAIL_FROM", c.MailFrom)
	c.Timeout = envDuration("MAILPROBE_TIMEOUT", c.Timeout)
	c.MaxRetries = envInt("MAILPROBE_MAX_RETRIES", c.MaxRetries)
	c.RetryDelayBase = envDuration("MAILPROBE_RETRY_DELAY_BASE", c.RetryDelayBase)
	c.MaxConcurrent = envInt("MAILPROBE_MAX_CONCURRENT", c.MaxConcurrent)
	c.RateLimitDelay = envDuration("MAILPROBE_RATE_LIMIT_DELAY", c.RateLimitDelay)
	c.RotationThreshold = envFloat("MAILPROBE_ROTATION_THRESHOLD", c.RotationThreshold)
	c.MinSampleSize = envInt("MAILPROBE_MIN_SAMPLE_SIZE", c.MinSampleSize)
	c.MaxBatchSize = envInt("MAILPROBE_MAX_BATCH_SIZE", c.MaxBatchSize)
	c.Port = envStr("MAILPROBE_SMTP_PORT", c.Port)
	c.ProbeLog = envStr("MAILPROBE_PROBE_LOG", c.ProbeLog)
	if v := os.Getenv("MAILPROBE_CATCH_ALL_DOMAINS"); v != "" {
		var domains []string
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				domains = append(domains, d)
			}
		}
		c.CatchAllDomains = domains
	}
	return c
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
