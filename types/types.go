// Package types contains the shared types for mailprobe.
// This package does not import anything from other mailprobe packages
// to avoid circular imports.
package types

// Outcome is the classification of one completed validation.
// Exactly one outcome applies per validated address; there is no
// pending state.
type Outcome string

const (
	OutcomeValid             Outcome = "Valid"
	OutcomeInvalidSyntax     Outcome = "InvalidSyntax"
	OutcomeNoMX              Outcome = "NoMX"
	OutcomeMailboxNotFound   Outcome = "MailboxNotFound"
	OutcomeCatchAll          Outcome = "CatchAll"
	OutcomeConnectionRefused Outcome = "ConnectionRefused"
	OutcomeTimeout           Outcome = "Timeout"
	OutcomeSMTPError         Outcome = "SMTPError"
	OutcomeGreylisted        Outcome = "Greylisted"
	OutcomeServerUnavailable Outcome = "ServerUnavailable"
)

// Retryable reports whether a probe that ended in this outcome may be
// attempted again within the same validation call. Only transient
// transport failures qualify; a definitive protocol verdict (250, 4xx
// greylist, 5xx rejection) cannot change by asking again.
func (o Outcome) Retryable() bool {
	return o == OutcomeTimeout || o == OutcomeConnectionRefused
}

// Success reports whether the outcome counts as a success for
// host-health accounting. CatchAll counts: the host answered and the
// classification is final, even though existence stays unknown.
func (o Outcome) Success() bool {
	return o == OutcomeValid || o == OutcomeCatchAll
}

// FailureKind tags a monitor-recorded failure for the per-host
// breakdown.
type FailureKind string

const (
	FailTimeout FailureKind = "timeout"
	FailRefused FailureKind = "refused"
	FailOther   FailureKind = "other"
)

// KindOf maps an outcome to its failure subtype. Successful outcomes
// map to the empty kind.
func KindOf(o Outcome) FailureKind {
	switch o {
	case OutcomeValid, OutcomeCatchAll:
		return ""
	case OutcomeTimeout:
		return FailTimeout
	case OutcomeConnectionRefused:
		return FailRefused
	default:
		return FailOther
	}
}

// Record is the immutable result for one input address, produced
// exactly once per address in a batch.
//
// MXHost is empty only when classification happened before MX
// resolution (InvalidSyntax) or resolution yielded nothing (NoMX).
// Attempts is always at least 1.
type Record struct {
	Email          string  `json:"email"`
	Status         Outcome `json:"status"`
	Valid          bool    `json:"valid"`
	Details        string  `json:"details"`
	MXHost         string  `json:"mx_host"`
	Attempts       int     `json:"attempts"`
	ResponseTimeMS float64 `json:"response_time_ms"`
}

// MX is one mail-exchange record: a host and its priority (lower is
// preferred). A resolved slice is valid only for the duration of one
// resolution call and is never cached.
type MX struct {
	Pref uint16 `json:"pref"`
	Host string `json:"host"`
}
