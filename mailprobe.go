// Package mailprobe determines, without relying on a third-party
// verification API, whether an email address plausibly exists, by
// performing protocol-level checks against the destination mail
// server: syntax filtering, MX resolution, a direct SMTP handshake
// with bounded retry, global rate limiting, concurrency-bounded batch
// execution and per-host health tracking.
//
// Basic usage:
//
//	v, err := mailprobe.New(mailprobe.Config{
//	    HeloDomain: "myapp.com",
//	    MailFrom:   "verify@myapp.com",
//	})
//	if err != nil {
//	    // ...
//	}
//	defer v.Close()
//
//	records, err := v.VerifyBatch(ctx, []string{"user@example.com"})
//
// Providers that accept all recipients make definitive answers
// impossible; addresses at such domains classify as CatchAll without
// a handshake.
package mailprobe

import "github.com/mailprobe/mailprobe/types"

// Record is a re-export from the types package so that consumers
// don't need to import the types package directly.
type Record = types.Record

// Outcome is a re-export.
type Outcome = types.Outcome

// Outcome constants re-exported.
const (
	OutcomeValid             = types.OutcomeValid
	OutcomeInvalidSyntax     = types.OutcomeInvalidSyntax
	OutcomeNoMX              = types.OutcomeNoMX
	OutcomeMailboxNotFound   = types.OutcomeMailboxNotFound
	OutcomeCatchAll          = types.OutcomeCatchAll
	OutcomeConnectionRefused = types.OutcomeConnectionRefused
	OutcomeTimeout           = types.OutcomeTimeout
	OutcomeSMTPError         = types.OutcomeSMTPError
	OutcomeGreylisted        = types.OutcomeGreylisted
	OutcomeServerUnavailable = types.OutcomeServerUnavailable
)
