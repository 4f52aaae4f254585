package mailprobe

import "errors"

var (
	// ErrMissingIdentity is returned by New when Config lacks the
	// HeloDomain or MailFrom every probe must announce.
	ErrMissingIdentity = errors.New("mailprobe: Config requires HeloDomain and MailFrom")

	// ErrEmptyBatch is returned by VerifyBatch for a batch with no
	// addresses.
	ErrEmptyBatch = errors.New("mailprobe: batch contains no addresses")

	// ErrBatchTooLarge is returned by VerifyBatch before any network
	// activity when the batch exceeds Config.MaxBatchSize.
	ErrBatchTooLarge = errors.New("mailprobe: batch exceeds maximum size")
)
