package library

import "errors"

var (
	// ErrInvalidConfig is returned for configuration the generator cannot run with.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrMissingFaker means no fake-data provider was supplied.
	ErrMissingFaker = errors.New("fake-data provider missing")

	// ErrUniquenessExhausted means a unique value could not be produced within the retry budget.
	ErrUniquenessExhausted = errors.New("unique value generation exhausted")

	// ErrSeedMismatch means a kept store holds rows generated from another seed.
	ErrSeedMismatch = errors.New("stored data comes from a different seed")

	// ErrInvariantViolation signals a generator bug, e.g. lending a book twice.
	ErrInvariantViolation = errors.New("generator invariant violated")
)
