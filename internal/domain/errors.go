package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded marks an upstream-model usage allowance being
	// exhausted. It is fatal to the remaining batch and never retried.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrProviderFailure marks a transient upstream failure. Agents retry
	// it with backoff; the batch never sees it if a retry succeeds.
	ErrProviderFailure = errors.New("provider failure")

	// ErrMalformedOutput marks model output that does not match the
	// expected concept schema. Distinct from transient failure.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrMalformedInput marks a stage receiving data that does not match
	// the shape it declared. Stages fail fast with this instead of
	// defaulting to an empty result.
	ErrMalformedInput = errors.New("malformed stage input")

	// ErrInvalidTransition marks an attempt to move a state machine out
	// of a terminal state or along an undeclared edge.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrStorageFailure marks a durable write (image upload or row
	// update) failing for one recipe.
	ErrStorageFailure = errors.New("storage failure")
)
