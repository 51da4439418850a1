package matching

import "errors"

var (
	// ErrNotFound is returned when the requester does not exist.
	ErrNotFound = errors.New("matching: requester not found")

	// ErrMalformedResponse is returned when the oracle's reply fails validation.
	ErrMalformedResponse = errors.New("matching: malformed oracle response")
)
