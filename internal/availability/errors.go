package availability

import "errors"

// ErrNotFound is returned when the provider does not exist.
var ErrNotFound = errors.New("availability: provider not found")
