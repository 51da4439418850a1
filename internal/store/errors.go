// Package store persists providers, requesters and matches.
package store

import (
	"errors"
	"fmt"

	"github.com/wolfman30/therapymatch/internal/availability"
	"github.com/wolfman30/therapymatch/internal/matching"
)

// ErrNotFound is returned when a provider or requester does not exist.
var ErrNotFound = errors.New("store: not found")

// notFoundError also satisfies the not-found sentinel of the package that
// consumes the lookup, so services can test with their own errors.Is.
type notFoundError struct {
	entity string
	id     string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("store: %s %q not found", e.entity, e.id)
}

func (e *notFoundError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return true
	case availability.ErrNotFound:
		return e.entity == entityProvider
	case matching.ErrNotFound:
		return e.entity == entityRequester
	}
	return false
}

const (
	entityProvider  = "provider"
	entityRequester = "requester"
)

func providerNotFound(id string) error  { return &notFoundError{entity: entityProvider, id: id} }
func requesterNotFound(id string) error { return &notFoundError{entity: entityRequester, id: id} }
