// Package calendar reads busy intervals from external provider calendars.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/therapymatch/internal/interval"
)

// Supported calendar kinds.
const (
	KindFHIR   = "fhir"
	KindGoogle = "google"
)

// ErrRetrievalFailed wraps every network, auth, or decode failure of a calendar source.
var ErrRetrievalFailed = errors.New("calendar: busy interval retrieval failed")

// Ref points at one provider calendar in an external system.
type Ref struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool {
	return strings.TrimSpace(r.Kind) == "" && strings.TrimSpace(r.ID) == ""
}

func (r Ref) String() string {
	return r.Kind + ":" + r.ID
}

// Reader returns the busy intervals of a calendar within [start, end).
type Reader interface {
	GetBusyIntervals(ctx context.Context, ref Ref, start, end time.Time) ([]interval.Interval, error)
}

func retrievalError(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRetrievalFailed, source, err)
}

// Router dispatches to a Reader by Ref.Kind.
type Router struct {
	readers map[string]Reader
}

// NewRouter builds a router. Nil readers are skipped so unconfigured
// sources behave like unknown kinds.
func NewRouter(readers map[string]Reader) *Router {
	r := &Router{readers: make(map[string]Reader, len(readers))}
	for kind, reader := range readers {
		if reader == nil {
			continue
		}
		r.readers[strings.ToLower(strings.TrimSpace(kind))] = reader
	}
	return r
}

func (r *Router) GetBusyIntervals(ctx context.Context, ref Ref, start, end time.Time) ([]interval.Interval, error) {
	reader, ok := r.readers[strings.ToLower(strings.TrimSpace(ref.Kind))]
	if !ok {
		return nil, fmt.Errorf("%w: no reader configured for kind %q", ErrRetrievalFailed, ref.Kind)
	}
	return reader.GetBusyIntervals(ctx, ref, start, end)
}
