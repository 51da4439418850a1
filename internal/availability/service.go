package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/therapymatch/internal/calendar"
	"github.com/wolfman30/therapymatch/internal/interval"
	"github.com/wolfman30/therapymatch/internal/observability/metrics"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

var availabilityTracer = otel.Tracer("therapymatch.internal.availability")

// ProviderSchedule is the slice of a provider profile needed to compute slots.
type ProviderSchedule struct {
	ProviderID string
	Template   WeeklyTemplate
	Calendar   *calendar.Ref
	Timezone   string
}

// ProviderLookup loads provider schedules. Unknown ids must yield an error
// matching ErrNotFound via errors.Is.
type ProviderLookup interface {
	GetProviderSchedule(ctx context.Context, providerID string) (ProviderSchedule, error)
}

// CalendarReader fetches busy intervals from an external calendar.
type CalendarReader interface {
	GetBusyIntervals(ctx context.Context, ref calendar.Ref, start, end time.Time) ([]interval.Interval, error)
}

// Service computes bookable slots per provider. It keeps no mutable state
// and is safe for concurrent use. Results are snapshots, not reservations:
// booking flows must re-check with IsSlotAvailable right before committing.
type Service struct {
	providers ProviderLookup
	calendars CalendarReader
	metrics   *metrics.EngineMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the source of "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics attaches engine metrics.
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs an availability service. calendars may be nil, in
// which case every provider uses its static schedule.
func NewService(providers ProviderLookup, calendars CalendarReader, logger *logging.Logger, opts ...Option) *Service {
	if providers == nil {
		panic("availability: provider lookup required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		providers: providers,
		calendars: calendars,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAvailableSlots returns the provider's bookable slots between the dates
// of rangeStart and rangeEnd, inclusive, ordered by start time. Dates are
// civil dates in the provider's timezone. Calendar
// failures degrade to the static schedule. Only lookup errors are returned.
func (s *Service) GetAvailableSlots(ctx context.Context, providerID string, rangeStart, rangeEnd time.Time) ([]Slot, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.get_slots",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("therapymatch.provider_id", providerID),
			attribute.String("therapymatch.range_start", rangeStart.Format(time.DateOnly)),
			attribute.String("therapymatch.range_end", rangeEnd.Format(time.DateOnly)),
		),
	)
	defer span.End()

	schedule, err := s.providers.GetProviderSchedule(ctx, providerID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("availability: load provider %s: %w", providerID, err)
	}

	if schedule.ProviderID == "" {
		schedule.ProviderID = providerID
	}
	if rangeStart.After(rangeEnd) {
		return []Slot{}, nil
	}

	now := s.now()
	loc := resolveLocation(schedule.Timezone)
	candidates := Expand(schedule.ProviderID, schedule.Template, rangeStart, rangeEnd, SessionDuration, now, loc)

	busy := s.busyIntervals(ctx, schedule, rangeStart, rangeEnd, loc)
	span.SetAttributes(attribute.Bool("therapymatch.calendar_fallback", busy.Failed()))

	slots := Collect(Reconcile(candidates, busy))
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	s.metrics.ObserveSlotsReturned(len(slots))
	return slots, nil
}

// IsSlotAvailable re-validates a single start time against fresh availability.
// Calendar caches are bypassed. The date window spans two days either side,
// which covers any pair of UTC offsets between start's zone and the provider's.
func (s *Service) IsSlotAvailable(ctx context.Context, providerID string, start time.Time) (bool, error) {
	ctx = calendar.WithFreshRead(ctx)
	slots, err := s.GetAvailableSlots(ctx, providerID, start.AddDate(0, 0, -2), start.AddDate(0, 0, 2))
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot.Start.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

// busyIntervals asks the calendar for the busy window covering the expanded
// date range. Providers without a calendar get an empty, successful result.
func (s *Service) busyIntervals(ctx context.Context, schedule ProviderSchedule, rangeStart, rangeEnd time.Time, loc *time.Location) BusyResult {
	if schedule.Calendar == nil || schedule.Calendar.IsZero() || s.calendars == nil {
		return BusyResult{}
	}
	windowStart := dateOf(rangeStart, loc)
	windowEnd := dateOf(rangeEnd, loc).AddDate(0, 0, 1).Add(SessionDuration)

	intervals, err := s.calendars.GetBusyIntervals(ctx, *schedule.Calendar, windowStart, windowEnd)
	if err != nil {
		s.logger.Warn("calendar lookup failed; serving static schedule",
			"provider_id", schedule.ProviderID,
			"calendar", schedule.Calendar.String(),
			"error", err,
		)
		s.metrics.ObserveCalendarFallback(schedule.Calendar.Kind)
		return BusyResult{Err: err}
	}
	return BusyResult{Intervals: intervals}
}

func resolveLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
