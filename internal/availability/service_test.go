package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch/internal/calendar"
	"github.com/wolfman30/therapymatch/internal/interval"
	"github.com/wolfman30/therapymatch/internal/observability/metrics"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

type stubLookup struct {
	schedules map[string]ProviderSchedule
	err       error
}

func (s *stubLookup) GetProviderSchedule(_ context.Context, id string) (ProviderSchedule, error) {
	if s.err != nil {
		return ProviderSchedule{}, s.err
	}
	sched, ok := s.schedules[id]
	if !ok {
		return ProviderSchedule{}, fmt.Errorf("lookup %s: %w", id, ErrNotFound)
	}
	return sched, nil
}

type stubCalendar struct {
	mu        sync.Mutex
	intervals []interval.Interval
	err       error
	calls     int
	lastRef   calendar.Ref
	lastStart time.Time
	lastEnd   time.Time
}

func (c *stubCalendar) GetBusyIntervals(_ context.Context, ref calendar.Ref, start, end time.Time) ([]interval.Interval, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastRef, c.lastStart, c.lastEnd = ref, start, end
	if c.err != nil {
		return nil, c.err
	}
	return c.intervals, nil
}

func fixedClock() time.Time { return testNow }

func newTestService(lookup ProviderLookup, cal CalendarReader) *Service {
	return NewService(lookup, cal, logging.Discard(),
		WithClock(fixedClock),
		WithMetrics(metrics.NewEngineMetrics(prometheus.NewRegistry())),
	)
}

func lookupWith(schedules ...ProviderSchedule) *stubLookup {
	l := &stubLookup{schedules: map[string]ProviderSchedule{}}
	for _, s := range schedules {
		l.schedules[s.ProviderID] = s
	}
	return l
}

func TestGetAvailableSlotsStaticSchedule(t *testing.T) {
	cal := &stubCalendar{}
	svc := newTestService(lookupWith(ProviderSchedule{ProviderID: "p1", Template: mondayTemplate()}), cal)

	slots, err := svc.GetAvailableSlots(context.Background(), "p1", nextMonday, nextMonday)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 10, slots[0].Start.Hour())
	assert.Equal(t, 11, slots[1].Start.Hour())
	assert.Zero(t, cal.calls, "providers without a calendar must not hit the reader")
}

func TestGetAvailableSlotsReconcilesBusyTime(t *testing.T) {
	ref := &calendar.Ref{Kind: calendar.KindFHIR, ID: "sched-1"}
	cal := &stubCalendar{intervals: []interval.Interval{
		interval.New(time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)),
	}}
	svc := newTestService(lookupWith(ProviderSchedule{ProviderID: "p1", Template: mondayTemplate(), Calendar: ref}), cal)

	slots, err := svc.GetAvailableSlots(context.Background(), "p1", nextMonday, nextMonday)
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Equal(t, 1, cal.calls)
	assert.Equal(t, *ref, cal.lastRef)
	assert.Equal(t, nextMonday, cal.lastStart)
	assert.True(t, cal.lastEnd.After(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)))
}

func TestGetAvailableSlotsFallsBackWhenCalendarFails(t *testing.T) {
	ref := &calendar.Ref{Kind: calendar.KindGoogle, ID: "primary"}
	cal := &stubCalendar{err: fmt.Errorf("%w: boom", calendar.ErrRetrievalFailed)}
	svc := newTestService(lookupWith(ProviderSchedule{ProviderID: "p1", Template: mondayTemplate(), Calendar: ref}), cal)

	slots, err := svc.GetAvailableSlots(context.Background(), "p1", nextMonday, nextMonday)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestGetAvailableSlotsUnknownProvider(t *testing.T) {
	svc := newTestService(lookupWith(), nil)

	slots, err := svc.GetAvailableSlots(context.Background(), "missing", nextMonday, nextMonday)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, slots)
}

func TestGetAvailableSlotsLookupFailure(t *testing.T) {
	svc := newTestService(&stubLookup{err: errors.New("db down")}, nil)

	_, err := svc.GetAvailableSlots(context.Background(), "p1", nextMonday, nextMonday)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGetAvailableSlotsInvertedRange(t *testing.T) {
	cal := &stubCalendar{}
	ref := &calendar.Ref{Kind: calendar.KindFHIR, ID: "x"}
	svc := newTestService(lookupWith(ProviderSchedule{ProviderID: "p1", Template: mondayTemplate(), Calendar: ref}), cal)

	slots, err := svc.GetAvailableSlots(context.Background(), "p1", nextMonday.AddDate(0, 0, 7), nextMonday)
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Zero(t, cal.calls)
}

func TestGetAvailableSlotsNeverReturnsPastSlots(t *testing.T) {
	tmpl := WeeklyTemplate{}
	for _, day := range []string{"Sunday", "Monday", "Tuesday"} {
		tmpl = append(tmpl, DayEntry{Day: day, StartTimes: []string{"08:00", "12:00", "16:00"}})
	}
	svc := newTestService(lookupWith(ProviderSchedule{ProviderID: "p1", Template: tmpl}), nil)

	start := testNow.AddDate(0, 0, -3)
	slots, err := svc.GetAvailableSlots(context.Background(), "p1", start, testNow.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for i, slot := range slots {
		assert.True(t, slot.Start.After(testNow))
		if i > 0 {
			assert.False(t, slot.Start.Before(slots[i-1].Start))
		}
	}
}

func TestGetAvailableSlotsInvalidTimezoneUsesUTC(t *testing.T) {
	svc := newTestService(lookupWith(ProviderSchedule{ProviderID: "p1", Template: mondayTemplate(), Timezone: "Mars/Olympus"}), nil)

	slots, err := svc.GetAvailableSlots(context.Background(), "p1", nextMonday, nextMonday)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, time.UTC, slots[0].Start.Location())
}

func TestIsSlotAvailable(t *testing.T) {
	ref := &calendar.Ref{Kind: calendar.KindFHIR, ID: "s"}
	cal := &stubCalendar{intervals: []interval.Interval{
		interval.New(time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)),
	}}
	svc := newTestService(lookupWith(ProviderSchedule{ProviderID: "p1", Template: mondayTemplate(), Calendar: ref}), cal)
	ctx := context.Background()

	ok, err := svc.IsSlotAvailable(ctx, "p1", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsSlotAvailable(ctx, "p1", time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.IsSlotAvailable(ctx, "nope", time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNotFound)
}

func (c *stubCalendar) setIntervals(busy []interval.Interval) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intervals = busy
}

func TestIsSlotAvailableSkipsBusyCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ref := &calendar.Ref{Kind: calendar.KindFHIR, ID: "s"}
	cal := &stubCalendar{}
	cached := calendar.NewCachedReader(cal, redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute, logging.Discard())
	svc := newTestService(lookupWith(ProviderSchedule{ProviderID: "p1", Template: mondayTemplate(), Calendar: ref}), cached)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	ok, err := svc.IsSlotAvailable(ctx, "p1", start)
	require.NoError(t, err)
	assert.True(t, ok)
	shown, err := svc.GetAvailableSlots(ctx, "p1", nextMonday, nextMonday)
	require.NoError(t, err)
	require.Len(t, shown, 2)

	// Someone books 10:00 in the external calendar after the slot was shown.
	cal.setIntervals([]interval.Interval{interval.New(start, start.Add(time.Hour))})

	shown, err = svc.GetAvailableSlots(ctx, "p1", nextMonday, nextMonday)
	require.NoError(t, err)
	assert.Len(t, shown, 2, "display reads may be served from cache")

	ok, err = svc.IsSlotAvailable(ctx, "p1", start)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsSlotAvailableAcrossDistantZones(t *testing.T) {
	providerLoc, err := time.LoadLocation("Etc/GMT+12")
	require.NoError(t, err)
	callerLoc, err := time.LoadLocation("Pacific/Kiritimati")
	require.NoError(t, err)

	late := WeeklyTemplate{{Day: "Monday", StartTimes: []string{"23:00"}}}
	svc := newTestService(lookupWith(ProviderSchedule{ProviderID: "p1", Template: late, Timezone: "Etc/GMT+12"}), nil)

	// Monday 23:00 at UTC-12 is Wednesday 01:00 at UTC+14.
	start := time.Date(2026, 3, 2, 23, 0, 0, 0, providerLoc).In(callerLoc)
	require.Equal(t, time.Wednesday, start.Weekday())

	ok, err := svc.IsSlotAvailable(context.Background(), "p1", start)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetAvailableSlotsConcurrent(t *testing.T) {
	svc := newTestService(lookupWith(
		ProviderSchedule{ProviderID: "p1", Template: mondayTemplate()},
		ProviderSchedule{ProviderID: "p2", Template: mondayTemplate()},
	), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			slots, err := svc.GetAvailableSlots(context.Background(), id, nextMonday, nextMonday)
			assert.NoError(t, err)
			assert.Len(t, slots, 2)
		}([]string{"p1", "p2"}[i%2])
	}
	wg.Wait()
}

func TestNewServicePanicsWithoutLookup(t *testing.T) {
	assert.Panics(t, func() { NewService(nil, nil, nil) })
}
