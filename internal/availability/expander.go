package availability

import (
	"iter"
	"time"

	"github.com/wolfman30/therapymatch/internal/interval"
)

// Slot is a concrete, future, bookable session for one provider.
type Slot struct {
	ProviderID string    `json:"providerId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// Interval returns the slot as a half-open interval.
func (s Slot) Interval() interval.Interval {
	return interval.New(s.Start, s.End)
}

// Expand turns tmpl into candidate slots for every calendar date from
// rangeStart's date through rangeEnd's date inclusive. The dates are read as
// written (in the values' own locations) and the start times are placed in loc.
// Candidates starting at or before now are skipped. The sequence is ordered
// by start time and can be iterated any number of times with identical
// results.
func Expand(providerID string, tmpl WeeklyTemplate, rangeStart, rangeEnd time.Time, duration time.Duration, now time.Time, loc *time.Location) iter.Seq[Slot] {
	if loc == nil {
		loc = time.UTC
	}
	if duration <= 0 {
		duration = SessionDuration
	}
	return func(yield func(Slot) bool) {
		first := dateOf(rangeStart, loc)
		last := dateOf(rangeEnd, loc)
		if first.After(last) {
			return
		}

		byDay := make(map[time.Weekday][]int, 7)
		for day := time.Sunday; day <= time.Saturday; day++ {
			byDay[day] = tmpl.startMinutes(day)
		}

		for date := first; !date.After(last); date = date.AddDate(0, 0, 1) {
			for _, minutes := range byDay[date.Weekday()] {
				start := time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc)
				if !start.After(now) {
					continue
				}
				if !yield(Slot{ProviderID: providerID, Start: start, End: start.Add(duration)}) {
					return
				}
			}
		}
	}
}

// Collect drains seq into a slice. It never returns nil.
func Collect(seq iter.Seq[Slot]) []Slot {
	out := []Slot{}
	for slot := range seq {
		out = append(out, slot)
	}
	return out
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
