package availability

import (
	"iter"

	"github.com/wolfman30/therapymatch/internal/interval"
)

// BusyResult carries the outcome of a busy-interval lookup. A non-nil Err
// means the source failed, which is different from an empty, successful
// lookup.
type BusyResult struct {
	Intervals []interval.Interval
	Err       error
}

// Failed reports whether the busy source could not produce data.
func (b BusyResult) Failed() bool {
	return b.Err != nil
}

// Reconcile drops every candidate that overlaps any busy interval. A session
// must fit inside one free block, so partially free candidates are dropped
// rather than shortened. When the busy source failed, candidates pass through
// unchanged.
func Reconcile(candidates iter.Seq[Slot], busy BusyResult) iter.Seq[Slot] {
	if busy.Failed() || len(busy.Intervals) == 0 {
		return candidates
	}
	blocked := interval.Merge(busy.Intervals)
	return func(yield func(Slot) bool) {
		for slot := range candidates {
			if interval.OverlapsAny(slot.Interval(), blocked) {
				continue
			}
			if !yield(slot) {
				return
			}
		}
	}
}
