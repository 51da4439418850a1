// Package interval provides half-open time intervals [Start, End) and the
// overlap/subtraction arithmetic used by availability reconciliation.
package interval

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds an interval. Callers are expected to pass start < end.
func New(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// Valid reports whether Start is strictly before End.
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether a and b share any instant.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner Interval) bool {
	return !inner.Start.Before(outer.Start) && !inner.End.After(outer.End)
}

// OverlapsAny reports whether candidate overlaps at least one busy interval.
func OverlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(candidate, b) {
			return true
		}
	}
	return false
}

// Subtract removes every busy interval from candidate and returns the
// remaining pieces in ascending order. busy need not be sorted or disjoint.
func Subtract(candidate Interval, busy []Interval) []Interval {
	if !candidate.Valid() {
		return nil
	}
	remaining := []Interval{candidate}
	for _, b := range Merge(busy) {
		if !Overlaps(candidate, b) {
			continue
		}
		next := remaining[:0:0]
		for _, piece := range remaining {
			if !Overlaps(piece, b) {
				next = append(next, piece)
				continue
			}
			if piece.Start.Before(b.Start) {
				next = append(next, Interval{Start: piece.Start, End: b.Start})
			}
			if b.End.Before(piece.End) {
				next = append(next, Interval{Start: b.End, End: piece.End})
			}
		}
		remaining = next
	}
	return remaining
}

// Merge sorts intervals and coalesces overlapping or touching ones.
// Invalid intervals are dropped. The input slice is not modified.
func Merge(in []Interval) []Interval {
	valid := make([]Interval, 0, len(in))
	for _, i := range in {
		if i.Valid() {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sort.Slice(valid, func(a, b int) bool {
		return valid[a].Start.Before(valid[b].Start)
	})

	merged := []Interval{valid[0]}
	for _, cur := range valid[1:] {
		last := &merged[len(merged)-1]
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}
