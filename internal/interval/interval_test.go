package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, time.UTC)
}

func iv(startH, startM, endH, endM int) Interval {
	return New(at(startH, startM), at(endH, endM))
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", iv(10, 0, 11, 0), iv(10, 0, 11, 0), true},
		{"partial start", iv(10, 0, 11, 0), iv(10, 30, 11, 30), true},
		{"partial end", iv(10, 0, 11, 0), iv(9, 30, 10, 30), true},
		{"contained", iv(10, 0, 11, 0), iv(10, 15, 10, 45), true},
		{"containing", iv(10, 0, 11, 0), iv(9, 0, 12, 0), true},
		{"touching end", iv(10, 0, 11, 0), iv(11, 0, 12, 0), false},
		{"touching start", iv(10, 0, 11, 0), iv(9, 0, 10, 0), false},
		{"disjoint", iv(10, 0, 11, 0), iv(13, 0, 14, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, Overlaps(tt.a, tt.b), Overlaps(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestSubtractNoBusyReturnsCandidate(t *testing.T) {
	candidate := iv(10, 0, 11, 0)
	assert.Equal(t, []Interval{candidate}, Subtract(candidate, nil))
	assert.Equal(t, []Interval{candidate}, Subtract(candidate, []Interval{}))
}

func TestSubtractFullyCoveredReturnsEmpty(t *testing.T) {
	got := Subtract(iv(10, 0, 11, 0), []Interval{iv(9, 0, 12, 0)})
	assert.Empty(t, got)

	got = Subtract(iv(10, 0, 11, 0), []Interval{iv(10, 0, 11, 0)})
	assert.Empty(t, got)
}

func TestSubtractSplits(t *testing.T) {
	tests := []struct {
		name string
		busy []Interval
		want []Interval
	}{
		{
			name: "middle hole",
			busy: []Interval{iv(10, 0, 10, 30)},
			want: []Interval{iv(9, 0, 10, 0), iv(10, 30, 12, 0)},
		},
		{
			name: "clip start",
			busy: []Interval{iv(8, 0, 9, 30)},
			want: []Interval{iv(9, 30, 12, 0)},
		},
		{
			name: "clip end",
			busy: []Interval{iv(11, 30, 13, 0)},
			want: []Interval{iv(9, 0, 11, 30)},
		},
		{
			name: "two holes unsorted",
			busy: []Interval{iv(11, 0, 11, 15), iv(9, 30, 10, 0)},
			want: []Interval{iv(9, 0, 9, 30), iv(10, 0, 11, 0), iv(11, 15, 12, 0)},
		},
		{
			name: "overlapping busy",
			busy: []Interval{iv(9, 30, 10, 30), iv(10, 0, 11, 0)},
			want: []Interval{iv(9, 0, 9, 30), iv(11, 0, 12, 0)},
		},
		{
			name: "disjoint busy ignored",
			busy: []Interval{iv(13, 0, 14, 0)},
			want: []Interval{iv(9, 0, 12, 0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subtract(iv(9, 0, 12, 0), tt.busy))
		})
	}
}

func TestSubtractResultNeverOverlapsBusy(t *testing.T) {
	busy := []Interval{iv(9, 10, 9, 20), iv(9, 50, 10, 40), iv(11, 0, 11, 1)}
	for _, piece := range Subtract(iv(9, 0, 12, 0), busy) {
		require.True(t, piece.Valid())
		assert.False(t, OverlapsAny(piece, busy), "piece %v overlaps busy", piece)
	}
}

func TestMerge(t *testing.T) {
	got := Merge([]Interval{
		iv(13, 0, 14, 0),
		iv(9, 0, 10, 0),
		iv(10, 0, 10, 30),
		iv(9, 30, 9, 45),
		{Start: at(15, 0), End: at(15, 0)},
	})
	assert.Equal(t, []Interval{iv(9, 0, 10, 30), iv(13, 0, 14, 0)}, got)
	assert.Nil(t, Merge(nil))
}

func TestContainsAndDuration(t *testing.T) {
	assert.True(t, Contains(iv(9, 0, 12, 0), iv(10, 0, 11, 0)))
	assert.True(t, Contains(iv(9, 0, 12, 0), iv(9, 0, 12, 0)))
	assert.False(t, Contains(iv(9, 0, 12, 0), iv(11, 0, 13, 0)))
	assert.Equal(t, time.Hour, iv(10, 0, 11, 0).Duration())
	assert.False(t, Interval{Start: at(11, 0), End: at(10, 0)}.Valid())
}
