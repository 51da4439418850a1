package availability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SessionDuration is the fixed length of every bookable session.
const SessionDuration = time.Hour

// DayEntry lists the wall-clock start times offered on one day of the week.
type DayEntry struct {
	Day        string   `json:"day"`
	StartTimes []string `json:"startTimes"`
}

// WeeklyTemplate is a recurring availability declaration keyed by day of week.
// Start times are local wall-clock times ("HH:MM"), resolved against a
// location only when the template is expanded.
type WeeklyTemplate []DayEntry

// DayTime identifies one (weekday, start time) pair of a template.
type DayTime struct {
	Day   time.Weekday
	Clock string
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday maps a day name to a time.Weekday, ignoring case.
func ParseWeekday(name string) (time.Weekday, bool) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	return day, ok
}

// ParseClock parses "HH:MM" (or "H:MM") and returns minutes after midnight.
func ParseClock(value string) (int, bool) {
	hh, mm, found := strings.Cut(strings.TrimSpace(value), ":")
	if !found || len(mm) != 2 || hh == "" || len(hh) > 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// IsEmpty reports whether the template offers no usable start times.
func (t WeeklyTemplate) IsEmpty() bool {
	for day := time.Sunday; day <= time.Saturday; day++ {
		if len(t.startMinutes(day)) > 0 {
			return false
		}
	}
	return true
}

// startMinutes returns the sorted, de-duplicated start times for day.
// Entries with unknown day names or malformed clocks are ignored.
func (t WeeklyTemplate) startMinutes(day time.Weekday) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, entry := range t {
		d, ok := ParseWeekday(entry.Day)
		if !ok || d != day {
			continue
		}
		for _, raw := range entry.StartTimes {
			minutes, ok := ParseClock(raw)
			if !ok {
				continue
			}
			if _, dup := seen[minutes]; dup {
				continue
			}
			seen[minutes] = struct{}{}
			out = append(out, minutes)
		}
	}
	sort.Ints(out)
	return out
}

// Pairs returns every normalized (day, time) pair the template declares.
func (t WeeklyTemplate) Pairs() map[DayTime]struct{} {
	pairs := map[DayTime]struct{}{}
	for day := time.Sunday; day <= time.Saturday; day++ {
		for _, minutes := range t.startMinutes(day) {
			pairs[DayTime{Day: day, Clock: FormatClock(minutes)}] = struct{}{}
		}
	}
	return pairs
}

// SharesSlotWith reports whether both templates declare at least one common
// (day, time) pair.
func (t WeeklyTemplate) SharesSlotWith(other WeeklyTemplate) bool {
	mine := t.Pairs()
	if len(mine) == 0 {
		return false
	}
	for pair := range other.Pairs() {
		if _, ok := mine[pair]; ok {
			return true
		}
	}
	return false
}
