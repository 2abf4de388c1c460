package availability

import (
	"fmt"
	"sort"
	"time"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// GenerateSlots returns candidate start times as "HH:MM" strings for one
// open window given in minutes since midnight. Slots advance by the
// service duration and are emitted while the start is strictly before the
// window end, so the last slot's service may run past closing.
func GenerateSlots(startMinute, endMinute, durationMinutes int) []string {
	if durationMinutes <= 0 || endMinute <= startMinute {
		return nil
	}
	var slots []string
	for current := startMinute; current < endMinute; current += durationMinutes {
		slots = append(slots, formatMinute(current))
	}
	return slots
}

// MergeSlots unions slot lists from multiple windows into one ascending,
// de-duplicated list. "HH:MM" compares correctly as a string.
func MergeSlots(lists ...[]string) []string {
	seen := map[string]bool{}
	var merged []string
	for _, list := range lists {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				merged = append(merged, s)
			}
		}
	}
	sort.Strings(merged)
	return merged
}

// BookedSlots reports which candidate slots collide with existing busy
// intervals. A slot starting at "HH:MM" on day occupies the half-open
// interval [start, start+duration) and is booked when it overlaps any
// busy interval, so appointments off the slot grid still block slots.
func BookedSlots(slots []string, day time.Time, durationMinutes int, busy []Interval) map[string]bool {
	booked := map[string]bool{}
	if durationMinutes <= 0 {
		return booked
	}
	dur := time.Duration(durationMinutes) * time.Minute
	for _, slot := range slots {
		start, err := SlotTime(day, slot)
		if err != nil {
			continue
		}
		if overlapsAny(start, start.Add(dur), busy) {
			booked[slot] = true
		}
	}
	return booked
}

// SlotTime resolves an "HH:MM" slot to an instant on the given day,
// in the day's location.
func SlotTime(day time.Time, slot string) (time.Time, error) {
	var h, m int
	if _, err := fmt.Sscanf(slot, "%d:%d", &h, &m); err != nil {
		return time.Time{}, fmt.Errorf("invalid slot %q: %w", slot, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return time.Time{}, fmt.Errorf("invalid slot %q", slot)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location()), nil
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

func formatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
