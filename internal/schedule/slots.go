package schedule

import (
	"time"

	"github.com/derekprior/seasongen/internal/league"
)

// SlotKey identifies a physical slot independent of its database id.
type SlotKey struct {
	Date  time.Time
	Time  string
	Field string
}

func KeyOf(s league.Slot) SlotKey {
	return SlotKey{Date: s.Date, Time: s.Time, Field: s.Field}
}

// GenerateSlots builds every (date, time band, field) slot between start and
// end inclusive whose weekday is one of days. The result is sorted by date,
// time and field.
func GenerateSlots(seasonID int64, start, end time.Time, days league.Weekdays, bands, fields []string) []league.Slot {
	var slots []league.Slot
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !days[d.Weekday()] {
			continue
		}
		for _, t := range bands {
			for _, f := range fields {
				slots = append(slots, league.Slot{
					SeasonID: seasonID,
					Date:     d,
					Time:     t,
					Field:    f,
				})
			}
		}
	}
	league.SortSlots(slots)
	return slots
}

// MissingSlots returns the slots in want whose (date, time, field) is not
// already present in existing.
func MissingSlots(want, existing []league.Slot) []league.Slot {
	have := make(map[SlotKey]bool, len(existing))
	for _, s := range existing {
		have[KeyOf(s)] = true
	}
	var missing []league.Slot
	for _, s := range want {
		k := KeyOf(s)
		if have[k] {
			continue
		}
		have[k] = true
		missing = append(missing, s)
	}
	return missing
}

// FilterSlots keeps the slots that GenerateSlots would produce for the same
// range and layout. Slots stored under an earlier layout are dropped so the
// assigner never books a field or band the league no longer uses.
func FilterSlots(slots []league.Slot, start, end time.Time, days league.Weekdays, bands, fields []string) (kept []league.Slot, dropped int) {
	inBands := make(map[string]bool, len(bands))
	for _, b := range bands {
		inBands[b] = true
	}
	inFields := make(map[string]bool, len(fields))
	for _, f := range fields {
		inFields[f] = true
	}
	for _, s := range slots {
		if s.Date.Before(start) || s.Date.After(end) || !days[s.Date.Weekday()] ||
			!inBands[s.Time] || !inFields[s.Field] {
			dropped++
			continue
		}
		kept = append(kept, s)
	}
	return kept, dropped
}
