package model

import "time"

// DayMark flags a single calendar day taken from an ICS feed or produced
// by a recurrence rule. A multi-day all-day event yields one DayMark per day.
type DayMark struct {
	SourceID string // holiday source ID from config, or "rule" for disabled_rules
	UID      string // iCalendar UID, or the rule text

	Summary string

	// Day is midnight of the flagged day in the display location.
	Day time.Time
}

// Key is the YYYY-MM-DD form of Day, used to de-duplicate marks.
func (m DayMark) Key() string {
	return m.Day.Format(time.DateOnly)
}

// Days returns the distinct days of marks, in input order.
func Days(marks []DayMark) []time.Time {
	seen := make(map[string]struct{}, len(marks))
	out := make([]time.Time, 0, len(marks))
	for _, m := range marks {
		k := m.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, m.Day)
	}
	return out
}
