package limiter

import (
	"sort"
	"time"

	"pickcal/internal/timepoint"
)

// trimToMidnight drops the clock part of t, keeping its location.
func trimToMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dayKey numbers calendar days independently of location and DST.
func dayKey(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func addDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, t.Location())
}

// daySet is an ordered set of calendar days.
type daySet struct {
	days []time.Time
}

func newDaySet(days []time.Time) daySet {
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		out = append(out, trimToMidnight(d))
	}
	sort.SliceStable(out, func(i, j int) bool { return dayKey(out[i]) < dayKey(out[j]) })

	uniq := out[:0]
	for i, d := range out {
		if i > 0 && dayKey(d) == dayKey(uniq[len(uniq)-1]) {
			continue
		}
		uniq = append(uniq, d)
	}
	return daySet{days: uniq}
}

func (s daySet) empty() bool { return len(s.days) == 0 }

// search returns the index of the first day not before t.
func (s daySet) search(t time.Time) int {
	k := dayKey(t)
	return sort.Search(len(s.days), func(i int) bool { return dayKey(s.days[i]) >= k })
}

func (s daySet) contains(t time.Time) bool {
	i := s.search(t)
	return i < len(s.days) && dayKey(s.days[i]) == dayKey(t)
}

// ceiling returns the first day on or after t.
func (s daySet) ceiling(t time.Time) (time.Time, bool) {
	i := s.search(t)
	if i == len(s.days) {
		return time.Time{}, false
	}
	return s.days[i], true
}

// lower returns the last day strictly before t.
func (s daySet) lower(t time.Time) (time.Time, bool) {
	i := s.search(t)
	if i == 0 {
		return time.Time{}, false
	}
	return s.days[i-1], true
}

func (s daySet) first() time.Time { return s.days[0] }
func (s daySet) last() time.Time  { return s.days[len(s.days)-1] }

// filter keeps the days for which keep returns true.
func (s daySet) filter(keep func(time.Time) bool) daySet {
	out := make([]time.Time, 0, len(s.days))
	for _, d := range s.days {
		if keep(d) {
			out = append(out, d)
		}
	}
	return daySet{days: out}
}

func (s daySet) slice() []time.Time {
	return append([]time.Time(nil), s.days...)
}

// pointSet is an ordered set of timepoints.
type pointSet struct {
	points []timepoint.Timepoint
}

func newPointSet(points []timepoint.Timepoint) pointSet {
	out := append([]timepoint.Timepoint(nil), points...)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	uniq := out[:0]
	for i, p := range out {
		if i > 0 && p == uniq[len(uniq)-1] {
			continue
		}
		uniq = append(uniq, p)
	}
	return pointSet{points: uniq}
}

func (s pointSet) empty() bool { return len(s.points) == 0 }

func (s pointSet) search(t timepoint.Timepoint) int {
	return sort.Search(len(s.points), func(i int) bool { return !s.points[i].Before(t) })
}

func (s pointSet) contains(t timepoint.Timepoint) bool {
	i := s.search(t)
	return i < len(s.points) && s.points[i] == t
}

// ceiling returns the first point at or after t.
func (s pointSet) ceiling(t timepoint.Timepoint) (timepoint.Timepoint, bool) {
	i := s.search(t)
	if i == len(s.points) {
		return timepoint.Timepoint{}, false
	}
	return s.points[i], true
}

// floor returns the last point at or before t.
func (s pointSet) floor(t timepoint.Timepoint) (timepoint.Timepoint, bool) {
	i := s.search(t)
	if i < len(s.points) && s.points[i] == t {
		return t, true
	}
	if i == 0 {
		return timepoint.Timepoint{}, false
	}
	return s.points[i-1], true
}

// collides reports whether t shares its resolution-truncated value with
// its floor or ceiling neighbour in s.
func (s pointSet) collides(t timepoint.Timepoint, resolution timepoint.Field) bool {
	if c, ok := s.ceiling(t); ok && t.EqualAt(c, resolution) {
		return true
	}
	if f, ok := s.floor(t); ok && t.EqualAt(f, resolution) {
		return true
	}
	return false
}

func (s pointSet) first() timepoint.Timepoint { return s.points[0] }
func (s pointSet) last() timepoint.Timepoint  { return s.points[len(s.points)-1] }

func (s pointSet) without(o pointSet) pointSet {
	out := make([]timepoint.Timepoint, 0, len(s.points))
	for _, p := range s.points {
		if !o.contains(p) {
			out = append(out, p)
		}
	}
	return pointSet{points: out}
}

func (s pointSet) slice() []timepoint.Timepoint {
	return append([]timepoint.Timepoint(nil), s.points...)
}
