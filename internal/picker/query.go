package picker

import (
	"sort"
	"time"

	"pickcal/internal/calendar"
	"pickcal/internal/model"
	"pickcal/internal/timepoint"
)

// DateAnswer is the limiter's verdict on one day.
type DateAnswer struct {
	Input      time.Time
	OutOfRange bool
	Nearest    time.Time
	StartDate  time.Time
	EndDate    time.Time
	MinYear    int
	MaxYear    int
}

// ResolveDate checks t and finds the nearest selectable day.
func (s *Service) ResolveDate(t time.Time) DateAnswer {
	dates := s.snapshot().dates
	return DateAnswer{
		Input:      t,
		OutOfRange: dates.IsOutOfRange(t),
		Nearest:    dates.SetToNearestDate(t),
		StartDate:  dates.StartDate(),
		EndDate:    dates.EndDate(),
		MinYear:    dates.MinYear(),
		MaxYear:    dates.MaxYear(),
	}
}

// DefaultDate resolves today, which is what a freshly opened picker shows.
func (s *Service) DefaultDate() DateAnswer {
	return s.ResolveDate(s.Today())
}

// ParseDate reads YYYY-MM-DD in sys and places it in the service location.
func (s *Service) ParseDate(v string, sys calendar.System) (time.Time, error) {
	d, err := calendar.ParseDate(v, sys)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time(s.Location())
}

// TimeAnswer is the limiter's verdict on one time of day.
type TimeAnswer struct {
	Input      timepoint.Timepoint
	Field      timepoint.Field
	Resolution timepoint.Field
	OutOfRange bool
	Nearest    timepoint.Timepoint
	AMDisabled bool
	PMDisabled bool
}

// ResolveTime checks p as edited through field and rounds it. An Unset
// resolution means the configured one.
func (s *Service) ResolveTime(p timepoint.Timepoint, field, resolution timepoint.Field) TimeAnswer {
	snap := s.snapshot()
	if resolution == timepoint.Unset {
		resolution = snap.resolution
	}
	times := snap.times
	return TimeAnswer{
		Input:      p,
		Field:      field,
		Resolution: resolution,
		OutOfRange: times.IsOutOfRange(&p, field, resolution),
		Nearest:    times.RoundToNearest(p, field, resolution),
		AMDisabled: times.IsAMDisabled(),
		PMDisabled: times.IsPMDisabled(),
	}
}

// DayMarks returns the feed and rule marks whose day falls in [from, to],
// ordered by day then source.
func (s *Service) DayMarks(from, to time.Time) []model.DayMark {
	snap := s.snapshot()
	loc := snap.ctrl.Location()
	lo := midnight(from, loc)
	hi := midnight(to, loc)

	out := make([]model.DayMark, 0)
	for _, m := range snap.marks {
		if m.Day.Before(lo) || m.Day.After(hi) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Conversion is one day in both calendar systems.
type Conversion struct {
	Gregorian        calendar.Date
	Jalali           calendar.Date
	Weekday          time.Weekday
	JalaliDayOfYear  int
	JalaliWeekOfYear int
	WeekStart        time.Weekday
	GregorianLeap    bool
	JalaliLeap       bool
}

// Convert expresses d in both systems. The Jalali week number counts weeks
// starting on weekStart.
func Convert(d calendar.Date, weekStart time.Weekday) (Conversion, error) {
	g, err := d.In(calendar.Gregorian)
	if err != nil {
		return Conversion{}, err
	}
	j, err := d.In(calendar.Jalali)
	if err != nil {
		return Conversion{}, err
	}
	wd, err := calendar.DayOfWeek(g)
	if err != nil {
		return Conversion{}, err
	}
	doy := calendar.DayOfYear(j)
	return Conversion{
		Gregorian:        g,
		Jalali:           j,
		Weekday:          wd,
		JalaliDayOfYear:  doy,
		JalaliWeekOfYear: calendar.WeekOfYearFrom(doy, j.Year, weekStart),
		WeekStart:        weekStart,
		GregorianLeap:    calendar.IsGregorianLeapYear(g.Year),
		JalaliLeap:       calendar.IsLeapYear(j.Year),
	}, nil
}
