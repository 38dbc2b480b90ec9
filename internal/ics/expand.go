package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "pickcal/internal/log"
	"pickcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000

	// maxRuleDays caps ExpandRule; a weekly rule over two centuries is ~10k days.
	maxRuleDays = 100000
)

// ExpandConfig bounds day expansion.
type ExpandConfig struct {
	// Location is where days are counted. nil means time.Local.
	Location *time.Location

	// RangeStart / RangeEnd are inclusive; only their dates matter.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps one recurring event; zero means 5000.
	MaxOccurrencesPerEvent int
}

// ExpandResult lists the flagged days and the UIDs that hit the cap.
type ExpandResult struct {
	Marks           []model.DayMark
	TruncatedEvents []string
}

func (c *ExpandConfig) normalize() error {
	if c.RangeEnd.Before(c.RangeStart) {
		return errors.New("expand: RangeEnd is before RangeStart")
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.MaxOccurrencesPerEvent <= 0 {
		c.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	return nil
}

// ExpandDays turns events into one DayMark per covered day inside the
// range. An all-day event covers [DTSTART, DTEND); a timed event covers
// every day it touches. Overridden instances of a recurring event are
// flagged on their moved day instead of the original one.
func ExpandDays(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult
	if err := cfg.normalize(); err != nil {
		return result, err
	}

	overrides := make(map[string][]time.Time)
	for _, ev := range events {
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], *ev.Recurrence)
		}
	}

	for _, ev := range events {
		if ev.RawRRule == "" || ev.Recurrence != nil {
			result.Marks = append(result.Marks, eventDays(ev, ev.Start, cfg)...)
			continue
		}

		starts, hitCap, err := occurrences(ev, overrides[ev.UID], cfg)
		if err != nil {
			appLog.Error("expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
			continue
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Warn("expand: occurrences truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
		for _, s := range starts {
			result.Marks = append(result.Marks, eventDays(ev, s, cfg)...)
		}
	}
	return result, nil
}

func occurrences(ev ParsedEvent, exdates []time.Time, cfg ExpandConfig) ([]time.Time, bool, error) {
	r, err := rrule.StrToRRule(strings.TrimPrefix(ev.RawRRule, "RRULE:"))
	if err != nil {
		return nil, false, err
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range append(append([]time.Time(nil), ev.ExDates...), exdates...) {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the window by the event span so an occurrence starting before
	// RangeStart but still covering it is found.
	loc := ev.Start.Location()
	from := dayStart(cfg.RangeStart, loc).Add(-eventSpan(ev))
	to := dayStart(cfg.RangeEnd, loc).AddDate(0, 0, 1)

	starts := set.Between(from, to, true)
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		return starts[:cfg.MaxOccurrencesPerEvent], true, nil
	}
	return starts, false, nil
}

func eventSpan(ev ParsedEvent) time.Duration {
	if ev.End.After(ev.Start) {
		return ev.End.Sub(ev.Start)
	}
	if ev.AllDay {
		return 24 * time.Hour
	}
	return 0
}

// eventDays lists the in-range days covered by one occurrence of ev
// starting at start.
func eventDays(ev ParsedEvent, start time.Time, cfg ExpandConfig) []model.DayMark {
	var first, last time.Time
	if ev.AllDay {
		// Floating dates keep their calendar day in any location.
		first = sameDate(start, cfg.Location)
		days := 1
		if span := eventSpan(ev); span > 24*time.Hour {
			days = int((span + 12*time.Hour) / (24 * time.Hour))
		}
		last = first.AddDate(0, 0, days-1)
	} else {
		first = dayStart(start, cfg.Location)
		last = first
		if span := eventSpan(ev); span > 0 {
			last = dayStart(start.Add(span-time.Nanosecond), cfg.Location)
		}
	}

	lo := dayStart(cfg.RangeStart, cfg.Location)
	hi := dayStart(cfg.RangeEnd, cfg.Location)

	var out []model.DayMark
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if d.Before(lo) || d.After(hi) {
			continue
		}
		out = append(out, model.DayMark{
			SourceID: ev.Source.ID,
			UID:      ev.UID,
			Summary:  ev.Summary,
			Day:      d,
		})
	}
	return out
}

// ExpandRule flags the days matched by a bare RRULE such as
// "FREQ=WEEKLY;BYDAY=FR" between from and to. Without DTSTART in the rule,
// the rule starts on from.
func ExpandRule(rule string, from, to time.Time, loc *time.Location) ([]model.DayMark, error) {
	cfg := ExpandConfig{Location: loc, RangeStart: from, RangeEnd: to}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	var set *rrule.Set
	if strings.Contains(strings.ToUpper(rule), "DTSTART") {
		s, err := rrule.StrToRRuleSet(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule, err)
		}
		set = s
	} else {
		r, err := rrule.StrToRRule(strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:"))
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule, err)
		}
		r.DTStart(dayStart(from, cfg.Location))
		set = &rrule.Set{}
		set.RRule(r)
	}

	lo := dayStart(from, cfg.Location)
	hi := dayStart(to, cfg.Location).AddDate(0, 0, 1)
	starts := set.Between(lo, hi, true)
	if len(starts) > maxRuleDays {
		appLog.Warn("expand: rule truncated", "rule", rule, "cap", maxRuleDays)
		starts = starts[:maxRuleDays]
	}

	out := make([]model.DayMark, 0, len(starts))
	for _, s := range starts {
		d := dayStart(s, cfg.Location)
		if !d.Before(hi) {
			continue
		}
		out = append(out, model.DayMark{SourceID: "rule", UID: rule, Day: d})
	}
	return out, nil
}

// dayStart is midnight of t's day as seen in loc.
func dayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// sameDate is midnight in loc of t's own calendar date.
func sameDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
