package limiter

import (
	"fmt"
	"sync"

	"pickcal/internal/calendar"
	"pickcal/internal/timepoint"
)

// TimepointLimiter is consulted by a time picker on every drag, tap and
// keystroke. field is the picker field being edited (timepoint.Unset when
// none) and resolution the finest field the picker shows.
type TimepointLimiter interface {
	IsOutOfRange(p *timepoint.Timepoint, field, resolution timepoint.Field) bool
	IsAMDisabled() bool
	IsPMDisabled() bool
	RoundToNearest(t timepoint.Timepoint, field, resolution timepoint.Field) timepoint.Timepoint
}

// TimepointConfig is a plain snapshot of a time limiter's constraints.
type TimepointConfig struct {
	MinTime         *timepoint.Timepoint
	MaxTime         *timepoint.Timepoint
	SelectableTimes []timepoint.Timepoint
	DisabledTimes   []timepoint.Timepoint
}

// DefaultTimepointLimiter bounds times of day by min/max, an allow-list and
// a deny-list. When selectable minus disabled is non-empty it decides every
// range and rounding question on its own.
type DefaultTimepointLimiter struct {
	mu         sync.RWMutex
	minTime    *timepoint.Timepoint
	maxTime    *timepoint.Timepoint
	selectable pointSet
	disabled   pointSet
	exclusive  pointSet
}

var _ TimepointLimiter = (*DefaultTimepointLimiter)(nil)

func NewTimepointLimiter() *DefaultTimepointLimiter {
	return &DefaultTimepointLimiter{}
}

// NewTimepointLimiterFromConfig applies cfg in one step.
func NewTimepointLimiterFromConfig(cfg TimepointConfig) (*DefaultTimepointLimiter, error) {
	l := NewTimepointLimiter()
	if cfg.MinTime != nil {
		if err := l.SetMinTime(*cfg.MinTime); err != nil {
			return nil, err
		}
	}
	if cfg.MaxTime != nil {
		if err := l.SetMaxTime(*cfg.MaxTime); err != nil {
			return nil, err
		}
	}
	l.SetSelectableTimes(cfg.SelectableTimes)
	l.SetDisabledTimes(cfg.DisabledTimes)
	return l, nil
}

// SetMinTime sets the earliest selectable time. It must not exceed the max.
func (l *DefaultTimepointLimiter) SetMinTime(t timepoint.Timepoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.maxTime != nil && t.After(*l.maxTime) {
		return fmt.Errorf("limiter: min time %s after max time %s: %w", t, l.maxTime, calendar.ErrInvalidArgument)
	}
	l.minTime = &t
	return nil
}

// SetMaxTime sets the latest selectable time. It must not precede the min.
func (l *DefaultTimepointLimiter) SetMaxTime(t timepoint.Timepoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.minTime != nil && t.Before(*l.minTime) {
		return fmt.Errorf("limiter: max time %s before min time %s: %w", t, l.minTime, calendar.ErrInvalidArgument)
	}
	l.maxTime = &t
	return nil
}

// SetSelectableTimes replaces the allow-list.
func (l *DefaultTimepointLimiter) SetSelectableTimes(times []timepoint.Timepoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selectable = newPointSet(times)
	l.exclusive = l.selectable.without(l.disabled)
}

// SetDisabledTimes replaces the deny-list.
func (l *DefaultTimepointLimiter) SetDisabledTimes(times []timepoint.Timepoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disabled = newPointSet(times)
	l.exclusive = l.selectable.without(l.disabled)
}

// Config returns a copy of the current constraints.
func (l *DefaultTimepointLimiter) Config() TimepointConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cfg := TimepointConfig{
		SelectableTimes: l.selectable.slice(),
		DisabledTimes:   l.disabled.slice(),
	}
	if l.minTime != nil {
		t := *l.minTime
		cfg.MinTime = &t
	}
	if l.maxTime != nil {
		t := *l.maxTime
		cfg.MaxTime = &t
	}
	return cfg
}

// IsOutOfRange checks p at the granularity of the edited field. A nil p
// (nothing selected yet) is never out of range.
func (l *DefaultTimepointLimiter) IsOutOfRange(p *timepoint.Timepoint, field, resolution timepoint.Field) bool {
	if p == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	current := *p

	switch field {
	case timepoint.Hour:
		if l.minTime != nil && l.minTime.Hour() > current.Hour() {
			return true
		}
		if l.maxTime != nil && l.maxTime.Hour()+1 <= current.Hour() {
			return true
		}
		if !l.exclusive.empty() {
			return !l.exclusive.collides(current, timepoint.Hour)
		}
		if !l.disabled.empty() && resolution == timepoint.Hour {
			return l.disabled.collides(current, timepoint.Hour)
		}
		return false

	case timepoint.Minute:
		if l.minTime != nil {
			roundedMin := timepoint.New(l.minTime.Hour(), l.minTime.Minute(), 0)
			if roundedMin.After(current) {
				return true
			}
		}
		if l.maxTime != nil {
			roundedMax := timepoint.New(l.maxTime.Hour(), l.maxTime.Minute(), 59)
			if roundedMax.Before(current) {
				return true
			}
		}
		if !l.exclusive.empty() {
			return !l.exclusive.collides(current, timepoint.Minute)
		}
		if !l.disabled.empty() && resolution == timepoint.Minute {
			return l.disabled.collides(current, timepoint.Minute)
		}
		return false

	default:
		return l.isOutOfRange(current)
	}
}

// IsOutOfRangeExact checks p at full second precision.
func (l *DefaultTimepointLimiter) IsOutOfRangeExact(p timepoint.Timepoint) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.isOutOfRange(p)
}

func (l *DefaultTimepointLimiter) isOutOfRange(p timepoint.Timepoint) bool {
	if l.minTime != nil && l.minTime.After(p) {
		return true
	}
	if l.maxTime != nil && l.maxTime.Before(p) {
		return true
	}
	if !l.exclusive.empty() {
		return !l.exclusive.contains(p)
	}
	return l.disabled.contains(p)
}

// IsAMDisabled reports whether no time before noon can be selected. The
// deny-list alone never disables a half day.
func (l *DefaultTimepointLimiter) IsAMDisabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.minTime != nil && !l.minTime.Before(timepoint.Midday) {
		return true
	}
	if !l.exclusive.empty() {
		return !l.exclusive.first().Before(timepoint.Midday)
	}
	return false
}

// IsPMDisabled reports whether no time from noon on can be selected.
func (l *DefaultTimepointLimiter) IsPMDisabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.maxTime != nil && l.maxTime.Before(timepoint.Midday) {
		return true
	}
	if !l.exclusive.empty() {
		return l.exclusive.last().Before(timepoint.Midday)
	}
	return false
}

// RoundToNearest moves t onto a selectable time without changing fields
// coarser than the one being edited. Min/max clamping always wins. When
// the deny-list search finds nothing within a day it returns t unchanged,
// which may still be disabled.
func (l *DefaultTimepointLimiter) RoundToNearest(t timepoint.Timepoint, field, resolution timepoint.Field) timepoint.Timepoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.minTime != nil && l.minTime.After(t) {
		return *l.minTime
	}
	if l.maxTime != nil && l.maxTime.Before(t) {
		return *l.maxTime
	}

	if field == timepoint.Second {
		return t
	}

	if !l.exclusive.empty() {
		return l.roundToSelectable(t, field)
	}

	if !l.disabled.empty() {
		if field != timepoint.Unset && field == resolution {
			return t
		}
		if resolution == timepoint.Second {
			if !l.disabled.contains(t) {
				return t
			}
			return l.searchValidTimepoint(t, field, resolution)
		}
		if l.disabled.collides(t, resolution) {
			return l.searchValidTimepoint(t, field, resolution)
		}
	}
	return t
}

func (l *DefaultTimepointLimiter) roundToSelectable(t timepoint.Timepoint, field timepoint.Field) timepoint.Timepoint {
	floor, okFloor := l.exclusive.floor(t)
	ceil, okCeil := l.exclusive.ceiling(t)

	if !okFloor || !okCeil {
		only := floor
		if !okFloor {
			only = ceil
		}
		if field == timepoint.Unset {
			return only
		}
		if only.Hour() != t.Hour() {
			return t
		}
		if field == timepoint.Minute && only.Minute() != t.Minute() {
			return t
		}
		return only
	}

	sameHour := func(p timepoint.Timepoint) bool { return p.Hour() == t.Hour() }
	sameMinute := func(p timepoint.Timepoint) bool { return p.Minute() == t.Minute() }

	switch field {
	case timepoint.Hour:
		switch {
		case !sameHour(floor) && sameHour(ceil):
			return ceil
		case sameHour(floor) && !sameHour(ceil):
			return floor
		case !sameHour(floor) && !sameHour(ceil):
			return t
		}
	case timepoint.Minute:
		switch {
		case !sameHour(floor) && !sameHour(ceil):
			return t
		case !sameHour(floor) && sameHour(ceil):
			if sameMinute(ceil) {
				return ceil
			}
			return t
		case sameHour(floor) && !sameHour(ceil):
			if sameMinute(floor) {
				return floor
			}
			return t
		case !sameMinute(floor) && sameMinute(ceil):
			return ceil
		case sameMinute(floor) && !sameMinute(ceil):
			return floor
		case !sameMinute(floor) && !sameMinute(ceil):
			return t
		}
	}

	floorDist := abs(t.Compare(floor))
	ceilDist := abs(t.Compare(ceil))
	if floorDist < ceilDist {
		return floor
	}
	return ceil
}

// searchValidTimepoint walks away from t one resolution step at a time,
// trying the later candidate before the earlier one, for at most a day.
// Candidates must keep the edited field's value.
func (l *DefaultTimepointLimiter) searchValidTimepoint(t timepoint.Timepoint, field, resolution timepoint.Field) timepoint.Timepoint {
	multiplier := 1
	switch resolution {
	case timepoint.Minute:
		multiplier = 60
	case timepoint.Second:
		multiplier = 3600
	}

	accept := func(c timepoint.Timepoint) bool {
		if field != timepoint.Unset && c.Get(field) != t.Get(field) {
			return false
		}
		return !l.disabled.collides(c, resolution)
	}

	forward, backward := t, t
	for i := 0; i < 24*multiplier; i++ {
		forward = forward.Add(resolution, 1)
		backward = backward.Add(resolution, -1)
		if accept(forward) {
			return forward
		}
		if accept(backward) {
			return backward
		}
	}
	return t
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
