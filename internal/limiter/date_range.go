package limiter

import (
	"fmt"
	"sync"
	"time"

	"pickcal/internal/calendar"
)

// DateRangeLimiter is what a date picker consults to validate a tap and to
// place the initial selection.
type DateRangeLimiter interface {
	MinYear() int
	MaxYear() int
	StartDate() time.Time
	EndDate() time.Time
	IsOutOfRange(t time.Time) bool
	SetToNearestDate(t time.Time) time.Time
}

// DateRangeConfig is a plain snapshot of a date limiter's constraints.
// Zero MinDate/MaxDate mean unset; zero MinYear/MaxYear mean the defaults
// of the controller's calendar system.
type DateRangeConfig struct {
	MinYear        int
	MaxYear        int
	MinDate        time.Time
	MaxDate        time.Time
	SelectableDays []time.Time
	DisabledDays   []time.Time
}

// DefaultDateRangeLimiter resolves days against min/max dates, a year
// range, an allow-list and a deny-list. Years are counted in the
// controller's calendar system.
type DefaultDateRangeLimiter struct {
	ctrl Controller

	mu         sync.RWMutex
	minYear    int
	maxYear    int
	minDate    time.Time
	maxDate    time.Time
	selectable daySet
	disabled   daySet
	// effective is selectable minus disabled and minus days outside the
	// min/max date and year bounds.
	effective daySet
}

var _ DateRangeLimiter = (*DefaultDateRangeLimiter)(nil)

// NewDateRangeLimiter returns an unconstrained limiter over the default
// year range of the controller's calendar system. A nil controller means
// local time in the Gregorian calendar.
func NewDateRangeLimiter(ctrl Controller) *DefaultDateRangeLimiter {
	if ctrl == nil {
		ctrl = StaticController{}
	}
	minYear, maxYear := calendar.DefaultYearRange(ctrl.System())
	return &DefaultDateRangeLimiter{
		ctrl:    ctrl,
		minYear: minYear,
		maxYear: maxYear,
	}
}

// NewDateRangeLimiterFromConfig applies cfg in one step.
func NewDateRangeLimiterFromConfig(ctrl Controller, cfg DateRangeConfig) (*DefaultDateRangeLimiter, error) {
	l := NewDateRangeLimiter(ctrl)
	minYear, maxYear := cfg.MinYear, cfg.MaxYear
	if minYear == 0 {
		minYear = l.minYear
	}
	if maxYear == 0 {
		maxYear = l.maxYear
	}
	if err := l.SetYearRange(minYear, maxYear); err != nil {
		return nil, err
	}
	if !cfg.MinDate.IsZero() && !cfg.MaxDate.IsZero() && dayKey(cfg.MinDate) > dayKey(cfg.MaxDate) {
		return nil, fmt.Errorf("limiter: min date %s after max date %s: %w",
			cfg.MinDate.Format(time.DateOnly), cfg.MaxDate.Format(time.DateOnly), calendar.ErrInvalidArgument)
	}
	l.SetMinDate(cfg.MinDate)
	l.SetMaxDate(cfg.MaxDate)
	l.SetSelectableDays(cfg.SelectableDays)
	l.SetDisabledDays(cfg.DisabledDays)
	return l, nil
}

// SetYearRange bounds the selectable years (inclusive).
func (l *DefaultDateRangeLimiter) SetYearRange(start, end int) error {
	if end < start {
		return fmt.Errorf("limiter: year range end %d before start %d: %w", end, start, calendar.ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minYear = start
	l.maxYear = end
	l.refreshEffective()
	return nil
}

// SetMinDate sets the earliest selectable day; the zero time clears it.
func (l *DefaultDateRangeLimiter) SetMinDate(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minDate = time.Time{}
	if !t.IsZero() {
		l.minDate = trimToMidnight(t)
	}
	l.refreshEffective()
}

// SetMaxDate sets the latest selectable day; the zero time clears it.
func (l *DefaultDateRangeLimiter) SetMaxDate(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxDate = time.Time{}
	if !t.IsZero() {
		l.maxDate = trimToMidnight(t)
	}
	l.refreshEffective()
}

// SetSelectableDays replaces the allow-list. An empty list lifts it.
func (l *DefaultDateRangeLimiter) SetSelectableDays(days []time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selectable = newDaySet(days)
	l.refreshEffective()
}

// SetDisabledDays replaces the deny-list.
func (l *DefaultDateRangeLimiter) SetDisabledDays(days []time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disabled = newDaySet(days)
	l.refreshEffective()
}

// refreshEffective rebuilds the allow-list search set. Callers hold mu.
func (l *DefaultDateRangeLimiter) refreshEffective() {
	l.effective = l.selectable.filter(func(t time.Time) bool {
		return !l.isDisabled(t)
	})
}

// Config returns a copy of the current constraints.
func (l *DefaultDateRangeLimiter) Config() DateRangeConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return DateRangeConfig{
		MinYear:        l.minYear,
		MaxYear:        l.maxYear,
		MinDate:        l.minDate,
		MaxDate:        l.maxDate,
		SelectableDays: l.selectable.slice(),
		DisabledDays:   l.disabled.slice(),
	}
}

func (l *DefaultDateRangeLimiter) yearOf(t time.Time) int {
	return calendar.FromTime(t, l.ctrl.System()).Year
}

func (l *DefaultDateRangeLimiter) firstDayOfYear(year int) time.Time {
	// FirstDayOfYear always has a valid month, so Time cannot fail.
	t, _ := calendar.FirstDayOfYear(l.ctrl.System(), year).Time(l.ctrl.Location())
	return t
}

func (l *DefaultDateRangeLimiter) lastDayOfYear(year int) time.Time {
	t, _ := calendar.LastDayOfYear(l.ctrl.System(), year).Time(l.ctrl.Location())
	return t
}

// MinYear is the first year the picker should offer.
func (l *DefaultDateRangeLimiter) MinYear() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.selectable.empty() {
		return l.yearOf(l.selectable.first())
	}
	if !l.minDate.IsZero() {
		if y := l.yearOf(l.minDate); y > l.minYear {
			return y
		}
	}
	return l.minYear
}

// MaxYear is the last year the picker should offer.
func (l *DefaultDateRangeLimiter) MaxYear() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.selectable.empty() {
		return l.yearOf(l.selectable.last())
	}
	if !l.maxDate.IsZero() {
		if y := l.yearOf(l.maxDate); y < l.maxYear {
			return y
		}
	}
	return l.maxYear
}

// StartDate is the first day the picker should show.
func (l *DefaultDateRangeLimiter) StartDate() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.startDate()
}

func (l *DefaultDateRangeLimiter) startDate() time.Time {
	if !l.selectable.empty() {
		return l.selectable.first()
	}
	if !l.minDate.IsZero() {
		return l.minDate
	}
	return l.firstDayOfYear(l.minYear)
}

// EndDate is the last day the picker should show.
func (l *DefaultDateRangeLimiter) EndDate() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.endDate()
}

func (l *DefaultDateRangeLimiter) endDate() time.Time {
	if !l.selectable.empty() {
		return l.selectable.last()
	}
	if !l.maxDate.IsZero() {
		return l.maxDate
	}
	return l.lastDayOfYear(l.maxYear)
}

// lowerBound is the earliest day satisfying both the min date and the min year.
func (l *DefaultDateRangeLimiter) lowerBound() time.Time {
	first := l.firstDayOfYear(l.minYear)
	if !l.minDate.IsZero() && dayKey(l.minDate) > dayKey(first) {
		return l.minDate
	}
	return first
}

// upperBound is the latest day satisfying both the max date and the max year.
func (l *DefaultDateRangeLimiter) upperBound() time.Time {
	last := l.lastDayOfYear(l.maxYear)
	if !l.maxDate.IsZero() && dayKey(l.maxDate) < dayKey(last) {
		return l.maxDate
	}
	return last
}

func (l *DefaultDateRangeLimiter) isBeforeMin(t time.Time) bool {
	if !l.minDate.IsZero() && dayKey(t) < dayKey(l.minDate) {
		return true
	}
	return l.yearOf(t) < l.minYear
}

func (l *DefaultDateRangeLimiter) isAfterMax(t time.Time) bool {
	if !l.maxDate.IsZero() && dayKey(t) > dayKey(l.maxDate) {
		return true
	}
	return l.yearOf(t) > l.maxYear
}

func (l *DefaultDateRangeLimiter) isDisabled(t time.Time) bool {
	return l.disabled.contains(t) || l.isBeforeMin(t) || l.isAfterMax(t)
}

func (l *DefaultDateRangeLimiter) isSelectable(t time.Time) bool {
	return l.selectable.empty() || l.selectable.contains(t)
}

// IsOutOfRange reports whether the day of t cannot be selected. A day in
// both the selectable and the disabled set is out of range.
func (l *DefaultDateRangeLimiter) IsOutOfRange(t time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t = trimToMidnight(t)
	return l.isDisabled(t) || !l.isSelectable(t)
}

// IsOutOfRangeDate is IsOutOfRange for a calendar date in any system,
// placed in the controller's location.
func (l *DefaultDateRangeLimiter) IsOutOfRangeDate(d calendar.Date) (bool, error) {
	t, err := d.Time(l.ctrl.Location())
	if err != nil {
		return false, err
	}
	return l.IsOutOfRange(t), nil
}

// SetToNearestDate returns the selectable day closest to t, or t trimmed
// to midnight when it is already selectable. The input is never modified.
//
// With an allow-list the closest allowed day that is neither disabled nor
// outside the min/max bounds wins; on a tie the later one.
// With only a deny-list the search walks outward one day at a time and
// prefers the earlier day on a tie; the walk gives up once both cursors
// have left the configured range. Large contiguous disabled blocks make
// this walk proportionally slow.
func (l *DefaultDateRangeLimiter) SetToNearestDate(t time.Time) time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t = trimToMidnight(t)

	if !l.selectable.empty() {
		higher, okHigh := l.effective.ceiling(t)
		lower, okLow := l.effective.lower(t)
		switch {
		case !okHigh && !okLow:
			return t
		case !okHigh:
			return lower
		case !okLow:
			return higher
		}
		lowDistance := dayKey(t) - dayKey(lower)
		highDistance := dayKey(higher) - dayKey(t)
		if lowDistance < highDistance {
			return lower
		}
		return higher
	}

	if !l.disabled.empty() {
		lo, hi := l.lowerBound(), l.upperBound()
		loKey, hiKey := dayKey(lo), dayKey(hi)

		forward := t
		if l.isBeforeMin(t) {
			forward = lo
		}
		backward := t
		if l.isAfterMax(t) {
			backward = hi
		}
		for l.isDisabled(forward) && l.isDisabled(backward) {
			if dayKey(forward) > hiKey && dayKey(backward) < loKey {
				break
			}
			forward = addDays(forward, 1)
			backward = addDays(backward, -1)
		}
		if !l.isDisabled(backward) {
			return backward
		}
		if !l.isDisabled(forward) {
			return forward
		}
	}

	if l.isBeforeMin(t) {
		return l.lowerBound()
	}
	if l.isAfterMax(t) {
		return l.upperBound()
	}
	return t
}

// DefaultSelection is the nearest selectable day to the controller's today.
func (l *DefaultDateRangeLimiter) DefaultSelection() time.Time {
	return l.SetToNearestDate(l.ctrl.Today())
}
