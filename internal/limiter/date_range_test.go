package limiter

import (
	"errors"
	"sync"
	"testing"
	"time"

	"pickcal/internal/calendar"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func utcController() StaticController {
	return StaticController{Loc: time.UTC}
}

func mustDateLimiter(t *testing.T, ctrl Controller, cfg DateRangeConfig) *DefaultDateRangeLimiter {
	t.Helper()
	l, err := NewDateRangeLimiterFromConfig(ctrl, cfg)
	if err != nil {
		t.Fatalf("NewDateRangeLimiterFromConfig() error = %v", err)
	}
	return l
}

func assertDay(t *testing.T, label string, got, want time.Time) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("%s = %s, want %s", label, got.Format(time.DateTime), want.Format(time.DateTime))
	}
}

func TestSetToNearestDatePrefersEarlierDayAroundDisabled(t *testing.T) {
	l := mustDateLimiter(t, utcController(), DateRangeConfig{
		DisabledDays: []time.Time{day(2024, time.June, 15)},
	})

	assertDay(t, "nearest", l.SetToNearestDate(day(2024, time.June, 15)), day(2024, time.June, 14))

	withClock := time.Date(2024, time.June, 15, 15, 30, 0, 0, time.UTC)
	got := l.SetToNearestDate(withClock)
	assertDay(t, "nearest from afternoon", got, day(2024, time.June, 14))
	if withClock.Hour() != 15 {
		t.Fatalf("input was modified")
	}
}

func TestSetToNearestDateWalksDisabledBlock(t *testing.T) {
	tests := []struct {
		name     string
		disabled []time.Time
		want     time.Time
	}{
		{
			name:     "earlier day wins when both sides free at same distance",
			disabled: []time.Time{day(2024, time.June, 14), day(2024, time.June, 15), day(2024, time.June, 16)},
			want:     day(2024, time.June, 13),
		},
		{
			name: "later day when the earlier side is still blocked",
			disabled: []time.Time{
				day(2024, time.June, 13), day(2024, time.June, 14),
				day(2024, time.June, 15), day(2024, time.June, 16),
			},
			want: day(2024, time.June, 17),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := mustDateLimiter(t, utcController(), DateRangeConfig{DisabledDays: tt.disabled})
			assertDay(t, "nearest", l.SetToNearestDate(day(2024, time.June, 15)), tt.want)
		})
	}
}

func TestSetYearRangeRejectsInvertedRange(t *testing.T) {
	l := NewDateRangeLimiter(utcController())
	err := l.SetYearRange(2100, 1900)
	if !errors.Is(err, calendar.ErrInvalidArgument) {
		t.Fatalf("SetYearRange(2100, 1900) error = %v, want ErrInvalidArgument", err)
	}
	if l.MinYear() != 1900 || l.MaxYear() != 2100 {
		t.Fatalf("failed SetYearRange changed the range to %d..%d", l.MinYear(), l.MaxYear())
	}

	if _, err := NewDateRangeLimiterFromConfig(utcController(), DateRangeConfig{
		MinDate: day(2024, time.May, 1),
		MaxDate: day(2024, time.April, 1),
	}); !errors.Is(err, calendar.ErrInvalidArgument) {
		t.Fatalf("inverted min/max date error = %v, want ErrInvalidArgument", err)
	}
}

func TestIsOutOfRange(t *testing.T) {
	l := mustDateLimiter(t, utcController(), DateRangeConfig{
		MinYear:        2000,
		MaxYear:        2030,
		MinDate:        day(2024, time.January, 10),
		MaxDate:        day(2024, time.December, 20),
		SelectableDays: []time.Time{day(2024, time.March, 1), day(2024, time.March, 2), day(2024, time.March, 3)},
		DisabledDays:   []time.Time{day(2024, time.March, 2)},
	})

	tests := []struct {
		name string
		in   time.Time
		want bool
	}{
		{"selectable", day(2024, time.March, 1), false},
		{"selectable with clock", time.Date(2024, time.March, 3, 23, 59, 0, 0, time.UTC), false},
		{"selectable and disabled", day(2024, time.March, 2), true},
		{"not selectable", day(2024, time.March, 4), true},
		{"before min date", day(2024, time.January, 9), true},
		{"after max date", day(2024, time.December, 21), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.IsOutOfRange(tt.in); got != tt.want {
				t.Fatalf("IsOutOfRange(%s) = %v, want %v", tt.in.Format(time.DateOnly), got, tt.want)
			}
		})
	}
}

func TestIsOutOfRangeChecksYears(t *testing.T) {
	l := mustDateLimiter(t, utcController(), DateRangeConfig{MinYear: 2000, MaxYear: 2030})
	if !l.IsOutOfRange(day(1999, time.December, 31)) {
		t.Errorf("1999-12-31 should be before the min year")
	}
	if l.IsOutOfRange(day(2000, time.January, 1)) {
		t.Errorf("2000-01-01 should be selectable")
	}
	if !l.IsOutOfRange(day(2031, time.January, 1)) {
		t.Errorf("2031-01-01 should be after the max year")
	}
}

func TestStartAndEndDate(t *testing.T) {
	l := NewDateRangeLimiter(utcController())
	assertDay(t, "default start", l.StartDate(), day(1900, time.January, 1))
	assertDay(t, "default end", l.EndDate(), day(2100, time.December, 31))

	l.SetMinDate(time.Date(2024, time.February, 2, 13, 0, 0, 0, time.UTC))
	l.SetMaxDate(day(2024, time.November, 30))
	assertDay(t, "start from min date", l.StartDate(), day(2024, time.February, 2))
	assertDay(t, "end from max date", l.EndDate(), day(2024, time.November, 30))

	l.SetSelectableDays([]time.Time{day(2024, time.May, 5), day(2024, time.April, 4), day(2024, time.May, 5)})
	assertDay(t, "start from selectable", l.StartDate(), day(2024, time.April, 4))
	assertDay(t, "end from selectable", l.EndDate(), day(2024, time.May, 5))

	l.SetSelectableDays(nil)
	l.SetMinDate(time.Time{})
	assertDay(t, "start after clearing", l.StartDate(), day(1900, time.January, 1))
}

func TestMinAndMaxYear(t *testing.T) {
	l := mustDateLimiter(t, utcController(), DateRangeConfig{
		MinYear: 2000,
		MaxYear: 2030,
		MinDate: day(2010, time.May, 1),
		MaxDate: day(2040, time.May, 1),
	})
	if got := l.MinYear(); got != 2010 {
		t.Errorf("MinYear() = %d, want 2010 from the min date", got)
	}
	if got := l.MaxYear(); got != 2030 {
		t.Errorf("MaxYear() = %d, want 2030 from the year range", got)
	}

	l.SetSelectableDays([]time.Time{day(2015, time.June, 1), day(2019, time.June, 1)})
	if l.MinYear() != 2015 || l.MaxYear() != 2019 {
		t.Errorf("years with selectable days = %d..%d, want 2015..2019", l.MinYear(), l.MaxYear())
	}
}

func TestSetToNearestDateWithSelectableDays(t *testing.T) {
	l := mustDateLimiter(t, utcController(), DateRangeConfig{
		SelectableDays: []time.Time{day(2024, time.June, 1), day(2024, time.June, 5)},
	})

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"exact tie prefers later", day(2024, time.June, 3), day(2024, time.June, 5)},
		{"closer earlier day", day(2024, time.June, 2), day(2024, time.June, 1)},
		{"closer later day", day(2024, time.June, 4), day(2024, time.June, 5)},
		{"before all", day(2024, time.May, 20), day(2024, time.June, 1)},
		{"after all", day(2024, time.July, 1), day(2024, time.June, 5)},
		{"already selectable", day(2024, time.June, 5), day(2024, time.June, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDay(t, "nearest", l.SetToNearestDate(tt.in), tt.want)
		})
	}
}

func TestSetToNearestDateSkipsSelectableDaysThatAreDisabled(t *testing.T) {
	l := mustDateLimiter(t, utcController(), DateRangeConfig{
		SelectableDays: []time.Time{day(2024, time.June, 3), day(2024, time.June, 10), day(2024, time.June, 17)},
		DisabledDays:   []time.Time{day(2024, time.June, 10)},
	})
	if !l.IsOutOfRange(day(2024, time.June, 10)) {
		t.Fatalf("a day in both sets must be out of range")
	}
	assertDay(t, "nearest", l.SetToNearestDate(day(2024, time.June, 10)), day(2024, time.June, 17))
	assertDay(t, "nearest", l.SetToNearestDate(day(2024, time.June, 9)), day(2024, time.June, 3))
}

func TestSetToNearestDateSkipsSelectableDaysOutsideBounds(t *testing.T) {
	tests := []struct {
		name string
		cfg  DateRangeConfig
		in   time.Time
		want time.Time
	}{
		{
			name: "closer day before min date",
			cfg: DateRangeConfig{
				MinDate:        day(2024, time.March, 1),
				SelectableDays: []time.Time{day(2024, time.January, 1), day(2024, time.June, 1)},
			},
			in:   day(2024, time.February, 1),
			want: day(2024, time.June, 1),
		},
		{
			name: "closer day after max date",
			cfg: DateRangeConfig{
				MaxDate:        day(2024, time.May, 1),
				SelectableDays: []time.Time{day(2024, time.April, 1), day(2024, time.May, 20)},
			},
			in:   day(2024, time.May, 15),
			want: day(2024, time.April, 1),
		},
		{
			name: "closer day after max year",
			cfg: DateRangeConfig{
				MinYear:        2000,
				MaxYear:        2024,
				SelectableDays: []time.Time{day(2024, time.December, 20), day(2025, time.January, 2)},
			},
			in:   day(2025, time.January, 1),
			want: day(2024, time.December, 20),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := mustDateLimiter(t, utcController(), tt.cfg)
			got := l.SetToNearestDate(tt.in)
			assertDay(t, "nearest", got, tt.want)
			if l.IsOutOfRange(got) {
				t.Fatalf("SetToNearestDate(%s) = %s is out of range", tt.in.Format(time.DateOnly), got.Format(time.DateOnly))
			}
		})
	}
}

func TestSetMinDateAfterSelectableDaysNarrowsSearch(t *testing.T) {
	l := NewDateRangeLimiter(utcController())
	l.SetSelectableDays([]time.Time{day(2024, time.January, 1), day(2024, time.June, 1)})
	assertDay(t, "before min date", l.SetToNearestDate(day(2024, time.February, 1)), day(2024, time.January, 1))

	l.SetMinDate(day(2024, time.March, 1))
	assertDay(t, "after min date", l.SetToNearestDate(day(2024, time.February, 1)), day(2024, time.June, 1))

	l.SetMinDate(time.Time{})
	assertDay(t, "min date cleared", l.SetToNearestDate(day(2024, time.February, 1)), day(2024, time.January, 1))
}

func TestSetToNearestDateClampsToBounds(t *testing.T) {
	l := mustDateLimiter(t, utcController(), DateRangeConfig{
		MinDate: day(2024, time.January, 10),
		MaxDate: day(2024, time.March, 1),
	})
	assertDay(t, "below min", l.SetToNearestDate(day(2023, time.May, 5)), day(2024, time.January, 10))
	assertDay(t, "above max", l.SetToNearestDate(day(2025, time.May, 5)), day(2024, time.March, 1))
	assertDay(t, "inside", l.SetToNearestDate(day(2024, time.February, 29)), day(2024, time.February, 29))

	years := mustDateLimiter(t, utcController(), DateRangeConfig{MinYear: 2000, MaxYear: 2001})
	assertDay(t, "below min year", years.SetToNearestDate(day(1990, time.June, 1)), day(2000, time.January, 1))
	assertDay(t, "above max year", years.SetToNearestDate(day(2010, time.June, 1)), day(2001, time.December, 31))
}

func TestSetToNearestDateProperties(t *testing.T) {
	minDate, maxDate := day(2024, time.January, 10), day(2024, time.March, 1)
	l := mustDateLimiter(t, utcController(), DateRangeConfig{
		MinDate: minDate,
		MaxDate: maxDate,
		DisabledDays: []time.Time{
			day(2024, time.January, 10), day(2024, time.January, 11), day(2024, time.January, 12),
			day(2024, time.February, 14), day(2024, time.March, 1),
		},
	})

	for d := day(2023, time.December, 1); !d.After(day(2024, time.April, 1)); d = d.AddDate(0, 0, 1) {
		got := l.SetToNearestDate(d)
		if l.IsOutOfRange(got) {
			t.Fatalf("SetToNearestDate(%s) = %s is out of range", d.Format(time.DateOnly), got.Format(time.DateOnly))
		}
		if got.Before(minDate) || got.After(maxDate) {
			t.Fatalf("SetToNearestDate(%s) = %s escapes [min, max]", d.Format(time.DateOnly), got.Format(time.DateOnly))
		}
		if !l.IsOutOfRange(d) && !got.Equal(d) {
			t.Fatalf("SetToNearestDate(%s) = %s, want input unchanged", d.Format(time.DateOnly), got.Format(time.DateOnly))
		}
	}

	assertDay(t, "from before min", l.SetToNearestDate(day(2023, time.December, 1)), day(2024, time.January, 13))
	assertDay(t, "from after max", l.SetToNearestDate(day(2024, time.April, 1)), day(2024, time.February, 29))
}

func TestSetToNearestDateGivesUpWhenEverythingIsDisabled(t *testing.T) {
	l := mustDateLimiter(t, utcController(), DateRangeConfig{
		MinDate:      day(2024, time.January, 1),
		MaxDate:      day(2024, time.January, 3),
		DisabledDays: []time.Time{day(2024, time.January, 1), day(2024, time.January, 2), day(2024, time.January, 3)},
	})
	assertDay(t, "unsatisfiable", l.SetToNearestDate(day(2024, time.January, 2)), day(2024, time.January, 2))
}

func TestJalaliYearRange(t *testing.T) {
	ctrl := StaticController{Loc: time.UTC, Calendar: calendar.Jalali}
	l := mustDateLimiter(t, ctrl, DateRangeConfig{MinYear: 1400, MaxYear: 1402})

	assertDay(t, "start", l.StartDate(), day(2021, time.March, 21))
	assertDay(t, "end", l.EndDate(), day(2024, time.March, 19))

	if !l.IsOutOfRange(day(2024, time.March, 20)) {
		t.Errorf("1403-01-01 should be after the max jalali year")
	}
	if l.IsOutOfRange(day(2024, time.March, 19)) {
		t.Errorf("1402-12-29 should be selectable")
	}
	assertDay(t, "clamped", l.SetToNearestDate(day(2024, time.June, 1)), day(2024, time.March, 19))

	out, err := l.IsOutOfRangeDate(calendar.Date{Year: 1401, Month: 6, Day: 1, System: calendar.Jalali})
	if err != nil || out {
		t.Errorf("IsOutOfRangeDate(1401-07-01) = %v, %v; want false", out, err)
	}
}

func TestDefaultYearRangeFollowsCalendarSystem(t *testing.T) {
	ctrl := StaticController{Loc: time.UTC, Calendar: calendar.Jalali}
	tests := []struct {
		name string
		l    *DefaultDateRangeLimiter
	}{
		{"constructor", NewDateRangeLimiter(ctrl)},
		{"zero config years", mustDateLimiter(t, ctrl, DateRangeConfig{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.l.MinYear() != 1279 || tt.l.MaxYear() != 1479 {
				t.Fatalf("years = %d..%d, want 1279..1479", tt.l.MinYear(), tt.l.MaxYear())
			}
			start := calendar.FromTime(tt.l.StartDate(), calendar.Jalali)
			if start.Year != 1279 || start.Month != 0 || start.Day != 1 {
				t.Errorf("start = %v, want 1279-01-01", start)
			}
			today := day(2024, time.June, 15)
			if tt.l.IsOutOfRange(today) {
				t.Errorf("2024-06-15 must be in the default jalali range")
			}
			assertDay(t, "nearest", tt.l.SetToNearestDate(today), today)
		})
	}
}

func TestDefaultSelectionUsesToday(t *testing.T) {
	ctrl := StaticController{
		Loc: time.UTC,
		Now: func() time.Time { return time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC) },
	}
	l := mustDateLimiter(t, ctrl, DateRangeConfig{DisabledDays: []time.Time{day(2024, time.June, 15)}})
	assertDay(t, "default selection", l.DefaultSelection(), day(2024, time.June, 14))
}

func TestDateLimiterConcurrentAccess(t *testing.T) {
	l := NewDateRangeLimiter(utcController())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			l.SetDisabledDays([]time.Time{day(2024, time.June, 10+i)})
		}(i)
		go func() {
			defer wg.Done()
			_ = l.SetToNearestDate(day(2024, time.June, 12))
			_ = l.IsOutOfRange(day(2024, time.June, 12))
		}()
	}
	wg.Wait()
	if got := len(l.Config().DisabledDays); got != 1 {
		t.Fatalf("disabled days = %d, want the last write only", got)
	}
}
