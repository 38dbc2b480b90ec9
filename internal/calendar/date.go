package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
)

// System identifies the calendar a Date is expressed in.
type System int

const (
	Gregorian System = iota
	Jalali
)

func (s System) String() string {
	switch s {
	case Gregorian:
		return "gregorian"
	case Jalali:
		return "jalali"
	default:
		return "System(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseSystem accepts "gregorian" or "jalali" (also "persian"), case-insensitive.
// An empty string means Gregorian.
func ParseSystem(s string) (System, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gregorian":
		return Gregorian, nil
	case "jalali", "persian", "shamsi":
		return Jalali, nil
	default:
		return 0, fmt.Errorf("calendar: unknown calendar system %q: %w", s, ErrInvalidArgument)
	}
}

// Date is a calendar day in one System. Month is 0-based (0..11).
type Date struct {
	Year   int
	Month  int
	Day    int
	System System
}

// In converts d into the target system. Converting into the same system
// returns d unchanged.
func (d Date) In(target System) (Date, error) {
	if d.System == target {
		return d, nil
	}
	switch target {
	case Jalali:
		return GregorianToJalali(d)
	case Gregorian:
		return JalaliToGregorian(d)
	default:
		return Date{}, fmt.Errorf("calendar: unknown target system %d: %w", target, ErrInvalidArgument)
	}
}

// FromTime returns the calendar day of t (in t's location) expressed in sys.
func FromTime(t time.Time, sys System) Date {
	g := Date{Year: t.Year(), Month: int(t.Month()) - 1, Day: t.Day(), System: Gregorian}
	if sys == Gregorian {
		return g
	}
	// Month always comes from time.Month, so the conversion cannot fail.
	j, _ := GregorianToJalali(g)
	return j
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	g, err := d.In(Gregorian)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(g.Year, time.Month(g.Month+1), g.Day, 0, 0, 0, 0, loc), nil
}

// DaysInMonth returns the length of the 0-based month in the given system.
func DaysInMonth(sys System, year, month int) int {
	if month < 0 || month > 11 {
		return 0
	}
	if sys == Jalali {
		if month == 11 && IsLeapYear(year) {
			return 30
		}
		return jalaliDaysInMonth[month]
	}
	if month == 1 && isGregorianLeap(year) {
		return 29
	}
	return gregorianDaysInMonth[month]
}

// Valid reports whether d names a real day of its calendar.
func (d Date) Valid() bool {
	return d.Month >= 0 && d.Month <= 11 && d.Day >= 1 && d.Day <= DaysInMonth(d.System, d.Year, d.Month)
}

// String formats d as YYYY-MM-DD with a 1-based month.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month+1, d.Day)
}

// ParseDate parses YYYY-MM-DD (1-based month, '/' also accepted) in sys
// and rejects days that do not exist in that calendar.
func ParseDate(s string, sys System) (Date, error) {
	s = strings.TrimSpace(s)
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '/' })
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("calendar: malformed date %q: %w", s, ErrInvalidArgument)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("calendar: malformed date %q: %w", s, ErrInvalidArgument)
		}
		nums[i] = n
	}
	d := Date{Year: nums[0], Month: nums[1] - 1, Day: nums[2], System: sys}
	if !d.Valid() {
		return Date{}, fmt.Errorf("calendar: %s is not a %s date: %w", s, sys, ErrInvalidArgument)
	}
	return d, nil
}

// MonthName returns the display name of a 0-based month.
func MonthName(sys System, month int) string {
	if month < 0 || month > 11 {
		return ""
	}
	if sys == Jalali {
		return ptime.Month(month + 1).String()
	}
	return time.Month(month + 1).String()
}

// FirstDayOfYear returns 1 January / 1 Farvardin of year.
func FirstDayOfYear(sys System, year int) Date {
	return Date{Year: year, Month: 0, Day: 1, System: sys}
}

// LastDayOfYear returns 31 December / the last day of Esfand of year.
func LastDayOfYear(sys System, year int) Date {
	return Date{Year: year, Month: 11, Day: DaysInMonth(sys, year, 11), System: sys}
}

// Default year bounds per system, both covering roughly 1900..2100 AD.
var defaultYears = map[System][2]int{
	Gregorian: {1900, 2100},
	Jalali:    {1279, 1479},
}

// DefaultYearRange returns the year bounds used when none are configured,
// counted in sys.
func DefaultYearRange(sys System) (minYear, maxYear int) {
	years, ok := defaultYears[sys]
	if !ok {
		years = defaultYears[Gregorian]
	}
	return years[0], years[1]
}
