package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidArgument is wrapped by every precondition failure in this
// package and by the limiter configuration setters.
var ErrInvalidArgument = errors.New("invalid argument")

var (
	gregorianDaysInMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	jalaliDaysInMonth    = [12]int{31, 31, 31, 31, 31, 31, 30, 30, 30, 30, 30, 29}
)

// Day counts of the cycles used by the conversion arithmetic.
const (
	gregorianEpochYear = 1600
	jalaliEpochYear    = 979
	epochShiftDays     = 79

	daysPer400Years = 146097
	daysPer100Years = 36524
	daysPer4Years   = 1461
	daysPer33Years  = 12053
)

// jalaliLeapRemainders lists year%33 values treated as leap years.
var jalaliLeapRemainders = map[int]bool{
	1: true, 5: true, 9: true, 13: true, 17: true, 22: true, 26: true, 30: true,
}

// jalaliWeekdayIndex maps a Gregorian weekday onto a Saturday-first week.
var jalaliWeekdayIndex = [7]int{
	time.Sunday:    1,
	time.Monday:    2,
	time.Tuesday:   3,
	time.Wednesday: 4,
	time.Thursday:  5,
	time.Friday:    6,
	time.Saturday:  0,
}

func checkMonth(month int) error {
	if month > 11 || month < -11 {
		return fmt.Errorf("calendar: month %d outside [-11, 11]: %w", month, ErrInvalidArgument)
	}
	return nil
}

// GregorianToJalali converts a Gregorian date (0-based month) into the
// Jalali calendar. The day is not validated against the month length.
//
// The arithmetic counts days from 1 January 1600 and realigns them on the
// Jalali epoch using the 33-year leap cycle, so results are only meaningful
// from late March 1600 onwards.
func GregorianToJalali(d Date) (Date, error) {
	if err := checkMonth(d.Month); err != nil {
		return Date{}, err
	}

	gy := d.Year - gregorianEpochYear
	gd := d.Day - 1

	dayNo := 365*gy + (gy+3)/4 - (gy+99)/100 + (gy+399)/400
	for i := 0; i < d.Month; i++ {
		dayNo += gregorianDaysInMonth[i]
	}
	if d.Month > 1 && isGregorianLeap(gy) {
		dayNo++
	}
	dayNo += gd

	jDayNo := dayNo - epochShiftDays

	cycles := jDayNo / daysPer33Years
	jDayNo %= daysPer33Years

	jy := jalaliEpochYear + 33*cycles + 4*(jDayNo/daysPer4Years)
	jDayNo %= daysPer4Years

	if jDayNo >= 366 {
		jy += (jDayNo - 1) / 365
		jDayNo = (jDayNo - 1) % 365
	}

	jm := 0
	for ; jm < 11 && jDayNo >= jalaliDaysInMonth[jm]; jm++ {
		jDayNo -= jalaliDaysInMonth[jm]
	}

	return Date{Year: jy, Month: jm, Day: jDayNo + 1, System: Jalali}, nil
}

// JalaliToGregorian is the inverse of GregorianToJalali.
func JalaliToGregorian(d Date) (Date, error) {
	if err := checkMonth(d.Month); err != nil {
		return Date{}, err
	}

	jy := d.Year - jalaliEpochYear
	jd := d.Day - 1

	jDayNo := 365*jy + (jy/33)*8 + ((jy%33)+3)/4
	for i := 0; i < d.Month; i++ {
		jDayNo += jalaliDaysInMonth[i]
	}
	jDayNo += jd

	dayNo := jDayNo + epochShiftDays

	gy := gregorianEpochYear + 400*(dayNo/daysPer400Years)
	dayNo %= daysPer400Years

	leap := true
	if dayNo >= daysPer100Years+1 {
		dayNo--
		gy += 100 * (dayNo / daysPer100Years)
		dayNo %= daysPer100Years

		if dayNo >= 365 {
			dayNo++
		} else {
			leap = false
		}
	}

	gy += 4 * (dayNo / daysPer4Years)
	dayNo %= daysPer4Years

	if dayNo >= 366 {
		leap = false
		dayNo--
		gy += dayNo / 365
		dayNo %= 365
	}

	gm := 0
	for {
		length := gregorianDaysInMonth[gm]
		if gm == 1 && leap {
			length++
		}
		if dayNo < length {
			break
		}
		dayNo -= length
		gm++
	}

	return Date{Year: gy, Month: gm, Day: dayNo + 1, System: Gregorian}, nil
}

// IsLeapYear reports whether the Jalali year has 366 days. It follows the
// fixed 33-year arithmetic rule, not the astronomical equinox calendar.
func IsLeapYear(jalaliYear int) bool {
	r := jalaliYear % 33
	if r < 0 {
		r += 33
	}
	return jalaliLeapRemainders[r]
}

// IsGregorianLeapYear applies the 400/100/4 rule.
func IsGregorianLeapYear(year int) bool {
	return isGregorianLeap(year)
}

func isGregorianLeap(y int) bool {
	return (y%4 == 0 && y%100 != 0) || y%400 == 0
}

// DayOfWeek returns the weekday of d, whichever system it is expressed in.
func DayOfWeek(d Date) (time.Weekday, error) {
	g, err := d.In(Gregorian)
	if err != nil {
		return 0, err
	}
	return time.Date(g.Year, time.Month(g.Month+1), g.Day, 12, 0, 0, 0, time.UTC).Weekday(), nil
}

// JalaliWeekday returns the position of wd in a Saturday-first week (0..6).
func JalaliWeekday(wd time.Weekday) int {
	return jalaliWeekdayIndex[wd]
}

// DayOfYear returns the 1-based day of the year of a Jalali date.
func DayOfYear(d Date) int {
	if d.Month < 6 {
		return d.Month*31 + d.Day
	}
	return 186 + (d.Month-6)*30 + d.Day
}

// WeekOfYear returns the 1-based Saturday-first week that contains the
// given 1-based day of the Jalali year.
func WeekOfYear(dayOfYear, year int) int {
	return WeekOfYearFrom(dayOfYear, year, time.Saturday)
}

// WeekOfYearFrom is WeekOfYear with weeks starting on weekStart.
func WeekOfYearFrom(dayOfYear, year int, weekStart time.Weekday) int {
	wd, err := DayOfWeek(Date{Year: year, Month: 0, Day: 1, System: Jalali})
	if err != nil {
		return 0
	}
	offset := (JalaliWeekday(wd) - JalaliWeekday(weekStart) + 7) % 7
	return (dayOfYear-1+offset)/7 + 1
}

// ParseWeekStart accepts saturday, sunday or monday, case-insensitive.
// An empty string means Saturday.
func ParseWeekStart(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "saturday":
		return time.Saturday, nil
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	default:
		return 0, fmt.Errorf("calendar: unsupported week start %q: %w", s, ErrInvalidArgument)
	}
}
