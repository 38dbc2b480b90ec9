// Package timepoint provides a time-of-day value with field-aware
// arithmetic and comparison.
package timepoint

import (
	"fmt"
	"strconv"
	"strings"
)

// Field selects one component of a Timepoint. It doubles as the picker
// resolution (the finest field shown) and the field currently being edited.
type Field int

const (
	// Unset means "no field"; only meaningful as an editing field.
	Unset Field = iota - 1
	Hour
	Minute
	Second
)

func (f Field) String() string {
	switch f {
	case Hour:
		return "hour"
	case Minute:
		return "minute"
	case Second:
		return "second"
	case Unset:
		return "none"
	default:
		return "Field(" + strconv.Itoa(int(f)) + ")"
	}
}

// ParseField accepts hour, minute, second and none (or an empty string).
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hour", "hours", "h":
		return Hour, nil
	case "minute", "minutes", "m":
		return Minute, nil
	case "second", "seconds", "s":
		return Second, nil
	case "", "none":
		return Unset, nil
	default:
		return Unset, fmt.Errorf("timepoint: unknown field %q", s)
	}
}

// unitSeconds is the length of one step of f.
func (f Field) unitSeconds() int {
	switch f {
	case Hour:
		return 3600
	case Minute:
		return 60
	default:
		return 1
	}
}

const secondsPerDay = 24 * 3600

// Timepoint is an hour/minute/second of the day. The zero value is midnight.
type Timepoint struct {
	hour   int
	minute int
	second int
}

var (
	Midnight = Timepoint{}
	Midday   = Timepoint{hour: 12}
)

// New builds a Timepoint, wrapping every field into its range.
func New(hour, minute, second int) Timepoint {
	return Timepoint{
		hour:   mod(hour, 24),
		minute: mod(minute, 60),
		second: mod(second, 60),
	}
}

// FromSeconds builds a Timepoint from seconds since midnight, wrapping at a day.
func FromSeconds(total int) Timepoint {
	total = mod(total, secondsPerDay)
	return Timepoint{
		hour:   total / 3600,
		minute: (total % 3600) / 60,
		second: total % 60,
	}
}

func mod(v, m int) int {
	v %= m
	if v < 0 {
		v += m
	}
	return v
}

func (t Timepoint) Hour() int   { return t.hour }
func (t Timepoint) Minute() int { return t.minute }
func (t Timepoint) Second() int { return t.second }

// Get returns the value of field f.
func (t Timepoint) Get(f Field) int {
	switch f {
	case Hour:
		return t.hour
	case Minute:
		return t.minute
	case Second:
		return t.second
	default:
		return 0
	}
}

// Seconds returns the seconds elapsed since midnight.
func (t Timepoint) Seconds() int {
	return t.hour*3600 + t.minute*60 + t.second
}

// Compare returns the signed difference in seconds between t and o;
// negative when t is earlier.
func (t Timepoint) Compare(o Timepoint) int {
	return t.Seconds() - o.Seconds()
}

func (t Timepoint) Before(o Timepoint) bool { return t.Compare(o) < 0 }
func (t Timepoint) After(o Timepoint) bool  { return t.Compare(o) > 0 }

// EqualAt compares t and o down to resolution, ignoring finer fields.
func (t Timepoint) EqualAt(o Timepoint, resolution Field) bool {
	switch resolution {
	case Hour:
		return t.hour == o.hour
	case Minute:
		return t.hour == o.hour && t.minute == o.minute
	default:
		return t == o
	}
}

func (t Timepoint) IsAM() bool { return t.hour < 12 }
func (t Timepoint) IsPM() bool { return t.hour >= 12 }

// ToAM moves t into the first half of the day, keeping its offset from
// the 12-hour boundary (13:05 -> 01:05).
func (t Timepoint) ToAM() Timepoint {
	if t.hour >= 12 {
		t.hour %= 12
	}
	return t
}

// ToPM moves t into the second half of the day (01:05 -> 13:05).
func (t Timepoint) ToPM() Timepoint {
	if t.hour < 12 {
		t.hour = (t.hour + 12) % 24
	}
	return t
}

// Add adds delta units of f and carries into the coarser fields. The
// result wraps around midnight; there is no day rollover.
func (t Timepoint) Add(f Field, delta int) Timepoint {
	return FromSeconds(t.Seconds() + delta*f.unitSeconds())
}

// String formats t as HH:MM:SS.
func (t Timepoint) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.hour, t.minute, t.second)
}

// Parse reads HH, HH:MM or HH:MM:SS. Unlike New it rejects out-of-range
// fields, since the input is user supplied.
func Parse(s string) (Timepoint, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if s == "" || len(parts) > 3 {
		return Timepoint{}, fmt.Errorf("timepoint: malformed time %q", s)
	}
	limits := [3]int{24, 60, 60}
	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n >= limits[i] {
			return Timepoint{}, fmt.Errorf("timepoint: malformed time %q", s)
		}
		fields[i] = n
	}
	return New(fields[0], fields[1], fields[2]), nil
}

func (t Timepoint) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Timepoint) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
