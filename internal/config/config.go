package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"pickcal/internal/calendar"
	appLog "pickcal/internal/log"
	"pickcal/internal/timepoint"
)

const DefaultPath = "/etc/pickcal/config.yaml"

// HolidaySource is one ICS feed whose events become disabled days.
// Exactly one of URL and Path is set.
type HolidaySource struct {
	ID   string `yaml:"id" json:"id" validate:"required"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty" validate:"omitempty,url"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password" validate:"required"`
}

// RateLimitConfig is a token bucket applied per client address.
// RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" json:"rps" validate:"gte=0"`
	Burst int     `yaml:"burst" json:"burst" validate:"gte=0"`
}

// DateConfig constrains the date picker. Dates are YYYY-MM-DD in the
// configured calendar system, months 1-based.
type DateConfig struct {
	MinDate string `yaml:"min_date,omitempty" json:"min_date,omitempty"`
	MaxDate string `yaml:"max_date,omitempty" json:"max_date,omitempty"`

	// MinYear / MaxYear are counted in the configured calendar system.
	MinYear int `yaml:"min_year" json:"min_year" validate:"gte=0"`
	MaxYear int `yaml:"max_year" json:"max_year" validate:"gte=0"`

	SelectableDays []string `yaml:"selectable_days,omitempty" json:"selectable_days,omitempty"`
	DisabledDays   []string `yaml:"disabled_days,omitempty" json:"disabled_days,omitempty"`

	// DisabledRules are RRULE values such as "FREQ=WEEKLY;BYDAY=FR".
	DisabledRules []string `yaml:"disabled_rules,omitempty" json:"disabled_rules,omitempty"`

	Holidays []HolidaySource `yaml:"holidays,omitempty" json:"holidays,omitempty" validate:"dive"`
}

// TimeConfig constrains the time picker. Times are HH:MM[:SS].
type TimeConfig struct {
	MinTime string `yaml:"min_time,omitempty" json:"min_time,omitempty"`
	MaxTime string `yaml:"max_time,omitempty" json:"max_time,omitempty"`

	SelectableTimes []string `yaml:"selectable_times,omitempty" json:"selectable_times,omitempty"`
	DisabledTimes   []string `yaml:"disabled_times,omitempty" json:"disabled_times,omitempty"`

	// SelectableCron / DisabledCron add every time of day matched by a cron
	// spec (optional leading seconds field) to the respective set.
	SelectableCron string `yaml:"selectable_cron,omitempty" json:"selectable_cron,omitempty"`
	DisabledCron   string `yaml:"disabled_cron,omitempty" json:"disabled_cron,omitempty"`

	// Resolution is the finest field the picker shows.
	Resolution string `yaml:"resolution" json:"resolution" validate:"oneof=hour minute second"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// Timezone is the IANA zone in which "today" and all days are counted.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required"`

	// Calendar is the system dates are written and years counted in.
	Calendar string `yaml:"calendar" json:"calendar" validate:"oneof=gregorian jalali"`

	WeekStart string `yaml:"week_start" json:"week_start" validate:"oneof=saturday sunday monday"`

	// RefreshCron is the cron schedule for reloading holiday feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format" validate:"oneof=console json"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Date DateConfig `yaml:"date" json:"date"`
	Time TimeConfig `yaml:"time" json:"time"`
}

// CronParser accepts standard 5-field specs, an optional leading seconds
// field and descriptors such as @hourly.
var CronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a cron spec with an optional leading seconds field.
func ParseSchedule(spec string) (cron.Schedule, error) {
	return CronParser.Parse(spec)
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "UTC",
		Calendar:    "gregorian",
		WeekStart:   "monday",
		RefreshCron: "0 */6 * * *",
		CacheDir:    "./var/ics-cache",
		LogLevel:    "info",
		LogFormat:   "console",
		RateLimit:   RateLimitConfig{RPS: 20, Burst: 40},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing values so that partially-filled configs
// still behave correctly. Unknown enum values are left for Validate.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if sys, err := calendar.ParseSystem(c.Calendar); err == nil {
		c.Calendar = sys.String()
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart == "" {
		if c.Calendar == calendar.Jalali.String() {
			c.WeekStart = "saturday"
		} else {
			c.WeekStart = "monday"
		}
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 */6 * * *"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS*2) + 1
	}

	minYear, maxYear := calendar.DefaultYearRange(c.System())
	if c.Date.MinYear == 0 {
		c.Date.MinYear = minYear
	}
	if c.Date.MaxYear == 0 {
		c.Date.MaxYear = maxYear
	}

	if c.Time.Resolution == "" {
		c.Time.Resolution = "minute"
	}
	c.Time.Resolution = strings.ToLower(c.Time.Resolution)
}

// System is the configured calendar system; unknown values mean Gregorian.
func (c *Config) System() calendar.System {
	sys, err := calendar.ParseSystem(c.Calendar)
	if err != nil {
		return calendar.Gregorian
	}
	return sys
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Resolution is the parsed time picker resolution.
func (c *Config) Resolution() timepoint.Field {
	f, err := timepoint.ParseField(c.Time.Resolution)
	if err != nil || f == timepoint.Unset {
		return timepoint.Minute
	}
	return f
}

// WeekStartDay maps week_start to a time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	wd, err := calendar.ParseWeekStart(c.WeekStart)
	if err != nil {
		return time.Monday
	}
	return wd
}

var validate = validator.New()

// Validate checks struct tags first, then everything that needs parsing.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if _, err := ParseSchedule(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh: %w", err))
	}

	errs = append(errs, c.validateDate()...)
	errs = append(errs, c.validateTime()...)
	return errors.Join(errs...)
}

func (c *Config) validateDate() []error {
	var errs []error
	sys := c.System()
	d := c.Date

	if d.MaxYear < d.MinYear {
		errs = append(errs, fmt.Errorf("date.max_year %d before min_year %d", d.MaxYear, d.MinYear))
	}

	var minDate, maxDate calendar.Date
	var haveMin, haveMax bool
	if d.MinDate != "" {
		v, err := calendar.ParseDate(d.MinDate, sys)
		if err != nil {
			errs = append(errs, fmt.Errorf("date.min_date: %w", err))
		}
		minDate, haveMin = v, err == nil
	}
	if d.MaxDate != "" {
		v, err := calendar.ParseDate(d.MaxDate, sys)
		if err != nil {
			errs = append(errs, fmt.Errorf("date.max_date: %w", err))
		}
		maxDate, haveMax = v, err == nil
	}
	if haveMin && haveMax && dateAfter(minDate, maxDate) {
		errs = append(errs, fmt.Errorf("date.min_date %s after max_date %s", minDate, maxDate))
	}

	for i, s := range d.SelectableDays {
		if _, err := calendar.ParseDate(s, sys); err != nil {
			errs = append(errs, fmt.Errorf("date.selectable_days[%d]: %w", i, err))
		}
	}
	for i, s := range d.DisabledDays {
		if _, err := calendar.ParseDate(s, sys); err != nil {
			errs = append(errs, fmt.Errorf("date.disabled_days[%d]: %w", i, err))
		}
	}
	for i, r := range d.DisabledRules {
		if strings.Contains(strings.ToUpper(r), "DTSTART") {
			if _, err := rrule.StrToRRuleSet(r); err != nil {
				errs = append(errs, fmt.Errorf("date.disabled_rules[%d]: %w", i, err))
			}
			continue
		}
		if _, err := rrule.StrToRRule(strings.TrimPrefix(strings.TrimSpace(r), "RRULE:")); err != nil {
			errs = append(errs, fmt.Errorf("date.disabled_rules[%d]: %w", i, err))
		}
	}

	seen := make(map[string]bool, len(d.Holidays))
	for i, h := range d.Holidays {
		if (h.URL == "") == (h.Path == "") {
			errs = append(errs, fmt.Errorf("date.holidays[%d]: exactly one of url and path is required", i))
		}
		if seen[h.ID] {
			errs = append(errs, fmt.Errorf("date.holidays[%d]: duplicate id %q", i, h.ID))
		}
		seen[h.ID] = true
	}
	return errs
}

func dateAfter(a, b calendar.Date) bool {
	if a.Year != b.Year {
		return a.Year > b.Year
	}
	if a.Month != b.Month {
		return a.Month > b.Month
	}
	return a.Day > b.Day
}

func (c *Config) validateTime() []error {
	var errs []error
	t := c.Time

	var minT, maxT timepoint.Timepoint
	var haveMin, haveMax bool
	if t.MinTime != "" {
		v, err := timepoint.Parse(t.MinTime)
		if err != nil {
			errs = append(errs, fmt.Errorf("time.min_time: %w", err))
		}
		minT, haveMin = v, err == nil
	}
	if t.MaxTime != "" {
		v, err := timepoint.Parse(t.MaxTime)
		if err != nil {
			errs = append(errs, fmt.Errorf("time.max_time: %w", err))
		}
		maxT, haveMax = v, err == nil
	}
	if haveMin && haveMax && minT.After(maxT) {
		errs = append(errs, fmt.Errorf("time.min_time %s after max_time %s", minT, maxT))
	}

	for i, s := range t.SelectableTimes {
		if _, err := timepoint.Parse(s); err != nil {
			errs = append(errs, fmt.Errorf("time.selectable_times[%d]: %w", i, err))
		}
	}
	for i, s := range t.DisabledTimes {
		if _, err := timepoint.Parse(s); err != nil {
			errs = append(errs, fmt.Errorf("time.disabled_times[%d]: %w", i, err))
		}
	}
	if t.SelectableCron != "" {
		if _, err := ParseSchedule(t.SelectableCron); err != nil {
			errs = append(errs, fmt.Errorf("time.selectable_cron: %w", err))
		}
	}
	if t.DisabledCron != "" {
		if _, err := ParseSchedule(t.DisabledCron); err != nil {
			errs = append(errs, fmt.Errorf("time.disabled_cron: %w", err))
		}
	}
	return errs
}

// Environment overrides, applied after the file is read.
const (
	EnvListen   = "PICKCAL_LISTEN"
	EnvTimezone = "PICKCAL_TIMEZONE"
	EnvCalendar = "PICKCAL_CALENDAR"
	EnvLogLevel = "PICKCAL_LOG_LEVEL"
)

// ApplyEnv loads a .env file from the working directory if present, then
// overrides fields from PICKCAL_* variables.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(EnvCalendar); v != "" {
		c.Calendar = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Load reads the YAML file at path, applies env overrides, normalizes and
// validates. A missing file is created with defaults (0600) first.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		appLog.Info("wrote default config", "path", path)
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg atomically via a temp file in the same directory, with
// 0700 on the directory and 0600 on the file.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pickcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
