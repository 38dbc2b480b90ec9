package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"pickcal/internal/calendar"
	"pickcal/internal/timepoint"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.Calendar != "gregorian" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Date.MinYear != 1900 || cfg.Date.MaxYear != 2100 {
		t.Fatalf("year defaults = %d..%d", cfg.Date.MinYear, cfg.Date.MaxYear)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}

func TestLoadReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
listen: ":9090"
timezone: Asia/Tehran
calendar: persian
date:
  min_date: "1403-01-01"
  max_date: "1403-12-29"
  disabled_days: ["1403-01-13"]
  disabled_rules: ["FREQ=WEEKLY;BYDAY=FR"]
  holidays:
    - id: iran
      name: Iran holidays
      url: https://example.com/iran.ics
time:
  min_time: "08:00"
  max_time: "17:30"
  disabled_cron: "0 12 * * *"
  resolution: Minute
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.System() != calendar.Jalali || cfg.Calendar != "jalali" {
		t.Errorf("calendar = %q", cfg.Calendar)
	}
	if cfg.WeekStart != "saturday" || cfg.WeekStartDay() != time.Saturday {
		t.Errorf("week start = %q", cfg.WeekStart)
	}
	if cfg.Date.MinYear != 1279 || cfg.Date.MaxYear != 1479 {
		t.Errorf("jalali year defaults = %d..%d", cfg.Date.MinYear, cfg.Date.MaxYear)
	}
	if cfg.Resolution() != timepoint.Minute {
		t.Errorf("resolution = %v", cfg.Resolution())
	}
	if len(cfg.Date.Holidays) != 1 || cfg.Date.Holidays[0].ID != "iran" {
		t.Errorf("holidays = %+v", cfg.Date.Holidays)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Asia/Tehran" {
		t.Errorf("Location() = %v, %v", loc, err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvListen, "0.0.0.0:7000")
	t.Setenv(EnvCalendar, "jalali")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "0.0.0.0:7000" || cfg.Calendar != "jalali" || cfg.LogLevel != "debug" {
		t.Fatalf("env not applied: %+v", cfg)
	}

	// The file on disk keeps the plain defaults.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "7000") {
		t.Fatalf("env override leaked into the saved file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad calendar", func(c *Config) { c.Calendar = "hebrew" }, "Calendar"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad refresh", func(c *Config) { c.RefreshCron = "every day" }, "refresh"},
		{"inverted years", func(c *Config) { c.Date.MinYear, c.Date.MaxYear = 2000, 1999 }, "max_year"},
		{"bad date", func(c *Config) { c.Date.DisabledDays = []string{"2024-13-01"} }, "disabled_days[0]"},
		{"inverted dates", func(c *Config) { c.Date.MinDate, c.Date.MaxDate = "2024-05-01", "2024-04-30" }, "min_date"},
		{"bad rule", func(c *Config) { c.Date.DisabledRules = []string{"FREQ=OFTEN"} }, "disabled_rules[0]"},
		{
			"holiday without source",
			func(c *Config) { c.Date.Holidays = []HolidaySource{{ID: "x"}} },
			"exactly one of url and path",
		},
		{
			"holiday duplicate id",
			func(c *Config) {
				c.Date.Holidays = []HolidaySource{{ID: "x", Path: "a.ics"}, {ID: "x", Path: "b.ics"}}
			},
			"duplicate id",
		},
		{"holiday bad url", func(c *Config) { c.Date.Holidays = []HolidaySource{{ID: "x", URL: "nope"}} }, "URL"},
		{"bad time", func(c *Config) { c.Time.SelectableTimes = []string{"25:00"} }, "selectable_times[0]"},
		{"inverted times", func(c *Config) { c.Time.MinTime, c.Time.MaxTime = "18:00", "09:00" }, "min_time"},
		{"bad cron", func(c *Config) { c.Time.SelectableCron = "* *" }, "selectable_cron"},
		{"bad resolution", func(c *Config) { c.Time.Resolution = "day" }, "Resolution"},
		{"auth without password", func(c *Config) { c.BasicAuth = &BasicAuthConfig{Username: "a"} }, "Password"},
		{"negative rate", func(c *Config) { c.RateLimit.RPS = -1 }, "RPS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Time.SelectableTimes = []string{"09:00", "09:30"}
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Time.SelectableTimes) != 2 || got.BasicAuth == nil || got.BasicAuth.Password != "secret" {
		t.Fatalf("round trip lost fields: %+v", got)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".pickcal-config-*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestParseSchedule(t *testing.T) {
	for _, spec := range []string{"*/15 * * * *", "30 0 9 * * *", "@hourly"} {
		if _, err := ParseSchedule(spec); err != nil {
			t.Errorf("ParseSchedule(%q) error = %v", spec, err)
		}
	}
}
