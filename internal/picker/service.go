// Package picker assembles the date and time limiters from configuration
// and holiday sources, and answers picker queries against them.
package picker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pickcal/internal/calendar"
	"pickcal/internal/config"
	"pickcal/internal/ics"
	"pickcal/internal/limiter"
	appLog "pickcal/internal/log"
	"pickcal/internal/model"
	"pickcal/internal/timepoint"
)

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHTTPClient sets the client used to download holiday feeds.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// Service owns one immutable snapshot of both limiters and replaces it on
// Reload. Queries never block on a reload in progress.
type Service struct {
	cfg     *config.Config
	now     func() time.Time
	client  *http.Client
	fetcher *ics.Fetcher

	reloadMu sync.Mutex

	mu    sync.RWMutex
	state *snapshot
}

type snapshot struct {
	ctrl       limiter.StaticController
	dates      *limiter.DefaultDateRangeLimiter
	times      *limiter.DefaultTimepointLimiter
	resolution timepoint.Field
	marks      []model.DayMark
	feedErrors []string
	// truncated lists "source/uid" for recurring events cut at the
	// occurrence cap.
	truncated []string
	builtAt   time.Time
}

// New builds a Service and performs the first load. Holiday feed failures
// are logged and do not fail New; invalid configuration does.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.fetcher = ics.NewFetcher(cfg.CacheDir, s.client)
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rebuilds both limiters and swaps them in atomically.
func (s *Service) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	next, err := s.build(ctx)
	if err != nil {
		appLog.Error("picker reload failed", err)
		return err
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	appLog.Info("picker reloaded",
		"calendar", next.ctrl.System(),
		"disabled_days", len(next.dates.Config().DisabledDays),
		"marks", len(next.marks),
		"feed_errors", len(next.feedErrors),
		"truncated_events", len(next.truncated),
		"took", time.Since(start).String(),
	)
	return nil
}

func (s *Service) snapshot() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) build(ctx context.Context) (*snapshot, error) {
	cfg := s.cfg
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	sys := cfg.System()
	ctrl := limiter.StaticController{Loc: loc, Calendar: sys, Now: s.now}

	dateCfg, err := s.dateConfig(sys, loc)
	if err != nil {
		return nil, err
	}
	dates, err := limiter.NewDateRangeLimiterFromConfig(ctrl, dateCfg)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{ctrl: ctrl, dates: dates, resolution: cfg.Resolution(), builtAt: s.now()}

	// Feeds and rules are expanded over the window the limiter can ever
	// return, so the window has to exist before they are added.
	from, to := dates.StartDate(), dates.EndDate()
	for _, rule := range cfg.Date.DisabledRules {
		marks, err := ics.ExpandRule(rule, from, to, loc)
		if err != nil {
			return nil, fmt.Errorf("date.disabled_rules: %w", err)
		}
		snap.marks = append(snap.marks, marks...)
	}
	snap.marks = append(snap.marks, s.holidayMarks(ctx, from, to, loc, snap)...)

	if len(snap.marks) > 0 {
		disabled := append(dateCfg.DisabledDays, model.Days(snap.marks)...)
		dates.SetDisabledDays(disabled)
	}

	times, err := s.timeLimiter()
	if err != nil {
		return nil, err
	}
	snap.times = times
	return snap, nil
}

func (s *Service) dateConfig(sys calendar.System, loc *time.Location) (limiter.DateRangeConfig, error) {
	d := s.cfg.Date
	out := limiter.DateRangeConfig{MinYear: d.MinYear, MaxYear: d.MaxYear}

	parse := func(key, v string) (time.Time, error) {
		date, err := calendar.ParseDate(v, sys)
		if err != nil {
			return time.Time{}, fmt.Errorf("date.%s: %w", key, err)
		}
		return date.Time(loc)
	}

	var err error
	if d.MinDate != "" {
		if out.MinDate, err = parse("min_date", d.MinDate); err != nil {
			return out, err
		}
	}
	if d.MaxDate != "" {
		if out.MaxDate, err = parse("max_date", d.MaxDate); err != nil {
			return out, err
		}
	}
	for _, v := range d.SelectableDays {
		t, err := parse("selectable_days", v)
		if err != nil {
			return out, err
		}
		out.SelectableDays = append(out.SelectableDays, t)
	}
	for _, v := range d.DisabledDays {
		t, err := parse("disabled_days", v)
		if err != nil {
			return out, err
		}
		out.DisabledDays = append(out.DisabledDays, t)
	}
	return out, nil
}

func (s *Service) holidayMarks(ctx context.Context, from, to time.Time, loc *time.Location, snap *snapshot) []model.DayMark {
	if len(s.cfg.Date.Holidays) == 0 {
		return nil
	}
	sources := make([]ics.Source, 0, len(s.cfg.Date.Holidays))
	for _, h := range s.cfg.Date.Holidays {
		sources = append(sources, ics.Source{ID: h.ID, Name: h.Name, URL: h.URL, Path: h.Path})
	}

	results, errs := s.fetcher.FetchAll(ctx, sources)
	for _, err := range errs {
		snap.feedErrors = append(snap.feedErrors, err.Error())
	}

	var marks []model.DayMark
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body, loc)
		if err != nil {
			appLog.Error("holiday feed parse failed", err, "id", res.Source.ID)
			snap.feedErrors = append(snap.feedErrors, fmt.Sprintf("source %s: %v", res.Source.ID, err))
			continue
		}
		expanded, err := ics.ExpandDays(events, ics.ExpandConfig{Location: loc, RangeStart: from, RangeEnd: to})
		if err != nil {
			appLog.Error("holiday feed expand failed", err, "id", res.Source.ID)
			continue
		}
		for _, uid := range expanded.TruncatedEvents {
			appLog.Warn("holiday event truncated", "id", res.Source.ID, "uid", uid)
			snap.truncated = append(snap.truncated, res.Source.ID+"/"+uid)
		}
		marks = append(marks, expanded.Marks...)
	}
	return marks
}

func (s *Service) timeLimiter() (*limiter.DefaultTimepointLimiter, error) {
	t := s.cfg.Time
	var out limiter.TimepointConfig

	if t.MinTime != "" {
		p, err := timepoint.Parse(t.MinTime)
		if err != nil {
			return nil, fmt.Errorf("time.min_time: %w", err)
		}
		out.MinTime = &p
	}
	if t.MaxTime != "" {
		p, err := timepoint.Parse(t.MaxTime)
		if err != nil {
			return nil, fmt.Errorf("time.max_time: %w", err)
		}
		out.MaxTime = &p
	}

	var err error
	if out.SelectableTimes, err = timeSet(t.SelectableTimes, t.SelectableCron); err != nil {
		return nil, fmt.Errorf("time.selectable: %w", err)
	}
	if out.DisabledTimes, err = timeSet(t.DisabledTimes, t.DisabledCron); err != nil {
		return nil, fmt.Errorf("time.disabled: %w", err)
	}
	return limiter.NewTimepointLimiterFromConfig(out)
}

func timeSet(list []string, spec string) ([]timepoint.Timepoint, error) {
	out := make([]timepoint.Timepoint, 0, len(list))
	for _, v := range list {
		p, err := timepoint.Parse(v)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if spec != "" {
		fromCron, err := TimesFromCron(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, fromCron...)
	}
	return out, nil
}

// System is the calendar system dates are read and written in.
func (s *Service) System() calendar.System { return s.snapshot().ctrl.System() }

// Location is the zone days are counted in.
func (s *Service) Location() *time.Location { return s.snapshot().ctrl.Location() }

// Resolution is the configured finest time field.
func (s *Service) Resolution() timepoint.Field { return s.snapshot().resolution }

// WeekStart is the configured first day of the week.
func (s *Service) WeekStart() time.Weekday { return s.cfg.WeekStartDay() }

// Today is the controller's current day.
func (s *Service) Today() time.Time { return s.snapshot().ctrl.Today() }

// Dates returns the current date limiter. It is replaced, not mutated, on reload.
func (s *Service) Dates() *limiter.DefaultDateRangeLimiter { return s.snapshot().dates }

// Times returns the current time limiter.
func (s *Service) Times() *limiter.DefaultTimepointLimiter { return s.snapshot().times }

// FeedErrors lists the holiday sources that failed on the last reload.
func (s *Service) FeedErrors() []string {
	return append([]string(nil), s.snapshot().feedErrors...)
}

// TruncatedEvents lists, as "source/uid", the recurring holiday events
// whose occurrences were cut off on the last reload.
func (s *Service) TruncatedEvents() []string {
	return append([]string(nil), s.snapshot().truncated...)
}

// LoadedAt is when the current snapshot was built.
func (s *Service) LoadedAt() time.Time { return s.snapshot().builtAt }
