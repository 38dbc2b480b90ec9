package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pickcal/internal/calendar"
	appLog "pickcal/internal/log"
	"pickcal/internal/picker"
	"pickcal/internal/timepoint"
)

// maxDaysSpan bounds /api/days.
const maxDaysSpan = 3660

// dayJSON renders one day in both calendar systems.
type dayJSON struct {
	Gregorian string `json:"gregorian"`
	Jalali    string `json:"jalali"`
	Weekday   string `json:"weekday"`
}

func newDayJSON(t time.Time) dayJSON {
	return dayJSON{
		Gregorian: calendar.FromTime(t, calendar.Gregorian).String(),
		Jalali:    calendar.FromTime(t, calendar.Jalali).String(),
		Weekday:   t.Weekday().String(),
	}
}

type dateResponse struct {
	Calendar   string  `json:"calendar"`
	Input      dayJSON `json:"input"`
	OutOfRange bool    `json:"out_of_range"`
	Nearest    dayJSON `json:"nearest"`
	Start      dayJSON `json:"start"`
	End        dayJSON `json:"end"`
	MinYear    int     `json:"min_year"`
	MaxYear    int     `json:"max_year"`
}

type timeResponse struct {
	Input      string `json:"input"`
	Field      string `json:"field"`
	Resolution string `json:"resolution"`
	OutOfRange bool   `json:"out_of_range"`
	Nearest    string `json:"nearest"`
	AMDisabled bool   `json:"am_disabled"`
	PMDisabled bool   `json:"pm_disabled"`
}

type convertResponse struct {
	Gregorian        string `json:"gregorian"`
	Jalali           string `json:"jalali"`
	JalaliMonth      string `json:"jalali_month"`
	Weekday          string `json:"weekday"`
	JalaliDayOfYear  int    `json:"jalali_day_of_year"`
	JalaliWeekOfYear int    `json:"jalali_week_of_year"`
	WeekStart        string `json:"week_start"`
	GregorianLeap    bool   `json:"gregorian_leap"`
	JalaliLeap       bool   `json:"jalali_leap"`
}

type dayMarkJSON struct {
	Day      dayJSON `json:"day"`
	SourceID string  `json:"source"`
	UID      string  `json:"uid,omitempty"`
	Summary  string  `json:"summary,omitempty"`
}

type daysResponse struct {
	From  dayJSON       `json:"from"`
	To    dayJSON       `json:"to"`
	Marks []dayMarkJSON `json:"marks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// systemParam reads a calendar system query parameter, defaulting to the
// service's own system.
func (s *Server) systemParam(r *http.Request, key string) (calendar.System, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return s.svc.System(), nil
	}
	return calendar.ParseSystem(v)
}

func (s *Server) handleDate(w http.ResponseWriter, r *http.Request) {
	sys, err := s.systemParam(r, "calendar")
	if err != nil {
		s.badRequest(w, r, "date", err)
		return
	}

	var ans picker.DateAnswer
	if v := r.URL.Query().Get("date"); v != "" {
		t, err := s.svc.ParseDate(v, sys)
		if err != nil {
			s.badRequest(w, r, "date", err)
			return
		}
		ans = s.svc.ResolveDate(t)
	} else {
		ans = s.svc.DefaultDate()
	}

	s.countQuery("date", ans.OutOfRange)
	writeJSON(w, http.StatusOK, dateResponse{
		Calendar:   s.svc.System().String(),
		Input:      newDayJSON(ans.Input),
		OutOfRange: ans.OutOfRange,
		Nearest:    newDayJSON(ans.Nearest),
		Start:      newDayJSON(ans.StartDate),
		End:        newDayJSON(ans.EndDate),
		MinYear:    ans.MinYear,
		MaxYear:    ans.MaxYear,
	})
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("time")
	if raw == "" {
		s.badRequest(w, r, "time", errors.New("time is required"))
		return
	}
	p, err := timepoint.Parse(raw)
	if err != nil {
		s.badRequest(w, r, "time", err)
		return
	}
	field, err := timepoint.ParseField(q.Get("field"))
	if err != nil {
		s.badRequest(w, r, "time", err)
		return
	}
	resolution, err := timepoint.ParseField(q.Get("resolution"))
	if err != nil {
		s.badRequest(w, r, "time", err)
		return
	}

	ans := s.svc.ResolveTime(p, field, resolution)
	s.countQuery("time", ans.OutOfRange)
	writeJSON(w, http.StatusOK, timeResponse{
		Input:      ans.Input.String(),
		Field:      ans.Field.String(),
		Resolution: ans.Resolution.String(),
		OutOfRange: ans.OutOfRange,
		Nearest:    ans.Nearest.String(),
		AMDisabled: ans.AMDisabled,
		PMDisabled: ans.PMDisabled,
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := calendar.Gregorian
	if v := q.Get("from"); v != "" {
		sys, err := calendar.ParseSystem(v)
		if err != nil {
			s.badRequest(w, r, "convert", err)
			return
		}
		from = sys
	}
	d, err := calendar.ParseDate(q.Get("date"), from)
	if err != nil {
		s.badRequest(w, r, "convert", err)
		return
	}
	c, err := picker.Convert(d, s.svc.WeekStart())
	if err != nil {
		s.badRequest(w, r, "convert", err)
		return
	}

	s.countQuery("convert", false)
	writeJSON(w, http.StatusOK, convertResponse{
		Gregorian:        c.Gregorian.String(),
		Jalali:           c.Jalali.String(),
		JalaliMonth:      calendar.MonthName(calendar.Jalali, c.Jalali.Month),
		Weekday:          c.Weekday.String(),
		JalaliDayOfYear:  c.JalaliDayOfYear,
		JalaliWeekOfYear: c.JalaliWeekOfYear,
		WeekStart:        strings.ToLower(c.WeekStart.String()),
		GregorianLeap:    c.GregorianLeap,
		JalaliLeap:       c.JalaliLeap,
	})
}

// handleDays lists feed and rule marks. from defaults to today and to
// defaults to from + days (30 unless given).
func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sys, err := s.systemParam(r, "calendar")
	if err != nil {
		s.badRequest(w, r, "days", err)
		return
	}

	from := s.svc.Today()
	if v := q.Get("from"); v != "" {
		if from, err = s.svc.ParseDate(v, sys); err != nil {
			s.badRequest(w, r, "days", err)
			return
		}
	}
	to := from.AddDate(0, 0, parseIntDefault(q.Get("days"), 30))
	if v := q.Get("to"); v != "" {
		if to, err = s.svc.ParseDate(v, sys); err != nil {
			s.badRequest(w, r, "days", err)
			return
		}
	}
	if to.Before(from) {
		s.badRequest(w, r, "days", errors.New("to is before from"))
		return
	}
	if to.Sub(from) > maxDaysSpan*24*time.Hour {
		s.badRequest(w, r, "days", fmt.Errorf("range exceeds %d days", maxDaysSpan))
		return
	}

	marks := s.svc.DayMarks(from, to)
	resp := daysResponse{From: newDayJSON(from), To: newDayJSON(to), Marks: make([]dayMarkJSON, 0, len(marks))}
	for _, m := range marks {
		resp.Marks = append(resp.Marks, dayMarkJSON{
			Day:      newDayJSON(m.Day),
			SourceID: m.SourceID,
			UID:      m.UID,
			Summary:  m.Summary,
		})
	}
	s.countQuery("days", false)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reload(r.Context()); err != nil {
		appLog.Error("reload request failed", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded_at":        s.svc.LoadedAt().Format(time.RFC3339),
		"feed_errors":      s.svc.FeedErrors(),
		"truncated_events": s.svc.TruncatedEvents(),
	})
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, kind string, err error) {
	s.queries.WithLabelValues(kind, "error").Inc()
	msg := err.Error()
	// Sentinel suffixes are noise for API clients.
	msg = strings.TrimSuffix(msg, ": "+calendar.ErrInvalidArgument.Error())
	appLog.Debug("bad request", "kind", kind, "err", msg, "request_id", RequestID(r.Context()))
	writeError(w, http.StatusBadRequest, msg)
}

func (s *Server) countQuery(kind string, outOfRange bool) {
	result := "in_range"
	if outOfRange {
		result = "out_of_range"
	}
	s.queries.WithLabelValues(kind, result).Inc()
}
