package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"pickcal/internal/calendar"
	"pickcal/internal/config"
	appLog "pickcal/internal/log"
	"pickcal/internal/picker"
	"pickcal/internal/timepoint"
	"pickcal/internal/web"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "0.1.0-dev"

// Options holds the persistent root flags.
type Options struct {
	ConfigPath string
	Debug      bool
	JSON       bool
}

// load reads the config and initialises logging from it.
func (o *Options) load() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", o.ConfigPath, err)
	}
	level := cfg.LogLevel
	if o.Debug {
		level = "debug"
	}
	if err := appLog.Init(level, cfg.LogFormat); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *Options) service(ctx context.Context) (*picker.Service, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return picker.New(ctx, cfg)
}

// NewServeCommand creates the serve command.
func NewServeCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Start the JSON API and reload holiday feeds on the configured refresh schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	appLog.Info("pickcal starting",
		"version", Version,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"calendar", cfg.Calendar,
		"holiday_count", len(cfg.Date.Holidays),
		"refresh", cfg.RefreshCron,
	)

	svc, err := picker.New(ctx, cfg)
	if err != nil {
		return err
	}

	sched := newScheduler(svc.Location())
	if _, err := sched.AddFunc(cfg.RefreshCron, func() {
		if err := svc.Reload(ctx); err != nil {
			appLog.Error("scheduled reload failed", err)
		}
	}); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", cfg.RefreshCron, err)
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
		appLog.Info("pickcal exiting")
	}()

	return web.NewServer(cfg, svc).Run(ctx)
}

func newScheduler(loc *time.Location) *cron.Cron {
	l := cronLogger{}
	return cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLocation(loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

// cronLogger routes scheduler messages into the app log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}

// NewDateCommand creates the date command.
func NewDateCommand(opts *Options) *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "date [YYYY-MM-DD]",
		Short: "Check a date and print the nearest selectable day",
		Long:  "Check a date against the configured range, disabled days and holidays. Without a date, today is resolved.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}
			sys := svc.System()
			if system != "" {
				if sys, err = calendar.ParseSystem(system); err != nil {
					return err
				}
			}

			ans := svc.DefaultDate()
			if len(args) == 1 {
				t, err := svc.ParseDate(args[0], sys)
				if err != nil {
					return err
				}
				ans = svc.ResolveDate(t)
			}
			return printDate(cmd.OutOrStdout(), opts.JSON, ans)
		},
	}
	cmd.Flags().StringVar(&system, "calendar", "", "Calendar system of DATE (gregorian or jalali); defaults to the configured one")
	return cmd
}

type dayOutput struct {
	Gregorian string `json:"gregorian"`
	Jalali    string `json:"jalali"`
	Weekday   string `json:"weekday"`
}

func newDayOutput(t time.Time) dayOutput {
	return dayOutput{
		Gregorian: calendar.FromTime(t, calendar.Gregorian).String(),
		Jalali:    calendar.FromTime(t, calendar.Jalali).String(),
		Weekday:   t.Weekday().String(),
	}
}

func (d dayOutput) String() string {
	return fmt.Sprintf("%s (%s) %s", d.Gregorian, d.Jalali, d.Weekday)
}

func printDate(w io.Writer, asJSON bool, ans picker.DateAnswer) error {
	out := struct {
		Input      dayOutput `json:"input"`
		OutOfRange bool      `json:"out_of_range"`
		Nearest    dayOutput `json:"nearest"`
		Start      dayOutput `json:"start"`
		End        dayOutput `json:"end"`
		MinYear    int       `json:"min_year"`
		MaxYear    int       `json:"max_year"`
	}{
		Input:      newDayOutput(ans.Input),
		OutOfRange: ans.OutOfRange,
		Nearest:    newDayOutput(ans.Nearest),
		Start:      newDayOutput(ans.StartDate),
		End:        newDayOutput(ans.EndDate),
		MinYear:    ans.MinYear,
		MaxYear:    ans.MaxYear,
	}
	if asJSON {
		return writeJSON(w, out)
	}
	_, err := fmt.Fprintf(w,
		"input:        %s\nout of range: %t\nnearest:      %s\nrange:        %s .. %s\nyears:        %d .. %d\n",
		out.Input, out.OutOfRange, out.Nearest, out.Start, out.End, out.MinYear, out.MaxYear)
	return err
}

// NewTimeCommand creates the time command.
func NewTimeCommand(opts *Options) *cobra.Command {
	var field, resolution string
	cmd := &cobra.Command{
		Use:   "time HH:MM[:SS]",
		Short: "Check a time of day and print the nearest selectable time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := timepoint.Parse(args[0])
			if err != nil {
				return err
			}
			f, err := timepoint.ParseField(field)
			if err != nil {
				return err
			}
			res, err := timepoint.ParseField(resolution)
			if err != nil {
				return err
			}
			svc, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}
			return printTime(cmd.OutOrStdout(), opts.JSON, svc.ResolveTime(p, f, res))
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "Field being edited: hour, minute or second")
	cmd.Flags().StringVar(&resolution, "resolution", "", "Rounding resolution; defaults to the configured one")
	return cmd
}

func printTime(w io.Writer, asJSON bool, ans picker.TimeAnswer) error {
	out := struct {
		Input      string `json:"input"`
		Field      string `json:"field"`
		Resolution string `json:"resolution"`
		OutOfRange bool   `json:"out_of_range"`
		Nearest    string `json:"nearest"`
		AMDisabled bool   `json:"am_disabled"`
		PMDisabled bool   `json:"pm_disabled"`
	}{
		Input:      ans.Input.String(),
		Field:      ans.Field.String(),
		Resolution: ans.Resolution.String(),
		OutOfRange: ans.OutOfRange,
		Nearest:    ans.Nearest.String(),
		AMDisabled: ans.AMDisabled,
		PMDisabled: ans.PMDisabled,
	}
	if asJSON {
		return writeJSON(w, out)
	}
	_, err := fmt.Fprintf(w,
		"input:        %s (field %s, resolution %s)\nout of range: %t\nnearest:      %s\nam disabled:  %t\npm disabled:  %t\n",
		out.Input, out.Field, out.Resolution, out.OutOfRange, out.Nearest, out.AMDisabled, out.PMDisabled)
	return err
}

// NewConvertCommand creates the convert command. It needs no config.
func NewConvertCommand(opts *Options) *cobra.Command {
	var from, weekStart string
	cmd := &cobra.Command{
		Use:   "convert YYYY-MM-DD",
		Short: "Convert a date between the Gregorian and Jalali calendars",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := calendar.ParseSystem(from)
			if err != nil {
				return err
			}
			start, err := calendar.ParseWeekStart(weekStart)
			if err != nil {
				return err
			}
			d, err := calendar.ParseDate(args[0], sys)
			if err != nil {
				return err
			}
			c, err := picker.Convert(d, start)
			if err != nil {
				return err
			}
			return printConversion(cmd.OutOrStdout(), opts.JSON, c)
		},
	}
	cmd.Flags().StringVar(&from, "from", "gregorian", "Calendar system of DATE (gregorian or jalali)")
	cmd.Flags().StringVar(&weekStart, "week-start", "saturday", "First day of the week for the week number (saturday, sunday or monday)")
	return cmd
}

func printConversion(w io.Writer, asJSON bool, c picker.Conversion) error {
	out := struct {
		Gregorian        string `json:"gregorian"`
		Jalali           string `json:"jalali"`
		JalaliMonth      string `json:"jalali_month"`
		Weekday          string `json:"weekday"`
		JalaliDayOfYear  int    `json:"jalali_day_of_year"`
		JalaliWeekOfYear int    `json:"jalali_week_of_year"`
		WeekStart        string `json:"week_start"`
		GregorianLeap    bool   `json:"gregorian_leap"`
		JalaliLeap       bool   `json:"jalali_leap"`
	}{
		Gregorian:        c.Gregorian.String(),
		Jalali:           c.Jalali.String(),
		JalaliMonth:      calendar.MonthName(calendar.Jalali, c.Jalali.Month),
		Weekday:          c.Weekday.String(),
		JalaliDayOfYear:  c.JalaliDayOfYear,
		JalaliWeekOfYear: c.JalaliWeekOfYear,
		WeekStart:        strings.ToLower(c.WeekStart.String()),
		GregorianLeap:    c.GregorianLeap,
		JalaliLeap:       c.JalaliLeap,
	}
	if asJSON {
		return writeJSON(w, out)
	}
	_, err := fmt.Fprintf(w,
		"gregorian: %s (leap %t)\njalali:    %s %s (leap %t)\nweekday:   %s\nday %d, week %d of the Jalali year (weeks start %s)\n",
		out.Gregorian, out.GregorianLeap, out.Jalali, out.JalaliMonth, out.JalaliLeap,
		out.Weekday, out.JalaliDayOfYear, out.JalaliWeekOfYear, out.WeekStart)
	return err
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pickcal version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "pickcal", Version)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
