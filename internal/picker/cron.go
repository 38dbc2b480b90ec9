package picker

import (
	"fmt"
	"time"

	"pickcal/internal/config"
	"pickcal/internal/timepoint"
)

// cronReference is the instant after which a cron spec is first matched.
// It is a Monday so weekday fields resolve predictably.
var cronReference = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// TimesFromCron lists the times of day a cron spec fires on the first day
// it matches. "*/15 9-11 * * *" yields 09:00, 09:15 .. 11:45. The date
// fields only pick which day is read, so they normally stay "*".
func TimesFromCron(spec string) ([]timepoint.Timepoint, error) {
	sched, err := config.ParseSchedule(spec)
	if err != nil {
		return nil, fmt.Errorf("cron %q: %w", spec, err)
	}

	first := sched.Next(cronReference.Add(-time.Second))
	if first.IsZero() {
		return nil, fmt.Errorf("cron %q never fires", spec)
	}
	y, m, d := first.Date()
	dayEnd := time.Date(y, m, d+1, 0, 0, 0, 0, first.Location())

	var out []timepoint.Timepoint
	for t := first; !t.IsZero() && t.Before(dayEnd); t = sched.Next(t) {
		out = append(out, timepoint.New(t.Hour(), t.Minute(), t.Second()))
	}
	return out, nil
}
