package scan

import (
	"time"

	"github.com/avenlon/sitepulse/errors"
)

// rescheduleTolerance is how far an armed daily anchor may drift from the
// configured time before it gets torn down and re-armed. Within tolerance
// the existing anchor is kept, so saving unrelated settings does not reset
// an imminent run to tomorrow.
const rescheduleTolerance = time.Hour

// NextOccurrence returns the next local time strictly after now at which the
// "HH:MM" clock time occurs. A time earlier than or equal to now's clock
// rolls to tomorrow.
func NextOccurrence(now time.Time, clock string) (time.Time, error) {
	parsed, err := time.ParseInLocation("15:04", clock, now.Location())
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid schedule time %q", clock)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next, nil
}

// MaybeScheduleDailyEvent reconciles the armed daily timer with the current
// settings. Called at startup and after every settings save.
func (e *Engine) MaybeScheduleDailyEvent() error {
	settings, err := e.store.Settings()
	if err != nil {
		return err
	}

	if !settings.AutoScanEnabled {
		e.sched.CancelDaily()
		return nil
	}

	next, err := NextOccurrence(e.now(), settings.ScheduledTime)
	if err != nil {
		return err
	}

	if anchor, ok := e.sched.DailyAnchor(); ok {
		drift := anchor.Sub(next)
		if drift < 0 {
			drift = -drift
		}
		if drift <= rescheduleTolerance {
			return nil
		}
		e.sched.CancelDaily()
	}

	e.sched.ScheduleDaily(next)
	e.logger.Infow("Daily scan scheduled", "next_run", next.Format(time.RFC3339))
	return nil
}

// HandleDailyEvent is the scheduler's daily callback. It starts a scan over
// the configured post types; a scan already in flight or an empty site just
// means this day's run is skipped.
func (e *Engine) HandleDailyEvent() {
	settings, err := e.store.Settings()
	if err != nil {
		e.logger.Errorw("Failed to load settings for scheduled scan", "error", err)
		return
	}

	if _, err := e.Start(settings.ScheduledPostTypes, TriggerSchedule); err != nil {
		e.logger.Warnw("Scheduled scan not started", "error", err)
	}
}
