package scan

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler is the deferred-task facility the engine schedules against.
//
// ScheduleTick arms a one-shot processing tick for the given job after the
// delay. ScheduleDaily registers the recurring daily scan anchored at the
// given time with a 24-hour period; DailyAnchor exposes the current anchor so
// the engine can decide whether a reschedule is warranted.
//
// Execution is best-effort and at-least-once; the engine guards against
// stale or duplicate ticks itself.
type Scheduler interface {
	ScheduleTick(jobID string, delay time.Duration)
	ScheduleDaily(anchor time.Time)
	CancelDaily()
	DailyAnchor() (time.Time, bool)
}

// TimerScheduler is the production Scheduler: one-shot ticks via
// time.AfterFunc and a long-lived goroutine for the daily recurrence.
type TimerScheduler struct {
	tickFn  func(jobID string)
	dailyFn func()
	logger  *zap.SugaredLogger

	mu          sync.Mutex
	dailyAnchor time.Time
	dailyTimer  *time.Timer
	hasDaily    bool
}

// NewTimerScheduler creates a scheduler. Handlers must be bound via OnTick
// and OnDaily before anything is scheduled.
func NewTimerScheduler(logger *zap.SugaredLogger) *TimerScheduler {
	return &TimerScheduler{logger: logger}
}

// OnTick binds the processing-tick handler (the engine's Process method).
func (s *TimerScheduler) OnTick(fn func(jobID string)) {
	s.tickFn = fn
}

// OnDaily binds the daily-event handler.
func (s *TimerScheduler) OnDaily(fn func()) {
	s.dailyFn = fn
}

// ScheduleTick arms a one-shot processing tick for jobID after delay.
func (s *TimerScheduler) ScheduleTick(jobID string, delay time.Duration) {
	if s.tickFn == nil {
		return
	}
	s.logger.Debugw("Scheduling processing tick", "job_id", jobID, "delay", delay)
	time.AfterFunc(delay, func() {
		s.tickFn(jobID)
	})
}

// ScheduleDaily registers the recurring daily event anchored at the given
// time. Any existing registration is replaced.
func (s *TimerScheduler) ScheduleDaily(anchor time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dailyTimer != nil {
		s.dailyTimer.Stop()
	}

	s.dailyAnchor = anchor
	s.hasDaily = true
	s.armDailyLocked()

	s.logger.Infow("Daily scan scheduled", "anchor", anchor.Format(time.RFC3339))
}

// armDailyLocked arms the timer for the current anchor. REQUIRES s.mu held.
func (s *TimerScheduler) armDailyLocked() {
	delay := time.Until(s.dailyAnchor)
	if delay < 0 {
		delay = 0
	}
	s.dailyTimer = time.AfterFunc(delay, s.fireDaily)
}

// fireDaily runs the daily handler and re-arms the timer 24 hours out.
func (s *TimerScheduler) fireDaily() {
	if s.dailyFn != nil {
		s.dailyFn()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasDaily {
		return // Cancelled while the handler ran
	}
	s.dailyAnchor = s.dailyAnchor.Add(24 * time.Hour)
	s.armDailyLocked()
}

// CancelDaily removes the recurring daily registration, if any.
func (s *TimerScheduler) CancelDaily() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dailyTimer != nil {
		s.dailyTimer.Stop()
		s.dailyTimer = nil
	}
	s.hasDaily = false
	s.logger.Infow("Daily scan unscheduled")
}

// DailyAnchor returns the anchor of the current daily registration.
func (s *TimerScheduler) DailyAnchor() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyAnchor, s.hasDaily
}

// Stop cancels all pending work. One-shot tick timers already armed may
// still fire; the engine's stale-job guard absorbs them.
func (s *TimerScheduler) Stop() {
	s.CancelDaily()
}

// NopScheduler discards all scheduling requests. Used by the synchronous CLI
// scan path, which drives Process directly instead of waiting for timers.
type NopScheduler struct{}

func (NopScheduler) ScheduleTick(string, time.Duration) {}
func (NopScheduler) ScheduleDaily(time.Time)            {}
func (NopScheduler) CancelDaily()                       {}
func (NopScheduler) DailyAnchor() (time.Time, bool)     { return time.Time{}, false }
