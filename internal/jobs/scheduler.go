// Package jobs implements the background job framework: a polling manager
// with bounded concurrency, schedule computation, retry with backoff, and
// the built-in lifecycle jobs.
package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// Scheduler computes next-run times from schedule specifications. Pure: no
// clocks, no side effects.
type Scheduler struct{}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Next returns the first trigger time strictly after the given instant.
// One-shot schedules fire immediately when they have never run; a zero time
// with ErrNeverRuns means the schedule has no future trigger.
func (s *Scheduler) Next(spec models.ScheduleSpec, after time.Time, lastRun *time.Time) (time.Time, error) {
	switch spec.Kind {
	case models.ScheduleCron:
		schedule, err := cron.ParseStandard(spec.Cron)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", spec.Cron, err)
		}
		return schedule.Next(after), nil

	case models.ScheduleInterval:
		if spec.Interval <= 0 {
			return time.Time{}, fmt.Errorf("interval must be positive, got %s", spec.Interval)
		}
		if lastRun == nil {
			return after, nil
		}
		return lastRun.Add(spec.Interval), nil

	case models.ScheduleOneShot:
		if lastRun != nil {
			return time.Time{}, ErrNeverRuns
		}
		return after, nil

	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind: %q", spec.Kind)
	}
}

// ErrNeverRuns marks a schedule with no future trigger
var ErrNeverRuns = fmt.Errorf("schedule has no future trigger")

// Due reports whether the spec should fire at the given instant. The
// lookback is the caller's poll interval, so a cron trigger landing between
// polls of a never-run job is still seen as due.
func (s *Scheduler) Due(spec models.ScheduleSpec, now time.Time, lastRun *time.Time, lookback time.Duration) (bool, error) {
	next, err := s.Next(spec, referenceTime(lastRun, now, lookback), lastRun)
	if err != nil {
		if err == ErrNeverRuns {
			return false, nil
		}
		return false, err
	}
	return !next.After(now), nil
}

// referenceTime anchors cron computation at the last run so a poll loop that
// wakes late still sees the missed trigger as due. A job that has never run
// is anchored one lookback window back.
func referenceTime(lastRun *time.Time, now time.Time, lookback time.Duration) time.Time {
	if lastRun != nil {
		return *lastRun
	}
	if lookback <= 0 {
		lookback = time.Minute
	}
	return now.Add(-lookback)
}
