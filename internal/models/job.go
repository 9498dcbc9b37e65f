package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// ScheduleKind distinguishes the supported schedule specifications
type ScheduleKind string

// ScheduleKind constants
const (
	ScheduleCron     ScheduleKind = "cron"
	ScheduleInterval ScheduleKind = "interval"
	ScheduleOneShot  ScheduleKind = "one_shot"
)

// ScheduleSpec describes when a job should run: a cron expression, a fixed
// interval, or exactly once.
type ScheduleSpec struct {
	Kind     ScheduleKind  `json:"kind" toml:"kind" yaml:"kind"`
	Cron     string        `json:"cron,omitempty" toml:"cron" yaml:"cron"`
	Interval time.Duration `json:"interval,omitempty" toml:"interval" yaml:"interval"`
}

// UnmarshalYAML accepts interval values as duration strings ("5m", "1h")
func (s *ScheduleSpec) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Kind     ScheduleKind `yaml:"kind"`
		Cron     string       `yaml:"cron"`
		Interval string       `yaml:"interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Kind = raw.Kind
	s.Cron = raw.Cron
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", raw.Interval, err)
		}
		s.Interval = d
	}
	return nil
}

// Validate checks the schedule specification
func (s ScheduleSpec) Validate() error {
	switch s.Kind {
	case ScheduleCron:
		if s.Cron == "" {
			return errors.New("cron schedule requires an expression")
		}
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.Cron, err)
		}
	case ScheduleInterval:
		if s.Interval <= 0 {
			return fmt.Errorf("interval schedule requires a positive interval, got %s", s.Interval)
		}
	case ScheduleOneShot:
		// Nothing to validate
	default:
		return fmt.Errorf("unknown schedule kind: %q", s.Kind)
	}
	return nil
}

// RetryPolicy controls retries for failed job executions. Delay grows as
// initial_delay * multiplier^attempt, capped at max_delay.
type RetryPolicy struct {
	MaxRetries   int           `json:"max_retries" toml:"max_retries" yaml:"max_retries"`
	InitialDelay time.Duration `json:"initial_delay" toml:"initial_delay" yaml:"initial_delay"`
	Multiplier   float64       `json:"multiplier" toml:"multiplier" yaml:"multiplier"`
	MaxDelay     time.Duration `json:"max_delay" toml:"max_delay" yaml:"max_delay"`
}

// UnmarshalYAML accepts the delay values as duration strings
func (p *RetryPolicy) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxRetries   int     `yaml:"max_retries"`
		InitialDelay string  `yaml:"initial_delay"`
		Multiplier   float64 `yaml:"multiplier"`
		MaxDelay     string  `yaml:"max_delay"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	p.MaxRetries = raw.MaxRetries
	p.Multiplier = raw.Multiplier
	var err error
	if raw.InitialDelay != "" {
		if p.InitialDelay, err = time.ParseDuration(raw.InitialDelay); err != nil {
			return fmt.Errorf("invalid initial_delay %q: %w", raw.InitialDelay, err)
		}
	}
	if raw.MaxDelay != "" {
		if p.MaxDelay, err = time.ParseDuration(raw.MaxDelay); err != nil {
			return fmt.Errorf("invalid max_delay %q: %w", raw.MaxDelay, err)
		}
	}
	return nil
}

// Delay returns the backoff delay before the given retry attempt (0-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// DefaultRetryPolicy matches the configured framework defaults
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     time.Minute,
	}
}

// JobDefinition describes a registered background job. Mutated (enable,
// disable, reschedule) only by the owning manager.
type JobDefinition struct {
	ID               string       `json:"id" toml:"id" yaml:"id"`
	Name             string       `json:"name" toml:"name" yaml:"name"`
	Description      string       `json:"description" toml:"description" yaml:"description"`
	Schedule         ScheduleSpec `json:"schedule" toml:"schedule" yaml:"schedule"`
	ConcurrencyClass string       `json:"concurrency_class" toml:"concurrency_class" yaml:"concurrency_class"`
	Retry            RetryPolicy  `json:"retry" toml:"retry" yaml:"retry"`
	Enabled          bool         `json:"enabled" toml:"enabled" yaml:"enabled"`
	AutoStart        bool         `json:"auto_start" toml:"auto_start" yaml:"auto_start"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Validate validates the job definition
func (j *JobDefinition) Validate() error {
	if j.ID == "" {
		return errors.New("job definition ID is required")
	}
	if j.Name == "" {
		return errors.New("job definition name is required")
	}
	if err := j.Schedule.Validate(); err != nil {
		return fmt.Errorf("job %s: %w", j.ID, err)
	}
	return nil
}

// JobOutcome is the result classification for one execution
type JobOutcome string

// JobOutcome constants
const (
	OutcomeSuccess JobOutcome = "success"
	OutcomeFailure JobOutcome = "failure"
	OutcomePartial JobOutcome = "partial"
	OutcomeSkipped JobOutcome = "skipped"
)

// JobTrigger records what caused an execution
type JobTrigger string

// JobTrigger constants
const (
	TriggerScheduled JobTrigger = "scheduled"
	TriggerManual    JobTrigger = "manual"
	TriggerRetry     JobTrigger = "retry"
)

// JobExecution is one attempt of one job. Append-only: one record per
// attempt including retries, owned by the job store.
type JobExecution struct {
	ID             string     `json:"id"` // exec_{uuid}
	JobID          string     `json:"job_id"`
	Trigger        JobTrigger `json:"trigger"`
	Attempt        int        `json:"attempt"` // 0 for the first attempt
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    time.Time  `json:"completed_at"`
	Outcome        JobOutcome `json:"outcome"`
	Error          string     `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
	ItemsProcessed int        `json:"items_processed"`
}

// HealthStatus classifies a job or dependency
type HealthStatus string

// HealthStatus constants
const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// JobHealth is the rolling health state derived from recent executions
type JobHealth struct {
	JobID               string       `json:"job_id"`
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastSuccess         *time.Time   `json:"last_success,omitempty"`
	LastFailure         *time.Time   `json:"last_failure,omitempty"`
	LastError           string       `json:"last_error,omitempty"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// SystemHealth is the aggregate snapshot exposed to the admin surface
type SystemHealth struct {
	Status       HealthStatus            `json:"status"`
	Jobs         map[string]JobHealth    `json:"jobs"`
	Dependencies map[string]HealthStatus `json:"dependencies"`
	CheckedAt    time.Time               `json:"checked_at"`
}

// JobStatus is the live view of a registered job for the admin surface
type JobStatus struct {
	Definition JobDefinition `json:"definition"`
	Running    bool          `json:"running"`
	LastRun    *time.Time    `json:"last_run,omitempty"`
	NextRun    *time.Time    `json:"next_run,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
}
