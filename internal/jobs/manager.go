package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
)

// Handler is the executable body of a registered job. ItemsProcessed feeds
// execution metrics; a non-nil error with processed items is recorded as a
// partial outcome.
type Handler interface {
	Run(ctx context.Context) (itemsProcessed int, err error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context) (int, error)

func (f HandlerFunc) Run(ctx context.Context) (int, error) {
	return f(ctx)
}

// ErrJobRunning is returned by TriggerJob when the job already has an
// execution in flight. The trigger is recorded as skipped, never queued.
var ErrJobRunning = errors.New("job already running")

// ErrJobDisabled is returned by TriggerJob for disabled jobs
var ErrJobDisabled = errors.New("job is disabled")

// ErrJobNotFound is returned for unregistered job identifiers
var ErrJobNotFound = errors.New("job not found")

// Manager owns the job registry and runs the scheduling loop. Jobs are
// registered by explicit calls at startup; nothing registers itself via
// import side effects.
type Manager struct {
	config    *common.JobsConfig
	scheduler *Scheduler
	storage   interfaces.JobStorage
	monitor   *Monitor
	logger    arbor.ILogger

	mu          sync.Mutex
	handlers    map[string]Handler
	definitions map[string]*models.JobDefinition
	running     map[string]bool
	classActive map[string]bool
	lastRun     map[string]time.Time
	lastError   map[string]string

	sem    chan struct{}
	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

// NewManager creates the background job manager
func NewManager(config *common.JobsConfig, storage interfaces.JobStorage, monitor *Monitor, logger arbor.ILogger) *Manager {
	maxConcurrent := config.MaxConcurrentJobs
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Manager{
		config:      config,
		scheduler:   NewScheduler(),
		storage:     storage,
		monitor:     monitor,
		logger:      logger,
		handlers:    make(map[string]Handler),
		definitions: make(map[string]*models.JobDefinition),
		running:     make(map[string]bool),
		classActive: make(map[string]bool),
		lastRun:     make(map[string]time.Time),
		lastError:   make(map[string]string),
		sem:         make(chan struct{}, maxConcurrent),
		stopCh:      make(chan struct{}),
	}
}

// Register adds a job to the registry and persists its definition. A zero
// retry policy inherits the configured framework defaults.
func (m *Manager) Register(def *models.JobDefinition, handler Handler) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("job %s: handler is required", def.ID)
	}

	if def.Retry == (models.RetryPolicy{}) {
		def.Retry = m.defaultRetryPolicy()
	}
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	if err := m.storage.SaveJobDefinition(def); err != nil {
		return fmt.Errorf("failed to persist job definition %s: %w", def.ID, err)
	}

	m.mu.Lock()
	m.definitions[def.ID] = def
	m.handlers[def.ID] = handler
	m.mu.Unlock()

	m.logger.Info().
		Str("job_id", def.ID).
		Str("schedule", string(def.Schedule.Kind)).
		Bool("enabled", def.Enabled).
		Msg("Job registered")
	return nil
}

// Start launches the polling loop. Jobs flagged auto_start fire on the
// first poll regardless of schedule.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	for id, def := range m.definitions {
		if def.Enabled && def.AutoStart {
			m.dispatchLocked(id, models.TriggerScheduled)
		}
	}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pollLoop(ctx)

	m.logger.Info().
		Int("jobs", len(m.definitions)).
		Str("poll_interval", m.pollInterval().String()).
		Msg("Job manager started")
}

// Stop halts scheduling and waits for in-flight executions to finish
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.stopCh) })
	m.wg.Wait()
	m.logger.Info().Msg("Job manager stopped")
}

func (m *Manager) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case now := <-ticker.C:
			m.dispatchDue(now)
		}
	}
}

func (m *Manager) dispatchDue(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, def := range m.definitions {
		if !def.Enabled {
			continue
		}
		var lastRun *time.Time
		if t, ok := m.lastRun[id]; ok {
			lastRun = &t
		}
		due, err := m.scheduler.Due(def.Schedule, now, lastRun, m.pollInterval())
		if err != nil {
			m.logger.Warn().Str("job_id", id).Err(err).Msg("Schedule evaluation failed")
			continue
		}
		if due {
			m.dispatchLocked(id, models.TriggerScheduled)
		}
	}
}

// TriggerJob runs a job on demand. A trigger against an in-flight job is
// recorded as skipped and rejected, not queued.
func (m *Manager) TriggerJob(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	def, ok := m.definitions[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if !def.Enabled {
		return fmt.Errorf("%w: %s", ErrJobDisabled, jobID)
	}
	if m.running[jobID] {
		m.recordSkipLocked(jobID, models.TriggerManual, "already running")
		return fmt.Errorf("%w: %s", ErrJobRunning, jobID)
	}
	m.dispatchLocked(jobID, models.TriggerManual)
	return nil
}

// EnableJob re-enables a disabled job
func (m *Manager) EnableJob(jobID string) error {
	return m.setEnabled(jobID, true)
}

// DisableJob stops a job from being scheduled. In-flight executions finish.
func (m *Manager) DisableJob(jobID string) error {
	return m.setEnabled(jobID, false)
}

func (m *Manager) setEnabled(jobID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	def, ok := m.definitions[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if def.Enabled == enabled {
		return nil
	}
	def.Enabled = enabled
	def.UpdatedAt = time.Now().UTC()
	if err := m.storage.SaveJobDefinition(def); err != nil {
		return fmt.Errorf("failed to persist job definition %s: %w", jobID, err)
	}
	m.logger.Info().Str("job_id", jobID).Bool("enabled", enabled).Msg("Job state changed")
	return nil
}

// ListJobs returns the live status of all registered jobs
func (m *Manager) ListJobs() []models.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]models.JobStatus, 0, len(m.definitions))
	for id, def := range m.definitions {
		status := models.JobStatus{
			Definition: *def,
			Running:    m.running[id],
			LastError:  m.lastError[id],
		}
		if t, ok := m.lastRun[id]; ok {
			lastRun := t
			status.LastRun = &lastRun
		}
		if def.Enabled {
			if next, err := m.scheduler.Next(def.Schedule, time.Now(), status.LastRun); err == nil {
				status.NextRun = &next
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// GetHealth returns the rolling health for one job
func (m *Manager) GetHealth(jobID string) models.JobHealth {
	return m.monitor.JobHealth(jobID)
}

// SystemHealth returns the aggregate health snapshot
func (m *Manager) SystemHealth() models.SystemHealth {
	return m.monitor.SystemHealth()
}

// dispatchLocked starts an execution if the overlap guard, concurrency
// class, and global ceiling all allow it. Caller holds the lock.
func (m *Manager) dispatchLocked(jobID string, trigger models.JobTrigger) {
	if m.running[jobID] {
		m.recordSkipLocked(jobID, trigger, "already running")
		return
	}
	class := m.definitions[jobID].ConcurrencyClass
	if class != "" && m.classActive[class] {
		m.recordSkipLocked(jobID, trigger, "concurrency class busy")
		return
	}

	select {
	case m.sem <- struct{}{}:
	default:
		m.recordSkipLocked(jobID, trigger, "concurrent job ceiling reached")
		return
	}

	m.running[jobID] = true
	if class != "" {
		m.classActive[class] = true
	}
	m.lastRun[jobID] = time.Now().UTC()

	m.wg.Add(1)
	go m.execute(jobID, class, trigger)
}

// execute runs one job through its retry policy. One JobExecution record is
// written per attempt.
func (m *Manager) execute(jobID, class string, trigger models.JobTrigger) {
	defer m.wg.Done()
	defer func() {
		<-m.sem
		m.mu.Lock()
		delete(m.running, jobID)
		if class != "" {
			delete(m.classActive, class)
		}
		m.mu.Unlock()
	}()

	m.mu.Lock()
	def := m.definitions[jobID]
	handler := m.handlers[jobID]
	m.mu.Unlock()

	retry := def.Retry
	for attempt := 0; ; attempt++ {
		attemptTrigger := trigger
		if attempt > 0 {
			attemptTrigger = models.TriggerRetry
		}

		exec, err := m.runAttempt(jobID, handler, attemptTrigger, attempt)
		m.recordExecution(exec)

		if exec.Outcome != models.OutcomeFailure {
			return
		}
		if attempt >= retry.MaxRetries || !interfaces.IsRetryable(err) {
			m.logger.Error().
				Str("job_id", jobID).
				Int("attempts", attempt+1).
				Str("error", exec.Error).
				Msg("Job execution failed")
			return
		}

		delay := retry.Delay(attempt)
		m.logger.Warn().
			Str("job_id", jobID).
			Int("attempt", attempt+1).
			Str("delay", delay.String()).
			Msg("Retrying job execution")
		select {
		case <-m.stopCh:
			return
		case <-time.After(delay):
		}
	}
}

// runAttempt executes the handler once with a timeout and panic recovery.
// The raw error comes back alongside the record so the retry loop can judge
// retryability on the typed error, not its string form.
func (m *Manager) runAttempt(jobID string, handler Handler, trigger models.JobTrigger, attempt int) (*models.JobExecution, error) {
	ctx := context.Background()
	if m.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.ExecutionTimeout)
		defer cancel()
	}

	exec := &models.JobExecution{
		ID:        common.NewExecutionID(),
		JobID:     jobID,
		Trigger:   trigger,
		Attempt:   attempt,
		StartedAt: time.Now().UTC(),
	}

	items, err := m.runProtected(ctx, handler)

	exec.CompletedAt = time.Now().UTC()
	exec.Duration = exec.CompletedAt.Sub(exec.StartedAt)
	exec.ItemsProcessed = items

	switch {
	case err == nil:
		exec.Outcome = models.OutcomeSuccess
	case items > 0:
		exec.Outcome = models.OutcomePartial
		exec.Error = err.Error()
	default:
		exec.Outcome = models.OutcomeFailure
		exec.Error = err.Error()
	}

	if err != nil {
		m.mu.Lock()
		m.lastError[jobID] = err.Error()
		m.mu.Unlock()
	}
	return exec, err
}

// runProtected recovers panics from the handler body
func (m *Manager) runProtected(ctx context.Context, handler Handler) (items int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler.Run(ctx)
}

func (m *Manager) recordSkipLocked(jobID string, trigger models.JobTrigger, reason string) {
	now := time.Now().UTC()
	exec := &models.JobExecution{
		ID:          common.NewExecutionID(),
		JobID:       jobID,
		Trigger:     trigger,
		StartedAt:   now,
		CompletedAt: now,
		Outcome:     models.OutcomeSkipped,
		Error:       reason,
	}
	m.recordExecution(exec)

	m.logger.Debug().
		Str("job_id", jobID).
		Str("trigger", string(trigger)).
		Str("reason", reason).
		Msg("Job execution skipped")
}

func (m *Manager) recordExecution(exec *models.JobExecution) {
	if err := m.storage.RecordExecution(exec); err != nil {
		m.logger.Warn().Str("job_id", exec.JobID).Err(err).Msg("Failed to record job execution")
	}
	m.monitor.RecordOutcome(exec)
}

func (m *Manager) pollInterval() time.Duration {
	if m.config.PollInterval > 0 {
		return m.config.PollInterval
	}
	return time.Minute
}

func (m *Manager) defaultRetryPolicy() models.RetryPolicy {
	policy := models.RetryPolicy{
		MaxRetries:   m.config.Retry.MaxRetries,
		InitialDelay: m.config.Retry.InitialDelay,
		Multiplier:   m.config.Retry.Multiplier,
		MaxDelay:     m.config.Retry.MaxDelay,
	}
	if policy == (models.RetryPolicy{}) {
		return models.DefaultRetryPolicy()
	}
	return policy
}
