package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// SchedulerOptions configure the scheduler.
type SchedulerOptions struct {
	Environment      string
	MaxConcurrent    int
	VersionKeepCount int
	// MaintenanceSpec is the cron expression for the daily cleanup job.
	// Empty means 03:00 UTC.
	MaintenanceSpec string
}

// SchedulerStatus is the snapshot returned by Status.
type SchedulerStatus struct {
	Running        bool                         `json:"running"`
	Environment    string                       `json:"environment"`
	PipelineCounts map[model.PipelineStatus]int `json:"pipelineCounts"`
	NextUpdate     *time.Time                   `json:"nextUpdate,omitempty"`
	Uptime         time.Duration                `json:"uptimeNs"`
}

// Scheduler arms one timer per pipeline from its strategy-computed next
// update, retries failed runs with exponential backoff, and re-arms after
// every run. A buffered-channel semaphore bounds concurrent executions.
type Scheduler struct {
	service   *Service
	pipelines []model.Pipeline
	notifier  *Notifier
	logger    *slog.Logger
	opts      SchedulerOptions

	mu        sync.Mutex
	timers    map[string]*time.Timer
	running   bool
	startedAt time.Time
	baseCtx   context.Context
	cancel    context.CancelFunc

	sem  chan struct{}
	cron *cron.Cron
}

func NewScheduler(service *Service, pipelines []model.Pipeline, notifier *Notifier, logger *slog.Logger, opts SchedulerOptions) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.VersionKeepCount < 1 {
		opts.VersionKeepCount = 10
	}
	if opts.MaintenanceSpec == "" {
		opts.MaintenanceSpec = "0 3 * * *"
	}
	return &Scheduler{
		service:   service,
		pipelines: pipelines,
		notifier:  notifier,
		logger:    logger,
		opts:      opts,
		timers:    make(map[string]*time.Timer),
		sem:       make(chan struct{}, opts.MaxConcurrent),
	}
}

// Start initializes the pipelines, arms their timers and starts the daily
// maintenance job. Calling Start on a running scheduler is a logged no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("scheduler already running")
		return nil
	}
	s.running = true
	s.startedAt = time.Now()
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.service.InitializePipelines(time.Now(), s.pipelines); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("initialize pipelines: %w", err)
	}

	s.wireNotifications()

	for _, p := range s.service.AllPipelines() {
		s.schedule(p.ID, p.NextUpdate)
	}

	s.cron = cron.New(cron.WithLocation(time.UTC))
	if _, err := s.cron.AddFunc(s.opts.MaintenanceSpec, s.maintenance); err != nil {
		s.Stop()
		return fmt.Errorf("register maintenance job: %w", err)
	}
	s.cron.Start()

	s.logger.Info("scheduler started",
		slog.String("environment", s.opts.Environment),
		slog.Int("pipelines", len(s.pipelines)),
		slog.Int("max_concurrent", s.opts.MaxConcurrent),
	)
	return nil
}

// Stop cancels every outstanding timer and the maintenance job. An execution
// already in flight runs to completion; only future firings are prevented.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.logger.Info("scheduler stopped")
}

// ExecuteNow triggers one pipeline immediately, outside its schedule. It
// rejects unknown ids and pipelines that are already running, propagates the
// execution error, and re-arms the timer on success.
func (s *Scheduler) ExecuteNow(ctx context.Context, id string) (model.ExecutionResult, error) {
	p, ok := s.service.Pipeline(id)
	if !ok {
		return model.ExecutionResult{}, fmt.Errorf("%w: %s", ErrPipelineNotFound, id)
	}
	if p.Status == model.StatusRunning {
		return model.ExecutionResult{}, fmt.Errorf("%w: %s", ErrPipelineRunning, id)
	}

	result, err := s.service.ExecutePipeline(ctx, id)
	if err != nil {
		return result, err
	}
	if updated, ok := s.service.Pipeline(id); ok {
		s.schedule(id, updated.NextUpdate)
	}
	return result, nil
}

// Status reports the scheduler and pipeline state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	running := s.running
	startedAt := s.startedAt
	s.mu.Unlock()

	status := SchedulerStatus{
		Running:        running,
		Environment:    s.opts.Environment,
		PipelineCounts: make(map[model.PipelineStatus]int),
	}
	if running {
		status.Uptime = time.Since(startedAt)
	}

	for _, p := range s.service.AllPipelines() {
		status.PipelineCounts[p.Status]++
		if !p.NextUpdate.IsZero() && (status.NextUpdate == nil || p.NextUpdate.Before(*status.NextUpdate)) {
			next := p.NextUpdate
			status.NextUpdate = &next
		}
	}
	return status
}

// schedule arms the timer for one pipeline, replacing any prior timer for
// the same id so a pipeline never has two live timers.
func (s *Scheduler) schedule(id string, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if prior, ok := s.timers[id]; ok {
		prior.Stop()
	}

	delay := time.Until(next)
	if delay < 0 {
		delay = 0
	}
	s.timers[id] = time.AfterFunc(delay, func() { s.runScheduled(id) })
	s.service.markScheduled(id)
	s.logger.Info("pipeline scheduled",
		slog.String("pipeline", id),
		slog.Time("next_update", next),
	)
}

func (s *Scheduler) runScheduled(id string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.baseCtx
	s.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.sem }()

	s.executeWithRetry(ctx, id)

	// Re-arm for the next cycle regardless of outcome.
	if p, ok := s.service.Pipeline(id); ok {
		s.schedule(id, p.NextUpdate)
	}
}

const (
	retryBaseDelay = time.Second
	retryMaxDelay  = 30 * time.Second
)

// executeWithRetry runs a pipeline with bounded retries and exponential
// backoff. Exhausted retries are logged and notified, never rethrown; the
// pipeline waits for its next natural update.
func (s *Scheduler) executeWithRetry(ctx context.Context, id string) {
	p, ok := s.service.Pipeline(id)
	if !ok {
		s.logger.Error("scheduled pipeline disappeared", slog.String("pipeline", id))
		return
	}

	maxRetries := p.Config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			if delay > retryMaxDelay {
				delay = retryMaxDelay
			}
			s.logger.Info("retrying pipeline",
				slog.String("pipeline", id),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		if _, err := s.service.ExecutePipeline(ctx, id); err == nil {
			return
		} else {
			lastErr = err
		}
	}

	s.logger.Error("pipeline failed after retries",
		slog.String("pipeline", id),
		slog.Int("retries", maxRetries),
		slog.String("error", lastErr.Error()),
	)
	if s.notifier != nil {
		s.notifier.Notify(model.UpdateEvent{
			Type:       model.EventPipelineFailed,
			PipelineID: id,
			Timestamp:  time.Now().UTC(),
			Payload:    fmt.Sprintf("failed after %d retries: %v", maxRetries, lastErr),
		})
	}
}

// maintenance is the daily cron job: prune old dataset versions.
func (s *Scheduler) maintenance() {
	removed := s.service.Versions().CleanupOldVersions(s.opts.VersionKeepCount)
	s.logger.Info("version cleanup complete",
		slog.Int("removed", removed),
		slog.Int("keep", s.opts.VersionKeepCount),
	)
}

// wireNotifications forwards pipeline outcomes and quota warnings to the
// notification channels.
func (s *Scheduler) wireNotifications() {
	if s.notifier == nil {
		return
	}
	for _, t := range []model.EventType{
		model.EventPipelineCompleted,
		model.EventPipelineFailed,
		model.EventQuotaWarning,
		model.EventQuotaExceeded,
	} {
		s.service.Events().Subscribe(t, s.notifier.Notify)
	}
}
