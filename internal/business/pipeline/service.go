package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dogspots-bxl/data-importer/internal/metrics"
	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// Persister writes a validated batch to storage. Implementations handle
// their own chunking.
type Persister interface {
	BatchUpsert(ctx context.Context, records []model.Record, dataType model.DataType) (persisted, skipped int, err error)
}

// RunStore records pipeline run lifecycle documents. May be nil.
type RunStore interface {
	CreateRun(ctx context.Context, run model.PipelineRun) error
	UpdateRun(ctx context.Context, run model.PipelineRun) error
}

// Service owns the pipeline map and executes pipelines against their
// configured sources with quota checks, fallback, validation, deduplication,
// versioning and persistence.
type Service struct {
	mu        sync.RWMutex
	pipelines map[string]*model.Pipeline

	registry  *Registry
	versions  *VersionService
	persister Persister
	runs      RunStore
	bus       *EventBus
	logger    *slog.Logger

	limiterMu sync.Mutex
	limiters  map[model.Provider]*rate.Limiter
}

func NewService(registry *Registry, versions *VersionService, persister Persister, runs RunStore, bus *EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = NewEventBus(logger)
	}
	return &Service{
		pipelines: make(map[string]*model.Pipeline),
		registry:  registry,
		versions:  versions,
		persister: persister,
		runs:      runs,
		bus:       bus,
		logger:    logger,
		limiters:  make(map[model.Provider]*rate.Limiter),
	}
}

// Events returns the service's event bus for subscription.
func (s *Service) Events() *EventBus { return s.bus }

// Versions exposes the version service for the status API and maintenance.
func (s *Service) Versions() *VersionService { return s.versions }

// InitializePipelines installs one pipeline per config with status idle and
// a next update computed by its strategy. A pipeline with an id already
// present replaces the prior one. An unknown frequency fails the whole call.
func (s *Service) InitializePipelines(now time.Time, pipelines []model.Pipeline) error {
	prepared := make([]*model.Pipeline, 0, len(pipelines))
	for i := range pipelines {
		p := pipelines[i]
		strategy, err := NewStrategy(p.Frequency)
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", p.ID, err)
		}
		p.Status = model.StatusIdle
		p.NextUpdate = strategy.NextUpdate(now)
		prepared = append(prepared, &p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range prepared {
		s.pipelines[p.ID] = p
		s.logger.Info("pipeline initialized",
			slog.String("pipeline", p.ID),
			slog.String("frequency", p.Frequency),
			slog.Time("next_update", p.NextUpdate),
		)
	}
	return nil
}

// markScheduled moves a pipeline back to scheduled once its next timer is
// armed. A running pipeline keeps its status; failure details survive in the
// metrics and run records.
func (s *Service) markScheduled(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pipelines[id]; ok && p.Status != model.StatusRunning {
		p.Status = model.StatusScheduled
	}
}

// Pipeline returns a snapshot of one pipeline.
func (s *Service) Pipeline(id string) (model.Pipeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pipelines[id]
	if !ok {
		return model.Pipeline{}, false
	}
	return *p, true
}

// AllPipelines returns snapshots of every pipeline, ordered by id.
func (s *Service) AllPipelines() []model.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PipelinesByStatus filters pipeline snapshots by status.
func (s *Service) PipelinesByStatus(status model.PipelineStatus) []model.Pipeline {
	var out []model.Pipeline
	for _, p := range s.AllPipelines() {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

// ExecutePipeline runs one pipeline to completion. It drives the status
// through running to completed or failed, updates metrics and the next
// update instant, and rethrows the failure after recording it.
func (s *Service) ExecutePipeline(ctx context.Context, id string) (model.ExecutionResult, error) {
	s.mu.Lock()
	p, ok := s.pipelines[id]
	if !ok {
		s.mu.Unlock()
		return model.ExecutionResult{}, fmt.Errorf("%w: %s", ErrPipelineNotFound, id)
	}
	if p.Status == model.StatusRunning {
		s.mu.Unlock()
		return model.ExecutionResult{}, fmt.Errorf("%w: %s", ErrPipelineRunning, id)
	}
	p.Status = model.StatusRunning
	snapshot := *p
	// Quota and reliability are mutated during the run; give the snapshot its
	// own backing array so concurrent status reads never see partial writes.
	snapshot.Sources = make([]model.Source, len(p.Sources))
	copy(snapshot.Sources, p.Sources)
	s.mu.Unlock()

	runID := "RUN_" + uuid.NewString()
	started := time.Now()
	s.publish(model.UpdateEvent{Type: model.EventPipelineStarted, PipelineID: id})
	s.recordRunStart(ctx, runID, id, started)

	result, execErr := s.executeWithFallback(ctx, &snapshot)
	result.PipelineID = id
	result.Duration = time.Since(started)

	s.mu.Lock()
	p.Sources = snapshot.Sources // quota and reliability mutations
	p.Metrics.TotalRuns++
	total := time.Duration(p.Metrics.TotalRuns)
	p.Metrics.AvgDuration += (result.Duration - p.Metrics.AvgDuration) / total
	if execErr != nil {
		p.Status = model.StatusFailed
		p.Metrics.FailedRuns++
	} else {
		p.Status = model.StatusCompleted
		p.Metrics.SuccessfulRuns++
		p.Metrics.RecordsProcessed += result.RecordsProcessed
		p.Metrics.RecordsPersisted += result.RecordsPersisted
		p.LastUpdate = time.Now().UTC()
	}
	if strategy, err := NewStrategy(p.Frequency); err == nil {
		p.NextUpdate = strategy.NextUpdate(time.Now())
	}
	s.mu.Unlock()

	metrics.RunDuration.WithLabelValues(id).Observe(result.Duration.Seconds())
	if execErr != nil {
		metrics.PipelineRuns.WithLabelValues(id, "failed").Inc()
		s.publish(model.UpdateEvent{Type: model.EventPipelineFailed, PipelineID: id, Payload: execErr.Error()})
		s.recordRunEnd(ctx, runID, id, started, result, execErr)
		return result, fmt.Errorf("execute pipeline %s: %w", id, execErr)
	}

	metrics.PipelineRuns.WithLabelValues(id, "completed").Inc()
	metrics.RecordsPersisted.WithLabelValues(id).Add(float64(result.RecordsPersisted))
	s.publish(model.UpdateEvent{Type: model.EventPipelineCompleted, PipelineID: id, Payload: result})
	s.recordRunEnd(ctx, runID, id, started, result, nil)
	return result, nil
}

// executeWithFallback iterates the pipeline's active sources by priority,
// accumulating validated data until the quality threshold is met or the
// sources are exhausted.
func (s *Service) executeWithFallback(ctx context.Context, p *model.Pipeline) (model.ExecutionResult, error) {
	sources := activeByPriority(p.Sources)
	if len(sources) == 0 {
		return model.ExecutionResult{}, &AcquisitionError{Code: CodeUnsupportedSource, Err: fmt.Errorf("pipeline %s has no active sources", p.ID)}
	}

	var (
		combined    []model.Record
		usedSources []model.Provider
		allWarnings []string
		lastErr     error
	)
	fetchStart := time.Now()

	for _, src := range sources {
		now := time.Now()
		usage, err := checkQuota(src, now)
		metrics.QuotaUsage.WithLabelValues(string(src.Provider)).Set(usage)
		if err != nil {
			s.logger.Warn("source quota exhausted",
				slog.String("pipeline", p.ID),
				slog.String("provider", string(src.Provider)),
			)
			s.publish(model.UpdateEvent{Type: model.EventQuotaExceeded, PipelineID: p.ID, Provider: src.Provider, Payload: err.Error()})
			lastErr = err
			if !p.Config.FallbackEnabled {
				return model.ExecutionResult{}, err
			}
			continue
		}
		if src.Quota.DailyLimit > 0 && usage >= src.Quota.WarningThreshold {
			s.publish(model.UpdateEvent{Type: model.EventQuotaWarning, PipelineID: p.ID, Provider: src.Provider, Payload: usage})
		}

		if err := s.throttle(ctx, src); err != nil {
			return model.ExecutionResult{}, err
		}

		attemptStart := time.Now()
		fetchCtx, cancel := s.fetchContext(ctx, p, src)
		records, err := s.registry.Fetch(fetchCtx, src.Provider, p.DataType)
		cancel()
		elapsed := time.Since(attemptStart)
		src.Quota.CurrentUsage++
		recordSourceResult(src, err == nil, elapsed, time.Now())
		metrics.ReliabilityScore.WithLabelValues(string(src.Provider)).Set(src.Reliability.Score)

		if err != nil {
			lastErr = err
			metrics.SourceFailures.WithLabelValues(string(src.Provider)).Inc()
			s.logger.Error("source acquisition failed",
				slog.String("pipeline", p.ID),
				slog.String("provider", string(src.Provider)),
				slog.String("error", err.Error()),
			)
			s.publish(model.UpdateEvent{Type: model.EventSourceFailed, PipelineID: p.ID, Provider: src.Provider, Payload: err.Error()})
			if !p.Config.FallbackEnabled {
				return model.ExecutionResult{}, err
			}
			// Crude back-pressure before trying the next source.
			if wait := time.Duration(src.Config.TimeoutMs) * time.Millisecond; wait > 0 {
				select {
				case <-ctx.Done():
					return model.ExecutionResult{}, ctx.Err()
				case <-time.After(wait):
				}
			}
			continue
		}

		s.publish(model.UpdateEvent{Type: model.EventSourceConnected, PipelineID: p.ID, Provider: src.Provider, Payload: len(records)})

		valid, warnings := validateRecords(records, p.Config.Validation, s.logger)
		allWarnings = append(allWarnings, warnings...)
		s.publish(model.UpdateEvent{Type: model.EventDataValidated, PipelineID: p.ID, Provider: src.Provider, Payload: len(valid)})

		combined = append(combined, valid...)
		usedSources = append(usedSources, src.Provider)

		quality := s.versions.CalculateQualityMetrics(combined)
		if quality.Overall >= p.Config.QualityThreshold {
			break
		}
		s.logger.Info("quality below threshold, trying next source",
			slog.String("pipeline", p.ID),
			slog.Float64("overall", quality.Overall),
			slog.Float64("threshold", p.Config.QualityThreshold),
		)
	}

	if len(combined) == 0 {
		if lastErr == nil {
			lastErr = &AcquisitionError{Code: CodeRequestFailed, Err: fmt.Errorf("no source yielded data for pipeline %s", p.ID)}
		}
		return model.ExecutionResult{}, lastErr
	}

	processed := len(combined)
	if p.Config.DedupeEnabled {
		combined = dedupeRecords(combined)
	}

	quality := s.versions.CalculateQualityMetrics(combined)
	previous := s.versions.LatestVersion(p.DataType, usedSources[0])
	version := s.versions.CreateVersion(p.DataType, usedSources[0], combined, model.VersionMetadata{
		ProcessingMs: time.Since(fetchStart).Milliseconds(),
		Warnings:     allWarnings,
	})

	result := model.ExecutionResult{
		RecordsProcessed: processed,
		QualityScore:     quality.Overall,
		SourcesUsed:      usedSources,
		VersionID:        version.ID,
	}

	cmp := s.versions.CompareVersions(previous, version)
	if !cmp.NeedsUpdate {
		s.logger.Info("dataset unchanged, skipping persistence",
			slog.String("pipeline", p.ID),
			slog.String("hash", version.Hash),
		)
		result.Unchanged = true
		result.RecordsSkipped = len(combined)
		return result, nil
	}

	persisted, skipped, err := s.persister.BatchUpsert(ctx, combined, p.DataType)
	if err != nil {
		return result, fmt.Errorf("persist %s: %w", p.DataType, err)
	}
	result.RecordsPersisted = persisted
	result.RecordsSkipped = skipped
	s.publish(model.UpdateEvent{Type: model.EventDataPersisted, PipelineID: p.ID, Payload: persisted})
	return result, nil
}

// fetchContext bounds one acquisition attempt with the source timeout when
// configured, otherwise the pipeline timeout.
func (s *Service) fetchContext(ctx context.Context, p *model.Pipeline, src *model.Source) (context.Context, context.CancelFunc) {
	timeoutMs := src.Config.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = p.Config.TimeoutMs
	}
	if timeoutMs <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
}

// throttle waits for the source's token bucket, derived from its configured
// requests-per-second rate.
func (s *Service) throttle(ctx context.Context, src *model.Source) error {
	if src.Config.RateLimit <= 0 {
		return nil
	}
	s.limiterMu.Lock()
	limiter, ok := s.limiters[src.Provider]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(src.Config.RateLimit), 1)
		s.limiters[src.Provider] = limiter
	}
	s.limiterMu.Unlock()
	return limiter.Wait(ctx)
}

func activeByPriority(sources []model.Source) []*model.Source {
	var out []*model.Source
	for i := range sources {
		if sources[i].Active {
			out = append(out, &sources[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func (s *Service) publish(event model.UpdateEvent) {
	event.Timestamp = time.Now().UTC()
	s.bus.Publish(event)
}

func (s *Service) recordRunStart(ctx context.Context, runID, pipelineID string, started time.Time) {
	if s.runs == nil {
		return
	}
	err := s.runs.CreateRun(ctx, model.PipelineRun{
		RunID:      runID,
		PipelineID: pipelineID,
		Status:     string(model.StatusRunning),
		StartedAt:  started.UTC(),
	})
	if err != nil {
		s.logger.Warn("record run start", slog.String("run", runID), slog.String("error", err.Error()))
	}
}

func (s *Service) recordRunEnd(ctx context.Context, runID, pipelineID string, started time.Time, result model.ExecutionResult, execErr error) {
	if s.runs == nil {
		return
	}
	run := model.PipelineRun{
		RunID:      runID,
		PipelineID: pipelineID,
		Status:     string(model.StatusCompleted),
		Result:     result,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	if execErr != nil {
		run.Status = string(model.StatusFailed)
		run.Error = execErr.Error()
	}
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		s.logger.Warn("record run end", slog.String("run", runID), slog.String("error", err.Error()))
	}
}
