package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

func newTestScheduler(t *testing.T, registry *Registry, persister Persister, pipelines ...model.Pipeline) (*Scheduler, *Service) {
	t.Helper()
	svc := NewService(registry, NewVersionService(), persister, nil, nil, testLogger())
	sched := NewScheduler(svc, pipelines, nil, testLogger(), SchedulerOptions{
		Environment:   "test",
		MaxConcurrent: 2,
	})
	return sched, svc
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	registry.Register(model.ProviderURBIS, &fakeAddressFetcher{addrs: []model.AddressData{brusselsAddr("a", "Rue Haute")}})
	sched, _ := newTestScheduler(t, registry, &memPersister{}, addressTestPipeline(
		model.Source{Provider: model.ProviderURBIS, Priority: 1, Active: true},
	))
	defer sched.Stop()

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	status := sched.Status()
	if !status.Running {
		t.Error("status reports not running after Start")
	}
	if status.PipelineCounts[model.StatusScheduled] != 1 {
		t.Errorf("scheduled count = %d, want 1", status.PipelineCounts[model.StatusScheduled])
	}
	if status.NextUpdate == nil || !status.NextUpdate.After(time.Now()) {
		t.Errorf("NextUpdate = %v, want a future instant", status.NextUpdate)
	}
}

func TestSchedulerStartRejectsUnknownFrequency(t *testing.T) {
	p := addressTestPipeline(model.Source{Provider: model.ProviderURBIS, Priority: 1, Active: true})
	p.Frequency = "fortnightly"

	sched, _ := newTestScheduler(t, NewRegistry(), &memPersister{}, p)
	if err := sched.Start(context.Background()); err == nil {
		t.Fatal("Start accepted an unknown frequency")
	}
	if sched.Status().Running {
		t.Error("scheduler left running after failed Start")
	}
}

func TestSchedulerExecuteNowRejectsRunningPipeline(t *testing.T) {
	registry := NewRegistry()
	registry.Register(model.ProviderURBIS, &fakeAddressFetcher{addrs: []model.AddressData{brusselsAddr("a", "Rue Haute")}})
	sched, svc := newTestScheduler(t, registry, &memPersister{}, addressTestPipeline(
		model.Source{Provider: model.ProviderURBIS, Priority: 1, Active: true},
	))
	defer sched.Stop()

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	svc.mu.Lock()
	svc.pipelines["addresses"].Status = model.StatusRunning
	svc.mu.Unlock()

	_, err := sched.ExecuteNow(context.Background(), "addresses")
	if !errors.Is(err, ErrPipelineRunning) {
		t.Fatalf("err = %v, want ErrPipelineRunning", err)
	}

	_, err = sched.ExecuteNow(context.Background(), "nope")
	if !errors.Is(err, ErrPipelineNotFound) {
		t.Fatalf("err = %v, want ErrPipelineNotFound", err)
	}
}

func TestSchedulerExecuteNowReArmsTimer(t *testing.T) {
	registry := NewRegistry()
	registry.Register(model.ProviderURBIS, &fakeAddressFetcher{addrs: []model.AddressData{brusselsAddr("a", "Rue Haute")}})
	sched, svc := newTestScheduler(t, registry, &memPersister{}, addressTestPipeline(
		model.Source{Provider: model.ProviderURBIS, Priority: 1, Active: true},
	))
	defer sched.Stop()

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	result, err := sched.ExecuteNow(context.Background(), "addresses")
	if err != nil {
		t.Fatalf("ExecuteNow: %v", err)
	}
	if result.RecordsPersisted != 1 {
		t.Errorf("RecordsPersisted = %d, want 1", result.RecordsPersisted)
	}

	sched.mu.Lock()
	_, armed := sched.timers["addresses"]
	sched.mu.Unlock()
	if !armed {
		t.Error("timer not re-armed after manual execution")
	}

	p, _ := svc.Pipeline("addresses")
	if p.Status != model.StatusScheduled {
		t.Errorf("status = %s after re-arm, want scheduled", p.Status)
	}
}

func TestSchedulerStartResetsOnBadMaintenanceSpec(t *testing.T) {
	registry := NewRegistry()
	registry.Register(model.ProviderURBIS, &fakeAddressFetcher{addrs: []model.AddressData{brusselsAddr("a", "Rue Haute")}})
	svc := NewService(registry, NewVersionService(), &memPersister{}, nil, nil, testLogger())
	sched := NewScheduler(svc, []model.Pipeline{addressTestPipeline(
		model.Source{Provider: model.ProviderURBIS, Priority: 1, Active: true},
	)}, nil, testLogger(), SchedulerOptions{
		Environment:     "test",
		MaintenanceSpec: "not a cron expression",
	})

	if err := sched.Start(context.Background()); err == nil {
		t.Fatal("Start accepted an invalid maintenance schedule")
	}
	if sched.Status().Running {
		t.Error("scheduler left running after failed Start")
	}

	sched.mu.Lock()
	remaining := len(sched.timers)
	sched.mu.Unlock()
	if remaining != 0 {
		t.Errorf("%d timers left armed after failed Start", remaining)
	}
}

func TestSchedulerStopPreventsFutureFirings(t *testing.T) {
	fetcher := &fakeAddressFetcher{addrs: []model.AddressData{brusselsAddr("a", "Rue Haute")}}
	registry := NewRegistry()
	registry.Register(model.ProviderURBIS, fetcher)
	sched, _ := newTestScheduler(t, registry, &memPersister{}, addressTestPipeline(
		model.Source{Provider: model.ProviderURBIS, Priority: 1, Active: true},
	))

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Re-arm close enough to fire during the test, then stop before it does.
	sched.schedule("addresses", time.Now().Add(30*time.Millisecond))
	sched.Stop()

	time.Sleep(80 * time.Millisecond)
	if fetcher.calls != 0 {
		t.Errorf("pipeline executed %d times after Stop", fetcher.calls)
	}

	sched.mu.Lock()
	remaining := len(sched.timers)
	sched.mu.Unlock()
	if remaining != 0 {
		t.Errorf("%d timers left armed after Stop", remaining)
	}
}

func TestSchedulerScheduleReplacesPriorTimer(t *testing.T) {
	fetcher := &fakeAddressFetcher{addrs: []model.AddressData{brusselsAddr("a", "Rue Haute")}}
	registry := NewRegistry()
	registry.Register(model.ProviderURBIS, fetcher)
	sched, _ := newTestScheduler(t, registry, &memPersister{}, addressTestPipeline(
		model.Source{Provider: model.ProviderURBIS, Priority: 1, Active: true},
	))
	defer sched.Stop()

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Arm a close timer, then push it out before it fires. Only the far
	// timer must survive.
	sched.schedule("addresses", time.Now().Add(30*time.Millisecond))
	sched.schedule("addresses", time.Now().Add(time.Hour))

	time.Sleep(80 * time.Millisecond)
	if fetcher.calls != 0 {
		t.Errorf("replaced timer fired anyway, %d executions", fetcher.calls)
	}
}

func TestExecuteWithRetryExhausts(t *testing.T) {
	fetcher := &fakeAddressFetcher{err: errors.New("boom")}
	registry := NewRegistry()
	registry.Register(model.ProviderURBIS, fetcher)

	p := addressTestPipeline(model.Source{Provider: model.ProviderURBIS, Priority: 1, Active: true})
	p.Config.MaxRetries = 1

	sched, svc := newTestScheduler(t, registry, &memPersister{}, p)
	if err := svc.InitializePipelines(time.Now(), []model.Pipeline{p}); err != nil {
		t.Fatalf("InitializePipelines: %v", err)
	}

	sched.executeWithRetry(context.Background(), "addresses")

	if fetcher.calls != 2 {
		t.Errorf("acquisition attempts = %d, want original plus one retry", fetcher.calls)
	}

	got, _ := svc.Pipeline("addresses")
	if got.Status != model.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Metrics.FailedRuns != 2 {
		t.Errorf("FailedRuns = %d, want 2", got.Metrics.FailedRuns)
	}
}
