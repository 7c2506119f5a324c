// Package scheduler owns the cron-driven trigger engine for scraping jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/quseop/property-ci-scraper/internal/pipeline"
	"github.com/quseop/property-ci-scraper/internal/property"
	"github.com/quseop/property-ci-scraper/internal/registry"
	"github.com/quseop/property-ci-scraper/internal/tracker"
)

// Trigger labels recorded on run events.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Scheduler installs one cron entry per job and dispatches executions. Each
// tick runs in its own goroutine, so a slow job never blocks another job's
// tick or the timer itself. Job definitions are re-read from the registry at
// dispatch time: a job deactivated after its entry was installed is skipped,
// not executed.
type Scheduler struct {
	cron      *cron.Cron
	parser    cron.Parser
	registry  *registry.Registry
	pipeline  *pipeline.Pipeline
	tracker   *tracker.Tracker
	publisher property.Publisher
	topic     string
	logger    *zap.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID

	baseCtx context.Context
}

// New constructs a Scheduler. The publisher may be nil, which disables run
// event publication. Schedules are six-field cron expressions with a seconds
// column.
func New(
	reg *registry.Registry,
	pipe *pipeline.Pipeline,
	trk *tracker.Tracker,
	publisher property.Publisher,
	topic string,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	return &Scheduler{
		cron:      cron.New(cron.WithParser(parser)),
		parser:    parser,
		registry:  reg,
		pipeline:  pipe,
		tracker:   trk,
		publisher: publisher,
		topic:     topic,
		logger:    logger,
		entries:   make(map[string]cron.EntryID),
		baseCtx:   context.Background(),
	}
}

// Start begins firing schedule entries. The context bounds all dispatched
// runs; Stop waits for in-flight runs started by the cron to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("scraping scheduler started")
}

// Stop halts the timer and blocks until dispatched runs complete.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scraping scheduler stopped")
}

// AddJob validates the job's cron expression, registers the job and installs
// its recurring entry. Malformed schedules are rejected with
// property.ErrInvalidSchedule before anything is installed.
func (s *Scheduler) AddJob(job property.ScrapingJob) (string, error) {
	if _, err := s.parser.Parse(job.Schedule); err != nil {
		return "", fmt.Errorf("%w: %q: %v", property.ErrInvalidSchedule, job.Schedule, err)
	}

	id, err := s.registry.Add(job)
	if err != nil {
		return "", fmt.Errorf("register job: %w", err)
	}

	entryID, err := s.cron.AddFunc(job.Schedule, func() {
		s.dispatch(id)
	})
	if err != nil {
		// The expression already parsed once; treat this as invalid anyway
		// rather than leaving a registered job without a timer.
		return "", fmt.Errorf("%w: %q: %v", property.ErrInvalidSchedule, job.Schedule, err)
	}

	s.mu.Lock()
	s.entries[id] = entryID
	s.mu.Unlock()

	s.logger.Info("added scraping job",
		zap.String("job_id", id),
		zap.String("schedule", job.Schedule),
	)
	return id, nil
}

// RemoveJob deactivates the job and tears down its cron entry. The job
// definition stays in the registry; an in-flight run is not interrupted.
func (s *Scheduler) RemoveJob(id string) error {
	if err := s.registry.Deactivate(id); err != nil {
		return err
	}

	s.mu.Lock()
	entryID, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if ok {
		s.cron.Remove(entryID)
	}

	s.logger.Info("deactivated scraping job", zap.String("job_id", id))
	return nil
}

// RunNow executes the job immediately, synchronously with respect to the
// caller, publishes the result and also returns it. Manual triggering works
// regardless of the active flag; it is an administrative action.
func (s *Scheduler) RunNow(ctx context.Context, id string) (property.ScrapingResult, error) {
	job, err := s.registry.Get(id)
	if err != nil {
		return property.ScrapingResult{}, err
	}

	s.logger.Info("manually triggering scraping job", zap.String("job_id", id))
	result := s.execute(ctx, job, TriggerManual)
	return result, nil
}

// Stats merges registry and tracker counters.
func (s *Scheduler) Stats() property.Stats {
	total, active := s.registry.Counts()
	runs, successful := s.tracker.RunCounts()
	return property.Stats{
		TotalJobs:      total,
		ActiveJobs:     active,
		TotalRuns:      runs,
		SuccessfulRuns: successful,
	}
}

// dispatch handles one schedule tick. It clones the job's current definition
// and skips entirely when the job is gone or inactive.
func (s *Scheduler) dispatch(id string) {
	job, err := s.registry.Get(id)
	if err != nil {
		s.logger.Warn("scheduled job no longer registered", zap.String("job_id", id))
		return
	}
	if !job.Active {
		s.logger.Debug("skipping dispatch for inactive job", zap.String("job_id", id))
		return
	}

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	s.execute(ctx, job, TriggerSchedule)
}

func (s *Scheduler) execute(ctx context.Context, job property.ScrapingJob, trigger string) property.ScrapingResult {
	result := s.pipeline.Run(ctx, job)
	s.tracker.Publish(result)
	s.registry.RecordRun(job.ID)
	s.publishEvent(ctx, job, result, trigger)
	return result
}

func (s *Scheduler) publishEvent(ctx context.Context, job property.ScrapingJob, result property.ScrapingResult, trigger string) {
	if s.publisher == nil {
		return
	}
	event := property.RunEvent{
		JobID:             job.ID,
		JobName:           job.Name,
		Status:            result.Status,
		ListingsPersisted: result.ListingsPersisted,
		Trigger:           trigger,
		StartedAt:         result.StartedAt,
	}
	if _, err := s.publisher.Publish(ctx, s.topic, event); err != nil {
		s.logger.Warn("publish run event failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}
