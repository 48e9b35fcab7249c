// Package scheduler is the clock-driven orchestrator: it runs the
// discovery, pre-start, and midnight-result jobs on their own cron
// entries, forbids overlapping ticks of the same job, and exposes the
// same job bodies as one-shot methods for the CLI.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ecarrasco/dropwatch/internal/config"
	"github.com/ecarrasco/dropwatch/internal/logger"
	"github.com/ecarrasco/dropwatch/internal/matcher"
	"github.com/ecarrasco/dropwatch/internal/metrics"
	"github.com/ecarrasco/dropwatch/internal/normalize"
	"github.com/ecarrasco/dropwatch/internal/notifier"
	"github.com/ecarrasco/dropwatch/internal/repository"
	"github.com/ecarrasco/dropwatch/internal/resultgate"
	"github.com/ecarrasco/dropwatch/internal/runtime"
	"github.com/ecarrasco/dropwatch/internal/sportrules"
	"github.com/ecarrasco/dropwatch/internal/upstream"
)

// workerPoolSize bounds per-tick event concurrency, per §5's "bounded
// worker pool (default 4 workers)".
const workerPoolSize = 4

const (
	jobDiscovery = "discovery"
	jobPreStart  = "pre_start"
	jobMidnight  = "midnight"
	jobResultsAll = "results_all"
	jobFinalOddsAll = "final_odds_all"
	jobAlerts    = "alerts"
)

// Scheduler owns the cron entries, the per-job no-overlap locks, and
// every collaborator a tick needs. It holds no business logic itself —
// each job method delegates to normalize/matcher/resultgate/notifier.
type Scheduler struct {
	cfg *config.Config
	rt  *runtime.Runtime

	upstreamClient *upstream.Client
	events         repository.EventRepository
	odds           repository.OddsRepository
	results        repository.ResultRepository
	views          repository.AlertViewRepository
	decisionLogs   repository.DecisionLogRepository

	normalizer *normalize.Normalizer
	matcher    *matcher.Matcher
	gate       *resultgate.Gate
	notifier   *notifier.Notifier
	rules      *sportrules.Table

	decisionLog *logger.DecisionLogger
	log         *logrus.Logger

	cron *cron.Cron

	mu        sync.Mutex
	jobLocks  map[string]*sync.Mutex
	entryIDs  map[string]cron.EntryID
	running   bool
}

// Deps bundles every collaborator New needs, so the constructor itself
// stays a flat field-by-field assignment.
type Deps struct {
	Config         *config.Config
	Runtime        *runtime.Runtime
	UpstreamClient *upstream.Client
	Events         repository.EventRepository
	Odds           repository.OddsRepository
	Results        repository.ResultRepository
	Views          repository.AlertViewRepository
	DecisionLogs   repository.DecisionLogRepository
	Normalizer     *normalize.Normalizer
	Matcher        *matcher.Matcher
	Gate           *resultgate.Gate
	Notifier       *notifier.Notifier
	Rules          *sportrules.Table
	DecisionLog    *logger.DecisionLogger
	Log            *logrus.Logger
}

// New builds a Scheduler over its collaborators, ready for Start or for
// the one-shot job methods to be called directly.
func New(d Deps) *Scheduler {
	return &Scheduler{
		cfg:            d.Config,
		rt:             d.Runtime,
		upstreamClient: d.UpstreamClient,
		events:         d.Events,
		odds:           d.Odds,
		results:        d.Results,
		views:          d.Views,
		decisionLogs:   d.DecisionLogs,
		normalizer:     d.Normalizer,
		matcher:        d.Matcher,
		gate:           d.Gate,
		notifier:       d.Notifier,
		rules:          d.Rules,
		decisionLog:    d.DecisionLog,
		log:            d.Log,
		cron:           cron.New(cron.WithLocation(d.Config.Location())),
		jobLocks: map[string]*sync.Mutex{
			jobDiscovery: {}, jobPreStart: {}, jobMidnight: {},
			jobResultsAll: {}, jobFinalOddsAll: {}, jobAlerts: {},
		},
		entryIDs: map[string]cron.EntryID{},
	}
}

// Start registers the three recurring jobs and starts the cron
// dispatcher. Bulk backfill jobs are on-demand only, per §4.1, and are
// never registered here.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	discoverySpec := fmt.Sprintf("0 */%d * * *", s.cfg.DiscoveryIntervalHours)
	preStartSpec := fmt.Sprintf("*/%d * * * *", s.cfg.PollIntervalMinutes)
	const midnightSpec = "0 4 * * *"

	entries := []struct {
		job  string
		spec string
		fn   func(context.Context) error
	}{
		{jobDiscovery, discoverySpec, s.runDiscoveryTick},
		{jobPreStart, preStartSpec, s.runPreStartTick},
		{jobMidnight, midnightSpec, s.runMidnightTick},
	}

	for _, e := range entries {
		job := e.job
		fn := e.fn
		id, err := s.cron.AddFunc(e.spec, func() { _ = s.runJob(context.Background(), job, fn) })
		if err != nil {
			return fmt.Errorf("schedule %s job: %w", job, err)
		}
		s.entryIDs[job] = id
	}

	s.cron.Start()
	s.running = true
	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"discovery": discoverySpec, "pre_start": preStartSpec, "midnight": midnightSpec,
		}).Info("scheduler started")
	}
	return nil
}

// Stop drains in-flight work and stops the cron dispatcher, waiting up
// to the §5 30s drain budget.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	if s.log != nil {
		s.log.Info("scheduler stopped")
	}
}

// IsRunning reports whether the cron dispatcher is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// JobStatus is one job's next-tick information, for the `status` CLI
// command.
type JobStatus struct {
	Job     string
	NextRun time.Time
}

// Status reports the next scheduled tick of every registered recurring
// job.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.entryIDs))
	for job, id := range s.entryIDs {
		entry := s.cron.Entry(id)
		statuses = append(statuses, JobStatus{Job: job, NextRun: entry.Next})
	}
	return statuses
}

// runJob enforces the "concurrent ticks of the same job are forbidden"
// rule of §4.1/§5 via a per-job TryLock, then runs fn, recording its
// duration and outcome. A tick that finds the lock held is skipped, not
// queued, per the "a missed tick is skipped, never batched" contract.
func (s *Scheduler) runJob(ctx context.Context, job string, fn func(context.Context) error) error {
	lock := s.jobLocks[job]
	if !lock.TryLock() {
		if s.log != nil {
			s.log.WithField("job", job).Debug("scheduler: tick skipped, previous tick still running")
		}
		return nil
	}
	defer lock.Unlock()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	metrics.RecordSchedulerJobDuration(job, duration.Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if s.log != nil {
			s.log.WithError(err).WithField("job", job).Error("scheduler: job failed")
		}
	}
	metrics.RecordSchedulerTick(job, outcome)
	return err
}

// forEachBounded runs fn over items with at most workerPoolSize
// concurrent invocations, the bounded pool described in §5.
func forEachBounded[T any](ctx context.Context, items []T, fn func(context.Context, T)) {
	sem := make(chan struct{}, workerPoolSize)
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(it T) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, it)
		}(item)
	}
	wg.Wait()
}
