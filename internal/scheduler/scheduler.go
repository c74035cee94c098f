// Package scheduler runs the ingestion actions (fetch recent, process) on
// cron schedules.
package scheduler

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/teledash/teledash/internal/config"
)

// Job names a scheduled action.
type Job string

const (
	JobFetchRecent Job = "fetch-recent"
	JobProcess     Job = "process"
)

// RunFunc is invoked when a scheduled job fires.
type RunFunc func(ctx context.Context, job Job) error

// JobStatus represents the state of a scheduled job.
type JobStatus struct {
	Job       Job       `json:"job"`
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run,omitempty"`
	NextRun   time.Time `json:"next_run"`
	Schedule  string    `json:"schedule"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler manages cron-based job scheduling.
type Scheduler struct {
	cron    *cron.Cron
	runFunc RunFunc
	logger  *slog.Logger

	mu        sync.RWMutex
	jobs      map[Job]cron.EntryID
	schedules map[Job]string
	running   map[Job]bool
	lastRun   map[Job]time.Time // last successful run
	lastErr   map[Job]error

	ctx     context.Context    // cancelled on Stop
	cancel  context.CancelFunc // cancels ctx
	wg      sync.WaitGroup     // tracks running jobs
	stopped bool
}

func newParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// New creates a new Scheduler that calls runFunc for every fired job.
func New(runFunc RunFunc) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(cron.WithParser(newParser())),
		runFunc:   runFunc,
		logger:    slog.Default(),
		jobs:      make(map[Job]cron.EntryID),
		schedules: make(map[Job]string),
		running:   make(map[Job]bool),
		lastRun:   make(map[Job]time.Time),
		lastErr:   make(map[Job]error),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// WithLogger sets the logger for the scheduler.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// AddJob schedules job with the given cron expression, replacing any
// previous schedule for it.
func (s *Scheduler) AddJob(job Job, cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.jobs[job]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, job)
		delete(s.schedules, job)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.mu.Lock()
		// A run still in progress swallows the tick.
		if s.stopped || s.running[job] {
			s.mu.Unlock()
			return
		}
		s.running[job] = true
		s.wg.Add(1)
		s.mu.Unlock()
		s.runJob(job)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	s.jobs[job] = entryID
	s.schedules[job] = cronExpr
	s.logger.Info("scheduled job",
		"job", job,
		"schedule", cronExpr,
		"next_run", s.cron.Entry(entryID).Next)

	return nil
}

// AddJobsFromConfig adds the jobs configured under [schedule]. Returns the
// number of jobs scheduled and any errors encountered.
func (s *Scheduler) AddJobsFromConfig(cfg *config.Config) (int, []error) {
	if !cfg.Schedule.Enabled {
		return 0, nil
	}

	var errs []error
	scheduled := 0
	for _, j := range []struct {
		job  Job
		expr string
	}{
		{JobFetchRecent, cfg.Schedule.FetchRecent},
		{JobProcess, cfg.Schedule.Process},
	} {
		if j.expr == "" {
			continue
		}
		if err := s.AddJob(j.job, j.expr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.job, err))
			continue
		}
		scheduled++
	}
	return scheduled, errs
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.stopped = false
	n := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", n)
}

// Stop stops the scheduler, cancels running jobs and returns a context that
// is done once they have all returned.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	s.cancel()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		cancel()
	}()
	return ctx
}

// runJob executes job. The caller must have already called wg.Add(1) and
// set running[job] = true.
func (s *Scheduler) runJob(job Job) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running[job] = false
		s.mu.Unlock()
	}()

	s.logger.Info("starting scheduled job", "job", job)
	start := time.Now()

	err := s.runFunc(s.ctx, job)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr[job] = err
		s.logger.Error("scheduled job failed",
			"job", job,
			"duration", time.Since(start),
			"error", err)
		return
	}
	s.lastRun[job] = time.Now()
	s.lastErr[job] = nil
	s.logger.Info("scheduled job completed",
		"job", job,
		"duration", time.Since(start))
}

// IsScheduled returns true if job has been added to the scheduler.
func (s *Scheduler) IsScheduled(job Job) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.jobs[job]
	return exists
}

// Trigger runs job now, outside of its schedule. It fails if the job is not
// scheduled, already running, or the scheduler has been stopped.
func (s *Scheduler) Trigger(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler is stopped")
	}
	if _, exists := s.jobs[job]; !exists {
		return fmt.Errorf("job %s is not scheduled", job)
	}
	if s.running[job] {
		return fmt.Errorf("job %s already running", job)
	}

	s.running[job] = true
	s.wg.Add(1)
	go s.runJob(job)
	return nil
}

// Status returns the state of every scheduled job, ordered by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for job, entryID := range s.jobs {
		status := JobStatus{
			Job:      job,
			Running:  s.running[job],
			LastRun:  s.lastRun[job],
			NextRun:  s.cron.Entry(entryID).Next,
			Schedule: s.schedules[job],
		}
		if err := s.lastErr[job]; err != nil {
			status.LastError = err.Error()
		}
		statuses = append(statuses, status)
	}
	slices.SortFunc(statuses, func(a, b JobStatus) int { return cmp.Compare(a.Job, b.Job) })
	return statuses
}

// ValidateCronExpr validates a cron expression without scheduling anything.
func ValidateCronExpr(expr string) error {
	if _, err := newParser().Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
