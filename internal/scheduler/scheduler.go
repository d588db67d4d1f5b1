// Package scheduler manages background maintenance jobs.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobStatus is a snapshot of a registered job's schedule and last run
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Runs      int        `json:"runs"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type entry struct {
	job      Job
	schedule string

	mu        sync.Mutex
	runs      int
	lastRun   time.Time
	lastError string
}

func (e *entry) run(log zerolog.Logger) error {
	log.Debug().Str("job", e.job.Name()).Msg("Running job")

	err := e.job.Run()

	e.mu.Lock()
	e.runs++
	e.lastRun = time.Now()
	e.lastError = ""
	if err != nil {
		e.lastError = err.Error()
	}
	e.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("job", e.job.Name()).Msg("Job failed")
		return err
	}
	log.Debug().Str("job", e.job.Name()).Msg("Job completed")
	return nil
}

func (e *entry) status() JobStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := JobStatus{
		Name:      e.job.Name(),
		Schedule:  e.schedule,
		Runs:      e.runs,
		LastError: e.lastError,
	}
	if !e.lastRun.IsZero() {
		last := e.lastRun
		status.LastRun = &last
	}
	return status
}

// Scheduler runs jobs on standard 5-field cron expressions
// ("minute hour day-of-month month day-of-week"), the format the
// configuration defaults use ("0 9 * * *", "30 * * * *").
// Descriptors like "@hourly" and "@every 30m" also work.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	entries []*entry
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule. The schedule is
// validated up front so a bad configuration fails at startup rather
// than silently never firing.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	e := &entry{job: job, schedule: schedule}

	if _, err := s.cron.AddFunc(schedule, func() { e.run(s.log) }); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// Jobs returns a snapshot of every registered job, in registration order
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		statuses = append(statuses, e.status())
	}
	return statuses
}

// RunNow executes a registered job immediately, outside its schedule.
// The run is recorded in the job's status like a scheduled one.
func (s *Scheduler) RunNow(job Job) error {
	s.mu.Lock()
	var target *entry
	for _, e := range s.entries {
		if e.job.Name() == job.Name() {
			target = e
			break
		}
	}
	s.mu.Unlock()

	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")

	if target != nil {
		return target.run(s.log)
	}
	return job.Run()
}
