package daemon

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// Scheduler wraps a gocron scheduler holding the single matrix job.
type Scheduler struct {
	scheduler gocron.Scheduler

	mu       sync.Mutex
	jobID    uuid.UUID
	schedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// jobDefinition maps a schedule string to a gocron definition. Durations run
// at a fixed interval; five or six fields are a cron expression.
func jobDefinition(schedule string) (gocron.JobDefinition, error) {
	if err := config.ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	if d, ok := config.IsDurationSchedule(schedule); ok {
		return gocron.DurationJob(d), nil
	}
	expr := strings.TrimSpace(schedule)
	return gocron.CronJob(expr, len(strings.Fields(expr)) == 6), nil
}

// Schedule installs task under schedule, replacing any previous job.
// Overlapping executions are skipped rather than queued.
func (s *Scheduler) Schedule(schedule string, task func()) error {
	def, err := jobDefinition(schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobID != uuid.Nil {
		if err := s.scheduler.RemoveJob(s.jobID); err != nil {
			slog.Warn("Failed to remove previous matrix job", logfields.Error(err))
		}
		s.jobID = uuid.Nil
	}

	job, err := s.scheduler.NewJob(
		def,
		gocron.NewTask(task),
		gocron.WithName("matrix-run"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create matrix job: %w", err)
	}
	s.jobID = job.ID()
	s.schedule = schedule
	slog.Info("Matrix run scheduled", logfields.Schedule(schedule))
	return nil
}

// Current returns the active schedule string.
func (s *Scheduler) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
