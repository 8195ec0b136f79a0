package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Job is the work run on every tick. The context is cancelled by Stop.
type Job func(ctx context.Context)

// Scheduler runs a single job on a fixed interval. A tick that fires while the
// previous run is still going is dropped rather than queued.
type Scheduler struct {
	mu        sync.Mutex
	scheduler *gocron.Scheduler
	job       Job
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
}

// New creates a new Scheduler. Times are evaluated in loc (nil = time.Local).
func New(job Job, interval time.Duration, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	s := gocron.NewScheduler(loc)
	s.SetMaxConcurrentJobs(1, gocron.RescheduleMode)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		job:       job,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Interval returns the current tick interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("scheduler already started")
	}
	if err := s.schedule(); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.started = true
	log.Printf("scheduler: started, every %s", s.interval)
	return nil
}

// Reschedule replaces the tick interval. A run in progress is not interrupted.
func (s *Scheduler) Reschedule(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if interval == s.interval {
		return nil
	}
	s.interval = interval
	if !s.started {
		return nil
	}
	s.scheduler.Clear()
	if err := s.schedule(); err != nil {
		return err
	}
	log.Printf("scheduler: rescheduled, every %s", interval)
	return nil
}

// Stop cancels the job context and stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	if s.started {
		s.scheduler.Stop()
		s.started = false
	}
}

func (s *Scheduler) schedule() error {
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}
	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.job(s.ctx)
	})
	return err
}
