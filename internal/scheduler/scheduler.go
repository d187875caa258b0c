// Package scheduler drives the pipeline's periodic work: poll cycles, batch
// runs and stream health checks. Each job is a ticker plus a cancellable
// task; jobs guard their own re-entrancy, the scheduler just fires ticks.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is one named periodic task
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler runs a fixed set of jobs until stopped
type Scheduler struct {
	mu      sync.Mutex
	jobs    []Job
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New creates an empty scheduler
func New() *Scheduler {
	return &Scheduler{stop: make(chan struct{})}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(name string, interval time.Duration, run func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{Name: name, Interval: interval, Run: run})
}

// Start launches one goroutine per job. Jobs stop when ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, job := range jobs {
		s.wg.Add(1)
		go s.runJob(ctx, job)
	}
	log.Printf("Scheduler started with %d jobs", len(jobs))
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			job.Run(ctx)
		case <-ctx.Done():
			log.Printf("Scheduler job %q stopped", job.Name)
			return
		case <-s.stop:
			log.Printf("Scheduler job %q stopped", job.Name)
			return
		}
	}
}

// Stop halts all jobs and waits for in-flight runs to complete
func (s *Scheduler) Stop() {
	s.mu.Lock()
	select {
	case <-s.stop:
		// Already stopped
	default:
		close(s.stop)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
