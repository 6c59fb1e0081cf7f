// Package tasks runs the periodic passes one at a time.
package tasks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/superjcast/showwatch/pkg/metrics"
)

// Job is one periodic task.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler fires every job on its own interval and runs the ticks on a
// single goroutine, so no two jobs ever overlap. A job whose previous tick
// is still queued is not queued again.
type Scheduler struct {
	jobs    []Job
	log     logrus.FieldLogger
	metrics metrics.Recorder

	cron    *cron.Cron
	queue   chan Job
	mu      sync.Mutex
	pending map[string]bool
}

func NewScheduler(jobs []Job, rec metrics.Recorder, log logrus.FieldLogger) *Scheduler {
	if rec == nil {
		rec = metrics.New(false)
	}
	return &Scheduler{
		jobs:    jobs,
		log:     log,
		metrics: rec,
		cron:    cron.New(),
		queue:   make(chan Job, len(jobs)),
		pending: make(map[string]bool, len(jobs)),
	}
}

// Run queues every job once, then keeps firing them until ctx is done.
// It returns after the running tick, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, j := range s.jobs {
		if j.Every <= 0 {
			return fmt.Errorf("job %s: interval must be positive", j.Name)
		}
		job := j
		s.cron.Schedule(cron.Every(job.Every), cron.FuncJob(func() { s.enqueue(job) }))
		s.enqueue(job)
		s.log.Infof("Task %s scheduled every %s", job.Name, job.Every)
	}
	s.cron.Start()
	defer s.cron.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-s.queue:
			s.mu.Lock()
			delete(s.pending, j.Name)
			s.mu.Unlock()
			_ = s.RunOnce(ctx, j)
		}
	}
}

func (s *Scheduler) enqueue(j Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[j.Name] {
		s.log.Debugf("Task %s still queued, skipping this tick", j.Name)
		return
	}
	select {
	case s.queue <- j:
		s.pending[j.Name] = true
	default:
		s.log.Warnf("Task queue full, dropping tick of %s", j.Name)
	}
}

// RunOnce executes one tick of j. Errors and panics are logged and
// returned; they never escape as a panic.
func (s *Scheduler) RunOnce(ctx context.Context, j Job) (err error) {
	var log logrus.FieldLogger = s.log.WithFields(logrus.Fields{"task": j.Name, "tick": uuid.NewString()})
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", j.Name, r)
			log = log.WithField("stack", string(debug.Stack()))
		}
		elapsed := time.Since(start)
		s.metrics.ObserveTick(j.Name, elapsed, err)
		if err != nil {
			log.Errorf("Tick failed after %s: %v", elapsed.Round(time.Millisecond), err)
			return
		}
		log.Debugf("Tick done in %s", elapsed.Round(time.Millisecond))
	}()
	log.Debug("Tick started")
	return j.Run(ctx)
}
