package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrAlreadyStarted is returned by Start when the scheduler is running.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Task is a function run on a fixed interval.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
	// RunOnStart runs the task once immediately instead of waiting for the first tick.
	RunOnStart bool
}

// Observer receives the outcome of every task run.
type Observer func(task string, elapsed time.Duration, err error)

// Scheduler owns a set of periodic tasks and their goroutines.
type Scheduler struct {
	logger   *zap.Logger
	observer Observer

	mu      sync.Mutex
	tasks   []Task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a scheduler. observer may be nil.
func New(logger *zap.Logger, observer Observer) *Scheduler {
	return &Scheduler{logger: logger, observer: observer}
}

// Add registers a task. Tasks added after Start are not run until the next Start.
func (s *Scheduler) Add(task Task) error {
	if task.Name == "" || task.Run == nil {
		return fmt.Errorf("task requires a name and a run function")
	}
	if task.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", task.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	return nil
}

// Start launches one goroutine per task. The tasks stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(runCtx, task)
	}

	s.logger.Info("Scheduler started", zap.Int("tasks", len(s.tasks)))
	return nil
}

// Stop cancels all tasks and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	if task.RunOnStart {
		s.runOnce(ctx, task)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, task)
		}
	}
}

// runOnce runs a task, turning panics into errors so the loop keeps ticking.
func (s *Scheduler) runOnce(ctx context.Context, task Task) {
	start := time.Now()
	var err error

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = task.Run(ctx)
	}()

	elapsed := time.Since(start)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Scheduled task failed",
			zap.String("task", task.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("Scheduled task completed",
			zap.String("task", task.Name),
			zap.Duration("elapsed", elapsed),
		)
	}

	if s.observer != nil {
		s.observer(task.Name, elapsed, err)
	}
}
