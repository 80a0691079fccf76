package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/api/schemas"
)

// Coordinator checks a run's preconditions, binds it to the active target
// and hands it to the Scheduler. It admits one run at a time.
type Coordinator struct {
	scheduler *Scheduler
	locator   TargetLocator
	logger    *zap.Logger

	// stateLock protects isRunning.
	stateLock sync.Mutex
	isRunning bool

	wg sync.WaitGroup
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(scheduler *Scheduler, locator TargetLocator, logger *zap.Logger) (*Coordinator, error) {
	if scheduler == nil {
		return nil, errors.New("scheduler cannot be nil")
	}
	if locator == nil {
		return nil, errors.New("target locator cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Coordinator{
		scheduler: scheduler,
		locator:   locator,
		logger:    logger.With(zap.String("component", "coordinator")),
	}, nil
}

// Start begins a run over tasks and returns its ID. onComplete is invoked
// exactly once: immediately when a precondition fails, otherwise from the
// run's goroutine after the last task or when ctx ends.
func (c *Coordinator) Start(ctx context.Context, tasks []schemas.TaskDescriptor, onComplete func(schemas.RunOutcome)) string {
	runID := uuid.NewString()
	log := c.logger.With(zap.String("run_id", runID))

	var once sync.Once
	complete := func(outcome schemas.RunOutcome) {
		once.Do(func() {
			if onComplete != nil {
				onComplete(outcome)
			}
		})
	}

	if len(tasks) == 0 {
		log.Warn("Run rejected.", zap.String("reason", schemas.ReasonNoTasks))
		complete(schemas.RunFailed(runID, schemas.ReasonNoTasks))
		return runID
	}

	if !c.acquire() {
		log.Warn("Run rejected.", zap.String("reason", schemas.ReasonRunInProgress))
		complete(schemas.RunFailed(runID, schemas.ReasonRunInProgress))
		return runID
	}

	target, err := c.locator.ActiveTarget(ctx)
	if err != nil || target == nil {
		c.release()
		log.Warn("Run rejected.", zap.String("reason", schemas.ReasonNoActiveTarget), zap.Error(err))
		complete(schemas.RunFailed(runID, schemas.ReasonNoActiveTarget))
		return runID
	}

	// The run owns its copy; callers may reuse their slice.
	owned := make([]schemas.TaskDescriptor, len(tasks))
	copy(owned, tasks)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		outcome := c.scheduler.Execute(ctx, runID, owned, target)
		// Release before completing so the callback may start the next run.
		c.release()
		complete(outcome)
	}()
	return runID
}

// Process runs tasks and blocks until the run's outcome is available.
func (c *Coordinator) Process(ctx context.Context, tasks []schemas.TaskDescriptor) schemas.RunOutcome {
	done := make(chan schemas.RunOutcome, 1)
	c.Start(ctx, tasks, func(outcome schemas.RunOutcome) {
		done <- outcome
	})
	return <-done
}

// Busy reports whether a run is in flight.
func (c *Coordinator) Busy() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.isRunning
}

// Wait blocks until every started run has completed, or ctx ends.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) acquire() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	if c.isRunning {
		return false
	}
	c.isRunning = true
	return true
}

func (c *Coordinator) release() {
	c.stateLock.Lock()
	c.isRunning = false
	c.stateLock.Unlock()
}
