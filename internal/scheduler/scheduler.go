// Package scheduler runs task lists strictly in order against one target,
// one task at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/api/schemas"
	"github.com/xkilldash9x/taskpilot/internal/channel"
)

// Scheduler drives the tasks of a run. It navigates the target itself and
// delegates every other task to the target's executor over the channel.
type Scheduler struct {
	channel channel.Channel
	wait    WaitPolicy
	logger  *zap.Logger
}

// New creates a Scheduler.
func New(ch channel.Channel, wait WaitPolicy, logger *zap.Logger) (*Scheduler, error) {
	if ch == nil {
		return nil, errors.New("channel cannot be nil")
	}
	if wait == nil {
		return nil, errors.New("wait policy cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Scheduler{
		channel: ch,
		wait:    wait,
		logger:  logger.With(zap.String("component", "scheduler")),
	}, nil
}

// run is the state of one in-flight run. It is owned by the goroutine
// executing it and never shared.
type run struct {
	id        string
	tasks     []schemas.TaskDescriptor
	target    Target
	cursor    int
	failures  []schemas.TaskFailure
	startedAt time.Time
	logger    *zap.Logger
}

// Execute processes tasks in order and returns the run's outcome. The task
// i+1 starts only after task i settled and the wait policy released it.
// Failed tasks are recorded and never stop the run; only ctx ending does.
func (s *Scheduler) Execute(ctx context.Context, runID string, tasks []schemas.TaskDescriptor, target Target) schemas.RunOutcome {
	r := &run{
		id:        runID,
		tasks:     tasks,
		target:    target,
		startedAt: time.Now().UTC(),
		logger:    s.logger.With(zap.String("run_id", runID), zap.String("target", target.Name())),
	}
	r.logger.Info("Run started.", zap.Int("tasks", len(tasks)))

	for r.cursor < len(r.tasks) {
		if err := ctx.Err(); err != nil {
			return s.abandon(r, err)
		}

		task := r.tasks[r.cursor]
		var err error
		if task.IsLocalNavigation() {
			err = s.navigate(ctx, r, task)
		} else {
			err = s.delegate(ctx, r, task)
		}
		if err != nil {
			return s.abandon(r, err)
		}
		r.cursor++
	}

	r.logger.Info("Run finished.", zap.Int("completed", r.cursor), zap.Int("failures", len(r.failures)))
	return schemas.RunOutcome{
		RunID:      r.id,
		Status:     schemas.StatusSuccess,
		Message:    schemas.MessageAllTasksProcessed,
		Completed:  r.cursor,
		Failures:   r.failures,
		StartedAt:  r.startedAt,
		FinishedAt: time.Now().UTC(),
	}
}

// navigate handles a navigation on the controller side. Navigation errors
// are logged and recorded but never abort the run.
func (s *Scheduler) navigate(ctx context.Context, r *run, task schemas.TaskDescriptor) error {
	log := r.logger.With(zap.Int("index", r.cursor), zap.String("url", task.URL))
	log.Debug("Navigating target.")

	if err := r.target.Navigate(ctx, task.URL); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("Navigation failed.", zap.Error(err))
		r.failures = append(r.failures, schemas.TaskFailure{
			Index:  r.cursor,
			Action: task.Action,
			Reason: fmt.Sprintf("navigation failed: %v", err),
		})
	}
	return s.wait.AfterNavigate(ctx, r.target)
}

// delegate sends the task to the target's executor and waits for the reply.
// Failure replies and delivery errors are recorded; only ctx ending aborts.
func (s *Scheduler) delegate(ctx context.Context, r *run, task schemas.TaskDescriptor) error {
	log := r.logger.With(zap.Int("index", r.cursor), zap.Stringer("task", task))

	req := schemas.NewExecuteTaskRequest(uuid.NewString(), task)
	resp, err := s.channel.Send(ctx, r.target.Name(), req)
	switch {
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		log.Warn("Task could not be delivered.", zap.Error(err))
		r.recordFailure(task, err.Error())
	case !resp.OK():
		log.Warn("Task failed.", zap.String("reason", resp.Message))
		r.recordFailure(task, resp.Message)
	default:
		log.Info("Task succeeded.", zap.Any("result", resp.Result))
	}

	return s.wait.BetweenTasks(ctx, r.target)
}

func (r *run) recordFailure(task schemas.TaskDescriptor, reason string) {
	r.failures = append(r.failures, schemas.TaskFailure{
		Index:    r.cursor,
		Action:   task.Action,
		Selector: task.Selector,
		Reason:   reason,
	})
}

func (s *Scheduler) abandon(r *run, cause error) schemas.RunOutcome {
	r.logger.Warn("Run abandoned.", zap.Int("completed", r.cursor), zap.Error(cause))
	return schemas.RunOutcome{
		RunID:      r.id,
		Status:     schemas.StatusError,
		Message:    fmt.Sprintf("run abandoned: %v", cause),
		Completed:  r.cursor,
		Failures:   r.failures,
		StartedAt:  r.startedAt,
		FinishedAt: time.Now().UTC(),
	}
}
