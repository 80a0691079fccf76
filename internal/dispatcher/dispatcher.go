// Package dispatcher is the executor side of task execution: it maps a single
// task descriptor onto a Page operation and turns the result into a reply.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/api/schemas"
	"github.com/xkilldash9x/taskpilot/internal/channel"
)

const defaultActionTimeout = 10 * time.Second

// Dispatcher executes tasks against one Page.
type Dispatcher struct {
	page          Page
	logger        *zap.Logger
	actionTimeout time.Duration
}

// Option is a function that configures a Dispatcher.
type Option func(*Dispatcher)

// WithActionTimeout bounds each page operation. Zero disables the bound.
func WithActionTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.actionTimeout = timeout
	}
}

// New creates a dispatcher for page.
func New(page Page, logger *zap.Logger, opts ...Option) (*Dispatcher, error) {
	if page == nil {
		return nil, fmt.Errorf("page cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		page:          page,
		logger:        logger.With(zap.String("component", "dispatcher")),
		actionTimeout: defaultActionTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Handler exposes the dispatcher as an executor endpoint on a channel.
func (d *Dispatcher) Handler() channel.Handler {
	return func(ctx context.Context, req schemas.ExecuteTaskRequest) schemas.TaskResponse {
		if req.Kind != schemas.RequestExecuteTask {
			return schemas.TaskFailed(fmt.Sprintf("unhandled request: %s", req.Kind))
		}
		return d.Execute(ctx, req.Task)
	}
}

// Execute performs one task and always returns a reply. Page errors and
// panics become failure replies.
func (d *Dispatcher) Execute(ctx context.Context, task schemas.TaskDescriptor) (resp schemas.TaskResponse) {
	log := d.logger.With(zap.String("action", string(task.Action)), zap.String("selector", task.Selector))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic while executing task.", zap.Any("panic", r))
			resp = schemas.TaskFailed(fmt.Sprintf("executor error: panic: %v", r))
		}
	}()

	if d.actionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.actionTimeout)
		defer cancel()
	}

	var (
		result interface{}
		err    error
	)
	switch task.Action {
	case schemas.ActionUpdate:
		if err = d.page.SetValue(ctx, task.Selector, task.Value); err == nil {
			result = fmt.Sprintf("Updated element %s", task.Selector)
		}
	case schemas.ActionClick:
		if err = d.page.Click(ctx, task.Selector); err == nil {
			result = fmt.Sprintf("Clicked element %s", task.Selector)
		}
	case schemas.ActionScrape:
		var value string
		if value, err = d.page.Read(ctx, task.Selector, scrapeAttribute(task)); err == nil {
			result = schemas.ScrapeResult{Selector: task.Selector, Value: value}
		}
	case schemas.ActionSelectByText:
		if err = d.page.SelectByText(ctx, task.Selector, task.Value); err == nil {
			result = fmt.Sprintf("Selected option %q in %s", task.Value, task.Selector)
		}
	default:
		log.Warn("Unknown action requested.")
		return schemas.TaskFailed(ReasonUnknownAction)
	}

	if err != nil {
		reason := failureReason(err)
		log.Debug("Task failed.", zap.String("reason", reason), zap.Error(err))
		return schemas.TaskFailed(reason)
	}
	log.Debug("Task executed.")
	return schemas.TaskSucceeded(result)
}

func scrapeAttribute(task schemas.TaskDescriptor) string {
	if task.ScrapeAttribute == "" {
		return schemas.ScrapeInnerText
	}
	return task.ScrapeAttribute
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrElementNotFound):
		return ReasonElementNotFound
	case errors.Is(err, ErrDropdownNotFound):
		return ReasonDropdownNotFound
	case errors.Is(err, ErrOptionNotFound):
		return ReasonOptionNotFound
	default:
		return fmt.Sprintf("executor error: %v", err)
	}
}
