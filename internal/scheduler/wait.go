package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/taskpilot/internal/config"
)

// WaitPolicy decides how long a run pauses before advancing to the next task.
// Both methods return an error only when ctx is done.
type WaitPolicy interface {
	// AfterNavigate waits for the target to settle after a navigation.
	AfterNavigate(ctx context.Context, target Target) error
	// BetweenTasks waits after a delegated task before the next one starts.
	BetweenTasks(ctx context.Context, target Target) error
}

// FixedDelay pauses for constant durations regardless of the page.
type FixedDelay struct {
	Settle  time.Duration
	Between time.Duration
}

func (p FixedDelay) AfterNavigate(ctx context.Context, _ Target) error {
	return sleep(ctx, p.Settle)
}

func (p FixedDelay) BetweenTasks(ctx context.Context, _ Target) error {
	return sleep(ctx, p.Between)
}

// ReadySignal waits for the target's readiness signal, bounded by Timeout.
// Targets that cannot signal, or that time out, get the Fallback delay.
type ReadySignal struct {
	Timeout  time.Duration
	Fallback FixedDelay
}

func (p ReadySignal) AfterNavigate(ctx context.Context, target Target) error {
	return p.await(ctx, target, p.Fallback.Settle)
}

func (p ReadySignal) BetweenTasks(ctx context.Context, target Target) error {
	return p.await(ctx, target, p.Fallback.Between)
}

func (p ReadySignal) await(ctx context.Context, target Target, fallback time.Duration) error {
	signaler, ok := target.(ReadinessSignaler)
	if !ok {
		return sleep(ctx, fallback)
	}

	readyCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		readyCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	if err := signaler.Ready(readyCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return sleep(ctx, fallback)
	}
	return nil
}

// NewWaitPolicy builds the policy selected by cfg.
func NewWaitPolicy(cfg config.SchedulerConfig) (WaitPolicy, error) {
	fixed := FixedDelay{Settle: cfg.SettleDelay, Between: cfg.TaskDelay}
	switch cfg.WaitStrategy {
	case config.WaitFixed, "":
		return fixed, nil
	case config.WaitReady:
		return ReadySignal{Timeout: cfg.ReadyTimeout, Fallback: fixed}, nil
	default:
		return nil, fmt.Errorf("unknown wait strategy '%s'", cfg.WaitStrategy)
	}
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
