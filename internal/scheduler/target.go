package scheduler

import (
	"context"
	"errors"
)

// ErrNoTarget is returned by a TargetLocator when there is no page to run against.
var ErrNoTarget = errors.New("no active target")

// Target is the page a run is bound to. The controller navigates it
// directly; every other action is delegated to the executor registered on
// the channel under Name.
type Target interface {
	Name() string
	Navigate(ctx context.Context, url string) error
}

// ReadinessSignaler is implemented by targets that can tell when the page
// has settled after a navigation or DOM mutation.
type ReadinessSignaler interface {
	Ready(ctx context.Context) error
}

// TargetLocator finds the target for a new run.
type TargetLocator interface {
	ActiveTarget(ctx context.Context) (Target, error)
}

// LocatorFunc adapts a function to a TargetLocator.
type LocatorFunc func(ctx context.Context) (Target, error)

func (f LocatorFunc) ActiveTarget(ctx context.Context) (Target, error) { return f(ctx) }

// FixedTarget always locates t. A nil t locates nothing.
func FixedTarget(t Target) TargetLocator {
	return LocatorFunc(func(context.Context) (Target, error) {
		if t == nil {
			return nil, ErrNoTarget
		}
		return t, nil
	})
}
