package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/api/schemas"
)

// Bus is an in-process Channel. Executor contexts register a Handler under a
// name; each Send runs the handler on its own goroutine and waits for the
// reply, the reply timeout, or the sender's context.
type Bus struct {
	logger       *zap.Logger
	replyTimeout time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
	closed   bool

	// inflight tracks handler goroutines so Close can wait for them.
	inflight sync.WaitGroup
}

var _ Channel = (*Bus)(nil)

// Option configures a Bus.
type Option func(*Bus)

// WithReplyTimeout bounds how long Send waits for a reply. Zero (the default) waits
// until the sender's context is done.
func WithReplyTimeout(d time.Duration) Option {
	return func(b *Bus) {
		b.replyTimeout = d
	}
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger, opts ...Option) *Bus {
	b := &Bus{
		logger:   logger.Named("channel"),
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register makes a context reachable under name. The returned function
// removes it again.
func (b *Bus) Register(name string, h Handler) (func(), error) {
	if name == "" {
		return nil, fmt.Errorf("receiver name cannot be empty")
	}
	if h == nil {
		return nil, fmt.Errorf("handler for '%s' cannot be nil", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if _, exists := b.handlers[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateReceiver, name)
	}
	b.handlers[name] = h
	b.logger.Debug("Receiver registered.", zap.String("receiver", name))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, name)
			b.mu.Unlock()
			b.logger.Debug("Receiver unregistered.", zap.String("receiver", name))
		})
	}, nil
}

type reply struct {
	resp schemas.TaskResponse
	err  error
}

// Send delivers req to the context registered as to and waits for its reply.
func (b *Bus) Send(ctx context.Context, to string, req schemas.ExecuteTaskRequest) (schemas.TaskResponse, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return schemas.TaskResponse{}, ErrClosed
	}
	h, ok := b.handlers[to]
	if !ok {
		b.mu.RUnlock()
		return schemas.TaskResponse{}, fmt.Errorf("%w: %s", ErrNoReceiver, to)
	}
	// Add while holding the read lock so Close cannot miss this request.
	b.inflight.Add(1)
	b.mu.RUnlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Kind == "" {
		req.Kind = schemas.RequestExecuteTask
	}
	log := b.logger.With(zap.String("receiver", to), zap.String("request_id", req.ID))

	// The handler's context ends when the sender stops waiting.
	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so the handler goroutine never blocks on an abandoned reply.
	replies := make(chan reply, 1)
	go func() {
		defer b.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("Receiver panicked while handling request.", zap.Any("panic", r))
				replies <- reply{err: fmt.Errorf("%w: receiver panicked: %v", ErrDeliveryFailed, r)}
			}
		}()
		replies <- reply{resp: h(handlerCtx, req)}
	}()

	var timeout <-chan time.Time
	if b.replyTimeout > 0 {
		timer := time.NewTimer(b.replyTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-replies:
		if r.err != nil {
			return schemas.TaskResponse{}, r.err
		}
		log.Debug("Reply received.", zap.String("status", string(r.resp.Status)))
		return r.resp, nil
	case <-timeout:
		log.Warn("No reply before timeout.", zap.Duration("timeout", b.replyTimeout))
		return schemas.TaskResponse{}, fmt.Errorf("%w from %s after %v", ErrNoReply, to, b.replyTimeout)
	case <-ctx.Done():
		return schemas.TaskResponse{}, ctx.Err()
	}
}

// Close stops accepting requests and waits for in-flight handlers, bounded by ctx.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.handlers = make(map[string]Handler)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Debug("Channel closed.")
		return nil
	case <-ctx.Done():
		b.logger.Warn("Timed out waiting for in-flight receivers.", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
