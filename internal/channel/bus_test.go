package channel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func echoHandler(ctx context.Context, req schemas.ExecuteTaskRequest) schemas.TaskResponse {
	return schemas.TaskSucceeded("handled " + req.Task.Selector)
}

func TestBus_SendDeliversToNamedReceiver(t *testing.T) {
	bus := NewBus(zap.NewNop())
	defer bus.Close(context.Background())

	var seen schemas.ExecuteTaskRequest
	_, err := bus.Register("tab-1", func(ctx context.Context, req schemas.ExecuteTaskRequest) schemas.TaskResponse {
		seen = req
		return schemas.TaskSucceeded("ok")
	})
	require.NoError(t, err)

	task := schemas.TaskDescriptor{Action: schemas.ActionClick, Selector: "#go"}
	resp, err := bus.Send(context.Background(), "tab-1", schemas.ExecuteTaskRequest{Task: task})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "ok", resp.Result)

	assert.Equal(t, task, seen.Task)
	assert.Equal(t, schemas.RequestExecuteTask, seen.Kind, "kind defaults to executeTask")
	assert.NotEmpty(t, seen.ID, "an ID is assigned when missing")
}

func TestBus_FailureReplyIsNotAnError(t *testing.T) {
	bus := NewBus(zap.NewNop())
	defer bus.Close(context.Background())

	_, err := bus.Register("tab-1", func(ctx context.Context, req schemas.ExecuteTaskRequest) schemas.TaskResponse {
		return schemas.TaskFailed("element not found")
	})
	require.NoError(t, err)

	resp, err := bus.Send(context.Background(), "tab-1", schemas.ExecuteTaskRequest{})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "element not found", resp.Message)
}

func TestBus_NoReceiver(t *testing.T) {
	bus := NewBus(zap.NewNop())
	defer bus.Close(context.Background())

	_, err := bus.Send(context.Background(), "missing", schemas.ExecuteTaskRequest{})
	assert.ErrorIs(t, err, ErrNoReceiver)
}

func TestBus_ReceiverPanicIsDeliveryFailure(t *testing.T) {
	bus := NewBus(zap.NewNop())
	defer bus.Close(context.Background())

	_, err := bus.Register("tab-1", func(ctx context.Context, req schemas.ExecuteTaskRequest) schemas.TaskResponse {
		panic("boom")
	})
	require.NoError(t, err)

	_, err = bus.Send(context.Background(), "tab-1", schemas.ExecuteTaskRequest{})
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "boom")
}

func TestBus_ReplyTimeout(t *testing.T) {
	bus := NewBus(zap.NewNop(), WithReplyTimeout(20*time.Millisecond))
	defer bus.Close(context.Background())

	_, err := bus.Register("silent", func(ctx context.Context, req schemas.ExecuteTaskRequest) schemas.TaskResponse {
		// Never replies on its own; only stops once the sender gives up.
		<-ctx.Done()
		return schemas.TaskFailed("cancelled")
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = bus.Send(context.Background(), "silent", schemas.ExecuteTaskRequest{})
	assert.ErrorIs(t, err, ErrNoReply)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBus_SenderContextCancelled(t *testing.T) {
	bus := NewBus(zap.NewNop())
	defer bus.Close(context.Background())

	_, err := bus.Register("silent", func(ctx context.Context, req schemas.ExecuteTaskRequest) schemas.TaskResponse {
		<-ctx.Done()
		return schemas.TaskFailed("cancelled")
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = bus.Send(ctx, "silent", schemas.ExecuteTaskRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBus_Register(t *testing.T) {
	bus := NewBus(zap.NewNop())
	defer bus.Close(context.Background())

	unregister, err := bus.Register("tab-1", echoHandler)
	require.NoError(t, err)

	_, err = bus.Register("tab-1", echoHandler)
	assert.ErrorIs(t, err, ErrDuplicateReceiver)

	_, err = bus.Register("", echoHandler)
	assert.Error(t, err)

	_, err = bus.Register("tab-2", nil)
	assert.Error(t, err)

	unregister()
	unregister() // idempotent

	_, err = bus.Send(context.Background(), "tab-1", schemas.ExecuteTaskRequest{})
	assert.ErrorIs(t, err, ErrNoReceiver)
}

func TestBus_CloseWaitsForInflightAndRejectsNewRequests(t *testing.T) {
	bus := NewBus(zap.NewNop())

	release := make(chan struct{})
	var finished atomic.Bool
	_, err := bus.Register("slow", func(ctx context.Context, req schemas.ExecuteTaskRequest) schemas.TaskResponse {
		<-release
		finished.Store(true)
		return schemas.TaskSucceeded("done")
	})
	require.NoError(t, err)

	sent := make(chan error, 1)
	go func() {
		_, err := bus.Send(context.Background(), "slow", schemas.ExecuteTaskRequest{})
		sent <- err
	}()

	// Let the request reach the handler before closing.
	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.handlers) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- bus.Close(context.Background()) }()

	close(release)
	require.NoError(t, <-closed)
	assert.True(t, finished.Load())
	assert.NoError(t, <-sent)

	_, err = bus.Send(context.Background(), "slow", schemas.ExecuteTaskRequest{})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = bus.Register("late", echoHandler)
	assert.ErrorIs(t, err, ErrClosed)
}
