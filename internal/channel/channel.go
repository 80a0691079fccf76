// Package channel carries task requests from the controller to executor
// contexts and their replies back.
package channel

import (
	"context"
	"errors"

	"github.com/xkilldash9x/taskpilot/api/schemas"
)

var (
	// ErrNoReceiver is returned when no executor context is registered under the address.
	ErrNoReceiver = errors.New("no receiving context")
	// ErrDeliveryFailed is returned when the receiver could not produce a reply.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrNoReply is returned when the reply timeout elapsed before a reply arrived.
	ErrNoReply = errors.New("no reply received")
	// ErrClosed is returned for requests sent after the channel was closed.
	ErrClosed = errors.New("channel closed")
	// ErrDuplicateReceiver is returned when an address is registered twice.
	ErrDuplicateReceiver = errors.New("receiver already registered")
)

// Handler is an executor context's request handler. Its return value is the
// one and only reply to the request.
type Handler func(ctx context.Context, req schemas.ExecuteTaskRequest) schemas.TaskResponse

// Channel delivers a request to a named context and waits for its reply.
//
// A returned error means the request was not answered (no receiver, delivery
// failure, no reply, or ctx done). A failure *reply* is not an error: it is
// returned as a TaskResponse with StatusError.
type Channel interface {
	Send(ctx context.Context, to string, req schemas.ExecuteTaskRequest) (schemas.TaskResponse, error)
}
