// File: internal/transport/ws/client.go
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/taskpilot/api/schemas"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer. Task lists can be long.
	maxMessageSize = 1 << 20
	// Send buffer size
	sendChannelSize = 64
)

// MessageRateLimited is the message sent when a connection exceeds its request rate.
const MessageRateLimited = "rate limit exceeded"

// client is one WebSocket connection. readPump decodes requests and starts a
// goroutine per request; writePump is the only writer on conn.
type client struct {
	conn    *websocket.Conn
	handler Handler
	limiter *rate.Limiter
	logger  *zap.Logger

	send       chan schemas.Response
	writerDone chan struct{}
	inflight   sync.WaitGroup
}

func newClient(conn *websocket.Conn, handler Handler, limiter *rate.Limiter, logger *zap.Logger) *client {
	return &client{
		conn:       conn,
		handler:    handler,
		limiter:    limiter,
		logger:     logger,
		send:       make(chan schemas.Response, sendChannelSize),
		writerDone: make(chan struct{}),
	}
}

// serve runs the connection until the peer goes away or parent ends.
func (c *client) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)

	// Requests still running are abandoned with the connection.
	cancel()
	c.inflight.Wait()
	<-c.writerDone
	c.logger.Debug("WebSocket connection finished.")
}

func (c *client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("Failed to set initial read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) && ctx.Err() == nil {
				c.logger.Warn("WebSocket closed unexpectedly", zap.Error(err))
			} else {
				c.logger.Info("WebSocket connection closed.")
			}
			return
		}

		var req schemas.Request
		if err := json.ConfigCompatibleWithStandardLibrary.Unmarshal(message, &req); err != nil {
			c.logger.Warn("Failed to decode request.", zap.Error(err))
			c.reply(ctx, schemas.ErrorResponse(fmt.Sprintf("malformed request: %v", err)))
			continue
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		if !c.limiter.Allow() {
			resp := schemas.ErrorResponse(MessageRateLimited)
			resp.ID = req.ID
			c.reply(ctx, resp)
			continue
		}

		c.logger.Debug("Received request.", zap.String("request_id", req.ID), zap.String("kind", string(req.Kind)))

		c.inflight.Add(1)
		go func(req schemas.Request) {
			defer c.inflight.Done()
			resp := c.handler.Handle(ctx, req)
			resp.ID = req.ID
			c.reply(ctx, resp)
		}(req)
	}
}

// reply queues resp for the writer, dropping it when the writer has exited.
func (c *client) reply(ctx context.Context, resp schemas.Response) {
	select {
	case c.send <- resp:
	case <-c.writerDone:
		c.logger.Debug("Dropping reply for closed connection.", zap.String("request_id", resp.ID))
	}
}

func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.writerDone)
		// Unblocks readPump if it is still waiting on the peer.
		c.conn.Close()
	}()

	for {
		select {
		case resp := <-c.send:
			payload, err := encode(resp)
			if err != nil {
				c.logger.Error("Failed to encode response.", zap.Error(err))
				continue
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Warn("Error writing message to WebSocket", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("Error sending PING message to WebSocket", zap.Error(err))
				return
			}

		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}
