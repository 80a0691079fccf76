// File: internal/transport/ws/server.go
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/taskpilot/api/schemas"
	"github.com/xkilldash9x/taskpilot/internal/config"
)

const shutdownTimeout = 15 * time.Second

// Handler answers controller requests. *controller.Controller satisfies it.
type Handler interface {
	Handle(ctx context.Context, req schemas.Request) schemas.Response
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, req schemas.Request) schemas.Response

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req schemas.Request) schemas.Response {
	return f(ctx, req)
}

// Server exposes the controller over a WebSocket endpoint. Every text frame
// is one schemas.Request; every reply is one schemas.Response carrying the
// request's ID. Requests on one connection are handled concurrently.
type Server struct {
	cfg      config.ServerConfig
	handler  Handler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	// conns tracks hijacked connections, which http.Server.Shutdown ignores.
	conns sync.WaitGroup
}

// NewServer creates a Server.
func NewServer(cfg config.ServerConfig, handler Handler, logger *zap.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local automation endpoint; callers are not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// Routes returns the HTTP handler: GET /healthz and GET /ws.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)
	return r
}

// Run listens on the configured address and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends, then shuts down
// gracefully: the listener closes, open connections are closed and their
// in-flight requests are abandoned.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// Connection contexts derive from ctx so a shutdown reaches them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("WebSocket server listening.", zap.String("address", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down WebSocket server.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Graceful shutdown incomplete.", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	s.conns.Wait()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("WebSocket upgrade failed.", zap.Error(err))
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()

	c := newClient(conn, s.handler, s.newLimiter(), s.logger.With(
		zap.String("remote", r.RemoteAddr),
		zap.String("http_request_id", middleware.GetReqID(r.Context())),
	))
	c.serve(r.Context())
}

// newLimiter returns the per-connection request limiter. A zero rate
// disables limiting.
func (s *Server) newLimiter() *rate.Limiter {
	if s.cfg.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := s.cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)
}

// encode marshals a response for the wire.
func encode(resp schemas.Response) ([]byte, error) {
	return json.ConfigCompatibleWithStandardLibrary.Marshal(resp)
}
