package ws

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/api/schemas"
	"github.com/xkilldash9x/taskpilot/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// echoHandler answers every request with its kind as the message.
var echoHandler = HandlerFunc(func(ctx context.Context, req schemas.Request) schemas.Response {
	return schemas.Response{Status: schemas.StatusSuccess, Message: string(req.Kind)}
})

func newTestServer(t *testing.T, cfg config.ServerConfig, h Handler) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(cfg, h, zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return s, srv
}

func dial(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendRequest(t *testing.T, conn *websocket.Conn, req schemas.Request) {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func readResponse(t *testing.T, conn *websocket.Conn) schemas.Response {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var resp schemas.Response
	require.NoError(t, json.Unmarshal(payload, &resp))
	return resp
}

func TestNewServer_ValidatesDependencies(t *testing.T) {
	_, err := NewServer(config.ServerConfig{}, nil, zap.NewNop())
	assert.Error(t, err)
	_, err = NewServer(config.ServerConfig{}, echoHandler, nil)
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	_, srv := newTestServer(t, config.ServerConfig{}, echoHandler)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	_, srv := newTestServer(t, config.ServerConfig{}, echoHandler)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocket_RoundTrip(t *testing.T) {
	_, srv := newTestServer(t, config.ServerConfig{}, echoHandler)
	conn := dial(t, srv.URL)

	sendRequest(t, conn, schemas.Request{ID: "req-1", Kind: schemas.RequestListConfigurationNames})
	resp := readResponse(t, conn)

	assert.Equal(t, "req-1", resp.ID)
	assert.True(t, resp.OK())
	assert.Equal(t, string(schemas.RequestListConfigurationNames), resp.Message)
}

func TestWebSocket_AssignsMissingID(t *testing.T) {
	_, srv := newTestServer(t, config.ServerConfig{}, echoHandler)
	conn := dial(t, srv.URL)

	sendRequest(t, conn, schemas.Request{Kind: schemas.RequestListConfigurationNames})
	assert.NotEmpty(t, readResponse(t, conn).ID)
}

func TestWebSocket_MalformedRequest(t *testing.T) {
	_, srv := newTestServer(t, config.ServerConfig{}, echoHandler)
	conn := dial(t, srv.URL)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	resp := readResponse(t, conn)
	assert.False(t, resp.OK())
	assert.Contains(t, resp.Message, "malformed request")

	// The connection stays usable.
	sendRequest(t, conn, schemas.Request{ID: "req-2", Kind: schemas.RequestListConfigurationNames})
	assert.Equal(t, "req-2", readResponse(t, conn).ID)
}

func TestWebSocket_RateLimited(t *testing.T) {
	_, srv := newTestServer(t, config.ServerConfig{RateLimit: 0.001, Burst: 1}, echoHandler)
	conn := dial(t, srv.URL)

	sendRequest(t, conn, schemas.Request{ID: "a", Kind: schemas.RequestListConfigurationNames})
	sendRequest(t, conn, schemas.Request{ID: "b", Kind: schemas.RequestListConfigurationNames})

	got := map[string]schemas.Response{}
	for i := 0; i < 2; i++ {
		resp := readResponse(t, conn)
		got[resp.ID] = resp
	}
	assert.True(t, got["a"].OK())
	assert.False(t, got["b"].OK())
	assert.Equal(t, MessageRateLimited, got["b"].Message)
}

func TestWebSocket_RequestsAreConcurrent(t *testing.T) {
	release := make(chan struct{})
	handler := HandlerFunc(func(ctx context.Context, req schemas.Request) schemas.Response {
		if req.ID == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return schemas.Response{Status: schemas.StatusSuccess}
	})
	_, srv := newTestServer(t, config.ServerConfig{}, handler)
	conn := dial(t, srv.URL)

	sendRequest(t, conn, schemas.Request{ID: "slow", Kind: schemas.RequestProcessTasks})
	sendRequest(t, conn, schemas.Request{ID: "fast", Kind: schemas.RequestListConfigurationNames})

	assert.Equal(t, "fast", readResponse(t, conn).ID, "a slow request does not block the next one")
	close(release)
	assert.Equal(t, "slow", readResponse(t, conn).ID)
}

func TestServe_ShutsDownOnContextCancel(t *testing.T) {
	var (
		mu      sync.Mutex
		started bool
	)
	handler := HandlerFunc(func(ctx context.Context, req schemas.Request) schemas.Response {
		mu.Lock()
		started = true
		mu.Unlock()
		<-ctx.Done()
		return schemas.ErrorResponse(ctx.Err().Error())
	})
	s, err := NewServer(config.ServerConfig{}, handler, zap.NewNop())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	conn := dial(t, "http://"+ln.Addr().String())
	sendRequest(t, conn, schemas.Request{ID: "run", Kind: schemas.RequestProcessTasks})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return started
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	// The server closed the connection.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
