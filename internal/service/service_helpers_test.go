package service

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/xkilldash9x/taskpilot/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// httptest keeps idle keep-alive connections around briefly.
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const formPage = `<html><body>
<form>
  <input id="q" name="q" value="">
  <select id="color">
    <option value="r">Red</option>
    <option value="g"> Green </option>
  </select>
  <button id="go">Go</button>
</form>
<div id="result">Forty two</div>
<a id="next" href="/page2">next</a>
</body></html>`

// newPageServer serves formPage at / and a second page at /page2.
func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(formPage))
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1 id="title">Second</h1></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newStaticConfig returns a config for the static engine and a file store
// in a temp dir, with waits short enough for tests.
func newStaticConfig(t *testing.T, startURL string) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.SetBrowserEngine(config.EngineStatic)
	cfg.SetBrowserStartURL(startURL)
	cfg.StoreCfg.Path = filepath.Join(t.TempDir(), "configurations.json")
	cfg.SchedulerCfg.SettleDelay = time.Millisecond
	cfg.SchedulerCfg.TaskDelay = time.Millisecond
	cfg.ChannelCfg.ReplyTimeout = 5 * time.Second
	return cfg
}
