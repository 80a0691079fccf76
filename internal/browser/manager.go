// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/internal/config"
	"github.com/xkilldash9x/taskpilot/internal/scheduler"
)

const shutdownGracePeriod = 10 * time.Second

// Manager owns the browser process and the tab task runs are bound to.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	// allocatorCtx manages the entire browser process. The tab is derived from it.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	mu  sync.RWMutex
	tab *Tab

	// Initialization state management
	openOnce sync.Once
	openErr  error
}

var _ scheduler.TargetLocator = (*Manager)(nil)

// NewManager creates a browser manager. The browser is launched by Open.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
}

// Open launches (or attaches to) the browser and opens the tab, navigated to
// the configured start URL. ctx bounds the browser's lifetime; the launch
// itself is bounded by browser.launch_timeout. Calling Open again returns the
// same tab.
func (m *Manager) Open(ctx context.Context) (*Tab, error) {
	m.openOnce.Do(func() {
		m.openErr = m.open(ctx)
	})
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tab, nil
}

func (m *Manager) open(ctx context.Context) error {
	if m.cfg.RemoteURL != "" {
		m.logger.Info("Attaching to remote browser.", zap.String("url", m.cfg.RemoteURL))
		m.allocatorCtx, m.allocatorCancel = chromedp.NewRemoteAllocator(ctx, m.cfg.RemoteURL)
	} else {
		m.logger.Info("Initializing browser allocator...", zap.Bool("headless", m.cfg.Headless))
		m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	}

	tabCtx, tabCancel := chromedp.NewContext(m.allocatorCtx,
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Debugf),
	)

	launchTimeout := m.cfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = 30 * time.Second
	}
	launchCtx, cancelLaunch := context.WithTimeout(context.Background(), launchTimeout)
	defer cancelLaunch()
	opCtx, cancelOp := CombineContext(tabCtx, launchCtx)
	defer cancelOp()

	startURL := m.cfg.StartURL
	if startURL == "" {
		startURL = "about:blank"
	}
	// The first Run on a fresh context starts the browser and creates the tab.
	if err := chromedp.Run(opCtx, chromedp.Navigate(startURL)); err != nil {
		tabCancel()
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	id := ""
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		id = string(c.Target.TargetID)
	}
	tab := newTab(tabCtx, tabCancel, id, m.logger)

	m.mu.Lock()
	m.tab = tab
	m.mu.Unlock()

	m.logger.Info("Browser launched successfully and is responsive.", zap.String("tab", tab.Name()), zap.String("start_url", startURL))
	return nil
}

// buildAllocatorOptions assembles the launch options from the browser config.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range m.launchFlags() {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}
	return opts
}

// launchFlags returns the Chrome command line flags for the config.
func (m *Manager) launchFlags() map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                  m.cfg.Headless,
		"ignore-certificate-errors": m.cfg.IgnoreTLSErrors,
		"disable-extensions":        true,
		"disable-gpu":               m.cfg.Headless,
	}

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
	}

	// Custom arguments from config, e.g. "--window-size=1280,800". They win over the defaults.
	for _, arg := range m.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")

		if len(parts) == 2 {
			flags[flagName] = parts[1]
		} else {
			flags[flagName] = true
		}
	}
	return flags
}

// ActiveTarget returns the open tab, or scheduler.ErrNoTarget when the
// browser was never opened or the tab is gone.
func (m *Manager) ActiveTarget(ctx context.Context) (scheduler.Target, error) {
	m.mu.RLock()
	tab := m.tab
	m.mu.RUnlock()

	if tab == nil || tab.Closed() {
		return nil, scheduler.ErrNoTarget
	}
	return tab, nil
}

// Shutdown closes the tab and terminates the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	tab := m.tab
	m.tab = nil
	m.mu.Unlock()

	if tab != nil {
		if err := tab.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("Failed to close tab cleanly.", zap.Error(err))
		}
	}
	if m.allocatorCancel != nil {
		m.allocatorCancel()
	}
	m.logger.Info("Browser manager shut down.")
	return nil
}
