// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/internal/browser"
	"github.com/xkilldash9x/taskpilot/internal/browser/static"
	"github.com/xkilldash9x/taskpilot/internal/channel"
	"github.com/xkilldash9x/taskpilot/internal/config"
	"github.com/xkilldash9x/taskpilot/internal/controller"
	"github.com/xkilldash9x/taskpilot/internal/dispatcher"
	"github.com/xkilldash9x/taskpilot/internal/scheduler"
)

const staticPageName = "static-page"

// ComponentFactory builds the component graph for a command.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger, opts ...Option) (*Components, error)
}

// Option tunes what the factory builds.
type Option func(*factoryOptions)

type factoryOptions struct {
	withPage   bool
	httpClient *http.Client
}

// WithoutPage builds only the store and the controller. processTasks is
// unavailable; configuration requests work.
func WithoutPage() Option {
	return func(o *factoryOptions) { o.withPage = false }
}

// WithHTTPClient sets the client the static engine fetches pages with.
func WithHTTPClient(client *http.Client) Option {
	return func(o *factoryOptions) { o.httpClient = client }
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires store, channel, page, executor, scheduler, coordinator and
// controller. ctx bounds the lifetime of the browser, if one is launched.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger, opts ...Option) (*Components, error) {
	options := factoryOptions{withPage: true}
	for _, opt := range opts {
		opt(&options)
	}

	components := &Components{}

	// Ensure cleanup happens if initialization fails midway.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Store
	kv, cleanup, err := InitializeStore(ctx, cfg, logger)
	components.storeCleanup = cleanup
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize store: %w", err)
		return nil, initializationErr
	}
	components.Store = kv
	logger.Debug("Store initialized.", zap.String("backend", cfg.Store().Backend))

	if !options.withPage {
		ctrl, err := controller.New(nil, kv, logger)
		if err != nil {
			initializationErr = err
			return nil, initializationErr
		}
		components.Controller = ctrl
		return components, nil
	}

	// 2. Channel
	components.Bus = channel.NewBus(logger, channel.WithReplyTimeout(cfg.Channel().ReplyTimeout))

	// 3. Page engine and the locator that finds it.
	var (
		page    dispatcher.Page
		target  scheduler.Target
		locator scheduler.TargetLocator
	)
	switch strings.ToLower(cfg.Browser().Engine) {
	case config.EngineStatic:
		doc := static.NewDocument(staticPageName, options.httpClient, logger)
		startURL := cfg.Browser().StartURL
		if startURL == "" {
			startURL = "about:blank"
		}
		if err := doc.Navigate(ctx, startURL); err != nil {
			initializationErr = fmt.Errorf("failed to load start page: %w", err)
			return nil, initializationErr
		}
		components.StaticPage = doc
		page, target, locator = doc, doc, scheduler.FixedTarget(doc)
		logger.Debug("Static page engine initialized.")

	case config.EngineChrome, "":
		mgr := browser.NewManager(cfg.Browser(), logger)
		components.BrowserManager = mgr
		tab, err := mgr.Open(ctx)
		if err != nil {
			initializationErr = fmt.Errorf("failed to initialize browser: %w", err)
			return nil, initializationErr
		}
		page, target, locator = tab, tab, mgr
		logger.Debug("Browser manager initialized.")

	default:
		initializationErr = fmt.Errorf("unsupported browser engine: %s", cfg.Browser().Engine)
		return nil, initializationErr
	}

	// 4. Executor, reachable on the channel under the target's name.
	exec, err := dispatcher.New(page, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	unregister, err := components.Bus.Register(target.Name(), exec.Handler())
	if err != nil {
		initializationErr = fmt.Errorf("failed to register executor: %w", err)
		return nil, initializationErr
	}
	components.unregisterExecutor = unregister

	// 5. Scheduler and coordinator.
	wait, err := scheduler.NewWaitPolicy(cfg.Scheduler())
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	sched, err := scheduler.New(components.Bus, wait, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	coordinator, err := scheduler.NewCoordinator(sched, locator, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Coordinator = coordinator

	// 6. Controller.
	ctrl, err := controller.New(coordinator, kv, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Controller = ctrl

	logger.Info("All components initialized successfully.", zap.String("engine", cfg.Browser().Engine), zap.String("target", target.Name()))
	return components, nil
}
