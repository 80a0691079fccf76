// File: internal/service/components.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/internal/browser"
	"github.com/xkilldash9x/taskpilot/internal/browser/static"
	"github.com/xkilldash9x/taskpilot/internal/channel"
	"github.com/xkilldash9x/taskpilot/internal/controller"
	"github.com/xkilldash9x/taskpilot/internal/observability"
	"github.com/xkilldash9x/taskpilot/internal/scheduler"
	"github.com/xkilldash9x/taskpilot/internal/store"
)

const shutdownTimeout = 30 * time.Second

// Components holds the wired component graph behind the controller.
type Components struct {
	Store       store.KeyValue
	Bus         *channel.Bus
	Coordinator *scheduler.Coordinator
	Controller  *controller.Controller

	// Exactly one of these is set when a page engine was requested.
	BrowserManager *browser.Manager
	StaticPage     *static.Document

	unregisterExecutor func()
	storeCleanup       func()
}

// Shutdown releases everything in reverse dependency order: in-flight runs
// first, then the channel, the page and finally the store.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 1. Let runs finish (they are abandoned once their own context ends).
	if c.Coordinator != nil {
		if err := c.Coordinator.Wait(ctx); err != nil {
			logger.Warn("Timed out waiting for in-flight runs.", zap.Error(err))
		} else {
			logger.Debug("Run coordinator idle.")
		}
	}

	// 2. Stop the executor and the channel.
	if c.unregisterExecutor != nil {
		c.unregisterExecutor()
	}
	if c.Bus != nil {
		if err := c.Bus.Close(ctx); err != nil {
			logger.Warn("Error closing channel.", zap.Error(err))
		} else {
			logger.Debug("Channel closed.")
		}
	}

	// 3. Close the page.
	if c.BrowserManager != nil {
		if err := c.BrowserManager.Shutdown(ctx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser manager shut down.")
		}
	}

	// 4. Release the store.
	if c.storeCleanup != nil {
		c.storeCleanup()
		logger.Debug("Store released.")
	}

	logger.Info("All components shut down successfully.")
}
